// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package utf8

// Width is the number of bytes that a lead byte
// claims for its sequence.
type Width uint8

// InvalidLead is the Width of a byte that
// cannot start a sequence.
const InvalidLead Width = 0

const (
	// continuation byte bounds
	locb = 0x80
	hicb = 0xBF
)

const (
	xx = InvalidLead
	w1 = Width(1)
	w2 = Width(2)
	w3 = Width(3)
	w4 = Width(4)
)

// widths maps a lead byte to its Width.
//
// 0xC0 and 0xC1 could only start overlong
// encodings of ASCII, and 0xF5 and above would
// encode code points beyond U+10FFFF.
var widths = [256]Width{
	//   1   2   3   4   5   6   7   8   9   A   B   C   D   E   F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x00-0x0F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x10-0x1F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x20-0x2F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x30-0x3F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x40-0x4F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x50-0x5F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x60-0x6F
	w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, w1, // 0x70-0x7F
	//   1   2   3   4   5   6   7   8   9   A   B   C   D   E   F
	xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, // 0x80-0x8F
	xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, // 0x90-0x9F
	xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, // 0xA0-0xAF
	xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, // 0xB0-0xBF
	xx, xx, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, // 0xC0-0xCF
	w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, w2, // 0xD0-0xDF
	w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, w3, // 0xE0-0xEF
	w4, w4, w4, w4, w4, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, xx, // 0xF0-0xFF
}

// Classify returns the Width claimed by the
// lead byte b, or InvalidLead if b cannot
// start a sequence.
func Classify(b byte) Width { return widths[b] }

// second returns the inclusive range permitted
// for the byte following lead; every later
// continuation byte must be in [locb, hicb].
func second(lead byte) (lo, hi byte) {
	switch lead {
	case 0xE0:
		return 0xA0, hicb // overlong
	case 0xED:
		return locb, 0x9F // surrogates
	case 0xF0:
		return 0x90, hicb // overlong
	case 0xF4:
		return locb, 0x8F // > U+10FFFF
	}
	return locb, hicb
}

// fault returns the index within p of the first
// byte that does not fit the sequence started
// by p[0], or -1 if every byte in p fits.
// p may hold fewer bytes than the sequence claims.
func fault(p []byte) int {
	if Classify(p[0]) == InvalidLead {
		return 0
	}
	lo, hi := second(p[0])
	for i := 1; i < len(p); i++ {
		if p[i] < lo || p[i] > hi {
			return i
		}
		lo, hi = locb, hicb
	}
	return -1
}

func tail(b byte) bool { return b >= locb && b <= hicb }

func check1(p *[1]byte) bool {
	return p[0] <= 0x7F
}

func check2(p *[2]byte) bool {
	return p[0] >= 0xC2 && p[0] <= 0xDF && tail(p[1])
}

func check3(p *[3]byte) bool {
	if !tail(p[2]) {
		return false
	}
	switch {
	case p[0] == 0xE0:
		return p[1] >= 0xA0 && p[1] <= hicb
	case p[0] >= 0xE1 && p[0] <= 0xEC, p[0] == 0xEE, p[0] == 0xEF:
		return tail(p[1])
	case p[0] == 0xED:
		return p[1] >= locb && p[1] <= 0x9F
	}
	return false
}

func check4(p *[4]byte) bool {
	if !tail(p[2]) || !tail(p[3]) {
		return false
	}
	switch {
	case p[0] == 0xF0:
		return p[1] >= 0x90 && p[1] <= hicb
	case p[0] >= 0xF1 && p[0] <= 0xF3:
		return tail(p[1])
	case p[0] == 0xF4:
		return p[1] >= locb && p[1] <= 0x8F
	}
	return false
}

// check applies the predicate for width w
// to the first w bytes of p.
func check(p []byte, w Width) bool {
	switch w {
	case 1:
		return check1((*[1]byte)(p))
	case 2:
		return check2((*[2]byte)(p))
	case 3:
		return check3((*[3]byte)(p))
	case 4:
		return check4((*[4]byte)(p))
	}
	return false
}
