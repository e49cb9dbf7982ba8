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

import (
	"errors"
	"fmt"
)

// Status is the outcome of Validate.
type Status uint8

const (
	// Valid means the whole buffer is well-formed.
	Valid Status = iota
	// Invalid means the buffer contains a byte
	// that violates RFC 3629.
	Invalid
	// Truncated means the buffer ends inside a
	// multi-byte sequence that is well-formed
	// as far as it goes.
	Truncated
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Truncated:
		return "truncated"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s > Truncated {
		return nil, fmt.Errorf("utf8: cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for st := Valid; st <= Truncated; st++ {
		if string(text) == st.String() {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("utf8: unknown status %q", text)
}

var (
	// ErrInvalid is matched (via errors.Is) by
	// the error for an Invalid result.
	ErrInvalid = errors.New("invalid utf-8")
	// ErrTruncated is matched (via errors.Is) by
	// the error for a Truncated result.
	ErrTruncated = errors.New("truncated utf-8")
)

// Result describes the outcome of Validate.
type Result struct {
	Status Status
	// Offset is the index of the first bad byte
	// when Status is Invalid, the index of the
	// lead byte of the incomplete sequence when
	// Status is Truncated, and the buffer length
	// when Status is Valid.
	Offset int
	// Missing is the number of continuation bytes
	// needed to complete the final sequence when
	// Status is Truncated. It is zero otherwise.
	Missing int
}

// Ok returns true if r.Status is Valid.
func (r Result) Ok() bool { return r.Status == Valid }

func (r Result) String() string {
	switch r.Status {
	case Invalid:
		return fmt.Sprintf("invalid byte at offset %d", r.Offset)
	case Truncated:
		return fmt.Sprintf("truncated sequence at offset %d (missing %d)", r.Offset, r.Missing)
	}
	return r.Status.String()
}

// Err returns nil if r is Valid and
// an *Error describing r otherwise.
func (r Result) Err() error {
	if r.Ok() {
		return nil
	}
	return &Error{Result: r}
}

// Error is the error returned by Result.Err.
type Error struct {
	Result Result
}

func (e *Error) Error() string { return "utf8: " + e.Result.String() }

// Is allows errors.Is(err, ErrInvalid) and
// errors.Is(err, ErrTruncated).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalid:
		return e.Result.Status == Invalid
	case ErrTruncated:
		return e.Result.Status == Truncated
	}
	return false
}

// Validate determines whether p is well-formed
// UTF-8 as restricted by RFC 3629: no overlong
// encodings, no surrogates, and nothing above U+10FFFF.
//
// Validate does not retain p and is safe to
// call concurrently on independent buffers.
func Validate(p []byte) Result {
	i := 0
	for {
		i += asciiPrefix(p[i:])
		if i == len(p) {
			return Result{Status: Valid, Offset: i}
		}
		w := Classify(p[i])
		if w == InvalidLead {
			return Result{Status: Invalid, Offset: i}
		}
		end := i + int(w)
		if end > len(p) {
			// a short tail that is already wrong
			// is an error, not a truncation
			if j := fault(p[i:]); j >= 0 {
				return Result{Status: Invalid, Offset: i + j}
			}
			return Result{Status: Truncated, Offset: i, Missing: end - len(p)}
		}
		if !check(p[i:end], w) {
			return Result{Status: Invalid, Offset: i + fault(p[i:end])}
		}
		i = end
	}
}

// IsValid returns true if p is entirely
// well-formed UTF-8. A buffer that ends inside
// a sequence is not valid.
func IsValid(p []byte) bool {
	return Validate(p).Ok()
}
