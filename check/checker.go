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

// Package check validates files and streams as UTF-8
// and produces reports that locate the first fault.
package check

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/SnellerInc/u8check/utf8"
)

const (
	// DefaultChunkSize is the read size used by
	// Checker.Reader when ChunkSize is zero.
	DefaultChunkSize = 1024 * 1024
	// MinChunkSize is the smallest accepted
	// ChunkSize; a chunk must be able to hold
	// an incomplete sequence carried over from
	// the previous read plus at least one new byte.
	MinChunkSize = 16
)

// Checker validates buffers and streams.
// The zero value is ready to use.
type Checker struct {
	// ChunkSize is the number of bytes
	// read at a time by Reader.
	ChunkSize int
	// Digest, if set, names a digest
	// (see Digests) computed over the
	// checked bytes.
	Digest string
}

// Report describes the result of checking one input.
type Report struct {
	Path string `json:"path"`
	// Size is the number of bytes read.
	Size   int64       `json:"size"`
	Status utf8.Status `json:"status"`
	// Offset is the absolute offset of the first
	// bad byte (Invalid) or of the lead byte of
	// the incomplete sequence (Truncated).
	Offset  int64 `json:"offset"`
	Missing int   `json:"missing,omitempty"`
	// Line and Column locate Offset; both are
	// 1-based and Column counts characters
	// started on the line before Offset.
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Digest string `json:"digest,omitempty"`
	// Error is set by Tree when the input
	// could not be read.
	Error string `json:"error,omitempty"`
}

// Failed returns true if the report describes a
// read error, an Invalid input, or (unless
// allowTruncated is set) a Truncated input.
func (r *Report) Failed(allowTruncated bool) bool {
	if r.Error != "" {
		return true
	}
	switch r.Status {
	case utf8.Valid:
		return false
	case utf8.Truncated:
		return !allowTruncated
	}
	return true
}

func (r *Report) String() string {
	if r.Error != "" {
		return fmt.Sprintf("%s: error: %s", r.Path, r.Error)
	}
	switch r.Status {
	case utf8.Invalid:
		return fmt.Sprintf("%s:%d:%d: invalid byte at offset %d", r.Path, r.Line, r.Column, r.Offset)
	case utf8.Truncated:
		return fmt.Sprintf("%s:%d:%d: truncated sequence at offset %d (missing %d)", r.Path, r.Line, r.Column, r.Offset, r.Missing)
	}
	return fmt.Sprintf("%s: ok (%d bytes)", r.Path, r.Size)
}

// position tracks the line and column
// of the bytes consumed so far.
type position struct {
	line int // newlines seen
	col  int // characters since the last newline
}

func (p *position) advance(buf []byte) {
	if i := bytes.LastIndexByte(buf, '\n'); i >= 0 {
		p.line += bytes.Count(buf[:i+1], []byte{'\n'})
		p.col = 0
		buf = buf[i+1:]
	}
	p.col += utf8.ValidStringLength(buf)
}

func (c *Checker) chunkSize() int {
	if c.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	if c.ChunkSize < MinChunkSize {
		return MinChunkSize
	}
	return c.ChunkSize
}

func (r *Report) finish(res utf8.Result, base int64, pos *position, h hash.Hash) {
	r.Status = res.Status
	r.Offset = base + int64(res.Offset)
	r.Missing = res.Missing
	r.Line = pos.line + 1
	r.Column = pos.col + 1
	if h != nil {
		r.Digest = hex.EncodeToString(h.Sum(nil))
	}
}

// Buffer checks p with a single call to
// utf8.Validate.
func (c *Checker) Buffer(name string, p []byte) (Report, error) {
	h, err := newHash(c.Digest)
	if err != nil {
		return Report{}, err
	}
	if h != nil {
		h.Write(p)
	}
	res := utf8.Validate(p)
	if res.Status == utf8.Invalid {
		h = nil
	}
	var pos position
	pos.advance(p[:res.Offset])
	rep := Report{Path: name, Size: int64(len(p))}
	rep.finish(res, 0, &pos, h)
	return rep, nil
}

// Reader checks the stream src, reading ChunkSize
// bytes at a time. When a chunk ends inside a
// sequence, the incomplete tail is moved to the
// front of the buffer and completed by the next
// read, so chunk boundaries never produce faults.
//
// Reader stops at the first Invalid byte, in which
// case the report carries no digest. Errors from
// src (and ctx) are returned as-is.
func (c *Checker) Reader(ctx context.Context, name string, src io.Reader) (Report, error) {
	h, err := newHash(c.Digest)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Path: name}
	buf := make([]byte, c.chunkSize())
	var pos position
	var base int64 // stream offset of buf[0]
	carry := 0
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := io.ReadFull(src, buf[carry:])
		eof := err == io.EOF || err == io.ErrUnexpectedEOF
		if err != nil && !eof {
			return rep, err
		}
		if h != nil {
			h.Write(buf[carry : carry+n])
		}
		rep.Size += int64(n)
		data := buf[:carry+n]
		res := utf8.Validate(data)
		switch {
		case res.Status == utf8.Invalid:
			pos.advance(data[:res.Offset])
			rep.finish(res, base, &pos, nil)
			return rep, nil
		case eof:
			pos.advance(data[:res.Offset])
			rep.finish(res, base, &pos, h)
			return rep, nil
		case res.Status == utf8.Truncated:
			pos.advance(data[:res.Offset])
			carry = copy(buf, data[res.Offset:])
			base += int64(res.Offset)
		default:
			pos.advance(data)
			carry = 0
			base += int64(len(data))
		}
	}
}
