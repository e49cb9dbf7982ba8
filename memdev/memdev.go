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

// Package memdev implements a byte-stream device
// backed by a fixed region of memory.
//
// A Device hands out any number of Files, each of
// which has its own position. Reads and writes are
// bounded by the size of the device: the end of the
// region behaves as end-of-stream.
package memdev

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"sync"
)

var (
	// ErrNegativeOffset is returned by Seek when
	// the resulting position would be negative.
	ErrNegativeOffset = errors.New("memdev: negative position")
	// ErrOverflow is returned by Seek when the
	// resulting position does not fit in an int64.
	ErrOverflow = errors.New("memdev: position overflows")
	// ErrWhence is returned by Seek for an
	// unknown whence value.
	ErrWhence = errors.New("memdev: invalid whence")
)

// Device is a region of memory that can be
// opened as a byte stream.
type Device struct {
	// lock guards mem and closed; it is held
	// only while bytes are copied in or out
	lock   sync.Mutex
	mem    []byte
	closed bool
}

// New returns a Device of the given size
// filled with zeros.
func New(size int) *Device {
	return &Device{mem: make([]byte, size)}
}

// Wrap returns a Device backed directly by mem.
// The Device takes ownership of mem; the caller
// must not modify mem while the Device is open.
func Wrap(mem []byte) *Device {
	return &Device{mem: mem}
}

// Size returns the size of the device in bytes.
func (d *Device) Size() int64 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return int64(len(d.mem))
}

// Open returns a new File positioned at the
// start of the device. The name is only used
// to identify the File.
func (d *Device) Open(name string) (*File, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrClosed}
	}
	return &File{dev: d, name: name}, nil
}

// Close releases the device. Files that are
// already open fail with fs.ErrClosed on
// their next operation.
func (d *Device) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return fs.ErrClosed
	}
	d.closed = true
	d.mem = nil
	return nil
}

// copyOut copies from the device at off into p.
func (d *Device) copyOut(p []byte, off int64) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return 0, fs.ErrClosed
	}
	if off >= int64(len(d.mem)) {
		return 0, nil
	}
	return copy(p, d.mem[off:]), nil
}

// copyIn copies p into the device at off.
func (d *Device) copyIn(p []byte, off int64) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return 0, fs.ErrClosed
	}
	if off >= int64(len(d.mem)) {
		return 0, nil
	}
	return copy(d.mem[off:], p), nil
}

// File is an open handle on a Device.
// A File is safe for concurrent use, but
// concurrent Read and Write calls share
// the same position.
type File struct {
	dev  *Device
	name string

	// lock serializes operations on this
	// handle and guards pos and closed
	lock   sync.Mutex
	pos    int64
	closed bool
}

// Name returns the name passed to Open.
func (f *File) Name() string { return f.name }

func (f *File) pathErr(op string, err error) error {
	return &fs.PathError{Op: op, Path: f.name, Err: err}
}

// Read implements io.Reader. Reads that reach
// the end of the device return a short count;
// a Read at or past the end returns io.EOF.
func (f *File) Read(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return 0, f.pathErr("read", fs.ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.dev.copyOut(p, f.pos)
	if err != nil {
		return 0, f.pathErr("read", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	f.pos += int64(n)
	return n, nil
}

// ReadAt implements io.ReaderAt.
// It does not use or move the File position.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, f.pathErr("readat", ErrNegativeOffset)
	}
	f.lock.Lock()
	closed := f.closed
	f.lock.Unlock()
	if closed {
		return 0, f.pathErr("readat", fs.ErrClosed)
	}
	n, err := f.dev.copyOut(p, off)
	if err != nil {
		return 0, f.pathErr("readat", err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write implements io.Writer. Writes are
// truncated at the end of the device, in
// which case io.ErrShortWrite is returned
// along with the number of bytes written.
func (f *File) Write(p []byte) (int, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return 0, f.pathErr("write", fs.ErrClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f.dev.copyIn(p, f.pos)
	if err != nil {
		return 0, f.pathErr("write", err)
	}
	f.pos += int64(n)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Seek implements io.Seeker. Seeking beyond the
// end of the device is permitted; subsequent
// reads return io.EOF.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return 0, f.pathErr("seek", fs.ErrClosed)
	}
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = f.dev.Size()
	default:
		return 0, f.pathErr("seek", fmt.Errorf("%w %d", ErrWhence, whence))
	}
	if offset > 0 && base > math.MaxInt64-offset {
		return 0, f.pathErr("seek", ErrOverflow)
	}
	pos := base + offset
	if pos < 0 {
		return 0, f.pathErr("seek", ErrNegativeOffset)
	}
	f.pos = pos
	return pos, nil
}

// Close implements io.Closer.
func (f *File) Close() error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.closed {
		return f.pathErr("close", fs.ErrClosed)
	}
	f.closed = true
	return nil
}
