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

package memdev

import (
	"errors"
	"io"
	"io/fs"
	"math"
	"sync"
	"testing"
)

func TestReadWrite(t *testing.T) {
	d := New(8)
	f, err := d.Open("mem0")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	n, err := f.Write([]byte("abcde"))
	if n != 5 || err != nil {
		t.Fatalf("Write: %d, %v", n, err)
	}
	// only 3 bytes remain
	n, err = f.Write([]byte("fghij"))
	if n != 3 || !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("short Write: %d, %v", n, err)
	}
	n, err = f.Write([]byte("k"))
	if n != 0 || !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("Write at end: %d, %v", n, err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	n, err = f.Read(buf)
	if n != 5 || err != nil || string(buf) != "abcde" {
		t.Fatalf("Read: %d, %v, %q", n, err, buf)
	}
	n, err = f.Read(buf)
	if n != 3 || err != nil || string(buf[:n]) != "fgh" {
		t.Fatalf("short Read: %d, %v, %q", n, err, buf[:n])
	}
	n, err = f.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("Read at end: %d, %v", n, err)
	}
}

func TestIndependentFiles(t *testing.T) {
	d := Wrap([]byte("hello, world"))
	a, _ := d.Open("a")
	b, _ := d.Open("b")
	if _, err := a.Seek(7, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	all, err := io.ReadAll(b)
	if err != nil || string(all) != "hello, world" {
		t.Fatalf("b: %q, %v", all, err)
	}
	rest, err := io.ReadAll(a)
	if err != nil || string(rest) != "world" {
		t.Fatalf("a: %q, %v", rest, err)
	}
}

func TestSeek(t *testing.T) {
	d := New(100)
	f, _ := d.Open("seek")
	testcases := []struct {
		offset int64
		whence int
		want   int64
		err    error
	}{
		{10, io.SeekStart, 10, nil},
		{-1, io.SeekStart, 0, ErrNegativeOffset},
		{5, io.SeekCurrent, 15, nil},
		{-20, io.SeekCurrent, 0, ErrNegativeOffset},
		{-10, io.SeekEnd, 90, nil},
		{-101, io.SeekEnd, 0, ErrNegativeOffset},
		{50, io.SeekEnd, 150, nil}, // past the end is allowed
		{math.MaxInt64, io.SeekCurrent, 0, ErrOverflow},
		{math.MaxInt64, io.SeekEnd, 0, ErrOverflow},
		{0, 42, 0, ErrWhence},
		{0, io.SeekCurrent, 150, nil},
	}
	for i := range testcases {
		tc := &testcases[i]
		got, err := f.Seek(tc.offset, tc.whence)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("case %d: got error %v, want %v", i, err, tc.err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("case %d: got %d, %v, want %d", i, got, err, tc.want)
		}
	}
	// position is past the end
	n, err := f.Read(make([]byte, 1))
	if n != 0 || err != io.EOF {
		t.Fatalf("Read past end: %d, %v", n, err)
	}
}

func TestReadAt(t *testing.T) {
	d := Wrap([]byte("0123456789"))
	f, _ := d.Open("at")
	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 3)
	if n != 4 || err != nil || string(buf) != "3456" {
		t.Fatalf("ReadAt: %d, %v, %q", n, err, buf)
	}
	n, err = f.ReadAt(buf, 8)
	if n != 2 || err != io.EOF || string(buf[:n]) != "89" {
		t.Fatalf("ReadAt near end: %d, %v, %q", n, err, buf[:n])
	}
	if _, err := f.ReadAt(buf, -1); !errors.Is(err, ErrNegativeOffset) {
		t.Fatalf("ReadAt(-1): %v", err)
	}
	// ReadAt does not move the position
	n, err = f.Read(buf)
	if n != 4 || err != nil || string(buf) != "0123" {
		t.Fatalf("Read after ReadAt: %d, %v, %q", n, err, buf)
	}
}

func TestClosed(t *testing.T) {
	d := New(4)
	f, _ := d.Open("c")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read after Close: %v", err)
	}
	if _, err := f.Write([]byte{1}); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Write after Close: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Seek after Close: %v", err)
	}
	if err := f.Close(); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("second Close: %v", err)
	}

	g, _ := d.Open("g")
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Read(make([]byte, 1)); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read on closed device: %v", err)
	}
	if _, err := d.Open("h"); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Open on closed device: %v", err)
	}
}

func TestConcurrentFiles(t *testing.T) {
	const workers = 8
	d := New(workers * 64)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := d.Open("w")
			if err != nil {
				t.Error(err)
				return
			}
			defer f.Close()
			chunk := make([]byte, 64)
			for j := range chunk {
				chunk[j] = byte(i)
			}
			if _, err := f.Seek(int64(i*64), io.SeekStart); err != nil {
				t.Error(err)
				return
			}
			if _, err := f.Write(chunk); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	f, _ := d.Open("r")
	all, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range all {
		if int(b) != i/64 {
			t.Fatalf("byte %d = %d, want %d", i, b, i/64)
		}
	}
}
