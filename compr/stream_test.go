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

package compr

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

func compressStream(t *testing.T, name string, src []byte) []byte {
	var buf bytes.Buffer
	var w io.WriteCloser
	switch name {
	case "zstd":
		z, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatal(err)
		}
		w = z
	case "s2":
		w = s2.NewWriter(&buf)
	case "lz4":
		w = lz4.NewWriter(&buf)
	case "gzip":
		w = gzip.NewWriter(&buf)
	default:
		t.Fatalf("no writer for %s", name)
	}
	if _, err := w.Write(src); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewReader(t *testing.T) {
	src := bytes.Repeat([]byte("日本語のテキスト and ascii\n"), 500)
	for _, name := range []string{"zstd", "s2", "lz4", "gzip", ""} {
		in := src
		if name != "" {
			in = compressStream(t, name, src)
		}
		r, err := NewReader(name, bytes.NewReader(in))
		if err != nil {
			t.Fatalf("%q: %s", name, err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("%q: reading: %s", name, err)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("%q: close: %s", name, err)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("%q: mismatch", name)
		}
	}
	if _, err := NewReader("rar", bytes.NewReader(nil)); err == nil {
		t.Error("expected an error for an unknown format")
	}
	if _, err := NewReader("gzip", bytes.NewReader([]byte("not gzip"))); err == nil {
		t.Error("expected an error for a corrupt gzip header")
	}
}

func TestByExtension(t *testing.T) {
	testcases := []struct {
		name, format string
	}{
		{"a/b/log.txt", ""},
		{"a/b/log.txt.zst", "zstd"},
		{"log.ZST", "zstd"},
		{"log.zstd", "zstd"},
		{"log.json.s2", "s2"},
		{"log.lz4", "lz4"},
		{"log.gz", "gzip"},
		{"noext", ""},
	}
	for i := range testcases {
		tc := &testcases[i]
		if got := ByExtension(tc.name); got != tc.format {
			t.Errorf("ByExtension(%q) = %q, want %q", tc.name, got, tc.format)
		}
	}
}
