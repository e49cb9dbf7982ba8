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

// Package compr wraps third-party decompressors
// so that compressed inputs can be checked in
// their decompressed form.
package compr

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var extensions = map[string]string{
	".zst":  "zstd",
	".zstd": "zstd",
	".s2":   "s2",
	".lz4":  "lz4",
	".gz":   "gzip",
}

// ByExtension returns the name of the stream
// format implied by the extension of name,
// or the empty string if name does not look
// compressed.
func ByExtension(name string) string {
	return extensions[strings.ToLower(path.Ext(name))]
}

type readCloser struct {
	io.Reader
	close func()
}

func (r *readCloser) Close() error {
	if r.close != nil {
		r.close()
		r.close = nil
	}
	return nil
}

// NewReader returns a reader that decompresses
// the stream r written in the named format.
// Closing the returned reader does not close r.
func NewReader(name string, r io.Reader) (io.ReadCloser, error) {
	switch name {
	case "zstd":
		// use a single-threaded decoder per stream;
		// callers check many streams in parallel
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("compr: zstd: %w", err)
		}
		return &readCloser{Reader: d, close: d.Close}, nil
	case "s2":
		return &readCloser{Reader: s2.NewReader(r)}, nil
	case "lz4":
		return &readCloser{Reader: lz4.NewReader(r)}, nil
	case "gzip":
		z, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("compr: gzip: %w", err)
		}
		return z, nil
	case "":
		return io.NopCloser(r), nil
	}
	return nil, fmt.Errorf("compr: unknown stream format %q", name)
}
