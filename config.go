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

// Package u8check holds the configuration shared
// by the u8check command and its library packages.
package u8check

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/u8check/check"
)

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "yaml"}

// Config describes how inputs are checked
// and how results are reported.
type Config struct {
	// Pattern selects files when walking a tree.
	Pattern string `json:"pattern,omitempty"`
	// Workers is the number of files checked
	// concurrently; zero means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
	// ChunkSize is the read size for streamed
	// inputs; zero means check.DefaultChunkSize.
	ChunkSize int `json:"chunk_size,omitempty"`
	// Digest is one of check.Digests.
	Digest string `json:"digest,omitempty"`
	// Decompress enables decompression of
	// inputs by file extension.
	Decompress bool `json:"decompress,omitempty"`
	// AllowTruncated stops inputs that end
	// inside a sequence from counting as failures.
	AllowTruncated bool `json:"allow_truncated,omitempty"`
	// Format is one of Formats.
	Format string `json:"format,omitempty"`
	// Context is the number of bytes shown on
	// either side of a fault; zero disables it.
	Context int `json:"context,omitempty"`
}

// DefaultConfig returns the configuration
// used when no configuration file is given.
func DefaultConfig() *Config {
	return &Config{Format: "text"}
}

// DecodeConfig decodes a configuration from src.
// The extension ext selects the encoding: ".yaml"
// and ".yml" are decoded as YAML, and ".json" (or
// no extension) as JSON. Unknown fields are rejected.
// Fields absent from src keep their DefaultConfig values.
func DecodeConfig(src io.Reader, ext string) (*Config, error) {
	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	switch ext {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(buf, c)
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(buf))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// OpenConfig reads and validates the
// configuration file at name.
func OpenConfig(name string) (*Config, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := DecodeConfig(f, filepath.Ext(name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return c, nil
}

// Validate returns an error if any
// field of c holds an unusable value.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative (got %d)", c.Workers)
	}
	if c.ChunkSize != 0 && c.ChunkSize < check.MinChunkSize {
		return fmt.Errorf("chunk_size must be at least %d (got %d)", check.MinChunkSize, c.ChunkSize)
	}
	if c.Context < 0 {
		return fmt.Errorf("context must not be negative (got %d)", c.Context)
	}
	if err := check.ValidDigest(c.Digest); err != nil {
		return err
	}
	if _, err := path.Match(c.Pattern, ""); err != nil {
		return fmt.Errorf("bad pattern %q: %w", c.Pattern, err)
	}
	for _, f := range Formats {
		if c.Format == f {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q", c.Format)
}

// Checker returns a check.Checker configured by c.
func (c *Config) Checker() check.Checker {
	return check.Checker{
		ChunkSize: c.ChunkSize,
		Digest:    c.Digest,
	}
}

// Tree returns a check.Tree for the directory
// root within fsys, configured by c.
func (c *Config) Tree(fsys fs.FS, root string) *check.Tree {
	return &check.Tree{
		FS:             fsys,
		Root:           root,
		Pattern:        c.Pattern,
		Workers:        c.Workers,
		Decompress:     c.Decompress,
		AllowTruncated: c.AllowTruncated,
		Checker:        c.Checker(),
	}
}
