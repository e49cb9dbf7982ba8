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

// Command u8check checks files for well-formed UTF-8.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/SnellerInc/u8check"
	"github.com/SnellerInc/u8check/check"
	"github.com/SnellerInc/u8check/compr"
	"github.com/SnellerInc/u8check/memdev"
)

var (
	dashc          string
	dashv          bool
	dashh          bool
	dashd          bool
	dashj          int
	dasho          string
	dashx          int
	digest         string
	chunkSize      int
	allowTruncated bool

	logger *zap.SugaredLogger
)

func init() {
	pflag.StringVarP(&dashc, "config", "c", "", "configuration file (.json, .yaml or .yml)")
	pflag.BoolVarP(&dashv, "verbose", "v", false, "verbose")
	pflag.BoolVarP(&dashh, "help", "h", false, "show usage help")
	pflag.BoolVarP(&dashd, "decompress", "d", false, "decompress inputs by file extension")
	pflag.IntVarP(&dashj, "workers", "j", 0, "files checked concurrently by tree (0 means GOMAXPROCS)")
	pflag.StringVarP(&dasho, "format", "o", "text", "output format (text, json or yaml)")
	pflag.IntVarP(&dashx, "context", "x", 0, "bytes of hex context shown around a fault")
	pflag.StringVar(&digest, "digest", "", "digest computed over each input (siphash or blake2b)")
	pflag.IntVar(&chunkSize, "chunk-size", 0, "read size for streamed inputs")
	pflag.BoolVar(&allowTruncated, "allow-truncated", false, "do not fail inputs that end inside a sequence")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

func logf(f string, args ...interface{}) {
	if logger != nil {
		logger.Infof(f, args...)
	}
}

// config loads the -c file (if any) and
// applies the flags that were set explicitly.
func config() *u8check.Config {
	c := u8check.DefaultConfig()
	if dashc != "" {
		var err error
		c, err = u8check.OpenConfig(dashc)
		if err != nil {
			exitf("%s\n", err)
		}
	}
	set := pflag.CommandLine.Changed
	if set("decompress") {
		c.Decompress = dashd
	}
	if set("workers") {
		c.Workers = dashj
	}
	if set("format") || dashc == "" {
		c.Format = dasho
	}
	if set("context") {
		c.Context = dashx
	}
	if set("digest") {
		c.Digest = digest
	}
	if set("chunk-size") {
		c.ChunkSize = chunkSize
	}
	if set("allow-truncated") {
		c.AllowTruncated = allowTruncated
	}
	if err := c.Validate(); err != nil {
		exitf("%s\n", err)
	}
	return c
}

// dumpContext writes up to n bytes on either
// side of the byte at off in dev to w.
func dumpContext(w io.Writer, dev *memdev.Device, name string, off int64, n int) error {
	f, err := dev.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	start := off - int64(n)
	if start < 0 {
		start = 0
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, off-start+int64(n)+1)
	k, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return err
	}
	_, err = fmt.Fprintf(w, "%s: bytes %d to %d:\n%s", name, start, start+int64(k), hex.Dump(buf[:k]))
	return err
}

// checkMem checks a buffer held in memory and
// dumps context around the fault when requested.
func checkMem(w io.Writer, c *u8check.Config, name string, mem []byte) check.Report {
	chk := c.Checker()
	rep, err := chk.Buffer(name, mem)
	if err != nil {
		return check.Report{Path: name, Error: err.Error()}
	}
	if c.Context > 0 && rep.Failed(c.AllowTruncated) {
		dev := memdev.Wrap(mem)
		if err := dumpContext(w, dev, name, rep.Offset, c.Context); err != nil {
			logf("%s: dumping context: %s", name, err)
		}
		dev.Close()
	}
	return rep
}

// load returns the contents of the named
// file, mapped into memory when possible.
func load(name string) ([]byte, func(), error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	if info.Mode().IsRegular() && info.Size() > 0 {
		if mem, ok := mmap(f, info.Size()); ok {
			return mem, func() { unmap(mem) }, nil
		}
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return buf, func() {}, nil
}

// stream checks a compressed file
// without holding it in memory.
func stream(ctx context.Context, c *u8check.Config, name, format string) check.Report {
	f, err := os.Open(name)
	if err != nil {
		return check.Report{Path: name, Error: err.Error()}
	}
	defer f.Close()
	src, err := compr.NewReader(format, f)
	if err != nil {
		return check.Report{Path: name, Error: err.Error()}
	}
	defer src.Close()
	chk := c.Checker()
	rep, err := chk.Reader(ctx, name, src)
	if err != nil {
		rep.Error = err.Error()
	}
	return rep
}

// checkFile checks one command-line argument;
// "-" names the standard input.
func checkFile(ctx context.Context, w io.Writer, c *u8check.Config, name string, stdin io.Reader) check.Report {
	if name == "-" {
		buf, err := io.ReadAll(stdin)
		if err != nil {
			return check.Report{Path: name, Error: err.Error()}
		}
		return checkMem(w, c, name, buf)
	}
	if c.Decompress {
		if format := compr.ByExtension(name); format != "" {
			return stream(ctx, c, name, format)
		}
	}
	mem, release, err := load(name)
	if err != nil {
		return check.Report{Path: name, Error: err.Error()}
	}
	defer release()
	return checkMem(w, c, name, mem)
}

// entry point for 'u8check check ...'
func checkFiles(ctx context.Context, c *u8check.Config, args []string) *check.Summary {
	reports := make([]check.Report, 0, len(args))
	for _, name := range args {
		if err := ctx.Err(); err != nil {
			exitf("%s\n", err)
		}
		rep := checkFile(ctx, os.Stderr, c, name, os.Stdin)
		logf("%s", rep.String())
		reports = append(reports, rep)
	}
	return check.Summarize(reports, c.AllowTruncated)
}

// entry point for 'u8check tree ...'
func tree(ctx context.Context, c *u8check.Config, dir, pattern string) *check.Summary {
	if pattern != "" {
		c.Pattern = pattern
	}
	t := c.Tree(os.DirFS(dir), ".")
	t.Logf = logf
	s, err := t.Run(ctx)
	if err != nil {
		exitf("tree %s: %s\n", dir, err)
	}
	return s
}

func output(w io.Writer, format string, s *check.Summary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		buf, err := yaml.Marshal(s)
		if err != nil {
			return err
		}
		_, err = w.Write(buf)
		return err
	}
	for i := range s.Reports {
		if _, err := fmt.Fprintln(w, s.Reports[i].String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d files, %d failed, %d bytes (run %s)\n", s.Files, s.Failed, s.Bytes, s.RunID)
	return err
}

// entry point for 'u8check show-config'
func showConfig(c *u8check.Config) {
	buf, err := yaml.Marshal(c)
	if err != nil {
		exitf("marshaling config: %s\n", err)
	}
	os.Stdout.Write(buf)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "    %s [flags] check <file|->...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        check files (or - for stdin)\n")
	fmt.Fprintf(os.Stderr, "    %s [flags] tree <dir> [pattern]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        check every file under dir (matching pattern)\n")
	fmt.Fprintf(os.Stderr, "    %s [flags] show-config\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        print the effective configuration\n")
	fmt.Fprintf(os.Stderr, "flag usage:\n")
	pflag.PrintDefaults()
	os.Exit(1)
}

func main() {
	pflag.Parse()
	args := pflag.Args()
	if len(args) == 0 || dashh {
		usage()
	}
	if dashv {
		l, err := zap.NewDevelopment()
		if err != nil {
			exitf("initializing logger: %s\n", err)
		}
		defer l.Sync()
		logger = l.Sugar()
	}
	c := config()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var s *check.Summary
	switch args[0] {
	case "check":
		if len(args) < 2 {
			exitf("usage: check <file|->...\n")
		}
		s = checkFiles(ctx, c, args[1:])
	case "tree":
		if len(args) < 2 || len(args) > 3 {
			exitf("usage: tree <dir> [pattern]\n")
		}
		pattern := ""
		if len(args) == 3 {
			pattern = args[2]
		}
		s = tree(ctx, c, args[1], pattern)
	case "show-config":
		showConfig(c)
		return
	default:
		exitf("commands: check, tree, show-config\n")
	}
	if err := output(os.Stdout, c.Format, s); err != nil {
		exitf("writing output: %s\n", err)
	}
	if s.Failed > 0 {
		stop()
		if logger != nil {
			logger.Sync()
		}
		os.Exit(1)
	}
}
