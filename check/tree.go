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

package check

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/SnellerInc/u8check/compr"
)

// Summary is the result of Tree.Run.
type Summary struct {
	RunID   uuid.UUID `json:"run_id"`
	Files   int       `json:"files"`
	Failed  int       `json:"failed"`
	Bytes   int64     `json:"bytes"`
	Reports []Report  `json:"reports"`
}

// Tree checks every regular file in a file tree.
type Tree struct {
	FS fs.FS
	// Root is the directory within FS to walk;
	// the empty string means ".".
	Root string
	// Pattern, if set, selects files to check.
	// A pattern containing '/' is matched against
	// the path relative to Root; otherwise it is
	// matched against the base name. See path.Match.
	Pattern string
	// Workers is the number of files checked
	// concurrently. It defaults to GOMAXPROCS.
	Workers int
	// Decompress causes files with a known
	// compression extension (see compr.ByExtension)
	// to be checked after decompression.
	Decompress bool
	// AllowTruncated causes Truncated files
	// not to be counted as failures.
	AllowTruncated bool
	Checker        Checker
	// Logf, if non-nil, is called once
	// for each file checked.
	Logf func(f string, args ...interface{})
}

func (t *Tree) logf(f string, args ...interface{}) {
	if t.Logf != nil {
		t.Logf(f, args...)
	}
}

func (t *Tree) root() string {
	if t.Root == "" {
		return "."
	}
	return t.Root
}

// metaPrefix returns the longest directory
// prefix of pattern free of glob metacharacters,
// or "." if there is none.
func metaPrefix(pattern string) string {
	j := 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*', '?', '\\', '[':
			if j == 0 {
				return "."
			}
			return pattern[:j]
		case '/':
			j = i
		}
	}
	return pattern
}

// start returns the directory where the walk
// begins; a path pattern lets it skip the
// directories outside its literal prefix.
func (t *Tree) start() string {
	if !strings.Contains(t.Pattern, "/") {
		return t.root()
	}
	pre := metaPrefix(t.Pattern)
	if pre == "." {
		return t.root()
	}
	return path.Join(t.root(), pre)
}

func (t *Tree) match(name string) bool {
	if t.Pattern == "" {
		return true
	}
	rel := name
	if r := t.root(); r != "." {
		rel = strings.TrimPrefix(name, r+"/")
	}
	if !strings.Contains(t.Pattern, "/") {
		rel = path.Base(rel)
	}
	ok, _ := path.Match(t.Pattern, rel)
	return ok
}

// Run walks the tree and checks each matching file.
// Errors reading an individual file are recorded in
// its Report; errors walking the tree, a bad Pattern
// or cancellation of ctx abort the run.
func (t *Tree) Run(ctx context.Context) (*Summary, error) {
	if _, err := path.Match(t.Pattern, ""); err != nil {
		return nil, fmt.Errorf("check: bad pattern %q: %w", t.Pattern, err)
	}
	if err := ValidDigest(t.Checker.Digest); err != nil {
		return nil, err
	}
	workers := t.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make(chan string, workers)
	var lock sync.Mutex
	var reports []Report
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				rep := t.file(ctx, name)
				if ctx.Err() != nil {
					continue
				}
				t.logf("%s", rep.String())
				lock.Lock()
				reports = append(reports, rep)
				lock.Unlock()
			}
		}()
	}

	start := t.start()
	walkerr := fs.WalkDir(t.FS, start, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			if name == start && start != t.root() && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() || !t.match(name) {
			return nil
		}
		select {
		case names <- name:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(names)
	wg.Wait()
	if walkerr != nil {
		return nil, walkerr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return Summarize(reports, t.AllowTruncated), nil
}

// Summarize sorts reports by path and
// totals them under a new run ID.
func Summarize(reports []Report, allowTruncated bool) *Summary {
	slices.SortFunc(reports, func(a, b Report) bool {
		return a.Path < b.Path
	})
	s := &Summary{
		RunID:   uuid.New(),
		Files:   len(reports),
		Reports: reports,
	}
	for i := range reports {
		s.Bytes += reports[i].Size
		if reports[i].Failed(allowTruncated) {
			s.Failed++
		}
	}
	return s
}

// file checks a single file; failures to open
// or read it are recorded in the report.
func (t *Tree) file(ctx context.Context, name string) Report {
	f, err := t.FS.Open(name)
	if err != nil {
		return Report{Path: name, Error: err.Error()}
	}
	defer f.Close()
	format := ""
	if t.Decompress {
		format = compr.ByExtension(name)
	}
	src, err := compr.NewReader(format, f)
	if err != nil {
		return Report{Path: name, Error: err.Error()}
	}
	defer src.Close()
	rep, err := t.Checker.Reader(ctx, name, src)
	if err != nil {
		rep.Error = err.Error()
	}
	return rep
}
