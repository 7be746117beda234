// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package contents parses the VDB/binpkg CONTENTS file format: one
// line-oriented record per installed filesystem entry. See spec.md §6.
package contents

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the record type of one CONTENTS line.
type Kind int

const (
	KindDir Kind = iota
	KindObj
	KindSym
)

// Entry is one parsed CONTENTS record.
type Entry struct {
	Kind Kind
	Path string

	// Obj only.
	MD5   string
	Mtime string

	// Sym only.
	Target string
}

// Parse reads every record of a CONTENTS file in order. Parsing stops at the
// first malformed line: the returned error names its 1-based line number and
// no entries are returned, including those of the lines before it.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := sc.Text()
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseLine(line string) (Entry, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Entry{}, fmt.Errorf("empty record")
	}

	switch fields[0] {
	case "dir":
		if len(fields) != 2 {
			return Entry{}, fmt.Errorf("malformed dir record: %q", line)
		}
		return Entry{Kind: KindDir, Path: fields[1]}, nil

	case "obj":
		if len(fields) != 4 {
			return Entry{}, fmt.Errorf("malformed obj record: %q", line)
		}
		return Entry{Kind: KindObj, Path: fields[1], MD5: fields[2], Mtime: fields[3]}, nil

	case "sym":
		const delim = " -> "
		idx := strings.Index(line, delim)
		if idx < 0 {
			return Entry{}, fmt.Errorf("malformed sym record: %q", line)
		}
		head := strings.Fields(line[:idx])
		if len(head) != 2 {
			return Entry{}, fmt.Errorf("malformed sym record: %q", line)
		}
		rest := strings.Fields(line[idx+len(delim):])
		if len(rest) != 2 {
			return Entry{}, fmt.Errorf("malformed sym record: %q", line)
		}
		return Entry{Kind: KindSym, Path: head[1], Target: rest[0], Mtime: rest[1]}, nil

	default:
		return Entry{}, fmt.Errorf("unknown record type %q", fields[0])
	}
}
