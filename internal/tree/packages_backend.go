// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cros.local/portage/internal/standard/ebuild"
	"cros.local/portage/internal/standard/naming"
)

// ensurePackagesFileLoadedLocked parses the whole Packages index file once
// into t.categories/t.categoryNames, fully materialising every category and
// package it names; subsequent calls are a no-op. Called with t.mu held.
func (t *Tree) ensurePackagesFileLoadedLocked() error {
	if t.packagesLoaded {
		return nil
	}

	f, err := os.Open(t.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", t.dir, err)
	}
	defer f.Close()

	blocks, err := splitPackagesBlocks(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", t.dir, err)
	}

	for i, block := range blocks {
		if i == 0 {
			// The first block is the header (no CPV) and carries no package.
			continue
		}
		cpv, ok := block["CPV"]
		if !ok {
			t.warnf("WARNING: %s: block %d has no CPV, skipped\n", t.dir, i)
			continue
		}
		sep := strings.IndexByte(cpv, '/')
		if sep < 0 {
			t.warnf("WARNING: %s: malformed CPV %q, skipped\n", t.dir, cpv)
			continue
		}
		catName, pf := cpv[:sep], cpv[sep+1:]
		if naming.CheckCategory(catName) != nil {
			t.warnf("WARNING: %s: invalid category in CPV %q, skipped\n", t.dir, cpv)
			continue
		}

		meta := make(ebuild.Metadata, len(block))
		for k, v := range block {
			if k == "CPV" {
				continue
			}
			if ebuild.RecognizedKeys[k] {
				meta[k] = v
			}
		}

		buildID := 0
		if v := block["BUILD_ID"]; v != "" {
			buildID, _ = strconv.Atoi(v)
		}
		path := block["PATH"]
		if path == "" {
			path = pf
		}

		c, ok := t.categories[catName]
		if !ok {
			c = newCategory(t, catName)
			t.categories[catName] = c
			t.categoryNames = append(t.categoryNames, catName)
		}
		c.addListingLocked(pkgListing{pf: pf, path: path, buildID: buildID, meta: meta})
		c.pkgsComplete = true
	}

	t.packagesLoaded = true
	return nil
}

// splitPackagesBlocks splits a Packages file into "KEY: value" blocks
// separated by blank lines, per spec.md §6.
func splitPackagesBlocks(r *os.File) ([]map[string]string, error) {
	var blocks []map[string]string
	cur := map[string]string{}
	lastKey := ""

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(cur) > 0 {
				blocks = append(blocks, cur)
				cur = map[string]string{}
			}
			lastKey = ""
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && lastKey != "" {
			// Continuation of a multi-line value (e.g. wrapped DESCRIPTION).
			cur[lastKey] += " " + strings.TrimSpace(line)
			continue
		}
		i := strings.Index(line, ": ")
		if i < 0 {
			continue
		}
		key, value := line[:i], line[i+2:]
		cur[key] = value
		lastKey = key
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks, nil
}
