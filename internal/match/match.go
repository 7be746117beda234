// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package match implements the match engine of spec.md §4.4: a thin layer
// over tree.Tree.ForEachPackage that enumerates packages satisfying an atom
// and applies the LATEST/FIRST/VIRTUAL/ACCT/SORT filters. Grounded in
// original_source/libq/tree.c's tree_match_atom.
package match

import (
	"strings"

	"cros.local/portage/internal/standard/dependency"
	"cros.local/portage/internal/tree"
)

// Flags selects which post-traversal filters Atom applies. The zero value
// enumerates every structural match with no sort, dedup, or category
// restriction.
type Flags uint32

const (
	// Latest drops all but the newest-version match for each (CAT, PN).
	Latest Flags = 1 << iota
	// First returns at most one match; implies Latest's sort requirement.
	First
	// Virtual includes packages in category "virtual". Default: included.
	Virtual
	// Acct includes packages in "acct-*" categories. Default: included.
	Acct
	// Sort requests sorted iteration from the tree (categories
	// lexicographic, packages by PN/version/PF); implied by Latest and First.
	Sort
)

// Default mirrors the original's TREE_MATCH_DEFAULT: virtuals and acct-*
// packages are included unless the caller explicitly omits those bits.
const Default = Virtual | Acct

// Atom enumerates the packages of t satisfying query, applying compareFlags
// to each structural/version comparison (NOREV/NOSLOT/NOSUBSLOT/NOREPO) and
// flags to the post-traversal filtering described in spec.md §4.4.
//
// The category filter runs first, then First (truncate to one element),
// then Latest's dedup pass — in that order, per the original's
// tree_match_atom rather than a literal reading of spec.md's prose, which
// lists Latest before First; the original's ordering also explains why
// First working on an already-truncated single-element array makes Latest
// a no-op whenever both are set.
func Atom(t *tree.Tree, query *dependency.Atom, flags Flags, compareFlags dependency.CompareFlags) ([]*tree.Package, error) {
	sorted := flags&(Sort|Latest|First) != 0

	var matches []*tree.Package
	err := t.ForEachPackage(query, compareFlags, sorted, func(p *tree.Package) error {
		matches = append(matches, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	matches = filterCategories(matches, flags)

	if flags&First != 0 && len(matches) > 1 {
		matches = matches[:1]
	}

	if flags&Latest != 0 {
		matches = dedupLatest(matches)
	}

	return matches, nil
}

// filterCategories removes virtual/acct-* entries the caller excluded by
// omitting the corresponding bit, by reverse iteration and delete-by-index
// so the traversal itself stays unparameterised, per spec.md §4.4.
func filterCategories(matches []*tree.Package, flags Flags) []*tree.Package {
	for i := len(matches) - 1; i >= 0; i-- {
		cat := matches[i].Category().Name()
		if flags&Virtual == 0 && cat == "virtual" {
			matches = append(matches[:i], matches[i+1:]...)
			continue
		}
		if flags&Acct == 0 && strings.HasPrefix(cat, "acct-") {
			matches = append(matches[:i], matches[i+1:]...)
		}
	}
	return matches
}

// dedupLatest keeps only the first (newest, by sortPackages's
// newer-sorts-first ordering) entry of each contiguous CAT/PN run, dropping
// every later duplicate, per spec.md §4.4.
func dedupLatest(matches []*tree.Package) []*tree.Package {
	if len(matches) < 2 {
		return matches
	}
	out := matches[:0:0]
	for i, p := range matches {
		if i > 0 {
			prev := matches[i-1]
			if prev.Category().Name() == p.Category().Name() && prev.PN() == p.PN() {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}
