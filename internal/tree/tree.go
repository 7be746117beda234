// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tree implements the uniform, cache-backed read interface over the
// four physically different on-disk package-tree layouts: an ebuild
// repository, an installed-package VDB, a multi-file binary-package
// directory, and a concatenated Packages index. See spec.md §4.3.
package tree

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"cros.local/portage/internal/repository"
	"cros.local/portage/internal/standard/dependency"
	"cros.local/portage/internal/standard/naming"
)

// Kind selects one of the four on-disk backends a Tree reads.
type Kind int

const (
	KindEbuild Kind = iota
	KindVDB
	KindBinPkgs
	KindPackages
)

func (k Kind) String() string {
	switch k {
	case KindEbuild:
		return "ebuild"
	case KindVDB:
		return "vdb"
	case KindBinPkgs:
		return "binpkgs"
	case KindPackages:
		return "packages"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Tree is a single opened package tree. It owns all Categories and, through
// them, all Packages it has discovered; callers receive borrowed references
// good for the tree's lifetime. No tree method ever mutates anything on
// disk.
type Tree struct {
	kind     Kind
	dir      string // root directory (EBUILD/VDB/BINPKGS) or index file (PACKAGES)
	repoName string
	warn     io.Writer

	mu            sync.Mutex
	categories    map[string]*Category
	categoryNames []string
	catsComplete  bool

	// PACKAGES backend state: the whole index is parsed once into
	// categories/packages above, and this flag records that.
	packagesLoaded bool
}

// Open resolves root/subPath, probes that it has the shape the requested
// Kind expects, and returns a Tree ready for traversal. If repoName is empty
// and kind is KindEbuild, the repository name is resolved from
// profiles/repo_name or layout.conf, exactly as Portage does.
//
// warn receives optional diagnostic messages (malformed packages skipped
// during traversal); it may be nil, in which case warnings are discarded.
func Open(root, subPath string, kind Kind, repoName string, warn io.Writer) (t *Tree, err error) {
	dir := filepath.Join(root, subPath)
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open tree %s: %w", dir, err)
	}

	switch kind {
	case KindPackages:
		if fi.IsDir() {
			return nil, fmt.Errorf("open tree %s: PACKAGES backend expects a file", dir)
		}
	default:
		if !fi.IsDir() {
			return nil, fmt.Errorf("open tree %s: expected a directory", dir)
		}
	}

	t = &Tree{
		kind:       kind,
		dir:        dir,
		repoName:   repoName,
		warn:       warn,
		categories: make(map[string]*Category),
	}

	if kind == KindEbuild && repoName == "" {
		name, err := repository.ResolveName(dir)
		if err != nil {
			return nil, fmt.Errorf("open tree %s: %w", dir, err)
		}
		t.repoName = name
	}
	return t, nil
}

func (t *Tree) Kind() Kind        { return t.kind }
func (t *Tree) Dir() string       { return t.dir }
func (t *Tree) RepoName() string  { return t.repoName }

func (t *Tree) warnf(format string, args ...any) {
	if t.warn != nil {
		fmt.Fprintf(t.warn, format, args...)
	}
}

// Close deep-frees all cached categories and packages. The Tree must not be
// used afterwards.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.categories = nil
	t.categoryNames = nil
	t.catsComplete = false
	return nil
}

// Category returns the named category, opening it from disk if this is the
// first reference to it. It returns an error wrapping fs.ErrNotExist if the
// category does not exist; callers performing a traversal should treat that
// as "no packages", not a hard failure, per spec.md §7.
func (t *Tree) Category(name string) (*Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.categoryLocked(name)
}

func (t *Tree) categoryLocked(name string) (*Category, error) {
	if c, ok := t.categories[name]; ok {
		return c, nil
	}
	if t.kind == KindPackages {
		if err := t.ensurePackagesFileLoadedLocked(); err != nil {
			return nil, err
		}
		if c, ok := t.categories[name]; ok {
			return c, nil
		}
		return nil, fmt.Errorf("category %q: %w", name, fs.ErrNotExist)
	}
	if t.catsComplete {
		// The full category list is already materialised (spec.md §8's
		// cache-consistency property): a name absent from it cannot exist
		// without another traversal invalidating the cache, so answer
		// without touching disk again.
		return nil, fmt.Errorf("category %q: %w", name, fs.ErrNotExist)
	}

	if err := naming.CheckCategory(name); err != nil {
		return nil, err
	}
	fi, err := os.Stat(filepath.Join(t.dir, name))
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", name, fs.ErrNotExist)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("category %q: %w", name, fs.ErrNotExist)
	}
	c := newCategory(t, name)
	t.categories[name] = c
	t.categoryNames = append(t.categoryNames, name)
	return c, nil
}

// ensureCategoriesLocked materialises the full category list (cats_complete
// in spec.md's terms). Called with t.mu held.
func (t *Tree) ensureCategoriesLocked() error {
	if t.catsComplete {
		return nil
	}
	if t.kind == KindPackages {
		if err := t.ensurePackagesFileLoadedLocked(); err != nil {
			return err
		}
		t.catsComplete = true
		return nil
	}

	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", t.dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if naming.CheckCategory(name) != nil {
			continue
		}
		if _, ok := t.categories[name]; !ok {
			t.categories[name] = newCategory(t, name)
			t.categoryNames = append(t.categoryNames, name)
		}
	}
	t.catsComplete = true
	return nil
}

// ForEachPackage is the single traversal entry point (spec.md's
// foreach_pkg). query, if non-nil, both short-circuits the category/PN
// listing (when query.Category()/query.PN() are set) and is compared
// against each candidate package's atom with flags; only matches are passed
// to cb. A nil query visits every package.
//
// sorted sorts the visited categories and each visited category's packages
// before cb is called: categories lexicographically, packages by PN with
// ties broken by atom comparison (newer first) and then by PF. sorted does
// not widen what is read from disk: a query naming a category lists only
// that category, and a query naming a PN lists only that PN's packages, so
// in those cases the category list or the package list is not fully
// materialised. A nil query (or one with neither set) materialises both
// lists whether or not sorted is set.
func (t *Tree) ForEachPackage(query *dependency.Atom, flags dependency.CompareFlags, sorted bool, cb func(*Package) error) error {
	cats, err := t.resolveCategories(query, sorted)
	if err != nil {
		return err
	}

	for _, c := range cats {
		if err := c.forEachPackage(query, flags, sorted, cb); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) resolveCategories(query *dependency.Atom, sorted bool) ([]*Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if query != nil && query.Category() != "" {
		c, err := t.categoryLocked(query.Category())
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []*Category{c}, nil
	}

	if err := t.ensureCategoriesLocked(); err != nil {
		return nil, err
	}
	cats := make([]*Category, len(t.categoryNames))
	for i, name := range t.categoryNames {
		cats[i] = t.categories[name]
	}
	if sorted {
		sort.Slice(cats, func(i, j int) bool { return cats[i].name < cats[j].name })
	}
	return cats, nil
}
