// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"sort"
	"sync"

	"cros.local/portage/internal/standard/dependency"
)

// Category is a lazily-populated package list under one category name.
type Category struct {
	tree *Tree
	name string

	mu           sync.Mutex
	packages     map[string]*Package // keyed by PF
	packageNames []string
	pkgsComplete bool
}

func newCategory(t *Tree, name string) *Category {
	return &Category{tree: t, name: name, packages: make(map[string]*Package)}
}

func (c *Category) Name() string { return c.name }
func (c *Category) Tree() *Tree  { return c.tree }

// ensurePackagesLocked materialises the full package listing for this
// category (pkgs_complete). Called with c.mu held.
func (c *Category) ensurePackagesLocked() error {
	if c.pkgsComplete {
		return nil
	}
	listings, err := c.tree.listPackages(c)
	if err != nil {
		return err
	}
	for _, l := range listings {
		c.addListingLocked(l)
	}
	c.pkgsComplete = true
	return nil
}

func (c *Category) addListingLocked(l pkgListing) *Package {
	if p, ok := c.packages[l.pf]; ok {
		return p
	}
	p := newPackage(c, l)
	c.packages[l.pf] = p
	c.packageNames = append(c.packageNames, l.pf)
	return p
}

// forEachPackage visits the packages of this category that match query
// (nil matches everything), applying flags during atom comparison.
func (c *Category) forEachPackage(query *dependency.Atom, flags dependency.CompareFlags, sorted bool, cb func(*Package) error) error {
	pkgs, err := c.resolvePackages(query, sorted)
	if err != nil {
		return err
	}

	for _, p := range pkgs {
		atom, err := p.Atom()
		if err != nil {
			c.tree.warnf("WARNING: skipping %s/%s: %v\n", c.name, p.pf, err)
			continue
		}
		if query != nil && !dependency.Match(atom, query, flags) {
			continue
		}
		if err := cb(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Category) resolvePackages(query *dependency.Atom, sorted bool) ([]*Package, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if query != nil && query.PN() != "" {
		var pkgs []*Package
		if c.pkgsComplete {
			// Already fully materialised (PACKAGES backend, or a prior
			// unfiltered traversal of this category): filter in memory
			// rather than re-touching disk.
			for _, name := range c.packageNames {
				if p := c.packages[name]; p.pn == query.PN() {
					pkgs = append(pkgs, p)
				}
			}
		} else {
			listings, err := c.tree.listPackagesByPN(c, query.PN())
			if err != nil {
				return nil, err
			}
			for _, l := range listings {
				pkgs = append(pkgs, c.addListingLocked(l))
			}
		}
		if sorted {
			sortPackages(pkgs)
		}
		return pkgs, nil
	}

	if err := c.ensurePackagesLocked(); err != nil {
		return nil, err
	}
	pkgs := make([]*Package, len(c.packageNames))
	for i, name := range c.packageNames {
		pkgs[i] = c.packages[name]
	}
	if sorted {
		sortPackages(pkgs)
	}
	return pkgs, nil
}

// sortPackages orders by PN, ties broken by atom comparison (newer
// versions first), ties on version broken by PF, per spec.md §4.3.
func sortPackages(pkgs []*Package) {
	sort.Slice(pkgs, func(i, j int) bool {
		a, b := pkgs[i], pkgs[j]
		if a.pn != b.pn {
			return a.pn < b.pn
		}
		if a.ver != nil && b.ver != nil {
			if cmp := a.ver.Compare(b.ver); cmp != 0 {
				return cmp > 0
			}
		}
		return a.pf < b.pf
	})
}
