// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"fmt"
	"strings"
	"sync"

	"cros.local/portage/internal/standard/dependency"
	"cros.local/portage/internal/standard/ebuild"
	"cros.local/portage/internal/standard/version"
)

// pkgListing is what a backend's listPackages/listPackagesByPN returns for
// one on-disk package entry, before a Package wrapper exists for it.
type pkgListing struct {
	pf      string // full package name, e.g. "gcc-12.3.1_p1-r1"
	path    string // absolute path to the ebuild/xpak/tbz2/gpkg file or VDB directory
	buildID int    // 0 unless this is a multi-instance binpkg

	// meta is set only by the PACKAGES backend, which parses its whole
	// index eagerly; all other backends leave it nil and fill lazily.
	meta ebuild.Metadata
}

// Package is one package entry: a short name, an in-tree path, and (once
// materialised) a parsed atom and a metadata map. Metadata is fetched from
// disk on first access and cached for the tree's lifetime.
type Package struct {
	category *Category
	pf       string
	path     string
	buildID  int

	pn  string
	ver *version.Version

	mu           sync.Mutex
	atom         *dependency.Atom
	atomFull     bool
	meta         ebuild.Metadata
	metaComplete bool
	cacheInvalid bool
	binpkgIsGpkg bool
}

func newPackage(c *Category, l pkgListing) *Package {
	pn, ver := splitPF(l.pf)
	p := &Package{category: c, pf: l.pf, path: l.path, buildID: l.buildID, pn: pn, ver: ver}
	if l.meta != nil {
		p.meta = l.meta
		p.metaComplete = true
	}
	return p
}

func splitPF(pf string) (pn string, ver *version.Version) {
	prefix, v, err := version.ExtractSuffix(pf)
	if err != nil {
		return pf, nil
	}
	return strings.TrimSuffix(prefix, "-"), v
}

func (p *Package) Category() *Category       { return p.category }
func (p *Package) Tree() *Tree                { return p.category.tree }
func (p *Package) PF() string                 { return p.pf }
func (p *Package) PN() string                 { return p.pn }
func (p *Package) Path() string               { return p.path }
func (p *Package) BuildID() int               { return p.buildID }
func (p *Package) Version() *version.Version  { return p.ver }

// Atom returns the cheap atom derived purely from the package's name: no
// metadata fetch, no SLOT, no REPO. It is always available without disk
// I/O beyond the listing that produced this Package.
func (p *Package) Atom() (*dependency.Atom, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.atom != nil {
		return p.atom, nil
	}
	s := fmt.Sprintf("%s/%s", p.category.name, p.pf)
	a, err := dependency.ParseAtom(s)
	if err != nil {
		return nil, fmt.Errorf("parsing package name %s: %w", s, err)
	}
	p.atom = a
	return a, nil
}

// FullAtom additionally materialises SLOT and REPO, which requires a
// metadata fetch; it is therefore separated from the cheap Atom.
func (p *Package) FullAtom() (*dependency.Atom, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.atomFull {
		return p.atom, nil
	}
	if err := p.ensureMetaLocked(); err != nil {
		return nil, err
	}

	slot := p.meta["SLOT"]
	repo := p.meta["repository"]
	if repo == "" {
		repo = p.category.tree.repoName
	}

	s := fmt.Sprintf("%s/%s", p.category.name, p.pf)
	if slot != "" {
		s += ":" + slot
	}
	if repo != "" {
		s += "::" + repo
	}
	a, err := dependency.ParseAtom(s)
	if err != nil {
		return nil, fmt.Errorf("parsing full package name %s: %w", s, err)
	}
	p.atom = a
	p.atomFull = true
	return a, nil
}

// Metadata returns the value of key, fetching and caching the full metadata
// map on first call. ok is false if key was never set for this package.
func (p *Package) Metadata(key string) (value string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureMetaLocked(); err != nil {
		p.category.tree.warnf("WARNING: %s/%s: %v\n", p.category.name, p.pf, err)
		return "", false
	}
	v, ok := p.meta[key]
	return v, ok
}

// AllMetadata returns the full metadata map, fetching it on first call.
func (p *Package) AllMetadata() (ebuild.Metadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensureMetaLocked(); err != nil {
		return nil, err
	}
	return p.meta, nil
}

func (p *Package) ensureMetaLocked() error {
	if p.metaComplete {
		return nil
	}
	meta, err := p.category.tree.fillMetadata(p)
	if err != nil {
		return err
	}
	p.meta = meta
	p.metaComplete = true
	return nil
}
