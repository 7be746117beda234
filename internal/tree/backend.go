// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"fmt"

	"cros.local/portage/internal/standard/ebuild"
)

// listPackages dispatches to the backend-specific directory listing for an
// entire category (spec.md §4.3's per-backend "Tree-walk details").
func (t *Tree) listPackages(c *Category) ([]pkgListing, error) {
	switch t.kind {
	case KindEbuild:
		return t.listEbuildPackages(c.name, "")
	case KindVDB:
		return t.listVDBPackages(c.name)
	case KindBinPkgs:
		return t.listBinPkgPackages(c.name, "")
	case KindPackages:
		// The whole index was already parsed into t.categories by
		// ensurePackagesFileLoadedLocked; forEachPackage never calls
		// listPackages for a backend whose categories are eagerly complete.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown tree kind %v", t.kind)
	}
}

// listPackagesByPN dispatches to the backend-specific PN short-circuit when
// one exists (EBUILD and multi-instance BINPKGS); other backends fall back
// to listing the whole category and filtering by PN, since their on-disk
// layout carries no PN-named subdirectory to list directly.
func (t *Tree) listPackagesByPN(c *Category, pn string) ([]pkgListing, error) {
	switch t.kind {
	case KindEbuild:
		return t.listEbuildPackages(c.name, pn)
	case KindBinPkgs:
		return t.listBinPkgPackages(c.name, pn)
	default:
		all, err := t.listPackagesFiltered(c)
		if err != nil {
			return nil, err
		}
		var out []pkgListing
		for _, l := range all {
			if lpn, _ := splitPF(l.pf); lpn == pn {
				out = append(out, l)
			}
		}
		return out, nil
	}
}

// listPackagesFiltered is listPackages for backends with no eager
// materialisation (VDB, BINPKGS); PACKAGES is always eager by the time this
// could be called, so it is not handled here.
func (t *Tree) listPackagesFiltered(c *Category) ([]pkgListing, error) {
	switch t.kind {
	case KindVDB:
		return t.listVDBPackages(c.name)
	case KindBinPkgs:
		return t.listBinPkgPackages(c.name, "")
	default:
		return t.listPackages(c)
	}
}

// fillMetadata dispatches to the backend-specific metadata fetch for one
// package, invoked on first access to any of its metadata keys.
func (t *Tree) fillMetadata(p *Package) (ebuild.Metadata, error) {
	switch t.kind {
	case KindEbuild:
		return t.fillEbuildMetadata(p)
	case KindVDB:
		return t.fillVDBMetadata(p)
	case KindBinPkgs:
		return t.fillBinPkgMetadata(p)
	case KindPackages:
		// PACKAGES packages are constructed with meta already set
		// (metaComplete=true) by newPackage; ensureMetaLocked never calls
		// through to here for this backend.
		return p.meta, nil
	default:
		return nil, fmt.Errorf("unknown tree kind %v", t.kind)
	}
}
