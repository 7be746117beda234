// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree_test

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"cros.local/portage/internal/standard/dependency"
	"cros.local/portage/internal/tree"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEbuildTree_EbuildFallback(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "profiles", "repo_name"), "myrepo\n")
	writeFile(t, filepath.Join(root, "sys-devel", "gcc", "gcc-12.3.1-r1.ebuild"),
		"SLOT=\"12\"\nKEYWORDS=\"amd64 ~arm64\"\nIUSE=\"+cxx fortran\"\nDEPEND=\">=sys-libs/glibc-2.37\"\n")

	tr, err := tree.Open(root, "", tree.KindEbuild, "", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	if got, want := tr.RepoName(), "myrepo"; got != want {
		t.Errorf("RepoName() = %q; want %q", got, want)
	}

	var pns []string
	query, err := dependency.ParseAtom("sys-devel/gcc")
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.ForEachPackage(query, 0, true, func(p *tree.Package) error {
		pns = append(pns, p.PN())
		slot, ok := p.Metadata("SLOT")
		if !ok || slot != "12" {
			t.Errorf("Metadata(SLOT) = %q, %v; want \"12\", true", slot, ok)
		}
		return nil
	}); err != nil {
		t.Fatalf("ForEachPackage: %v", err)
	}
	if got, want := pns, []string{"gcc"}; len(got) != len(want) || got[0] != want[0] {
		t.Errorf("visited PNs = %v; want %v", got, want)
	}
}

func TestEbuildTree_MD5Cache(t *testing.T) {
	root := t.TempDir()
	ebuildPath := filepath.Join(root, "sys-devel", "gcc", "gcc-12.3.1-r1.ebuild")
	writeFile(t, ebuildPath, "SLOT=\"12\"\n")
	sum := md5.Sum([]byte("SLOT=\"12\"\n"))

	writeFile(t, filepath.Join(root, "metadata", "md5-cache", "sys-devel", "gcc-12.3.1-r1"),
		"SLOT=12\nDEPEND=sys-libs/glibc\n_md5_="+hex.EncodeToString(sum[:])+"\n")

	tr, err := tree.Open(root, "", tree.KindEbuild, "gentoo", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	c, err := tr.Category("sys-devel")
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	var found *tree.Package
	if err := tr.ForEachPackage(nil, 0, false, func(p *tree.Package) error {
		if p.Category() == c {
			found = p
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("package not found")
	}
	if v, ok := found.Metadata("DEPEND"); !ok || v != "sys-libs/glibc" {
		t.Errorf("Metadata(DEPEND) = %q, %v; want trusted cache value", v, ok)
	}
}

func TestVDBTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sys-devel", "gcc-12.3.1-r1", "SLOT"), "12\n")
	writeFile(t, filepath.Join(root, "sys-devel", "gcc-12.3.1-r1", "CONTENTS"), "dir /usr/bin\nobj /usr/bin/gcc abc123 1700000000\n")
	writeFile(t, filepath.Join(root, "virtual", "pkgconfig-2", "SLOT"), "0\n")

	tr, err := tree.Open(root, "", tree.KindVDB, "", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	var pfs []string
	if err := tr.ForEachPackage(nil, 0, true, func(p *tree.Package) error {
		pfs = append(pfs, p.Category().Name()+"/"+p.PF())
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	sort.Strings(pfs)
	want := []string{"sys-devel/gcc-12.3.1-r1", "virtual/pkgconfig-2"}
	if len(pfs) != len(want) {
		t.Fatalf("got %v; want %v", pfs, want)
	}
	for i := range want {
		if pfs[i] != want[i] {
			t.Errorf("pfs[%d] = %q; want %q", i, pfs[i], want[i])
		}
	}
}

func TestPackagesTree(t *testing.T) {
	root := t.TempDir()
	idx := filepath.Join(root, "Packages")
	writeFile(t, idx, "VERSION: 1\nPACKAGES: 1\n\n"+
		"CPV: sys-devel/gcc-12.3.1-r1\n"+
		"SLOT: 12\n"+
		"PATH: sys-devel/gcc/gcc-12.3.1-r1.tbz2\n"+
		"BUILD_ID: 2\n"+
		"MD5: deadbeef\n\n")

	tr, err := tree.Open(root, "Packages", tree.KindPackages, "gentoo", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	var found *tree.Package
	if err := tr.ForEachPackage(nil, 0, true, func(p *tree.Package) error {
		found = p
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if found == nil {
		t.Fatal("no package found")
	}
	if got, want := found.BuildID(), 2; got != want {
		t.Errorf("BuildID() = %d; want %d", got, want)
	}
	if v, ok := found.Metadata("SLOT"); !ok || v != "12" {
		t.Errorf("Metadata(SLOT) = %q, %v", v, ok)
	}
}

func TestNegativeQueryDoesNotTouchDiskAfterSort(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sys-devel", "gcc", "gcc-12.3.1.ebuild"), "SLOT=\"12\"\n")

	tr, err := tree.Open(root, "", tree.KindEbuild, "gentoo", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	if err := tr.ForEachPackage(nil, 0, true, func(*tree.Package) error { return nil }); err != nil {
		t.Fatal(err)
	}

	// Remove the on-disk tree entirely; a subsequent negative query must be
	// answerable purely from the now-complete cache, per spec.md §8's cache
	// consistency property.
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Category("dev-nonexistent"); err == nil {
		t.Error("Category(dev-nonexistent) = nil error; want fs.ErrNotExist-wrapping error")
	}
}

func TestPackageMetadataIsIdempotent(t *testing.T) {
	root := t.TempDir()
	ebuildPath := filepath.Join(root, "sys-devel", "gcc", "gcc-12.3.1.ebuild")
	writeFile(t, ebuildPath, "SLOT=\"12\"\nIUSE=\"+cxx\"\n")

	tr, err := tree.Open(root, "", tree.KindEbuild, "gentoo", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	c, err := tr.Category("sys-devel")
	if err != nil {
		t.Fatalf("Category: %v", err)
	}
	var found *tree.Package
	if err := tr.ForEachPackage(nil, 0, false, func(p *tree.Package) error {
		found = p
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if found == nil || found.Category() != c {
		t.Fatal("package not found")
	}

	m1, err := found.AllMetadata()
	if err != nil {
		t.Fatal(err)
	}

	// Remove the ebuild: a second metadata fetch must not need to touch
	// disk again, since the first call already latched metaComplete.
	if err := os.Remove(ebuildPath); err != nil {
		t.Fatal(err)
	}

	m2, err := found.AllMetadata()
	if err != nil {
		t.Fatalf("AllMetadata after removal: %v", err)
	}
	if m1["IUSE"] != m2["IUSE"] || m1["SLOT"] != m2["SLOT"] {
		t.Errorf("metadata changed across calls: %v vs %v", m1, m2)
	}
}
