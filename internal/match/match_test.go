// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package match_test

import (
	"os"
	"path/filepath"
	"testing"

	"cros.local/portage/internal/match"
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

func openVDB(t *testing.T) *tree.Tree {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "virtual", "pkgconfig-2", "SLOT"), "0\n")
	writeFile(t, filepath.Join(root, "dev-util", "pkgconf-1.9", "SLOT"), "0\n")
	tr, err := tree.Open(root, "", tree.KindVDB, "", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestAtom_VirtualFilter(t *testing.T) {
	tr := openVDB(t)
	atom, err := dependency.ParseAtom("virtual/pkgconfig")
	if err != nil {
		t.Fatal(err)
	}

	got, err := match.Atom(tr, atom, match.Latest|match.Default, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("with VIRTUAL: got %d matches; want 1", len(got))
	}
	if got[0].Category().Name() != "virtual" {
		t.Errorf("match category = %q; want virtual", got[0].Category().Name())
	}

	got, err = match.Atom(tr, atom, match.Latest|match.Acct, 0) // omit Virtual
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("with ~VIRTUAL: got %d matches; want 0", len(got))
	}
}

func TestAtom_Latest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sys-devel", "gcc-12.3.1", "SLOT"), "12\n")
	writeFile(t, filepath.Join(root, "sys-devel", "gcc-11.4.0", "SLOT"), "11\n")
	tr, err := tree.Open(root, "", tree.KindVDB, "", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	atom, err := dependency.ParseAtom("sys-devel/gcc")
	if err != nil {
		t.Fatal(err)
	}

	got, err := match.Atom(tr, atom, match.Latest|match.Default, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches; want 1", len(got))
	}
	if got[0].PF() != "gcc-12.3.1" {
		t.Errorf("kept PF = %q; want gcc-12.3.1 (the newer one)", got[0].PF())
	}

	all, err := match.Atom(tr, atom, match.Sort|match.Default, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("without Latest: got %d matches; want 2", len(all))
	}
}

func TestAtom_First(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sys-devel", "gcc-12.3.1", "SLOT"), "12\n")
	writeFile(t, filepath.Join(root, "sys-devel", "gcc-11.4.0", "SLOT"), "11\n")
	tr, err := tree.Open(root, "", tree.KindVDB, "", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	atom, err := dependency.ParseAtom("sys-devel/gcc")
	if err != nil {
		t.Fatal(err)
	}
	got, err := match.Atom(tr, atom, match.First|match.Default, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d matches; want exactly 1", len(got))
	}
}
