// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cros.local/portage/internal/standard/ebuild"
	"cros.local/portage/internal/standard/naming"
)

// listEbuildPackages lists CAT/PN/*.ebuild. When pn is non-empty it lists a
// single PN directory directly, short-circuiting the directory-listing step
// per spec.md §4.3's "A PN query short-circuits the directory-listing step".
func (t *Tree) listEbuildPackages(cat, pn string) ([]pkgListing, error) {
	if pn != "" {
		return t.listEbuildPN(cat, pn)
	}

	catDir := filepath.Join(t.dir, cat)
	entries, err := os.ReadDir(catDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", catDir, err)
	}

	var out []pkgListing
	for _, e := range entries {
		if !e.IsDir() || naming.CheckPackage(e.Name()) != nil {
			continue
		}
		listings, err := t.listEbuildPN(cat, e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, listings...)
	}
	return out, nil
}

func (t *Tree) listEbuildPN(cat, pn string) ([]pkgListing, error) {
	pnDir := filepath.Join(t.dir, cat, pn)
	entries, err := os.ReadDir(pnDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pnDir, err)
	}

	var out []pkgListing
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".ebuild") {
			continue
		}
		pf := strings.TrimSuffix(name, ".ebuild")
		out = append(out, pkgListing{pf: pf, path: filepath.Join(pnDir, name)})
	}
	return out, nil
}

// fillEbuildMetadata tries the md5-cache entry first, verifying its _md5_
// line against the ebuild's actual MD5; on any mismatch or missing cache
// entry it falls back to a static parse of the ebuild itself, per spec.md
// §4.3/§6. The fallback happens at most once: a failed cache lookup does
// not retry on every subsequent access (metaComplete latches after this
// call either way).
func (t *Tree) fillEbuildMetadata(p *Package) (ebuild.Metadata, error) {
	cachePath := filepath.Join(t.dir, "metadata", "md5-cache", p.category.name, p.pf)
	if meta, ok, err := t.readMD5Cache(cachePath, p.path); err != nil {
		t.warnf("WARNING: %s/%s: md5-cache: %v\n", p.category.name, p.pf, err)
	} else if ok {
		return meta, nil
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.path, err)
	}
	defer f.Close()

	meta, err := ebuild.ParseAssignments(f, p.path)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p.path, err)
	}
	p.cacheInvalid = true
	return meta, nil
}

// readMD5Cache reads and validates the md5-cache entry at cachePath against
// ebuildPath's actual MD5 digest. ok is false (with a nil error) whenever
// the cache is simply absent, which is the common case for an overlay with
// no metadata cache regenerated yet.
func (t *Tree) readMD5Cache(cachePath, ebuildPath string) (meta ebuild.Metadata, ok bool, err error) {
	data, err := os.ReadFile(cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	meta = make(ebuild.Metadata)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		meta[line[:i]] = line[i+1:]
	}

	want := meta["_md5_"]
	if want == "" {
		return nil, false, nil
	}
	got, err := md5OfFile(ebuildPath)
	if err != nil {
		return nil, false, err
	}
	if got != want {
		return nil, false, nil
	}
	delete(meta, "_md5_")
	return meta, true, nil
}

// md5OfFile is the default hash collaborator for md5-cache validation. The
// core specifies hashing only as an interface it depends on (spec.md §1
// excludes MD5/SHA/BLAKE2B primitives as first-class core functionality);
// this default uses the standard library's crypto/md5 purely to satisfy
// that interface for the common case, and stays isolated in this one
// function should a caller need to swap in an accelerated implementation.
func md5OfFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
