// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"cros.local/portage/internal/gpkg"
	"cros.local/portage/internal/standard/ebuild"
	"cros.local/portage/internal/xpak"
)

// multiInstanceName matches "PF-BUILDID.ext" inside a PN subdirectory, the
// binpkg-multi-instance FEATURE layout that disambiguates several builds of
// the same CPV by an incrementing integer, per spec.md's BUILD_ID field.
var multiInstanceName = regexp.MustCompile(`^(.+)-(\d+)\.(tbz2|xpak|gpkg\.tar)$`)

// listBinPkgPackages lists CAT/ for single-instance *.tbz2/*.gpkg.tar files
// and, for each subdirectory (the legacy/multi-instance PN layout), recurses
// one level picking up *.xpak and *.gpkg.tar entries, per spec.md §4.3's
// BINPKGS tree-walk. pn, when non-empty, restricts the recursion to that one
// subdirectory and the single-instance files to those whose PN equals pn.
func (t *Tree) listBinPkgPackages(cat, pn string) ([]pkgListing, error) {
	catDir := filepath.Join(t.dir, cat)
	entries, err := os.ReadDir(catDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []pkgListing
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			if pn != "" {
				// Single-instance files carry no PN subdirectory; match on
				// the PN part of their file name instead.
				pf := strings.TrimSuffix(strings.TrimSuffix(name, ".tbz2"), ".gpkg.tar")
				if lpn, _ := splitPF(pf); lpn != pn {
					continue
				}
			}
			switch {
			case strings.HasSuffix(name, ".tbz2"):
				out = append(out, pkgListing{pf: strings.TrimSuffix(name, ".tbz2"), path: filepath.Join(catDir, name)})
			case strings.HasSuffix(name, ".gpkg.tar"):
				out = append(out, pkgListing{pf: strings.TrimSuffix(name, ".gpkg.tar"), path: filepath.Join(catDir, name)})
			}
			continue
		}
		if pn != "" && name != pn {
			continue
		}
		listings, err := t.listBinPkgPN(catDir, name)
		if err != nil {
			return nil, err
		}
		out = append(out, listings...)
	}
	return out, nil
}

func (t *Tree) listBinPkgPN(catDir, pn string) ([]pkgListing, error) {
	pnDir := filepath.Join(catDir, pn)
	entries, err := os.ReadDir(pnDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []pkgListing
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(pnDir, name)
		if m := multiInstanceName.FindStringSubmatch(name); m != nil {
			buildID, _ := strconv.Atoi(m[2])
			out = append(out, pkgListing{pf: m[1], path: path, buildID: buildID})
			continue
		}
		if strings.HasSuffix(name, ".xpak") {
			out = append(out, pkgListing{pf: strings.TrimSuffix(name, ".xpak"), path: path})
		}
	}
	return out, nil
}

// fillBinPkgMetadata extracts the trailing xpak index (legacy tbz2) or the
// nested metadata.tar (gpkg) once, populating every key it finds; MD5/SHA1/
// SIZE are computed from the binary file itself when the container did not
// already carry them, per spec.md §4.3.
func (t *Tree) fillBinPkgMetadata(p *Package) (ebuild.Metadata, error) {
	meta := make(ebuild.Metadata)

	if strings.HasSuffix(p.path, ".gpkg.tar") {
		p.binpkgIsGpkg = true
		raw, err := gpkg.ReadMetadata(p.path)
		if err != nil {
			return nil, err
		}
		for k, v := range raw {
			if ebuild.RecognizedKeys[k] {
				meta[k] = strings.TrimSpace(string(v))
			}
		}
	} else {
		raw, err := xpak.Read(p.path)
		if err != nil {
			return nil, fmt.Errorf("reading xpak index: %w", err)
		}
		for k, v := range raw {
			if ebuild.RecognizedKeys[k] {
				meta[k] = strings.TrimSpace(string(v))
			}
		}
	}

	if p.buildID != 0 {
		meta["BUILD_ID"] = strconv.Itoa(p.buildID)
	}
	if meta["repository"] == "" && t.repoName != "" {
		meta["repository"] = t.repoName
	}

	if err := fillBinaryDigests(p.path, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// fillBinaryDigests computes MD5/SHA1/SIZE from the package file itself
// when the container's stored metadata did not already supply them. As with
// the md5-cache validator, this is the default implementation of a hashing
// collaborator the core specifies only by interface (spec.md §1).
func fillBinaryDigests(path string, meta ebuild.Metadata) error {
	if meta["MD5"] != "" && meta["SHA1"] != "" && meta["SIZE"] != "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	md5h, sha1h := md5.New(), sha1.New()
	n, err := io.Copy(io.MultiWriter(md5h, sha1h), f)
	if err != nil {
		return err
	}

	if meta["MD5"] == "" {
		meta["MD5"] = hex.EncodeToString(md5h.Sum(nil))
	}
	if meta["SHA1"] == "" {
		meta["SHA1"] = hex.EncodeToString(sha1h.Sum(nil))
	}
	if meta["SIZE"] == "" {
		meta["SIZE"] = strconv.FormatInt(n, 10)
	}
	return nil
}
