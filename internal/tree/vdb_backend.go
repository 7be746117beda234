// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tree

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cros.local/portage/internal/standard/ebuild"
)

// listVDBPackages lists CAT/ directly: every directory entry is a PF, with
// no PN-named intermediate level, per spec.md §4.3's VDB tree-walk.
func (t *Tree) listVDBPackages(cat string) ([]pkgListing, error) {
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
		if !e.IsDir() {
			continue
		}
		out = append(out, pkgListing{pf: e.Name(), path: filepath.Join(catDir, e.Name())})
	}
	return out, nil
}

// fillVDBMetadata reads each recognised key as its own single file under the
// package's VDB directory, per spec.md §6's "VDB key file" format: the
// entire file content is the value, whitespace-trimmed. Unset keys simply
// have no file and are left absent from the returned map.
func (t *Tree) fillVDBMetadata(p *Package) (ebuild.Metadata, error) {
	meta := make(ebuild.Metadata)
	for key := range ebuild.RecognizedKeys {
		if key == "_md5_" || key == "_eclasses_" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(p.path, key))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// CONTENTS is record-oriented (see internal/contents); every other
		// VDB key file is whitespace-trimmed in its entirety per spec.md §6.
		if key == "CONTENTS" {
			meta[key] = string(data)
		} else {
			meta[key] = strings.TrimSpace(string(data))
		}
	}
	return meta, nil
}
