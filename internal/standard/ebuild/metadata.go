// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package ebuild harvests the KEY=value metadata Portage associates with an
// ebuild, either from a trusted md5-cache entry or, failing that, by
// statically reading the ebuild file itself. It never executes a shell.
package ebuild

import (
	"fmt"
	"io"
	"sort"

	"github.com/alessio/shellescape"
)

// Metadata holds the closed set of recognised KEY=value pairs read for one
// package. Unset keys are simply absent from the map.
type Metadata map[string]string

// Get returns the value of key, or "" if unset.
func (m Metadata) Get(key string) string { return m[key] }

// Dump writes the metadata as shell-quoted KEY=value lines in sorted key
// order, mirroring the teacher's makevars.Vars.Dump.
func (m Metadata) Dump(w io.Writer) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s=%s\n", shellescape.Quote(name), shellescape.Quote(m[name])); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a shallow copy of m.
func (m Metadata) Copy() Metadata {
	u := make(Metadata, len(m))
	for k, v := range m {
		u[k] = v
	}
	return u
}
