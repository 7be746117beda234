// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ebuild

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// RecognizedKeys is the closed enumeration of metadata keys the parser
// harvests from an ebuild or md5-cache entry.
var RecognizedKeys = map[string]bool{
	"DEPEND":         true,
	"RDEPEND":        true,
	"PDEPEND":        true,
	"BDEPEND":        true,
	"IDEPEND":        true,
	"SLOT":           true,
	"SRC_URI":        true,
	"RESTRICT":       true,
	"LICENSE":        true,
	"DESCRIPTION":    true,
	"HOMEPAGE":       true,
	"KEYWORDS":       true,
	"IUSE":           true,
	"EAPI":           true,
	"PROPERTIES":     true,
	"REQUIRED_USE":   true,
	"DEFINED_PHASES": true,
	"INHERITED":      true,
	"PROVIDE":        true,
	// Installed/binary-package-only keys (VDB key files, binpkg xpak/gpkg
	// index, Packages index); never found inside an ebuild's own source, so
	// ParseAssignments never harvests them, but they share the same closed
	// Metadata map.
	"USE":            true,
	"CONTENTS":       true,
	"EPREFIX":        true,
	"PATH":           true,
	"BUILD_ID":       true,
	"repository":     true,
	"MD5":            true,
	"SHA1":           true,
	"SIZE":           true,
	"_eclasses_":     true,
	"_md5_":          true,
}

var collapseSpace = regexp.MustCompile(`[ \t]+`)

// ParseAssignments statically harvests recognised top-level KEY="value" (or
// KEY=value-no-space) assignments from an ebuild's shell source without
// executing it. It implements spec.md §6's "Ebuild file" input format:
// embedded newlines in quoted values become spaces, runs of whitespace
// collapse, and a second assignment to an already-seen key is ignored.
func ParseAssignments(r io.Reader, name string) (Metadata, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false))
	file, err := parser.Parse(r, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	meta := make(Metadata)
	env := literalEnviron{}

	for _, stmt := range file.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(call.Args) != 0 {
			// Function definitions and real commands are not bare
			// assignment statements; only the latter run top-level, and
			// the core never executes a shell, so both are skipped.
			continue
		}
		for _, assign := range call.Assigns {
			key := assign.Name.Value
			if !RecognizedKeys[key] {
				continue
			}
			if _, seen := meta[key]; seen {
				continue
			}
			if assign.Array != nil || assign.Index != nil || assign.Append || assign.Naked || assign.Value == nil {
				continue
			}

			cfg := &expand.Config{Env: env}
			value, err := expand.Literal(cfg, assign.Value)
			if err != nil {
				// A dynamic expansion (command substitution, unresolved
				// parameter) can't be harvested statically; skip the key
				// rather than fail the whole package.
				continue
			}
			value = normalizeValue(value)
			env[key] = value
			meta[key] = value
		}
	}
	return meta, nil
}

func normalizeValue(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(collapseSpace.ReplaceAllString(s, " "))
}

// literalEnviron implements expand.Environ over the KEY=value assignments
// seen so far, so a later assignment can reference an earlier one (e.g.
// SRC_URI referencing PV), matching the teacher's bashutil.Environ.
type literalEnviron map[string]string

var _ expand.Environ = literalEnviron{}

func (e literalEnviron) Get(name string) expand.Variable {
	value, ok := e[name]
	if !ok {
		return expand.Variable{}
	}
	return expand.Variable{Local: true, Kind: expand.String, Str: value}
}

func (e literalEnviron) Each(f func(name string, v expand.Variable) bool) {
	for name := range e {
		if !f(name, e.Get(name)) {
			return
		}
	}
}
