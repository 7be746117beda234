// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command qdepends prints the dependency string of packages matching an
// atom, optionally pretty-printing it and resolving its leaves against a
// tree.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"cros.local/portage/internal/cliutil"
	"cros.local/portage/internal/match"
	"cros.local/portage/internal/standard/dependency"
	"cros.local/portage/internal/tree"
)

var flagRoot = &cli.StringFlag{
	Name:     "root",
	Usage:    "root directory of the tree to search",
	Required: true,
}

var flagInstalled = &cli.BoolFlag{
	Name:    "installed",
	Aliases: []string{"i"},
	Usage:   "search installed packages using the VDB (default)",
}

var flagTree = &cli.BoolFlag{
	Name:    "tree",
	Aliases: []string{"t"},
	Usage:   "search available ebuilds in the tree",
}

var flagDepend = &cli.BoolFlag{Name: "depend", Aliases: []string{"d"}, Usage: "show DEPEND info"}
var flagRDepend = &cli.BoolFlag{Name: "rdepend", Aliases: []string{"r"}, Usage: "show RDEPEND info"}
var flagPDepend = &cli.BoolFlag{Name: "pdepend", Aliases: []string{"p"}, Usage: "show PDEPEND info"}
var flagBDepend = &cli.BoolFlag{Name: "bdepend", Aliases: []string{"b"}, Usage: "show BDEPEND info"}
var flagIDepend = &cli.BoolFlag{Name: "idepend", Aliases: []string{"I"}, Usage: "show IDEPEND info"}

var flagPretty = &cli.BoolFlag{
	Name:    "pretty",
	Aliases: []string{"S"},
	Usage:   "pretty format the dependency string",
}

var flagResolve = &cli.BoolFlag{
	Name:    "resolve",
	Aliases: []string{"R"},
	Usage:   "resolve found dependency atoms to package versions in the same tree",
}

var flagUse = &cli.StringFlag{
	Name:  "use",
	Usage: "comma-separated USE flags to apply to conditional deps (unlisted flags are treated as disabled)",
}

var app = &cli.App{
	Name:  "qdepends",
	Usage: "print dependency info for packages matching an atom",
	Flags: []cli.Flag{
		flagRoot, flagInstalled, flagTree,
		flagDepend, flagRDepend, flagPDepend, flagBDepend, flagIDepend,
		flagPretty, flagResolve, flagUse,
	},
	Action: func(c *cli.Context) error {
		kind := tree.KindVDB
		if c.Bool(flagTree.Name) {
			kind = tree.KindEbuild
		}

		t, err := tree.Open(c.String(flagRoot.Name), "", kind, "", os.Stderr)
		if err != nil {
			return err
		}
		defer t.Close()

		args := c.Args().Slice()
		if len(args) == 0 {
			return errors.New("no atom given")
		}
		query, err := dependency.ParseAtom(args[0])
		if err != nil {
			return fmt.Errorf("invalid atom: %w", err)
		}

		key := depKey(c)
		var active map[string]bool
		if use := c.String(flagUse.Name); use != "" {
			active = make(map[string]bool)
			for _, f := range strings.Split(use, ",") {
				active[strings.TrimSpace(f)] = true
			}
		}

		matches, err := match.Atom(t, query, match.Latest|match.Default, 0)
		if err != nil {
			return err
		}

		for _, p := range matches {
			raw, ok := p.Metadata(key)
			if !ok || raw == "" {
				continue
			}
			deps, err := dependency.Parse(raw)
			if err != nil {
				fmt.Fprintf(os.Stderr, "qdepends: %s/%s: %v\n", p.Category().Name(), p.PF(), err)
				continue
			}
			if active != nil {
				deps = dependency.Prune(deps, active)
			}

			fmt.Printf("%s/%s: %s\n", p.Category().Name(), p.PF(), key)
			if c.Bool(flagResolve.Name) {
				dependency.Resolve(deps, func(a *dependency.Atom) []any {
					hits, err := match.Atom(t, a, match.Latest|match.Default, 0)
					if err != nil {
						return nil
					}
					out := make([]any, len(hits))
					for i, h := range hits {
						out[i] = h
					}
					return out
				})
				for _, leaf := range dependency.FlattenPackages(deps) {
					fmt.Println("   ", leaf.String(), "->", formatResolved(leaf))
				}
				continue
			}
			if c.Bool(flagPretty.Name) {
				fmt.Println(dependency.Print(deps, nil))
			} else {
				for _, a := range dependency.Flatten(deps) {
					fmt.Println("   ", a.String())
				}
			}
		}
		return nil
	},
}

// formatResolved renders the packages dependency.Resolve stored on a leaf,
// as "CAT/PF" entries, or "(no match)" when the resolver found nothing.
func formatResolved(leaf *dependency.Package) string {
	hits, ok := leaf.Resolved()
	if !ok || len(hits) == 0 {
		return "(no match)"
	}
	names := make([]string, 0, len(hits))
	for _, hit := range hits {
		p, ok := hit.(*tree.Package)
		if !ok {
			continue
		}
		names = append(names, p.Category().Name()+"/"+p.PF())
	}
	if len(names) == 0 {
		return "(no match)"
	}
	return strings.Join(names, ", ")
}

func depKey(c *cli.Context) string {
	switch {
	case c.Bool(flagRDepend.Name):
		return "RDEPEND"
	case c.Bool(flagPDepend.Name):
		return "PDEPEND"
	case c.Bool(flagBDepend.Name):
		return "BDEPEND"
	case c.Bool(flagIDepend.Name):
		return "IDEPEND"
	default:
		return "DEPEND"
	}
}

func main() {
	cliutil.Exit(app.Run(os.Args))
}
