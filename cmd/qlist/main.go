// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command qlist lists installed (or binary) packages and, optionally, the
// filesystem entries each one owns.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"cros.local/portage/internal/cliutil"
	"cros.local/portage/internal/contents"
	"cros.local/portage/internal/gpkg"
	"cros.local/portage/internal/match"
	"cros.local/portage/internal/standard/dependency"
	"cros.local/portage/internal/tree"
)

var flagRoot = &cli.StringFlag{
	Name:     "root",
	Usage:    "root directory of the tree to list (VDB directory or binpkgs directory)",
	Required: true,
}

var flagBinpkgs = &cli.BoolFlag{
	Name:  "binpkgs",
	Usage: "list a binary-package directory instead of the installed-package VDB",
}

var flagSlots = &cli.BoolFlag{
	Name:    "slots",
	Aliases: []string{"S"},
	Usage:   "display installed packages with slots",
}

var flagRepo = &cli.BoolFlag{
	Name:    "repo",
	Aliases: []string{"R"},
	Usage:   "display installed packages with repository",
}

var flagExact = &cli.BoolFlag{
	Name:    "exact",
	Aliases: []string{"e"},
	Usage:   "list every matching version, not only the newest per CAT/PN (atom matching itself is unchanged)",
}

var flagDir = &cli.BoolFlag{Name: "dir", Aliases: []string{"d"}, Usage: "only show directories"}
var flagObj = &cli.BoolFlag{Name: "obj", Aliases: []string{"o"}, Usage: "only show objects"}
var flagSym = &cli.BoolFlag{Name: "sym", Aliases: []string{"s"}, Usage: "only show symlinks"}

var flagFormat = &cli.StringFlag{
	Name:  "format",
	Usage: "print matched atom using given format string instead of listing contents",
}

var app = &cli.App{
	Name:  "qlist",
	Usage: "list files owned by packages matching an atom",
	Flags: []cli.Flag{flagRoot, flagBinpkgs, flagSlots, flagRepo, flagExact, flagDir, flagObj, flagSym, flagFormat},
	Action: func(c *cli.Context) error {
		kind := tree.KindVDB
		if c.Bool(flagBinpkgs.Name) {
			kind = tree.KindBinPkgs
		}

		t, err := tree.Open(c.String(flagRoot.Name), "", kind, "", os.Stderr)
		if err != nil {
			return err
		}
		defer t.Close()

		var query *dependency.Atom
		if args := c.Args().Slice(); len(args) > 0 {
			query, err = dependency.ParseAtom(args[0])
			if err != nil {
				return fmt.Errorf("invalid atom: %w", err)
			}
		}

		flags := match.Latest | match.Default
		if c.Bool(flagExact.Name) {
			flags = match.Default
		}
		matches, err := match.Atom(t, query, flags, 0)
		if err != nil {
			return err
		}

		format := c.String(flagFormat.Name)
		wantDir, wantObj, wantSym := c.Bool(flagDir.Name), c.Bool(flagObj.Name), c.Bool(flagSym.Name)
		anyKindFlag := wantDir || wantObj || wantSym

		for _, p := range matches {
			if format != "" {
				atom, err := p.FullAtom()
				if err != nil {
					return err
				}
				out, err := atom.Format(format)
				if err != nil {
					return err
				}
				fmt.Println(out)
				continue
			}

			label := p.Category().Name() + "/" + p.PF()
			if c.Bool(flagSlots.Name) {
				if slot, ok := p.Metadata("SLOT"); ok {
					label += ":" + slot
				}
			}
			if c.Bool(flagRepo.Name) {
				if repo, ok := p.Metadata("repository"); ok {
					label += "::" + repo
				}
			}

			if raw, ok := p.Metadata("CONTENTS"); ok {
				entries, err := contents.Parse(strings.NewReader(raw))
				if err != nil {
					fmt.Fprintf(os.Stderr, "qlist: %s: %v\n", label, err)
					continue
				}
				for _, e := range entries {
					if anyKindFlag {
						switch e.Kind {
						case contents.KindDir:
							if !wantDir {
								continue
							}
						case contents.KindObj:
							if !wantObj {
								continue
							}
						case contents.KindSym:
							if !wantSym {
								continue
							}
						}
					}
					fmt.Printf("%s: %s\n", label, e.Path)
				}
				continue
			}

			// No CONTENTS key file (a gpkg built without one): fall back to
			// listing the image.tar payload directly. Only files, hard links
			// and symlinks are represented at this level: directories never
			// are, so with -d nothing is listed here, and -o/-s do not
			// filter this listing.
			if strings.HasSuffix(p.Path(), ".gpkg.tar") && !wantDir {
				items, err := gpkg.ReadImageFileList(p.Path())
				if err != nil {
					fmt.Fprintf(os.Stderr, "qlist: %s: %v\n", label, err)
					continue
				}
				for _, it := range items {
					fmt.Printf("%s: /%s\n", label, it.Path)
				}
			}
		}
		return nil
	},
}

func main() {
	cliutil.Exit(app.Run(os.Args))
}
