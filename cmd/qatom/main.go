// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Command qatom explodes package atoms into their component fields, compares
// pairs of atoms, or reprints them in canonical form.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"cros.local/portage/internal/cliutil"
	"cros.local/portage/internal/standard/dependency"
)

const defaultFormat = "%{CATEGORY} %{PN} %{PV} %[PR] %[SLOT] %[pfx] %[sfx]"

var flagFormat = &cli.StringFlag{
	Name:  "format",
	Usage: "custom output format (default: " + defaultFormat + ")",
	Value: defaultFormat,
}

var flagCompare = &cli.BoolFlag{
	Name:    "compare",
	Aliases: []string{"c"},
	Usage:   "compare pairs of atoms",
}

var flagPrint = &cli.BoolFlag{
	Name:    "print",
	Aliases: []string{"p"},
	Usage:   "print reconstructed atom",
}

var app = &cli.App{
	Name:  "qatom",
	Usage: "split an atom into its component values",
	Flags: []cli.Flag{flagFormat, flagCompare, flagPrint},
	Action: func(c *cli.Context) error {
		args := c.Args().Slice()
		if len(args) == 0 {
			return errors.New("no atoms given")
		}

		if c.Bool(flagCompare.Name) {
			if len(args)%2 != 0 {
				return errors.New("compare needs an even number of arguments")
			}
			for i := 0; i < len(args); i += 2 {
				if err := compareAtoms(args[i], args[i+1]); err != nil {
					return err
				}
			}
			return nil
		}

		format := c.String(flagFormat.Name)
		printMode := c.Bool(flagPrint.Name)
		for _, s := range args {
			a, err := dependency.ParseAtom(s)
			if err != nil {
				fmt.Fprintf(os.Stderr, "qatom: invalid atom: %s\n", s)
				continue
			}
			if printMode {
				fmt.Println(a.String())
				continue
			}
			out, err := a.Format(format)
			if err != nil {
				return err
			}
			fmt.Println(out)
		}
		return nil
	},
}

func compareAtoms(s1, s2 string) error {
	a1, err := dependency.ParseAtom(s1)
	if err != nil {
		return fmt.Errorf("invalid atom: %s", s1)
	}
	a2, err := dependency.ParseAtom(s2)
	if err != nil {
		return fmt.Errorf("invalid atom: %s", s2)
	}

	op := "="
	if a1.Version() != nil && a2.Version() != nil {
		switch {
		case a1.Version().Compare(a2.Version()) < 0:
			op = "<"
		case a1.Version().Compare(a2.Version()) > 0:
			op = ">"
		}
	}
	fmt.Printf("%s %s %s\n", a1.String(), op, a2.String())
	return nil
}

func main() {
	cliutil.Exit(app.Run(os.Args))
}
