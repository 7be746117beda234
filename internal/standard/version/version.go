// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package version implements Portage package-version parsing and the PMS
// §3.3 total ordering over versions: numeric main components, an optional
// trailing letter, an ordered run of _alpha/_beta/_pre/_rc/_p suffixes, and a
// -rN revision.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Version represents a version of a package.
type Version struct {
	Main     []string
	Letter   string
	Suffixes []*Suffix
	Revision string
}

func (v *Version) Copy() *Version {
	copy := *v
	for i, suffix := range copy.Suffixes {
		copy.Suffixes[i] = suffix.Copy()
	}
	return &copy
}

func (v *Version) ImplicitRevision() string {
	if v.Revision == "" {
		return "0"
	}
	return v.Revision
}

func (v *Version) DropRevision() *Version {
	copy := v.Copy()
	copy.Revision = ""
	return copy
}

func (v *Version) Major() string {
	if len(v.Main) > 0 {
		return v.Main[0]
	}

	return "0"
}

func (v *Version) String() string {
	var w strings.Builder
	for i, n := range v.Main {
		if i > 0 {
			w.WriteString(".")
		}
		w.WriteString(n)
	}
	w.WriteString(v.Letter)
	for _, s := range v.Suffixes {
		w.WriteString(string(s.Label))
		if s.Number != "" {
			w.WriteString(s.Number)
		}
	}
	if v.Revision != "" {
		w.WriteString("-r")
		w.WriteString(v.Revision)
	}
	return w.String()
}

func (v *Version) Compare(o *Version) int {
	// Compare main.
	if cmp := compareStringInt(v.Main[0], o.Main[0]); cmp != 0 {
		return cmp
	}
	for i := 1; i < len(v.Main) && i < len(o.Main); i++ {
		a := v.Main[i]
		b := o.Main[i]
		if strings.HasPrefix(a, "0") || strings.HasPrefix(b, "0") {
			a0 := strings.TrimRight(a, "0")
			b0 := strings.TrimRight(b, "0")
			if cmp := strings.Compare(a0, b0); cmp != 0 {
				return cmp
			}
		} else {
			if cmp := compareStringInt(a, b); cmp != 0 {
				return cmp
			}
		}
	}
	if len(v.Main) != len(o.Main) {
		if len(v.Main) < len(o.Main) {
			return -1
		}
		return 1
	}

	// Compare letter.
	if cmp := strings.Compare(v.Letter, o.Letter); cmp != 0 {
		return cmp
	}

	// Compare suffixes, element by element, stopping at the first point of
	// divergence (mirroring atom_compare.c's suffix loop): an exhausted list
	// is treated as having hit the implicit "no more suffixes" sentinel,
	// which sorts between _rc and _p, rather than special-casing only the
	// lengths.
	n := len(v.Suffixes)
	if len(o.Suffixes) > n {
		n = len(o.Suffixes)
	}
	for i := 0; i < n; i++ {
		var vLabel, oLabel SuffixLabel
		vReal := i < len(v.Suffixes)
		oReal := i < len(o.Suffixes)
		if vReal {
			vLabel = v.Suffixes[i].Label
		} else {
			vLabel = suffixNorm
		}
		if oReal {
			oLabel = o.Suffixes[i].Label
		} else {
			oLabel = suffixNorm
		}
		if cmp := vLabel.Compare(oLabel); cmp != 0 {
			return cmp
		}
		if vReal && oReal {
			if cmp := compareStringInt(v.Suffixes[i].Number, o.Suffixes[i].Number); cmp != 0 {
				return cmp
			}
		}
	}

	// Compare revision.
	return compareStringInt(v.Revision, o.Revision)
}

// Equal reports whether v and o compare equal under PMS §3.3, i.e. whether
// they denote the same released version once revision, letter and suffix
// ordering are taken into account.
func (v *Version) Equal(o *Version) bool {
	return v.Compare(o) == 0
}

func (v *Version) HasPrefix(prefix *Version) bool {
	copy := v.Copy()

	func() {
		if prefix.Revision != "" {
			return
		}
		copy.Revision = ""

		if len(copy.Suffixes) > len(prefix.Suffixes) {
			copy.Suffixes = copy.Suffixes[:len(prefix.Suffixes)]
		}
		if len(prefix.Suffixes) > 0 {
			return
		}

		if prefix.Letter != "" {
			return
		}
		copy.Letter = ""

		if len(copy.Main) > len(prefix.Main) {
			copy.Main = copy.Main[:len(prefix.Main)]
		}
	}()

	return copy.Compare(prefix) == 0
}

type Suffix struct {
	Label  SuffixLabel
	Number string
}

func (s *Suffix) Copy() *Suffix {
	copy := *s
	return &copy
}

type SuffixLabel string

const (
	SuffixAlpha SuffixLabel = "_alpha"
	SuffixBeta  SuffixLabel = "_beta"
	SuffixPre   SuffixLabel = "_pre"
	SuffixRC    SuffixLabel = "_rc"
	SuffixP     SuffixLabel = "_p"

	// suffixNorm is not a real suffix label that can appear in a version
	// string; it stands for "no more suffixes here" when comparing two
	// suffix lists of different lengths element-by-element. It sorts
	// between _rc and _p, per PMS §3.3 / atom_compare.c's VER_NORM.
	suffixNorm SuffixLabel = "_norm"
)

func (l SuffixLabel) Compare(o SuffixLabel) int {
	lp := l.priority()
	op := o.priority()
	if lp < op {
		return -1
	}
	if lp > op {
		return 1
	}
	return 0
}

func (l SuffixLabel) priority() int {
	switch l {
	case SuffixAlpha:
		return 1
	case SuffixBeta:
		return 2
	case SuffixPre:
		return 3
	case SuffixRC:
		return 4
	case suffixNorm:
		return 5
	case SuffixP:
		return 6
	default:
		panic(fmt.Sprintf("unknown version suffix label %s", string(l)))
	}
}

func compareStringInt(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

var (
	mainRe     = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)*)$`)
	letterRe   = regexp.MustCompile(`([a-z])$`)
	suffixRe   = regexp.MustCompile(`(_(?:alpha|beta|pre|rc|p))(\d*)$`)
	revisionRe = regexp.MustCompile(`-r(\d+)$`)
)

// ExtractSuffix trims a Portage package version suffix from a string.
//
// Examples:
//
//	"net-misc/curl-7.78.0-r1" => ("net-misc/curl-", "7.78.0-r1")
//	"curl-7.78.0-r1" => ("curl-", "7.78.0-r1")
//	"7.78.0-r1" => ("", "7.78.0-r1")
func ExtractSuffix(s string) (prefix string, ver *Version, err error) {
	revision := ""
	if m := revisionRe.FindStringSubmatch(s); m != nil {
		revision = m[1]
		s = s[:len(s)-len(m[0])]
	}

	var suffixes []*Suffix
	for {
		m := suffixRe.FindStringSubmatch(s)
		if m == nil {
			break
		}

		suffixes = append([]*Suffix{{
			Label:  SuffixLabel(m[1]),
			Number: m[2],
		}}, suffixes...)
		s = s[:len(s)-len(m[0])]
	}

	var letter string
	if m := letterRe.FindStringSubmatch(s); m != nil {
		letter = m[1]
		s = s[:len(s)-len(m[0])]
	}

	m := mainRe.FindStringSubmatch(s)
	if m == nil {
		return "", nil, errors.New("invalid version: main part")
	}
	main := strings.Split(m[1], ".")
	s = s[:len(s)-len(m[0])]

	v := &Version{
		Main:     main,
		Letter:   letter,
		Suffixes: suffixes,
		Revision: revision,
	}
	return s, v, nil
}

// Parse parses a Portage package version string.
func Parse(s string) (*Version, error) {
	rest, ver, err := ExtractSuffix(s)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, errors.New("invalid version: excess prefix")
	}
	return ver, nil
}
