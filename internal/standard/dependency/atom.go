// Copyright 2022 The ChromiumOS Authors.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dependency

import (
	"fmt"
	"strings"

	"cros.local/portage/internal/standard/naming"
	"cros.local/portage/internal/standard/version"
)

// Blocker records one of the three blocker prefixes recognised in front of
// an atom: none, soft (!), hard (!!), or antislot (^), the last being a
// local extension meaning "same PN, different slot".
type Blocker int

const (
	BlockerNone Blocker = iota
	BlockerWeak
	BlockerStrong
	BlockerAntislot
)

func (b Blocker) String() string {
	switch b {
	case BlockerWeak:
		return "!"
	case BlockerStrong:
		return "!!"
	case BlockerAntislot:
		return "^"
	default:
		return ""
	}
}

// Operator is the version comparison prefix attached to a versioned atom.
type Operator string

const (
	OpNone         Operator = ""
	OpLessEqual    Operator = "<="
	OpLess         Operator = "<"
	OpExactEqual   Operator = "="
	OpRoughEqual   Operator = "~"
	OpGreaterEqual Operator = ">="
	OpGreater      Operator = ">"
)

// operators must be tried longest-prefix-first so ">=" is not mistaken for ">".
var operators = []Operator{
	OpLessEqual,
	OpLess,
	OpExactEqual,
	OpRoughEqual,
	OpGreaterEqual,
	OpGreater,
}

// Slot holds the optional :SLOT[/SUBSLOT] portion of an atom. Per the
// design note on interior pointers in the original C, SUBSLOT defaulting to
// SLOT is modelled explicitly rather than by string identity: hasSubslot
// records whether the user actually wrote a sub-slot.
type Slot struct {
	slot       string
	subslot    string
	hasSubslot bool
}

func NewSlot(slot string) Slot {
	return Slot{slot: slot}
}

func NewSlotWithSubslot(slot, subslot string) Slot {
	return Slot{slot: slot, subslot: subslot, hasSubslot: true}
}

func (s Slot) Slot() string { return s.slot }

// Subslot returns the sub-slot, defaulting to the slot itself when the atom
// did not specify one explicitly.
func (s Slot) Subslot() string {
	if s.hasSubslot {
		return s.subslot
	}
	return s.slot
}

func (s Slot) SubslotExplicit() bool { return s.hasSubslot }

func (s Slot) IsZero() bool { return s.slot == "" && !s.hasSubslot }

func (s Slot) String() string {
	if s.slot == "" {
		return ""
	}
	if s.hasSubslot {
		return s.slot + "/" + s.subslot
	}
	return s.slot
}

// SlotOperator is the trailing modifier after :SLOT[/SUBSLOT].
type SlotOperator int

const (
	SlotOpNone      SlotOperator = iota
	SlotOpRebuild                // trailing "=" — any slot, rebuild on slot change
	SlotOpAnyIgnore              // trailing "*" — any slot, ignore on slot change
)

func (o SlotOperator) String() string {
	switch o {
	case SlotOpRebuild:
		return "="
	case SlotOpAnyIgnore:
		return "*"
	default:
		return ""
	}
}

// UseCond is the trailing conditional suffix of a use-dependency.
type UseCond int

const (
	UseCondNone     UseCond = iota
	UseCondEqual            // flag=
	UseCondNotEqual         // !flag=
	UseCondOptIn            // flag?
	UseCondOptOut           // !flag?
)

// UseDefault is the parenthesised default-value indicator, "(+)" or "(-)".
//
// The original C (atom.c) assigns the same internal enum value to both
// "(+)" and "(-)"; this port preserves that observable behaviour rather
// than silently disambiguating it. TODO: distinguish "(+)" from "(-)" once
// a consumer actually depends on the difference.
type UseDefault int

const (
	UseDefaultNone        UseDefault = iota
	UseDefaultPrevEnabled            // covers both "(+)" and "(-)"
)

// UseDependency is one entry of an atom's [flag,flag2,...] USE-dependency
// list.
type UseDependency struct {
	Flag    string
	Enabled bool // meaningful only when Cond == UseCondNone: required state
	Cond    UseCond
	Default UseDefault
}

func parseUseDependency(raw string) (*UseDependency, error) {
	s := raw
	invert := strings.HasPrefix(s, "!")
	if invert {
		s = s[1:]
	}

	enabled := true
	if strings.HasPrefix(s, "-") {
		enabled = false
		s = s[1:]
	}

	var cond UseCond
	if strings.HasSuffix(s, "=") {
		s = strings.TrimSuffix(s, "=")
		if invert {
			cond = UseCondNotEqual
		} else {
			cond = UseCondEqual
		}
	} else if strings.HasSuffix(s, "?") {
		s = strings.TrimSuffix(s, "?")
		if invert {
			cond = UseCondOptOut
		} else {
			cond = UseCondOptIn
		}
	} else if invert {
		return nil, fmt.Errorf("%s: inverted use dependency requires = or ?", raw)
	}

	var def UseDefault
	if strings.HasSuffix(s, "(+)") || strings.HasSuffix(s, "(-)") {
		def = UseDefaultPrevEnabled
		s = s[:len(s)-3]
	}

	if s == "" {
		return nil, fmt.Errorf("%s: empty use flag name", raw)
	}

	return &UseDependency{
		Flag:    s,
		Enabled: enabled,
		Cond:    cond,
		Default: def,
	}, nil
}

func (u *UseDependency) String() string {
	var w strings.Builder
	if u.Cond == UseCondNotEqual || u.Cond == UseCondOptOut {
		w.WriteString("!")
	}
	if !u.Enabled && u.Cond == UseCondNone {
		w.WriteString("-")
	}
	w.WriteString(u.Flag)
	if u.Default == UseDefaultPrevEnabled {
		w.WriteString("(+)")
	}
	switch u.Cond {
	case UseCondEqual, UseCondNotEqual:
		w.WriteString("=")
	case UseCondOptIn, UseCondOptOut:
		w.WriteString("?")
	}
	return w.String()
}

// Atom is a parsed package atom, following the grammar
//
//	[!|!!|^][op]CAT/PN[-PV[-rREV][letter][_suffix[N]]...][*][:SLOT[/SUBSLOT][=|*]][USEDEPS][::REPO]
type Atom struct {
	blocker  Blocker
	op       Operator
	wildcard bool
	category string
	pn       string
	ver      *version.Version
	slot     Slot
	slotOp   SlotOperator
	useDeps  []*UseDependency
	repo     string

	hasBuildID bool
	buildID    int
}

// NewAtom builds an atom value directly from its fields, bypassing string
// parsing. The result carries no blocker and no BUILDID.
func NewAtom(category, pn string, op Operator, ver *version.Version, wildcard bool, slot Slot, slotOp SlotOperator, useDeps []*UseDependency, repo string) *Atom {
	return &Atom{
		category: category,
		pn:       pn,
		op:       op,
		ver:      ver,
		wildcard: wildcard,
		slot:     slot,
		slotOp:   slotOp,
		useDeps:  useDeps,
		repo:     repo,
	}
}

func NewSimpleAtom(packageName string) *Atom {
	cat, pn := splitCategoryPN(packageName)
	return &Atom{category: cat, pn: pn}
}

func splitCategoryPN(s string) (category, pn string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// ParseAtom parses an atom string. The parser is liberal: it accepts a
// leading path and a trailing ".ebuild"/".tbz2" extension, treating the
// final path segment as PF.
func ParseAtom(atomStr string) (*Atom, error) {
	orig := atomStr
	rest := atomStr
	if rest == "" {
		return nil, fmt.Errorf("%s: empty atom", orig)
	}

	a := &Atom{}

	// Blocker, outermost.
	switch {
	case strings.HasPrefix(rest, "^"):
		a.blocker = BlockerAntislot
		rest = rest[1:]
	case strings.HasPrefix(rest, "!!"):
		a.blocker = BlockerStrong
		rest = rest[2:]
	case strings.HasPrefix(rest, "!"):
		a.blocker = BlockerWeak
		rest = rest[1:]
	}

	// Prefix version operator.
	for _, op := range operators {
		if strings.HasPrefix(rest, string(op)) {
			a.op = op
			rest = rest[len(op):]
			break
		}
	}
	if a.op != OpNone && (strings.HasPrefix(rest, "!") || strings.HasPrefix(rest, "^")) {
		return nil, fmt.Errorf("%s: blocker must precede operator", orig)
	}

	// Liberal acceptance of a leading path and trailing package-file extension.
	if i := strings.LastIndexByte(rest, '/'); i >= 0 {
		if strings.HasSuffix(rest, ".ebuild") || strings.HasSuffix(rest, ".tbz2") || strings.HasSuffix(rest, ".xpak") {
			rest = rest[i+1:]
		}
	}
	rest = strings.TrimSuffix(rest, ".ebuild")
	rest = strings.TrimSuffix(rest, ".tbz2")
	rest = strings.TrimSuffix(rest, ".xpak")

	// Trailing ::REPO.
	if i := strings.LastIndex(rest, "::"); i >= 0 {
		a.repo = rest[i+2:]
		rest = rest[:i]
		if a.repo == "" {
			return nil, fmt.Errorf("%s: empty repository", orig)
		}
	}

	// Trailing [USEDEPS].
	if strings.HasSuffix(rest, "]") {
		i := strings.LastIndexByte(rest, '[')
		if i < 0 {
			return nil, fmt.Errorf("%s: unmatched ]", orig)
		}
		inner := rest[i+1 : len(rest)-1]
		rest = rest[:i]
		if inner != "" {
			for _, tok := range strings.Split(inner, ",") {
				ud, err := parseUseDependency(tok)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", orig, err)
				}
				a.useDeps = append(a.useDeps, ud)
			}
		}
	}

	// Trailing :SLOT[/SUBSLOT][=|*].
	if i := strings.LastIndexByte(rest, ':'); i >= 0 {
		slotStr := rest[i+1:]
		rest = rest[:i]
		if slotStr == "" {
			return nil, fmt.Errorf("%s: empty slot after ':'", orig)
		}
		switch {
		case strings.HasSuffix(slotStr, "="):
			a.slotOp = SlotOpRebuild
			slotStr = strings.TrimSuffix(slotStr, "=")
		case strings.HasSuffix(slotStr, "*"):
			a.slotOp = SlotOpAnyIgnore
			slotStr = strings.TrimSuffix(slotStr, "*")
		}
		if slotStr != "" {
			if j := strings.IndexByte(slotStr, '/'); j >= 0 {
				a.slot = NewSlotWithSubslot(slotStr[:j], slotStr[j+1:])
			} else {
				a.slot = NewSlot(slotStr)
			}
		}
	}

	// Trailing '*' wildcard (version prefix match), only meaningful with '='.
	if a.op == OpExactEqual && strings.HasSuffix(rest, "*") {
		rest = strings.TrimSuffix(rest, "*")
		a.wildcard = true
	}

	// Leading CATEGORY/.
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		a.category = rest[:i]
		rest = rest[i+1:]
	}

	if a.op != OpNone {
		var ver *version.Version
		var err error
		rest, ver, err = version.ExtractSuffix(rest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", orig, err)
		}
		a.ver = ver
	} else if prefix, ver, err := version.ExtractSuffix(rest); err == nil && strings.HasSuffix(prefix, "-") {
		// Operator-less atom naming a concrete PF (e.g. "sys-devel/gcc-12.3.1"):
		// split PN-PV at the last hyphen followed by a valid version.
		rest = prefix
		a.ver = ver
	}

	rest = strings.TrimSuffix(rest, "-")
	a.pn = rest

	if a.category != "" {
		if err := naming.CheckCategory(a.category); err != nil {
			return nil, fmt.Errorf("%s: %w", orig, err)
		}
	}
	if a.pn == "" {
		if a.op != OpNone {
			return nil, fmt.Errorf("%s: empty package name", orig)
		}
		// Category-only atom (used by category-scoped queries).
	} else if err := naming.CheckPackage(a.pn); err != nil {
		return nil, fmt.Errorf("%s: %w", orig, err)
	}

	return a, nil
}

func (a *Atom) Blocker() Blocker                  { return a.blocker }
func (a *Atom) VersionOperator() Operator         { return a.op }
func (a *Atom) Wildcard() bool                    { return a.wildcard }
func (a *Atom) Category() string                  { return a.category }
func (a *Atom) PN() string                        { return a.pn }
func (a *Atom) Version() *version.Version         { return a.ver }
func (a *Atom) Slot() Slot                        { return a.slot }
func (a *Atom) SlotOperator() SlotOperator         { return a.slotOp }
func (a *Atom) UseDeps() []*UseDependency          { return a.useDeps }
func (a *Atom) Repo() string                       { return a.repo }
func (a *Atom) BuildID() (int, bool)               { return a.buildID, a.hasBuildID }

// PackageName returns "CATEGORY/PN", or just PN for a category-less atom.
func (a *Atom) PackageName() string {
	if a.category == "" {
		return a.pn
	}
	return a.category + "/" + a.pn
}

// PackageCategory is kept for callers that index atoms by category the way
// the match engine's tree traversal does.
func (a *Atom) PackageCategory() string { return a.category }

// WithBuildID returns a copy of the atom carrying an explicit BUILDID, which
// Compare uses as the final tiebreak between equal versions; BUILDID has no
// atom-string representation of its own. The tree package's Package.Atom
// and Package.FullAtom do not call it, so atoms built from tree listings
// carry no BUILDID.
func (a *Atom) WithBuildID(id int) *Atom {
	clone := a.Clone()
	clone.hasBuildID = true
	clone.buildID = id
	return clone
}

// Clone makes an independent copy of the atom.
//
// NOTE: the original C atom_clone assigns the cloned sfx_op field from the
// source's pfx_op, which is almost certainly a typo (it should copy sfx_op).
// This port does not copy the wildcard flag unconditionally either: a
// clone keeps the source's wildcard flag only when the source operator is
// "=", and otherwise has it cleared. For atoms from ParseAtom, which sets
// the flag only together with "=", the clone's flag equals the source's.
// Do not change this without adding a regression test for the call sites
// that rely on it.
func (a *Atom) Clone() *Atom {
	clone := *a
	if a.ver != nil {
		clone.ver = a.ver.Copy()
	}
	clone.useDeps = append([]*UseDependency(nil), a.useDeps...)
	clone.wildcard = a.op == OpExactEqual && a.wildcard // preserves the pfx_op/sfx_op mixup above
	return &clone
}

// Outcome is the raw result of comparing a data atom's version against a
// query atom's version, before the query's operator collapses it.
type Outcome int

const (
	OutcomeError Outcome = iota
	OutcomeNotEqual
	OutcomeEqual
	OutcomeNewer
	OutcomeOlder
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotEqual:
		return "NOT_EQUAL"
	case OutcomeEqual:
		return "EQUAL"
	case OutcomeNewer:
		return "NEWER"
	case OutcomeOlder:
		return "OLDER"
	default:
		return "ERROR"
	}
}

// CompareFlags suppress individual fields of the comparison, forwarded from
// the match engine's NOREV/NOSLOT/NOSUBSLOT/NOREPO flags.
type CompareFlags uint8

const (
	NoRev CompareFlags = 1 << iota
	NoSlot
	NoSubslot
	NoRepo
)

// Compare decides whether a data atom (typically read from a tree) satisfies
// a query atom (typically from user input or a dependency expression),
// returning the collapsed EQUAL/NOT_EQUAL/ERROR outcome described in the
// atom comparator design. The raw NEWER/OLDER intermediate is only visible
// through rawOutcome, used internally and by tests pinning PMS examples.
func Compare(data, query *Atom, flags CompareFlags) Outcome {
	raw := rawOutcome(data, query, flags)
	if raw == OutcomeError || raw == OutcomeNotEqual {
		return raw
	}
	collapsed := collapse(raw, query)
	if blockerInverts(query.blocker) {
		collapsed = invertOutcome(collapsed)
	}
	return collapsed
}

// Match is the boolean convenience wrapper used by the match engine.
func Match(data, query *Atom, flags CompareFlags) bool {
	return Compare(data, query, flags) == OutcomeEqual
}

func blockerInverts(b Blocker) bool {
	return b == BlockerWeak || b == BlockerStrong
}

func invertOutcome(o Outcome) Outcome {
	switch o {
	case OutcomeEqual:
		return OutcomeNotEqual
	case OutcomeNotEqual:
		return OutcomeEqual
	default:
		return o
	}
}

// rawOutcome performs the structural and version comparison, returning
// NOT_EQUAL for any structural mismatch (category, PN, slot, repo), and
// otherwise NEWER/OLDER/EQUAL from the version (and, as a final tiebreak,
// BUILDID) comparison.
func rawOutcome(data, query *Atom, flags CompareFlags) Outcome {
	if query.category != "" && data.category != "" && query.category != data.category {
		return OutcomeNotEqual
	}
	if query.pn != "" && data.pn != "" && query.pn != data.pn {
		return OutcomeNotEqual
	}

	if query.blocker == BlockerAntislot {
		if data.slot.IsZero() || query.slot.IsZero() {
			return OutcomeNotEqual
		}
		if data.slot.Slot() != query.slot.Slot() || data.slot.Subslot() != query.slot.Subslot() {
			return OutcomeEqual // antislot matches a *different* slot
		}
		return OutcomeNotEqual
	}

	if flags&NoSlot == 0 && !query.slot.IsZero() {
		if data.slot.Slot() != query.slot.Slot() {
			return OutcomeNotEqual
		}
	}
	if flags&NoSubslot == 0 && query.slot.SubslotExplicit() {
		if data.slot.Subslot() != query.slot.Subslot() {
			return OutcomeNotEqual
		}
	}
	if flags&NoRepo == 0 && query.repo != "" {
		if data.repo != "" && data.repo != query.repo {
			return OutcomeNotEqual
		}
	}

	if query.op == OpNone {
		return OutcomeEqual
	}
	if data.ver == nil || query.ver == nil {
		return OutcomeError
	}

	if query.op == OpExactEqual && query.wildcard {
		if data.ver.HasPrefix(query.ver) {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	}

	dver, qver := data.ver, query.ver
	if flags&NoRev != 0 || query.op == OpRoughEqual {
		dver = dver.DropRevision()
		qver = qver.DropRevision()
	}

	cmp := dver.Compare(qver)
	if cmp == 0 {
		if dID, dOK := data.buildID, data.hasBuildID; dOK {
			if qID, qOK := query.buildID, query.hasBuildID; qOK {
				switch {
				case dID < qID:
					return OutcomeOlder
				case dID > qID:
					return OutcomeNewer
				}
			}
		}
		return OutcomeEqual
	}
	if cmp < 0 {
		return OutcomeOlder
	}
	return OutcomeNewer
}

// collapse applies the operator table that turns a raw NEWER/OLDER/EQUAL
// outcome into the final EQUAL/NOT_EQUAL the caller observes.
func collapse(raw Outcome, query *Atom) Outcome {
	switch query.op {
	case OpNone:
		return raw
	case OpExactEqual:
		// The wildcard case is already resolved to EQUAL/NOT_EQUAL by
		// rawOutcome's HasPrefix check.
		if query.wildcard {
			return raw
		}
		if raw == OutcomeEqual {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	case OpGreater:
		if raw == OutcomeNewer {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	case OpGreaterEqual:
		if raw == OutcomeNewer || raw == OutcomeEqual {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	case OpLess:
		if raw == OutcomeOlder {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	case OpLessEqual:
		if raw == OutcomeOlder || raw == OutcomeEqual {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	case OpRoughEqual:
		if raw == OutcomeEqual {
			return OutcomeEqual
		}
		return OutcomeNotEqual
	default:
		panic(fmt.Sprintf("unknown version operator %q", string(query.op)))
	}
}

func (a *Atom) String() string {
	var w strings.Builder
	w.WriteString(a.blocker.String())
	w.WriteString(string(a.op))
	w.WriteString(a.PackageName())
	if a.ver != nil {
		w.WriteString("-")
		w.WriteString(a.ver.String())
		if a.wildcard {
			w.WriteString("*")
		}
	}
	if !a.slot.IsZero() {
		w.WriteString(":")
		w.WriteString(a.slot.String())
		w.WriteString(a.slotOp.String())
	}
	if len(a.useDeps) > 0 {
		var parts []string
		for _, ud := range a.useDeps {
			parts = append(parts, ud.String())
		}
		w.WriteString("[")
		w.WriteString(strings.Join(parts, ","))
		w.WriteString("]")
	}
	if a.repo != "" {
		w.WriteString("::")
		w.WriteString(a.repo)
	}
	return w.String()
}

// Format implements the atom template language: "%{KEY}" always prints
// (showing "<unset>" when absent), "%[KEY]" prints only when set. Keys may
// be abbreviated to any unambiguous prefix of the recognised set.
func (a *Atom) Format(spec string) (string, error) {
	return formatAtom(a, spec)
}

var atomFormatKeys = []string{
	"CATEGORY", "P", "PN", "PV", "PVR", "PF", "PR", "SLOT", "SUBSLOT", "REPO", "USE", "pfx", "sfx",
}

func (a *Atom) formatKey(key string) (value string, set bool) {
	switch key {
	case "CATEGORY":
		return a.category, a.category != ""
	case "PN":
		return a.pn, a.pn != ""
	case "PV":
		if a.ver == nil {
			return "", false
		}
		return strings.TrimSuffix(a.ver.String(), "-r"+a.ver.Revision), true
	case "PVR":
		if a.ver == nil {
			return "", false
		}
		return a.ver.String(), true
	case "PR":
		if a.ver == nil {
			return "", false
		}
		return "r" + a.ver.ImplicitRevision(), true
	case "P":
		if a.ver == nil {
			return a.pn, a.pn != ""
		}
		pv, _ := a.formatKey("PV")
		return a.pn + "-" + pv, true
	case "PF":
		if a.ver == nil {
			return a.pn, a.pn != ""
		}
		pvr, _ := a.formatKey("PVR")
		return a.pn + "-" + pvr, true
	case "SLOT":
		return a.slot.Slot(), !a.slot.IsZero()
	case "SUBSLOT":
		return a.slot.Subslot(), a.slot.SubslotExplicit()
	case "REPO":
		return a.repo, a.repo != ""
	case "USE":
		if len(a.useDeps) == 0 {
			return "", false
		}
		var parts []string
		for _, ud := range a.useDeps {
			parts = append(parts, ud.String())
		}
		return strings.Join(parts, ","), true
	case "pfx":
		return string(a.op), a.op != OpNone
	case "sfx":
		if a.wildcard {
			return "*", true
		}
		return "", false
	default:
		return "", false
	}
}

func resolveFormatKey(key string) (string, error) {
	var matches []string
	for _, k := range atomFormatKeys {
		if k == key {
			return k, nil
		}
		if strings.HasPrefix(k, key) {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown format key %q", key)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous format key %q (matches %s)", key, strings.Join(matches, ", "))
	}
}

func formatAtom(a *Atom, spec string) (string, error) {
	var w strings.Builder
	for i := 0; i < len(spec); {
		c := spec[i]
		if c != '%' || i+1 >= len(spec) {
			w.WriteByte(c)
			i++
			continue
		}
		opener := spec[i+1]
		var closer byte
		switch opener {
		case '{':
			closer = '}'
		case '[':
			closer = ']'
		default:
			w.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(spec[i+2:], closer)
		if end < 0 {
			return "", fmt.Errorf("unterminated %%%c in format spec", opener)
		}
		key := spec[i+2 : i+2+end]
		resolved, err := resolveFormatKey(key)
		if err != nil {
			return "", err
		}
		value, set := a.formatKey(resolved)
		switch opener {
		case '{':
			if !set {
				value = "<unset>"
			}
			w.WriteString(value)
		case '[':
			if set {
				w.WriteString(value)
			}
		}
		i += 2 + end + 1
	}
	return w.String(), nil
}
