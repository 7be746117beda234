package dependency

import (
	"fmt"
	"strings"
)

// Prune walks the tree and, for every USE-conditional node, either collapses
// it to its child ALL group (when (flag active) == expect) or replaces it
// with a Null node (when the condition does not hold). Null nodes keep their
// position among siblings; they are skipped by Flatten, Resolve, and Print.
func Prune(deps *Deps, active map[string]bool) *Deps {
	return NewDeps(pruneAllOf(deps.Expr(), active))
}

func pruneAllOf(a *AllOf, active map[string]bool) *AllOf {
	children := make([]Expr, len(a.children))
	for i, c := range a.children {
		children[i] = pruneExpr(c, active)
	}
	return NewAllOf(children)
}

func pruneAnyOf(a *AnyOf, active map[string]bool) *AnyOf {
	children := make([]Expr, len(a.children))
	for i, c := range a.children {
		children[i] = pruneExpr(c, active)
	}
	return NewAnyOf(children)
}

func pruneExpr(expr Expr, active map[string]bool) Expr {
	switch e := expr.(type) {
	case *AllOf:
		return pruneAllOf(e, active)

	case *AnyOf:
		return pruneAnyOf(e, active)

	case *UseConditional:
		if active[e.name] == e.expect {
			return pruneAllOf(e.child, active)
		}
		return NewNull(e)

	case *Package:
		return e

	case *Null:
		return e

	default:
		panic(fmt.Sprintf("unknown Expr type %T", expr))
	}
}

// Resolve walks the tree and, for every ATOM leaf not already resolved,
// invokes resolver once and stores the result on the node. ANY groups are
// not short-circuited here; a caller wanting to commit to one alternative
// does so itself after Resolve has populated every branch. Resolve is
// idempotent: a node already carrying a resolved result is left untouched.
//
// resolver is deliberately an opaque function rather than a concrete tree
// type, so this package does not need to import the tree package (which
// itself depends on Atom) — the caller supplies a closure over whatever
// lookup mechanism it has (typically match.Atom over a tree.Tree).
func Resolve(deps *Deps, resolver func(*Atom) []any) {
	resolveExpr(deps.Expr(), resolver)
}

func resolveExpr(expr Expr, resolver func(*Atom) []any) {
	switch e := expr.(type) {
	case *AllOf:
		for _, c := range e.children {
			resolveExpr(c, resolver)
		}

	case *AnyOf:
		for _, c := range e.children {
			resolveExpr(c, resolver)
		}

	case *UseConditional:
		resolveExpr(e.child, resolver)

	case *Package:
		if e.resolvedSet {
			return
		}
		e.resolved = resolver(e.atom)
		e.resolvedSet = true

	case *Null:
		// Skipped.

	default:
		panic(fmt.Sprintf("unknown Expr type %T", expr))
	}
}

// Flatten emits every ATOM leaf in depth-first, source order. ANY groups are
// treated as ALL (every alternative is emitted) since the intent is to
// produce a super-set for reporting, not to commit to a choice. Null nodes
// are skipped.
func Flatten(deps *Deps) []*Atom {
	return flattenExpr(deps.Expr())
}

func flattenExpr(expr Expr) []*Atom {
	switch e := expr.(type) {
	case *AllOf:
		return flattenChildren(e.children)

	case *AnyOf:
		return flattenChildren(e.children)

	case *UseConditional:
		return flattenExpr(e.child)

	case *Package:
		return []*Atom{e.atom}

	case *Null:
		return nil

	default:
		panic(fmt.Sprintf("unknown Expr type %T", expr))
	}
}

func flattenChildren(children []Expr) []*Atom {
	var atoms []*Atom
	for _, c := range children {
		atoms = append(atoms, flattenExpr(c)...)
	}
	return atoms
}

// FlattenPackages is Flatten's sibling for callers that need the leaf
// *Package node itself rather than just its Atom — typically to read back
// the result Resolve stored on it. Same depth-first, ANY-as-ALL, Null-
// skipping traversal as Flatten.
func FlattenPackages(deps *Deps) []*Package {
	return flattenPackagesExpr(deps.Expr())
}

func flattenPackagesExpr(expr Expr) []*Package {
	switch e := expr.(type) {
	case *AllOf:
		return flattenPackagesChildren(e.children)

	case *AnyOf:
		return flattenPackagesChildren(e.children)

	case *UseConditional:
		return flattenPackagesExpr(e.child)

	case *Package:
		return []*Package{e}

	case *Null:
		return nil

	default:
		panic(fmt.Sprintf("unknown Expr type %T", expr))
	}
}

func flattenPackagesChildren(children []Expr) []*Package {
	var pkgs []*Package
	for _, c := range children {
		pkgs = append(pkgs, flattenPackagesExpr(c)...)
	}
	return pkgs
}

// Print re-serialises the tree with one group per line, indented 4 spaces
// per depth; a group with a single surviving child is collapsed onto one
// line instead of opening its own block. highlight, when non-nil, marks
// atoms (keyed by their canonical string form) that should stand out in the
// rendered output; this core has no colour support of its own (that is an
// applet concern), so highlighted atoms are simply wrapped in asterisks.
func Print(deps *Deps, highlight map[string]bool) string {
	lines := printNode(deps.Expr(), 0, highlight, true)
	return strings.Join(lines, "\n")
}

func printNode(expr Expr, depth int, hl map[string]bool, topLevel bool) []string {
	indent := strings.Repeat("    ", depth)
	switch e := expr.(type) {
	case *Null:
		return nil

	case *Package:
		s := e.String()
		if hl != nil && hl[e.atom.String()] {
			s = "*" + s + "*"
		}
		return []string{indent + s}

	case *UseConditional:
		label := e.name + "?"
		if !e.expect {
			label = "!" + label
		}
		return printGroup(indent, depth, label, e.child.children, hl)

	case *AnyOf:
		return printGroup(indent, depth, "||", e.children, hl)

	case *AllOf:
		return printGroup(indent, depth, "", e.children, hl)

	default:
		panic(fmt.Sprintf("unknown Expr type %T", expr))
	}
}

func printGroup(indent string, depth int, label string, children []Expr, hl map[string]bool) []string {
	var kept []Expr
	for _, c := range children {
		if _, ok := c.(*Null); ok {
			continue
		}
		kept = append(kept, c)
	}

	if len(kept) == 1 {
		childLines := printNode(kept[0], depth, hl, false)
		if len(childLines) == 1 {
			line := strings.TrimLeft(childLines[0], " ")
			if label != "" {
				return []string{indent + label + " " + line}
			}
			return []string{indent + line}
		}
	}

	header := indent
	if label != "" {
		header += label + " "
	}
	header += "("
	out := []string{header}
	for _, c := range kept {
		out = append(out, printNode(c, depth+1, hl, false)...)
	}
	out = append(out, indent+")")
	return out
}
