package dependency

import (
	"fmt"
	"strings"
)

// Deps is the top-level parsed dependency expression of a DEPEND-like field.
type Deps struct {
	expr *AllOf
}

func NewDeps(expr *AllOf) *Deps {
	return &Deps{expr: expr}
}

func (d *Deps) Expr() *AllOf { return d.expr }

func (d *Deps) String() string {
	s := d.expr.String()
	return strings.TrimSuffix(strings.TrimPrefix(s, "( "), " )")
}

// Expr is the tagged-variant dependency node: AllOf, AnyOf, UseConditional,
// Package (an ATOM leaf, possibly blocking), or Null (a pruned node kept in
// place so sibling iteration order is stable).
type Expr interface {
	isExpr()
	String() string
}

type AllOf struct {
	children []Expr
}

func NewAllOf(children []Expr) *AllOf {
	return &AllOf{children: children}
}

func (d *AllOf) Children() []Expr { return append([]Expr(nil), d.children...) }

func (d *AllOf) isExpr() {}

func (d *AllOf) String() string {
	var substrings []string
	for _, child := range d.children {
		substrings = append(substrings, child.String())
	}
	return fmt.Sprintf("( %s )", strings.Join(substrings, " "))
}

type AnyOf struct {
	children []Expr
}

func NewAnyOf(children []Expr) *AnyOf {
	return &AnyOf{children: children}
}

func (d *AnyOf) Children() []Expr { return append([]Expr(nil), d.children...) }

func (d *AnyOf) isExpr() {}

func (d *AnyOf) String() string {
	var substrings []string
	for _, child := range d.children {
		substrings = append(substrings, child.String())
	}
	return fmt.Sprintf("|| ( %s )", strings.Join(substrings, " "))
}

type UseConditional struct {
	name   string
	expect bool
	child  *AllOf
}

func NewUseConditional(name string, expect bool, child *AllOf) *UseConditional {
	return &UseConditional{
		name:   name,
		expect: expect,
		child:  child,
	}
}

func (d *UseConditional) Name() string  { return d.name }
func (d *UseConditional) Child() *AllOf { return d.child }
func (d *UseConditional) Expect() bool  { return d.expect }

func (d *UseConditional) isExpr() {}

func (d *UseConditional) String() string {
	cond := d.name
	if !d.expect {
		cond = "!" + cond
	}
	return fmt.Sprintf("%s? %s", cond, d.child.String())
}

// Package is an ATOM leaf, optionally a blocker ("!" or "!!" prefix count).
// Once Resolve has run, resolved carries the tree lookup's result.
type Package struct {
	atom   *Atom
	blocks int

	resolved    []any
	resolvedSet bool
}

func NewPackage(atom *Atom, blocks int) *Package {
	return &Package{
		atom:   atom,
		blocks: blocks,
	}
}

func (p *Package) Atom() *Atom { return p.atom }
func (p *Package) Blocks() int { return p.blocks }

// Resolved returns the packages stored by Resolve, or nil if Resolve has not
// visited this node yet.
func (p *Package) Resolved() ([]any, bool) { return p.resolved, p.resolvedSet }

func (p *Package) isExpr() {}

func (p *Package) String() string {
	return strings.Repeat("!", p.blocks) + p.atom.String()
}

// Null is a node that Prune collapsed away: it still occupies its position
// in the parent's child list (so sibling indices and print layout stay
// stable) but Flatten and Resolve skip over it.
type Null struct {
	original Expr
}

func NewNull(original Expr) *Null { return &Null{original: original} }

func (n *Null) Original() Expr { return n.original }

func (n *Null) isExpr() {}

func (n *Null) String() string { return "" }
