// Package plan defines the plan algebra: the sum type of plan nodes
// bindings feed into, and the sum type of bindings Hector plans are built
// from. Every node knows its own output symbol vector statically -- no
// runtime-dependent reordering, per spec.md's invariants.
package plan

import "github.com/wbrown/hectordb/value"

// Node is any plan value. Every concrete node type below implements it;
// the unexported marker prevents other packages from inventing new node
// kinds outside this algebra.
type Node interface {
	Symbols() value.Vector
	isNode()
}

// Attribute matches `[e a v]`-shaped facts on a named attribute: e and v
// are free symbols.
type Attribute struct {
	E, V      value.Symbol
	Attribute string
}

func (n *Attribute) Symbols() value.Vector { return value.Vector{n.E, n.V} }
func (*Attribute) isNode()                 {}

// MatchAV matches a named attribute against a fixed constant value,
// leaving only the entity symbol free.
type MatchAV struct {
	E         value.Symbol
	Attribute string
	Value     value.Value
}

func (n *MatchAV) Symbols() value.Vector { return value.Vector{n.E} }
func (*MatchAV) isNode()                 {}

// Join equi-joins two child plans on whatever symbols they share. The
// output vector is shared ++ (left - shared) ++ (right - shared).
type Join struct {
	Left, Right Node
}

func (n *Join) Symbols() value.Vector {
	shared := value.Shared(n.Left.Symbols(), n.Right.Symbols())
	out := append(value.Vector{}, shared...)
	out = append(out, value.Minus(n.Left.Symbols(), shared)...)
	out = append(out, value.Minus(n.Right.Symbols(), shared)...)
	return out
}
func (*Join) isNode() {}

// Filter evaluates a predicate over a child plan's tuples. Exactly one of
// LeftConst/RightConst may be non-nil, marking which predicate argument is
// a bound constant rather than a tuple slot; if both are nil, Left/Right
// name tuple-slot symbols instead.
type Filter struct {
	Child     Node
	Predicate Predicate
	Left      value.Symbol
	Right     value.Symbol
	LeftConst *value.Value
	RightConst *value.Value
}

func (n *Filter) Symbols() value.Vector { return n.Child.Symbols() }
func (*Filter) isNode()                 {}

// Project reorders/restricts a child plan's tuples to the requested
// vector, consolidating to drop zero-multiplicity rows.
type Project struct {
	Child Node
	Vars  value.Vector
}

func (n *Project) Symbols() value.Vector { return n.Vars }
func (*Project) isNode()                 {}

// Union concatenates child streams; every child must share Vars as its
// output vector.
type Union struct {
	Vars     value.Vector
	Children []Node
}

func (n *Union) Symbols() value.Vector { return n.Vars }
func (*Union) isNode()                 {}

// PullLevel is one step of a Pull plan: run Child, then for every entity
// it produces, look up PullAttributes and emit the Child row followed by
// the attribute name and its value; Path names the emitted columns.
type PullLevel struct {
	Child          Node
	PullAttributes []string
	Path           value.Vector
}

// Pull is a decorated sequence of levels over a root child plan.
type Pull struct {
	Root   Node
	Levels []PullLevel
	Vars   value.Vector
}

func (n *Pull) Symbols() value.Vector { return n.Vars }
func (*Pull) isNode()                 {}

// Hector is the WCO delta-join plan node: a target symbol vector and the
// bindings that constrain it. There must be at least one Attribute
// binding.
type Hector struct {
	Vars     value.Vector
	Bindings []Binding
}

// Symbols always returns the caller-supplied Vars -- fixing the
// teacher-observed `symbols: vec![]` bug named in spec.md §9.
func (n *Hector) Symbols() value.Vector { return n.Vars }
func (*Hector) isNode()                 {}

// Named references another rule by name, resolved to that rule's
// registered arrangement at interest time. This is the mechanism behind
// spec.md's Design Note "plans reference other named rules by string";
// dependency resolution does a topological sort over these references,
// detecting cycles as an error.
type Named struct {
	Name string
	Vars value.Vector
}

func (n *Named) Symbols() value.Vector { return n.Vars }
func (*Named) isNode()                 {}

// Dependencies walks a plan tree and returns the names of every Named
// node it references, used by the registry to build the rule dependency
// graph.
func Dependencies(n Node) []string {
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch p := n.(type) {
		case *Named:
			out = append(out, p.Name)
		case *Join:
			walk(p.Left)
			walk(p.Right)
		case *Filter:
			walk(p.Child)
		case *Project:
			walk(p.Child)
		case *Union:
			for _, c := range p.Children {
				walk(c)
			}
		case *Pull:
			walk(p.Root)
			for _, l := range p.Levels {
				walk(l.Child)
			}
		}
	}
	walk(n)
	return out
}
