package plan

import "github.com/wbrown/hectordb/value"

// Binding is one input to a Hector plan.
type Binding interface {
	binding()
}

// AttributeBinding contributes a delta source: the named attribute's
// forward/reverse traces, keyed by the two symbols it relates.
type AttributeBinding struct {
	E, V      value.Symbol
	Attribute string
}

func (AttributeBinding) binding() {}

// ConstantBinding fixes a symbol to a known value, used to seed a delta
// source's prefix or to satisfy an extender without touching storage.
type ConstantBinding struct {
	Symbol value.Symbol
	Value  value.Value
}

func (ConstantBinding) binding() {}

// BinaryPredicateBinding constrains two symbols by a predicate. Per
// spec.md §9, these are only ever emitted directly by the Hector planner
// -- Filter plans never infer them (Filter::into_bindings is
// unimplemented in the source this was distilled from).
type BinaryPredicateBinding struct {
	Left, Right value.Symbol
	Predicate   Predicate
}

func (BinaryPredicateBinding) binding() {}

// Symbols returns the symbol(s) a binding mentions, in the order that
// matters for direction selection (attribute/predicate bindings relate
// exactly two symbols; constant bindings fix exactly one).
func Symbols(b Binding) value.Vector {
	switch t := b.(type) {
	case AttributeBinding:
		return value.Vector{t.E, t.V}
	case ConstantBinding:
		return value.Vector{t.Symbol}
	case BinaryPredicateBinding:
		return value.Vector{t.Left, t.Right}
	default:
		return nil
	}
}
