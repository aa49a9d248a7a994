package hector

import (
	"fmt"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// Extender is the prefix-extension contract every binding besides the
// round's own delta source offers: count estimates how many extensions
// it would propose (used only to pick the cheapest one to actually run),
// propose produces them, and validate restricts another extender's
// proposals to the ones this one would also have produced.
type Extender interface {
	Count(prefix value.Tuple) (int, error)
	Propose(prefix value.Tuple) ([]value.Value, error)
	Validate(prefix value.Tuple, candidate value.Value) (bool, error)
}

// unconstrainedCount marks an extender that never limits how many
// extensions exist -- large enough to never win a count-driven
// selection over a real index lookup.
const unconstrainedCount = 1 << 30

// constantExtender binds a target symbol to one known value.
type constantExtender struct {
	value value.Value
}

func (e *constantExtender) Count(value.Tuple) (int, error) { return 1, nil }

func (e *constantExtender) Propose(value.Tuple) ([]value.Value, error) {
	return []value.Value{e.value}, nil
}

func (e *constantExtender) Validate(_ value.Tuple, candidate value.Value) (bool, error) {
	return candidate.Equal(e.value), nil
}

// attributeExtender extends a prefix using one attribute's forward or
// reverse index, read under an AltNeu cutoff so earlier/later bindings
// in the round see the correct alt/neu view of this attribute.
type attributeExtender struct {
	index   attribute.Index
	offset  int
	cutoff  clock.AltNeu
	reverse bool // true: reverse index (key=value, candidate=entity)
}

func (e *attributeExtender) keyBytes(prefix value.Tuple) []byte {
	keyVal := prefix[e.offset]
	if e.reverse {
		return value.Encode(keyVal)
	}
	return value.EncodeEntity(keyVal.AsEntity())
}

func (e *attributeExtender) Count(prefix value.Tuple) (int, error) {
	return e.index.CountAt(e.keyBytes(prefix), e.cutoff)
}

func (e *attributeExtender) Propose(prefix value.Tuple) ([]value.Value, error) {
	entries, err := e.index.ProposeAt(e.keyBytes(prefix), e.cutoff)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(entries))
	for i, en := range entries {
		if e.reverse {
			out[i] = value.NewEntity(en.Entity)
		} else {
			out[i] = en.Value
		}
	}
	return out, nil
}

func (e *attributeExtender) Validate(prefix value.Tuple, candidate value.Value) (bool, error) {
	var entity value.Entity
	var val value.Value
	if e.reverse {
		entity, val = candidate.AsEntity(), prefix[e.offset]
	} else {
		entity, val = prefix[e.offset].AsEntity(), candidate
	}
	return e.index.ValidateAt(entity, val, e.cutoff)
}

// predicateExtender never proposes -- it only narrows another
// extender's proposals by a binary comparison against an already-bound
// prefix position.
type predicateExtender struct {
	predicate      plan.Predicate
	offset         int
	leftFromPrefix bool // true: prefix supplies the predicate's Left operand
}

func (e *predicateExtender) Count(value.Tuple) (int, error) { return unconstrainedCount, nil }

func (e *predicateExtender) Propose(value.Tuple) ([]value.Value, error) {
	return nil, fmt.Errorf("hector: predicate extender cannot propose, only validate")
}

func (e *predicateExtender) Validate(prefix value.Tuple, candidate value.Value) (bool, error) {
	var left, right value.Value
	if e.leftFromPrefix {
		left, right = prefix[e.offset], candidate
	} else {
		left, right = candidate, prefix[e.offset]
	}
	return e.predicate.Eval(left, right), nil
}
