// Package hector implements the worst-case-optimal delta-join plan:
// given a set of bindings over shared symbols, it picks a symbol order,
// runs one delta query per changing attribute binding, and concatenates
// the results under distinct() to avoid double-counting.
//
// This is a from-scratch (rather than a genuinely incremental) WCO
// evaluator: each call recomputes the round's bindings at one logical
// time t, rather than maintaining a live timely/differential-dataflow
// scope. The alt/neu split is still applied exactly where it matters --
// disambiguating which of two simultaneously-changing attribute
// bindings gets to emit a shared tuple -- since that is the anti-
// symmetry property the spec requires, not an artifact of continuous
// streaming. See DESIGN.md for the full rationale.
package hector

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/implement"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// Context carries what Evaluate needs: the attribute store to read
// bindings from.
type Context struct {
	Store *attribute.Store
}

// ShuffleKey hashes a value the way the worker pool's exchange channel
// would, for partitioning count/propose/validate requests by key across
// workers. Evaluate runs single-process and does not partition itself,
// but both it and worker.Exchange must agree on this hash so a
// distributed count phase sees the same grouping a local one would.
func ShuffleKey(v value.Value) uint64 {
	return xxhash.Sum64(value.Encode(v))
}

// Evaluate computes a Hector plan's result relation at logical time t.
func Evaluate(ctx *Context, t clock.Time, h *plan.Hector) (*implement.Relation, error) {
	if len(h.Bindings) == 0 {
		return nil, fmt.Errorf("hector: no bindings passed")
	}
	if len(h.Vars) == 0 {
		return nil, fmt.Errorf("hector: no symbols requested")
	}

	if len(h.Bindings) == 1 {
		return evaluateSingle(ctx, t, h)
	}
	return evaluateDelta(ctx, t, h)
}

// evaluateSingle handles the degenerate one-binding case directly: there
// is nothing to delta-join against, so the result is just that
// attribute's live state, projected to the requested symbols.
func evaluateSingle(ctx *Context, t clock.Time, h *plan.Hector) (*implement.Relation, error) {
	ab, ok := h.Bindings[0].(plan.AttributeBinding)
	if !ok {
		return nil, fmt.Errorf("hector: a single binding must be sourceable (an AttributeBinding)")
	}
	a, ok := ctx.Store.Attribute(ab.Attribute)
	if !ok {
		return nil, fmt.Errorf("hector: unknown attribute %q", ab.Attribute)
	}
	entries, err := a.Forward().ScanAll(t)
	if err != nil {
		return nil, err
	}
	vars := value.Vector{ab.E, ab.V}
	rows := make([]implement.Row, 0, len(entries))
	for _, e := range entries {
		tuple := value.Tuple{value.NewEntity(e.Entity), e.Value}
		rows = append(rows, implement.Row{Tuple: value.Project(tuple, vars, h.Vars), Diff: e.Diff})
	}
	return &implement.Relation{Vars: h.Vars, Rows: implement.Distinct(rows)}, nil
}

// evaluateDelta runs one delta query per AttributeBinding and
// concatenates the results under Distinct, matching "distinct() the
// concatenation of all per-binding delta streams".
func evaluateDelta(ctx *Context, t clock.Time, h *plan.Hector) (*implement.Relation, error) {
	var all []implement.Row
	for idx, b := range h.Bindings {
		delta, ok := b.(plan.AttributeBinding)
		if !ok {
			continue
		}
		rows, prefixVars, err := driveDelta(ctx, t, h, idx, delta)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			all = append(all, implement.Row{
				Tuple: value.Project(r.Tuple, prefixVars, h.Vars),
				Diff:  r.Diff,
			})
		}
	}
	return &implement.Relation{Vars: h.Vars, Rows: implement.Distinct(all)}, nil
}

// driveDelta runs the delta query driven by bindings[idx]: it seeds a
// prefix from that attribute's changes at exactly time t, then extends
// it through every remaining target symbol in h.Vars using the other
// bindings as extenders.
func driveDelta(ctx *Context, t clock.Time, h *plan.Hector, idx int, delta plan.AttributeBinding) ([]implement.Row, value.Vector, error) {
	a, ok := ctx.Store.Attribute(delta.Attribute)
	if !ok {
		return nil, nil, fmt.Errorf("hector: unknown attribute %q", delta.Attribute)
	}

	prefixVars, rows, err := seedDelta(a, t, delta, h.Bindings)
	if err != nil {
		return nil, nil, err
	}

	for _, target := range h.Vars {
		if prefixVars.Contains(target) {
			continue
		}
		extenders, err := buildExtenders(ctx, h.Bindings, idx, prefixVars, target, t)
		if err != nil {
			return nil, nil, err
		}
		if len(extenders) == 0 {
			return nil, nil, fmt.Errorf("hector: no extender resolves symbol %v from prefix %v", target, prefixVars)
		}
		rows, err = extendRows(rows, extenders)
		if err != nil {
			return nil, nil, err
		}
		prefixVars = append(prefixVars, target)
	}
	return rows, prefixVars, nil
}

// seedDelta builds the initial prefix for a delta round. When another
// binding fixes delta's entity or value to a constant, only the
// attribute's changes matching the constant are read; otherwise every
// change to the attribute is read. Either way the prefix binds both of
// delta's symbols.
func seedDelta(a *attribute.Attribute, t clock.Time, delta plan.AttributeBinding, bindings []plan.Binding) (value.Vector, []implement.Row, error) {
	for _, other := range bindings {
		cb, ok := other.(plan.ConstantBinding)
		if !ok || (cb.Symbol != delta.E && cb.Symbol != delta.V) {
			continue
		}
		forward, _, err := bindingDirection(value.Vector{cb.Symbol}, delta.E, delta.V)
		if err != nil {
			return nil, nil, err
		}
		if forward {
			entries, err := a.Forward().DeltaAt(value.EncodeEntity(cb.Value.AsEntity()), t)
			if err != nil {
				return nil, nil, err
			}
			rows := make([]implement.Row, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, implement.Row{Tuple: value.Tuple{cb.Value, e.Value}, Diff: e.Diff})
			}
			return value.Vector{delta.E, delta.V}, rows, nil
		}
		entries, err := a.Reverse().DeltaAt(value.Encode(cb.Value), t)
		if err != nil {
			return nil, nil, err
		}
		rows := make([]implement.Row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, implement.Row{Tuple: value.Tuple{value.NewEntity(e.Entity), cb.Value}, Diff: e.Diff})
		}
		return value.Vector{delta.E, delta.V}, rows, nil
	}

	entries, err := a.Validate().DeltaAt(nil, t)
	if err != nil {
		return nil, nil, err
	}
	rows := make([]implement.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, implement.Row{Tuple: value.Tuple{value.NewEntity(e.Entity), e.Value}, Diff: e.Diff})
	}
	return value.Vector{delta.E, delta.V}, rows, nil
}

// buildExtenders collects one Extender per other binding that can
// resolve target from the current prefix, giving bindings with index <
// idx the alt (exclusive) view of this round's time and bindings with
// index > idx the neu (inclusive) view -- the mechanism that makes a
// single simultaneous fact contribute to exactly one delta round.
func buildExtenders(ctx *Context, bindings []plan.Binding, idx int, prefix value.Vector, target value.Symbol, t clock.Time) ([]Extender, error) {
	var out []Extender
	for otherIdx, other := range bindings {
		if otherIdx == idx {
			continue
		}
		switch ob := other.(type) {
		case plan.ConstantBinding:
			if ob.Symbol != target {
				continue
			}
			out = append(out, &constantExtender{value: ob.Value})

		case plan.BinaryPredicateBinding:
			if ob.Left == target {
				if !prefix.Contains(ob.Right) {
					continue
				}
				out = append(out, &predicateExtender{
					predicate: ob.Predicate, offset: prefix.IndexOf(ob.Right), leftFromPrefix: false,
				})
			} else if ob.Right == target {
				if !prefix.Contains(ob.Left) {
					continue
				}
				out = append(out, &predicateExtender{
					predicate: ob.Predicate, offset: prefix.IndexOf(ob.Left), leftFromPrefix: true,
				})
			}

		case plan.AttributeBinding:
			if ob.E != target && ob.V != target {
				continue
			}
			var keySym value.Symbol
			var reverse bool
			if target == ob.V {
				keySym, reverse = ob.E, false
			} else {
				keySym, reverse = ob.V, true
			}
			if !prefix.Contains(keySym) {
				continue
			}
			a, ok := ctx.Store.Attribute(ob.Attribute)
			if !ok {
				return nil, fmt.Errorf("hector: unknown attribute %q", ob.Attribute)
			}
			cutoff := clock.Neu(t)
			if otherIdx < idx {
				cutoff = clock.Alt(t)
			}
			keyOffset := prefix.IndexOf(keySym)
			if reverse {
				out = append(out, &attributeExtender{index: a.Reverse(), offset: keyOffset, cutoff: cutoff, reverse: true})
			} else {
				out = append(out, &attributeExtender{index: a.Forward(), offset: keyOffset, cutoff: cutoff, reverse: false})
			}
		}
	}
	return out, nil
}

// extendRows extends every row's prefix tuple by one symbol: for each
// row it picks the extender with the smallest proposed count (ties
// broken by the smaller extender index), proposes from that one, and
// keeps only the candidates every other extender also validates.
func extendRows(rows []implement.Row, extenders []Extender) ([]implement.Row, error) {
	var out []implement.Row
	for _, row := range rows {
		winner := 0
		best := -1
		for i, ext := range extenders {
			c, err := ext.Count(row.Tuple)
			if err != nil {
				return nil, err
			}
			if best < 0 || c < best {
				best, winner = c, i
			}
		}

		candidates, err := extenders[winner].Propose(row.Tuple)
		if err != nil {
			return nil, err
		}
		for _, cand := range candidates {
			ok := true
			for j, ext := range extenders {
				if j == winner {
					continue
				}
				valid, err := ext.Validate(row.Tuple, cand)
				if err != nil {
					return nil, err
				}
				if !valid {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			extended := make(value.Tuple, 0, len(row.Tuple)+1)
			extended = append(extended, row.Tuple...)
			extended = append(extended, cand)
			out = append(out, implement.Row{Tuple: extended, Diff: row.Diff})
		}
	}
	return out, nil
}
