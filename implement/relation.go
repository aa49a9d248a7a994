// Package implement compiles non-WCO plan nodes (Attribute, MatchAV,
// Join, Filter, Project, Union, Pull) to the same Relation substrate the
// Hector engine produces, so both paths can feed the same registry and
// subscriber dispatch.
package implement

import (
	"fmt"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// Row is one (tuple, diff) pair at the relation's evaluation time.
type Row struct {
	Tuple value.Tuple
	Diff  int64
}

// Relation is a materialized result: a symbol vector and the rows at the
// time it was evaluated. "stream of (tuple, time, diff)" in spec.md is
// realized here as a from-scratch evaluation at a single AsOf time,
// rather than a continuously running operator -- each advance_domain
// tick re-derives the affected relations. See DESIGN.md for why this is
// a faithful, testable rendition of the spec's streaming language.
type Relation struct {
	Vars value.Vector
	Rows []Row
}

// Consolidate sums diffs for identical tuples and drops zero-multiplicity
// rows, giving set-multiset semantics to whatever produced the raw rows.
func Consolidate(rows []Row) []Row {
	type key = string
	sums := make(map[key]int64)
	order := make(map[key]value.Tuple)
	var keys []key
	for _, r := range rows {
		k := tupleKey(r.Tuple)
		if _, ok := sums[k]; !ok {
			keys = append(keys, k)
			order[k] = r.Tuple
		}
		sums[k] += r.Diff
	}
	out := make([]Row, 0, len(keys))
	for _, k := range keys {
		if d := sums[k]; d != 0 {
			out = append(out, Row{Tuple: order[k], Diff: d})
		}
	}
	return out
}

// Distinct consolidates and then clamps every surviving positive
// multiplicity to 1, giving pure set semantics -- the guarantee Hector's
// driver applies to its concatenated per-binding delta streams.
func Distinct(rows []Row) []Row {
	consolidated := Consolidate(rows)
	out := make([]Row, 0, len(consolidated))
	for _, r := range consolidated {
		if r.Diff > 0 {
			out = append(out, Row{Tuple: r.Tuple, Diff: 1})
		}
	}
	return out
}

func tupleKey(t value.Tuple) string {
	s := ""
	for _, v := range t {
		s += fmt.Sprintf("%d:%s|", v.Kind(), v.String())
	}
	return s
}

// Env resolves a named rule to its already-materialized Relation -- the
// hook Named plan nodes use, supplied by the registry without creating an
// import cycle back into it.
type Env func(name string) (*Relation, error)

// HectorEval evaluates a Hector plan node. The hector package depends on
// Relation, so Implement cannot import hector directly without a cycle;
// the registry wires this hook to hector.Evaluate instead.
type HectorEval func(t clock.Time, h *plan.Hector) (*Relation, error)

// Context carries everything Implement needs to evaluate a plan tree at
// one logical time.
type Context struct {
	Store  *attribute.Store
	Env    Env
	Hector HectorEval
}

// Implement compiles a plan node to a materialized Relation at time t.
func Implement(ctx *Context, t clock.Time, n plan.Node) (*Relation, error) {
	switch p := n.(type) {
	case *plan.Attribute:
		return implementAttribute(ctx, t, p)
	case *plan.MatchAV:
		return implementMatchAV(ctx, t, p)
	case *plan.Join:
		return implementJoin(ctx, t, p)
	case *plan.Filter:
		return implementFilter(ctx, t, p)
	case *plan.Project:
		return implementProject(ctx, t, p)
	case *plan.Union:
		return implementUnion(ctx, t, p)
	case *plan.Pull:
		return implementPull(ctx, t, p)
	case *plan.Hector:
		if ctx.Hector == nil {
			return nil, fmt.Errorf("implement: no hector evaluator configured")
		}
		return ctx.Hector(t, p)
	case *plan.Named:
		if ctx.Env == nil {
			return nil, fmt.Errorf("implement: no environment to resolve rule %q", p.Name)
		}
		return ctx.Env(p.Name)
	default:
		return nil, fmt.Errorf("implement: unsupported plan node %T", n)
	}
}
