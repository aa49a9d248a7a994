package implement

import (
	"fmt"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// implementJoin equi-joins two materialized child relations on whatever
// symbols they share, by hashing the right side on the shared key and
// probing it with the left. Diffs multiply, matching differential join's
// bilinearity.
func implementJoin(ctx *Context, t clock.Time, p *plan.Join) (*Relation, error) {
	left, err := Implement(ctx, t, p.Left)
	if err != nil {
		return nil, err
	}
	right, err := Implement(ctx, t, p.Right)
	if err != nil {
		return nil, err
	}

	shared := value.Shared(left.Vars, right.Vars)
	if len(shared) == 0 {
		return nil, fmt.Errorf("implement: join %v/%v shares no symbols", left.Vars, right.Vars)
	}
	leftOnly := value.Minus(left.Vars, shared)
	rightOnly := value.Minus(right.Vars, shared)
	outVars := append(append(value.Vector{}, shared...), append(leftOnly, rightOnly...)...)

	type bucket struct {
		tuple value.Tuple
		diff  int64
	}
	index := make(map[string][]bucket)
	for _, r := range right.Rows {
		key := tupleKey(value.Project(r.Tuple, right.Vars, shared))
		index[key] = append(index[key], bucket{tuple: r.Tuple, diff: r.Diff})
	}

	var rows []Row
	for _, lr := range left.Rows {
		key := tupleKey(value.Project(lr.Tuple, left.Vars, shared))
		for _, rb := range index[key] {
			out := make(value.Tuple, 0, len(outVars))
			out = append(out, value.Project(lr.Tuple, left.Vars, shared)...)
			out = append(out, value.Project(lr.Tuple, left.Vars, leftOnly)...)
			out = append(out, value.Project(rb.tuple, right.Vars, rightOnly)...)
			rows = append(rows, Row{Tuple: out, Diff: lr.Diff * rb.diff})
		}
	}

	return &Relation{Vars: outVars, Rows: Consolidate(rows)}, nil
}
