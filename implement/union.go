package implement

import (
	"fmt"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// implementUnion concatenates every child's rows unconsolidated -- the
// same plain-concatenation semantics as a differential concat operator.
// Callers that need set semantics call Distinct on the result; a Project
// over it consolidates equal rows but keeps their summed multiplicity.
func implementUnion(ctx *Context, t clock.Time, p *plan.Union) (*Relation, error) {
	var rows []Row
	for _, c := range p.Children {
		rel, err := Implement(ctx, t, c)
		if err != nil {
			return nil, err
		}
		if !rel.Vars.SameSet(p.Vars) {
			return nil, fmt.Errorf("implement: union child vector %v does not match %v", rel.Vars, p.Vars)
		}
		for _, r := range rel.Rows {
			rows = append(rows, Row{Tuple: value.Project(r.Tuple, rel.Vars, p.Vars), Diff: r.Diff})
		}
	}
	return &Relation{Vars: p.Vars, Rows: rows}, nil
}
