package implement

import (
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

func implementProject(ctx *Context, t clock.Time, p *plan.Project) (*Relation, error) {
	child, err := Implement(ctx, t, p.Child)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(child.Rows))
	for _, r := range child.Rows {
		rows = append(rows, Row{
			Tuple: value.Project(r.Tuple, child.Vars, p.Vars),
			Diff:  r.Diff,
		})
	}
	return &Relation{Vars: p.Vars, Rows: Consolidate(rows)}, nil
}
