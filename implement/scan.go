package implement

import (
	"fmt"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

func implementAttribute(ctx *Context, t clock.Time, p *plan.Attribute) (*Relation, error) {
	a, ok := ctx.Store.Attribute(p.Attribute)
	if !ok {
		return nil, fmt.Errorf("implement: unknown attribute %q", p.Attribute)
	}
	entries, err := a.Forward().ScanAll(t)
	if err != nil {
		return nil, fmt.Errorf("implement: scan %q: %w", p.Attribute, err)
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{
			Tuple: value.Tuple{value.NewEntity(e.Entity), e.Value},
			Diff:  e.Diff,
		})
	}
	return &Relation{Vars: p.Symbols(), Rows: rows}, nil
}

func implementMatchAV(ctx *Context, t clock.Time, p *plan.MatchAV) (*Relation, error) {
	a, ok := ctx.Store.Attribute(p.Attribute)
	if !ok {
		return nil, fmt.Errorf("implement: unknown attribute %q", p.Attribute)
	}
	entries, err := a.Reverse().Propose(value.Encode(p.Value), t)
	if err != nil {
		return nil, fmt.Errorf("implement: match %q: %w", p.Attribute, err)
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{
			Tuple: value.Tuple{value.NewEntity(e.Entity)},
			Diff:  e.Diff,
		})
	}
	return &Relation{Vars: p.Symbols(), Rows: rows}, nil
}
