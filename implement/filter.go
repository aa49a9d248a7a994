package implement

import (
	"fmt"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

func implementFilter(ctx *Context, t clock.Time, p *plan.Filter) (*Relation, error) {
	child, err := Implement(ctx, t, p.Child)
	if err != nil {
		return nil, err
	}

	resolve := func(row value.Tuple, sym value.Symbol, constant *value.Value) (value.Value, error) {
		if constant != nil {
			return *constant, nil
		}
		i := child.Vars.IndexOf(sym)
		if i < 0 {
			return value.Value{}, fmt.Errorf("implement: filter symbol %v not in child vector %v", sym, child.Vars)
		}
		return row[i], nil
	}

	var rows []Row
	for _, r := range child.Rows {
		lv, err := resolve(r.Tuple, p.Left, p.LeftConst)
		if err != nil {
			return nil, err
		}
		rv, err := resolve(r.Tuple, p.Right, p.RightConst)
		if err != nil {
			return nil, err
		}
		if p.Predicate.Eval(lv, rv) {
			rows = append(rows, r)
		}
	}
	return &Relation{Vars: child.Vars, Rows: rows}, nil
}
