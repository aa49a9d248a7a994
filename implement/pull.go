package implement

import (
	"fmt"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// implementPull runs each level's own Child plan to find the entities it
// pulls attributes from -- for the first level Child is conventionally
// Root itself (or a Project of it); for a nested level, Child is the
// plan the caller built to extract entity-valued results from the
// previous level (e.g. a Project over a Named reference to it), which is
// how pull_children-style multi-level pulls chain. Every level's Path is
// the entity-identifying prefix columns, matching its own Child's output
// vector, followed by exactly two trailing columns: the pulled
// attribute's name and its value. See DESIGN.md for why this fixed Path
// shape was chosen over a nested tree value.
func implementPull(ctx *Context, t clock.Time, p *plan.Pull) (*Relation, error) {
	if _, err := Implement(ctx, t, p.Root); err != nil {
		return nil, fmt.Errorf("implement: pull root: %w", err)
	}

	var rows []Row
	for _, level := range p.Levels {
		entities, err := Implement(ctx, t, level.Child)
		if err != nil {
			return nil, err
		}
		lvlRows, err := implementPullLevel(ctx, t, entities, level)
		if err != nil {
			return nil, err
		}
		rows = append(rows, lvlRows...)
	}
	return &Relation{Vars: p.Vars, Rows: Consolidate(rows)}, nil
}

func implementPullLevel(ctx *Context, t clock.Time, entities *Relation, level plan.PullLevel) ([]Row, error) {
	if len(level.Path) < 2 {
		return nil, fmt.Errorf("implement: pull level path %v too short", level.Path)
	}
	prefixVars := level.Path[:len(level.Path)-2]
	if len(prefixVars) != len(entities.Vars) {
		return nil, fmt.Errorf("implement: pull level path prefix %v does not match entity vector %v", prefixVars, entities.Vars)
	}

	entityCol := len(entities.Vars) - 1

	var rows []Row
	for _, er := range entities.Rows {
		eVal := er.Tuple[entityCol]
		if eVal.Kind() != value.KindEntity {
			continue
		}
		e := eVal.AsEntity()

		for _, attrName := range level.PullAttributes {
			a, ok := ctx.Store.Attribute(attrName)
			if !ok {
				continue
			}
			entries, err := a.Forward().Propose(value.EncodeEntity(e), t)
			if err != nil {
				return nil, fmt.Errorf("implement: pull %q: %w", attrName, err)
			}
			for _, entry := range entries {
				out := make(value.Tuple, 0, len(level.Path))
				out = append(out, er.Tuple...)
				out = append(out, value.NewAttribute(attrName), entry.Value)
				rows = append(rows, Row{Tuple: out, Diff: entry.Diff * er.Diff})
			}
		}
	}
	return rows, nil
}
