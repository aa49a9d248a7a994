package wire

import (
	"encoding/json"

	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

// DecodePlan parses one JSON-encoded plan node, tagged by its top-level
// "type" field, recursing into child nodes. This is the wire-level
// counterpart of plan.Node's sum type -- the plan algebra itself knows
// nothing about JSON, matching the rest of the module's rule that
// serialization lives at the edge, not inside the core packages.
func DecodePlan(data json.RawMessage) (plan.Node, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, NewFault(Client, "malformed plan: %v", err)
	}

	switch tag.Type {
	case "attribute":
		var body struct {
			E         value.Symbol `json:"e"`
			V         value.Symbol `json:"v"`
			Attribute string       `json:"attribute"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed attribute plan: %v", err)
		}
		return &plan.Attribute{E: body.E, V: body.V, Attribute: body.Attribute}, nil

	case "match-av":
		var body struct {
			E         value.Symbol    `json:"e"`
			Attribute string          `json:"attribute"`
			Value     json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed match-av plan: %v", err)
		}
		v, err := valueFromJSON(body.Value)
		if err != nil {
			return nil, err
		}
		return &plan.MatchAV{E: body.E, Attribute: body.Attribute, Value: v}, nil

	case "join":
		var body struct {
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed join plan: %v", err)
		}
		left, err := DecodePlan(body.Left)
		if err != nil {
			return nil, err
		}
		right, err := DecodePlan(body.Right)
		if err != nil {
			return nil, err
		}
		return &plan.Join{Left: left, Right: right}, nil

	case "filter":
		var body struct {
			Child      json.RawMessage  `json:"child"`
			Predicate  string           `json:"predicate"`
			Left       value.Symbol     `json:"left"`
			Right      value.Symbol     `json:"right"`
			LeftConst  *json.RawMessage `json:"left_const"`
			RightConst *json.RawMessage `json:"right_const"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed filter plan: %v", err)
		}
		child, err := DecodePlan(body.Child)
		if err != nil {
			return nil, err
		}
		pred, err := plan.ParsePredicate(body.Predicate)
		if err != nil {
			return nil, NewFault(Client, "%v", err)
		}
		f := &plan.Filter{Child: child, Predicate: pred, Left: body.Left, Right: body.Right}
		if body.LeftConst != nil {
			v, err := valueFromJSON(*body.LeftConst)
			if err != nil {
				return nil, err
			}
			f.LeftConst = &v
		}
		if body.RightConst != nil {
			v, err := valueFromJSON(*body.RightConst)
			if err != nil {
				return nil, err
			}
			f.RightConst = &v
		}
		return f, nil

	case "project":
		var body struct {
			Child json.RawMessage `json:"child"`
			Vars  value.Vector    `json:"vars"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed project plan: %v", err)
		}
		child, err := DecodePlan(body.Child)
		if err != nil {
			return nil, err
		}
		return &plan.Project{Child: child, Vars: body.Vars}, nil

	case "union":
		var body struct {
			Vars     value.Vector      `json:"vars"`
			Children []json.RawMessage `json:"children"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed union plan: %v", err)
		}
		children := make([]plan.Node, 0, len(body.Children))
		for _, c := range body.Children {
			n, err := DecodePlan(c)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		return &plan.Union{Vars: body.Vars, Children: children}, nil

	case "pull":
		var body struct {
			Root   json.RawMessage `json:"root"`
			Vars   value.Vector    `json:"vars"`
			Levels []struct {
				Child          json.RawMessage `json:"child"`
				PullAttributes []string        `json:"pull_attributes"`
				Path           value.Vector    `json:"path"`
			} `json:"levels"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed pull plan: %v", err)
		}
		root, err := DecodePlan(body.Root)
		if err != nil {
			return nil, err
		}
		levels := make([]plan.PullLevel, 0, len(body.Levels))
		for _, l := range body.Levels {
			child, err := DecodePlan(l.Child)
			if err != nil {
				return nil, err
			}
			levels = append(levels, plan.PullLevel{
				Child:          child,
				PullAttributes: l.PullAttributes,
				Path:           l.Path,
			})
		}
		return &plan.Pull{Root: root, Levels: levels, Vars: body.Vars}, nil

	case "hector":
		var body struct {
			Vars     value.Vector      `json:"vars"`
			Bindings []json.RawMessage `json:"bindings"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed hector plan: %v", err)
		}
		bindings := make([]plan.Binding, 0, len(body.Bindings))
		for _, b := range body.Bindings {
			decoded, err := decodeBinding(b)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, decoded)
		}
		return &plan.Hector{Vars: body.Vars, Bindings: bindings}, nil

	case "named":
		var body struct {
			Name string       `json:"name"`
			Vars value.Vector `json:"vars"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed named plan: %v", err)
		}
		return &plan.Named{Name: body.Name, Vars: body.Vars}, nil

	default:
		return nil, NewFault(Client, "unknown plan type %q", tag.Type)
	}
}

func decodeBinding(data json.RawMessage) (plan.Binding, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, NewFault(Client, "malformed binding: %v", err)
	}
	switch tag.Type {
	case "attribute":
		var body struct {
			E         value.Symbol `json:"e"`
			V         value.Symbol `json:"v"`
			Attribute string       `json:"attribute"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed attribute binding: %v", err)
		}
		return plan.AttributeBinding{E: body.E, V: body.V, Attribute: body.Attribute}, nil
	case "constant":
		var body struct {
			Symbol value.Symbol    `json:"symbol"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed constant binding: %v", err)
		}
		v, err := valueFromJSON(body.Value)
		if err != nil {
			return nil, err
		}
		return plan.ConstantBinding{Symbol: body.Symbol, Value: v}, nil
	case "binary-predicate":
		var body struct {
			Left      value.Symbol `json:"left"`
			Right     value.Symbol `json:"right"`
			Predicate string       `json:"predicate"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, NewFault(Client, "malformed binary-predicate binding: %v", err)
		}
		pred, err := plan.ParsePredicate(body.Predicate)
		if err != nil {
			return nil, NewFault(Client, "%v", err)
		}
		return plan.BinaryPredicateBinding{Left: body.Left, Right: body.Right, Predicate: pred}, nil
	default:
		return nil, NewFault(Client, "unknown binding type %q", tag.Type)
	}
}
