package wire

import (
	"encoding/json"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/registry"
	"github.com/wbrown/hectordb/value"
)

// Request is one decoded client frame: exactly one of the typed fields
// below is non-nil, selected by the wire-level "type" tag.
type Request struct {
	Transact       *TransactRequest
	Interest       *InterestRequest
	Register       *RegisterRequest
	RegisterSource *RegisterSourceRequest
	CreateAttr     *CreateAttributeRequest
	AdvanceDomain  *AdvanceDomainRequest
	CloseInput     *CloseInputRequest
}

// TransactRequest is `{tx_data: [[op, e, a, v], ...]}`.
type TransactRequest struct {
	TxData []TxDatum
}

// TxDatum is one `[op, entity, attribute, value]` tuple: op is +1 (assert)
// or -1 (retract).
type TxDatum struct {
	Op        int64
	Entity    value.Entity
	Attribute string
	Value     value.Value
}

// InterestRequest is `{name}`.
type InterestRequest struct {
	Name string
}

// RegisterRequest is `{rules: [{name, plan}], publish: [name]}`.
type RegisterRequest struct {
	Rules   []registry.Rule
	Publish []string
}

// RegisterSourceRequest is `{names, source}`.
type RegisterSourceRequest struct {
	Names  []string
	Source SourceSpec
}

// SourceSpec is a tagged ingestion source: json-file{path} or
// csv-file{path, schema}.
type SourceSpec struct {
	Kind   string
	Path   string
	Schema map[string]string
}

// CreateAttributeRequest is `{name, semantics}`.
type CreateAttributeRequest struct {
	Name      string
	Semantics attribute.Semantics
}

// AdvanceDomainRequest is `{name?, next}`; Name must be empty.
type AdvanceDomainRequest struct {
	Name string
	Next clock.Time
}

// CloseInputRequest is `{name}`.
type CloseInputRequest struct {
	Name string
}

type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// DecodeRequest parses one wire frame: a JSON object with a top-level
// "type" tag selecting the variant and a "body" object holding its
// fields. Unknown types and malformed bodies are reported as Category
// Client, per spec.md §7 ("malformed request, unknown source kind,
// unknown semantics").
func DecodeRequest(data []byte) (*Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewFault(Client, "malformed request: %v", err)
	}
	switch env.Type {
	case "transact":
		return decodeTransact(env.Body)
	case "interest":
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, NewFault(Client, "malformed interest request: %v", err)
		}
		return &Request{Interest: &InterestRequest{Name: body.Name}}, nil
	case "register":
		return decodeRegister(env.Body)
	case "register-source":
		return decodeRegisterSource(env.Body)
	case "create-attribute":
		return decodeCreateAttribute(env.Body)
	case "advance-domain":
		var body struct {
			Name *string `json:"name"`
			Next uint64  `json:"next"`
		}
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, NewFault(Client, "malformed advance-domain request: %v", err)
		}
		if body.Name != nil {
			return nil, NewFault(Unsupported, "named domains are unsupported")
		}
		return &Request{AdvanceDomain: &AdvanceDomainRequest{Next: clock.Time(body.Next)}}, nil
	case "close-input":
		var body struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, NewFault(Client, "malformed close-input request: %v", err)
		}
		return &Request{CloseInput: &CloseInputRequest{Name: body.Name}}, nil
	default:
		return nil, NewFault(Client, "unknown request type %q", env.Type)
	}
}

func decodeTransact(body json.RawMessage) (*Request, error) {
	var raw struct {
		TxData [][]json.RawMessage `json:"tx_data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewFault(Client, "malformed transact request: %v", err)
	}
	data := make([]TxDatum, 0, len(raw.TxData))
	for _, tuple := range raw.TxData {
		if len(tuple) != 4 {
			return nil, NewFault(Client, "tx_data entry must have 4 elements, got %d", len(tuple))
		}
		var op int64
		var entity uint64
		var attr string
		if err := json.Unmarshal(tuple[0], &op); err != nil {
			return nil, NewFault(Client, "malformed tx_data op: %v", err)
		}
		if err := json.Unmarshal(tuple[1], &entity); err != nil {
			return nil, NewFault(Client, "malformed tx_data entity: %v", err)
		}
		if err := json.Unmarshal(tuple[2], &attr); err != nil {
			return nil, NewFault(Client, "malformed tx_data attribute: %v", err)
		}
		v, err := valueFromJSON(tuple[3])
		if err != nil {
			return nil, err
		}
		data = append(data, TxDatum{Op: op, Entity: value.Entity(entity), Attribute: attr, Value: v})
	}
	return &Request{Transact: &TransactRequest{TxData: data}}, nil
}

// valueFromJSON converts a raw JSON scalar into a value.Value: bool ->
// Boolean, number -> Number, string -> String. Objects and arrays are
// rejected, matching spec.md §6's "only scalar values are supported".
func valueFromJSON(raw json.RawMessage) (value.Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return value.Value{}, NewFault(Client, "malformed value: %v", err)
	}
	switch t := v.(type) {
	case bool:
		return value.NewBoolean(t), nil
	case float64:
		return value.NewNumber(int64(t)), nil
	case string:
		return value.NewString(t), nil
	default:
		return value.Value{}, NewFault(Client, "unsupported value shape %T, only scalars are supported", t)
	}
}

func decodeCreateAttribute(body json.RawMessage) (*Request, error) {
	var raw struct {
		Name      string `json:"name"`
		Semantics string `json:"semantics"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewFault(Client, "malformed create-attribute request: %v", err)
	}
	var sem attribute.Semantics
	switch raw.Semantics {
	case "Raw":
		sem = attribute.Raw
	case "Set":
		sem = attribute.Set
	case "CardinalityOne":
		sem = attribute.CardinalityOne
	default:
		return nil, NewFault(Client, "unknown semantics %q", raw.Semantics)
	}
	return &Request{CreateAttr: &CreateAttributeRequest{Name: raw.Name, Semantics: sem}}, nil
}

func decodeRegisterSource(body json.RawMessage) (*Request, error) {
	var raw struct {
		Names  []string        `json:"names"`
		Source json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewFault(Client, "malformed register-source request: %v", err)
	}
	var tagged struct {
		Kind   string            `json:"kind"`
		Path   string            `json:"path"`
		Schema map[string]string `json:"schema"`
	}
	if err := json.Unmarshal(raw.Source, &tagged); err != nil {
		return nil, NewFault(Client, "malformed source: %v", err)
	}
	if tagged.Kind != "json-file" && tagged.Kind != "csv-file" {
		return nil, NewFault(Client, "unknown source kind %q", tagged.Kind)
	}
	return &Request{RegisterSource: &RegisterSourceRequest{
		Names: raw.Names,
		Source: SourceSpec{
			Kind:   tagged.Kind,
			Path:   tagged.Path,
			Schema: tagged.Schema,
		},
	}}, nil
}

func decodeRegister(body json.RawMessage) (*Request, error) {
	var raw struct {
		Rules []struct {
			Name string          `json:"name"`
			Plan json.RawMessage `json:"plan"`
		} `json:"rules"`
		Publish []string `json:"publish"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewFault(Client, "malformed register request: %v", err)
	}
	rules := make([]registry.Rule, 0, len(raw.Rules))
	for _, r := range raw.Rules {
		n, err := DecodePlan(r.Plan)
		if err != nil {
			return nil, err
		}
		rules = append(rules, registry.Rule{Name: r.Name, Plan: n})
	}
	return &Request{Register: &RegisterRequest{Rules: rules, Publish: raw.Publish}}, nil
}
