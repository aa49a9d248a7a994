package wire

import (
	"encoding/json"

	"github.com/wbrown/hectordb/implement"
	"github.com/wbrown/hectordb/value"
)

// ChangeBatch is one `[query-name, [[tuple, diff], ...]]` response frame,
// delivered to every subscriber of the named query.
type ChangeBatch struct {
	Name string
	Rows []implement.Row
}

// MarshalJSON renders the frame as the two-element array spec.md §6
// requires, with each row itself rendered as a `[tuple, diff]` pair.
func (c ChangeBatch) MarshalJSON() ([]byte, error) {
	rows := make([][2]any, len(c.Rows))
	for i, r := range c.Rows {
		tuple := make([]any, len(r.Tuple))
		for j, v := range r.Tuple {
			tuple[j] = renderValue(v)
		}
		rows[i] = [2]any{tuple, r.Diff}
	}
	return json.Marshal([]any{c.Name, rows})
}

// renderValue unwraps a Value back to the plain JSON scalar or tagged
// object a client can read, the inverse of valueFromJSON for the scalar
// kinds. Entity, Attribute and Instant have no bare-scalar JSON shape and
// render as single-key tagged objects, which valueFromJSON does not
// accept back.
func renderValue(v value.Value) any {
	switch v.Kind() {
	case value.KindEntity:
		return map[string]any{"entity": uint64(v.AsEntity())}
	case value.KindAttribute:
		return map[string]any{"attribute": v.AsAttribute()}
	case value.KindNumber:
		return v.AsNumber()
	case value.KindBoolean:
		return v.AsBoolean()
	case value.KindString:
		return v.AsString()
	case value.KindInstant:
		return map[string]any{"instant": v.AsInstant()}
	default:
		return nil
	}
}
