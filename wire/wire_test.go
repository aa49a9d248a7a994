package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/implement"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

func TestDecodeRequestTransact(t *testing.T) {
	req, err := DecodeRequest([]byte(`{
		"type": "transact",
		"body": {"tx_data": [[1, 100, "name", "Mabel"], [-1, 200, "admin?", false]]}
	}`))
	require.NoError(t, err)
	require.NotNil(t, req.Transact)
	require.Len(t, req.Transact.TxData, 2)
	require.Equal(t, int64(1), req.Transact.TxData[0].Op)
	require.Equal(t, value.Entity(100), req.Transact.TxData[0].Entity)
	require.Equal(t, "name", req.Transact.TxData[0].Attribute)
	require.True(t, req.Transact.TxData[0].Value.Equal(value.NewString("Mabel")))
	require.True(t, req.Transact.TxData[1].Value.Equal(value.NewBoolean(false)))
}

func TestDecodeRequestRejectsNonScalarValue(t *testing.T) {
	_, err := DecodeRequest([]byte(`{
		"type": "transact",
		"body": {"tx_data": [[1, 100, "name", {"nested": true}]]}
	}`))
	require.Error(t, err)
	require.Equal(t, Client, Classify(err).Category)
}

func TestDecodeRequestAdvanceDomainRejectsName(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type": "advance-domain", "body": {"name": "x", "next": 10}}`))
	require.Error(t, err)
	require.Equal(t, Unsupported, Classify(err).Category)
}

func TestDecodeRequestUnknownType(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"type": "frobnicate", "body": {}}`))
	require.Error(t, err)
	require.Equal(t, Client, Classify(err).Category)
}

func TestDecodePlanHectorRoundTrip(t *testing.T) {
	n, err := DecodePlan([]byte(`{
		"type": "hector",
		"vars": [0, 1, 2],
		"bindings": [
			{"type": "attribute", "e": 0, "v": 1, "attribute": "edge"},
			{"type": "attribute", "e": 1, "v": 2, "attribute": "edge"},
			{"type": "attribute", "e": 0, "v": 2, "attribute": "edge"}
		]
	}`))
	require.NoError(t, err)
	h, ok := n.(*plan.Hector)
	require.True(t, ok)
	require.Equal(t, value.Vector{0, 1, 2}, h.Vars)
	require.Len(t, h.Bindings, 3)
}

func TestDecodePlanFilterWithConstant(t *testing.T) {
	n, err := DecodePlan([]byte(`{
		"type": "filter",
		"child": {"type": "attribute", "e": 0, "v": 1, "attribute": "edge"},
		"predicate": "<",
		"left": 0,
		"right": 1,
		"right_const": 3
	}`))
	require.NoError(t, err)
	f, ok := n.(*plan.Filter)
	require.True(t, ok)
	require.Equal(t, plan.LT, f.Predicate)
	require.NotNil(t, f.RightConst)
	require.True(t, f.RightConst.Equal(value.NewNumber(3)))
}

func TestChangeBatchMarshalsAsPairArray(t *testing.T) {
	batch := ChangeBatch{
		Name: "people",
		Rows: []implement.Row{
			{Tuple: value.Tuple{value.NewEntity(1), value.NewString("Alice")}, Diff: 1},
		},
	}
	out, err := batch.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `["people", [[[{"entity":1},"Alice"], 1]]]`, string(out))
}
