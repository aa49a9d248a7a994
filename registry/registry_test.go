package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

const (
	symE value.Symbol = iota
	symV
	symV2
)

func openTestStore(t *testing.T) *attribute.Store {
	t.Helper()
	s, err := attribute.Open("", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterIdempotentAndConflict(t *testing.T) {
	reg := New(openTestStore(t))
	p := &plan.Attribute{E: symE, V: symV, Attribute: "name"}

	require.NoError(t, reg.Register([]Rule{{Name: "people", Plan: p}}))
	require.NoError(t, reg.Register([]Rule{{Name: "people", Plan: p}}))

	other := &plan.Attribute{E: symE, V: symV, Attribute: "age"}
	err := reg.Register([]Rule{{Name: "people", Plan: other}})
	require.Error(t, err)
	var conflict *ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestInterestResolvesNamedDependency(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateAttribute("name", attribute.Raw)
	require.NoError(t, err)
	require.NoError(t, s.Transact("name", []attribute.Fact{
		{Entity: 1, Value: value.NewString("Alice"), Diff: 1},
	}, clock.Time(1)))

	reg := New(s)
	require.NoError(t, reg.Register([]Rule{
		{Name: "people", Plan: &plan.Attribute{E: symE, V: symV, Attribute: "name"}},
		{Name: "people-ref", Plan: &plan.Named{Name: "people", Vars: value.Vector{symE, symV}}},
	}))

	rel, err := reg.Interest("people-ref", clock.Time(1))
	require.NoError(t, err)
	require.Len(t, rel.Rows, 1)
	require.True(t, rel.Rows[0].Tuple[rel.Vars.IndexOf(symV)].Equal(value.NewString("Alice")))

	_, ok := reg.materialized["people"]
	require.True(t, ok, "transitive dependency must be materialized too")
}

func TestInterestDetectsCycle(t *testing.T) {
	reg := New(openTestStore(t))
	require.NoError(t, reg.Register([]Rule{
		{Name: "a", Plan: &plan.Named{Name: "b", Vars: value.Vector{symE}}},
		{Name: "b", Plan: &plan.Named{Name: "a", Vars: value.Vector{symE}}},
	}))

	_, err := reg.Interest("a", clock.Time(1))
	require.Error(t, err)
	var cycle *ErrCycle
	require.ErrorAs(t, err, &cycle)
}

func TestInterestUnknownRule(t *testing.T) {
	reg := New(openTestStore(t))
	_, err := reg.Interest("nope", clock.Time(1))
	require.Error(t, err)
	var notFound *ErrNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestAdvanceDomainInvalidatesCache(t *testing.T) {
	s := openTestStore(t)
	_, err := s.CreateAttribute("name", attribute.Raw)
	require.NoError(t, err)
	require.NoError(t, s.Transact("name", []attribute.Fact{
		{Entity: 1, Value: value.NewString("Alice"), Diff: 1},
	}, clock.Time(1)))

	reg := New(s)
	require.NoError(t, reg.Register([]Rule{
		{Name: "people", Plan: &plan.Attribute{E: symE, V: symV, Attribute: "name"}},
	}))

	_, err = reg.Interest("people", clock.Time(1))
	require.NoError(t, err)
	require.Len(t, reg.materialized, 1)

	require.NoError(t, reg.AdvanceDomain(clock.Time(2)))
	require.Len(t, reg.materialized, 0)

	require.NoError(t, s.Transact("name", []attribute.Fact{
		{Entity: 2, Value: value.NewString("Bob"), Diff: 1},
	}, clock.Time(2)))
	rel, err := reg.Interest("people", clock.Time(2))
	require.NoError(t, err)
	require.Len(t, rel.Rows, 2)
}
