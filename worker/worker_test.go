package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/registry"
	"github.com/wbrown/hectordb/value"
)

const (
	symE value.Symbol = iota
	symV
)

func TestSequencerMonotonicAndBroadcast(t *testing.T) {
	seq := NewSequencer()
	sub := seq.Subscribe()

	a := seq.Next()
	b := seq.Next()
	require.Equal(t, a+1, b)
	require.Equal(t, a, <-sub)
	require.Equal(t, b, <-sub)
}

func TestExchangeOwnerDeterministicAndSpread(t *testing.T) {
	ex := NewExchange(4)
	e1 := ex.Owner(value.NewEntity(1))
	require.Equal(t, e1, ex.Owner(value.NewEntity(1)))

	seen := make(map[int]bool)
	for i := value.Entity(0); i < 64; i++ {
		seen[ex.Owner(value.NewEntity(i))] = true
	}
	require.Greater(t, len(seen), 1, "64 distinct entities should spread across more than one worker")
}

func TestPoolAppliesCommandsInOrder(t *testing.T) {
	store, err := attribute.Open("", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.CreateAttribute("name", attribute.Raw)
	require.NoError(t, err)

	reg := registry.New(store)
	pool := NewPool(3, store, reg)

	ctx, cancel := context.WithCancel(context.Background())
	g := pool.Start(ctx)

	res := pool.SubmitKeyed(TransactCmd{
		Attribute: "name",
		Facts:     []attribute.Fact{{Entity: 1, Value: value.NewString("Alice"), Diff: 1}},
	}, value.NewEntity(1))
	require.NoError(t, res.Err)

	res = pool.Submit(RegisterCmd{Rules: []registry.Rule{
		{Name: "people", Plan: &plan.Attribute{E: symE, V: symV, Attribute: "name"}},
	}}, nil)
	require.NoError(t, res.Err)

	res = pool.Submit(InterestCmd{Name: "people"}, nil)
	require.NoError(t, res.Err)
	require.Len(t, res.Relation.Rows, 1)

	stats := pool.Stats()
	total := 0
	for _, n := range stats {
		total += n
	}
	require.Equal(t, 3, total)

	pool.Close()
	cancel()
	_ = g.Wait()
}
