package attribute

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/value"
)

func openTestStore(t *testing.T, history bool) *Store {
	t.Helper()
	s, err := Open("", history)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAttributeIdempotent(t *testing.T) {
	s := openTestStore(t, false)

	a1, err := s.CreateAttribute("age", Raw)
	require.NoError(t, err)

	a2, err := s.CreateAttribute("age", Raw)
	require.NoError(t, err)
	require.Same(t, a1, a2)

	_, err = s.CreateAttribute("age", Set)
	require.Error(t, err)
	var conflict *ErrConflict
	require.ErrorAs(t, err, &conflict)
}

func TestTransactAndForwardIndex(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateAttribute("name", Raw)
	require.NoError(t, err)

	e := value.Entity(100)
	err = s.Transact("name", []Fact{
		{Entity: e, Value: value.NewString("Mabel"), Diff: 1},
	}, clock.Time(1))
	require.NoError(t, err)

	a, _ := s.Attribute("name")
	got, err := a.Forward().Propose(value.EncodeEntity(e), clock.Time(1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Mabel", got[0].Value.AsString())

	ok, err := a.Validate().Validate(e, value.NewString("Mabel"), clock.Time(1))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSetSemanticsClampsMultiplicity(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateAttribute("tag", Set)
	require.NoError(t, err)
	a, _ := s.Attribute("tag")

	e := value.Entity(1)
	v := value.NewString("admin")

	require.NoError(t, s.Transact("tag", []Fact{{Entity: e, Value: v, Diff: 1}}, 1))
	require.NoError(t, s.Transact("tag", []Fact{{Entity: e, Value: v, Diff: 1}}, 2))

	present, err := a.Validate().Validate(e, v, 2)
	require.NoError(t, err)
	require.True(t, present)

	require.NoError(t, s.Transact("tag", []Fact{{Entity: e, Value: v, Diff: -1}}, 3))
	present, err = a.Validate().Validate(e, v, 3)
	require.NoError(t, err)
	require.False(t, present)
}

func TestCardinalityOneRetractsPrevious(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateAttribute("status", CardinalityOne)
	require.NoError(t, err)
	a, _ := s.Attribute("status")

	e := value.Entity(1)
	require.NoError(t, s.Transact("status", []Fact{
		{Entity: e, Value: value.NewString("pending"), Diff: 1},
	}, 1))
	require.NoError(t, s.Transact("status", []Fact{
		{Entity: e, Value: value.NewString("active"), Diff: 1},
	}, 2))

	got, err := a.Forward().Propose(value.EncodeEntity(e), 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "active", got[0].Value.AsString())
}

func TestAdvanceToMovesFrontier(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateAttribute("x", Raw)
	require.NoError(t, err)
	a, _ := s.Attribute("x")

	require.NoError(t, s.Transact("x", []Fact{
		{Entity: 1, Value: value.NewNumber(1), Diff: 1},
	}, 5))
	require.NoError(t, s.AdvanceTo(10))
	require.Equal(t, clock.Time(10), a.Frontier().Time())
}

// With history disabled, AdvanceTo(10) sets the compaction target to 9
// and folds every entry at or before it forward onto time 9. Facts
// written before the target and at it are both still counted correctly
// at any asOf >= 9.
func TestAdvanceToCompactsBelowFrontierHistoryDisabled(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateAttribute("score", Raw)
	require.NoError(t, err)
	a, _ := s.Attribute("score")

	require.NoError(t, s.Transact("score", []Fact{
		{Entity: 1, Value: value.NewNumber(10), Diff: 1},
	}, 3))
	require.NoError(t, s.Transact("score", []Fact{
		{Entity: 2, Value: value.NewNumber(20), Diff: 1},
	}, 9))

	before, err := a.Forward().Count(value.EncodeEntity(1), 9)
	require.NoError(t, err)
	require.Equal(t, 1, before)

	require.NoError(t, s.AdvanceTo(10))

	atFrontier, err := a.Forward().Count(value.EncodeEntity(2), 9)
	require.NoError(t, err)
	require.Equal(t, 1, atFrontier, "entry written at or after the compaction target is still visible")

	atTen, err := a.Forward().Count(value.EncodeEntity(2), 10)
	require.NoError(t, err)
	require.Equal(t, 1, atTen)

	stale, err := a.Forward().Count(value.EncodeEntity(1), 9)
	require.NoError(t, err)
	require.Equal(t, 1, stale, "entry written strictly before the compaction target is folded forward, not dropped")
}

// Advancing the compaction frontier must never change what a query
// sees at or above the frontier it advances to -- only queries below it
// are put at risk.
func TestCompactionIsMonotoneAtOrAboveFrontier(t *testing.T) {
	s := openTestStore(t, false)
	_, err := s.CreateAttribute("tag", Raw)
	require.NoError(t, err)
	a, _ := s.Attribute("tag")

	require.NoError(t, s.Transact("tag", []Fact{
		{Entity: 1, Value: value.NewString("alive"), Diff: 1},
	}, 10))

	wantCount, err := a.Forward().Count(value.EncodeEntity(1), 10)
	require.NoError(t, err)
	require.Equal(t, 1, wantCount)

	require.NoError(t, s.AdvanceTo(10))

	gotAtFrontier, err := a.Forward().Count(value.EncodeEntity(1), 10)
	require.NoError(t, err)
	require.Equal(t, wantCount, gotAtFrontier)

	gotAboveFrontier, err := a.Forward().Count(value.EncodeEntity(1), 12)
	require.NoError(t, err)
	require.Equal(t, wantCount, gotAboveFrontier)

	require.NoError(t, s.AdvanceTo(11))
	gotAfterSecondAdvance, err := a.Forward().Count(value.EncodeEntity(1), 10)
	require.NoError(t, err)
	require.Equal(t, wantCount, gotAfterSecondAdvance, "a second, further advance must not retroactively change a still-at-or-above-frontier read")
}
