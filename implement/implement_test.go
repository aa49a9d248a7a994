package implement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/plan"
	"github.com/wbrown/hectordb/value"
)

const (
	symName value.Symbol = iota
	symAge
	symFriend
	symE
	symF
)

func openTestStore(t *testing.T) *attribute.Store {
	t.Helper()
	s, err := attribute.Open("", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedPeople(t *testing.T, s *attribute.Store) {
	t.Helper()
	_, err := s.CreateAttribute("name", attribute.Raw)
	require.NoError(t, err)
	_, err = s.CreateAttribute("age", attribute.Raw)
	require.NoError(t, err)
	_, err = s.CreateAttribute("friend", attribute.Raw)
	require.NoError(t, err)

	require.NoError(t, s.Transact("name", []attribute.Fact{
		{Entity: 1, Value: value.NewString("Alice"), Diff: 1},
		{Entity: 2, Value: value.NewString("Bob"), Diff: 1},
	}, 1))
	require.NoError(t, s.Transact("age", []attribute.Fact{
		{Entity: 1, Value: value.NewNumber(30), Diff: 1},
		{Entity: 2, Value: value.NewNumber(25), Diff: 1},
	}, 1))
	require.NoError(t, s.Transact("friend", []attribute.Fact{
		{Entity: 1, Value: value.NewEntity(2), Diff: 1},
	}, 1))
}

func TestImplementAttributeScan(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	rel, err := Implement(&Context{Store: s}, clock.Time(1), &plan.Attribute{E: symE, V: symName, Attribute: "name"})
	require.NoError(t, err)
	require.ElementsMatch(t, value.Vector{symE, symName}, rel.Vars)
	require.Len(t, rel.Rows, 2)
}

func TestImplementMatchAV(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	rel, err := Implement(&Context{Store: s}, clock.Time(1), &plan.MatchAV{
		E: symE, Attribute: "name", Value: value.NewString("Alice"),
	})
	require.NoError(t, err)
	require.Len(t, rel.Rows, 1)
	require.True(t, rel.Rows[0].Tuple[0].Equal(value.NewEntity(1)))
}

func TestImplementJoin(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	nameNode := &plan.Attribute{E: symE, V: symName, Attribute: "name"}
	ageNode := &plan.Attribute{E: symE, V: symAge, Attribute: "age"}
	joined := &plan.Join{Left: nameNode, Right: ageNode}

	rel, err := Implement(&Context{Store: s}, clock.Time(1), joined)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 2)
	require.True(t, rel.Vars.Contains(symE))
	require.True(t, rel.Vars.Contains(symName))
	require.True(t, rel.Vars.Contains(symAge))
}

func TestImplementFilter(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	ageNode := &plan.Attribute{E: symE, V: symAge, Attribute: "age"}
	thirty := value.NewNumber(28)
	filtered := &plan.Filter{
		Child:      ageNode,
		Predicate:  plan.GT,
		Left:       symAge,
		RightConst: &thirty,
	}

	rel, err := Implement(&Context{Store: s}, clock.Time(1), filtered)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 1)
	require.True(t, rel.Rows[0].Tuple[rel.Vars.IndexOf(symAge)].Equal(value.NewNumber(30)))
}

func TestImplementProjectConsolidates(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	ageNode := &plan.Attribute{E: symE, V: symAge, Attribute: "age"}
	projected := &plan.Project{Child: ageNode, Vars: value.Vector{symE}}

	rel, err := Implement(&Context{Store: s}, clock.Time(1), projected)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 2)
}

func TestImplementUnion(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	a := &plan.MatchAV{E: symE, Attribute: "name", Value: value.NewString("Alice")}
	b := &plan.MatchAV{E: symE, Attribute: "name", Value: value.NewString("Bob")}
	u := &plan.Union{Vars: value.Vector{symE}, Children: []plan.Node{a, b}}

	rel, err := Implement(&Context{Store: s}, clock.Time(1), u)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 2)
}

func TestImplementPullOneLevel(t *testing.T) {
	s := openTestStore(t)
	seedPeople(t, s)

	root := &plan.Attribute{E: symE, V: symName, Attribute: "name"}
	entities := &plan.Project{Child: root, Vars: value.Vector{symE}}

	p := &plan.Pull{
		Root: root,
		Vars: value.Vector{symE, symF, symAge},
		Levels: []plan.PullLevel{
			{Child: entities, PullAttributes: []string{"age"}, Path: value.Vector{symE, symF, symAge}},
		},
	}

	rel, err := Implement(&Context{Store: s}, clock.Time(1), p)
	require.NoError(t, err)
	require.Len(t, rel.Rows, 2)
}
