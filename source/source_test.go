package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/value"
)

func TestJSONFileIngestGroupsByKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	content := `{"name":"Alice","admin?":true}` + "\n" + `{"name":"Bob","admin?":false}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	facts, err := JSONFile{Path: path}.Ingest()
	require.NoError(t, err)
	require.Len(t, facts["name"], 2)
	require.Len(t, facts["admin?"], 2)
	require.True(t, facts["name"][0].Value.Equal(value.NewString("Alice")))
	require.Equal(t, value.Entity(1), facts["name"][0].Entity)
	require.True(t, facts["admin?"][1].Value.Equal(value.NewBoolean(false)))
}

func TestJSONFileIngestSkipsNonScalar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	content := `{"name":"Alice","tags":["a","b"]}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	facts, err := JSONFile{Path: path}.Ingest()
	require.NoError(t, err)
	require.Len(t, facts["name"], 1)
	require.NotContains(t, facts, "tags")
}

func TestCSVFileIngestMapsSchemaColumns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	content := "full_name,years\nAlice,30\nBob,40\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	facts, err := CSVFile{Path: path, Schema: map[string]string{"full_name": "name"}}.Ingest()
	require.NoError(t, err)
	require.Len(t, facts["name"], 2)
	require.NotContains(t, facts, "years")
	require.True(t, facts["name"][0].Value.Equal(value.NewString("Alice")))
	require.Equal(t, value.Entity(1), facts["name"][0].Entity)
	require.Equal(t, value.Entity(2), facts["name"][1].Entity)
}

func TestManagerRegisterSourceCreatesAttributeAndCommits(t *testing.T) {
	store, err := attribute.Open("", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Alice"}`+"\n"), 0o644))

	committer := &fakeCommitter{}
	mgr := NewManager(store, committer)
	require.NoError(t, mgr.RegisterSource([]string{"people-feed"}, "json-file", path, nil))

	_, ok := store.Attribute("name")
	require.True(t, ok)
	require.Len(t, committer.committed["name"], 1)

	require.NoError(t, mgr.CloseInput("people-feed"))
	err = mgr.CloseInput("people-feed")
	require.Error(t, err)
	var unknown *ErrUnknownInput
	require.ErrorAs(t, err, &unknown)
}

type fakeCommitter struct {
	committed map[string][]attribute.Fact
}

func (f *fakeCommitter) CommitFacts(attr string, facts []attribute.Fact, key value.Value) error {
	if f.committed == nil {
		f.committed = make(map[string][]attribute.Fact)
	}
	f.committed[attr] = append(f.committed[attr], facts...)
	return nil
}
