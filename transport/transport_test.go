package transport

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/registry"
	"github.com/wbrown/hectordb/source"
	"github.com/wbrown/hectordb/worker"
)

func newTestPool(t *testing.T) (*worker.Pool, *attribute.Store, func()) {
	t.Helper()
	store, err := attribute.Open("", false)
	require.NoError(t, err)
	reg := registry.New(store)
	pool := worker.NewPool(2, store, reg)
	ctx, cancel := context.WithCancel(context.Background())
	g := pool.Start(ctx)
	cleanup := func() {
		pool.Close()
		cancel()
		_ = g.Wait()
		_ = store.Close()
	}
	return pool, store, cleanup
}

func TestSocketHandleCreateAttributeTransactInterest(t *testing.T) {
	pool, store, cleanup := newTestPool(t)
	defer cleanup()
	s := NewSocket(pool, source.NewManager(store, pool))

	frame, fatal := s.handle([]byte(`{"type":"create-attribute","body":{"name":"name","semantics":"Raw"}}`))
	require.False(t, fatal)
	require.Nil(t, frame)

	frame, fatal = s.handle([]byte(`{
		"type": "transact",
		"body": {"tx_data": [[1, 1, "name", "Alice"]]}
	}`))
	require.False(t, fatal)
	require.Nil(t, frame)

	frame, fatal = s.handle([]byte(`{
		"type": "register",
		"body": {"rules": [{"name": "people", "plan": {"type": "attribute", "e": 0, "v": 1, "attribute": "name"}}]}
	}`))
	require.False(t, fatal)
	require.Nil(t, frame)

	frame, fatal = s.handle([]byte(`{"type": "interest", "body": {"name": "people"}}`))
	require.False(t, fatal)
	require.NotNil(t, frame)
	require.Contains(t, string(frame), "Alice")
}

func TestSocketHandleUnknownTypeReportsClientFault(t *testing.T) {
	pool, store, cleanup := newTestPool(t)
	defer cleanup()
	s := NewSocket(pool, source.NewManager(store, pool))

	frame, fatal := s.handle([]byte(`{"type": "bogus", "body": {}}`))
	require.False(t, fatal)
	require.Contains(t, string(frame), `"category":"client"`)
}

func TestSocketHandleUnknownInterestReportsNotFound(t *testing.T) {
	pool, store, cleanup := newTestPool(t)
	defer cleanup()
	s := NewSocket(pool, source.NewManager(store, pool))

	frame, fatal := s.handle([]byte(`{"type": "interest", "body": {"name": "nope"}}`))
	require.False(t, fatal)
	require.Contains(t, string(frame), `"category":"not-found"`)
}

func TestSocketHandleRegisterSourceAndCloseInput(t *testing.T) {
	pool, store, cleanup := newTestPool(t)
	defer cleanup()
	s := NewSocket(pool, source.NewManager(store, pool))

	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Alice"}`+"\n"+`{"name":"Bob"}`+"\n"), 0o644))

	req := []byte(`{"type":"register-source","body":{"names":["people-feed"],"source":{"kind":"json-file","path":"` + path + `"}}}`)
	frame, fatal := s.handle(req)
	require.False(t, fatal)
	require.Nil(t, frame)

	_, ok := store.Attribute("name")
	require.True(t, ok)

	frame, fatal = s.handle([]byte(`{"type":"close-input","body":{"name":"people-feed"}}`))
	require.False(t, fatal)
	require.Nil(t, frame)

	frame, fatal = s.handle([]byte(`{"type":"close-input","body":{"name":"people-feed"}}`))
	require.False(t, fatal)
	require.Contains(t, string(frame), `"category":"not-found"`)
}

func TestCLIRunRoundTrip(t *testing.T) {
	pool, store, cleanup := newTestPool(t)
	defer cleanup()

	script := strings.Join([]string{
		`{"type":"create-attribute","body":{"name":"name","semantics":"Raw"}}`,
		`{"type":"transact","body":{"tx_data":[[1, 1, "name", "Alice"]]}}`,
		`{"type":"register","body":{"rules":[{"name":"people","plan":{"type":"attribute","e":0,"v":1,"attribute":"name"}}]}}`,
		`{"type":"interest","body":{"name":"people"}}`,
		".exit",
	}, "\n")

	var out bytes.Buffer
	cli := NewCLI(pool, source.NewManager(store, pool), strings.NewReader(script), &out)
	cli.Run()

	require.Contains(t, out.String(), "Alice")
	require.Contains(t, out.String(), "rows")
}

func TestCLIRunReportsFaultOnUnknownCommand(t *testing.T) {
	pool, store, cleanup := newTestPool(t)
	defer cleanup()

	var out bytes.Buffer
	cli := NewCLI(pool, source.NewManager(store, pool), strings.NewReader(`{"type":"bogus","body":{}}`+"\n.exit"), &out)
	cli.Run()

	require.Contains(t, out.String(), "client")
}
