package source

import (
	"fmt"
	"sync"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/value"
)

// Ingestor is anything Ingest()-able: JSONFile and CSVFile both satisfy
// this, and RegisterSource dispatches on the wire-level "kind" tag to
// pick one.
type Ingestor interface {
	Ingest() (map[string][]attribute.Fact, error)
}

// Committer is the subset of submission a Manager needs to land
// ingested facts: worker.Pool.CommitFacts has this shape, so a live
// server wires a Manager straight to its Pool without either package
// importing the other.
type Committer interface {
	CommitFacts(attr string, facts []attribute.Fact, key value.Value) error
}

// ErrUnknownInput reports a close-input request naming a source that
// was never registered.
type ErrUnknownInput struct{ Name string }

func (e *ErrUnknownInput) Error() string {
	return fmt.Sprintf("source: unknown input %q", e.Name)
}

// Manager tracks registered file sources by name, so a later
// close-input request can find and stop one. Ingestion here is a
// one-shot read-the-whole-file-now operation (file sources in spec.md
// §6 are bounded, not a tailed stream), so "stop" just forgets the name.
type Manager struct {
	mu     sync.Mutex
	active map[string]bool
	commit Committer
	store  *attribute.Store
}

// NewManager builds a Manager that lands ingested facts via commit and
// auto-creates missing attributes (Raw semantics) against store.
func NewManager(store *attribute.Store, commit Committer) *Manager {
	return &Manager{active: make(map[string]bool), commit: commit, store: store}
}

// RegisterSource ingests kind/path (optionally schema-mapped for CSV)
// under the given names, creating any attribute that doesn't already
// exist and committing every discovered fact through the Committer --
// ordinarily a worker.Pool, so the commit gets its own sequenced time
// like any other write, rather than the caller stamping one itself.
func (m *Manager) RegisterSource(names []string, kind, path string, schema map[string]string) error {
	var src Ingestor
	switch kind {
	case "json-file":
		src = JSONFile{Path: path}
	case "csv-file":
		src = CSVFile{Path: path, Schema: schema}
	default:
		return fmt.Errorf("source: unknown kind %q", kind)
	}

	facts, err := src.Ingest()
	if err != nil {
		return err
	}
	if err := EnsureAttributes(m.store, facts); err != nil {
		return err
	}
	for attr, fs := range facts {
		if len(fs) == 0 {
			continue
		}
		if err := m.commit.CommitFacts(attr, fs, value.NewEntity(fs[0].Entity)); err != nil {
			return err
		}
	}

	m.mu.Lock()
	for _, n := range names {
		m.active[n] = true
	}
	m.mu.Unlock()
	return nil
}

// CloseInput forgets a registered source name.
func (m *Manager) CloseInput(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active[name] {
		return &ErrUnknownInput{Name: name}
	}
	delete(m.active, name)
	return nil
}
