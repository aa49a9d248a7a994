package attribute

import (
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/value"
)

// Fact is a single caller-supplied update: a diff of +1 asserts
// (entity, value), -1 retracts it.
type Fact struct {
	Entity value.Entity
	Value  value.Value
	Diff   int64
}

// Attribute is a named triple-store column: three independently
// advanceable indices (forward, reverse, validate) over the same
// underlying (entity, value, time, diff) updates.
type Attribute struct {
	Name      string
	Semantics Semantics

	forward  *index
	reverse  *index
	validate *index

	mu       sync.RWMutex
	frontier clock.Frontier // input frontier: no update below this time will ever arrive again
}

// Forward exposes the entity -> value index.
func (a *Attribute) Forward() Index { return a.forward }

// Reverse exposes the value -> entity index.
func (a *Attribute) Reverse() Index { return a.reverse }

// Validate exposes the (entity, value) -> unit index.
func (a *Attribute) Validate() Index { return a.validate }

// Frontier reports the attribute's current input frontier.
func (a *Attribute) Frontier() clock.Frontier {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.frontier
}

// Store is the attribute store / domain: a named collection of
// Attributes, each backed by the store's shared embedded badger
// database.
type Store struct {
	db *badger.DB

	mu   sync.RWMutex
	attr map[string]*Attribute

	historyEnabled bool
}

// Open creates a Store. An empty path opens badger in-memory; a non-empty
// path opens (or creates) an on-disk database at that directory. Either
// way, the store never promises durability across restarts -- see
// SPEC_FULL.md §4.1.
func Open(path string, historyEnabled bool) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("attribute: open badger: %w", err)
	}
	return &Store{
		db:             db,
		attr:           make(map[string]*Attribute),
		historyEnabled: historyEnabled,
	}, nil
}

// Close releases the underlying badger database.
func (s *Store) Close() error { return s.db.Close() }

// ErrConflict is returned by CreateAttribute when name already exists
// with different semantics.
type ErrConflict struct{ Name string }

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("attribute: %q already exists with different semantics", e.Name)
}

// CreateAttribute instantiates the three indices for name, idempotent
// per name: re-creating with the same semantics is a no-op; a different
// semantics is rejected.
func (s *Store) CreateAttribute(name string, sem Semantics) (*Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.attr[name]; ok {
		if existing.Semantics != sem {
			return nil, &ErrConflict{Name: name}
		}
		return existing, nil
	}

	a := &Attribute{
		Name:      name,
		Semantics: sem,
		forward:   newIndex(s.db, name, shapeForward),
		reverse:   newIndex(s.db, name, shapeReverse),
		validate:  newIndex(s.db, name, shapeValidate),
	}
	s.attr[name] = a
	return a, nil
}

// Attribute looks up an already-created attribute.
func (s *Store) Attribute(name string) (*Attribute, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attr[name]
	return a, ok
}

// Transact appends facts to name at logical time t, applying the
// attribute's semantics transform first. Returns an error for an unknown
// attribute or a failed write.
func (s *Store) Transact(name string, facts []Fact, t clock.Time) error {
	a, ok := s.Attribute(name)
	if !ok {
		return fmt.Errorf("attribute: unknown attribute %q", name)
	}

	resolved, err := s.applySemantics(a, facts, t)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		for _, f := range resolved {
			eb := value.EncodeEntity(f.Entity)
			vb := value.Encode(f.Value)
			if err := a.forward.put(txn, eb, vb, t, f.Diff); err != nil {
				return err
			}
			if err := a.reverse.put(txn, vb, eb, t, f.Diff); err != nil {
				return err
			}
			if err := a.validate.put(txn, append(append([]byte{}, eb...), vb...), nil, t, f.Diff); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("attribute: transact %q: %w", name, err)
	}

	a.mu.Lock()
	if t > a.frontier.Time() {
		a.frontier = clock.NewFrontier(t)
	}
	a.mu.Unlock()
	return nil
}

// applySemantics transforms raw facts per the attribute's Semantics
// before they reach the indices. Raw passes through unchanged; Set
// clamps multiplicity to {0,1} by checking the current validate index
// and the facts earlier in the same batch; CardinalityOne retracts every
// other value the forward index holds for the entity at t before
// inserting the new one. Several assertions for one entity within a
// single CardinalityOne batch are each inserted; no tie-break picks one
// of them.
func (s *Store) applySemantics(a *Attribute, facts []Fact, t clock.Time) ([]Fact, error) {
	switch a.Semantics {
	case Raw:
		return facts, nil

	case Set:
		out := make([]Fact, 0, len(facts))
		pending := make(map[string]bool)
		for _, f := range facts {
			k := string(append(value.EncodeEntity(f.Entity), value.Encode(f.Value)...))
			present, seen := pending[k]
			if !seen {
				var err error
				if present, err = a.validate.Validate(f.Entity, f.Value, t); err != nil {
					return nil, err
				}
			}
			switch {
			case f.Diff > 0 && present:
				// already asserted: no-op
			case f.Diff < 0 && !present:
				// nothing to retract: no-op
			default:
				diff := int64(1)
				if f.Diff < 0 {
					diff = -1
				}
				out = append(out, Fact{Entity: f.Entity, Value: f.Value, Diff: diff})
				present = diff > 0
			}
			pending[k] = present
		}
		return out, nil

	case CardinalityOne:
		out := make([]Fact, 0, len(facts)*2)
		for _, f := range facts {
			if f.Diff > 0 {
				prior, err := a.forward.Propose(value.EncodeEntity(f.Entity), t)
				if err != nil {
					return nil, err
				}
				for _, p := range prior {
					if p.Value.Equal(f.Value) {
						continue
					}
					out = append(out, Fact{Entity: f.Entity, Value: p.Value, Diff: -1})
				}
			}
			out = append(out, f)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("attribute: unknown semantics %v", a.Semantics)
	}
}

// AdvanceTo moves every known attribute's input frontier to t and, when
// history is disabled, advances each index's compaction target to t-1
// and triggers a best-effort physical compaction.
func (s *Store) AdvanceTo(t clock.Time) error {
	s.mu.RLock()
	attrs := make([]*Attribute, 0, len(s.attr))
	for _, a := range s.attr {
		attrs = append(attrs, a)
	}
	s.mu.RUnlock()

	for _, a := range attrs {
		a.mu.Lock()
		if t > a.frontier.Time() {
			a.frontier = clock.NewFrontier(t)
		}
		a.mu.Unlock()

		if s.historyEnabled || t == 0 {
			continue
		}
		compactTo := t - 1
		a.forward.AdvanceBy(compactTo)
		a.reverse.AdvanceBy(compactTo)
		a.validate.AdvanceBy(compactTo)
		if err := a.forward.Compact(); err != nil {
			return err
		}
		if err := a.reverse.Compact(); err != nil {
			return err
		}
		if err := a.validate.Compact(); err != nil {
			return err
		}
	}
	return nil
}
