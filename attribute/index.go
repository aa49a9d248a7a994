package attribute

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/value"
)

// Index is the read surface the hector and implement packages compile
// against: the count/propose/validate contract shared by all three index
// shapes, exposed without exposing the unexported *index type itself.
// keyBytes is always the index's own leading component -- an entity for
// forward/validate, a value for reverse.
type Index interface {
	Count(keyBytes []byte, asOf clock.Time) (int, error)
	Propose(keyBytes []byte, asOf clock.Time) ([]Entry, error)
	Validate(e value.Entity, v value.Value, asOf clock.Time) (bool, error)
	ScanAll(asOf clock.Time) ([]Entry, error)

	// CountAt, ProposeAt and ValidateAt read under an AltNeu cutoff rather
	// than a plain Time: entries strictly before cutoff.Outer are always
	// visible, entries exactly at cutoff.Outer only when cutoff.Neu is
	// true. The hector package uses these to give delta driver i an
	// "alt" (exclusive) view of bindings with a smaller index and a
	// "neu" (inclusive) view of bindings with a larger one.
	CountAt(keyBytes []byte, cutoff clock.AltNeu) (int, error)
	ProposeAt(keyBytes []byte, cutoff clock.AltNeu) ([]Entry, error)
	ValidateAt(e value.Entity, v value.Value, cutoff clock.AltNeu) (bool, error)

	// DeltaAt returns the groups under keyBytes whose diff accumulated at
	// exactly time t is non-zero -- the set of changes a delta-join
	// driver round actually propagates, as opposed to accumulated state.
	DeltaAt(keyBytes []byte, t clock.Time) ([]Entry, error)
}

// Entry is the exported alias of the internal entry type, returned by
// Propose to callers outside this package.
type Entry = entry

// shape identifies one of the three index shapes an attribute maintains.
type shape byte

const (
	shapeForward  shape = 'F' // entity -> value
	shapeReverse  shape = 'R' // value -> entity
	shapeValidate shape = 'V' // (entity, value) -> unit
)

// index is a single attribute's view over one of the three shapes,
// backed by a shared badger.DB keyed under this attribute's name and
// this shape's tag. Each index tracks its own compaction and
// distinguish frontiers independently, per the spec's "each carrying an
// independently advanceable compaction frontier".
type index struct {
	db     *badger.DB
	prefix []byte // attrName | shape tag
	// major reports whether this shape's leading key component (right
	// after prefix) is the entity (forward, validate) or the value
	// (reverse).
	major bool

	distinguishSince clock.Frontier // earliest time a reader may subset to
	advanceBy        clock.Frontier // physical compaction target
}

func newIndex(db *badger.DB, attrName string, s shape) *index {
	p := make([]byte, 0, len(attrName)+2)
	p = append(p, []byte(attrName)...)
	p = append(p, 0, byte(s))
	return &index{db: db, prefix: p, major: s != shapeReverse}
}

// entry is one decoded (key, value, time, diff) row from an index.
type entry struct {
	Entity value.Entity
	Value  value.Value
	Time   clock.Time
	Diff   int64
}

// Release implements arrangement.Backing. Attribute indices live for the
// process, so registering one in the arrangement registry never releases
// storage early -- only the attribute store itself owns that lifetime.
func (ix *index) Release() {}

// put writes one raw update under this index's shape-specific key
// layout. keyBytes is the shape's own key ordering (entity-major for
// forward/validate, value-major for reverse); valueBytes is whichever
// half keyBytes omits.
func (ix *index) put(txn *badger.Txn, keyBytes, valueBytes []byte, t clock.Time, diff int64) error {
	k := make([]byte, 0, len(ix.prefix)+len(keyBytes)+len(valueBytes)+8)
	k = append(k, ix.prefix...)
	k = append(k, keyBytes...)
	k = append(k, valueBytes...)
	k = append(k, t.Encode()...)

	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(diff))
	return txn.Set(k, v)
}

// decodeRow splits one stored key (minus the fixed prefix) into its
// (entity, value, time) components according to ix.major.
func (ix *index) decodeRow(rest []byte) (value.Entity, value.Value, clock.Time, error) {
	timeBytes := rest[len(rest)-8:]
	body := rest[:len(rest)-8]
	t := clock.DecodeTime(timeBytes)

	if ix.major {
		e := value.DecodeEntity(body[:8])
		v, n, err := value.Decode(body[8:])
		if err != nil {
			return 0, value.Value{}, 0, fmt.Errorf("attribute: decode value: %w", err)
		}
		if n != len(body)-8 {
			return 0, value.Value{}, 0, fmt.Errorf("attribute: trailing bytes after value")
		}
		return e, v, t, nil
	}
	v, n, err := value.Decode(body)
	if err != nil {
		return 0, value.Value{}, 0, fmt.Errorf("attribute: decode value: %w", err)
	}
	e := value.DecodeEntity(body[n:])
	return e, v, t, nil
}

// scanGroups iterates every entry whose key starts with prefix ++
// keyBytes and sums the diff of entries for which include(t) holds,
// grouped by the trailing component.
func (ix *index) scanGroups(keyBytes []byte, include func(clock.Time) bool) (map[string]*entry, error) {
	groups := make(map[string]*entry)
	prefix := append(append([]byte{}, ix.prefix...), keyBytes...)

	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			rest := key[len(ix.prefix):]

			e, v, t, err := ix.decodeRow(rest)
			if err != nil {
				return err
			}
			if !include(t) {
				continue
			}

			var diff int64
			if err := item.Value(func(val []byte) error {
				diff = int64(binary.BigEndian.Uint64(val))
				return nil
			}); err != nil {
				return err
			}

			gk := v.String() + "|" + fmt.Sprint(e)
			g, ok := groups[gk]
			if !ok {
				g = &entry{Entity: e, Value: v}
				groups[gk] = g
			}
			g.Diff += diff
		}
		return nil
	})
	return groups, err
}

func asOfInclude(asOf clock.Time) func(clock.Time) bool {
	return func(t clock.Time) bool { return t <= asOf }
}

// altNeuInclude admits entries strictly before cutoff.Outer always, and
// entries exactly at cutoff.Outer only when cutoff.Neu is true.
func altNeuInclude(cutoff clock.AltNeu) func(clock.Time) bool {
	return func(t clock.Time) bool {
		if t < cutoff.Outer {
			return true
		}
		if t == cutoff.Outer {
			return cutoff.Neu
		}
		return false
	}
}

func exactInclude(target clock.Time) func(clock.Time) bool {
	return func(t clock.Time) bool { return t == target }
}

// Count returns the number of distinct (entity, value) groups under
// keyBytes with strictly positive accumulated diff at asOf -- the
// "count" projection the Hector extender's counting phase relies on.
func (ix *index) Count(keyBytes []byte, asOf clock.Time) (int, error) {
	return ix.countWith(keyBytes, asOfInclude(asOf))
}

// Propose returns every live extension under keyBytes with strictly
// positive accumulated diff at asOf.
func (ix *index) Propose(keyBytes []byte, asOf clock.Time) ([]entry, error) {
	return ix.proposeWith(keyBytes, asOfInclude(asOf))
}

// CountAt is Count under an AltNeu cutoff rather than a plain Time.
func (ix *index) CountAt(keyBytes []byte, cutoff clock.AltNeu) (int, error) {
	return ix.countWith(keyBytes, altNeuInclude(cutoff))
}

// ProposeAt is Propose under an AltNeu cutoff rather than a plain Time.
func (ix *index) ProposeAt(keyBytes []byte, cutoff clock.AltNeu) ([]entry, error) {
	return ix.proposeWith(keyBytes, altNeuInclude(cutoff))
}

// DeltaAt returns the groups under keyBytes whose diff accumulated at
// exactly time t is non-zero -- positive for an assertion, negative for
// a retraction.
func (ix *index) DeltaAt(keyBytes []byte, t clock.Time) ([]entry, error) {
	groups, err := ix.scanGroups(keyBytes, exactInclude(t))
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, g := range groups {
		if g.Diff != 0 {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (ix *index) countWith(keyBytes []byte, include func(clock.Time) bool) (int, error) {
	groups, err := ix.scanGroups(keyBytes, include)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, g := range groups {
		if g.Diff > 0 {
			n++
		}
	}
	return n, nil
}

func (ix *index) proposeWith(keyBytes []byte, include func(clock.Time) bool) ([]entry, error) {
	groups, err := ix.scanGroups(keyBytes, include)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, g := range groups {
		if g.Diff > 0 {
			out = append(out, *g)
		}
	}
	return out, nil
}

// ScanAll returns every live (entity, value) pair in this index at asOf,
// used by MatchA-style full attribute scans.
func (ix *index) ScanAll(asOf clock.Time) ([]entry, error) {
	return ix.Propose(nil, asOf)
}

// Validate reports whether the single (entity, value) pair has strictly
// positive accumulated diff at asOf. Unlike Count/Propose, the pair is
// already fully determined, so this sums diffs directly instead of
// grouping by a decoded trailing component.
func (ix *index) Validate(e value.Entity, v value.Value, asOf clock.Time) (bool, error) {
	return ix.validateWith(e, v, asOfInclude(asOf))
}

// ValidateAt is Validate under an AltNeu cutoff rather than a plain Time.
func (ix *index) ValidateAt(e value.Entity, v value.Value, cutoff clock.AltNeu) (bool, error) {
	return ix.validateWith(e, v, altNeuInclude(cutoff))
}

func (ix *index) validateWith(e value.Entity, v value.Value, include func(clock.Time) bool) (bool, error) {
	exact := append(append([]byte{}, value.EncodeEntity(e)...), value.Encode(v)...)
	prefix := append(append([]byte{}, ix.prefix...), exact...)

	var total int64
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			t := clock.DecodeTime(key[len(key)-8:])
			if !include(t) {
				continue
			}
			if err := item.Value(func(val []byte) error {
				total += int64(binary.BigEndian.Uint64(val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return total > 0, err
}

// AdvanceDistinguishSince raises the frontier below which subsetting is
// disallowed; it can only move forward.
func (ix *index) AdvanceDistinguishSince(t clock.Time) {
	if t > ix.distinguishSince.Time() {
		ix.distinguishSince = clock.NewFrontier(t)
	}
}

// AdvanceBy raises the physical-compaction target. Callers must not
// advance it past any live reader's distinguish frontier.
func (ix *index) AdvanceBy(t clock.Time) {
	if t > ix.advanceBy.Time() {
		ix.advanceBy = clock.NewFrontier(t)
	}
}

// Compact folds every entry at or below advanceBy forward onto advanceBy
// itself: entries with the same (entity, value) key are summed into one
// entry stamped with the target time, and sums of zero are dropped, all
// in a single badger transaction. Reads at or above the target see the
// same accumulated diffs as before; reads below it may not. It is safe
// to call eagerly; compaction is best-effort and never required for
// correctness of reads at or above the frontier.
func (ix *index) Compact() error {
	cutoff := ix.advanceBy.Time()
	if cutoff == 0 {
		return nil
	}
	return ix.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ix.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var toDelete [][]byte
		merged := make(map[string]int64)
		for it.Seek(ix.prefix); it.ValidForPrefix(ix.prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			t := clock.DecodeTime(key[len(key)-8:])
			if t <= cutoff {
				toDelete = append(toDelete, key)
				if err := it.Item().Value(func(val []byte) error {
					merged[string(key[len(ix.prefix):len(key)-8])] += int64(binary.BigEndian.Uint64(val))
					return nil
				}); err != nil {
					return err
				}
			}
		}
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		for body, diff := range merged {
			if diff == 0 {
				continue
			}
			if err := ix.put(txn, []byte(body), nil, cutoff, diff); err != nil {
				return err
			}
		}
		return nil
	})
}
