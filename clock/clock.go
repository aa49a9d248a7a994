// Package clock defines the logical-time vocabulary shared by the
// attribute store, the arrangement registry, and the Hector join engine:
// a totally ordered Time, a single-value Frontier over it, and the
// AltNeu refinement Hector uses to disambiguate concurrent deltas.
package clock

import "encoding/binary"

// Time is the system's single logical clock. Every transaction, rule
// registration and interest request is stamped with a Time by the
// worker.Sequencer, and that stamp doubles as the attribute store's
// commit time.
type Time uint64

// Encode renders t as an 8-byte big-endian key suffix, used by the
// attribute indices to keep multiversion entries ordered by time within
// a key prefix.
func (t Time) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(t))
	return buf
}

// DecodeTime parses an 8-byte big-endian Time.
func DecodeTime(b []byte) Time {
	return Time(binary.BigEndian.Uint64(b))
}

// Frontier is the earliest time a reader may still observe updates at.
// Because Time is totally ordered, a frontier is a single value rather
// than a general antichain: "at or after Frontier".
type Frontier struct {
	t Time
}

// NewFrontier constructs a frontier pinned at t.
func NewFrontier(t Time) Frontier { return Frontier{t: t} }

// Time reports the frontier's current value.
func (f Frontier) Time() Time { return f.t }

// LessEqual reports whether this frontier is at or behind other -- i.e.
// whether it still permits everything other does.
func (f Frontier) LessEqual(other Frontier) bool { return f.t <= other.t }

// AltNeu refines a Time with a strict alt/neu tie-breaker: under
// lexicographic order, {t, false} < {t, true}, and cross-time ordering
// follows t. Within a Hector join scope this enforces that delta i sees
// earlier bindings (index < i) at neu=false ("alt") and later bindings
// (index > i) at neu=true ("neu"), so a single committed fact contributes
// to exactly one delta query per round.
type AltNeu struct {
	Outer Time
	Neu   bool
}

// Alt builds the "earlier view" timestamp for t.
func Alt(t Time) AltNeu { return AltNeu{Outer: t, Neu: false} }

// Neu builds the "later view" timestamp for t.
func Neu(t Time) AltNeu { return AltNeu{Outer: t, Neu: true} }

// Less implements the strict lexicographic order: outer time first, then
// the neu bool, with false < true. This must never be collapsed to a
// <= comparison at the time boundary -- that is precisely the
// distinction that keeps concurrent deltas from double-counting.
func (a AltNeu) Less(b AltNeu) bool {
	if a.Outer != b.Outer {
		return a.Outer < b.Outer
	}
	return !a.Neu && b.Neu
}

// LessEqual is Less or structural equality.
func (a AltNeu) LessEqual(b AltNeu) bool {
	return a == b || a.Less(b)
}

// Collapse drops the alt/neu refinement back to the outer time, used when
// a Hector join scope exits and its results rejoin the outer dataflow.
func (a AltNeu) Collapse() Time { return a.Outer }
