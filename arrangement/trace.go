// Package arrangement implements the shared arrangement registry: a
// name -> trace-handle mapping whose handles are cloneable readers that
// may be imported into multiple query scopes, each with an independently
// advanceable frontier.
package arrangement

import (
	"sync"

	"github.com/wbrown/hectordb/clock"
)

// Backing is whatever a Trace actually reads from: an attribute index
// shape or a materialized derived relation. The arrangement layer only
// needs to know how to advance and release it; the read path (count/
// propose/validate) is typed concretely by callers in the implement and
// hector packages, which hold on to the same Backing value via Handle.
type Backing interface {
	// Release is called once, when the trace's last reader drops it.
	Release()
}

// Trace is a reference-counted, shared, read-only resource: the trace is
// exclusively owned by the Registry; every query holds a non-owning
// Handle with its own independent frontier token. The physical Backing
// is dropped exactly when the last Handle is released.
type Trace struct {
	name    string
	backing Backing

	mu       sync.Mutex
	refcount int

	// distinguishSince is the registry-wide floor: no Handle may subset
	// state below it until it explicitly opts in by importing at a time
	// at or above it.
	distinguishSince clock.Frontier
}

// Handle is a non-owning reader over a Trace, with its own distinguish
// and probe frontiers.
type Handle struct {
	trace *Trace

	distinguishSince clock.Frontier
	probe            clock.Frontier
}

// Name reports the arrangement's registered name.
func (t *Trace) Name() string { return t.name }

// Backing exposes the concrete resource for typed access by callers that
// know what it is (an *attribute.Attribute shape, or a materialized
// relation).
func (h *Handle) Backing() Backing { return h.trace.backing }

// NewReader clones the trace into a fresh, independent Handle and bumps
// the trace's refcount.
func (t *Trace) NewReader() *Handle {
	t.mu.Lock()
	t.refcount++
	t.mu.Unlock()
	return &Handle{trace: t, distinguishSince: t.distinguishSince}
}

// Clone produces another independent Handle sharing this trace's
// underlying storage -- "cloning a handle yields an independent cursor
// but shares underlying storage".
func (h *Handle) Clone() *Handle { return h.trace.NewReader() }

// DistinguishSince raises this handle's own floor below which it may not
// subset state -- "the handle cannot subset past state until a
// subscriber opts in".
func (h *Handle) DistinguishSince(t clock.Time) {
	if t > h.distinguishSince.Time() {
		h.distinguishSince = clock.NewFrontier(t)
	}
}

// AdvanceProbe reports progress: the handle's own dataflow has caught up
// to t.
func (h *Handle) AdvanceProbe(t clock.Time) {
	if t > h.probe.Time() {
		h.probe = clock.NewFrontier(t)
	}
}

// IsOutdated reports whether this handle's output trails the given input
// frontier -- the probe mechanism behind the cooperative step_while loop.
func (h *Handle) IsOutdated(inputFrontier clock.Time) bool {
	return h.probe.Time() < inputFrontier
}

// Release drops this handle. Once every handle derived from the trace is
// released, the trace's backing storage is released too.
func (h *Handle) Release() {
	t := h.trace
	t.mu.Lock()
	t.refcount--
	last := t.refcount == 0
	t.mu.Unlock()
	if last {
		t.backing.Release()
	}
}
