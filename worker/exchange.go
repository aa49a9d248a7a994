package worker

import (
	"github.com/wbrown/hectordb/hector"
	"github.com/wbrown/hectordb/value"
)

// Exchange decides which worker owns a key, using the same hash Hector's
// count/propose/validate partitioning step would use -- spec.md §5's
// "exchange channels shuffled by a hash function (e.g., hash(key) for
// join keys)". A real distributed dataflow would route requests through
// per-pair channels; this single-process Pool instead uses Owner only to
// attribute work to a worker index in its statistics. Whichever worker
// dequeues a job applies it, and the shared Domain and Registry remain
// the source of truth.
type Exchange struct {
	workers int
}

// NewExchange builds an Exchange over n workers.
func NewExchange(n int) *Exchange {
	if n <= 0 {
		n = 1
	}
	return &Exchange{workers: n}
}

// Owner returns the index of the worker responsible for key.
func (e *Exchange) Owner(key value.Value) int {
	return int(hector.ShuffleKey(key) % uint64(e.workers))
}
