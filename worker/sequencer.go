package worker

import (
	"sync"

	"github.com/wbrown/hectordb/clock"
)

// Sequencer is the single shared command sequencer spec.md §1 names as an
// external collaborator: it stamps every transact/register/interest/
// advance-domain request with a monotonically increasing clock.Time and
// broadcasts the stamp to every subscribed worker, giving them all the
// same total order without further coordination.
type Sequencer struct {
	mu   sync.Mutex
	next clock.Time
	subs []chan clock.Time
}

// NewSequencer starts a sequencer whose first assigned time is 1 (0 is
// reserved as "before any commit").
func NewSequencer() *Sequencer {
	return &Sequencer{next: 1}
}

// Next assigns the next command its time and broadcasts it to every
// subscriber, non-blocking (subscribers with a full buffer miss the
// broadcast and must learn the time from the command result instead).
func (s *Sequencer) Next() clock.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
		}
	}
	return t
}

// Subscribe registers a channel to receive every future broadcast time.
func (s *Sequencer) Subscribe() <-chan clock.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan clock.Time, 16)
	s.subs = append(s.subs, ch)
	return ch
}
