package hector

import (
	"fmt"

	"github.com/wbrown/hectordb/value"
)

// bindingDirection decides which of two symbols a growing prefix already
// binds, and so which index shape (forward or reverse) an extender over
// (s0, s1) must use: forward when the prefix binds s0 but not s1,
// reverse when it binds s1 but not s0. Exactly one of the two must be
// bound -- both or neither is a planner error.
func bindingDirection(prefix value.Vector, s0, s1 value.Symbol) (forward bool, offset int, err error) {
	bound0 := prefix.Contains(s0)
	bound1 := prefix.Contains(s1)
	switch {
	case bound0 && !bound1:
		return true, prefix.IndexOf(s0), nil
	case !bound0 && bound1:
		return false, prefix.IndexOf(s1), nil
	case bound0 && bound1:
		return false, 0, fmt.Errorf("hector: both symbols %v, %v already bound by prefix %v", s0, s1, prefix)
	default:
		return false, 0, fmt.Errorf("hector: neither symbol %v, %v bound by prefix %v", s0, s1, prefix)
	}
}
