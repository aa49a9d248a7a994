package plan

import (
	"fmt"

	"github.com/wbrown/hectordb/value"
)

// Predicate is one of the six binary comparisons evaluated on Value's
// total order.
type Predicate uint8

const (
	LT Predicate = iota
	LTE
	GT
	GTE
	EQ
	NEQ
)

func (p Predicate) String() string {
	switch p {
	case LT:
		return "<"
	case LTE:
		return "<="
	case GT:
		return ">"
	case GTE:
		return ">="
	case EQ:
		return "="
	case NEQ:
		return "!="
	default:
		return "?"
	}
}

// Eval applies the predicate to a, b under value.Compare.
func (p Predicate) Eval(a, b value.Value) bool {
	c := value.Compare(a, b)
	switch p {
	case LT:
		return c < 0
	case LTE:
		return c <= 0
	case GT:
		return c > 0
	case GTE:
		return c >= 0
	case EQ:
		return c == 0
	case NEQ:
		return c != 0
	default:
		return false
	}
}

// ParsePredicate maps a wire-level operator string to a Predicate.
func ParsePredicate(s string) (Predicate, error) {
	switch s {
	case "<":
		return LT, nil
	case "<=":
		return LTE, nil
	case ">":
		return GT, nil
	case ">=":
		return GTE, nil
	case "=":
		return EQ, nil
	case "!=":
		return NEQ, nil
	default:
		return 0, fmt.Errorf("plan: unknown predicate %q", s)
	}
}
