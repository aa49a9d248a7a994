// Package registry implements rule registration and interest dispatch:
// spec.md §4.5. It owns the mapping from rule name to plan, resolves a
// rule's transitive Named dependencies in topological order, compiles
// each through implement.Implement (wired to hector.Evaluate for Hector
// nodes), and publishes the resulting Relation as an arrangement.
package registry

import (
	"fmt"
	"sync"

	"github.com/wbrown/hectordb/arrangement"
	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/hector"
	"github.com/wbrown/hectordb/implement"
	"github.com/wbrown/hectordb/plan"
)

// Rule is a named plan, globally unique by Name.
type Rule struct {
	Name string
	Plan plan.Node
}

// ErrConflict is returned by Register when name already exists with a
// different plan.
type ErrConflict struct{ Name string }

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("registry: rule %q already registered with a different plan", e.Name)
}

// ErrNotFound is returned by Interest when name, or a rule it reaches
// through a Named reference, has no registered rule.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("registry: no rule registered as %q", e.Name)
}

// ErrCycle is returned when a rule's Named dependencies form a cycle.
type ErrCycle struct{ Path []string }

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("registry: cyclic rule dependency: %v", e.Path)
}

// Registry is the query registry: named rules, their materialized
// results, and the arrangement handles published for interested
// subscribers.
type Registry struct {
	store *attribute.Store

	mu            sync.RWMutex
	rules         map[string]*Rule
	materialized  map[string]*implement.Relation
	arrangements  *arrangement.Registry
	hectorContext *hector.Context
}

// New constructs a Registry bound to store. It wires implement.Context's
// Env and Hector hooks to this registry's own rule resolution and to
// hector.Evaluate, so a plan tree may freely mix non-WCO nodes, Named
// references, and Hector nodes.
func New(store *attribute.Store) *Registry {
	return &Registry{
		store:         store,
		rules:         make(map[string]*Rule),
		materialized:  make(map[string]*implement.Relation),
		arrangements:  arrangement.NewRegistry(),
		hectorContext: &hector.Context{Store: store},
	}
}

// Register inserts rules. A name that already exists with an identical
// plan is a no-op; a different plan is an ErrConflict.
func (r *Registry) Register(rules []Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rule := range rules {
		if existing, ok := r.rules[rule.Name]; ok {
			if !samePlan(existing.Plan, rule.Plan) {
				return &ErrConflict{Name: rule.Name}
			}
			continue
		}
		cp := rule
		r.rules[rule.Name] = &cp
	}
	return nil
}

// samePlan compares plans structurally. The plan algebra has no derived
// Equal method (each node type is small and heterogeneous), so this
// renders both sides and compares strings -- adequate for the no-op-if-
// identical check, which only ever fires on a literal re-registration.
func samePlan(a, b plan.Node) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

// Interest compiles name and every rule it transitively depends on (via
// Named references), in dependency order, caching each materialization,
// and returns name's resulting Relation. If name is already materialized,
// the cached Relation is returned directly, whatever t is.
func (r *Registry) Interest(name string, t clock.Time) (*implement.Relation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rel, ok := r.materialized[name]; ok {
		return rel, nil
	}

	order, err := r.dependencyOrder(name)
	if err != nil {
		return nil, err
	}

	ctx := &implement.Context{
		Store: r.store,
		Env:   r.resolveLocked,
		Hector: func(t clock.Time, h *plan.Hector) (*implement.Relation, error) {
			return hector.Evaluate(r.hectorContext, t, h)
		},
	}

	var rel *implement.Relation
	for _, n := range order {
		if _, done := r.materialized[n]; done {
			continue
		}
		rule, ok := r.rules[n]
		if !ok {
			return nil, &ErrNotFound{Name: n}
		}
		rel, err = implement.Implement(ctx, t, rule.Plan)
		if err != nil {
			return nil, fmt.Errorf("registry: compiling %q: %w", n, err)
		}
		r.materialized[n] = rel
		r.arrangements.Register(n, &relationBacking{rel: rel})
	}

	final, ok := r.materialized[name]
	if !ok {
		return nil, fmt.Errorf("registry: compilation produced no arrangement for %q", name)
	}
	return final, nil
}

// resolveLocked is implement.Env, called while r.mu is already held by
// Interest -- every rule in the dependency order is materialized before
// its dependents run, so this only ever reads an already-populated entry.
func (r *Registry) resolveLocked(name string) (*implement.Relation, error) {
	rel, ok := r.materialized[name]
	if !ok {
		return nil, &ErrNotFound{Name: name}
	}
	return rel, nil
}

// dependencyOrder topologically sorts name and its transitive Named
// dependencies via DFS, detecting cycles. The returned order lists
// dependencies before dependents.
func (r *Registry) dependencyOrder(name string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var order []string
	var path []string

	var visit func(n string) error
	visit = func(n string) error {
		switch state[n] {
		case done:
			return nil
		case visiting:
			return &ErrCycle{Path: append(append([]string{}, path...), n)}
		}
		rule, ok := r.rules[n]
		if !ok {
			return &ErrNotFound{Name: n}
		}
		state[n] = visiting
		path = append(path, n)
		for _, dep := range plan.Dependencies(rule.Plan) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		order = append(order, n)
		return nil
	}

	if err := visit(name); err != nil {
		return nil, err
	}
	return order, nil
}

// AdvanceDomain advances the attribute store's input frontier to t and
// invalidates every materialized relation, since this evaluator
// recomputes a rule's Relation from scratch at one logical time rather
// than maintaining a live incremental operator (see DESIGN.md's
// "Relation evaluation strategy"). The next Interest call re-derives
// affected rules at the new frontier.
func (r *Registry) AdvanceDomain(t clock.Time) error {
	if err := r.store.AdvanceTo(t); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.materialized = make(map[string]*implement.Relation)
	r.arrangements = arrangement.NewRegistry()
	return nil
}

// relationBacking adapts a materialized Relation to arrangement.Backing.
// Relations here are plain values recomputed on demand, not pooled
// resources, so Release is a no-op.
type relationBacking struct {
	rel *implement.Relation
}

func (*relationBacking) Release() {}
