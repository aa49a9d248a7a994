// Package worker implements the cooperative pool that applies commands
// against a shared Domain and Registry: spec.md §5's fixed pool of
// workers, each running an identical dataflow graph over the same shared
// state, coordinated by a single Sequencer rather than blocking on each
// other except at submission.
package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/implement"
	"github.com/wbrown/hectordb/registry"
	"github.com/wbrown/hectordb/value"
)

// Command is one request a Pool can apply. Only the owning worker (the
// one that dequeues the job) ever calls into Domain/Registry for it --
// spec.md §5's "only the owning worker introduces external facts".
type Command interface{ isCommand() }

// TransactCmd applies a batch of facts to a named attribute.
type TransactCmd struct {
	Attribute string
	Facts     []attribute.Fact
}

func (TransactCmd) isCommand() {}

// RegisterCmd registers rules.
type RegisterCmd struct {
	Rules []registry.Rule
}

func (RegisterCmd) isCommand() {}

// InterestCmd compiles and returns a rule's materialized Relation.
type InterestCmd struct {
	Name string
}

func (InterestCmd) isCommand() {}

// AdvanceDomainCmd advances the shared Domain's input frontier.
type AdvanceDomainCmd struct {
	To clock.Time
}

func (AdvanceDomainCmd) isCommand() {}

// CreateAttributeCmd declares a new named input attribute with the given
// semantics, the prerequisite for any TransactCmd naming it.
type CreateAttributeCmd struct {
	Name      string
	Semantics attribute.Semantics
}

func (CreateAttributeCmd) isCommand() {}

// Result is a command's outcome: Relation is set only by InterestCmd.
type Result struct {
	Time     clock.Time
	Relation *implement.Relation
	Err      error
}

type job struct {
	owner  int
	cmd    Command
	t      clock.Time
	result chan Result
}

// Pool is a fixed set of workers draining one shared command queue
// against one shared Domain (attribute.Store) and Registry. Commands are
// stamped by a Sequencer before being enqueued, so every worker observes
// them in the same total order regardless of which one dequeues a given
// job -- the single-process rendition of spec.md §5's frontier-ordered
// scheduling.
type Pool struct {
	store    *attribute.Store
	reg      *registry.Registry
	seq      *Sequencer
	exchange *Exchange

	inbox chan job
	wg    sync.WaitGroup

	mu    sync.Mutex
	stats map[int]int
}

// NewPool builds a Pool of n workers over store and reg.
func NewPool(n int, store *attribute.Store, reg *registry.Registry) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{
		store:    store,
		reg:      reg,
		seq:      NewSequencer(),
		exchange: NewExchange(n),
		inbox:    make(chan job, 64),
		stats:    make(map[int]int),
	}
}

// Start launches the worker goroutines, supervised by an errgroup so a
// panic-free worker error is observable from Wait.
func (p *Pool) Start(ctx context.Context) *errgroup.Group {
	g, gctx := errgroup.WithContext(ctx)
	workers := p.exchange.workers
	for i := 0; i < workers; i++ {
		id := i
		p.wg.Add(1)
		g.Go(func() error {
			defer p.wg.Done()
			return p.stepWhile(gctx, id)
		})
	}
	return g
}

// stepWhile is the cooperative event loop: pull one job at a time from
// the shared inbox and apply it, until the inbox is closed or the
// context is cancelled.
func (p *Pool) stepWhile(ctx context.Context, id int) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j, ok := <-p.inbox:
			if !ok {
				return nil
			}
			p.recordOwner(j)
			p.apply(j)
		}
	}
}

func (p *Pool) recordOwner(j job) {
	p.mu.Lock()
	p.stats[j.owner]++
	p.mu.Unlock()
}

// Stats reports how many submitted commands were attributed to each
// worker index by Exchange.Owner.
func (p *Pool) Stats() map[int]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[int]int, len(p.stats))
	for k, v := range p.stats {
		out[k] = v
	}
	return out
}

// Close stops accepting new commands. Call after all Submits have
// returned; workers drain the inbox and stepWhile returns once it is
// closed and empty.
func (p *Pool) Close() {
	close(p.inbox)
	p.wg.Wait()
}

// Submit stamps cmd with the sequencer's next time, enqueues it, and
// blocks for the result. ownerKey, when non-nil, attributes the command
// to a worker via Exchange for Stats; pass nil for commands with no
// natural partitioning key (Register, AdvanceDomain).
func (p *Pool) Submit(cmd Command, ownerKey *int) Result {
	t := p.seq.Next()
	owner := 0
	if ownerKey != nil {
		owner = *ownerKey
	}
	result := make(chan Result, 1)
	p.inbox <- job{owner: owner, cmd: cmd, t: t, result: result}
	return <-result
}

// SubmitKeyed is Submit, attributing the command to the worker Exchange
// assigns key to -- the usual entry point for TransactCmd, keyed by the
// fact's entity, so Stats reflects the exchange-shuffle partitioning
// spec.md §5 describes rather than always crediting worker 0.
func (p *Pool) SubmitKeyed(cmd Command, key value.Value) Result {
	owner := p.exchange.Owner(key)
	return p.Submit(cmd, &owner)
}

// CommitFacts lets a source.Manager land ingested facts through this
// Pool's sequenced inbox instead of writing to the Store directly,
// satisfying source.Committer without worker importing source.
func (p *Pool) CommitFacts(attr string, facts []attribute.Fact, key value.Value) error {
	return p.SubmitKeyed(TransactCmd{Attribute: attr, Facts: facts}, key).Err
}

func (p *Pool) apply(j job) {
	switch c := j.cmd.(type) {
	case TransactCmd:
		err := p.store.Transact(c.Attribute, c.Facts, j.t)
		j.result <- Result{Time: j.t, Err: err}
	case RegisterCmd:
		err := p.reg.Register(c.Rules)
		j.result <- Result{Time: j.t, Err: err}
	case InterestCmd:
		rel, err := p.reg.Interest(c.Name, j.t)
		j.result <- Result{Time: j.t, Relation: rel, Err: err}
	case AdvanceDomainCmd:
		err := p.reg.AdvanceDomain(c.To)
		j.result <- Result{Time: j.t, Err: err}
	case CreateAttributeCmd:
		_, err := p.store.CreateAttribute(c.Name, c.Semantics)
		j.result <- Result{Time: j.t, Err: err}
	default:
		j.result <- Result{Time: j.t, Err: fmt.Errorf("worker: unknown command %T", c)}
	}
}
