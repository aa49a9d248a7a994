// Package transport implements the two external surfaces spec.md §6/§7
// describe: a persistent socket protocol for programmatic clients and a
// line-oriented CLI for interactive use, both driving the same
// worker.Pool.
package transport

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/source"
	"github.com/wbrown/hectordb/value"
	"github.com/wbrown/hectordb/wire"
	"github.com/wbrown/hectordb/worker"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Socket serves one client connection per accepted websocket, decoding
// wire.Request frames and replying with wire.ChangeBatch frames. Each
// connection gets its own outbound queue so a query's Interest result
// and later push updates never interleave on the wire -- the "the write
// side is single-threaded per connection" discipline every concurrent
// websocket server needs, since the underlying Conn does not allow
// concurrent writers.
type Socket struct {
	pool    *worker.Pool
	sources *source.Manager
}

// NewSocket builds a Socket dispatching every decoded request to pool,
// and file-source requests to sources.
func NewSocket(pool *worker.Pool, sources *source.Manager) *Socket {
	return &Socket{pool: pool, sources: sources}
}

// ServeHTTP upgrades the request to a websocket and runs the connection
// until the client disconnects or a read fails. A frame that fails to
// decode gets a fault reply and the connection stays open.
func (s *Socket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: upgrade failed: %v", err)
		return
	}
	s.serve(conn)
}

func (s *Socket) serve(conn *websocket.Conn) {
	defer conn.Close()

	out := make(chan []byte, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for frame := range out {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}()
	defer func() {
		close(out)
		wg.Wait()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, fatal := s.handle(data)
		if frame != nil {
			select {
			case out <- frame:
			default:
				log.Printf("transport: dropping response, client not draining")
			}
		}
		if fatal {
			return
		}
	}
}

// handle decodes and dispatches one request frame, returning the
// response bytes to write back (nil if the request has no reply, e.g.
// a bare transact) and whether the connection must now be closed.
func (s *Socket) handle(data []byte) ([]byte, bool) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		return faultFrame(err), false
	}

	switch {
	case req.Transact != nil:
		return s.handleTransact(req.Transact), false

	case req.Interest != nil:
		return s.handleInterest(req.Interest), false

	case req.Register != nil:
		res := s.pool.Submit(worker.RegisterCmd{Rules: req.Register.Rules}, nil)
		if res.Err != nil {
			return faultFrame(res.Err), false
		}
		return nil, false

	case req.CreateAttr != nil:
		res := s.pool.Submit(worker.CreateAttributeCmd{
			Name:      req.CreateAttr.Name,
			Semantics: req.CreateAttr.Semantics,
		}, nil)
		if res.Err != nil {
			return faultFrame(res.Err), false
		}
		return nil, false

	case req.AdvanceDomain != nil:
		res := s.pool.Submit(worker.AdvanceDomainCmd{To: req.AdvanceDomain.Next}, nil)
		if res.Err != nil {
			return faultFrame(res.Err), false
		}
		return nil, false

	case req.RegisterSource != nil:
		rs := req.RegisterSource
		if err := s.sources.RegisterSource(rs.Names, rs.Source.Kind, rs.Source.Path, rs.Source.Schema); err != nil {
			return faultFrame(err), false
		}
		return nil, false

	case req.CloseInput != nil:
		if err := s.sources.CloseInput(req.CloseInput.Name); err != nil {
			return faultFrame(err), false
		}
		return nil, false

	default:
		return faultFrame(wire.NewFault(wire.Client, "empty request")), false
	}
}

// handleTransact groups tx_data by attribute (a TransactCmd names one
// attribute) and submits one command per group, keyed by its first
// entity so Stats reflects the exchange-shuffle partitioning.
func (s *Socket) handleTransact(t *wire.TransactRequest) []byte {
	order := make([]string, 0)
	byAttr := make(map[string][]attribute.Fact)
	for _, d := range t.TxData {
		if _, ok := byAttr[d.Attribute]; !ok {
			order = append(order, d.Attribute)
		}
		byAttr[d.Attribute] = append(byAttr[d.Attribute], attribute.Fact{
			Entity: d.Entity,
			Value:  d.Value,
			Diff:   d.Op,
		})
	}
	for _, attr := range order {
		facts := byAttr[attr]
		key := value.NewEntity(facts[0].Entity)
		res := s.pool.SubmitKeyed(worker.TransactCmd{Attribute: attr, Facts: facts}, key)
		if res.Err != nil {
			return faultFrame(res.Err)
		}
	}
	return nil
}

func (s *Socket) handleInterest(i *wire.InterestRequest) []byte {
	res := s.pool.Submit(worker.InterestCmd{Name: i.Name}, nil)
	if res.Err != nil {
		return faultFrame(res.Err)
	}
	batch := wire.ChangeBatch{Name: i.Name, Rows: res.Relation.Rows}
	frame, err := batch.MarshalJSON()
	if err != nil {
		return faultFrame(err)
	}
	return frame
}

func faultFrame(err error) []byte {
	f := wire.Classify(err)
	out, marshalErr := f.MarshalJSON()
	if marshalErr != nil {
		return []byte(`{"category":"fault","message":"failed to marshal fault"}`)
	}
	return out
}
