// Command hectordb runs the fact-update-stream query engine server:
// a fixed worker pool over one shared attribute store and registry,
// one websocket listener per worker (port, port+1, ...) per spec.md §6,
// and an optional line-oriented CLI on stdin.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/config"
	"github.com/wbrown/hectordb/registry"
	"github.com/wbrown/hectordb/source"
	"github.com/wbrown/hectordb/transport"
	"github.com/wbrown/hectordb/worker"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("hectordb: %v", err)
	}

	store, err := attribute.Open(cfg.DBPath, cfg.EnableHistory)
	if err != nil {
		log.Fatalf("hectordb: opening store: %v", err)
	}
	defer store.Close()

	reg := registry.New(store)
	pool := worker.NewPool(cfg.Workers, store, reg)
	mgr := source.NewManager(store, pool)
	socket := transport.NewSocket(pool, mgr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := pool.Start(ctx)

	servers := make([]*http.Server, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		mux := http.NewServeMux()
		mux.Handle("/", socket)
		srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port+i), Handler: mux}
		servers[i] = srv
		go func(srv *http.Server, workerIndex int) {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("hectordb: worker %d listener: %v", workerIndex, err)
			}
		}(srv, i)
	}
	log.Printf("hectordb: listening on ports %d-%d (%d workers)", cfg.Port, cfg.Port+cfg.Workers-1, cfg.Workers)

	if cfg.EnableCLI {
		cli := transport.NewCLI(pool, mgr, os.Stdin, os.Stdout)
		go cli.Run()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Printf("hectordb: shutting down")
	for _, srv := range servers {
		_ = srv.Shutdown(context.Background())
	}
	pool.Close()
	cancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Printf("hectordb: worker pool: %v", err)
	}
}
