// Package config parses the server's command-line flags, the Go
// rendition of original_source/server's Config struct and
// cmd/datalog/main.go's flag wiring.
package config

import (
	"flag"
	"fmt"
	"os"
)

// Config mirrors original_source/src/server/mod.rs's Config struct:
// port, plus the four feature toggles spec.md §6 names.
type Config struct {
	Port            int
	Workers         int
	DBPath          string
	EnableCLI       bool
	EnableHistory   bool
	EnableOptimizer bool
	EnableMeta      bool
}

// Default matches original_source's Config::default(): port 6262, every
// toggle off.
func Default() Config {
	return Config{
		Port:    6262,
		Workers: 1,
	}
}

// Parse parses args (ordinarily os.Args[1:]) into a Config, starting
// from Default.
func Parse(args []string) (Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet("hectordb", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen at; worker i binds port+i")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of cooperative workers")
	fs.StringVar(&cfg.DBPath, "db", "", "attribute store path (empty for in-memory)")
	fs.BoolVar(&cfg.EnableCLI, "enable-cli", false, "accept commands on stdin")
	fs.BoolVar(&cfg.EnableHistory, "enable-history", false, "retain full history for as-of queries")
	fs.BoolVar(&cfg.EnableOptimizer, "enable-optimizer", false, "plan optimization toggle (parsed; no effect)")
	fs.BoolVar(&cfg.EnableMeta, "enable-meta", false, "query-graph relation toggle (parsed; no effect)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Workers <= 0 {
		return Config{}, fmt.Errorf("config: workers must be positive, got %d", cfg.Workers)
	}
	return cfg, nil
}
