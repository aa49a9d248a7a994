// Package source implements the file ingestion spec.md §6's
// register-source request and original_source/src/sources/*.rs describe:
// reading an external file and transacting its rows in as facts under
// one or more named attributes, one attribute per JSON key / CSV column.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/clock"
	"github.com/wbrown/hectordb/value"
)

// JSONFile reads one JSON object per line, as original_source's
// json_file.rs does: the line number is the entity id, and each
// top-level key becomes a fact under the attribute of that name.
// Non-scalar values are logged and skipped rather than rejecting the
// whole line, matching the original's "unsupported, ignoring" behavior.
type JSONFile struct {
	Path string
}

// Ingest reads Path and returns the discovered facts grouped by
// attribute name, ready to be committed with one TransactCmd per group.
// It does not create attributes or call Store.Transact itself -- the
// caller (ordinarily a worker, so the commit goes through the sequenced
// command inbox) owns when and in what order those writes happen.
func (j JSONFile) Ingest() (map[string][]attribute.Fact, error) {
	f, err := os.Open(j.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", j.Path, err)
	}
	defer f.Close()

	facts := make(map[string][]attribute.Fact)
	scanner := bufio.NewScanner(f)
	var lineNum uint64
	for scanner.Scan() {
		line := scanner.Bytes()
		lineNum++
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			return nil, fmt.Errorf("source: %s:%d: %w", j.Path, lineNum, err)
		}
		entity := value.Entity(lineNum)
		for key, raw := range obj {
			v, ok := scalarValue(raw)
			if !ok {
				log.Printf("source: %s:%d: key %q has unsupported shape %T, ignoring", j.Path, lineNum, key, raw)
				continue
			}
			facts[key] = append(facts[key], attribute.Fact{Entity: entity, Value: v, Diff: 1})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("source: %s: %w", j.Path, err)
	}
	return facts, nil
}

func scalarValue(raw any) (value.Value, bool) {
	switch t := raw.(type) {
	case bool:
		return value.NewBoolean(t), true
	case float64:
		return value.NewNumber(int64(t)), true
	case string:
		return value.NewString(t), true
	default:
		return value.Value{}, false
	}
}

// EnsureAttributes creates (if absent) a Raw-semantics attribute for
// every key Ingest discovered, so Transact has somewhere to write.
func EnsureAttributes(store *attribute.Store, facts map[string][]attribute.Fact) error {
	for name := range facts {
		if _, ok := store.Attribute(name); ok {
			continue
		}
		if _, err := store.CreateAttribute(name, attribute.Raw); err != nil {
			return err
		}
	}
	return nil
}

// Commit transacts every discovered attribute's facts at time t, via
// the Store directly -- callers driving this through a worker.Pool
// should instead submit one TransactCmd per key so the writes go
// through the shared sequencer.
func Commit(store *attribute.Store, facts map[string][]attribute.Fact, t clock.Time) error {
	for name, fs := range facts {
		if err := store.Transact(name, fs, t); err != nil {
			return err
		}
	}
	return nil
}
