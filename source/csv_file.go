package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/value"
)

// CSVFile reads a header-first CSV file and maps each column to an
// attribute name via Schema; columns absent from Schema are skipped.
// The row's 1-based index (header excluded) is the entity id, the
// supplemental file-source kind SPEC_FULL.md §4.8 adds alongside
// JSONFile for sources that are naturally tabular rather than one
// object per line.
type CSVFile struct {
	Path   string
	Schema map[string]string // CSV column name -> attribute name
}

// Ingest reads Path and returns the discovered facts grouped by
// attribute name, exactly like JSONFile.Ingest.
func (c CSVFile) Ingest() (map[string][]attribute.Fact, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", c.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("source: %s: reading header: %w", c.Path, err)
	}
	columnAttr := make([]string, len(header))
	for i, col := range header {
		columnAttr[i] = c.Schema[col]
	}

	facts := make(map[string][]attribute.Fact)
	var rowNum uint64
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("source: %s: %w", c.Path, err)
		}
		rowNum++
		entity := value.Entity(rowNum)
		for i, cell := range record {
			attr := columnAttr[i]
			if attr == "" {
				continue
			}
			facts[attr] = append(facts[attr], attribute.Fact{
				Entity: entity,
				Value:  value.NewString(cell),
				Diff:   1,
			})
		}
	}
	return facts, nil
}
