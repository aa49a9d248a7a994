package transport

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/hectordb/attribute"
	"github.com/wbrown/hectordb/implement"
	"github.com/wbrown/hectordb/source"
	"github.com/wbrown/hectordb/wire"
	"github.com/wbrown/hectordb/worker"
)

// CLI is the line-oriented interactive surface spec.md §6's enable_cli
// flag turns on: one JSON request per line on in, a rendered table or
// colored diagnostic per line on out.
type CLI struct {
	pool    *worker.Pool
	sources *source.Manager
	in      *bufio.Scanner
	out     io.Writer
}

// NewCLI builds a CLI reading newline-delimited request frames from in
// and writing rendered results to out.
func NewCLI(pool *worker.Pool, sources *source.Manager, in io.Reader, out io.Writer) *CLI {
	return &CLI{pool: pool, sources: sources, in: bufio.NewScanner(in), out: out}
}

// Run drives the read-eval-print loop until in is exhausted.
func (c *CLI) Run() {
	fmt.Fprintln(c.out, "hectordb interactive mode -- one JSON request per line, .exit to quit")
	for {
		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			return
		}
		line := strings.TrimSpace(c.in.Text())
		if line == "" {
			continue
		}
		if line == ".exit" {
			return
		}
		c.evalLine(line)
	}
}

func (c *CLI) evalLine(line string) {
	req, err := wire.DecodeRequest([]byte(line))
	if err != nil {
		c.printFault(err)
		return
	}

	switch {
	case req.Interest != nil:
		res := c.pool.Submit(worker.InterestCmd{Name: req.Interest.Name}, nil)
		if res.Err != nil {
			c.printFault(res.Err)
			return
		}
		c.printRelation(req.Interest.Name, res.Relation)

	case req.Transact != nil:
		if err := c.transact(req.Transact); err != nil {
			c.printFault(err)
			return
		}
		fmt.Fprintln(c.out, color.GreenString("ok"))

	case req.Register != nil:
		res := c.pool.Submit(worker.RegisterCmd{Rules: req.Register.Rules}, nil)
		if res.Err != nil {
			c.printFault(res.Err)
			return
		}
		fmt.Fprintln(c.out, color.GreenString("ok"))

	case req.CreateAttr != nil:
		res := c.pool.Submit(worker.CreateAttributeCmd{
			Name:      req.CreateAttr.Name,
			Semantics: req.CreateAttr.Semantics,
		}, nil)
		if res.Err != nil {
			c.printFault(res.Err)
			return
		}
		fmt.Fprintln(c.out, color.GreenString("ok"))

	case req.AdvanceDomain != nil:
		res := c.pool.Submit(worker.AdvanceDomainCmd{To: req.AdvanceDomain.Next}, nil)
		if res.Err != nil {
			c.printFault(res.Err)
			return
		}
		fmt.Fprintln(c.out, color.GreenString("ok"))

	case req.RegisterSource != nil:
		rs := req.RegisterSource
		if err := c.sources.RegisterSource(rs.Names, rs.Source.Kind, rs.Source.Path, rs.Source.Schema); err != nil {
			c.printFault(err)
			return
		}
		fmt.Fprintln(c.out, color.GreenString("ok"))

	case req.CloseInput != nil:
		if err := c.sources.CloseInput(req.CloseInput.Name); err != nil {
			c.printFault(err)
			return
		}
		fmt.Fprintln(c.out, color.GreenString("ok"))

	default:
		c.printFault(wire.NewFault(wire.Unsupported, "CLI only accepts transact/interest/register/create-attribute/advance-domain/register-source/close-input"))
	}
}

func (c *CLI) transact(t *wire.TransactRequest) error {
	byAttr := make(map[string][]int)
	var order []string
	for i, d := range t.TxData {
		if _, ok := byAttr[d.Attribute]; !ok {
			order = append(order, d.Attribute)
		}
		byAttr[d.Attribute] = append(byAttr[d.Attribute], i)
	}
	for _, attr := range order {
		res := c.pool.Submit(worker.TransactCmd{Attribute: attr, Facts: toFacts(t, byAttr[attr])}, nil)
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

func (c *CLI) printFault(err error) {
	f := wire.Classify(err)
	fmt.Fprintln(c.out, color.RedString("%s: %s", f.Category, f.Message))
}

// printRelation renders a materialized relation as a markdown table,
// the same rendering shape a query result takes in the teacher's REPL.
func (c *CLI) printRelation(name string, rel *implement.Relation) {
	if rel == nil || len(rel.Rows) == 0 {
		fmt.Fprintf(c.out, "_%s: empty_\n", name)
		return
	}

	tableString := &strings.Builder{}
	alignment := make([]tw.Align, len(rel.Vars))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	table := tablewriter.NewTable(tableString,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)

	headers := make([]string, len(rel.Vars))
	for i, v := range rel.Vars {
		headers[i] = fmt.Sprintf("?%d", v)
	}
	table.Header(headers)

	for _, row := range rel.Rows {
		cells := make([]string, len(row.Tuple))
		for j, v := range row.Tuple {
			cells[j] = v.String()
		}
		table.Append(cells)
	}
	table.Render()
	fmt.Fprint(c.out, tableString.String())
	fmt.Fprintf(c.out, "_%d rows_\n", len(rel.Rows))
}

func toFacts(t *wire.TransactRequest, idxs []int) []attribute.Fact {
	facts := make([]attribute.Fact, 0, len(idxs))
	for _, i := range idxs {
		d := t.TxData[i]
		facts = append(facts, attribute.Fact{Entity: d.Entity, Value: d.Value, Diff: d.Op})
	}
	return facts
}
