// Package report renders benchmark results as a reStructuredText grid table
// or as CSV.
package report

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"

	"tree_bench/common"
)

const (
	minValueWidth = 9
	notAvailable  = "N/A"
)

// Write renders r in the named format, "rst" or "csv".
func Write(w io.Writer, r *common.Results, format string) error {
	switch format {
	case "rst", "":
		return RST(w, r)
	case "csv":
		return CSV(w, r)
	default:
		return errors.Errorf("unknown report format: %s", format)
	}
}

// RST writes a grid table with one row per test and model and a no tx / tx
// column pair per engine. Values are mean milliseconds.
func RST(w io.Writer, r *common.Results) error {
	g := newGrid(r)
	out := bufio.NewWriter(w)

	out.WriteString(g.topRule())
	out.WriteString(g.row("Test", "Model", g.engineHeadings()))
	out.WriteString(g.subRule())
	out.WriteString(g.row("", "", g.txHeadings()))
	out.WriteString(g.rule('=', '='))
	for _, test := range r.Tests {
		for j, model := range r.Models {
			label := ""
			if j == 0 {
				label = test
			}
			out.WriteString(g.row(label, model, g.values(test, model)))
			if j < len(r.Models)-1 {
				out.WriteString(g.rule(' ', '-'))
			}
		}
		out.WriteString(g.rule('-', '-'))
	}
	return errors.Wrap(out.Flush(), "write report")
}

type grid struct {
	r           *common.Results
	testWidth   int
	modelWidth  int
	valueWidth  int
	engineWidth int
}

func newGrid(r *common.Results) *grid {
	g := &grid{r: r, testWidth: len("Test"), modelWidth: len("Model"), valueWidth: minValueWidth - 2}
	for _, t := range r.Tests {
		g.testWidth = max(g.testWidth, len(t))
	}
	for _, m := range r.Models {
		g.modelWidth = max(g.modelWidth, len(m))
	}
	for _, c := range r.Cells() {
		if mean, ok := r.Mean(c); ok {
			g.valueWidth = max(g.valueWidth, len(fmt.Sprintf("%d", int64(math.Round(mean)))))
		}
	}
	g.testWidth += 2
	g.modelWidth += 2
	g.valueWidth += 2
	for _, e := range r.Engines {
		if need := len(e) + 2; need > 2*g.valueWidth+1 {
			g.valueWidth = need / 2
		}
	}
	g.engineWidth = 2*g.valueWidth + 1
	return g
}

// rule draws a horizontal line. The test column is filled with testFill so
// that rows of one test stay visually merged.
func (g *grid) rule(testFill, fill byte) string {
	var b strings.Builder
	if testFill == ' ' {
		b.WriteByte('|')
	} else {
		b.WriteByte('+')
	}
	b.WriteString(strings.Repeat(string(testFill), g.testWidth))
	b.WriteByte('+')
	b.WriteString(strings.Repeat(string(fill), g.modelWidth))
	for range 2 * len(g.r.Engines) {
		b.WriteByte('+')
		b.WriteString(strings.Repeat(string(fill), g.valueWidth))
	}
	b.WriteString("+\n")
	return b.String()
}

// topRule spans each engine over its two value columns.
func (g *grid) topRule() string {
	var b strings.Builder
	b.WriteByte('+')
	b.WriteString(strings.Repeat("-", g.testWidth))
	b.WriteByte('+')
	b.WriteString(strings.Repeat("-", g.modelWidth))
	for range g.r.Engines {
		b.WriteByte('+')
		b.WriteString(strings.Repeat("-", g.engineWidth))
	}
	b.WriteString("+\n")
	return b.String()
}

// subRule splits the engine headings from the no tx / tx row.
func (g *grid) subRule() string {
	var b strings.Builder
	b.WriteByte('|')
	b.WriteString(strings.Repeat(" ", g.testWidth))
	b.WriteByte('|')
	b.WriteString(strings.Repeat(" ", g.modelWidth))
	for range 2 * len(g.r.Engines) {
		b.WriteByte('+')
		b.WriteString(strings.Repeat("-", g.valueWidth))
	}
	b.WriteString("+\n")
	return b.String()
}

func (g *grid) row(test, model string, cells []string) string {
	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(ljust(test, g.testWidth-1))
	b.WriteString("| ")
	b.WriteString(ljust(model, g.modelWidth-1))
	for _, c := range cells {
		b.WriteByte('|')
		b.WriteString(c)
	}
	b.WriteString("|\n")
	return b.String()
}

func (g *grid) engineHeadings() []string {
	cells := make([]string, len(g.r.Engines))
	for i, e := range g.r.Engines {
		cells[i] = center(e, g.engineWidth)
	}
	return cells
}

func (g *grid) txHeadings() []string {
	cells := make([]string, 0, 2*len(g.r.Engines))
	for range g.r.Engines {
		cells = append(cells, center("no tx", g.valueWidth), center("tx", g.valueWidth))
	}
	return cells
}

func (g *grid) values(test, model string) []string {
	cells := make([]string, 0, 2*len(g.r.Engines))
	for _, engine := range g.r.Engines {
		for _, tx := range []bool{false, true} {
			value := notAvailable
			cell := common.Cell{Test: test, Model: model, Engine: engine, Tx: tx}
			if mean, ok := g.r.Mean(cell); ok {
				value = fmt.Sprintf("%d", int64(math.Round(mean)))
			}
			cells = append(cells, fmt.Sprintf("%*s ", g.valueWidth-1, value))
		}
	}
	return cells
}

func ljust(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// center pads s to width; an odd padding puts the extra space on the left
// when width is odd.
func center(s string, width int) string {
	pad := width - len(s)
	if pad <= 0 {
		return s
	}
	left := pad/2 + (pad & width & 1)
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}
