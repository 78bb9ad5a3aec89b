package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("24")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// emit writes doc as JSON when --json is set, otherwise renders tbl as a
// lipgloss table. Commands with a single result (policy_simulator, run)
// pass a one-row table; describe documents go through emitJSON instead.
func (a *app) emit(doc interface{}, tbl table) error {
	if a.jsonOutput {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	fmt.Fprintln(a.out, tbl.render())
	return nil
}

// emitJSON writes doc as JSON regardless of --json, for commands (like
// describe) whose document shape has no reasonable flat-table rendering in
// table mode either.
func (a *app) emitJSON(doc interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// table is the column-header + row-of-cells shape of mapi's tabular output
// mode; under --json, emit encodes the doc it was given instead.
type table struct {
	Columns []string
	Rows    [][]string
}

func (t table) render() string {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = len(c)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, c := range t.Columns {
		b.WriteString(tableHeaderStyle.Width(widths[i] + 2).Render(c))
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(widths) {
				continue
			}
			b.WriteString(tableCellStyle.Width(widths[i] + 2).Render(cell))
		}
		b.WriteString("\n")
	}
	return tableBorderStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func boolCell(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
