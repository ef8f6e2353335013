package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/DanielHall977/sqlalchemy-1/internal/orm/ddl"
)

// Table renders rows under a bold header and a rule line
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{writer: w, headers: headers, noColor: noColor}
}

// AddRow adds a row to the table
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render renders the table to the writer
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	bold := t.color(color.Bold, color.FgCyan)
	gray := t.color(color.FgHiBlack)

	for i, header := range t.headers {
		bold.Fprint(t.writer, padRight(header, widths[i], i == len(widths)-1))
	}
	fmt.Fprintln(t.writer)
	for i, width := range widths {
		gray.Fprint(t.writer, padRight(strings.Repeat("-", width), width, i == len(widths)-1))
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			fmt.Fprint(t.writer, padRight(cell, widths[i], i == len(widths)-1))
		}
		fmt.Fprintln(t.writer)
	}
}

func (t *Table) color(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

// padRight pads s to width plus the column gap; the last column is not padded
func padRight(s string, width int, last bool) string {
	if last {
		return s
	}
	if len(s) < width {
		s += strings.Repeat(" ", width-len(s))
	}
	return s + "  "
}

// Summary prints the one-line outcome of a run
func Summary(w io.Writer, target string, report *ddl.Report, noColor bool) {
	ok := color.New(color.FgGreen, color.Bold)
	info := color.New(color.FgCyan)
	if noColor {
		ok.DisableColor()
		info.DisableColor()
	}

	ok.Fprintf(w, "✓ %s %s", report.Operation, target)
	info.Fprintf(w, ": %d executed, %d skipped (run %s)\n", len(report.Executed), len(report.Skipped), report.RunID)
}

// Failure prints a failed run: the error, the state the run stopped in and
// the statements that had already executed inside the rolled back transaction
func Failure(w io.Writer, target string, report *ddl.Report, err error, noColor bool) {
	header := color.New(color.FgRed, color.Bold)
	body := color.New(color.FgRed)
	gray := color.New(color.FgHiBlack)
	if noColor {
		header.DisableColor()
		body.DisableColor()
		gray.DisableColor()
	}

	op := "run"
	if report != nil {
		op = string(report.Operation)
	}
	header.Fprintf(w, "✗ %s FAILED: %s\n", strings.ToUpper(op), target)
	body.Fprintf(w, "   %v\n", err)
	if report == nil {
		return
	}
	gray.Fprintf(w, "   stopped in %s; rolled back %d statement(s)\n", report.State, len(report.Executed))
	for _, stmt := range report.Executed {
		gray.Fprintf(w, "     %s\n", firstLine(stmt))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
