// Package tabulize converts spreadsheet content into a normalized HTML
// table. HTML keeps row/column alignment and escaping unambiguous for the
// extraction model, where CSV or aligned text loses merged and empty cells.
package tabulize

import (
	"bytes"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

type Tabulizer struct {
	logger *slog.Logger
}

func NewTabulizer(logger *slog.Logger) *Tabulizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tabulizer{logger: logger}
}

// Tabulize renders the first sheet of an xlsx workbook as a single HTML
// <table>. The sheet's first row becomes the header row; blank header cells
// are replaced with positional "Column N" placeholders. Missing cells render
// as empty <td>.
func (t *Tabulizer) Tabulize(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("sheet %q is empty", sheets[0])
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	t.logger.Info("tabulize.ok", "sheet", sheets[0], "rows", len(rows), "cols", width)

	var b strings.Builder
	b.WriteString("<table>")

	// Header row from the sheet's first row, padded to the widest data row.
	b.WriteString("<tr>")
	for i := 0; i < width; i++ {
		name := ""
		if i < len(rows[0]) {
			name = strings.TrimSpace(rows[0][i])
		}
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		b.WriteString("<td>")
		b.WriteString(html.EscapeString(name))
		b.WriteString("</td>")
	}
	b.WriteString("</tr>")

	for _, row := range rows[1:] {
		b.WriteString("<tr>")
		for i := 0; i < width; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString("<td>")
			b.WriteString(html.EscapeString(cell))
			b.WriteString("</td>")
		}
		b.WriteString("</tr>")
	}

	b.WriteString("</table>")
	return b.String(), nil
}

// FlattenTable rewrites each embedded HTML <table> block as plain
// line-per-row text with cells joined by " | ", leaving all text outside
// the tables untouched. Vision markdown routinely carries HTML tables
// surrounded by prose; the prose must survive flattening.
func FlattenTable(s string) string {
	if !strings.Contains(s, "<table>") {
		return s
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "<table>")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "</table>")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(flattenRows(rest[start : start+end]))
		rest = rest[start+end+len("</table>"):]
	}
	return b.String()
}

func flattenRows(table string) string {
	var b strings.Builder
	rest := table
	for {
		start := strings.Index(rest, "<tr>")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "</tr>")
		if end < 0 {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.Join(splitCells(rest[start+len("<tr>"):start+end]), " | "))
		rest = rest[start+end+len("</tr>"):]
	}
	return b.String()
}

func splitCells(row string) []string {
	var cells []string
	rest := row
	for {
		start := strings.Index(rest, "<td>")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "</td>")
		if end < 0 {
			break
		}
		cells = append(cells, html.UnescapeString(rest[start+len("<td>"):start+end]))
		rest = rest[start+end+len("</td>"):]
	}
	return cells
}
