package tabulize

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type htmlTable struct {
	XMLName xml.Name `xml:"table"`
	Rows    []struct {
		Cells []string `xml:"td"`
	} `xml:"tr"`
}

func buildWorkbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func parseTable(t *testing.T, s string) htmlTable {
	t.Helper()
	var tbl htmlTable
	require.NoError(t, xml.Unmarshal([]byte(s), &tbl))
	return tbl
}

func TestTabulizeRoundTrip(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Product Code", "Product Name", "Shares"},
		{"000001", "Growth & Income <Fund>", "1200.50"},
		{"000002", `"Quoted" 'name'`, "0"},
	})

	out, err := NewTabulizer(nil).Tabulize(data)
	require.NoError(t, err)

	tbl := parseTable(t, out)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []string{"Product Code", "Product Name", "Shares"}, tbl.Rows[0].Cells)
	assert.Equal(t, []string{"000001", "Growth & Income <Fund>", "1200.50"}, tbl.Rows[1].Cells)
	assert.Equal(t, []string{"000002", `"Quoted" 'name'`, "0"}, tbl.Rows[2].Cells)
}

func TestTabulizeBlankHeaderGetsPlaceholder(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Code", "Name", nil, "Date"},
		{"600519", "Kweichow Moutai", "100", "2025-02-26"},
	})

	out, err := NewTabulizer(nil).Tabulize(data)
	require.NoError(t, err)

	tbl := parseTable(t, out)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Code", "Name", "Column 3", "Date"}, tbl.Rows[0].Cells)
	assert.Equal(t, []string{"600519", "Kweichow Moutai", "100", "2025-02-26"}, tbl.Rows[1].Cells)
}

func TestTabulizeManyRowsNoLoss(t *testing.T) {
	rows := [][]any{{"Code", "Name", "Shares"}}
	for i := 0; i < 50; i++ {
		rows = append(rows, []any{
			fmt.Sprintf("%06d", i), fmt.Sprintf("Fund %d", i), fmt.Sprintf("%d.00", i*10),
		})
	}

	out, err := NewTabulizer(nil).Tabulize(buildWorkbook(t, rows))
	require.NoError(t, err)

	tbl := parseTable(t, out)
	require.Len(t, tbl.Rows, 51)
	for i := 0; i < 50; i++ {
		assert.Equal(t, fmt.Sprintf("%06d", i), tbl.Rows[i+1].Cells[0])
	}
}

func TestTabulizeRejectsGarbage(t *testing.T) {
	_, err := NewTabulizer(nil).Tabulize([]byte("not a workbook"))
	assert.Error(t, err)
}

func TestFlattenTable(t *testing.T) {
	in := "<table><tr><td>Code</td><td>Name &amp; Co</td></tr><tr><td>1</td><td></td></tr></table>"
	assert.Equal(t, "Code | Name & Co\n1 | ", FlattenTable(in))

	// Non-table text passes through.
	assert.Equal(t, "# heading", FlattenTable("# heading"))
}

func TestFlattenTableKeepsSurroundingText(t *testing.T) {
	in := "Securities Account: 1311657086\n\n" +
		"<table><tr><td>Code</td><td>Qty</td></tr><tr><td>600519</td><td>100</td></tr></table>\n\n" +
		"Statement Date: 2026-03-02"

	got := FlattenTable(in)
	assert.Contains(t, got, "Securities Account: 1311657086")
	assert.Contains(t, got, "Code | Qty\n600519 | 100")
	assert.Contains(t, got, "Statement Date: 2026-03-02")
}

func TestFlattenTableMultipleTables(t *testing.T) {
	in := "trades\n<table><tr><td>a</td></tr></table>\npositions\n<table><tr><td>b</td></tr></table>"
	assert.Equal(t, "trades\na\npositions\nb", FlattenTable(in))
}
