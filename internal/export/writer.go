// Package export renders extraction results into the consolidated review
// workbook: one sheet, one section per record type in canonical order.
package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/compliancedesk/filings/constants"
	"github.com/compliancedesk/filings/internal/common"
	"github.com/compliancedesk/filings/internal/llm"
)

const (
	sheetName   = "Filings"
	minColWidth = 10
	maxColWidth = 50
)

// TemplateWriter builds the consolidated XLSX report.
type TemplateWriter struct {
	logger *slog.Logger
}

func NewTemplateWriter(logger *slog.Logger) *TemplateWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateWriter{logger: logger}
}

// WriteFile renders the result and saves the workbook at path.
func (w *TemplateWriter) WriteFile(result *llm.ExtractionResult, path string) error {
	f, err := w.build(result)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("%w: save %s: %v", common.ErrTemplateWrite, path, err)
	}
	return nil
}

// WriteBuffer renders the result and returns the workbook bytes.
func (w *TemplateWriter) WriteBuffer(result *llm.ExtractionResult) ([]byte, error) {
	f, err := w.build(result)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("%w: write buffer: %v", common.ErrTemplateWrite, err)
	}
	return buf.Bytes(), nil
}

func (w *TemplateWriter) build(result *llm.ExtractionResult) (*excelize.File, error) {
	start := time.Now()

	byType := groupByType(result)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: rename sheet: %v", common.ErrTemplateWrite, err)
	}

	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: title style: %v", common.ErrTemplateWrite, err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: header style: %v", common.ErrTemplateWrite, err)
	}

	// Column widths track the longest rendered cell, capped for readability.
	widths := map[int]int{}
	note := func(col int, s string) {
		if n := len([]rune(s)); n > widths[col] {
			widths[col] = n
		}
	}
	set := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		note(col, v)
		return f.SetCellValue(sheetName, cell, v)
	}

	row := 1
	written := 0
	for _, rt := range constants.RecordTypes {
		records := byType[rt]
		if len(records) == 0 {
			continue
		}
		fields := constants.FieldMaps[rt]

		if err := set(1, row, constants.Titles[rt]); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: section title: %v", common.ErrTemplateWrite, err)
		}
		startCell, _ := excelize.CoordinatesToCellName(1, row)
		endCell, _ := excelize.CoordinatesToCellName(len(fields), row)
		_ = f.SetCellStyle(sheetName, startCell, endCell, titleStyle)
		row++

		for i, field := range fields {
			if err := set(i+1, row, field.Display); err != nil {
				f.Close()
				return nil, fmt.Errorf("%w: header row: %v", common.ErrTemplateWrite, err)
			}
		}
		startCell, _ = excelize.CoordinatesToCellName(1, row)
		endCell, _ = excelize.CoordinatesToCellName(len(fields), row)
		_ = f.SetCellStyle(sheetName, startCell, endCell, headerStyle)
		row++

		for _, rec := range records {
			for i, field := range fields {
				// Missing keys render as empty cells, never as an error.
				if err := set(i+1, row, rec.Field(field.Key)); err != nil {
					f.Close()
					return nil, fmt.Errorf("%w: data row: %v", common.ErrTemplateWrite, err)
				}
			}
			row++
			written++
		}

		// Blank separator before the next section.
		row++
	}

	for col, n := range widths {
		width := n + 2
		if width < minColWidth {
			width = minColWidth
		}
		if width > maxColWidth {
			width = maxColWidth
		}
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			continue
		}
		_ = f.SetColWidth(sheetName, name, name, float64(width))
	}

	w.logger.Info("export.write.ok",
		"records", written,
		"rows", row-1,
		"elapsed_ms", time.Since(start).Milliseconds())
	return f, nil
}

func groupByType(result *llm.ExtractionResult) map[constants.RecordType][]llm.ExtractedRecord {
	out := make(map[constants.RecordType][]llm.ExtractedRecord)
	if result == nil {
		return out
	}
	for _, rec := range result.AllRecords() {
		rt := rec.Type()
		out[rt] = append(out[rt], rec)
	}
	return out
}
