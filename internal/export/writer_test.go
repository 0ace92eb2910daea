package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/compliancedesk/filings/constants"
	"github.com/compliancedesk/filings/internal/llm"
)

func TestWriteBufferSectionsInCanonicalOrder(t *testing.T) {
	// otc-fund-trade comes after securities-trade in the canonical ordering,
	// so listing it first in the input must not change the sheet layout.
	result := &llm.ExtractionResult{
		Files: []llm.FileRecords{{
			FileName: "mixed.pdf",
			Records: []llm.ExtractedRecord{
				{
					RecordType: string(constants.OTCFundTrade),
					Data: map[string]any{
						"product_name": "Harvest CSI 300",
						"trade_date":   "2026-04-01",
						"trade_amount": float64(5000),
					},
				},
				{
					RecordType: string(constants.SecuritiesTrade),
					Data: map[string]any{
						"security_code":  "600519",
						"security_name":  "Kweichow Moutai",
						"trade_date":     "2026-03-02",
						"trade_quantity": float64(100),
					},
				},
			},
		}},
	}

	w := NewTemplateWriter(nil)
	raw, err := w.WriteBuffer(result)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Filings")
	require.NoError(t, err)

	// Row 1: securities-trade section title, row 2: its headers.
	require.GreaterOrEqual(t, len(rows), 7)
	assert.Equal(t, constants.Titles[constants.SecuritiesTrade], rows[0][0])
	assert.Equal(t, constants.FieldMaps[constants.SecuritiesTrade].DisplayNames(), rows[1][:len(constants.FieldMaps[constants.SecuritiesTrade])])
	assert.Contains(t, rows[2], "600519")
	assert.Contains(t, rows[2], "100")

	// Row 4 is the blank separator; GetRows may return it as empty slice.
	assert.Empty(t, rows[3])

	// Then the otc-fund-trade section.
	assert.Equal(t, constants.Titles[constants.OTCFundTrade], rows[4][0])
	assert.Contains(t, rows[6], "Harvest CSI 300")
}

func TestWriteBufferMissingKeysRenderEmpty(t *testing.T) {
	result := &llm.ExtractionResult{
		Files: []llm.FileRecords{{
			FileName: "sparse.pdf",
			Records: []llm.ExtractedRecord{{
				RecordType: string(constants.SecuritiesPosition),
				Data:       map[string]any{"security_name": "Ping An"},
			}},
		}},
	}

	raw, err := NewTemplateWriter(nil).WriteBuffer(result)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Filings")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 3)
	assert.Contains(t, rows[2], "Ping An")
}

func TestWriteBufferEmptyResult(t *testing.T) {
	raw, err := NewTemplateWriter(nil).WriteBuffer(&llm.ExtractionResult{})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Filings")
	require.NoError(t, err)
	assert.Empty(t, rows)
}
