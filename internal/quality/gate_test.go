package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compliancedesk/filings/internal/llm"
)

func result(records ...llm.ExtractedRecord) *llm.ExtractionResult {
	return &llm.ExtractionResult{
		Files: []llm.FileRecords{{FileName: "doc.pdf", Records: records}},
	}
}

func TestRecordValidOnePerGroup(t *testing.T) {
	rec := llm.ExtractedRecord{
		RecordType: "securities-trade",
		Data: map[string]any{
			"security_code":  "600519",
			"trade_date":     "2026-03-02",
			"trade_quantity": float64(100),
		},
	}
	assert.True(t, RecordValid(rec))
}

func TestRecordInvalidAllGroupsMissing(t *testing.T) {
	rec := llm.ExtractedRecord{
		RecordType: "securities-trade",
		Data:       map[string]any{"remarks": "illegible scan"},
	}
	assert.False(t, RecordValid(rec))
}

func TestRecordValidNumericZeroCounts(t *testing.T) {
	rec := llm.ExtractedRecord{
		RecordType: "otc-fund-position",
		Data: map[string]any{
			"product_name":    "钱塘 Growth Fund",
			"position_date":   "2026-06-30",
			"position_shares": float64(0),
		},
	}
	assert.True(t, RecordValid(rec))
}

func TestRecordInvalidBlankStringsOnly(t *testing.T) {
	rec := llm.ExtractedRecord{
		RecordType: "securities-position",
		Data: map[string]any{
			"security_code":   "",
			"position_date":   "2026-06-30",
			"position_shares": float64(300),
		},
	}
	assert.False(t, RecordValid(rec))
}

func TestEvaluateEmptyResult(t *testing.T) {
	g := NewGate(nil)
	assert.False(t, g.Evaluate(nil))
	assert.False(t, g.Evaluate(&llm.ExtractionResult{}))
	assert.False(t, g.Evaluate(result()))
}

func TestEvaluateOneBadRecordFailsBatch(t *testing.T) {
	good := llm.ExtractedRecord{
		RecordType: "securities-trade",
		Data: map[string]any{
			"security_name": "Kweichow Moutai",
			"trade_date":    "2026-03-02",
			"trade_amount":  float64(171000),
		},
	}
	bad := llm.ExtractedRecord{RecordType: "securities-trade", Data: map[string]any{}}

	g := NewGate(nil)
	assert.True(t, g.Evaluate(result(good)))
	assert.False(t, g.Evaluate(result(good, bad)))
}
