// Package quality decides whether an extraction pass is complete enough to
// ship, driving the pipeline's single high-fidelity escalation.
package quality

import (
	"log/slog"

	"github.com/compliancedesk/filings/internal/llm"
)

// Presence groups. A record must populate at least one key from each group
// to count as valid.
var (
	identityKeys = []string{
		"security_code", "security_name",
		"product_code", "product_name", "enterprise_name",
	}
	dateKeys = []string{
		"trade_date", "position_date", "settlement_date",
	}
	magnitudeKeys = []string{
		"trade_quantity", "trade_shares", "trade_price", "trade_amount",
		"position_quantity", "position_shares",
		"subscribed_capital", "paid_in_capital",
	}
)

// Gate evaluates an ExtractionResult against the completeness rules.
type Gate struct {
	logger *slog.Logger
}

func NewGate(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{logger: logger}
}

// Evaluate returns true only when the result holds at least one record and
// every record satisfies all three presence groups. A single malformed
// record fails the whole batch so the caller re-extracts rather than ships
// partial data.
func (g *Gate) Evaluate(result *llm.ExtractionResult) bool {
	if result == nil || len(result.Files) == 0 {
		g.logger.Warn("quality.evaluate.empty_result")
		return false
	}

	total := 0
	for _, f := range result.Files {
		for i, rec := range f.Records {
			total++
			if !RecordValid(rec) {
				g.logger.Warn("quality.evaluate.invalid_record",
					"file", f.FileName,
					"index", i,
					"record_type", rec.RecordType)
				return false
			}
		}
	}
	if total == 0 {
		g.logger.Warn("quality.evaluate.no_records")
		return false
	}

	g.logger.Info("quality.evaluate.ok", "records", total)
	return true
}

// RecordValid applies the three-group presence rule to one record.
func RecordValid(rec llm.ExtractedRecord) bool {
	return anyPresent(rec, identityKeys) &&
		anyPresent(rec, dateKeys) &&
		anyPresent(rec, magnitudeKeys)
}

func anyPresent(rec llm.ExtractedRecord, keys []string) bool {
	for _, k := range keys {
		if present(rec.Data[k]) {
			return true
		}
	}
	return false
}

// present treats numeric zero as a real value; only nil and blank strings
// are missing.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		return true
	}
}
