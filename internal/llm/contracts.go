package llm

import (
	"context"

	"github.com/compliancedesk/filings/constants"
)

// ExtractedRecord is one typed compliance record as returned by the model.
// Data values stay opaque strings/numbers; coercion, if any, happens at
// template-write time.
type ExtractedRecord struct {
	RecordType string         `json:"record_type"`
	Data       map[string]any `json:"data"`
}

// Type returns the record's type as the closed enum.
func (r ExtractedRecord) Type() constants.RecordType {
	return constants.RecordType(r.RecordType)
}

// Field returns the string rendering of a canonical data key, or "" when
// the key is absent or null.
func (r ExtractedRecord) Field(key string) string {
	return RenderValue(r.Data[key])
}

// FileRecords groups the records extracted from one source file.
type FileRecords struct {
	FileName string            `json:"file_name"`
	Records  []ExtractedRecord `json:"records"`
}

// ExtractionResult is the top-level output of one extraction pass.
type ExtractionResult struct {
	Files []FileRecords `json:"files"`
}

// AllRecords flattens the result into one record slice, preserving file and
// record order.
func (r *ExtractionResult) AllRecords() []ExtractedRecord {
	if r == nil {
		return nil
	}
	var out []ExtractedRecord
	for _, f := range r.Files {
		out = append(out, f.Records...)
	}
	return out
}

// Completer is the chat-completion boundary the extractor depends on.
// The prompt goes in; the raw model response content comes out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
