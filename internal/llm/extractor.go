package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/compliancedesk/filings/constants"
	"github.com/compliancedesk/filings/internal/common"
)

const previewLen = 200

// RecordExtractor turns document text into typed filing records through a
// chat completion, then enforces the response contract: valid JSON, schema
// conformance, and record types drawn from the closed vocabulary. A single
// unknown type rejects the whole batch.
type RecordExtractor struct {
	completer Completer
	logger    *slog.Logger
}

func NewRecordExtractor(completer Completer, logger *slog.Logger) *RecordExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordExtractor{completer: completer, logger: logger}
}

// Extract runs one extraction pass over the given document text.
func (e *RecordExtractor) Extract(ctx context.Context, fileName, document string) (*ExtractionResult, error) {
	start := time.Now()
	e.logger.Info("llm.extract.start", "file", fileName, "document_chars", len(document))

	prompt := BuildExtractionPrompt(fileName, document)
	content, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		e.logger.Error("llm.extract.complete_failed", "file", fileName, "error", err)
		return nil, fmt.Errorf("%w: chat completion: %v", common.ErrCompletionFailure, err)
	}

	result, err := e.parse(content)
	if err != nil {
		e.logger.Error("llm.extract.parse_failed",
			"file", fileName,
			"error", err,
			"content_preview", preview(content))
		return nil, err
	}

	e.logger.Info("llm.extract.done",
		"file", fileName,
		"records", len(result.AllRecords()),
		"elapsed_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (e *RecordExtractor) parse(content string) (*ExtractionResult, error) {
	raw := []byte(StripFences(content))

	var result ExtractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decode completion JSON: %v", common.ErrCompletionFailure, err)
	}

	// Checked before the schema so the error names the offending type; one
	// unknown type rejects the whole batch.
	for _, f := range result.Files {
		for _, rec := range f.Records {
			if !constants.IsValidRecordType(rec.RecordType) {
				return nil, fmt.Errorf("%w: unknown record_type %q", common.ErrCompletionFailure, rec.RecordType)
			}
		}
	}

	if err := ValidateJSONAgainstSchema(raw, BuildExtractionSchema()); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCompletionFailure, err)
	}
	return &result, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// "json" language tag, from a completion payload.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && strings.TrimSpace(s[:i]) == "json" {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// preview truncates on a rune boundary; completion content is routinely
// Chinese and a byte cut would mangle the diagnostic.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
