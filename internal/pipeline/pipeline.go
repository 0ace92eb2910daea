// Package pipeline drives one document through detection, text
// normalization, record extraction, the quality gate, and template export.
// Each run gets a session-unique output directory holding the audit
// artifacts: normalized text, validated JSON, and the final workbook.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/compliancedesk/filings/internal/common"
	"github.com/compliancedesk/filings/internal/detect"
	"github.com/compliancedesk/filings/internal/export"
	"github.com/compliancedesk/filings/internal/llm"
	"github.com/compliancedesk/filings/internal/pdftext"
	"github.com/compliancedesk/filings/internal/quality"
	"github.com/compliancedesk/filings/internal/tabulize"
	"github.com/compliancedesk/filings/internal/vision"
)

// Outcome classifies a finished run. Degraded is a success whose quality
// gate still failed after the single escalation; it is never folded into a
// clean success.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeDegraded  Outcome = "succeeded-degraded"
	OutcomeFailed    Outcome = "failed"
)

// Parse methods recorded per attempt.
const (
	MethodPDFText     = "pdf-text"
	MethodSpreadsheet = "spreadsheet"
	MethodVisionFast  = "vision-pipeline"
	MethodVisionVLM   = "vision-vlm"
)

// Result is the caller-facing summary of one run.
type Result struct {
	SessionID    string
	FileName     string
	DetectedType detect.Type
	ParseMethod  string
	Attempts     int
	Records      int
	Outcome      Outcome
	Degraded     bool
	DocumentPath string
	ReportPath   string
	ArtifactPath string
}

// Pipeline wires the stage components together.
type Pipeline struct {
	outputRoot string
	pdf        *pdftext.Extractor
	tab        *tabulize.Tabulizer
	parser     vision.Parser
	extractor  *llm.RecordExtractor
	gate       *quality.Gate
	writer     *export.TemplateWriter
	logger     *slog.Logger
}

func New(outputRoot string, pdf *pdftext.Extractor, tab *tabulize.Tabulizer, parser vision.Parser,
	extractor *llm.RecordExtractor, gate *quality.Gate, writer *export.TemplateWriter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		outputRoot: outputRoot,
		pdf:        pdf,
		tab:        tab,
		parser:     parser,
		extractor:  extractor,
		gate:       gate,
		writer:     writer,
		logger:     logger,
	}
}

type attempt struct {
	text   string
	method string
	result *llm.ExtractionResult
	valid  bool
}

// Run processes one document end to end under a fresh session ID. A non-nil
// Result comes back even on failure so the caller can record the session.
func (p *Pipeline) Run(ctx context.Context, data []byte, fileName string) (*Result, error) {
	return p.RunSession(ctx, uuid.New().String(), data, fileName)
}

// RunSession is Run with a caller-supplied session ID, for callers that
// hand the ID out (and record the session) before processing starts.
func (p *Pipeline) RunSession(ctx context.Context, sessionID string, data []byte, fileName string) (*Result, error) {
	start := time.Now()
	res := &Result{
		SessionID: sessionID,
		FileName:  fileName,
		Outcome:   OutcomeFailed,
	}

	sessionDir := filepath.Join(p.outputRoot, res.SessionID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return res, fmt.Errorf("create session dir: %w", err)
	}

	res.DetectedType = detect.DetectType(data, fileName)
	p.logger.Info("pipeline.detect.ok",
		"session_id", res.SessionID,
		"file", fileName,
		"detected_type", string(res.DetectedType),
		"bytes", len(data))
	if res.DetectedType == detect.TypeUnknown {
		return res, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, fileName)
	}

	first, err := p.attempt(ctx, res, data, fileName, false)
	if err != nil {
		return res, err
	}
	res.Attempts = 1

	adopted := first
	if !first.valid && p.canEscalate(res.DetectedType, first.method) {
		p.logger.Warn("pipeline.quality.escalate",
			"session_id", res.SessionID,
			"file", fileName,
			"first_method", first.method)
		second, err := p.attempt(ctx, res, data, fileName, true)
		res.Attempts = 2
		switch {
		case err != nil:
			// Keep the first result rather than fail a document we already
			// extracted something from.
			p.logger.Error("pipeline.escalate.failed",
				"session_id", res.SessionID, "error", err)
		case second.valid:
			adopted = second
		default:
			p.logger.Warn("pipeline.escalate.still_invalid", "session_id", res.SessionID)
		}
	}

	if adopted.valid {
		res.Outcome = OutcomeSucceeded
	} else {
		res.Outcome = OutcomeDegraded
		res.Degraded = true
	}
	res.ParseMethod = adopted.method
	res.Records = len(adopted.result.AllRecords())

	if err := p.writeArtifacts(res, sessionDir, adopted); err != nil {
		res.Outcome = OutcomeFailed
		return res, err
	}

	p.logger.Info("pipeline.run.done",
		"session_id", res.SessionID,
		"file", fileName,
		"outcome", string(res.Outcome),
		"attempts", res.Attempts,
		"records", res.Records,
		"elapsed_ms", time.Since(start).Milliseconds())
	return res, nil
}

// attempt normalizes the document to text and runs one extraction pass.
// forceVision pins the parser to its strongest mode regardless of type.
func (p *Pipeline) attempt(ctx context.Context, res *Result, data []byte, fileName string, forceVision bool) (*attempt, error) {
	text, method, err := p.normalize(ctx, res, data, fileName, forceVision)
	if err != nil {
		return nil, err
	}

	result, err := p.extractor.Extract(ctx, fileName, tabulize.FlattenTable(text))
	if err != nil {
		return nil, err
	}

	a := &attempt{text: text, method: method, result: result}
	a.valid = p.gate.Evaluate(result)
	return a, nil
}

func (p *Pipeline) normalize(ctx context.Context, res *Result, data []byte, fileName string, forceVision bool) (string, string, error) {
	if forceVision {
		text, err := p.parser.Parse(ctx, data, fileName, vision.ModeHighFidelity)
		return text, MethodVisionVLM, err
	}

	switch res.DetectedType {
	case detect.TypeSpreadsheet:
		text, err := p.tab.Tabulize(data)
		return text, MethodSpreadsheet, err

	case detect.TypePDF:
		if p.pdf.IsTextNative(data) {
			text, err := p.pdf.Extract(data)
			if err == nil {
				return text, MethodPDFText, nil
			}
			// Native extraction failing is not fatal; the vision path
			// handles image-native and broken PDFs alike.
			p.logger.Warn("pipeline.pdftext.fallback",
				"session_id", res.SessionID,
				"file", fileName,
				"error", err)
		}
		text, err := p.parser.Parse(ctx, data, fileName, vision.ModeFast)
		return text, MethodVisionFast, err

	case detect.TypeImage:
		text, err := p.parser.Parse(ctx, data, fileName, vision.ModeFast)
		return text, MethodVisionFast, err

	default:
		return "", "", fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, string(res.DetectedType))
	}
}

// canEscalate: only documents that can go through the vision parser get the
// one high-fidelity retry, and only if the failed attempt was not in the
// strongest mode already.
func (p *Pipeline) canEscalate(dt detect.Type, method string) bool {
	if method == MethodVisionVLM {
		return false
	}
	return dt == detect.TypePDF || dt == detect.TypeImage
}

func (p *Pipeline) writeArtifacts(res *Result, sessionDir string, a *attempt) error {
	res.DocumentPath = filepath.Join(sessionDir, "document.md")
	if err := os.WriteFile(res.DocumentPath, []byte(a.text), 0o644); err != nil {
		return fmt.Errorf("write document artifact: %w", err)
	}

	res.ReportPath = filepath.Join(sessionDir, "typed_report.json")
	raw, err := json.MarshalIndent(a.result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal typed report: %w", err)
	}
	if err := os.WriteFile(res.ReportPath, raw, 0o644); err != nil {
		return fmt.Errorf("write typed report: %w", err)
	}

	res.ArtifactPath = filepath.Join(sessionDir, "filled_template.xlsx")
	if err := p.writer.WriteFile(a.result, res.ArtifactPath); err != nil {
		return err
	}
	return nil
}

// IsFatal reports whether err carries one of the taxonomy sentinels that
// end a run with no fallback.
func IsFatal(err error) bool {
	return errors.Is(err, common.ErrUnsupportedFormat) ||
		errors.Is(err, common.ErrParsingFailure) ||
		errors.Is(err, common.ErrNoParserContent) ||
		errors.Is(err, common.ErrCompletionFailure) ||
		errors.Is(err, common.ErrTemplateWrite)
}
