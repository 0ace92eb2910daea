package pipeline

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/compliancedesk/filings/internal/common"
	"github.com/compliancedesk/filings/internal/detect"
	"github.com/compliancedesk/filings/internal/export"
	"github.com/compliancedesk/filings/internal/llm"
	"github.com/compliancedesk/filings/internal/pdftext"
	"github.com/compliancedesk/filings/internal/quality"
	"github.com/compliancedesk/filings/internal/tabulize"
	"github.com/compliancedesk/filings/internal/vision"
)

type fakeParser struct {
	markdown string
	err      error
	modes    []vision.Mode
}

func (f *fakeParser) Parse(_ context.Context, _ []byte, _ string, mode vision.Mode) (string, error) {
	f.modes = append(f.modes, mode)
	return f.markdown, f.err
}

type seqCompleter struct {
	responses []string
	calls     int
}

func (s *seqCompleter) Complete(context.Context, string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

const goodCompletion = `{"files":[{"file_name":"doc","records":[
  {"record_type":"securities-trade","data":{"security_code":"600519","trade_date":"2026-03-02","trade_quantity":100}}
]}]}`

// Parses and passes type validation but fails the quality gate.
const thinCompletion = `{"files":[{"file_name":"doc","records":[
  {"record_type":"securities-trade","data":{"remarks":"illegible"}}
]}]}`

func newPipeline(t *testing.T, parser vision.Parser, completer llm.Completer) *Pipeline {
	t.Helper()
	return New(
		t.TempDir(),
		pdftext.NewExtractor(pdftext.DefaultThreshold, nil),
		tabulize.NewTabulizer(nil),
		parser,
		llm.NewRecordExtractor(completer, nil),
		quality.NewGate(nil),
		export.NewTemplateWriter(nil),
		nil,
	)
}

func xlsxBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Security Code"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "600519"))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestRunSpreadsheetSucceeds(t *testing.T) {
	parser := &fakeParser{}
	p := newPipeline(t, parser, &seqCompleter{responses: []string{goodCompletion}})

	res, err := p.Run(context.Background(), xlsxBytes(t), "trades.xlsx")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.False(t, res.Degraded)
	assert.Equal(t, detect.TypeSpreadsheet, res.DetectedType)
	assert.Equal(t, MethodSpreadsheet, res.ParseMethod)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, res.Records)
	assert.Empty(t, parser.modes, "spreadsheets never hit the vision parser")

	for _, path := range []string{res.DocumentPath, res.ReportPath, res.ArtifactPath} {
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, path)
	}
}

func TestRunEscalatesOnceAndAdoptsValidSecondPass(t *testing.T) {
	parser := &fakeParser{markdown: "| code | 600519 |"}
	completer := &seqCompleter{responses: []string{thinCompletion, goodCompletion}}
	p := newPipeline(t, parser, completer)

	// Image-native PDF: header only, no text operators.
	res, err := p.Run(context.Background(), []byte("%PDF-1.7 scanned junk"), "scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, MethodVisionVLM, res.ParseMethod)
	require.Equal(t, []vision.Mode{vision.ModeFast, vision.ModeHighFidelity}, parser.modes)
	assert.Equal(t, 2, completer.calls)
}

func TestRunKeepsFirstResultWhenSecondPassNoBetter(t *testing.T) {
	parser := &fakeParser{markdown: "blurry"}
	completer := &seqCompleter{responses: []string{thinCompletion}}
	p := newPipeline(t, parser, completer)

	res, err := p.Run(context.Background(), []byte("%PDF-1.7 junk"), "scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.Attempts, "exactly one escalation, never more")
	assert.Equal(t, MethodVisionFast, res.ParseMethod, "first result kept")
	assert.Equal(t, 1, res.Records)

	// Degraded runs still ship their artifacts.
	_, statErr := os.Stat(res.ArtifactPath)
	assert.NoError(t, statErr)
}

func TestRunSpreadsheetNeverEscalates(t *testing.T) {
	parser := &fakeParser{}
	p := newPipeline(t, parser, &seqCompleter{responses: []string{thinCompletion}})

	res, err := p.Run(context.Background(), xlsxBytes(t), "trades.xlsx")
	require.NoError(t, err)

	assert.Equal(t, OutcomeDegraded, res.Outcome)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, parser.modes)
}

func TestRunUnknownFormat(t *testing.T) {
	p := newPipeline(t, &fakeParser{}, &seqCompleter{responses: []string{goodCompletion}})

	res, err := p.Run(context.Background(), []byte("plain text, no magic"), "notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestRunParserFailureIsFatal(t *testing.T) {
	parser := &fakeParser{err: common.ErrParsingFailure}
	p := newPipeline(t, parser, &seqCompleter{responses: []string{goodCompletion}})

	_, err := p.Run(context.Background(), []byte("%PDF-1.7 junk"), "scan.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrParsingFailure)
	assert.True(t, IsFatal(err))
}
