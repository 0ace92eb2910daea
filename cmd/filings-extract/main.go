// filings-extract runs the extraction pipeline once over a local file and
// prints the session summary. Useful for smoke-testing parser and model
// configuration without the HTTP tier.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compliancedesk/filings/internal/common"
	"github.com/compliancedesk/filings/internal/export"
	"github.com/compliancedesk/filings/internal/llm"
	"github.com/compliancedesk/filings/internal/llm/openai"
	"github.com/compliancedesk/filings/internal/pdftext"
	"github.com/compliancedesk/filings/internal/pipeline"
	"github.com/compliancedesk/filings/internal/quality"
	"github.com/compliancedesk/filings/internal/tabulize"
	"github.com/compliancedesk/filings/internal/vision"
)

func main() {
	outputRoot := flag.String("out", "", "output root (default FILINGS_OUTPUT_ROOT)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: filings-extract [-out dir] [-v] <document>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *outputRoot, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "filings-extract:", err)
		os.Exit(1)
	}
}

func run(path, outputRoot string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if outputRoot == "" {
		outputRoot = cfg.Pipeline.OutputRoot
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	completer := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	pipe := pipeline.New(
		outputRoot,
		pdftext.NewExtractor(cfg.Pipeline.PDFTextThreshold, logger),
		tabulize.NewTabulizer(logger),
		vision.NewClient(cfg.Parser, outputRoot, logger),
		llm.NewRecordExtractor(completer, logger),
		quality.NewGate(logger),
		export.NewTemplateWriter(logger),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.JobTimeout)
	defer cancel()

	res, err := pipe.Run(ctx, data, filepath.Base(path))
	if err != nil {
		return err
	}

	fmt.Printf("session:  %s\n", res.SessionID)
	fmt.Printf("outcome:  %s\n", res.Outcome)
	fmt.Printf("type:     %s via %s (%d attempt(s))\n", res.DetectedType, res.ParseMethod, res.Attempts)
	fmt.Printf("records:  %d\n", res.Records)
	fmt.Printf("workbook: %s\n", res.ArtifactPath)
	if res.Degraded {
		fmt.Println("warning: quality gate still failing after escalation; review the workbook manually")
	}
	return nil
}
