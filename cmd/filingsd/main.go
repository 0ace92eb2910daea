package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/compliancedesk/filings/internal/async"
	"github.com/compliancedesk/filings/internal/common"
	"github.com/compliancedesk/filings/internal/export"
	"github.com/compliancedesk/filings/internal/llm"
	"github.com/compliancedesk/filings/internal/llm/openai"
	"github.com/compliancedesk/filings/internal/pdftext"
	"github.com/compliancedesk/filings/internal/pipeline"
	"github.com/compliancedesk/filings/internal/quality"
	"github.com/compliancedesk/filings/internal/server"
	"github.com/compliancedesk/filings/internal/session"
	"github.com/compliancedesk/filings/internal/tabulize"
	"github.com/compliancedesk/filings/internal/vision"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "filingsd:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Pipeline.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	store, err := session.Open(cfg.Store.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	completer := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	pipe := pipeline.New(
		cfg.Pipeline.OutputRoot,
		pdftext.NewExtractor(cfg.Pipeline.PDFTextThreshold, logger),
		tabulize.NewTabulizer(logger),
		vision.NewClient(cfg.Parser, cfg.Pipeline.OutputRoot, logger),
		llm.NewRecordExtractor(completer, logger),
		quality.NewGate(logger),
		export.NewTemplateWriter(logger),
		logger,
	)

	srv := server.New(cfg.Server, pipe, store, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithJobTimeout(cfg.Pipeline.JobTimeout),
	)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("filingsd.listen", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("filingsd.shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("filingsd.shutdown.http", "error", err)
	}
	srv.Shutdown(shutdownCtx)
	logger.Info("filingsd.shutdown.done")
	return nil
}
