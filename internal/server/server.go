// Package server exposes the extraction pipeline over HTTP: upload a
// document, poll the session, download the filled workbook.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/compliancedesk/filings/internal/async"
	"github.com/compliancedesk/filings/internal/common"
	"github.com/compliancedesk/filings/internal/pipeline"
	"github.com/compliancedesk/filings/internal/session"
)

// Server wires the HTTP surface to the queue, pipeline, and session store.
type Server struct {
	cfg    common.ServerConfig
	pipe   *pipeline.Pipeline
	queue  *async.Queue
	store  *session.Store
	logger *slog.Logger
}

func New(cfg common.ServerConfig, pipe *pipeline.Pipeline, store *session.Store, logger *slog.Logger, queueOpts ...async.Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, pipe: pipe, store: store, logger: logger}
	s.queue = async.NewQueue(s.process, logger, queueOpts...)
	return s
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.handleExtract)
		r.Get("/extract/{sessionID}", s.handleStatus)
		r.Get("/download/{sessionID}", s.handleDownload)
	})
	return r
}

// Shutdown drains the worker queue.
func (s *Server) Shutdown(ctx context.Context) {
	s.queue.Shutdown(ctx)
}

// process is the queue handler: it runs the pipeline and records the
// terminal session state. Failures live in the session row, not the queue.
func (s *Server) process(ctx context.Context, job async.Job) error {
	if err := s.store.MarkProcessing(ctx, job.SessionID); err != nil {
		s.logger.Error("server.process.mark_failed", "session_id", job.SessionID, "error", err)
	}

	res, runErr := s.pipe.RunSession(ctx, job.SessionID, job.Data, job.FileName)

	sess := session.Session{
		ID:           job.SessionID,
		DetectedType: string(res.DetectedType),
		ParseMethod:  res.ParseMethod,
		Attempts:     res.Attempts,
		Records:      res.Records,
		Degraded:     res.Degraded,
		ArtifactPath: res.ArtifactPath,
	}
	switch {
	case runErr != nil:
		sess.Status = session.StatusFailed
		sess.Error = runErr.Error()
	case res.Degraded:
		sess.Status = session.StatusDegraded
	default:
		sess.Status = session.StatusSucceeded
	}

	if err := s.store.Finish(context.WithoutCancel(ctx), sess); err != nil {
		s.logger.Error("server.process.finish_failed", "session_id", job.SessionID, "error", err)
	}
	return runErr
}

type extractResponse struct {
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	StatusURL   string `json:"status_url"`
	DownloadURL string `json:"download_url"`
}

type statusResponse struct {
	SessionID    string `json:"session_id"`
	FileName     string `json:"file_name"`
	Status       string `json:"status"`
	DetectedType string `json:"detected_type,omitempty"`
	ParseMethod  string `json:"parse_method,omitempty"`
	Attempts     int    `json:"attempts"`
	Records      int    `json:"records"`
	Degraded     bool   `json:"degraded"`
	Error        string `json:"error,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	sessionID := uuid.New().String()
	if err := s.store.Create(r.Context(), sessionID, header.Filename); err != nil {
		s.logger.Error("server.extract.create_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "create session")
		return
	}

	if err := s.queue.Enqueue(r.Context(), async.Job{
		SessionID: sessionID,
		FileName:  header.Filename,
		Data:      data,
	}); err != nil {
		// The job will never run; fail the row so it cannot sit queued
		// forever.
		if ferr := s.store.Finish(r.Context(), session.Session{
			ID:     sessionID,
			Status: session.StatusFailed,
			Error:  err.Error(),
		}); ferr != nil {
			s.logger.Error("server.extract.fail_session", "session_id", sessionID, "error", ferr)
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":      "server is shutting down",
			"session_id": sessionID,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, extractResponse{
		SessionID:   sessionID,
		Status:      session.StatusQueued,
		StatusURL:   "/api/extract/" + sessionID,
		DownloadURL: "/api/download/" + sessionID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		s.logger.Error("server.status.failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "load session")
		return
	}

	resp := statusResponse{
		SessionID:    sess.ID,
		FileName:     sess.FileName,
		Status:       sess.Status,
		DetectedType: sess.DetectedType,
		ParseMethod:  sess.ParseMethod,
		Attempts:     sess.Attempts,
		Records:      sess.Records,
		Degraded:     sess.Degraded,
		Error:        sess.Error,
	}
	if sess.ArtifactPath != "" {
		resp.DownloadURL = "/api/download/" + sess.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		writeError(w, http.StatusInternalServerError, "load session")
		return
	}
	if sess.ArtifactPath == "" {
		writeError(w, http.StatusConflict, "session has no artifact yet")
		return
	}

	f, err := os.Open(sess.ArtifactPath)
	if err != nil {
		s.logger.Error("server.download.open_failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusNotFound, "artifact missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(sess.ArtifactPath)+`"`)
	_, _ = io.Copy(w, f)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
