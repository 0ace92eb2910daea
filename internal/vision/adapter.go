// Package vision delegates image and scanned-PDF content to the external
// document-vision parser and returns its markdown output.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/compliancedesk/filings/constants"
	"github.com/compliancedesk/filings/internal/common"
)

// Mode selects the parser backend. ModeFast is the cheaper default;
// ModeHighFidelity is used for quality-driven re-extraction.
type Mode string

const (
	ModeFast         Mode = "pipeline"
	ModeHighFidelity Mode = "vlm"
)

// Parser is the boundary the pipeline depends on: document bytes in,
// markdown out.
type Parser interface {
	Parse(ctx context.Context, data []byte, fileName string, mode Mode) (string, error)
}

// Client talks to the external parser service over HTTP.
type Client struct {
	cfg        common.ParserConfig
	outputRoot string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg common.ParserConfig, outputRoot string, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.ParseMethod == "" {
		cfg.ParseMethod = "auto"
	}
	if cfg.Language == "" {
		cfg.Language = "ch"
	}
	if outputRoot == "" {
		outputRoot = "./output"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		outputRoot: outputRoot,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type parseRequest struct {
	FileName      string `json:"file_name"`
	FileBase64    string `json:"file_base64"`
	Backend       string `json:"backend"`
	Language      string `json:"lang"`
	ParseMethod   string `json:"parse_method"`
	FormulaEnable bool   `json:"formula_enable"`
	TableEnable   bool   `json:"table_enable"`
	ReturnMD      bool   `json:"return_md"`
}

type parseResponse struct {
	// MDContent is a pointer so an absent artifact is distinguishable from
	// an empty markdown document.
	MDContent *string `json:"md_content"`
}

// Parse sends the document to the external parser and returns its markdown.
// Image inputs are first wrapped in a single-page PDF container because the
// parser interface is PDF-oriented. Each call writes its artifact to a
// fresh uuid-named directory under the output root.
func (c *Client) Parse(ctx context.Context, data []byte, fileName string, mode Mode) (string, error) {
	start := time.Now()
	rid := uuid.New().String()

	if isImage(data, fileName) {
		wrapped, err := ImageToPDF(data, fileName)
		if err != nil {
			return "", fmt.Errorf("%w: wrap image as pdf: %v", common.ErrParsingFailure, err)
		}
		data = wrapped
		c.logger.Info("vision.parse.image_wrapped", "req_id", rid, "pdf_bytes", len(data))
	}

	body := parseRequest{
		FileName:      fileName,
		FileBase64:    base64.StdEncoding.EncodeToString(data),
		Backend:       string(mode),
		Language:      c.cfg.Language,
		ParseMethod:   c.cfg.ParseMethod,
		FormulaEnable: c.cfg.Formula,
		TableEnable:   c.cfg.Table,
		ReturnMD:      true,
	}

	c.logger.Info("vision.parse.start",
		"req_id", rid,
		"file", fileName,
		"mode", string(mode),
		"bytes", len(data),
	)

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/parse", body)
	if err != nil {
		c.logger.Error("vision.parse.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", fmt.Errorf("%w: %v", common.ErrParsingFailure, err)
	}

	var resp parseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode parser response: %v", common.ErrParsingFailure, err)
	}
	if resp.MDContent == nil {
		// The parser ran but emitted no markdown artifact. Not the same
		// thing as an empty document.
		c.logger.Error("vision.parse.no_artifact", "req_id", rid, "file", fileName)
		return "", common.ErrNoParserContent
	}

	markdown := *resp.MDContent
	if dir, err := c.saveArtifact(fileName, markdown); err != nil {
		c.logger.Warn("vision.parse.artifact_save_failed", "req_id", rid, "error", err)
	} else {
		c.logger.Info("vision.parse.ok",
			"req_id", rid,
			"markdown_bytes", len(markdown),
			"artifact_dir", dir,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	return markdown, nil
}

// saveArtifact writes the markdown under a fresh uuid directory so repeated
// or concurrent calls never collide.
func (c *Client) saveArtifact(fileName, markdown string) (string, error) {
	dir := filepath.Join(c.outputRoot, uuid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, constants.SafeStem(fileName)+".md")
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return "", err
	}
	return dir, nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	bs, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("vision.parse.body_close_error", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("parser status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}
	return raw, nil
}

// truncate cuts on a rune boundary so Chinese parser output stays valid
// UTF-8 in logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "...(truncated)"
}

func isImage(data []byte, fileName string) bool {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return false
	}
	ext := constants.NormalizeExt(filepath.Ext(fileName))
	switch ext {
	case "jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp":
		return true
	}
	return !bytes.HasPrefix(data, []byte("%PDF")) && len(data) >= 3 &&
		(bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) ||
			bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}) ||
			bytes.HasPrefix(data, []byte("GIF8")))
}
