// Package pdftext extracts embedded text directly from PDF content streams,
// so text-native documents can skip the vision parser entirely.
package pdftext

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultThreshold is the average non-whitespace chars/page above which a
// PDF is treated as text-native. A heuristic, not a proof: image PDFs that
// slip through yield near-empty text and are caught by the quality gate.
const DefaultThreshold = 100

// samplePages bounds how many leading pages the extractability test reads.
const samplePages = 3

type Extractor struct {
	threshold float64
	logger    *slog.Logger
}

func NewExtractor(threshold float64, logger *slog.Logger) *Extractor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{threshold: threshold, logger: logger}
}

// IsTextNative inspects up to the first three pages and reports whether the
// average non-whitespace character count per checked page exceeds the
// threshold. Open/parse failures classify as not text-native.
func (e *Extractor) IsTextNative(data []byte) bool {
	ctx, err := readContext(data)
	if err != nil {
		e.logger.Warn("pdftext.probe.open_failed", "error", err)
		return false
	}

	pages := ctx.PageCount
	if pages > samplePages {
		pages = samplePages
	}
	if pages == 0 {
		return false
	}

	total := 0
	for pageNr := 1; pageNr <= pages; pageNr++ {
		total += countInk(pageText(ctx, pageNr))
	}
	avg := float64(total) / float64(pages)

	e.logger.Debug("pdftext.probe",
		"pages_checked", pages,
		"avg_chars_per_page", avg,
		"threshold", e.threshold,
	)
	return avg > e.threshold
}

// Extract pulls text from every page, joined with "--- page N ---" markers.
// Returns an error when the PDF cannot be opened or holds no text at all;
// the caller falls through to the vision path rather than aborting.
func (e *Extractor) Extract(data []byte) (string, error) {
	ctx, err := readContext(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		txt := pageText(ctx, pageNr)
		if pageNr > 1 {
			fmt.Fprintf(&b, "\n--- page %d ---\n", pageNr)
		}
		b.WriteString(txt)
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return out, nil
}

func readContext(data []byte) (*model.Context, error) {
	conf := model.NewDefaultConfiguration()
	return api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
}

// pageText decodes one page's content stream into plain text. Extraction
// failures on individual pages degrade to an empty page, not an error.
func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	raw, err := io.ReadAll(r)
	if err != nil || len(raw) == 0 {
		return ""
	}
	return streamToText(raw)
}

// streamToText walks PDF content stream operators and collects the text
// shown by Tj/TJ/' operators, approximating layout with spaces and breaks.
func streamToText(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			writeLiterals(&sb, line, false)
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			writeLiterals(&sb, line, true)
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return squeezeWhitespace(sb.String())
}

// literalRe matches PDF string literals in parentheses: (text here)
var literalRe = regexp.MustCompile(`\(([^)]*)\)`)

func writeLiterals(sb *strings.Builder, line []byte, newline bool) {
	for _, m := range literalRe.FindAllSubmatch(line, -1) {
		text := decodeLiteral(m[1])
		if text == "" {
			continue
		}
		if newline {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}
}

// decodeLiteral handles the basic PDF string escape sequences, including
// octal escapes like \040.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c >= '0' && c <= '7' {
				val := int(c - '0')
				for j := 0; j < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; j++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

func squeezeWhitespace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}

// countInk counts non-whitespace runes.
func countInk(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
