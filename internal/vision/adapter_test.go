package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/compliancedesk/filings/internal/common"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(common.ParserConfig{BaseURL: srv.URL}, t.TempDir(), nil)
}

func TestParseReturnsMarkdown(t *testing.T) {
	var gotReq parseRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		md := "# Trade Confirmation\n| code | qty |"
		_ = json.NewEncoder(w).Encode(map[string]any{"md_content": md})
	})

	md, err := c.Parse(context.Background(), []byte("%PDF-1.4 stuff"), "statement.pdf", ModeHighFidelity)
	require.NoError(t, err)
	assert.Contains(t, md, "Trade Confirmation")
	assert.Equal(t, string(ModeHighFidelity), gotReq.Backend)
	assert.True(t, gotReq.ReturnMD)
}

func TestParseMissingArtifactIsDistinctError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})
	_, err := c.Parse(context.Background(), []byte("%PDF-1.4"), "a.pdf", ModeFast)
	assert.ErrorIs(t, err, common.ErrNoParserContent)
}

func TestParseEmptyMarkdownIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"md_content": ""})
	})
	md, err := c.Parse(context.Background(), []byte("%PDF-1.4"), "a.pdf", ModeFast)
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestParseHTTPErrorIsParsingFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.Parse(context.Background(), []byte("%PDF-1.4"), "a.pdf", ModeFast)
	assert.ErrorIs(t, err, common.ErrParsingFailure)
}

func TestParseWrapsImagesAsPDF(t *testing.T) {
	var gotReq parseRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{"md_content": "ok"})
	})

	_, err := c.Parse(context.Background(), pngBytes(t), "screenshot.png", ModeFast)
	require.NoError(t, err)

	sent, err := base64.StdEncoding.DecodeString(gotReq.FileBase64)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(sent, []byte("%PDF")), "image payload should be wrapped in a PDF container")
}

func TestImageToPDF(t *testing.T) {
	out, err := ImageToPDF(pngBytes(t), "shot.png")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = ImageToPDF([]byte("not an image"), "shot.xyz")
	assert.Error(t, err)
}

func testImage(t *testing.T) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

// BMP and TIFF screenshots detect as images, so they must survive the PDF
// wrap instead of being rejected before the parser is called.
func TestImageToPDFReencodesBMPAndTIFF(t *testing.T) {
	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, testImage(t)))
	out, err := ImageToPDF(bmpBuf.Bytes(), "holdings-screenshot.bmp")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	var tiffBuf bytes.Buffer
	require.NoError(t, tiff.Encode(&tiffBuf, testImage(t), nil))
	out, err = ImageToPDF(tiffBuf.Bytes(), "holdings-scan.tiff")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestImageTypeSniffsWebP(t *testing.T) {
	header := append([]byte("RIFF\x00\x00\x00\x00WEBP"), make([]byte, 4)...)
	got, err := imageType(header, "shot.webp")
	require.NoError(t, err)
	assert.Equal(t, "WEBP", got)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	s := strings.Repeat("证券", 300)
	got := truncate(s, 512)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
}
