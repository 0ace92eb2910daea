package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/compliancedesk/filings/constants"
)

// ImageToPDF wraps a single image in a one-page PDF container. The external
// parser's interface is PDF-oriented, so images are normalized before
// submission. fpdf embeds JPEG/PNG/GIF natively; BMP, TIFF, and WebP are
// decoded and re-encoded as PNG first.
func ImageToPDF(data []byte, fileName string) ([]byte, error) {
	imgType, err := imageType(data, fileName)
	if err != nil {
		return nil, err
	}

	if decode, ok := reencoded[imgType]; ok {
		img, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s image: %w", imgType, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("reencode %s as png: %w", imgType, err)
		}
		data = buf.Bytes()
		imgType = "PNG"
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opt := fpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
	info := pdf.RegisterImageOptionsReader("document", opt, bytes.NewReader(data))
	if pdf.Err() {
		return nil, fmt.Errorf("register image: %v", pdf.Error())
	}

	// Fit to page width, preserving aspect ratio; tall images spill onto the
	// single page rather than being split.
	pageW, pageH := pdf.GetPageSize()
	w := pageW
	h := info.Height() * w / info.Width()
	if h > pageH {
		h = pageH
		w = info.Width() * h / info.Height()
	}
	pdf.ImageOptions("document", 0, 0, w, h, false, opt, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// reencoded maps formats fpdf cannot embed directly to their decoders.
var reencoded = map[string]func([]byte) (image.Image, error){
	"BMP":  func(b []byte) (image.Image, error) { return bmp.Decode(bytes.NewReader(b)) },
	"TIFF": func(b []byte) (image.Image, error) { return tiff.Decode(bytes.NewReader(b)) },
	"WEBP": func(b []byte) (image.Image, error) { return webp.Decode(bytes.NewReader(b)) },
}

// imageType resolves the image format, magic bytes first, extension second.
func imageType(data []byte, fileName string) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "JPG", nil
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return "PNG", nil
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "GIF", nil
	case bytes.HasPrefix(data, []byte("BM")):
		return "BMP", nil
	case bytes.HasPrefix(data, []byte{'I', 'I', '*', 0x00}),
		bytes.HasPrefix(data, []byte{'M', 'M', 0x00, '*'}):
		return "TIFF", nil
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "WEBP", nil
	}
	switch constants.NormalizeExt(filepath.Ext(fileName)) {
	case "jpg", "jpeg":
		return "JPG", nil
	case "png":
		return "PNG", nil
	case "gif":
		return "GIF", nil
	case "bmp":
		return "BMP", nil
	case "tiff", "tif":
		return "TIFF", nil
	case "webp":
		return "WEBP", nil
	}
	return "", fmt.Errorf("image format not convertible to pdf: %q", fileName)
}
