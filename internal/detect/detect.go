// Package detect classifies raw document bytes into the closed set of
// formats the extraction pipeline can route.
package detect

import (
	"archive/zip"
	"bytes"
	"path/filepath"
	"strings"

	"github.com/compliancedesk/filings/constants"
)

// Type identifies a document format. Closed set: routing dispatches on it.
type Type string

const (
	TypePDF         Type = "pdf"
	TypeImage       Type = "image"
	TypeSpreadsheet Type = "spreadsheet"
	TypeUnknown     Type = "unknown"
)

// extTable maps normalized file extensions to detected types. A filename
// hint takes precedence over content sniffing.
var extTable = map[string]Type{
	"pdf":  TypePDF,
	"jpg":  TypeImage,
	"jpeg": TypeImage,
	"png":  TypeImage,
	"bmp":  TypeImage,
	"tiff": TypeImage,
	"tif":  TypeImage,
	"gif":  TypeImage,
	"webp": TypeImage,
	"xlsx": TypeSpreadsheet,
	"xls":  TypeSpreadsheet,
}

// imageSignatures is the fixed table of image magic numbers.
var imageSignatures = [][]byte{
	{0xFF, 0xD8, 0xFF},                               // JPEG
	{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'},    // PNG
	[]byte("GIF87a"),                                 // GIF
	[]byte("GIF89a"),                                 // GIF
	[]byte("BM"),                                     // BMP
	{'I', 'I', '*', 0x00},                            // TIFF little endian
	{'M', 'M', 0x00, '*'},                            // TIFF big endian
}

// DetectType classifies a byte buffer, optionally helped by a filename.
// Pure function; short or empty buffers yield TypeUnknown.
func DetectType(data []byte, fileName string) Type {
	if fileName != "" {
		ext := constants.NormalizeExt(filepath.Ext(fileName))
		if t, ok := extTable[ext]; ok {
			return t
		}
	}

	if len(data) < 4 {
		return TypeUnknown
	}

	if bytes.HasPrefix(data, []byte("%PDF")) {
		return TypePDF
	}

	// Excel workbooks are ZIP containers whose entries live under xl/.
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) && isXLSXArchive(data) {
		return TypeSpreadsheet
	}

	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig) {
			return TypeImage
		}
	}

	return TypeUnknown
}

func isXLSXArchive(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "xl/") {
			return true
		}
	}
	return false
}
