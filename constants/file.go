package constants

import (
	"regexp"
	"strings"
)

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

var reUnsafeStem = regexp.MustCompile(`[^\w.]`)

// SafeStem reduces a filename to its stem with anything outside
// [A-Za-z0-9_.] replaced by underscores, so it can name artifacts on disk.
func SafeStem(name string) string {
	stem := name
	if i := strings.LastIndex(stem, "/"); i >= 0 {
		stem = stem[i+1:]
	}
	if i := strings.LastIndex(stem, "."); i > 0 {
		stem = stem[:i]
	}
	return reUnsafeStem.ReplaceAllString(stem, "_")
}
