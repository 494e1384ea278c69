// validation.go - Filename hardening for uploads
package server

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxFilenameBytes = 200

// SanitizeFilename removes potentially dangerous characters from filenames.
// Applied to upload names only when INTAKE_SANITIZE_FILENAMES is on.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "\x00", "")

	filename = strings.Trim(filename, " .")

	if len(filename) > maxFilenameBytes {
		ext := filepath.Ext(filename)
		if len(ext) > 20 {
			ext = ""
		}
		cut := maxFilenameBytes - len(ext)
		for cut > 0 && !utf8.RuneStart(filename[cut]) {
			cut--
		}
		filename = filename[:cut] + ext
	}

	if filename == "" {
		filename = "unnamed"
	}

	return filename
}
