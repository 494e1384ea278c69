// Package content is the area where uploaded files are written once and
// served back unchanged. Files are never deleted by this system.
package content

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"
)

// Prefix is prepended to a stored name to form the path kept on records.
const Prefix = "uploads"

// ErrInvalidName is returned for names that would escape the content area.
var ErrInvalidName = errors.New("invalid file name")

// ErrNotExist is returned by Open when no file has the given name.
var ErrNotExist = errors.New("file does not exist")

// ErrExist is returned by Save when the name is already taken. Stored files
// are never overwritten.
var ErrExist = errors.New("file already exists")

// StoredFile describes one file written to the content area.
type StoredFile struct {
	Name string // generated name, e.g. 1718000000000-cv.pdf
	Path string // uploads/<Name>
	Size int64
}

// Area stores uploads and serves them over HTTP at /<name>. Save fails with
// ErrExist rather than replace an existing file.
type Area interface {
	Save(ctx context.Context, name string, r io.Reader) (StoredFile, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Ping(ctx context.Context) error
	http.Handler
}

// GenerateName returns "<epoch-millis>-<original>".
func GenerateName(now time.Time, original string) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + original
}

// NameFromPath strips the uploads/ prefix from a stored path.
func NameFromPath(p string) string {
	return path.Base(p)
}

func storedFile(name string, size int64) StoredFile {
	return StoredFile{Name: name, Path: path.Join(Prefix, name), Size: size}
}
