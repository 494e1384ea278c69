package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalArea keeps uploads in a directory on disk.
type LocalArea struct {
	dir string
}

// NewLocalArea creates dir if it does not exist.
func NewLocalArea(dir string) (*LocalArea, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &LocalArea{dir: dir}, nil
}

// Dir returns the directory backing the area.
func (a *LocalArea) Dir() string { return a.dir }

func validName(name string) bool {
	return name != "" && filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

func (a *LocalArea) Save(_ context.Context, name string, r io.Reader) (StoredFile, error) {
	if !validName(name) {
		return StoredFile{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	full := filepath.Join(a.dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return StoredFile{}, fmt.Errorf("%w: %s", ErrExist, name)
	}
	if err != nil {
		return StoredFile{}, fmt.Errorf("create %s: %w", name, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return StoredFile{}, fmt.Errorf("write %s: %w", name, err)
	}
	return storedFile(name, n), nil
}

func (a *LocalArea) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	f, err := os.Open(filepath.Join(a.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return f, err
}

func (a *LocalArea) Ping(_ context.Context) error {
	info, err := os.Stat(a.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", a.dir)
	}
	return nil
}

// ServeHTTP serves /<name> from the directory. Directories are not listed.
func (a *LocalArea) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if !validName(name) {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(filepath.Join(a.dir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}
