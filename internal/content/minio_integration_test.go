//go:build integration

package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// TestMinioArea stores and serves a file through a throwaway MinIO
// container. Requires Docker:
//
//	go test -tags integration ./internal/content
//
// INTAKE_MINIO_TEST_TAG overrides the image tag.
func TestMinioArea(t *testing.T) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}

	tag := os.Getenv("INTAKE_MINIO_TEST_TAG")
	if tag == "" {
		tag = "RELEASE.2024-01-31T20-20-33Z"
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        tag,
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=minio",
			"MINIO_ROOT_PASSWORD=minio123",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start minio: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(120)

	endpoint := "localhost:" + resource.GetPort("9000/tcp")
	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		resp, err := http.Get("http://" + endpoint + "/minio/health/live")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("minio not ready: %d", resp.StatusCode)
		}
		return nil
	}); err != nil {
		t.Fatalf("minio not ready: %v", err)
	}

	ctx := context.Background()
	admin, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minio", "minio123", ""),
	})
	if err != nil {
		t.Fatalf("failed to create minio client: %v", err)
	}

	cfg := MinioConfig{Endpoint: "http://" + endpoint, AccessKey: "minio", SecretKey: "minio123", Bucket: "intake"}
	if _, err := NewMinioArea(ctx, cfg); err == nil {
		t.Fatal("expected error while bucket is missing")
	}
	if err := admin.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		t.Fatalf("could not create bucket: %v", err)
	}

	area, err := NewMinioArea(ctx, cfg)
	if err != nil {
		t.Fatalf("NewMinioArea: %v", err)
	}

	sf, err := area.Save(ctx, "1-cv.pdf", strings.NewReader("resume"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if sf.Path != "uploads/1-cv.pdf" || sf.Size != 6 {
		t.Fatalf("unexpected stored file: %+v", sf)
	}

	if _, err := area.Save(ctx, "1-cv.pdf", strings.NewReader("other")); !errors.Is(err, ErrExist) {
		t.Fatalf("second Save: expected ErrExist, got %v", err)
	}

	rc, err := area.Open(ctx, sf.Name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "resume" {
		t.Fatalf("read back %q", b)
	}

	if _, err := area.Open(ctx, "missing.pdf"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	rr := httptest.NewRecorder()
	area.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/1-cv.pdf", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "resume" {
		t.Fatalf("GET /1-cv.pdf: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	area.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing.pdf", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET /missing.pdf: expected 404, got %d", rr.Code)
	}
}
