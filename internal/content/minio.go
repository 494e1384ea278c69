package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig locates the bucket used as content area.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// MinioArea keeps uploads as objects under uploads/ in a bucket.
type MinioArea struct {
	client *minio.Client
	bucket string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	return raw, false, nil
}

// NewMinioArea connects to the endpoint and checks that the bucket exists.
func NewMinioArea(ctx context.Context, cfg MinioConfig) (*MinioArea, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	a := &MinioArea{client: client, bucket: cfg.Bucket}
	if err := a.Ping(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func objectKey(name string) string {
	return path.Join(Prefix, name)
}

func (a *MinioArea) Save(ctx context.Context, name string, r io.Reader) (StoredFile, error) {
	if !validName(name) {
		return StoredFile{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	_, err := a.client.StatObject(ctx, a.bucket, objectKey(name), minio.StatObjectOptions{})
	if err == nil {
		return StoredFile{}, fmt.Errorf("%w: %s", ErrExist, name)
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return StoredFile{}, fmt.Errorf("stat %s: %w", name, err)
	}

	info, err := a.client.PutObject(ctx, a.bucket, objectKey(name), r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return StoredFile{}, fmt.Errorf("put %s: %w", name, err)
	}
	return storedFile(name, info.Size), nil
}

func (a *MinioArea) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := a.stat(ctx, name)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (a *MinioArea) Ping(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("minio bucket does not exist: %s", a.bucket)
	}
	return nil
}

func (a *MinioArea) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	obj, err := a.stat(r.Context(), name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, name, info.LastModified, obj)
}

// stat opens the object and forces the HEAD so a missing key fails here
// rather than on first read.
func (a *MinioArea) stat(ctx context.Context, name string) (*minio.Object, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return obj, nil
}
