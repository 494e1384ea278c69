package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/go-mail"
	"golang.org/x/crypto/bcrypt"

	"intake-api/internal/content"
	"intake-api/internal/docstore"
	"intake-api/internal/records"
)

const (
	testDomain   = "example.ge"
	testOrigin   = "https://example.ge"
	testUser     = "admin"
	testPassword = "s3cret"
)

var testNow = time.UnixMilli(1700000000000)

func strPtr(s string) *string { return &s }

// recordingTransport keeps every message handed to it. Set err to make
// sends fail.
type recordingTransport struct {
	mu   sync.Mutex
	msgs []*mail.Msg
	err  error
}

func (t *recordingTransport) Send(_ context.Context, msg *mail.Msg) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
	return t.err
}

func (t *recordingTransport) sent() []*mail.Msg {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*mail.Msg(nil), t.msgs...)
}

type testEnv struct {
	srv     *Server
	store   *docstore.Memory
	records *records.Gateway
	area    *content.LocalArea
	mail    *recordingTransport
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	area, err := content.NewLocalArea(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := docstore.NewMemory()
	gw := records.NewGateway(store)
	transport := &recordingTransport{}
	emailSvc, err := NewEmailService(EmailConfig{
		From:                "noreply@example.ge",
		ApplicantRecipients: []string{"hr@example.ge"},
		ServiceRecipients:   []string{"service@example.ge"},
		Timeout:             5 * time.Second,
	}, transport, area)
	if err != nil {
		t.Fatal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Build:       BuildInfo{Version: "test", Commit: "none"},
		Access:      AccessConfig{AllowedDomain: testDomain},
		Auth:        NewAuthenticator(NewUserSet(User{Username: testUser, PasswordHash: hash})),
		Records:     gw,
		Content:     area,
		Email:       emailSvc,
		AllowedIPs:  []string{"10.0.0.1"},
		AllowedIPs2: []string{"10.0.0.2", "10.0.0.3"},
		Now:         func() time.Time { return testNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}

	return &testEnv{srv: New(cfg), store: store, records: gw, area: area, mail: transport}
}

// do serves req through the full middleware chain and waits for any
// notification it dispatched.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	e.srv.cfg.Email.Wait()
	return rr
}

// newRequest builds a request carrying the allowed Origin.
func newRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Origin", testOrigin)
	return req
}

type formFile struct {
	name    string
	content string
}

type formField struct {
	key, value string
}

// multipartRequest builds a POST with the given text fields and files under fileField.
func multipartRequest(t *testing.T, target string, fields []formField, fileField string, files []formFile) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(fileField, f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(w, f.content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := newRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// countAll returns how many documents the store holds in collection.
func countAll(t *testing.T, s docstore.Store, collection string) int {
	t.Helper()
	docs, err := s.Find(context.Background(), collection, nil)
	if err != nil {
		t.Fatal(err)
	}
	return len(docs)
}

// failingArea refuses every write.
type failingArea struct {
	content.Area
}

func (failingArea) Save(context.Context, string, io.Reader) (content.StoredFile, error) {
	return content.StoredFile{}, errors.New("disk full")
}
