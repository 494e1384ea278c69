package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"intake-api/internal/content"
	"intake-api/internal/records"
)

// BuildInfo is reported by /health and the intake_info metric.
type BuildInfo struct {
	Version string
	Commit  string
}

// Config carries every dependency the handlers need. Records, Content and
// Auth are required; Email defaults to a log-only service.
type Config struct {
	Addr  string
	Build BuildInfo

	Access  AccessConfig
	Auth    *Authenticator
	Records *records.Gateway
	Content content.Area
	Email   *EmailService

	AllowedIPs  []string
	AllowedIPs2 []string

	MaxFiles          int
	MaxUploadBytes    int64
	SanitizeFilenames bool

	// Now stamps generated upload names. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	cfg        Config
	metrics    *Metrics
	httpServer *http.Server
}

func New(cfg Config) *Server {
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = 10
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Auth == nil {
		cfg.Auth = NewAuthenticator(NewUserSet())
	}
	if cfg.Email == nil {
		cfg.Email, _ = NewEmailService(EmailConfig{}, LogTransport{}, cfg.Content)
	}

	s := &Server{cfg: cfg, metrics: NewMetrics(cfg.Build)}
	cfg.Email.useMetrics(s.metrics)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	guard := s.cfg.Access.originGuard

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Welcome to the intake API\n")
	})
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ready", s.HandleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.Handle("GET /api/allowed-ips", guard(s.allowedIPsHandler("allowedIPs", s.cfg.AllowedIPs)))
	mux.Handle("GET /api/allowed-ips2", guard(s.allowedIPsHandler("allowedIPs2", s.cfg.AllowedIPs2)))

	mux.Handle("POST /submit", guard(s.submitHandler()))
	mux.Handle("POST /upload", guard(s.uploadHandler()))
	mux.Handle("POST /login", guard(s.loginHandler()))

	mux.Handle("GET /api/vacancies", guard(s.listVacanciesHandler()))
	mux.Handle("POST /api/vacancies", guard(s.createVacancyHandler()))
	mux.Handle("GET /api/vacancies/{id}", guard(s.getVacancyHandler()))
	mux.Handle("PUT /api/vacancies/{id}", guard(s.updateVacancyHandler()))
	mux.Handle("DELETE /api/vacancies/{id}", guard(s.deleteVacancyHandler()))

	// Everything else under GET is a stored upload.
	mux.Handle("GET /", s.cfg.Content)

	// requestID -> logging -> CORS -> mux
	var handler http.Handler = mux
	handler = s.cfg.Access.corsPolicy().Handler(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// Handler exposes the full middleware chain for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) now() time.Time {
	return s.cfg.Now()
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

// Shutdown stops accepting requests, waits for in-flight ones, then drains
// pending notifications.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.cfg.Email.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		Warn("shutdown before notifications drained", nil)
	}
	return err
}
