package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intake-api/internal/config"
	"intake-api/internal/content"
	"intake-api/internal/db"
	"intake-api/internal/docstore"
	"intake-api/internal/records"
	"intake-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		server.Error("backend exited", map[string]interface{}{"service": "backend"}, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// The logger is not configured yet.
		log.Print(err)
		return errors.New("invalid configuration")
	}
	if err := server.ConfigureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if w := cfg.Warnings(); len(w) > 0 {
		server.Info("configuration warnings", map[string]interface{}{
			"count":    len(w),
			"warnings": w,
		})
	}

	srv, cleanup, err := newServer(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		server.Info("starting", map[string]interface{}{
			"service": "backend",
			"addr":    cfg.Addr,
			"version": cfg.Version,
			"commit":  cfg.Commit,
			"store":   cfg.DocStore,
			"content": cfg.ContentBackend,
			"mail":    cfg.Mail.Transport,
		})
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		server.Info("shutting down", map[string]interface{}{"service": "backend", "signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		server.Info("shutdown complete", map[string]interface{}{"service": "backend"})
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

// newServer opens the configured backends and assembles the HTTP server.
// The returned func releases the document store.
func newServer(ctx context.Context, cfg config.Config) (*server.Server, func(), error) {
	store, closeStore, err := openDocStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	fail := func(err error) (*server.Server, func(), error) {
		closeStore()
		return nil, nil, err
	}

	area, err := openContentArea(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	users, err := server.AdminUsers(cfg.AdminUser, cfg.AdminPass, cfg.AdminPassHash)
	if err != nil {
		return fail(err)
	}

	emailSvc, err := server.NewEmailService(server.EmailConfig{
		Transport:           cfg.Mail.Transport,
		SMTPHost:            cfg.Mail.SMTPHost,
		SMTPPort:            cfg.Mail.SMTPPort,
		SMTPUser:            cfg.Mail.SMTPUser,
		SMTPPassword:        cfg.Mail.SMTPPassword,
		From:                cfg.Mail.From,
		ApplicantRecipients: cfg.Mail.ApplicantRecipients,
		ServiceRecipients:   cfg.Mail.ServiceRecipients,
		Timeout:             cfg.Mail.Timeout,
	}, nil, area)
	if err != nil {
		return fail(fmt.Errorf("mail transport: %w", err))
	}

	srv := server.New(server.Config{
		Addr:  cfg.Addr,
		Build: server.BuildInfo{Version: cfg.Version, Commit: cfg.Commit},
		Access: server.AccessConfig{
			AllowedDomain: cfg.AllowedDomain,
			CORSOrigin:    cfg.CORSOrigin,
			Strict:        cfg.StrictOrigin,
		},
		Auth:              server.NewAuthenticator(users),
		Records:           records.NewGateway(store),
		Content:           area,
		Email:             emailSvc,
		AllowedIPs:        cfg.AllowedIPs,
		AllowedIPs2:       cfg.AllowedIPs2,
		MaxFiles:          cfg.MaxFiles,
		MaxUploadBytes:    cfg.MaxUploadBytes,
		SanitizeFilenames: cfg.SanitizeFilenames,
	})
	return srv, closeStore, nil
}

func openDocStore(cfg config.Config) (docstore.Store, func(), error) {
	if cfg.DocStore == config.DocStoreMemory {
		server.Warn("using in-memory document store, records are lost on exit", nil)
		return docstore.NewMemory(), func() {}, nil
	}

	conn, err := db.Open(cfg.DatabaseURL, db.PoolOptions{
		MaxConns:    cfg.DBMaxConns,
		PingTimeout: cfg.DBPingTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	server.Info("running migrations", nil)
	if err := db.RunMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	server.Info("migrations complete", nil)
	return docstore.NewPostgres(conn), func() { _ = conn.Close() }, nil
}

func openContentArea(ctx context.Context, cfg config.Config) (content.Area, error) {
	if cfg.ContentBackend == config.ContentMinio {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		area, err := content.NewMinioArea(ctx, content.MinioConfig{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		return area, nil
	}
	return content.NewLocalArea(cfg.UploadDir)
}
