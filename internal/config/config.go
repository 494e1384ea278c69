// Package config loads the service settings from the environment, with an
// optional .env file underneath, and validates them before start-up.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DocStorePostgres = "postgres"
	DocStoreMemory   = "memory"

	ContentLocal = "local"
	ContentMinio = "minio"

	TransportSMTP  = "smtp"
	TransportGmail = "gmail"
	TransportLog   = "log"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

type MailConfig struct {
	Transport           string
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	From                string
	ApplicantRecipients []string
	ServiceRecipients   []string
	Timeout             time.Duration
}

type Config struct {
	Addr    string
	Version string
	Commit  string

	DatabaseURL    string
	DBMaxConns     int
	DBPingTimeout  time.Duration
	DocStore       string
	ContentBackend string
	UploadDir      string
	S3             S3Config

	AllowedDomain string
	CORSOrigin    string
	StrictOrigin  bool
	AllowedIPs    []string
	AllowedIPs2   []string

	AdminUser     string
	AdminPass     string
	AdminPassHash string

	Mail MailConfig

	MaxFiles          int
	MaxUploadBytes    int64
	SanitizeFilenames bool

	LogLevel  string
	LogFormat string
}

// Load reads .env from the working directory if present, then builds the
// configuration from the environment. Variables already set in the
// environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the environment only.
func FromEnv() (Config, error) {
	v := NewValidator()

	cfg := Config{
		Addr:    getenvDefault("INTAKE_ADDR", ""),
		Version: getenvDefault("INTAKE_VERSION", "dev"),
		Commit:  getenvDefault("INTAKE_COMMIT", "unknown"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxConns:     getenvInt(v, "INTAKE_DB_MAX_CONNS", 10),
		DBPingTimeout:  getenvDuration(v, "INTAKE_DB_PING_TIMEOUT", 2*time.Second),
		DocStore:       getenvDefault("INTAKE_DOCSTORE", DocStorePostgres),
		ContentBackend: getenvDefault("INTAKE_CONTENT_BACKEND", ContentLocal),
		UploadDir:      getenvDefault("INTAKE_UPLOAD_DIR", "uploads"),
		S3: S3Config{
			Endpoint:  os.Getenv("INTAKE_S3_ENDPOINT"),
			AccessKey: os.Getenv("INTAKE_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("INTAKE_S3_SECRET_KEY"),
			Bucket:    os.Getenv("INTAKE_BUCKET"),
		},

		AllowedDomain: strings.TrimSpace(os.Getenv("INTAKE_ALLOWED_DOMAIN")),
		StrictOrigin:  getenvBool(v, "INTAKE_STRICT_ORIGIN", false),
		AllowedIPs:    splitList(os.Getenv("INTAKE_ALLOWED_IPS")),
		AllowedIPs2:   splitList(os.Getenv("INTAKE_ALLOWED_IPS2")),

		AdminUser:     os.Getenv("INTAKE_ADMIN_USER"),
		AdminPass:     os.Getenv("INTAKE_ADMIN_PASS"),
		AdminPassHash: os.Getenv("INTAKE_ADMIN_PASS_HASH"),

		Mail: MailConfig{
			Transport:           getenvDefault("INTAKE_MAIL_TRANSPORT", TransportLog),
			SMTPHost:            os.Getenv("INTAKE_SMTP_HOST"),
			SMTPPort:            getenvInt(v, "INTAKE_SMTP_PORT", 587),
			SMTPUser:            os.Getenv("INTAKE_SMTP_USER"),
			SMTPPassword:        os.Getenv("INTAKE_SMTP_PASSWORD"),
			From:                os.Getenv("INTAKE_MAIL_FROM"),
			ApplicantRecipients: splitList(os.Getenv("INTAKE_APPLICANT_RECIPIENTS")),
			ServiceRecipients:   splitList(os.Getenv("INTAKE_SERVICE_RECIPIENTS")),
			Timeout:             getenvDuration(v, "INTAKE_MAIL_TIMEOUT", 30*time.Second),
		},

		MaxFiles:          getenvInt(v, "INTAKE_MAX_FILES", 10),
		MaxUploadBytes:    int64(getenvInt(v, "INTAKE_MAX_UPLOAD_BYTES", 0)),
		SanitizeFilenames: getenvBool(v, "INTAKE_SANITIZE_FILENAMES", false),

		LogLevel:  getenvDefault("INTAKE_LOG_LEVEL", "info"),
		LogFormat: getenvDefault("INTAKE_LOG_FORMAT", "text"),
	}

	if cfg.Addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			v.ValidatePort("PORT", port)
			cfg.Addr = ":" + port
		} else {
			cfg.Addr = ":8080"
		}
	}
	cfg.CORSOrigin = getenvDefault("INTAKE_CORS_ORIGIN", "https://"+cfg.AllowedDomain)
	if cfg.Mail.Transport == TransportGmail && cfg.Mail.SMTPHost == "" {
		cfg.Mail.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.SMTPUser
	}

	cfg.validate(v)
	if v.HasErrors() {
		return Config{}, errors.New(v.ErrorString())
	}
	return cfg, nil
}

func (c Config) validate(v *Validator) {
	v.ValidateRequired("INTAKE_ALLOWED_DOMAIN", c.AllowedDomain)
	if strings.Contains(c.AllowedDomain, "://") {
		v.AddError("INTAKE_ALLOWED_DOMAIN", "must be a bare domain, not a URL")
	}

	v.ValidateEnum("INTAKE_DOCSTORE", c.DocStore, []string{DocStorePostgres, DocStoreMemory})
	if c.DocStore == DocStorePostgres {
		v.ValidateRequired("DATABASE_URL", c.DatabaseURL)
		v.ValidatePostgresURL("DATABASE_URL", c.DatabaseURL)
		if c.DBMaxConns <= 0 {
			v.AddError("INTAKE_DB_MAX_CONNS", "must be a positive integer")
		}
		if c.DBPingTimeout <= 0 {
			v.AddError("INTAKE_DB_PING_TIMEOUT", "must be a positive duration")
		}
	}

	v.ValidateEnum("INTAKE_CONTENT_BACKEND", c.ContentBackend, []string{ContentLocal, ContentMinio})
	if c.ContentBackend == ContentMinio {
		v.ValidateRequired("INTAKE_S3_ENDPOINT", c.S3.Endpoint)
		v.ValidateRequired("INTAKE_S3_ACCESS_KEY", c.S3.AccessKey)
		v.ValidateRequired("INTAKE_S3_SECRET_KEY", c.S3.SecretKey)
		v.ValidateRequired("INTAKE_BUCKET", c.S3.Bucket)
	}

	if c.AdminUser != "" && c.AdminPass == "" && c.AdminPassHash == "" {
		v.AddError("INTAKE_ADMIN_USER", "requires INTAKE_ADMIN_PASS or INTAKE_ADMIN_PASS_HASH")
	}
	v.ValidateBcryptHash("INTAKE_ADMIN_PASS_HASH", c.AdminPassHash)

	v.ValidateEnum("INTAKE_MAIL_TRANSPORT", c.Mail.Transport, []string{TransportSMTP, TransportGmail, TransportLog})
	if c.Mail.Transport == TransportSMTP || c.Mail.Transport == TransportGmail {
		v.ValidateRequired("INTAKE_SMTP_HOST", c.Mail.SMTPHost)
		v.ValidateRequired("INTAKE_SMTP_USER", c.Mail.SMTPUser)
		v.ValidateRequired("INTAKE_SMTP_PASSWORD", c.Mail.SMTPPassword)
	}
	v.ValidatePort("INTAKE_SMTP_PORT", strconv.Itoa(c.Mail.SMTPPort))
	v.ValidateEmailAddress("INTAKE_MAIL_FROM", c.Mail.From)
	for _, to := range c.Mail.ApplicantRecipients {
		v.ValidateEmailAddress("INTAKE_APPLICANT_RECIPIENTS", to)
	}
	for _, to := range c.Mail.ServiceRecipients {
		v.ValidateEmailAddress("INTAKE_SERVICE_RECIPIENTS", to)
	}
	if c.Mail.Timeout <= 0 {
		v.AddError("INTAKE_MAIL_TIMEOUT", "must be a positive duration")
	}

	if c.MaxFiles <= 0 {
		v.AddError("INTAKE_MAX_FILES", "must be a positive integer")
	}
	if c.MaxUploadBytes < 0 {
		v.AddError("INTAKE_MAX_UPLOAD_BYTES", "must not be negative")
	}

	v.ValidatePort("INTAKE_ADDR", portOf(c.Addr))
	v.ValidateEnum("INTAKE_LOG_FORMAT", c.LogFormat, []string{"json", "text"})
	v.ValidateEnum("INTAKE_LOG_LEVEL", c.LogLevel, []string{"debug", "info", "warn", "error"})
}

// Warnings lists optional settings that are missing but usually wanted.
func (c Config) Warnings() []string {
	warnings := make([]string, 0)
	if c.Mail.Transport == TransportLog {
		warnings = append(warnings, "INTAKE_MAIL_TRANSPORT is log - notifications are logged, not sent")
	}
	if len(c.Mail.ApplicantRecipients) == 0 {
		warnings = append(warnings, "INTAKE_APPLICANT_RECIPIENTS not set - applicant notifications have no recipient")
	}
	if len(c.Mail.ServiceRecipients) == 0 {
		warnings = append(warnings, "INTAKE_SERVICE_RECIPIENTS not set - form notifications have no recipient")
	}
	if c.AdminUser == "" {
		warnings = append(warnings, "INTAKE_ADMIN_USER not set - every login returns user not found")
	}
	if !c.StrictOrigin {
		warnings = append(warnings, "INTAKE_STRICT_ORIGIN not set - origin check uses substring matching")
	}
	return warnings
}

// getenvDefault reads an environment variable and returns def if unset or empty.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(v *Validator, key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return def
	}
	return n
}

func getenvBool(v *Validator, key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.AddError(key, "must be true or false")
		return def
	}
	return b
}

func getenvDuration(v *Validator, key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 30s, 1m)")
		return def
	}
	return d
}

// splitList splits a comma list and drops empty entries.
func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func portOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i+1:]
	}
	return addr
}
