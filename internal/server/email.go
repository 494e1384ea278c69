// email.go - Best-effort notification mail for submissions.
//
// Notify composes one plain-text message with the stored uploads attached
// and hands it to the configured transport once. Dispatch runs Notify in
// the background and only logs the outcome; callers never see it.
package server

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"intake-api/internal/content"
	"intake-api/internal/records"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("no recipients configured")

const defaultSender = "intake@localhost"

// MailTransport delivers a composed message.
type MailTransport interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// EmailConfig holds the sender, recipients and SMTP settings.
type EmailConfig struct {
	Transport           string // smtp, gmail or log
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPassword        string
	From                string
	ApplicantRecipients []string
	ServiceRecipients   []string
	Timeout             time.Duration
}

// Message is a notification before composition. Attachments are stored
// paths (uploads/<name>) opened from the content area.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []string
}

// EmailService composes and sends notifications.
type EmailService struct {
	config    EmailConfig
	transport MailTransport
	area      content.Area
	metrics   *Metrics
	wg        sync.WaitGroup
}

// NewEmailService builds the service. A nil transport is chosen from
// cfg.Transport.
func NewEmailService(cfg EmailConfig, transport MailTransport, area content.Area) (*EmailService, error) {
	if cfg.From == "" {
		cfg.From = defaultSender
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if transport == nil {
		t, err := NewTransport(cfg)
		if err != nil {
			return nil, err
		}
		transport = t
	}
	return &EmailService{config: cfg, transport: transport, area: area}, nil
}

// Notify composes msg and submits it exactly once.
func (s *EmailService) Notify(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m, err := s.compose(ctx, msg)
	if err != nil {
		return err
	}
	if err := s.transport.Send(ctx, m); err != nil {
		return fmt.Errorf("send %q: %w", msg.Subject, err)
	}
	return nil
}

// Dispatch sends msg in the background, detached from the caller's
// cancellation and bounded by the configured timeout. Failures are logged
// and counted, never returned.
func (s *EmailService) Dispatch(ctx context.Context, msg Message) {
	rid := RequestIDFromContext(ctx)
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Timeout)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		err := s.Notify(sendCtx, msg)
		if s.metrics != nil {
			s.metrics.RecordNotification(err == nil)
		}
		if err != nil {
			Warn("notification failed", map[string]interface{}{
				"rid":     rid,
				"subject": msg.Subject,
				"error":   err.Error(),
			})
			return
		}
		Info("notification sent", map[string]interface{}{
			"rid":         rid,
			"subject":     msg.Subject,
			"recipients":  len(msg.To),
			"attachments": len(msg.Attachments),
		})
	}()
}

func (s *EmailService) useMetrics(m *Metrics) {
	s.metrics = m
}

// Wait blocks until every dispatched notification has finished.
func (s *EmailService) Wait() {
	s.wg.Wait()
}

func (s *EmailService) compose(ctx context.Context, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.config.From); err != nil {
		return nil, fmt.Errorf("sender %q: %w", s.config.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, p := range msg.Attachments {
		name := content.NameFromPath(p)
		rc, err := s.area.Open(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("open attachment %s: %w", name, err)
		}
		err = m.AttachReader(name, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", name, err)
		}
	}
	return m, nil
}

// NewTransport picks the transport named by cfg.Transport.
func NewTransport(cfg EmailConfig) (MailTransport, error) {
	switch cfg.Transport {
	case "", "log":
		return LogTransport{}, nil
	case "gmail":
		if cfg.SMTPHost == "" {
			cfg.SMTPHost = "smtp.gmail.com"
		}
		if cfg.SMTPPort == 0 {
			cfg.SMTPPort = 587
		}
		return NewSMTPTransport(cfg)
	case "smtp":
		return NewSMTPTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.Transport)
	}
}

// SMTPTransport submits over SMTP with STARTTLS and PLAIN auth.
type SMTPTransport struct {
	client *mail.Client
}

func NewSMTPTransport(cfg EmailConfig) (*SMTPTransport, error) {
	if cfg.SMTPHost == "" || cfg.SMTPUser == "" || cfg.SMTPPassword == "" {
		return nil, fmt.Errorf("SMTP not configured")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUser),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPTransport{client: client}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg *mail.Msg) error {
	return t.client.DialAndSendWithContext(ctx, msg)
}

// LogTransport logs the envelope and sends nothing.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, msg *mail.Msg) error {
	to, _ := msg.GetRecipients()
	Info("email (log transport)", map[string]interface{}{
		"to":          strings.Join(to, ","),
		"subject":     strings.Join(msg.GetGenHeader(mail.HeaderSubject), ""),
		"attachments": len(msg.GetAttachments()),
	})
	return nil
}

// DispatchApplicant notifies the applicant recipients about a.
func (s *EmailService) DispatchApplicant(ctx context.Context, a records.ApplicantFields) {
	s.Dispatch(ctx, applicantMessage(s.config.ApplicantRecipients, a))
}

// DispatchServiceRequest notifies the service recipients about f.
func (s *EmailService) DispatchServiceRequest(ctx context.Context, f records.ServiceRequestFields) {
	s.Dispatch(ctx, serviceRequestMessage(s.config.ServiceRecipients, f))
}

func applicantMessage(to []string, a records.ApplicantFields) Message {
	body := fmt.Sprintf(`New Applicant:
    Name: %s %s
    ID: %s
    DOB: %s
    Location: %s
    Email: %s
    Number: %s
    CV: %s
    Vacancy: %s`,
		records.Text(a.FirstName), records.Text(a.LastName), records.Text(a.IDNumber), records.Text(a.DOB),
		records.Text(a.Location), records.Text(a.Email), records.Text(a.Number), a.CV, records.Text(a.VacancyName))

	msg := Message{To: to, Subject: "New Applicant Submission", Body: body}
	if a.CV != "" {
		msg.Attachments = []string{path.Join(content.Prefix, a.CV)}
	}
	return msg
}

func serviceRequestMessage(to []string, f records.ServiceRequestFields) Message {
	choice := ""
	if f.ServiceChoice != nil {
		choice = strconv.Itoa(*f.ServiceChoice)
	}
	body := fmt.Sprintf(`New Form Submission:
    Name: %s
    ID: %s
    Phone: %s
    Email: %s
    Manufacturer: %s
    Model: %s
    Loan: %s
    Service Choice: %s
    Files: %s`,
		records.Text(f.Name), records.Text(f.IDNumber), records.Text(f.Phone), records.Text(f.Email),
		records.Text(f.Manufacturer), records.Text(f.Model), records.Text(f.Loan), choice, strings.Join(f.Files, ", "))

	return Message{To: to, Subject: "New Form Submission", Body: body, Attachments: f.Files}
}
