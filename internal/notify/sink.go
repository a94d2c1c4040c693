// Package notify implements the Notification Sink: optional email delivery
// of action-status changes to the recipient registry.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/incident-console/backend/pkg/logger"
)

const smtpTimeout = 10 * time.Second

// Config mirrors config.SMTPConfig without importing the config package,
// so this package stays independent of process-wide configuration wiring.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool
	From     string
}

// Configured reports whether enough settings are present to attempt
// delivery. A missing host means delivery is silently skipped.
func (c Config) Configured() bool { return strings.TrimSpace(c.Host) != "" }

// RecipientLister is the subset of the state store this sink needs.
type RecipientLister interface {
	Recipients() []domain.EmailRecipient
}

// Sink delivers action-status-change emails to the recipient registry.
type Sink struct {
	config     Config
	recipients RecipientLister
	log        *logger.Logger
	sendMail   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New constructs a notification Sink.
func New(cfg Config, recipients RecipientLister) *Sink {
	return &Sink{
		config:     cfg,
		recipients: recipients,
		log:        logger.NewDefault("notification-sink"),
		sendMail:   smtp.SendMail,
	}
}

// Notify delivers a status-change email for exec to every registered
// recipient. Missing SMTP configuration is a silent skip, never an error;
// individual delivery failures are logged and never propagate to the
// caller of the action that triggered this notification.
func (s *Sink) Notify(ctx context.Context, exec domain.ActionExecution) {
	if !s.config.Configured() {
		return
	}

	recipients := s.recipients.Recipients()
	if len(recipients) == 0 {
		return
	}

	subject := fmt.Sprintf("[incident-console] %s plan %s", exec.ScenarioTitle, exec.Status)
	body := renderBody(exec)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, r := range recipients {
			if err := s.deliver(r.Email, subject, body); err != nil {
				s.log.WithError(err).WithField("recipient", r.Email).Warn("notification delivery failed")
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(smtpTimeout):
		s.log.Warn("notification delivery timed out")
	case <-ctx.Done():
	}
}

func (s *Sink) deliver(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	var auth smtp.Auth
	if s.config.User != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	from := s.config.From
	if from == "" {
		from = s.config.User
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", from, to, subject, body)
	return s.sendMail(addr, auth, from, []string{to}, []byte(msg))
}

func renderBody(exec domain.ActionExecution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n", exec.ScenarioTitle)
	fmt.Fprintf(&b, "Status: %s\n", exec.Status)
	fmt.Fprintf(&b, "Created: %s\n", exec.CreatedAt.Format(time.RFC3339))
	if exec.ExecutedAt != nil {
		fmt.Fprintf(&b, "Executed: %s\n", exec.ExecutedAt.Format(time.RFC3339))
	}
	b.WriteString("Actions:\n")
	for _, a := range exec.Actions {
		fmt.Fprintf(&b, "  - %s\n", a)
	}
	if len(exec.Results) > 0 {
		b.WriteString("Results:\n")
		for _, r := range exec.Results {
			fmt.Fprintf(&b, "  - %s: %s (%s)\n", r.Action, r.Status, r.Detail)
		}
	}
	return b.String()
}
