package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/fpt-devteam/csv-processor/internal/domain"
)

// LogHandler writes every change event to the structured log. The worker
// service runs one as a live audit trail of record changes.
type LogHandler struct {
	logger *slog.Logger
}

func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(_ context.Context, event *domain.ChangeEvent) error {
	doc, err := json.Marshal(event.Document)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	h.logger.Info("Record change observed",
		slog.String("change_type", event.ChangeType),
		slog.Time("published_at", event.PublishedAt),
		slog.String("document", string(doc)),
	)

	return nil
}

// Mailer sends one plain-text email.
type Mailer interface {
	Send(to []string, subject, body string) error
}

// SMTPMailer is a Mailer over a plain SMTP endpoint without
// authentication, e.g. an internal relay or a mailhog instance.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
}

func (m *SMTPMailer) Send(to []string, subject, body string) error {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.from,
		strings.Join(to, ", "),
		subject,
		body,
	)

	if err := smtp.SendMail(m.addr, nil, m.from, to, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	return nil
}

// EmailHandler mails a summary of each change event to a fixed recipient
// list. The notifier service runs one as its own fan-out subscriber.
type EmailHandler struct {
	mailer Mailer
	to     []string
	logger *slog.Logger
}

func NewEmailHandler(mailer Mailer, to []string, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		mailer: mailer,
		to:     to,
		logger: logger,
	}
}

func (h *EmailHandler) Handle(_ context.Context, event *domain.ChangeEvent) error {
	subject := fmt.Sprintf("CSV record change: %s", event.ChangeType)
	body := formatEventBody(event)

	if err := h.mailer.Send(h.to, subject, body); err != nil {
		return fmt.Errorf("failed to mail change notification: %w", err)
	}

	h.logger.Info("Change notification mailed",
		slog.String("change_type", event.ChangeType),
		slog.Int("recipients", len(h.to)),
	)

	return nil
}

func formatEventBody(event *domain.ChangeEvent) string {
	doc, err := json.MarshalIndent(event.Document, "", "  ")
	if err != nil {
		doc = []byte(fmt.Sprintf("%v", event.Document))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A record change was observed.\r\n\r\n")
	fmt.Fprintf(&b, "Change type: %s\r\n", event.ChangeType)
	fmt.Fprintf(&b, "Published at: %s\r\n\r\n", event.PublishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "Document:\r\n%s\r\n", doc)
	return b.String()
}
