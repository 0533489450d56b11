package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SMTPConfig configures the SMTP sender. An empty Host forces dry-run mode
// regardless of the DryRun flag.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	DryRun   bool

	// LogsDir receives one JSON audit record per send attempt. Empty
	// disables audit records.
	LogsDir string
}

// SMTPSender implements Dispatcher over plain SMTP with AUTH.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger

	// sendMail is swapped in tests. Defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTP dispatcher.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:      cfg,
		logger:   logger.With("component", "email.smtp"),
		sendMail: smtp.SendMail,
	}
}

// auditRecord is the JSON document written per attempt.
type auditRecord struct {
	MessageID   string    `json:"message_id"`
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments,omitempty"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Send implements Dispatcher. Validation failures return an error with a
// failed receipt; delivery failures return a failed receipt and the error.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := Validate(msg); err != nil {
		return Receipt{Status: StatusFailed}, err
	}

	id := "email_" + uuid.NewString()

	if s.dryRun(msg) {
		s.audit(msg, id, StatusPending, nil)
		s.logger.Info("dry run, email not delivered", "message_id", id, "to", msg.To)
		return Receipt{Status: StatusPending, MessageID: id}, nil
	}

	if err := ctx.Err(); err != nil {
		return Receipt{Status: StatusFailed}, fmt.Errorf("sending email: %w", err)
	}

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	if err := s.sendMail(addr, auth, s.cfg.From, []string{msg.To}, s.encode(msg, id)); err != nil {
		s.audit(msg, id, StatusFailed, err)
		return Receipt{Status: StatusFailed}, fmt.Errorf("sending email: %w", err)
	}

	s.audit(msg, id, StatusSent, nil)
	s.logger.Info("email sent", "message_id", id, "to", msg.To)
	return Receipt{Status: StatusSent, MessageID: id}, nil
}

func (s *SMTPSender) dryRun(msg Message) bool {
	return msg.DryRun || s.cfg.DryRun || s.cfg.Host == ""
}

// encode renders the RFC 5322 message, as multipart/mixed when attachments
// are present.
func (s *SMTPSender) encode(msg Message, id string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Message-ID: <%s@astral>\r\n", id)
	b.WriteString("MIME-Version: 1.0\r\n")

	if len(msg.Attachments) == 0 {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String())
	}

	boundary := "astral-" + uuid.NewString()
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	for _, a := range msg.Attachments {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: application/octet-stream; name=%q\r\n", a.Filename)
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n", a.Filename)
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(a.Content))
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// audit writes the JSON send record. Audit failures are logged, never
// surfaced; a lost record must not fail a delivered email.
func (s *SMTPSender) audit(msg Message, id string, status Status, sendErr error) {
	if s.cfg.LogsDir == "" {
		return
	}

	rec := auditRecord{
		MessageID: id,
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
	for _, a := range msg.Attachments {
		rec.Attachments = append(rec.Attachments, a.Filename)
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}

	if err := os.MkdirAll(s.cfg.LogsDir, 0o755); err != nil {
		s.logger.Warn("creating audit log dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		s.logger.Warn("marshaling audit record", "error", err)
		return
	}
	path := filepath.Join(s.cfg.LogsDir, id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Warn("writing audit record", "path", path, "error", err)
	}
}
