package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/astralhq/astral-assist/internal/log"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr error
	}{
		{
			name: "valid plain message",
			msg:  Message{To: "jane@example.com", Subject: "hi", Body: "there"},
		},
		{
			name: "valid with display name",
			msg:  Message{To: "Jane Doe <jane@example.com>"},
		},
		{
			name:    "invalid address",
			msg:     Message{To: "not-an-address"},
			wantErr: ErrInvalidAddress,
		},
		{
			name:    "empty address",
			msg:     Message{To: ""},
			wantErr: ErrInvalidAddress,
		},
		{
			name: "allowed attachment",
			msg: Message{To: "jane@example.com", Attachments: []Attachment{
				{Filename: "report.PDF", Content: []byte("x")},
			}},
		},
		{
			name: "disallowed extension",
			msg: Message{To: "jane@example.com", Attachments: []Attachment{
				{Filename: "script.sh", Content: []byte("x")},
			}},
			wantErr: ErrAttachmentType,
		},
		{
			name: "oversized attachment",
			msg: Message{To: "jane@example.com", Attachments: []Attachment{
				{Filename: "big.pdf", Content: make([]byte, MaxAttachmentSize+1)},
			}},
			wantErr: ErrAttachmentSize,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.msg)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSend_DryRun(t *testing.T) {
	dir := t.TempDir()
	s := NewSMTPSender(SMTPConfig{DryRun: true, LogsDir: dir, From: "astral@example.com"}, log.NewNop())
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail called during dry run")
		return nil
	}

	got, err := s.Send(context.Background(), Message{To: "jane@example.com", Subject: "hi", Body: "there"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.MessageID == "" {
		t.Error("MessageID is empty")
	}

	// One audit record per attempt.
	rec := readAudit(t, dir, got.MessageID)
	if rec.Status != StatusPending {
		t.Errorf("audit Status = %q, want pending", rec.Status)
	}
	if rec.To != "jane@example.com" {
		t.Errorf("audit To = %q", rec.To)
	}
}

func TestSend_NoHostForcesDryRun(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{}, log.NewNop())

	got, err := s.Send(context.Background(), Message{To: "jane@example.com", Subject: "hi", Body: "there"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want pending when no host is configured", got.Status)
	}
}

func TestSend_Delivers(t *testing.T) {
	dir := t.TempDir()
	s := NewSMTPSender(SMTPConfig{
		Host: "smtp.example.com", Port: 587,
		From: "astral@example.com", LogsDir: dir,
	}, log.NewNop())

	var sentTo []string
	var sentBody []byte
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if addr != "smtp.example.com:587" {
			t.Errorf("addr = %q", addr)
		}
		sentTo = to
		sentBody = msg
		return nil
	}

	got, err := s.Send(context.Background(), Message{To: "jane@example.com", Subject: "Quarterly review", Body: "Please book a slot."})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("Status = %q, want sent", got.Status)
	}
	if len(sentTo) != 1 || sentTo[0] != "jane@example.com" {
		t.Errorf("to = %v", sentTo)
	}
	if !bytes.Contains(sentBody, []byte("Please book a slot.")) {
		t.Error("encoded message missing body")
	}

	rec := readAudit(t, dir, got.MessageID)
	if rec.Status != StatusSent {
		t.Errorf("audit Status = %q, want sent", rec.Status)
	}
}

func TestSend_DeliveryFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, LogsDir: dir}, log.NewNop())
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	got, err := s.Send(context.Background(), Message{To: "jane@example.com", Subject: "hi", Body: "there"})
	if err == nil {
		t.Fatal("Send() error = nil, want delivery failure")
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
}

func TestSend_ValidationFailureSkipsDelivery(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587}, log.NewNop())
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail called for an invalid message")
		return nil
	}

	got, err := s.Send(context.Background(), Message{To: "nope"})
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Send() error = %v, want ErrInvalidAddress", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", got.Status)
	}
}

func TestEncode_Multipart(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "astral@example.com"}, log.NewNop())

	raw := s.encode(Message{
		To:      "jane@example.com",
		Subject: "With file",
		Body:    "See attached.",
		Attachments: []Attachment{
			{Filename: "notes.txt", Content: []byte("hello")},
		},
	}, "email_x")

	text := string(raw)
	if !strings.Contains(text, "multipart/mixed") {
		t.Error("missing multipart content type")
	}
	if !strings.Contains(text, `filename="notes.txt"`) {
		t.Error("missing attachment disposition")
	}
	if !strings.Contains(text, "aGVsbG8=") {
		t.Error("missing base64 attachment content")
	}
}

func readAudit(t *testing.T, dir, id string) auditRecord {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		t.Fatalf("reading audit record: %v", err)
	}
	var rec auditRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("parsing audit record: %v", err)
	}
	return rec
}
