// Package email dispatches the messages produced by the command path.
//
// The SMTP sender supports a dry-run mode that validates and audit-logs
// without delivering. The attachment policy and the JSON audit records are
// part of the contract: every send attempt, delivered or not, leaves a
// record on disk.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"
	"strings"
)

// Status of a dispatch attempt. Callers treat pending and sent identically
// except for the word surfaced to the user.
type Status string

const (
	StatusPending Status = "pending" // dry run, validated and logged only
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Validation sentinels checked with errors.Is().
var (
	// ErrInvalidAddress indicates an unparseable recipient address.
	ErrInvalidAddress = errors.New("invalid email address")

	// ErrAttachmentType indicates an attachment extension outside the
	// allow-list.
	ErrAttachmentType = errors.New("attachment type not allowed")

	// ErrAttachmentSize indicates an attachment over the size cap.
	ErrAttachmentSize = errors.New("attachment too large")
)

// MaxAttachmentSize caps a single attachment at 5 MiB.
const MaxAttachmentSize = 5 << 20

// allowedExtensions is the attachment extension allow-list.
var allowedExtensions = map[string]bool{
	".txt": true, ".pdf": true, ".png": true,
	".jpg": true, ".jpeg": true, ".csv": true,
}

// Attachment is an in-memory file to attach.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is one outbound email. DryRun requests validation and audit
// logging without delivery for this message only.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
	DryRun      bool
}

// Receipt reports the outcome of a dispatch attempt. MessageID is empty for
// failed attempts.
type Receipt struct {
	Status    Status
	MessageID string
}

// Dispatcher is the capability contract the router's action path depends on.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Validate checks the recipient address and the attachment policy. It runs
// before any delivery attempt, in dry-run mode too.
func Validate(msg Message) error {
	addr, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, msg.To)
	}
	if !strings.Contains(addr.Address, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, msg.To)
	}

	for _, a := range msg.Attachments {
		ext := strings.ToLower(filepath.Ext(a.Filename))
		if !allowedExtensions[ext] {
			return fmt.Errorf("%w: %q", ErrAttachmentType, a.Filename)
		}
		if len(a.Content) > MaxAttachmentSize {
			return fmt.Errorf("%w: %q is %d bytes", ErrAttachmentSize, a.Filename, len(a.Content))
		}
	}
	return nil
}
