// Package command extracts a structured email directive from free text.
//
// Parsing is an ordered list of regex rules. The order is load-bearing: an
// explicit numeric id wins over a name phrase, and an explicit "send" token
// always overrides a draft keyword. The parser degrades gracefully by
// synthesizing a subject and body when markers are absent, but it never
// fabricates the target entity.
package command

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/astralhq/astral-assist/internal/session"
)

// Validation sentinels. All three represent malformed user input that must be
// surfaced as a structured failure, never a crash. Checked with errors.Is()
// or IsValidation().
var (
	ErrMissingEntity = errors.New("missing entity reference")
	ErrEmptySubject  = errors.New("empty subject")
	ErrEmptyBody     = errors.New("empty body")
)

// IsValidation reports whether err is one of the parser's validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingEntity) ||
		errors.Is(err, ErrEmptySubject) ||
		errors.Is(err, ErrEmptyBody)
}

// Directive is a fully-resolved email command. Subject and Body are always
// non-blank; exactly one of EmployeeID and EmployeeName may be unset when the
// other identifies the target.
type Directive struct {
	EmployeeID   *int
	EmployeeName string
	Subject      string
	Body         string
	SendNow      bool
}

// Target returns a human-readable name for the directive's target, used in
// synthesized subjects and user-facing messages.
func (d Directive) Target() string {
	if d.EmployeeName != "" {
		return d.EmployeeName
	}
	if d.EmployeeID != nil {
		return fmt.Sprintf("employee %d", *d.EmployeeID)
	}
	return ""
}

// Recaller is the slice of session memory the parser reads. It never writes.
type Recaller interface {
	Recall(sessionID string) (session.Entity, bool)
}

var (
	// First integer following "employee", "id=", or "email".
	idPattern = regexp.MustCompile(`(?i)\b(?:employee|id\s*=|email)\s*#?\s*(\d+)`)

	// 1-3 word proper-name phrase following "email" (optionally "email to").
	// Name words must be capitalized so filler words do not ride along.
	namePattern = regexp.MustCompile(`(?i:\bemail\s+(?:to\s+)?)([A-Z][A-Za-z'.-]*(?:\s+[A-Z][A-Za-z'.-]*){0,2})`)

	// Marker captures are order-independent, each non-greedy up to the other.
	subjectPattern = regexp.MustCompile(`(?is)subject:\s*(.*?)\s*(?:body:|$)`)
	bodyPattern    = regexp.MustCompile(`(?is)body:\s*(.*?)\s*(?:subject:|$)`)

	draftPattern = regexp.MustCompile(`(?i)\b(?:draft|prepare|preview)\b`)
	sendPattern  = regexp.MustCompile(`(?i)\bsend\b`)

	// Tokens that terminate a captured name phrase.
	nameTerminators = map[string]bool{
		"subject": true, "subject:": true, "body": true, "body:": true,
		"send": true, "draft": true, "prepare": true, "preview": true,
	}

	// Dispatch keyword trailing a tail capture is a command token, not content.
	trailingKeyword = regexp.MustCompile(`(?i)\s*\b(?:send|draft|prepare|preview)\b\s*$`)
)

// Parser turns actionable prompts into directives.
type Parser struct {
	sessions Recaller
	logger   *slog.Logger
}

// NewParser creates a parser. sessions may be nil, in which case the session
// fallback step is skipped.
func NewParser(sessions Recaller, logger *slog.Logger) *Parser {
	return &Parser{
		sessions: sessions,
		logger:   logger.With("component", "command.parser"),
	}
}

// Parse extracts a directive from text, consulting session memory for the
// target when the text names none. Returns a validation error when the entity
// cannot be resolved or a marker-provided subject or body is blank.
func (p *Parser) Parse(text, sessionID string) (Directive, error) {
	var d Directive

	// Rule 1: explicit numeric id beats everything.
	if m := idPattern.FindStringSubmatch(text); m != nil {
		id, err := strconv.Atoi(m[1])
		if err == nil {
			d.EmployeeID = &id
		}
	}

	// Rule 2: name phrase after "email" / "email to".
	if d.EmployeeID == nil {
		if m := namePattern.FindStringSubmatch(text); m != nil {
			d.EmployeeName = truncateAtTerminator(m[1])
		}
	}

	// Rule 3: fall back to the entity the conversation last referenced.
	if d.EmployeeID == nil && d.EmployeeName == "" && p.sessions != nil {
		if e, ok := p.sessions.Recall(sessionID); ok {
			d.EmployeeID = e.EmployeeID
			d.EmployeeName = e.FullName()
			if d.EmployeeName == "" {
				d.EmployeeName = e.Email
			}
			p.logger.Debug("resolved target from session memory", "session_id", sessionID)
		}
	}
	if d.EmployeeID == nil && d.EmployeeName == "" {
		return Directive{}, ErrMissingEntity
	}

	// Rule 4: subject/body markers, synthesized defaults otherwise.
	subject, hasSubject := captureMarker(subjectPattern, text)
	body, hasBody := captureMarker(bodyPattern, text)
	if !hasSubject || !hasBody {
		if !hasSubject {
			subject = synthesizeSubject(d.Target(), text)
		}
		if !hasBody {
			body = synthesizeBody(text)
		}
	}
	if strings.TrimSpace(subject) == "" {
		return Directive{}, ErrEmptySubject
	}
	if strings.TrimSpace(body) == "" {
		return Directive{}, ErrEmptyBody
	}
	d.Subject = strings.TrimSpace(subject)
	d.Body = strings.TrimSpace(body)

	// Rule 5: dispatch flag. Draft keywords flip the default off, but an
	// explicit "send" token always wins. Send beats draft, exactly.
	d.SendNow = true
	if draftPattern.MatchString(text) && !sendPattern.MatchString(text) {
		d.SendNow = false
	}

	return d, nil
}

// captureMarker extracts a marker field. A capture that runs to the end of
// the text may carry a trailing dispatch token ("body: Hi there send"), which
// is stripped; a capture bounded by the other marker is taken verbatim, so
// "subject: Please send body: x" keeps its subject whole.
func captureMarker(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatchIndex(text)
	if m == nil {
		return "", false
	}
	capture := text[m[2]:m[3]]
	if strings.TrimSpace(text[m[3]:m[1]]) == "" {
		capture = trailingKeyword.ReplaceAllString(capture, "")
	}
	return capture, true
}

// truncateAtTerminator cuts a captured name phrase at the first command token.
func truncateAtTerminator(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		if nameTerminators[strings.ToLower(w)] {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func synthesizeSubject(target, text string) string {
	if target != "" {
		return "Follow-up for " + target
	}
	echo := strings.TrimSpace(text)
	if runes := []rune(echo); len(runes) > 50 {
		echo = string(runes[:50])
	}
	return echo
}

// synthesizeBody builds a canned body with the original request appended as a
// traceability note.
func synthesizeBody(text string) string {
	return "Hello,\n\n" +
		"I hope this message finds you well. Following up as discussed.\n\n" +
		"Best regards,\n" +
		"Astral Assist\n\n" +
		"---\n" +
		"Original request: " + strings.TrimSpace(text)
}
