package ingest

import "regexp"

// PII masking for embedded text. Identity fields needed for entity hints stay
// in chunk metadata; the text that reaches the index and the generation
// prompt carries masked values only.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)
	// Requires at least one separator so plain digit runs fall through to
	// the last-four rule below.
	phonePattern = regexp.MustCompile(`\+?\d[\d().-]*[\s().-][\d\s().-]{5,}\d`)
	// Long digit runs such as bank account numbers keep only the last four.
	digitRunPattern = regexp.MustCompile(`\d{8,}`)
)

// MaskPII redacts email addresses, phone numbers, and long digit runs.
// The email domain is kept so departmental addresses stay searchable.
func MaskPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "***@$1")
	text = phonePattern.ReplaceAllString(text, "***-REDACTED-PHONE***")
	text = digitRunPattern.ReplaceAllStringFunc(text, func(run string) string {
		return "***" + run[len(run)-4:]
	})
	return text
}
