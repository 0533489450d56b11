// Package ai defines the embedding and generation capability contracts and
// their provider adapters. Consumers depend on the interfaces; the concrete
// adapter is selected by configuration at startup.
package ai

import (
	"context"
	"errors"
)

// Sentinel errors checked with errors.Is().
var (
	// ErrEmptyInput indicates the caller passed nothing to embed or generate.
	ErrEmptyInput = errors.New("empty input")

	// ErrProvider indicates the upstream provider returned a failure or an
	// unusable response. The cause is wrapped.
	ErrProvider = errors.New("provider error")
)

// Chat roles. History turns with any other role are normalized to RoleUser
// before they reach a provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// NormalizeRole maps arbitrary role strings to a provider-safe role.
// Anything that is not an assistant-side role becomes a user turn.
func NormalizeRole(role string) string {
	switch role {
	case RoleAssistant, "model", "ai":
		return RoleAssistant
	case RoleSystem:
		return RoleSystem
	default:
		return RoleUser
	}
}

// Embedder converts text into a vector representation.
type Embedder interface {
	// Embed returns the embedding for a single text. The returned slice is
	// never nil on success.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerateRequest carries everything a provider needs for one completion.
type GenerateRequest struct {
	// SystemPrompt is prepended as the system instruction. May be empty.
	SystemPrompt string

	// History holds prior conversation turns, oldest first.
	History []Message

	// Prompt is the final user turn.
	Prompt string

	// Temperature controls sampling. Zero is a valid value; adapters pass it
	// through as-is.
	Temperature float64
}

// Generator produces a chat completion.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
