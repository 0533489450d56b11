// Package rag implements the retrieval-augmented answering pipeline: embed
// the query, search the vector index, assemble context blocks, and generate a
// grounded answer. It owns the small-talk short-circuit so trivial input
// never costs an embedding or generation round trip.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/vector"
)

// ErrRetrieval wraps any embedding, search, or generation failure. The cause
// is preserved for logging; callers surface a generic message to users.
var ErrRetrieval = errors.New("retrieval failure")

// AgentRAG identifies this pipeline in response envelopes.
const AgentRAG = "rag"

// StrategyRAGOnly is the only strategy this version implements.
const StrategyRAGOnly = "rag_only"

// greetingReply is the canned response for the short-circuit set.
const greetingReply = "Hello! How can I help you today?"

// greetings is checked against the trimmed, lower-cased query. Exact match
// only; "hi there everyone" goes through retrieval like any other query.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true,
	"hey there": true, "yo": true, "hola": true,
}

// ContextRef is a retrieved context with its raw text withheld. Only the
// generated answer carries corpus-derived content back to the caller.
type ContextRef struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Answer is the knowledge-path result.
type Answer struct {
	Response      string
	Contexts      []ContextRef
	AgentStrategy string
	AgentsUsed    []string
}

// Config tunes the pipeline. Zero timeouts disable the per-call bound.
type Config struct {
	Namespace       string
	TopK            int
	SystemPrompt    string
	Temperature     float64
	HistoryWindow   int
	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

// Service runs the pipeline. All collaborators are required.
type Service struct {
	embedder  ai.Embedder
	index     vector.Index
	generator ai.Generator
	cfg       Config
	logger    *slog.Logger
}

// NewService creates the retrieval service.
func NewService(embedder ai.Embedder, index vector.Index, generator ai.Generator, cfg Config, logger *slog.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "main"
	}
	return &Service{
		embedder:  embedder,
		index:     index,
		generator: generator,
		cfg:       cfg,
		logger:    logger.With("component", "rag.service"),
	}
}

// Answer runs the full pipeline for a knowledge query.
func (s *Service) Answer(ctx context.Context, query string, history []ai.Message) (Answer, error) {
	if reply, ok := s.greet(query); ok {
		s.logger.Debug("greeting short-circuit", "query", query)
		return Answer{
			Response:      reply,
			Contexts:      []ContextRef{},
			AgentStrategy: StrategyRAGOnly,
			AgentsUsed:    []string{AgentRAG},
		}, nil
	}

	matches, err := s.retrieve(ctx, query)
	if err != nil {
		return Answer{}, err
	}

	response, err := s.generate(ctx, query, history, matches)
	if err != nil {
		return Answer{}, err
	}

	refs := make([]ContextRef, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, ContextRef{ID: m.ID, Score: m.Score, Metadata: m.Metadata})
	}

	return Answer{
		Response:      response,
		Contexts:      refs,
		AgentStrategy: StrategyRAGOnly,
		AgentsUsed:    []string{AgentRAG},
	}, nil
}

// greet reports whether the query is in the greeting set. Checked before any
// external call.
func (s *Service) greet(query string) (string, bool) {
	if greetings[strings.ToLower(strings.TrimSpace(query))] {
		return greetingReply, true
	}
	return "", false
}

// retrieve embeds the query and searches the index, dropping blank-text
// matches. Index ordering is authoritative and preserved as-is.
func (s *Service) retrieve(ctx context.Context, query string) ([]vector.Match, error) {
	embedCtx, cancel := s.bound(ctx, s.cfg.EmbedTimeout)
	embedding, err := s.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", ErrRetrieval, err)
	}

	searchCtx, cancel := s.bound(ctx, s.cfg.SearchTimeout)
	matches, err := s.index.Search(searchCtx, embedding, s.cfg.TopK, s.cfg.Namespace)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %w", ErrRetrieval, err)
	}

	kept := matches[:0]
	for _, m := range matches {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		kept = append(kept, m)
	}

	s.logger.Debug("retrieved contexts",
		"namespace", s.cfg.Namespace,
		"matches", len(matches),
		"kept", len(kept))
	return kept, nil
}

// generate builds the message sequence and invokes the generation client.
// Context blocks carry text only; metadata and scores stay out of the prompt.
func (s *Service) generate(ctx context.Context, query string, history []ai.Message, matches []vector.Match) (string, error) {
	var b strings.Builder
	if len(matches) > 0 {
		b.WriteString("Context:\n")
		for _, m := range matches {
			b.WriteString(m.Text)
			b.WriteString("\n\n")
		}
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nAlways cite the provided files where possible.")

	genCtx, cancel := s.bound(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	response, err := s.generator.Generate(genCtx, ai.GenerateRequest{
		SystemPrompt: s.cfg.SystemPrompt,
		History:      s.window(history),
		Prompt:       b.String(),
		Temperature:  s.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: generating answer: %w", ErrRetrieval, err)
	}
	return response, nil
}

// window returns the most recent HistoryWindow turns, roles normalized.
func (s *Service) window(history []ai.Message) []ai.Message {
	if len(history) > s.cfg.HistoryWindow {
		history = history[len(history)-s.cfg.HistoryWindow:]
	}
	out := make([]ai.Message, len(history))
	for i, m := range history {
		role := ai.NormalizeRole(m.Role)
		if role == ai.RoleSystem {
			role = ai.RoleUser
		}
		out[i] = ai.Message{Role: role, Content: m.Content}
	}
	return out
}

func (s *Service) bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
