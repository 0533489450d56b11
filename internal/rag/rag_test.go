package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/log"
	"github.com/astralhq/astral-assist/internal/rag"
	"github.com/astralhq/astral-assist/internal/testutil"
	"github.com/astralhq/astral-assist/internal/vector"
)

func newService(e *testutil.Embedder, i *testutil.Index, g *testutil.Generator) *rag.Service {
	return rag.NewService(e, i, g, rag.Config{
		Namespace:    "main",
		TopK:         5,
		SystemPrompt: "answer from context",
		Temperature:  0.2,
	}, log.NewNop())
}

func TestAnswer_GreetingShortCircuit(t *testing.T) {
	greetings := []string{"hi", "Hello", "  hey  ", "HEY THERE", "yo", "Hola"}

	for _, q := range greetings {
		t.Run(q, func(t *testing.T) {
			embedder := &testutil.Embedder{}
			index := &testutil.Index{}
			generator := &testutil.Generator{}
			svc := newService(embedder, index, generator)

			got, err := svc.Answer(context.Background(), q, nil)
			if err != nil {
				t.Fatalf("Answer(%q) error = %v", q, err)
			}
			if len(got.Contexts) != 0 {
				t.Errorf("Contexts = %v, want empty", got.Contexts)
			}
			if got.Response == "" {
				t.Error("Response is empty, want canned greeting")
			}
			if embedder.Calls() != 0 {
				t.Errorf("embedder called %d times, want 0", embedder.Calls())
			}
			if index.SearchCalls() != 0 {
				t.Errorf("index searched %d times, want 0", index.SearchCalls())
			}
			if generator.Calls() != 0 {
				t.Errorf("generator called %d times, want 0", generator.Calls())
			}
		})
	}
}

func TestAnswer_NearGreetingGoesThroughRetrieval(t *testing.T) {
	embedder := &testutil.Embedder{}
	index := &testutil.Index{}
	generator := &testutil.Generator{}
	svc := newService(embedder, index, generator)

	if _, err := svc.Answer(context.Background(), "hi there everyone", nil); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if embedder.Calls() != 1 {
		t.Errorf("embedder called %d times, want 1", embedder.Calls())
	}
}

func TestAnswer_DropsBlankAndPreservesOrder(t *testing.T) {
	index := &testutil.Index{Matches: []vector.Match{
		{ID: "a", Score: 0.9, Text: "first", Metadata: map[string]string{"source": "a.md"}},
		{ID: "b", Score: 0.8, Text: "   "},
		{ID: "c", Score: 0.7, Text: "third"},
	}}
	generator := &testutil.Generator{Response: "answer"}
	svc := newService(&testutil.Embedder{}, index, generator)

	got, err := svc.Answer(context.Background(), "what is the policy?", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	wantIDs := []string{"a", "c"}
	if len(got.Contexts) != len(wantIDs) {
		t.Fatalf("len(Contexts) = %d, want %d", len(got.Contexts), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got.Contexts[i].ID != want {
			t.Errorf("Contexts[%d].ID = %q, want %q", i, got.Contexts[i].ID, want)
		}
	}

	// Returned contexts are stripped of raw text; only the prompt sees it.
	if !strings.Contains(generator.LastReq.Prompt, "first") {
		t.Error("prompt does not contain surviving context text")
	}
	if got.AgentStrategy != rag.StrategyRAGOnly {
		t.Errorf("AgentStrategy = %q, want %q", got.AgentStrategy, rag.StrategyRAGOnly)
	}
	if len(got.AgentsUsed) != 1 || got.AgentsUsed[0] != rag.AgentRAG {
		t.Errorf("AgentsUsed = %v, want [%q]", got.AgentsUsed, rag.AgentRAG)
	}
}

func TestAnswer_PromptShape(t *testing.T) {
	index := &testutil.Index{Matches: []vector.Match{{ID: "a", Score: 0.9, Text: "refunds take 30 days"}}}
	generator := &testutil.Generator{}
	svc := newService(&testutil.Embedder{}, index, generator)

	query := "What is our refund policy?"
	if _, err := svc.Answer(context.Background(), query, nil); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	req := generator.LastReq
	if req.SystemPrompt != "answer from context" {
		t.Errorf("SystemPrompt = %q", req.SystemPrompt)
	}
	if !strings.Contains(req.Prompt, "refunds take 30 days") {
		t.Error("prompt missing context block")
	}
	if !strings.Contains(req.Prompt, "Question: "+query) {
		t.Error("prompt missing literal question")
	}
	if !strings.Contains(req.Prompt, "cite") {
		t.Error("prompt missing cite-sources instruction")
	}
	if req.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", req.Temperature)
	}
}

func TestAnswer_HistoryWindowAndRoles(t *testing.T) {
	generator := &testutil.Generator{}
	svc := newService(&testutil.Embedder{}, &testutil.Index{}, generator)

	history := make([]ai.Message, 0, 14)
	for i := 0; i < 14; i++ {
		role := "user"
		if i%2 == 1 {
			role = "model" // non-standard role, must normalize to assistant
		}
		history = append(history, ai.Message{Role: role, Content: strings.Repeat("x", i+1)})
	}

	if _, err := svc.Answer(context.Background(), "question", history); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	got := generator.LastReq.History
	if len(got) != 10 {
		t.Fatalf("len(History) = %d, want 10", len(got))
	}
	// The window keeps the most recent turns.
	if got[len(got)-1].Content != history[len(history)-1].Content {
		t.Error("window dropped the most recent turn")
	}
	for _, m := range got {
		if m.Role != ai.RoleUser && m.Role != ai.RoleAssistant {
			t.Errorf("Role = %q, want user or assistant", m.Role)
		}
	}
}

func TestAnswer_WrapsFailures(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("embed failure", func(t *testing.T) {
		svc := newService(&testutil.Embedder{Err: cause}, &testutil.Index{}, &testutil.Generator{})
		_, err := svc.Answer(context.Background(), "question", nil)
		if !errors.Is(err, rag.ErrRetrieval) {
			t.Fatalf("error = %v, want ErrRetrieval", err)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not preserved in wrapped error")
		}
	})

	t.Run("search failure", func(t *testing.T) {
		svc := newService(&testutil.Embedder{}, &testutil.Index{SearchErr: cause}, &testutil.Generator{})
		if _, err := svc.Answer(context.Background(), "question", nil); !errors.Is(err, rag.ErrRetrieval) {
			t.Fatalf("error = %v, want ErrRetrieval", err)
		}
	})

	t.Run("generate failure", func(t *testing.T) {
		svc := newService(&testutil.Embedder{}, &testutil.Index{}, &testutil.Generator{Err: cause})
		if _, err := svc.Answer(context.Background(), "question", nil); !errors.Is(err, rag.ErrRetrieval) {
			t.Fatalf("error = %v, want ErrRetrieval", err)
		}
	})
}
