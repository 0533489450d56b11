// Package router classifies each request as an actionable email command or a
// knowledge query, dispatches to the matching pipeline, and normalizes both
// outcomes into one response envelope.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/command"
	"github.com/astralhq/astral-assist/internal/email"
	"github.com/astralhq/astral-assist/internal/hr"
	"github.com/astralhq/astral-assist/internal/rag"
	"github.com/astralhq/astral-assist/internal/session"
)

// ErrServiceUnavailable indicates a required collaborator is unconfigured.
// Distinct from validation failures, which always come back as envelopes.
var ErrServiceUnavailable = errors.New("service unavailable")

// Routing targets.
const (
	TargetKnowledge = "KNOWLEDGE"
	TargetAction    = "ACTION"
)

// AgentEmail identifies the action pipeline in response envelopes.
const AgentEmail = "email"

// Decision is the classification outcome, produced once per request.
type Decision struct {
	Target    string `json:"recommended_agent"`
	Reasoning string `json:"reasoning"`
}

// Request is the inbound contract, transport-agnostic.
type Request struct {
	Query     string
	History   []ai.Message
	SessionID string
}

// Result is the path-independent payload of an envelope. Contexts is always
// non-nil so both paths serialize identically.
type Result struct {
	Response      string            `json:"response"`
	Contexts      []rag.ContextRef  `json:"contexts"`
	AgentsUsed    []string          `json:"agents_used"`
	AgentStrategy string            `json:"agent_strategy"`
	Error         string            `json:"error,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// Envelope is the uniform outbound response for both paths.
type Envelope struct {
	Decision Decision `json:"decision"`
	Result   Result   `json:"result"`
}

// Directory is the slice of the HR lookup collaborator the router uses.
type Directory interface {
	FindByID(ctx context.Context, id int) (hr.Employee, error)
	FindByName(ctx context.Context, name string) (hr.Employee, error)
}

// Answerer is the slice of the retrieval service the router uses.
type Answerer interface {
	Answer(ctx context.Context, query string, history []ai.Message) (rag.Answer, error)
}

var (
	emailToken   = regexp.MustCompile(`(?i)\bemail\b`)
	sendToken    = regexp.MustCompile(`(?i)\bsend\b`)
	messageToken = regexp.MustCompile(`(?i)\bmessage\b`)
)

// Classify applies the routing policy, first match wins. A precision-biased
// heuristic, intentionally simple and replaceable.
func Classify(prompt string) Decision {
	switch {
	case emailToken.MatchString(prompt):
		return Decision{Target: TargetAction, Reasoning: "prompt mentions an email"}
	case sendToken.MatchString(prompt) && messageToken.MatchString(prompt):
		return Decision{Target: TargetAction, Reasoning: "prompt asks to send a message"}
	default:
		return Decision{Target: TargetKnowledge, Reasoning: "no actionable command detected"}
	}
}

// Router orchestrates one request end to end.
type Router struct {
	parser     *command.Parser
	sessions   *session.Store
	retrieval  Answerer
	directory  Directory
	dispatcher email.Dispatcher
	logger     *slog.Logger
}

// New creates a router. retrieval, directory, and dispatcher may each be nil;
// the corresponding path then fails in its defined way instead of at startup.
func New(parser *command.Parser, sessions *session.Store, retrieval Answerer,
	directory Directory, dispatcher email.Dispatcher, logger *slog.Logger) *Router {
	return &Router{
		parser:     parser,
		sessions:   sessions,
		retrieval:  retrieval,
		directory:  directory,
		dispatcher: dispatcher,
		logger:     logger.With("component", "router"),
	}
}

// Handle classifies and dispatches one request. Action-path failures of any
// kind come back as structured failure envelopes; the only returned error is
// ErrServiceUnavailable when a knowledge query arrives without a configured
// retrieval service.
func (r *Router) Handle(ctx context.Context, req Request) (Envelope, error) {
	decision := Classify(req.Query)
	r.logger.Info("routed request",
		"target", decision.Target,
		"session_id", req.SessionID)

	if decision.Target == TargetAction {
		return Envelope{Decision: decision, Result: r.handleAction(ctx, req)}, nil
	}
	return r.handleKnowledge(ctx, decision, req)
}

// handleAction runs parse, entity resolution, and dispatch. Never panics out;
// anything unexpected is converted to the same failure shape as a
// validation error.
func (r *Router) handleAction(ctx context.Context, req Request) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("action path panicked", "panic", rec)
			result = failure(fmt.Sprintf("internal error handling the command: %v", rec))
		}
	}()

	if r.dispatcher == nil || r.directory == nil {
		return failure("email dispatch is not configured")
	}

	directive, err := r.parser.Parse(req.Query, req.SessionID)
	if err != nil {
		if command.IsValidation(err) {
			return failure(err.Error())
		}
		r.logger.Error("parsing command", "error", err)
		return failure("could not understand the email command")
	}

	emp, err := r.resolve(ctx, directive)
	if err != nil {
		switch {
		case errors.Is(err, hr.ErrNotFound):
			return failure(fmt.Sprintf("no employee found for %q", directive.Target()))
		case errors.Is(err, hr.ErrAmbiguousName):
			return failure(fmt.Sprintf("multiple employees match %q, please use an id", directive.Target()))
		default:
			r.logger.Error("resolving employee", "error", err)
			return failure("could not look up the employee")
		}
	}

	receipt, err := r.dispatcher.Send(ctx, email.Message{
		To:      emp.Email,
		Subject: directive.Subject,
		Body:    hr.RenderTemplate(directive.Body, emp),
		DryRun:  !directive.SendNow,
	})
	if err != nil {
		r.logger.Error("dispatching email", "error", err, "to", emp.Email)
		return failure("email dispatch failed")
	}

	statusWord := "sent"
	if receipt.Status == email.StatusPending {
		statusWord = "drafted (not sent)"
	}
	return Result{
		Response:      fmt.Sprintf("Email to %s <%s> %s: %q", emp.FullName(), emp.Email, statusWord, directive.Subject),
		Contexts:      []rag.ContextRef{},
		AgentsUsed:    []string{AgentEmail},
		AgentStrategy: "direct_action",
		Details: map[string]string{
			"status":      string(receipt.Status),
			"message_id":  receipt.MessageID,
			"to":          emp.Email,
			"employee_id": fmt.Sprintf("%d", emp.EmployeeID),
		},
	}
}

func (r *Router) resolve(ctx context.Context, d command.Directive) (hr.Employee, error) {
	if d.EmployeeID != nil {
		return r.directory.FindByID(ctx, *d.EmployeeID)
	}
	return r.directory.FindByName(ctx, d.EmployeeName)
}

// handleKnowledge delegates to retrieval and, on success, feeds an entity
// hint from the returned contexts back into session memory.
func (r *Router) handleKnowledge(ctx context.Context, decision Decision, req Request) (Envelope, error) {
	if r.retrieval == nil {
		return Envelope{}, fmt.Errorf("%w: retrieval service is not configured", ErrServiceUnavailable)
	}

	answer, err := r.retrieval.Answer(ctx, req.Query, req.History)
	if err != nil {
		r.logger.Error("answering knowledge query", "error", err)
		return Envelope{
			Decision: decision,
			Result: Result{
				Response:      "I could not retrieve an answer right now, please try again.",
				Contexts:      []rag.ContextRef{},
				AgentsUsed:    []string{rag.AgentRAG},
				AgentStrategy: rag.StrategyRAGOnly,
				Error:         "retrieval failure",
			},
		}, nil
	}

	r.rememberHint(req.SessionID, answer.Contexts)

	contexts := answer.Contexts
	if contexts == nil {
		contexts = []rag.ContextRef{}
	}
	return Envelope{
		Decision: decision,
		Result: Result{
			Response:      answer.Response,
			Contexts:      contexts,
			AgentsUsed:    answer.AgentsUsed,
			AgentStrategy: answer.AgentStrategy,
		},
	}, nil
}

// rememberHint scans contexts in order and stores the first entity hint
// found. No merging across contexts.
func (r *Router) rememberHint(sessionID string, contexts []rag.ContextRef) {
	if r.sessions == nil {
		return
	}
	for _, c := range contexts {
		if e, ok := session.EntityFromMetadata(c.Metadata); ok {
			r.sessions.Remember(sessionID, e)
			r.logger.Debug("remembered entity hint", "session_id", sessionID, "context_id", c.ID)
			return
		}
	}
}

func failure(msg string) Result {
	return Result{
		Response:      "I couldn't complete that email command: " + msg,
		Contexts:      []rag.ContextRef{},
		AgentsUsed:    []string{AgentEmail},
		AgentStrategy: "direct_action",
		Error:         msg,
	}
}
