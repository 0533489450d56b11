// Package testutil provides counting mocks for the external collaborators.
package testutil

import (
	"context"
	"sync/atomic"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/email"
	"github.com/astralhq/astral-assist/internal/hr"
	"github.com/astralhq/astral-assist/internal/vector"
)

// Embedder is a counting mock for ai.Embedder.
type Embedder struct {
	Vector []float32
	Err    error
	calls  atomic.Int64
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Vector != nil {
		return e.Vector, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls reports how many times Embed was invoked.
func (e *Embedder) Calls() int { return int(e.calls.Load()) }

// Generator is a counting mock for ai.Generator. It records the last request.
type Generator struct {
	Response string
	Err      error
	LastReq  ai.GenerateRequest
	calls    atomic.Int64
}

func (g *Generator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	g.calls.Add(1)
	g.LastReq = req
	if g.Err != nil {
		return "", g.Err
	}
	if g.Response != "" {
		return g.Response, nil
	}
	return "generated answer", nil
}

// Calls reports how many times Generate was invoked.
func (g *Generator) Calls() int { return int(g.calls.Load()) }

// Index is a counting mock for vector.Index.
type Index struct {
	Matches     []vector.Match
	SearchErr   error
	UpsertErr   error
	Upserted    []vector.Item
	Deleted     []string
	searchCalls atomic.Int64
}

func (i *Index) Upsert(ctx context.Context, items []vector.Item) error {
	if i.UpsertErr != nil {
		return i.UpsertErr
	}
	i.Upserted = append(i.Upserted, items...)
	return nil
}

func (i *Index) Search(ctx context.Context, embedding []float32, topK int, namespace string) ([]vector.Match, error) {
	i.searchCalls.Add(1)
	if i.SearchErr != nil {
		return nil, i.SearchErr
	}
	return i.Matches, nil
}

func (i *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	i.Deleted = append(i.Deleted, namespace)
	return nil
}

// SearchCalls reports how many times Search was invoked.
func (i *Index) SearchCalls() int { return int(i.searchCalls.Load()) }

// Directory is a mock HR lookup keyed by id and by exact name.
type Directory struct {
	ByID    map[int]hr.Employee
	ByName  map[string][]hr.Employee
	LookupE error
}

func (d *Directory) FindByID(ctx context.Context, id int) (hr.Employee, error) {
	if d.LookupE != nil {
		return hr.Employee{}, d.LookupE
	}
	emp, ok := d.ByID[id]
	if !ok {
		return hr.Employee{}, hr.ErrNotFound
	}
	return emp, nil
}

func (d *Directory) FindByName(ctx context.Context, name string) (hr.Employee, error) {
	if d.LookupE != nil {
		return hr.Employee{}, d.LookupE
	}
	matches := d.ByName[name]
	switch len(matches) {
	case 0:
		return hr.Employee{}, hr.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return hr.Employee{}, hr.ErrAmbiguousName
	}
}

// Dispatcher is a recording mock for email.Dispatcher.
type Dispatcher struct {
	Receipt email.Receipt
	Err     error
	Sent    []email.Message
}

func (d *Dispatcher) Send(ctx context.Context, msg email.Message) (email.Receipt, error) {
	d.Sent = append(d.Sent, msg)
	if d.Err != nil {
		return email.Receipt{Status: email.StatusFailed}, d.Err
	}
	if d.Receipt.Status != "" {
		return d.Receipt, nil
	}
	return email.Receipt{Status: email.StatusSent, MessageID: "email_test"}, nil
}
