// Package hr is the client for the HR directory service, the entity lookup
// collaborator behind email commands.
package hr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors checked with errors.Is(). Both map to user-facing
// validation failures at the router boundary.
var (
	// ErrNotFound indicates no employee matches the id or name.
	ErrNotFound = errors.New("employee not found")

	// ErrAmbiguousName indicates a name search matched more than one employee.
	ErrAmbiguousName = errors.New("ambiguous employee name")
)

// Employee is the directory record for one person.
type Employee struct {
	EmployeeID  int    `json:"employee_id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
}

// FullName joins the name parts with a single space.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Client talks to the HR directory over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a directory client. baseURL has no trailing slash
// requirement; it is normalized.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("component", "hr.client"),
	}
}

// FindByID fetches an employee by numeric id. A 404 maps to ErrNotFound.
func (c *Client) FindByID(ctx context.Context, id int) (Employee, error) {
	var emp Employee
	path := c.baseURL + "/employees/" + strconv.Itoa(id)
	if err := c.get(ctx, path, &emp); err != nil {
		return Employee{}, fmt.Errorf("finding employee %d: %w", id, err)
	}
	return emp, nil
}

// FindByName searches the directory by name. Exactly one match is required;
// zero matches map to ErrNotFound and multiple to ErrAmbiguousName.
func (c *Client) FindByName(ctx context.Context, name string) (Employee, error) {
	q := url.Values{}
	q.Set("name", name)
	path := c.baseURL + "/employees/search/by-name?" + q.Encode()

	var matches []Employee
	if err := c.get(ctx, path, &matches); err != nil {
		return Employee{}, fmt.Errorf("searching employee %q: %w", name, err)
	}

	switch len(matches) {
	case 0:
		return Employee{}, fmt.Errorf("searching employee %q: %w", name, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return Employee{}, fmt.Errorf("searching employee %q: %d matches: %w", name, len(matches), ErrAmbiguousName)
	}
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling HR directory: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("closing response body", "error", cerr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HR directory returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// RenderTemplate substitutes {placeholder} fields in a body template with the
// employee's details. Unknown placeholders are left untouched.
func RenderTemplate(tmpl string, emp Employee) string {
	r := strings.NewReplacer(
		"{first_name}", emp.FirstName,
		"{last_name}", emp.LastName,
		"{full_name}", emp.FullName(),
		"{email}", emp.Email,
		"{department}", emp.Department,
		"{designation}", emp.Designation,
		"{employee_id}", strconv.Itoa(emp.EmployeeID),
	)
	return r.Replace(tmpl)
}
