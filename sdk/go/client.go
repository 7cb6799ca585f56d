package fiscaliasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Fiscalia HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "api",
		Timeout:  10 * time.Second,
	}
}

// Fiscal represents a registered prosecutor.
type Fiscal struct {
	ID         int64  `json:"id_fiscal"`
	Name       string `json:"nombre"`
	Email      string `json:"correo"`
	FiscaliaID int64  `json:"id_fiscalia"`
	CreatedAt  string `json:"created_at"`
}

// Case represents a tracked case.
type Case struct {
	ID          int64  `json:"id_caso"`
	Description string `json:"descripcion"`
	Status      string `json:"estado"`
	FiscalID    int64  `json:"id_fiscal"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Reassignment is one audit log entry.
type Reassignment struct {
	ID                 int64  `json:"id"`
	CaseID             int64  `json:"id_caso"`
	CaseDescription    string `json:"descripcion_caso"`
	PreviousFiscalID   int64  `json:"id_fiscal_anterior"`
	PreviousFiscalName string `json:"nombre_fiscal_anterior"`
	NewFiscalID        int64  `json:"id_fiscal_nuevo"`
	NewFiscalName      string `json:"nombre_fiscal_nuevo"`
	Reason             string `json:"motivo,omitempty"`
	Timestamp          string `json:"fecha"`
}

// ReassignResult is the reply to a successful reassignment.
type ReassignResult struct {
	Message      string       `json:"mensaje"`
	Reassignment Reassignment `json:"reasignacion"`
}

// FiscalStatistics holds one fiscal's case counts.
type FiscalStatistics struct {
	FiscalID       int64  `json:"id_fiscal"`
	FiscalName     string `json:"nombre_fiscal"`
	TotalCases     int    `json:"total_casos"`
	PendingCount   int    `json:"pendientes"`
	InProcessCount int    `json:"en_proceso"`
	ClosedCount    int    `json:"cerrados"`
}

// StatusCount holds the number of cases in one status.
type StatusCount struct {
	Status string `json:"estado"`
	Count  int    `json:"cantidad"`
}

// PaginatedReassignments wraps log listings with cursors.
type PaginatedReassignments struct {
	Items      []Reassignment `json:"items"`
	NextCursor string         `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Field come from the error
// envelope when the body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Field      string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RegisterFiscal registers a fiscal in a fiscalia.
func (c *Client) RegisterFiscal(ctx context.Context, name, email string, fiscaliaID int64) (Fiscal, error) {
	body := map[string]any{
		"nombre":      name,
		"correo":      email,
		"id_fiscalia": fiscaliaID,
	}
	var resp Fiscal
	err := c.do(ctx, http.MethodPost, "fiscales", body, &resp)
	return resp, err
}

// ListFiscales returns every fiscal.
func (c *Client) ListFiscales(ctx context.Context) ([]Fiscal, error) {
	var resp []Fiscal
	err := c.do(ctx, http.MethodGet, "fiscales", nil, &resp)
	return resp, err
}

// CreateCase opens a case. Status must be Pendiente or Cerrado.
func (c *Client) CreateCase(ctx context.Context, description, status string, fiscalID int64) (Case, error) {
	body := map[string]any{
		"descripcion": description,
		"estado":      status,
		"id_fiscal":   fiscalID,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "casos", body, &resp)
	return resp, err
}

// ListCases returns every case ordered by id.
func (c *Client) ListCases(ctx context.Context) ([]Case, error) {
	var resp []Case
	err := c.do(ctx, http.MethodGet, "casos", nil, &resp)
	return resp, err
}

// ReassignCase moves a case to another fiscal. reason may be empty.
func (c *Client) ReassignCase(ctx context.Context, caseID, newFiscalID int64, reason string) (ReassignResult, error) {
	body := map[string]any{
		"id_caso":         caseID,
		"id_nuevo_fiscal": newFiscalID,
	}
	if reason != "" {
		body["motivo"] = reason
	}
	var resp ReassignResult
	err := c.do(ctx, http.MethodPost, "casos/reasignar", body, &resp)
	return resp, err
}

// TransitionCase changes the status of a case.
func (c *Client) TransitionCase(ctx context.Context, caseID int64, status string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("casos/%d/estado", caseID), map[string]any{"estado": status}, &resp)
	return resp, err
}

// Reassignments returns the whole audit log, oldest first.
func (c *Client) Reassignments(ctx context.Context) ([]Reassignment, error) {
	page, err := c.ReassignmentsPage(ctx, 0, "")
	return page.Items, err
}

// ReassignmentsPage returns a page of the audit log.
func (c *Client) ReassignmentsPage(ctx context.Context, limit int, cursor string) (PaginatedReassignments, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "reasignaciones"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedReassignments
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StatisticsByFiscal returns per-fiscal case counts.
func (c *Client) StatisticsByFiscal(ctx context.Context) ([]FiscalStatistics, error) {
	var resp []FiscalStatistics
	err := c.do(ctx, http.MethodGet, "casos/estadisticas", nil, &resp)
	return resp, err
}

// StatisticsByStatus returns case counts per status.
func (c *Client) StatisticsByStatus(ctx context.Context) ([]StatusCount, error) {
	var resp []StatusCount
	err := c.do(ctx, http.MethodGet, "casos/estadisticas/estado", nil, &resp)
	return resp, err
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env errorEnvelope
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			if f, ok := env.Error.Details["field"].(string); ok {
				apiErr.Field = f
			}
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
