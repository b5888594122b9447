// Package client is the HTTP/JSON client for the tally API.
package client

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

	"github.com/alfredjeanlab/tally/internal/model"
)

// HTTPClient talks to a tallyd server over its HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Facts ---

// AppendFactRequest is the payload for AppendFact.
type AppendFactRequest struct {
	OccurredAt  time.Time `json:"occurred_at"`
	CustomerID  string    `json:"customer_id"`
	ItemID      string    `json:"item_id"`
	Quantity    int64     `json:"quantity"`
	AmountCents int64     `json:"amount_cents"`
	Actor       string    `json:"actor,omitempty"`
}

func (c *HTTPClient) AppendFact(ctx context.Context, req *AppendFactRequest) (*model.FactEvent, error) {
	var fact model.FactEvent
	if err := c.doJSON(ctx, http.MethodPost, "/v1/facts", req, &fact); err != nil {
		return nil, err
	}
	return &fact, nil
}

// ListFactsResponse wraps the fact listing.
type ListFactsResponse struct {
	Facts []*model.FactEvent `json:"facts"`
	Total int                `json:"total"`
}

func (c *HTTPClient) ListFacts(ctx context.Context, from, to time.Time, limit int) (*ListFactsResponse, error) {
	q := url.Values{}
	if !from.IsZero() {
		q.Set("from", from.Format(time.RFC3339))
	}
	if !to.IsZero() {
		q.Set("to", to.Format(time.RFC3339))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/v1/facts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListFactsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Rollups ---

func (c *HTTPClient) DailyRollup(ctx context.Context, date string) (*model.RollupRow, error) {
	var row model.RollupRow
	if err := c.doJSON(ctx, http.MethodGet, "/v1/rollups/daily/"+url.PathEscape(date), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// DailyRangeResponse wraps a range of daily rollups.
type DailyRangeResponse struct {
	Rollups []*model.RollupRow `json:"rollups"`
	Total   int                `json:"total"`
}

func (c *HTTPClient) DailyRange(ctx context.Context, from, to string, limit int) (*DailyRangeResponse, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}

	var resp DailyRangeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/rollups/daily?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ItemRollup(ctx context.Context, id string) (*model.RollupRow, error) {
	var row model.RollupRow
	if err := c.doJSON(ctx, http.MethodGet, "/v1/rollups/items/"+url.PathEscape(id), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *HTTPClient) CustomerRollup(ctx context.Context, id string) (*model.RollupRow, error) {
	var row model.RollupRow
	if err := c.doJSON(ctx, http.MethodGet, "/v1/rollups/customers/"+url.PathEscape(id), nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// ResetRollup deletes one rollup row. The next matching fact rebuilds the
// row from zero.
func (c *HTTPClient) ResetRollup(ctx context.Context, family, key string) error {
	return c.doJSON(ctx, http.MethodDelete,
		"/v1/rollups/"+url.PathEscape(family)+"/"+url.PathEscape(key), nil, nil)
}

// --- Dimensions ---

// CreateItemRequest is the payload for CreateItem.
type CreateItemRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func (c *HTTPClient) CreateItem(ctx context.Context, req *CreateItemRequest) (*model.Item, error) {
	var item model.Item
	if err := c.doJSON(ctx, http.MethodPost, "/v1/items", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	if err := c.doJSON(ctx, http.MethodGet, "/v1/items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateCustomerRequest is the payload for CreateCustomer.
type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

func (c *HTTPClient) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*model.Customer, error) {
	var customer model.Customer
	if err := c.doJSON(ctx, http.MethodPost, "/v1/customers", req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (c *HTTPClient) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var customer model.Customer
	if err := c.doJSON(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(id), nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// UpdateCustomerRequest carries the fields to patch; nil fields are left as is.
type UpdateCustomerRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

func (c *HTTPClient) UpdateCustomer(ctx context.Context, id string, req *UpdateCustomerRequest) (*model.Customer, error) {
	var customer model.Customer
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/customers/"+url.PathEscape(id), req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// LookupResponse carries a lookup hit and which path answered it.
type LookupResponse struct {
	Customer *model.Customer `json:"customer"`
	Path     string          `json:"path"`
}

// LookupCustomer finds a customer by email or phone (exactly one must be
// set). forceFast requires the digest path.
func (c *HTTPClient) LookupCustomer(ctx context.Context, email, phone string, forceFast bool) (*LookupResponse, error) {
	q := url.Values{}
	if email != "" {
		q.Set("email", email)
	}
	if phone != "" {
		q.Set("phone", phone)
	}
	if forceFast {
		q.Set("force", "fast")
	}

	var resp LookupResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/customers/lookup?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Audit and partitions ---

// ListAuditResponse wraps the audit listing.
type ListAuditResponse struct {
	Entries []*model.AuditEntry `json:"entries"`
	Total   int                 `json:"total"`
}

func (c *HTTPClient) ListAudit(ctx context.Context, subject string, limit int) (*ListAuditResponse, error) {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/v1/audit"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListAuditResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPartitionsResponse wraps the partition listing.
type ListPartitionsResponse struct {
	Partitions []*model.Partition `json:"partitions"`
	Total      int                `json:"total"`
}

func (c *HTTPClient) ListPartitions(ctx context.Context) (*ListPartitionsResponse, error) {
	var resp ListPartitionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/partitions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnsurePartitionsResponse wraps the partitions created by an ensure call.
type EnsurePartitionsResponse struct {
	Created []*model.Partition `json:"created"`
	Total   int                `json:"total"`
}

func (c *HTTPClient) EnsurePartitions(ctx context.Context) (*EnsurePartitionsResponse, error) {
	var resp EnsurePartitionsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/partitions/ensure", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks server liveness.
func (c *HTTPClient) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/v1/health", nil, nil)
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content — success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
