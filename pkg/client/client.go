// Package client provides the CampusFound Go SDK for reporting items,
// searching matches, and running the claim flow against a portal instance.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrCodeMismatch is returned by VerifyClaim when the submitted code does not
// match the issued one. The challenge stays valid; the caller may retry.
var ErrCodeMismatch = errors.New("claim code does not match")

// ErrCodeExpired is returned by VerifyClaim when the claim window has passed.
// A new challenge must be requested.
var ErrCodeExpired = errors.New("claim code expired")

// Item is a posting as returned by the portal API.
type Item struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	ImageLabels []string  `json:"image_labels"`
	IsApproved  bool      `json:"is_approved"`
	CreatedAt   time.Time `json:"created_at"`
}

// Match pairs a candidate item with its similarity score.
type Match struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// ReportItemRequest is the payload for ReportItem.
type ReportItemRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Client is the CampusFound SDK entry point.
type Client struct {
	portalBase  string
	httpClient  *http.Client
	bearerToken string
	adminSecret string
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBearerToken attaches an identity-provider token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) { c.bearerToken = token }
}

// WithAdminSecret attaches the operator secret used by moderation endpoints.
func WithAdminSecret(secret string) Option {
	return func(c *Client) { c.adminSecret = secret }
}

// New creates a Client connected to portalBase.
func New(portalBase string, opts ...Option) *Client {
	c := &Client{
		portalBase: portalBase,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ReportItem posts a new lost or found report.
func (c *Client) ReportItem(ctx context.Context, req ReportItemRequest) (*Item, error) {
	var item Item
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/items", req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItem fetches a single posting.
func (c *Client) GetItem(ctx context.Context, id string) (*Item, error) {
	var item Item
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/items/"+id, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems fetches the public listing, optionally filtered by type
// ("lost" or "found"; empty for both).
func (c *Client) ListItems(ctx context.Context, itemType string) ([]Item, error) {
	path := "/api/v1/items"
	if itemType != "" {
		path += "?type=" + itemType
	}
	var out struct {
		Items []Item `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Matches fetches candidate matches for a posting, best first.
func (c *Client) Matches(ctx context.Context, id string) ([]Match, error) {
	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/items/"+id+"/matches", nil, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// Claim requests a one-time claim code for the item. The code is emailed to
// the authenticated user.
func (c *Client) Claim(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/items/"+id+"/claim", nil, nil)
}

// VerifyClaim submits the emailed code. On success the item belongs to the
// authenticated user. Mismatched and expired codes map to ErrCodeMismatch
// and ErrCodeExpired.
func (c *Client) VerifyClaim(ctx context.Context, id, code string) error {
	payload := map[string]string{"code": code}
	status, body, err := c.doStatusBody(ctx, http.MethodPost, "/api/v1/items/"+id+"/claim/verify", payload)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnprocessableEntity:
		return ErrCodeMismatch
	case http.StatusGone:
		return ErrCodeExpired
	default:
		return apiError(status, body)
	}
}

// ApproveItem accepts a pending posting (moderation).
func (c *Client) ApproveItem(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/admin/items/"+id+"/approve", nil, nil)
}

// RejectItem removes a pending posting (moderation).
func (c *Client) RejectItem(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/admin/items/"+id+"/reject", nil, nil)
}

// ModerationQueue lists postings awaiting approval (moderation).
func (c *Client) ModerationQueue(ctx context.Context) ([]Item, error) {
	var out struct {
		Items []Item `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/admin/items", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// doJSON performs a request and decodes a 2xx response into out (out may be nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	status, body, err := c.doStatusBody(ctx, method, path, in)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return apiError(status, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// doStatusBody performs a request and returns the status code and body.
func (c *Client) doStatusBody(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.portalBase+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	if c.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", c.adminSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// apiError extracts the portal's error message from a non-2xx body.
func apiError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("portal error %d: %s", status, e.Error)
	}
	return fmt.Errorf("portal error %d", status)
}
