package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CheckoutParams holds inputs for a hosted checkout session.
type CheckoutParams struct {
	PriceID       string `json:"price_id"`
	CustomerID    string `json:"customer_id,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
}

// CheckoutSession is the processor's hosted checkout redirect.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PortalParams holds inputs for a self-service portal session.
type PortalParams struct {
	CustomerID string `json:"customer_id"`
	ReturnURL  string `json:"return_url"`
}

// PortalSession is the processor's hosted portal redirect.
type PortalSession struct {
	URL string `json:"url"`
}

// Processor creates hosted sessions at the payment processor.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, params PortalParams) (*PortalSession, error)
}

// APIError reports a processor-side failure, distinct from domain errors so
// callers can decide whether to retry.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("payment processor unreachable: %s", e.Message)
	}
	return fmt.Sprintf("payment processor error (status %d): %s", e.StatusCode, e.Message)
}

// Client calls the payment processor's session API over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a processor client for the given base URL and API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	var session CheckoutSession
	if errPost := c.post(ctx, "/v1/checkout/sessions", params, &session); errPost != nil {
		return nil, errPost
	}
	return &session, nil
}

// CreatePortalSession creates a hosted self-service portal session.
func (c *Client) CreatePortalSession(ctx context.Context, params PortalParams) (*PortalSession, error) {
	var session PortalSession
	if errPost := c.post(ctx, "/v1/portal/sessions", params, &session); errPost != nil {
		return nil, errPost
	}
	return &session, nil
}

// post sends a JSON request and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		return fmt.Errorf("payment: marshal request: %w", errMarshal)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if errReq != nil {
		return fmt.Errorf("payment: build request: %w", errReq)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return &APIError{Message: errDo.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	data, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: errRead.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(data)}
	}

	if errUnmarshal := json.Unmarshal(data, out); errUnmarshal != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "malformed response body"}
	}
	return nil
}

// extractErrorMessage pulls a human-readable message from an error body.
func extractErrorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if errUnmarshal := json.Unmarshal(data, &body); errUnmarshal == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	if trimmed == "" {
		return "no error detail"
	}
	return trimmed
}
