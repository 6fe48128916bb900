package payment

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

// ErrProcessorUnavailable covers every failure to obtain a checkout session
// from the processor: network errors, non-2xx responses, malformed replies.
// The caller surfaces it as a 500 and never retries.
var ErrProcessorUnavailable = errors.New("payment processor unavailable")

// LineItem is a processor-facing order line. UnitAmount is in minor units
// (fils for AED, cents for USD).
type LineItem struct {
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

type SessionRequest struct {
	Currency   string            `json:"currency"`
	LineItems  []LineItem        `json:"line_items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Session is a hosted-checkout session: the customer is redirected to URL and
// pays outside this system's trust boundary.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type sessionResponse struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
}

func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

// CreateSession asks the processor for a hosted checkout session and returns
// its id and redirect URL.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProcessorUnavailable, err)
	}

	var sr sessionResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("%w: parse response (%d): %v", ErrProcessorUnavailable, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if sr.Error != nil {
			msg = sr.Error.Message
		}
		return nil, fmt.Errorf("%w: processor returned %d: %s", ErrProcessorUnavailable, resp.StatusCode, msg)
	}
	if sr.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessorUnavailable, sr.Error.Message)
	}
	if sr.URL == "" {
		return nil, fmt.Errorf("%w: empty redirect URL", ErrProcessorUnavailable)
	}

	return &Session{ID: sr.ID, URL: sr.URL}, nil
}
