// Package telegram is a thin client for the Telegram Bot API: invoices,
// pre-checkout answers, Stars refunds and message sending.
//
// API-level failures ({"ok":false}) surface as *UpstreamError carrying the
// provider's description; transport failures are returned wrapped. Refunds
// are never retried here — re-issuing a refund call on an ambiguous failure
// could double-refund, so retry policy belongs to the caller, keyed by the
// provider charge id.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	httpTimeout    = 15 * time.Second

	// SendDelay is the fixed pause between consecutive outbound messages in
	// bulk loops, to stay under the Bot API throughput limit.
	SendDelay = 120 * time.Millisecond
)

// UpstreamError is a Bot API call the provider rejected ({"ok":false}).
type UpstreamError struct {
	Method      string
	Description string
}

func (e *UpstreamError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram %s failed", e.Method)
	}
	return fmt.Sprintf("telegram %s failed: %s", e.Method, e.Description)
}

// Client talks to the Bot API with a shared HTTP client.
type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

// New constructs a Client against the production Bot API.
func New(token string) *Client {
	return NewWithBaseURL(token, defaultBaseURL)
}

// NewWithBaseURL constructs a Client against a custom API host (tests).
func NewWithBaseURL(token, baseURL string) *Client {
	return &Client{
		token:   token,
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%s marshal: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s http POST: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return fmt.Errorf("%s decode: %w", method, err)
	}
	if !api.OK {
		return &UpstreamError{Method: method, Description: api.Description}
	}
	if result != nil {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("%s unmarshal result: %w", method, err)
		}
	}
	return nil
}

// CreateInvoiceLink returns a payment link for the given invoice.
// Creating a link collects no money, so one bounded retry on failure is safe.
func (c *Client) CreateInvoiceLink(ctx context.Context, inv Invoice) (string, error) {
	var link string
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = c.call(ctx, "createInvoiceLink", inv, &link); err == nil {
			return link, nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return "", err
}

// AnswerPreCheckoutQuery approves or declines a pending checkout.
func (c *Client) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool) error {
	params := map[string]any{
		"pre_checkout_query_id": queryID,
		"ok":                    ok,
	}
	return c.call(ctx, "answerPreCheckoutQuery", params, nil)
}

// RefundStarPayment returns a Stars payment to the user. Never retried: the
// charge id is the idempotency key and the caller decides whether to re-issue.
func (c *Client) RefundStarPayment(ctx context.Context, userID int64, chargeID string) error {
	params := map[string]any{
		"user_id":                    userID,
		"telegram_payment_charge_id": chargeID,
	}
	return c.call(ctx, "refundStarPayment", params, nil)
}

// SendMessage delivers one message to a user or channel.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	return c.call(ctx, "sendMessage", msg, nil)
}
