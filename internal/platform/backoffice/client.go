// Package backoffice is the client for the remote REST API that owns buyers,
// transactions and SMS delivery.
package backoffice

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

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
	"github.com/odyssey-erp/buyer-ledger/internal/shared"
)

// RangeLayout is the local date-time layout the API expects for range queries.
const RangeLayout = "2006-01-02T15:04:05"

const maxErrorBody = 4 << 10

// APIError is returned for unexpected upstream statuses.
type APIError struct {
	Status  int
	Message string
}

// Unwrap classifies API errors as upstream failures.
func (e *APIError) Unwrap() error {
	return shared.ErrUpstream
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backoffice: status %d", e.Status)
	}
	return fmt.Sprintf("backoffice: status %d: %s", e.Status, e.Message)
}

// Client wraps calls to the backoffice API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Ping checks if the remote API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

// ListTransactions fetches a buyer's transactions created within rng.
func (c *Client) ListTransactions(ctx context.Context, sess *shared.Session, buyerID string, rng ledger.DateRange) ([]ledger.Transaction, error) {
	q := url.Values{}
	q.Set("start", rng.From.Format(RangeLayout))
	q.Set("end", rng.To.Format(RangeLayout))
	endpoint := fmt.Sprintf("%s/transactions/buyer/%s/range?%s", c.baseURL, url.PathEscape(buyerID), q.Encode())

	var txns []ledger.Transaction
	if err := c.do(ctx, sess, http.MethodGet, endpoint, nil, &txns); err != nil {
		return nil, fmt.Errorf("backoffice: list transactions for buyer %s: %w", buyerID, err)
	}
	return txns, nil
}

// GetBuyer loads a buyer account.
func (c *Client) GetBuyer(ctx context.Context, sess *shared.Session, buyerID string) (ledger.Buyer, error) {
	endpoint := fmt.Sprintf("%s/buyers/%s", c.baseURL, url.PathEscape(buyerID))
	var buyer ledger.Buyer
	if err := c.do(ctx, sess, http.MethodGet, endpoint, nil, &buyer); err != nil {
		return ledger.Buyer{}, fmt.Errorf("backoffice: get buyer %s: %w", buyerID, err)
	}
	if buyer.ID == "" {
		buyer.ID = buyerID
	}
	return buyer, nil
}

// SendInvoiceSMS submits an invoice summary to the notification endpoint.
func (c *Client) SendInvoiceSMS(ctx context.Context, sess *shared.Session, payload ledger.InvoicePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := c.do(ctx, sess, http.MethodPost, c.baseURL+"/notifications/sms/invoice", body, nil); err != nil {
		return fmt.Errorf("backoffice: send invoice sms to buyer %s: %w", payload.BuyerID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, sess *shared.Session, method, endpoint string, body []byte, dest any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := sess.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return shared.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrNotFound
	case resp.StatusCode >= 400:
		return &APIError{Status: resp.StatusCode, Message: readMessage(resp.Body)}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp.Body, dest)
}

// decodeBody accepts bare payloads as well as {"data": ...} envelopes.
func decodeBody(r io.Reader, dest any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
			if bytes.Equal(bytes.TrimSpace(envelope.Data), []byte("null")) {
				return nil
			}
			raw = envelope.Data
		}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: decode response: %w", shared.ErrUpstream, err)
	}
	return nil
}

func readMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
