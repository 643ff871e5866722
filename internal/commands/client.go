// Package commands issues order mutations to the authoritative endpoint.
// The client guarantees nothing about delivery; callers reconcile against
// the feed once a response or later snapshot arrives.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"foodtruck-kds/internal/domain"
)

type Client struct {
	http    *http.Client
	baseURL string
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// TransitionRequest asks the server to move an order one step. The
// expected stamp enables optimistic-concurrency checking server-side;
// zero means "no expectation".
type TransitionRequest struct {
	OrderID             string        `json:"order_id"`
	Action              domain.Action `json:"action"`
	ExpectedUpdatedAtMs int64         `json:"expected_updated_at_ms,omitempty"`
}

// Transition issues a kitchen-status command. Failures decode into
// *ConflictError, *RefusedError, or a plain error.
func (c *Client) Transition(ctx context.Context, req TransitionRequest) error {
	path := fmt.Sprintf("/orders/%s/transition", req.OrderID)
	return c.doRequest(ctx, http.MethodPost, path, req.OrderID, req)
}

// MarkPaid flips the order's payment status. It is not a kitchen-status
// transition.
func (c *Client) MarkPaid(ctx context.Context, orderID, method string) error {
	path := fmt.Sprintf("/orders/%s/mark-paid", orderID)
	body := struct {
		OrderID string `json:"order_id"`
		Method  string `json:"method"`
	}{OrderID: orderID, Method: method}
	return c.doRequest(ctx, http.MethodPost, path, orderID, body)
}

// problem is the server's machine-readable failure shape.
type problem struct {
	Type          string `json:"type"`
	Detail        string `json:"detail"`
	CurrentStatus string `json:"current_status,omitempty"`
}

func (c *Client) doRequest(ctx context.Context, method, path, orderID string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Command-Id", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("command request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 400 {
		return nil
	}

	var p problem
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return fmt.Errorf("command failed: %s", resp.Status)
	}
	switch p.Type {
	case "conflict":
		return &ConflictError{OrderID: orderID}
	case "transition_refused":
		refused := &RefusedError{OrderID: orderID, Reason: p.Detail}
		if status, ok := domain.ParseKitchenStatus(p.CurrentStatus); ok {
			refused.CurrentStatus = status
		}
		return refused
	default:
		return fmt.Errorf("command failed: %s: %s", resp.Status, p.Detail)
	}
}
