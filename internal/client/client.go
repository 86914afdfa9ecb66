// Package client talks to the payment API the way the checkout page does.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

const (
	DefaultAttempts = 4
	DefaultDelay    = 2500 * time.Millisecond

	MsgDelayed = "Verification timed out. Booking may be delayed or failed. Please check your profile/email later or contact support."
)

type Client struct {
	baseURL  string
	http     *http.Client
	logger   observability.Logger
	attempts int
	delay    time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithPolling overrides the attempt ceiling and the fixed delay between status checks.
func WithPolling(attempts int, delay time.Duration) Option {
	return func(cl *Client) {
		if attempts > 0 {
			cl.attempts = attempts
		}
		if delay >= 0 {
			cl.delay = delay
		}
	}
}

func New(baseURL string, logger observability.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateOrder opens a gateway order and returns the checkout credentials.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency string, notes domain.Notes) (*domain.OrderCredentials, error) {
	payload, err := json.Marshal(map[string]interface{}{"amount": amount, "currency": currency, "notes": notes})
	if err != nil {
		return nil, errors.Wrap(err, "encode order request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/payment/create-order", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		if e.Error != "" {
			return nil, errors.Newf("create order: %d %s: %s", resp.StatusCode, e.Message, e.Error)
		}
		return nil, errors.Newf("create order: %d %s", resp.StatusCode, e.Message)
	}
	var creds domain.OrderCredentials
	if err := json.Unmarshal(body, &creds); err != nil {
		return nil, errors.Wrap(err, "decode order credentials")
	}
	return &creds, nil
}

// BookingStatus performs one status check.
func (c *Client) BookingStatus(ctx context.Context, orderID, hint string) (*domain.StatusReport, error) {
	u := c.baseURL + "/api/payment/booking-status/" + url.PathEscape(orderID)
	if hint != "" {
		u += "?status=" + url.QueryEscape(hint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "booking status")
	}
	defer resp.Body.Close()

	var report domain.StatusReport
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&report); err != nil {
		return nil, errors.Wrapf(err, "decode booking status (http %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("booking status: http %d: %s", resp.StatusCode, report.Message)
	}
	return &report, nil
}

// WaitForBooking polls until the booking leaves PROCESSING, the attempt
// ceiling is reached, or ctx ends. The failure hint is only sent on the
// first check; later checks report what the server actually knows.
func (c *Client) WaitForBooking(ctx context.Context, orderID, hint string) (*domain.StatusReport, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		h := ""
		if attempt == 1 {
			h = hint
		}

		report, err := c.BookingStatus(ctx, orderID, h)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			c.logger.WithError(err).WithField("attempt", attempt).Warn("booking status check failed")
		case report.Status != domain.StateProcessing:
			return report, nil
		default:
			lastErr = nil
			c.logger.WithFields(map[string]interface{}{"attempt": attempt, "order_id": orderID}).Debug("booking still processing")
		}

		if attempt == c.attempts {
			break
		}
		t := time.NewTimer(c.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if lastErr != nil {
		return nil, errors.Wrapf(lastErr, "booking status unavailable after %d attempts", c.attempts)
	}
	return &domain.StatusReport{Status: domain.StateFailed, Message: MsgDelayed}, nil
}
