// Package mailfn calls the hosted function that emails booking confirmations.
package mailfn

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
)

// StatusError carries a non-2xx reply from the function.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "email function returned " + http.StatusText(e.Code) + ": " + e.Body
}

// Retryable reports whether a later attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

type Client struct {
	endpoint   string
	secret     string
	credential string
	http       *http.Client
}

func NewClient(endpoint, secret, credential string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, secret: secret, credential: credential, http: httpClient}
}

func (c *Client) SendBookingEmail(ctx context.Context, record *domain.Booking) error {
	body, err := json.Marshal(domain.BookingConfirmed{Record: record})
	if err != nil {
		return errors.Wrap(err, "encode booking record")
	}
	return c.Send(ctx, body)
}

// Send posts an already encoded {record: ...} payload.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return errors.Wrap(err, "parse function url")
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "call email function")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
