package razorpay

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	rzp "github.com/razorpay/razorpay-go"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
)

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client creates gateway orders through the official SDK.
type Client struct {
	orders orderCreator
}

func NewClient(keyID, keySecret string) *Client {
	return &Client{orders: rzp.NewClient(keyID, keySecret).Order}
}

func newClientWith(orders orderCreator) *Client {
	return &Client{orders: orders}
}

func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes domain.Notes) (*domain.GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := c.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes":    map[string]any(notes),
	}, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "razorpay create order"), domain.ErrGateway)
	}

	// Round-trip through JSON so numeric and notes decoding match the webhook path.
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, "encode order response")
	}
	var order domain.GatewayOrder
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}
	if order.ID == "" {
		return nil, errors.Mark(errors.New("razorpay returned an order without id"), domain.ErrGateway)
	}
	return &order, nil
}
