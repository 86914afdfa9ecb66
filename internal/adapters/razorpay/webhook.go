package razorpay

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
)

const EventOrderPaid = "order.paid"

type PaymentEntity struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
	Email   string `json:"email"`
}

type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Order *struct {
			Entity *domain.GatewayOrder `json:"entity"`
		} `json:"order"`
		Payment *struct {
			Entity *PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode webhook"), domain.ErrInvalidInput)
	}
	return &ev, nil
}

// Entities returns the order and payment carried by an order.paid event.
func (e *WebhookEvent) Entities() (*domain.GatewayOrder, *PaymentEntity, error) {
	if e.Payload.Order == nil || e.Payload.Order.Entity == nil ||
		e.Payload.Payment == nil || e.Payload.Payment.Entity == nil {
		return nil, nil, domain.ErrMalformedWebhook
	}
	return e.Payload.Order.Entity, e.Payload.Payment.Entity, nil
}
