package payments

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/razorpay"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

type Outcome string

const (
	OutcomeBooked     Outcome = "booked"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeEmptyNotes Outcome = "empty_notes"
	OutcomeDonation   Outcome = "donation"
	OutcomeUnknown    Outcome = "unknown_type"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeStoreError Outcome = "store_error"
)

type WebhookOutcome struct {
	Event     string
	OrderID   string
	PaymentID string
	Outcome   Outcome
	BookingID int64
}

// HandleWebhook authenticates and reconciles one gateway delivery. A nil
// error means the delivery must be acknowledged with 200, even when the
// booking could not be stored.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookOutcome, error) {
	log := observability.LoggerFromContext(ctx, s.logger)

	if err := razorpay.VerifySignature(s.webhookSecret, body, signature); err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			log.Warn("webhook signature mismatch")
			observability.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		}
		return nil, err
	}

	ev, err := razorpay.ParseWebhook(body)
	if err != nil {
		return nil, err
	}

	out := &WebhookOutcome{Event: ev.Event, Outcome: OutcomeIgnored}
	if ev.Event != razorpay.EventOrderPaid {
		log.WithField("event", ev.Event).Info("webhook received unhandled event")
		return s.finish(ctx, out), nil
	}

	order, payment, err := ev.Entities()
	if err != nil {
		log.Error("order or payment entity missing in order.paid event")
		observability.WebhookEvents.WithLabelValues(ev.Event, "malformed").Inc()
		return nil, err
	}
	out.OrderID, out.PaymentID = order.ID, payment.ID
	log = log.WithFields(map[string]interface{}{"order_id": order.ID, "payment_id": payment.ID})

	if len(order.Notes) == 0 {
		log.Warn("notes are empty, cannot process order")
		out.Outcome = OutcomeEmptyNotes
		return s.finish(ctx, out), nil
	}

	switch order.Notes.Type() {
	case domain.NotesTypeBooking:
		if err := s.recordBooking(ctx, log, *order, payment.ID, out); err != nil {
			observability.WebhookEvents.WithLabelValues(ev.Event, "rejected").Inc()
			return nil, err
		}
	case domain.NotesTypeDonation:
		log.Info("donation payment acknowledged")
		out.Outcome = OutcomeDonation
	default:
		log.WithField("notes_type", string(order.Notes.Type())).Warn("order.paid for unknown notes type")
		out.Outcome = OutcomeUnknown
	}

	return s.finish(ctx, out), nil
}

func (s *Service) recordBooking(ctx context.Context, log observability.Logger, order domain.GatewayOrder, paymentID string, out *WebhookOutcome) error {
	booking, err := domain.NewBookingFromOrder(order, paymentID)
	if err != nil {
		log.WithError(err).Error("cannot save booking")
		return err
	}

	err = s.store.ConfirmBooking(ctx, &booking)
	switch {
	case errors.Is(err, domain.ErrDuplicateBooking):
		log.Warn("duplicate booking detected, skipping insertion")
		out.Outcome = OutcomeDuplicate
	case err != nil:
		log.WithError(err).Error("failed to save booking")
		out.Outcome = OutcomeStoreError
	default:
		log.WithField("booking_id", booking.ID).Info("booking saved")
		out.Outcome = OutcomeBooked
		out.BookingID = booking.ID
	}
	return nil
}

func (s *Service) finish(ctx context.Context, out *WebhookOutcome) *WebhookOutcome {
	observability.WebhookEvents.WithLabelValues(out.Event, string(out.Outcome)).Inc()

	if s.audit != nil {
		err := s.audit.LogEvent(ctx, "webhook."+string(out.Outcome), out.OrderID, map[string]interface{}{
			"event":      out.Event,
			"payment_id": out.PaymentID,
			"booking_id": out.BookingID,
		})
		if err != nil {
			observability.LoggerFromContext(ctx, s.logger).WithError(err).Warn("audit log write failed")
		}
	}
	return out
}
