package payments

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

type Service struct {
	store         BookingStore
	gateway       OrderGateway
	audit         AuditLog
	holds         SeatHolder
	holdTTL       time.Duration
	logger        observability.Logger
	keyID         string
	webhookSecret string
	currency      string
	now           func() time.Time
}

// NewService wires the payment flows. audit may be nil.
func NewService(cfg *config.Config, store BookingStore, gateway OrderGateway, audit AuditLog, logger observability.Logger) *Service {
	return &Service{
		store:         store,
		gateway:       gateway,
		audit:         audit,
		logger:        logger,
		keyID:         cfg.RazorpayKeyID,
		webhookSecret: cfg.RazorpayWebhookSecret,
		currency:      cfg.DefaultCurrency,
		holdTTL:       cfg.CheckoutHoldTTL,
		now:           time.Now,
	}
}

// WithSeatHolds enables checkout holds on top of the booked-seat check.
func (s *Service) WithSeatHolds(h SeatHolder) *Service {
	s.holds = h
	return s
}

func (s *Service) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.OrderCredentials, error) {
	log := observability.LoggerFromContext(ctx, s.logger)
	kind := in.Notes.Type()

	amountMinor, err := domain.ValidateOrderInput(in)
	if err != nil {
		log.WithError(err).WithField("notes_type", string(kind)).Warn("order intake rejected")
		observability.OrdersCreated.WithLabelValues(string(kind), "rejected").Inc()
		return nil, err
	}

	if kind == domain.NotesTypeBooking {
		if err := s.checkSeats(ctx, in.Notes); err != nil {
			observability.OrdersCreated.WithLabelValues(string(kind), "rejected").Inc()
			return nil, err
		}
	}

	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = s.currency
	}

	order, err := s.gateway.CreateOrder(ctx, amountMinor, currency, domain.Receipt(kind, s.now()), in.Notes)
	if err != nil {
		log.WithError(err).Error("error creating razorpay order")
		observability.OrdersCreated.WithLabelValues(string(kind), "gateway_error").Inc()
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"amount":   order.Amount,
		"receipt":  order.Receipt,
	}).Info("razorpay order created")
	observability.OrdersCreated.WithLabelValues(string(kind), "created").Inc()

	return &domain.OrderCredentials{
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
		KeyID:    s.keyID,
	}, nil
}

func (s *Service) checkSeats(ctx context.Context, notes domain.Notes) error {
	booked, err := s.store.BookedSeats(ctx, notes.String("event_title"))
	if err != nil {
		return errors.Wrap(err, "check seat availability")
	}
	if conflicts := domain.SeatConflicts(notes.Seats(), booked); len(conflicts) > 0 {
		return errors.Mark(errors.Newf("Selected seats are no longer available: %s", strings.Join(conflicts, ", ")), domain.ErrSeatsUnavailable)
	}

	if s.holds == nil {
		return nil
	}
	conflicts, err := s.holds.HoldSeats(ctx, notes.String("event_title"), notes.Seats(), strings.ToLower(notes.String("customer_email")), s.holdTTL)
	if err != nil {
		observability.LoggerFromContext(ctx, s.logger).WithError(err).Warn("seat hold unavailable, continuing without hold")
		return nil
	}
	if len(conflicts) > 0 {
		return errors.Mark(errors.Newf("Selected seats are being booked by someone else: %s", strings.Join(conflicts, ", ")), domain.ErrSeatsUnavailable)
	}
	return nil
}

func (s *Service) BookingStatus(ctx context.Context, orderID, hint string) (domain.StatusReport, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.StatusReport{}, errors.Mark(errors.New("Razorpay Order ID is required"), domain.ErrInvalidInput)
	}

	booking, err := s.store.GetBookingByOrderID(ctx, orderID)
	if errors.Is(err, domain.ErrNotFound) {
		booking, err = nil, nil
	}
	if err != nil {
		return domain.StatusReport{Status: domain.StateFailed, Message: domain.MsgLookupErr}, err
	}
	return domain.ResolveStatus(booking, hint), nil
}

func (s *Service) Tickets(ctx context.Context, email string) ([]domain.TicketSummary, error) {
	if email == "" {
		return nil, errors.Mark(errors.New("email is required"), domain.ErrInvalidInput)
	}
	return s.store.ListTicketsByEmail(ctx, email)
}

func (s *Service) BookedSeats(ctx context.Context, eventTitle string) ([]string, error) {
	if strings.TrimSpace(eventTitle) == "" {
		return nil, errors.Mark(errors.New("event_title is required"), domain.ErrInvalidInput)
	}
	seats, err := s.store.BookedSeats(ctx, eventTitle)
	if seats == nil {
		seats = []string{}
	}
	return seats, err
}
