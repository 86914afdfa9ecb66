package payments

import (
	"context"
	"time"

	"github.com/robertarktes/event-ticketing-payments/internal/domain"
)

type BookingStore interface {
	ConfirmBooking(ctx context.Context, b *domain.Booking) error
	GetBookingByOrderID(ctx context.Context, orderID string) (*domain.Booking, error)
	BookedSeats(ctx context.Context, eventTitle string) ([]string, error)
	ListTicketsByEmail(ctx context.Context, email string) ([]domain.TicketSummary, error)
}

type OrderGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes domain.Notes) (*domain.GatewayOrder, error)
}

// AuditLog records webhook outcomes. Failures never affect the caller.
type AuditLog interface {
	LogEvent(ctx context.Context, action, subject string, data map[string]interface{}) error
}

// SeatHolder keeps seats reserved for one customer while they pay.
type SeatHolder interface {
	HoldSeats(ctx context.Context, eventTitle string, seats []string, owner string, ttl time.Duration) ([]string, error)
}
