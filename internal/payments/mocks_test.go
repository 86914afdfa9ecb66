package payments

import (
	"context"
	"time"

	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) ConfirmBooking(ctx context.Context, b *domain.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockStore) GetBookingByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	args := m.Called(ctx, orderID)
	b, _ := args.Get(0).(*domain.Booking)
	return b, args.Error(1)
}

func (m *mockStore) BookedSeats(ctx context.Context, eventTitle string) ([]string, error) {
	args := m.Called(ctx, eventTitle)
	seats, _ := args.Get(0).([]string)
	return seats, args.Error(1)
}

func (m *mockStore) ListTicketsByEmail(ctx context.Context, email string) ([]domain.TicketSummary, error) {
	args := m.Called(ctx, email)
	t, _ := args.Get(0).([]domain.TicketSummary)
	return t, args.Error(1)
}

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes domain.Notes) (*domain.GatewayOrder, error) {
	args := m.Called(ctx, amountMinor, currency, receipt, notes)
	o, _ := args.Get(0).(*domain.GatewayOrder)
	return o, args.Error(1)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) LogEvent(ctx context.Context, action, subject string, data map[string]interface{}) error {
	return m.Called(ctx, action, subject, data).Error(0)
}

type mockHolds struct{ mock.Mock }

func (m *mockHolds) HoldSeats(ctx context.Context, eventTitle string, seats []string, owner string, ttl time.Duration) ([]string, error) {
	args := m.Called(ctx, eventTitle, seats, owner, ttl)
	c, _ := args.Get(0).([]string)
	return c, args.Error(1)
}
