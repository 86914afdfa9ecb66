package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

//go:embed schema.sql
var schema string

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return errors.Wrap(err, "apply schema")
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(start).Seconds()) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}

	return mapPgError(tx.Commit(ctx))
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SerializationFailureCode:
			return domain.ErrSerializationFailure
		case UniqueViolationCode:
			return errors.Wrapf(domain.ErrDuplicateBooking, "constraint %s", pgErr.ConstraintName)
		}
	}
	return err
}

func (r *Repository) InsertBooking(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings (
			event_title, event_date, event_time, selected_seats, seat_count,
			customer_name, customer_email, customer_phone, total_amount,
			razorpay_payment_id, razorpay_order_id, is_ticket_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, b.EventTitle, b.EventDate, b.EventTime, b.SelectedSeats, b.SeatCount,
		b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.TotalAmount,
		b.RazorpayPaymentID, b.RazorpayOrderID, b.IsTicketActive,
	).Scan(&b.ID, &b.CreatedAt)
	return mapPgError(err)
}

// ConfirmBooking inserts b and its booking.confirmed outbox row atomically.
// A second call for the same order yields domain.ErrDuplicateBooking and writes nothing.
func (r *Repository) ConfirmBooking(ctx context.Context, b *domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.InsertBooking(ctx, tx, b); err != nil {
			return err
		}
		payload, err := json.Marshal(domain.BookingConfirmed{Record: b})
		if err != nil {
			return errors.Wrap(err, "marshal outbox payload")
		}
		return r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   b.RazorpayOrderID,
			EventType:     domain.EventBookingConfirmed,
			Payload:       payload,
			DedupeKey:     domain.EventBookingConfirmed + ":" + b.RazorpayOrderID,
		})
	})
}

const bookingColumns = `
	id, event_title, event_date, event_time, selected_seats, seat_count,
	customer_name, customer_email, customer_phone, total_amount,
	razorpay_payment_id, razorpay_order_id, is_ticket_active, created_at`

func (r *Repository) GetBookingByOrderID(ctx context.Context, orderID string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE razorpay_order_id = $1`, orderID).Scan(
		&b.ID, &b.EventTitle, &b.EventDate, &b.EventTime, &b.SelectedSeats, &b.SeatCount,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.TotalAmount,
		&b.RazorpayPaymentID, &b.RazorpayOrderID, &b.IsTicketActive, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get booking %s", orderID)
	}
	return &b, nil
}

// BookedSeats lists every seat held by an active booking for the event.
func (r *Repository) BookedSeats(ctx context.Context, eventTitle string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT seat
		FROM bookings, unnest(selected_seats) AS seat
		WHERE event_title = $1 AND is_ticket_active
		ORDER BY seat
	`, eventTitle)
	if err != nil {
		return nil, errors.Wrap(err, "query booked seats")
	}
	seats, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan booked seats")
	}
	return seats, nil
}

func (r *Repository) ListTicketsByEmail(ctx context.Context, email string) ([]domain.TicketSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_title, event_date, event_time, selected_seats, is_ticket_active, created_at
		FROM bookings WHERE customer_email = $1
		ORDER BY created_at DESC
	`, email)
	if err != nil {
		return nil, errors.Wrap(err, "query tickets")
	}
	defer rows.Close()

	tickets := []domain.TicketSummary{}
	for rows.Next() {
		var t domain.TicketSummary
		if err := rows.Scan(&t.EventTitle, &t.EventDate, &t.EventTime, &t.SelectedSeats, &t.IsTicketActive, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}
