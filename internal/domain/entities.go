package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type NotesType string

const (
	NotesTypeBooking  NotesType = "booking"
	NotesTypeDonation NotesType = "donation"
)

// Booking is one confirmed ticket purchase. At most one exists per RazorpayOrderID.
type Booking struct {
	ID                int64           `json:"id"`
	EventTitle        string          `json:"event_title"`
	EventDate         string          `json:"event_date"`
	EventTime         string          `json:"event_time"`
	SelectedSeats     []string        `json:"selected_seats"`
	SeatCount         int             `json:"seat_count"`
	CustomerName      string          `json:"customer_name"`
	CustomerEmail     string          `json:"customer_email"`
	CustomerPhone     *string         `json:"customer_phone"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	RazorpayPaymentID string          `json:"razorpay_payment_id"`
	RazorpayOrderID   string          `json:"razorpay_order_id"`
	IsTicketActive    bool            `json:"is_ticket_active"`
	CreatedAt         time.Time       `json:"created_at"`
}

// TicketSummary is the projection shown on a customer's "my tickets" page.
type TicketSummary struct {
	EventTitle     string    `json:"event_title"`
	EventDate      string    `json:"event_date"`
	EventTime      string    `json:"event_time"`
	SelectedSeats  []string  `json:"selected_seats"`
	IsTicketActive bool      `json:"is_ticket_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// GatewayOrder mirrors the order entity the gateway holds. Amount is in minor units.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
	Notes    Notes  `json:"notes"`
}

type CreateOrderInput struct {
	Amount   float64
	Currency string
	Notes    Notes
}

// OrderCredentials is what the browser needs to open the checkout widget.
type OrderCredentials struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// Event is a catalog entry shown on the public site.
type Event struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Date             string   `json:"date"`
	Time             string   `json:"time"`
	Location         string   `json:"location"`
	Description      string   `json:"description"`
	ImageURL         string   `json:"image_url"`
	Status           string   `json:"status"`
	TicketsAvailable int      `json:"tickets_available"`
	GalleryImages    []string `json:"gallery_images"`
}
