package domain

const placeholder = "N/A"

// NewBookingFromOrder builds the row for a paid booking order. Text fields
// missing from the notes become "N/A"; the email is mandatory.
func NewBookingFromOrder(order GatewayOrder, paymentID string) (Booking, error) {
	notes := order.Notes
	email := notes.String("customer_email")
	if email == "" || email == placeholder {
		return Booking{}, ErrMissingCustomerEmail
	}

	seats := notes.Seats()

	var phone *string
	if p := notes.String("customer_phone"); p != "" {
		phone = &p
	}

	return Booking{
		EventTitle:        notes.StringOr("event_title", placeholder),
		EventDate:         notes.StringOr("event_date", placeholder),
		EventTime:         notes.StringOr("event_time", placeholder),
		SelectedSeats:     seats,
		SeatCount:         notes.SeatCount(len(seats)),
		CustomerName:      notes.StringOr("customer_name", placeholder),
		CustomerEmail:     email,
		CustomerPhone:     phone,
		TotalAmount:       FromMinorUnits(order.Amount),
		RazorpayPaymentID: paymentID,
		RazorpayOrderID:   order.ID,
		IsTicketActive:    true,
	}, nil
}
