package domain

type BookingState string

const (
	StateSuccess    BookingState = "SUCCESS"
	StateFailed     BookingState = "FAILED"
	StateProcessing BookingState = "PROCESSING"
)

const FailureHint = "failed"

const (
	MsgConfirmed  = "Booking confirmed successfully."
	MsgInactive   = "Payment received, but booking confirmation is pending or failed. Please contact support."
	MsgFailed     = "Payment failed or was cancelled."
	MsgProcessing = "Payment received. Finalizing booking details..."
	MsgLookupErr  = "An error occurred while checking booking status."
)

type StatusData struct {
	TransactionID string   `json:"transactionId"`
	Amount        int64    `json:"amount"`
	EventTitle    string   `json:"event_title"`
	SelectedSeats []string `json:"selected_seats"`
	CustomerName  string   `json:"customer_name"`
}

type StatusReport struct {
	Success bool         `json:"success"`
	Status  BookingState `json:"status"`
	Message string       `json:"message"`
	Data    *StatusData  `json:"data"`
}

// ResolveStatus maps a booking lookup result (nil when absent) and the
// client's hint to the state shown on the payment status page.
func ResolveStatus(b *Booking, hint string) StatusReport {
	switch {
	case b != nil && b.IsTicketActive:
		return StatusReport{
			Success: true,
			Status:  StateSuccess,
			Message: MsgConfirmed,
			Data: &StatusData{
				TransactionID: b.RazorpayPaymentID,
				Amount:        b.TotalAmount.Shift(2).Round(0).IntPart(),
				EventTitle:    b.EventTitle,
				SelectedSeats: b.SelectedSeats,
				CustomerName:  b.CustomerName,
			},
		}
	case b != nil:
		return StatusReport{Status: StateFailed, Message: MsgInactive}
	case hint == FailureHint:
		return StatusReport{Status: StateFailed, Message: MsgFailed}
	default:
		return StatusReport{Status: StateProcessing, Message: MsgProcessing}
	}
}
