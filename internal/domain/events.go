package domain

const EventBookingConfirmed = "booking.confirmed"

// BookingConfirmed is the payload handed to the notification function.
type BookingConfirmed struct {
	Record *Booking `json:"record"`
}
