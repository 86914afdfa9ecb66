package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrAmountTooSmall       = errors.New("Minimum amount is ₹1.00")
	ErrSeatsUnavailable     = errors.New("one or more selected seats are already booked")
	ErrInvalidSignature     = errors.New("Invalid request signature")
	ErrMalformedWebhook     = errors.New("Order or Payment entity missing")
	ErrMissingCustomerEmail = errors.New("Customer email missing in booking notes.")
	ErrDuplicateBooking     = errors.New("booking already exists for order")
	ErrGateway              = errors.New("payment gateway error")
)
