package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// MinimumAmountMinor is the gateway's smallest chargeable amount (₹1.00).
const MinimumAmountMinor = 100

// ToMinorUnits converts a major-unit amount to paise, rounding half away from zero.
func ToMinorUnits(amount float64) int64 {
	return minorUnits(amount).IntPart()
}

func minorUnits(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount).Shift(2).Round(0)
}

// FromMinorUnits is the inverse of ToMinorUnits, exact to two places.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Receipt builds the merchant reference attached to an order.
func Receipt(t NotesType, now time.Time) string {
	kind := string(t)
	if kind == "" {
		kind = "generic"
	}
	return fmt.Sprintf("receipt_%s_%d", kind, now.UnixMilli())
}

// ValidateOrderInput enforces the intake rules and returns the amount in minor units.
func ValidateOrderInput(in CreateOrderInput) (int64, error) {
	if in.Notes == nil {
		return 0, errors.Mark(errors.New("Amount (must be a number) and notes (must be an object) are required"), ErrInvalidInput)
	}

	if in.Notes.Type() == NotesTypeBooking {
		if in.Notes.String("event_title") == "" || in.Notes.String("customer_email") == "" || len(in.Notes.Seats()) == 0 {
			return 0, errors.Mark(errors.New("Missing required booking details in notes (event_title, customer_email, selected_seats)"), ErrInvalidInput)
		}
	}

	d := minorUnits(in.Amount)
	if !d.BigInt().IsInt64() {
		return 0, errors.Mark(errors.New("Amount is too large"), ErrInvalidInput)
	}
	minor := d.IntPart()
	if minor < MinimumAmountMinor {
		return 0, ErrAmountTooSmall
	}
	return minor, nil
}

// SeatConflicts returns the requested seats that already appear in booked.
func SeatConflicts(requested, booked []string) []string {
	taken := make(map[string]struct{}, len(booked))
	for _, s := range booked {
		taken[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	var conflicts []string
	for _, s := range requested {
		if _, ok := taken[strings.ToUpper(s)]; ok {
			conflicts = append(conflicts, s)
		}
	}
	return conflicts
}
