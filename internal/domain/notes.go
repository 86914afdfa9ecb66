package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Notes is the free-form metadata attached to a gateway order.
type Notes map[string]any

// UnmarshalJSON accepts the gateway's habit of sending an empty notes object as [].
func (n *Notes) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || b[0] == '[' {
		*n = Notes{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*n = Notes(m)
	return nil
}

func (n Notes) Type() NotesType {
	return NotesType(n.String("type"))
}

// String returns the trimmed textual value for key, or "" when absent.
func (n Notes) String(key string) string {
	v, ok := n[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func (n Notes) StringOr(key, def string) string {
	if s := n.String(key); s != "" {
		return s
	}
	return def
}

// Seats normalizes selected_seats, which may arrive as "A1, A2" or as an array.
func (n Notes) Seats() []string {
	return NormalizeSeats(n["selected_seats"])
}

func NormalizeSeats(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	}

	seats := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			seats = append(seats, s)
		}
	}
	return seats
}

// SeatCount parses seat_count, falling back to fallback when it is missing, zero or not a number.
func (n Notes) SeatCount(fallback int) int {
	c, err := strconv.Atoi(n.String("seat_count"))
	if err != nil || c <= 0 {
		return fallback
	}
	return c
}
