// Package mailer serves the endpoint that turns a booking record into a
// confirmation email.
package mailer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/auth"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
)

const maxBodyBytes = 64 << 10

type Sender interface {
	Send(ctx context.Context, from string, to []string, subject, html string) (string, error)
}

// Options configures the handler. Secret must match the ?secret= query
// parameter; Credential, when set, must match the bearer token.
type Options struct {
	Secret     string
	Credential string
	From       string
	LogoURL    string
}

type Handler struct {
	sender Sender
	opts   Options
	logger observability.Logger
	now    func() time.Time
}

func NewHandler(sender Sender, opts Options, logger observability.Logger) *Handler {
	return &Handler{sender: sender, opts: opts, logger: logger, now: time.Now}
}

type errorBody struct {
	Message string `json:"message"`
}

type sentBody struct {
	ID string `json:"id"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context(), h.logger)

	if !equal(r.URL.Query().Get("secret"), h.opts.Secret) {
		log.Warn("invalid webhook secret received")
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Invalid secret"})
		return
	}
	if h.opts.Credential != "" {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok || !equal(token, h.opts.Credential) {
			log.Warn("invalid bearer credential received")
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Invalid credential"})
			return
		}
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Message: "Method not allowed"})
		return
	}

	var body domain.BookingConfirmed
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Failed to parse body: " + err.Error()})
		return
	}
	if body.Record == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: `Missing "record" in request body`})
		return
	}
	record := body.Record
	email := strings.TrimSpace(record.CustomerEmail)
	if email == "" || email == "N/A" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Customer email is missing from the booking record."})
		return
	}

	log = log.WithFields(map[string]interface{}{"booking_id": record.ID, "order_id": record.RazorpayOrderID})

	id, err := h.send(r.Context(), email, record)
	if err != nil {
		log.WithError(err).Error("email sending failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Email sending failed: " + errors.UnwrapAll(err).Error()})
		return
	}

	log.WithField("email_id", id).Info("confirmation email sent")
	writeJSON(w, http.StatusOK, sentBody{ID: id})
}

func (h *Handler) send(ctx context.Context, email string, record *domain.Booking) (string, error) {
	html, err := RenderConfirmation(record, h.opts.LogoURL, h.now())
	if err != nil {
		return "", err
	}
	return h.sender.Send(ctx, h.opts.From, []string{email}, Subject(record), html)
}

func equal(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
