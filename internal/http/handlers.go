package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/razorpay"
	"github.com/robertarktes/event-ticketing-payments/internal/auth"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/idempotency"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"github.com/robertarktes/event-ticketing-payments/internal/payments"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxWebhookBytes   = 1 << 20
	maxOrderBytes     = 64 << 10
)

type PaymentService interface {
	CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.OrderCredentials, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) (*payments.WebhookOutcome, error)
	BookingStatus(ctx context.Context, orderID, hint string) (domain.StatusReport, error)
	Tickets(ctx context.Context, email string) ([]domain.TicketSummary, error)
	BookedSeats(ctx context.Context, eventTitle string) ([]string, error)
}

type EventCatalog interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, status string) ([]domain.Event, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	payments PaymentService
	catalog  EventCatalog
	idemp    *idempotency.Idempotency
	db       Pinger
	logger   observability.Logger
}

// NewHandlers builds the API handlers. catalog and idemp may be nil.
func NewHandlers(svc PaymentService, catalog EventCatalog, idemp *idempotency.Idempotency, db Pinger, logger observability.Logger) *Handlers {
	return &Handlers{payments: svc, catalog: catalog, idemp: idemp, db: db, logger: logger}
}

type messageBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context(), h.logger)

	key := r.Header.Get(idempotencyHeader)
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		log.WithError(err).Warn("idempotency lookup failed")
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	in, ok := decodeOrderRequest(http.MaxBytesReader(w, r.Body, maxOrderBytes))
	if !ok {
		writeError(w, http.StatusBadRequest, "Amount (must be a number) and notes (must be an object) are required")
		return
	}

	creds, err := h.payments.CreateOrder(r.Context(), in)
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrAmountTooSmall):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, domain.ErrSeatsUnavailable):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrGateway):
		writeJSON(w, http.StatusInternalServerError, messageBody{
			Message: "Error creating Razorpay order",
			Error:   errors.UnwrapAll(err).Error(),
		})
		return
	case err != nil:
		log.WithError(err).Error("create order failed")
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: "Error creating Razorpay order", Error: "Unknown error"})
		return
	}

	data, err := json.Marshal(struct {
		Success bool `json:"success"`
		*domain.OrderCredentials
	}{true, creds})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating Razorpay order")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)

	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data}); err != nil {
		log.WithError(err).Warn("idempotency store failed")
	}
}

// decodeOrderRequest accepts only a numeric amount and an object of notes.
func decodeOrderRequest(body io.Reader) (domain.CreateOrderInput, bool) {
	var req struct {
		Amount   json.RawMessage `json:"amount"`
		Currency string          `json:"currency"`
		Notes    json.RawMessage `json:"notes"`
	}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return domain.CreateOrderInput{}, false
	}

	amount := bytes.TrimSpace(req.Amount)
	if len(amount) == 0 || amount[0] == '"' || bytes.Equal(amount, []byte("null")) {
		return domain.CreateOrderInput{}, false
	}
	var in domain.CreateOrderInput
	if err := json.Unmarshal(amount, &in.Amount); err != nil {
		return domain.CreateOrderInput{}, false
	}

	notes := bytes.TrimSpace(req.Notes)
	if len(notes) == 0 || notes[0] != '{' {
		return domain.CreateOrderInput{}, false
	}
	if err := json.Unmarshal(notes, &in.Notes); err != nil {
		return domain.CreateOrderInput{}, false
	}
	in.Currency = req.Currency
	return in, true
}

func (h *Handlers) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context(), h.logger)
	log.Info("webhook received")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		log.WithField("limit", tooLarge.Limit).Warn("webhook body too large")
		writeError(w, http.StatusRequestEntityTooLarge, "Webhook payload too large")
		return
	}
	if err != nil {
		log.WithError(err).Error("read webhook body")
		writeError(w, http.StatusInternalServerError, "Webhook signature verification failed")
		return
	}

	out, err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get(razorpay.SignatureHeader))
	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidSignature.Error())
		return
	case errors.Is(err, domain.ErrMalformedWebhook):
		writeError(w, http.StatusBadRequest, domain.ErrMalformedWebhook.Error())
		return
	case errors.Is(err, domain.ErrMissingCustomerEmail):
		writeError(w, http.StatusBadRequest, domain.ErrMissingCustomerEmail.Error())
		return
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	case err != nil:
		log.WithError(err).Error("webhook verification failed")
		writeError(w, http.StatusInternalServerError, "Webhook signature verification failed")
		return
	}

	msg := "Webhook received"
	switch out.Outcome {
	case payments.OutcomeEmptyNotes:
		msg = "Webhook received, but notes missing."
	case payments.OutcomeStoreError:
		msg = "Webhook received, DB error occurred."
	}
	writeJSON(w, http.StatusOK, messageBody{Success: true, Message: msg})
}

func (h *Handlers) BookingStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.payments.BookingStatus(r.Context(), chi.URLParam(r, "orderId"), r.URL.Query().Get("status"))
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Error("error checking booking status")
		writeJSON(w, http.StatusInternalServerError, report)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) MyTickets(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing access token")
		return
	}
	tickets, err := h.payments.Tickets(r.Context(), claims.Email)
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Error("list tickets failed")
		writeError(w, http.StatusInternalServerError, "Could not load your tickets.")
		return
	}
	if tickets == nil {
		tickets = []domain.TicketSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": tickets})
}

func (h *Handlers) BookedSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.payments.BookedSeats(r.Context(), r.URL.Query().Get("event_title"))
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Error("booked seats lookup failed")
		writeError(w, http.StatusInternalServerError, "Could not load booked seats.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": seats})
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.catalog.ListEvents(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Error("list events failed")
		writeError(w, http.StatusInternalServerError, "Could not load events.")
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": events})
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.catalog.GetEvent(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Event not found")
		return
	case err != nil:
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Error("get event failed")
		writeError(w, http.StatusInternalServerError, "Could not load event.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": ev})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).WithError(err).Warn("database not ready")
		http.Error(w, "Not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}
