package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/razorpay"
	redisadapter "github.com/robertarktes/event-ticketing-payments/internal/adapters/redis"
	"github.com/robertarktes/event-ticketing-payments/internal/auth"
	"github.com/robertarktes/event-ticketing-payments/internal/config"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/robertarktes/event-ticketing-payments/internal/idempotency"
	"github.com/robertarktes/event-ticketing-payments/internal/observability"
	"github.com/robertarktes/event-ticketing-payments/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.OrderCredentials, error) {
	args := m.Called(ctx, in)
	creds, _ := args.Get(0).(*domain.OrderCredentials)
	return creds, args.Error(1)
}

func (m *mockPayments) HandleWebhook(ctx context.Context, body []byte, signature string) (*payments.WebhookOutcome, error) {
	args := m.Called(ctx, body, signature)
	out, _ := args.Get(0).(*payments.WebhookOutcome)
	return out, args.Error(1)
}

func (m *mockPayments) BookingStatus(ctx context.Context, orderID, hint string) (domain.StatusReport, error) {
	args := m.Called(ctx, orderID, hint)
	return args.Get(0).(domain.StatusReport), args.Error(1)
}

func (m *mockPayments) Tickets(ctx context.Context, email string) ([]domain.TicketSummary, error) {
	args := m.Called(ctx, email)
	tickets, _ := args.Get(0).([]domain.TicketSummary)
	return tickets, args.Error(1)
}

func (m *mockPayments) BookedSeats(ctx context.Context, eventTitle string) ([]string, error) {
	args := m.Called(ctx, eventTitle)
	seats, _ := args.Get(0).([]string)
	return seats, args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type memIdemp struct {
	mu sync.Mutex
	m  map[string]redisadapter.StoredResponse
}

func (s *memIdemp) Get(_ context.Context, key string) (*redisadapter.StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memIdemp) Set(_ context.Context, key string, resp redisadapter.StoredResponse, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = resp
	return nil
}

const jwtSecret = "jwt-test-secret"

func testConfig() *config.Config {
	return &config.Config{CORSAllowedOrigins: []string{"https://tedxamity.com"}, RateLimitPerMinute: 60}
}

func newTestRouter(svc PaymentService, catalog EventCatalog, idemp *idempotency.Idempotency) http.Handler {
	logger := observability.NewTestLogger(io.Discard)
	h := NewHandlers(svc, catalog, idemp, pinger{}, logger)
	return SetupRouter(testConfig(), h, logger, nil, auth.NewVerifier(jwtSecret))
}

func serve(h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) messageBody {
	t.Helper()
	var body messageBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const bookingOrder = `{"amount":499,"notes":{"type":"booking","event_title":"TEDxAUC","customer_email":"a@example.com","selected_seats":"A1,A2"}}`

func TestCreateOrder_Success(t *testing.T) {
	svc := new(mockPayments)
	svc.On("CreateOrder", mock.Anything, mock.MatchedBy(func(in domain.CreateOrderInput) bool {
		return in.Amount == 499 && in.Notes.Type() == domain.NotesTypeBooking && in.Currency == ""
	})).Return(&domain.OrderCredentials{OrderID: "order_1", Amount: 49900, Currency: "INR", KeyID: "rzp_test"}, nil)

	rec := serve(newTestRouter(svc, nil, nil), http.MethodPost, "/api/payment/create-order", bookingOrder, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"order_id":"order_1","amount":49900,"currency":"INR","key_id":"rzp_test"}`, rec.Body.String())
}

func TestCreateOrder_RejectsShape(t *testing.T) {
	bodies := []string{
		`{"amount":"499","notes":{}}`,
		`{"amount":null,"notes":{}}`,
		`{"notes":{}}`,
		`{"amount":499}`,
		`{"amount":499,"notes":"x"}`,
		`{"amount":499,"notes":[1]}`,
		`not json`,
	}
	for _, body := range bodies {
		svc := new(mockPayments)
		rec := serve(newTestRouter(svc, nil, nil), http.MethodPost, "/api/payment/create-order", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Amount (must be a number) and notes (must be an object) are required", decodeMessage(t, rec).Message)
		svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
		det  string
	}{
		{"too small", domain.ErrAmountTooSmall, http.StatusBadRequest, "Minimum amount is ₹1.00", ""},
		{"missing notes", errors.Mark(errors.New("Missing required booking details in notes (event_title, customer_email, selected_seats)"), domain.ErrInvalidInput),
			http.StatusBadRequest, "Missing required booking details in notes (event_title, customer_email, selected_seats)", ""},
		{"seats", errors.Mark(errors.New("Selected seats are no longer available: A1"), domain.ErrSeatsUnavailable), http.StatusConflict, "Selected seats are no longer available: A1", ""},
		{"gateway", errors.Mark(errors.Wrap(errors.New("Authentication failed"), "razorpay create order"), domain.ErrGateway),
			http.StatusInternalServerError, "Error creating Razorpay order", "Authentication failed"},
		{"store", errors.New("connection refused"), http.StatusInternalServerError, "Error creating Razorpay order", "Unknown error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockPayments)
			svc.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := serve(newTestRouter(svc, nil, nil), http.MethodPost, "/api/payment/create-order", bookingOrder, nil)

			assert.Equal(t, tc.code, rec.Code)
			body := decodeMessage(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, tc.msg, body.Message)
			assert.Equal(t, tc.det, body.Error)
		})
	}
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	svc := new(mockPayments)
	svc.On("CreateOrder", mock.Anything, mock.Anything).
		Return(&domain.OrderCredentials{OrderID: "order_1", Amount: 49900, Currency: "INR", KeyID: "rzp_test"}, nil).Once()
	router := newTestRouter(svc, nil, idempotency.NewIdempotency(&memIdemp{m: map[string]redisadapter.StoredResponse{}}, time.Hour))
	headers := map[string]string{"Idempotency-Key": "checkout-0123456789"}

	first := serve(router, http.MethodPost, "/api/payment/create-order", bookingOrder, headers)
	second := serve(router, http.MethodPost, "/api/payment/create-order", bookingOrder, headers)

	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	svc.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCreateOrder_ShortIdempotencyKey(t *testing.T) {
	svc := new(mockPayments)
	rec := serve(newTestRouter(svc, nil, nil), http.MethodPost, "/api/payment/create-order", bookingOrder, map[string]string{"Idempotency-Key": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestVerifyWebhook(t *testing.T) {
	cases := []struct {
		name    string
		out     *payments.WebhookOutcome
		err     error
		code    int
		success bool
		msg     string
	}{
		{"booked", &payments.WebhookOutcome{Outcome: payments.OutcomeBooked}, nil, http.StatusOK, true, "Webhook received"},
		{"duplicate", &payments.WebhookOutcome{Outcome: payments.OutcomeDuplicate}, nil, http.StatusOK, true, "Webhook received"},
		{"empty notes", &payments.WebhookOutcome{Outcome: payments.OutcomeEmptyNotes}, nil, http.StatusOK, true, "Webhook received, but notes missing."},
		{"store error", &payments.WebhookOutcome{Outcome: payments.OutcomeStoreError}, nil, http.StatusOK, true, "Webhook received, DB error occurred."},
		{"bad signature", nil, domain.ErrInvalidSignature, http.StatusBadRequest, false, "Invalid request signature"},
		{"malformed", nil, domain.ErrMalformedWebhook, http.StatusBadRequest, false, "Order or Payment entity missing"},
		{"no email", nil, domain.ErrMissingCustomerEmail, http.StatusBadRequest, false, "Customer email missing in booking notes."},
		{"bad json", nil, errors.Mark(errors.New("decode webhook"), domain.ErrInvalidInput), http.StatusBadRequest, false, "Invalid webhook payload"},
		{"no secret", nil, errors.New("webhook secret is not configured"), http.StatusInternalServerError, false, "Webhook signature verification failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockPayments)
			svc.On("HandleWebhook", mock.Anything, []byte(`{"event":"order.paid"}`), "abc123").Return(tc.out, tc.err)

			rec := serve(newTestRouter(svc, nil, nil), http.MethodPost, "/api/payment/verify", `{"event":"order.paid"}`,
				map[string]string{razorpay.SignatureHeader: "abc123"})

			assert.Equal(t, tc.code, rec.Code)
			body := decodeMessage(t, rec)
			assert.Equal(t, tc.success, body.Success)
			assert.Equal(t, tc.msg, body.Message)
			svc.AssertExpectations(t)
		})
	}
}

func TestVerifyWebhook_OversizedBody(t *testing.T) {
	svc := new(mockPayments)
	body := `{"event":"order.paid","pad":"` + strings.Repeat("x", maxWebhookBytes) + `"}`

	rec := serve(newTestRouter(svc, nil, nil), http.MethodPost, "/api/payment/verify", body,
		map[string]string{razorpay.SignatureHeader: "abc123"})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	msg := decodeMessage(t, rec)
	assert.False(t, msg.Success)
	assert.Equal(t, "Webhook payload too large", msg.Message)
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingStatus(t *testing.T) {
	svc := new(mockPayments)
	svc.On("BookingStatus", mock.Anything, "order_1", "failed").Return(domain.ResolveStatus(nil, "failed"), nil)
	svc.On("BookingStatus", mock.Anything, "order_2", "").
		Return(domain.StatusReport{Status: domain.StateFailed, Message: domain.MsgLookupErr}, errors.New("db down"))
	router := newTestRouter(svc, nil, nil)

	rec := serve(router, http.MethodGet, "/api/payment/booking-status/order_1?status=failed", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"status":"FAILED","message":"Payment failed or was cancelled.","data":null}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = serve(router, http.MethodGet, "/api/payment/booking-status/order_2", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"status":"FAILED","message":"An error occurred while checking booking status.","data":null}`, rec.Body.String())
}

func token(t *testing.T, secret, email string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestMyTickets(t *testing.T) {
	svc := new(mockPayments)
	svc.On("Tickets", mock.Anything, "a@example.com").Return([]domain.TicketSummary{{EventTitle: "TEDxAUC", SelectedSeats: []string{"A1"}, IsTicketActive: true}}, nil)
	router := newTestRouter(svc, nil, nil)

	rec := serve(router, http.MethodGet, "/api/bookings/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodGet, "/api/bookings/me", "", map[string]string{"Authorization": "Bearer " + token(t, "other-secret", "a@example.com")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodGet, "/api/bookings/me", "", map[string]string{"Authorization": "Bearer " + token(t, jwtSecret, "a@example.com")})
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Success bool                   `json:"success"`
		Data    []domain.TicketSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "TEDxAUC", body.Data[0].EventTitle)
}

func TestBookedSeats(t *testing.T) {
	svc := new(mockPayments)
	svc.On("BookedSeats", mock.Anything, "TEDxAUC").Return([]string{"A1", "B2"}, nil)
	svc.On("BookedSeats", mock.Anything, "").Return(nil, errors.Mark(errors.New("event_title is required"), domain.ErrInvalidInput))
	router := newTestRouter(svc, nil, nil)

	rec := serve(router, http.MethodGet, "/api/events/booked-seats?event_title=TEDxAUC", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":["A1","B2"]}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/api/events/booked-seats", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "event_title is required", decodeMessage(t, rec).Message)
}

type stubCatalog struct {
	events []domain.Event
}

func (c stubCatalog) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	for _, ev := range c.events {
		if ev.ID == id {
			return &ev, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c stubCatalog) ListEvents(context.Context, string) ([]domain.Event, error) {
	return c.events, nil
}

func TestEvents(t *testing.T) {
	withCatalog := newTestRouter(new(mockPayments), stubCatalog{events: []domain.Event{{ID: "tedx-2025", Title: "TEDxAUC"}}}, nil)

	rec := serve(withCatalog, http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"TEDxAUC"`)

	rec = serve(withCatalog, http.MethodGet, "/api/events/tedx-2025", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(withCatalog, http.MethodGet, "/api/events/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(newTestRouter(new(mockPayments), nil, nil), http.MethodGet, "/api/events", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	logger := observability.NewTestLogger(io.Discard)
	down := SetupRouter(testConfig(), NewHandlers(new(mockPayments), nil, nil, pinger{err: errors.New("down")}, logger), logger, nil, nil)

	assert.Equal(t, http.StatusOK, serve(down, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(down, http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(newTestRouter(new(mockPayments), nil, nil), http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(down, http.MethodGet, "/api/bookings/me", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(new(mockPayments), nil, nil)

	rec := serve(router, http.MethodOptions, "/api/payment/create-order", "", map[string]string{
		"Origin":                         "https://tedxamity.com",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type, Idempotency-Key",
	})
	assert.Equal(t, "https://tedxamity.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(router, http.MethodOptions, "/api/payment/create-order", "", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
