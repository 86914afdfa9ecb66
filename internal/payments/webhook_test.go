package payments

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing-payments/internal/adapters/razorpay"
	"github.com/robertarktes/event-ticketing-payments/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func orderPaidBody(notes string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "order.paid",
		"payload": {
			"order": {"entity": {"id": "order_Abc", "amount": 100000, "currency": "INR", "notes": %s}},
			"payment": {"entity": {"id": "pay_Xyz", "order_id": "order_Abc"}}
		}
	}`, notes))
}

const bookingNotesJSON = `{"type":"booking","event_title":"TEDx 2025","selected_seats":"A1, A2,A3","customer_email":"a@example.com","customer_name":"Asha"}`

func sign(body []byte) string {
	return razorpay.Sign(testCfg.RazorpayWebhookSecret, body)
}

func TestHandleWebhook_BadSignatureWritesNothing(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	body := orderPaidBody(bookingNotesJSON)

	_, err := svc.HandleWebhook(context.Background(), body, "not-the-signature")
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}

func TestHandleWebhook_BookingCreated(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	body := orderPaidBody(bookingNotesJSON)

	store.On("ConfirmBooking", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.RazorpayOrderID == "order_Abc" &&
			b.RazorpayPaymentID == "pay_Xyz" &&
			assert.ObjectsAreEqual([]string{"A1", "A2", "A3"}, b.SelectedSeats) &&
			b.SeatCount == 3 &&
			b.TotalAmount.String() == "1000"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Booking).ID = 42
	}).Return(nil).Once()

	out, err := svc.HandleWebhook(context.Background(), body, sign(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBooked, out.Outcome)
	assert.Equal(t, int64(42), out.BookingID)
}

func TestHandleWebhook_RedeliveryIsNoop(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	body := orderPaidBody(bookingNotesJSON)

	store.On("ConfirmBooking", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("ConfirmBooking", mock.Anything, mock.Anything).
		Return(errors.Wrap(domain.ErrDuplicateBooking, "constraint bookings_razorpay_order_id_key")).Times(3)

	outcomes := map[Outcome]int{}
	for i := 0; i < 4; i++ {
		out, err := svc.HandleWebhook(context.Background(), body, sign(body))
		require.NoError(t, err)
		outcomes[out.Outcome]++
	}
	assert.Equal(t, map[Outcome]int{OutcomeBooked: 1, OutcomeDuplicate: 3}, outcomes)
}

func TestHandleWebhook_StoreErrorStillAcknowledged(t *testing.T) {
	svc, store, _ := newTestService(t, nil)
	body := orderPaidBody(bookingNotesJSON)

	store.On("ConfirmBooking", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	out, err := svc.HandleWebhook(context.Background(), body, sign(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeStoreError, out.Outcome)
}

func TestHandleWebhook_MissingEmail(t *testing.T) {
	svc, _, _ := newTestService(t, nil)

	for _, notes := range []string{
		`{"type":"booking","event_title":"T","selected_seats":"A1"}`,
		`{"type":"booking","event_title":"T","selected_seats":"A1","customer_email":"N/A"}`,
	} {
		body := orderPaidBody(notes)
		_, err := svc.HandleWebhook(context.Background(), body, sign(body))
		assert.True(t, errors.Is(err, domain.ErrMissingCustomerEmail), notes)
	}
}

func TestHandleWebhook_NoBookingPaths(t *testing.T) {
	cases := map[string]struct {
		body []byte
		want Outcome
	}{
		"empty notes array":  {orderPaidBody(`[]`), OutcomeEmptyNotes},
		"empty notes object": {orderPaidBody(`{}`), OutcomeEmptyNotes},
		"donation":           {orderPaidBody(`{"type":"donation","name":"D"}`), OutcomeDonation},
		"unknown type":       {orderPaidBody(`{"type":"merch"}`), OutcomeUnknown},
		"other event":        {[]byte(`{"event":"payment.captured","payload":{}}`), OutcomeIgnored},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, _ := newTestService(t, nil)
			out, err := svc.HandleWebhook(context.Background(), tc.body, sign(tc.body))
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Outcome)
		})
	}
}

func TestHandleWebhook_MissingEntity(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	body := []byte(`{"event":"order.paid","payload":{"order":{"entity":{"id":"o"}}}}`)

	_, err := svc.HandleWebhook(context.Background(), body, sign(body))
	assert.True(t, errors.Is(err, domain.ErrMalformedWebhook))
}

func TestHandleWebhook_AuditFailureIgnored(t *testing.T) {
	audit := &mockAudit{}
	svc, _, _ := newTestService(t, audit)
	body := orderPaidBody(`{"type":"donation"}`)

	audit.On("LogEvent", mock.Anything, "webhook.donation", "order_Abc", mock.Anything).Return(errors.New("mongo down"))

	out, err := svc.HandleWebhook(context.Background(), body, sign(body))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDonation, out.Outcome)
	audit.AssertExpectations(t)
}
