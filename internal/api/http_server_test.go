package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"hotelier/internal/config"
	"hotelier/internal/database"
	"hotelier/internal/domain"
	"hotelier/internal/fees"
	"hotelier/internal/models"
	"hotelier/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

// fakeCheckout hands out predictable session IDs without talking to a
// real gateway.
type fakeCheckout struct {
	counter atomic.Int64
}

func (f *fakeCheckout) OpenSession(ctx context.Context, p *models.Payment, b *models.Booking) (domain.CheckoutSession, error) {
	n := f.counter.Add(1)
	return domain.CheckoutSession{
		ID:  fmt.Sprintf("cs_test_%d", n),
		URL: fmt.Sprintf("https://checkout.test/cs_test_%d", n),
	}, nil
}

type testEnv struct {
	server *httptest.Server
	db     *database.DB
}

func newTestEnv(t *testing.T, apiCfg config.APIConfig) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetRooms([]models.Room{
		{ID: 1, Number: "101", Type: models.RoomDouble, PricePerNight: decimal.NewFromInt(100), Capacity: 2},
		{ID: 2, Number: "102", Type: models.RoomSingle, PricePerNight: decimal.NewFromInt(80), Capacity: 1},
	})

	checkout := &fakeCheckout{}
	payments := service.NewPaymentService(db, checkout, nil, nil, nil, &logger)
	bookings := service.NewBookingService(db, checkout, nil, nil, nil, payments, fees.DefaultPolicy(), &logger)

	stripeCfg := config.StripeConfig{WebhookSecret: testWebhookSecret}
	srv := NewHTTPServer(apiCfg, stripeCfg, bookings, payments, &logger)

	ts := httptest.NewServer(srv.server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, db: db}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/json", nil)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func signWebhookPayload(payload []byte, secret string) string {
	now := time.Now().Unix()
	signed := fmt.Sprintf("%d.%s", now, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", now, hex.EncodeToString(mac.Sum(nil)))
}

func (e *testEnv) confirmSession(t *testing.T, sessionID string) *http.Response {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
        "id": "evt_1",
        "object": "event",
        "type": "checkout.session.completed",
        "data": {"object": {"id": %q, "object": "checkout.session"}}
    }`, sessionID))

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/webhooks/stripe", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", signWebhookPayload(payload, testWebhookSecret))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func openAPI() config.APIConfig {
	return config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func TestCreateBookingEndpoint(t *testing.T) {
	env := newTestEnv(t, openAPI())

	resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       42,
		"guest_name":     "Ada Lovelace",
		"guest_email":    "ada@example.com",
		"check_in_date":  futureDate(5),
		"check_out_date": futureDate(8),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	booking := body["booking"].(map[string]any)
	assert.Equal(t, "BOOKED", booking["status"])
	assert.NotEmpty(t, booking["reference"])

	// Same room, overlapping dates, different guest.
	resp = env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       43,
		"guest_name":     "Grace Hopper",
		"guest_email":    "grace@example.com",
		"check_in_date":  futureDate(6),
		"check_out_date": futureDate(9),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Reversed range.
	resp = env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        2,
		"guest_id":       44,
		"check_in_date":  futureDate(8),
		"check_out_date": futureDate(5),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown room.
	resp = env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        99,
		"guest_id":       44,
		"check_in_date":  futureDate(5),
		"check_out_date": futureDate(8),
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/v1/bookings?room_id=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["bookings"], 1)
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, openAPI())

	// Check-in window open as of today.
	resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       42,
		"guest_name":     "Ada Lovelace",
		"guest_email":    "ada@example.com",
		"check_in_date":  time.Now().Format("2006-01-02"),
		"check_out_date": futureDate(3),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id := int64(body["booking"].(map[string]any)["id"].(float64))

	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/check-in", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	payment := body["payment"].(map[string]any)
	sessionID := payment["session_id"].(string)
	assert.Equal(t, "PENDING", payment["status"])
	assert.Equal(t, "STAY", payment["kind"])

	// Booking stays BOOKED until the payment settles.
	resp = env.get(t, fmt.Sprintf("/api/v1/bookings/%d", id))
	body = decodeBody(t, resp)
	assert.Equal(t, "BOOKED", body["booking"].(map[string]any)["status"])

	resp = env.confirmSession(t, sessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["already_paid"])

	resp = env.get(t, fmt.Sprintf("/api/v1/bookings/%d", id))
	body = decodeBody(t, resp)
	assert.Equal(t, "ACTIVE", body["booking"].(map[string]any)["status"])

	// Replayed webhook is acknowledged without another transition.
	resp = env.confirmSession(t, sessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, true, body["already_paid"])

	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/check-out", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "COMPLETED", body["booking"].(map[string]any)["status"])

	// Terminal: further lifecycle calls are conflicts.
	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/check-out", id))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCheckInWindowOverHTTP(t *testing.T) {
	env := newTestEnv(t, openAPI())

	resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       42,
		"guest_email":    "ada@example.com",
		"check_in_date":  futureDate(5),
		"check_out_date": futureDate(8),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id := int64(body["booking"].(map[string]any)["id"].(float64))

	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/check-in", id))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelOverHTTP(t *testing.T) {
	env := newTestEnv(t, openAPI())

	// Far enough out to cancel without a fee.
	resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       42,
		"guest_email":    "ada@example.com",
		"check_in_date":  futureDate(10),
		"check_out_date": futureDate(12),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id := int64(body["booking"].(map[string]any)["id"].(float64))

	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/cancel", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "CANCELLED", body["booking"].(map[string]any)["status"])
	assert.NotContains(t, body, "fee_payment")

	// Inside the 24h window a fee is requested instead.
	resp = env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        2,
		"guest_id":       43,
		"guest_email":    "grace@example.com",
		"check_in_date":  futureDate(1),
		"check_out_date": futureDate(3),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body = decodeBody(t, resp)
	id = int64(body["booking"].(map[string]any)["id"].(float64))

	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/cancel", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "BOOKED", body["booking"].(map[string]any)["status"])
	fee := body["fee_payment"].(map[string]any)
	assert.Equal(t, "CANCELLATION_FEE", fee["kind"])

	// Settling the fee cancels the booking.
	resp = env.confirmSession(t, fee["session_id"].(string))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, fmt.Sprintf("/api/v1/bookings/%d", id))
	body = decodeBody(t, resp)
	assert.Equal(t, "CANCELLED", body["booking"].(map[string]any)["status"])
}

func TestRoomCalendarEndpoint(t *testing.T) {
	env := newTestEnv(t, openAPI())

	resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       42,
		"guest_email":    "ada@example.com",
		"check_in_date":  futureDate(5),
		"check_out_date": futureDate(7),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, fmt.Sprintf("/api/v1/rooms/1/calendar?from=%s&to=%s", futureDate(5), futureDate(7)))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	days := body["days"].([]any)
	require.Len(t, days, 3)
	assert.Equal(t, false, days[0].(map[string]any)["available"])
	assert.Equal(t, false, days[1].(map[string]any)["available"])
	// Check-out day is free.
	assert.Equal(t, true, days[2].(map[string]any)["available"])

	resp = env.get(t, "/api/v1/rooms/99/calendar?from=" + futureDate(5) + "&to=" + futureDate(7))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/api/v1/rooms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["rooms"], 2)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, openAPI())

	payload := []byte(`{"id": "evt_x", "object": "event", "type": "checkout.session.completed", "data": {"object": {"id": "cs_x"}}}`)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/webhooks/stripe", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Stripe-Signature", signWebhookPayload(payload, "whsec_wrong"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestWebhookUnknownSession(t *testing.T) {
	env := newTestEnv(t, openAPI())

	resp := env.confirmSession(t, "cs_never_issued")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPaymentEndpoints(t *testing.T) {
	env := newTestEnv(t, openAPI())

	resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
		"room_id":        1,
		"guest_id":       42,
		"guest_email":    "ada@example.com",
		"check_in_date":  time.Now().Format("2006-01-02"),
		"check_out_date": futureDate(2),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id := int64(body["booking"].(map[string]any)["id"].(float64))

	resp = env.post(t, fmt.Sprintf("/api/v1/bookings/%d/check-in", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	sessionID := body["payment"].(map[string]any)["session_id"].(string)

	resp = env.get(t, "/api/v1/payments")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["payments"], 1)

	resp = env.get(t, "/api/v1/payments?status=PENDING")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["payments"], 1)

	resp = env.get(t, "/api/v1/payments?status=PAID")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Empty(t, body["payments"])

	resp = env.get(t, "/api/v1/payments?status=BOGUS")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Provider redirect landing.
	resp = env.get(t, "/payments/success?session_id="+sessionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "success", body["outcome"])

	resp = env.get(t, "/payments/success?session_id=cs_unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = env.get(t, "/payments/cancelled")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Booking-scoped payments.
	resp = env.get(t, fmt.Sprintf("/api/v1/bookings/%d/payments", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Len(t, body["payments"], 1)
}

func TestListBookingsRoomTypeFilter(t *testing.T) {
	env := newTestEnv(t, openAPI())

	for _, roomID := range []int64{1, 2} {
		resp := env.postJSON(t, "/api/v1/bookings", map[string]any{
			"room_id":        roomID,
			"guest_id":       40 + roomID,
			"guest_email":    fmt.Sprintf("guest%d@example.com", roomID),
			"check_in_date":  futureDate(5),
			"check_out_date": futureDate(8),
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := env.get(t, "/api/v1/bookings?room_type=SINGLE")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	bookings := body["bookings"].([]any)
	require.Len(t, bookings, 1)
	assert.Equal(t, float64(2), bookings[0].(map[string]any)["room_id"])
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, openAPI())

	resp := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
