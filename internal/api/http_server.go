// Package api exposes the booking system over HTTP: a JSON API for
// front-desk clients plus the payment provider webhook.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/config"
	"hotelier/internal/database"
	"hotelier/internal/metrics"
	"hotelier/internal/models"
	"hotelier/internal/payment"
	"hotelier/internal/service"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// maxWebhookBody caps provider webhook payload reads.
const maxWebhookBody = 64 * 1024

type HTTPServer struct {
	cfg      config.APIConfig
	bookings *service.BookingService
	payments *service.PaymentService
	webhook  config.StripeConfig
	server   *http.Server
	auth     *HTTPAuth
	log      zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	stripeCfg config.StripeConfig,
	bookings *service.BookingService,
	payments *service.PaymentService,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		bookings: bookings,
		payments: payments,
		webhook:  stripeCfg,
		auth:     NewHTTPAuth(cfg),
		log:      logger.With().Str("component", "http").Logger(),
	}

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	apiMux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	apiMux.HandleFunc("/api/v1/rooms", srv.handleRooms)
	apiMux.HandleFunc("/api/v1/rooms/", srv.handleRoomCalendar)
	apiMux.HandleFunc("/api/v1/payments", srv.handlePayments)
	apiMux.HandleFunc("/api/v1/payments/", srv.handlePaymentByID)

	// Webhook and health sit outside API-key auth: the webhook is
	// authenticated by its signature, health must stay probeable.
	root := http.NewServeMux()
	root.Handle("/api/v1/", srv.auth.Wrap(apiMux))
	root.HandleFunc("/webhooks/stripe", srv.handleStripeWebhook)
	root.HandleFunc("/payments/success", srv.handlePaymentLanding("success"))
	root.HandleFunc("/payments/cancelled", srv.handlePaymentLanding("cancelled"))
	root.HandleFunc("/healthz", srv.handleHealth)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(root),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type createBookingRequest struct {
	RoomID     int64  `json:"room_id"`
	GuestID    int64  `json:"guest_id"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	CheckIn    string `json:"check_in_date"`
	CheckOut   string `json:"check_out_date"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createBooking(w, r)
	case http.MethodGet:
		s.listBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	checkIn, err := time.Parse(dateLayout, body.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in_date; expected YYYY-MM-DD")
		return
	}
	checkOut, err := time.Parse(dateLayout, body.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out_date; expected YYYY-MM-DD")
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), service.CreateBookingRequest{
		RoomID:     body.RoomID,
		GuestID:    body.GuestID,
		GuestName:  body.GuestName,
		GuestEmail: body.GuestEmail,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	metrics.IncHTTP("create_booking")
	writeJSON(w, http.StatusCreated, map[string]any{"booking": booking})
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	var filter models.BookingFilter
	q := r.URL.Query()

	if raw := q.Get("room_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid room_id")
			return
		}
		filter.RoomID = id
	}
	if raw := q.Get("guest_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid guest_id")
			return
		}
		filter.GuestID = id
	}
	if raw := q.Get("status"); raw != "" {
		if !models.ValidBookingStatus(raw) {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = models.BookingStatus(raw)
	}
	var err error
	if filter.From, err = parseOptionalDate(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	if filter.To, err = parseOptionalDate(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}

	bookings, err := s.bookings.ListBookings(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Room type lives on the in-memory inventory, not the bookings
	// table, so it is applied after the storage query.
	if raw := q.Get("room_type"); raw != "" {
		bookings = s.filterByRoomType(bookings, models.RoomType(raw))
	}

	metrics.IncHTTP("list_bookings")
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) filterByRoomType(bookings []*models.Booking, roomType models.RoomType) []*models.Booking {
	matching := make(map[int64]bool)
	for _, room := range s.bookings.GetRooms() {
		if room.Type == roomType {
			matching[room.ID] = true
		}
	}

	out := make([]*models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if matching[b.RoomID] {
			out = append(out, b)
		}
	}
	return out
}

// handleBookingByID routes /api/v1/bookings/{id} and its lifecycle
// actions /check-in, /cancel, /check-out, /payments.
func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := parseIDAndAction(r.URL.Path, "/api/v1/bookings/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getBooking(w, r, id)
	case action == "payments" && r.Method == http.MethodGet:
		s.listBookingPayments(w, r, id)
	case action == "check-in" && r.Method == http.MethodPost:
		s.checkIn(w, r, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.cancel(w, r, id)
	case action == "check-out" && r.Method == http.MethodPost:
		s.checkOut(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getBooking(w http.ResponseWriter, r *http.Request, id int64) {
	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncHTTP("get_booking")
	writeJSON(w, http.StatusOK, map[string]any{"booking": booking})
}

func (s *HTTPServer) listBookingPayments(w http.ResponseWriter, r *http.Request, id int64) {
	payments, err := s.payments.ListBookingPayments(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncHTTP("list_booking_payments")
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func (s *HTTPServer) checkIn(w http.ResponseWriter, r *http.Request, id int64) {
	p, err := s.bookings.CheckIn(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncHTTP("check_in")
	writeJSON(w, http.StatusOK, map[string]any{"payment": p})
}

func (s *HTTPServer) cancel(w http.ResponseWriter, r *http.Request, id int64) {
	res, err := s.bookings.Cancel(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncHTTP("cancel_booking")

	resp := map[string]any{"booking": res.Booking}
	if res.FeePayment != nil {
		resp["fee_payment"] = res.FeePayment
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) checkOut(w http.ResponseWriter, r *http.Request, id int64) {
	res, err := s.bookings.CheckOut(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	metrics.IncHTTP("check_out")

	resp := map[string]any{"booking": res.Booking}
	if res.FeePayment != nil {
		resp["fee_payment"] = res.FeePayment
	}
	if len(res.Renewed) > 0 {
		resp["renewed_payments"] = res.Renewed
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("list_rooms")
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.bookings.GetRooms()})
}

func (s *HTTPServer) handleRoomCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, action, err := parseIDAndAction(r.URL.Path, "/api/v1/rooms/")
	if err != nil || action != "calendar" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}

	days, err := s.bookings.Calendar(r.Context(), id, from, to)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	metrics.IncHTTP("room_calendar")
	writeJSON(w, http.StatusOK, map[string]any{"room_id": id, "days": days})
}

func (s *HTTPServer) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payments []*models.Payment
	var err error
	if raw := r.URL.Query().Get("status"); raw != "" {
		switch models.PaymentStatus(raw) {
		case models.PaymentPending, models.PaymentPaid, models.PaymentExpired:
		default:
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		payments, err = s.payments.ListPaymentsByStatus(r.Context(), models.PaymentStatus(raw))
	} else {
		payments, err = s.payments.ListPayments(r.Context())
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	metrics.IncHTTP("list_payments")
	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

// handlePaymentLanding serves the provider redirect targets the guest
// lands on after the hosted checkout page.
func (s *HTTPServer) handlePaymentLanding(outcome string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if sessionID == "" {
			writeError(w, http.StatusBadRequest, "session_id is required")
			return
		}

		p, err := s.payments.GetPaymentBySession(r.Context(), sessionID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"outcome": outcome,
			"payment": p,
		})
	}
}

// handlePaymentByID routes /api/v1/payments/{id} and the session
// lifecycle actions /renew and /expire.
func (s *HTTPServer) handlePaymentByID(w http.ResponseWriter, r *http.Request) {
	id, action, err := parseIDAndAction(r.URL.Path, "/api/v1/payments/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		p, err := s.payments.GetPayment(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.IncHTTP("get_payment")
		writeJSON(w, http.StatusOK, map[string]any{"payment": p})

	case action == "renew" && r.Method == http.MethodPost:
		p, err := s.payments.RenewSession(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.IncHTTP("renew_payment")
		writeJSON(w, http.StatusOK, map[string]any{"payment": p})

	case action == "expire" && r.Method == http.MethodPost:
		if err := s.payments.ExpirePayment(r.Context(), id); err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.IncHTTP("expire_payment")
		writeJSON(w, http.StatusOK, map[string]any{"status": "expired"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	sessionID, handled, err := payment.VerifyCheckoutCompleted(body, r.Header.Get("Stripe-Signature"), s.webhook.WebhookSecret)
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook signature verification failed")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	if !handled {
		// Event types we do not consume are acknowledged so the
		// provider stops retrying them.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	result, err := s.payments.OnPaymentConfirmed(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSession) {
			s.log.Warn().Str("session_id", sessionID).Msg("webhook for unknown session")
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		s.writeServiceError(w, err)
		return
	}

	metrics.IncHTTP("stripe_webhook")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"already_paid": result.AlreadyPaid,
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrUnknownSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, availability.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrTooEarly), errors.Is(err, service.ErrTooLate):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrConflictingPayment),
		errors.Is(err, database.ErrRoomNotAvailable),
		errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrPaymentProvider):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// parseIDAndAction splits "<prefix>{id}" or "<prefix>{id}/{action}".
func parseIDAndAction(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid id in path")
	}

	action := ""
	if len(parts) == 2 {
		action = strings.Trim(parts[1], "/")
	}
	return id, action, nil
}

func parseOptionalDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, raw)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
