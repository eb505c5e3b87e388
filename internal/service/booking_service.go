package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/domain"
	"hotelier/internal/events"
	"hotelier/internal/fees"
	"hotelier/internal/metrics"
	"hotelier/internal/models"
	"hotelier/internal/notify"
	"hotelier/internal/repository"
	"hotelier/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionRenewer reopens a booking's expired payment sessions.
type SessionRenewer interface {
	RenewExpiredSessions(ctx context.Context, bookingID int64) ([]*models.Payment, error)
}

// BookingService drives the booking lifecycle: create, check-in,
// cancel, check-out and the no-show sweep, plus the availability
// calendar query.
type BookingService struct {
	repo          domain.Repository
	checkout      domain.CheckoutProvider
	notifier      domain.Notifier
	eventBus      domain.EventPublisher
	calendarCache domain.CalendarCache
	renewer       SessionRenewer
	feePolicy     fees.Policy
	logger        *zerolog.Logger

	now func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	checkout domain.CheckoutProvider,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	calendarCache domain.CalendarCache,
	renewer SessionRenewer,
	feePolicy fees.Policy,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:          repo,
		checkout:      checkout,
		notifier:      notifier,
		eventBus:      eventBus,
		calendarCache: calendarCache,
		renewer:       renewer,
		feePolicy:     feePolicy,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateBookingRequest carries the caller-supplied booking fields. The
// nightly rate is captured from the room at creation time.
type CreateBookingRequest struct {
	RoomID     int64
	GuestID    int64
	GuestName  string
	GuestEmail string
	CheckIn    time.Time
	CheckOut   time.Time
}

// CreateBooking validates the request and persists a BOOKED booking.
// The guest must have no outstanding pending payment anywhere in the
// system, and the room must be free for the whole stay.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	checkIn := models.DateOnly(req.CheckIn)
	checkOut := models.DateOnly(req.CheckOut)
	if !checkOut.After(checkIn) {
		return nil, availability.ErrInvalidRange
	}

	room, ok := s.repo.GetRoom(req.RoomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	hasPending, err := s.repo.HasPendingPaymentForGuest(ctx, req.GuestID)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, ErrConflictingPayment
	}

	booking := &models.Booking{
		Reference:     newReference(),
		RoomID:        room.ID,
		GuestID:       req.GuestID,
		GuestName:     req.GuestName,
		GuestEmail:    req.GuestEmail,
		CheckInDate:   checkIn,
		CheckOutDate:  checkOut,
		Status:        models.StatusBooked,
		PricePerNight: room.PricePerNight,
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		return nil, err
	}

	metrics.IncTransition(string(models.StatusBooked))
	s.invalidateCalendar(ctx, booking.RoomID)
	s.publishBookingEvent(events.EventBookingCreated, booking)
	s.notify(ctx, notify.BookingCreatedMessage(booking, room))

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("reference", booking.Reference).
		Int64("room_id", booking.RoomID).
		Msg("booking created")

	return booking, nil
}

// CheckIn issues the payment request that will activate the booking.
// Legal from BOOKED (stay payment) and NO_SHOW (no-show fee, recovery
// path). The booking stays in its current status until the payment is
// confirmed.
func (s *BookingService) CheckIn(ctx context.Context, bookingID int64) (*models.Payment, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	var kind models.PaymentKind
	switch booking.Status {
	case models.StatusBooked:
		kind = models.KindStay
	case models.StatusNoShow:
		kind = models.KindNoShowFee
	default:
		return nil, ErrInvalidState
	}

	today := models.DateOnly(s.now())
	if today.Before(booking.CheckInDate) {
		return nil, ErrTooEarly
	}
	if !today.Before(booking.CheckOutDate) {
		return nil, ErrTooLate
	}

	return s.requestPayment(ctx, booking, kind, today)
}

// CancelResult reports what cancelling did: an immediate cancellation
// leaves FeePayment nil, a late one returns the pending fee the guest
// must settle before the booking actually becomes CANCELLED.
type CancelResult struct {
	Booking    *models.Booking
	FeePayment *models.Payment
}

// Cancel cancels a BOOKED booking. Inside the lateness window a
// cancellation fee is requested instead and the booking stays BOOKED
// until the fee is paid.
func (s *BookingService) Cancel(ctx context.Context, bookingID int64) (*CancelResult, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.StatusBooked {
		return nil, ErrInvalidState
	}

	today := models.DateOnly(s.now())
	if !today.Before(booking.CheckInDate) {
		return nil, ErrTooLate
	}

	if s.feePolicy.IsLateCancellation(booking, today) {
		payment, err := s.requestPayment(ctx, booking, models.KindCancellationFee, today)
		if err != nil {
			return nil, err
		}
		return &CancelResult{Booking: booking, FeePayment: payment}, nil
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.StatusCancelled); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCancelled
	booking.Version++

	metrics.IncTransition(string(models.StatusCancelled))
	s.invalidateCalendar(ctx, booking.RoomID)
	s.publishBookingEvent(events.EventBookingCancelled, booking)
	if room, ok := s.repo.GetRoom(booking.RoomID); ok {
		s.notify(ctx, notify.BookingCancelledMessage(booking, room))
	}

	s.logger.Info().Int64("booking_id", booking.ID).Msg("booking cancelled")
	return &CancelResult{Booking: booking}, nil
}

// CheckOutResult reports a check-out: either the booking completed
// directly, or an overstay fee is pending and must be paid first.
// Renewed lists the booking's expired payment sessions that were
// reopened on the way.
type CheckOutResult struct {
	Booking    *models.Booking
	FeePayment *models.Payment
	Renewed    []*models.Payment
}

// CheckOut completes an ACTIVE booking. Checking out after the booked
// check-out date requests an overstay fee instead; the booking stays
// ACTIVE until the fee is paid.
func (s *BookingService) CheckOut(ctx context.Context, bookingID int64) (*CheckOutResult, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status != models.StatusActive {
		return nil, ErrInvalidState
	}

	result := &CheckOutResult{Booking: booking}

	if s.renewer != nil {
		renewed, err := s.renewer.RenewExpiredSessions(ctx, booking.ID)
		if err != nil {
			return nil, err
		}
		result.Renewed = renewed
	}

	today := models.DateOnly(s.now())
	if fees.IsOverstay(booking, today) {
		payment, err := s.requestPayment(ctx, booking, models.KindOverstayFee, today)
		if err != nil {
			return nil, err
		}
		result.FeePayment = payment
		return result, nil
	}

	if err := s.repo.CompleteBookingWithVersion(ctx, booking.ID, booking.Version, today); err != nil {
		return nil, err
	}
	booking.Status = models.StatusCompleted
	booking.Version++
	booking.ActualCheckOutDate = &today

	metrics.IncTransition(string(models.StatusCompleted))
	s.invalidateCalendar(ctx, booking.RoomID)
	s.publishBookingEvent(events.EventBookingCompleted, booking)

	s.logger.Info().Int64("booking_id", booking.ID).Msg("booking completed")
	return result, nil
}

// MarkNoShows flips every BOOKED booking whose check-in date has passed
// to NO_SHOW. Idempotent: a second run finds nothing to do.
func (s *BookingService) MarkNoShows(ctx context.Context) ([]*models.Booking, error) {
	today := models.DateOnly(s.now())

	marked, err := s.repo.MarkNoShows(ctx, today)
	if err != nil {
		return nil, err
	}

	for _, booking := range marked {
		metrics.IncTransition(string(models.StatusNoShow))
		s.invalidateCalendar(ctx, booking.RoomID)
		s.publishBookingEvent(events.EventBookingNoShow, booking)
		if room, ok := s.repo.GetRoom(booking.RoomID); ok {
			s.notify(ctx, notify.NoShowMessage(booking, room, today))
		}
	}

	if len(marked) > 0 {
		s.logger.Info().Int("count", len(marked)).Msg("bookings marked as no-show")
	}
	return marked, nil
}

// Calendar returns per-day availability of a room over [from, to]
// inclusive, served from cache when possible.
func (s *BookingService) Calendar(ctx context.Context, roomID int64, from, to time.Time) ([]models.DayAvailability, error) {
	if _, ok := s.repo.GetRoom(roomID); !ok {
		return nil, ErrRoomNotFound
	}

	from = models.DateOnly(from)
	to = models.DateOnly(to)
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, availability.ErrInvalidRange
	}

	if s.calendarCache != nil {
		days, err := s.calendarCache.GetCalendar(ctx, roomID, from, to)
		switch {
		case err == nil:
			metrics.IncCalendarCache("hit")
			return days, nil
		case errors.Is(err, repository.ErrCacheMiss):
			metrics.IncCalendarCache("miss")
		default:
			metrics.IncCalendarCache("error")
			s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("calendar cache lookup failed")
		}
	}

	// The overlap query is half-open; extend the end by one day to
	// cover bookings touching the inclusive range end.
	bookings, err := s.repo.GetRoomBookings(ctx, roomID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	days, err := availability.Calendar(bookings, from, to)
	if err != nil {
		return nil, err
	}

	if s.calendarCache != nil {
		if err := s.calendarCache.SetCalendar(ctx, roomID, from, to, days); err != nil {
			s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("calendar cache store failed")
		}
	}
	return days, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error) {
	return s.repo.GetBookingByReference(ctx, reference)
}

func (s *BookingService) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	return s.repo.ListBookings(ctx, filter)
}

func (s *BookingService) GetRooms() []models.Room {
	return s.repo.GetRooms()
}

// requestPayment is the fee-bearing half of check-in, late cancel and
// overstay check-out: size the fee, get-or-create the pending payment
// and make sure it carries a live checkout session.
func (s *BookingService) requestPayment(ctx context.Context, booking *models.Booking, kind models.PaymentKind, asOf time.Time) (*models.Payment, error) {
	amount, err := s.feePolicy.Amount(booking, kind, asOf)
	if err != nil {
		return nil, err
	}

	payment, created, err := s.repo.GetOrCreatePendingPayment(ctx, booking.ID, kind, amount)
	if err != nil {
		return nil, err
	}

	if payment.SessionID == "" {
		session, err := openSessionWithRetry(ctx, s.checkout, payment, booking, s.logger)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetPaymentSession(ctx, payment.ID, session.ID, session.URL); err != nil {
			return nil, err
		}
		payment.SessionID = session.ID
		payment.SessionURL = session.URL
	}

	if created {
		s.publishPaymentEvent(events.EventPaymentRequested, payment, booking.Reference)
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("payment_id", payment.ID).
		Str("kind", string(kind)).
		Str("amount", amount.String()).
		Msg("payment requested")

	return payment, nil
}

func (s *BookingService) invalidateCalendar(ctx context.Context, roomID int64) {
	if s.calendarCache == nil {
		return
	}
	if err := s.calendarCache.InvalidateRoom(ctx, roomID); err != nil {
		s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("calendar cache invalidation failed")
	}
}

func (s *BookingService) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	// Best effort: notification failures never fail the transition.
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Error().Err(err).Msg("notification enqueue failed")
	}
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, bookingPayload(booking)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) publishPaymentEvent(eventType string, payment *models.Payment, reference string) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, paymentPayload(payment, reference)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("payment_id", payment.ID).Msg("publish event error")
	}
}

func bookingPayload(b *models.Booking) events.BookingEventPayload {
	return events.BookingEventPayload{
		BookingID:    b.ID,
		Reference:    b.Reference,
		RoomID:       b.RoomID,
		GuestID:      b.GuestID,
		GuestName:    b.GuestName,
		Status:       string(b.Status),
		CheckInDate:  b.CheckInDate,
		CheckOutDate: b.CheckOutDate,
	}
}

func paymentPayload(p *models.Payment, reference string) events.PaymentEventPayload {
	return events.PaymentEventPayload{
		PaymentID: p.ID,
		BookingID: p.BookingID,
		Reference: reference,
		Kind:      string(p.Kind),
		Status:    string(p.Status),
		Amount:    p.Amount.String(),
		SessionID: p.SessionID,
	}
}

// openSessionWithRetry gives the provider a few chances before
// surfacing the failure; checkout session creation is the one external
// call on the transition path.
func openSessionWithRetry(ctx context.Context, checkout domain.CheckoutProvider, payment *models.Payment, booking *models.Booking, logger *zerolog.Logger) (domain.CheckoutSession, error) {
	policy := worker.RetryPolicy{MaxRetries: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: time.Second}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		session, err := checkout.OpenSession(ctx, payment, booking)
		if err == nil {
			return session, nil
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt).Int64("payment_id", payment.ID).Msg("checkout session attempt failed")

		if attempt == policy.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return domain.CheckoutSession{}, ctx.Err()
		case <-time.After(policy.NextDelay(attempt)):
		}
	}

	return domain.CheckoutSession{}, fmt.Errorf("%w: %v", ErrPaymentProvider, lastErr)
}

func newReference() string {
	return "HB-" + strings.ToUpper(uuid.NewString()[:8])
}
