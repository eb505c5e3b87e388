package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotelier/internal/database"
	"hotelier/internal/domain"
	"hotelier/internal/events"
	"hotelier/internal/metrics"
	"hotelier/internal/models"
	"hotelier/internal/notify"

	"github.com/rs/zerolog"
)

// PaymentService reconciles provider confirmations with the booking
// lifecycle and manages checkout session expiry and renewal.
type PaymentService struct {
	repo          domain.Repository
	checkout      domain.CheckoutProvider
	notifier      domain.Notifier
	eventBus      domain.EventPublisher
	calendarCache domain.CalendarCache
	logger        *zerolog.Logger

	now func() time.Time
}

func NewPaymentService(
	repo domain.Repository,
	checkout domain.CheckoutProvider,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	calendarCache domain.CalendarCache,
	logger *zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		repo:          repo,
		checkout:      checkout,
		notifier:      notifier,
		eventBus:      eventBus,
		calendarCache: calendarCache,
		logger:        logger,
		now:           time.Now,
	}
}

// OnPaymentConfirmed reconciles a confirmed checkout session: the
// payment becomes PAID and the booking takes whatever lifecycle step
// the payment kind drives. Replays of an already-settled session are
// acknowledged without side effects.
func (s *PaymentService) OnPaymentConfirmed(ctx context.Context, sessionID string) (*models.ConfirmationResult, error) {
	result, err := s.repo.ApplyPaymentConfirmation(ctx, sessionID, models.DateOnly(s.now()))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, err
	}

	if result.AlreadyPaid {
		s.logger.Info().
			Str("session_id", sessionID).
			Int64("payment_id", result.Payment.ID).
			Msg("payment confirmation replayed, ignoring")
		return result, nil
	}

	booking := result.Booking
	payment := result.Payment

	metrics.IncPaymentConfirmed(string(payment.Kind))
	s.publishPaymentEvent(events.EventPaymentSucceeded, payment, booking.Reference)

	room, hasRoom := s.repo.GetRoom(booking.RoomID)
	if hasRoom {
		s.notify(ctx, notify.PaymentSucceededMessage(booking, room, payment))
	}

	if result.StatusChanged {
		metrics.IncTransition(string(booking.Status))
		s.invalidateCalendar(ctx, booking.RoomID)

		switch booking.Status {
		case models.StatusCancelled:
			s.publishBookingEvent(events.EventBookingCancelled, booking)
			if hasRoom {
				s.notify(ctx, notify.BookingCancelledMessage(booking, room))
			}
		case models.StatusCompleted:
			s.publishBookingEvent(events.EventBookingCompleted, booking)
		}
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("payment_id", payment.ID).
		Str("kind", string(payment.Kind)).
		Str("from", string(result.PreviousStatus)).
		Str("to", string(booking.Status)).
		Bool("transitioned", result.StatusChanged).
		Msg("payment confirmed")

	return result, nil
}

// ExpirePayment marks a pending payment EXPIRED, detaching it from its
// dead checkout session. The obligation survives; RenewSession can
// bring it back.
func (s *PaymentService) ExpirePayment(ctx context.Context, paymentID int64) error {
	if err := s.repo.ExpirePayment(ctx, paymentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrInvalidState
		}
		return err
	}

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	s.publishPaymentEvent(events.EventPaymentExpired, payment, "")
	s.logger.Info().Int64("payment_id", paymentID).Msg("payment session expired")
	return nil
}

// RenewSession opens a fresh checkout session for an EXPIRED payment
// and returns it to PENDING.
func (s *PaymentService) RenewSession(ctx context.Context, paymentID int64) (*models.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentExpired {
		return nil, ErrInvalidState
	}

	booking, err := s.repo.GetBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}

	return s.renewPayment(ctx, payment, booking)
}

// RenewExpiredSessions reopens every expired payment of a booking. It
// backs the opportunistic renewal step at check-out.
func (s *PaymentService) RenewExpiredSessions(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	expired, err := s.repo.ListBookingPaymentsByStatus(ctx, bookingID, models.PaymentExpired)
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	renewed := make([]*models.Payment, 0, len(expired))
	for _, payment := range expired {
		p, err := s.renewPayment(ctx, payment, booking)
		if err != nil {
			return nil, fmt.Errorf("failed to renew payment %d: %w", payment.ID, err)
		}
		renewed = append(renewed, p)
	}
	return renewed, nil
}

func (s *PaymentService) renewPayment(ctx context.Context, payment *models.Payment, booking *models.Booking) (*models.Payment, error) {
	session, err := openSessionWithRetry(ctx, s.checkout, payment, booking, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RenewPaymentSession(ctx, payment.ID, session.ID, session.URL); err != nil {
		return nil, err
	}
	payment.Status = models.PaymentPending
	payment.SessionID = session.ID
	payment.SessionURL = session.URL

	s.publishPaymentEvent(events.EventPaymentRequested, payment, booking.Reference)
	s.logger.Info().
		Int64("payment_id", payment.ID).
		Str("session_id", session.ID).
		Msg("payment session renewed")

	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

func (s *PaymentService) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	p, err := s.repo.GetPaymentBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUnknownSession
		}
		return nil, err
	}
	return p, nil
}

func (s *PaymentService) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	return s.repo.ListPayments(ctx)
}

func (s *PaymentService) ListBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	return s.repo.ListBookingPayments(ctx, bookingID)
}

func (s *PaymentService) ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	return s.repo.ListPaymentsByStatus(ctx, status)
}

func (s *PaymentService) invalidateCalendar(ctx context.Context, roomID int64) {
	if s.calendarCache == nil {
		return
	}
	if err := s.calendarCache.InvalidateRoom(ctx, roomID); err != nil {
		s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("calendar cache invalidation failed")
	}
}

func (s *PaymentService) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Error().Err(err).Msg("notification enqueue failed")
	}
}

func (s *PaymentService) publishBookingEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, bookingPayload(booking)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *PaymentService) publishPaymentEvent(eventType string, payment *models.Payment, reference string) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, paymentPayload(payment, reference)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("payment_id", payment.ID).Msg("publish event error")
	}
}
