package service

import (
	"context"
	"time"

	"hotelier/internal/domain"
	"hotelier/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBookingByReference(ctx context.Context, ref string) (*models.Booking, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetRoomBookings(ctx context.Context, roomID int64, from, to time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, roomID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, status models.BookingStatus) error {
	return m.Called(ctx, id, v, status).Error(0)
}
func (m *mockRepo) CompleteBookingWithVersion(ctx context.Context, id, v int64, actual time.Time) error {
	return m.Called(ctx, id, v, actual).Error(0)
}
func (m *mockRepo) MarkNoShows(ctx context.Context, today time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetRoom(id int64) (models.Room, bool) {
	args := m.Called(id)
	return args.Get(0).(models.Room), args.Bool(1)
}
func (m *mockRepo) GetRooms() []models.Room {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.Room)
}
func (m *mockRepo) SetRooms(rooms []models.Room) { m.Called(rooms) }
func (m *mockRepo) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *mockRepo) GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *mockRepo) HasPendingPaymentForGuest(ctx context.Context, guestID int64) (bool, error) {
	args := m.Called(ctx, guestID)
	return args.Bool(0), args.Error(1)
}
func (m *mockRepo) GetOrCreatePendingPayment(ctx context.Context, bookingID int64, kind models.PaymentKind, amount decimal.Decimal) (*models.Payment, bool, error) {
	args := m.Called(ctx, bookingID, kind, amount)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Payment), args.Bool(1), args.Error(2)
}
func (m *mockRepo) SetPaymentSession(ctx context.Context, id int64, sessionID, sessionURL string) error {
	return m.Called(ctx, id, sessionID, sessionURL).Error(0)
}
func (m *mockRepo) ExpirePayment(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) RenewPaymentSession(ctx context.Context, id int64, sessionID, sessionURL string) error {
	return m.Called(ctx, id, sessionID, sessionURL).Error(0)
}
func (m *mockRepo) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}
func (m *mockRepo) ListBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}
func (m *mockRepo) ListBookingPaymentsByStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) ([]*models.Payment, error) {
	args := m.Called(ctx, bookingID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}
func (m *mockRepo) ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}
func (m *mockRepo) ApplyPaymentConfirmation(ctx context.Context, sessionID string, now time.Time) (*models.ConfirmationResult, error) {
	args := m.Called(ctx, sessionID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfirmationResult), args.Error(1)
}

type mockCheckout struct {
	mock.Mock
}

func (m *mockCheckout) OpenSession(ctx context.Context, p *models.Payment, b *models.Booking) (domain.CheckoutSession, error) {
	args := m.Called(ctx, p, b)
	return args.Get(0).(domain.CheckoutSession), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockCalendarCache struct {
	mock.Mock
}

func (m *mockCalendarCache) GetCalendar(ctx context.Context, roomID int64, from, to time.Time) ([]models.DayAvailability, error) {
	args := m.Called(ctx, roomID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DayAvailability), args.Error(1)
}
func (m *mockCalendarCache) SetCalendar(ctx context.Context, roomID int64, from, to time.Time, days []models.DayAvailability) error {
	return m.Called(ctx, roomID, from, to, days).Error(0)
}
func (m *mockCalendarCache) InvalidateRoom(ctx context.Context, roomID int64) error {
	return m.Called(ctx, roomID).Error(0)
}

type mockRenewer struct {
	mock.Mock
}

func (m *mockRenewer) RenewExpiredSessions(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}
