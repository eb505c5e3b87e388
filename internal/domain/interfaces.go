package domain

import (
	"context"
	"time"

	"hotelier/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// Repository is the storage surface the services depend on.
type Repository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingByReference(ctx context.Context, reference string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetRoomBookings(ctx context.Context, roomID int64, from, to time.Time) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus) error
	CompleteBookingWithVersion(ctx context.Context, id, fromVersion int64, actualCheckOut time.Time) error
	MarkNoShows(ctx context.Context, today time.Time) ([]*models.Booking, error)

	GetRoom(id int64) (models.Room, bool)
	GetRooms() []models.Room
	SetRooms(rooms []models.Room)

	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentBySession(ctx context.Context, sessionID string) (*models.Payment, error)
	HasPendingPaymentForGuest(ctx context.Context, guestID int64) (bool, error)
	GetOrCreatePendingPayment(ctx context.Context, bookingID int64, kind models.PaymentKind, amount decimal.Decimal) (*models.Payment, bool, error)
	SetPaymentSession(ctx context.Context, id int64, sessionID, sessionURL string) error
	ExpirePayment(ctx context.Context, id int64) error
	RenewPaymentSession(ctx context.Context, id int64, sessionID, sessionURL string) error
	ListPayments(ctx context.Context) ([]*models.Payment, error)
	ListBookingPayments(ctx context.Context, bookingID int64) ([]*models.Payment, error)
	ListBookingPaymentsByStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) ([]*models.Payment, error)
	ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error)
	ApplyPaymentConfirmation(ctx context.Context, sessionID string, now time.Time) (*models.ConfirmationResult, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// CheckoutSession is an externally hosted payment page for one payment.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutProvider opens hosted checkout sessions with the payment
// gateway.
type CheckoutProvider interface {
	OpenSession(ctx context.Context, payment *models.Payment, booking *models.Booking) (CheckoutSession, error)
}

// Notifier delivers staff-facing messages. Implementations may deliver
// asynchronously; Notify only guarantees the message was accepted.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramSender is the subset of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// CalendarCache caches per-room availability calendars. Implementations
// return ErrCacheMiss from Get when the range is not cached.
type CalendarCache interface {
	GetCalendar(ctx context.Context, roomID int64, from, to time.Time) ([]models.DayAvailability, error)
	SetCalendar(ctx context.Context, roomID int64, from, to time.Time, days []models.DayAvailability) error
	InvalidateRoom(ctx context.Context, roomID int64) error
}
