// Package notify formats and delivers staff-facing Telegram messages.
package notify

import (
	"fmt"
	"time"

	"hotelier/internal/models"
)

const dateLayout = "2006-01-02"

// BookingCreatedMessage announces a new booking to staff.
func BookingCreatedMessage(b *models.Booking, room models.Room) string {
	return fmt.Sprintf(
		"🆕 New booking created\n"+
			"Guest: %s\n"+
			"Room: %s\n"+
			"Check-in: %s\n"+
			"Check-out: %s\n"+
			"Price per night: %s",
		b.GuestEmail,
		room.Number,
		b.CheckInDate.Format(dateLayout),
		b.CheckOutDate.Format(dateLayout),
		b.PricePerNight.StringFixed(2),
	)
}

// BookingCancelledMessage announces a cancellation.
func BookingCancelledMessage(b *models.Booking, room models.Room) string {
	return fmt.Sprintf(
		"❌ Booking cancelled\n"+
			"Guest: %s\n"+
			"Room: %s\n"+
			"Dates: %s - %s",
		b.GuestEmail,
		room.Number,
		b.CheckInDate.Format(dateLayout),
		b.CheckOutDate.Format(dateLayout),
	)
}

// PaymentSucceededMessage announces a settled payment.
func PaymentSucceededMessage(b *models.Booking, room models.Room, p *models.Payment) string {
	return fmt.Sprintf(
		"✅ Payment successful\n"+
			"Booking: %s\n"+
			"Guest: %s\n"+
			"Room: %s\n"+
			"Check-in: %s\n"+
			"Check-out: %s\n"+
			"Amount paid: $%s",
		b.Reference,
		b.GuestEmail,
		room.Number,
		b.CheckInDate.Format(dateLayout),
		b.CheckOutDate.Format(dateLayout),
		p.Amount.StringFixed(2),
	)
}

// NoShowMessage alerts staff that a guest never arrived.
func NoShowMessage(b *models.Booking, room models.Room, markedAt time.Time) string {
	return fmt.Sprintf(
		"⚠️ NO SHOW ALERT ⚠️\n"+
			"\n"+
			"📋 Booking: %s\n"+
			"🚪 Room: %s (%s)\n"+
			"👤 Guest: %s\n"+
			"📧 Email: %s\n"+
			"📅 Check-in date: %s\n"+
			"📅 Check-out date: %s\n"+
			"💰 Price per night: $%s\n"+
			"📊 Status: %s\n"+
			"\n"+
			"⏰ Marked at: %s",
		b.Reference,
		room.Number,
		room.Type,
		b.GuestName,
		b.GuestEmail,
		b.CheckInDate.Format(dateLayout),
		b.CheckOutDate.Format(dateLayout),
		b.PricePerNight.StringFixed(2),
		b.Status,
		markedAt.Format(dateLayout),
	)
}
