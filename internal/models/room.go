package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type RoomType string

const (
	RoomSingle RoomType = "SINGLE"
	RoomDouble RoomType = "DOUBLE"
	RoomSuite  RoomType = "SUITE"
)

// Room is hotel inventory. Rooms are owned by inventory management and
// loaded from configuration; the booking core only reads them.
type Room struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Type          RoomType        `json:"type"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Capacity      int64           `json:"capacity"`
}

type DayAvailability struct {
	Date      time.Time `json:"date"`
	Available bool      `json:"available"`
}
