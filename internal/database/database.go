package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"hotelier/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// DB is the SQLite storage layer for bookings and payments. Rooms are
// configuration-owned inventory cached in memory for lookups.
type DB struct {
	*sql.DB

	mu         sync.RWMutex
	roomsCache map[int64]models.Room
	rooms      []models.Room

	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// busy_timeout keeps concurrent writers queuing instead of failing
	// with SQLITE_BUSY under per-booking transactions.
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, roomsCache: make(map[int64]models.Room), logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reference TEXT NOT NULL UNIQUE,
            room_id INTEGER NOT NULL,
            guest_id INTEGER NOT NULL,
            guest_name TEXT NOT NULL,
            guest_email TEXT NOT NULL,
            check_in_date TEXT NOT NULL,
            check_out_date TEXT NOT NULL,
            actual_check_out_date TEXT,
            status TEXT NOT NULL,
            price_per_night TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (check_out_date > check_in_date)
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            kind TEXT NOT NULL,
            status TEXT NOT NULL,
            amount TEXT NOT NULL,
            session_id TEXT,
            session_url TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_room_id ON bookings(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_guest_id ON bookings(guest_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_check_in ON bookings(check_in_date)`,

		`CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_session_id ON payments(session_id) WHERE session_id IS NOT NULL AND session_id != ''`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetRooms replaces the in-memory room inventory.
func (db *DB) SetRooms(rooms []models.Room) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.roomsCache = make(map[int64]models.Room, len(rooms))
	for _, room := range rooms {
		db.roomsCache[room.ID] = room
	}
	db.rooms = rooms
}

func (db *DB) GetRoom(id int64) (models.Room, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	room, ok := db.roomsCache[id]
	return room, ok
}

func (db *DB) GetRooms() []models.Room {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]models.Room, len(db.rooms))
	copy(out, db.rooms)
	return out
}

func (db *DB) Close() error {
	return db.DB.Close()
}
