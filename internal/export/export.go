// Package export produces xlsx occupancy reports for staff.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hotelier/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Occupancy"
	dateLayout = "2006-01-02"
)

// BookingLister is the data surface the exporter reads from.
type BookingLister interface {
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]*models.Booking, error)
	GetRooms() []models.Room
}

type Exporter struct {
	data   BookingLister
	dir    string
	logger *zerolog.Logger
}

func NewExporter(data BookingLister, dir string, logger *zerolog.Logger) *Exporter {
	return &Exporter{data: data, dir: dir, logger: logger}
}

// ExportOccupancy writes a rooms-by-dates grid for [from, to] inclusive
// and returns the file path. Each cell lists the bookings touching that
// room and day, colored by lifecycle stage.
func (e *Exporter) ExportOccupancy(ctx context.Context, from, to time.Time) (string, error) {
	from = models.DateOnly(from)
	to = models.DateOnly(to)
	if to.Before(from) {
		return "", fmt.Errorf("invalid export range: %s after %s", from.Format(dateLayout), to.Format(dateLayout))
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.data.ListBookings(ctx, models.BookingFilter{From: from, To: to})
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}
	rooms := e.data.GetRooms()

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))

	dateCols := e.writeDateHeaders(f, from, to)
	e.writeRoomHeaders(f, rooms)
	e.writeOccupancy(f, rooms, bookings, dateCols)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 20)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("occupancy_%s_to_%s.xlsx", from.Format(dateLayout), to.Format(dateLayout))
	filePath := filepath.Join(e.dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("occupancy report created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, from, to time.Time) map[string]int {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})

	col := 2
	dateCols := make(map[string]int)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, d.Format("02.01"))
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		dateCols[d.Format(dateLayout)] = col
		col++
	}
	return dateCols
}

func (e *Exporter) writeRoomHeaders(f *excelize.File, rooms []models.Room) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	for i, room := range rooms {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%s)", room.Number, room.Type))
		_ = f.SetCellStyle(sheetName, cell, cell, style)
	}
}

func (e *Exporter) writeOccupancy(f *excelize.File, rooms []models.Room, bookings []*models.Booking, dateCols map[string]int) {
	byRoom := make(map[int64][]*models.Booking)
	for _, b := range bookings {
		byRoom[b.RoomID] = append(byRoom[b.RoomID], b)
	}

	for i, room := range rooms {
		row := i + 3
		for dateKey, col := range dateCols {
			day, err := time.Parse(dateLayout, dateKey)
			if err != nil {
				continue
			}

			occupying := bookingsOnDay(byRoom[room.ID], day)
			cell, _ := excelize.CoordinatesToCellName(col, row)

			if len(occupying) == 0 {
				_ = f.SetCellValue(sheetName, cell, "Free")
				if styleID, err := cellStyle(f, "#FFFFFF"); err == nil {
					_ = f.SetCellStyle(sheetName, cell, cell, styleID)
				}
				continue
			}

			var text string
			for _, b := range occupying {
				text += fmt.Sprintf("%s %s (%s)\n", statusIcon(b.Status), b.GuestName, b.Reference)
			}
			_ = f.SetCellValue(sheetName, cell, text)

			if styleID, err := cellStyle(f, statusColor(occupying)); err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
		}
	}
}

// bookingsOnDay keeps bookings in occupying statuses whose half-open
// stay interval covers the day.
func bookingsOnDay(bookings []*models.Booking, day time.Time) []*models.Booking {
	var out []*models.Booking
	for _, b := range bookings {
		if !b.Status.Occupies() {
			continue
		}
		if !day.Before(models.DateOnly(b.CheckInDate)) && day.Before(models.DateOnly(b.CheckOutDate)) {
			out = append(out, b)
		}
	}
	return out
}

func statusIcon(status models.BookingStatus) string {
	switch status {
	case models.StatusActive, models.StatusCompleted:
		return "✅"
	case models.StatusBooked:
		return "🕐"
	case models.StatusCancelled, models.StatusNoShow:
		return "❌"
	}
	return "❓"
}

// statusColor picks the cell fill: green once the guest is in the
// house, yellow while the stay is only reserved.
func statusColor(bookings []*models.Booking) string {
	for _, b := range bookings {
		if b.Status == models.StatusActive {
			return "#C6EFCE"
		}
	}
	return "#FFEB9C"
}

func cellStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
}
