package usecase

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	bookingdomain "sqd-agent/internal/booking/domain"
)

// ErrRangeTooLarge is returned when the requested date range exceeds the
// maximum the calculator accepts. Callers should treat it as a client error.
var ErrRangeTooLarge = errors.New("date range cannot exceed 31 days")

const maxRangeDays = 31

// DayOfWeek converts a date to the booking backend's day-of-week convention
// (0=Monday ... 6=Sunday). Go's time.Weekday has Sunday=0, so the value is
// shifted before use; mixing the two conventions silently books the wrong day.
func DayOfWeek(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// ComputeSlots derives the hourly availability slots for every date in the
// inclusive range [startDate, endDate]. endDate may be empty to compute a
// single day. Slots cover whole hours in [StartTime, EndTime) of each matching
// schedule window; a slot is unavailable when a non-cancelled booking on the
// same date overlaps it.
//
// Output order is deterministic: dates ascending, then window order, then hour.
func ComputeSlots(schedules []bookingdomain.ScheduleWindow, bookings []bookingdomain.Booking, startDate, endDate string) ([]bookingdomain.AvailabilitySlot, error) {
	dates, err := dateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	slots := make([]bookingdomain.AvailabilitySlot, 0)
	for _, date := range dates {
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", date, err)
		}
		dow := DayOfWeek(day)

		for _, window := range schedules {
			if window.DayOfWeek != dow || !window.IsAvailable {
				continue
			}
			for _, start := range hourlySlots(window.StartTime, window.EndTime) {
				slots = append(slots, bookingdomain.AvailabilitySlot{
					Date:        date,
					StartTime:   start,
					IsAvailable: !isSlotBooked(start, date, bookings),
				})
			}
		}
	}
	return slots, nil
}

// AvailableOnly filters a slot list down to the bookable ones.
func AvailableOnly(slots []bookingdomain.AvailabilitySlot) []bookingdomain.AvailabilitySlot {
	out := make([]bookingdomain.AvailabilitySlot, 0, len(slots))
	for _, s := range slots {
		if s.IsAvailable {
			out = append(out, s)
		}
	}
	return out
}

// hourlySlots expands a window into whole-hour start times. The end time is a
// boundary, never a bookable start: "15:00"-"19:00" yields 15:00..18:00.
func hourlySlots(startTime, endTime string) []string {
	startHour, ok := parseHour(startTime)
	if !ok {
		return nil
	}
	endHour, ok := parseHour(endTime)
	if !ok {
		return nil
	}

	var out []string
	for hour := startHour; hour < endHour; hour++ {
		out = append(out, fmt.Sprintf("%02d:00", hour))
	}
	return out
}

func parseHour(t string) (int, bool) {
	parts := strings.SplitN(t, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// isSlotBooked reports whether any non-cancelled booking on the same calendar
// date covers the slot. Booking dates may carry a time suffix
// ("2025-01-03T00:00:00"); only the date part is compared.
func isSlotBooked(slot, date string, bookings []bookingdomain.Booking) bool {
	slotDate := datePart(date)
	for _, b := range bookings {
		if datePart(b.Date) != slotDate {
			continue
		}
		if strings.EqualFold(b.Status, "cancelled") {
			continue
		}
		if slot >= b.StartTime && slot < b.EndTime {
			return true
		}
	}
	return false
}

func datePart(date string) string {
	if idx := strings.IndexByte(date, 'T'); idx >= 0 {
		return date[:idx]
	}
	return date
}

// dateRange expands [startDate, endDate] into explicit dates. An empty endDate
// means just startDate. Ranges over maxRangeDays are rejected, not truncated.
func dateRange(startDate, endDate string) ([]string, error) {
	if endDate == "" || endDate == startDate {
		return []string{startDate}, nil
	}

	start, err := time.Parse("2006-01-02", datePart(startDate))
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse("2006-01-02", datePart(endDate))
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s before start date %s", endDate, startDate)
	}
	if inclusiveDays := int(end.Sub(start).Hours()/24) + 1; inclusiveDays > maxRangeDays {
		return nil, ErrRangeTooLarge
	}

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}
