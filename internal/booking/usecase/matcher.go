package usecase

import (
	"fmt"
	"strconv"
	"strings"

	bookingdomain "sqd-agent/internal/booking/domain"
)

// SlotRequest carries the time preference of one booking sub-request after
// date normalization. Time fields that failed the precise-time check must be
// cleared by the caller before matching.
type SlotRequest struct {
	Time           string // exact preference, "HH:MM", optional
	TimeRangeStart string // range preference, optional
	TimeRangeEnd   string // defaults to end of day when range start is set
	DateResolved   bool   // false forces first-available matching
}

// SelectSlot picks exactly one slot to book from the day's available slots,
// applying the ordered fallback tiers:
//
//  1. exact: a slot whose start equals the requested time
//  2. range: the earliest slot inside [TimeRangeStart, TimeRangeEnd)
//  3. first available: the earliest slot on the day
//
// The tiers encode the product policy of always securing a time when any
// slot exists, rather than reporting unavailability because a stated
// preference could not be met. Returns nil when no slot is available at all.
func SelectSlot(slots []bookingdomain.AvailabilitySlot, req SlotRequest) *bookingdomain.AvailabilitySlot {
	open := AvailableOnly(slots)
	if len(open) == 0 {
		return nil
	}

	if req.DateResolved {
		if req.Time != "" {
			for i := range open {
				if open[i].StartTime == req.Time {
					return &open[i]
				}
			}
		}

		if req.TimeRangeStart != "" {
			end := req.TimeRangeEnd
			if end == "" {
				end = "23:59"
			}
			if s := earliestInRange(open, req.TimeRangeStart, end); s != nil {
				return s
			}
		}
	}

	return earliest(open)
}

// BookingEndTime computes the end of a one-hour booking starting at start.
// Fixed duration is a product simplification; requests carry no duration.
func BookingEndTime(start string) string {
	parts := strings.SplitN(start, ":", 2)
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return start
	}
	return fmt.Sprintf("%02d:00", (hour+1)%24)
}

// Alternatives lists up to max available slots excluding the one already
// booked, preserving slot order.
func Alternatives(slots []bookingdomain.AvailabilitySlot, booked *bookingdomain.AvailabilitySlot, max int) []bookingdomain.AvailabilitySlot {
	var out []bookingdomain.AvailabilitySlot
	for _, s := range AvailableOnly(slots) {
		if booked != nil && s.Date == booked.Date && s.StartTime == booked.StartTime {
			continue
		}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	return out
}

func earliestInRange(slots []bookingdomain.AvailabilitySlot, start, end string) *bookingdomain.AvailabilitySlot {
	var best *bookingdomain.AvailabilitySlot
	for i := range slots {
		s := &slots[i]
		if s.StartTime < start || s.StartTime >= end {
			continue
		}
		if best == nil || s.StartTime < best.StartTime {
			best = s
		}
	}
	return best
}

func earliest(slots []bookingdomain.AvailabilitySlot) *bookingdomain.AvailabilitySlot {
	var best *bookingdomain.AvailabilitySlot
	for i := range slots {
		if best == nil || slots[i].StartTime < best.StartTime {
			best = &slots[i]
		}
	}
	return best
}
