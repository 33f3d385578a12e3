package domain

// ScheduleWindow is one recurring weekly availability window from the
// booking backend. DayOfWeek uses the backend convention: 0=Monday ... 6=Sunday.
type ScheduleWindow struct {
	ID          string `json:"id,omitempty"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"` // "15:00"
	EndTime     string `json:"end_time"`   // "19:00"
	IsAvailable bool   `json:"is_available"`
}

// Booking is an existing booking on the coach's calendar. Only bookings
// whose Status is not "cancelled" count toward slot occupancy.
type Booking struct {
	ID        string `json:"id,omitempty"`
	Date      string `json:"booking_date"` // "2025-01-03" or "2025-01-03T00:00:00"
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

// AvailabilitySlot is one hour-aligned bookable unit on a given date,
// derived from the weekly schedule and existing bookings. Never persisted.
type AvailabilitySlot struct {
	Date        string `json:"date"`
	StartTime   string `json:"start_time"`
	IsAvailable bool   `json:"is_available"`
}

// PlayerSession is an upcoming session from a player's point of view,
// used when rendering schedule-check replies.
type PlayerSession struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Time  string `json:"time"`
	Coach string `json:"coach"`
}
