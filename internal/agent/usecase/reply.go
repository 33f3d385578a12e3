package usecase

import (
	"fmt"
	"strings"

	bookingdomain "sqd-agent/internal/booking/domain"
)

// Reply text is template-assembled, never generated: the wording below is
// the product's voice and tests pin the load-bearing fragments.

func scheduleReply(sessions []bookingdomain.PlayerSession) string {
	if len(sessions) == 0 {
		return "Here is your schedule:\nYou have no upcoming sessions scheduled."
	}
	lines := make([]string, 0, len(sessions))
	for _, s := range sessions {
		lines = append(lines, fmt.Sprintf("- %s at %s with Coach %s", s.Date, s.Time, s.Coach))
	}
	return "Here is your schedule:\n" + strings.Join(lines, "\n")
}

func bookedReply(date, bookedStart, requestedTime string, alternatives []bookingdomain.AvailabilitySlot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I have created a booking for %s at %s.", date, bookedStart)
	if requestedTime != "" && requestedTime != bookedStart {
		fmt.Fprintf(&b, "\nYour requested time of %s was not open, so I booked the closest available slot instead.", requestedTime)
	}
	if len(alternatives) > 0 {
		fmt.Fprintf(&b, "\nAlternative times available that day: %s.", joinSlotTimes(alternatives))
	}
	return b.String()
}

func noMatchReply(date, requestedTime string, open []bookingdomain.AvailabilitySlot) string {
	if len(open) == 0 {
		return fmt.Sprintf("Sorry, there are no slots available on %s. Please suggest another day and I will check the schedule.", date)
	}
	asked := requestedTime
	if asked == "" {
		asked = "that time"
	}
	return fmt.Sprintf("Sorry, %s is not available on %s. Available times: %s.", asked, date, joinSlotTimes(open))
}

func registrationReply(registrationURL string) string {
	return fmt.Sprintf(
		"Thanks for reaching out! I couldn't find an account for your email address. "+
			"Please register first at %s and then send your booking request again.", registrationURL)
}

func connectionPendingReply() string {
	return "Thanks for reaching out! Your account exists but is not yet connected to this coach. " +
		"Once the connection is confirmed you will be able to book lessons by email."
}

func joinSlotTimes(slots []bookingdomain.AvailabilitySlot) string {
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, s.StartTime)
	}
	return strings.Join(times, ", ")
}
