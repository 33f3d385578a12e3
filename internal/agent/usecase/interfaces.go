package usecase

import (
	"context"

	agentdomain "sqd-agent/internal/agent/domain"
	bookingdomain "sqd-agent/internal/booking/domain"
	"sqd-agent/pkg/backend"
)

// Classifier turns an email into a structured intent. Implementations live
// in pkg/ai; the pipeline treats any error as an OTHER classification.
type Classifier interface {
	ClassifyEmail(ctx context.Context, in ClassifyInput) (agentdomain.ClassifiedIntent, error)
}

// ClassifyInput aliases the domain type so pipeline code and classifier
// implementations share one definition.
type ClassifyInput = agentdomain.ClassifyInput

// BookingBackend is the slice of the backend API the pipeline consumes.
// *backend.Client satisfies it; tests substitute fakes.
type BookingBackend interface {
	GetSchedule(ctx context.Context, coachID string) ([]bookingdomain.ScheduleWindow, error)
	GetBookings(ctx context.Context, coachID, startDate, endDate string) ([]bookingdomain.Booking, error)
	CreateBooking(ctx context.Context, req backend.CreateBookingRequest) (string, error)
	LookupPlayerGlobal(ctx context.Context, email string) (*backend.Player, error)
	LookupPlayerForCoach(ctx context.Context, coachID, email string) (*backend.Player, error)
	GetPlayerSchedule(ctx context.Context, playerEmail string) ([]bookingdomain.PlayerSession, error)
	GetCoachEmail(ctx context.Context, coachID string) (string, error)
	LogEmailAction(ctx context.Context, record backend.EmailLogRecord) error
}

// Mailer performs thread-scoped mail actions for one coach's mailbox. The
// watcher binds Gmail credentials before handing a Mailer to the pipeline.
type Mailer interface {
	SendReply(ctx context.Context, threadID, text, recipient, subject string) error
	CreateDraft(ctx context.Context, threadID, text, recipient, subject string) error
	AddLabels(ctx context.Context, threadID string, labels []string) error
}
