package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	agentdomain "sqd-agent/internal/agent/domain"
	bookingdomain "sqd-agent/internal/booking/domain"
	bookingusecase "sqd-agent/internal/booking/usecase"
	"sqd-agent/pkg/backend"
)

// maxAlternatives bounds how many open slots a reply may list.
const maxAlternatives = 4

// Orchestrator runs the per-email decision pipeline: resolve the sender,
// classify, execute schedule checks and bookings, dispatch the reply, and
// always label the thread. One instance serves all coaches; every run is
// stack-local.
type Orchestrator struct {
	backend         BookingBackend
	classifier      Classifier
	registrationURL string
	now             func() time.Time
}

func NewOrchestrator(b BookingBackend, c Classifier, registrationURL string) *Orchestrator {
	return &Orchestrator{
		backend:         b,
		classifier:      c,
		registrationURL: registrationURL,
		now:             time.Now,
	}
}

// ProcessInput is one pipeline run: one inbound email for one coach.
type ProcessInput struct {
	CoachID  string
	Email    agentdomain.InboundEmail
	Mode     agentdomain.HandlingMode
	Override agentdomain.AdminOverride
	Mailer   Mailer
}

// ProcessEmail runs the pipeline to completion and returns the outcome. It
// never returns an error: failures after classification are contained here,
// flip the outcome to review-pending, and still reach the labeling step.
func (o *Orchestrator) ProcessEmail(ctx context.Context, in ProcessInput) agentdomain.Outcome {
	outcome := agentdomain.Outcome{}

	// Labels are applied on every exit path, and a labeling failure never
	// escapes: the thread-level label set is the coach's only failure signal.
	defer func() {
		if err := in.Mailer.AddLabels(ctx, in.Email.ThreadID, outcome.Labels()); err != nil {
			log.Printf("[Agent] Failed to label thread %s: %v", in.Email.ThreadID, err)
		}
	}()

	identity := ResolveIdentity(ctx, o.backend, in.CoachID, in.Email.Sender)

	analysis, err := o.classifier.ClassifyEmail(ctx, ClassifyInput{
		Subject:  in.Email.Subject,
		Body:     in.Email.Body,
		Sender:   in.Email.Sender,
		CoachID:  in.CoachID,
		PlayerID: identity.PlayerID,
	})
	if err != nil {
		log.Printf("[Agent] Classification failed for thread %s, treating as OTHER: %v", in.Email.ThreadID, err)
		analysis = agentdomain.OtherIntent()
	} else if err := analysis.Validate(); err != nil {
		log.Printf("[Agent] Malformed classifier response for thread %s, treating as OTHER: %v", in.Email.ThreadID, err)
		analysis = agentdomain.OtherIntent()
	}

	if analysis.PrimaryIntent == agentdomain.IntentOther {
		log.Printf("[Agent] Skipping thread %s from %s - intent OTHER", in.Email.ThreadID, in.Email.Sender)
		outcome.Skipped = true
		return outcome
	}

	log.Printf("[Agent] Thread %s: intent %s (confidence %.2f, %d sub-requests)",
		in.Email.ThreadID, analysis.PrimaryIntent, analysis.Confidence, len(analysis.SubRequests))

	if err := o.execute(ctx, in, identity, analysis, &outcome); err != nil {
		log.Printf("[Agent] Pipeline error on thread %s: %v", in.Email.ThreadID, err)
		outcome.NeedsReview = true
	}
	return outcome
}

// execute runs the intent executors and dispatch; any returned error is
// captured at the ProcessEmail boundary as review-pending.
func (o *Orchestrator) execute(ctx context.Context, in ProcessInput, identity agentdomain.PlayerIdentity, analysis agentdomain.ClassifiedIntent, outcome *agentdomain.Outcome) error {
	intent := analysis.PrimaryIntent

	if intent == agentdomain.IntentCheckSchedule || intent == agentdomain.IntentMultiIntent {
		if err := o.executeScheduleCheck(ctx, in, outcome); err != nil {
			return err
		}
	}

	if intent == agentdomain.IntentBookLesson || intent == agentdomain.IntentMultiIntent {
		if err := o.executeBooking(ctx, in, identity, analysis, outcome); err != nil {
			return err
		}
	}

	// Intents without an executor ride on the classifier's suggested draft
	// and always go to the coach for review.
	if outcome.ReplyText == "" && analysis.DraftSuggestion != nil && analysis.DraftSuggestion.Body != "" {
		outcome.AppendReply(analysis.DraftSuggestion.Body)
		outcome.NeedsReview = true
	}

	if outcome.ReplyText == "" {
		// Nothing actionable was extracted; leave the thread for the coach.
		outcome.NeedsReview = true
		return nil
	}

	return o.dispatchReply(ctx, in, outcome)
}

func (o *Orchestrator) executeScheduleCheck(ctx context.Context, in ProcessInput, outcome *agentdomain.Outcome) error {
	address := agentdomain.ExtractAddress(in.Email.Sender)
	sessions, err := o.backend.GetPlayerSchedule(ctx, address)
	if err != nil {
		return fmt.Errorf("schedule lookup failed: %w", err)
	}
	outcome.AppendReply(scheduleReply(sessions))
	return nil
}

func (o *Orchestrator) executeBooking(ctx context.Context, in ProcessInput, identity agentdomain.PlayerIdentity, analysis agentdomain.ClassifiedIntent, outcome *agentdomain.Outcome) error {
	for _, req := range analysis.SubRequests {
		if req.Intent != agentdomain.IntentBookLesson || req.Date == "" {
			continue
		}

		// Unknown and unconnected senders get a fixed reply; the booking
		// collaborators are never touched for them.
		switch identity.State {
		case agentdomain.IdentityUnknown:
			outcome.ReplyText = registrationReply(o.registrationURL)
			return nil
		case agentdomain.IdentityRegisteredUnconnected:
			outcome.ReplyText = connectionPendingReply()
			return nil
		}

		if err := o.bookOne(ctx, in, identity, req, outcome); err != nil {
			return err
		}
	}
	return nil
}

// bookOne resolves one dated sub-request against the coach's calendar and
// either books the matched slot or records a no-availability reply.
func (o *Orchestrator) bookOne(ctx context.Context, in ProcessInput, identity agentdomain.PlayerIdentity, req agentdomain.SubRequest, outcome *agentdomain.Outcome) error {
	date, resolved := bookingusecase.NormalizeDate(req.Date, o.now())
	log.Printf("[Agent] Booking attempt for coach %s: date %q -> %q (resolved=%v)", in.CoachID, req.Date, date, resolved)

	slots, err := o.fetchSlots(ctx, in.CoachID, date)
	if err != nil {
		return fmt.Errorf("availability fetch failed for %s: %w", date, err)
	}

	slotReq := bookingusecase.SlotRequest{DateResolved: resolved}
	if bookingusecase.IsPreciseTime(req.Time) {
		slotReq.Time = req.Time
	}
	if bookingusecase.IsPreciseTime(req.TimeRangeStart) {
		slotReq.TimeRangeStart = req.TimeRangeStart
		if bookingusecase.IsPreciseTime(req.TimeRangeEnd) {
			slotReq.TimeRangeEnd = req.TimeRangeEnd
		}
	}

	matched := bookingusecase.SelectSlot(slots, slotReq)
	if matched == nil {
		outcome.AppendReply(noMatchReply(date, slotReq.Time, bookingusecase.Alternatives(slots, nil, maxAlternatives)))
		outcome.NeedsReview = true
		return nil
	}

	endTime := bookingusecase.BookingEndTime(matched.StartTime)
	bookingID, err := o.backend.CreateBooking(ctx, backend.CreateBookingRequest{
		CoachID:   in.CoachID,
		PlayerID:  identity.PlayerID,
		Date:      matched.Date,
		StartTime: matched.StartTime,
		EndTime:   endTime,
		Status:    "confirmed",
	})
	if err != nil {
		return fmt.Errorf("booking creation failed for %s %s: %w", matched.Date, matched.StartTime, err)
	}

	outcome.BookingsCreated = append(outcome.BookingsCreated, agentdomain.BookingRef{
		ID:        bookingID,
		Date:      matched.Date,
		StartTime: matched.StartTime,
		EndTime:   endTime,
	})
	outcome.AppendReply(bookedReply(matched.Date, matched.StartTime, slotReq.Time,
		bookingusecase.Alternatives(slots, matched, maxAlternatives)))
	return nil
}

// fetchSlots computes the day's slots from the weekly schedule template and
// existing bookings. There is no lock between this read and the booking
// write; two concurrent runs can book the same slot (see DESIGN.md).
func (o *Orchestrator) fetchSlots(ctx context.Context, coachID, date string) ([]bookingdomain.AvailabilitySlot, error) {
	schedule, err := o.backend.GetSchedule(ctx, coachID)
	if err != nil {
		return nil, err
	}
	bookings, err := o.backend.GetBookings(ctx, coachID, date, date)
	if err != nil {
		return nil, err
	}
	return bookingusecase.ComputeSlots(schedule, bookings, date, "")
}

func (o *Orchestrator) dispatchReply(ctx context.Context, in ProcessInput, outcome *agentdomain.Outcome) error {
	recipient := agentdomain.ExtractAddress(in.Email.Sender)
	originalSender := ""
	if in.Override.Enabled && in.Override.Email != "" {
		originalSender = recipient
		recipient = in.Override.Email
	}

	coachEmail, err := o.backend.GetCoachEmail(ctx, in.CoachID)
	if err != nil {
		return fmt.Errorf("coach email lookup failed: %w", err)
	}

	emailType := "drafted"
	if in.Mode == agentdomain.ModeSendFullReply {
		if err := in.Mailer.SendReply(ctx, in.Email.ThreadID, outcome.ReplyText, recipient, in.Email.Subject); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		outcome.Sent = true
		emailType = "sent"
		log.Printf("[Agent] [ACTION: SENT] Replied to %s on thread %s", recipient, in.Email.ThreadID)
	} else {
		if err := in.Mailer.CreateDraft(ctx, in.Email.ThreadID, outcome.ReplyText, recipient, in.Email.Subject); err != nil {
			return fmt.Errorf("draft creation failed: %w", err)
		}
		outcome.Drafted = true
		outcome.NeedsReview = true
		log.Printf("[Agent] [ACTION: DRAFT] Created draft for %s on thread %s", recipient, in.Email.ThreadID)
	}

	record := backend.EmailLogRecord{
		CoachID:             in.CoachID,
		CoachEmail:          coachEmail,
		RecipientEmail:      recipient,
		OriginalSender:      originalSender,
		Subject:             in.Email.Subject,
		Body:                outcome.ReplyText,
		EmailType:           emailType,
		HandlingMode:        string(in.Mode),
		AdminOverrideActive: in.Override.Enabled,
		ThreadID:            in.Email.ThreadID,
	}
	if err := o.backend.LogEmailAction(ctx, record); err != nil {
		log.Printf("[Agent] Audit log write failed for thread %s: %v", in.Email.ThreadID, err)
	}
	return nil
}
