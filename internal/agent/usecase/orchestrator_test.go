package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	agentdomain "sqd-agent/internal/agent/domain"
	bookingdomain "sqd-agent/internal/booking/domain"
	"sqd-agent/pkg/backend"
)

type fakeBackend struct {
	schedule      []bookingdomain.ScheduleWindow
	bookings      []bookingdomain.Booking
	sessions      []bookingdomain.PlayerSession
	globalPlayer  *backend.Player
	coachPlayer   *backend.Player
	lookupErr     error
	scheduleErr   error
	created       []backend.CreateBookingRequest
	createErr     error
	logged        []backend.EmailLogRecord
	coachEmail    string
	coachEmailErr error
}

func (f *fakeBackend) GetSchedule(ctx context.Context, coachID string) ([]bookingdomain.ScheduleWindow, error) {
	return f.schedule, f.scheduleErr
}

func (f *fakeBackend) GetBookings(ctx context.Context, coachID, startDate, endDate string) ([]bookingdomain.Booking, error) {
	return f.bookings, nil
}

func (f *fakeBackend) CreateBooking(ctx context.Context, req backend.CreateBookingRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, req)
	return "booking-1", nil
}

func (f *fakeBackend) LookupPlayerGlobal(ctx context.Context, email string) (*backend.Player, error) {
	return f.globalPlayer, f.lookupErr
}

func (f *fakeBackend) LookupPlayerForCoach(ctx context.Context, coachID, email string) (*backend.Player, error) {
	return f.coachPlayer, f.lookupErr
}

func (f *fakeBackend) GetPlayerSchedule(ctx context.Context, playerEmail string) ([]bookingdomain.PlayerSession, error) {
	return f.sessions, nil
}

func (f *fakeBackend) GetCoachEmail(ctx context.Context, coachID string) (string, error) {
	if f.coachEmailErr != nil {
		return "", f.coachEmailErr
	}
	if f.coachEmail == "" {
		return "coach@club.example", nil
	}
	return f.coachEmail, nil
}

func (f *fakeBackend) LogEmailAction(ctx context.Context, record backend.EmailLogRecord) error {
	f.logged = append(f.logged, record)
	return nil
}

type fakeClassifier struct {
	analysis agentdomain.ClassifiedIntent
	err      error
	gotInput ClassifyInput
}

func (f *fakeClassifier) ClassifyEmail(ctx context.Context, in ClassifyInput) (agentdomain.ClassifiedIntent, error) {
	f.gotInput = in
	return f.analysis, f.err
}

type fakeMailer struct {
	sent      []string // reply bodies
	drafted   []string
	recipient string
	labels    []string
	sendErr   error
	labelErr  error
}

func (f *fakeMailer) SendReply(ctx context.Context, threadID, text, recipient, subject string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	f.recipient = recipient
	return nil
}

func (f *fakeMailer) CreateDraft(ctx context.Context, threadID, text, recipient, subject string) error {
	f.drafted = append(f.drafted, text)
	f.recipient = recipient
	return nil
}

func (f *fakeMailer) AddLabels(ctx context.Context, threadID string, labels []string) error {
	f.labels = append([]string{}, labels...)
	return f.labelErr
}

func connectedPlayer() *backend.Player {
	return &backend.Player{ID: "player_123", Email: "player@test.com"}
}

func inbound() agentdomain.InboundEmail {
	return agentdomain.InboundEmail{
		Sender:   "Player One <player@test.com>",
		Subject:  "Lessons",
		Body:     "Hi coach",
		ThreadID: "thread-123",
	}
}

func runPipeline(t *testing.T, b *fakeBackend, c *fakeClassifier, m *fakeMailer, mode agentdomain.HandlingMode, override agentdomain.AdminOverride) agentdomain.Outcome {
	t.Helper()
	o := NewOrchestrator(b, c, "https://app.example/register")
	return o.ProcessEmail(context.Background(), ProcessInput{
		CoachID:  "coach_123",
		Email:    inbound(),
		Mode:     mode,
		Override: override,
		Mailer:   m,
	})
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

func TestCheckScheduleSendsReplyAndTagsHandled(t *testing.T) {
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		sessions: []bookingdomain.PlayerSession{
			{Date: "2025-01-01", Time: "10:00", Coach: "Nick"},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentCheckSchedule,
		Confidence:    0.95,
	}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "2025-01-01 at 10:00") {
		t.Fatalf("expected sent reply mentioning the session, got %+v", m.sent)
	}
	if c.gotInput.PlayerID != "player_123" {
		t.Fatalf("resolved player id must be threaded into classification, got %q", c.gotInput.PlayerID)
	}
	if !hasLabel(m.labels, agentdomain.LabelRead) || !hasLabel(m.labels, agentdomain.LabelHandled) {
		t.Fatalf("expected read+handled labels, got %v", m.labels)
	}
	if out.NeedsReview {
		t.Fatalf("clean schedule check must not need review")
	}
}

func TestCheckScheduleEmptyCalendar(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer(), coachPlayer: connectedPlayer()}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: agentdomain.IntentCheckSchedule, Confidence: 0.9}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "no upcoming sessions") {
		t.Fatalf("expected empty-schedule reply, got %+v", m.sent)
	}
}

func TestBookLessonExactSlot(t *testing.T) {
	// 2025-01-02 is a Thursday (day 3, Monday=0).
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		schedule: []bookingdomain.ScheduleWindow{
			{DayOfWeek: 3, StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-02", Time: "11:00"},
		},
	}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(b.created) != 1 {
		t.Fatalf("expected one booking, got %d", len(b.created))
	}
	created := b.created[0]
	if created.Date != "2025-01-02" || created.StartTime != "11:00" || created.EndTime != "12:00" {
		t.Fatalf("unexpected booking %+v", created)
	}
	if created.PlayerID != "player_123" {
		t.Fatalf("booking must carry resolved player id, got %q", created.PlayerID)
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "I have created a booking for 2025-01-02 at 11:00") {
		t.Fatalf("expected confirmation reply, got %+v", m.sent)
	}
	if len(out.BookingsCreated) != 1 {
		t.Fatalf("outcome must record the booking")
	}
	if !hasLabel(m.labels, agentdomain.LabelHandled) {
		t.Fatalf("expected handled label, got %v", m.labels)
	}
}

func TestBookLessonRangeFallsToEarliestInRange(t *testing.T) {
	// 2025-01-03 is a Friday; coach works 15:00-19:00. A morning-to-evening
	// range books 15:00 and mentions the remaining alternatives.
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		schedule: []bookingdomain.ScheduleWindow{
			{DayOfWeek: 4, StartTime: "15:00", EndTime: "19:00", IsAvailable: true},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.95,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-03", TimeRangeStart: "06:00", TimeRangeEnd: "18:00"},
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(b.created) != 1 || b.created[0].StartTime != "15:00" {
		t.Fatalf("expected booking at 15:00, got %+v", b.created)
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "Alternative times available") {
		t.Fatalf("expected alternatives in reply, got %+v", m.sent)
	}
	if strings.Count(m.sent[0], "15:00") != 1 {
		t.Fatalf("booked slot must not appear among alternatives: %s", m.sent[0])
	}
}

func TestBookLessonAllBusyDraftsAndTagsReview(t *testing.T) {
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		schedule: []bookingdomain.ScheduleWindow{
			{DayOfWeek: 4, StartTime: "14:00", EndTime: "16:00", IsAvailable: true},
		},
		bookings: []bookingdomain.Booking{
			{Date: "2025-01-03", StartTime: "14:00", EndTime: "16:00", Status: "confirmed"},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-03", Time: "14:00"},
		},
	}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeDraftOnly, agentdomain.AdminOverride{})

	if len(b.created) != 0 {
		t.Fatalf("no booking should be created when everything is busy")
	}
	if len(m.sent) != 0 {
		t.Fatalf("draft mode must never send")
	}
	if len(m.drafted) != 1 || !strings.Contains(m.drafted[0], "Sorry") {
		t.Fatalf("expected apologetic draft, got %+v", m.drafted)
	}
	if !hasLabel(m.labels, agentdomain.LabelReviewPending) || hasLabel(m.labels, agentdomain.LabelHandled) {
		t.Fatalf("expected review-pending only, got %v", m.labels)
	}
	if !out.NeedsReview {
		t.Fatalf("failed booking must need review")
	}
}

func TestBookLessonZeroSlotsThatDay(t *testing.T) {
	// Schedule has no window on the requested weekday at all.
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		schedule: []bookingdomain.ScheduleWindow{
			{DayOfWeek: 0, StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-03", Time: "10:00"},
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "no slots available") {
		t.Fatalf("expected literal no-slots message, got %+v", m.sent)
	}
	if !hasLabel(m.labels, agentdomain.LabelReviewPending) {
		t.Fatalf("expected review-pending, got %v", m.labels)
	}
}

func TestUnknownPlayerGetsRegistrationInvite(t *testing.T) {
	b := &fakeBackend{} // no player anywhere
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-04", Time: "10:00"},
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(b.created) != 0 {
		t.Fatalf("createBooking must never run for unknown players")
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "register") {
		t.Fatalf("expected registration invite, got %+v", m.sent)
	}
}

func TestRegisteredUnconnectedPlayerGetsPendingReply(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer()} // exists globally, not connected
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-04", Time: "10:00"},
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(b.created) != 0 {
		t.Fatalf("createBooking must never run for unconnected players")
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "not yet connected") {
		t.Fatalf("expected connection-pending reply, got %+v", m.sent)
	}
}

func TestOtherIntentOnlyMarksRead(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer(), coachPlayer: connectedPlayer()}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: agentdomain.IntentOther}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 0 || len(m.drafted) != 0 {
		t.Fatalf("OTHER emails are never replied to or drafted")
	}
	if len(m.labels) != 1 || m.labels[0] != agentdomain.LabelRead {
		t.Fatalf("expected only the read label, got %v", m.labels)
	}
	if !out.Skipped {
		t.Fatalf("outcome should record the skip")
	}
}

func TestClassifierFailureDegradesToOther(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer(), coachPlayer: connectedPlayer()}
	c := &fakeClassifier{err: errors.New("model unavailable")}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 0 || len(m.drafted) != 0 {
		t.Fatalf("classification failure must produce silence")
	}
	if len(m.labels) != 1 || m.labels[0] != agentdomain.LabelRead {
		t.Fatalf("expected only the read label, got %v", m.labels)
	}
	if !out.Skipped {
		t.Fatalf("degraded classification should skip")
	}
}

func TestMalformedClassifierResponseDegradesToOther(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer(), coachPlayer: connectedPlayer()}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: "BUY_RACKET"}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if !out.Skipped || len(m.sent) != 0 {
		t.Fatalf("unknown intent values must degrade to OTHER")
	}
}

func TestDispatchFailureStillLabelsReviewPending(t *testing.T) {
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		sessions: []bookingdomain.PlayerSession{
			{Date: "2025-01-01", Time: "10:00", Coach: "Nick"},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: agentdomain.IntentCheckSchedule, Confidence: 0.9}}
	m := &fakeMailer{sendErr: errors.New("smtp down")}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if !hasLabel(m.labels, agentdomain.LabelReviewPending) {
		t.Fatalf("dispatch failure must end review-pending, got %v", m.labels)
	}
	if out.Sent {
		t.Fatalf("outcome must not claim a send that failed")
	}
}

func TestLabelingFailureIsSwallowed(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer(), coachPlayer: connectedPlayer()}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: agentdomain.IntentOther}}
	m := &fakeMailer{labelErr: errors.New("label quota")}

	// Must not panic or surface the labeling error.
	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})
	if !out.Skipped {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestAdminOverrideRedirectsDeliveryOnly(t *testing.T) {
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		sessions: []bookingdomain.PlayerSession{
			{Date: "2025-01-01", Time: "10:00", Coach: "Nick"},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: agentdomain.IntentCheckSchedule, Confidence: 0.9}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply,
		agentdomain.AdminOverride{Enabled: true, Email: "review@club.example"})

	if m.recipient != "review@club.example" {
		t.Fatalf("expected delivery redirect, got %q", m.recipient)
	}
	if len(b.logged) != 1 {
		t.Fatalf("expected one audit record, got %d", len(b.logged))
	}
	rec := b.logged[0]
	if rec.OriginalSender != "player@test.com" || !rec.AdminOverrideActive {
		t.Fatalf("audit must preserve the original sender, got %+v", rec)
	}
}

func TestMultiIntentCombinesScheduleAndBooking(t *testing.T) {
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		sessions: []bookingdomain.PlayerSession{
			{Date: "2025-01-01", Time: "10:00", Coach: "Nick"},
		},
		schedule: []bookingdomain.ScheduleWindow{
			{DayOfWeek: 4, StartTime: "15:00", EndTime: "17:00", IsAvailable: true},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentMultiIntent,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-03", Time: "15:00"},
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 1 {
		t.Fatalf("expected one combined reply, got %+v", m.sent)
	}
	reply := m.sent[0]
	if !strings.Contains(reply, "Here is your schedule") || !strings.Contains(reply, "I have created a booking") {
		t.Fatalf("combined reply missing a section: %s", reply)
	}
	if len(b.created) != 1 {
		t.Fatalf("expected one booking from the multi-intent email")
	}
}

func TestUnsupportedIntentUsesDraftSuggestion(t *testing.T) {
	b := &fakeBackend{globalPlayer: connectedPlayer(), coachPlayer: connectedPlayer()}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentSignupClinic,
		Confidence:    0.8,
		DraftSuggestion: &agentdomain.DraftSuggestion{
			Kind: agentdomain.DraftClarificationNeeded,
			Body: "Which clinic date works for you?",
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "Which clinic date") {
		t.Fatalf("expected suggested draft to be used, got %+v", m.sent)
	}
	if !hasLabel(m.labels, agentdomain.LabelReviewPending) {
		t.Fatalf("suggested drafts always need review, got %v", m.labels)
	}
}

func TestAvailabilityFetchFailureTagsReviewPending(t *testing.T) {
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		scheduleErr:  errors.New("backend timeout"),
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-03", Time: "10:00"},
		},
	}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(b.created) != 0 {
		t.Fatalf("no booking may be attempted without availability data")
	}
	if len(m.sent) != 0 || len(m.drafted) != 0 {
		t.Fatalf("availability failure must produce silence, got sent=%v drafted=%v", m.sent, m.drafted)
	}
	if !out.NeedsReview {
		t.Fatalf("availability failure must end review-pending")
	}
	want := []string{agentdomain.LabelRead, agentdomain.LabelReviewPending}
	if len(m.labels) != 2 || m.labels[0] != want[0] || m.labels[1] != want[1] {
		t.Fatalf("expected labels %v, got %v", want, m.labels)
	}
}

func TestBookingCreationFailureTagsReviewPending(t *testing.T) {
	// 2025-01-03 is a Friday (day 4): the slot matches, only the write fails.
	b := &fakeBackend{
		globalPlayer: connectedPlayer(),
		coachPlayer:  connectedPlayer(),
		schedule: []bookingdomain.ScheduleWindow{
			{DayOfWeek: 4, StartTime: "09:00", EndTime: "12:00", IsAvailable: true},
		},
		createErr: errors.New("insert rejected"),
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-03", Time: "10:00"},
		},
	}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(out.BookingsCreated) != 0 {
		t.Fatalf("failed creation must not be recorded, got %+v", out.BookingsCreated)
	}
	if len(m.sent) != 0 {
		t.Fatalf("no confirmation may go out for a failed booking, got %+v", m.sent)
	}
	if !out.NeedsReview || out.Sent {
		t.Fatalf("failed creation must end review-pending and unsent, got %+v", out)
	}
	if !hasLabel(m.labels, agentdomain.LabelReviewPending) || hasLabel(m.labels, agentdomain.LabelHandled) {
		t.Fatalf("expected review-pending without handled, got %v", m.labels)
	}
}

func TestCoachEmailLookupFailureTagsReviewPending(t *testing.T) {
	b := &fakeBackend{
		globalPlayer:  connectedPlayer(),
		coachPlayer:   connectedPlayer(),
		coachEmailErr: errors.New("coach profile unavailable"),
		sessions: []bookingdomain.PlayerSession{
			{Date: "2025-01-01", Time: "10:00", Coach: "Nick"},
		},
	}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{PrimaryIntent: agentdomain.IntentCheckSchedule, Confidence: 0.9}}
	m := &fakeMailer{}

	out := runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(m.sent) != 0 || len(m.drafted) != 0 {
		t.Fatalf("dispatch must not proceed without the coach email, got sent=%v drafted=%v", m.sent, m.drafted)
	}
	if len(b.logged) != 0 {
		t.Fatalf("no audit record may be written for a failed dispatch, got %+v", b.logged)
	}
	if !out.NeedsReview || out.Sent {
		t.Fatalf("failed dispatch must end review-pending and unsent, got %+v", out)
	}
	if !hasLabel(m.labels, agentdomain.LabelReviewPending) {
		t.Fatalf("expected review-pending, got %v", m.labels)
	}
}

func TestIdentityLookupFailureDegradesToUnknown(t *testing.T) {
	b := &fakeBackend{lookupErr: errors.New("backend down")}
	c := &fakeClassifier{analysis: agentdomain.ClassifiedIntent{
		PrimaryIntent: agentdomain.IntentBookLesson,
		Confidence:    0.9,
		SubRequests: []agentdomain.SubRequest{
			{Intent: agentdomain.IntentBookLesson, Date: "2025-01-04", Time: "10:00"},
		},
	}}
	m := &fakeMailer{}

	runPipeline(t, b, c, m, agentdomain.ModeSendFullReply, agentdomain.AdminOverride{})

	if len(b.created) != 0 {
		t.Fatalf("degraded identity must not book")
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "register") {
		t.Fatalf("degraded identity behaves as unknown, got %+v", m.sent)
	}
}
