package domain

import (
	"fmt"
	"strings"
)

// Intent is the classified purpose of an inbound email.
type Intent string

const (
	IntentCheckSchedule    Intent = "CHECK_SCHEDULE"
	IntentBookLesson       Intent = "BOOK_LESSON"
	IntentReschedule       Intent = "RESCHEDULE"
	IntentSignupClinic     Intent = "SIGNUP_CLINIC"
	IntentSignupTournament Intent = "SIGNUP_TOURNAMENT"
	IntentMultiIntent      Intent = "MULTI_INTENT"
	IntentOther            Intent = "OTHER"
)

// DraftSuggestionKind classifies what the suggested draft is for.
type DraftSuggestionKind string

const (
	DraftClarificationNeeded DraftSuggestionKind = "CLARIFICATION_NEEDED"
	DraftHandled             DraftSuggestionKind = "HANDLED"
	DraftOther               DraftSuggestionKind = "OTHER"
)

// SubRequest is one atomic ask extracted from an email: one date/time
// pairing under a (possibly MULTI_INTENT) umbrella. Date may be relative or
// ambiguous ("next Tuesday"); Time and the range fields are optional "HH:MM"
// strings that must pass the precise-time check before being trusted.
type SubRequest struct {
	Intent         Intent `json:"intent"`
	Date           string `json:"date,omitempty"`
	Time           string `json:"time,omitempty"`
	TimeRangeStart string `json:"time_range_start,omitempty"`
	TimeRangeEnd   string `json:"time_range_end,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// DraftSuggestion is an optional reply draft the classifier proposes for
// intents the pipeline has no executor for.
type DraftSuggestion struct {
	Kind DraftSuggestionKind `json:"kind"`
	Body string              `json:"body"`
}

// ClassifiedIntent is the classifier's structured reading of one email.
// Produced once per email and never mutated afterwards.
type ClassifiedIntent struct {
	PrimaryIntent    Intent           `json:"intent"`
	Confidence       float64          `json:"confidence"`
	SkillsIdentified []string         `json:"skills_identified,omitempty"`
	SubRequests      []SubRequest     `json:"requests"`
	DraftSuggestion  *DraftSuggestion `json:"email_draft,omitempty"`
}

// Validate normalizes a classifier response at the collaborator boundary.
// Malformed responses error out here so the pipeline never touches
// half-formed intent data.
func (c *ClassifiedIntent) Validate() error {
	switch c.PrimaryIntent {
	case IntentCheckSchedule, IntentBookLesson, IntentReschedule,
		IntentSignupClinic, IntentSignupTournament, IntentMultiIntent, IntentOther:
	case "":
		return fmt.Errorf("classifier response missing intent")
	default:
		return fmt.Errorf("classifier returned unknown intent %q", c.PrimaryIntent)
	}

	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	for i := range c.SubRequests {
		if c.SubRequests[i].Intent == "" {
			c.SubRequests[i].Intent = c.PrimaryIntent
		}
	}
	return nil
}

// ClassifyInput is everything the classifier may condition extraction on,
// including the resolved player id when the sender is known.
type ClassifyInput struct {
	Subject  string
	Body     string
	Sender   string
	CoachID  string
	PlayerID string
}

// OtherIntent is the degraded classification used when the classifier
// fails: the email is read and left alone.
func OtherIntent() ClassifiedIntent {
	return ClassifiedIntent{PrimaryIntent: IntentOther, Confidence: 0}
}

// PlayerIdentity is the tri-state result of resolving a sender against the
// backend: unknown everywhere, registered but not connected to this coach,
// or connected with a player id.
type PlayerIdentity struct {
	State    IdentityState
	PlayerID string
}

type IdentityState int

const (
	IdentityUnknown IdentityState = iota
	IdentityRegisteredUnconnected
	IdentityConnected
)

func (s IdentityState) String() string {
	switch s {
	case IdentityRegisteredUnconnected:
		return "registered_unconnected"
	case IdentityConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ExtractAddress pulls the bare email address out of a possibly formatted
// sender header ("Name <addr@example.com>") and lowercases it for matching.
func ExtractAddress(sender string) string {
	addr := strings.TrimSpace(sender)
	if open := strings.LastIndexByte(addr, '<'); open >= 0 {
		if close := strings.IndexByte(addr[open:], '>'); close > 0 {
			addr = addr[open+1 : open+close]
		}
	}
	return strings.ToLower(strings.TrimSpace(addr))
}
