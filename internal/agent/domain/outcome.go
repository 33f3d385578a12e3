package domain

// Gmail label names applied after processing. LabelRead goes on every
// processed thread; exactly one of LabelHandled / LabelReviewPending is
// added unless the intent was OTHER.
const (
	LabelRead          = "sqd-read"
	LabelHandled       = "SQD Handled"
	LabelReviewPending = "SQD review pending"
)

// HandlingMode controls whether composed replies are sent directly or
// saved as drafts for the coach to review. Per-coach configuration, never
// derived from booking success.
type HandlingMode string

const (
	ModeDraftOnly     HandlingMode = "draft_only"
	ModeSendFullReply HandlingMode = "send_full_replies"
)

// InboundEmail is the immutable input of one pipeline run.
type InboundEmail struct {
	Sender   string // possibly "Name <addr>" form
	Subject  string
	Body     string
	ThreadID string
}

// AdminOverride redirects delivery to a review address while keeping the
// original sender for audit purposes. Delivery target only; decision logic
// never looks at it.
type AdminOverride struct {
	Enabled bool
	Email   string
}

// BookingRef identifies a booking the pipeline created.
type BookingRef struct {
	ID        string
	Date      string
	StartTime string
	EndTime   string
}

// Outcome accumulates the result of one pipeline run and is flushed exactly
// once at the end. Threaded explicitly through every stage; no stage owns
// shared mutable state.
type Outcome struct {
	ReplyText       string
	Sent            bool
	Drafted         bool
	BookingsCreated []BookingRef
	NeedsReview     bool // draft dispatch, failed sub-request, or stage error
	Skipped         bool // OTHER intent: read label only
}

// AppendReply adds text to the running candidate reply, separated by a
// blank line when text already accumulated.
func (o *Outcome) AppendReply(text string) {
	if text == "" {
		return
	}
	if o.ReplyText == "" {
		o.ReplyText = text
		return
	}
	o.ReplyText += "\n\n" + text
}

// Labels produces the final label set for the thread.
func (o *Outcome) Labels() []string {
	labels := []string{LabelRead}
	if o.Skipped {
		return labels
	}
	if o.NeedsReview {
		return append(labels, LabelReviewPending)
	}
	if o.Sent {
		return append(labels, LabelHandled)
	}
	return labels
}
