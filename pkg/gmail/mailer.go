package gmail

import "context"

// Mailer binds the shared Gmail service to one coach's credentials so the
// pipeline can act on that coach's mailbox without carrying tokens around.
type Mailer struct {
	svc   *Service
	creds Credentials
}

func NewMailer(svc *Service, creds Credentials) *Mailer {
	return &Mailer{svc: svc, creds: creds}
}

func (m *Mailer) SendReply(ctx context.Context, threadID, text, recipient, subject string) error {
	return m.svc.SendReply(ctx, m.creds, threadID, text, recipient, subject)
}

func (m *Mailer) CreateDraft(ctx context.Context, threadID, text, recipient, subject string) error {
	return m.svc.CreateDraft(ctx, m.creds, threadID, text, recipient, subject)
}

func (m *Mailer) AddLabels(ctx context.Context, threadID string, labels []string) error {
	return m.svc.AddLabels(ctx, m.creds, threadID, labels)
}
