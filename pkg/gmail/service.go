package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

// Credentials is one coach's OAuth state plus the persistence callback
// fired when the access token is refreshed.
type Credentials struct {
	AccessToken    string
	RefreshToken   string
	OnTokenRefresh TokenUpdateFunc
}

// Thread is the agent's view of one unread conversation: the newest
// message's sender, subject and plain-text body.
type Thread struct {
	ThreadID  string
	MessageID string
	Sender    string
	Subject   string
	Body      string
}

type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// gmailService creates a Gmail API client for one coach's credentials.
func (s *Service) gmailService(ctx context.Context, creds Credentials) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if creds.RefreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: creds.OnTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// GetUnreadThreads lists inbox threads that are unread and not yet marked
// processed, newest message per thread.
func (s *Service) GetUnreadThreads(ctx context.Context, creds Credentials, readLabel string, max int64) ([]Thread, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return nil, err
	}

	query := "in:inbox is:unread"
	if readLabel != "" {
		query += fmt.Sprintf(" -label:%q", readLabel)
	}

	resp, err := srv.Users.Messages.List("me").Q(query).MaxResults(max).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	// Keep one message per thread. The list is newest-first, so the first
	// message seen for a thread is the latest one.
	seen := make(map[string]bool)
	threads := make([]Thread, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if seen[m.ThreadId] {
			continue
		}
		seen[m.ThreadId] = true

		full, err := srv.Users.Messages.Get("me", m.Id).Format("full").Do()
		if err != nil {
			log.Printf("[Gmail] Failed to fetch message %s: %v", m.Id, err)
			continue
		}
		threads = append(threads, Thread{
			ThreadID:  full.ThreadId,
			MessageID: full.Id,
			Sender:    getHeader(full.Payload.Headers, "From"),
			Subject:   getHeader(full.Payload.Headers, "Subject"),
			Body:      getPlainBody(full.Payload),
		})
	}
	return threads, nil
}

// SendReply sends a plain-text reply on an existing thread.
func (s *Service) SendReply(ctx context.Context, creds Credentials, threadID, text, recipient, subject string) error {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return err
	}

	msg := &gmail.Message{
		Raw:      encodeReply(recipient, subject, text),
		ThreadId: threadID,
	}
	if _, err := srv.Users.Messages.Send("me", msg).Do(); err != nil {
		return fmt.Errorf("unable to send reply: %w", err)
	}
	return nil
}

// CreateDraft creates a reply draft on an existing thread for the coach to
// review and send.
func (s *Service) CreateDraft(ctx context.Context, creds Credentials, threadID, text, recipient, subject string) error {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return err
	}

	draft := &gmail.Draft{
		Message: &gmail.Message{
			Raw:      encodeReply(recipient, subject, text),
			ThreadId: threadID,
		},
	}
	if _, err := srv.Users.Drafts.Create("me", draft).Do(); err != nil {
		return fmt.Errorf("unable to create draft: %w", err)
	}
	return nil
}

// AddLabels applies the named labels to a thread, creating any that do not
// exist yet in the coach's mailbox.
func (s *Service) AddLabels(ctx context.Context, creds Credentials, threadID string, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return err
	}

	labelIDs := make([]string, 0, len(labels))
	for _, name := range labels {
		id, err := s.ensureLabel(srv, name)
		if err != nil {
			return err
		}
		labelIDs = append(labelIDs, id)
	}

	_, err = srv.Users.Threads.Modify("me", threadID, &gmail.ModifyThreadRequest{
		AddLabelIds: labelIDs,
	}).Do()
	if err != nil {
		return fmt.Errorf("unable to label thread: %w", err)
	}
	return nil
}

// ensureLabel resolves a label name to its id, creating the label on first
// use.
func (s *Service) ensureLabel(srv *gmail.Service, name string) (string, error) {
	resp, err := srv.Users.Labels.List("me").Do()
	if err != nil {
		return "", fmt.Errorf("unable to list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if strings.EqualFold(l.Name, name) {
			return l.Id, nil
		}
	}

	created, err := srv.Users.Labels.Create("me", &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create label %q: %w", name, err)
	}
	log.Printf("[Gmail] Created label %q", name)
	return created.Id, nil
}

// Watch sets up push notifications for the coach's mailbox.
func (s *Service) Watch(ctx context.Context, creds Credentials, topicName string) (uint64, error) {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return 0, err
	}

	resp, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName:         topicName,
		LabelIds:          []string{"INBOX"},
		LabelFilterAction: "include",
	}).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to set up watch: %w", err)
	}
	return resp.HistoryId, nil
}

// Stop stops push notifications for the coach's mailbox.
func (s *Service) Stop(ctx context.Context, creds Credentials) error {
	srv, err := s.gmailService(ctx, creds)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop watch: %w", err)
	}
	return nil
}

// Helper functions

func encodeReply(to, subject, body string) string {
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	encodedSubject := fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", encodedSubject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)
	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// getPlainBody walks the MIME tree for the first text/plain part, falling
// back to the top-level body.
func getPlainBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	for _, part := range payload.Parts {
		if body := getPlainBody(part); body != "" {
			return body
		}
	}
	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	return ""
}

func decodeBody(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}
