// Package backend is the HTTP client for the booking backend that owns
// coaches, players, schedules and bookings. The agent acts against it with a
// system-level API key; per-coach tokens are not required for these routes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	bookingdomain "sqd-agent/internal/booking/domain"
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Player is a backend user record, as much of it as the agent needs.
type Player struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CreateBookingRequest mirrors the backend's booking creation payload.
type CreateBookingRequest struct {
	CoachID   string `json:"coach_id"`
	PlayerID  string `json:"player_id"`
	Date      string `json:"booking_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Status    string `json:"status"`
}

// EmailLogRecord is the audit entry written for every dispatched reply.
// OriginalSender is set only when an admin override redirected delivery.
type EmailLogRecord struct {
	CoachID             string `json:"coach_id"`
	CoachEmail          string `json:"coach_email"`
	RecipientEmail      string `json:"recipient_email"`
	OriginalSender      string `json:"original_sender,omitempty"`
	Subject             string `json:"subject"`
	Body                string `json:"body"`
	EmailType           string `json:"email_type"` // "sent" or "drafted"
	HandlingMode        string `json:"handling_mode"`
	AdminOverrideActive bool   `json:"admin_override_active"`
	ThreadID            string `json:"thread_id,omitempty"`
}

// GetSchedule fetches the coach's weekly recurring schedule template.
func (c *Client) GetSchedule(ctx context.Context, coachID string) ([]bookingdomain.ScheduleWindow, error) {
	var out []bookingdomain.ScheduleWindow
	err := c.get(ctx, fmt.Sprintf("/api/coaches/%s/schedule", coachID), nil, &out)
	return out, err
}

// GetBookings fetches the coach's bookings in [startDate, endDate].
func (c *Client) GetBookings(ctx context.Context, coachID, startDate, endDate string) ([]bookingdomain.Booking, error) {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	var out []bookingdomain.Booking
	err := c.get(ctx, fmt.Sprintf("/api/coaches/%s/bookings", coachID), q, &out)
	return out, err
}

// CreateBooking writes a new booking. The backend offers no idempotency or
// compare-and-create here; two concurrent agents can both succeed for the
// same slot (known limitation of the booking contract).
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/bookings", req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// LookupPlayerGlobal finds a player account anywhere in the system by email.
// A nil player with nil error means no account exists.
func (c *Client) LookupPlayerGlobal(ctx context.Context, email string) (*Player, error) {
	q := url.Values{}
	q.Set("email", email)
	var out []Player
	if err := c.get(ctx, "/api/users", q, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// LookupPlayerForCoach finds a player among the coach's connected players.
func (c *Client) LookupPlayerForCoach(ctx context.Context, coachID, email string) (*Player, error) {
	q := url.Values{}
	q.Set("email", email)
	var out []Player
	if err := c.get(ctx, fmt.Sprintf("/api/coaches/%s/players", coachID), q, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// GetPlayerSchedule lists a player's upcoming sessions for schedule replies.
func (c *Client) GetPlayerSchedule(ctx context.Context, playerEmail string) ([]bookingdomain.PlayerSession, error) {
	q := url.Values{}
	q.Set("player_email", playerEmail)
	var out []bookingdomain.PlayerSession
	err := c.get(ctx, "/api/bookings", q, &out)
	return out, err
}

// GetCoachEmail resolves a coach id to the coach's email address.
func (c *Client) GetCoachEmail(ctx context.Context, coachID string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := c.get(ctx, fmt.Sprintf("/api/coaches/%s", coachID), nil, &out); err != nil {
		return "", err
	}
	return out.Email, nil
}

// LogEmailAction writes an audit record for a dispatched reply. Fire and
// forget from the pipeline's perspective; callers log failures and move on.
func (c *Client) LogEmailAction(ctx context.Context, record EmailLogRecord) error {
	return c.post(ctx, "/api/email-logs", record, nil)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
