package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	agentdomain "sqd-agent/internal/agent/domain"
)

type GeminiService struct {
	ApiKey  string
	Model   string
	baseURL string
}

func NewGeminiService(apiKey, model string) *GeminiService {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiService{
		ApiKey:  apiKey,
		Model:   model,
		baseURL: "https://generativelanguage.googleapis.com",
	}
}

// ClassifyEmail asks Gemini for a structured reading of the email in JSON
// response mode and validates the result before returning it.
func (g *GeminiService) ClassifyEmail(ctx context.Context, in agentdomain.ClassifyInput) (agentdomain.ClassifiedIntent, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.Model, g.ApiKey)

	prompt := classificationPrompt(in, time.Now())

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"temperature":      0.1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return agentdomain.ClassifiedIntent{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return agentdomain.ClassifiedIntent{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("Gemini API error: %s", string(respBody))
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return agentdomain.ClassifiedIntent{}, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("no classification returned")
	}

	var analysis agentdomain.ClassifiedIntent
	if err := json.Unmarshal([]byte(result.Candidates[0].Content.Parts[0].Text), &analysis); err != nil {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("failed to parse classification: %w", err)
	}
	if err := analysis.Validate(); err != nil {
		return agentdomain.ClassifiedIntent{}, err
	}
	return analysis, nil
}

func classificationPrompt(in agentdomain.ClassifyInput, now time.Time) string {
	return fmt.Sprintf(`You are an AI Scheduling Assistant for a Squash Coach.
Analyze this email from a player (%s). Today's date is %s.

STRICT INTENT FILTERING:
- CHECK_SCHEDULE: Asking "When do we play?", "What is my schedule?", "Am I playing tomorrow?"
- BOOK_LESSON: Asking "Can I book?", "Are you free on Tuesday?", "I want a lesson".
- RESCHEDULE: Asking to move or cancel an existing lesson.
- SIGNUP_CLINIC: Asking to join a group clinic.
- SIGNUP_TOURNAMENT: Asking to enter a tournament.
- MULTI_INTENT: Both CHECK_SCHEDULE and BOOK_LESSON in one email.
- OTHER: Billing questions, technique advice, small talk, spam. IGNORE these.

Subject: %s
Body: %s

Return JSON ONLY:
{
  "intent": "CHECK_SCHEDULE" | "BOOK_LESSON" | "RESCHEDULE" | "SIGNUP_CLINIC" | "SIGNUP_TOURNAMENT" | "MULTI_INTENT" | "OTHER",
  "requests": [
    {
      "intent": "CHECK_SCHEDULE" | "BOOK_LESSON" | "RESCHEDULE" | "SIGNUP_CLINIC" | "SIGNUP_TOURNAMENT",
      "date": "YYYY-MM-DD" or "next Tuesday" (extract exactly as written or implied),
      "time": "HH:MM" (only when an exact time is stated),
      "time_range_start": "HH:MM" (when a range like "afternoon" or "between 2 and 5" is implied),
      "time_range_end": "HH:MM",
      "notes": "Any specific context"
    }
  ],
  "skills_identified": ["skill mentioned in the email, if any"],
  "email_draft": {
    "kind": "CLARIFICATION_NEEDED" | "HANDLED" | "OTHER",
    "body": "A short suggested reply, only for intents you cannot fulfil automatically"
  },
  "confidence": 0.0 to 1.0
}`, in.Sender, now.Format("2006-01-02"), in.Subject, in.Body)
}
