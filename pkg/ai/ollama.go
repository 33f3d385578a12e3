package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	agentdomain "sqd-agent/internal/agent/domain"
)

// OllamaService implements ClassifierService using Ollama local LLM
type OllamaService struct {
	baseURL string
	model   string
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaService{baseURL: baseURL, model: model}
}

// ClassifyEmail implements ClassifierService using Ollama's JSON format mode.
func (o *OllamaService) ClassifyEmail(ctx context.Context, in agentdomain.ClassifyInput) (agentdomain.ClassifiedIntent, error) {
	url := o.baseURL + "/api/generate"

	prompt := fmt.Sprintf(`You are an AI Scheduling Assistant for a Squash Coach.
Analyze this email from a player (%s). Today's date is %s.

Intents: CHECK_SCHEDULE (asking about their schedule), BOOK_LESSON (asking
to book), RESCHEDULE (moving an existing lesson), SIGNUP_CLINIC,
SIGNUP_TOURNAMENT, MULTI_INTENT (schedule question plus booking), OTHER
(billing, technique advice, small talk, spam).

Subject: %s
Body: %s

Respond with JSON only, shaped as:
{"intent": "...", "requests": [{"intent": "...", "date": "YYYY-MM-DD or as written", "time": "HH:MM", "time_range_start": "HH:MM", "time_range_end": "HH:MM", "notes": "..."}], "skills_identified": [], "email_draft": {"kind": "CLARIFICATION_NEEDED", "body": "..."}, "confidence": 0.0}`,
		in.Sender, time.Now().Format("2006-01-02"), in.Subject, in.Body)

	payload := map[string]interface{}{
		"model":  o.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": 0.1,
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
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("failed to parse response: %w", err)
	}

	var analysis agentdomain.ClassifiedIntent
	if err := json.Unmarshal([]byte(strings.TrimSpace(result.Response)), &analysis); err != nil {
		return agentdomain.ClassifiedIntent{}, fmt.Errorf("failed to parse classification: %w", err)
	}
	if err := analysis.Validate(); err != nil {
		return agentdomain.ClassifiedIntent{}, err
	}
	return analysis, nil
}
