package ai

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"

	agentdomain "sqd-agent/internal/agent/domain"
)

// FallbackService routes classification between providers:
// Gemini first (better extraction quality), Ollama on quota exhaustion or
// connection failure.
type FallbackService struct {
	gemini ClassifierService
	ollama *OllamaService
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(gemini ClassifierService, ollama *OllamaService) *FallbackService {
	return &FallbackService{
		gemini: gemini,
		ollama: ollama,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(net.Error); ok {
		return true
	}

	errStr := err.Error()
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"EOF",
	}

	for _, indicator := range connectionIndicators {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(indicator)) {
			return true
		}
	}

	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
		"RESOURCE_EXHAUSTED",
	}

	for _, indicator := range quotaIndicators {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(indicator)) {
			return true
		}
	}

	return false
}

// ClassifyEmail tries Gemini first, falls back to Ollama on quota or
// connection errors, and retries Gemini once when Ollama is unreachable.
func (f *FallbackService) ClassifyEmail(ctx context.Context, in agentdomain.ClassifyInput) (agentdomain.ClassifiedIntent, error) {
	if f.gemini != nil {
		result, err := f.gemini.ClassifyEmail(ctx, in)
		if err == nil {
			return result, nil
		}

		if isQuotaError(err) {
			log.Printf("[AI] Gemini quota exhausted: %v, falling back to Ollama", err)
		} else {
			log.Printf("[AI] Gemini error: %v, falling back to Ollama", err)
		}
	}

	if f.ollama != nil {
		result, err := f.ollama.ClassifyEmail(ctx, in)
		if err == nil {
			return result, nil
		}

		if isConnectionError(err) && f.gemini != nil {
			log.Printf("[AI] Ollama connection failed: %v, retrying Gemini", err)
			return f.gemini.ClassifyEmail(ctx, in)
		}

		return agentdomain.ClassifiedIntent{}, fmt.Errorf("ollama classification failed: %w", err)
	}

	return agentdomain.ClassifiedIntent{}, fmt.Errorf("no AI provider available for classification")
}
