package ai

import (
	"context"

	agentdomain "sqd-agent/internal/agent/domain"
)

// ClassifierService is the interface for AI email intent classification.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type ClassifierService interface {
	ClassifyEmail(ctx context.Context, in agentdomain.ClassifyInput) (agentdomain.ClassifiedIntent, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)
