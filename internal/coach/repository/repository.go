package repository

import (
	"sqd-agent/internal/coach/domain"
)

// CoachConfigRepository defines data access for coach agent configs.
type CoachConfigRepository interface {
	// Upsert creates or updates the config keyed by CoachID.
	Upsert(config *domain.CoachConfig) error

	// FindByCoachID finds a config by coach id, nil when absent.
	FindByCoachID(coachID string) (*domain.CoachConfig, error)

	// FindByEmail finds a config by the coach's Gmail address, nil when absent.
	FindByEmail(email string) (*domain.CoachConfig, error)

	// FindEnabled lists all configs with the agent switched on.
	FindEnabled() ([]*domain.CoachConfig, error)

	// UpdateCheckpoint records the watcher's progress for a coach.
	UpdateCheckpoint(coachID string, historyID uint64) error

	// UpdateTokens stores refreshed OAuth tokens.
	UpdateTokens(coachID, accessToken, refreshToken string) error

	// Delete removes a coach's config.
	Delete(coachID string) error
}

// SystemSettingsRepository manages the single global settings row.
type SystemSettingsRepository interface {
	// Get returns the settings row, creating a default one on first use.
	Get() (*domain.SystemSettings, error)

	// Update persists the settings row.
	Update(settings *domain.SystemSettings) error
}

// CoachDeviceRepository manages FCM device registrations.
type CoachDeviceRepository interface {
	// Register stores a device token, replacing a prior registration of the
	// same token.
	Register(device *domain.CoachDevice) error

	// FindByCoachID lists a coach's registered devices.
	FindByCoachID(coachID string) ([]*domain.CoachDevice, error)

	// Remove deletes a device token.
	Remove(token string) error
}
