package domain

import "time"

// HandlingMode controls what the agent does with a composed reply.
type HandlingMode string

const (
	ModeDraftOnly     HandlingMode = "draft_only"
	ModeSendFullReply HandlingMode = "send_full_replies"
)

// CoachConfig holds one coach's agent settings and Gmail credentials.
// A coach with AgentEnabled=false or no refresh token is skipped by the
// watcher.
type CoachConfig struct {
	ID            string       `json:"id" gorm:"primaryKey"`
	CoachID       string       `json:"coach_id" gorm:"uniqueIndex;not null"`
	Email         string       `json:"email" gorm:"index;not null"`
	RefreshToken  string       `json:"-" gorm:"column:refresh_token"`
	AccessToken   string       `json:"-" gorm:"column:access_token"`
	TokenExpiry   *time.Time   `json:"-"`
	AgentEnabled  bool         `json:"agent_enabled" gorm:"default:false"`
	HandlingMode  HandlingMode `json:"handling_mode" gorm:"default:draft_only"`
	LastHistoryID uint64       `json:"last_history_id"` // Gmail push dedupe watermark
	LastCheckedAt *time.Time   `json:"last_checked_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Mode returns the handling mode, defaulting to draft-only so a blank or
// unknown value can never cause an unreviewed send.
func (c *CoachConfig) Mode() HandlingMode {
	if c.HandlingMode == ModeSendFullReply {
		return ModeSendFullReply
	}
	return ModeDraftOnly
}

// SystemSettings is the single global settings row.
type SystemSettings struct {
	ID                   string    `json:"id" gorm:"primaryKey"`
	AdminOverrideEnabled bool      `json:"admin_override_enabled" gorm:"default:false"`
	AdminOverrideEmail   string    `json:"admin_override_email"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CoachDevice is one registered FCM device token for a coach.
type CoachDevice struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CoachID   string    `json:"coach_id" gorm:"index;not null"`
	FCMToken  string    `json:"fcm_token" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}
