package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sqd-agent/internal/coach/domain"
)

// gormCoachConfigRepository implements CoachConfigRepository using GORM
type gormCoachConfigRepository struct {
	db *gorm.DB
}

func NewGormCoachConfigRepository(db *gorm.DB) CoachConfigRepository {
	db.AutoMigrate(&domain.CoachConfig{})
	return &gormCoachConfigRepository{db: db}
}

func (r *gormCoachConfigRepository) Upsert(config *domain.CoachConfig) error {
	if config.ID == "" {
		config.ID = uuid.New().String()
	}
	config.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "coach_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "refresh_token", "access_token", "token_expiry",
			"agent_enabled", "handling_mode", "updated_at",
		}),
	}).Create(config).Error
}

func (r *gormCoachConfigRepository) FindByCoachID(coachID string) (*domain.CoachConfig, error) {
	var config domain.CoachConfig
	err := r.db.Where("coach_id = ?", coachID).First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *gormCoachConfigRepository) FindByEmail(email string) (*domain.CoachConfig, error) {
	var config domain.CoachConfig
	err := r.db.Where("email = ?", email).First(&config).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &config, nil
}

func (r *gormCoachConfigRepository) FindEnabled() ([]*domain.CoachConfig, error) {
	var configs []*domain.CoachConfig
	err := r.db.Where("agent_enabled = ?", true).Order("coach_id ASC").Find(&configs).Error
	return configs, err
}

func (r *gormCoachConfigRepository) UpdateCheckpoint(coachID string, historyID uint64) error {
	return r.db.Model(&domain.CoachConfig{}).Where("coach_id = ?", coachID).
		Updates(map[string]interface{}{
			"last_history_id": historyID,
			"last_checked_at": time.Now(),
			"updated_at":      time.Now(),
		}).Error
}

func (r *gormCoachConfigRepository) UpdateTokens(coachID, accessToken, refreshToken string) error {
	updates := map[string]interface{}{
		"access_token": accessToken,
		"updated_at":   time.Now(),
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return r.db.Model(&domain.CoachConfig{}).Where("coach_id = ?", coachID).
		Updates(updates).Error
}

func (r *gormCoachConfigRepository) Delete(coachID string) error {
	return r.db.Delete(&domain.CoachConfig{}, "coach_id = ?", coachID).Error
}

// gormSystemSettingsRepository implements SystemSettingsRepository using GORM
type gormSystemSettingsRepository struct {
	db *gorm.DB
}

func NewGormSystemSettingsRepository(db *gorm.DB) SystemSettingsRepository {
	db.AutoMigrate(&domain.SystemSettings{})
	return &gormSystemSettingsRepository{db: db}
}

func (r *gormSystemSettingsRepository) Get() (*domain.SystemSettings, error) {
	var settings domain.SystemSettings
	err := r.db.First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		settings = domain.SystemSettings{ID: uuid.New().String(), UpdatedAt: time.Now()}
		if err := r.db.Create(&settings).Error; err != nil {
			return nil, err
		}
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *gormSystemSettingsRepository) Update(settings *domain.SystemSettings) error {
	settings.UpdatedAt = time.Now()
	return r.db.Save(settings).Error
}

// gormCoachDeviceRepository implements CoachDeviceRepository using GORM
type gormCoachDeviceRepository struct {
	db *gorm.DB
}

func NewGormCoachDeviceRepository(db *gorm.DB) CoachDeviceRepository {
	db.AutoMigrate(&domain.CoachDevice{})
	return &gormCoachDeviceRepository{db: db}
}

func (r *gormCoachDeviceRepository) Register(device *domain.CoachDevice) error {
	if device.ID == "" {
		device.ID = uuid.New().String()
	}
	device.CreatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fcm_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"coach_id"}),
	}).Create(device).Error
}

func (r *gormCoachDeviceRepository) FindByCoachID(coachID string) ([]*domain.CoachDevice, error) {
	var devices []*domain.CoachDevice
	err := r.db.Where("coach_id = ?", coachID).Find(&devices).Error
	return devices, err
}

func (r *gormCoachDeviceRepository) Remove(token string) error {
	return r.db.Delete(&domain.CoachDevice{}, "fcm_token = ?", token).Error
}
