package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	bookingusecase "sqd-agent/internal/booking/usecase"
	coachdomain "sqd-agent/internal/coach/domain"
	coachrepo "sqd-agent/internal/coach/repository"
	"sqd-agent/pkg/backend"
)

// AgentRunner is the watcher surface the API needs: full-cycle and
// per-coach triggers. *watcher.Watcher satisfies it.
type AgentRunner interface {
	RunCycle(ctx context.Context)
	TriggerCoach(coachID string)
}

type Handler struct {
	configRepo   coachrepo.CoachConfigRepository
	settingsRepo coachrepo.SystemSettingsRepository
	deviceRepo   coachrepo.CoachDeviceRepository
	watcher      AgentRunner
	backend      *backend.Client
}

func NewHandler(
	configRepo coachrepo.CoachConfigRepository,
	settingsRepo coachrepo.SystemSettingsRepository,
	deviceRepo coachrepo.CoachDeviceRepository,
	w AgentRunner,
	backendClient *backend.Client,
) *Handler {
	return &Handler{
		configRepo:   configRepo,
		settingsRepo: settingsRepo,
		deviceRepo:   deviceRepo,
		watcher:      w,
		backend:      backendClient,
	}
}

// RunNow triggers an immediate inbox check, either for one coach
// (?coach_id=) or for everyone.
func (h *Handler) RunNow(c *gin.Context) {
	if coachID := c.Query("coach_id"); coachID != "" {
		h.watcher.TriggerCoach(coachID)
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "coach_id": coachID})
		return
	}
	// The cycle outlives this request: its context must not be the
	// request context, which net/http cancels once 202 is written.
	go h.watcher.RunCycle(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "cycle started"})
}

func (h *Handler) GetCoachConfig(c *gin.Context) {
	config, err := h.configRepo.FindByCoachID(c.Param("coachId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if config == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "coach config not found"})
		return
	}
	c.JSON(http.StatusOK, config)
}

type upsertConfigRequest struct {
	Email        string `json:"email" binding:"required,email"`
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
	AgentEnabled *bool  `json:"agent_enabled"`
	HandlingMode string `json:"handling_mode"`
}

func (h *Handler) UpsertCoachConfig(c *gin.Context) {
	var req upsertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := coachdomain.HandlingMode(req.HandlingMode)
	if mode != coachdomain.ModeSendFullReply {
		mode = coachdomain.ModeDraftOnly
	}

	config := &coachdomain.CoachConfig{
		CoachID:      c.Param("coachId"),
		Email:        req.Email,
		RefreshToken: req.RefreshToken,
		AccessToken:  req.AccessToken,
		HandlingMode: mode,
	}
	if req.AgentEnabled != nil {
		config.AgentEnabled = *req.AgentEnabled
	}

	if err := h.configRepo.Upsert(config); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, config)
}

func (h *Handler) DeleteCoachConfig(c *gin.Context) {
	if err := h.configRepo.Delete(c.Param("coachId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.settingsRepo.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	AdminOverrideEnabled *bool   `json:"admin_override_enabled"`
	AdminOverrideEmail   *string `json:"admin_override_email"`
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.settingsRepo.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.AdminOverrideEnabled != nil {
		settings.AdminOverrideEnabled = *req.AdminOverrideEnabled
	}
	if req.AdminOverrideEmail != nil {
		settings.AdminOverrideEmail = *req.AdminOverrideEmail
	}

	if err := h.settingsRepo.Update(settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type registerDeviceRequest struct {
	CoachID  string `json:"coach_id" binding:"required"`
	FCMToken string `json:"fcm_token" binding:"required"`
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device := &coachdomain.CoachDevice{CoachID: req.CoachID, FCMToken: req.FCMToken}
	if err := h.deviceRepo.Register(device); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, device)
}

func (h *Handler) UnregisterDevice(c *gin.Context) {
	if err := h.deviceRepo.Remove(c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// PreviewAvailability exposes the slot calculator for debugging: the exact
// slots the agent would consider for a coach over a date range.
func (h *Handler) PreviewAvailability(c *gin.Context) {
	coachID := c.Param("coachId")
	startDate := c.Query("start_date")
	endDate := c.Query("end_date")
	if startDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date is required"})
		return
	}

	schedule, err := h.backend.GetSchedule(c.Request.Context(), coachID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	rangeEnd := endDate
	if rangeEnd == "" {
		rangeEnd = startDate
	}
	bookings, err := h.backend.GetBookings(c.Request.Context(), coachID, startDate, rangeEnd)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	slots, err := bookingusecase.ComputeSlots(schedule, bookings, startDate, endDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coach_id": coachID, "slots": slots})
}
