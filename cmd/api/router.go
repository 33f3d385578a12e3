package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sqd-agent/pkg/config"
)

func SetupRoutes(r *gin.Engine, h *Handler, cfg *config.Config) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(AdminAuthMiddleware(cfg.JWTSecret))
		{
			admin.POST("/run", h.RunNow)

			admin.GET("/coaches/:coachId/config", h.GetCoachConfig)
			admin.PUT("/coaches/:coachId/config", h.UpsertCoachConfig)
			admin.DELETE("/coaches/:coachId/config", h.DeleteCoachConfig)
			admin.GET("/coaches/:coachId/availability", h.PreviewAvailability)

			admin.GET("/settings", h.GetSettings)
			admin.PUT("/settings", h.UpdateSettings)

			admin.POST("/devices", h.RegisterDevice)
			admin.DELETE("/devices/:token", h.UnregisterDevice)
		}
	}
}
