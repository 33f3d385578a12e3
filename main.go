package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	api "sqd-agent/cmd/api"
	"sqd-agent/internal/agent/usecase"
	"sqd-agent/internal/agent/watcher"
	coachrepo "sqd-agent/internal/coach/repository"
	"sqd-agent/internal/notification"
	"sqd-agent/pkg/ai"
	"sqd-agent/pkg/backend"
	"sqd-agent/pkg/config"
	"sqd-agent/pkg/database"
	"sqd-agent/pkg/fcm"
	"sqd-agent/pkg/gmail"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize repositories (dependency injection)
	configRepo := coachrepo.NewGormCoachConfigRepository(db)
	settingsRepo := coachrepo.NewGormSystemSettingsRepository(db)
	deviceRepo := coachrepo.NewGormCoachDeviceRepository(db)

	// Booking backend client
	backendClient := backend.NewClient(cfg.BackendAPIURL, cfg.BackendAPIKey)

	// AI classifier
	classifier, err := ai.NewClassifierService(ai.Config{
		Provider:      ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	})
	if err != nil {
		log.Fatal("Failed to initialize AI classifier:", err)
	}
	log.Printf("AI classifier initialized with provider: %s", cfg.AIProvider)

	// Gmail service
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret)

	// FCM client (optional, review alerts are skipped without it)
	var fcmClient *fcm.Client
	if cfg.FirebaseCredFile != "" {
		fcmClient, err = fcm.NewClient(cfg.FirebaseCredFile)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (review alerts disabled): %v", err)
			fcmClient = nil
		}
	}

	// Gmail push topic (optional, polling covers the mailboxes either way)
	topicName := cfg.GmailPubSubTopic
	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}
	pushTopic := ""
	if cfg.GoogleProjectID != "" {
		pushTopic = fmt.Sprintf("projects/%s/topics/%s", cfg.GoogleProjectID, topicName)
	}

	// Pipeline and watcher
	orchestrator := usecase.NewOrchestrator(backendClient, classifier, cfg.RegistrationURL)
	inboxWatcher := watcher.New(configRepo, settingsRepo, deviceRepo, gmailService, orchestrator, fcmClient, pushTopic, cfg.PollInterval)
	inboxWatcher.Start()
	defer inboxWatcher.Stop()

	if cfg.GoogleProjectID != "" {
		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, inboxWatcher, cfg.FirebaseCredFile)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GOOGLE_PROJECT_ID not configured, push notifications disabled")
	}

	// HTTP API
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handler := api.NewHandler(configRepo, settingsRepo, deviceRepo, inboxWatcher, backendClient)
	api.SetupRoutes(router, handler, cfg)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
