package watcher

import (
	"context"
	"log"
	"time"

	"golang.org/x/oauth2"

	agentdomain "sqd-agent/internal/agent/domain"
	"sqd-agent/internal/agent/usecase"
	coachdomain "sqd-agent/internal/coach/domain"
	coachrepo "sqd-agent/internal/coach/repository"
	"sqd-agent/pkg/fcm"
	"sqd-agent/pkg/gmail"
)

// maxThreadsPerCycle bounds the Gmail fetch so one noisy inbox cannot
// starve the cycle.
const maxThreadsPerCycle = 20

// Watcher drives the inbox polling loop: every interval it loads the
// agent-enabled coaches, pulls their unread threads, and runs each through
// the pipeline. A failing coach never breaks the cycle for the others.
type Watcher struct {
	configRepo   coachrepo.CoachConfigRepository
	settingsRepo coachrepo.SystemSettingsRepository
	deviceRepo   coachrepo.CoachDeviceRepository
	gmailSvc     *gmail.Service
	orchestrator *usecase.Orchestrator
	fcmClient    *fcm.Client
	pushTopic    string // full Pub/Sub topic resource name, empty disables watch registration
	interval     time.Duration
	stopChan     chan struct{}
	triggerChan  chan string
}

func New(
	configRepo coachrepo.CoachConfigRepository,
	settingsRepo coachrepo.SystemSettingsRepository,
	deviceRepo coachrepo.CoachDeviceRepository,
	gmailSvc *gmail.Service,
	orchestrator *usecase.Orchestrator,
	fcmClient *fcm.Client,
	pushTopic string,
	interval time.Duration,
) *Watcher {
	return &Watcher{
		configRepo:   configRepo,
		settingsRepo: settingsRepo,
		deviceRepo:   deviceRepo,
		gmailSvc:     gmailSvc,
		orchestrator: orchestrator,
		fcmClient:    fcmClient,
		pushTopic:    pushTopic,
		interval:     interval,
		stopChan:     make(chan struct{}),
		triggerChan:  make(chan string, 16),
	}
}

// Start begins the polling loop.
func (w *Watcher) Start() {
	log.Printf("[Watcher] Starting inbox watcher (interval: %s)", w.interval)

	go func() {
		// Run immediately on start
		w.RunCycle(context.Background())

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.RunCycle(context.Background())
			case coachID := <-w.triggerChan:
				w.runForCoach(context.Background(), coachID)
			case <-w.stopChan:
				log.Println("[Watcher] Watcher stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the watcher.
func (w *Watcher) Stop() {
	close(w.stopChan)
}

// TriggerCoach queues an immediate inbox check for one coach, used by the
// push-notification subscriber and the manual API trigger. Drops the
// request when the queue is full; the next poll covers it.
func (w *Watcher) TriggerCoach(coachID string) {
	select {
	case w.triggerChan <- coachID:
	default:
		log.Printf("[Watcher] Trigger queue full, coach %s will be covered by the next poll", coachID)
	}
}

// TriggerByEmail resolves a Gmail address to its coach and queues a check.
func (w *Watcher) TriggerByEmail(email string) {
	cfg, err := w.configRepo.FindByEmail(email)
	if err != nil || cfg == nil {
		log.Printf("[Watcher] No coach config for %s, ignoring push notification", email)
		return
	}
	w.TriggerCoach(cfg.CoachID)
}

// RunCycle processes every enabled coach once.
func (w *Watcher) RunCycle(ctx context.Context) {
	configs, err := w.configRepo.FindEnabled()
	if err != nil {
		log.Printf("[Watcher] Failed to load coach configs: %v", err)
		return
	}
	if len(configs) == 0 {
		return
	}

	override := w.loadOverride()

	log.Printf("[Watcher] Cycle start: %d enabled coaches", len(configs))
	for _, cfg := range configs {
		w.checkCoach(ctx, cfg, override)
	}
}

func (w *Watcher) runForCoach(ctx context.Context, coachID string) {
	cfg, err := w.configRepo.FindByCoachID(coachID)
	if err != nil || cfg == nil {
		log.Printf("[Watcher] Triggered coach %s not found: %v", coachID, err)
		return
	}
	if !cfg.AgentEnabled {
		return
	}
	w.checkCoach(ctx, cfg, w.loadOverride())
}

func (w *Watcher) loadOverride() agentdomain.AdminOverride {
	settings, err := w.settingsRepo.Get()
	if err != nil {
		log.Printf("[Watcher] Failed to load system settings, override disabled: %v", err)
		return agentdomain.AdminOverride{}
	}
	return agentdomain.AdminOverride{
		Enabled: settings.AdminOverrideEnabled,
		Email:   settings.AdminOverrideEmail,
	}
}

// checkCoach runs one coach's unread threads through the pipeline. Errors
// are contained here.
func (w *Watcher) checkCoach(ctx context.Context, cfg *coachdomain.CoachConfig, override agentdomain.AdminOverride) {
	if cfg.RefreshToken == "" {
		log.Printf("[Watcher] Coach %s has no Gmail credentials, skipping", cfg.CoachID)
		return
	}

	creds := gmail.Credentials{
		AccessToken:  cfg.AccessToken,
		RefreshToken: cfg.RefreshToken,
		OnTokenRefresh: func(token *oauth2.Token) error {
			return w.configRepo.UpdateTokens(cfg.CoachID, token.AccessToken, token.RefreshToken)
		},
	}

	// First pass for a coach registers the mailbox for push notifications;
	// the stored historyId doubles as the registration marker.
	if w.pushTopic != "" && cfg.LastHistoryID == 0 {
		historyID, err := w.gmailSvc.Watch(ctx, creds, w.pushTopic)
		if err != nil {
			log.Printf("[Watcher] Failed to register push watch for coach %s: %v", cfg.CoachID, err)
		} else {
			cfg.LastHistoryID = historyID
			log.Printf("[Watcher] Registered push watch for coach %s (history %d)", cfg.CoachID, historyID)
		}
	}

	threads, err := w.gmailSvc.GetUnreadThreads(ctx, creds, agentdomain.LabelRead, maxThreadsPerCycle)
	if err != nil {
		log.Printf("[Watcher] Failed to fetch threads for coach %s: %v", cfg.CoachID, err)
		return
	}
	if len(threads) == 0 {
		w.checkpoint(cfg.CoachID, cfg.LastHistoryID)
		return
	}

	mailer := gmail.NewMailer(w.gmailSvc, creds)
	mode := agentdomain.HandlingMode(cfg.Mode())

	var processed, skipped, reviews int
	for _, thread := range threads {
		outcome := w.orchestrator.ProcessEmail(ctx, usecase.ProcessInput{
			CoachID: cfg.CoachID,
			Email: agentdomain.InboundEmail{
				Sender:   thread.Sender,
				Subject:  thread.Subject,
				Body:     thread.Body,
				ThreadID: thread.ThreadID,
			},
			Mode:     mode,
			Override: override,
			Mailer:   mailer,
		})

		switch {
		case outcome.Skipped:
			skipped++
		default:
			processed++
		}
		if outcome.NeedsReview {
			reviews++
			w.alertCoach(ctx, cfg.CoachID, thread)
		}
	}

	log.Printf("[Watcher] Coach %s: %d threads found, %d processed, %d skipped, %d for review",
		cfg.CoachID, len(threads), processed, skipped, reviews)
	w.checkpoint(cfg.CoachID, cfg.LastHistoryID)
}

func (w *Watcher) checkpoint(coachID string, historyID uint64) {
	if err := w.configRepo.UpdateCheckpoint(coachID, historyID); err != nil {
		log.Printf("[Watcher] Failed to update checkpoint for coach %s: %v", coachID, err)
	}
}

// alertCoach pushes an FCM notification to the coach's devices when a
// thread lands in review.
func (w *Watcher) alertCoach(ctx context.Context, coachID string, thread gmail.Thread) {
	if w.fcmClient == nil {
		return
	}

	devices, err := w.deviceRepo.FindByCoachID(coachID)
	if err != nil {
		log.Printf("[Watcher] Failed to load devices for coach %s: %v", coachID, err)
		return
	}
	if len(devices) == 0 {
		return
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}

	failed, err := w.fcmClient.SendToDevices(ctx, tokens, fcm.Alert{
		Title: "Email needs your review",
		Body:  "From " + thread.Sender + ": " + thread.Subject,
		Data: map[string]string{
			"type":      "review_pending",
			"thread_id": thread.ThreadID,
		},
	})
	if err != nil {
		log.Printf("[Watcher] Failed to alert coach %s: %v", coachID, err)
		return
	}
	for _, token := range failed {
		if err := w.deviceRepo.Remove(token); err != nil {
			log.Printf("[Watcher] Failed to prune dead device token: %v", err)
		}
	}
}
