package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SecretCleaner drops OTP and reset-token secrets that expired at or before now
type SecretCleaner interface {
	ClearExpiredSecrets(ctx context.Context, now time.Time) (int64, error)
}

// CleanupManager periodically clears expired verification and reset secrets
// so they do not linger in the store after their window closes.
type CleanupManager struct {
	store    SecretCleaner
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(store SecretCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupManager{
		store:    store,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called or ctx is done.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass and returns the number of users touched
func (cm *CleanupManager) RunOnce(ctx context.Context) int64 {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cleared, err := cm.store.ClearExpiredSecrets(cleanupCtx, cm.now())
	if err != nil {
		cm.logger.Error("failed to clear expired secrets", slog.Any("error", err))
		return 0
	}

	if cleared > 0 {
		cm.logger.Info("expired secret cleanup completed", slog.Int64("users_cleared", cleared))
	}
	return cleared
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
