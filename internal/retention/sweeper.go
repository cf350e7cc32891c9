// Package retention prunes stale conversations on a schedule.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/taskpilot/internal/store"
)

// Sweeper deletes conversations whose last activity is older than the
// configured retention window. Tasks are never touched.
type Sweeper struct {
	conversations *store.ConversationStore
	retention     time.Duration
	cron          *cron.Cron
}

// New creates a Sweeper keeping conversations for retentionDays.
func New(conversations *store.ConversationStore, retentionDays int) *Sweeper {
	return &Sweeper{
		conversations: conversations,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
		cron:          cron.New(),
	}
}

// Start registers the hourly sweep and starts the cron ticker.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("retention sweeper started", "retention", s.retention)
	return nil
}

// Stop stops the cron ticker.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.retention)
	removed, err := s.conversations.DeleteStale(context.Background(), cutoff)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}
	if removed > 0 {
		slog.Info("retention sweep removed conversations", "count", removed)
	}
}
