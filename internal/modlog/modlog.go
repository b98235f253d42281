// Package modlog records moderation outcomes to the store and the structured
// log. Recording is best-effort: a failed write never blocks the action that
// produced it.
package modlog

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aegisguard/internal/storage"
)

type Recorder struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewRecorder(store *storage.Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, entry storage.ModerationLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if r.store != nil {
		if err := r.store.AddModerationLog(ctx, entry); err != nil {
			r.logger.Warn("moderation log write failed", zap.Error(err))
		}
	}
	r.logger.Info("moderation action",
		zap.String("guild_id", entry.GuildID),
		zap.String("action", entry.Action),
		zap.String("target_id", entry.TargetID),
		zap.String("moderator_id", entry.ModeratorID),
		zap.String("reason", entry.Reason))
}
