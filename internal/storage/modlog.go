package storage

import (
	"context"
	"time"
)

type ModerationLog struct {
	ID              int64
	GuildID         string
	Action          string
	TargetID        string
	ModeratorID     string
	Reason          string
	DurationSeconds int64
	CreatedAt       time.Time
}

func (s *Store) AddModerationLog(ctx context.Context, log ModerationLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_logs (guild_id, action, target_id, moderator_id, reason, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.Action, log.TargetID, log.ModeratorID, log.Reason, log.DurationSeconds, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListModerationLogs(ctx context.Context, guildID string, limit int) ([]ModerationLog, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, action, target_id, moderator_id, reason, duration_seconds, created_at
		FROM moderation_logs
		WHERE guild_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ModerationLog
	for rows.Next() {
		var log ModerationLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.Action, &log.TargetID, &log.ModeratorID, &log.Reason, &log.DurationSeconds, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// CountModerationLogs aggregates entries by action since a point in time.
func (s *Store) CountModerationLogs(ctx context.Context, guildID string, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM moderation_logs
		WHERE guild_id = ? AND created_at >= ?
		GROUP BY action
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}

func (s *Store) CleanupModerationLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := s.db.ExecContext(ctx, `DELETE FROM moderation_logs WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
