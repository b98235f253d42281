package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// LockedChannel remembers a channel lock so the prior permission overwrite
// can be restored on unlock, including across restarts.
type LockedChannel struct {
	ChannelID   string
	GuildID     string
	Reason      string
	LockedBy    string
	LockedUntil time.Time
	PrevAllow   int64
	PrevDeny    int64
}

func (s *Store) AddLockedChannel(ctx context.Context, lock LockedChannel) error {
	until := int64(0)
	if !lock.LockedUntil.IsZero() {
		until = lock.LockedUntil.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locked_channels (channel_id, guild_id, reason, locked_by, locked_until, prev_allow, prev_deny)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			reason = excluded.reason,
			locked_by = excluded.locked_by,
			locked_until = excluded.locked_until
	`, lock.ChannelID, lock.GuildID, lock.Reason, lock.LockedBy, until, lock.PrevAllow, lock.PrevDeny)
	return err
}

func (s *Store) GetLockedChannel(ctx context.Context, channelID string) (LockedChannel, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, guild_id, reason, locked_by, locked_until, prev_allow, prev_deny
		FROM locked_channels WHERE channel_id = ?`, channelID)

	var lock LockedChannel
	var until int64
	if err := row.Scan(&lock.ChannelID, &lock.GuildID, &lock.Reason, &lock.LockedBy, &until, &lock.PrevAllow, &lock.PrevDeny); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LockedChannel{}, false, nil
		}
		return LockedChannel{}, false, err
	}
	if until > 0 {
		lock.LockedUntil = time.Unix(until, 0)
	}
	return lock, true, nil
}

func (s *Store) RemoveLockedChannel(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locked_channels WHERE channel_id = ?`, channelID)
	return err
}

func (s *Store) ListLockedChannels(ctx context.Context, guildID string) ([]LockedChannel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel_id, guild_id, reason, locked_by, locked_until, prev_allow, prev_deny
		FROM locked_channels WHERE guild_id = ? ORDER BY channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []LockedChannel
	for rows.Next() {
		var lock LockedChannel
		var until int64
		if err := rows.Scan(&lock.ChannelID, &lock.GuildID, &lock.Reason, &lock.LockedBy, &until, &lock.PrevAllow, &lock.PrevDeny); err != nil {
			return nil, err
		}
		if until > 0 {
			lock.LockedUntil = time.Unix(until, 0)
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}
