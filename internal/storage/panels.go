package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PanelRecord is the persisted location of a control panel message. At most
// one record exists per (guild, panel type).
type PanelRecord struct {
	GuildID   string
	PanelType string
	ChannelID string
	MessageID string
	UpdatedAt time.Time
}

// GetPanel returns the panel record and whether one exists.
func (s *Store) GetPanel(ctx context.Context, guildID, panelType string) (PanelRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT channel_id, message_id, updated_at
		FROM panels WHERE guild_id = ? AND panel_type = ?`, guildID, panelType)

	record := PanelRecord{GuildID: guildID, PanelType: panelType}
	var updated int64
	if err := row.Scan(&record.ChannelID, &record.MessageID, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PanelRecord{}, false, nil
		}
		return PanelRecord{}, false, err
	}
	record.UpdatedAt = time.Unix(updated, 0)
	return record, true, nil
}

// SetPanel replaces the record for (guild, panel type) in one statement.
func (s *Store) SetPanel(ctx context.Context, record PanelRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO panels (guild_id, panel_type, channel_id, message_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, panel_type) DO UPDATE SET
			channel_id = excluded.channel_id,
			message_id = excluded.message_id,
			updated_at = excluded.updated_at
	`, record.GuildID, record.PanelType, record.ChannelID, record.MessageID, time.Now().Unix())
	return err
}

// ClearPanel removes the record. Clearing an absent record is not an error.
func (s *Store) ClearPanel(ctx context.Context, guildID, panelType string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM panels WHERE guild_id = ? AND panel_type = ?`, guildID, panelType)
	return err
}

// ListPanels returns every stored panel record, used to resume panels at
// startup.
func (s *Store) ListPanels(ctx context.Context) ([]PanelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT guild_id, panel_type, channel_id, message_id, updated_at
		FROM panels ORDER BY guild_id, panel_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []PanelRecord
	for rows.Next() {
		var record PanelRecord
		var updated int64
		if err := rows.Scan(&record.GuildID, &record.PanelType, &record.ChannelID, &record.MessageID, &updated); err != nil {
			return nil, err
		}
		record.UpdatedAt = time.Unix(updated, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}
