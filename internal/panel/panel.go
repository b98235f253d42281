// Package panel keeps each guild's control panel messages in sync with the
// stored configuration. A panel's persisted location is the single source of
// truth; when the underlying channel or message disappears the record is
// purged and the panel waits to be set up again.
package panel

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"aegisguard/internal/metrics"
	"aegisguard/internal/platform"
	"aegisguard/internal/rules"
	"aegisguard/internal/storage"
)

// Messenger is the slice of the client the synchronizer needs.
type Messenger interface {
	SendMessage(ctx context.Context, channelID string, send *discordgo.MessageSend) (*discordgo.Message, error)
	EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	GetChannel(ctx context.Context, channelID string) (*discordgo.Channel, error)
}

// Store is the slice of the storage layer the synchronizer needs.
type Store interface {
	GetPanel(ctx context.Context, guildID, panelType string) (storage.PanelRecord, bool, error)
	SetPanel(ctx context.Context, record storage.PanelRecord) error
	ClearPanel(ctx context.Context, guildID, panelType string) error
	ListPanels(ctx context.Context) ([]storage.PanelRecord, error)
	GetRuleConfig(ctx context.Context, guildID string, rule rules.Type) (rules.Config, error)
	ListLockedChannels(ctx context.Context, guildID string) ([]storage.LockedChannel, error)
}

type Manager struct {
	store   Store
	client  Messenger
	logger  *zap.Logger
	metrics *metrics.Metrics
	group   singleflight.Group
}

func NewManager(store Store, client Messenger, logger *zap.Logger, m *metrics.Metrics) *Manager {
	return &Manager{store: store, client: client, logger: logger, metrics: m}
}

// Setup places a fresh panel in channelID. Any previous panel message for
// the pair is deleted best-effort; the record is replaced regardless so the
// store never points at two messages.
func (m *Manager) Setup(ctx context.Context, guildID string, pType Type, channelID string) error {
	if !ValidType(pType) {
		return fmt.Errorf("unknown panel type %q", pType)
	}

	old, hadOld, err := m.store.GetPanel(ctx, guildID, string(pType))
	if err != nil {
		return err
	}
	if hadOld {
		if err := m.client.DeleteMessage(ctx, old.ChannelID, old.MessageID); err != nil && !platform.IsNotFound(err) {
			m.logger.Warn("stale panel message not deleted",
				zap.String("guild_id", guildID),
				zap.String("panel", string(pType)),
				zap.Error(err))
		}
	}

	embed, components, err := m.render(ctx, guildID, pType)
	if err != nil {
		return err
	}
	message, err := m.client.SendMessage(ctx, channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		m.metrics.PanelSyncs.WithLabelValues(string(pType), "error").Inc()
		// The old message is already gone; drop the record now rather than
		// leaving it pointing at a deleted message until the next refresh.
		if hadOld {
			if cerr := m.store.ClearPanel(ctx, guildID, string(pType)); cerr != nil {
				m.logger.Warn("stale panel record not cleared",
					zap.String("guild_id", guildID),
					zap.String("panel", string(pType)),
					zap.Error(cerr))
			}
		}
		return err
	}

	if err := m.store.SetPanel(ctx, storage.PanelRecord{
		GuildID:   guildID,
		PanelType: string(pType),
		ChannelID: channelID,
		MessageID: message.ID,
	}); err != nil {
		return err
	}
	m.metrics.PanelSyncs.WithLabelValues(string(pType), "setup").Inc()
	return nil
}

// Refresh re-renders the panel message from current config. Concurrent
// refreshes of the same panel collapse into one flight. A missing channel or
// message purges the record so the panel self-heals instead of erroring
// forever.
func (m *Manager) Refresh(ctx context.Context, guildID string, pType Type) error {
	_, err, _ := m.group.Do(guildID+":"+string(pType), func() (any, error) {
		return nil, m.refresh(ctx, guildID, pType)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context, guildID string, pType Type) error {
	record, ok, err := m.store.GetPanel(ctx, guildID, string(pType))
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if _, err := m.client.GetChannel(ctx, record.ChannelID); err != nil {
		if platform.IsNotFound(err) {
			return m.purge(ctx, guildID, pType, "channel gone")
		}
		return err
	}

	embed, components, err := m.render(ctx, guildID, pType)
	if err != nil {
		return err
	}

	embeds := []*discordgo.MessageEmbed{embed}
	if _, err := m.client.EditMessage(ctx, &discordgo.MessageEdit{
		Channel:    record.ChannelID,
		ID:         record.MessageID,
		Embeds:     &embeds,
		Components: &components,
	}); err != nil {
		if platform.IsNotFound(err) {
			return m.purge(ctx, guildID, pType, "message gone")
		}
		m.metrics.PanelSyncs.WithLabelValues(string(pType), "error").Inc()
		return err
	}

	m.metrics.PanelSyncs.WithLabelValues(string(pType), "refresh").Inc()
	return nil
}

// Delete removes the panel message and its record. The record goes away even
// when the message deletion fails, matching setup's "record wins" rule.
func (m *Manager) Delete(ctx context.Context, guildID string, pType Type) error {
	record, ok, err := m.store.GetPanel(ctx, guildID, string(pType))
	if err != nil {
		return err
	}
	if ok {
		if err := m.client.DeleteMessage(ctx, record.ChannelID, record.MessageID); err != nil && !platform.IsNotFound(err) {
			m.logger.Warn("panel message not deleted",
				zap.String("guild_id", guildID),
				zap.String("panel", string(pType)),
				zap.Error(err))
		}
	}
	if err := m.store.ClearPanel(ctx, guildID, string(pType)); err != nil {
		return err
	}
	m.metrics.PanelSyncs.WithLabelValues(string(pType), "delete").Inc()
	return nil
}

// Resume walks every persisted panel at startup, refreshing live ones and
// purging records whose messages vanished while the bot was down.
func (m *Manager) Resume(ctx context.Context) error {
	records, err := m.store.ListPanels(ctx)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := m.Refresh(ctx, record.GuildID, Type(record.PanelType)); err != nil {
			m.logger.Warn("panel resume failed",
				zap.String("guild_id", record.GuildID),
				zap.String("panel", record.PanelType),
				zap.Error(err))
		}
	}
	return nil
}

func (m *Manager) purge(ctx context.Context, guildID string, pType Type, why string) error {
	m.logger.Info("purging stale panel record",
		zap.String("guild_id", guildID),
		zap.String("panel", string(pType)),
		zap.String("reason", why))
	m.metrics.PanelSyncs.WithLabelValues(string(pType), "healed").Inc()
	return m.store.ClearPanel(ctx, guildID, string(pType))
}
