// Package lockdown locks channels by denying SendMessages for @everyone,
// persisting the prior overwrite so unlock restores it exactly, including
// after a restart.
package lockdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegisguard/internal/storage"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Platform is the slice of the client the lockdown core needs.
type Platform interface {
	GetChannel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	EditChannelPermissions(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error
	DeleteChannelPermission(ctx context.Context, channelID, targetID string) error
}

type Core struct {
	mu       sync.Mutex
	store    *storage.Store
	platform Platform
	logger   *zap.Logger
	clock    Clock
	timers   map[string]Timer
}

func NewCore(store *storage.Store, client Platform, logger *zap.Logger) *Core {
	return &Core{
		store:    store,
		platform: client,
		logger:   logger,
		clock:    realClock{},
		timers:   make(map[string]Timer),
	}
}

func (c *Core) WithClock(clock Clock) {
	c.clock = clock
}

// LockChannel denies SendMessages for the guild's @everyone role (whose ID
// equals the guild ID) and remembers the prior overwrite. Locking an already
// locked channel refreshes the reason and expiry without touching the
// snapshot.
func (c *Core) LockChannel(ctx context.Context, guildID, channelID, moderatorID, reason string, duration time.Duration) error {
	existing, locked, err := c.store.GetLockedChannel(ctx, channelID)
	if err != nil {
		return err
	}

	lock := storage.LockedChannel{
		ChannelID: channelID,
		GuildID:   guildID,
		Reason:    reason,
		LockedBy:  moderatorID,
	}
	if duration > 0 {
		lock.LockedUntil = c.clock.Now().Add(duration)
	}

	if locked {
		lock.PrevAllow = existing.PrevAllow
		lock.PrevDeny = existing.PrevDeny
	} else {
		allow, deny, err := c.everyoneOverwrite(ctx, guildID, channelID)
		if err != nil {
			return err
		}
		lock.PrevAllow = allow
		lock.PrevDeny = deny
	}

	deny := lock.PrevDeny | discordgo.PermissionSendMessages
	allow := lock.PrevAllow &^ discordgo.PermissionSendMessages
	if err := c.platform.EditChannelPermissions(ctx, channelID, guildID, discordgo.PermissionOverwriteTypeRole, allow, deny); err != nil {
		return fmt.Errorf("lock channel %s: %w", channelID, err)
	}

	if err := c.store.AddLockedChannel(ctx, lock); err != nil {
		return err
	}
	c.logger.Info("channel locked",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.String("reason", reason))

	if duration > 0 {
		c.scheduleUnlock(guildID, channelID, duration)
	}
	return nil
}

// UnlockChannel restores the snapshotted overwrite and drops the lock row.
// Unlocking a channel that is not locked is a no-op.
func (c *Core) UnlockChannel(ctx context.Context, guildID, channelID string) error {
	lock, locked, err := c.store.GetLockedChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if !locked {
		return nil
	}

	c.cancelTimer(channelID)

	if lock.PrevAllow == 0 && lock.PrevDeny == 0 {
		err = c.platform.DeleteChannelPermission(ctx, channelID, guildID)
	} else {
		err = c.platform.EditChannelPermissions(ctx, channelID, guildID, discordgo.PermissionOverwriteTypeRole, lock.PrevAllow, lock.PrevDeny)
	}
	if err != nil {
		return fmt.Errorf("unlock channel %s: %w", channelID, err)
	}

	if err := c.store.RemoveLockedChannel(ctx, channelID); err != nil {
		return err
	}
	c.logger.Info("channel unlocked",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID))
	return nil
}

// LockAll locks every text channel in the guild. Individual failures are
// logged and skipped so one broken channel does not abort the sweep.
func (c *Core) LockAll(ctx context.Context, guildID, moderatorID, reason string, duration time.Duration) (int, error) {
	channels, err := c.platform.GuildChannels(ctx, guildID)
	if err != nil {
		return 0, err
	}

	locked := 0
	for _, channel := range channels {
		if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if err := c.LockChannel(ctx, guildID, channel.ID, moderatorID, reason, duration); err != nil {
			c.logger.Warn("lock-all skipped channel",
				zap.String("channel_id", channel.ID),
				zap.Error(err))
			continue
		}
		locked++
	}
	return locked, nil
}

// UnlockAll unlocks every channel this guild has locked.
func (c *Core) UnlockAll(ctx context.Context, guildID string) (int, error) {
	locks, err := c.store.ListLockedChannels(ctx, guildID)
	if err != nil {
		return 0, err
	}

	unlocked := 0
	for _, lock := range locks {
		if err := c.UnlockChannel(ctx, guildID, lock.ChannelID); err != nil {
			c.logger.Warn("unlock-all skipped channel",
				zap.String("channel_id", lock.ChannelID),
				zap.Error(err))
			continue
		}
		unlocked++
	}
	return unlocked, nil
}

// Resume reschedules expiry timers for locks that survived a restart,
// unlocking immediately any whose deadline already passed.
func (c *Core) Resume(ctx context.Context, guildIDs []string) {
	now := c.clock.Now()
	for _, guildID := range guildIDs {
		locks, err := c.store.ListLockedChannels(ctx, guildID)
		if err != nil {
			c.logger.Warn("lockdown resume failed", zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		for _, lock := range locks {
			if lock.LockedUntil.IsZero() {
				continue
			}
			remaining := lock.LockedUntil.Sub(now)
			if remaining <= 0 {
				if err := c.UnlockChannel(ctx, guildID, lock.ChannelID); err != nil {
					c.logger.Warn("expired lock cleanup failed", zap.String("channel_id", lock.ChannelID), zap.Error(err))
				}
				continue
			}
			c.scheduleUnlock(guildID, lock.ChannelID, remaining)
		}
	}
}

func (c *Core) scheduleUnlock(guildID, channelID string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[channelID]; ok {
		timer.Stop()
	}
	c.timers[channelID] = c.clock.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.UnlockChannel(ctx, guildID, channelID); err != nil {
			c.logger.Warn("timed unlock failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	})
}

func (c *Core) cancelTimer(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timer, ok := c.timers[channelID]; ok {
		timer.Stop()
		delete(c.timers, channelID)
	}
}

func (c *Core) everyoneOverwrite(ctx context.Context, guildID, channelID string) (int64, int64, error) {
	channel, err := c.platform.GetChannel(ctx, channelID)
	if err != nil {
		return 0, 0, err
	}
	for _, overwrite := range channel.PermissionOverwrites {
		if overwrite.Type == discordgo.PermissionOverwriteTypeRole && overwrite.ID == guildID {
			return overwrite.Allow, overwrite.Deny, nil
		}
	}
	return 0, 0, nil
}
