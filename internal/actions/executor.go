// Package actions turns rule verdicts into platform operations. The executor
// owns the ordering rules: targets are notified by DM before a kick or ban
// removes the shared channel, and the moderation log entry is written after
// the platform call, best-effort.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegisguard/internal/engine"
	"aegisguard/internal/modlog"
	"aegisguard/internal/platform"
	"aegisguard/internal/rules"
	"aegisguard/internal/storage"
)

// Platform is the slice of the client the executor needs.
type Platform interface {
	SendDM(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error
	SendMessage(ctx context.Context, channelID string, send *discordgo.MessageSend) (*discordgo.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	TimeoutMember(ctx context.Context, guildID, userID string, until time.Time) error
}

// Target identifies what a verdict applies to. MessageID is empty for join
// events.
type Target struct {
	GuildID     string
	ChannelID   string
	MessageID   string
	UserID      string
	ModeratorID string
}

type Executor struct {
	platform Platform
	recorder *modlog.Recorder
	logger   *zap.Logger
}

func NewExecutor(client Platform, recorder *modlog.Recorder, logger *zap.Logger) *Executor {
	return &Executor{platform: client, recorder: recorder, logger: logger}
}

// Apply carries out one verdict and returns a short human-readable detail of
// what happened. Permission failures come back as errors for the caller to
// surface; they are logged here and never escalate further.
func (x *Executor) Apply(ctx context.Context, verdict engine.Verdict, target Target) (string, error) {
	if !verdict.Triggered {
		return "no action", nil
	}

	var detail string
	var err error
	switch verdict.Action {
	case rules.ActionWarn:
		detail, err = x.warn(ctx, verdict, target)
	case rules.ActionDelete:
		detail, err = x.delete(ctx, target)
	case rules.ActionMute:
		detail, err = x.mute(ctx, verdict, target)
	case rules.ActionKick:
		detail, err = x.kick(ctx, verdict, target)
	case rules.ActionBan:
		detail, err = x.ban(ctx, verdict, target)
	default:
		return "", fmt.Errorf("unknown action %q", verdict.Action)
	}

	if err != nil {
		if platform.IsForbidden(err) {
			x.logger.Warn("action blocked by permissions",
				zap.String("guild_id", target.GuildID),
				zap.String("action", string(verdict.Action)),
				zap.Error(err))
			x.alertLogChannel(ctx, verdict, target)
		}
		return "", err
	}

	x.record(ctx, verdict, target)
	return detail, nil
}

func (x *Executor) warn(ctx context.Context, verdict engine.Verdict, target Target) (string, error) {
	content := fmt.Sprintf("<@%s> %s", target.UserID, verdict.Reason)
	if _, err := x.platform.SendMessage(ctx, target.ChannelID, &discordgo.MessageSend{Content: content}); err != nil {
		return "", err
	}
	return "warned user " + target.UserID, nil
}

func (x *Executor) delete(ctx context.Context, target Target) (string, error) {
	if target.MessageID == "" {
		return "", fmt.Errorf("delete verdict without a message")
	}
	if err := x.platform.DeleteMessage(ctx, target.ChannelID, target.MessageID); err != nil {
		return "", err
	}
	return "deleted message " + target.MessageID, nil
}

func (x *Executor) mute(ctx context.Context, verdict engine.Verdict, target Target) (string, error) {
	duration := verdict.MuteFor
	if duration <= 0 || duration > rules.MaxMuteDuration {
		return "", fmt.Errorf("mute duration %s out of range", duration)
	}
	until := time.Now().Add(duration)
	if err := x.platform.TimeoutMember(ctx, target.GuildID, target.UserID, until); err != nil {
		return "", err
	}
	return fmt.Sprintf("muted user %s for %s", target.UserID, duration), nil
}

func (x *Executor) kick(ctx context.Context, verdict engine.Verdict, target Target) (string, error) {
	x.notify(ctx, target.UserID, "You were removed from the server", verdict.Reason)
	if err := x.platform.KickMember(ctx, target.GuildID, target.UserID, verdict.Reason); err != nil {
		return "", err
	}
	return "kicked user " + target.UserID, nil
}

func (x *Executor) ban(ctx context.Context, verdict engine.Verdict, target Target) (string, error) {
	x.notify(ctx, target.UserID, "You were banned from the server", verdict.Reason)
	if err := x.platform.BanMember(ctx, target.GuildID, target.UserID, verdict.Reason, 0); err != nil {
		return "", err
	}
	return "banned user " + target.UserID, nil
}

// alertLogChannel surfaces a permission failure in the guild's configured log
// channel so moderators see it without reading process logs. Best-effort.
func (x *Executor) alertLogChannel(ctx context.Context, verdict engine.Verdict, target Target) {
	if verdict.LogChannel == "" {
		return
	}
	content := fmt.Sprintf("Could not %s <@%s> (%s): missing permissions or role hierarchy.",
		verdict.Action, target.UserID, verdict.Reason)
	if _, err := x.platform.SendMessage(ctx, verdict.LogChannel, &discordgo.MessageSend{Content: content}); err != nil {
		x.logger.Debug("log channel alert failed", zap.String("channel_id", verdict.LogChannel), zap.Error(err))
	}
}

// notify DMs the target before removal. Closed DMs and blocked bots are
// routine, so failures are logged at debug and swallowed.
func (x *Executor) notify(ctx context.Context, userID, title, reason string) {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: reason,
		Color:       0xEF4444,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if err := x.platform.SendDM(ctx, userID, embed); err != nil {
		x.logger.Debug("dm notification failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (x *Executor) record(ctx context.Context, verdict engine.Verdict, target Target) {
	moderator := target.ModeratorID
	if moderator == "" {
		moderator = "auto:" + string(verdict.Rule)
	}
	x.recorder.Record(ctx, storage.ModerationLog{
		GuildID:         target.GuildID,
		Action:          string(verdict.Action),
		TargetID:        target.UserID,
		ModeratorID:     moderator,
		Reason:          verdict.Reason,
		DurationSeconds: int64(verdict.MuteFor / time.Second),
	})
}
