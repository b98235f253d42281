package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegisguard/internal/actions"
	"aegisguard/internal/config"
	"aegisguard/internal/engine"
	"aegisguard/internal/lockdown"
	"aegisguard/internal/metrics"
	"aegisguard/internal/modlog"
	"aegisguard/internal/panel"
	"aegisguard/internal/storage"
)

// Deps bundles everything the bot layer depends on. Construction happens in
// main so each piece can be built and tested on its own.
type Deps struct {
	Store     *storage.Store
	Evaluator *engine.Evaluator
	Executor  *actions.Executor
	Panels    *panel.Manager
	Lockdown  *lockdown.Core
	Recorder  *modlog.Recorder
	Metrics   *metrics.Metrics
}

type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	session *discordgo.Session
	deps    Deps
}

func New(cfg config.Config, logger *zap.Logger, session *discordgo.Session, deps Deps) *Bot {
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	return &Bot{
		cfg:     cfg,
		logger:  logger,
		session: session,
		deps:    deps,
	}
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	return b.session.Open()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, _ *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))

	if err := b.registerCommands(); err != nil {
		b.logger.Error("command registration failed", zap.Error(err))
	}

	if b.cfg.Panels.ResumeOnStart {
		go b.resumeState(session)
	}
}

// resumeState re-syncs persisted panels and lock timers after a (re)connect.
func (b *Bot) resumeState(session *discordgo.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := b.deps.Panels.Resume(ctx); err != nil {
		b.logger.Warn("panel resume failed", zap.Error(err))
	}

	var guildIDs []string
	for _, guild := range session.State.Guilds {
		if guild != nil {
			guildIDs = append(guildIDs, guild.ID)
		}
	}
	b.deps.Lockdown.Resume(ctx, guildIDs)
}

func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.Member.User == nil || event.Member.User.Bot {
		return
	}
	guildID := event.Member.GuildID
	userID := event.Member.User.ID
	if guildID == "" {
		return
	}

	ctx := context.Background()
	b.deps.Metrics.EventsEvaluated.WithLabelValues("join").Inc()

	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		b.logger.Warn("bad user snowflake", zap.String("user_id", userID), zap.Error(err))
		created = time.Time{}
	}

	verdict := b.deps.Evaluator.EvaluateJoin(ctx, engine.JoinEvent{
		GuildID:        guildID,
		UserID:         userID,
		AccountCreated: created,
	}, time.Now())
	if !verdict.Triggered {
		return
	}
	if verdict.Burst {
		b.alertBurst(ctx, guildID, userID, verdict)
		return
	}

	b.applyVerdict(ctx, verdict, actions.Target{GuildID: guildID, UserID: userID})
}

// alertBurst records a join burst without moderating anyone; the member whose
// join crossed the threshold is not the raid.
func (b *Bot) alertBurst(ctx context.Context, guildID, userID string, verdict engine.Verdict) {
	b.deps.Metrics.Verdicts.WithLabelValues(string(verdict.Rule), "alert").Inc()
	b.logger.Warn("join burst detected",
		zap.String("guild_id", guildID),
		zap.String("reason", verdict.Reason))
	b.deps.Recorder.Record(ctx, storage.ModerationLog{
		GuildID:     guildID,
		Action:      "raid_alert",
		TargetID:    userID,
		ModeratorID: "auto:" + string(verdict.Rule),
		Reason:      verdict.Reason,
	})
	if verdict.LogChannel != "" {
		if _, err := b.session.ChannelMessageSend(verdict.LogChannel, ":rotating_light: "+verdict.Reason); err != nil {
			b.logger.Warn("burst alert not delivered", zap.String("channel_id", verdict.LogChannel), zap.Error(err))
		}
	}
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	b.deps.Metrics.EventsEvaluated.WithLabelValues("message").Inc()

	var roleIDs []string
	if msg.Member != nil {
		roleIDs = msg.Member.Roles
	}

	verdicts := b.deps.Evaluator.EvaluateMessage(ctx, engine.MessageEvent{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    msg.Author.ID,
		RoleIDs:   roleIDs,
		Content:   msg.Content,
	}, time.Now())

	target := actions.Target{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    msg.Author.ID,
	}
	for _, verdict := range verdicts {
		b.applyVerdict(ctx, verdict, target)
	}
}

func (b *Bot) applyVerdict(ctx context.Context, verdict engine.Verdict, target actions.Target) {
	b.deps.Metrics.Verdicts.WithLabelValues(string(verdict.Rule), string(verdict.Action)).Inc()

	detail, err := b.deps.Executor.Apply(ctx, verdict, target)
	if err != nil {
		b.deps.Metrics.ActionsApplied.WithLabelValues(string(verdict.Action), "error").Inc()
		b.logger.Warn("verdict not applied",
			zap.String("guild_id", target.GuildID),
			zap.String("rule", string(verdict.Rule)),
			zap.String("action", string(verdict.Action)),
			zap.Error(err))
		return
	}

	b.deps.Metrics.ActionsApplied.WithLabelValues(string(verdict.Action), "ok").Inc()
	b.logger.Info("verdict applied",
		zap.String("guild_id", target.GuildID),
		zap.String("rule", string(verdict.Rule)),
		zap.String("action", string(verdict.Action)),
		zap.String("detail", detail))
}
