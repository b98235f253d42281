// Package engine evaluates guild protection rules against join and message
// events. Evaluation is read-only: it loads the guild's config, consults the
// shared sliding-window counters, and emits verdicts for the executor.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"aegisguard/internal/counter"
	"aegisguard/internal/rules"
	"aegisguard/internal/utils"
)

// ConfigSource is the slice of the store the evaluator needs.
type ConfigSource interface {
	GetRuleConfig(ctx context.Context, guildID string, rule rules.Type) (rules.Config, error)
}

// Verdict is one rule's decision about one event. Action is empty when the
// rule did not trigger, and also for burst detections, which are alerts
// rather than moderation of the member who happened to cross the threshold.
type Verdict struct {
	Rule       rules.Type
	Triggered  bool
	Action     rules.Action
	Reason     string
	Burst      bool
	MuteFor    time.Duration
	LogChannel string
}

// JoinEvent carries the fields of a member join the raid rule inspects.
type JoinEvent struct {
	GuildID        string
	UserID         string
	AccountCreated time.Time
}

// MessageEvent carries the fields of a message the content rules inspect.
type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	RoleIDs   []string
	Content   string
}

// Evaluator holds the injected dependencies shared by all rules.
type Evaluator struct {
	source  ConfigSource
	windows *counter.Windows
	logger  *zap.Logger
}

func New(source ConfigSource, windows *counter.Windows, logger *zap.Logger) *Evaluator {
	return &Evaluator{source: source, windows: windows, logger: logger}
}

// loadConfig fetches the rule config, treating a read failure as "disabled"
// so a broken store never triggers moderation actions.
func (e *Evaluator) loadConfig(ctx context.Context, guildID string, rule rules.Type) (rules.Config, bool) {
	cfg, err := e.source.GetRuleConfig(ctx, guildID, rule)
	if err != nil {
		e.logger.Error("rule config read failed, skipping rule",
			zap.String("guild_id", guildID),
			zap.String("rule", string(rule)),
			zap.Error(err))
		return rules.Config{}, false
	}
	return cfg, cfg.Enabled
}

// EvaluateJoin runs the raid rule against a member join. The account-age
// check short-circuits before the burst counter so an underage account never
// contributes a join to the window.
func (e *Evaluator) EvaluateJoin(ctx context.Context, event JoinEvent, now time.Time) Verdict {
	verdict := Verdict{Rule: rules.TypeRaid}

	cfg, enabled := e.loadConfig(ctx, event.GuildID, rules.TypeRaid)
	if !enabled {
		return verdict
	}

	verdict.LogChannel = cfg.LogChannelID

	if cfg.MinAccountAgeHours > 0 && !event.AccountCreated.IsZero() {
		minAge := time.Duration(cfg.MinAccountAgeHours) * time.Hour
		if age := now.Sub(event.AccountCreated); age < minAge {
			verdict.Triggered = true
			verdict.Action = rules.ActionKick
			verdict.Reason = fmt.Sprintf("account age %s below the %dh minimum", age.Round(time.Minute), cfg.MinAccountAgeHours)
			return verdict
		}
	}

	key := joinKey(event.GuildID)
	count := e.windows.Record(key, now, cfg.Window())
	if count >= cfg.Threshold {
		// Reset so the next join starts a fresh window instead of
		// re-triggering on every arrival during the same burst.
		e.windows.Reset(key)
		// A burst is an alert, not a verdict against the member whose join
		// crossed the threshold; no action is attached.
		verdict.Triggered = true
		verdict.Burst = true
		verdict.Reason = fmt.Sprintf("join burst: %d joins within %ds", count, cfg.WindowSeconds)
	}
	return verdict
}

// EvaluateMessage runs every message rule independently and returns the
// verdicts that triggered. Verdicts are never merged; one message can trip
// several rules at once.
func (e *Evaluator) EvaluateMessage(ctx context.Context, event MessageEvent, now time.Time) []Verdict {
	var verdicts []Verdict
	for _, rule := range rules.MessageTypes() {
		verdict := e.evaluateMessageRule(ctx, rule, event, now)
		if verdict.Triggered {
			verdicts = append(verdicts, verdict)
		}
	}
	return verdicts
}

func (e *Evaluator) evaluateMessageRule(ctx context.Context, rule rules.Type, event MessageEvent, now time.Time) Verdict {
	verdict := Verdict{Rule: rule}

	cfg, enabled := e.loadConfig(ctx, event.GuildID, rule)
	if !enabled {
		return verdict
	}

	// Spam has no bypass lists; everything else checks them before counting
	// or scanning, so exempt traffic never advances a counter.
	if rule != rules.TypeSpam && bypassed(cfg, event) {
		return verdict
	}

	switch rule {
	case rules.TypeSpam, rules.TypeFlood:
		key := userKey(rule, event.GuildID, event.UserID)
		count := e.windows.Record(key, now, cfg.Window())
		if count >= cfg.Threshold {
			verdict.Triggered = true
			verdict.Reason = fmt.Sprintf("%s: %d messages within %ds", rule, count, cfg.WindowSeconds)
		}
	case rules.TypeLink:
		if host := firstLinkHost(event.Content); host != "" {
			verdict.Triggered = true
			verdict.Reason = "link posted: " + host
		}
	case rules.TypeInvite:
		if invite := utils.FirstInvite(event.Content); invite != "" {
			verdict.Triggered = true
			verdict.Reason = "server invite posted: " + invite
		}
	}

	// The configured warning text, when set, replaces the detection detail so
	// members see the guild's own wording.
	if verdict.Triggered && cfg.WarnMessage != "" {
		verdict.Reason = cfg.WarnMessage
	}

	if verdict.Triggered {
		verdict.Action = cfg.Action
		verdict.LogChannel = cfg.LogChannelID
		if cfg.Action == rules.ActionMute {
			verdict.MuteFor = cfg.MuteDuration()
		}
	}
	return verdict
}

func bypassed(cfg rules.Config, event MessageEvent) bool {
	for _, id := range cfg.BypassChannels {
		if id == event.ChannelID {
			return true
		}
	}
	for _, roleID := range event.RoleIDs {
		for _, id := range cfg.BypassRoles {
			if id == roleID {
				return true
			}
		}
	}
	return false
}

func firstLinkHost(content string) string {
	urls := utils.ExtractURLs(content)
	if len(urls) == 0 {
		return ""
	}
	if _, host, err := utils.NormalizeURL(urls[0]); err == nil {
		return host
	}
	return urls[0]
}

func joinKey(guildID string) string {
	return "join:" + guildID
}

func userKey(rule rules.Type, guildID, userID string) string {
	return string(rule) + ":" + guildID + ":" + userID
}
