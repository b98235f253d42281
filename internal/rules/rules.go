package rules

import (
	"errors"
	"fmt"
	"time"
)

// Type identifies a protection rule. Each guild holds one config per type.
type Type string

const (
	TypeRaid   Type = "raid"
	TypeSpam   Type = "anti_spam"
	TypeLink   Type = "anti_link"
	TypeInvite Type = "anti_invite"
	TypeFlood  Type = "anti_flood"
)

// Action is what a triggered rule asks the executor to do.
type Action string

const (
	ActionWarn   Action = "warn"
	ActionDelete Action = "delete"
	ActionMute   Action = "mute"
	ActionKick   Action = "kick"
	ActionBan    Action = "ban"
)

// MaxMuteDuration mirrors the platform timeout ceiling.
const MaxMuteDuration = 28 * 24 * time.Hour

// Config is the full stored shape for one (guild, rule) pair. Fields that a
// given rule type does not use keep their zero value and are ignored by the
// evaluator for that type.
type Config struct {
	Enabled            bool     `json:"enabled"`
	Threshold          int      `json:"threshold,omitempty"`
	WindowSeconds      int      `json:"window_seconds,omitempty"`
	Action             Action   `json:"action,omitempty"`
	MuteMinutes        int      `json:"mute_minutes,omitempty"`
	MinAccountAgeHours int      `json:"min_account_age_hours,omitempty"`
	WarnMessage        string   `json:"warn_message,omitempty"`
	LogChannelID       string   `json:"log_channel_id,omitempty"`
	BypassChannels     []string `json:"bypass_channels,omitempty"`
	BypassRoles        []string `json:"bypass_roles,omitempty"`
}

func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c Config) MuteDuration() time.Duration {
	return time.Duration(c.MuteMinutes) * time.Minute
}

// Types lists every rule type in a stable order.
func Types() []Type {
	return []Type{TypeRaid, TypeSpam, TypeLink, TypeInvite, TypeFlood}
}

// MessageTypes lists the rule types evaluated against message events.
func MessageTypes() []Type {
	return []Type{TypeSpam, TypeLink, TypeInvite, TypeFlood}
}

// Defaults returns the built-in config for a rule type. Every rule starts
// disabled so a fresh guild is never moderated before an admin opts in.
func Defaults(rule Type) Config {
	switch rule {
	case TypeRaid:
		return Config{
			Threshold:          10,
			WindowSeconds:      60,
			MinAccountAgeHours: 24,
			Action:             ActionKick,
		}
	case TypeSpam:
		return Config{
			Threshold:     5,
			WindowSeconds: 5,
			Action:        ActionDelete,
			MuteMinutes:   5,
		}
	case TypeLink:
		return Config{
			Action:      ActionDelete,
			WarnMessage: "Links are not allowed in this channel.",
		}
	case TypeInvite:
		return Config{
			Action:      ActionDelete,
			WarnMessage: "Server invites are not allowed here.",
		}
	case TypeFlood:
		return Config{
			Threshold:     10,
			WindowSeconds: 10,
			Action:        ActionWarn,
			MuteMinutes:   10,
		}
	default:
		return Config{}
	}
}

// Patch is a partial config update. Nil fields leave the stored value
// untouched; the store applies a patch over the current config and writes the
// merged row back in one replace.
type Patch struct {
	Enabled            *bool     `json:"enabled,omitempty"`
	Threshold          *int      `json:"threshold,omitempty"`
	WindowSeconds      *int      `json:"window_seconds,omitempty"`
	Action             *Action   `json:"action,omitempty"`
	MuteMinutes        *int      `json:"mute_minutes,omitempty"`
	MinAccountAgeHours *int      `json:"min_account_age_hours,omitempty"`
	WarnMessage        *string   `json:"warn_message,omitempty"`
	LogChannelID       *string   `json:"log_channel_id,omitempty"`
	BypassChannels     *[]string `json:"bypass_channels,omitempty"`
	BypassRoles        *[]string `json:"bypass_roles,omitempty"`
}

func (p Patch) ApplyTo(cfg *Config) {
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.Threshold != nil {
		cfg.Threshold = *p.Threshold
	}
	if p.WindowSeconds != nil {
		cfg.WindowSeconds = *p.WindowSeconds
	}
	if p.Action != nil {
		cfg.Action = *p.Action
	}
	if p.MuteMinutes != nil {
		cfg.MuteMinutes = *p.MuteMinutes
	}
	if p.MinAccountAgeHours != nil {
		cfg.MinAccountAgeHours = *p.MinAccountAgeHours
	}
	if p.WarnMessage != nil {
		cfg.WarnMessage = *p.WarnMessage
	}
	if p.LogChannelID != nil {
		cfg.LogChannelID = *p.LogChannelID
	}
	if p.BypassChannels != nil {
		cfg.BypassChannels = *p.BypassChannels
	}
	if p.BypassRoles != nil {
		cfg.BypassRoles = *p.BypassRoles
	}
}

var validActions = map[Action]struct{}{
	ActionWarn:   {},
	ActionDelete: {},
	ActionMute:   {},
	ActionKick:   {},
	ActionBan:    {},
}

// Validate rejects configs that a rule could not act on.
func Validate(rule Type, cfg Config) error {
	switch rule {
	case TypeRaid:
		if cfg.Threshold <= 0 {
			return errors.New("join burst threshold must be positive")
		}
		if cfg.WindowSeconds <= 0 {
			return errors.New("join burst window must be positive")
		}
		if cfg.MinAccountAgeHours < 0 {
			return errors.New("minimum account age cannot be negative")
		}
		return nil
	case TypeSpam, TypeFlood:
		if cfg.Threshold <= 0 {
			return fmt.Errorf("%s threshold must be positive", rule)
		}
		if cfg.WindowSeconds <= 0 {
			return fmt.Errorf("%s window must be positive", rule)
		}
	case TypeLink, TypeInvite:
	default:
		return fmt.Errorf("unknown rule type %q", rule)
	}

	if _, ok := validActions[cfg.Action]; !ok {
		return fmt.Errorf("unknown action %q", cfg.Action)
	}
	if cfg.Action == ActionMute && cfg.MuteMinutes <= 0 {
		return errors.New("mute action requires a positive mute duration")
	}
	if cfg.MuteDuration() > MaxMuteDuration {
		return fmt.Errorf("mute duration exceeds the %s ceiling", MaxMuteDuration)
	}
	return nil
}
