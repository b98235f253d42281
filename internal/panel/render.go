package panel

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"aegisguard/internal/rules"
)

const (
	colorActive   = 0x22C55E
	colorInactive = 0x64748B
	colorLockdown = 0xEF4444
)

// featureRules maps the feature panel's button args to rule types, in render
// order.
var featureRules = []struct {
	Arg   string
	Rule  rules.Type
	Label string
}{
	{"spam", rules.TypeSpam, "Anti-Spam"},
	{"link", rules.TypeLink, "Anti-Link"},
	{"invite", rules.TypeInvite, "Anti-Invite"},
	{"flood", rules.TypeFlood, "Anti-Flood"},
}

// FeatureRule resolves a feature button arg back to its rule type.
func FeatureRule(arg string) (rules.Type, bool) {
	for _, f := range featureRules {
		if f.Arg == arg {
			return f.Rule, true
		}
	}
	return "", false
}

func (m *Manager) render(ctx context.Context, guildID string, pType Type) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	switch pType {
	case TypeRaid:
		return m.renderRaid(ctx, guildID)
	case TypeFeatures:
		return m.renderFeatures(ctx, guildID)
	case TypeLockdown:
		return m.renderLockdown(ctx, guildID)
	default:
		return nil, nil, fmt.Errorf("unknown panel type %q", pType)
	}
}

func (m *Manager) renderRaid(ctx context.Context, guildID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	cfg, err := m.store.GetRuleConfig(ctx, guildID, rules.TypeRaid)
	if err != nil {
		return nil, nil, err
	}

	color := colorInactive
	status := "Disabled"
	if cfg.Enabled {
		color = colorActive
		status = "Enabled"
	}

	embed := &discordgo.MessageEmbed{
		Title: "Raid Protection",
		Description: "New members are screened by account age and the guild " +
			"join rate is watched for bursts.",
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: status, Inline: true},
			{Name: "Min account age", Value: fmt.Sprintf("%dh", cfg.MinAccountAgeHours), Inline: true},
			{Name: "Join burst", Value: fmt.Sprintf("%d joins / %ds", cfg.Threshold, cfg.WindowSeconds), Inline: true},
		},
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Enable",
				Style:    discordgo.SuccessButton,
				CustomID: CustomID{Panel: TypeRaid, Action: ActionEnable}.String(),
				Disabled: cfg.Enabled,
			},
			discordgo.Button{
				Label:    "Disable",
				Style:    discordgo.DangerButton,
				CustomID: CustomID{Panel: TypeRaid, Action: ActionDisable}.String(),
				Disabled: !cfg.Enabled,
			},
			discordgo.Button{
				Label:    "Configure",
				Style:    discordgo.SecondaryButton,
				CustomID: CustomID{Panel: TypeRaid, Action: ActionConfigure}.String(),
			},
		}},
	}
	return embed, components, nil
}

func (m *Manager) renderFeatures(ctx context.Context, guildID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	embed := &discordgo.MessageEmbed{
		Title:       "Message Protection",
		Description: "Per-rule filters for spam, links, invites and flood.",
		Color:       colorInactive,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	var toggles []discordgo.MessageComponent
	var configures []discordgo.MessageComponent
	anyEnabled := false

	for _, feature := range featureRules {
		cfg, err := m.store.GetRuleConfig(ctx, guildID, feature.Rule)
		if err != nil {
			return nil, nil, err
		}

		status := "off"
		style := discordgo.SecondaryButton
		if cfg.Enabled {
			status = "on"
			style = discordgo.SuccessButton
			anyEnabled = true
		}

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   feature.Label,
			Value:  featureSummary(feature.Rule, cfg, status),
			Inline: true,
		})
		toggles = append(toggles, discordgo.Button{
			Label:    feature.Label + ": " + status,
			Style:    style,
			CustomID: CustomID{Panel: TypeFeatures, Action: ActionToggle, Arg: feature.Arg}.String(),
		})
		configures = append(configures, discordgo.Button{
			Label:    "Configure " + feature.Label,
			Style:    discordgo.SecondaryButton,
			CustomID: CustomID{Panel: TypeFeatures, Action: ActionConfigure, Arg: feature.Arg}.String(),
		})
	}

	if anyEnabled {
		embed.Color = colorActive
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: toggles},
		discordgo.ActionsRow{Components: configures},
	}
	return embed, components, nil
}

func featureSummary(rule rules.Type, cfg rules.Config, status string) string {
	switch rule {
	case rules.TypeSpam, rules.TypeFlood:
		return fmt.Sprintf("%s, %d/%ds, %s", status, cfg.Threshold, cfg.WindowSeconds, cfg.Action)
	default:
		return fmt.Sprintf("%s, %s", status, cfg.Action)
	}
}

func (m *Manager) renderLockdown(ctx context.Context, guildID string) (*discordgo.MessageEmbed, []discordgo.MessageComponent, error) {
	locks, err := m.store.ListLockedChannels(ctx, guildID)
	if err != nil {
		return nil, nil, err
	}

	color := colorInactive
	value := "none"
	if len(locks) > 0 {
		color = colorLockdown
		value = fmt.Sprintf("%d", len(locks))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Lockdown Controls",
		Description: "Lock or unlock channels for the whole guild.",
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Locked channels", Value: value, Inline: true},
		},
	}

	components := []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				Label:    "Lock channel",
				Style:    discordgo.DangerButton,
				CustomID: CustomID{Panel: TypeLockdown, Action: ActionLock}.String(),
			},
			discordgo.Button{
				Label:    "Unlock channel",
				Style:    discordgo.SuccessButton,
				CustomID: CustomID{Panel: TypeLockdown, Action: ActionUnlock}.String(),
			},
			discordgo.Button{
				Label:    "Lock all",
				Style:    discordgo.DangerButton,
				CustomID: CustomID{Panel: TypeLockdown, Action: ActionLockAll}.String(),
			},
			discordgo.Button{
				Label:    "Unlock all",
				Style:    discordgo.SuccessButton,
				CustomID: CustomID{Panel: TypeLockdown, Action: ActionUnlockAll}.String(),
			},
		}},
	}
	return embed, components, nil
}
