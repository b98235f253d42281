package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"aegisguard/internal/panel"
	"aegisguard/internal/rules"
	"aegisguard/internal/utils"
)

var (
	permManageServer    = int64(discordgo.PermissionManageServer)
	permModerateMembers = int64(discordgo.PermissionModerateMembers)
	permKickMembers     = int64(discordgo.PermissionKickMembers)
	permBanMembers      = int64(discordgo.PermissionBanMembers)
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	panelTypeChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "raid", Value: string(panel.TypeRaid)},
		{Name: "features", Value: string(panel.TypeFeatures)},
		{Name: "lockdown", Value: string(panel.TypeLockdown)},
	}
	ruleChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "raid", Value: string(rules.TypeRaid)},
		{Name: "anti_spam", Value: string(rules.TypeSpam)},
		{Name: "anti_link", Value: string(rules.TypeLink)},
		{Name: "anti_invite", Value: string(rules.TypeInvite)},
		{Name: "anti_flood", Value: string(rules.TypeFlood)},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "panel",
			Description:              "Manage control panels",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "setup or delete",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "setup", Value: "setup"},
						{Name: "delete", Value: "delete"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "panel type",
					Required:    true,
					Choices:     panelTypeChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "channel for the panel (setup only, defaults to here)",
					Required:    false,
				},
			},
		},
		{
			Name:                     "protection",
			Description:              "View or adjust a protection rule",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "Show a rule's settings",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "rule",
							Description: "rule to inspect",
							Required:    true,
							Choices:     ruleChoices,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Update a rule's bypass lists and alert channel",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "rule",
							Description: "rule to update",
							Required:    true,
							Choices:     ruleChoices,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "bypass_channels",
							Description: "comma separated channel IDs, or none to clear",
							Required:    false,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "bypass_roles",
							Description: "comma separated role IDs, or none to clear",
							Required:    false,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "log_channel",
							Description: "channel ID for rule alerts, or none to clear",
							Required:    false,
						},
					},
				},
			},
		},
		{
			Name:                     "warn",
			Description:              "Warn a member",
			DefaultMemberPermissions: &permModerateMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "member to warn", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "reason", Required: true},
			},
		},
		{
			Name:                     "kick",
			Description:              "Kick a member",
			DefaultMemberPermissions: &permKickMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "member to kick", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "reason", Required: false},
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a member",
			DefaultMemberPermissions: &permBanMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "member to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "reason", Required: false},
			},
		},
		{
			Name:                     "mute",
			Description:              "Timeout a member",
			DefaultMemberPermissions: &permModerateMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "member to mute", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "e.g. 30m, 2h, 1d", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "reason", Required: false},
			},
		},
		{
			Name:                     "lock",
			Description:              "Lock a channel",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "channel to lock (defaults to here)", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "e.g. 30m, 2h", Required: false},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "reason", Required: false},
			},
		},
		{
			Name:                     "unlock",
			Description:              "Unlock a channel",
			DefaultMemberPermissions: &permManageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "channel to unlock (defaults to here)", Required: false},
			},
		},
		{
			Name:                     "modlogs",
			Description:              "Show recent moderation actions",
			DefaultMemberPermissions: &permModerateMembers,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "how many entries (default 10)", Required: false},
			},
		},
	}
}

// registerCommands reconciles the global command set by name: missing ones
// are created, existing ones edited in place, and leftovers deleted.
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID == "" {
		b.respondText(session, interaction, "This command only works inside a server.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	options := optionMap(data.Options)

	switch data.Name {
	case "panel":
		b.handlePanelCommand(ctx, session, interaction, options)
	case "protection":
		b.handleProtectionCommand(ctx, session, interaction, data)
	case "warn":
		user := options["user"].UserValue(session)
		b.manualAction(ctx, session, interaction, rules.ActionWarn, user.ID, options["reason"].StringValue(), 0)
	case "kick":
		user := options["user"].UserValue(session)
		b.manualAction(ctx, session, interaction, rules.ActionKick, user.ID, optionString(options, "reason"), 0)
	case "ban":
		user := options["user"].UserValue(session)
		b.manualAction(ctx, session, interaction, rules.ActionBan, user.ID, optionString(options, "reason"), 0)
	case "mute":
		user := options["user"].UserValue(session)
		duration, err := utils.ParseDuration(options["duration"].StringValue())
		if err != nil {
			b.respondEmbed(session, interaction, b.embed("Moderation", err.Error(), colorError, nil), true)
			return
		}
		b.manualAction(ctx, session, interaction, rules.ActionMute, user.ID, optionString(options, "reason"), duration)
	case "lock":
		b.handleLockCommand(ctx, session, interaction, options, true)
	case "unlock":
		b.handleLockCommand(ctx, session, interaction, options, false)
	case "modlogs":
		b.handleModlogsCommand(ctx, session, interaction, options)
	default:
		b.respondText(session, interaction, "Unknown command.", true)
	}
}

func (b *Bot) handlePanelCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	action := options["action"].StringValue()
	pType := panel.Type(options["type"].StringValue())

	switch action {
	case "setup":
		channelID := interaction.ChannelID
		if opt, ok := options["channel"]; ok {
			if channel := opt.ChannelValue(session); channel != nil {
				channelID = channel.ID
			}
		}
		if err := b.deps.Panels.Setup(ctx, interaction.GuildID, pType, channelID); err != nil {
			b.respondEmbed(session, interaction, b.embed("Panel", "Setup failed: "+err.Error(), colorError, nil), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Panel", fmt.Sprintf("%s panel created in <#%s>.", pType, channelID), colorAction, nil), true)
	case "delete":
		if err := b.deps.Panels.Delete(ctx, interaction.GuildID, pType); err != nil {
			b.respondEmbed(session, interaction, b.embed("Panel", "Delete failed: "+err.Error(), colorError, nil), true)
			return
		}
		b.respondEmbed(session, interaction, b.embed("Panel", fmt.Sprintf("%s panel removed.", pType), colorAction, nil), true)
	default:
		b.respondText(session, interaction, "Unknown panel action.", true)
	}
}

func (b *Bot) handleProtectionCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	options := optionMap(sub.Options)
	rule := rules.Type(options["rule"].StringValue())

	switch sub.Name {
	case "view":
		b.protectionView(ctx, session, interaction, rule)
	case "set":
		b.protectionSet(ctx, session, interaction, rule, options)
	}
}

func (b *Bot) protectionView(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, rule rules.Type) {
	cfg, err := b.deps.Store.GetRuleConfig(ctx, interaction.GuildID, rule)
	if err != nil {
		b.respondEmbed(session, interaction, b.embed("Protection", "Config unavailable.", colorError, nil), true)
		return
	}

	status := "disabled"
	if cfg.Enabled {
		status = "enabled"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Status", Value: status, Inline: true},
		{Name: "Action", Value: string(cfg.Action), Inline: true},
	}
	switch rule {
	case rules.TypeRaid:
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Min account age", Value: fmt.Sprintf("%dh", cfg.MinAccountAgeHours), Inline: true},
			&discordgo.MessageEmbedField{Name: "Join burst", Value: fmt.Sprintf("%d/%ds", cfg.Threshold, cfg.WindowSeconds), Inline: true},
		)
	case rules.TypeSpam, rules.TypeFlood:
		fields = append(fields,
			&discordgo.MessageEmbedField{Name: "Threshold", Value: fmt.Sprintf("%d/%ds", cfg.Threshold, cfg.WindowSeconds), Inline: true},
			&discordgo.MessageEmbedField{Name: "Mute duration", Value: utils.FormatDuration(cfg.MuteDuration()), Inline: true},
		)
	}
	if len(cfg.BypassChannels) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Bypass channels", Value: mentionList(cfg.BypassChannels, "<#%s>"), Inline: false})
	}
	if len(cfg.BypassRoles) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Bypass roles", Value: mentionList(cfg.BypassRoles, "<@&%s>"), Inline: false})
	}
	if cfg.LogChannelID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Log channel", Value: "<#" + cfg.LogChannelID + ">", Inline: true})
	}
	b.respondEmbed(session, interaction, b.embed("Protection: "+string(rule), "Current settings", colorAction, fields), true)
}

func (b *Bot) protectionSet(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, rule rules.Type, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	var patch rules.Patch
	if opt, ok := options["bypass_channels"]; ok {
		if ids, set := splitIDList(opt.StringValue()); set {
			patch.BypassChannels = &ids
		}
	}
	if opt, ok := options["bypass_roles"]; ok {
		if ids, set := splitIDList(opt.StringValue()); set {
			patch.BypassRoles = &ids
		}
	}
	if rule == rules.TypeSpam && (patch.BypassChannels != nil || patch.BypassRoles != nil) {
		b.respondEmbed(session, interaction, b.embed("Protection", "anti_spam does not support bypass lists.", colorError, nil), true)
		return
	}
	if opt, ok := options["log_channel"]; ok {
		if id, set := parseChannelRef(opt.StringValue()); set {
			patch.LogChannelID = &id
		}
	}
	if patch == (rules.Patch{}) {
		b.respondEmbed(session, interaction, b.embed("Protection", "Nothing to change.", colorWarning, nil), true)
		return
	}

	if _, err := b.deps.Store.UpsertRuleConfig(ctx, interaction.GuildID, rule, patch); err != nil {
		b.respondEmbed(session, interaction, b.embed("Protection", "Invalid settings: "+err.Error(), colorError, nil), true)
		return
	}
	pType := panel.TypeFeatures
	if rule == rules.TypeRaid {
		pType = panel.TypeRaid
	}
	b.refreshPanel(ctx, interaction.GuildID, pType)
	b.respondEmbed(session, interaction, b.embed("Protection: "+string(rule), "Settings updated.", colorAction, nil), true)
}

func (b *Bot) handleLockCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption, lock bool) {
	channelID := interaction.ChannelID
	if opt, ok := options["channel"]; ok {
		if channel := opt.ChannelValue(session); channel != nil {
			channelID = channel.ID
		}
	}

	var err error
	if lock {
		var duration time.Duration
		if opt, ok := options["duration"]; ok {
			duration, err = utils.ParseDuration(opt.StringValue())
			if err != nil {
				b.respondEmbed(session, interaction, b.embed("Lockdown", err.Error(), colorError, nil), true)
				return
			}
		}
		err = b.deps.Lockdown.LockChannel(ctx, interaction.GuildID, channelID, invokerID(interaction), optionString(options, "reason"), duration)
	} else {
		err = b.deps.Lockdown.UnlockChannel(ctx, interaction.GuildID, channelID)
	}
	if err != nil {
		b.respondEmbed(session, interaction, b.embed("Lockdown", "Update failed: "+err.Error(), colorError, nil), true)
		return
	}

	b.refreshPanel(ctx, interaction.GuildID, panel.TypeLockdown)
	verb := "unlocked"
	if lock {
		verb = "locked"
	}
	b.respondEmbed(session, interaction, b.embed("Lockdown", fmt.Sprintf("<#%s> %s.", channelID, verb), colorAction, nil), true)
}

func (b *Bot) handleModlogsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	limit := 10
	if opt, ok := options["limit"]; ok {
		limit = int(opt.IntValue())
	}

	logs, err := b.deps.Store.ListModerationLogs(ctx, interaction.GuildID, limit)
	if err != nil {
		b.respondEmbed(session, interaction, b.embed("Moderation Log", "Lookup failed.", colorError, nil), true)
		return
	}
	if len(logs) == 0 {
		b.respondEmbed(session, interaction, b.embed("Moderation Log", "No entries yet.", colorWarning, nil), true)
		return
	}

	var lines []string
	for _, entry := range logs {
		line := fmt.Sprintf("`%s` **%s** <@%s> by <@%s>", entry.CreatedAt.Format("2006-01-02 15:04"), entry.Action, entry.TargetID, entry.ModeratorID)
		if entry.Reason != "" {
			line += ": " + entry.Reason
		}
		lines = append(lines, line)
	}

	var fields []*discordgo.MessageEmbedField
	if counts, err := b.deps.Store.CountModerationLogs(ctx, interaction.GuildID, time.Now().AddDate(0, 0, -30)); err == nil && len(counts) > 0 {
		var parts []string
		for _, action := range []rules.Action{rules.ActionWarn, rules.ActionDelete, rules.ActionMute, rules.ActionKick, rules.ActionBan} {
			if n := counts[string(action)]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", action, n))
			}
		}
		if len(parts) > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{Name: "Last 30 days", Value: strings.Join(parts, " | "), Inline: false})
		}
	}
	b.respondEmbed(session, interaction, b.embed("Moderation Log", strings.Join(lines, "\n"), colorAction, fields), true)
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func optionString(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := options[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func mentionList(ids []string, format string) string {
	var parts []string
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf(format, id))
	}
	return strings.Join(parts, " ")
}
