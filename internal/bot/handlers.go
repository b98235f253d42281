package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"aegisguard/internal/actions"
	"aegisguard/internal/engine"
	"aegisguard/internal/panel"
	"aegisguard/internal/rules"
	"aegisguard/internal/utils"
)

const (
	colorAction  = 0x22C55E
	colorWarning = 0xF59E0B
	colorError   = 0xEF4444
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction)
	case discordgo.InteractionModalSubmit:
		b.handleModal(ctx, session, interaction)
	}
}

// Component dispatch is a lookup on the (panel, action) pair carried in the
// custom ID. Nothing about a button lives in memory between restarts, which
// is what lets panels survive them.
func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	id, ok := panel.ParseCustomID(interaction.MessageComponentData().CustomID)
	if !ok {
		return
	}
	if interaction.GuildID == "" {
		return
	}
	if !hasManagePermission(interaction) {
		b.respondText(session, interaction, "You need the Manage Server permission to use this panel.", true)
		return
	}

	switch key(id.Panel, id.Action) {
	case key(panel.TypeRaid, panel.ActionEnable):
		b.setRuleEnabled(ctx, session, interaction, rules.TypeRaid, panel.TypeRaid, true)
	case key(panel.TypeRaid, panel.ActionDisable):
		b.setRuleEnabled(ctx, session, interaction, rules.TypeRaid, panel.TypeRaid, false)
	case key(panel.TypeRaid, panel.ActionConfigure):
		b.openRaidModal(ctx, session, interaction)
	case key(panel.TypeFeatures, panel.ActionToggle):
		b.toggleFeature(ctx, session, interaction, id.Arg)
	case key(panel.TypeFeatures, panel.ActionConfigure):
		b.openFeatureModal(ctx, session, interaction, id.Arg)
	case key(panel.TypeLockdown, panel.ActionLock):
		b.openLockModal(session, interaction, true)
	case key(panel.TypeLockdown, panel.ActionUnlock):
		b.openLockModal(session, interaction, false)
	case key(panel.TypeLockdown, panel.ActionLockAll):
		b.lockdownAll(ctx, session, interaction, true)
	case key(panel.TypeLockdown, panel.ActionUnlockAll):
		b.lockdownAll(ctx, session, interaction, false)
	default:
		b.respondText(session, interaction, "Unknown panel control.", true)
	}
}

func key(p panel.Type, action string) string {
	return string(p) + ":" + action
}

func (b *Bot) setRuleEnabled(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, rule rules.Type, pType panel.Type, enabled bool) {
	patch := rules.Patch{Enabled: &enabled}
	if _, err := b.deps.Store.UpsertRuleConfig(ctx, interaction.GuildID, rule, patch); err != nil {
		b.logger.Warn("rule toggle failed", zap.String("rule", string(rule)), zap.Error(err))
		b.respondText(session, interaction, "Update failed, try again.", true)
		return
	}
	b.refreshPanel(ctx, interaction.GuildID, pType)

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	b.respondText(session, interaction, fmt.Sprintf("%s is now %s.", rule, state), true)
}

func (b *Bot) toggleFeature(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, arg string) {
	rule, ok := panel.FeatureRule(arg)
	if !ok {
		b.respondText(session, interaction, "Unknown feature.", true)
		return
	}
	cfg, err := b.deps.Store.GetRuleConfig(ctx, interaction.GuildID, rule)
	if err != nil {
		b.respondText(session, interaction, "Update failed, try again.", true)
		return
	}
	b.setRuleEnabled(ctx, session, interaction, rule, panel.TypeFeatures, !cfg.Enabled)
}

func (b *Bot) openRaidModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	cfg, err := b.deps.Store.GetRuleConfig(ctx, interaction.GuildID, rules.TypeRaid)
	if err != nil {
		b.respondText(session, interaction, "Config unavailable, try again.", true)
		return
	}

	b.respondModal(session, interaction, panel.CustomID{Panel: panel.TypeRaid, Action: "modal"}.String(), "Raid Protection Settings", []discordgo.MessageComponent{
		textInputRow("min_account_age", "Minimum account age (hours)", strconv.Itoa(cfg.MinAccountAgeHours)),
		textInputRow("threshold", "Join burst threshold", strconv.Itoa(cfg.Threshold)),
		textInputRow("window", "Join burst window (seconds)", strconv.Itoa(cfg.WindowSeconds)),
		textInputRow("log_channel", "Alert channel ID (or none)", cfg.LogChannelID),
	})
}

func (b *Bot) openFeatureModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, arg string) {
	rule, ok := panel.FeatureRule(arg)
	if !ok {
		b.respondText(session, interaction, "Unknown feature.", true)
		return
	}
	cfg, err := b.deps.Store.GetRuleConfig(ctx, interaction.GuildID, rule)
	if err != nil {
		b.respondText(session, interaction, "Config unavailable, try again.", true)
		return
	}

	customID := panel.CustomID{Panel: panel.TypeFeatures, Action: "modal", Arg: arg}.String()
	switch rule {
	case rules.TypeSpam, rules.TypeFlood:
		// A modal holds at most five inputs; flood's bypass lists are edited
		// through /protection set instead.
		b.respondModal(session, interaction, customID, "Settings: "+string(rule), []discordgo.MessageComponent{
			textInputRow("threshold", "Message threshold", strconv.Itoa(cfg.Threshold)),
			textInputRow("window", "Window (seconds)", strconv.Itoa(cfg.WindowSeconds)),
			textInputRow("action", "Action (warn/delete/mute/kick/ban)", string(cfg.Action)),
			textInputRow("mute_minutes", "Mute duration (minutes)", strconv.Itoa(cfg.MuteMinutes)),
			textInputRow("log_channel", "Alert channel ID (or none)", cfg.LogChannelID),
		})
	default:
		b.respondModal(session, interaction, customID, "Settings: "+string(rule), []discordgo.MessageComponent{
			textInputRow("action", "Action (warn/delete/mute/kick/ban)", string(cfg.Action)),
			textInputRow("warn_message", "Warning message", cfg.WarnMessage),
			textInputRow("bypass_channels", "Allowed channel IDs, comma separated (or none)", strings.Join(cfg.BypassChannels, ", ")),
			textInputRow("bypass_roles", "Allowed role IDs, comma separated (or none)", strings.Join(cfg.BypassRoles, ", ")),
			textInputRow("log_channel", "Alert channel ID (or none)", cfg.LogChannelID),
		})
	}
}

func (b *Bot) openLockModal(session *discordgo.Session, interaction *discordgo.InteractionCreate, lock bool) {
	arg := "unlock"
	title := "Unlock a channel"
	inputs := []discordgo.MessageComponent{
		textInputRow("channel_id", "Channel ID", ""),
	}
	if lock {
		arg = "lock"
		title = "Lock a channel"
		inputs = append(inputs,
			textInputRow("duration", "Duration (e.g. 30m, 2h, empty = manual)", ""),
			textInputRow("reason", "Reason", ""),
		)
	}
	b.respondModal(session, interaction, panel.CustomID{Panel: panel.TypeLockdown, Action: "modal", Arg: arg}.String(), title, inputs)
}

func (b *Bot) lockdownAll(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, lock bool) {
	moderator := invokerID(interaction)
	var count int
	var err error
	var what string
	if lock {
		count, err = b.deps.Lockdown.LockAll(ctx, interaction.GuildID, moderator, "guild lockdown", 0)
		what = "locked"
	} else {
		count, err = b.deps.Lockdown.UnlockAll(ctx, interaction.GuildID)
		what = "unlocked"
	}
	if err != nil {
		b.respondText(session, interaction, "Lockdown update failed.", true)
		return
	}
	b.refreshPanel(ctx, interaction.GuildID, panel.TypeLockdown)
	b.respondText(session, interaction, fmt.Sprintf("%d channels %s.", count, what), true)
}

func (b *Bot) handleModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ModalSubmitData()
	id, ok := panel.ParseCustomID(data.CustomID)
	if !ok || id.Action != "modal" || interaction.GuildID == "" {
		return
	}
	if !hasManagePermission(interaction) {
		b.respondText(session, interaction, "You need the Manage Server permission to use this panel.", true)
		return
	}

	switch id.Panel {
	case panel.TypeRaid:
		b.submitRaidModal(ctx, session, interaction, data)
	case panel.TypeFeatures:
		b.submitFeatureModal(ctx, session, interaction, data, id.Arg)
	case panel.TypeLockdown:
		b.submitLockModal(ctx, session, interaction, data, id.Arg == "lock")
	}
}

func (b *Bot) submitRaidModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData) {
	var patch rules.Patch
	var err error
	if patch.MinAccountAgeHours, err = modalInt(data, "min_account_age"); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	if patch.Threshold, err = modalInt(data, "threshold"); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	if patch.WindowSeconds, err = modalInt(data, "window"); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	if id, ok := parseChannelRef(modalValue(data, "log_channel")); ok {
		patch.LogChannelID = &id
	}

	if _, err := b.deps.Store.UpsertRuleConfig(ctx, interaction.GuildID, rules.TypeRaid, patch); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	b.refreshPanel(ctx, interaction.GuildID, panel.TypeRaid)
	b.respondText(session, interaction, "Raid protection settings updated.", true)
}

func (b *Bot) submitFeatureModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, arg string) {
	rule, ok := panel.FeatureRule(arg)
	if !ok {
		return
	}

	var patch rules.Patch
	var err error
	if patch.Threshold, err = modalInt(data, "threshold"); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	if patch.WindowSeconds, err = modalInt(data, "window"); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	if patch.MuteMinutes, err = modalInt(data, "mute_minutes"); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	if v := modalValue(data, "action"); v != "" {
		action := rules.Action(strings.ToLower(strings.TrimSpace(v)))
		patch.Action = &action
	}
	if v := modalValue(data, "warn_message"); v != "" {
		patch.WarnMessage = &v
	}
	if ids, ok := splitIDList(modalValue(data, "bypass_channels")); ok {
		patch.BypassChannels = &ids
	}
	if ids, ok := splitIDList(modalValue(data, "bypass_roles")); ok {
		patch.BypassRoles = &ids
	}
	if id, ok := parseChannelRef(modalValue(data, "log_channel")); ok {
		patch.LogChannelID = &id
	}

	if _, err := b.deps.Store.UpsertRuleConfig(ctx, interaction.GuildID, rule, patch); err != nil {
		b.respondText(session, interaction, "Invalid settings: "+err.Error(), true)
		return
	}
	b.refreshPanel(ctx, interaction.GuildID, panel.TypeFeatures)
	b.respondText(session, interaction, fmt.Sprintf("%s settings updated.", rule), true)
}

func (b *Bot) submitLockModal(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ModalSubmitInteractionData, lock bool) {
	channelID := strings.TrimSpace(modalValue(data, "channel_id"))
	if channelID == "" {
		b.respondText(session, interaction, "Channel ID is required.", true)
		return
	}

	var err error
	if lock {
		var duration time.Duration
		if raw := strings.TrimSpace(modalValue(data, "duration")); raw != "" {
			duration, err = utils.ParseDuration(raw)
			if err != nil {
				b.respondText(session, interaction, err.Error(), true)
				return
			}
		}
		reason := modalValue(data, "reason")
		err = b.deps.Lockdown.LockChannel(ctx, interaction.GuildID, channelID, invokerID(interaction), reason, duration)
	} else {
		err = b.deps.Lockdown.UnlockChannel(ctx, interaction.GuildID, channelID)
	}
	if err != nil {
		b.respondText(session, interaction, "Lockdown update failed: "+err.Error(), true)
		return
	}
	b.refreshPanel(ctx, interaction.GuildID, panel.TypeLockdown)
	verb := "unlocked"
	if lock {
		verb = "locked"
	}
	b.respondText(session, interaction, fmt.Sprintf("<#%s> %s.", channelID, verb), true)
}

func (b *Bot) refreshPanel(ctx context.Context, guildID string, pType panel.Type) {
	if err := b.deps.Panels.Refresh(ctx, guildID, pType); err != nil {
		b.logger.Warn("panel refresh failed",
			zap.String("guild_id", guildID),
			zap.String("panel", string(pType)),
			zap.Error(err))
	}
}

func (b *Bot) manualAction(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, action rules.Action, userID, reason string, muteFor time.Duration) {
	verdict := engine.Verdict{Triggered: true, Action: action, Reason: reason, MuteFor: muteFor}
	target := actions.Target{
		GuildID:     interaction.GuildID,
		ChannelID:   interaction.ChannelID,
		UserID:      userID,
		ModeratorID: invokerID(interaction),
	}

	detail, err := b.deps.Executor.Apply(ctx, verdict, target)
	if err != nil {
		b.deps.Metrics.ActionsApplied.WithLabelValues(string(action), "error").Inc()
		b.respondEmbed(session, interaction, b.embed("Moderation", "Action failed: "+err.Error(), colorError, nil), true)
		return
	}
	b.deps.Metrics.ActionsApplied.WithLabelValues(string(action), "ok").Inc()
	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: "<@" + userID + ">", Inline: true},
		{Name: "Reason", Value: reason, Inline: true},
	}
	b.respondEmbed(session, interaction, b.embed("Moderation", detail, colorAction, fields), true)
}

func hasManagePermission(interaction *discordgo.InteractionCreate) bool {
	if interaction.Member == nil {
		return false
	}
	perms := interaction.Member.Permissions
	return perms&discordgo.PermissionAdministrator != 0 || perms&discordgo.PermissionManageServer != 0
}

func invokerID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	return ""
}

func modalValue(data discordgo.ModalSubmitInteractionData, inputID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			if input, ok := component.(*discordgo.TextInput); ok && input.CustomID == inputID {
				return input.Value
			}
		}
	}
	return ""
}

// modalInt parses a numeric modal input. An empty input means "leave as is"
// and returns nil; garbage is an error the submitter gets back verbatim.
func modalInt(data discordgo.ModalSubmitInteractionData, inputID string) (*int, error) {
	raw := strings.TrimSpace(modalValue(data, inputID))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a whole number, got %q", inputID, raw)
	}
	return &value, nil
}

// splitIDList parses a comma separated list of channel or role IDs. Raw IDs
// and <#...>/<@&...> mentions both work; "none" clears the list. The second
// return is false when the input was left empty.
func splitIDList(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if strings.EqualFold(raw, "none") {
		return []string{}, true
	}
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.Trim(strings.TrimSpace(part), "<#@&>"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, true
}

// parseChannelRef extracts a channel ID from a raw ID or a <#...> mention;
// "none" maps to the empty ID, empty input means "leave as is".
func parseChannelRef(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if strings.EqualFold(raw, "none") {
		return "", true
	}
	return strings.Trim(raw, "<#>"), true
}

func textInputRow(customID, label, value string) discordgo.MessageComponent {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.TextInput{
			CustomID: customID,
			Label:    label,
			Style:    discordgo.TextInputShort,
			Value:    value,
			Required: false,
		},
	}}
}

func (b *Bot) embed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondText(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) respondModal(session *discordgo.Session, interaction *discordgo.InteractionCreate, customID, title string, components []discordgo.MessageComponent) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   customID,
			Title:      title,
			Components: components,
		},
	})
	if err != nil {
		b.logger.Warn("modal response failed", zap.Error(err))
	}
}
