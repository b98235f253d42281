// Package platform wraps the discordgo session behind a struct the rest of
// the bot depends on through small consumer-side interfaces, keeping engine,
// executor and panel code testable without a gateway connection.
package platform

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) SendDM(ctx context.Context, userID string, embed *discordgo.MessageEmbed) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = d.session.ChannelMessageSendEmbed(channel.ID, embed, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, send *discordgo.MessageSend) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
}

func (d *Discord) EditMessage(ctx context.Context, edit *discordgo.MessageEdit) (*discordgo.Message, error) {
	return d.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (d *Discord) GetChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	return d.session.Channel(channelID, discordgo.WithContext(ctx))
}

func (d *Discord) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	return d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (d *Discord) BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx))
}

func (d *Discord) TimeoutMember(ctx context.Context, guildID, userID string, until time.Time) error {
	return d.session.GuildMemberTimeout(guildID, userID, &until, discordgo.WithContext(ctx))
}

func (d *Discord) EditChannelPermissions(ctx context.Context, channelID, targetID string, targetType discordgo.PermissionOverwriteType, allow, deny int64) error {
	return d.session.ChannelPermissionSet(channelID, targetID, targetType, allow, deny, discordgo.WithContext(ctx))
}

func (d *Discord) DeleteChannelPermission(ctx context.Context, channelID, targetID string) error {
	return d.session.ChannelPermissionDelete(channelID, targetID, discordgo.WithContext(ctx))
}

// IsNotFound reports whether err is the platform saying a channel, message
// or member no longer exists. Panel self-healing keys off this.
func IsNotFound(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
			return true
		}
		if rest.Message != nil {
			switch rest.Message.Code {
			case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
				return true
			}
		}
	}
	return false
}

// IsForbidden reports whether err is a permission failure. These are logged
// and surfaced but never treated as fatal.
func IsForbidden(err error) bool {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) {
		if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden {
			return true
		}
		if rest.Message != nil && rest.Message.Code == discordgo.ErrCodeMissingPermissions {
			return true
		}
	}
	return false
}
