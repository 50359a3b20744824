package outbound

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder addresses messages created by an interaction through
// the application id and interaction token.
type InteractionResponder interface {
	EditOriginal(ctx context.Context, applicationID, token string, edit *discordgo.WebhookEdit) (*discordgo.Message, error)
	DeleteOriginal(ctx context.Context, applicationID, token string) error
	CreateFollowup(ctx context.Context, applicationID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error)
	EditFollowup(ctx context.Context, applicationID, token, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error)
	DeleteFollowup(ctx context.Context, applicationID, token, messageID string) error
}

// GuildReader looks up guilds and their members.
type GuildReader interface {
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	GuildMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
}

// CommandRegistrar manages remote command definitions.
type CommandRegistrar interface {
	CreateGuildCommand(ctx context.Context, guildID string, cmd *discordgo.ApplicationCommand) (*discordgo.ApplicationCommand, error)
	DeleteGuildCommand(ctx context.Context, guildID, commandID string) error
	BulkOverwriteGlobalCommands(ctx context.Context, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error)
}

// DiscordAPI is the outbound REST collaborator. Failed calls return
// *model.RemoteAPIError.
type DiscordAPI interface {
	InteractionResponder
	CommandRegistrar
	GuildReader
}
