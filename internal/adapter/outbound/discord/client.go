package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
	"github.com/jonny/interactiond/pkg/version"
)

// Config holds configuration for the Discord REST client.
type Config struct {
	ApplicationID string
	BotToken      string
	// Timeout bounds each REST call. Zero leaves calls bounded only by the
	// caller's context.
	Timeout    time.Duration
	MaxRetries int
	// HTTPClient is shared across all calls for connection pooling.
	HTTPClient *http.Client
}

// Client implements outbound.DiscordAPI on top of a discordgo session used
// purely for REST; no gateway connection is opened.
type Client struct {
	session *discordgo.Session
	appID   string
	timeout time.Duration
}

var _ outbound.DiscordAPI = (*Client)(nil)

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ApplicationID == "" {
		return nil, errors.New("discord application id is required")
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	if cfg.HTTPClient != nil {
		session.Client = cfg.HTTPClient
	}
	session.UserAgent = version.UserAgent()
	if cfg.MaxRetries > 0 {
		session.MaxRestRetries = cfg.MaxRetries
	}

	return &Client{
		session: session,
		appID:   cfg.ApplicationID,
		timeout: cfg.Timeout,
	}, nil
}

// EditOriginal edits the message created by the interaction response.
func (c *Client) EditOriginal(ctx context.Context, applicationID, token string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	msg, err := c.session.InteractionResponseEdit(addressed(applicationID, token), edit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("editing original response: %w", mapError(err))
	}
	return msg, nil
}

// DeleteOriginal deletes the message created by the interaction response.
func (c *Client) DeleteOriginal(ctx context.Context, applicationID, token string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.session.InteractionResponseDelete(addressed(applicationID, token), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting original response: %w", mapError(err))
	}
	return nil
}

// CreateFollowup posts a follow-up message and waits for the created message.
func (c *Client) CreateFollowup(ctx context.Context, applicationID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	msg, err := c.session.FollowupMessageCreate(addressed(applicationID, token), true, params, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating follow-up message: %w", mapError(err))
	}
	return msg, nil
}

// EditFollowup edits a follow-up message previously created for the interaction.
func (c *Client) EditFollowup(ctx context.Context, applicationID, token, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	msg, err := c.session.FollowupMessageEdit(addressed(applicationID, token), messageID, edit, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("editing follow-up message %s: %w", messageID, mapError(err))
	}
	return msg, nil
}

func (c *Client) DeleteFollowup(ctx context.Context, applicationID, token, messageID string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.session.FollowupMessageDelete(addressed(applicationID, token), messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting follow-up message %s: %w", messageID, mapError(err))
	}
	return nil
}

// Guild fetches a guild the bot is a member of.
func (c *Client) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	guild, err := c.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching guild %s: %w", guildID, mapError(err))
	}
	return guild, nil
}

func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	member, err := c.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetching member %s of guild %s: %w", userID, guildID, mapError(err))
	}
	return member, nil
}

// CreateGuildCommand creates or updates a command in one guild.
func (c *Client) CreateGuildCommand(ctx context.Context, guildID string, cmd *discordgo.ApplicationCommand) (*discordgo.ApplicationCommand, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	created, err := c.session.ApplicationCommandCreate(c.appID, guildID, cmd, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating guild command: %w", mapError(err))
	}
	return created, nil
}

// DeleteGuildCommand removes a command from one guild.
func (c *Client) DeleteGuildCommand(ctx context.Context, guildID, commandID string) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	if err := c.session.ApplicationCommandDelete(c.appID, guildID, commandID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("deleting guild command: %w", mapError(err))
	}
	return nil
}

// BulkOverwriteGlobalCommands replaces the full set of global commands.
func (c *Client) BulkOverwriteGlobalCommands(ctx context.Context, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	out, err := c.session.ApplicationCommandBulkOverwrite(c.appID, "", cmds, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("overwriting global commands: %w", mapError(err))
	}
	return out, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func addressed(applicationID, token string) *discordgo.Interaction {
	return &discordgo.Interaction{AppID: applicationID, Token: token}
}

// mapError converts discordgo REST failures into RemoteAPIError. Code is the
// HTTP status of the failed call.
func mapError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}

	apiErr := &model.RemoteAPIError{}
	if restErr.Response != nil {
		apiErr.Code = restErr.Response.StatusCode
	}
	switch {
	case restErr.Message != nil && restErr.Message.Message != "":
		apiErr.Message = restErr.Message.Message
	case len(restErr.ResponseBody) > 0:
		apiErr.Message = string(restErr.ResponseBody)
	default:
		apiErr.Message = http.StatusText(apiErr.Code)
	}
	return apiErr
}
