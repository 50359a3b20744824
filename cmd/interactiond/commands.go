package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/service"
)

const (
	dismissButtonID  = "summon:dismiss"
	feedbackModalID  = "feedback:modal"
	feedbackInputID  = "feedback:text"
	maxFeedbackChars = 1000
)

var errNotInGuild = errors.New("this command only works inside a server")

// globalCommands are the command definitions pushed to the platform when
// discord.syncGlobalCommands is set.
func globalCommands() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageGuild)
	return []*discordgo.ApplicationCommand{
		{Name: "ping", Description: "Check that the bot is answering"},
		{Name: "summon", Description: "Summon a message after some work"},
		{Name: "feedback", Description: "Send feedback to the maintainers"},
		{
			Name:                     "register",
			Description:              "Add a custom command to this server",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Command name", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reply", Description: "Text the command replies with", Required: true},
			},
		},
		{
			Name:                     "unregister",
			Description:              "Remove a custom command from this server",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Command id", Required: true},
			},
		},
	}
}

// registerHandlers binds the built-in handlers on reg.
func registerHandlers(reg *service.Registry) {
	reg.RegisterGlobal("ping", service.HandlerFunc(handlePing))
	reg.RegisterGlobal("summon", service.HandlerFunc(handleSummon))
	reg.RegisterComponent(dismissButtonID, service.HandlerFunc(handleDismiss))
	reg.RegisterGlobal("feedback", service.HandlerFunc(handleFeedback))
	reg.RegisterModal(feedbackModalID, service.HandlerFunc(handleFeedbackSubmit))
	reg.RegisterGlobal("register", service.HandlerFunc(handleRegister))
	reg.RegisterGlobal("unregister", service.HandlerFunc(handleUnregister))
}

func handlePing(_ context.Context, c *service.Context) (model.Response, error) {
	return c.Respond().Content("Pong!").Build()
}

// handleSummon acknowledges immediately and fills in the message later.
func handleSummon(_ context.Context, c *service.Context) (model.Response, error) {
	return c.Defer(func(_ context.Context, c *service.Context) (model.Response, error) {
		name := "someone"
		if u := c.Interaction.Invoker(); u != nil {
			name = u.Username
		}
		return c.Respond().
			Content(fmt.Sprintf("%s summoned me.", name)).
			Components(discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Dismiss", Style: discordgo.DangerButton, CustomID: dismissButtonID},
			}}).
			Build()
	})
}

// handleDismiss removes the message the button is attached to.
func handleDismiss(_ context.Context, c *service.Context) (model.Response, error) {
	return c.Defer(func(ctx context.Context, c *service.Context) (model.Response, error) {
		if err := c.DeleteOriginal(ctx); err != nil {
			return model.Response{}, fmt.Errorf("deleting summoned message: %w", err)
		}
		return service.NoResponse(), nil
	})
}

func handleFeedback(_ context.Context, _ *service.Context) (model.Response, error) {
	return service.Modal(feedbackModalID, "Feedback",
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:  feedbackInputID,
				Label:     "What should we know?",
				Style:     discordgo.TextInputParagraph,
				Required:  true,
				MaxLength: maxFeedbackChars,
			},
		}},
	), nil
}

// handleFeedbackSubmit thanks the user privately in a follow-up.
func handleFeedbackSubmit(_ context.Context, c *service.Context) (model.Response, error) {
	text, _ := c.Interaction.Data.TextInput(feedbackInputID)
	c.Logger().Info("feedback received", "length", len(text))
	return c.DeferFollowup(func(_ context.Context, c *service.Context) (model.Response, error) {
		return c.Respond().
			Content(fmt.Sprintf("Thanks! We received %d characters of feedback.", len(text))).
			Ephemeral().
			Build()
	})
}

// handleRegister creates a guild command that replies with fixed text. The
// remote call happens in the continuation.
func handleRegister(_ context.Context, c *service.Context) (model.Response, error) {
	guildID := c.Interaction.GuildID
	if guildID == "" {
		return reply(c, errNotInGuild.Error())
	}
	if !canManageGuild(c.Interaction) {
		return reply(c, "You need the Manage Server permission to do that.")
	}
	nameOpt, _ := c.Interaction.Data.Option("name")
	replyOpt, _ := c.Interaction.Data.Option("reply")
	name := strings.ToLower(strings.TrimSpace(nameOpt.StringValue()))
	text := replyOpt.StringValue()
	if name == "" || text == "" {
		return reply(c, "Both a name and a reply are required.")
	}

	return c.Defer(func(ctx context.Context, c *service.Context) (model.Response, error) {
		cmd := &discordgo.ApplicationCommand{Name: name, Description: "Custom reply"}
		created, err := c.Registry().RegisterGuild(ctx, guildID, cmd, fixedReply(text), service.ScopeAll)
		if err != nil {
			c.Logger().Warn("custom command registration failed", "name", name, "error", err)
			return c.Respond().Content(fmt.Sprintf("Could not register /%s.", name)).Build()
		}
		return c.Respond().Content(fmt.Sprintf("Registered /%s with id %s.", name, created.ID)).Build()
	})
}

func handleUnregister(_ context.Context, c *service.Context) (model.Response, error) {
	guildID := c.Interaction.GuildID
	if guildID == "" {
		return reply(c, errNotInGuild.Error())
	}
	if !canManageGuild(c.Interaction) {
		return reply(c, "You need the Manage Server permission to do that.")
	}
	idOpt, _ := c.Interaction.Data.Option("id")
	commandID := strings.TrimSpace(idOpt.StringValue())
	if commandID == "" {
		return reply(c, "A command id is required.")
	}

	return c.Defer(func(ctx context.Context, c *service.Context) (model.Response, error) {
		if err := c.Registry().DeregisterGuild(ctx, guildID, commandID, service.ScopeAll); err != nil {
			c.Logger().Warn("custom command removal failed", "command_id", commandID, "error", err)
			return c.Respond().Content("Could not remove that command.").Build()
		}
		return c.Respond().Content(fmt.Sprintf("Removed command %s.", commandID)).Build()
	})
}

func fixedReply(text string) service.Handler {
	return service.HandlerFunc(func(_ context.Context, c *service.Context) (model.Response, error) {
		return c.Respond().Content(text).Build()
	})
}

func reply(c *service.Context, text string) (model.Response, error) {
	return c.Respond().Content(text).Ephemeral().Build()
}

func canManageGuild(in model.Interaction) bool {
	if in.Member == nil {
		return false
	}
	return in.Member.Permissions&(discordgo.PermissionManageGuild|discordgo.PermissionAdministrator) != 0
}
