package service

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/domain/model"
)

// Platform limits on a single message.
const (
	maxEmbeds        = 10
	maxComponentRows = 5
)

// ResponseBuilder assembles a message response step by step.
type ResponseBuilder struct {
	typ  model.ResponseType
	data discordgo.InteractionResponseData
	err  error
}

func newResponseBuilder(t model.ResponseType) *ResponseBuilder {
	return &ResponseBuilder{typ: t}
}

// Type overrides the response type chosen by the Context.
func (b *ResponseBuilder) Type(t model.ResponseType) *ResponseBuilder {
	b.typ = t
	return b
}

func (b *ResponseBuilder) Content(content string) *ResponseBuilder {
	b.data.Content = content
	return b
}

func (b *ResponseBuilder) TTS(tts bool) *ResponseBuilder {
	b.data.TTS = tts
	return b
}

// Ephemeral makes the message visible only to the invoking user.
func (b *ResponseBuilder) Ephemeral() *ResponseBuilder {
	b.data.Flags |= discordgo.MessageFlagsEphemeral
	return b
}

func (b *ResponseBuilder) Embed(e *discordgo.MessageEmbed) *ResponseBuilder {
	if len(b.data.Embeds) >= maxEmbeds {
		b.fail(fmt.Errorf("a message carries at most %d embeds", maxEmbeds))
		return b
	}
	b.data.Embeds = append(b.data.Embeds, e)
	return b
}

// Components appends action rows.
func (b *ResponseBuilder) Components(rows ...discordgo.MessageComponent) *ResponseBuilder {
	if len(b.data.Components)+len(rows) > maxComponentRows {
		b.fail(fmt.Errorf("a message carries at most %d component rows", maxComponentRows))
		return b
	}
	b.data.Components = append(b.data.Components, rows...)
	return b
}

func (b *ResponseBuilder) AllowedMentions(m *discordgo.MessageAllowedMentions) *ResponseBuilder {
	b.data.AllowedMentions = m
	return b
}

// Build returns the response, or the first error recorded while building.
func (b *ResponseBuilder) Build() (model.Response, error) {
	if b.err != nil {
		return model.Response{}, b.err
	}
	data := b.data
	return model.NewResponse(b.typ, &data), nil
}

func (b *ResponseBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Pong acknowledges without content.
func Pong() model.Response {
	return model.NewResponse(model.ResponsePong, nil)
}

// NoResponse produces an empty 204 reply.
func NoResponse() model.Response {
	return model.NewResponse(model.ResponseNone, nil)
}

// Modal opens a dialog with the given text input rows.
func Modal(customID, title string, rows ...discordgo.MessageComponent) model.Response {
	return model.NewResponse(model.ResponseModal, &discordgo.InteractionResponseData{
		CustomID:   customID,
		Title:      title,
		Components: rows,
	})
}
