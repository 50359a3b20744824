package model

import (
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// ResponseType is the type of an interaction response. None is not part of
// the platform's vocabulary; it means "answer with an empty body".
type ResponseType uint8

const (
	ResponseNone                             ResponseType = 0
	ResponsePong                             ResponseType = 1
	ResponseChannelMessageWithSource         ResponseType = 4
	ResponseDeferredChannelMessageWithSource ResponseType = 5
	ResponseDeferredUpdateMessage            ResponseType = 6
	ResponseUpdateMessage                    ResponseType = 7
	ResponseModal                            ResponseType = 9
)

func (t ResponseType) String() string {
	switch t {
	case ResponseNone:
		return "none"
	case ResponsePong:
		return "pong"
	case ResponseChannelMessageWithSource:
		return "channel_message_with_source"
	case ResponseDeferredChannelMessageWithSource:
		return "deferred_channel_message_with_source"
	case ResponseDeferredUpdateMessage:
		return "deferred_update_message"
	case ResponseUpdateMessage:
		return "update_message"
	case ResponseModal:
		return "modal"
	default:
		return "unknown"
	}
}

// Deferred reports whether the type acknowledges now and delivers later.
func (t ResponseType) Deferred() bool {
	return t == ResponseDeferredChannelMessageWithSource || t == ResponseDeferredUpdateMessage
}

// Delivers reports whether a response of this type has content worth sending
// to the original message once a continuation completes.
func (t ResponseType) Delivers() bool {
	return t != ResponseNone && t != ResponsePong
}

// Status maps the response type to the HTTP status returned to the platform.
func (t ResponseType) Status() int {
	switch {
	case t == ResponseNone:
		return http.StatusNoContent
	case t.Deferred():
		return http.StatusAccepted
	default:
		return http.StatusOK
	}
}

// Response is what a handler returns for one interaction. Data is opaque to
// the dispatcher.
type Response struct {
	Type ResponseType                       `json:"type"`
	Data *discordgo.InteractionResponseData `json:"data,omitempty"`
}

// NewResponse creates a Response of the given type with optional data.
func NewResponse(t ResponseType, data *discordgo.InteractionResponseData) Response {
	return Response{Type: t, Data: data}.Normalize()
}

// Normalize enforces data consistency with the type: None and Pong carry no
// data, deferred types keep at most their message flags.
func (r Response) Normalize() Response {
	switch {
	case r.Type == ResponseNone || r.Type == ResponsePong:
		r.Data = nil
	case r.Type.Deferred():
		if r.Data != nil && r.Data.Flags != 0 {
			r.Data = &discordgo.InteractionResponseData{Flags: r.Data.Flags}
		} else {
			r.Data = nil
		}
	}
	return r
}

// WebhookEdit converts the response payload to an edit of the original message.
func (r Response) WebhookEdit() *discordgo.WebhookEdit {
	edit := &discordgo.WebhookEdit{}
	if r.Data == nil {
		return edit
	}
	content := r.Data.Content
	edit.Content = &content
	if r.Data.Embeds != nil {
		embeds := r.Data.Embeds
		edit.Embeds = &embeds
	}
	if r.Data.Components != nil {
		components := r.Data.Components
		edit.Components = &components
	}
	edit.AllowedMentions = r.Data.AllowedMentions
	return edit
}

// WebhookParams converts the response payload to a follow-up message.
func (r Response) WebhookParams() *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{}
	if r.Data == nil {
		return params
	}
	params.Content = r.Data.Content
	params.TTS = r.Data.TTS
	params.Embeds = r.Data.Embeds
	params.Components = r.Data.Components
	params.AllowedMentions = r.Data.AllowedMentions
	params.Flags = r.Data.Flags
	return params
}
