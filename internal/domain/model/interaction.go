package model

import (
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/tidwall/gjson"
)

// InteractionKind is the wire value of an interaction's "type" field.
type InteractionKind uint8

const (
	KindPing               InteractionKind = 1
	KindApplicationCommand InteractionKind = 2
	KindMessageComponent   InteractionKind = 3
	KindModalSubmit        InteractionKind = 5
)

func (k InteractionKind) Known() bool {
	switch k {
	case KindPing, KindApplicationCommand, KindMessageComponent, KindModalSubmit:
		return true
	}
	return false
}

func (k InteractionKind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindApplicationCommand:
		return "application_command"
	case KindMessageComponent:
		return "message_component"
	case KindModalSubmit:
		return "modal_submit"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Interaction is one inbound webhook event. It is decoded once per request and
// never mutated afterwards.
type Interaction struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"application_id"`
	Kind          InteractionKind   `json:"type"`
	Data          *InteractionData  `json:"data,omitempty"`
	GuildID       string            `json:"guild_id,omitempty"`
	ChannelID     string            `json:"channel_id,omitempty"`
	Member        *discordgo.Member `json:"member,omitempty"`
	User          *discordgo.User   `json:"user,omitempty"`
	Token         string            `json:"token"`
	Version       int               `json:"version,omitempty"`
	Locale        string            `json:"locale,omitempty"`
	GuildLocale   string            `json:"guild_locale,omitempty"`
}

// InteractionData carries the command or component payload. Commands populate
// ID and Name, components and modal submits populate CustomID.
type InteractionData struct {
	ID            string                  `json:"id,omitempty"`
	Name          string                  `json:"name,omitempty"`
	CommandType   uint8                   `json:"type,omitempty"`
	TargetID      string                  `json:"target_id,omitempty"`
	Options       []CommandOption         `json:"options,omitempty"`
	CustomID      string                  `json:"custom_id,omitempty"`
	ComponentType discordgo.ComponentType `json:"component_type,omitempty"`
	Values        []string                `json:"values,omitempty"`
	Components    json.RawMessage         `json:"components,omitempty"`
}

// CommandOption is a user-supplied argument of a slash command.
type CommandOption struct {
	Name    string                                 `json:"name"`
	Type    discordgo.ApplicationCommandOptionType `json:"type"`
	Value   any                                    `json:"value,omitempty"`
	Focused bool                                   `json:"focused,omitempty"`
	Options []CommandOption                        `json:"options,omitempty"`
}

// Invoker returns the user that triggered the interaction, whether it came
// from a guild (member) or a direct message (user).
func (i Interaction) Invoker() *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// RouteKey is the identifier the interaction is dispatched by.
func (i Interaction) RouteKey() string {
	if i.Data == nil {
		return ""
	}
	switch i.Kind {
	case KindApplicationCommand:
		return i.Data.Name
	case KindMessageComponent, KindModalSubmit:
		return i.Data.CustomID
	}
	return ""
}

// Option returns the top-level option with the given name.
func (d *InteractionData) Option(name string) (CommandOption, bool) {
	if d == nil {
		return CommandOption{}, false
	}
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return CommandOption{}, false
}

// StringValue renders the option value as text.
func (o CommandOption) StringValue() string {
	switch v := o.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// TextInput returns the value submitted for the modal text input with the
// given custom id.
func (d *InteractionData) TextInput(customID string) (string, bool) {
	if d == nil || len(d.Components) == 0 {
		return "", false
	}
	var (
		value string
		found bool
	)
	gjson.GetBytes(d.Components, "#.components").ForEach(func(_, row gjson.Result) bool {
		row.ForEach(func(_, input gjson.Result) bool {
			if input.Get("custom_id").String() == customID {
				value, found = input.Get("value").String(), true
				return false
			}
			return true
		})
		return !found
	})
	return value, found
}
