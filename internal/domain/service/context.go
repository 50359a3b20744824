package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
)

// Runtime carries the shared collaborators every Context is built from.
type Runtime struct {
	Registry  *Registry
	Responder outbound.InteractionResponder
	Guilds    outbound.GuildReader
	Scheduler *Scheduler
	Logger    *slog.Logger
}

// Context is handed to a handler for the duration of one interaction. It
// exposes the decoded interaction, a response builder, deferral and the
// follow-up operations addressed by the interaction's application id and
// token.
type Context struct {
	Interaction model.Interaction

	rt     Runtime
	logger *slog.Logger

	mu      sync.Mutex
	state   deferState
	pending func()
}

// deferState tracks a Context's continuation. A continuation is staged by
// Defer and only reaches the scheduler on Commit; Abort discards it.
type deferState int

const (
	deferNone deferState = iota
	deferStaged
	deferCommitted
	deferAborted
)

var (
	// ErrContextClosed is returned by Defer once the interaction has been
	// answered with a failure.
	ErrContextClosed = errors.New("interaction context closed")
	errNoResponder   = errors.New("no interaction responder configured")
	errNoGuildReader = errors.New("no guild reader configured")
	errNotInGuild    = errors.New("interaction was not sent from a guild")
)

// NewContext creates a Context for in.
func NewContext(in model.Interaction, rt Runtime) *Context {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		Interaction: in,
		rt:          rt,
		logger: logger.With(
			"interaction_id", in.ID,
			"kind", in.Kind.String(),
			"route", in.RouteKey(),
		),
	}
}

// Logger returns a logger scoped to this interaction.
func (c *Context) Logger() *slog.Logger { return c.logger }

// Registry exposes the handler registry to administrative handlers.
func (c *Context) Registry() *Registry { return c.rt.Registry }

// Respond starts a message response. Commands default to a new channel
// message, components to an update of the message carrying them.
func (c *Context) Respond() *ResponseBuilder {
	if c.Interaction.Kind == model.KindMessageComponent {
		return newResponseBuilder(model.ResponseUpdateMessage)
	}
	return newResponseBuilder(model.ResponseChannelMessageWithSource)
}

// Defer stages work to run in the background and returns the deferred
// acknowledgement the handler should return right away. The work is handed
// to the scheduler by Commit once the acknowledgement has been accepted, and
// is dropped if the interaction fails instead. When work completes with a
// deliverable response, the original message is edited with it.
func (c *Context) Defer(work Continuation) (model.Response, error) {
	return c.schedule(work, c.deliverEdit)
}

// DeferFollowup is Defer, but posts the result as a follow-up message instead
// of editing the original.
func (c *Context) DeferFollowup(work Continuation) (model.Response, error) {
	return c.schedule(work, c.deliverFollowup)
}

// Deferred reports whether a continuation is staged or committed.
func (c *Context) Deferred() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == deferStaged || c.state == deferCommitted
}

// Commit hands a staged continuation to the scheduler. It is a no-op when
// nothing is staged. On failure the continuation is dropped.
func (c *Context) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case deferStaged:
	case deferAborted:
		return ErrContextClosed
	default:
		return nil
	}

	job := c.pending
	c.pending = nil
	if err := c.rt.Scheduler.Submit("continuation "+c.Interaction.ID, job); err != nil {
		c.state = deferAborted
		return fmt.Errorf("scheduling continuation: %w", err)
	}
	c.state = deferCommitted
	return nil
}

// Abort closes the Context: a staged continuation is dropped and later Defer
// calls fail. It reports whether a continuation was dropped. A committed
// continuation is unaffected.
func (c *Context) Abort() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case deferCommitted, deferAborted:
		return false
	}
	dropped := c.state == deferStaged
	c.pending = nil
	c.state = deferAborted
	if dropped {
		c.logger.Warn("dropped deferred work of a failed interaction")
	}
	return dropped
}

// EditOriginal replaces the content of the original response message.
func (c *Context) EditOriginal(ctx context.Context, resp model.Response) (*discordgo.Message, error) {
	if c.rt.Responder == nil {
		return nil, errNoResponder
	}
	return c.rt.Responder.EditOriginal(ctx, c.Interaction.ApplicationID, c.Interaction.Token, resp.WebhookEdit())
}

// DeleteOriginal removes the original response message.
func (c *Context) DeleteOriginal(ctx context.Context) error {
	if c.rt.Responder == nil {
		return errNoResponder
	}
	return c.rt.Responder.DeleteOriginal(ctx, c.Interaction.ApplicationID, c.Interaction.Token)
}

// CreateFollowup posts a new message attached to this interaction.
func (c *Context) CreateFollowup(ctx context.Context, resp model.Response) (*discordgo.Message, error) {
	if c.rt.Responder == nil {
		return nil, errNoResponder
	}
	return c.rt.Responder.CreateFollowup(ctx, c.Interaction.ApplicationID, c.Interaction.Token, resp.WebhookParams())
}

// EditFollowup replaces the content of a follow-up message created for this
// interaction.
func (c *Context) EditFollowup(ctx context.Context, messageID string, resp model.Response) (*discordgo.Message, error) {
	if c.rt.Responder == nil {
		return nil, errNoResponder
	}
	return c.rt.Responder.EditFollowup(ctx, c.Interaction.ApplicationID, c.Interaction.Token, messageID, resp.WebhookEdit())
}

func (c *Context) DeleteFollowup(ctx context.Context, messageID string) error {
	if c.rt.Responder == nil {
		return errNoResponder
	}
	return c.rt.Responder.DeleteFollowup(ctx, c.Interaction.ApplicationID, c.Interaction.Token, messageID)
}

// Guild fetches the guild the interaction was sent from.
func (c *Context) Guild(ctx context.Context) (*discordgo.Guild, error) {
	if c.rt.Guilds == nil {
		return nil, errNoGuildReader
	}
	if c.Interaction.GuildID == "" {
		return nil, errNotInGuild
	}
	return c.rt.Guilds.Guild(ctx, c.Interaction.GuildID)
}

// GuildMember fetches a member of the guild the interaction was sent from.
func (c *Context) GuildMember(ctx context.Context, userID string) (*discordgo.Member, error) {
	if c.rt.Guilds == nil {
		return nil, errNoGuildReader
	}
	if c.Interaction.GuildID == "" {
		return nil, errNotInGuild
	}
	return c.rt.Guilds.GuildMember(ctx, c.Interaction.GuildID, userID)
}

func (c *Context) deferredType() model.ResponseType {
	if c.Interaction.Kind == model.KindMessageComponent {
		return model.ResponseDeferredUpdateMessage
	}
	return model.ResponseDeferredChannelMessageWithSource
}

type deliverFunc func(ctx context.Context, resp model.Response) error

func (c *Context) schedule(work Continuation, deliver deliverFunc) (model.Response, error) {
	if work == nil {
		return model.Response{}, errors.New("nil continuation")
	}
	if c.rt.Scheduler == nil {
		return model.Response{}, errors.New("no scheduler configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case deferAborted:
		return model.Response{}, ErrContextClosed
	case deferStaged, deferCommitted:
		return model.Response{}, errors.New("interaction already deferred")
	}
	c.pending = func() { c.runContinuation(work, deliver) }
	c.state = deferStaged
	return model.NewResponse(c.deferredType(), nil), nil
}

// runContinuation is detached from the inbound request: it outlives the
// HTTP exchange that scheduled it.
func (c *Context) runContinuation(work Continuation, deliver deliverFunc) {
	ctx := context.Background()

	resp, err := work(ctx, c)
	if err != nil {
		c.logger.Error("deferred work failed", "error", err)
		return
	}
	if !resp.Type.Delivers() {
		c.logger.Debug("deferred work produced nothing to deliver", "response_type", resp.Type.String())
		return
	}
	if err := deliver(ctx, resp); err != nil {
		c.logger.Error("delivering deferred result failed", "error", err)
		return
	}
	c.logger.Debug("deferred result delivered", "response_type", resp.Type.String())
}

func (c *Context) deliverEdit(ctx context.Context, resp model.Response) error {
	_, err := c.EditOriginal(ctx, resp)
	return err
}

func (c *Context) deliverFollowup(ctx context.Context, resp model.Response) error {
	_, err := c.CreateFollowup(ctx, resp)
	return err
}
