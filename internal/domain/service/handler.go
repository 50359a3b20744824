package service

import (
	"context"

	"github.com/jonny/interactiond/internal/domain/model"
)

// Handler answers one interaction. Command, component, modal and
// administrative handlers share this shape and differ only in which parts of
// the Context they use.
type Handler interface {
	Handle(ctx context.Context, c *Context) (model.Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, c *Context) (model.Response, error)

func (f HandlerFunc) Handle(ctx context.Context, c *Context) (model.Response, error) {
	return f(ctx, c)
}

// Continuation is the background half of a deferred response. Its result is
// delivered to the platform once it returns.
type Continuation func(ctx context.Context, c *Context) (model.Response, error)
