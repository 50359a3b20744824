package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/jonny/interactiond/internal/adapter/inbound/webhook/middleware"
	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
	"github.com/jonny/interactiond/internal/domain/service"
	"github.com/jonny/interactiond/pkg/apierror"
)

// DispatcherConfig tunes handler invocation.
type DispatcherConfig struct {
	// HandlerTimeout bounds a synchronous handler call. Zero disables it.
	HandlerTimeout time.Duration
}

// Dispatcher is the http.Handler behind the interactions route. It expects
// the request to have passed the transport and signature middleware, then
// decodes the body, routes it to a handler and writes the handler's response.
type Dispatcher struct {
	rt      service.Runtime
	alerter outbound.Alerter
	audits  outbound.AuditRepository
	cfg     DispatcherConfig
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. alerter and audits may be nil.
func NewDispatcher(rt service.Runtime, alerter outbound.Alerter, audits outbound.AuditRepository, cfg DispatcherConfig) *Dispatcher {
	logger := rt.Logger
	if logger == nil {
		logger = slog.Default()
		rt.Logger = logger
	}
	return &Dispatcher{
		rt:      rt,
		alerter: alerter,
		audits:  audits,
		cfg:     cfg,
		logger:  logger,
	}
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, ok := middleware.RawBody(r.Context())
	if !ok {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, middleware.MaxBodyBytes))
		if err != nil {
			apierror.Write(w, apierror.BadRequest("Bad body: unreadable"))
			return
		}
	}

	in, err := DecodeInteraction(body)
	if err != nil {
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			decErr = &DecodeError{Reason: err.Error()}
		}
		d.logger.Debug("rejected interaction body", "reason", decErr.Reason)
		apierror.Write(w, apierror.Wrap(http.StatusBadRequest, "Bad body: "+decErr.Reason, err))
		return
	}

	if in.Kind == model.KindPing {
		resp := service.Pong()
		writeResponse(w, resp)
		d.record(r.Context(), model.NewAuditRecord(in, model.AuditOutcomePong, resp.Type.Status()).
			WithResponse(resp.Type).WithDuration(time.Since(start)))
		return
	}

	h, ok := d.lookup(in)
	if !ok {
		derr := &DispatchError{Kind: NoHandlerFound, RouteKey: in.RouteKey()}
		d.fail(r.Context(), w, in, derr, start)
		return
	}

	c := service.NewContext(in, d.rt)
	resp, err := d.invoke(r.Context(), h, c)
	if err != nil {
		c.Abort()
		d.fail(r.Context(), w, in, err, start)
		return
	}

	if resp.Type.Deferred() && !c.Deferred() {
		c.Abort()
		derr := &DispatchError{
			Kind:     ContractViolation,
			RouteKey: in.RouteKey(),
			Err:      fmt.Errorf("handler returned %s without scheduling a continuation", resp.Type),
		}
		d.fail(r.Context(), w, in, derr, start)
		return
	}

	// A staged continuation only runs once the acknowledgement is about to
	// be written.
	if err := c.Commit(); err != nil {
		c.Abort()
		d.fail(r.Context(), w, in, &DispatchError{Kind: HandlerFailed, RouteKey: in.RouteKey(), Err: err}, start)
		return
	}

	resp = resp.Normalize()
	writeResponse(w, resp)

	outcome := model.AuditOutcomeResponded
	if resp.Type.Deferred() {
		outcome = model.AuditOutcomeDeferred
	}
	d.record(r.Context(), model.NewAuditRecord(in, outcome, resp.Type.Status()).
		WithResponse(resp.Type).WithDuration(time.Since(start)))
}

func (d *Dispatcher) lookup(in model.Interaction) (service.Handler, bool) {
	reg := d.rt.Registry
	if reg == nil {
		return nil, false
	}
	switch in.Kind {
	case model.KindApplicationCommand:
		return reg.LookupCommand(in.GuildID, in.Data.ID, in.Data.Name)
	case model.KindMessageComponent:
		return reg.LookupComponent(in.Data.CustomID)
	case model.KindModalSubmit:
		return reg.LookupModal(in.Data.CustomID)
	}
	return nil, false
}

type handlerResult struct {
	resp model.Response
	err  error
}

// invoke calls h, bounded by the configured timeout.
func (d *Dispatcher) invoke(ctx context.Context, h service.Handler, c *service.Context) (model.Response, error) {
	if d.cfg.HandlerTimeout <= 0 {
		return d.call(ctx, h, c)
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.HandlerTimeout)
	defer cancel()

	done := make(chan handlerResult, 1)
	go func() {
		resp, err := d.call(ctx, h, c)
		done <- handlerResult{resp: resp, err: err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-ctx.Done():
		kind := HandlerFailed
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = HandlerTimeout
		}
		return model.Response{}, &DispatchError{Kind: kind, RouteKey: c.Interaction.RouteKey(), Err: ctx.Err()}
	}
}

// call runs the handler and converts panics and errors into DispatchErrors.
func (d *Dispatcher) call(ctx context.Context, h service.Handler, c *service.Context) (resp model.Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c.Logger().Error("handler panicked", "panic", rec, "stack", string(debug.Stack()))
			err = &DispatchError{
				Kind:     HandlerFailed,
				RouteKey: c.Interaction.RouteKey(),
				Err:      fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	resp, err = h.Handle(ctx, c)
	if err != nil {
		return model.Response{}, &DispatchError{Kind: HandlerFailed, RouteKey: c.Interaction.RouteKey(), Err: err}
	}
	return resp, nil
}

// fail writes the error response for a dispatch failure, then logs, alerts
// and audits it.
func (d *Dispatcher) fail(ctx context.Context, w http.ResponseWriter, in model.Interaction, err error, start time.Time) {
	var derr *DispatchError
	if !errors.As(err, &derr) {
		derr = &DispatchError{Kind: HandlerFailed, RouteKey: in.RouteKey(), Err: err}
	}

	var (
		apiErr  *apierror.Error
		outcome model.AuditOutcome
		level   = outbound.AlertCritical
	)
	switch derr.Kind {
	case NoHandlerFound:
		apiErr = apierror.Wrap(http.StatusNotImplemented, "No associated handler found", derr)
		outcome = model.AuditOutcomeUnhandled
		level = outbound.AlertWarning
	case HandlerTimeout:
		apiErr = apierror.Wrap(http.StatusInternalServerError, "Handler timed out", derr)
		outcome = model.AuditOutcomeHandlerTimeout
	default:
		apiErr = apierror.Wrap(http.StatusInternalServerError, "Internal handler error", derr)
		outcome = model.AuditOutcomeHandlerFailed
	}

	apierror.Write(w, apiErr)

	d.logger.Error("interaction dispatch failed",
		"interaction_id", in.ID,
		"kind", in.Kind.String(),
		"route", in.RouteKey(),
		"guild_id", in.GuildID,
		"failure", derr.Kind.String(),
		"error", derr,
	)

	if d.alerter != nil {
		d.alerter.Alert(ctx, outbound.DispatchAlert{
			Level:         level,
			Title:         fmt.Sprintf("Interaction dispatch failed: %s", derr.Kind),
			Detail:        derr.Error(),
			InteractionID: in.ID,
			RouteKey:      in.RouteKey(),
			GuildID:       in.GuildID,
		})
	}

	d.record(ctx, model.NewAuditRecord(in, outcome, apiErr.Status).WithDuration(time.Since(start)))
}

func (d *Dispatcher) record(ctx context.Context, rec model.AuditRecord) {
	if d.audits == nil {
		return
	}
	if err := d.audits.Create(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Warn("failed to write interaction audit record", "interaction_id", rec.InteractionID, "error", err)
	}
}

func writeResponse(w http.ResponseWriter, resp model.Response) {
	status := resp.Type.Status()
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
