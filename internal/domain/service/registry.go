package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
)

// Scope selects which side of a guild command registration is mutated.
type Scope int

const (
	// ScopeLocal changes only the in-memory dispatch table.
	ScopeLocal Scope = iota
	// ScopeDiscord changes only the remote command definitions.
	ScopeDiscord
	// ScopeAll changes the remote definitions first and the dispatch table
	// only if the remote call succeeded.
	ScopeAll
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeDiscord:
		return "discord"
	case ScopeAll:
		return "all"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

var (
	ErrMissingCommandID = errors.New("guild command has no remote id")
	ErrNoRegistrar      = errors.New("no remote command registrar configured")
)

type guildEntry struct {
	guildID string
	handler Handler
}

// Counts is a snapshot of the registry size per partition.
type Counts struct {
	Global     int
	Guild      int
	Components int
	Modals     int
}

// Registry maps interaction identifiers to handlers. It is read on every
// request and written by startup code and administrative handlers.
//
// Guild commands are keyed by their platform-assigned command id and are kept
// in memory only; they are forgotten on restart.
type Registry struct {
	mu         sync.RWMutex
	remote     outbound.CommandRegistrar
	global     map[string]Handler
	guild      map[string]guildEntry
	components map[string]Handler
	modals     map[string]Handler
}

// NewRegistry creates an empty Registry. remote may be nil when only local
// registrations are used.
func NewRegistry(remote outbound.CommandRegistrar) *Registry {
	return &Registry{
		remote:     remote,
		global:     make(map[string]Handler),
		guild:      make(map[string]guildEntry),
		components: make(map[string]Handler),
		modals:     make(map[string]Handler),
	}
}

// RegisterGlobal binds a handler to a global command name, replacing any
// previous binding.
func (r *Registry) RegisterGlobal(name string, h Handler) {
	mustHandler(h, "global command", name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.global[name] = h
}

// RegisterComponent binds a handler to a component custom id.
func (r *Registry) RegisterComponent(customID string, h Handler) {
	mustHandler(h, "component", customID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[customID] = h
}

// RegisterModal binds a handler to a modal custom id.
func (r *Registry) RegisterModal(customID string, h Handler) {
	mustHandler(h, "modal", customID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modals[customID] = h
}

// RegisterGuild binds a handler to a guild command.
//
// With ScopeLocal, cmd.ID must already hold the remote command id. With
// ScopeDiscord and ScopeAll the command is created remotely first; ScopeAll
// then binds the handler under the id the platform assigned. The dispatch
// table is never touched when the remote call fails.
func (r *Registry) RegisterGuild(ctx context.Context, guildID string, cmd *discordgo.ApplicationCommand, h Handler, scope Scope) (*discordgo.ApplicationCommand, error) {
	if cmd == nil {
		return nil, errors.New("nil command definition")
	}
	mustHandler(h, "guild command", cmd.Name)

	switch scope {
	case ScopeLocal:
		if cmd.ID == "" {
			return nil, ErrMissingCommandID
		}
		r.setGuild(cmd.ID, guildID, h)
		return cmd, nil

	case ScopeDiscord, ScopeAll:
		if r.remote == nil {
			return nil, ErrNoRegistrar
		}
		created, err := r.remote.CreateGuildCommand(ctx, guildID, cmd)
		if err != nil {
			return nil, fmt.Errorf("registering guild command %q: %w", cmd.Name, err)
		}
		if created == nil || created.ID == "" {
			return nil, &model.RemoteAPIError{Code: 0, Message: "command registration response did not have an ID"}
		}
		if scope == ScopeAll {
			r.setGuild(created.ID, guildID, h)
		}
		return created, nil
	}
	return nil, fmt.Errorf("unknown scope %s", scope)
}

// DeregisterGuild removes a guild command. The ordering rules match
// RegisterGuild: remote first, local only on remote success for ScopeAll.
func (r *Registry) DeregisterGuild(ctx context.Context, guildID, commandID string, scope Scope) error {
	switch scope {
	case ScopeLocal:
		r.deleteGuild(commandID)
		return nil

	case ScopeDiscord, ScopeAll:
		if r.remote == nil {
			return ErrNoRegistrar
		}
		if err := r.remote.DeleteGuildCommand(ctx, guildID, commandID); err != nil {
			return fmt.Errorf("deregistering guild command %s: %w", commandID, err)
		}
		if scope == ScopeAll {
			r.deleteGuild(commandID)
		}
		return nil
	}
	return fmt.Errorf("unknown scope %s", scope)
}

// LookupCommand resolves a command handler. A guild binding under the
// command id wins over a global binding under the command name.
func (r *Registry) LookupCommand(guildID, commandID, name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if commandID != "" {
		if e, ok := r.guild[commandID]; ok && e.guildID == guildID {
			return e.handler, true
		}
	}
	h, ok := r.global[name]
	return h, ok
}

// LookupComponent resolves a component handler by custom id.
func (r *Registry) LookupComponent(customID string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.components[customID]
	return h, ok
}

// LookupModal resolves a modal submit handler by custom id.
func (r *Registry) LookupModal(customID string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.modals[customID]
	return h, ok
}

// Counts returns the number of bindings per partition.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Counts{
		Global:     len(r.global),
		Guild:      len(r.guild),
		Components: len(r.components),
		Modals:     len(r.modals),
	}
}

func (r *Registry) setGuild(commandID, guildID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guild[commandID] = guildEntry{guildID: guildID, handler: h}
}

func (r *Registry) deleteGuild(commandID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.guild, commandID)
}

func mustHandler(h Handler, what, key string) {
	if h == nil {
		panic(fmt.Sprintf("service: nil handler for %s %q", what, key))
	}
}
