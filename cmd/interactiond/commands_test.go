package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/config"
	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/service"
)

type fakeDiscord struct {
	mu        sync.Mutex
	edits     []string
	followups []string
	deletes   int
	created   []*discordgo.ApplicationCommand
	removed   []string
	nextID    int
}

func (f *fakeDiscord) EditOriginal(_ context.Context, _, _ string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	f.edits = append(f.edits, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeDiscord) DeleteOriginal(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return nil
}

func (f *fakeDiscord) CreateFollowup(_ context.Context, _, _ string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, params.Content)
	return &discordgo.Message{Content: params.Content}, nil
}

func (f *fakeDiscord) EditFollowup(_ context.Context, _, _, messageID string, _ *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return &discordgo.Message{ID: messageID}, nil
}

func (f *fakeDiscord) DeleteFollowup(context.Context, string, string, string) error { return nil }

func (f *fakeDiscord) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID}, nil
}

func (f *fakeDiscord) GuildMember(_ context.Context, guildID, userID string) (*discordgo.Member, error) {
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}}, nil
}

func (f *fakeDiscord) CreateGuildCommand(_ context.Context, guildID string, cmd *discordgo.ApplicationCommand) (*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := *cmd
	created.ID = fmt.Sprintf("cmd-%d", f.nextID)
	created.GuildID = guildID
	f.created = append(f.created, &created)
	return &created, nil
}

func (f *fakeDiscord) DeleteGuildCommand(_ context.Context, _, commandID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, commandID)
	return nil
}

func (f *fakeDiscord) BulkOverwriteGlobalCommands(_ context.Context, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	return cmds, nil
}

type env struct {
	api       *fakeDiscord
	registry  *service.Registry
	scheduler *service.Scheduler
	rt        service.Runtime
}

func newEnv(t *testing.T) *env {
	t.Helper()
	api := &fakeDiscord{}
	reg := service.NewRegistry(api)
	registerHandlers(reg)
	sched := service.NewScheduler(1, slog.Default())
	e := &env{
		api:       api,
		registry:  reg,
		scheduler: sched,
		rt:        service.Runtime{Registry: reg, Responder: api, Guilds: api, Scheduler: sched, Logger: slog.Default()},
	}
	t.Cleanup(func() { e.scheduler.Stop() })
	return e
}

// invoke runs the handler for in and waits for any continuation to finish.
func (e *env) invoke(t *testing.T, in model.Interaction) model.Response {
	t.Helper()
	var (
		h  service.Handler
		ok bool
	)
	switch in.Kind {
	case model.KindApplicationCommand:
		h, ok = e.registry.LookupCommand(in.GuildID, in.Data.ID, in.Data.Name)
	case model.KindMessageComponent:
		h, ok = e.registry.LookupComponent(in.Data.CustomID)
	case model.KindModalSubmit:
		h, ok = e.registry.LookupModal(in.Data.CustomID)
	}
	if !ok {
		t.Fatalf("no handler for %s %q", in.Kind, in.RouteKey())
	}
	c := service.NewContext(in, e.rt)
	resp, err := h.Handle(context.Background(), c)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if err := c.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	e.scheduler.StopWait()
	e.scheduler = service.NewScheduler(1, slog.Default())
	e.rt.Scheduler = e.scheduler
	return resp
}

func command(name string, opts ...model.CommandOption) model.Interaction {
	return model.Interaction{
		ID:            "i1",
		ApplicationID: "app",
		Kind:          model.KindApplicationCommand,
		Token:         "tok",
		Data:          &model.InteractionData{ID: "global-" + name, Name: name, Options: opts},
	}
}

func admin(in model.Interaction) model.Interaction {
	in.GuildID = "g1"
	in.Member = &discordgo.Member{
		User:        &discordgo.User{ID: "u1", Username: "alice"},
		Permissions: discordgo.PermissionManageGuild,
	}
	return in
}

func option(name, value string) model.CommandOption {
	return model.CommandOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func TestGlobalCommandsHaveHandlers(t *testing.T) {
	reg := service.NewRegistry(nil)
	registerHandlers(reg)

	for _, cmd := range globalCommands() {
		if _, ok := reg.LookupCommand("", "", cmd.Name); !ok {
			t.Errorf("command %q has no handler", cmd.Name)
		}
	}
	if got := reg.Counts().Global; got != len(globalCommands()) {
		t.Errorf("global handlers = %d, want %d", got, len(globalCommands()))
	}
}

func TestPing(t *testing.T) {
	e := newEnv(t)
	resp := e.invoke(t, command("ping"))

	if resp.Type != model.ResponseChannelMessageWithSource {
		t.Fatalf("type = %s", resp.Type)
	}
	if resp.Data == nil || resp.Data.Content != "Pong!" {
		t.Errorf("unexpected data %+v", resp.Data)
	}
}

func TestSummon_DefersThenEdits(t *testing.T) {
	e := newEnv(t)
	resp := e.invoke(t, admin(command("summon")))

	if resp.Type != model.ResponseDeferredChannelMessageWithSource {
		t.Fatalf("type = %s, want deferred", resp.Type)
	}
	if len(e.api.edits) != 1 || !strings.Contains(e.api.edits[0], "alice summoned me") {
		t.Errorf("edits = %v", e.api.edits)
	}
}

func TestDismiss_DeletesOriginal(t *testing.T) {
	e := newEnv(t)
	resp := e.invoke(t, model.Interaction{
		ID: "i2", ApplicationID: "app", Kind: model.KindMessageComponent, Token: "tok",
		Data: &model.InteractionData{CustomID: dismissButtonID, ComponentType: discordgo.ButtonComponent},
	})

	if resp.Type != model.ResponseDeferredUpdateMessage {
		t.Fatalf("type = %s, want deferred update", resp.Type)
	}
	if e.api.deletes != 1 {
		t.Errorf("deletes = %d, want 1", e.api.deletes)
	}
	if len(e.api.edits) != 0 {
		t.Errorf("unexpected edits %v", e.api.edits)
	}
}

func TestFeedback_ModalRoundTrip(t *testing.T) {
	e := newEnv(t)
	resp := e.invoke(t, command("feedback"))
	if resp.Type != model.ResponseModal || resp.Data.CustomID != feedbackModalID {
		t.Fatalf("unexpected modal response %+v", resp)
	}

	submit := model.Interaction{
		ID: "i3", ApplicationID: "app", Kind: model.KindModalSubmit, Token: "tok",
		Data: &model.InteractionData{
			CustomID:   feedbackModalID,
			Components: []byte(`[{"type":1,"components":[{"type":4,"custom_id":"feedback:text","value":"great bot"}]}]`),
		},
	}
	resp = e.invoke(t, submit)
	if resp.Type != model.ResponseDeferredChannelMessageWithSource {
		t.Fatalf("type = %s, want deferred", resp.Type)
	}
	if len(e.api.followups) != 1 || !strings.Contains(e.api.followups[0], "9 characters") {
		t.Errorf("followups = %v", e.api.followups)
	}
}

func TestRegister_AddsGuildCommand(t *testing.T) {
	e := newEnv(t)
	resp := e.invoke(t, admin(command("register", option("name", "Hello"), option("reply", "hi there"))))

	if resp.Type != model.ResponseDeferredChannelMessageWithSource {
		t.Fatalf("type = %s, want deferred", resp.Type)
	}
	if len(e.api.created) != 1 || e.api.created[0].Name != "hello" {
		t.Fatalf("created = %+v", e.api.created)
	}
	if len(e.api.edits) != 1 || !strings.Contains(e.api.edits[0], "Registered /hello with id cmd-1") {
		t.Errorf("edits = %v", e.api.edits)
	}

	custom := command("hello")
	custom.GuildID = "g1"
	custom.Data.ID = "cmd-1"
	resp = e.invoke(t, custom)
	if resp.Data == nil || resp.Data.Content != "hi there" {
		t.Errorf("custom command reply = %+v", resp.Data)
	}
}

func TestRegister_RequiresPermission(t *testing.T) {
	e := newEnv(t)
	in := command("register", option("name", "x"), option("reply", "y"))
	in.GuildID = "g1"
	in.Member = &discordgo.Member{User: &discordgo.User{ID: "u2"}}

	resp := e.invoke(t, in)
	if resp.Type != model.ResponseChannelMessageWithSource {
		t.Fatalf("type = %s", resp.Type)
	}
	if resp.Data.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("refusal should be ephemeral")
	}
	if len(e.api.created) != 0 {
		t.Errorf("nothing should be created, got %+v", e.api.created)
	}
}

func TestRegister_OutsideGuild(t *testing.T) {
	e := newEnv(t)
	resp := e.invoke(t, command("register", option("name", "x"), option("reply", "y")))
	if resp.Data == nil || resp.Data.Content != errNotInGuild.Error() {
		t.Errorf("unexpected reply %+v", resp.Data)
	}
}

func TestUnregister_RemovesGuildCommand(t *testing.T) {
	e := newEnv(t)
	e.invoke(t, admin(command("register", option("name", "bye"), option("reply", "later"))))

	resp := e.invoke(t, admin(command("unregister", option("id", "cmd-1"))))
	if resp.Type != model.ResponseDeferredChannelMessageWithSource {
		t.Fatalf("type = %s, want deferred", resp.Type)
	}
	if len(e.api.removed) != 1 || e.api.removed[0] != "cmd-1" {
		t.Errorf("removed = %v", e.api.removed)
	}
	if _, ok := e.registry.LookupCommand("g1", "cmd-1", "bye"); ok {
		t.Error("guild command should no longer resolve")
	}
}

func TestRegister_AbortedInteractionCreatesNothing(t *testing.T) {
	e := newEnv(t)
	in := admin(command("register", option("name", "Hello"), option("reply", "hi there")))
	h, ok := e.registry.LookupCommand(in.GuildID, in.Data.ID, in.Data.Name)
	if !ok {
		t.Fatal("register handler missing")
	}

	c := service.NewContext(in, e.rt)
	if _, err := h.Handle(context.Background(), c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !c.Abort() {
		t.Fatal("expected a staged continuation to drop")
	}
	e.scheduler.StopWait()

	if len(e.api.created) != 0 {
		t.Errorf("created = %+v, want none", e.api.created)
	}
	if got := e.registry.Counts().Guild; got != 0 {
		t.Errorf("guild handlers = %d, want 0", got)
	}
}

func TestBuildLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := buildLogger(config.LoggingConfig{Level: tt.level, Format: "text"})
			if !logger.Enabled(context.Background(), tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-1) {
				t.Errorf("level below %s should be disabled", tt.want)
			}
		})
	}
}
