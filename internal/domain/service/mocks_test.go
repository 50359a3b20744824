package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/jonny/interactiond/internal/domain/model"
	"github.com/jonny/interactiond/internal/domain/port/outbound"
	"github.com/jonny/interactiond/internal/domain/service"
)

// --- mock discord api ---

type editCall struct {
	appID string
	token string
	edit  *discordgo.WebhookEdit
}

type followupCall struct {
	appID  string
	token  string
	params *discordgo.WebhookParams
}

type mockDiscord struct {
	mu sync.Mutex

	edits     []editCall
	deletes   int
	followups []followupCall
	editErr   error

	followupEdits   map[string]*discordgo.WebhookEdit
	followupDeletes []string
	guildLookups    []string

	created    []*discordgo.ApplicationCommand
	deleted    []string
	createErr  error
	deleteErr  error
	omitID     bool
	nextID     int
	remoteHits int
}

func (m *mockDiscord) EditOriginal(_ context.Context, appID, token string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return nil, m.editErr
	}
	m.edits = append(m.edits, editCall{appID: appID, token: token, edit: edit})
	return &discordgo.Message{ID: "msg-1"}, nil
}

func (m *mockDiscord) DeleteOriginal(_ context.Context, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	return nil
}

func (m *mockDiscord) CreateFollowup(_ context.Context, appID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followups = append(m.followups, followupCall{appID: appID, token: token, params: params})
	return &discordgo.Message{ID: "msg-2"}, nil
}

func (m *mockDiscord) EditFollowup(_ context.Context, _, _ string, messageID string, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.followupEdits == nil {
		m.followupEdits = make(map[string]*discordgo.WebhookEdit)
	}
	m.followupEdits[messageID] = edit
	return &discordgo.Message{ID: messageID}, nil
}

func (m *mockDiscord) DeleteFollowup(_ context.Context, _, _ string, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.followupDeletes = append(m.followupDeletes, messageID)
	return nil
}

func (m *mockDiscord) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guildLookups = append(m.guildLookups, guildID)
	return &discordgo.Guild{ID: guildID, Name: "Guild " + guildID}, nil
}

func (m *mockDiscord) GuildMember(_ context.Context, guildID, userID string) (*discordgo.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guildLookups = append(m.guildLookups, guildID+"/"+userID)
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}}, nil
}

func (m *mockDiscord) CreateGuildCommand(_ context.Context, guildID string, cmd *discordgo.ApplicationCommand) (*discordgo.ApplicationCommand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteHits++
	if m.createErr != nil {
		return nil, m.createErr
	}
	out := *cmd
	out.GuildID = guildID
	if !m.omitID {
		m.nextID++
		out.ID = fmt.Sprintf("cmd-%d", m.nextID)
	}
	m.created = append(m.created, &out)
	return &out, nil
}

func (m *mockDiscord) DeleteGuildCommand(_ context.Context, _ string, commandID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteHits++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, commandID)
	return nil
}

func (m *mockDiscord) BulkOverwriteGlobalCommands(_ context.Context, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	return cmds, nil
}

func (m *mockDiscord) editCalls() []editCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]editCall(nil), m.edits...)
}

func (m *mockDiscord) followupCalls() []followupCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]followupCall(nil), m.followups...)
}

var _ outbound.DiscordAPI = (*mockDiscord)(nil)

// --- handlers ---

func replyWith(content string) service.Handler {
	return service.HandlerFunc(func(_ context.Context, c *service.Context) (model.Response, error) {
		return c.Respond().Content(content).Build()
	})
}

func contentOf(t *testing.T, resp model.Response) string {
	t.Helper()
	if resp.Data == nil {
		return ""
	}
	return resp.Data.Content
}
