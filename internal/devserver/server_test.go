package devserver

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appchat "nestchat/internal/app/chat"
	chat "nestchat/internal/domain/chat"
	"nestchat/internal/infra/api"
	"nestchat/internal/infra/auth"
)

// testEnv runs the dev server and builds real API clients against it, so
// these tests exercise the whole loop: stores, REST client, handlers, repo.
type testEnv struct {
	t    *testing.T
	repo *Repo
	srv  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := NewRepo()
	repo.UpsertUser(chat.User{ID: "u-host", Name: "Inga Host"})
	repo.UpsertUser(chat.User{ID: "u-guest", Name: "Marco Guest"})
	srv := httptest.NewServer(NewRouter(repo, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return &testEnv{t: t, repo: repo, srv: srv}
}

func (e *testEnv) client(userID, name string) *api.Client {
	e.t.Helper()
	token, err := MintToken(userID, name)
	require.NoError(e.t, err)
	client, err := api.NewClient(api.Config{
		BaseURL:         e.srv.URL,
		Timeout:         2 * time.Second,
		RetryMaxElapsed: 200 * time.Millisecond,
	}, auth.StaticSource{Value: token}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(e.t, err)
	return client
}

func (e *testEnv) store(userID, name string) *appchat.ConversationStore {
	e.t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := e.client(userID, name)
	identity := auth.Identity{UserID: userID, Name: name}
	messages := appchat.NewMessageStore(client, identity, appchat.MessageStoreOptions{}, logger)
	return appchat.NewConversationStore(client, messages, identity, appchat.ConversationStoreOptions{}, logger)
}

func TestFullMessagingLoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.store("u-host", "Inga Host")
	guest := env.store("u-guest", "Marco Guest")

	created, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "prop-1")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	require.NoError(t, host.SetActive(ctx, created.ID))
	sent, err := host.SendMessage(ctx, "Hello")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(sent.ID, chat.TempIDPrefix), "server id replaces the temp id")
	assert.Equal(t, "Hello", sent.Content)

	got := host.Messages().Messages()
	require.Len(t, got, 1)
	assert.Equal(t, sent.ID, got[0].ID)
	assert.False(t, got[0].Pending)

	// The guest sees the thread with one unread message.
	require.NoError(t, guest.FetchConversations(ctx, true))
	convs := guest.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, created.ID, convs[0].ID)
	assert.Equal(t, "Inga Host", convs[0].Other("u-guest").Name)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, sent.ID, convs[0].LastMessage.ID)
	assert.Equal(t, 1, guest.UnreadTotal())

	// Opening the thread marks it read.
	require.NoError(t, guest.SetActive(ctx, created.ID))
	guestMsgs := guest.Messages().Messages()
	require.Len(t, guestMsgs, 1)
	assert.True(t, guestMsgs[0].Read)

	require.NoError(t, guest.FetchConversations(ctx, true))
	assert.Zero(t, guest.UnreadTotal())
}

func TestStartConversationGetOrCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.store("u-host", "Inga Host")

	first, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "prop-1")
	require.NoError(t, err)
	again, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "same pair and property reuses the thread")

	other, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "prop-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "a different property gets its own thread")

	noProperty, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, noProperty.ID)
}

func TestCreateConversationRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.client("u-host", "Inga Host")

	_, err := client.CreateConversation(ctx, "u-host", "")
	assert.ErrorIs(t, err, api.ErrBadRequest, "self conversation rejected server-side too")

	_, err = client.CreateConversation(ctx, "u-nobody", "")
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestMessageOrderingAcrossSenders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.store("u-host", "Inga Host")
	guest := env.store("u-guest", "Marco Guest")

	created, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "")
	require.NoError(t, err)
	require.NoError(t, host.SetActive(ctx, created.ID))
	require.NoError(t, guest.SetActive(ctx, created.ID))

	_, err = host.SendMessage(ctx, "one")
	require.NoError(t, err)
	_, err = guest.SendMessage(ctx, "two")
	require.NoError(t, err)
	_, err = host.SendMessage(ctx, "three")
	require.NoError(t, err)

	require.NoError(t, host.Messages().Fetch(ctx, created.ID, true))
	got := host.Messages().Messages()
	require.Len(t, got, 3)
	contents := []string{got[0].Content, got[1].Content, got[2].Content}
	assert.Equal(t, []string{"one", "two", "three"}, contents)
}

func TestDeleteConversationEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.store("u-host", "Inga Host")
	guest := env.store("u-guest", "Marco Guest")

	created, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "")
	require.NoError(t, err)
	require.NoError(t, host.SetActive(ctx, created.ID))

	require.NoError(t, host.DeleteConversation(ctx, created.ID))
	assert.Empty(t, host.ActiveID())
	assert.Empty(t, host.Conversations())

	require.NoError(t, guest.FetchConversations(ctx, true))
	assert.Empty(t, guest.Conversations(), "deletion is visible to the other participant")

	_, err = env.client("u-host", "Inga Host").GetConversation(ctx, created.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestConversationAccessIsScopedToParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.repo.UpsertUser(chat.User{ID: "u-other", Name: "Nosy Neighbor"})
	host := env.store("u-host", "Inga Host")

	created, err := host.StartConversation(ctx, chat.User{ID: "u-guest"}, "")
	require.NoError(t, err)

	outsider := env.client("u-other", "Nosy Neighbor")
	_, err = outsider.GetConversation(ctx, created.ID)
	assert.ErrorIs(t, err, api.ErrNotFound, "non-participants cannot see the thread")
	_, err = outsider.ListMessages(ctx, created.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
}

func TestSearchUsersEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.client("u-host", "Inga Host")

	users, err := client.SearchUsers(ctx, "marco")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u-guest", users[0].ID)

	_, err = client.SearchUsers(ctx, "")
	assert.ErrorIs(t, err, api.ErrBadRequest)
}

func TestUnknownUserIsAutoRegistered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	client := env.client("u-fresh", "Fresh Face")

	_, err := client.ListConversations(ctx)
	require.NoError(t, err)

	registered, ok := env.repo.User("u-fresh")
	require.True(t, ok)
	assert.Equal(t, "Fresh Face", registered.Name)
}
