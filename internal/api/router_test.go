package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/kayprogrammer/socialnet-v2/internal/api/handler"
	"github.com/kayprogrammer/socialnet-v2/internal/auth"
	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/internal/storage"
	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

type stack struct {
	ts       *httptest.Server
	hub      *relay.Hub
	verifier *auth.TokenVerifier
	users    map[string]*model.User
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := testutil.NewDB(t)
	hub := relay.NewHub()
	signer := storage.NewSigner("demo", "key", "secret", "https://api.cloudinary.com/v1_1/%s/image/upload")
	dir := service.NewDirectory(repository.NewUserRepository(db), signer, nil, 0)
	verifier := auth.NewTokenVerifier("test-secret", time.Hour, dir)

	notifications := service.NewNotificationService(db, dir, hub)
	chats := service.NewChatService(db, dir, signer, hub)
	feed := service.NewFeedService(db, dir, notifications, signer, hub)
	friends := service.NewFriendService(repository.NewFriendRepository(db), dir)
	ws := relay.NewServer(hub, hub, verifier, chats, relay.Options{PingInterval: time.Hour}, nil)

	r, err := NewRouter(Options{Mode: "test"}, handler.NewHandler(chats, feed, notifications, friends), ws, verifier)
	require.NoError(t, err)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	users := map[string]*model.User{}
	for _, name := range []string{"ann", "bob"} {
		users[name] = testutil.SeedUser(t, db, name)
	}
	return &stack{ts: ts, hub: hub, verifier: verifier, users: users}
}

func (s *stack) token(t *testing.T, name string) string {
	t.Helper()
	tok, err := s.verifier.Issue(s.users[name].ID)
	require.NoError(t, err)
	return tok
}

func (s *stack) do(t *testing.T, method, path, as string, body any) (int, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, as))
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out response.Response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func dataField(t *testing.T, r response.Response, key string) string {
	t.Helper()
	m, ok := r.Data.(map[string]any)
	require.True(t, ok, "data is %T", r.Data)
	s, _ := m[key].(string)
	return s
}

func TestHealthAndAuth(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodGet, "/api/v2/healthcheck/", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, response.StatusSuccess, body.Status)

	status, body = s.do(t, http.MethodGet, "/api/v2/chats/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errs.CodeInvalidAuth, body.Code)

	status, _ = s.do(t, http.MethodGet, "/api/v2/chats/?page=0", "ann", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodGet, "/api/v2/profiles/notifications/?page=9223372036854775807", "ann", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body.Data.(map[string]any)["items"])

	res, err := http.Get(s.ts.URL + "/metrics")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestReactionOverHTTPPushesNotification(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodPost, "/api/v2/feed/posts/", "ann", map[string]any{"text": "first post"})
	require.Equal(t, http.StatusCreated, status)
	slug := dataField(t, body, "slug")

	wsURL := "ws" + strings.TrimPrefix(s.ts.URL, "http") + "/api/v2/ws/notifications/?token=" + s.token(t, "ann")
	conn, err := websocket.Dial(wsURL, "", s.ts.URL)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		return s.hub.Sessions(relay.NotificationTopic(s.users["ann"].ID)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	status, body = s.do(t, http.MethodPost, "/api/v2/feed/reactions/POST/"+slug+"/", "bob", map[string]any{"rtype": "MEH"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, errs.CodeInvalidEntry, body.Code)

	status, _ = s.do(t, http.MethodPost, "/api/v2/feed/reactions/POST/"+slug+"/", "bob", map[string]any{"rtype": "LIKE"})
	assert.Equal(t, http.StatusCreated, status)
	status, _ = s.do(t, http.MethodPost, "/api/v2/feed/reactions/POST/"+slug+"/", "bob", map[string]any{"rtype": "LOVE"})
	assert.Equal(t, http.StatusOK, status)

	var ev relay.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, &ev))
	assert.Equal(t, relay.StatusCreated, ev.Status)

	status, body = s.do(t, http.MethodGet, "/api/v2/profiles/notifications/", "ann", nil)
	require.Equal(t, http.StatusOK, status)
	items := body.Data.(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, ev.ID, items[0].(map[string]any)["id"])

	status, _ = s.do(t, http.MethodGet, "/api/v2/feed/reactions/MESSAGE/"+slug+"/", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestChatOverHTTP(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodPost, "/api/v2/chats/", "ann", map[string]any{"username": "bob", "text": "hi"})
	require.Equal(t, http.StatusCreated, status)
	chatID := dataField(t, body, "chat_id")

	status, body = s.do(t, http.MethodPost, "/api/v2/chats/", "bob", map[string]any{"username": "ann", "text": "hi"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errs.CodeAlreadyExists, body.Code)

	status, _ = s.do(t, http.MethodGet, "/api/v2/chats/"+chatID+"/", "bob", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/v2/chats/groups/group/", "ann", map[string]any{"name": "crew", "usernames_to_add": []string{"bob"}})
	require.Equal(t, http.StatusCreated, status)
	groupID := dataField(t, body, "id")

	status, _ = s.do(t, http.MethodDelete, "/api/v2/chats/"+groupID+"/", "bob", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = s.do(t, http.MethodDelete, "/api/v2/chats/"+groupID+"/", "ann", nil)
	assert.Equal(t, http.StatusOK, status)
}
