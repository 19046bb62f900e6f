package relay

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

// token 即用户 id
type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (string, error) {
	if token == "bad" {
		return "", errs.InvalidToken("Auth Token is Invalid or Expired!")
	}
	return token, nil
}

type stubChats struct {
	members  map[string]bool
	messages map[string]bool
}

func (s stubChats) Authorize(_ context.Context, chatID, userID string) error {
	if chatID != "c1" {
		return errs.NotFound("Chat does not exist")
	}
	if !s.members[userID] {
		return errs.Forbidden("You're not a member of this chat")
	}
	return nil
}

func (s stubChats) VerifyEcho(_ context.Context, _, _ string, ev Event) error {
	if !s.messages[ev.ID] {
		return errs.InvalidInput("id", "Message not found in this chat")
	}
	return nil
}

type relayFixture struct {
	hub *Hub
	ts  *httptest.Server
	ws  string
}

func newRelayFixture(t *testing.T, chats stubChats) *relayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	srv := NewServer(hub, nil, stubAuth{}, chats, Options{PingInterval: time.Hour}, nil)
	r := gin.New()
	r.GET("/ws/chats/:id/", srv.ChatSocket)
	r.GET("/ws/notifications/", srv.NotificationSocket)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return &relayFixture{hub: hub, ts: ts, ws: "ws" + strings.TrimPrefix(ts.URL, "http")}
}

func (f *relayFixture) dial(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	conn, err := websocket.Dial(f.ws+path+"?token="+token, "", f.ts.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (f *relayFixture) waitSessions(t *testing.T, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.Sessions(topic) == n }, 2*time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, websocket.JSON.Receive(conn, v))
}

func TestChatSocketRejectsOutsiders(t *testing.T) {
	f := newRelayFixture(t, stubChats{members: map[string]bool{"ann": true}})

	_, err := websocket.Dial(f.ws+"/ws/chats/c1/?token=eve", "", f.ts.URL)
	assert.Error(t, err)
	_, err = websocket.Dial(f.ws+"/ws/chats/c9/?token=ann", "", f.ts.URL)
	assert.Error(t, err)
	_, err = websocket.Dial(f.ws+"/ws/chats/c1/?token=bad", "", f.ts.URL)
	assert.Error(t, err)
	_, err = websocket.Dial(f.ws+"/ws/chats/c1/", "", f.ts.URL)
	assert.Error(t, err)
	assert.Zero(t, f.hub.Sessions(ChatTopic("c1")))
}

func TestChatEchoReachesOtherMembers(t *testing.T) {
	msgID := uuid.New().String()
	f := newRelayFixture(t, stubChats{members: map[string]bool{"ann": true, "bob": true}, messages: map[string]bool{msgID: true}})
	ann := f.dial(t, "/ws/chats/c1/", "ann")
	bob := f.dial(t, "/ws/chats/c1/", "bob")
	f.waitSessions(t, ChatTopic("c1"), 2)

	// 非法帧：返回错误帧，连接保持打开
	require.NoError(t, websocket.Message.Send(ann, `{"status":"CREATED"}`))
	var ef ErrorFrame
	receive(t, ann, &ef)
	assert.Equal(t, "error", ef.Status)
	assert.Equal(t, errs.CodeInvalidEntry, ef.Code)
	assert.Contains(t, ef.Data, "id")

	// CREATED 携带未知消息 id 被拒绝
	require.NoError(t, websocket.JSON.Send(ann, Event{Status: StatusCreated, ID: uuid.New().String()}))
	receive(t, ann, &ef)
	assert.Equal(t, "Message not found in this chat", ef.Data["id"])

	require.NoError(t, websocket.JSON.Send(ann, Event{Status: StatusCreated, ID: msgID}))
	var got Event
	receive(t, bob, &got)
	assert.Equal(t, Event{Status: StatusCreated, ID: msgID}, got)

	// 服务端发布两端都能收到，ann 收不到自己的回显
	require.NoError(t, f.hub.Publish(context.Background(), ChatTopic("c1"), Event{Status: StatusDeleted, ID: msgID}))
	receive(t, ann, &got)
	assert.Equal(t, StatusDeleted, got.Status)
	receive(t, bob, &got)
	assert.Equal(t, StatusDeleted, got.Status)
}

func TestNotificationSocketIsReceiveOnly(t *testing.T) {
	f := newRelayFixture(t, stubChats{})
	conn := f.dial(t, "/ws/notifications/", "ann")
	f.waitSessions(t, NotificationTopic("ann"), 1)

	require.NoError(t, websocket.JSON.Send(conn, Event{Status: StatusCreated, ID: uuid.New().String()}))
	var ef ErrorFrame
	receive(t, conn, &ef)
	assert.Equal(t, errs.CodeInvalidValue, ef.Code)

	id := uuid.New().String()
	require.NoError(t, f.hub.Publish(context.Background(), NotificationTopic("ann"), Event{Status: StatusCreated, ID: id}))
	var got Event
	receive(t, conn, &got)
	assert.Equal(t, id, got.ID)

	require.NoError(t, conn.Close())
	f.waitSessions(t, NotificationTopic("ann"), 0)
}

func TestHandshakeOrigins(t *testing.T) {
	srv := &Server{origins: []string{"https://app.example.com"}}
	cfg := &websocket.Config{Version: websocket.ProtocolVersionHybi13}

	req := httptest.NewRequest("GET", "/ws/notifications/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.NoError(t, srv.handshake(cfg, req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.Error(t, srv.handshake(cfg, req))

	open := &Server{}
	assert.NoError(t, open.handshake(cfg, req))
}
