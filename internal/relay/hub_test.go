package relay

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

func detached(topic string, queue int) *Session {
	return newSession(nil, KindChat, "u1", topic, Options{QueueSize: queue})
}

func drain(s *Session) []Event {
	var out []Event
	for {
		select {
		case ev := <-s.queue:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEnqueueDropsOldest(t *testing.T) {
	s := detached("chat:1", 2)
	s.enqueue(Event{Status: StatusCreated, ID: "a"})
	s.enqueue(Event{Status: StatusCreated, ID: "b"})
	s.enqueue(Event{Status: StatusCreated, ID: "c"})

	assert.Equal(t, []Event{{StatusCreated, "b"}, {StatusCreated, "c"}}, drain(s))
}

func TestHubSkipsOrigin(t *testing.T) {
	h := NewHub()
	a, b := detached("chat:1", 8), detached("chat:1", 8)
	other := detached("chat:2", 8)
	h.attach(a)
	h.attach(b)
	h.attach(other)
	assert.Equal(t, 2, h.Sessions("chat:1"))

	require.NoError(t, h.Forward(context.Background(), "chat:1", Event{StatusDeleted, "m1"}, a.ID))
	require.NoError(t, h.Publish(context.Background(), "chat:1", Event{StatusCreated, "m2"}))

	assert.Equal(t, []Event{{StatusCreated, "m2"}}, drain(a))
	assert.Equal(t, []Event{{StatusDeleted, "m1"}, {StatusCreated, "m2"}}, drain(b))
	assert.Empty(t, drain(other))

	h.detach(a)
	h.detach(b)
	assert.Zero(t, h.Sessions("chat:1"))
}

func TestDecodeEcho(t *testing.T) {
	ev, err := decodeEcho([]byte(`{"status":"DELETED","id":"6f1c2f64-3c1a-4a47-9a55-1d1f3f9b8b11"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusDeleted, ev.Status)

	_, err = decodeEcho([]byte(`not json`))
	assert.Equal(t, errs.CodeInvalidEntry, errs.CodeOf(err))

	_, err = decodeEcho([]byte(`{"status":"EXPLODED","id":"nope"}`))
	var appErr *errs.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "status")
	assert.Equal(t, "Invalid uuid", appErr.Fields["id"])

	_, err = decodeEcho([]byte(`{}`))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "This field is required", appErr.Fields["status"])
	assert.Equal(t, "This field is required", appErr.Fields["id"])
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/notifications/?token=q", nil)
	assert.Equal(t, "q", BearerToken(r))

	r.Header.Set("Authorization", "Bearer  abc ")
	assert.Equal(t, "abc", BearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(r))
}

func TestTopics(t *testing.T) {
	id, ok := IsChatTopic(ChatTopic("c1"))
	assert.True(t, ok)
	assert.Equal(t, "c1", id)
	_, ok = IsChatTopic(NotificationTopic("u1"))
	assert.False(t, ok)
}
