package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBrokerDeliversAcrossHubs(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	newBroker := func() (*Hub, *RedisBroker) {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		hub := NewHub()
		b := NewRedisBroker(rdb, "relay:test", hub)
		require.NoError(t, b.Run(ctx))
		return hub, b
	}
	hubA, brokerA := newBroker()
	hubB, _ := newBroker()

	local := detached("chat:1", 8)
	remote := detached("chat:1", 8)
	hubA.attach(local)
	hubB.attach(remote)

	require.NoError(t, brokerA.Forward(ctx, "chat:1", Event{StatusCreated, "m1"}, local.ID))
	require.NoError(t, brokerA.Publish(ctx, "chat:1", Event{StatusUpdated, "m1"}))

	var got []Event
	require.Eventually(t, func() bool {
		got = append(got, drain(remote)...)
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []Event{{StatusCreated, "m1"}, {StatusUpdated, "m1"}}, got)

	var mine []Event
	require.Eventually(t, func() bool {
		mine = append(mine, drain(local)...)
		return len(mine) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []Event{{StatusUpdated, "m1"}}, mine)
}
