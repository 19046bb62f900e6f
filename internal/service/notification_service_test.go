package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

func TestMarkRead(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")
	post, err := e.feed.CreatePost(ctx, ann.ID, PostInput{Text: sp("p")})
	require.NoError(t, err)
	_, err = e.feed.CreateComment(ctx, bob.ID, post.Slug, "one")
	require.NoError(t, err)
	_, err = e.feed.CreateComment(ctx, bob.ID, post.Slug, "two")
	require.NoError(t, err)

	assert.ErrorIs(t, e.notifications.MarkRead(ctx, ann.ID, nil, false), errs.ErrInvalidEntry)

	list, err := e.notifications.List(ctx, ann.ID, 1)
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "bob Test commented on your post", list.Items[0].Message)
	id := list.Items[0].ID

	assert.ErrorIs(t, e.notifications.MarkRead(ctx, bob.ID, &id, false), errs.NotFound("User has no notification with that ID"))

	require.NoError(t, e.notifications.MarkRead(ctx, ann.ID, &id, false))
	list, err = e.notifications.List(ctx, ann.ID, 1)
	require.NoError(t, err)
	read := map[string]bool{}
	for _, n := range list.Items {
		read[n.ID] = n.IsRead
	}
	assert.True(t, read[id])
	assert.Equal(t, 1, countTrue(read))

	require.NoError(t, e.notifications.MarkRead(ctx, ann.ID, nil, true))
	list, err = e.notifications.List(ctx, ann.ID, 1)
	require.NoError(t, err)
	for _, n := range list.Items {
		assert.True(t, n.IsRead)
	}
}

func countTrue(m map[string]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

func TestBroadcastFansOutToEveryUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := testutil.SeedUsers(t, e.db, "u", 5)

	_, err := e.notifications.Broadcast(ctx, "")
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	n, err := e.notifications.Broadcast(ctx, "Scheduled maintenance at 02:00")
	require.NoError(t, err)
	assert.Equal(t, model.NotificationAdmin, n.NType)

	b := NewBroadcaster(e.db, e.pub, 1, 2, time.Hour)
	done, err := b.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	done, err = b.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	for _, u := range users {
		assert.Equal(t, []relay.Event{{Status: relay.StatusCreated, ID: n.ID}}, e.pub.On(relay.NotificationTopic(u.ID)))
		list, err := e.notifications.List(ctx, u.ID, 1)
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		assert.Equal(t, "Scheduled maintenance at 02:00", list.Items[0].Message)
		assert.Nil(t, list.Items[0].Sender)
	}

	var job model.BroadcastJob
	require.NoError(t, e.db.First(&job, "notification_id = ?", n.ID).Error)
	assert.Equal(t, model.BroadcastDone, job.Status)
	assert.EqualValues(t, 5, job.FanoutCount)

	e.pub.Reset()
	require.NoError(t, e.notifications.DeleteBroadcast(ctx, n.ID))
	assert.Len(t, e.pub.Events(), 5)
	assert.ErrorIs(t, e.notifications.DeleteBroadcast(ctx, n.ID), errs.ErrNotFound)
}

func TestBroadcasterStartStops(t *testing.T) {
	e := newEnv(t)
	testutil.SeedUsers(t, e.db, "u", 2)
	n, err := e.notifications.Broadcast(context.Background(), "hello")
	require.NoError(t, err)

	stop := NewBroadcaster(e.db, e.pub, 1, 10, 10*time.Millisecond).Start()
	assert.Eventually(t, func() bool {
		return len(e.pub.Events()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.Equal(t, n.ID, e.pub.Events()[0].Event.ID)
}

func TestEventsFlushInOrder(t *testing.T) {
	pub := &testutil.Recorder{}
	var ev Events
	ev.Add("chat:1", relay.StatusCreated, "a")
	ev.Add("chat:1", relay.StatusDeleted, "a")
	assert.Equal(t, 2, ev.Len())

	ev.Flush(context.Background(), pub)
	assert.Equal(t, []relay.Event{{Status: relay.StatusCreated, ID: "a"}, {Status: relay.StatusDeleted, ID: "a"}}, pub.On("chat:1"))
	assert.Zero(t, ev.Len())
}

func TestBroadcasterRetriesFailedFanout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	users := testutil.SeedUsers(t, e.db, "u", 3)
	n, err := e.notifications.Broadcast(ctx, "retry me")
	require.NoError(t, err)

	require.NoError(t, e.db.Migrator().DropTable(&model.NotificationReceiver{}))
	b := NewBroadcaster(e.db, e.pub, 1, 2, time.Hour)
	done, err := b.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)

	var job model.BroadcastJob
	require.NoError(t, e.db.Where("notification_id = ?", n.ID).First(&job).Error)
	assert.Equal(t, model.BroadcastPending, job.Status)
	assert.Empty(t, e.pub.Events())

	require.NoError(t, e.db.AutoMigrate(&model.NotificationReceiver{}))
	done, err = b.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	for _, u := range users {
		assert.Equal(t, []relay.Event{{Status: relay.StatusCreated, ID: n.ID}}, e.pub.On(relay.NotificationTopic(u.ID)))
		list, err := e.notifications.List(ctx, u.ID, 1)
		require.NoError(t, err)
		assert.Len(t, list.Items, 1)
	}
	require.NoError(t, e.db.Where("notification_id = ?", n.ID).First(&job).Error)
	assert.Equal(t, model.BroadcastDone, job.Status)
	assert.EqualValues(t, 3, job.FanoutCount)
}

func TestBroadcasterSkipsDeletedNotification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	testutil.SeedUsers(t, e.db, "u", 2)
	n, err := e.notifications.Broadcast(ctx, "gone")
	require.NoError(t, err)

	// 任务入队后通知被删除
	require.NoError(t, e.db.Where("id = ?", n.ID).Delete(&model.Notification{}).Error)

	done, err := NewBroadcaster(e.db, e.pub, 1, 2, time.Hour).ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Empty(t, e.pub.Events())

	var receivers int64
	require.NoError(t, e.db.Model(&model.NotificationReceiver{}).Where("notification_id = ?", n.ID).Count(&receivers).Error)
	assert.Zero(t, receivers)

	var job model.BroadcastJob
	require.NoError(t, e.db.Where("notification_id = ?", n.ID).First(&job).Error)
	assert.Equal(t, model.BroadcastDone, job.Status)
}
