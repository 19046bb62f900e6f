package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

func TestFriendRequestFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")

	assert.ErrorIs(t, e.friends.SendRequest(ctx, ann.ID, "ann"), errs.ErrInvalidEntry)
	assert.ErrorIs(t, e.friends.SendRequest(ctx, ann.ID, "ghost"), errs.ErrNotFound)

	require.NoError(t, e.friends.SendRequest(ctx, ann.ID, "bob"))
	assert.ErrorIs(t, e.friends.SendRequest(ctx, bob.ID, "ann"), errs.ErrConflict)

	requests, err := e.friends.ListRequests(ctx, bob.ID, 1)
	require.NoError(t, err)
	require.Len(t, requests.Items, 1)
	assert.Equal(t, "ann", requests.Items[0].Username)

	assert.ErrorIs(t, e.friends.Respond(ctx, ann.ID, "bob", true), errs.ErrNotFound)
	require.NoError(t, e.friends.Respond(ctx, bob.ID, "ann", true))

	friends, err := e.friends.ListFriends(ctx, ann.ID, 1)
	require.NoError(t, err)
	require.Len(t, friends.Items, 1)
	assert.Equal(t, "bob", friends.Items[0].Username)
	assert.Equal(t, FriendsPerPage, friends.PerPage)

	require.NoError(t, e.friends.Remove(ctx, bob.ID, "ann"))
	assert.ErrorIs(t, e.friends.Remove(ctx, bob.ID, "ann"), errs.ErrNotFound)
}

func TestDeclineFriendRequest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")

	require.NoError(t, e.friends.SendRequest(ctx, ann.ID, "bob"))
	require.NoError(t, e.friends.Respond(ctx, bob.ID, "ann", false))

	friends, err := e.friends.ListFriends(ctx, ann.ID, 1)
	require.NoError(t, err)
	assert.Empty(t, friends.Items)
	require.NoError(t, e.friends.SendRequest(ctx, bob.ID, "ann"))
}
