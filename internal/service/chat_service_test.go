package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

func TestSendMessageValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")

	_, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Text: sp("hi")})
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	_, err = e.chats.SendMessage(ctx, ann.ID, SendMessageInput{ChatID: sp("x"), Username: sp("bob"), Text: sp("hi")})
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	_, err = e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("ann"), Text: sp("hi")})
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	_, err = e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("ghost"), Text: sp("hi")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.chats.SendMessage(ctx, ann.ID, SendMessageInput{ChatID: sp("00000000-0000-0000-0000-000000000000"), Text: sp("hi")})
	assert.ErrorIs(t, err, errs.NotFound("User has no chat with that ID"))
}

func TestDirectChatIsUniquePerPair(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")

	msg, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("bob"), Text: sp("hi bob")})
	require.NoError(t, err)
	assert.Equal(t, "ann", msg.Sender.Username)
	assert.Equal(t, []relay.Event{{Status: relay.StatusCreated, ID: msg.ID}}, e.pub.On(relay.ChatTopic(msg.ChatID)))

	_, err = e.chats.SendMessage(ctx, bob.ID, SendMessageInput{Username: sp("ann"), Text: sp("hi ann")})
	assert.ErrorIs(t, err, errs.ErrConflict)

	reply, err := e.chats.SendMessage(ctx, bob.ID, SendMessageInput{ChatID: &msg.ChatID, Text: sp("hi ann")})
	require.NoError(t, err)
	assert.Equal(t, msg.ChatID, reply.ChatID)

	var cnt int64
	require.NoError(t, e.db.Model(&model.Chat{}).Count(&cnt).Error)
	assert.EqualValues(t, 1, cnt)
}

func TestMessageWithFileReturnsUploadData(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	testutil.SeedUser(t, e.db, "bob")

	msg, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("bob"), FileType: sp("image/png")})
	require.NoError(t, err)
	require.NotNil(t, msg.FileUploadData)
	assert.Equal(t, "messages", msg.FileUploadData.Folder)
	assert.NotEmpty(t, msg.FileUploadData.Signature)
	assert.Nil(t, msg.Text)
}

func TestDeletingLastDirectMessageRemovesChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")

	first, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("bob"), Text: sp("one")})
	require.NoError(t, err)
	second, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{ChatID: &first.ChatID, Text: sp("two")})
	require.NoError(t, err)

	assert.ErrorIs(t, e.chats.DeleteMessage(ctx, bob.ID, first.ID), errs.ErrForbidden)

	e.pub.Reset()
	require.NoError(t, e.chats.DeleteMessage(ctx, ann.ID, first.ID))
	_, err = e.chats.GetChat(ctx, bob.ID, first.ChatID, 1)
	require.NoError(t, err)

	require.NoError(t, e.chats.DeleteMessage(ctx, ann.ID, second.ID))
	_, err = e.chats.GetChat(ctx, bob.ID, first.ChatID, 1)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.Equal(t, []relay.Event{
		{Status: relay.StatusDeleted, ID: first.ID},
		{Status: relay.StatusDeleted, ID: second.ID},
		{Status: relay.StatusDeleted, ID: first.ChatID},
	}, e.pub.On(relay.ChatTopic(first.ChatID)))
}

func TestUpdateMessageOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")

	msg, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("bob"), Text: sp("typo")})
	require.NoError(t, err)

	_, err = e.chats.UpdateMessage(ctx, bob.ID, msg.ID, MessageUpdate{Text: sp("hijack")})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = e.chats.UpdateMessage(ctx, ann.ID, "00000000-0000-0000-0000-000000000000", MessageUpdate{Text: sp("x")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = e.chats.UpdateMessage(ctx, ann.ID, msg.ID, MessageUpdate{Text: sp("")})
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	updated, err := e.chats.UpdateMessage(ctx, ann.ID, msg.ID, MessageUpdate{Text: sp("fixed")})
	require.NoError(t, err)
	assert.Equal(t, "fixed", *updated.Text)
	events := e.pub.On(relay.ChatTopic(msg.ChatID))
	assert.Equal(t, relay.Event{Status: relay.StatusUpdated, ID: msg.ID}, events[len(events)-1])
}

func TestGroupMembershipCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, e.db, "owner")
	users := testutil.SeedUsers(t, e.db, "m", model.MaxGroupMembers)
	names := func(from, to int) []string {
		out := make([]string, 0, to-from)
		for i := from; i < to; i++ {
			out = append(out, users[i].Username)
		}
		return out
	}

	_, err := e.chats.CreateGroup(ctx, owner.ID, GroupInput{Name: "all", Usernames: names(0, 100)})
	assert.ErrorIs(t, err, errs.InvalidInput("usernames_to_add", "99 users limit reached"))

	_, err = e.chats.CreateGroup(ctx, owner.ID, GroupInput{Name: "none", Usernames: []string{"ghost", "owner"}})
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	g, err := e.chats.CreateGroup(ctx, owner.ID, GroupInput{Name: "crew", Usernames: names(0, 99)})
	require.NoError(t, err)
	assert.Len(t, g.Users, 100)

	_, err = e.chats.UpdateGroup(ctx, owner.ID, g.ID, GroupPatch{UsernamesToAdd: names(99, 100)})
	assert.ErrorIs(t, err, errs.ErrInvalidEntry)

	// 替换一名成员，变更后人数仍在上限内
	g2, err := e.chats.UpdateGroup(ctx, owner.ID, g.ID, GroupPatch{UsernamesToAdd: names(99, 100), UsernamesToRemove: names(0, 1)})
	require.NoError(t, err)
	assert.Len(t, g2.Users, 100)

	_, err = e.chats.UpdateGroup(ctx, users[5].ID, g.ID, GroupPatch{Name: sp("mine")})
	assert.ErrorIs(t, err, errs.ErrNotFound)

	assert.Equal(t, relay.Event{Status: relay.StatusUpdated, ID: g.ID}, e.pub.On(relay.ChatTopic(g.ID))[0])
}

func TestListChatsOrderedByLatestMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	for i := 0; i < 3; i++ {
		testutil.SeedUser(t, e.db, fmt.Sprintf("peer%d", i))
	}

	var chatIDs []string
	for i := 0; i < 3; i++ {
		msg, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp(fmt.Sprintf("peer%d", i)), Text: sp("hey")})
		require.NoError(t, err)
		chatIDs = append(chatIDs, msg.ChatID)
	}
	_, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{ChatID: &chatIDs[0], Text: sp("bump")})
	require.NoError(t, err)

	page, err := e.chats.ListChats(ctx, ann.ID, 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, chatIDs[0], page.Items[0].ID)
	assert.Equal(t, "bump", *page.Items[0].LatestMessage.Text)
	assert.Equal(t, ChatsPerPage, page.PerPage)
}

func TestAuthorizeAndVerifyEcho(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, e.db, "ann")
	bob := testutil.SeedUser(t, e.db, "bob")
	eve := testutil.SeedUser(t, e.db, "eve")

	msg, err := e.chats.SendMessage(ctx, ann.ID, SendMessageInput{Username: sp("bob"), Text: sp("hi")})
	require.NoError(t, err)

	assert.NoError(t, e.chats.Authorize(ctx, msg.ChatID, bob.ID))
	assert.ErrorIs(t, e.chats.Authorize(ctx, msg.ChatID, eve.ID), errs.ErrForbidden)
	assert.ErrorIs(t, e.chats.Authorize(ctx, "00000000-0000-0000-0000-000000000000", ann.ID), errs.ErrNotFound)

	assert.NoError(t, e.chats.VerifyEcho(ctx, msg.ChatID, ann.ID, relay.Event{Status: relay.StatusCreated, ID: msg.ID}))
	assert.ErrorIs(t, e.chats.VerifyEcho(ctx, msg.ChatID, bob.ID, relay.Event{Status: relay.StatusCreated, ID: msg.ID}), errs.ErrInvalidEntry)
}

func TestDeleteGroup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := testutil.SeedUser(t, e.db, "owner")
	testutil.SeedUser(t, e.db, "m1")

	g, err := e.chats.CreateGroup(ctx, owner.ID, GroupInput{Name: "g", Usernames: []string{"m1"}, FileType: sp("image/jpeg")})
	require.NoError(t, err)
	require.NotNil(t, g.FileUploadData)
	assert.Equal(t, "groups", g.FileUploadData.Folder)

	require.NoError(t, e.chats.DeleteGroup(ctx, owner.ID, g.ID))
	assert.ErrorIs(t, e.chats.DeleteGroup(ctx, owner.ID, g.ID), errs.ErrNotFound)
	assert.Equal(t, []relay.Event{{Status: relay.StatusDeleted, ID: g.ID}}, e.pub.On(relay.ChatTopic(g.ID)))
}
