package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestDMKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, DMKey("a", "b"), DMKey("b", "a"))
	assert.Equal(t, "a:b", DMKey("b", "a"))
}

func TestParseTargetKind(t *testing.T) {
	k, ok := ParseTargetKind(" comment ")
	assert.True(t, ok)
	assert.Equal(t, TargetComment, k)
	assert.Equal(t, "Comment", k.Label())

	_, ok = ParseTargetKind("message")
	assert.False(t, ok)
}

func TestTargetRefOfEachKind(t *testing.T) {
	targets := []Target{
		PostTarget{Post: &Post{ID: "p1", Slug: "ann-p1", AuthorID: "u1"}},
		CommentTarget{Comment: &Comment{ID: "c1", Slug: "ann-c1", AuthorID: "u2"}},
		ReplyTarget{Reply: &Reply{ID: "r1", Slug: "ann-r1", AuthorID: "u3"}},
	}
	for _, tg := range targets {
		ref := RefOf(tg)
		assert.Equal(t, 1, ref.Count())
		assert.Equal(t, tg.Kind(), ref.Kind())
		assert.Equal(t, string(tg.Kind())+":"+tg.ID(), KeyOf(tg))
	}
	assert.Equal(t, TargetKind(""), TargetRef{PostID: strp("p"), ReplyID: strp("r")}.Kind())
	assert.Equal(t, TargetKind(""), TargetRef{}.Kind())
}

func TestNotificationValidate(t *testing.T) {
	cases := []struct {
		name string
		n    Notification
		want error
	}{
		{"reaction on post", Notification{NType: NotificationReaction, SenderID: strp("u"), TargetRef: TargetRef{PostID: strp("p")}}, nil},
		{"comment on comment", Notification{NType: NotificationComment, SenderID: strp("u"), TargetRef: TargetRef{CommentID: strp("c")}}, nil},
		{"reply on reply", Notification{NType: NotificationReply, SenderID: strp("u"), TargetRef: TargetRef{ReplyID: strp("r")}}, nil},
		{"admin", Notification{NType: NotificationAdmin, Text: strp("maintenance tonight")}, nil},
		{"admin with target", Notification{NType: NotificationAdmin, Text: strp("x"), TargetRef: TargetRef{PostID: strp("p")}}, ErrNotificationAdmin},
		{"admin with sender", Notification{NType: NotificationAdmin, Text: strp("x"), SenderID: strp("u")}, ErrNotificationAdmin},
		{"admin without text", Notification{NType: NotificationAdmin}, ErrNotificationAdmin},
		{"no target", Notification{NType: NotificationReaction, SenderID: strp("u")}, ErrNotificationTarget},
		{"two targets", Notification{NType: NotificationReaction, SenderID: strp("u"), TargetRef: TargetRef{PostID: strp("p"), CommentID: strp("c")}}, ErrNotificationTarget},
		{"no sender", Notification{NType: NotificationComment, TargetRef: TargetRef{CommentID: strp("c")}}, ErrNotificationSender},
		{"comment on post", Notification{NType: NotificationComment, SenderID: strp("u"), TargetRef: TargetRef{PostID: strp("p")}}, ErrNotificationKind},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.n.Validate())
		})
	}
}

func TestFriendBeforeCreate(t *testing.T) {
	f := &Friend{RequesterID: "b", RequesteeID: "a"}
	assert.NoError(t, f.BeforeCreate(nil))
	assert.Equal(t, "a:b", f.PairKey)
	assert.Equal(t, "a", f.Other("b"))

	assert.ErrorIs(t, (&Friend{RequesterID: "a", RequesteeID: "a"}).BeforeCreate(nil), ErrFriendSelf)
}

func TestReactionTypeValid(t *testing.T) {
	assert.True(t, ReactionAngry.Valid())
	assert.False(t, ReactionType("MEH").Valid())
}
