package service

import (
	"testing"

	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/storage"
	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
)

type env struct {
	db            *gorm.DB
	pub           *testutil.Recorder
	directory     Directory
	notifications NotificationService
	chats         ChatService
	feed          FeedService
	friends       FriendService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	pub := &testutil.Recorder{}
	signer := storage.NewSigner("demo", "key", "secret", "https://api.cloudinary.com/v1_1/%s/image/upload")
	dir := NewDirectory(repository.NewUserRepository(db), signer, nil, 0)
	notifications := NewNotificationService(db, dir, pub)
	return &env{
		db:            db,
		pub:           pub,
		directory:     dir,
		notifications: notifications,
		chats:         NewChatService(db, dir, signer, pub),
		feed:          NewFeedService(db, dir, notifications, signer, pub),
		friends:       NewFriendService(repository.NewFriendRepository(db), dir),
	}
}

func sp(s string) *string { return &s }
