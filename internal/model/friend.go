package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type FriendStatus string

const (
	FriendPending  FriendStatus = "PENDING"
	FriendAccepted FriendStatus = "ACCEPTED"
)

var ErrFriendSelf = errors.New("friend: requester and requestee must differ")

// Friend 好友关系；pair_key 保证一对用户（无论方向）只有一行
type Friend struct {
	ID          string       `gorm:"primaryKey;type:varchar(36)"`
	RequesterID string       `gorm:"type:varchar(36);index:idx_friend_requester;not null"`
	RequesteeID string       `gorm:"type:varchar(36);index:idx_friend_requestee;not null"`
	Status      FriendStatus `gorm:"type:varchar(10);not null;default:'PENDING';index"`
	PairKey     string       `gorm:"type:varchar(80);uniqueIndex;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Friend) TableName() string { return "friends" }

// Other 返回这对关系中 userID 的另一方
func (f *Friend) Other(userID string) string {
	if f.RequesterID == userID {
		return f.RequesteeID
	}
	return f.RequesterID
}

func (f *Friend) BeforeCreate(_ *gorm.DB) error {
	if f.RequesterID == f.RequesteeID {
		return ErrFriendSelf
	}
	f.PairKey = DMKey(f.RequesterID, f.RequesteeID)
	return nil
}
