package model

import (
	"strings"
	"time"
)

// User 由账号服务维护，这里只读
type User struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)"`
	Username  string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	Email     string  `gorm:"type:varchar(255);uniqueIndex;not null"`
	FirstName string  `gorm:"type:varchar(50);not null"`
	LastName  string  `gorm:"type:varchar(50);not null"`
	AvatarID  *string `gorm:"type:varchar(36)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
