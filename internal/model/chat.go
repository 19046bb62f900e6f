package model

import "time"

type ChatType string

const (
	ChatTypeDM    ChatType = "DM"
	ChatTypeGroup ChatType = "GROUP"
)

// MaxGroupMembers 群聊人数上限（含群主）
const MaxGroupMembers = 100

// Chat 会话。DM 通过 dm_key 唯一索引保证同一对用户只有一个私聊。
type Chat struct {
	ID          string   `gorm:"primaryKey;type:varchar(36)"`
	CType       ChatType `gorm:"column:ctype;type:varchar(10);not null;default:'DM'"`
	OwnerID     string   `gorm:"type:varchar(36);index:idx_chat_owner;not null"`
	Name        *string  `gorm:"type:varchar(100)"`
	Description *string  `gorm:"type:varchar(1000)"`
	ImageID     *string  `gorm:"type:varchar(36)"`
	// DMKey = min(a,b):max(a,b)；群聊为 NULL
	DMKey     *string `gorm:"column:dm_key;type:varchar(80);uniqueIndex:ux_chat_dm_key"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Chat) TableName() string { return "chats" }

func (c *Chat) IsGroup() bool { return c.CType == ChatTypeGroup }

// ChatMember 群主以外的成员，群主不在此表
type ChatMember struct {
	ChatID    string `gorm:"primaryKey;type:varchar(36)"`
	UserID    string `gorm:"primaryKey;type:varchar(36);index:idx_chat_member_user"`
	CreatedAt time.Time
}

func (ChatMember) TableName() string { return "chat_members" }

type Message struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ChatID    string    `gorm:"type:varchar(36);index:idx_message_chat_created;not null"`
	SenderID  string    `gorm:"type:varchar(36);index;not null"`
	Text      *string   `gorm:"type:text"`
	FileID    *string   `gorm:"type:varchar(36)"`
	CreatedAt time.Time `gorm:"index:idx_message_chat_created"`
	UpdatedAt time.Time
}

func (Message) TableName() string { return "messages" }

// DMKey 生成与顺序无关的用户对 key
func DMKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
