package model

import "time"

// Post 内容主体
type Post struct {
	ID        string  `gorm:"primaryKey;type:varchar(36)"`
	Slug      string  `gorm:"type:varchar(200);uniqueIndex;not null"`
	AuthorID  string  `gorm:"type:varchar(36);index:idx_post_author;not null"`
	Text      string  `gorm:"type:text;not null"`
	ImageID   *string `gorm:"type:varchar(36)"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Post) TableName() string { return "posts" }

type Comment struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Slug      string `gorm:"type:varchar(200);uniqueIndex;not null"`
	AuthorID  string `gorm:"type:varchar(36);index;not null"`
	PostID    string `gorm:"type:varchar(36);index:idx_comment_post;not null"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Comment) TableName() string { return "comments" }

type Reply struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Slug      string `gorm:"type:varchar(200);uniqueIndex;not null"`
	AuthorID  string `gorm:"type:varchar(36);index;not null"`
	CommentID string `gorm:"type:varchar(36);index:idx_reply_comment;not null"`
	Text      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Reply) TableName() string { return "replies" }

type ReactionType string

const (
	ReactionLike  ReactionType = "LIKE"
	ReactionLove  ReactionType = "LOVE"
	ReactionHaha  ReactionType = "HAHA"
	ReactionWow   ReactionType = "WOW"
	ReactionSad   ReactionType = "SAD"
	ReactionAngry ReactionType = "ANGRY"
)

var ReactionTypes = []ReactionType{ReactionLike, ReactionLove, ReactionHaha, ReactionWow, ReactionSad, ReactionAngry}

func (r ReactionType) Valid() bool {
	for _, t := range ReactionTypes {
		if t == r {
			return true
		}
	}
	return false
}

// Reaction 每个 (user, target) 只有一行，重复提交只更新 rtype
type Reaction struct {
	ID        string       `gorm:"primaryKey;type:varchar(36)"`
	UserID    string       `gorm:"type:varchar(36);not null;uniqueIndex:ux_reaction_user_target"`
	RType     ReactionType `gorm:"column:rtype;type:varchar(10);not null;default:'LIKE'"`
	TargetRef `gorm:"embedded"`
	TargetKey string `gorm:"type:varchar(50);not null;uniqueIndex:ux_reaction_user_target;index:idx_reaction_target"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Reaction) TableName() string { return "reactions" }
