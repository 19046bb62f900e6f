package model

import "strings"

type TargetKind string

const (
	TargetPost    TargetKind = "POST"
	TargetComment TargetKind = "COMMENT"
	TargetReply   TargetKind = "REPLY"
)

// ParseTargetKind 解析路径中的目标类型（POST / COMMENT / REPLY）
func ParseTargetKind(s string) (TargetKind, bool) {
	switch k := TargetKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case TargetPost, TargetComment, TargetReply:
		return k, true
	}
	return "", false
}

// Label 用于提示文案（"Post does not exist"）
func (k TargetKind) Label() string {
	switch k {
	case TargetComment:
		return "Comment"
	case TargetReply:
		return "Reply"
	default:
		return "Post"
	}
}

// Target 表态或通知挂接的内容节点，实现仅限 PostTarget、CommentTarget、ReplyTarget
type Target interface {
	Kind() TargetKind
	ID() string
	Slug() string
	AuthorID() string
	ref() TargetRef
}

// TargetRef Target 的持久化形式，恰好一列非空
type TargetRef struct {
	PostID    *string `gorm:"type:varchar(36);index"`
	CommentID *string `gorm:"type:varchar(36);index"`
	ReplyID   *string `gorm:"type:varchar(36);index"`
}

// Count 返回非空目标列的数量
func (r TargetRef) Count() int {
	n := 0
	for _, p := range []*string{r.PostID, r.CommentID, r.ReplyID} {
		if p != nil {
			n++
		}
	}
	return n
}

// Kind 返回唯一非空列对应的类型；没有或多于一列时返回 ""
func (r TargetRef) Kind() TargetKind {
	if r.Count() != 1 {
		return ""
	}
	switch {
	case r.PostID != nil:
		return TargetPost
	case r.CommentID != nil:
		return TargetComment
	default:
		return TargetReply
	}
}

func RefOf(t Target) TargetRef { return t.ref() }

// KeyOf 返回 "KIND:id"，用于唯一约束和通知合并查询
func KeyOf(t Target) string { return string(t.Kind()) + ":" + t.ID() }

type PostTarget struct{ Post *Post }

func (t PostTarget) Kind() TargetKind { return TargetPost }
func (t PostTarget) ID() string       { return t.Post.ID }
func (t PostTarget) Slug() string     { return t.Post.Slug }
func (t PostTarget) AuthorID() string { return t.Post.AuthorID }
func (t PostTarget) ref() TargetRef   { id := t.Post.ID; return TargetRef{PostID: &id} }

type CommentTarget struct{ Comment *Comment }

func (t CommentTarget) Kind() TargetKind { return TargetComment }
func (t CommentTarget) ID() string       { return t.Comment.ID }
func (t CommentTarget) Slug() string     { return t.Comment.Slug }
func (t CommentTarget) AuthorID() string { return t.Comment.AuthorID }
func (t CommentTarget) ref() TargetRef   { id := t.Comment.ID; return TargetRef{CommentID: &id} }

type ReplyTarget struct{ Reply *Reply }

func (t ReplyTarget) Kind() TargetKind { return TargetReply }
func (t ReplyTarget) ID() string       { return t.Reply.ID }
func (t ReplyTarget) Slug() string     { return t.Reply.Slug }
func (t ReplyTarget) AuthorID() string { return t.Reply.AuthorID }
func (t ReplyTarget) ref() TargetRef   { id := t.Reply.ID; return TargetRef{ReplyID: &id} }
