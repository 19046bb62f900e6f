package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetBySlug(ctx context.Context, slug string) (*model.Post, error)
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, p pagination.Params) ([]*model.Post, int64, error)
	Update(ctx context.Context, post *model.Post) error
	Delete(ctx context.Context, id string) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*model.Post, error) {
	return first[model.Post](r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return first[model.Post](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *postRepository) List(ctx context.Context, p pagination.Params) ([]*model.Post, int64, error) {
	q := r.db.Model(&model.Post{}).Order("created_at DESC, id DESC")
	return pagination.Query[*model.Post](ctx, q, p)
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Model(post).Select("text", "image_id", "updated_at").Updates(post).Error
}

// Delete 删除帖子及其评论、回复，节点上的表态和通知由调用方清理
func (r *postRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("comment_id IN (SELECT id FROM comments WHERE post_id = ?)", id).Delete(&model.Reply{}).Error; err != nil {
		return err
	}
	if err := db.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Post{}).Error
}

// CommentRepository 评论与回复
type CommentRepository interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, slug string) (*model.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string, p pagination.Params) ([]*model.Comment, int64, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, id string) error
	CommentIDsOfPost(ctx context.Context, postID string) ([]string, error)
	CommentCounts(ctx context.Context, postIDs []string) (map[string]int64, error)
	ReplyCounts(ctx context.Context, commentIDs []string) (map[string]int64, error)

	CreateReply(ctx context.Context, r *model.Reply) error
	GetReply(ctx context.Context, slug string) (*model.Reply, error)
	GetReplyByID(ctx context.Context, id string) (*model.Reply, error)
	ListReplies(ctx context.Context, commentID string, p pagination.Params) ([]*model.Reply, int64, error)
	UpdateReply(ctx context.Context, r *model.Reply) error
	DeleteReply(ctx context.Context, id string) error
	ReplyIDsOfComments(ctx context.Context, commentIDs []string) ([]string, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

func (r *commentRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *commentRepository) GetComment(ctx context.Context, slug string) (*model.Comment, error) {
	return first[model.Comment](r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *commentRepository) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	return first[model.Comment](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *commentRepository) ListComments(ctx context.Context, postID string, p pagination.Params) ([]*model.Comment, int64, error) {
	q := r.db.Model(&model.Comment{}).Where("post_id = ?", postID).Order("created_at DESC, id DESC")
	return pagination.Query[*model.Comment](ctx, q, p)
}

func (r *commentRepository) UpdateComment(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Model(c).Select("text", "updated_at").Updates(c).Error
}

// DeleteComment 删除评论及其回复
func (r *commentRepository) DeleteComment(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("comment_id = ?", id).Delete(&model.Reply{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Comment{}).Error
}

func (r *commentRepository) CommentIDsOfPost(ctx context.Context, postID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Comment{}).Where("post_id = ?", postID).Pluck("id", &ids).Error
	return ids, err
}

func (r *commentRepository) CommentCounts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	return countBy(ctx, r.db.Model(&model.Comment{}), "post_id", postIDs)
}

func (r *commentRepository) ReplyCounts(ctx context.Context, commentIDs []string) (map[string]int64, error) {
	return countBy(ctx, r.db.Model(&model.Reply{}), "comment_id", commentIDs)
}

// countBy 按 col 分组统计 q 的行数
func countBy(ctx context.Context, q *gorm.DB, col string, values []string) (map[string]int64, error) {
	out := make(map[string]int64, len(values))
	if len(values) == 0 {
		return out, nil
	}
	var rows []struct {
		K string
		N int64
	}
	err := q.WithContext(ctx).
		Select(col+" AS k, COUNT(*) AS n").
		Where(col+" IN ?", values).
		Group(col).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.K] = row.N
	}
	return out, nil
}

func (r *commentRepository) CreateReply(ctx context.Context, rep *model.Reply) error {
	return r.db.WithContext(ctx).Create(rep).Error
}

func (r *commentRepository) GetReply(ctx context.Context, slug string) (*model.Reply, error) {
	return first[model.Reply](r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *commentRepository) GetReplyByID(ctx context.Context, id string) (*model.Reply, error) {
	return first[model.Reply](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *commentRepository) ListReplies(ctx context.Context, commentID string, p pagination.Params) ([]*model.Reply, int64, error) {
	q := r.db.Model(&model.Reply{}).Where("comment_id = ?", commentID).Order("created_at DESC, id DESC")
	return pagination.Query[*model.Reply](ctx, q, p)
}

func (r *commentRepository) UpdateReply(ctx context.Context, rep *model.Reply) error {
	return r.db.WithContext(ctx).Model(rep).Select("text", "updated_at").Updates(rep).Error
}

func (r *commentRepository) DeleteReply(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reply{}).Error
}

func (r *commentRepository) ReplyIDsOfComments(ctx context.Context, commentIDs []string) ([]string, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Reply{}).Where("comment_id IN ?", commentIDs).Pluck("id", &ids).Error
	return ids, err
}
