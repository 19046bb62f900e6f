package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

type FriendRepository interface {
	Create(ctx context.Context, requesterID, requesteeID string) (*model.Friend, error)
	GetPair(ctx context.Context, a, b string) (*model.Friend, error)
	GetPending(ctx context.Context, requesterID, requesteeID string) (*model.Friend, error)
	Accept(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ListAccepted(ctx context.Context, userID string, p pagination.Params) ([]*model.Friend, int64, error)
	ListPendingFor(ctx context.Context, userID string, p pagination.Params) ([]*model.Friend, int64, error)
}

type friendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) FriendRepository { return &friendRepository{db: db} }

// Create 插入 PENDING 请求；同一无序用户对再次插入会触发 pair_key 唯一索引（gorm.ErrDuplicatedKey）
func (r *friendRepository) Create(ctx context.Context, requesterID, requesteeID string) (*model.Friend, error) {
	f := &model.Friend{ID: uuid.New().String(), RequesterID: requesterID, RequesteeID: requesteeID, Status: model.FriendPending}
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func (r *friendRepository) GetPair(ctx context.Context, a, b string) (*model.Friend, error) {
	return first[model.Friend](r.db.WithContext(ctx).Where("pair_key = ?", model.DMKey(a, b)))
}

func (r *friendRepository) GetPending(ctx context.Context, requesterID, requesteeID string) (*model.Friend, error) {
	return first[model.Friend](r.db.WithContext(ctx).
		Where("requester_id = ? AND requestee_id = ? AND status = ?", requesterID, requesteeID, model.FriendPending))
}

func (r *friendRepository) Accept(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Friend{}).Where("id = ?", id).Update("status", model.FriendAccepted).Error
}

func (r *friendRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Friend{}).Error
}

func (r *friendRepository) ListAccepted(ctx context.Context, userID string, p pagination.Params) ([]*model.Friend, int64, error) {
	q := r.db.Model(&model.Friend{}).
		Where("status = ? AND (requester_id = ? OR requestee_id = ?)", model.FriendAccepted, userID, userID).
		Order("updated_at DESC, id")
	return pagination.Query[*model.Friend](ctx, q, p)
}

func (r *friendRepository) ListPendingFor(ctx context.Context, userID string, p pagination.Params) ([]*model.Friend, int64, error) {
	q := r.db.Model(&model.Friend{}).
		Where("status = ? AND requestee_id = ?", model.FriendPending, userID).
		Order("created_at DESC, id")
	return pagination.Query[*model.Friend](ctx, q, p)
}
