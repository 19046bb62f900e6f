package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
)

// UserRepository 只读用户查询（账户写入不属于本服务）
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	ListByUsernames(ctx context.Context, usernames []string) ([]*model.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListIDs(ctx context.Context, offset, limit int) ([]string, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

// GetByID 用户不存在时返回 (nil, nil)
func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return first[model.User](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return first[model.User](r.db.WithContext(ctx).Where("username = ?", username))
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var res []*model.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

func (r *userRepository) ListByUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	var res []*model.User
	err := r.db.WithContext(ctx).Where("username IN ?", usernames).Find(&res).Error
	return res, err
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// ListIDs 按稳定顺序分页遍历用户 id
func (r *userRepository) ListIDs(ctx context.Context, offset, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.User{}).Order("id").Offset(offset).Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

// first 读取单行，未找到时返回 (nil, nil)
func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.Take(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
