package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

type ReactionRepository interface {
	Upsert(ctx context.Context, re *model.Reaction) (created bool, err error)
	GetByID(ctx context.Context, id string) (*model.Reaction, error)
	Delete(ctx context.Context, id string) error
	DeleteByTargets(ctx context.Context, keys []string) error
	ListByTarget(ctx context.Context, targetKey string, rtype model.ReactionType, p pagination.Params) ([]*model.Reaction, int64, error)
	CountByTargets(ctx context.Context, keys []string) (map[string]int64, error)
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository { return &reactionRepository{db: db} }

// Upsert 插入 re；(user_id, target_key) 已存在时更新 rtype 并把已有行读回 re。
// 需在事务内调用，保证插入与更新一起提交
func (r *reactionRepository) Upsert(ctx context.Context, re *model.Reaction) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "target_key"}},
		DoNothing: true,
	}).Create(re)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	rtype := re.RType
	var existing model.Reaction
	if err := db.Where("user_id = ? AND target_key = ?", re.UserID, re.TargetKey).Take(&existing).Error; err != nil {
		return false, err
	}
	if existing.RType != rtype {
		existing.RType = rtype
		existing.UpdatedAt = time.Now().UTC()
		if err := db.Model(&existing).Select("rtype", "updated_at").Updates(&existing).Error; err != nil {
			return false, err
		}
	}
	*re = existing
	return false, nil
}

func (r *reactionRepository) GetByID(ctx context.Context, id string) (*model.Reaction, error) {
	return first[model.Reaction](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *reactionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reaction{}).Error
}

func (r *reactionRepository) DeleteByTargets(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("target_key IN ?", keys).Delete(&model.Reaction{}).Error
}

// ListByTarget 按时间倒序分页，rtype 为空时返回全部
func (r *reactionRepository) ListByTarget(ctx context.Context, targetKey string, rtype model.ReactionType, p pagination.Params) ([]*model.Reaction, int64, error) {
	q := r.db.Model(&model.Reaction{}).Where("target_key = ?", targetKey)
	if rtype != "" {
		q = q.Where("rtype = ?", rtype)
	}
	q = q.Order("created_at DESC, id DESC")
	return pagination.Query[*model.Reaction](ctx, q, p)
}

func (r *reactionRepository) CountByTargets(ctx context.Context, keys []string) (map[string]int64, error) {
	return countBy(ctx, r.db.Model(&model.Reaction{}), "target_key", keys)
}
