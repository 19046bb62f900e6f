package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
)

// BroadcastRepository 管理员广播 outbox
type BroadcastRepository interface {
	Enqueue(ctx context.Context, job *model.BroadcastJob) error
	Claim(ctx context.Context, limit int) ([]*model.BroadcastJob, error)
	Finish(ctx context.Context, id string, fanout int64) error
	Release(ctx context.Context, id string) error
	DeleteByNotification(ctx context.Context, notificationID string) error
}

type broadcastRepository struct {
	db *gorm.DB
}

func NewBroadcastRepository(db *gorm.DB) BroadcastRepository { return &broadcastRepository{db: db} }

func (r *broadcastRepository) Enqueue(ctx context.Context, job *model.BroadcastJob) error {
	if job.Status == "" {
		job.Status = model.BroadcastPending
	}
	return r.db.WithContext(ctx).Create(job).Error
}

// Claim 将至多 limit 个 pending 任务置为 processing 并返回；PostgreSQL 下跳过被其他 worker 锁住的行
func (r *broadcastRepository) Claim(ctx context.Context, limit int) ([]*model.BroadcastJob, error) {
	var batch []*model.BroadcastJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("status = ?", model.BroadcastPending).Order("created_at").Limit(limit)
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.BroadcastJob{}).
			Where("id IN ? AND status = ?", ids, model.BroadcastPending).
			Update("status", model.BroadcastProcessing).Error
	})
	return batch, err
}

func (r *broadcastRepository) Finish(ctx context.Context, id string, fanout int64) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&model.BroadcastJob{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.BroadcastDone, "processed_at": now, "fanout_count": fanout}).Error
}

// Release 将 processing 任务放回 pending，下次 Claim 重试
func (r *broadcastRepository) Release(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.BroadcastJob{}).
		Where("id = ? AND status = ?", id, model.BroadcastProcessing).
		Update("status", model.BroadcastPending).Error
}

func (r *broadcastRepository) DeleteByNotification(ctx context.Context, notificationID string) error {
	return r.db.WithContext(ctx).Where("notification_id = ?", notificationID).Delete(&model.BroadcastJob{}).Error
}
