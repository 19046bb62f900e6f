package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

const receiverBatch = 500

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification, receiverIDs []string) error
	GetByID(ctx context.Context, id string) (*model.Notification, error)
	Lock(ctx context.Context, id string, exclusive bool) (*model.Notification, error)
	FindCollapsible(ctx context.Context, senderID string, ntype model.NotificationType, targetKey string) (*model.Notification, error)
	FindByTargets(ctx context.Context, keys []string) ([]*model.Notification, error)
	AddReceivers(ctx context.Context, id string, userIDs []string) error
	AddNewReceivers(ctx context.Context, id string, userIDs []string) ([]string, error)
	RemoveReceiver(ctx context.Context, id, userID string) error
	ReceiverIDs(ctx context.Context, id string) ([]string, error)
	IsReceiver(ctx context.Context, id, userID string) (bool, error)
	Delete(ctx context.Context, id string) error
	ListForUser(ctx context.Context, userID string, p pagination.Params) ([]*model.Notification, int64, error)
	ReadSet(ctx context.Context, userID string, ids []string) (map[string]bool, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
	MarkAllRead(ctx context.Context, userID string) error
	TargetSlugs(ctx context.Context, refs []model.TargetRef) (map[string]string, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create 校验后写入通知及接收者
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification, receiverIDs []string) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return err
	}
	return r.AddReceivers(ctx, n.ID, receiverIDs)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	return first[model.Notification](r.db.WithContext(ctx).Where("id = ?", id))
}

// Lock 读取通知；PostgreSQL 下在事务内加行锁：扇出批次用共享锁，删除用排他锁
func (r *notificationRepository) Lock(ctx context.Context, id string, exclusive bool) (*model.Notification, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		strength := "SHARE"
		if exclusive {
			strength = "UPDATE"
		}
		q = q.Clauses(clause.Locking{Strength: strength})
	}
	return first[model.Notification](q)
}

func (r *notificationRepository) FindCollapsible(ctx context.Context, senderID string, ntype model.NotificationType, targetKey string) (*model.Notification, error) {
	return first[model.Notification](r.db.WithContext(ctx).
		Where("sender_id = ? AND ntype = ? AND target_key = ?", senderID, ntype, targetKey).
		Order("created_at"))
}

func (r *notificationRepository) FindByTargets(ctx context.Context, keys []string) ([]*model.Notification, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var res []*model.Notification
	err := r.db.WithContext(ctx).Where("target_key IN ?", keys).Find(&res).Error
	return res, err
}

func (r *notificationRepository) AddReceivers(ctx context.Context, id string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]model.NotificationReceiver, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, model.NotificationReceiver{NotificationID: id, UserID: uid})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, receiverBatch).Error
}

// AddNewReceivers 只挂接尚未接收的用户，并返回这些用户
func (r *notificationRepository) AddNewReceivers(ctx context.Context, id string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var existing []string
	if err := r.db.WithContext(ctx).Model(&model.NotificationReceiver{}).
		Where("notification_id = ? AND user_id IN ?", id, userIDs).
		Pluck("user_id", &existing).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, uid := range existing {
		seen[uid] = true
	}
	fresh := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		if !seen[uid] {
			seen[uid] = true
			fresh = append(fresh, uid)
		}
	}
	if err := r.AddReceivers(ctx, id, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (r *notificationRepository) RemoveReceiver(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).
		Where("notification_id = ? AND user_id = ?", id, userID).
		Delete(&model.NotificationReceiver{}).Error
}

func (r *notificationRepository) ReceiverIDs(ctx context.Context, id string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.NotificationReceiver{}).
		Where("notification_id = ?", id).Order("user_id").Pluck("user_id", &ids).Error
	return ids, err
}

func (r *notificationRepository) IsReceiver(ctx context.Context, id, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.NotificationReceiver{}).
		Where("notification_id = ? AND user_id = ?", id, userID).Count(&cnt).Error
	return cnt > 0, err
}

// Delete 删除通知及其接收、已读记录
func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("notification_id = ?", id).Delete(&model.NotificationRead{}).Error; err != nil {
		return err
	}
	if err := db.Where("notification_id = ?", id).Delete(&model.NotificationReceiver{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Notification{}).Error
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string, p pagination.Params) ([]*model.Notification, int64, error) {
	q := r.db.Model(&model.Notification{}).
		Where("id IN (SELECT notification_id FROM notification_receivers WHERE user_id = ?)", userID).
		Order("created_at DESC, id DESC")
	return pagination.Query[*model.Notification](ctx, q, p)
}

func (r *notificationRepository) ReadSet(ctx context.Context, userID string, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var read []string
	err := r.db.WithContext(ctx).Model(&model.NotificationRead{}).
		Where("user_id = ? AND notification_id IN ?", userID, ids).
		Pluck("notification_id", &read).Error
	if err != nil {
		return nil, err
	}
	for _, id := range read {
		out[id] = true
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]model.NotificationRead, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.NotificationRead{NotificationID: id, UserID: userID})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, receiverBatch).Error
}

// MarkAllRead 将收到的未读通知全部标记为已读
func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.NotificationReceiver{}).
		Where("user_id = ?", userID).
		Where("notification_id NOT IN (SELECT notification_id FROM notification_reads WHERE user_id = ?)", userID).
		Pluck("notification_id", &ids).Error
	if err != nil {
		return err
	}
	return r.MarkRead(ctx, userID, ids)
}

// TargetSlugs 将 refs 的 "KIND:id" 映射到节点 slug
func (r *notificationRepository) TargetSlugs(ctx context.Context, refs []model.TargetRef) (map[string]string, error) {
	byKind := map[model.TargetKind][]string{}
	for _, ref := range refs {
		switch ref.Kind() {
		case model.TargetPost:
			byKind[model.TargetPost] = append(byKind[model.TargetPost], *ref.PostID)
		case model.TargetComment:
			byKind[model.TargetComment] = append(byKind[model.TargetComment], *ref.CommentID)
		case model.TargetReply:
			byKind[model.TargetReply] = append(byKind[model.TargetReply], *ref.ReplyID)
		}
	}
	tables := map[model.TargetKind]any{
		model.TargetPost:    &model.Post{},
		model.TargetComment: &model.Comment{},
		model.TargetReply:   &model.Reply{},
	}
	out := make(map[string]string, len(refs))
	for kind, ids := range byKind {
		var rows []struct {
			ID   string
			Slug string
		}
		if err := r.db.WithContext(ctx).Model(tables[kind]).Select("id, slug").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[string(kind)+":"+row.ID] = row.Slug
		}
	}
	return out, nil
}
