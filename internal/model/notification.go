package model

import (
	"errors"
	"time"
)

type NotificationType string

const (
	NotificationReaction NotificationType = "REACTION"
	NotificationComment  NotificationType = "COMMENT"
	NotificationReply    NotificationType = "REPLY"
	NotificationAdmin    NotificationType = "ADMIN"
)

var (
	ErrNotificationTarget = errors.New("notification: exactly one of post, comment or reply must be set unless ntype is ADMIN")
	ErrNotificationAdmin  = errors.New("notification: ADMIN requires no sender, no target and a text")
	ErrNotificationSender = errors.New("notification: non-ADMIN requires a sender and no text")
	ErrNotificationKind   = errors.New("notification: target kind does not match ntype")
)

type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)"`
	SenderID  *string          `gorm:"type:varchar(36);index:idx_notification_collapse"`
	NType     NotificationType `gorm:"column:ntype;type:varchar(10);not null;index:idx_notification_collapse"`
	TargetRef `gorm:"embedded"`
	TargetKey *string `gorm:"type:varchar(50);index:idx_notification_collapse"`
	Text      *string `gorm:"type:varchar(1000)"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (Notification) TableName() string { return "notifications" }

// Validate 校验行级约束，写入方在持久化该行的事务内调用
func (n *Notification) Validate() error {
	if n.NType == NotificationAdmin {
		if n.SenderID != nil || n.TargetRef.Count() != 0 || n.Text == nil || *n.Text == "" {
			return ErrNotificationAdmin
		}
		return nil
	}
	if n.SenderID == nil || n.Text != nil {
		return ErrNotificationSender
	}
	if n.TargetRef.Count() != 1 {
		return ErrNotificationTarget
	}
	switch n.TargetRef.Kind() {
	case TargetPost:
		if n.NType != NotificationReaction {
			return ErrNotificationKind
		}
	case TargetComment:
		if n.NType != NotificationComment && n.NType != NotificationReaction {
			return ErrNotificationKind
		}
	case TargetReply:
		if n.NType != NotificationReply && n.NType != NotificationReaction {
			return ErrNotificationKind
		}
	}
	return nil
}

type NotificationReceiver struct {
	NotificationID string `gorm:"primaryKey;type:varchar(36)"`
	UserID         string `gorm:"primaryKey;type:varchar(36);index:idx_notification_receiver_user"`
	CreatedAt      time.Time
}

func (NotificationReceiver) TableName() string { return "notification_receivers" }

type NotificationRead struct {
	NotificationID string `gorm:"primaryKey;type:varchar(36)"`
	UserID         string `gorm:"primaryKey;type:varchar(36);index"`
	CreatedAt      time.Time
}

func (NotificationRead) TableName() string { return "notification_reads" }

// BroadcastJob 管理员广播的 outbox 记录，由 worker 扇出接收者
type BroadcastJob struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)"`
	NotificationID string     `gorm:"type:varchar(36);uniqueIndex"`
	Status         string     `gorm:"type:varchar(16);index"` // pending / processing / done
	CreatedAt      time.Time  `gorm:"index"`
	ProcessedAt    *time.Time
	FanoutCount    int64
}

func (BroadcastJob) TableName() string { return "notification_outbox" }

const (
	BroadcastPending    = "pending"
	BroadcastProcessing = "processing"
	BroadcastDone       = "done"
)
