package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/metrics"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

const NotificationsPerPage = 50

type NotificationView struct {
	ID          string                 `json:"id"`
	Sender      *UserSnapshot          `json:"sender"`
	NType       model.NotificationType `json:"ntype"`
	Message     string                 `json:"message"`
	PostSlug    *string                `json:"post_slug"`
	CommentSlug *string                `json:"comment_slug"`
	ReplySlug   *string                `json:"reply_slug"`
	IsRead      bool                   `json:"is_read"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NotificationService 通知聚合。Notify*/Retract/RemoveForTargets 在调用方事务内执行，
// 事件记录到 Events，由调用方在提交后 Flush。
type NotificationService interface {
	NotifyReaction(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, target model.Target) error
	NotifyComment(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, comment *model.Comment, post *model.Post) error
	NotifyReply(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, reply *model.Reply, comment *model.Comment) error
	Retract(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, ntype model.NotificationType, target model.Target) error
	RemoveForTargets(ctx context.Context, tx *gorm.DB, ev *Events, keys []string) error

	List(ctx context.Context, userID string, page int) (pagination.Page[NotificationView], error)
	MarkRead(ctx context.Context, userID string, id *string, markAll bool) error
	Broadcast(ctx context.Context, text string) (*model.Notification, error)
	DeleteBroadcast(ctx context.Context, id string) error
}

type notificationService struct {
	db        *gorm.DB
	directory Directory
	publisher relay.Publisher
}

func NewNotificationService(db *gorm.DB, directory Directory, publisher relay.Publisher) NotificationService {
	if publisher == nil {
		publisher = relay.Nop{}
	}
	return &notificationService{db: db, directory: directory, publisher: publisher}
}

// NotifyReaction (sender, REACTION, target) 只创建一次通知；之后同一发送者在同一目标上的表态合并进去，不再推送
func (s *notificationService) NotifyReaction(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, target model.Target) error {
	authorID := target.AuthorID()
	if senderID == authorID {
		return nil
	}
	repo := repository.NewNotificationRepository(tx)
	key := model.KeyOf(target)
	existing, err := repo.FindCollapsible(ctx, senderID, model.NotificationReaction, key)
	if err != nil {
		return err
	}
	if existing != nil {
		metrics.NotificationsCollapsed.Inc()
		return repo.AddReceivers(ctx, existing.ID, []string{authorID})
	}
	return s.create(ctx, repo, ev, senderID, model.NotificationReaction, target, authorID)
}

func (s *notificationService) NotifyComment(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, comment *model.Comment, post *model.Post) error {
	if senderID == post.AuthorID {
		return nil
	}
	repo := repository.NewNotificationRepository(tx)
	return s.create(ctx, repo, ev, senderID, model.NotificationComment, model.CommentTarget{Comment: comment}, post.AuthorID)
}

func (s *notificationService) NotifyReply(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, reply *model.Reply, comment *model.Comment) error {
	if senderID == comment.AuthorID {
		return nil
	}
	repo := repository.NewNotificationRepository(tx)
	return s.create(ctx, repo, ev, senderID, model.NotificationReply, model.ReplyTarget{Reply: reply}, comment.AuthorID)
}

func (s *notificationService) create(ctx context.Context, repo repository.NotificationRepository, ev *Events, senderID string, ntype model.NotificationType, target model.Target, receiverID string) error {
	key := model.KeyOf(target)
	n := &model.Notification{
		ID:        uuid.New().String(),
		SenderID:  &senderID,
		NType:     ntype,
		TargetRef: model.RefOf(target),
		TargetKey: &key,
	}
	if err := repo.Create(ctx, n, []string{receiverID}); err != nil {
		return err
	}
	metrics.NotificationsCreated.WithLabelValues(string(ntype)).Inc()
	ev.Add(relay.NotificationTopic(receiverID), relay.StatusCreated, n.ID)
	return nil
}

// Retract 移除 target 对应的接收者，没有接收者时删除通知
func (s *notificationService) Retract(ctx context.Context, tx *gorm.DB, ev *Events, senderID string, ntype model.NotificationType, target model.Target) error {
	repo := repository.NewNotificationRepository(tx)
	n, err := repo.FindCollapsible(ctx, senderID, ntype, model.KeyOf(target))
	if err != nil || n == nil {
		return err
	}
	authorID := target.AuthorID()
	if err := repo.RemoveReceiver(ctx, n.ID, authorID); err != nil {
		return err
	}
	left, err := repo.ReceiverIDs(ctx, n.ID)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		return nil
	}
	if err := repo.Delete(ctx, n.ID); err != nil {
		return err
	}
	ev.Add(relay.NotificationTopic(authorID), relay.StatusDeleted, n.ID)
	return nil
}

// RemoveForTargets 删除 keys 中节点触发的所有通知并告知接收者
func (s *notificationService) RemoveForTargets(ctx context.Context, tx *gorm.DB, ev *Events, keys []string) error {
	repo := repository.NewNotificationRepository(tx)
	found, err := repo.FindByTargets(ctx, keys)
	if err != nil {
		return err
	}
	for _, n := range found {
		receivers, err := repo.ReceiverIDs(ctx, n.ID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, n.ID); err != nil {
			return err
		}
		for _, uid := range receivers {
			ev.Add(relay.NotificationTopic(uid), relay.StatusDeleted, n.ID)
		}
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, page int) (pagination.Page[NotificationView], error) {
	p := pagination.New(page, NotificationsPerPage)
	repo := repository.NewNotificationRepository(s.db)
	items, total, err := repo.ListForUser(ctx, userID, p)
	if err != nil {
		return pagination.Page[NotificationView]{}, errs.Internal(err)
	}
	ids := make([]string, len(items))
	senders := make([]string, 0, len(items))
	refs := make([]model.TargetRef, 0, len(items))
	for i, n := range items {
		ids[i] = n.ID
		if n.SenderID != nil {
			senders = append(senders, *n.SenderID)
		}
		refs = append(refs, n.TargetRef)
	}
	read, err := repo.ReadSet(ctx, userID, ids)
	if err != nil {
		return pagination.Page[NotificationView]{}, errs.Internal(err)
	}
	slugs, err := repo.TargetSlugs(ctx, refs)
	if err != nil {
		return pagination.Page[NotificationView]{}, errs.Internal(err)
	}
	users, err := s.directory.LookupMany(ctx, senders)
	if err != nil {
		return pagination.Page[NotificationView]{}, err
	}
	views := make([]NotificationView, len(items))
	for i, n := range items {
		views[i] = renderNotification(n, users, slugs, read[n.ID])
	}
	return pagination.Build(views, total, p), nil
}

func renderNotification(n *model.Notification, users map[string]UserSnapshot, slugs map[string]string, isRead bool) NotificationView {
	v := NotificationView{ID: n.ID, NType: n.NType, IsRead: isRead, CreatedAt: n.CreatedAt}
	if n.SenderID != nil {
		snap := snapshotOf(users, *n.SenderID)
		v.Sender = &snap
	}
	slug := func() *string {
		if n.TargetKey == nil {
			return nil
		}
		if s, ok := slugs[*n.TargetKey]; ok {
			return &s
		}
		return nil
	}
	kind := n.TargetRef.Kind()
	switch kind {
	case model.TargetPost:
		v.PostSlug = slug()
	case model.TargetComment:
		v.CommentSlug = slug()
	case model.TargetReply:
		v.ReplySlug = slug()
	}
	name := "Someone"
	if v.Sender != nil && v.Sender.Name != "" {
		name = v.Sender.Name
	}
	switch n.NType {
	case model.NotificationReaction:
		v.Message = name + " reacted to your " + lowerLabel(kind)
	case model.NotificationComment:
		v.Message = name + " commented on your post"
	case model.NotificationReply:
		v.Message = name + " replied your comment"
	default:
		if n.Text != nil {
			v.Message = *n.Text
		}
	}
	return v
}

func lowerLabel(k model.TargetKind) string {
	switch k {
	case model.TargetComment:
		return "comment"
	case model.TargetReply:
		return "reply"
	default:
		return "post"
	}
}

func (s *notificationService) MarkRead(ctx context.Context, userID string, id *string, markAll bool) error {
	repo := repository.NewNotificationRepository(s.db)
	if markAll {
		if err := repo.MarkAllRead(ctx, userID); err != nil {
			return errs.Internal(err)
		}
		return nil
	}
	if id == nil || *id == "" {
		return errs.InvalidInput("id", "Set ID or mark all as read as True")
	}
	ok, err := repo.IsReceiver(ctx, *id, userID)
	if err != nil {
		return errs.Internal(err)
	}
	if !ok {
		return errs.NotFound("User has no notification with that ID")
	}
	if err := repo.MarkRead(ctx, userID, []string{*id}); err != nil {
		return errs.Internal(err)
	}
	return nil
}

// Broadcast 在同一事务写入 ADMIN 通知和扇出任务，由 Broadcaster 挂接接收者并推送
func (s *notificationService) Broadcast(ctx context.Context, text string) (*model.Notification, error) {
	if text == "" {
		return nil, errs.InvalidInput("text", "This field is required")
	}
	n := &model.Notification{ID: uuid.New().String(), NType: model.NotificationAdmin, Text: &text}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewNotificationRepository(tx).Create(ctx, n, nil); err != nil {
			return err
		}
		job := &model.BroadcastJob{ID: uuid.New().String(), NotificationID: n.ID}
		return repository.NewBroadcastRepository(tx).Enqueue(ctx, job)
	})
	if err != nil {
		return nil, errs.Internal(err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(model.NotificationAdmin)).Inc()
	logger.Info("admin broadcast queued", zap.String("notification", n.ID))
	return n, nil
}

func (s *notificationService) DeleteBroadcast(ctx context.Context, id string) error {
	var ev Events
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewNotificationRepository(tx)
		n, err := repo.Lock(ctx, id, true)
		if err != nil {
			return err
		}
		if n == nil || n.NType != model.NotificationAdmin {
			return errs.NotFound("Notification does not exist")
		}
		receivers, err := repo.ReceiverIDs(ctx, id)
		if err != nil {
			return err
		}
		if err := repository.NewBroadcastRepository(tx).DeleteByNotification(ctx, id); err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		for _, uid := range receivers {
			ev.Add(relay.NotificationTopic(uid), relay.StatusDeleted, id)
		}
		return nil
	})
	if err != nil {
		return asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	return nil
}
