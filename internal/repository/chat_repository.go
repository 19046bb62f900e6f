package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

// latestActivity 按最新消息时间排序，没有消息的会话用自身更新时间
const latestActivity = "COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.chat_id = chats.id), chats.updated_at) DESC, chats.id"

type ChatRepository interface {
	Create(ctx context.Context, chat *model.Chat, memberIDs []string) error
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	GetForParticipant(ctx context.Context, chatID, userID string) (*model.Chat, error)
	GetOwnedGroup(ctx context.Context, chatID, ownerID string) (*model.Chat, error)
	FindDM(ctx context.Context, a, b string) (*model.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	AddMembers(ctx context.Context, chatID string, userIDs []string) error
	RemoveMembers(ctx context.Context, chatID string, userIDs []string) error
	MemberIDs(ctx context.Context, chatID string) ([]string, error)
	Update(ctx context.Context, chat *model.Chat) error
	Touch(ctx context.Context, chatID string, at time.Time) error
	Delete(ctx context.Context, chatID string) error
	ListForUser(ctx context.Context, userID string, p pagination.Params) ([]*model.Chat, int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository { return &chatRepository{db: db} }

func (r *chatRepository) Create(ctx context.Context, chat *model.Chat, memberIDs []string) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(chat).Error; err != nil {
		return err
	}
	if len(memberIDs) == 0 {
		return nil
	}
	rows := make([]model.ChatMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		rows = append(rows, model.ChatMember{ChatID: chat.ID, UserID: id})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	return first[model.Chat](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *chatRepository) participantScope(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("chats.owner_id = ? OR chats.id IN (SELECT chat_id FROM chat_members WHERE user_id = ?)", userID, userID)
	}
}

// GetForParticipant 仅当 userID 是群主或成员时返回会话
func (r *chatRepository) GetForParticipant(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	return first[model.Chat](r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("chats.id = ?", chatID).Scopes(r.participantScope(userID)))
}

func (r *chatRepository) GetOwnedGroup(ctx context.Context, chatID, ownerID string) (*model.Chat, error) {
	return first[model.Chat](r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ? AND ctype = ?", chatID, ownerID, model.ChatTypeGroup))
}

func (r *chatRepository) FindDM(ctx context.Context, a, b string) (*model.Chat, error) {
	return first[model.Chat](r.db.WithContext(ctx).Where("dm_key = ?", model.DMKey(a, b)))
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("chats.id = ?", chatID).Scopes(r.participantScope(userID)).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *chatRepository) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]model.ChatMember, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, model.ChatMember{ChatID: chatID, UserID: id})
	}
	// 幂等：已是成员的忽略
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *chatRepository) RemoveMembers(ctx context.Context, chatID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id IN ?", chatID, userIDs).
		Delete(&model.ChatMember{}).Error
}

func (r *chatRepository) MemberIDs(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.ChatMember{}).
		Where("chat_id = ?", chatID).Order("created_at, user_id").Pluck("user_id", &ids).Error
	return ids, err
}

func (r *chatRepository) Update(ctx context.Context, chat *model.Chat) error {
	return r.db.WithContext(ctx).Model(chat).Select("name", "description", "image_id", "updated_at").Updates(chat).Error
}

func (r *chatRepository) Touch(ctx context.Context, chatID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Chat{}).Where("id = ?", chatID).UpdateColumn("updated_at", at).Error
}

// Delete 删除会话及成员、消息，调用方在自己的事务内执行
func (r *chatRepository) Delete(ctx context.Context, chatID string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error; err != nil {
		return err
	}
	if err := db.Where("chat_id = ?", chatID).Delete(&model.ChatMember{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", chatID).Delete(&model.Chat{}).Error
}

func (r *chatRepository) ListForUser(ctx context.Context, userID string, p pagination.Params) ([]*model.Chat, int64, error) {
	q := r.db.Model(&model.Chat{}).Scopes(r.participantScope(userID)).Order(latestActivity)
	return pagination.Query[*model.Chat](ctx, q, p)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	Update(ctx context.Context, msg *model.Message) error
	Delete(ctx context.Context, id string) error
	CountInChat(ctx context.Context, chatID string) (int64, error)
	ListByChat(ctx context.Context, chatID string, p pagination.Params) ([]*model.Message, int64, error)
	Latest(ctx context.Context, chatIDs []string) (map[string]*model.Message, error)
	BelongsTo(ctx context.Context, messageID, chatID, senderID string) (bool, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository { return &messageRepository{db: db} }

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	return first[model.Message](r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *messageRepository) Update(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Model(msg).Select("text", "file_id", "updated_at").Updates(msg).Error
}

func (r *messageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Message{}).Error
}

func (r *messageRepository) CountInChat(ctx context.Context, chatID string) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).Where("chat_id = ?", chatID).Count(&cnt).Error
	return cnt, err
}

// ListByChat 按时间倒序分页消息
func (r *messageRepository) ListByChat(ctx context.Context, chatID string, p pagination.Params) ([]*model.Message, int64, error) {
	q := r.db.Model(&model.Message{}).Where("chat_id = ?", chatID).Order("created_at DESC, id DESC")
	return pagination.Query[*model.Message](ctx, q, p)
}

// Latest 返回每个会话的最新消息；created_at 相同时取 id 最大者，与 ListByChat 一致
func (r *messageRepository) Latest(ctx context.Context, chatIDs []string) (map[string]*model.Message, error) {
	out := make(map[string]*model.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	var rows []*model.Message
	err := r.db.WithContext(ctx).
		Where("chat_id IN ?", chatIDs).
		Where("created_at = (SELECT MAX(m2.created_at) FROM messages m2 WHERE m2.chat_id = messages.chat_id)").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		if _, ok := out[m.ChatID]; !ok {
			out[m.ChatID] = m
		}
	}
	return out, nil
}

func (r *messageRepository) BelongsTo(ctx context.Context, messageID, chatID, senderID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("id = ? AND chat_id = ? AND sender_id = ?", messageID, chatID, senderID).
		Count(&cnt).Error
	return cnt > 0, err
}
