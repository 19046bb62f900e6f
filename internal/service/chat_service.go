package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/storage"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

const (
	ChatsPerPage    = 200
	MessagesPerPage = 400
)

var errDMExists = errs.Conflict("chat already exists between you and the recipient")

type LatestMessageView struct {
	Sender UserSnapshot `json:"sender"`
	Text   *string      `json:"text"`
	File   *string      `json:"file"`
}

type ChatView struct {
	ID            string             `json:"id"`
	Name          *string            `json:"name"`
	Owner         UserSnapshot       `json:"owner"`
	CType         model.ChatType     `json:"ctype"`
	Description   *string            `json:"description"`
	Image         *string            `json:"image"`
	LatestMessage *LatestMessageView `json:"latest_message"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type MessageView struct {
	ID             string              `json:"id"`
	ChatID         string              `json:"chat_id"`
	Sender         UserSnapshot        `json:"sender"`
	Text           *string             `json:"text"`
	File           *string             `json:"file"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	FileUploadData *storage.UploadData `json:"file_upload_data,omitempty"`
}

type ChatDetail struct {
	Chat     ChatView                     `json:"chat"`
	Messages pagination.Page[MessageView] `json:"messages"`
	Users    []UserSnapshot               `json:"users"`
}

type GroupChatView struct {
	ID             string              `json:"id"`
	Name           *string             `json:"name"`
	Description    *string             `json:"description"`
	Image          *string             `json:"image"`
	Users          []UserSnapshot      `json:"users"`
	FileUploadData *storage.UploadData `json:"file_upload_data,omitempty"`
}

// SendMessageInput 指定已有会话或接收者用户名，二选一
type SendMessageInput struct {
	ChatID   *string
	Username *string
	Text     *string
	FileType *string
}

type MessageUpdate struct {
	Text     *string
	FileType *string
}

type GroupInput struct {
	Name        string
	Description *string
	Usernames   []string
	FileType    *string
}

// GroupPatch 群主可修改的字段，nil 表示不变
type GroupPatch struct {
	Name              *string
	Description       *string
	FileType          *string
	UsernamesToAdd    []string
	UsernamesToRemove []string
}

type ChatService interface {
	SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*MessageView, error)
	GetChat(ctx context.Context, userID, chatID string, page int) (*ChatDetail, error)
	ListChats(ctx context.Context, userID string, page int) (pagination.Page[ChatView], error)
	UpdateMessage(ctx context.Context, userID, messageID string, in MessageUpdate) (*MessageView, error)
	DeleteMessage(ctx context.Context, userID, messageID string) error
	CreateGroup(ctx context.Context, ownerID string, in GroupInput) (*GroupChatView, error)
	UpdateGroup(ctx context.Context, ownerID, chatID string, patch GroupPatch) (*GroupChatView, error)
	DeleteGroup(ctx context.Context, ownerID, chatID string) error

	// relay.ChatAccess
	Authorize(ctx context.Context, chatID, userID string) error
	VerifyEcho(ctx context.Context, chatID, userID string, ev relay.Event) error
}

type chatService struct {
	db        *gorm.DB
	directory Directory
	signer    *storage.Signer
	publisher relay.Publisher
}

func NewChatService(db *gorm.DB, directory Directory, signer *storage.Signer, publisher relay.Publisher) ChatService {
	if publisher == nil {
		publisher = relay.Nop{}
	}
	return &chatService{db: db, directory: directory, signer: signer, publisher: publisher}
}

func blank(s *string) bool { return s == nil || *s == "" }

// SendMessage 发到已有会话；与对方尚无私聊时新建私聊
func (s *chatService) SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*MessageView, error) {
	switch {
	case blank(in.ChatID) && blank(in.Username):
		return nil, errs.InvalidInput("chat_id", "You must enter the chat id or the username")
	case !blank(in.ChatID) && !blank(in.Username):
		return nil, errs.InvalidInput("username", "Can't enter username when chat_id is set")
	case blank(in.Text) && in.FileType == nil:
		return nil, errs.InvalidInput("text", "You must enter a text or upload a file")
	}

	var recipient *model.User
	if !blank(in.Username) {
		u, err := s.directory.LookupByUsername(ctx, *in.Username)
		if err != nil {
			return nil, err
		}
		if u.ID == senderID {
			return nil, errs.InvalidInput("username", "You can't send a message to yourself")
		}
		recipient = u
	}

	now := time.Now().UTC()
	msg := &model.Message{ID: uuid.New().String(), SenderID: senderID, Text: nonEmpty(in.Text), CreatedAt: now, UpdatedAt: now}
	var file *model.File
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := repository.NewChatRepository(tx)
		if recipient != nil {
			existing, err := chats.FindDM(ctx, senderID, recipient.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return errDMExists
			}
			key := model.DMKey(senderID, recipient.ID)
			chat := &model.Chat{ID: uuid.New().String(), CType: model.ChatTypeDM, OwnerID: senderID, DMKey: &key}
			if err := chats.Create(ctx, chat, []string{recipient.ID}); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errDMExists
				}
				return err
			}
			msg.ChatID = chat.ID
		} else {
			chat, err := chats.GetForParticipant(ctx, *in.ChatID, senderID)
			if err != nil {
				return err
			}
			if chat == nil {
				return errs.NotFound("User has no chat with that ID")
			}
			msg.ChatID = chat.ID
		}
		if in.FileType != nil {
			f, err := storage.AllocatePlaceholder(ctx, tx, *in.FileType)
			if err != nil {
				return err
			}
			file = f
			msg.FileID = &f.ID
		}
		if err := repository.NewMessageRepository(tx).Create(ctx, msg); err != nil {
			return err
		}
		return chats.Touch(ctx, msg.ChatID, now)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	s.publish(ctx, relay.ChatTopic(msg.ChatID), relay.StatusCreated, msg.ID)
	return s.messageView(ctx, msg, file)
}

func nonEmpty(s *string) *string {
	if blank(s) {
		return nil
	}
	return s
}

func (s *chatService) publish(ctx context.Context, topic string, status relay.Status, id string) {
	var ev Events
	ev.Add(topic, status, id)
	ev.Flush(ctx, s.publisher)
}

func (s *chatService) messageView(ctx context.Context, msg *model.Message, file *model.File) (*MessageView, error) {
	sender, err := s.directory.LookupMany(ctx, []string{msg.SenderID})
	if err != nil {
		return nil, err
	}
	v := s.renderMessage(msg, sender)
	if file != nil && s.signer != nil {
		data := s.signer.SignUploadURL(file, storage.FolderMessages)
		v.FileUploadData = &data
	}
	return &v, nil
}

func (s *chatService) renderMessage(msg *model.Message, users map[string]UserSnapshot) MessageView {
	v := MessageView{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Sender:    snapshotOf(users, msg.SenderID),
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
	if s.signer != nil {
		v.File = s.signer.URL(storage.FolderMessages, msg.FileID)
	}
	return v
}

func (s *chatService) renderChat(c *model.Chat, users map[string]UserSnapshot, latest *model.Message) ChatView {
	v := ChatView{
		ID:          c.ID,
		Name:        c.Name,
		Owner:       snapshotOf(users, c.OwnerID),
		CType:       c.CType,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if s.signer != nil {
		v.Image = s.signer.URL(storage.FolderGroups, c.ImageID)
	}
	if latest != nil {
		lm := &LatestMessageView{Sender: snapshotOf(users, latest.SenderID), Text: latest.Text}
		if s.signer != nil {
			lm.File = s.signer.URL(storage.FolderMessages, latest.FileID)
		}
		v.LatestMessage = lm
	}
	return v
}

func (s *chatService) GetChat(ctx context.Context, userID, chatID string, page int) (*ChatDetail, error) {
	chat, err := repository.NewChatRepository(s.db).GetForParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if chat == nil {
		return nil, errs.NotFound("User has no chat with that ID")
	}
	p := pagination.New(page, MessagesPerPage)
	msgs, total, err := repository.NewMessageRepository(s.db).ListByChat(ctx, chat.ID, p)
	if err != nil {
		return nil, errs.Internal(err)
	}
	memberIDs, err := repository.NewChatRepository(s.db).MemberIDs(ctx, chat.ID)
	if err != nil {
		return nil, errs.Internal(err)
	}
	ids := append([]string{chat.OwnerID}, memberIDs...)
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	users, err := s.directory.LookupMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]MessageView, len(msgs))
	for i, m := range msgs {
		views[i] = s.renderMessage(m, users)
	}
	var latest *model.Message
	if len(msgs) > 0 && p.Page == 1 {
		latest = msgs[0]
	}
	return &ChatDetail{
		Chat:     s.renderChat(chat, users, latest),
		Messages: pagination.Build(views, total, p),
		Users:    s.participants(chat.OwnerID, memberIDs, users),
	}, nil
}

func (s *chatService) participants(ownerID string, memberIDs []string, users map[string]UserSnapshot) []UserSnapshot {
	out := make([]UserSnapshot, 0, len(memberIDs)+1)
	out = append(out, snapshotOf(users, ownerID))
	for _, id := range memberIDs {
		out = append(out, snapshotOf(users, id))
	}
	return out
}

// ListChats 按最近活跃排序调用者的会话
func (s *chatService) ListChats(ctx context.Context, userID string, page int) (pagination.Page[ChatView], error) {
	p := pagination.New(page, ChatsPerPage)
	chats, total, err := repository.NewChatRepository(s.db).ListForUser(ctx, userID, p)
	if err != nil {
		return pagination.Page[ChatView]{}, errs.Internal(err)
	}
	chatIDs := make([]string, len(chats))
	ids := make([]string, 0, len(chats)*2)
	for i, c := range chats {
		chatIDs[i] = c.ID
		ids = append(ids, c.OwnerID)
	}
	latest, err := repository.NewMessageRepository(s.db).Latest(ctx, chatIDs)
	if err != nil {
		return pagination.Page[ChatView]{}, errs.Internal(err)
	}
	for _, m := range latest {
		ids = append(ids, m.SenderID)
	}
	users, err := s.directory.LookupMany(ctx, ids)
	if err != nil {
		return pagination.Page[ChatView]{}, err
	}
	views := make([]ChatView, len(chats))
	for i, c := range chats {
		views[i] = s.renderChat(c, users, latest[c.ID])
	}
	return pagination.Build(views, total, p), nil
}

func (s *chatService) ownMessage(ctx context.Context, tx *gorm.DB, userID, messageID string) (*model.Message, error) {
	msg, err := repository.NewMessageRepository(tx).GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errs.NotFound("User has no message with that ID")
	}
	if msg.SenderID != userID {
		return nil, errs.Forbidden("Not yours to modify")
	}
	return msg, nil
}

func (s *chatService) UpdateMessage(ctx context.Context, userID, messageID string, in MessageUpdate) (*MessageView, error) {
	var (
		msg  *model.Message
		file *model.File
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if msg, err = s.ownMessage(ctx, tx, userID, messageID); err != nil {
			return err
		}
		if in.Text != nil {
			msg.Text = nonEmpty(in.Text)
		}
		if in.FileType != nil {
			if file, err = storage.Replace(ctx, tx, msg.FileID, *in.FileType); err != nil {
				return err
			}
			msg.FileID = &file.ID
		}
		if msg.Text == nil && msg.FileID == nil {
			return errs.InvalidInput("text", "You must enter a text or upload a file")
		}
		msg.UpdatedAt = time.Now().UTC()
		return repository.NewMessageRepository(tx).Update(ctx, msg)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	s.publish(ctx, relay.ChatTopic(msg.ChatID), relay.StatusUpdated, msg.ID)
	return s.messageView(ctx, msg, file)
}

// DeleteMessage 删除消息；私聊因此没有消息时在同一事务内删除会话
func (s *chatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	var ev Events
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg, err := s.ownMessage(ctx, tx, userID, messageID)
		if err != nil {
			return err
		}
		messages := repository.NewMessageRepository(tx)
		if err := messages.Delete(ctx, msg.ID); err != nil {
			return err
		}
		topic := relay.ChatTopic(msg.ChatID)
		ev.Add(topic, relay.StatusDeleted, msg.ID)

		chats := repository.NewChatRepository(tx)
		chat, err := chats.GetByID(ctx, msg.ChatID)
		if err != nil || chat == nil || chat.IsGroup() {
			return err
		}
		left, err := messages.CountInChat(ctx, chat.ID)
		if err != nil || left > 0 {
			return err
		}
		if err := chats.Delete(ctx, chat.ID); err != nil {
			return err
		}
		ev.Add(topic, relay.StatusDeleted, chat.ID)
		return nil
	})
	if err != nil {
		return asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	return nil
}

// resolveMembers 将用户名解析为 id，忽略不存在的用户、群主和重复项
func (s *chatService) resolveMembers(ctx context.Context, ownerID string, usernames []string) ([]string, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	users, err := s.directory.ResolveUsernames(ctx, usernames)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(users))
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID == ownerID {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func errGroupLimit() error {
	return errs.InvalidInput("usernames_to_add", "99 users limit reached")
}

func (s *chatService) CreateGroup(ctx context.Context, ownerID string, in GroupInput) (*GroupChatView, error) {
	if in.Name == "" {
		return nil, errs.InvalidInput("name", "This field is required")
	}
	memberIDs, err := s.resolveMembers(ctx, ownerID, in.Usernames)
	if err != nil {
		return nil, err
	}
	if len(memberIDs) == 0 {
		return nil, errs.InvalidInput("usernames_to_add", "Enter at least one valid username")
	}
	if len(memberIDs)+1 > model.MaxGroupMembers {
		return nil, errGroupLimit()
	}
	name := in.Name
	chat := &model.Chat{ID: uuid.New().String(), CType: model.ChatTypeGroup, OwnerID: ownerID, Name: &name, Description: in.Description}
	var file *model.File
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.FileType != nil {
			f, err := storage.AllocatePlaceholder(ctx, tx, *in.FileType)
			if err != nil {
				return err
			}
			file = f
			chat.ImageID = &f.ID
		}
		return repository.NewChatRepository(tx).Create(ctx, chat, memberIDs)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return s.groupView(ctx, chat, memberIDs, file)
}

// UpdateGroup 先校验变更后的人数（现有 - 移除 + 新增）不超上限，再应用 patch
func (s *chatService) UpdateGroup(ctx context.Context, ownerID, chatID string, patch GroupPatch) (*GroupChatView, error) {
	if patch.Name != nil && *patch.Name == "" {
		return nil, errs.InvalidInput("name", "This field may not be blank")
	}
	add, err := s.resolveMembers(ctx, ownerID, patch.UsernamesToAdd)
	if err != nil {
		return nil, err
	}
	remove, err := s.resolveMembers(ctx, ownerID, patch.UsernamesToRemove)
	if err != nil {
		return nil, err
	}
	var (
		chat    *model.Chat
		members []string
		file    *model.File
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := repository.NewChatRepository(tx)
		var err error
		if chat, err = chats.GetOwnedGroup(ctx, chatID, ownerID); err != nil {
			return err
		}
		if chat == nil {
			return errs.NotFound("User owns no group chat with that ID")
		}
		current, err := chats.MemberIDs(ctx, chat.ID)
		if err != nil {
			return err
		}
		projected := projectMembers(current, remove, add)
		if len(projected)+1 > model.MaxGroupMembers {
			return errGroupLimit()
		}
		if patch.Name != nil {
			chat.Name = patch.Name
		}
		if patch.Description != nil {
			chat.Description = patch.Description
		}
		if patch.FileType != nil {
			if file, err = storage.Replace(ctx, tx, chat.ImageID, *patch.FileType); err != nil {
				return err
			}
			chat.ImageID = &file.ID
		}
		chat.UpdatedAt = time.Now().UTC()
		if err := chats.RemoveMembers(ctx, chat.ID, remove); err != nil {
			return err
		}
		if err := chats.AddMembers(ctx, chat.ID, add); err != nil {
			return err
		}
		if err := chats.Update(ctx, chat); err != nil {
			return err
		}
		members, err = chats.MemberIDs(ctx, chat.ID)
		return err
	})
	if err != nil {
		return nil, asAppError(err)
	}
	s.publish(ctx, relay.ChatTopic(chat.ID), relay.StatusUpdated, chat.ID)
	return s.groupView(ctx, chat, members, file)
}

func projectMembers(current, remove, add []string) []string {
	set := make(map[string]struct{}, len(current)+len(add))
	for _, id := range current {
		set[id] = struct{}{}
	}
	for _, id := range remove {
		delete(set, id)
	}
	for _, id := range add {
		set[id] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (s *chatService) DeleteGroup(ctx context.Context, ownerID, chatID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chats := repository.NewChatRepository(tx)
		chat, err := chats.GetOwnedGroup(ctx, chatID, ownerID)
		if err != nil {
			return err
		}
		if chat == nil {
			return errs.NotFound("User owns no group chat with that ID")
		}
		return chats.Delete(ctx, chat.ID)
	})
	if err != nil {
		return asAppError(err)
	}
	s.publish(ctx, relay.ChatTopic(chatID), relay.StatusDeleted, chatID)
	return nil
}

func (s *chatService) groupView(ctx context.Context, chat *model.Chat, memberIDs []string, file *model.File) (*GroupChatView, error) {
	users, err := s.directory.LookupMany(ctx, append([]string{chat.OwnerID}, memberIDs...))
	if err != nil {
		return nil, err
	}
	v := &GroupChatView{
		ID:          chat.ID,
		Name:        chat.Name,
		Description: chat.Description,
		Users:       s.participants(chat.OwnerID, memberIDs, users),
	}
	if s.signer != nil {
		v.Image = s.signer.URL(storage.FolderGroups, chat.ImageID)
		if file != nil {
			data := s.signer.SignUploadURL(file, storage.FolderGroups)
			v.FileUploadData = &data
		}
	}
	return v, nil
}

// Authorize 只允许群主和成员打开会话 socket
func (s *chatService) Authorize(ctx context.Context, chatID, userID string) error {
	chats := repository.NewChatRepository(s.db)
	chat, err := chats.GetByID(ctx, chatID)
	if err != nil {
		return errs.Internal(err)
	}
	if chat == nil {
		return errs.NotFound("Chat does not exist")
	}
	ok, err := chats.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return errs.Internal(err)
	}
	if !ok {
		return errs.Forbidden("You're not a member of this chat")
	}
	return nil
}

// VerifyEcho CREATED/UPDATED 回显必须是调用者在本会话发送的消息
func (s *chatService) VerifyEcho(ctx context.Context, chatID, userID string, ev relay.Event) error {
	ok, err := repository.NewMessageRepository(s.db).BelongsTo(ctx, ev.ID, chatID, userID)
	if err != nil {
		return errs.Internal(err)
	}
	if !ok {
		return errs.InvalidInput("id", "Message not found in this chat")
	}
	return nil
}
