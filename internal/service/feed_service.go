package service

import (
	"context"
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
	PostsPerPage     = 50
	ReactionsPerPage = 50
	CommentsPerPage  = 50
	RepliesPerPage   = 50
)

type PostView struct {
	Author          UserSnapshot        `json:"author"`
	Slug            string              `json:"slug"`
	Text            string              `json:"text"`
	Image           *string             `json:"image"`
	ReactionsCount  int64               `json:"reactions_count"`
	CommentsCount   int64               `json:"comments_count"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	FileUploadData  *storage.UploadData `json:"file_upload_data,omitempty"`
}

type CommentView struct {
	Author         UserSnapshot `json:"author"`
	Slug           string       `json:"slug"`
	Text           string       `json:"text"`
	ReactionsCount int64        `json:"reactions_count"`
	RepliesCount   int64        `json:"replies_count"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type CommentWithReplies struct {
	CommentView
	Replies pagination.Page[ReplyView] `json:"replies"`
}

type ReplyView struct {
	Author         UserSnapshot `json:"author"`
	Slug           string       `json:"slug"`
	Text           string       `json:"text"`
	ReactionsCount int64        `json:"reactions_count"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type ReactionView struct {
	ID    string             `json:"id"`
	User  UserSnapshot       `json:"user"`
	RType model.ReactionType `json:"rtype"`
}

// PostInput 帖子写入字段，nil 表示不变
type PostInput struct {
	Text     *string
	FileType *string
}

type FeedService interface {
	CreatePost(ctx context.Context, authorID string, in PostInput) (*PostView, error)
	GetPost(ctx context.Context, slug string) (*PostView, error)
	ListPosts(ctx context.Context, page int) (pagination.Page[PostView], error)
	UpdatePost(ctx context.Context, userID, slug string, in PostInput) (*PostView, error)
	DeletePost(ctx context.Context, userID, slug string) error

	ResolveTarget(ctx context.Context, kind, slug string) (model.Target, error)
	CreateOrUpdateReaction(ctx context.Context, userID, kind, slug string, rtype model.ReactionType) (*ReactionView, bool, error)
	ListReactions(ctx context.Context, kind, slug string, rtype model.ReactionType, page int) (pagination.Page[ReactionView], error)
	RemoveReaction(ctx context.Context, userID, reactionID string) error

	CreateComment(ctx context.Context, authorID, postSlug, text string) (*CommentView, error)
	ListComments(ctx context.Context, postSlug string, page int) (pagination.Page[CommentView], error)
	GetComment(ctx context.Context, slug string, page int) (*CommentWithReplies, error)
	UpdateComment(ctx context.Context, userID, slug, text string) (*CommentView, error)
	DeleteComment(ctx context.Context, userID, slug string) error

	CreateReply(ctx context.Context, authorID, commentSlug, text string) (*ReplyView, error)
	GetReply(ctx context.Context, slug string) (*ReplyView, error)
	UpdateReply(ctx context.Context, userID, slug, text string) (*ReplyView, error)
	DeleteReply(ctx context.Context, userID, slug string) error
}

type feedService struct {
	db            *gorm.DB
	directory     Directory
	notifications NotificationService
	signer        *storage.Signer
	publisher     relay.Publisher
}

func NewFeedService(db *gorm.DB, directory Directory, notifications NotificationService, signer *storage.Signer, publisher relay.Publisher) FeedService {
	if publisher == nil {
		publisher = relay.Nop{}
	}
	return &feedService{db: db, directory: directory, notifications: notifications, signer: signer, publisher: publisher}
}

func (s *feedService) slug(ctx context.Context, authorID string) (string, error) {
	author, err := s.directory.Lookup(ctx, authorID)
	if err != nil {
		return "", err
	}
	return author.Username + "-" + uuid.New().String(), nil
}

// ---- 帖子 ----

func (s *feedService) CreatePost(ctx context.Context, authorID string, in PostInput) (*PostView, error) {
	if in.Text == nil || *in.Text == "" {
		return nil, errs.InvalidInput("text", "This field is required")
	}
	slug, err := s.slug(ctx, authorID)
	if err != nil {
		return nil, err
	}
	post := &model.Post{ID: uuid.New().String(), Slug: slug, AuthorID: authorID, Text: *in.Text}
	var file *model.File
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.FileType != nil {
			f, err := storage.AllocatePlaceholder(ctx, tx, *in.FileType)
			if err != nil {
				return err
			}
			file = f
			post.ImageID = &f.ID
		}
		return repository.NewPostRepository(tx).Create(ctx, post)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	views, err := s.postViews(ctx, []*model.Post{post})
	if err != nil {
		return nil, err
	}
	v := views[0]
	if file != nil && s.signer != nil {
		data := s.signer.SignUploadURL(file, storage.FolderPosts)
		v.FileUploadData = &data
	}
	return &v, nil
}

func (s *feedService) getPost(ctx context.Context, db *gorm.DB, slug string) (*model.Post, error) {
	post, err := repository.NewPostRepository(db).GetBySlug(ctx, slug)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if post == nil {
		return nil, errs.NotFound("Post does not exist")
	}
	return post, nil
}

func (s *feedService) GetPost(ctx context.Context, slug string) (*PostView, error) {
	post, err := s.getPost(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	views, err := s.postViews(ctx, []*model.Post{post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *feedService) ListPosts(ctx context.Context, page int) (pagination.Page[PostView], error) {
	p := pagination.New(page, PostsPerPage)
	posts, total, err := repository.NewPostRepository(s.db).List(ctx, p)
	if err != nil {
		return pagination.Page[PostView]{}, errs.Internal(err)
	}
	views, err := s.postViews(ctx, posts)
	if err != nil {
		return pagination.Page[PostView]{}, err
	}
	return pagination.Build(views, total, p), nil
}

func (s *feedService) UpdatePost(ctx context.Context, userID, slug string, in PostInput) (*PostView, error) {
	var (
		post *model.Post
		file *model.File
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if post, err = s.getPost(ctx, tx, slug); err != nil {
			return err
		}
		if post.AuthorID != userID {
			return errs.Forbidden("This Post isn't yours")
		}
		if in.Text != nil {
			if *in.Text == "" {
				return errs.InvalidInput("text", "This field may not be blank")
			}
			post.Text = *in.Text
		}
		if in.FileType != nil {
			if file, err = storage.Replace(ctx, tx, post.ImageID, *in.FileType); err != nil {
				return err
			}
			post.ImageID = &file.ID
		}
		post.UpdatedAt = time.Now().UTC()
		return repository.NewPostRepository(tx).Update(ctx, post)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	views, err := s.postViews(ctx, []*model.Post{post})
	if err != nil {
		return nil, err
	}
	v := views[0]
	if file != nil && s.signer != nil {
		data := s.signer.SignUploadURL(file, storage.FolderPosts)
		v.FileUploadData = &data
	}
	return &v, nil
}

// DeletePost 删除帖子子树及其上的表态和通知
func (s *feedService) DeletePost(ctx context.Context, userID, slug string) error {
	var ev Events
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := s.getPost(ctx, tx, slug)
		if err != nil {
			return err
		}
		if post.AuthorID != userID {
			return errs.Forbidden("This Post isn't yours")
		}
		comments := repository.NewCommentRepository(tx)
		commentIDs, err := comments.CommentIDsOfPost(ctx, post.ID)
		if err != nil {
			return err
		}
		replyIDs, err := comments.ReplyIDsOfComments(ctx, commentIDs)
		if err != nil {
			return err
		}
		keys := targetKeys(model.TargetPost, []string{post.ID})
		keys = append(keys, targetKeys(model.TargetComment, commentIDs)...)
		keys = append(keys, targetKeys(model.TargetReply, replyIDs)...)
		if err := s.detach(ctx, tx, &ev, keys); err != nil {
			return err
		}
		return repository.NewPostRepository(tx).Delete(ctx, post.ID)
	})
	if err != nil {
		return asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	return nil
}

// detach 删除 keys 中节点上的表态和通知
func (s *feedService) detach(ctx context.Context, tx *gorm.DB, ev *Events, keys []string) error {
	if err := repository.NewReactionRepository(tx).DeleteByTargets(ctx, keys); err != nil {
		return err
	}
	return s.notifications.RemoveForTargets(ctx, tx, ev, keys)
}

func targetKeys(kind model.TargetKind, ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(kind) + ":" + id
	}
	return out
}

func (s *feedService) postViews(ctx context.Context, posts []*model.Post) ([]PostView, error) {
	authorIDs := make([]string, len(posts))
	ids := make([]string, len(posts))
	keys := make([]string, len(posts))
	for i, p := range posts {
		authorIDs[i] = p.AuthorID
		ids[i] = p.ID
		keys[i] = model.KeyOf(model.PostTarget{Post: p})
	}
	authors, err := s.directory.LookupMany(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	reactions, err := repository.NewReactionRepository(s.db).CountByTargets(ctx, keys)
	if err != nil {
		return nil, errs.Internal(err)
	}
	comments, err := repository.NewCommentRepository(s.db).CommentCounts(ctx, ids)
	if err != nil {
		return nil, errs.Internal(err)
	}
	out := make([]PostView, len(posts))
	for i, p := range posts {
		out[i] = PostView{
			Author:         snapshotOf(authors, p.AuthorID),
			Slug:           p.Slug,
			Text:           p.Text,
			ReactionsCount: reactions[keys[i]],
			CommentsCount:  comments[p.ID],
			CreatedAt:      p.CreatedAt,
			UpdatedAt:      p.UpdatedAt,
		}
		if s.signer != nil {
			out[i].Image = s.signer.URL(storage.FolderPosts, p.ImageID)
		}
	}
	return out, nil
}

// ---- 表态 ----

// ResolveTarget 根据路径中的类型和 slug 定位内容节点
func (s *feedService) ResolveTarget(ctx context.Context, kind, slug string) (model.Target, error) {
	k, ok := model.ParseTargetKind(kind)
	if !ok {
		return nil, errs.InvalidInput("", "Invalid 'focus' value")
	}
	return s.resolve(ctx, s.db, k, slug)
}

func (s *feedService) resolve(ctx context.Context, db *gorm.DB, k model.TargetKind, slug string) (model.Target, error) {
	var (
		t   model.Target
		err error
	)
	switch k {
	case model.TargetPost:
		var p *model.Post
		if p, err = repository.NewPostRepository(db).GetBySlug(ctx, slug); p != nil {
			t = model.PostTarget{Post: p}
		}
	case model.TargetComment:
		var c *model.Comment
		if c, err = repository.NewCommentRepository(db).GetComment(ctx, slug); c != nil {
			t = model.CommentTarget{Comment: c}
		}
	case model.TargetReply:
		var r *model.Reply
		if r, err = repository.NewCommentRepository(db).GetReply(ctx, slug); r != nil {
			t = model.ReplyTarget{Reply: r}
		}
	}
	if err != nil {
		return nil, errs.Internal(err)
	}
	if t == nil {
		return nil, errs.NotFound(k.Label() + " does not exist")
	}
	return t, nil
}

// targetOf 加载引用指向的节点，已删除时返回 nil
func (s *feedService) targetOf(ctx context.Context, db *gorm.DB, ref model.TargetRef) (model.Target, error) {
	switch ref.Kind() {
	case model.TargetPost:
		p, err := repository.NewPostRepository(db).GetByID(ctx, *ref.PostID)
		if err != nil || p == nil {
			return nil, err
		}
		return model.PostTarget{Post: p}, nil
	case model.TargetComment:
		c, err := repository.NewCommentRepository(db).GetCommentByID(ctx, *ref.CommentID)
		if err != nil || c == nil {
			return nil, err
		}
		return model.CommentTarget{Comment: c}, nil
	case model.TargetReply:
		r, err := repository.NewCommentRepository(db).GetReplyByID(ctx, *ref.ReplyID)
		if err != nil || r == nil {
			return nil, err
		}
		return model.ReplyTarget{Reply: r}, nil
	}
	return nil, nil
}

// CreateOrUpdateReaction 每个 (user, target) 只保留一个表态，仅首次创建时通知作者
func (s *feedService) CreateOrUpdateReaction(ctx context.Context, userID, kind, slug string, rtype model.ReactionType) (*ReactionView, bool, error) {
	if !rtype.Valid() {
		return nil, false, errs.InvalidInput("rtype", "Invalid choice")
	}
	target, err := s.ResolveTarget(ctx, kind, slug)
	if err != nil {
		return nil, false, err
	}
	re := &model.Reaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		RType:     rtype,
		TargetRef: model.RefOf(target),
		TargetKey: model.KeyOf(target),
	}
	var (
		ev      Events
		created bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if created, err = repository.NewReactionRepository(tx).Upsert(ctx, re); err != nil {
			return err
		}
		if !created {
			return nil
		}
		return s.notifications.NotifyReaction(ctx, tx, &ev, userID, target)
	})
	if err != nil {
		return nil, false, asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	user, err := s.directory.Lookup(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return &ReactionView{ID: re.ID, User: *user, RType: re.RType}, created, nil
}

func (s *feedService) ListReactions(ctx context.Context, kind, slug string, rtype model.ReactionType, page int) (pagination.Page[ReactionView], error) {
	if rtype != "" && !rtype.Valid() {
		return pagination.Page[ReactionView]{}, errs.InvalidInput("", "Invalid reaction type")
	}
	target, err := s.ResolveTarget(ctx, kind, slug)
	if err != nil {
		return pagination.Page[ReactionView]{}, err
	}
	p := pagination.New(page, ReactionsPerPage)
	items, total, err := repository.NewReactionRepository(s.db).ListByTarget(ctx, model.KeyOf(target), rtype, p)
	if err != nil {
		return pagination.Page[ReactionView]{}, errs.Internal(err)
	}
	ids := make([]string, len(items))
	for i, r := range items {
		ids[i] = r.UserID
	}
	users, err := s.directory.LookupMany(ctx, ids)
	if err != nil {
		return pagination.Page[ReactionView]{}, err
	}
	views := make([]ReactionView, len(items))
	for i, r := range items {
		views[i] = ReactionView{ID: r.ID, User: snapshotOf(users, r.UserID), RType: r.RType}
	}
	return pagination.Build(views, total, p), nil
}

func (s *feedService) RemoveReaction(ctx context.Context, userID, reactionID string) error {
	var ev Events
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reactions := repository.NewReactionRepository(tx)
		re, err := reactions.GetByID(ctx, reactionID)
		if err != nil {
			return err
		}
		if re == nil {
			return errs.NotFound("Reaction does not exist")
		}
		if re.UserID != userID {
			return errs.Forbidden("Not yours to delete")
		}
		if err := reactions.Delete(ctx, re.ID); err != nil {
			return err
		}
		target, err := s.targetOf(ctx, tx, re.TargetRef)
		if err != nil || target == nil {
			return err
		}
		return s.notifications.Retract(ctx, tx, &ev, userID, model.NotificationReaction, target)
	})
	if err != nil {
		return asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	return nil
}

// ---- 评论与回复 ----

func (s *feedService) CreateComment(ctx context.Context, authorID, postSlug, text string) (*CommentView, error) {
	if text == "" {
		return nil, errs.InvalidInput("text", "This field is required")
	}
	post, err := s.getPost(ctx, s.db, postSlug)
	if err != nil {
		return nil, err
	}
	slug, err := s.slug(ctx, authorID)
	if err != nil {
		return nil, err
	}
	c := &model.Comment{ID: uuid.New().String(), Slug: slug, AuthorID: authorID, PostID: post.ID, Text: text}
	var ev Events
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewCommentRepository(tx).CreateComment(ctx, c); err != nil {
			return err
		}
		return s.notifications.NotifyComment(ctx, tx, &ev, authorID, c, post)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	views, err := s.commentViews(ctx, []*model.Comment{c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *feedService) getComment(ctx context.Context, db *gorm.DB, slug string) (*model.Comment, error) {
	c, err := repository.NewCommentRepository(db).GetComment(ctx, slug)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if c == nil {
		return nil, errs.NotFound("Comment does not exist")
	}
	return c, nil
}

func (s *feedService) ListComments(ctx context.Context, postSlug string, page int) (pagination.Page[CommentView], error) {
	post, err := s.getPost(ctx, s.db, postSlug)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	p := pagination.New(page, CommentsPerPage)
	items, total, err := repository.NewCommentRepository(s.db).ListComments(ctx, post.ID, p)
	if err != nil {
		return pagination.Page[CommentView]{}, errs.Internal(err)
	}
	views, err := s.commentViews(ctx, items)
	if err != nil {
		return pagination.Page[CommentView]{}, err
	}
	return pagination.Build(views, total, p), nil
}

func (s *feedService) GetComment(ctx context.Context, slug string, page int) (*CommentWithReplies, error) {
	c, err := s.getComment(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	views, err := s.commentViews(ctx, []*model.Comment{c})
	if err != nil {
		return nil, err
	}
	p := pagination.New(page, RepliesPerPage)
	replies, total, err := repository.NewCommentRepository(s.db).ListReplies(ctx, c.ID, p)
	if err != nil {
		return nil, errs.Internal(err)
	}
	rv, err := s.replyViews(ctx, replies)
	if err != nil {
		return nil, err
	}
	return &CommentWithReplies{CommentView: views[0], Replies: pagination.Build(rv, total, p)}, nil
}

func (s *feedService) UpdateComment(ctx context.Context, userID, slug, text string) (*CommentView, error) {
	if text == "" {
		return nil, errs.InvalidInput("text", "This field is required")
	}
	var c *model.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if c, err = s.getComment(ctx, tx, slug); err != nil {
			return err
		}
		if c.AuthorID != userID {
			return errs.Forbidden("Not yours to edit")
		}
		c.Text = text
		c.UpdatedAt = time.Now().UTC()
		return repository.NewCommentRepository(tx).UpdateComment(ctx, c)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	views, err := s.commentViews(ctx, []*model.Comment{c})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// DeleteComment 删除评论、回复、相关表态及其触发的通知
func (s *feedService) DeleteComment(ctx context.Context, userID, slug string) error {
	var ev Events
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.getComment(ctx, tx, slug)
		if err != nil {
			return err
		}
		if c.AuthorID != userID {
			return errs.Forbidden("Not yours to delete")
		}
		comments := repository.NewCommentRepository(tx)
		replyIDs, err := comments.ReplyIDsOfComments(ctx, []string{c.ID})
		if err != nil {
			return err
		}
		keys := append(targetKeys(model.TargetComment, []string{c.ID}), targetKeys(model.TargetReply, replyIDs)...)
		if err := s.detach(ctx, tx, &ev, keys); err != nil {
			return err
		}
		return comments.DeleteComment(ctx, c.ID)
	})
	if err != nil {
		return asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	return nil
}

func (s *feedService) CreateReply(ctx context.Context, authorID, commentSlug, text string) (*ReplyView, error) {
	if text == "" {
		return nil, errs.InvalidInput("text", "This field is required")
	}
	c, err := s.getComment(ctx, s.db, commentSlug)
	if err != nil {
		return nil, err
	}
	slug, err := s.slug(ctx, authorID)
	if err != nil {
		return nil, err
	}
	r := &model.Reply{ID: uuid.New().String(), Slug: slug, AuthorID: authorID, CommentID: c.ID, Text: text}
	var ev Events
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewCommentRepository(tx).CreateReply(ctx, r); err != nil {
			return err
		}
		return s.notifications.NotifyReply(ctx, tx, &ev, authorID, r, c)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	views, err := s.replyViews(ctx, []*model.Reply{r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *feedService) getReply(ctx context.Context, db *gorm.DB, slug string) (*model.Reply, error) {
	r, err := repository.NewCommentRepository(db).GetReply(ctx, slug)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if r == nil {
		return nil, errs.NotFound("Reply does not exist")
	}
	return r, nil
}

func (s *feedService) GetReply(ctx context.Context, slug string) (*ReplyView, error) {
	r, err := s.getReply(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	views, err := s.replyViews(ctx, []*model.Reply{r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *feedService) UpdateReply(ctx context.Context, userID, slug, text string) (*ReplyView, error) {
	if text == "" {
		return nil, errs.InvalidInput("text", "This field is required")
	}
	var r *model.Reply
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if r, err = s.getReply(ctx, tx, slug); err != nil {
			return err
		}
		if r.AuthorID != userID {
			return errs.Forbidden("Not yours to edit")
		}
		r.Text = text
		r.UpdatedAt = time.Now().UTC()
		return repository.NewCommentRepository(tx).UpdateReply(ctx, r)
	})
	if err != nil {
		return nil, asAppError(err)
	}
	views, err := s.replyViews(ctx, []*model.Reply{r})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *feedService) DeleteReply(ctx context.Context, userID, slug string) error {
	var ev Events
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.getReply(ctx, tx, slug)
		if err != nil {
			return err
		}
		if r.AuthorID != userID {
			return errs.Forbidden("Not yours to delete")
		}
		if err := s.detach(ctx, tx, &ev, targetKeys(model.TargetReply, []string{r.ID})); err != nil {
			return err
		}
		return repository.NewCommentRepository(tx).DeleteReply(ctx, r.ID)
	})
	if err != nil {
		return asAppError(err)
	}
	ev.Flush(ctx, s.publisher)
	return nil
}

func (s *feedService) commentViews(ctx context.Context, items []*model.Comment) ([]CommentView, error) {
	authorIDs := make([]string, len(items))
	ids := make([]string, len(items))
	keys := make([]string, len(items))
	for i, c := range items {
		authorIDs[i] = c.AuthorID
		ids[i] = c.ID
		keys[i] = model.KeyOf(model.CommentTarget{Comment: c})
	}
	authors, err := s.directory.LookupMany(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	reactions, err := repository.NewReactionRepository(s.db).CountByTargets(ctx, keys)
	if err != nil {
		return nil, errs.Internal(err)
	}
	replies, err := repository.NewCommentRepository(s.db).ReplyCounts(ctx, ids)
	if err != nil {
		return nil, errs.Internal(err)
	}
	out := make([]CommentView, len(items))
	for i, c := range items {
		out[i] = CommentView{
			Author:         snapshotOf(authors, c.AuthorID),
			Slug:           c.Slug,
			Text:           c.Text,
			ReactionsCount: reactions[keys[i]],
			RepliesCount:   replies[c.ID],
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      c.UpdatedAt,
		}
	}
	return out, nil
}

func (s *feedService) replyViews(ctx context.Context, items []*model.Reply) ([]ReplyView, error) {
	authorIDs := make([]string, len(items))
	keys := make([]string, len(items))
	for i, r := range items {
		authorIDs[i] = r.AuthorID
		keys[i] = model.KeyOf(model.ReplyTarget{Reply: r})
	}
	authors, err := s.directory.LookupMany(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	reactions, err := repository.NewReactionRepository(s.db).CountByTargets(ctx, keys)
	if err != nil {
		return nil, errs.Internal(err)
	}
	out := make([]ReplyView, len(items))
	for i, r := range items {
		out[i] = ReplyView{
			Author:         snapshotOf(authors, r.AuthorID),
			Slug:           r.Slug,
			Text:           r.Text,
			ReactionsCount: reactions[keys[i]],
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		}
	}
	return out, nil
}
