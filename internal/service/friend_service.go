package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/pagination"
)

const FriendsPerPage = 20

var errFriendExists = errs.Conflict("This friendship already exists")

// FriendService 好友关系：一对用户（不分方向）最多一条记录
type FriendService interface {
	SendRequest(ctx context.Context, requesterID, username string) error
	Respond(ctx context.Context, requesteeID, requesterUsername string, accepted bool) error
	Remove(ctx context.Context, userID, username string) error
	ListFriends(ctx context.Context, userID string, page int) (pagination.Page[UserSnapshot], error)
	ListRequests(ctx context.Context, userID string, page int) (pagination.Page[UserSnapshot], error)
}

type friendService struct {
	friends   repository.FriendRepository
	directory Directory
}

func NewFriendService(friends repository.FriendRepository, directory Directory) FriendService {
	return &friendService{friends: friends, directory: directory}
}

func (s *friendService) SendRequest(ctx context.Context, requesterID, username string) error {
	other, err := s.directory.LookupByUsername(ctx, username)
	if err != nil {
		return err
	}
	if other.ID == requesterID {
		return errs.InvalidInput("username", "You can't send a friend request to yourself")
	}
	existing, err := s.friends.GetPair(ctx, requesterID, other.ID)
	if err != nil {
		return errs.Internal(err)
	}
	if existing != nil {
		return errFriendExists
	}
	if _, err := s.friends.Create(ctx, requesterID, other.ID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errFriendExists
		}
		return asAppError(err)
	}
	return nil
}

func (s *friendService) Respond(ctx context.Context, requesteeID, requesterUsername string, accepted bool) error {
	requester, err := s.directory.LookupByUsername(ctx, requesterUsername)
	if err != nil {
		return err
	}
	f, err := s.friends.GetPending(ctx, requester.ID, requesteeID)
	if err != nil {
		return errs.Internal(err)
	}
	if f == nil {
		return errs.NotFound("No pending friend request from that user")
	}
	if accepted {
		err = s.friends.Accept(ctx, f.ID)
	} else {
		err = s.friends.Delete(ctx, f.ID)
	}
	if err != nil {
		return errs.Internal(err)
	}
	return nil
}

// Remove 撤回好友请求或解除好友关系
func (s *friendService) Remove(ctx context.Context, userID, username string) error {
	other, err := s.directory.LookupByUsername(ctx, username)
	if err != nil {
		return err
	}
	f, err := s.friends.GetPair(ctx, userID, other.ID)
	if err != nil {
		return errs.Internal(err)
	}
	if f == nil {
		return errs.NotFound("No friendship or request with that user")
	}
	if err := s.friends.Delete(ctx, f.ID); err != nil {
		return errs.Internal(err)
	}
	return nil
}

func (s *friendService) ListFriends(ctx context.Context, userID string, page int) (pagination.Page[UserSnapshot], error) {
	p := pagination.New(page, FriendsPerPage)
	items, total, err := s.friends.ListAccepted(ctx, userID, p)
	if err != nil {
		return pagination.Page[UserSnapshot]{}, errs.Internal(err)
	}
	return s.counterparts(ctx, userID, items, total, p)
}

func (s *friendService) ListRequests(ctx context.Context, userID string, page int) (pagination.Page[UserSnapshot], error) {
	p := pagination.New(page, FriendsPerPage)
	items, total, err := s.friends.ListPendingFor(ctx, userID, p)
	if err != nil {
		return pagination.Page[UserSnapshot]{}, errs.Internal(err)
	}
	return s.counterparts(ctx, userID, items, total, p)
}

func (s *friendService) counterparts(ctx context.Context, userID string, items []*model.Friend, total int64, p pagination.Params) (pagination.Page[UserSnapshot], error) {
	ids := make([]string, len(items))
	for i, f := range items {
		ids[i] = f.Other(userID)
	}
	users, err := s.directory.LookupMany(ctx, ids)
	if err != nil {
		return pagination.Page[UserSnapshot]{}, err
	}
	out := make([]UserSnapshot, len(ids))
	for i, id := range ids {
		out[i] = snapshotOf(users, id)
	}
	return pagination.Build(out, total, p), nil
}
