package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

// asAppError AppError 原样返回，其余错误归类
func asAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errs.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, model.ErrFriendSelf):
		return errs.InvalidInput("", "You can't send a friend request to yourself")
	case errors.Is(err, model.ErrNotificationTarget),
		errors.Is(err, model.ErrNotificationAdmin),
		errors.Is(err, model.ErrNotificationSender),
		errors.Is(err, model.ErrNotificationKind):
		return errs.InvalidInput("", err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errs.Conflict("Already exists")
	}
	return errs.Internal(err)
}
