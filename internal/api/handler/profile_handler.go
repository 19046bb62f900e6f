package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kayprogrammer/socialnet-v2/internal/api/middleware"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

type markReadRequest struct {
	MarkAllAsRead bool    `json:"mark_all_as_read"`
	ID            *string `json:"id" binding:"omitempty,uuid"`
}

type friendRequest struct {
	Username string `json:"username" binding:"required,notblank"`
}

type friendResponseRequest struct {
	Username string `json:"username" binding:"required,notblank"`
	Accepted *bool  `json:"accepted" binding:"required"`
}

// ListNotifications godoc
// @Summary      Retrieve user notifications
// @Tags         Profiles
// @Produce      json
// @Param        page  query  int  false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.NotificationView]}
// @Router       /profiles/notifications/ [get]
func (h *Handler) ListNotifications(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	items, err := h.notificationService.List(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Notifications fetched", items)
}

// ReadNotification godoc
// @Summary      Mark one or all notifications as read
// @Tags         Profiles
// @Accept       json
// @Produce      json
// @Param        request  body  markReadRequest  true  "Target"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /profiles/notifications/ [post]
func (h *Handler) ReadNotification(c *gin.Context) {
	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), middleware.UserID(c), req.ID, req.MarkAllAsRead); err != nil {
		response.Error(c, err)
		return
	}
	msg := "Notification read"
	if req.MarkAllAsRead {
		msg = "Notifications read"
	}
	response.Success(c, msg, nil)
}

// ListFriends godoc
// @Summary      Retrieve friends
// @Tags         Profiles
// @Produce      json
// @Param        page  query  int  false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.UserSnapshot]}
// @Router       /profiles/friends/ [get]
func (h *Handler) ListFriends(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	friends, err := h.friendService.ListFriends(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Friends fetched", friends)
}

// ListFriendRequests godoc
// @Summary      Retrieve pending friend requests
// @Tags         Profiles
// @Produce      json
// @Param        page  query  int  false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.UserSnapshot]}
// @Router       /profiles/friends/requests/ [get]
func (h *Handler) ListFriendRequests(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	reqs, err := h.friendService.ListRequests(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Friend Requests fetched", reqs)
}

// SendFriendRequest godoc
// @Summary      Send a friend request
// @Tags         Profiles
// @Accept       json
// @Produce      json
// @Param        request  body  friendRequest  true  "Recipient"
// @Success      201  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /profiles/friends/requests/ [post]
func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	if err := h.friendService.SendRequest(c.Request.Context(), middleware.UserID(c), req.Username); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Friend Request sent", nil)
}

// RespondFriendRequest godoc
// @Summary      Accept or reject a friend request
// @Tags         Profiles
// @Accept       json
// @Produce      json
// @Param        request  body  friendResponseRequest  true  "Decision"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /profiles/friends/requests/ [put]
func (h *Handler) RespondFriendRequest(c *gin.Context) {
	var req friendResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	if err := h.friendService.Respond(c.Request.Context(), middleware.UserID(c), req.Username, *req.Accepted); err != nil {
		response.Error(c, err)
		return
	}
	msg := "Friend Request Accepted"
	if !*req.Accepted {
		msg = "Friend Request Rejected"
	}
	response.Success(c, msg, nil)
}

// RemoveFriend godoc
// @Summary      Unfriend or withdraw a request
// @Tags         Profiles
// @Produce      json
// @Param        username  path  string  true  "Other user"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /profiles/friends/{username}/ [delete]
func (h *Handler) RemoveFriend(c *gin.Context) {
	if err := h.friendService.Remove(c.Request.Context(), middleware.UserID(c), c.Param("username")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Friend removed", nil)
}
