package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kayprogrammer/socialnet-v2/internal/api/middleware"
	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

type sendMessageRequest struct {
	ChatID   *string `json:"chat_id" binding:"omitempty,uuid"`
	Username *string `json:"username" binding:"omitempty,max=1000"`
	Text     *string `json:"text"`
	FileType *string `json:"file_type" binding:"omitempty,choice=file_type"`
}

type messageUpdateRequest struct {
	Text     *string `json:"text"`
	FileType *string `json:"file_type" binding:"omitempty,choice=file_type"`
}

type groupCreateRequest struct {
	Name           string   `json:"name" binding:"required,notblank,max=100"`
	Description    *string  `json:"description" binding:"omitempty,max=1000"`
	UsernamesToAdd []string `json:"usernames_to_add" binding:"required,min=1,max=99"`
	FileType       *string  `json:"file_type" binding:"omitempty,choice=image_type"`
}

type groupUpdateRequest struct {
	Name              *string  `json:"name" binding:"omitempty,max=100"`
	Description       *string  `json:"description" binding:"omitempty,max=1000"`
	UsernamesToAdd    []string `json:"usernames_to_add" binding:"omitempty,max=99"`
	UsernamesToRemove []string `json:"usernames_to_remove" binding:"omitempty,max=99"`
	FileType          *string  `json:"file_type" binding:"omitempty,choice=image_type"`
}

// ListChats godoc
// @Summary      Retrieve user chats
// @Description  Chats the caller owns or belongs to, most recently active first.
// @Tags         Chat
// @Produce      json
// @Param        page  query  int  false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.ChatView]}
// @Failure      401  {object}  response.Response
// @Router       /chats/ [get]
func (h *Handler) ListChats(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	chats, err := h.chatService.ListChats(c.Request.Context(), middleware.UserID(c), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Chats fetched", chats)
}

// SendMessage godoc
// @Summary      Send a message
// @Description  Sends into chat_id, or opens a DM with username when none exists.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body  sendMessageRequest  true  "Message"
// @Success      201  {object}  response.Response{data=service.MessageView}
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /chats/ [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	msg, err := h.chatService.SendMessage(c.Request.Context(), middleware.UserID(c), service.SendMessageInput{
		ChatID:   req.ChatID,
		Username: req.Username,
		Text:     req.Text,
		FileType: req.FileType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Message sent", msg)
}

// GetChat godoc
// @Summary      Retrieve a chat with its messages
// @Tags         Chat
// @Produce      json
// @Param        id    path   string  true   "Chat ID"
// @Param        page  query  int     false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=service.ChatDetail}
// @Failure      404  {object}  response.Response
// @Router       /chats/{id}/ [get]
func (h *Handler) GetChat(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	detail, err := h.chatService.GetChat(c.Request.Context(), middleware.UserID(c), c.Param("id"), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Messages fetched", detail)
}

// UpdateGroup godoc
// @Summary      Update a group chat
// @Description  Owner only. Membership changes are checked against the 100 participant cap.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        id       path  string              true  "Chat ID"
// @Param        request  body  groupUpdateRequest  true  "Patch"
// @Success      200  {object}  response.Response{data=service.GroupChatView}
// @Failure      404  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /chats/{id}/ [patch]
func (h *Handler) UpdateGroup(c *gin.Context) {
	var req groupUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	group, err := h.chatService.UpdateGroup(c.Request.Context(), middleware.UserID(c), c.Param("id"), service.GroupPatch{
		Name:              req.Name,
		Description:       req.Description,
		FileType:          req.FileType,
		UsernamesToAdd:    req.UsernamesToAdd,
		UsernamesToRemove: req.UsernamesToRemove,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Chat updated", group)
}

// DeleteGroup godoc
// @Summary      Delete a group chat
// @Tags         Chat
// @Produce      json
// @Param        id  path  string  true  "Chat ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /chats/{id}/ [delete]
func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.chatService.DeleteGroup(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Group Chat Deleted", nil)
}

// UpdateMessage godoc
// @Summary      Update a message
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        id       path  string                true  "Message ID"
// @Param        request  body  messageUpdateRequest  true  "Patch"
// @Success      200  {object}  response.Response{data=service.MessageView}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /chats/messages/{id}/ [put]
func (h *Handler) UpdateMessage(c *gin.Context) {
	var req messageUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	msg, err := h.chatService.UpdateMessage(c.Request.Context(), middleware.UserID(c), c.Param("id"), service.MessageUpdate{
		Text:     req.Text,
		FileType: req.FileType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Message updated", msg)
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Description  Deleting the last message of a DM deletes the DM too.
// @Tags         Chat
// @Produce      json
// @Param        id  path  string  true  "Message ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /chats/messages/{id}/ [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	if err := h.chatService.DeleteMessage(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Message deleted", nil)
}

// CreateGroup godoc
// @Summary      Create a group chat
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body  groupCreateRequest  true  "Group"
// @Success      201  {object}  response.Response{data=service.GroupChatView}
// @Failure      422  {object}  response.Response
// @Router       /chats/groups/group/ [post]
func (h *Handler) CreateGroup(c *gin.Context) {
	var req groupCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	group, err := h.chatService.CreateGroup(c.Request.Context(), middleware.UserID(c), service.GroupInput{
		Name:        req.Name,
		Description: req.Description,
		Usernames:   req.UsernamesToAdd,
		FileType:    req.FileType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Chat created", group)
}
