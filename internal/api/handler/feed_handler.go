package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kayprogrammer/socialnet-v2/internal/api/middleware"
	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

type postRequest struct {
	Text     string  `json:"text" binding:"required,notblank"`
	FileType *string `json:"file_type" binding:"omitempty,choice=image_type"`
}

type postUpdateRequest struct {
	Text     *string `json:"text"`
	FileType *string `json:"file_type" binding:"omitempty,choice=image_type"`
}

type reactionRequest struct {
	RType string `json:"rtype" binding:"required,choice=rtype"`
}

type textRequest struct {
	Text string `json:"text" binding:"required,notblank"`
}

// ListPosts godoc
// @Summary      Retrieve latest posts
// @Tags         Feed
// @Produce      json
// @Param        page  query  int  false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.PostView]}
// @Router       /feed/posts/ [get]
func (h *Handler) ListPosts(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	posts, err := h.feedService.ListPosts(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Posts fetched", posts)
}

// CreatePost godoc
// @Summary      Create a post
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        request  body  postRequest  true  "Post"
// @Success      201  {object}  response.Response{data=service.PostView}
// @Failure      422  {object}  response.Response
// @Router       /feed/posts/ [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	post, err := h.feedService.CreatePost(c.Request.Context(), middleware.UserID(c), service.PostInput{Text: &req.Text, FileType: req.FileType})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Post created", post)
}

// GetPost godoc
// @Summary      Retrieve a post
// @Tags         Feed
// @Produce      json
// @Param        slug  path  string  true  "Post slug"
// @Success      200  {object}  response.Response{data=service.PostView}
// @Failure      404  {object}  response.Response
// @Router       /feed/posts/{slug}/ [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.feedService.GetPost(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Post Detail fetched", post)
}

// UpdatePost godoc
// @Summary      Update a post
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        slug     path  string             true  "Post slug"
// @Param        request  body  postUpdateRequest  true  "Patch"
// @Success      200  {object}  response.Response{data=service.PostView}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/posts/{slug}/ [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	var req postUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	post, err := h.feedService.UpdatePost(c.Request.Context(), middleware.UserID(c), c.Param("slug"), service.PostInput{Text: req.Text, FileType: req.FileType})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Post updated", post)
}

// DeletePost godoc
// @Summary      Delete a post
// @Tags         Feed
// @Produce      json
// @Param        slug  path  string  true  "Post slug"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/posts/{slug}/ [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.feedService.DeletePost(c.Request.Context(), middleware.UserID(c), c.Param("slug")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Post deleted", nil)
}

// ListReactions godoc
// @Summary      Retrieve reactions of a post, comment or reply
// @Tags         Feed
// @Produce      json
// @Param        kind        path   string  true   "POST, COMMENT or REPLY"
// @Param        slug        path   string  true   "Target slug"
// @Param        reaction_type  query  string  false  "Filter by rtype"
// @Param        page        query  int     false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.ReactionView]}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/reactions/{kind}/{slug}/ [get]
func (h *Handler) ListReactions(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	rtype := model.ReactionType(c.Query("reaction_type"))
	reactions, err := h.feedService.ListReactions(c.Request.Context(), c.Param("kind"), c.Param("slug"), rtype, p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Reactions fetched", reactions)
}

// CreateReaction godoc
// @Summary      React to a post, comment or reply
// @Description  One reaction per user and target; reacting again changes the type.
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        kind     path  string           true  "POST, COMMENT or REPLY"
// @Param        slug     path  string           true  "Target slug"
// @Param        request  body  reactionRequest  true  "Reaction"
// @Success      201  {object}  response.Response{data=service.ReactionView}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/reactions/{kind}/{slug}/ [post]
func (h *Handler) CreateReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	reaction, created, err := h.feedService.CreateOrUpdateReaction(c.Request.Context(), middleware.UserID(c), c.Param("kind"), c.Param("slug"), model.ReactionType(req.RType))
	if err != nil {
		response.Error(c, err)
		return
	}
	if created {
		response.Created(c, "Reaction created", reaction)
		return
	}
	response.Success(c, "Reaction updated", reaction)
}

// DeleteReaction godoc
// @Summary      Remove a reaction
// @Tags         Feed
// @Produce      json
// @Param        id  path  string  true  "Reaction ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/reactions/{id}/ [delete]
func (h *Handler) DeleteReaction(c *gin.Context) {
	if err := h.feedService.RemoveReaction(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Reaction deleted", nil)
}

// ListComments godoc
// @Summary      Retrieve comments of a post
// @Tags         Feed
// @Produce      json
// @Param        slug  path   string  true   "Post slug"
// @Param        page  query  int     false  "Page number"  default(1)
// @Success      200  {object}  response.Response{data=pagination.Page[service.CommentView]}
// @Failure      404  {object}  response.Response
// @Router       /feed/posts/{slug}/comments/ [get]
func (h *Handler) ListComments(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	comments, err := h.feedService.ListComments(c.Request.Context(), c.Param("slug"), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Comments Fetched", comments)
}

// CreateComment godoc
// @Summary      Comment on a post
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        slug     path  string       true  "Post slug"
// @Param        request  body  textRequest  true  "Comment"
// @Success      201  {object}  response.Response{data=service.CommentView}
// @Failure      404  {object}  response.Response
// @Router       /feed/posts/{slug}/comments/ [post]
func (h *Handler) CreateComment(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	comment, err := h.feedService.CreateComment(c.Request.Context(), middleware.UserID(c), c.Param("slug"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Comment Created", comment)
}

// GetComment godoc
// @Summary      Retrieve a comment with its replies
// @Tags         Feed
// @Produce      json
// @Param        slug  path   string  true   "Comment slug"
// @Param        page  query  int     false  "Replies page"  default(1)
// @Success      200  {object}  response.Response{data=service.CommentWithReplies}
// @Failure      404  {object}  response.Response
// @Router       /feed/comments/{slug}/ [get]
func (h *Handler) GetComment(c *gin.Context) {
	p, ok := page(c)
	if !ok {
		return
	}
	comment, err := h.feedService.GetComment(c.Request.Context(), c.Param("slug"), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Comment and Replies Fetched", comment)
}

// CreateReply godoc
// @Summary      Reply to a comment
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        slug     path  string       true  "Comment slug"
// @Param        request  body  textRequest  true  "Reply"
// @Success      201  {object}  response.Response{data=service.ReplyView}
// @Failure      404  {object}  response.Response
// @Router       /feed/comments/{slug}/ [post]
func (h *Handler) CreateReply(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	reply, err := h.feedService.CreateReply(c.Request.Context(), middleware.UserID(c), c.Param("slug"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Reply Created", reply)
}

// UpdateComment godoc
// @Summary      Update a comment
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        slug     path  string       true  "Comment slug"
// @Param        request  body  textRequest  true  "Comment"
// @Success      200  {object}  response.Response{data=service.CommentView}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/comments/{slug}/ [put]
func (h *Handler) UpdateComment(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	comment, err := h.feedService.UpdateComment(c.Request.Context(), middleware.UserID(c), c.Param("slug"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Comment Updated", comment)
}

// DeleteComment godoc
// @Summary      Delete a comment
// @Tags         Feed
// @Produce      json
// @Param        slug  path  string  true  "Comment slug"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/comments/{slug}/ [delete]
func (h *Handler) DeleteComment(c *gin.Context) {
	if err := h.feedService.DeleteComment(c.Request.Context(), middleware.UserID(c), c.Param("slug")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Comment Deleted", nil)
}

// GetReply godoc
// @Summary      Retrieve a reply
// @Tags         Feed
// @Produce      json
// @Param        slug  path  string  true  "Reply slug"
// @Success      200  {object}  response.Response{data=service.ReplyView}
// @Failure      404  {object}  response.Response
// @Router       /feed/replies/{slug}/ [get]
func (h *Handler) GetReply(c *gin.Context) {
	reply, err := h.feedService.GetReply(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Reply Fetched", reply)
}

// UpdateReply godoc
// @Summary      Update a reply
// @Tags         Feed
// @Accept       json
// @Produce      json
// @Param        slug     path  string       true  "Reply slug"
// @Param        request  body  textRequest  true  "Reply"
// @Success      200  {object}  response.Response{data=service.ReplyView}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/replies/{slug}/ [put]
func (h *Handler) UpdateReply(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Bind(c, err)
		return
	}
	reply, err := h.feedService.UpdateReply(c.Request.Context(), middleware.UserID(c), c.Param("slug"), req.Text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Reply Updated", reply)
}

// DeleteReply godoc
// @Summary      Delete a reply
// @Tags         Feed
// @Produce      json
// @Param        slug  path  string  true  "Reply slug"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /feed/replies/{slug}/ [delete]
func (h *Handler) DeleteReply(c *gin.Context) {
	if err := h.feedService.DeleteReply(c.Request.Context(), middleware.UserID(c), c.Param("slug")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Reply Deleted", nil)
}
