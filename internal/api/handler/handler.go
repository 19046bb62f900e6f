package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kayprogrammer/socialnet-v2/internal/service"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

// Handler 聚合各业务服务的 HTTP 入口
type Handler struct {
	chatService         service.ChatService
	feedService         service.FeedService
	notificationService service.NotificationService
	friendService       service.FriendService
}

func NewHandler(chats service.ChatService, feed service.FeedService, notifications service.NotificationService, friends service.FriendService) *Handler {
	return &Handler{chatService: chats, feedService: feed, notificationService: notifications, friendService: friends}
}

// page 读取 page 查询参数（默认 1）
func page(c *gin.Context) (int, bool) {
	p, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || p < 1 {
		response.BadRequest(c, "Invalid page")
		return 0, false
	}
	return p, true
}

// HealthCheck godoc
// @Summary      Health check
// @Tags         HealthCheck
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /healthcheck/ [get]
func HealthCheck(c *gin.Context) {
	response.Success(c, "pong", nil)
}
