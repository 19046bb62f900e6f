package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/kayprogrammer/socialnet-v2/docs"
	"github.com/kayprogrammer/socialnet-v2/internal/api/handler"
	"github.com/kayprogrammer/socialnet-v2/internal/api/middleware"
	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/internal/storage"
	"github.com/kayprogrammer/socialnet-v2/pkg/validation"
)

const (
	apiPrefix = "/api/v2"
	wsPrefix  = apiPrefix + "/ws/"
)

type Options struct {
	Mode        string
	ServiceName string
	Sentry      bool
	Tracing     bool
}

// NewRouter 组装中间件与路由
func NewRouter(opts Options, h *handler.Handler, ws *relay.Server, auth relay.Authenticator) (*gin.Engine, error) {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if err := setupValidation(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if opts.Tracing {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(middleware.Logger())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{wsPrefix, "/metrics"})))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v2 := r.Group(apiPrefix)
	v2.GET("/healthcheck/", handler.HealthCheck)

	sockets := v2.Group("/ws")
	sockets.GET("/chats/:id/", ws.ChatSocket)
	sockets.GET("/notifications/", ws.NotificationSocket)

	authed := v2.Group("", middleware.Auth(auth))

	chats := authed.Group("/chats")
	chats.GET("/", h.ListChats)
	chats.POST("/", h.SendMessage)
	chats.GET("/:id/", h.GetChat)
	chats.PATCH("/:id/", h.UpdateGroup)
	chats.DELETE("/:id/", h.DeleteGroup)
	chats.PUT("/messages/:id/", h.UpdateMessage)
	chats.DELETE("/messages/:id/", h.DeleteMessage)
	chats.POST("/groups/group/", h.CreateGroup)

	feed := v2.Group("/feed")
	feed.GET("/posts/", h.ListPosts)
	feed.GET("/posts/:slug/", h.GetPost)
	feed.GET("/posts/:slug/comments/", h.ListComments)
	feed.GET("/reactions/:kind/:slug/", h.ListReactions)
	feed.GET("/comments/:slug/", h.GetComment)
	feed.GET("/replies/:slug/", h.GetReply)

	feedAuthed := authed.Group("/feed")
	feedAuthed.POST("/posts/", h.CreatePost)
	feedAuthed.PUT("/posts/:slug/", h.UpdatePost)
	feedAuthed.DELETE("/posts/:slug/", h.DeletePost)
	feedAuthed.POST("/reactions/:kind/:slug/", h.CreateReaction)
	feedAuthed.DELETE("/reactions/:id/", h.DeleteReaction)
	feedAuthed.POST("/posts/:slug/comments/", h.CreateComment)
	feedAuthed.POST("/comments/:slug/", h.CreateReply)
	feedAuthed.PUT("/comments/:slug/", h.UpdateComment)
	feedAuthed.DELETE("/comments/:slug/", h.DeleteComment)
	feedAuthed.PUT("/replies/:slug/", h.UpdateReply)
	feedAuthed.DELETE("/replies/:slug/", h.DeleteReply)

	profiles := authed.Group("/profiles")
	profiles.GET("/notifications/", h.ListNotifications)
	profiles.POST("/notifications/", h.ReadNotification)
	profiles.GET("/friends/", h.ListFriends)
	profiles.GET("/friends/requests/", h.ListFriendRequests)
	profiles.POST("/friends/requests/", h.SendFriendRequest)
	profiles.PUT("/friends/requests/", h.RespondFriendRequest)
	profiles.DELETE("/friends/:username/", h.RemoveFriend)

	return r, nil
}

func setupValidation() error {
	rtypes := make([]string, len(model.ReactionTypes))
	for i, t := range model.ReactionTypes {
		rtypes[i] = string(t)
	}
	validation.RegisterChoices("rtype", rtypes...)
	validation.RegisterChoices("image_type", storage.ImageTypes...)
	validation.RegisterChoices("file_type", storage.FileTypes...)
	return validation.Setup()
}
