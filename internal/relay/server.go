package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/response"
)

const storeTimeout = 5 * time.Second

// Authenticator 将 bearer token 解析为用户 id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// ChatAccess 会话 socket 需要的存储查询
type ChatAccess interface {
	// Authorize 会话不存在返回 NotFound，既非群主也非成员返回 Forbidden
	Authorize(ctx context.Context, chatID, userID string) error
	// VerifyEcho 校验 ev.ID 是 userID 在 chatID 中发送的消息
	VerifyEcho(ctx context.Context, chatID, userID string, ev Event) error
}

// Server 将通过鉴权的请求升级为 relay 会话
type Server struct {
	hub     *Hub
	broker  Broker
	auth    Authenticator
	chats   ChatAccess
	opts    Options
	origins []string
}

// NewServer 会话挂到 hub 做本地投递；客户端回显经 broker 路由，可到达所有实例
func NewServer(hub *Hub, broker Broker, auth Authenticator, chats ChatAccess, opts Options, allowedOrigins []string) *Server {
	if broker == nil {
		broker = hub
	}
	return &Server{hub: hub, broker: broker, auth: auth, chats: chats, opts: opts.withDefaults(), origins: allowedOrigins}
}

// BearerToken 从 Authorization 头读取 token，浏览器客户端退回到 token 查询参数
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (s *Server) authenticate(c *gin.Context) (string, bool) {
	tok := BearerToken(c.Request)
	if tok == "" {
		response.Unauthorized(c, errs.Unauthenticated("Unauthorized User!"))
		return "", false
	}
	userID, err := s.auth.Authenticate(c.Request.Context(), tok)
	if err != nil {
		response.Unauthorized(c, err)
		return "", false
	}
	return userID, true
}

// ChatSocket godoc
// @Summary      Chat websocket
// @Description  Streams {status, id} events of one chat. Owner or members only.
// @Tags         Websockets
// @Param        id   path  string  true  "Chat ID"
// @Success      101
// @Failure      401  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /ws/chats/{id}/ [get]
func (s *Server) ChatSocket(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		return
	}
	chatID := c.Param("id")
	if err := s.chats.Authorize(c.Request.Context(), chatID, userID); err != nil {
		response.Error(c, err)
		return
	}
	topic := ChatTopic(chatID)
	s.upgrade(c, KindChat, userID, topic, func(ctx context.Context, sess *Session, raw []byte) error {
		ev, err := decodeEcho(raw)
		if err != nil {
			return err
		}
		if ev.Status != StatusDeleted {
			vctx, cancel := context.WithTimeout(ctx, storeTimeout)
			err = s.chats.VerifyEcho(vctx, chatID, userID, ev)
			cancel()
			if err != nil {
				return err
			}
		}
		if err := s.broker.Forward(ctx, topic, ev, sess.ID); err != nil {
			logger.Error("relay forward failed", zap.String("topic", topic), zap.Error(err))
			return errs.Internal(err)
		}
		return nil
	})
}

// NotificationSocket godoc
// @Summary      Notification websocket
// @Description  Streams {status, id} events of the caller's notifications. Receive only.
// @Tags         Websockets
// @Success      101
// @Failure      401  {object}  response.Response
// @Router       /ws/notifications/ [get]
func (s *Server) NotificationSocket(c *gin.Context) {
	userID, ok := s.authenticate(c)
	if !ok {
		return
	}
	s.upgrade(c, KindNotification, userID, NotificationTopic(userID), func(context.Context, *Session, []byte) error {
		return errs.InvalidInput("", "Notification sockets are receive only")
	})
}

type frameHandler func(ctx context.Context, sess *Session, raw []byte) error

func (s *Server) upgrade(c *gin.Context, kind Kind, userID, topic string, onFrame frameHandler) {
	ctx := context.WithoutCancel(c.Request.Context())
	ws := websocket.Server{
		Handshake: s.handshake,
		Handler: func(conn *websocket.Conn) {
			sess := newSession(conn, kind, userID, topic, s.opts)
			s.hub.attach(sess)
			go sess.writeLoop()
			sess.readLoop(func(raw []byte) error { return onFrame(ctx, sess, raw) })
			s.hub.detach(sess)
			sess.close()
		},
	}
	ws.ServeHTTP(c.Writer, c.Request)
}

func (s *Server) handshake(cfg *websocket.Config, req *http.Request) error {
	origin, err := websocket.Origin(cfg, req)
	if err != nil {
		return err
	}
	cfg.Origin = origin
	if len(s.origins) == 0 {
		return nil
	}
	if origin == nil {
		return errors.New("relay: missing origin")
	}
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin.Scheme+"://"+origin.Host) {
			return nil
		}
	}
	return fmt.Errorf("relay: origin %s not allowed", origin)
}
