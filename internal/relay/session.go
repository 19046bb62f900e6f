package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/metrics"
)

type Kind string

const (
	KindChat         Kind = "chat"
	KindNotification Kind = "notification"
)

// Options Server 打开的会话参数
type Options struct {
	QueueSize       int
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	FramesPerSecond float64
	Burst           int
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.FramesPerSecond <= 0 {
		o.FramesPerSecond = 10
	}
	if o.Burst <= 0 {
		o.Burst = 20
	}
	return o
}

// ErrorFrame 入站帧被拒绝时写回，连接保持打开
type ErrorFrame struct {
	Status  string            `json:"status"`
	Code    errs.Code         `json:"code"`
	Message string            `json:"message"`
	Data    map[string]string `json:"data,omitempty"`
}

func errorFrame(err error) ErrorFrame {
	f := ErrorFrame{Status: "error", Code: errs.CodeOf(err), Message: "Server Error"}
	var appErr *errs.AppError
	if errors.As(err, &appErr) && appErr.Code != errs.CodeServerError {
		f.Message = appErr.Message
		f.Data = appErr.Fields
	}
	return f
}

var pingCodec = websocket.Codec{
	Marshal: func(any) ([]byte, byte, error) { return nil, websocket.PingFrame, nil },
}

// Session 一条 websocket 连接；写 goroutine 独占 conn 的写入，hub 只操作有界队列
type Session struct {
	ID     string
	UserID string
	Topic  string
	Kind   Kind

	conn    *websocket.Conn
	opts    Options
	queue   chan Event
	control chan ErrorFrame
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func newSession(conn *websocket.Conn, kind Kind, userID, topic string, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		ID:      uuid.New().String(),
		UserID:  userID,
		Topic:   topic,
		Kind:    kind,
		conn:    conn,
		opts:    opts,
		queue:   make(chan Event, opts.QueueSize),
		control: make(chan ErrorFrame, 8),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(opts.FramesPerSecond), opts.Burst),
	}
}

// enqueue 不阻塞：队列满时丢弃最早的待发事件
func (s *Session) enqueue(ev Event) {
	for {
		select {
		case s.queue <- ev:
			return
		default:
		}
		select {
		case <-s.queue:
			metrics.RelayDropped.Inc()
			logger.Warn("relay queue full, drop oldest", zap.String("session", s.ID), zap.String("topic", s.Topic))
		default:
		}
	}
}

func (s *Session) sendError(err error) {
	metrics.RelayInboundRejected.WithLabelValues(string(errs.CodeOf(err))).Inc()
	select {
	case s.control <- errorFrame(err):
	default:
		logger.Warn("relay control queue full, drop error frame", zap.String("session", s.ID))
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.done)
		if s.conn != nil {
			_ = s.conn.Close()
		}
		for {
			select {
			case <-s.queue:
			default:
				return
			}
		}
	})
}

func (s *Session) write(v any, codec websocket.Codec) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	return codec.Send(s.conn, v)
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	defer s.close()
	for {
		var err error
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			err = s.write(ev, websocket.JSON)
		case f := <-s.control:
			err = s.write(f, websocket.JSON)
		case <-ticker.C:
			err = s.write(nil, pingCodec)
		}
		if err != nil {
			logger.Debug("relay write failed", zap.String("session", s.ID), zap.Error(err))
			return
		}
	}
}

// readLoop 将每个文本帧交给 onFrame，直到对端断开
func (s *Session) readLoop(onFrame func(raw []byte) error) {
	for {
		var raw []byte
		if err := websocket.Message.Receive(s.conn, &raw); err != nil {
			return
		}
		if !s.limiter.Allow() {
			s.sendError(errs.RateLimited("Too many frames, slow down"))
			continue
		}
		if err := onFrame(raw); err != nil {
			s.sendError(err)
		}
	}
}

// decodeEcho 校验客户端回显帧
func decodeEcho(raw []byte) (Event, error) {
	var in struct {
		Status *string `json:"status"`
		ID     *string `json:"id"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return Event{}, errs.InvalidInput("frame", "Invalid JSON")
	}
	fields := map[string]string{}
	if in.Status == nil {
		fields["status"] = "This field is required"
	} else if !Status(*in.Status).Valid() {
		fields["status"] = "Invalid choice! Allowed: CREATED, UPDATED, DELETED"
	}
	if in.ID == nil {
		fields["id"] = "This field is required"
	} else if _, err := uuid.Parse(*in.ID); err != nil {
		fields["id"] = "Invalid uuid"
	}
	if len(fields) > 0 {
		return Event{}, errs.InvalidFields(fields)
	}
	return Event{Status: Status(*in.Status), ID: *in.ID}, nil
}
