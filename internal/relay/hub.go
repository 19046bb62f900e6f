package relay

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/metrics"
)

// Hub 进程内 topic -> session 路由。所有投递在同一把锁下串行，
// 同一发布者对同一 topic 的事件按提交顺序入队。
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Session]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Session]struct{})}
}

func (h *Hub) Publish(ctx context.Context, topic string, ev Event) error {
	return h.Forward(ctx, topic, ev, "")
}

func (h *Hub) Forward(_ context.Context, topic string, ev Event, origin string) error {
	metrics.RelayEvents.WithLabelValues(string(ev.Status)).Inc()
	h.deliver(topic, ev, origin)
	return nil
}

func (h *Hub) deliver(topic string, ev Event, origin string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.topics[topic] {
		if origin != "" && s.ID == origin {
			continue
		}
		s.enqueue(ev)
	}
}

func (h *Hub) attach(s *Session) {
	h.mu.Lock()
	set, ok := h.topics[s.Topic]
	if !ok {
		set = make(map[*Session]struct{})
		h.topics[s.Topic] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	metrics.RelaySessions.WithLabelValues(string(s.Kind)).Inc()
	logger.Debug("relay session attached", zap.String("session", s.ID), zap.String("topic", s.Topic), zap.String("user", s.UserID))
}

func (h *Hub) detach(s *Session) {
	h.mu.Lock()
	if set, ok := h.topics[s.Topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, s.Topic)
		}
	}
	h.mu.Unlock()
	metrics.RelaySessions.WithLabelValues(string(s.Kind)).Dec()
	logger.Debug("relay session detached", zap.String("session", s.ID), zap.String("topic", s.Topic))
}

// Sessions 返回订阅 topic 的会话数
func (h *Hub) Sessions(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[topic])
}
