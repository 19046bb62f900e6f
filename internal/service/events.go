package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
)

type queuedEvent struct {
	topic string
	ev    relay.Event
}

// Events 事务执行期间收集 relay 事件，提交后由 Flush 按序发布；回滚的事务不会 Flush
type Events struct {
	items []queuedEvent
}

func (e *Events) Add(topic string, status relay.Status, id string) {
	e.items = append(e.items, queuedEvent{topic: topic, ev: relay.Event{Status: status, ID: id}})
}

func (e *Events) Len() int { return len(e.items) }

// Flush 发布收集到的事件；失败只记日志，写入已提交，客户端通过 REST 重新同步
func (e *Events) Flush(ctx context.Context, pub relay.Publisher) {
	if pub == nil {
		return
	}
	for _, it := range e.items {
		if err := pub.Publish(ctx, it.topic, it.ev); err != nil {
			logger.Warn("relay publish failed",
				zap.String("topic", it.topic),
				zap.String("status", string(it.ev.Status)),
				zap.String("id", it.ev.ID),
				zap.Error(err),
			)
		}
	}
	e.items = nil
}
