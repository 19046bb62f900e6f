package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/metrics"
)

type envelope struct {
	Topic  string `json:"topic"`
	Event  Event  `json:"event"`
	Origin string `json:"origin,omitempty"`
}

// RedisBroker 通过单个 Redis pub/sub 频道发布，各实例投递给本地会话。
// 单频道保证同一发布者的顺序，即 topic 内的提交顺序
type RedisBroker struct {
	client  *redis.Client
	channel string
	hub     *Hub
}

func NewRedisBroker(client *redis.Client, channel string, hub *Hub) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, hub: hub}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, ev Event) error {
	return b.Forward(ctx, topic, ev, "")
}

func (b *RedisBroker) Forward(ctx context.Context, topic string, ev Event, origin string) error {
	payload, err := json.Marshal(envelope{Topic: topic, Event: ev, Origin: origin})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("relay: redis publish: %w", err)
	}
	metrics.RelayEvents.WithLabelValues(string(ev.Status)).Inc()
	return nil
}

// Run 订阅并持续投递直到 ctx 结束；订阅确认或失败后即返回，投递在后台进行
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("relay: redis subscribe: %w", err)
	}
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					logger.Warn("relay: bad bridge payload", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				b.hub.deliver(env.Topic, env.Event, env.Origin)
			}
		}
	}()
	return nil
}
