// Package relay 向已连接的 websocket 客户端推送状态变更事件。
// 不保存任何业务状态：事件总是在对应写入提交后发布
package relay

import (
	"context"
	"strings"
)

type Status string

const (
	StatusCreated Status = "CREATED"
	StatusUpdated Status = "UPDATED"
	StatusDeleted Status = "DELETED"
)

// Statuses 客户端回显允许的状态值
var Statuses = []string{string(StatusCreated), string(StatusUpdated), string(StatusDeleted)}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusUpdated, StatusDeleted:
		return true
	}
	return false
}

// Event 推送给客户端的唯一帧
type Event struct {
	Status Status `json:"status"`
	ID     string `json:"id"`
}

func ChatTopic(chatID string) string { return "chat:" + chatID }

func NotificationTopic(userID string) string { return "notifications:" + userID }

// IsChatTopic 判断 topic 是否属于会话 socket，并返回会话 id
func IsChatTopic(topic string) (string, bool) {
	return strings.CutPrefix(topic, "chat:")
}

// Publisher 业务服务依赖的发布接口
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

// Broker 将事件路由到订阅该 topic 的所有会话；origin 非空时跳过发出回显的会话
type Broker interface {
	Publisher
	Forward(ctx context.Context, topic string, ev Event, origin string) error
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) error { return nil }
