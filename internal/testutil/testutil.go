// Package testutil 为各包测试构建内存存储
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/relay"
	"github.com/kayprogrammer/socialnet-v2/pkg/database"
)

// NewDB 打开独立的内存 sqlite 并迁移全部表
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedUser 按 name 生成用户名和姓名并插入用户
func SeedUser(t testing.TB, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:        uuid.New().String(),
		Username:  name,
		Email:     name + "@example.com",
		FirstName: name,
		LastName:  "Test",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedUsers 插入 n 个用户 prefix0..prefixN-1
func SeedUsers(t testing.TB, db *gorm.DB, prefix string, n int) []*model.User {
	t.Helper()
	users := make([]*model.User, n)
	for i := range users {
		users[i] = SeedUser(t, db, fmt.Sprintf("%s%d", prefix, i))
	}
	return users
}

// Published 一次 Publish 调用记录
type Published struct {
	Topic string
	Event relay.Event
}

// Recorder 按顺序记录事件的 relay.Publisher
type Recorder struct {
	mu     sync.Mutex
	events []Published
}

func (r *Recorder) Publish(_ context.Context, topic string, ev relay.Event) error {
	r.mu.Lock()
	r.events = append(r.events, Published{Topic: topic, Event: ev})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.events...)
}

// On 返回发布到 topic 的事件
func (r *Recorder) On(topic string) []relay.Event {
	var out []relay.Event
	for _, p := range r.Events() {
		if p.Topic == topic {
			out = append(out, p.Event)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
