package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/storage"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
	"github.com/kayprogrammer/socialnet-v2/pkg/logger"
	"github.com/kayprogrammer/socialnet-v2/pkg/metrics"
)

// UserSnapshot 会话、动态、通知中嵌入的最小用户信息
type UserSnapshot struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Username string  `json:"username"`
	Avatar   *string `json:"avatar"`
}

// Directory 只读身份查询；配置了 Redis 时按 user:<id> 缓存快照
type Directory interface {
	Lookup(ctx context.Context, id string) (*UserSnapshot, error)
	LookupByUsername(ctx context.Context, username string) (*model.User, error)
	LookupMany(ctx context.Context, ids []string) (map[string]UserSnapshot, error)
	ResolveUsernames(ctx context.Context, usernames []string) ([]*model.User, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type directory struct {
	users  repository.UserRepository
	signer *storage.Signer
	cache  *redis.Client
	ttl    time.Duration
}

// NewDirectory cache 可为 nil
func NewDirectory(users repository.UserRepository, signer *storage.Signer, cache *redis.Client, ttl time.Duration) Directory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &directory{users: users, signer: signer, cache: cache, ttl: ttl}
}

func cacheKey(id string) string { return fmt.Sprintf("user:%s", id) }

func (d *directory) snapshot(u *model.User) UserSnapshot {
	snap := UserSnapshot{ID: u.ID, Name: u.FullName(), Username: u.Username}
	if d.signer != nil {
		snap.Avatar = d.signer.URL(storage.FolderAvatars, u.AvatarID)
	}
	return snap
}

// Lookup id 不存在时返回 NotFound
func (d *directory) Lookup(ctx context.Context, id string) (*UserSnapshot, error) {
	m, err := d.LookupMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	snap, ok := m[id]
	if !ok {
		return nil, errs.NotFound("User does not exist!")
	}
	return &snap, nil
}

func (d *directory) LookupByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := d.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if u == nil {
		return nil, errs.NotFound("User does not exist!")
	}
	return u, nil
}

// ResolveUsernames 返回存在的用户，忽略未知用户名
func (d *directory) ResolveUsernames(ctx context.Context, usernames []string) ([]*model.User, error) {
	users, err := d.users.ListByUsernames(ctx, usernames)
	if err != nil {
		return nil, errs.Internal(err)
	}
	return users, nil
}

func (d *directory) Exists(ctx context.Context, id string) (bool, error) {
	if d.cache != nil {
		if n, err := d.cache.Exists(ctx, cacheKey(id)).Result(); err == nil && n > 0 {
			return true, nil
		}
	}
	return d.users.Exists(ctx, id)
}

// LookupMany 返回存在的 id 对应的快照
func (d *directory) LookupMany(ctx context.Context, ids []string) (map[string]UserSnapshot, error) {
	out := make(map[string]UserSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if d.cache != nil {
		d.readCache(ctx, ids, out)
	}
	missing := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}
	users, err := d.users.ListByIDs(ctx, missing)
	if err != nil {
		return nil, errs.Internal(err)
	}
	var pipe redis.Pipeliner
	if d.cache != nil {
		pipe = d.cache.Pipeline()
	}
	for _, u := range users {
		snap := d.snapshot(u)
		out[u.ID] = snap
		if pipe != nil {
			if payload, err := json.Marshal(snap); err == nil {
				pipe.Set(ctx, cacheKey(u.ID), payload, d.ttl)
			}
		}
	}
	if pipe != nil && len(users) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("directory cache fill failed", zap.Error(err))
		}
	}
	return out, nil
}

func (d *directory) readCache(ctx context.Context, ids []string, out map[string]UserSnapshot) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}
	vals, err := d.cache.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("directory cache read failed", zap.Error(err))
		return
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			metrics.DirectoryCache.WithLabelValues("miss").Inc()
			continue
		}
		var snap UserSnapshot
		if err := json.Unmarshal([]byte(str), &snap); err != nil {
			continue
		}
		metrics.DirectoryCache.WithLabelValues("hit").Inc()
		out[ids[i]] = snap
	}
}

// snapshotOf 从 m 取快照；引用写入后用户被删除时只保留 id
func snapshotOf(m map[string]UserSnapshot, id string) UserSnapshot {
	if s, ok := m[id]; ok {
		return s
	}
	return UserSnapshot{ID: id}
}
