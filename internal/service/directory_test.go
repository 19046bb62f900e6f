package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/repository"
	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

func TestDirectoryCachesSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.NewDB(t)
	ctx := context.Background()
	ann := testutil.SeedUser(t, db, "ann")
	dir := NewDirectory(repository.NewUserRepository(db), nil, rdb, time.Minute)

	snaps, err := dir.LookupMany(ctx, []string{ann.ID, ann.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
	assert.Equal(t, "ann Test", snaps[ann.ID].Name)
	assert.True(t, mr.Exists("user:"+ann.ID))
	assert.Equal(t, time.Minute, mr.TTL("user:"+ann.ID))

	// 行被修改后仍从缓存返回
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", ann.ID).Update("first_name", "Annie").Error)
	snap, err := dir.Lookup(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann Test", snap.Name)

	ok, err := dir.Exists(ctx, ann.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = dir.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDirectoryWithoutCache(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	users := testutil.SeedUsers(t, db, "u", 3)
	dir := NewDirectory(repository.NewUserRepository(db), nil, nil, 0)

	resolved, err := dir.ResolveUsernames(ctx, []string{"u0", "u2", "nobody"})
	require.NoError(t, err)
	assert.Len(t, resolved, 2)

	u, err := dir.LookupByUsername(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, users[1].ID, u.ID)

	_, err = dir.LookupByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, errs.ErrNotFound)

	ok, err := dir.Exists(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}
