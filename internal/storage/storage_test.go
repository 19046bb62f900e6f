package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
	"github.com/kayprogrammer/socialnet-v2/internal/testutil"
)

func TestSignUploadURL(t *testing.T) {
	s := NewSigner("demo", "key-1", "s3cret", "https://api.cloudinary.com/v1_1/%s/image/upload")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	data := s.SignUploadURL(&model.File{ID: "f1"}, FolderPosts)
	assert.Equal(t, "https://api.cloudinary.com/v1_1/demo/image/upload", data.UploadURL)
	assert.Equal(t, "1700000000", data.Timestamp)
	assert.Equal(t, "key-1", data.APIKey)
	assert.Equal(t, "f1", data.PublicID)

	sum := sha1.Sum([]byte("folder=posts&public_id=f1&timestamp=1700000000s3cret"))
	assert.Equal(t, hex.EncodeToString(sum[:]), data.Signature)
}

func TestURL(t *testing.T) {
	s := NewSigner("demo", "", "", "")
	assert.Nil(t, s.URL(FolderAvatars, nil))
	id := "abc"
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/avatars/abc", *s.URL(FolderAvatars, &id))
}

func TestReplaceReusesPlaceholder(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	f, err := AllocatePlaceholder(ctx, db, "image/png")
	require.NoError(t, err)

	same, err := Replace(ctx, db, &f.ID, "image/webp")
	require.NoError(t, err)
	assert.Equal(t, f.ID, same.ID)
	assert.Equal(t, "image/webp", same.ResourceType)

	missing := "gone"
	fresh, err := Replace(ctx, db, &missing, "image/gif")
	require.NoError(t, err)
	assert.NotEqual(t, missing, fresh.ID)

	var cnt int64
	require.NoError(t, db.Model(&model.File{}).Count(&cnt).Error)
	assert.EqualValues(t, 2, cnt)
}
