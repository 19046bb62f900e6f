// Package storage 分配文件占位记录并为直传外部文件存储签名，文件内容不经过本服务
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kayprogrammer/socialnet-v2/internal/model"
)

// 上传目录
const (
	FolderAvatars  = "avatars"
	FolderPosts    = "posts"
	FolderMessages = "messages"
	FolderGroups   = "groups"
)

// ImageTypes 头像、帖子图片、群头像允许的类型
var ImageTypes = []string{"image/bmp", "image/gif", "image/jpeg", "image/png", "image/tiff", "image/webp"}

// FileTypes 消息附件允许的类型
var FileTypes = append(append([]string{}, ImageTypes...),
	"audio/mp3", "audio/mpeg", "audio/ogg", "audio/wav", "video/mp4",
	"application/pdf", "application/zip", "text/plain",
)

// UploadData 返回给客户端，由客户端直接上传
type UploadData struct {
	PublicID  string `json:"public_id"`
	Signature string `json:"signature"`
	Timestamp string `json:"timestamp"`
	APIKey    string `json:"api_key"`
	Folder    string `json:"folder"`
	UploadURL string `json:"upload_url"`
}

type Signer struct {
	cloudName string
	apiKey    string
	apiSecret string
	uploadURL string
	now       func() time.Time
}

// NewSigner uploadURL 可包含一个 %s，替换为 cloud name
func NewSigner(cloudName, apiKey, apiSecret, uploadURL string) *Signer {
	if strings.Contains(uploadURL, "%s") {
		uploadURL = fmt.Sprintf(uploadURL, cloudName)
	}
	return &Signer{cloudName: cloudName, apiKey: apiKey, apiSecret: apiSecret, uploadURL: uploadURL, now: time.Now}
}

// SignUploadURL 为上传到 folder 的文件签名：
// 按 key 排序的 "k=v" 以 "&" 连接后拼上 API secret，取 SHA-1 十六进制
func (s *Signer) SignUploadURL(file *model.File, folder string) UploadData {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	params := map[string]string{"folder": folder, "public_id": file.ID, "timestamp": ts}
	return UploadData{
		PublicID:  file.ID,
		Signature: s.sign(params),
		Timestamp: ts,
		APIKey:    s.apiKey,
		Folder:    folder,
		UploadURL: s.uploadURL,
	}
}

func (s *Signer) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + s.apiSecret))
	return hex.EncodeToString(sum[:])
}

// URL 返回文件的公开访问地址，id 为 nil 时返回 nil
func (s *Signer) URL(folder string, id *string) *string {
	if id == nil {
		return nil
	}
	u := fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s/%s", s.cloudName, folder, *id)
	return &u
}

// AllocatePlaceholder 记录客户端将要上传的文件行，db 传调用方的事务
func AllocatePlaceholder(ctx context.Context, db *gorm.DB, resourceType string) (*model.File, error) {
	f := &model.File{ID: uuid.New().String(), ResourceType: resourceType}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

func UpdateResourceType(ctx context.Context, db *gorm.DB, file *model.File, resourceType string) error {
	file.ResourceType = resourceType
	return db.WithContext(ctx).Model(file).Update("resource_type", resourceType).Error
}

// Replace id 对应的占位存在则复用，否则新分配
func Replace(ctx context.Context, db *gorm.DB, id *string, resourceType string) (*model.File, error) {
	if id != nil {
		var f model.File
		err := db.WithContext(ctx).Where("id = ?", *id).Take(&f).Error
		if err == nil {
			if err := UpdateResourceType(ctx, db, &f, resourceType); err != nil {
				return nil, err
			}
			return &f, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return AllocatePlaceholder(ctx, db, resourceType)
}
