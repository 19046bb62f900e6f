package model

import "time"

// File 上传占位记录，字节本身由外部存储异步上传
type File struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	ResourceType string `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (File) TableName() string { return "files" }
