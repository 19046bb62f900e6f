package model

import "gorm.io/gorm"

// Models 本服务读写的全部表
func Models() []any {
	return []any{
		&User{}, &File{},
		&Chat{}, &ChatMember{}, &Message{},
		&Post{}, &Comment{}, &Reply{}, &Reaction{},
		&Notification{}, &NotificationReceiver{}, &NotificationRead{}, &BroadcastJob{},
		&Friend{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
