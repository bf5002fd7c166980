package models

import "time"

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:64;not null"`
	Surname      string `gorm:"size:64;not null"`
	PasswordHash string `gorm:"not null"`
	// 由活动事件推导出的缓存值（unix 秒），事件表才是事实来源。
	LastActive int64 `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Device struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"uniqueIndex:ux_device_owner,priority:1;not null"`
	IP        string `gorm:"size:45;uniqueIndex:ux_device_owner,priority:2;not null"`
	Name      string `gorm:"size:128;uniqueIndex:ux_device_owner,priority:3;not null"`
	IsActive  bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uint      `gorm:"index;not null"`
	DeviceID   uint      `gorm:"index;not null"`
	LastSeenAt time.Time `gorm:"index;not null"`
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

type Chat struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	OwnerID     uint   `gorm:"not null"`
	CreatedAt   time.Time
}

type Invitation struct {
	ID        uint `gorm:"primaryKey"`
	ChatID    uint `gorm:"uniqueIndex:ux_invitation,priority:1;not null"`
	UserID    uint `gorm:"uniqueIndex:ux_invitation,priority:2;not null"`
	CreatedAt time.Time
}

type Message struct {
	ID     uint `gorm:"primaryKey"`
	ChatID uint `gorm:"uniqueIndex:ux_msg_chat_seq,priority:1;not null"`
	// 聊天内单调递增的序号，排序以它为准而不是时间戳。
	Seq       uint64    `gorm:"uniqueIndex:ux_msg_chat_seq,priority:2;not null"`
	UserID    uint      `gorm:"index;not null"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null"`
}

const (
	ActivityLogin  = "login"
	ActivityLogout = "logout"
)

type ActivityEvent struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	DeviceID  uint      `gorm:"not null"`
	Kind      string    `gorm:"size:16;not null"`
	Timestamp time.Time `gorm:"not null"`
}
