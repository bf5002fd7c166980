package service

import (
	"errors"
	"time"

	"chatserver/internal/models"

	"gorm.io/gorm"
)

// ActivityService 把会话生命周期事件汇聚成用户可见的活动时间线。
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// ActivityDTO 是对外输出的单条活动事件。
type ActivityDTO struct {
	Kind      string    `json:"kind"`
	DeviceID  uint      `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordLogin 在调用方的事务内追加 login 事件。
func (s *ActivityService) RecordLogin(tx *gorm.DB, userID, deviceID uint, ts time.Time) error {
	return s.record(tx, models.ActivityLogin, userID, deviceID, ts)
}

// RecordLogout 在调用方的事务内追加 logout 事件。
func (s *ActivityService) RecordLogout(tx *gorm.DB, userID, deviceID uint, ts time.Time) error {
	return s.record(tx, models.ActivityLogout, userID, deviceID, ts)
}

func (s *ActivityService) record(tx *gorm.DB, kind string, userID, deviceID uint, ts time.Time) error {
	ev := models.ActivityEvent{UserID: userID, DeviceID: deviceID, Kind: kind, Timestamp: ts}
	if err := tx.Create(&ev).Error; err != nil {
		return err
	}
	// last_active 只是缓存，总能由事件表重新推导。
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("last_active", ts.Unix()).Error
}

// Touch 仅刷新 last_active 缓存，heartbeat 使用。
func (s *ActivityService) Touch(tx *gorm.DB, userID uint, ts time.Time) error {
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("last_active", ts.Unix()).Error
}

// Timeline 返回用户完整的登录/登出历史，按发生顺序排列。
func (s *ActivityService) Timeline(userID uint) ([]ActivityDTO, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	var events []models.ActivityEvent
	if err := s.db.Where("user_id = ?", userID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}
	out := make([]ActivityDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, ActivityDTO{Kind: ev.Kind, DeviceID: ev.DeviceID, Timestamp: ev.Timestamp})
	}
	return out, nil
}

// IsActive 判断用户当前是否存在未吊销的会话。
func (s *ActivityService) IsActive(userID uint) (bool, error) {
	var count int64
	if err := s.db.Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
