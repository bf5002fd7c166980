package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chatserver/internal/auth"
	"chatserver/internal/config"
	"chatserver/internal/metrics"
	"chatserver/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// UserService 封装凭证校验与会话生命周期：注册、登录、登出、token 解析与过期回收。
type UserService struct {
	db       *gorm.DB
	cfg      config.Config
	activity *ActivityService
	devLocks entityLocks
}

func NewUserService(db *gorm.DB, cfg config.Config, activity *ActivityService) *UserService {
	return &UserService{db: db, cfg: cfg, activity: activity}
}

// UserDTO 是对外输出的用户数据，永远不携带口令散列。
type UserDTO struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	LastActive int64  `json:"last_active"`
}

// DeviceDTO 是对外输出的设备数据。
type DeviceDTO struct {
	IP       string `json:"ip"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Register 创建新用户。姓名可以重复，空的 name 或 password 视为非法输入。
func (s *UserService) Register(name, surname, password string) (*UserDTO, error) {
	name = strings.TrimSpace(name)
	surname = strings.TrimSpace(surname)
	if name == "" || password == "" {
		return nil, ErrValidation
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Name: name, Surname: surname, PasswordHash: hash, LastActive: time.Now().Unix()}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &UserDTO{ID: user.ID, Name: user.Name, Surname: user.Surname, LastActive: user.LastActive}, nil
}

// Login 校验口令后为 (user, device) 建立新会话并签发 token。
// 同一设备上已有的会话会被新会话顶掉，设备标记为活跃，并记录一条 login 事件。
// 整个流程在一个事务里完成，不会出现设备已建而会话未发的中间状态。
func (s *UserService) Login(userID uint, password, deviceIP, deviceName string) (string, error) {
	if deviceIP == "" {
		deviceIP = "0.0.0.0"
	}
	if deviceName == "" {
		deviceName = "unknown"
	}
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAuthenticationFailed
		}
		return "", err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return "", ErrAuthenticationFailed
	}

	unlock := s.devLocks.lock(fmt.Sprintf("%d|%s|%s", userID, deviceIP, deviceName))
	defer unlock()

	var token string
	var superseded int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var device models.Device
		err := tx.Where("user_id = ? AND ip = ? AND name = ?", userID, deviceIP, deviceName).First(&device).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			device = models.Device{UserID: userID, IP: deviceIP, Name: deviceName}
			if err := tx.Create(&device).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		now := time.Now()
		// 同一设备重新登录会顶掉旧会话，旧 token 随之永久失效。
		res := tx.Model(&models.Session{}).
			Where("device_id = ? AND revoked_at IS NULL", device.ID).
			Update("revoked_at", &now)
		if res.Error != nil {
			return res.Error
		}
		superseded = res.RowsAffected

		if err := tx.Model(&models.Device{}).Where("id = ?", device.ID).Update("is_active", true).Error; err != nil {
			return err
		}

		sess := models.Session{UserID: userID, DeviceID: device.ID, LastSeenAt: now}
		if err := tx.Create(&sess).Error; err != nil {
			return err
		}
		t, err := auth.GenerateSessionToken(sess.ID, userID, s.cfg.JWTSecret)
		if err != nil {
			return err
		}
		if err := s.activity.RecordLogin(tx, userID, device.ID, now); err != nil {
			return err
		}
		token = t
		return nil
	})
	if err != nil {
		return "", err
	}
	metrics.LoginsTotal.Inc()
	metrics.ActiveSessions.Add(1 - float64(superseded))
	return token, nil
}

// Logout 吊销会话、把绑定设备标记为不活跃并记录 logout 事件。
func (s *UserService) Logout(token string) error {
	claims, err := auth.ParseSessionToken(token, s.cfg.JWTSecret)
	if err != nil {
		return ErrInvalidSession
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.First(&sess, claims.SessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidSession
			}
			return err
		}
		if sess.RevokedAt != nil || s.expired(sess, time.Now()) {
			return ErrInvalidSession
		}
		now := time.Now()
		if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).Update("revoked_at", &now).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Device{}).Where("id = ?", sess.DeviceID).Update("is_active", false).Error; err != nil {
			return err
		}
		return s.activity.RecordLogout(tx, sess.UserID, sess.DeviceID, now)
	})
	if err != nil {
		return err
	}
	metrics.LogoutsTotal.Inc()
	metrics.ActiveSessions.Dec()
	return nil
}

// Resolve 把 token 换回 user_id，不产生任何副作用。
// 被吊销或过期的会话永远返回 ErrInvalidSession。
func (s *UserService) Resolve(token string) (uint, error) {
	claims, err := auth.ParseSessionToken(token, s.cfg.JWTSecret)
	if err != nil {
		return 0, ErrInvalidSession
	}
	var sess models.Session
	if err := s.db.First(&sess, claims.SessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrInvalidSession
		}
		return 0, err
	}
	if sess.RevokedAt != nil || s.expired(sess, time.Now()) {
		return 0, ErrInvalidSession
	}
	return sess.UserID, nil
}

// Heartbeat 续期会话并刷新用户的 last_active 缓存。
func (s *UserService) Heartbeat(token string) error {
	claims, err := auth.ParseSessionToken(token, s.cfg.JWTSecret)
	if err != nil {
		return ErrInvalidSession
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.First(&sess, claims.SessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidSession
			}
			return err
		}
		if sess.RevokedAt != nil || s.expired(sess, time.Now()) {
			return ErrInvalidSession
		}
		now := time.Now()
		if err := tx.Model(&models.Session{}).Where("id = ?", sess.ID).Update("last_seen_at", now).Error; err != nil {
			return err
		}
		return s.activity.Touch(tx, sess.UserID, now)
	})
}

// ListUsers 返回全部用户。
func (s *UserService) ListUsers() ([]UserDTO, error) {
	var users []models.User
	if err := s.db.Order("id asc").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, UserDTO{ID: u.ID, Name: u.Name, Surname: u.Surname, LastActive: u.LastActive})
	}
	return out, nil
}

// Devices 返回用户名下的设备历史，设备只增不删。
func (s *UserService) Devices(userID uint) ([]DeviceDTO, error) {
	var devices []models.Device
	if err := s.db.Where("user_id = ?", userID).Order("id asc").Find(&devices).Error; err != nil {
		return nil, err
	}
	out := make([]DeviceDTO, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceDTO{IP: d.IP, Name: d.Name, IsActive: d.IsActive})
	}
	return out, nil
}

func (s *UserService) expired(sess models.Session, now time.Time) bool {
	if s.cfg.SessionTTLSeconds <= 0 {
		return false
	}
	return now.Sub(sess.LastSeenAt) > time.Duration(s.cfg.SessionTTLSeconds)*time.Second
}

// ReapOnce 吊销一批超时未续期的会话，走与 Logout 相同的路径，
// 因此活动时间线里同样会出现 logout 事件。返回本次回收的数量。
func (s *UserService) ReapOnce(now time.Time) (int, error) {
	if s.cfg.SessionTTLSeconds <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-time.Duration(s.cfg.SessionTTLSeconds) * time.Second)
	var stale []models.Session
	if err := s.db.Where("revoked_at IS NULL AND last_seen_at < ?", cutoff).Find(&stale).Error; err != nil {
		return 0, err
	}
	reaped := 0
	for _, sess := range stale {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Session{}).
				Where("id = ? AND revoked_at IS NULL", sess.ID).
				Update("revoked_at", &now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			if err := tx.Model(&models.Device{}).Where("id = ?", sess.DeviceID).Update("is_active", false).Error; err != nil {
				return err
			}
			return s.activity.RecordLogout(tx, sess.UserID, sess.DeviceID, now)
		})
		if err != nil {
			return reaped, err
		}
		reaped++
		metrics.ActiveSessions.Dec()
	}
	return reaped, nil
}

// RunReaper 周期性回收过期会话，直到 stop 被关闭。TTL 未配置时直接返回。
func (s *UserService) RunReaper(stop <-chan struct{}) {
	if s.cfg.SessionTTLSeconds <= 0 {
		return
	}
	interval := time.Duration(s.cfg.ReaperIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := s.ReapOnce(time.Now())
			if err != nil {
				log.Error().Err(err).Msg("session reaper")
				continue
			}
			if n > 0 {
				log.Info().Int("reaped", n).Msg("expired sessions revoked")
			}
		}
	}
}
