package service

import (
	"errors"
	"strconv"
	"time"

	"chatserver/internal/metrics"
	"chatserver/internal/models"

	"gorm.io/gorm"
)

// MessageService 维护每个聊天内严格有序的消息日志。
type MessageService struct {
	db        *gorm.DB
	chatLocks entityLocks
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// MessageDTO 是对外输出的消息数据。
type MessageDTO struct {
	ID        uint      `json:"id"`
	ChatID    uint      `json:"chat_id"`
	Seq       uint64    `json:"seq"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Post 由成员向聊天追加一条消息。成员检查和写入共享同一个事务，
// 刚生效的邀请一定能被看到。消息序号在聊天内单调递增，
// 同一毫秒内的两条消息重放时也不会换位。
func (s *MessageService) Post(actorID, chatID uint, content string) (uint, error) {
	if content == "" {
		return 0, ErrValidation
	}
	unlock := s.chatLocks.lock(strconv.FormatUint(uint64(chatID), 10))
	defer unlock()

	var id uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownChat
			}
			return err
		}
		member, err := isMember(tx, actorID, chatID)
		if err != nil {
			return err
		}
		if !member {
			return ErrForbidden
		}
		var maxSeq uint64
		if err := tx.Model(&models.Message{}).
			Where("chat_id = ?", chatID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}
		msg := models.Message{
			ChatID:    chatID,
			Seq:       maxSeq + 1,
			UserID:    actorID,
			Content:   content,
			Timestamp: time.Now(),
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		id = msg.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	metrics.MessagesTotal.Inc()
	return id, nil
}

// List 返回聊天内的消息，按序号升序。sinceSeq 和 limit 为 0 时不设窗口。
// 非成员读取返回 ErrForbidden。
func (s *MessageService) List(actorID, chatID uint, sinceSeq uint64, limit int) ([]MessageDTO, error) {
	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownChat
		}
		return nil, err
	}
	member, err := isMember(s.db, actorID, chatID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrForbidden
	}

	q := s.db.Where("chat_id = ?", chatID)
	if sinceSeq > 0 {
		q = q.Where("seq > ?", sinceSeq)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var msgs []models.Message
	if err := q.Order("seq asc").Find(&msgs).Error; err != nil {
		return nil, err
	}

	usernames, err := s.resolveUsernames(msgs)
	if err != nil {
		return nil, err
	}

	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:        m.ID,
			ChatID:    m.ChatID,
			Seq:       m.Seq,
			UserID:    m.UserID,
			Username:  usernames[m.UserID],
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}

// resolveUsernames 批量获取消息涉及的用户名。
func (s *MessageService) resolveUsernames(msgs []models.Message) (map[uint]string, error) {
	seen := make(map[uint]struct{}, len(msgs))
	userIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		userIDs = append(userIDs, m.UserID)
	}

	usernames := make(map[uint]string, len(userIDs))
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.Select("id", "name").Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			usernames[u.ID] = u.Name
		}
	}
	return usernames, nil
}
