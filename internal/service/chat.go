package service

import (
	"errors"
	"strings"

	"chatserver/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatService 管理聊天的存在性与成员资格。成员资格一经授予不会被撤销。
type ChatService struct {
	db *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{db: db}
}

// ChatDTO 是对外输出的聊天数据。
type ChatDTO struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create 建立新聊天，创建者自动成为第一个成员。
func (s *ChatService) Create(ownerID uint, title, description string) (*ChatDTO, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrValidation
	}
	chat := models.Chat{Title: title, Description: description, OwnerID: ownerID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		inv := models.Invitation{ChatID: chat.ID, UserID: ownerID}
		return tx.Create(&inv).Error
	})
	if err != nil {
		return nil, err
	}
	return &ChatDTO{ID: chat.ID, Title: chat.Title, Description: chat.Description}, nil
}

// Invite 把 target 拉进聊天。只有已有成员可以邀请；重复邀请是幂等的成功。
func (s *ChatService) Invite(actorID, chatID, targetID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, chatID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownChat
			}
			return err
		}
		var target models.User
		if err := tx.First(&target, targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownUser
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
		inv := models.Invitation{ChatID: chatID, UserID: targetID}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&inv).Error
	})
}

// IsMember 查询用户是否为聊天成员，供消息层作为授权门槛。
func (s *ChatService) IsMember(userID, chatID uint) (bool, error) {
	return isMember(s.db, userID, chatID)
}

// ChatsFor 返回用户所在的全部聊天，按加入顺序排列。
func (s *ChatService) ChatsFor(userID uint) ([]ChatDTO, error) {
	var chats []models.Chat
	err := s.db.Table("chats").
		Select("chats.*").
		Joins("JOIN invitations ON invitations.chat_id = chats.id").
		Where("invitations.user_id = ?", userID).
		Order("invitations.id asc").
		Find(&chats).Error
	if err != nil {
		return nil, err
	}
	out := make([]ChatDTO, 0, len(chats))
	for _, c := range chats {
		out = append(out, ChatDTO{ID: c.ID, Title: c.Title, Description: c.Description})
	}
	return out, nil
}

func isMember(tx *gorm.DB, userID, chatID uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.Invitation{}).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
