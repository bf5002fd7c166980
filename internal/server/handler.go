package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"chatserver/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	users    *service.UserService
	chats    *service.ChatService
	msgs     *service.MessageService
	activity *service.ActivityService
}

func NewHandler(users *service.UserService, chats *service.ChatService, msgs *service.MessageService, activity *service.ActivityService) *Handler {
	return &Handler{users: users, chats: chats, msgs: msgs, activity: activity}
}

// respond 输出统一的成功信封，data 为空时省略。
func respond(c *gin.Context, data gin.H) {
	if data == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

// fail 把业务错误映射为 HTTP 状态码和稳定的错误标识。
func fail(c *gin.Context, err error) {
	status, kind := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": kind})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, service.ErrValidation.Error()
	case errors.Is(err, service.ErrAuthenticationFailed):
		return http.StatusUnauthorized, service.ErrAuthenticationFailed.Error()
	case errors.Is(err, service.ErrInvalidSession):
		return http.StatusUnauthorized, service.ErrInvalidSession.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, service.ErrUnknownUser):
		return http.StatusNotFound, service.ErrUnknownUser.Error()
	case errors.Is(err, service.ErrUnknownChat):
		return http.StatusNotFound, service.ErrUnknownChat.Error()
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// extractSessionID 先看 query 参数，再从 JSON body 里取 session_id，
// body 读出后原样放回，后续 handler 仍可绑定。
func extractSessionID(c *gin.Context) string {
	if v := c.Query("session_id"); v != "" {
		return v
	}
	if c.Request.Body == nil {
		return ""
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(data))
	var probe struct {
		SessionID string `json:"session_id"`
	}
	if json.Unmarshal(data, &probe) == nil {
		return probe.SessionID
	}
	return ""
}

// SessionRequired 校验 session_id 并把解析出的 user_id 注入上下文。
func (h *Handler) SessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractSessionID(c)
		if token == "" {
			fail(c, service.ErrInvalidSession)
			return
		}
		uid, err := h.users.Resolve(token)
		if err != nil {
			fail(c, err)
			return
		}
		c.Set("userID", uid)
		c.Set("sessionToken", token)
		c.Next()
	}
}

func userID(c *gin.Context) uint {
	if v, ok := c.Get("userID"); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

func sessionToken(c *gin.Context) string {
	if v, ok := c.Get("sessionToken"); ok {
		if t, ok2 := v.(string); ok2 {
			return t
		}
	}
	return ""
}

// Register 处理用户注册请求。
func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Surname  string `json:"surname"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, service.ErrValidation)
		return
	}
	user, err := h.users.Register(req.Name, req.Surname, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"user_id": user.ID})
}

// ListUsers 返回全部用户。
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers()
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"users": users})
}

// Login 处理登录请求，设备 IP 缺省取请求来源地址。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		UserID     uint   `json:"user_id"`
		Password   string `json:"password"`
		DeviceIP   string `json:"device_ip"`
		DeviceName string `json:"device_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, service.ErrValidation)
		return
	}
	if req.DeviceIP == "" {
		req.DeviceIP = c.ClientIP()
	}
	token, err := h.users.Login(req.UserID, req.Password, req.DeviceIP, req.DeviceName)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"session_id": token, "user_id": req.UserID})
}

// Logout 吊销当前会话。
func (h *Handler) Logout(c *gin.Context) {
	if err := h.users.Logout(sessionToken(c)); err != nil {
		fail(c, err)
		return
	}
	respond(c, nil)
}

// CreateChat 建立新聊天，调用者自动入群。
func (h *Handler) CreateChat(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, service.ErrValidation)
		return
	}
	chat, err := h.chats.Create(userID(c), req.Title, req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"chat_id": chat.ID})
}

// ListChats 返回调用者所在的聊天，按加入顺序排列。
func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.chats.ChatsFor(userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"chats": chats})
}

// PostMessage 向聊天追加消息。
func (h *Handler) PostMessage(c *gin.Context) {
	var req struct {
		ChatID  uint   `json:"chat_id"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, service.ErrValidation)
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	id, err := h.msgs.Post(userID(c), req.ChatID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"message_id": id})
}

// ListMessages 返回聊天内的消息，支持 since_seq/limit 窗口。
func (h *Handler) ListMessages(c *gin.Context) {
	var chatID, sinceSeq uint64
	var limit int
	if c.Request.Method == http.MethodGet {
		chatID, _ = strconv.ParseUint(c.Query("chat_id"), 10, 64)
		sinceSeq, _ = strconv.ParseUint(c.Query("since_seq"), 10, 64)
		limit, _ = strconv.Atoi(c.Query("limit"))
	} else {
		var req struct {
			ChatID   uint   `json:"chat_id"`
			SinceSeq uint64 `json:"since_seq"`
			Limit    int    `json:"limit"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, service.ErrValidation)
			return
		}
		chatID = uint64(req.ChatID)
		sinceSeq = req.SinceSeq
		limit = req.Limit
	}
	if chatID == 0 {
		fail(c, service.ErrValidation)
		return
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 200 {
		limit = 200
	}
	msgs, err := h.msgs.List(userID(c), uint(chatID), sinceSeq, limit)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"messages": msgs})
}

// Invite 把目标用户拉进聊天，重复邀请幂等成功。
func (h *Handler) Invite(c *gin.Context) {
	var req struct {
		ChatID uint `json:"chat_id"`
		UserID uint `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, service.ErrValidation)
		return
	}
	if err := h.chats.Invite(userID(c), req.ChatID, req.UserID); err != nil {
		fail(c, err)
		return
	}
	respond(c, nil)
}

// Devices 返回调用者的设备历史。
func (h *Handler) Devices(c *gin.Context) {
	devices, err := h.users.Devices(userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"devices": devices})
}

// Heartbeat 续期当前会话。
func (h *Handler) Heartbeat(c *gin.Context) {
	if err := h.users.Heartbeat(sessionToken(c)); err != nil {
		fail(c, err)
		return
	}
	respond(c, nil)
}

// GetActivity 返回用户的活动时间线和当前是否在线。
func (h *Handler) GetActivity(c *gin.Context) {
	var uid uint64
	if v := c.Query("user_id"); v != "" {
		uid, _ = strconv.ParseUint(v, 10, 64)
	} else {
		var req struct {
			UserID uint `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			uid = uint64(req.UserID)
		}
	}
	if uid == 0 {
		fail(c, service.ErrValidation)
		return
	}
	events, err := h.activity.Timeline(uint(uid))
	if err != nil {
		fail(c, err)
		return
	}
	active, err := h.activity.IsActive(uint(uid))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, gin.H{"user_id": uid, "active": active, "events": events})
}
