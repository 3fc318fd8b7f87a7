package ws

import (
	"time"

	"github.com/axpect/staffhub/internal/services"
)

// 入站帧类型
const (
	FrameChatMessage          = "chat_message"
	FrameTypingIndicator      = "typing_indicator"
	FrameMessageRead          = "message_read"
	FrameMessageReaction      = "message_reaction"
	FrameMarkNotificationRead = "mark_notification_read"
)

// 出站帧类型（入站镜像之外）
const (
	FrameUserStatus   = "user_status"
	FrameNotification = "notification"
	FrameError        = "error"
)

// InboundFrame 客户端入站帧，按 type 取用对应字段
type InboundFrame struct {
	Type string `json:"type"`

	// chat_message
	Content string `json:"content,omitempty"`
	Kind    string `json:"kind,omitempty"`
	ReplyTo *int64 `json:"reply_to,omitempty"`

	// typing_indicator
	IsTyping bool `json:"is_typing,omitempty"`

	// message_read / message_reaction
	MessageID    int64  `json:"message_id,omitempty"`
	ReactionType string `json:"reaction_type,omitempty"`

	// mark_notification_read
	NotificationID uint `json:"notification_id,omitempty"`
}

// ChatMessageFrame 新消息广播，带提示音类型
type ChatMessageFrame struct {
	Type      string                `json:"type"`
	Message   *services.MessageView `json:"message"`
	SoundType string                `json:"sound_type"`
}

// TypingFrame 打字状态广播（不含发起者自己）
type TypingFrame struct {
	Type      string `json:"type"`
	UserID    uint   `json:"user_id"`
	UserName  string `json:"user_name"`
	IsTyping  bool   `json:"is_typing"`
	Timestamp string `json:"timestamp"`
}

// ReadFrame 已读回执广播
type ReadFrame struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	UserID    uint   `json:"user_id"`
	UserName  string `json:"user_name"`
	Timestamp string `json:"timestamp"`
}

// ReactionFrame 回应切换广播，action 为 added 或 removed
type ReactionFrame struct {
	Type         string `json:"type"`
	MessageID    int64  `json:"message_id"`
	UserID       uint   `json:"user_id"`
	UserName     string `json:"user_name"`
	ReactionType string `json:"reaction_type"`
	Action       string `json:"action"`
	Timestamp    string `json:"timestamp"`
}

// StatusFrame 成员上下线广播（不含状态变化者自己）
type StatusFrame struct {
	Type      string `json:"type"`
	UserID    uint   `json:"user_id"`
	UserName  string `json:"user_name"`
	Status    string `json:"status"` // online / offline
	Timestamp string `json:"timestamp"`
}

// ErrorFrame 回给发送者本人的错误提示
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func nowStamp() string {
	return time.Now().Format(time.RFC3339)
}
