package models

import "time"

// 表情回应类型
const (
	ReactionLike  = "LIKE"
	ReactionLove  = "LOVE"
	ReactionLaugh = "LAUGH"
	ReactionWow   = "WOW"
	ReactionSad   = "SAD"
	ReactionAngry = "ANGRY"
)

// MessageReaction (message, user, kind) 三元组唯一
// 存在即"已回应"，toggle 通过插入/删除实现
type MessageReaction struct {
	ID uint `gorm:"primaryKey" json:"id"`

	MessageID int64  `gorm:"not null;uniqueIndex:idx_reactions_triple" json:"message_id"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_reactions_triple" json:"user_id"`
	Kind      string `gorm:"type:varchar(10);not null;uniqueIndex:idx_reactions_triple" json:"kind"`

	CreatedAt time.Time `json:"created_at"`
}

func (MessageReaction) TableName() string {
	return "message_reactions"
}

// ValidReaction 校验回应类型
func ValidReaction(kind string) bool {
	switch kind {
	case ReactionLike, ReactionLove, ReactionLaugh, ReactionWow, ReactionSad, ReactionAngry:
		return true
	}
	return false
}
