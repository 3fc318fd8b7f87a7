package models

import "time"

// 消息类型
const (
	MessageText   = "TEXT"
	MessageImage  = "IMAGE"
	MessageFile   = "FILE"
	MessageDrive  = "DRIVE_FILE"
	MessageSystem = "SYSTEM"
)

// Message 聊天消息
// ID 由 snowflake 生成，单调递增，即房间内的创建顺序
// ReplyTo 只能指向同群组的更早消息，结构上不可能成环
type Message struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	GroupID  uint   `gorm:"not null;index:idx_messages_group_id" json:"group_id"`
	SenderID uint   `gorm:"not null;index" json:"sender_id"`
	Kind     string `gorm:"type:varchar(15);default:TEXT" json:"kind"`
	Content  string `json:"content"`

	ReplyToID *int64 `json:"reply_to_id"`

	IsEdited  bool       `gorm:"default:false" json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at"`
	IsDeleted bool       `gorm:"default:false" json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at"`

	CreatedAt time.Time `gorm:"index:idx_messages_group_id" json:"created_at"`

	Sender  *User    `gorm:"foreignKey:SenderID" json:"-"`
	ReplyTo *Message `gorm:"foreignKey:ReplyToID" json:"-"`
}

func (Message) TableName() string {
	return "chat_messages"
}
