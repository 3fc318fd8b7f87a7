package models

import "time"

// Group 类型
const (
	GroupDepartment = "DEPARTMENT" // 部门群
	GroupCustom     = "CUSTOM"     // 自建群
	GroupDirect     = "DIRECT"     // 私聊，固定两个成员
)

// ChatGroup 聊天群组，房间广播的归属范围
type ChatGroup struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name        string `gorm:"type:varchar(200);not null" json:"name"`
	Kind        string `gorm:"type:varchar(15);not null;index:idx_groups_kind_active" json:"kind"`
	Description string `json:"description"`

	// 部门群关联外部部门 ID，本核心不解引用
	DepartmentID *uint `json:"department_id"`

	IsActive   bool `gorm:"default:true;index:idx_groups_kind_active" json:"is_active"`
	MaxMembers int  `gorm:"default:100" json:"max_members"`

	CreatedByID *uint     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ChatGroup) TableName() string {
	return "chat_groups"
}

// IsDirect 是否私聊群
func (g *ChatGroup) IsDirect() bool {
	return g.Kind == GroupDirect
}
