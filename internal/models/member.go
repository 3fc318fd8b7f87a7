package models

import "time"

// 群内角色
const (
	MemberRoleMember    = "MEMBER"
	MemberRoleModerator = "MODERATOR"
	MemberRoleAdmin     = "ADMIN"
)

// GroupMember 群成员关系，(group, user) 联合主键保证唯一
// 重复加入走 upsert，不报错
type GroupMember struct {
	GroupID uint `gorm:"primaryKey" json:"group_id"`
	UserID  uint `gorm:"primaryKey" json:"user_id"`

	Role string `gorm:"type:varchar(10);default:MEMBER" json:"role"`

	IsActive   bool       `gorm:"default:true;index:idx_members_user_active" json:"is_active"` // 软退出
	IsMuted    bool       `gorm:"default:false" json:"is_muted"`
	MutedUntil *time.Time `json:"muted_until"`

	JoinedAt   time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	LastReadAt *time.Time `json:"last_read_at"`
}

func (GroupMember) TableName() string {
	return "group_members"
}

// Muted 当前是否处于静音状态（永久静音或静音期未过）
func (m *GroupMember) Muted(now time.Time) bool {
	if !m.IsMuted {
		return false
	}
	if m.MutedUntil == nil {
		return true
	}
	return now.Before(*m.MutedUntil)
}
