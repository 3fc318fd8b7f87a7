package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// 组织角色，决定通知写入哪张角色表
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
)

// User 用户目录（由外部 CRUD 模块维护，本核心只读 + 在线状态回写）
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `gorm:"not null;index" json:"role"` // ADMIN / MANAGER / EMPLOYEE
	AvatarURL    string `json:"avatar_url"`

	// Presence：仅由用户自己的连接生命周期更新
	IsOnline bool       `gorm:"default:false" json:"is_online"`
	LastSeen *time.Time `json:"last_seen"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName 展示名，空姓名时回退到邮箱前缀
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}
