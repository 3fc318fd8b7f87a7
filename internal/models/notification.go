package models

import "time"

// 三张角色通知表由外部目录模块各自的面板消费
// 本核心只负责按接收者角色写入对应的表（见 NotificationStore）

// NotificationAdmin 管理员通知
type NotificationAdmin struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	Title       string `gorm:"type:varchar(255)" json:"title"`
	Message     string `json:"message"`
	Kind        string `gorm:"type:varchar(20);default:message" json:"kind"`
	RedirectURL string `json:"redirect_url"`

	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NotificationAdmin) TableName() string {
	return "notifications_admin"
}

// NotificationManager 经理通知
type NotificationManager struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	Title       string `gorm:"type:varchar(255)" json:"title"`
	Message     string `json:"message"`
	Kind        string `gorm:"type:varchar(20);default:message" json:"kind"`
	RedirectURL string `json:"redirect_url"`

	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NotificationManager) TableName() string {
	return "notifications_manager"
}

// NotificationEmployee 员工通知
type NotificationEmployee struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`

	Title       string `gorm:"type:varchar(255)" json:"title"`
	Message     string `json:"message"`
	Kind        string `gorm:"type:varchar(20);default:message" json:"kind"`
	RedirectURL string `json:"redirect_url"`

	IsRead bool       `gorm:"default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NotificationEmployee) TableName() string {
	return "notifications_employee"
}
