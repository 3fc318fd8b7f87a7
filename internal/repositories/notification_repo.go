package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/axpect/staffhub/internal/models"
)

// NotificationRecord 角色无关的通知载荷
// {role, userId} 在此边界处解析一次，扇出逻辑不感知三张角色表
type NotificationRecord struct {
	UserID      uint
	Role        string
	Title       string
	Message     string
	Kind        string // message / direct_message
	RedirectURL string
}

// NotificationRepository 多态通知落库：按接收者的组织角色写入对应表
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 写入一条角色标记的通知行，返回新行 ID
func (r *NotificationRepository) Create(rec *NotificationRecord) (uint, error) {
	switch rec.Role {
	case models.RoleAdmin:
		row := models.NotificationAdmin{
			UserID:      rec.UserID,
			Title:       rec.Title,
			Message:     rec.Message,
			Kind:        rec.Kind,
			RedirectURL: rec.RedirectURL,
		}
		if err := r.db.Create(&row).Error; err != nil {
			return 0, err
		}
		return row.ID, nil
	case models.RoleManager:
		row := models.NotificationManager{
			UserID:      rec.UserID,
			Title:       rec.Title,
			Message:     rec.Message,
			Kind:        rec.Kind,
			RedirectURL: rec.RedirectURL,
		}
		if err := r.db.Create(&row).Error; err != nil {
			return 0, err
		}
		return row.ID, nil
	case models.RoleEmployee:
		row := models.NotificationEmployee{
			UserID:      rec.UserID,
			Title:       rec.Title,
			Message:     rec.Message,
			Kind:        rec.Kind,
			RedirectURL: rec.RedirectURL,
		}
		if err := r.db.Create(&row).Error; err != nil {
			return 0, err
		}
		return row.ID, nil
	default:
		return 0, ErrUnknownRole
	}
}

// MarkRead 接收者将自己的通知置为已读；通知行从不被本核心删除
func (r *NotificationRepository) MarkRead(role string, userID uint, notificationID uint) error {
	now := time.Now()
	updates := map[string]any{"is_read": true, "read_at": now}

	switch role {
	case models.RoleAdmin:
		return r.db.Model(&models.NotificationAdmin{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Updates(updates).Error
	case models.RoleManager:
		return r.db.Model(&models.NotificationManager{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Updates(updates).Error
	case models.RoleEmployee:
		return r.db.Model(&models.NotificationEmployee{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Updates(updates).Error
	default:
		return ErrUnknownRole
	}
}
