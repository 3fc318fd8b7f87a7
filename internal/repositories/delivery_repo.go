package repositories

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axpect/staffhub/internal/models"
)

// DeliveryRepository 即 Delivery Tracker
// 状态机 SENT → DELIVERED → READ 的单调性完全由带守卫条件的 UPDATE 保证，
// 读取-判断-写回的竞态路径在这里不存在
type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// bulkCreateSentTx 在给定事务/连接上为每个接收者建一行 SENT 记录
// (message, user) 已存在则跳过，重复投递幂等
func bulkCreateSentTx(tx *gorm.DB, messageID int64, recipientIDs []uint) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	rows := make([]models.MessageDelivery, 0, len(recipientIDs))
	for _, uid := range recipientIDs {
		rows = append(rows, models.MessageDelivery{
			MessageID: messageID,
			UserID:    uid,
			Status:    models.DeliverySent,
		})
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// BulkCreateSent 广播时为每个接收者建一行 SENT 记录
func (r *DeliveryRepository) BulkCreateSent(messageID int64, recipientIDs []uint) error {
	return bulkCreateSentTx(r.db, messageID, recipientIDs)
}

// MarkDelivered 把 SENT 行推进到 DELIVERED；已是 DELIVERED/READ 的行不受影响
func (r *DeliveryRepository) MarkDelivered(userID uint, messageID int64) error {
	now := time.Now()
	return r.db.Model(&models.MessageDelivery{}).
		Where("message_id = ? AND user_id = ? AND status = ?",
			messageID, userID, models.DeliverySent).
		Updates(map[string]any{
			"status":       models.DeliveryDelivered,
			"delivered_at": now,
		}).Error
}

// MarkReadUpTo 批量已读：该用户在群内所有 ID 不大于 uptoMessageID 的未读行置 READ，
// 同一事务内推进成员关系上的 last_read_at 标记（派生值，未读数以送达行为准）
// uptoMessageID 为 0 表示全群已读
func (r *DeliveryRepository) MarkReadUpTo(userID, groupID uint, uptoMessageID int64) error {
	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.MessageDelivery{}).
			Where("user_id = ? AND status IN ?", userID,
				[]string{models.DeliverySent, models.DeliveryDelivered}).
			Where("message_id IN (?)", tx.Model(&models.Message{}).
				Select("id").Where("group_id = ?", groupID))
		if uptoMessageID > 0 {
			q = q.Where("message_id <= ?", uptoMessageID)
		}
		if err := q.Updates(map[string]any{
			"status":  models.DeliveryRead,
			"read_at": now,
		}).Error; err != nil {
			return err
		}

		return tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Update("last_read_at", now).Error
	})
}

// UnreadCount 未读数 = 该用户在群内状态未到 READ 的送达行数
func (r *DeliveryRepository) UnreadCount(userID, groupID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.MessageDelivery{}).
		Where("user_id = ? AND status <> ?", userID, models.DeliveryRead).
		Where("message_id IN (?)", r.db.Model(&models.Message{}).
			Select("id").Where("group_id = ?", groupID)).
		Count(&count).Error
	return count, err
}

// Get 查询单条送达记录
func (r *DeliveryRepository) Get(messageID int64, userID uint) (*models.MessageDelivery, error) {
	var d models.MessageDelivery
	err := r.db.Where("message_id = ? AND user_id = ?", messageID, userID).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByMessage 某条消息的全部送达记录，测试与回执查询用
func (r *DeliveryRepository) ListByMessage(messageID int64) ([]models.MessageDelivery, error) {
	var rows []models.MessageDelivery
	err := r.db.Where("message_id = ?", messageID).Find(&rows).Error
	return rows, err
}
