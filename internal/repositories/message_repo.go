package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/axpect/staffhub/internal/models"
)

// MessageRepository 即 Message Store，消息 ID 单调递增是房间顺序的唯一依据
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// validateReply reply_to 必须指向同群组的消息
func validateReply(tx *gorm.DB, msg *models.Message) error {
	if msg.ReplyToID == nil {
		return nil
	}
	var parent models.Message
	err := tx.First(&parent, *msg.ReplyToID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return err
	}
	if parent.GroupID != msg.GroupID {
		return ErrReplyCrossGroup
	}
	return nil
}

// Create 持久化消息
// reply_to 校验失败时整条创建失败，不产生任何副作用
func (r *MessageRepository) Create(msg *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := validateReply(tx, msg); err != nil {
			return err
		}
		return tx.Create(msg).Error
	})
}

// CreateWithDeliveries 同一事务内持久化消息并为每个接收者建 SENT 送达行
// 任一步失败整体回滚，历史里不会出现没有送达行的孤儿消息
func (r *MessageRepository) CreateWithDeliveries(msg *models.Message, recipientIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := validateReply(tx, msg); err != nil {
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return bulkCreateSentTx(tx, msg.ID, recipientIDs)
	})
}

// GetByID 查询单条消息，预加载发送者
func (r *MessageRepository) GetByID(id int64) (*models.Message, error) {
	var msg models.Message
	err := r.db.Preload("Sender").First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByGroup 房间历史，按创建顺序（ID 单调）非降序返回
// 与广播顺序一致，是"房间顺序"的权威来源
func (r *MessageRepository) ListByGroup(groupID uint, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("group_id = ? AND NOT is_deleted", groupID).
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Preload("Sender").
		Preload("ReplyTo.Sender").
		Find(&messages).Error
	return messages, err
}

// LatestID 群组内最新消息 ID，全量已读标记用
func (r *MessageRepository) LatestID(groupID uint) (int64, error) {
	var id int64
	err := r.db.Model(&models.Message{}).
		Where("group_id = ?", groupID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&id).Error
	return id, err
}
