package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/axpect/staffhub/internal/models"
)

// ReactionRepository 即 Reaction Registry
type ReactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// Toggle 切换回应：尝试插入，三元组冲突说明已存在，转为删除
// 并发同键 toggle 由唯一约束收敛到同一终态，不产生错误
func (r *ReactionRepository) Toggle(messageID int64, userID uint, kind string) (added bool, err error) {
	if !models.ValidReaction(kind) {
		return false, ErrInvalidReaction
	}

	reaction := models.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Kind:      kind,
	}
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(&reaction)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// 冲突分支：别人（或自己先前）已加过，删除即"取消回应"
	err = r.db.Where("message_id = ? AND user_id = ? AND kind = ?", messageID, userID, kind).
		Delete(&models.MessageReaction{}).Error
	return false, err
}

// ListByMessage 某条消息的全部回应
func (r *ReactionRepository) ListByMessage(messageID int64) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction
	err := r.db.Where("message_id = ?", messageID).Find(&reactions).Error
	return reactions, err
}
