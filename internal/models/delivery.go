package models

import "time"

// 送达状态机：SENT → DELIVERED → READ，只进不退
const (
	DeliverySent      = "SENT"
	DeliveryDelivered = "DELIVERED"
	DeliveryRead      = "READ"
)

// MessageDelivery 每条消息对每个接收者一行，(message, user) 联合主键
type MessageDelivery struct {
	MessageID int64 `gorm:"primaryKey" json:"message_id"`
	UserID    uint  `gorm:"primaryKey;index:idx_deliveries_user_status" json:"user_id"`

	Status string `gorm:"type:varchar(10);default:SENT;index:idx_deliveries_user_status" json:"status"`

	SentAt      time.Time  `gorm:"autoCreateTime" json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at"`
}

func (MessageDelivery) TableName() string {
	return "message_deliveries"
}

// deliveryRank 状态偏序，用于单调性判断
func deliveryRank(status string) int {
	switch status {
	case DeliverySent:
		return 0
	case DeliveryDelivered:
		return 1
	case DeliveryRead:
		return 2
	default:
		return -1
	}
}

// DeliveryAdvances 判断 from → to 是否是合法的前进转移
// 回退（或原地踏步）不是错误，调用方按 no-op 处理
func DeliveryAdvances(from, to string) bool {
	f, t := deliveryRank(from), deliveryRank(to)
	return f >= 0 && t >= 0 && t > f
}
