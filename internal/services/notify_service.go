package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/axpect/staffhub/internal/models"
	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/internal/utils"
	logger "github.com/axpect/staffhub/middleware/log"
	"github.com/axpect/staffhub/pkg/mq"
	"go.uber.org/zap"
)

// Pusher 个人通知通道的瞬时推送出口，由网关 Hub 实现
type Pusher interface {
	SendToUser(userID uint, payload any)
}

// FanoutEvent 一条新消息触发的扇出事件
// 携带渲染通知所需的全部字段，消费端不回查消息表
type FanoutEvent struct {
	MessageID  int64     `json:"message_id"`
	GroupID    uint      `json:"group_id"`
	GroupKind  string    `json:"group_kind"`
	GroupName  string    `json:"group_name"`
	SenderID   uint      `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationBody 个人通知通道推送的通知体
type NotificationBody struct {
	ID          uint   `json:"id"`
	Kind        string `json:"type"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Level       string `json:"level"`
	GroupID     uint   `json:"group_id"`
	RedirectURL string `json:"redirect_url"`
	CreatedAt   string `json:"created_at"`
}

// NotificationPush 推到个人通知通道的完整帧
type NotificationPush struct {
	Type         string           `json:"type"`
	Notification NotificationBody `json:"notification"`
	SoundType    string           `json:"sound_type"`
}

// NotifyService 通知扇出：Kafka 在线时发事件到 Kafka，降级时走协程池直接投递
type NotifyService struct {
	Groups     *repositories.GroupRepository
	Users      *repositories.UserRepository
	Notifs     *repositories.NotificationRepository
	Deliveries *repositories.DeliveryRepository
	Presence   *repositories.PresenceRepository

	Producer *mq.KafkaProducer // nil 表示降级直投模式
	Pool     *utils.WorkerPool
	Pusher   Pusher

	Log *logger.Logger
}

func NewNotifyService(
	groups *repositories.GroupRepository,
	users *repositories.UserRepository,
	notifs *repositories.NotificationRepository,
	deliveries *repositories.DeliveryRepository,
	presence *repositories.PresenceRepository,
	producer *mq.KafkaProducer,
	pool *utils.WorkerPool,
	pusher Pusher,
	lg *logger.Logger,
) *NotifyService {
	return &NotifyService{
		Groups:     groups,
		Users:      users,
		Notifs:     notifs,
		Deliveries: deliveries,
		Presence:   presence,
		Producer:   producer,
		Pool:       pool,
		Pusher:     pusher,
		Log:        lg,
	}
}

// FanOut 把一条新消息的扇出事件送入管道
// 事件以群组 ID 做 Kafka key，同群事件保持有序；Kafka 不可用时降级为进程内直投
func (s *NotifyService) FanOut(msg *MessageView, group *models.ChatGroup) {
	ev := &FanoutEvent{
		MessageID:  msg.ID,
		GroupID:    msg.GroupID,
		GroupKind:  group.Kind,
		GroupName:  group.Name,
		SenderID:   msg.Sender.ID,
		SenderName: msg.Sender.Name,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}

	if s.Producer != nil {
		key := strconv.FormatUint(uint64(ev.GroupID), 10)
		err := s.Producer.SendMessage(key, ev)
		if err == nil {
			return
		}
		s.Log.Warn("发送扇出事件到 kafka 失败，降级为直接投递", zap.Error(err))
	}
	s.Pool.Submit(func() {
		s.Deliver(ev)
	})
}

// Deliver 消费一条扇出事件：为每个接收者写通知行并做瞬时推送
// 单个接收者失败只记录日志，不影响其他接收者
func (s *NotifyService) Deliver(ev *FanoutEvent) {
	recipients, err := s.Groups.MembersExcept(ev.GroupID, ev.SenderID)
	if err != nil {
		s.Log.Error("查询扇出接收者失败",
			zap.Uint("group_id", ev.GroupID),
			zap.Int64("message_id", ev.MessageID),
			zap.Error(err))
		return
	}

	now := time.Now()
	for i := range recipients {
		s.deliverOne(ev, &recipients[i], now)
	}
}

func (s *NotifyService) deliverOne(ev *FanoutEvent, member *models.GroupMember, now time.Time) {
	user, err := s.Users.GetByID(member.UserID)
	if err != nil {
		s.Log.Warn("扇出跳过未知用户",
			zap.Uint("user_id", member.UserID),
			zap.Int64("message_id", ev.MessageID),
			zap.Error(err))
		return
	}

	preview := Preview(ev.Content, notificationPreviewLen)
	rec := &repositories.NotificationRecord{
		UserID:      user.ID,
		Role:        user.Role,
		RedirectURL: fmt.Sprintf("/social/chat/%d/", ev.GroupID),
	}
	if ev.GroupKind == models.GroupDirect {
		rec.Kind = "direct_message"
		rec.Title = fmt.Sprintf("New message from %s", ev.SenderName)
		rec.Message = preview
	} else {
		rec.Kind = "message"
		rec.Title = "New Message"
		rec.Message = fmt.Sprintf("%s in %s: %s", ev.SenderName, ev.GroupName, preview)
	}

	notificationID, err := s.Notifs.Create(rec)
	if err != nil {
		s.Log.Error("写入通知失败",
			zap.Uint("user_id", user.ID),
			zap.String("role", user.Role),
			zap.Int64("message_id", ev.MessageID),
			zap.Error(err))
		return
	}

	// 静音成员照常落库，但不打扰：跳过瞬时推送
	if member.Muted(now) {
		return
	}

	if s.Pusher != nil {
		s.Pusher.SendToUser(user.ID, &NotificationPush{
			Type: "notification",
			Notification: NotificationBody{
				ID:          notificationID,
				Kind:        rec.Kind,
				Title:       rec.Title,
				Message:     rec.Message,
				Level:       "info",
				GroupID:     ev.GroupID,
				RedirectURL: rec.RedirectURL,
				CreatedAt:   ev.CreatedAt.Format(time.RFC3339),
			},
			SoundType: "notification",
		})
	}

	// 在线接收者视为已送达，推进 SENT -> DELIVERED
	online, err := s.Presence.IsOnline(context.Background(), user.ID)
	if err != nil {
		s.Log.Warn("查询在线状态失败", zap.Uint("user_id", user.ID), zap.Error(err))
		return
	}
	if online {
		if err := s.Deliveries.MarkDelivered(user.ID, ev.MessageID); err != nil {
			s.Log.Warn("推进送达状态失败",
				zap.Uint("user_id", user.ID),
				zap.Int64("message_id", ev.MessageID),
				zap.Error(err))
		}
	}
}

// MarkNotificationRead 接收者确认某条通知已读
func (s *NotifyService) MarkNotificationRead(role string, userID, notificationID uint) error {
	return s.Notifs.MarkRead(role, userID, notificationID)
}
