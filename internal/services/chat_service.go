package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/axpect/staffhub/internal/models"
	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/utils/snowflake"
)

var (
	ErrNotMember    = errors.New("用户不是该群组成员")
	ErrEmptyMessage = errors.New("消息内容为空")
	ErrValidation   = errors.New("消息校验失败")
)

const (
	replyPreviewLen        = 100
	notificationPreviewLen = 50
)

// ChatService 消息核心的编排层：成员校验、持久化、送达簿记
type ChatService struct {
	Groups     *repositories.GroupRepository
	Messages   *repositories.MessageRepository
	Deliveries *repositories.DeliveryRepository
	Reactions  *repositories.ReactionRepository
	Users      *repositories.UserRepository
	IDGen      *snowflake.Generator
}

func NewChatService(
	groups *repositories.GroupRepository,
	messages *repositories.MessageRepository,
	deliveries *repositories.DeliveryRepository,
	reactions *repositories.ReactionRepository,
	users *repositories.UserRepository,
	idGen *snowflake.Generator,
) *ChatService {
	return &ChatService{
		Groups:     groups,
		Messages:   messages,
		Deliveries: deliveries,
		Reactions:  reactions,
		Users:      users,
		IDGen:      idGen,
	}
}

// SenderView 消息发送者的序列化视图
type SenderView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ReplyView 被回复消息的摘要（前 100 字符）
type ReplyView struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	SenderName string `json:"sender_name"`
}

// MessageView 广播与历史接口共用的消息视图
type MessageView struct {
	ID        int64      `json:"id"`
	GroupID   uint       `json:"group_id"`
	Content   string     `json:"content"`
	Kind      string     `json:"kind"`
	Sender    SenderView `json:"sender"`
	ReplyTo   *ReplyView `json:"reply_to,omitempty"`
	IsEdited  bool       `json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SendMessageInput 发送消息请求
type SendMessageInput struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
	ReplyTo *int64 `json:"reply_to"`
}

// CanAccess 房间连接授权：群组激活且调用者是激活成员
func (s *ChatService) CanAccess(groupID, userID uint) (bool, error) {
	if _, err := s.Groups.GetGroup(groupID); err != nil {
		if errors.Is(err, repositories.ErrGroupNotFound) || errors.Is(err, repositories.ErrGroupInactive) {
			return false, nil
		}
		return false, err
	}
	return s.Groups.IsMember(groupID, userID)
}

// SendMessage 持久化消息并为除发送者外的所有成员批量建 SENT 送达行
// 持久化失败时不产生任何广播或送达副作用
func (s *ChatService) SendMessage(senderID, groupID uint, in *SendMessageInput) (*MessageView, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	isMember, err := s.Groups.IsMember(groupID, senderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	kind := in.Kind
	if kind == "" {
		kind = models.MessageText
	}

	id, err := s.IDGen.NextID()
	if err != nil {
		return nil, err
	}

	// 扇出完整性：除发送者外每个激活成员一行，状态 SENT
	recipients, err := s.Groups.MembersExcept(groupID, senderID)
	if err != nil {
		return nil, err
	}
	recipientIDs := make([]uint, 0, len(recipients))
	for _, m := range recipients {
		recipientIDs = append(recipientIDs, m.UserID)
	}

	msg := &models.Message{
		ID:        id,
		GroupID:   groupID,
		SenderID:  senderID,
		Kind:      kind,
		Content:   content,
		ReplyToID: in.ReplyTo,
	}
	// 消息与送达行同一事务落库，失败的发送不留半截状态
	if err := s.Messages.CreateWithDeliveries(msg, recipientIDs); err != nil {
		if errors.Is(err, repositories.ErrReplyCrossGroup) || errors.Is(err, repositories.ErrMessageNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, err
	}

	return s.serialize(msg)
}

// serialize 组装消息视图：发送者展示名，回复则附父消息摘要
func (s *ChatService) serialize(msg *models.Message) (*MessageView, error) {
	sender := msg.Sender
	if sender == nil {
		var err error
		sender, err = s.Users.GetByID(msg.SenderID)
		if err != nil {
			return nil, err
		}
	}

	view := &MessageView{
		ID:        msg.ID,
		GroupID:   msg.GroupID,
		Content:   msg.Content,
		Kind:      msg.Kind,
		IsEdited:  msg.IsEdited,
		EditedAt:  msg.EditedAt,
		CreatedAt: msg.CreatedAt,
		Sender: SenderView{
			ID:        sender.ID,
			Name:      sender.DisplayName(),
			AvatarURL: sender.AvatarURL,
		},
	}

	if msg.ReplyToID != nil {
		parent := msg.ReplyTo
		if parent == nil {
			var err error
			parent, err = s.Messages.GetByID(*msg.ReplyToID)
			if err != nil {
				return nil, err
			}
		}
		rv := &ReplyView{
			ID:      parent.ID,
			Content: Preview(parent.Content, replyPreviewLen),
		}
		if parent.Sender != nil {
			rv.SenderName = parent.Sender.DisplayName()
		}
		view.ReplyTo = rv
	}
	return view, nil
}

// History 房间历史，按创建顺序非降序
func (s *ChatService) History(userID, groupID uint, limit, offset int) ([]MessageView, error) {
	isMember, err := s.Groups.IsMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	msgs, err := s.Messages.ListByGroup(groupID, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		v, err := s.serialize(&msgs[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// MarkRead 批量已读到指定消息（0 表示全群），送达行为权威，last_read_at 同步推进
func (s *ChatService) MarkRead(userID, groupID uint, uptoMessageID int64) error {
	isMember, err := s.Groups.IsMember(groupID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotMember
	}
	return s.Deliveries.MarkReadUpTo(userID, groupID, uptoMessageID)
}

// ToggleReaction 切换回应，返回 "added" 或 "removed"
func (s *ChatService) ToggleReaction(userID, groupID uint, messageID int64, kind string) (string, error) {
	isMember, err := s.Groups.IsMember(groupID, userID)
	if err != nil {
		return "", err
	}
	if !isMember {
		return "", ErrNotMember
	}

	msg, err := s.Messages.GetByID(messageID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if msg.GroupID != groupID {
		return "", fmt.Errorf("%w: 消息不属于该群组", ErrValidation)
	}

	added, err := s.Reactions.Toggle(messageID, userID, kind)
	if err != nil {
		return "", err
	}
	if added {
		return "added", nil
	}
	return "removed", nil
}

// GroupSummary 带未读数的群组列表项
type GroupSummary struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	UnreadCount int64      `json:"unread_count"`
	LastReadAt  *time.Time `json:"last_read_at,omitempty"`
}

// MyGroups 用户的群组列表，未读数从送达行计算
func (s *ChatService) MyGroups(userID uint) ([]GroupSummary, error) {
	groups, err := s.Groups.GroupsOf(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		unread, err := s.Deliveries.UnreadCount(userID, g.ID)
		if err != nil {
			return nil, err
		}
		summary := GroupSummary{
			ID:          g.ID,
			Name:        g.Name,
			Kind:        g.Kind,
			UnreadCount: unread,
		}
		if m, err := s.Groups.Membership(g.ID, userID); err == nil && m != nil {
			summary.LastReadAt = m.LastReadAt
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// CreateGroup 建群并把创建者设为群管理员
func (s *ChatService) CreateGroup(creatorID uint, name, kind, description string, maxMembers int) (*models.ChatGroup, error) {
	if kind == "" {
		kind = models.GroupCustom
	}
	if maxMembers <= 0 {
		maxMembers = 100
	}
	group := &models.ChatGroup{
		Name:        strings.TrimSpace(name),
		Kind:        kind,
		Description: description,
		IsActive:    true,
		MaxMembers:  maxMembers,
		CreatedByID: &creatorID,
	}
	if group.Name == "" {
		return nil, fmt.Errorf("%w: 群组名为空", ErrValidation)
	}
	if err := s.Groups.CreateGroup(group, creatorID); err != nil {
		return nil, err
	}
	return group, nil
}

// CreateDirect 建立或复用两人私聊，标题由双方展示名拼成
func (s *ChatService) CreateDirect(userA, userB uint) (*models.ChatGroup, error) {
	if userA == userB {
		return nil, repositories.ErrDirectPairNeeded
	}
	a, err := s.Users.GetByID(userA)
	if err != nil {
		return nil, err
	}
	b, err := s.Users.GetByID(userB)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s & %s", a.DisplayName(), b.DisplayName())
	return s.Groups.CreateDirectGroup(name, userA, userB)
}

// Join 加入群组，重复加入幂等
func (s *ChatService) Join(groupID, userID uint) error {
	if _, err := s.Groups.GetGroup(groupID); err != nil {
		return err
	}
	return s.Groups.UpsertMember(groupID, userID, models.MemberRoleMember)
}

// Preview 按字符截断并补省略号，用于回复摘要与通知预览
func Preview(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit]) + "..."
}
