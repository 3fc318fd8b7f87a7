package services

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/axpect/staffhub/internal/models"
	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/internal/storage"
	"github.com/axpect/staffhub/internal/utils"
	logger "github.com/axpect/staffhub/middleware/log"
	"github.com/axpect/staffhub/utils/snowflake"
)

var userSeq atomic.Uint64

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("STAFFHUB_TEST_DSN")
	if dsn == "" {
		dsn = storage.BuildDSN("127.0.0.1", "5432", "staffhub", "staffhub", "staffhub_test")
	}
	db, err := storage.InitPostgres(dsn, 2, 5)
	if err != nil {
		t.Skipf("Skipping test: Postgres not available: %v", err)
	}
	require.NoError(t, storage.Migrate(db))

	for _, table := range []string{
		"message_reactions", "message_deliveries", "chat_messages",
		"group_members", "chat_groups",
		"notifications_admin", "notifications_manager", "notifications_employee",
		"users",
	} {
		require.NoError(t, db.Exec("TRUNCATE TABLE "+table+" CASCADE").Error)
	}
	return db
}

func newChatService(t *testing.T, db *gorm.DB) *ChatService {
	t.Helper()
	idGen, err := snowflake.NewGenerator(1)
	require.NoError(t, err)
	return NewChatService(
		repositories.NewGroupRepository(db),
		repositories.NewMessageRepository(db),
		repositories.NewDeliveryRepository(db),
		repositories.NewReactionRepository(db),
		repositories.NewUserRepository(db),
		idGen,
	)
}

func createUser(t *testing.T, db *gorm.DB, role, firstName string) *models.User {
	t.Helper()
	n := userSeq.Add(1)
	user := &models.User{
		Email:        fmt.Sprintf("user%d-%d@test.local", n, time.Now().UnixNano()),
		PasswordHash: "x",
		FirstName:    firstName,
		Role:         role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestChatService_SendMessage(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	member := createUser(t, db, models.RoleEmployee, "Bob")
	outsider := createUser(t, db, models.RoleEmployee, "Eve")

	group, err := svc.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)
	require.NoError(t, svc.Join(group.ID, member.ID))

	// 空白消息拒绝
	_, err = svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)

	// 非成员拒绝
	_, err = svc.SendMessage(outsider.ID, group.ID, &SendMessageInput{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotMember)

	view, err := svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", view.Content)
	assert.Equal(t, "Alice", view.Sender.Name)
	assert.Equal(t, models.MessageText, view.Kind)

	// 除发送者外每个成员一行 SENT
	rows, err := svc.Deliveries.ListByMessage(view.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, member.ID, rows[0].UserID)
	assert.Equal(t, models.DeliverySent, rows[0].Status)
}

func TestChatService_ReplyPreview(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	group, err := svc.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)

	longContent := strings.Repeat("x", 150)
	parent, err := svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: longContent})
	require.NoError(t, err)

	reply, err := svc.SendMessage(sender.ID, group.ID, &SendMessageInput{
		Content: "got it",
		ReplyTo: &parent.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, parent.ID, reply.ReplyTo.ID)
	assert.Equal(t, strings.Repeat("x", 100)+"...", reply.ReplyTo.Content)
	assert.Equal(t, "Alice", reply.ReplyTo.SenderName)

	// 未知 reply_to 整条拒绝，无送达副作用
	bogus := int64(1)
	_, err = svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "x", ReplyTo: &bogus})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChatService_FailedSendLeavesNoPartialState(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	member := createUser(t, db, models.RoleEmployee, "Bob")
	group, err := svc.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)
	require.NoError(t, svc.Join(group.ID, member.ID))

	other, err := svc.CreateGroup(sender.ID, "other", "", "", 10)
	require.NoError(t, err)
	foreign, err := svc.SendMessage(sender.ID, other.ID, &SendMessageInput{Content: "elsewhere"})
	require.NoError(t, err)

	// 跨群 reply_to 拒绝后，消息与送达行都不应出现
	_, err = svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "x", ReplyTo: &foreign.ID})
	require.ErrorIs(t, err, ErrValidation)

	history, err := svc.History(member.ID, group.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "失败的发送不应出现在历史里")

	var count int64
	require.NoError(t, db.Model(&models.MessageDelivery{}).
		Where("user_id = ?", member.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestChatService_ToggleReaction(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	group, err := svc.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)

	msg, err := svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "hello"})
	require.NoError(t, err)

	action, err := svc.ToggleReaction(sender.ID, group.ID, msg.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, "added", action)

	action, err = svc.ToggleReaction(sender.ID, group.ID, msg.ID, models.ReactionLike)
	require.NoError(t, err)
	assert.Equal(t, "removed", action)

	// 消息不属于该群组时拒绝
	other, err := svc.CreateGroup(sender.ID, "other", "", "", 10)
	require.NoError(t, err)
	_, err = svc.ToggleReaction(sender.ID, other.ID, msg.ID, models.ReactionLike)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChatService_MyGroupsUnread(t *testing.T) {
	db := setupTestDB(t)
	svc := newChatService(t, db)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	reader := createUser(t, db, models.RoleEmployee, "Bob")
	group, err := svc.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)
	require.NoError(t, svc.Join(group.ID, reader.ID))

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
	}

	summaries, err := svc.MyGroups(reader.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 3, summaries[0].UnreadCount)

	require.NoError(t, svc.MarkRead(reader.ID, group.ID, 0))
	summaries, _ = svc.MyGroups(reader.ID)
	assert.EqualValues(t, 0, summaries[0].UnreadCount)
}

// fakePusher 记录推送到个人通道的载荷
type fakePusher struct {
	mu     sync.Mutex
	pushes map[uint][]any
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushes: make(map[uint][]any)}
}

func (p *fakePusher) SendToUser(userID uint, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes[userID] = append(p.pushes[userID], payload)
}

func (p *fakePusher) count(userID uint) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushes[userID])
}

func newNotifyService(t *testing.T, db *gorm.DB, pusher Pusher) *NotifyService {
	t.Helper()
	lg, err := logger.NewDevelopmentLogger()
	require.NoError(t, err)
	pool := utils.NewWorkerPool(2, 16)
	pool.Start()
	t.Cleanup(pool.Stop)
	return NewNotifyService(
		repositories.NewGroupRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewNotificationRepository(db),
		repositories.NewDeliveryRepository(db),
		repositories.NewPresenceRepository(db, nil),
		nil, // 降级直投模式
		pool,
		pusher,
		lg,
	)
}

func TestNotifyService_DeliverWritesRoleTables(t *testing.T) {
	db := setupTestDB(t)
	chat := newChatService(t, db)
	pusher := newFakePusher()
	notify := newNotifyService(t, db, pusher)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	manager := createUser(t, db, models.RoleManager, "Bob")
	employee := createUser(t, db, models.RoleEmployee, "Carol")

	group, err := chat.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)
	require.NoError(t, chat.Join(group.ID, manager.ID))
	require.NoError(t, chat.Join(group.ID, employee.ID))

	view, err := chat.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: strings.Repeat("y", 80)})
	require.NoError(t, err)

	notify.Deliver(&FanoutEvent{
		MessageID:  view.ID,
		GroupID:    group.ID,
		GroupKind:  group.Kind,
		GroupName:  group.Name,
		SenderID:   sender.ID,
		SenderName: view.Sender.Name,
		Content:    view.Content,
		CreatedAt:  view.CreatedAt,
	})

	// 角色表各落一行，发送者自己没有
	var managerRows []models.NotificationManager
	require.NoError(t, db.Find(&managerRows).Error)
	require.Len(t, managerRows, 1)
	assert.Equal(t, manager.ID, managerRows[0].UserID)
	assert.Contains(t, managerRows[0].Message, strings.Repeat("y", 50)+"...")
	assert.Equal(t, fmt.Sprintf("/social/chat/%d/", group.ID), managerRows[0].RedirectURL)

	var employeeRows []models.NotificationEmployee
	require.NoError(t, db.Find(&employeeRows).Error)
	require.Len(t, employeeRows, 1)

	var adminRows []models.NotificationAdmin
	require.NoError(t, db.Find(&adminRows).Error)
	assert.Empty(t, adminRows, "发送者不给自己发通知")

	// 两个接收者各收到一次瞬时推送
	assert.Equal(t, 1, pusher.count(manager.ID))
	assert.Equal(t, 1, pusher.count(employee.ID))
	assert.Equal(t, 0, pusher.count(sender.ID))
}

func TestNotifyService_MutedMemberGetsRowButNoPush(t *testing.T) {
	db := setupTestDB(t)
	chat := newChatService(t, db)
	pusher := newFakePusher()
	notify := newNotifyService(t, db, pusher)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	muted := createUser(t, db, models.RoleEmployee, "Bob")

	group, err := chat.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)
	require.NoError(t, chat.Join(group.ID, muted.ID))
	require.NoError(t, db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", group.ID, muted.ID).
		Update("is_muted", true).Error)

	view, err := chat.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "hello"})
	require.NoError(t, err)

	notify.Deliver(&FanoutEvent{
		MessageID:  view.ID,
		GroupID:    group.ID,
		GroupKind:  group.Kind,
		GroupName:  group.Name,
		SenderID:   sender.ID,
		SenderName: view.Sender.Name,
		Content:    view.Content,
		CreatedAt:  view.CreatedAt,
	})

	// 静音成员照常落库
	var rows []models.NotificationEmployee
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, muted.ID, rows[0].UserID)

	// 但没有瞬时推送
	assert.Equal(t, 0, pusher.count(muted.ID))
}

func TestNotifyService_RecipientFailureIsolated(t *testing.T) {
	db := setupTestDB(t)
	chat := newChatService(t, db)
	pusher := newFakePusher()
	notify := newNotifyService(t, db, pusher)

	sender := createUser(t, db, models.RoleAdmin, "Alice")
	intern := createUser(t, db, "INTERN", "Bob") // 没有对应通知表的角色
	employee := createUser(t, db, models.RoleEmployee, "Carol")

	group, err := chat.CreateGroup(sender.ID, "general", "", "", 10)
	require.NoError(t, err)
	require.NoError(t, chat.Join(group.ID, intern.ID))
	require.NoError(t, chat.Join(group.ID, employee.ID))

	view, err := chat.SendMessage(sender.ID, group.ID, &SendMessageInput{Content: "hello"})
	require.NoError(t, err)

	notify.Deliver(&FanoutEvent{
		MessageID:  view.ID,
		GroupID:    group.ID,
		GroupKind:  group.Kind,
		GroupName:  group.Name,
		SenderID:   sender.ID,
		SenderName: view.Sender.Name,
		Content:    view.Content,
		CreatedAt:  view.CreatedAt,
	})

	// 未知角色写通知失败只跳过本人，不影响其他接收者
	var rows []models.NotificationEmployee
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, employee.ID, rows[0].UserID)

	assert.Equal(t, 0, pusher.count(intern.ID))
	assert.Equal(t, 1, pusher.count(employee.ID))
}

func TestNotifyService_DirectMessageTitle(t *testing.T) {
	db := setupTestDB(t)
	chat := newChatService(t, db)
	pusher := newFakePusher()
	notify := newNotifyService(t, db, pusher)

	alice := createUser(t, db, models.RoleEmployee, "Alice")
	bob := createUser(t, db, models.RoleEmployee, "Bob")

	dm, err := chat.CreateDirect(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice & Bob", dm.Name)

	view, err := chat.SendMessage(alice.ID, dm.ID, &SendMessageInput{Content: "hi"})
	require.NoError(t, err)

	notify.Deliver(&FanoutEvent{
		MessageID:  view.ID,
		GroupID:    dm.ID,
		GroupKind:  dm.Kind,
		GroupName:  dm.Name,
		SenderID:   alice.ID,
		SenderName: view.Sender.Name,
		Content:    view.Content,
		CreatedAt:  view.CreatedAt,
	})

	var rows []models.NotificationEmployee
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, bob.ID, rows[0].UserID)
	assert.Equal(t, "direct_message", rows[0].Kind)
	assert.Contains(t, rows[0].Title, "Alice")
}
