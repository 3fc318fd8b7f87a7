package ws

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/internal/services"
	logger "github.com/axpect/staffhub/middleware/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway 两类 WebSocket 入口：房间通道与个人通知通道
type Gateway struct {
	Hub      *Hub
	Chat     *services.ChatService
	Notify   *services.NotifyService
	Presence *repositories.PresenceRepository
	Log      *logger.Logger
}

func NewGateway(
	hub *Hub,
	chat *services.ChatService,
	notify *services.NotifyService,
	presence *repositories.PresenceRepository,
	lg *logger.Logger,
) *Gateway {
	return &Gateway{
		Hub:      hub,
		Chat:     chat,
		Notify:   notify,
		Presence: presence,
		Log:      lg,
	}
}

func identity(c *gin.Context) (uint, string, string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
		return 0, "", "", false
	}
	name, _ := c.Get("display_name")
	role, _ := c.Get("role")
	nameStr, _ := name.(string)
	roleStr, _ := role.(string)
	return userID.(uint), nameStr, roleStr, true
}

// ServeChat 处理 /ws/chat/:group_id
// 非成员在升级前拒绝，连接不会被接受
func (g *Gateway) ServeChat(c *gin.Context) {
	userID, userName, role, ok := identity(c)
	if !ok {
		return
	}

	groupID64, err := strconv.ParseUint(c.Param("group_id"), 10, 64)
	if err != nil || groupID64 == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的群组 ID"})
		return
	}
	groupID := uint(groupID64)

	allowed, err := g.Chat.CanAccess(groupID, userID)
	if err != nil {
		g.Log.Error("房间授权检查失败", zap.Uint("group_id", groupID), zap.Uint("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部错误"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "不是该群组成员"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.Log.Warn("websocket 升级失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		hub:      g.Hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   userID,
		userName: userName,
		role:     role,
		roomID:   groupID,
		gw:       g,
	}
	client.hub.register <- client

	g.onConnect(client)

	go client.writePump()
	go client.readPump()
}

// ServeNotifications 处理 /ws/notifications，个人通知通道
func (g *Gateway) ServeNotifications(c *gin.Context) {
	userID, userName, role, ok := identity(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.Log.Warn("websocket 升级失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		hub:      g.Hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   userID,
		userName: userName,
		role:     role,
		roomID:   0,
		gw:       g,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// onConnect 房间连接建立：置为在线并广播上线状态（不发给本人）
func (g *Gateway) onConnect(client *Client) {
	if err := g.Presence.SetOnline(context.Background(), client.userID); err != nil {
		g.Log.Warn("更新在线状态失败", zap.Uint("user_id", client.userID), zap.Error(err))
	}
	g.Hub.BroadcastToRoom(client.roomID, client.userID, &StatusFrame{
		Type:      FrameUserStatus,
		UserID:    client.userID,
		UserName:  client.userName,
		Status:    "online",
		Timestamp: nowStamp(),
	})
}

// onDisconnect 房间连接断开：置为离线并广播下线状态
func (g *Gateway) onDisconnect(client *Client) {
	if client.roomID == 0 {
		return
	}
	if err := g.Presence.SetOffline(context.Background(), client.userID); err != nil {
		g.Log.Warn("更新离线状态失败", zap.Uint("user_id", client.userID), zap.Error(err))
	}
	g.Hub.BroadcastToRoom(client.roomID, client.userID, &StatusFrame{
		Type:      FrameUserStatus,
		UserID:    client.userID,
		UserName:  client.userName,
		Status:    "offline",
		Timestamp: nowStamp(),
	})
}
