package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/axpect/staffhub/internal/repositories"
	"github.com/axpect/staffhub/internal/services"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	// 传输层的单帧上限，不是内容长度策略；超限由 gorilla 断开连接
	maxMessageSize = 1 << 20
)

// Client 代表一个 WebSocket 连接
// roomID 不为 0 表示房间连接，为 0 表示个人通知通道
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// 缓冲通道，用于发送已序列化的帧
	// 只有 Hub 的 Run 协程通过 closeSend 关闭；并发写入必须走 trySend
	send chan []byte

	sendMu     sync.Mutex
	sendClosed bool

	userID   uint
	userName string
	role     string
	roomID   uint

	gw *Gateway
}

// trySend 非阻塞入队一帧；通道已被 Hub 关闭或缓冲区满时返回 false
func (c *Client) trySend(payload []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend 幂等关闭发送通道，只能在客户端已移出 Hub 注册表之后调用
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// readPump 泵送来自 WebSocket 连接的入站帧并按类型分发
// 格式错误的帧记录日志后丢弃，连接保持
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.gw.onDisconnect(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// 收到 Pong 说明客户端还活着，异步刷新在线 TTL
		go c.gw.Presence.Refresh(context.Background(), c.userID)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gw.Log.Warn("websocket 连接异常断开", zap.Uint("user_id", c.userID), zap.Error(err))
			}
			break
		}

		var frame InboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.gw.Log.Warn("丢弃无法解析的入站帧", zap.Uint("user_id", c.userID), zap.Error(err))
			continue
		}

		if c.roomID != 0 {
			c.handleRoomFrame(&frame)
		} else {
			c.handlePersonalFrame(&frame)
		}
	}
}

func (c *Client) handleRoomFrame(frame *InboundFrame) {
	switch frame.Type {
	case FrameChatMessage:
		c.handleChatMessage(frame)

	case FrameTypingIndicator:
		// 打字状态不落库，直接广播且不回给发起者
		c.hub.BroadcastToRoom(c.roomID, c.userID, &TypingFrame{
			Type:      FrameTypingIndicator,
			UserID:    c.userID,
			UserName:  c.userName,
			IsTyping:  frame.IsTyping,
			Timestamp: nowStamp(),
		})

	case FrameMessageRead:
		if err := c.gw.Chat.MarkRead(c.userID, c.roomID, frame.MessageID); err != nil {
			c.fail("标记已读失败", err)
			return
		}
		c.hub.BroadcastToRoom(c.roomID, 0, &ReadFrame{
			Type:      FrameMessageRead,
			MessageID: frame.MessageID,
			UserID:    c.userID,
			UserName:  c.userName,
			Timestamp: nowStamp(),
		})

	case FrameMessageReaction:
		action, err := c.gw.Chat.ToggleReaction(c.userID, c.roomID, frame.MessageID, frame.ReactionType)
		if err != nil {
			c.fail("切换回应失败", err)
			return
		}
		c.hub.BroadcastToRoom(c.roomID, 0, &ReactionFrame{
			Type:         FrameMessageReaction,
			MessageID:    frame.MessageID,
			UserID:       c.userID,
			UserName:     c.userName,
			ReactionType: frame.ReactionType,
			Action:       action,
			Timestamp:    nowStamp(),
		})

	default:
		c.gw.Log.Warn("未知的房间帧类型",
			zap.String("type", frame.Type),
			zap.Uint("user_id", c.userID),
			zap.Uint("group_id", c.roomID))
	}
}

// handleChatMessage 持久化成功才广播与扇出；失败时只通知发送者本人
func (c *Client) handleChatMessage(frame *InboundFrame) {
	view, err := c.gw.Chat.SendMessage(c.userID, c.roomID, &services.SendMessageInput{
		Content: frame.Content,
		Kind:    frame.Kind,
		ReplyTo: frame.ReplyTo,
	})
	if err != nil {
		c.fail("发送消息失败", err)
		return
	}

	c.hub.BroadcastToRoom(c.roomID, 0, &ChatMessageFrame{
		Type:      FrameChatMessage,
		Message:   view,
		SoundType: "message",
	})

	group, err := c.gw.Chat.Groups.GetGroup(c.roomID)
	if err != nil {
		c.gw.Log.Error("扇出前查询群组失败", zap.Uint("group_id", c.roomID), zap.Error(err))
		return
	}
	c.gw.Notify.FanOut(view, group)
}

func (c *Client) handlePersonalFrame(frame *InboundFrame) {
	switch frame.Type {
	case FrameMarkNotificationRead:
		if err := c.gw.Notify.MarkNotificationRead(c.role, c.userID, frame.NotificationID); err != nil {
			c.fail("标记通知已读失败", err)
		}

	default:
		c.gw.Log.Warn("未知的个人通道帧类型",
			zap.String("type", frame.Type),
			zap.Uint("user_id", c.userID))
	}
}

// fail 把业务错误回给发送者本人，校验类错误透出原因
func (c *Client) fail(msg string, err error) {
	c.gw.Log.Warn(msg, zap.Uint("user_id", c.userID), zap.Uint("group_id", c.roomID), zap.Error(err))

	text := msg
	if errors.Is(err, services.ErrValidation) ||
		errors.Is(err, services.ErrEmptyMessage) ||
		errors.Is(err, services.ErrNotMember) ||
		errors.Is(err, repositories.ErrInvalidReaction) {
		text = err.Error()
	}
	payload, marshalErr := json.Marshal(&ErrorFrame{Type: FrameError, Message: text})
	if marshalErr != nil {
		return
	}
	c.trySend(payload)
}

// writePump 泵送来自 Hub 的帧到 WebSocket 连接
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(payload)

			// 带上队列中积压的其他帧
			n := len(c.send)
			for range n {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
