package ws

import (
	"context"
	"encoding/json"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	logger "github.com/axpect/staffhub/middleware/log"
)

const redisChannelName = "staffhub:broadcast"

// Envelope 广播信封，房间帧与个人通知帧共用一条管道
// Scope 为 room 时按 RoomID 分发并跳过 ExcludeUserID；为 user 时只投给 UserID 的个人通道
type Envelope struct {
	Scope         string          `json:"scope"` // room / user
	RoomID        uint            `json:"room_id,omitempty"`
	UserID        uint            `json:"user_id,omitempty"`
	ExcludeUserID uint            `json:"exclude_user_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Hub 维护活跃的客户端连接并广播消息
// 同一信封通道串行分发，保证每个房间内帧的相对顺序
type Hub struct {
	// 房间对应的客户端集合 GroupID -> Client -> bool
	rooms map[uint]map[*Client]bool

	// 个人通知通道的客户端集合 UserID -> Client -> bool
	users map[uint]map[*Client]bool

	// 互斥锁，保护 map 的并发读写
	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Envelope

	// Redis 客户端，用于跨实例广播；nil 时仅本地分发
	redis *redis.Client

	log *logger.Logger
}

func NewHub(redisClient *redis.Client, lg *logger.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uint]map[*Client]bool),
		users:      make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Envelope),
		redis:      redisClient,
		log:        lg,
	}
}

func (h *Hub) Run() {
	// 启动 Redis 订阅协程
	if h.redis != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.add(client)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if h.remove(client) {
				client.closeSend()
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// add 调用方必须持有写锁
func (h *Hub) add(client *Client) {
	if client.roomID != 0 {
		if _, ok := h.rooms[client.roomID]; !ok {
			h.rooms[client.roomID] = make(map[*Client]bool)
		}
		h.rooms[client.roomID][client] = true
		return
	}
	if _, ok := h.users[client.userID]; !ok {
		h.users[client.userID] = make(map[*Client]bool)
	}
	h.users[client.userID][client] = true
}

// remove 调用方必须持有写锁，返回该客户端此前是否仍在注册表中
func (h *Hub) remove(client *Client) bool {
	if client.roomID != 0 {
		room, ok := h.rooms[client.roomID]
		if !ok {
			return false
		}
		if _, exists := room[client]; !exists {
			return false
		}
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.roomID)
		}
		return true
	}
	conns, ok := h.users[client.userID]
	if !ok {
		return false
	}
	if _, exists := conns[client]; !exists {
		return false
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.users, client.userID)
	}
	return true
}

func (h *Hub) deliver(env *Envelope) {
	h.mu.RLock()
	// 收集需要关闭的客户端，避免在 RLock 中修改 map
	var closedClients []*Client

	targets := func(clients map[*Client]bool) {
		for client := range clients {
			if env.Scope == "room" && env.ExcludeUserID != 0 && client.userID == env.ExcludeUserID {
				continue
			}
			// 发送缓冲区满（或通道已关闭），标记为需要移除
			if !client.trySend(env.Payload) {
				closedClients = append(closedClients, client)
			}
		}
	}

	switch env.Scope {
	case "room":
		if clients, ok := h.rooms[env.RoomID]; ok {
			targets(clients)
		}
	case "user":
		if clients, ok := h.users[env.UserID]; ok {
			targets(clients)
		}
	}
	h.mu.RUnlock()

	if len(closedClients) > 0 {
		h.mu.Lock()
		for _, client := range closedClients {
			// Double check，防止已经被 unregister 处理过
			if h.remove(client) {
				client.closeSend()
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, redisChannelName)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for msg := range ch {
		var env Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			h.log.Warn("丢弃无法解析的广播信封", zap.Error(err))
			continue
		}
		// 从 Redis 收到的信封直接送入本地分发，不再 Publish，否则会死循环
		h.broadcast <- &env
	}
}

func (h *Hub) dispatch(env *Envelope) {
	if h.redis != nil {
		// 发布到 Redis，让所有实例（包括自己）通过订阅收到消息
		payload, err := json.Marshal(env)
		if err == nil {
			h.redis.Publish(context.Background(), redisChannelName, payload)
			return
		}
		h.log.Warn("序列化广播信封失败，回退本地分发", zap.Error(err))
	}
	h.broadcast <- env
}

// BroadcastToRoom 发送帧到指定房间，excludeUserID 不为 0 时跳过该用户的连接
func (h *Hub) BroadcastToRoom(roomID, excludeUserID uint, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("序列化房间广播失败", zap.Uint("room_id", roomID), zap.Error(err))
		return
	}
	h.dispatch(&Envelope{
		Scope:         "room",
		RoomID:        roomID,
		ExcludeUserID: excludeUserID,
		Payload:       data,
	})
}

// SendToUser 发送帧到用户的个人通知通道
func (h *Hub) SendToUser(userID uint, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("序列化个人通知失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	h.dispatch(&Envelope{
		Scope:   "user",
		UserID:  userID,
		Payload: data,
	})
}

// RoomSize 房间当前的连接数，测试与调试用
func (h *Hub) RoomSize(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
