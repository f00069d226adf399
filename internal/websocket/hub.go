package websocket

import (
	"sync"
	"time"

	"github.com/wfunc/tower-game/internal/game"
	"go.uber.org/zap"
)

// MessageHandler 客户端消息处理器接口
type MessageHandler interface {
	HandleClientMessage(client *Client, data []byte)
}

// EvictFunc 心跳超时/断线时的强制离房回调
type EvictFunc func(roomID, playerID string)

// Hub 连接注册表与消息扇出中心。
// 连接的生死、房间/玩家关联都记在这里；
// 房间状态本身永远不在这里修改，统一走房间管理器。
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 关闭通知
	stopCh chan struct{}

	// 心跳清扫间隔
	sweepInterval time.Duration

	// 强制离房回调
	onEvict EvictFunc

	// 消息处理器
	messageHandler MessageHandler

	// 日志
	logger *zap.Logger
}

// NewHub 创建Hub
func NewHub(sweepInterval time.Duration, logger *zap.Logger) *Hub {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &Hub{
		clients:       make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		stopCh:        make(chan struct{}),
		sweepInterval: sweepInterval,
		logger:        logger,
	}
}

// SetMessageHandler 设置消息处理器
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.messageHandler = handler
}

// SetEvictFunc 设置强制离房回调
func (h *Hub) SetEvictFunc(fn EvictFunc) {
	h.onEvict = fn
}

// Run 运行Hub主循环
func (h *Hub) Run() {
	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.sweep()

		case <-h.stopCh:
			return
		}
	}
}

// Stop 停止Hub主循环
func (h *Hub) Stop() {
	close(h.stopCh)
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	client.alive = true
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID))
}

// unregisterClient 注销客户端，如有房间关联则触发强制离房
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	stored, ok := h.clients[client.ID]
	var roomID, playerID string
	if ok {
		roomID, playerID = stored.RoomID, stored.PlayerID
		delete(h.clients, client.ID)
		close(stored.Send)
	}
	h.clientsMu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.String("player_id", playerID))

	if roomID != "" && playerID != "" && h.onEvict != nil {
		h.onEvict(roomID, playerID)
	}
}

// sweep 心跳清扫：上一轮没有响应的连接被强制下线，
// 其余连接重置存活标记并下发心跳探测
func (h *Hub) sweep() {
	type evicted struct {
		client   *Client
		roomID   string
		playerID string
	}

	h.clientsMu.Lock()
	var dead []evicted
	var live []*Client
	for _, client := range h.clients {
		if !client.alive {
			// 房间关联必须在持锁时读取，解锁后可能被Bind/Unbind改写
			dead = append(dead, evicted{client, client.RoomID, client.PlayerID})
			continue
		}
		client.alive = false
		live = append(live, client)
	}
	for _, d := range dead {
		delete(h.clients, d.client.ID)
		close(d.client.Send)
	}
	h.clientsMu.Unlock()

	for _, d := range dead {
		h.logger.Warn("心跳超时，移除连接",
			zap.String("client_id", d.client.ID),
			zap.String("player_id", d.playerID))
		if d.client.Conn != nil {
			d.client.Conn.Close()
		}
		if d.roomID != "" && d.playerID != "" && h.onEvict != nil {
			h.onEvict(d.roomID, d.playerID)
		}
	}

	h.clientsMu.RLock()
	for _, client := range live {
		// 清扫途中可能已有连接注销，只向仍在池中的连接探测
		if _, ok := h.clients[client.ID]; ok {
			h.sendToClient(client, EventPing, nil)
		}
	}
	h.clientsMu.RUnlock()
}

// MarkAlive 标记连接存活（收到pong或任意消息时调用）
func (h *Hub) MarkAlive(clientID string) {
	h.clientsMu.Lock()
	if client, ok := h.clients[clientID]; ok {
		client.alive = true
	}
	h.clientsMu.Unlock()
}

// Bind 建立连接与房间/玩家的关联
func (h *Hub) Bind(clientID, roomID, playerID, playerName string) {
	h.clientsMu.Lock()
	if client, ok := h.clients[clientID]; ok {
		client.RoomID = roomID
		client.PlayerID = playerID
		client.PlayerName = playerName
	}
	h.clientsMu.Unlock()
}

// Unbind 解除连接的房间关联
func (h *Hub) Unbind(clientID string) {
	h.clientsMu.Lock()
	if client, ok := h.clients[clientID]; ok {
		client.RoomID = ""
		client.PlayerID = ""
	}
	h.clientsMu.Unlock()
}

// OnlineCount 返回在线连接数
func (h *Hub) OnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// sendToClient 向单个客户端投递事件（尽力而为）。
// 调用方必须持有clientsMu，防止与close(Send)并发
func (h *Hub) sendToClient(client *Client, event string, payload interface{}) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err), zap.String("event", event))
		return
	}
	data, err := msg.Encode()
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err), zap.String("event", event))
		return
	}

	select {
	case client.Send <- data:
	default:
		// 发送缓冲区满，丢弃
		h.logger.Warn("客户端发送缓冲区满",
			zap.String("client_id", client.ID),
			zap.String("event", event))
	}
}

// SendToClient 向指定连接投递事件
func (h *Hub) SendToClient(clientID, event string, payload interface{}) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	if client, ok := h.clients[clientID]; ok {
		h.sendToClient(client, event, payload)
	}
}

// ToPlayer 向指定玩家的所有连接投递事件，实现game.Notifier
func (h *Hub) ToPlayer(playerID, event string, payload interface{}) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range h.clients {
		if client.PlayerID == playerID {
			h.sendToClient(client, event, payload)
		}
	}
}

// ToRoom 向房间内所有连接投递事件，实现game.Notifier
func (h *Hub) ToRoom(roomID, event string, payload interface{}) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range h.clients {
		if client.RoomID == roomID {
			h.sendToClient(client, event, payload)
		}
	}
}

// Broadcast 向所有在线连接投递事件，实现game.Notifier
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range h.clients {
		h.sendToClient(client, event, payload)
	}
}

// SendError 向指定连接发送错误事件
func (h *Hub) SendError(clientID string, message string, code int) {
	h.SendToClient(clientID, game.EventError, game.ErrorPayload{
		Error: message,
		Code:  code,
	})
}

var _ game.Notifier = (*Hub)(nil)
