package websocket

import (
	"encoding/json"
	"time"
)

// Message 主通道消息封装，事件名+负载
type Message struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// 客户端请求事件名
const (
	EventCreateRoom     = "create_room"
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventPlayerReady    = "player_ready"
	EventStartGame      = "game_started" // 客户端请求开局与服务端通知同名
	EventGestureEvent   = "gesture_event"
	EventRoomList       = "room_list"
	EventGetRoom        = "get_room"
	EventGetGameState   = "get_game_state"
	EventRoundStart     = "round_start"
	EventNextRoundReady = "next_round_ready"
	EventRoundEndAck    = "round_end_ack"
	EventGameReady      = "game_ready"
	EventPong           = "pong"
)

// 服务端心跳探测事件名
const EventPing = "ping"

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
	PlayerID string `json:"playerId,omitempty"`
	Name     string `json:"playerName,omitempty"`
}

// JoinRoomRequest 加入房间请求
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"playerName"`
	Kind     string `json:"kind,omitempty"` // device | viewer，缺省按ID前缀推断
}

// LeaveRoomRequest 离开房间请求
type LeaveRoomRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// ReadyRequest 准备状态请求
type ReadyRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Ready    bool   `json:"ready"`
}

// StartGameRequest 开局请求
type StartGameRequest struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// GestureRequest 手势动作请求，gesture匹配attack|defend|build时作为动作类型
type GestureRequest struct {
	RoomID     string  `json:"roomId"`
	PlayerID   string  `json:"playerId"`
	Gesture    string  `json:"gesture"`
	Confidence float64 `json:"confidence"`
	CardID     string  `json:"cardId,omitempty"`
}

// RoomRequest 查询单个房间请求
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// NewMessage 构造带时间戳的消息
func NewMessage(event string, payload interface{}) (*Message, error) {
	msg := &Message{
		Event:     event,
		Timestamp: time.Now().Unix(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// Encode 序列化消息
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage 反序列化消息
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
