package game

// 服务端推送事件名
const (
	EventRoomUpdated     = "room_updated"
	EventRoomList        = "room_list"
	EventRoomData        = "room_data"
	EventError           = "error"
	EventGameStarted     = "game_started"
	EventGameEnded       = "game_ended"
	EventTurnStart       = "turn_start"
	EventTurnEnd         = "turn_end"
	EventRoundStart      = "round_start"
	EventRoundEnd        = "round_end"
	EventGestureEvent    = "gesture_event"
	EventGameStateUpdate = "game_state_update"
)

// RoomPayload 房间变更推送
type RoomPayload struct {
	Room *Room `json:"room"`
}

// RoomListPayload 房间列表推送
type RoomListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

// GameStartedPayload 游戏开始推送
type GameStartedPayload struct {
	RoomID string `json:"roomId"`
}

// RoundPayload 回合开始/结束推送
type RoundPayload struct {
	RoomID         string     `json:"roomId"`
	RoundNumber    int        `json:"roundNumber"`
	Duration       float64    `json:"duration,omitempty"` // 回合时长（秒）
	GameState      *GameState `json:"gameState"`
	ShouldContinue bool       `json:"shouldContinue,omitempty"`
}

// TurnPayload 回合轮转推送（兼容旧的单人回合模式客户端）
type TurnPayload struct {
	RoomID      string `json:"roomId"`
	PlayerID    string `json:"playerId"`
	RoundNumber int    `json:"roundNumber"`
}

// GameEndedPayload 游戏结束推送
type GameEndedPayload struct {
	RoomID    string     `json:"roomId"`
	WinnerID  string     `json:"winnerId"`
	GameState *GameState `json:"gameState"`
}

// GameStatePayload 对局状态推送；Hand只在私发给持有者时填充
type GameStatePayload struct {
	RoomID    string     `json:"roomId"`
	GameState *GameState `json:"gameState"`
	Hand      Hand       `json:"hand,omitempty"`
}

// GesturePayload 手势动作推送
type GesturePayload struct {
	RoomID     string  `json:"roomId"`
	PlayerID   string  `json:"playerId"`
	Gesture    string  `json:"gesture"`
	Confidence float64 `json:"confidence"`
	CardID     string  `json:"cardId,omitempty"`
}

// ErrorPayload 错误推送，仅发给请求方
type ErrorPayload struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// Notifier 消息扇出接口，由WebSocket Hub实现
// 三个投递原语均为尽力而为：不确认、不重试、不排队
type Notifier interface {
	// ToPlayer 发送给指定玩家的所有连接
	ToPlayer(playerID string, event string, payload interface{})
	// ToRoom 发送给房间内的所有连接（含观战者）
	ToRoom(roomID string, event string, payload interface{})
	// Broadcast 发送给所有在线连接
	Broadcast(event string, payload interface{})
}
