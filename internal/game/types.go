package game

import (
	"strings"
	"time"
)

// PlayerKind 玩家类型
type PlayerKind string

const (
	// PlayerKindDevice 硬件手势设备，参与对局并占用房间名额
	PlayerKindDevice PlayerKind = "device"
	// PlayerKindViewer 网页观战者，不占名额不参与对局
	PlayerKindViewer PlayerKind = "viewer"
)

// RoomStatus 房间状态
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusPlaying RoomStatus = "playing"
	RoomStatusEnded   RoomStatus = "ended"
)

// ActionType 动作类型
type ActionType string

const (
	ActionAttack ActionType = "attack"
	ActionDefend ActionType = "defend"
	ActionBuild  ActionType = "build"
)

// ValidAction 判断字符串是否为合法动作类型
func ValidAction(s string) bool {
	switch ActionType(s) {
	case ActionAttack, ActionDefend, ActionBuild:
		return true
	}
	return false
}

// InferPlayerKind 根据玩家ID前缀推断玩家类型
// 约定：admin-/viewer- 前缀为观战者，其余为设备玩家
func InferPlayerKind(playerID string) PlayerKind {
	if strings.HasPrefix(playerID, "admin-") || strings.HasPrefix(playerID, "viewer-") {
		return PlayerKindViewer
	}
	return PlayerKindDevice
}

// Player 房间内的参与者
type Player struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      PlayerKind `json:"kind"`
	Ready     bool       `json:"ready"`
	Connected bool       `json:"connected"`
}

// Card 动作卡牌
type Card struct {
	ID          string     `json:"id"`
	Type        ActionType `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}

// Hand 玩家当前持有的卡牌
type Hand []*Card

// PlayerState 对局中单个设备玩家的状态
type PlayerState struct {
	TowerHeight  int  `json:"towerHeight"`
	GoalHeight   int  `json:"goalHeight"`
	ShieldActive bool `json:"shieldActive"`
	Submitted    bool `json:"submitted"`
}

// GameState 对局状态，仅在房间处于playing时存在
type GameState struct {
	Round       int                     `json:"round"`
	CurrentTurn string                  `json:"currentTurn"`
	Players     map[string]*PlayerState `json:"players"`
	StartedAt   time.Time               `json:"startedAt"`
	RoundStart  time.Time               `json:"roundStart"`
	WinnerID    string                  `json:"winnerId,omitempty"`
}

// Room 房间聚合
type Room struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"createdAt"`
	HostID     string     `json:"hostId"`
	Players    []*Player  `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	Status     RoomStatus `json:"status"`

	// 卡牌手牌不随房间整体序列化，只单独推送给持有者
	Hands map[string]Hand `json:"-"`
	Game  *GameState      `json:"game,omitempty"`
}

// RoomSummary 房间列表项（对外公开的摘要）
type RoomSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	PlayerCount int        `json:"playerCount"`
	MaxPlayers  int        `json:"maxPlayers"`
	Status      RoomStatus `json:"status"`
}

// FindPlayer 查找房间内的玩家
func (r *Room) FindPlayer(playerID string) *Player {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// DevicePlayers 返回房间内的设备玩家（保持加入顺序）
func (r *Room) DevicePlayers() []*Player {
	players := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.Kind == PlayerKindDevice {
			players = append(players, p)
		}
	}
	return players
}

// DevicePlayerCount 返回占用名额的设备玩家数量
func (r *Room) DevicePlayerCount() int {
	count := 0
	for _, p := range r.Players {
		if p.Kind == PlayerKindDevice {
			count++
		}
	}
	return count
}

// Summary 生成房间摘要
func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: r.DevicePlayerCount(),
		MaxPlayers:  r.MaxPlayers,
		Status:      r.Status,
	}
}

// snapshot 生成房间的深拷贝，用于在锁外序列化推送
func (r *Room) snapshot() *Room {
	clone := &Room{
		ID:         r.ID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		HostID:     r.HostID,
		MaxPlayers: r.MaxPlayers,
		Status:     r.Status,
	}
	clone.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		clone.Players[i] = &cp
	}
	if r.Game != nil {
		clone.Game = r.Game.snapshot()
	}
	return clone
}

// snapshot 生成对局状态的深拷贝
func (g *GameState) snapshot() *GameState {
	clone := &GameState{
		Round:       g.Round,
		CurrentTurn: g.CurrentTurn,
		StartedAt:   g.StartedAt,
		RoundStart:  g.RoundStart,
		WinnerID:    g.WinnerID,
		Players:     make(map[string]*PlayerState, len(g.Players)),
	}
	for id, ps := range g.Players {
		cp := *ps
		clone.Players[id] = &cp
	}
	return clone
}
