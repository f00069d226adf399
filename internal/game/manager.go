package game

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/tower-game/internal/config"
	apperrors "github.com/wfunc/tower-game/internal/errors"
	"go.uber.org/zap"
)

// HistoryRecorder 对局历史记录接口，由repository层实现
type HistoryRecorder interface {
	RecordMatch(roomID, roomName, winnerID, winnerName string, rounds int, duration time.Duration)
}

// noopNotifier 未注入Notifier时的空实现，方便单元测试
type noopNotifier struct{}

func (noopNotifier) ToPlayer(string, string, interface{}) {}
func (noopNotifier) ToRoom(string, string, interface{})   {}
func (noopNotifier) Broadcast(string, interface{})        {}

// Manager 房间管理器：房间存储、生命周期操作与回合引擎的唯一入口。
// 所有状态变更都在m.mu临界区内一次性完成，两个通道的请求
// 以及回合超时回调都串行化到这把锁上。
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	notifier Notifier
	history  HistoryRecorder
	logger   *zap.Logger
	rng      *rand.Rand

	maxDevicePlayers int
	roundDuration    time.Duration
	goalHeightMin    int
	goalHeightMax    int
	handSize         int
}

// NewManager 创建房间管理器
func NewManager(cfg *config.GameConfig, logger *zap.Logger) *Manager {
	m := &Manager{
		rooms:            make(map[string]*Room),
		notifier:         noopNotifier{},
		logger:           logger,
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		maxDevicePlayers: 2,
		roundDuration:    30 * time.Second,
		goalHeightMin:    5,
		goalHeightMax:    10,
		handSize:         3,
	}

	if cfg != nil {
		if cfg.MaxDevicePlayers > 0 {
			m.maxDevicePlayers = cfg.MaxDevicePlayers
		}
		if cfg.RoundDuration > 0 {
			m.roundDuration = cfg.RoundDuration
		}
		if cfg.GoalHeightMin > 0 && cfg.GoalHeightMax >= cfg.GoalHeightMin {
			m.goalHeightMin = cfg.GoalHeightMin
			m.goalHeightMax = cfg.GoalHeightMax
		}
		if cfg.HandSize > 0 {
			m.handSize = cfg.HandSize
		}
	}

	return m
}

// SetNotifier 注入消息扇出实现（Hub启动后调用）
func (m *Manager) SetNotifier(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n != nil {
		m.notifier = n
	}
}

// SetHistoryRecorder 注入对局历史记录器
func (m *Manager) SetHistoryRecorder(h HistoryRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = h
}

// CreateRoom 创建房间。房主在首个设备玩家加入时确定。
func (m *Manager) CreateRoom(roomID, name string) (*Room, error) {
	if roomID == "" || name == "" {
		return nil, apperrors.New(apperrors.ErrInvalidRoom, "房间ID和名称不能为空")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[roomID]; exists {
		return nil, apperrors.Newf(apperrors.ErrRoomExists, "房间 %s 已存在", roomID)
	}

	room := &Room{
		ID:         roomID,
		Name:       name,
		CreatedAt:  time.Now(),
		Players:    make([]*Player, 0, m.maxDevicePlayers),
		MaxPlayers: m.maxDevicePlayers,
		Status:     RoomStatusWaiting,
		Hands:      make(map[string]Hand),
	}
	m.rooms[roomID] = room

	m.logger.Info("房间已创建",
		zap.String("room_id", roomID),
		zap.String("name", name))

	m.notifier.Broadcast(EventRoomList, RoomListPayload{Rooms: m.roomListLocked()})

	return room.snapshot(), nil
}

// JoinRoom 加入房间。kind为空时按ID前缀推断玩家类型；
// 观战者不占名额且在游戏进行中也可加入。
func (m *Manager) JoinRoom(roomID, playerID, playerName string, kind PlayerKind) (*Room, error) {
	if roomID == "" || playerID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "房间ID和玩家ID不能为空")
	}
	if kind == "" {
		kind = InferPlayerKind(playerID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}

	// 重复加入视为重连
	if p := room.FindPlayer(playerID); p != nil {
		p.Connected = true
		m.notifier.ToRoom(roomID, EventRoomUpdated, RoomPayload{Room: room.snapshot()})
		return room.snapshot(), nil
	}

	if kind == PlayerKindDevice {
		if room.Status == RoomStatusPlaying {
			return nil, apperrors.New(apperrors.ErrGameInProgress)
		}
		if room.DevicePlayerCount() >= room.MaxPlayers {
			return nil, apperrors.Newf(apperrors.ErrRoomFull, "房间 %s 设备玩家已满", roomID)
		}
	}

	player := &Player{
		ID:        playerID,
		Name:      playerName,
		Kind:      kind,
		Connected: true,
	}
	room.Players = append(room.Players, player)

	// 首个设备玩家成为房主
	if room.HostID == "" && kind == PlayerKindDevice {
		room.HostID = playerID
	}

	m.logger.Info("玩家加入房间",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.String("kind", string(kind)))

	m.notifier.ToRoom(roomID, EventRoomUpdated, RoomPayload{Room: room.snapshot()})
	m.notifier.Broadcast(EventRoomList, RoomListPayload{Rooms: m.roomListLocked()})

	return room.snapshot(), nil
}

// LeaveRoom 离开房间。房间或玩家不存在时静默幂等。
func (m *Manager) LeaveRoom(roomID, playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(roomID, playerID)
}

// leaveRoomLocked 离开房间的内部实现，调用方需持有锁
func (m *Manager) leaveRoomLocked(roomID, playerID string) {
	room, exists := m.rooms[roomID]
	if !exists {
		return
	}

	idx := -1
	for i, p := range room.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	leaving := room.Players[idx]
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	delete(room.Hands, playerID)

	// 最后一人离开，房间直接删除
	if len(room.Players) == 0 {
		delete(m.rooms, roomID)
		m.logger.Info("房间已删除（无人）", zap.String("room_id", roomID))
		m.notifier.Broadcast(EventRoomList, RoomListPayload{Rooms: m.roomListLocked()})
		return
	}

	// 房主离开时移交给剩余的第一个玩家
	if room.HostID == playerID {
		room.HostID = room.Players[0].ID
	}

	m.logger.Info("玩家离开房间",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID))

	// 对局进行中设备玩家离开：剩余设备玩家不足两人时按弃权结束
	if room.Status == RoomStatusPlaying && leaving.Kind == PlayerKindDevice &&
		room.Game != nil && room.DevicePlayerCount() < 2 {
		delete(room.Game.Players, playerID)
		winnerID := ""
		if remaining := room.DevicePlayers(); len(remaining) > 0 {
			winnerID = remaining[0].ID
		}
		m.finishGameLocked(room, winnerID)
	}

	m.notifier.ToRoom(roomID, EventRoomUpdated, RoomPayload{Room: room.snapshot()})
	m.notifier.Broadcast(EventRoomList, RoomListPayload{Rooms: m.roomListLocked()})
}

// SetReady 设置准备状态。全部设备玩家（至少2人）就绪时自动开局。
func (m *Manager) SetReady(roomID, playerID string, ready bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}

	player := room.FindPlayer(playerID)
	if player == nil {
		return apperrors.Newf(apperrors.ErrPlayerNotFound, "玩家 %s 不在房间中", playerID)
	}

	player.Ready = ready

	m.notifier.ToRoom(roomID, EventRoomUpdated, RoomPayload{Room: room.snapshot()})

	if ready && room.Status == RoomStatusWaiting && m.allDeviceReadyLocked(room) {
		m.startGameLocked(room)
	}

	return nil
}

// StartGame 房主手动开局
func (m *Manager) StartGame(roomID, requesterID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}
	if room.Status != RoomStatusWaiting {
		return apperrors.New(apperrors.ErrGameInProgress)
	}
	if room.HostID != requesterID {
		return apperrors.New(apperrors.ErrNotHost)
	}
	if !m.allDeviceReadyLocked(room) {
		return apperrors.New(apperrors.ErrNotAllReady)
	}

	m.startGameLocked(room)
	return nil
}

// allDeviceReadyLocked 判断是否所有设备玩家都已就绪（至少2人在场）
func (m *Manager) allDeviceReadyLocked(room *Room) bool {
	devices := room.DevicePlayers()
	if len(devices) < 2 {
		return false
	}
	for _, p := range devices {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Rooms 返回全部房间摘要
func (m *Manager) Rooms() []RoomSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomListLocked()
}

// roomListLocked 生成按创建时间排序的房间摘要，调用方需持有锁
func (m *Manager) roomListLocked() []RoomSummary {
	list := make([]RoomSummary, 0, len(m.rooms))
	for _, room := range m.rooms {
		list = append(list, room.Summary())
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// GetRoom 返回房间的快照
func (m *Manager) GetRoom(roomID string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}
	return room.snapshot(), nil
}

// RoomExists 判断房间是否存在
func (m *Manager) RoomExists(roomID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.rooms[roomID]
	return exists
}

// GameSnapshot 返回对局状态快照
func (m *Manager) GameSnapshot(roomID string) (*GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}
	if room.Game == nil {
		return nil, apperrors.New(apperrors.ErrGameNotStarted)
	}
	return room.Game.snapshot(), nil
}

// PlayerHand 返回玩家当前手牌的拷贝
func (m *Manager) PlayerHand(roomID, playerID string) (Hand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}
	hand := room.handSnapshot(playerID)
	if hand == nil {
		return nil, apperrors.Newf(apperrors.ErrPlayerNotFound, "玩家 %s 没有手牌", playerID)
	}
	return hand, nil
}

// HandleDisconnect 连接断开/心跳超时的强制离房入口。
// 注册表不直接改房间状态，统一走离开逻辑。
func (m *Manager) HandleDisconnect(roomID, playerID string) {
	if roomID == "" || playerID == "" {
		return
	}
	m.LeaveRoom(roomID, playerID)
}
