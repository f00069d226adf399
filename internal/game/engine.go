package game

import (
	"time"

	apperrors "github.com/wfunc/tower-game/internal/errors"
	"go.uber.org/zap"
)

// startGameLocked 初始化对局并进入第一回合，调用方需持有锁
func (m *Manager) startGameLocked(room *Room) {
	room.Status = RoomStatusPlaying
	room.Game = &GameState{
		Round:     1,
		Players:   make(map[string]*PlayerState),
		StartedAt: time.Now(),
	}

	devices := room.DevicePlayers()
	for _, p := range devices {
		room.Game.Players[p.ID] = &PlayerState{
			TowerHeight: 0,
			GoalHeight:  m.goalHeightMin + m.rng.Intn(m.goalHeightMax-m.goalHeightMin+1),
		}
		room.Hands[p.ID] = dealInitialHand(m.rng, m.handSize)
	}
	if len(devices) > 0 {
		room.Game.CurrentTurn = devices[0].ID
	}

	m.logger.Info("游戏开始",
		zap.String("room_id", room.ID),
		zap.Int("device_players", len(devices)))

	m.notifier.ToRoom(room.ID, EventGameStarted, GameStartedPayload{RoomID: room.ID})
	m.notifier.Broadcast(EventRoomList, RoomListPayload{Rooms: m.roomListLocked()})

	// 手牌只私发给持有者
	for _, p := range devices {
		m.notifier.ToPlayer(p.ID, EventGameStateUpdate, GameStatePayload{
			RoomID:    room.ID,
			GameState: room.Game.snapshot(),
			Hand:      room.handSnapshot(p.ID),
		})
	}

	m.startRoundLocked(room)
}

// startRoundLocked 开始当前回合：清提交标记、广播并武装超时定时器
func (m *Manager) startRoundLocked(room *Room) {
	game := room.Game
	game.RoundStart = time.Now()
	for _, ps := range game.Players {
		ps.Submitted = false
	}

	m.notifier.ToRoom(room.ID, EventRoundStart, RoundPayload{
		RoomID:      room.ID,
		RoundNumber: game.Round,
		Duration:    m.roundDuration.Seconds(),
		GameState:   game.snapshot(),
	})
	m.notifier.ToRoom(room.ID, EventTurnStart, TurnPayload{
		RoomID:      room.ID,
		PlayerID:    game.CurrentTurn,
		RoundNumber: game.Round,
	})

	// 超时强制结算；回调用回合号做陈旧定时器保护
	roomID, round := room.ID, game.Round
	time.AfterFunc(m.roundDuration, func() {
		m.expireRound(roomID, round)
	})
}

// expireRound 回合超时回调。房间已结算到下一回合或已结束时直接忽略。
func (m *Manager) expireRound(roomID string, round int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists || room.Status != RoomStatusPlaying || room.Game == nil {
		return
	}
	if room.Game.Round != round {
		// 回合已通过双方提交提前结算
		return
	}

	m.logger.Info("回合超时，强制结算",
		zap.String("room_id", roomID),
		zap.Int("round", round))

	m.resolveRoundLocked(room)
}

// SubmitAction 设备玩家提交动作。动作立即作用于共享状态；
// cardID非空时先经过卡牌校验，校验失败视为从未提交。
func (m *Manager) SubmitAction(roomID, playerID string, action ActionType, cardID string, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists {
		return apperrors.Newf(apperrors.ErrRoomNotFound, "房间 %s 不存在", roomID)
	}

	// 非进行中状态的提交静默丢弃，只记日志
	if room.Status != RoomStatusPlaying || room.Game == nil {
		m.logger.Debug("丢弃非进行中房间的动作",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID),
			zap.String("action", string(action)))
		return nil
	}

	state, ok := room.Game.Players[playerID]
	if !ok {
		return apperrors.Newf(apperrors.ErrPlayerNotFound, "玩家 %s 不在对局中", playerID)
	}

	if state.Submitted {
		m.logger.Debug("丢弃重复提交的动作",
			zap.String("room_id", roomID),
			zap.String("player_id", playerID))
		return nil
	}

	if !ValidAction(string(action)) {
		return apperrors.Newf(apperrors.ErrInvalidAction, "未知动作 %s", action)
	}

	// 卡牌校验失败时不产生任何状态变更
	if cardID != "" {
		if err := room.validateAndConsume(m.rng, playerID, cardID, action); err != nil {
			return err
		}
	}

	state.Submitted = true
	m.applyActionLocked(room, playerID, action)

	m.notifier.ToRoom(room.ID, EventGestureEvent, GesturePayload{
		RoomID:     room.ID,
		PlayerID:   playerID,
		Gesture:    string(action),
		Confidence: confidence,
		CardID:     cardID,
	})

	// 动作生效后立即检查胜负
	if winnerID := m.findWinnerLocked(room); winnerID != "" {
		m.finishGameLocked(room, winnerID)
		return nil
	}

	m.notifier.ToRoom(room.ID, EventGameStateUpdate, GameStatePayload{
		RoomID:    room.ID,
		GameState: room.Game.snapshot(),
	})
	if cardID != "" {
		m.notifier.ToPlayer(playerID, EventGameStateUpdate, GameStatePayload{
			RoomID:    room.ID,
			GameState: room.Game.snapshot(),
			Hand:      room.handSnapshot(playerID),
		})
	}

	// 全员提交则提前结算，否则等超时
	if m.allSubmittedLocked(room) {
		m.resolveRoundLocked(room)
	}

	return nil
}

// applyActionLocked 将动作立即作用于共享状态
func (m *Manager) applyActionLocked(room *Room, playerID string, action ActionType) {
	game := room.Game
	state := game.Players[playerID]

	switch action {
	case ActionAttack:
		// 攻击对手：护盾挡下则无效，护盾到回合结算才清除
		for _, p := range room.DevicePlayers() {
			if p.ID == playerID {
				continue
			}
			opponent := game.Players[p.ID]
			if opponent == nil || opponent.ShieldActive {
				continue
			}
			if opponent.TowerHeight > 0 {
				opponent.TowerHeight--
			}
		}
	case ActionDefend:
		state.ShieldActive = true
	case ActionBuild:
		state.TowerHeight++
	}
}

// allSubmittedLocked 判断本回合是否所有设备玩家都已提交
func (m *Manager) allSubmittedLocked(room *Room) bool {
	for _, p := range room.DevicePlayers() {
		state, ok := room.Game.Players[p.ID]
		if !ok || !state.Submitted {
			return false
		}
	}
	return true
}

// findWinnerLocked 按设备玩家加入顺序检查胜负，返回首个达标者
func (m *Manager) findWinnerLocked(room *Room) string {
	for _, p := range room.DevicePlayers() {
		state, ok := room.Game.Players[p.ID]
		if ok && state.TowerHeight >= state.GoalHeight {
			return p.ID
		}
	}
	return ""
}

// resolveRoundLocked 回合结算：清护盾、判胜负、推进回合
func (m *Manager) resolveRoundLocked(room *Room) {
	game := room.Game

	// 护盾无论是否被消耗都在结算时清除
	for _, ps := range game.Players {
		ps.ShieldActive = false
	}

	if winnerID := m.findWinnerLocked(room); winnerID != "" {
		m.finishGameLocked(room, winnerID)
		return
	}

	endedRound := game.Round
	game.Round++
	m.advanceTurnLocked(room)

	m.notifier.ToRoom(room.ID, EventRoundEnd, RoundPayload{
		RoomID:         room.ID,
		RoundNumber:    endedRound,
		GameState:      game.snapshot(),
		ShouldContinue: true,
	})
	m.notifier.ToRoom(room.ID, EventTurnEnd, TurnPayload{
		RoomID:      room.ID,
		PlayerID:    game.CurrentTurn,
		RoundNumber: endedRound,
	})

	m.startRoundLocked(room)
}

// advanceTurnLocked 轮转回合指针到当前持有者的下一个设备玩家
func (m *Manager) advanceTurnLocked(room *Room) {
	devices := room.DevicePlayers()
	if len(devices) == 0 {
		room.Game.CurrentTurn = ""
		return
	}
	for i, p := range devices {
		if p.ID == room.Game.CurrentTurn {
			room.Game.CurrentTurn = devices[(i+1)%len(devices)].ID
			return
		}
	}
	room.Game.CurrentTurn = devices[0].ID
}

// finishGameLocked 结束对局并广播最终状态
func (m *Manager) finishGameLocked(room *Room, winnerID string) {
	room.Status = RoomStatusEnded
	room.Game.WinnerID = winnerID

	winnerName := ""
	if p := room.FindPlayer(winnerID); p != nil {
		winnerName = p.Name
	}

	m.logger.Info("游戏结束",
		zap.String("room_id", room.ID),
		zap.String("winner_id", winnerID),
		zap.Int("rounds", room.Game.Round))

	m.notifier.ToRoom(room.ID, EventGameEnded, GameEndedPayload{
		RoomID:    room.ID,
		WinnerID:  winnerID,
		GameState: room.Game.snapshot(),
	})
	m.notifier.Broadcast(EventRoomList, RoomListPayload{Rooms: m.roomListLocked()})

	// 对局历史异步落库，失败只影响历史查询
	if m.history != nil {
		roomID, roomName := room.ID, room.Name
		rounds := room.Game.Round
		duration := time.Since(room.Game.StartedAt)
		recorder := m.history
		go recorder.RecordMatch(roomID, roomName, winnerID, winnerName, rounds, duration)
	}
}
