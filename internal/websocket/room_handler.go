package websocket

import (
	"encoding/json"
	"runtime/debug"

	apperrors "github.com/wfunc/tower-game/internal/errors"
	"github.com/wfunc/tower-game/internal/game"
	"go.uber.org/zap"
)

// RoomMessageHandler 主通道消息处理器：把WebSocket事件翻译成
// 房间管理器的操作调用，自身不含任何业务规则
type RoomMessageHandler struct {
	hub     *Hub
	manager *game.Manager
	logger  *zap.Logger
}

// NewRoomMessageHandler 创建房间消息处理器
func NewRoomMessageHandler(hub *Hub, manager *game.Manager, logger *zap.Logger) *RoomMessageHandler {
	return &RoomMessageHandler{
		hub:     hub,
		manager: manager,
		logger:  logger,
	}
}

// HandleClientMessage 处理客户端消息。单条消息内的panic在这里兜底，
// 不能拖垮共享的分发循环。
func (h *RoomMessageHandler) HandleClientMessage(client *Client, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("处理消息时panic",
				zap.String("client_id", client.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			h.hub.SendError(client.ID,
				apperrors.GetMessage(apperrors.ErrInternal),
				int(apperrors.ErrInternal))
		}
	}()

	msg, err := DecodeMessage(data)
	if err != nil {
		h.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", client.ID),
			zap.Error(err))
		h.hub.SendError(client.ID,
			apperrors.GetMessage(apperrors.ErrMessageFormat),
			int(apperrors.ErrMessageFormat))
		return
	}

	if msg.Event == "" {
		h.hub.SendError(client.ID,
			apperrors.GetMessage(apperrors.ErrMessageFormat),
			int(apperrors.ErrMessageFormat))
		return
	}

	switch msg.Event {
	case EventPong:
		// ReadPump已标记存活

	case EventCreateRoom:
		h.handleCreateRoom(client, msg.Payload)

	case EventJoinRoom:
		h.handleJoinRoom(client, msg.Payload)

	case EventLeaveRoom:
		h.handleLeaveRoom(client, msg.Payload)

	case EventPlayerReady:
		h.handleReady(client, msg.Payload)

	case EventStartGame:
		h.handleStartGame(client, msg.Payload)

	case EventGestureEvent:
		h.handleGesture(client, msg.Payload)

	case EventRoomList:
		h.hub.SendToClient(client.ID, game.EventRoomList,
			game.RoomListPayload{Rooms: h.manager.Rooms()})

	case EventGetRoom:
		h.handleGetRoom(client, msg.Payload)

	case EventGetGameState, EventRoundStart, EventNextRoundReady,
		EventRoundEndAck, EventGameReady:
		// 同步提交模型下这些握手事件统一按状态同步请求处理
		h.handleGameStateSync(client)

	default:
		h.logger.Warn("未知消息类型",
			zap.String("client_id", client.ID),
			zap.String("event", msg.Event))
		h.hub.SendError(client.ID, "不支持的消息类型: "+msg.Event,
			int(apperrors.ErrMessageFormat))
	}
}

// sendOpError 把操作错误回给请求方，其他连接不受影响
func (h *RoomMessageHandler) sendOpError(client *Client, err error) {
	code := apperrors.GetCode(err)
	h.hub.SendError(client.ID, err.Error(), int(code))
}

// decode 解析负载，失败时回错误并返回false
func (h *RoomMessageHandler) decode(client *Client, payload json.RawMessage, v interface{}) bool {
	if len(payload) == 0 {
		h.hub.SendError(client.ID,
			apperrors.GetMessage(apperrors.ErrInvalidParam),
			int(apperrors.ErrInvalidParam))
		return false
	}
	if err := json.Unmarshal(payload, v); err != nil {
		h.hub.SendError(client.ID,
			apperrors.GetMessage(apperrors.ErrMessageFormat),
			int(apperrors.ErrMessageFormat))
		return false
	}
	return true
}

func (h *RoomMessageHandler) handleCreateRoom(client *Client, payload json.RawMessage) {
	var req CreateRoomRequest
	if !h.decode(client, payload, &req) {
		return
	}

	room, err := h.manager.CreateRoom(req.RoomID, req.RoomName)
	if err != nil {
		h.sendOpError(client, err)
		return
	}

	// 创建者同时带玩家身份时直接入房
	if req.PlayerID != "" {
		room, err = h.manager.JoinRoom(req.RoomID, req.PlayerID, req.Name, "")
		if err != nil {
			h.sendOpError(client, err)
			return
		}
		h.hub.Bind(client.ID, req.RoomID, req.PlayerID, req.Name)
	}

	h.hub.SendToClient(client.ID, game.EventRoomData, game.RoomPayload{Room: room})
}

func (h *RoomMessageHandler) handleJoinRoom(client *Client, payload json.RawMessage) {
	var req JoinRoomRequest
	if !h.decode(client, payload, &req) {
		return
	}

	room, err := h.manager.JoinRoom(req.RoomID, req.PlayerID, req.Name, game.PlayerKind(req.Kind))
	if err != nil {
		h.sendOpError(client, err)
		return
	}

	h.hub.Bind(client.ID, req.RoomID, req.PlayerID, req.Name)
	h.hub.SendToClient(client.ID, game.EventRoomData, game.RoomPayload{Room: room})
}

func (h *RoomMessageHandler) handleLeaveRoom(client *Client, payload json.RawMessage) {
	var req LeaveRoomRequest
	// 负载缺省时使用连接上的关联
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.hub.SendError(client.ID,
				apperrors.GetMessage(apperrors.ErrMessageFormat),
				int(apperrors.ErrMessageFormat))
			return
		}
	}
	if req.RoomID == "" {
		req.RoomID = client.RoomID
	}
	if req.PlayerID == "" {
		req.PlayerID = client.PlayerID
	}

	h.manager.LeaveRoom(req.RoomID, req.PlayerID)
	h.hub.Unbind(client.ID)
}

func (h *RoomMessageHandler) handleReady(client *Client, payload json.RawMessage) {
	var req ReadyRequest
	if !h.decode(client, payload, &req) {
		return
	}
	if req.RoomID == "" {
		req.RoomID = client.RoomID
	}
	if req.PlayerID == "" {
		req.PlayerID = client.PlayerID
	}

	if err := h.manager.SetReady(req.RoomID, req.PlayerID, req.Ready); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *RoomMessageHandler) handleStartGame(client *Client, payload json.RawMessage) {
	var req StartGameRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.hub.SendError(client.ID,
				apperrors.GetMessage(apperrors.ErrMessageFormat),
				int(apperrors.ErrMessageFormat))
			return
		}
	}
	if req.RoomID == "" {
		req.RoomID = client.RoomID
	}
	if req.PlayerID == "" {
		req.PlayerID = client.PlayerID
	}

	if err := h.manager.StartGame(req.RoomID, req.PlayerID); err != nil {
		h.sendOpError(client, err)
	}
}

func (h *RoomMessageHandler) handleGesture(client *Client, payload json.RawMessage) {
	var req GestureRequest
	if !h.decode(client, payload, &req) {
		return
	}
	if req.RoomID == "" {
		req.RoomID = client.RoomID
	}
	if req.PlayerID == "" {
		req.PlayerID = client.PlayerID
	}

	if !game.ValidAction(req.Gesture) {
		// 非动作手势只透传给房间展示，不进引擎
		h.hub.ToRoom(req.RoomID, game.EventGestureEvent, game.GesturePayload{
			RoomID:     req.RoomID,
			PlayerID:   req.PlayerID,
			Gesture:    req.Gesture,
			Confidence: req.Confidence,
		})
		return
	}

	err := h.manager.SubmitAction(req.RoomID, req.PlayerID,
		game.ActionType(req.Gesture), req.CardID, req.Confidence)
	if err != nil {
		h.sendOpError(client, err)
	}
}

func (h *RoomMessageHandler) handleGetRoom(client *Client, payload json.RawMessage) {
	var req RoomRequest
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.hub.SendError(client.ID,
				apperrors.GetMessage(apperrors.ErrMessageFormat),
				int(apperrors.ErrMessageFormat))
			return
		}
	}
	if req.RoomID == "" {
		req.RoomID = client.RoomID
	}

	room, err := h.manager.GetRoom(req.RoomID)
	if err != nil {
		h.sendOpError(client, err)
		return
	}
	h.hub.SendToClient(client.ID, game.EventRoomData, game.RoomPayload{Room: room})
}

// handleGameStateSync 回发当前对局状态；设备玩家附带私有手牌
func (h *RoomMessageHandler) handleGameStateSync(client *Client) {
	if client.RoomID == "" {
		h.hub.SendError(client.ID,
			apperrors.GetMessage(apperrors.ErrRoomNotFound),
			int(apperrors.ErrRoomNotFound))
		return
	}

	state, err := h.manager.GameSnapshot(client.RoomID)
	if err != nil {
		h.sendOpError(client, err)
		return
	}

	payload := game.GameStatePayload{
		RoomID:    client.RoomID,
		GameState: state,
	}
	if client.PlayerID != "" {
		if hand, err := h.manager.PlayerHand(client.RoomID, client.PlayerID); err == nil {
			payload.Hand = hand
		}
	}

	h.hub.SendToClient(client.ID, game.EventGameStateUpdate, payload)
}
