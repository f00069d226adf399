package api

import (
	"net/http"

	apperrors "github.com/wfunc/tower-game/internal/errors"
	"github.com/wfunc/tower-game/internal/game"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoomHandler 房间只读接口。房间的增删与对局操作全部走主通道，
// 这里只给运维和网页观战端提供查询视图。
type RoomHandler struct {
	manager *game.Manager
	logger  *zap.Logger
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(manager *game.Manager, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		manager: manager,
		logger:  logger,
	}
}

// ListRooms 房间列表
// @Summary 房间列表
// @Tags rooms
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": h.manager.Rooms(),
	})
}

// GetRoom 房间详情
// @Summary 房间详情
// @Tags rooms
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/rooms/{id} [get]
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.manager.GetRoom(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": room,
	})
}

// GetGameState 对局状态
// @Summary 对局状态
// @Tags rooms
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/rooms/{id}/state [get]
func (h *RoomHandler) GetGameState(c *gin.Context) {
	state, err := h.manager.GameSnapshot(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": state,
	})
}

// respondError 按错误码映射HTTP状态
func (h *RoomHandler) respondError(c *gin.Context, err error) {
	status := 500
	if appErr, ok := err.(*apperrors.AppError); ok {
		status = appErr.HTTPStatus()
	}
	c.JSON(status, gin.H{
		"code":    int(apperrors.GetCode(err)),
		"message": err.Error(),
	})
}
