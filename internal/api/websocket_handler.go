package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/tower-game/internal/config"
	ws "github.com/wfunc/tower-game/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler 主通道升级处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, cfg *config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	readBuf, writeBuf := 1024, 1024
	compression := true
	if cfg != nil {
		if cfg.ReadBufferSize > 0 {
			readBuf = cfg.ReadBufferSize
		}
		if cfg.WriteBufferSize > 0 {
			writeBuf = cfg.WriteBufferSize
		}
		compression = cfg.EnableCompression
	}

	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    readBuf,
			WriteBufferSize:   writeBuf,
			EnableCompression: compression,
			CheckOrigin: func(r *http.Request) bool {
				// 设备和网页观战端来源不固定，放开Origin检查
				return true
			},
		},
		logger: logger,
	}
}

// GameWebSocket 建立主通道连接
func (h *WebSocketHandler) GameWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn)

	// 设备可在握手时携带设备ID
	if deviceID := c.Query("device_id"); deviceID != "" {
		client.DeviceID = deviceID
	}

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.logger.Info("WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.String("device_id", client.DeviceID),
		zap.String("ip", c.ClientIP()))
}
