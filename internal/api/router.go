package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/tower-game/internal/config"
	"github.com/wfunc/tower-game/internal/game"
	"github.com/wfunc/tower-game/internal/middleware"
	"github.com/wfunc/tower-game/internal/repository"
	ws "github.com/wfunc/tower-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine       *gin.Engine
	db           *gorm.DB
	manager      *game.Manager
	roomHandler  *RoomHandler
	matchHandler *MatchHandler
	wsHandler    *WebSocketHandler
	log          *zap.Logger
}

// NewRouter 创建路由器。db可以为nil（数据库关闭时对局历史接口返回503）。
func NewRouter(cfg *config.Config, db *gorm.DB, manager *game.Manager, hub *ws.Hub, log *zap.Logger) *Router {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(middleware.CORS())

	var matchRepo repository.MatchRepository
	if db != nil {
		matchRepo = repository.NewMatchRepository(db)
	}

	router := &Router{
		engine:       engine,
		db:           db,
		manager:      manager,
		roomHandler:  NewRoomHandler(manager, log),
		matchHandler: NewMatchHandler(matchRepo, log),
		wsHandler:    NewWebSocketHandler(hub, &cfg.WebSocket, log),
		log:          log,
	}

	router.setupRoutes(cfg)

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes(cfg *config.Config) {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 房间相关路由（只读视图，状态变更走WebSocket/桥接）
		rooms := v1.Group("/rooms")
		{
			rooms.GET("", r.roomHandler.ListRooms)
			rooms.GET("/:id", r.roomHandler.GetRoom)
			rooms.GET("/:id/state", r.roomHandler.GetGameState)
		}

		// 对局历史路由
		matches := v1.Group("/matches")
		{
			matches.GET("", r.matchHandler.ListMatches)
			matches.GET("/rooms/:id", r.matchHandler.ListByRoom)
			matches.GET("/players/:id/stats", r.matchHandler.PlayerStats)
		}
	}

	// WebSocket路由（主通道）
	wsPath := cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.engine.GET(wsPath, r.wsHandler.GameWebSocket)

	// Swagger文档路由（-tags swagger时启用）
	registerSwaggerRoutes(r.engine)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	status := gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"rooms":   len(r.manager.Rooms()),
	}

	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(500, gin.H{
				"status":  "unhealthy",
				"message": "数据库连接失败",
			})
			return
		}
	}

	c.JSON(200, status)
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
