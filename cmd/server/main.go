package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/tower-game/internal/api"
	"github.com/wfunc/tower-game/internal/bridge"
	"github.com/wfunc/tower-game/internal/config"
	"github.com/wfunc/tower-game/internal/database"
	"github.com/wfunc/tower-game/internal/errors"
	"github.com/wfunc/tower-game/internal/game"
	"github.com/wfunc/tower-game/internal/logger"
	"github.com/wfunc/tower-game/internal/repository"
	ws "github.com/wfunc/tower-game/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	manager      *game.Manager
	hub          *ws.Hub
	udpBridge    *bridge.Bridge
	serialBridge *bridge.SerialBridge
	httpServer   *http.Server

	shutdownCh chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动塔楼对战服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.cfg = newCfg
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
		zap.String("websocket", s.cfg.WebSocket.Path),
		zap.Bool("udp_bridge", s.cfg.Bridge.UDP.Enabled),
		zap.Bool("serial_bridge", s.cfg.Bridge.Serial.Enabled),
	)

	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	// 初始化数据库（可选，对局历史）
	if s.cfg.Database.Enabled {
		if err := database.Init(&s.cfg.Database); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
		}
	} else {
		s.logger.Info("数据库未启用，跳过对局历史")
	}

	// 房间管理器
	s.manager = game.NewManager(&s.cfg.Game, logger.GetModuleLogger("game"))

	// 主通道Hub
	s.hub = ws.NewHub(s.cfg.WebSocket.SweepInterval, logger.GetModuleLogger("websocket"))
	s.hub.SetMessageHandler(ws.NewRoomMessageHandler(s.hub, s.manager, logger.GetModuleLogger("websocket")))
	s.hub.SetEvictFunc(s.manager.HandleDisconnect)
	s.manager.SetNotifier(s.hub)

	// 对局历史落库
	if s.cfg.Database.Enabled {
		matchRepo := repository.NewMatchRepository(database.GetDB())
		s.manager.SetHistoryRecorder(repository.NewMatchRecorder(matchRepo, logger.GetModuleLogger("repository")))
	}

	// 副通道桥接
	if s.cfg.Bridge.UDP.Enabled {
		s.udpBridge = bridge.NewBridge(s.cfg.Bridge.UDP, &s.cfg.Game, s.manager, logger.GetModuleLogger("bridge"))
	}
	if s.cfg.Bridge.Serial.Enabled {
		if s.udpBridge == nil {
			// 串口复用桥接的命令分发，UDP关闭时也要有桥接实例
			s.udpBridge = bridge.NewBridge(s.cfg.Bridge.UDP, &s.cfg.Game, s.manager, logger.GetModuleLogger("bridge"))
		}
		s.serialBridge = bridge.NewSerialBridge(s.cfg.Bridge.Serial, s.udpBridge, logger.GetModuleLogger("bridge"))
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.logger.Info("启动服务...")

	// Hub主循环
	go s.hub.Run()

	// UDP桥接
	if s.udpBridge != nil && s.cfg.Bridge.UDP.Enabled {
		if err := s.udpBridge.Start(); err != nil {
			return err
		}
	}

	// 串口桥接
	if s.serialBridge != nil {
		if err := s.serialBridge.Start(); err != nil {
			// 串口是可选外设，打不开不阻塞启动
			s.logger.Warn("串口桥接启动失败", zap.Error(err))
			s.serialBridge = nil
		}
	}

	// HTTP服务器（REST + WebSocket升级）
	router := api.NewRouter(s.cfg, database.GetDB(), s.manager, s.hub, logger.GetModuleLogger("api"))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.GetEngine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务器异常退出", zap.Error(err))
			close(s.shutdownCh)
		}
	}()

	s.logger.Info("所有服务启动完成")
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.shutdownCh:
		s.logger.Info("内部触发关闭")
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新的HTTP请求
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务器关闭超时", zap.Error(err))
		}
	}

	// 停止桥接
	if s.serialBridge != nil {
		s.serialBridge.Stop()
	}
	if s.udpBridge != nil && s.cfg.Bridge.UDP.Enabled {
		s.udpBridge.Stop()
	}

	// 停止Hub
	s.hub.Stop()

	s.cancel()

	// 关闭数据库
	if s.cfg.Database.Enabled {
		if err := database.Close(); err != nil {
			s.logger.Error("关闭数据库失败", zap.Error(err))
		}
	}

	// 同步日志
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	// 留一点时间给在途goroutine收尾
	time.Sleep(100 * time.Millisecond)

	return nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("塔楼对战服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
}
