package bridge

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/wfunc/tower-game/internal/config"
	apperrors "github.com/wfunc/tower-game/internal/errors"
	"github.com/wfunc/tower-game/internal/game"
	"go.uber.org/zap"
)

// deviceSession 桥接维护的设备会话。副通道没有持久连接可供
// 注册表跟踪，这里按设备ID记录房间/玩家关联与最近活跃时间。
type deviceSession struct {
	DeviceID string
	RoomID   string
	PlayerID string
	Name     string
	Addr     *net.UDPAddr // 串口设备为nil
	LastSeen time.Time
}

// Bridge 副通道命令桥：把文本命令协议翻译成房间管理器操作。
// 两个传输（UDP、串口）共用同一套解析与分发。
type Bridge struct {
	mu      sync.Mutex
	devices map[string]*deviceSession

	manager *game.Manager
	conn    *net.UDPConn
	logger  *zap.Logger

	cfg           config.UDPBridgeConfig
	minConfidence float64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBridge 创建命令桥
func NewBridge(cfg config.UDPBridgeConfig, gameCfg *config.GameConfig, manager *game.Manager, logger *zap.Logger) *Bridge {
	minConfidence := 0.5
	if gameCfg != nil && gameCfg.MinConfidence > 0 {
		minConfidence = gameCfg.MinConfidence
	}
	return &Bridge{
		devices:       make(map[string]*deviceSession),
		manager:       manager,
		logger:        logger,
		cfg:           cfg,
		minConfidence: minConfidence,
		stopCh:        make(chan struct{}),
	}
}

// Start 启动UDP监听与设备超时清理
func (b *Bridge) Start() error {
	addr := &net.UDPAddr{
		IP:   net.ParseIP(b.cfg.Host),
		Port: b.cfg.Port,
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrInternal, "UDP监听失败 %s:%d", b.cfg.Host, b.cfg.Port)
	}
	b.conn = conn

	b.logger.Info("副通道桥接已启动",
		zap.String("host", b.cfg.Host),
		zap.Int("port", b.cfg.Port))

	b.wg.Add(2)
	go b.readLoop()
	go b.expireLoop()

	return nil
}

// Stop 停止桥接
func (b *Bridge) Stop() {
	close(b.stopCh)
	if b.conn != nil {
		b.conn.Close()
	}
	b.wg.Wait()
}

// readLoop UDP读取循环，每个数据报一行命令
func (b *Bridge) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, 2048)
	for {
		n, addr, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-b.stopCh:
				return
			default:
				b.logger.Error("UDP读取失败", zap.Error(err))
				continue
			}
		}

		line := string(buf[:n])
		if b.cfg.LogMessages {
			b.logger.Debug("收到副通道消息",
				zap.String("addr", addr.String()),
				zap.String("line", line))
		}

		remote := addr
		b.HandleLine(line, func(resp string) {
			if _, err := b.conn.WriteToUDP([]byte(resp+"\n"), remote); err != nil {
				b.logger.Error("UDP响应发送失败",
					zap.String("addr", remote.String()),
					zap.Error(err))
			}
		}, remote)
	}
}

// expireLoop 周期清理超时设备，触发与心跳清扫相同的强制离房
func (b *Bridge) expireLoop() {
	defer b.wg.Done()

	timeout := b.cfg.DeviceTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	ticker := time.NewTicker(timeout / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.expireDevices(timeout)
		case <-b.stopCh:
			return
		}
	}
}

// expireDevices 移除超时设备并强制离房
func (b *Bridge) expireDevices(timeout time.Duration) {
	now := time.Now()

	b.mu.Lock()
	var expired []*deviceSession
	for id, dev := range b.devices {
		if now.Sub(dev.LastSeen) > timeout {
			expired = append(expired, dev)
			delete(b.devices, id)
		}
	}
	b.mu.Unlock()

	for _, dev := range expired {
		b.logger.Warn("设备超时，强制离房",
			zap.String("device_id", dev.DeviceID),
			zap.String("room_id", dev.RoomID))
		if dev.RoomID != "" {
			b.manager.HandleDisconnect(dev.RoomID, dev.PlayerID)
		}
	}
}

// HandleLine 处理一行副通道输入；reply用于回写响应。
// 解析失败只记日志不响应（没有可靠的回信地址保证）。
func (b *Bridge) HandleLine(line string, reply func(string), addr *net.UDPAddr) {
	if IsGestureLine(line) {
		b.handleGesture(line, addr)
		return
	}

	cmd, err := ParseCommand(line)
	if err != nil {
		b.logger.Warn("丢弃无法解析的副通道命令",
			zap.String("line", line),
			zap.Error(err))
		return
	}

	dev := b.touchDevice(cmd.DeviceID, addr)

	var (
		ok      bool
		message string
	)

	switch cmd.Name {
	case CmdListRooms:
		ok, message = b.handleListRooms()

	case CmdCreateRoom:
		ok, message = b.handleCreateRoom(dev, cmd)

	case CmdJoinRoom:
		ok, message = b.handleJoinRoom(dev, cmd)

	case CmdLeaveRoom:
		ok, message = b.handleLeaveRoom(dev)

	case CmdSetReady:
		ok, message = b.handleSetReady(dev, cmd)

	default:
		ok, message = false, "不支持的命令: "+cmd.Name
	}

	if reply != nil {
		reply(FormatResponse(cmd.Name, cmd.DeviceID, ok, message))
	}
}

// touchDevice 登记/刷新设备会话
func (b *Bridge) touchDevice(deviceID string, addr *net.UDPAddr) *deviceSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	dev, ok := b.devices[deviceID]
	if !ok {
		dev = &deviceSession{DeviceID: deviceID}
		b.devices[deviceID] = dev
	}
	dev.Addr = addr
	dev.LastSeen = time.Now()
	return dev
}

func (b *Bridge) handleListRooms() (bool, string) {
	rooms := b.manager.Rooms()
	data, err := json.Marshal(rooms)
	if err != nil {
		return false, apperrors.GetMessage(apperrors.ErrInternal)
	}
	return true, string(data)
}

func (b *Bridge) handleCreateRoom(dev *deviceSession, cmd *Command) (bool, string) {
	roomID := cmd.Params["RoomID"]
	roomName := cmd.Params["RoomName"]
	playerName := cmd.Params["PlayerName"]
	if roomID == "" || roomName == "" || playerName == "" {
		return false, "缺少RoomID/RoomName/PlayerName参数"
	}

	if _, err := b.manager.CreateRoom(roomID, roomName); err != nil {
		return false, err.Error()
	}

	// 创建者以设备身份入房，自动成为房主；玩家ID就用设备ID
	if _, err := b.manager.JoinRoom(roomID, dev.DeviceID, playerName, game.PlayerKindDevice); err != nil {
		return false, err.Error()
	}

	b.mu.Lock()
	dev.RoomID = roomID
	dev.PlayerID = dev.DeviceID
	dev.Name = playerName
	b.mu.Unlock()

	return true, fmt.Sprintf("已创建并加入房间 %s", roomID)
}

func (b *Bridge) handleJoinRoom(dev *deviceSession, cmd *Command) (bool, string) {
	roomID := cmd.Params["RoomID"]
	playerName := cmd.Params["PlayerName"]
	if roomID == "" || playerName == "" {
		return false, "缺少RoomID/PlayerName参数"
	}

	if _, err := b.manager.JoinRoom(roomID, dev.DeviceID, playerName, game.PlayerKindDevice); err != nil {
		return false, err.Error()
	}

	b.mu.Lock()
	dev.RoomID = roomID
	dev.PlayerID = dev.DeviceID
	dev.Name = playerName
	b.mu.Unlock()

	return true, fmt.Sprintf("已加入房间 %s", roomID)
}

func (b *Bridge) handleLeaveRoom(dev *deviceSession) (bool, string) {
	b.mu.Lock()
	roomID, playerID := dev.RoomID, dev.PlayerID
	dev.RoomID = ""
	dev.PlayerID = ""
	b.mu.Unlock()

	if roomID == "" {
		return true, "设备不在任何房间中"
	}

	b.manager.LeaveRoom(roomID, playerID)
	return true, fmt.Sprintf("已离开房间 %s", roomID)
}

func (b *Bridge) handleSetReady(dev *deviceSession, cmd *Command) (bool, string) {
	b.mu.Lock()
	roomID, playerID := dev.RoomID, dev.PlayerID
	b.mu.Unlock()

	if roomID == "" {
		return false, apperrors.GetMessage(apperrors.ErrRoomNotFound)
	}

	ready := parseReadyValue(cmd.Params["Ready"])
	// 全员就绪时管理器内部自动开局
	if err := b.manager.SetReady(roomID, playerID, ready); err != nil {
		return false, err.Error()
	}

	return true, fmt.Sprintf("准备状态已更新为 %v", ready)
}

// handleGesture 处理手势上报。手势行没有响应，失败只记日志。
func (b *Bridge) handleGesture(line string, addr *net.UDPAddr) {
	g, err := ParseGesture(line)
	if err != nil {
		b.logger.Warn("丢弃无法解析的手势行",
			zap.String("line", line),
			zap.Error(err))
		return
	}

	dev := b.touchDevice(g.DeviceID, addr)

	b.mu.Lock()
	roomID, playerID := dev.RoomID, dev.PlayerID
	b.mu.Unlock()

	if roomID == "" {
		b.logger.Warn("未入房设备的手势被丢弃",
			zap.String("device_id", g.DeviceID))
		return
	}

	if g.Confidence < b.minConfidence {
		b.logger.Debug("手势置信度过低，丢弃",
			zap.String("device_id", g.DeviceID),
			zap.Float64("confidence", g.Confidence))
		return
	}

	if !game.ValidAction(g.Type) {
		b.logger.Debug("忽略非动作手势",
			zap.String("device_id", g.DeviceID),
			zap.String("gesture", g.Type))
		return
	}

	if err := b.manager.SubmitAction(roomID, playerID,
		game.ActionType(g.Type), g.CardID, g.Confidence); err != nil {
		b.logger.Warn("手势动作被拒绝",
			zap.String("device_id", g.DeviceID),
			zap.String("room_id", roomID),
			zap.Error(err))
	}
}

// DeviceCount 返回当前登记的设备数量
func (b *Bridge) DeviceCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.devices)
}
