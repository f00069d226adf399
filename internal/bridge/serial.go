package bridge

import (
	"bufio"
	"sync"

	"github.com/tarm/serial"
	"github.com/wfunc/tower-game/internal/config"
	apperrors "github.com/wfunc/tower-game/internal/errors"
	"go.uber.org/zap"
)

// SerialBridge 串口桥接：直连设备走串口上报同一套文本协议，
// 解析与分发复用Bridge.HandleLine。
type SerialBridge struct {
	bridge *Bridge
	cfg    config.SerialBridgeConfig
	logger *zap.Logger

	mu   sync.Mutex
	port *serial.Port

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewSerialBridge 创建串口桥接
func NewSerialBridge(cfg config.SerialBridgeConfig, bridge *Bridge, logger *zap.Logger) *SerialBridge {
	return &SerialBridge{
		bridge: bridge,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start 打开串口并启动读取循环
func (s *SerialBridge) Start() error {
	c := &serial.Config{
		Name:        s.cfg.Port,
		Baud:        s.cfg.BaudRate,
		ReadTimeout: s.cfg.ReadTimeout,
	}

	port, err := serial.OpenPort(c)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrInternal, "打开串口失败 %s", s.cfg.Port)
	}

	s.mu.Lock()
	s.port = port
	s.mu.Unlock()

	s.logger.Info("串口桥接已启动",
		zap.String("port", s.cfg.Port),
		zap.Int("baud_rate", s.cfg.BaudRate))

	s.wg.Add(1)
	go s.readLoop()

	return nil
}

// Stop 关闭串口
func (s *SerialBridge) Stop() {
	close(s.stopCh)

	s.mu.Lock()
	if s.port != nil {
		s.port.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// readLoop 按行读取串口数据并交给桥接分发
func (s *SerialBridge) readLoop() {
	defer s.wg.Done()

	scanner := bufio.NewScanner(s.port)
	scanner.Buffer(make([]byte, 2048), 2048)

	for scanner.Scan() {
		select {
		case <-s.stopCh:
			return
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		// 串口设备没有回信地址，响应直接写回串口
		s.bridge.HandleLine(line, func(resp string) {
			s.write(resp + "\n")
		}, nil)
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-s.stopCh:
		default:
			s.logger.Error("串口读取错误", zap.Error(err))
		}
	}
}

// write 写回串口响应
func (s *SerialBridge) write(data string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return
	}
	if _, err := s.port.Write([]byte(data)); err != nil {
		s.logger.Error("串口写入失败", zap.Error(err))
	}
}
