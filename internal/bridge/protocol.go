package bridge

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/wfunc/tower-game/internal/errors"
)

// 副通道文本协议：
//   命令行   CMD:<COMMAND>|DeviceID:<id>|<key>:<value>|...
//   响应行   RESPONSE:<COMMAND>|DeviceID:<id>|status:<SUCCESS|ERROR>|message:<text>
//   手势行   GESTURE|<deviceId>|<gestureType>|<confidence>|<cardId?>

// 命令名定义
const (
	CmdListRooms  = "LIST_ROOMS"
	CmdCreateRoom = "CREATE_ROOM"
	CmdJoinRoom   = "JOIN_ROOM"
	CmdLeaveRoom  = "LEAVE_ROOM"
	CmdSetReady   = "SET_READY"
)

// 响应状态
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// 行前缀
const (
	cmdPrefix     = "CMD:"
	gesturePrefix = "GESTURE|"
)

// Command 解析后的设备命令
type Command struct {
	Name     string
	DeviceID string
	Params   map[string]string
}

// Gesture 解析后的手势上报
type Gesture struct {
	DeviceID   string
	Type       string
	Confidence float64
	CardID     string
}

// IsGestureLine 判断是否为手势上报行
func IsGestureLine(line string) bool {
	return strings.HasPrefix(line, gesturePrefix)
}

// ParseCommand 解析命令行。DeviceID缺失视为协议错误。
func ParseCommand(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, cmdPrefix) {
		return nil, apperrors.Newf(apperrors.ErrBridgeProtocol, "缺少CMD前缀: %q", line)
	}

	parts := strings.Split(line, "|")
	name := strings.TrimPrefix(parts[0], cmdPrefix)
	if name == "" {
		return nil, apperrors.New(apperrors.ErrBridgeProtocol, "命令名为空")
	}

	cmd := &Command{
		Name:   name,
		Params: make(map[string]string),
	}

	for _, part := range parts[1:] {
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, apperrors.Newf(apperrors.ErrBridgeProtocol, "无效的参数段: %q", part)
		}
		key, value := kv[0], kv[1]
		if key == "DeviceID" {
			cmd.DeviceID = value
			continue
		}
		cmd.Params[key] = value
	}

	if cmd.DeviceID == "" {
		return nil, apperrors.New(apperrors.ErrBridgeProtocol, "缺少DeviceID")
	}

	return cmd, nil
}

// ParseGesture 解析手势行：GESTURE|<deviceId>|<type>|<confidence>|<cardId?>
func ParseGesture(line string) (*Gesture, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, gesturePrefix) {
		return nil, apperrors.Newf(apperrors.ErrBridgeProtocol, "缺少GESTURE前缀: %q", line)
	}

	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return nil, apperrors.Newf(apperrors.ErrBridgeProtocol, "手势行段数不足: %q", line)
	}

	confidence, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrBridgeProtocol, "无效的置信度: %q", parts[3])
	}

	g := &Gesture{
		DeviceID:   parts[1],
		Type:       parts[2],
		Confidence: confidence,
	}
	if g.DeviceID == "" || g.Type == "" {
		return nil, apperrors.New(apperrors.ErrBridgeProtocol, "设备ID或手势类型为空")
	}
	if len(parts) >= 5 {
		g.CardID = parts[4]
	}

	return g, nil
}

// FormatResponse 生成响应行
func FormatResponse(command, deviceID string, ok bool, message string) string {
	status := StatusError
	if ok {
		status = StatusSuccess
	}
	// 竖线是协议分隔符，消息内出现时替换掉
	message = strings.ReplaceAll(message, "|", "/")
	return fmt.Sprintf("RESPONSE:%s|DeviceID:%s|status:%s|message:%s",
		command, deviceID, status, message)
}

// parseReadyValue 解析Ready参数，接受true/1
func parseReadyValue(v string) bool {
	return v == "true" || v == "1" || v == "TRUE" || v == "True"
}
