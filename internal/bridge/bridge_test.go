package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/tower-game/internal/config"
	"github.com/wfunc/tower-game/internal/game"
	"go.uber.org/zap"
)

// newTestBridge 创建不监听UDP的桥接，直接喂HandleLine
func newTestBridge() (*Bridge, *game.Manager) {
	manager := game.NewManager(&config.GameConfig{
		MaxDevicePlayers: 2,
		RoundDuration:    time.Hour,
		GoalHeightMin:    5,
		GoalHeightMax:    10,
		HandSize:         3,
		MinConfidence:    0.5,
	}, zap.NewNop())

	b := NewBridge(config.UDPBridgeConfig{}, &config.GameConfig{MinConfidence: 0.5}, manager, zap.NewNop())
	return b, manager
}

// capture 收集响应行
type capture struct {
	lines []string
}

func (c *capture) reply(line string) {
	c.lines = append(c.lines, line)
}

func (c *capture) last() string {
	if len(c.lines) == 0 {
		return ""
	}
	return c.lines[len(c.lines)-1]
}

// TestHandleLine_CreateAndJoin 测试建房与入房命令
func TestHandleLine_CreateAndJoin(t *testing.T) {
	b, manager := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1|RoomName:测试房间|PlayerName:玩家一", c.reply, nil)
	require.Contains(t, c.last(), "status:SUCCESS")
	assert.True(t, manager.RoomExists("room1"))

	room, err := manager.GetRoom("room1")
	require.NoError(t, err)
	assert.Equal(t, "board-01", room.HostID, "建房设备应成为房主")

	b.HandleLine("CMD:JOIN_ROOM|DeviceID:board-02|RoomID:room1|PlayerName:玩家二", c.reply, nil)
	require.Contains(t, c.last(), "status:SUCCESS")

	room, err = manager.GetRoom("room1")
	require.NoError(t, err)
	assert.Equal(t, 2, room.DevicePlayerCount())
	assert.Equal(t, 2, b.DeviceCount())
}

// TestHandleLine_ListRooms 测试房间列表命令
func TestHandleLine_ListRooms(t *testing.T) {
	b, manager := newTestBridge()
	manager.CreateRoom("room1", "测试房间")

	c := &capture{}
	b.HandleLine("CMD:LIST_ROOMS|DeviceID:board-01", c.reply, nil)

	require.Contains(t, c.last(), "status:SUCCESS")
	assert.Contains(t, c.last(), `"id":"room1"`)
}

// TestHandleLine_MissingParams 测试参数缺失的错误响应
func TestHandleLine_MissingParams(t *testing.T) {
	b, _ := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1", c.reply, nil)
	assert.Contains(t, c.last(), "status:ERROR")

	b.HandleLine("CMD:JOIN_ROOM|DeviceID:board-01", c.reply, nil)
	assert.Contains(t, c.last(), "status:ERROR")
}

// TestHandleLine_UnknownCommand 测试未知命令响应
func TestHandleLine_UnknownCommand(t *testing.T) {
	b, _ := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:REBOOT|DeviceID:board-01", c.reply, nil)
	assert.Contains(t, c.last(), "status:ERROR")
	assert.Contains(t, c.last(), "RESPONSE:REBOOT")
}

// TestHandleLine_UnparseableDropped 测试无法解析的行静默丢弃
func TestHandleLine_UnparseableDropped(t *testing.T) {
	b, _ := newTestBridge()
	c := &capture{}

	b.HandleLine("garbage line", c.reply, nil)
	assert.Empty(t, c.lines, "解析失败不应有响应")
}

// TestHandleLine_LeaveRoom 测试离房命令
func TestHandleLine_LeaveRoom(t *testing.T) {
	b, manager := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1|RoomName:测试房间|PlayerName:玩家一", c.reply, nil)
	b.HandleLine("CMD:LEAVE_ROOM|DeviceID:board-01", c.reply, nil)

	assert.Contains(t, c.last(), "status:SUCCESS")
	assert.False(t, manager.RoomExists("room1"), "最后一人离开后房间删除")

	// 不在房间时幂等成功
	b.HandleLine("CMD:LEAVE_ROOM|DeviceID:board-01", c.reply, nil)
	assert.Contains(t, c.last(), "status:SUCCESS")
}

// TestHandleLine_SetReadyAutoStart 测试就绪命令触发自动开局
func TestHandleLine_SetReadyAutoStart(t *testing.T) {
	b, manager := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1|RoomName:测试房间|PlayerName:玩家一", c.reply, nil)
	b.HandleLine("CMD:JOIN_ROOM|DeviceID:board-02|RoomID:room1|PlayerName:玩家二", c.reply, nil)
	b.HandleLine("CMD:SET_READY|DeviceID:board-01|Ready:true", c.reply, nil)
	b.HandleLine("CMD:SET_READY|DeviceID:board-02|Ready:true", c.reply, nil)

	room, err := manager.GetRoom("room1")
	require.NoError(t, err)
	assert.Equal(t, game.RoomStatusPlaying, room.Status)
}

// TestHandleLine_SetReadyWithoutRoom 测试未入房设备的就绪命令
func TestHandleLine_SetReadyWithoutRoom(t *testing.T) {
	b, _ := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:SET_READY|DeviceID:board-01|Ready:true", c.reply, nil)
	assert.Contains(t, c.last(), "status:ERROR")
}

// TestHandleLine_Gesture 测试手势行进入对局
func TestHandleLine_Gesture(t *testing.T) {
	b, manager := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1|RoomName:测试房间|PlayerName:玩家一", c.reply, nil)
	b.HandleLine("CMD:JOIN_ROOM|DeviceID:board-02|RoomID:room1|PlayerName:玩家二", c.reply, nil)
	b.HandleLine("CMD:SET_READY|DeviceID:board-01|Ready:true", c.reply, nil)
	b.HandleLine("CMD:SET_READY|DeviceID:board-02|Ready:true", c.reply, nil)

	before := len(c.lines)
	b.HandleLine("GESTURE|board-01|build|0.9", c.reply, nil)
	assert.Equal(t, before, len(c.lines), "手势行不应有响应")

	state, err := manager.GameSnapshot("room1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Players["board-01"].TowerHeight)
}

// TestHandleLine_GestureLowConfidence 测试低置信度手势被丢弃
func TestHandleLine_GestureLowConfidence(t *testing.T) {
	b, manager := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1|RoomName:测试房间|PlayerName:玩家一", c.reply, nil)
	b.HandleLine("CMD:JOIN_ROOM|DeviceID:board-02|RoomID:room1|PlayerName:玩家二", c.reply, nil)
	b.HandleLine("CMD:SET_READY|DeviceID:board-01|Ready:true", c.reply, nil)
	b.HandleLine("CMD:SET_READY|DeviceID:board-02|Ready:true", c.reply, nil)

	b.HandleLine("GESTURE|board-01|build|0.3", c.reply, nil)

	state, err := manager.GameSnapshot("room1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Players["board-01"].TowerHeight, "低置信度不应生效")
}

// TestHandleLine_GestureWithoutRoom 测试未入房设备的手势被丢弃
func TestHandleLine_GestureWithoutRoom(t *testing.T) {
	b, _ := newTestBridge()
	c := &capture{}

	b.HandleLine("GESTURE|board-01|build|0.9", c.reply, nil)
	assert.Empty(t, c.lines)
	assert.Equal(t, 1, b.DeviceCount(), "手势仍应登记设备")
}

// TestResponseFormat 测试响应可被设备解析
func TestResponseFormat(t *testing.T) {
	b, _ := newTestBridge()
	c := &capture{}

	b.HandleLine("CMD:LIST_ROOMS|DeviceID:board-01", c.reply, nil)

	resp := c.last()
	require.True(t, strings.HasPrefix(resp, "RESPONSE:LIST_ROOMS|"))
	assert.Contains(t, resp, "DeviceID:board-01")
}
