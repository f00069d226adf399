package bridge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseCommand 测试命令行解析
func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		check   func(t *testing.T, cmd *Command)
	}{
		{
			name: "列出房间",
			line: "CMD:LIST_ROOMS|DeviceID:board-01",
			check: func(t *testing.T, cmd *Command) {
				assert.Equal(t, CmdListRooms, cmd.Name)
				assert.Equal(t, "board-01", cmd.DeviceID)
				assert.Empty(t, cmd.Params)
			},
		},
		{
			name: "创建房间带参数",
			line: "CMD:CREATE_ROOM|DeviceID:board-01|RoomID:room1|RoomName:测试房间|PlayerName:玩家一",
			check: func(t *testing.T, cmd *Command) {
				assert.Equal(t, CmdCreateRoom, cmd.Name)
				assert.Equal(t, "room1", cmd.Params["RoomID"])
				assert.Equal(t, "测试房间", cmd.Params["RoomName"])
				assert.Equal(t, "玩家一", cmd.Params["PlayerName"])
			},
		},
		{
			name: "首尾空白被去除",
			line: "  CMD:SET_READY|DeviceID:board-01|Ready:true\n",
			check: func(t *testing.T, cmd *Command) {
				assert.Equal(t, CmdSetReady, cmd.Name)
				assert.Equal(t, "true", cmd.Params["Ready"])
			},
		},
		{name: "缺少CMD前缀", line: "LIST_ROOMS|DeviceID:x", wantErr: true},
		{name: "命令名为空", line: "CMD:|DeviceID:x", wantErr: true},
		{name: "缺少DeviceID", line: "CMD:LIST_ROOMS", wantErr: true},
		{name: "参数段无冒号", line: "CMD:JOIN_ROOM|DeviceID:x|broken", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cmd)
		})
	}
}

// TestParseGesture 测试手势行解析
func TestParseGesture(t *testing.T) {
	g, err := ParseGesture("GESTURE|board-01|attack|0.92|card-123")
	require.NoError(t, err)
	assert.Equal(t, "board-01", g.DeviceID)
	assert.Equal(t, "attack", g.Type)
	assert.InDelta(t, 0.92, g.Confidence, 1e-9)
	assert.Equal(t, "card-123", g.CardID)

	// 卡牌段可省略
	g, err = ParseGesture("GESTURE|board-01|build|0.75")
	require.NoError(t, err)
	assert.Empty(t, g.CardID)

	tests := []struct {
		name string
		line string
	}{
		{"缺少前缀", "board-01|attack|0.9"},
		{"段数不足", "GESTURE|board-01|attack"},
		{"置信度非数字", "GESTURE|board-01|attack|high"},
		{"设备ID为空", "GESTURE||attack|0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGesture(tt.line)
			assert.Error(t, err)
		})
	}
}

// TestIsGestureLine 测试行类型判断
func TestIsGestureLine(t *testing.T) {
	assert.True(t, IsGestureLine("GESTURE|board-01|attack|0.9"))
	assert.False(t, IsGestureLine("CMD:LIST_ROOMS|DeviceID:x"))
	assert.False(t, IsGestureLine(""))
}

// TestFormatResponse 测试响应行格式
func TestFormatResponse(t *testing.T) {
	resp := FormatResponse(CmdJoinRoom, "board-01", true, "已加入房间 room1")
	assert.Equal(t, "RESPONSE:JOIN_ROOM|DeviceID:board-01|status:SUCCESS|message:已加入房间 room1", resp)

	resp = FormatResponse(CmdCreateRoom, "board-01", false, "房间已存在")
	assert.True(t, strings.Contains(resp, "status:ERROR"))

	// 消息中的竖线被替换，保持协议可解析
	resp = FormatResponse(CmdListRooms, "board-01", true, "a|b")
	assert.Equal(t, "RESPONSE:LIST_ROOMS|DeviceID:board-01|status:SUCCESS|message:a/b", resp)
}

// TestParseReadyValue 测试Ready参数解析
func TestParseReadyValue(t *testing.T) {
	assert.True(t, parseReadyValue("true"))
	assert.True(t, parseReadyValue("TRUE"))
	assert.True(t, parseReadyValue("1"))
	assert.False(t, parseReadyValue("false"))
	assert.False(t, parseReadyValue(""))
	assert.False(t, parseReadyValue("yes"))
}
