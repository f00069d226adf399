package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMessage 测试消息构造
func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(EventRoomList, map[string]string{"key": "value"})
	require.NoError(t, err)
	assert.Equal(t, EventRoomList, msg.Event)
	assert.NotZero(t, msg.Timestamp)
	assert.NotEmpty(t, msg.Payload)

	// 空负载
	msg, err = NewMessage(EventPong, nil)
	require.NoError(t, err)
	assert.Empty(t, msg.Payload)
}

// TestMessage_EncodeDecode 测试消息编解码
func TestMessage_EncodeDecode(t *testing.T) {
	msg, err := NewMessage(EventJoinRoom, JoinRoomRequest{
		RoomID:   "room1",
		PlayerID: "dev-1",
		Name:     "玩家一",
	})
	require.NoError(t, err)

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, EventJoinRoom, decoded.Event)

	var req JoinRoomRequest
	require.NoError(t, json.Unmarshal(decoded.Payload, &req))
	assert.Equal(t, "room1", req.RoomID)
	assert.Equal(t, "dev-1", req.PlayerID)
}

// TestDecodeMessage_Invalid 测试非法消息解析
func TestDecodeMessage_Invalid(t *testing.T) {
	_, err := DecodeMessage([]byte("not json"))
	assert.Error(t, err)

	// 缺少事件名不算解析错误，由上层处理
	msg, err := DecodeMessage([]byte(`{"payload":{}}`))
	require.NoError(t, err)
	assert.Empty(t, msg.Event)
}

// TestGestureRequest_Unmarshal 测试手势请求字段映射
func TestGestureRequest_Unmarshal(t *testing.T) {
	data := []byte(`{"roomId":"room1","playerId":"dev-1","gesture":"attack","confidence":0.87,"cardId":"c1"}`)

	var req GestureRequest
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, "attack", req.Gesture)
	assert.InDelta(t, 0.87, req.Confidence, 1e-9)
	assert.Equal(t, "c1", req.CardID)
}
