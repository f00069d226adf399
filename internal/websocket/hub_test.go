package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newRegisteredClient 绕过Run循环直接注册客户端（仅测试用）
func newRegisteredClient(h *Hub) *Client {
	client := NewClient(h, nil)
	h.registerClient(client)
	return client
}

// readEvent 非阻塞读取客户端收到的事件名
func readEvent(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case data := <-c.Send:
		msg, err := DecodeMessage(data)
		require.NoError(t, err)
		return msg.Event
	case <-time.After(100 * time.Millisecond):
		return ""
	}
}

// TestHub_BindAndRouting 测试关联与定向投递
func TestHub_BindAndRouting(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	c1 := newRegisteredClient(h)
	c2 := newRegisteredClient(h)
	c3 := newRegisteredClient(h)

	h.Bind(c1.ID, "room1", "dev-1", "玩家一")
	h.Bind(c2.ID, "room1", "viewer-1", "观战者")
	h.Bind(c3.ID, "room2", "dev-2", "玩家二")

	// 房间投递只达房间内连接
	h.ToRoom("room1", "room_updated", nil)
	assert.Equal(t, "room_updated", readEvent(t, c1))
	assert.Equal(t, "room_updated", readEvent(t, c2))
	assert.Empty(t, readEvent(t, c3))

	// 玩家投递只达该玩家
	h.ToPlayer("dev-2", "game_state_update", nil)
	assert.Empty(t, readEvent(t, c1))
	assert.Equal(t, "game_state_update", readEvent(t, c3))

	// 广播达所有连接
	h.Broadcast("room_list", nil)
	assert.Equal(t, "room_list", readEvent(t, c1))
	assert.Equal(t, "room_list", readEvent(t, c2))
	assert.Equal(t, "room_list", readEvent(t, c3))
}

// TestHub_Unbind 测试解除关联后不再收到房间消息
func TestHub_Unbind(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	c1 := newRegisteredClient(h)
	h.Bind(c1.ID, "room1", "dev-1", "玩家一")
	h.Unbind(c1.ID)

	h.ToRoom("room1", "room_updated", nil)
	assert.Empty(t, readEvent(t, c1))
}

// TestHub_SendError 测试错误事件投递
func TestHub_SendError(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	c1 := newRegisteredClient(h)
	h.SendError(c1.ID, "房间不存在", 2000)

	select {
	case data := <-c1.Send:
		msg, err := DecodeMessage(data)
		require.NoError(t, err)
		assert.Equal(t, "error", msg.Event)

		var payload struct {
			Error string `json:"error"`
			Code  int    `json:"code"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "房间不存在", payload.Error)
		assert.Equal(t, 2000, payload.Code)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("未收到错误事件")
	}
}

// TestHub_SendBufferFull 测试发送缓冲区满时丢弃不阻塞
func TestHub_SendBufferFull(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	c1 := newRegisteredClient(h)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(c1.Send)+10; i++ {
			h.SendToClient(c1.ID, "room_list", nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("缓冲区满时投递不应阻塞")
	}
}

// TestHub_MarkAlive 测试存活标记
func TestHub_MarkAlive(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	c1 := newRegisteredClient(h)

	h.clientsMu.Lock()
	c1.alive = false
	h.clientsMu.Unlock()

	h.MarkAlive(c1.ID)

	h.clientsMu.RLock()
	alive := c1.alive
	h.clientsMu.RUnlock()
	assert.True(t, alive)

	// 未注册的连接ID静默忽略
	h.MarkAlive("nosuch")
}

// TestHub_OnlineCount 测试在线计数
func TestHub_OnlineCount(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())
	assert.Equal(t, 0, h.OnlineCount())

	newRegisteredClient(h)
	newRegisteredClient(h)
	assert.Equal(t, 2, h.OnlineCount())
}

// TestHub_Sweep 测试心跳清扫：超时连接被移除并强制离房，存活连接收到探测
func TestHub_Sweep(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	type eviction struct {
		roomID   string
		playerID string
	}
	evicted := make(chan eviction, 1)
	h.SetEvictFunc(func(roomID, playerID string) {
		evicted <- eviction{roomID, playerID}
	})

	stale := newRegisteredClient(h)
	fresh := newRegisteredClient(h)
	h.Bind(stale.ID, "room1", "dev-1", "玩家一")
	h.Bind(fresh.ID, "room1", "dev-2", "玩家二")

	// stale整个周期未响应，fresh刚确认存活
	h.clientsMu.Lock()
	stale.alive = false
	h.clientsMu.Unlock()

	h.sweep()

	// 超时连接被移出池并触发强制离房
	assert.Equal(t, 1, h.OnlineCount())
	select {
	case ev := <-evicted:
		assert.Equal(t, "room1", ev.roomID)
		assert.Equal(t, "dev-1", ev.playerID)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("强制离房回调未触发")
	}

	// 存活连接收到心跳探测，存活标记重置等待下一次pong
	assert.Equal(t, EventPing, readEvent(t, fresh))
	h.clientsMu.RLock()
	alive := fresh.alive
	h.clientsMu.RUnlock()
	assert.False(t, alive, "清扫后存活标记应重置")
}

// TestHub_SweepOnlyEvictsBound 测试未关联房间的超时连接不触发离房回调
func TestHub_SweepOnlyEvictsBound(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	called := false
	h.SetEvictFunc(func(roomID, playerID string) {
		called = true
	})

	stale := newRegisteredClient(h)
	h.clientsMu.Lock()
	stale.alive = false
	h.clientsMu.Unlock()

	h.sweep()

	assert.Equal(t, 0, h.OnlineCount())
	assert.False(t, called, "无房间关联的连接不应触发离房")
}

// TestHub_FanoutDuringUnregister 测试扇出与注销并发时不触发向已关闭通道发送
func TestHub_FanoutDuringUnregister(t *testing.T) {
	h := NewHub(time.Minute, zap.NewNop())

	clients := make([]*Client, 0, 50)
	for i := 0; i < 50; i++ {
		c := newRegisteredClient(h)
		h.Bind(c.ID, "room1", "dev-1", "玩家一")
		clients = append(clients, c)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			h.ToRoom("room1", "room_updated", nil)
			h.ToPlayer("dev-1", "game_state_update", nil)
			h.Broadcast("room_list", nil)
		}
	}()

	for _, c := range clients {
		h.unregisterClient(c)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("并发扇出未完成")
	}
	assert.Equal(t, 0, h.OnlineCount())
}
