package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/tower-game/internal/config"
	apperrors "github.com/wfunc/tower-game/internal/errors"
	"go.uber.org/zap"
)

// newTestManager 创建测试用管理器，回合时长拉长避免定时器干扰
func newTestManager() *Manager {
	return NewManager(&config.GameConfig{
		MaxDevicePlayers: 2,
		RoundDuration:    time.Hour,
		GoalHeightMin:    5,
		GoalHeightMax:    10,
		HandSize:         3,
	}, zap.NewNop())
}

// ManagerTestSuite 房间管理器测试套件
type ManagerTestSuite struct {
	suite.Suite
	manager *Manager
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.manager = newTestManager()
}

// TestCreateRoom 测试创建房间
func (suite *ManagerTestSuite) TestCreateRoom() {
	room, err := suite.manager.CreateRoom("room1", "测试房间")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "room1", room.ID)
	assert.Equal(suite.T(), RoomStatusWaiting, room.Status)
	assert.Equal(suite.T(), 2, room.MaxPlayers)
	assert.Empty(suite.T(), room.HostID, "房主应在首个设备玩家加入时确定")
}

// TestCreateRoom_Validation 测试创建房间的参数校验
func (suite *ManagerTestSuite) TestCreateRoom_Validation() {
	tests := []struct {
		name   string
		roomID string
		title  string
	}{
		{"空房间ID", "", "名称"},
		{"空房间名称", "room1", ""},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := suite.manager.CreateRoom(tt.roomID, tt.title)
			assert.True(suite.T(), apperrors.Is(err, apperrors.ErrInvalidRoom))
		})
	}
}

// TestCreateRoom_Duplicate 测试重复创建房间
func (suite *ManagerTestSuite) TestCreateRoom_Duplicate() {
	_, err := suite.manager.CreateRoom("room1", "测试房间")
	require.NoError(suite.T(), err)

	_, err = suite.manager.CreateRoom("room1", "另一个房间")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrRoomExists))
}

// TestJoinRoom_FirstDeviceBecomesHost 测试首个设备玩家成为房主
func (suite *ManagerTestSuite) TestJoinRoom_FirstDeviceBecomesHost() {
	suite.manager.CreateRoom("room1", "测试房间")

	room, err := suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "dev-1", room.HostID)

	room, err = suite.manager.JoinRoom("room1", "dev-2", "玩家二", PlayerKindDevice)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "dev-1", room.HostID, "房主不应随后续加入变化")
}

// TestJoinRoom_KindInference 测试按ID前缀推断玩家类型
func (suite *ManagerTestSuite) TestJoinRoom_KindInference() {
	suite.manager.CreateRoom("room1", "测试房间")

	room, err := suite.manager.JoinRoom("room1", "viewer-web1", "观战者", "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), PlayerKindViewer, room.FindPlayer("viewer-web1").Kind)
	assert.Empty(suite.T(), room.HostID, "观战者不应成为房主")

	room, err = suite.manager.JoinRoom("room1", "board-01", "设备", "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), PlayerKindDevice, room.FindPlayer("board-01").Kind)
	assert.Equal(suite.T(), "board-01", room.HostID)
}

// TestJoinRoom_DeviceCapacity 测试设备玩家名额限制
func (suite *ManagerTestSuite) TestJoinRoom_DeviceCapacity() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	suite.manager.JoinRoom("room1", "dev-2", "玩家二", PlayerKindDevice)

	_, err := suite.manager.JoinRoom("room1", "dev-3", "玩家三", PlayerKindDevice)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrRoomFull))

	// 观战者不受名额限制
	room, err := suite.manager.JoinRoom("room1", "viewer-1", "观战者", PlayerKindViewer)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), room.Players, 3)
	assert.Equal(suite.T(), 2, room.DevicePlayerCount())
}

// TestJoinRoom_Rejoin 测试重复加入视为重连
func (suite *ManagerTestSuite) TestJoinRoom_Rejoin() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)

	room, err := suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), room.Players, 1)
	assert.True(suite.T(), room.FindPlayer("dev-1").Connected)
}

// TestJoinRoom_DeviceBlockedWhilePlaying 测试对局中设备玩家不能加入
func (suite *ManagerTestSuite) TestJoinRoom_DeviceBlockedWhilePlaying() {
	suite.startTwoPlayerGame("room1")

	_, err := suite.manager.JoinRoom("room1", "dev-3", "玩家三", PlayerKindDevice)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrGameInProgress))

	// 观战者在对局中仍可加入
	_, err = suite.manager.JoinRoom("room1", "viewer-1", "观战者", PlayerKindViewer)
	assert.NoError(suite.T(), err)
}

// TestLeaveRoom_Idempotent 测试离开房间的幂等性
func (suite *ManagerTestSuite) TestLeaveRoom_Idempotent() {
	suite.manager.LeaveRoom("nosuch", "dev-1")

	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.LeaveRoom("room1", "notin")
	assert.True(suite.T(), suite.manager.RoomExists("room1"))
}

// TestLeaveRoom_EmptyRoomDeleted 测试最后一人离开后房间删除
func (suite *ManagerTestSuite) TestLeaveRoom_EmptyRoomDeleted() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)

	suite.manager.LeaveRoom("room1", "dev-1")
	assert.False(suite.T(), suite.manager.RoomExists("room1"))
	assert.Empty(suite.T(), suite.manager.Rooms())
}

// TestLeaveRoom_HostReassigned 测试房主离开后移交
func (suite *ManagerTestSuite) TestLeaveRoom_HostReassigned() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	suite.manager.JoinRoom("room1", "dev-2", "玩家二", PlayerKindDevice)

	suite.manager.LeaveRoom("room1", "dev-1")

	room, err := suite.manager.GetRoom("room1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "dev-2", room.HostID)
}

// TestLeaveRoom_ForfeitDuringGame 测试对局中设备玩家离开按弃权结束
func (suite *ManagerTestSuite) TestLeaveRoom_ForfeitDuringGame() {
	suite.startTwoPlayerGame("room1")

	suite.manager.LeaveRoom("room1", "dev-1")

	room, err := suite.manager.GetRoom("room1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), RoomStatusEnded, room.Status)
	assert.Equal(suite.T(), "dev-2", room.Game.WinnerID, "留下的玩家判胜")
}

// TestSetReady_AutoStart 测试全员就绪自动开局
func (suite *ManagerTestSuite) TestSetReady_AutoStart() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	suite.manager.JoinRoom("room1", "dev-2", "玩家二", PlayerKindDevice)

	require.NoError(suite.T(), suite.manager.SetReady("room1", "dev-1", true))
	room, _ := suite.manager.GetRoom("room1")
	assert.Equal(suite.T(), RoomStatusWaiting, room.Status, "单人就绪不应开局")

	require.NoError(suite.T(), suite.manager.SetReady("room1", "dev-2", true))
	room, _ = suite.manager.GetRoom("room1")
	assert.Equal(suite.T(), RoomStatusPlaying, room.Status)
	assert.NotNil(suite.T(), room.Game)
	assert.Equal(suite.T(), 1, room.Game.Round)
}

// TestSetReady_SinglePlayerNoStart 测试单设备玩家就绪不开局
func (suite *ManagerTestSuite) TestSetReady_SinglePlayerNoStart() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)

	require.NoError(suite.T(), suite.manager.SetReady("room1", "dev-1", true))

	room, _ := suite.manager.GetRoom("room1")
	assert.Equal(suite.T(), RoomStatusWaiting, room.Status)
}

// TestSetReady_Errors 测试准备状态的错误分支
func (suite *ManagerTestSuite) TestSetReady_Errors() {
	err := suite.manager.SetReady("nosuch", "dev-1", true)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrRoomNotFound))

	suite.manager.CreateRoom("room1", "测试房间")
	err = suite.manager.SetReady("room1", "notin", true)
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrPlayerNotFound))
}

// TestStartGame_HostOnly 测试仅房主可手动开局
func (suite *ManagerTestSuite) TestStartGame_HostOnly() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	suite.manager.JoinRoom("room1", "dev-2", "玩家二", PlayerKindDevice)

	err := suite.manager.StartGame("room1", "dev-2")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrNotHost))

	err = suite.manager.StartGame("room1", "dev-1")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrNotAllReady))

	suite.manager.SetReady("room1", "dev-1", true)
	// 就绪但未触发自动开局前手动开局
	room, _ := suite.manager.GetRoom("room1")
	if room.Status == RoomStatusWaiting {
		suite.manager.SetReady("room1", "dev-2", true)
	}

	room, _ = suite.manager.GetRoom("room1")
	assert.Equal(suite.T(), RoomStatusPlaying, room.Status)

	err = suite.manager.StartGame("room1", "dev-1")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrGameInProgress))
}

// TestRooms_Sorted 测试房间列表按ID排序
func (suite *ManagerTestSuite) TestRooms_Sorted() {
	suite.manager.CreateRoom("b", "房间B")
	suite.manager.CreateRoom("a", "房间A")
	suite.manager.CreateRoom("c", "房间C")

	list := suite.manager.Rooms()
	require.Len(suite.T(), list, 3)
	assert.Equal(suite.T(), "a", list[0].ID)
	assert.Equal(suite.T(), "b", list[1].ID)
	assert.Equal(suite.T(), "c", list[2].ID)
}

// TestGameSnapshot 测试对局状态快照
func (suite *ManagerTestSuite) TestGameSnapshot() {
	_, err := suite.manager.GameSnapshot("nosuch")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrRoomNotFound))

	suite.manager.CreateRoom("room1", "测试房间")
	_, err = suite.manager.GameSnapshot("room1")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrGameNotStarted))

	suite.startTwoPlayerGame("room2")
	state, err := suite.manager.GameSnapshot("room2")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, state.Round)
	assert.Len(suite.T(), state.Players, 2)
}

// TestPlayerHand 测试手牌查询
func (suite *ManagerTestSuite) TestPlayerHand() {
	suite.startTwoPlayerGame("room1")

	hand, err := suite.manager.PlayerHand("room1", "dev-1")
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), hand, 3)

	_, err = suite.manager.PlayerHand("room1", "nosuch")
	assert.True(suite.T(), apperrors.Is(err, apperrors.ErrPlayerNotFound))
}

// TestHandleDisconnect 测试断线强制离房
func (suite *ManagerTestSuite) TestHandleDisconnect() {
	suite.manager.CreateRoom("room1", "测试房间")
	suite.manager.JoinRoom("room1", "dev-1", "玩家一", PlayerKindDevice)
	suite.manager.JoinRoom("room1", "dev-2", "玩家二", PlayerKindDevice)

	suite.manager.HandleDisconnect("room1", "dev-1")

	room, err := suite.manager.GetRoom("room1")
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), room.FindPlayer("dev-1"))

	// 空参数静默忽略
	suite.manager.HandleDisconnect("", "dev-2")
	assert.True(suite.T(), suite.manager.RoomExists("room1"))
}

// startTwoPlayerGame 建房、两设备玩家加入并就绪开局
func (suite *ManagerTestSuite) startTwoPlayerGame(roomID string) {
	_, err := suite.manager.CreateRoom(roomID, "测试房间")
	require.NoError(suite.T(), err)
	_, err = suite.manager.JoinRoom(roomID, "dev-1", "玩家一", PlayerKindDevice)
	require.NoError(suite.T(), err)
	_, err = suite.manager.JoinRoom(roomID, "dev-2", "玩家二", PlayerKindDevice)
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.manager.SetReady(roomID, "dev-1", true))
	require.NoError(suite.T(), suite.manager.SetReady(roomID, "dev-2", true))

	room, err := suite.manager.GetRoom(roomID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), RoomStatusPlaying, room.Status)
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
