package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/tower-game/internal/repository"
	"go.uber.org/zap"
)

// MatchHandler 对局历史查询接口
type MatchHandler struct {
	repo   repository.MatchRepository
	logger *zap.Logger
}

// NewMatchHandler 创建对局历史处理器。repo为nil时所有接口返回503。
func NewMatchHandler(repo repository.MatchRepository, logger *zap.Logger) *MatchHandler {
	return &MatchHandler{
		repo:   repo,
		logger: logger,
	}
}

// pagination 从查询参数解析分页
func pagination(c *gin.Context) *repository.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return repository.NewPagination(page, pageSize)
}

// unavailable 数据库未启用时的统一响应
func (h *MatchHandler) unavailable(c *gin.Context) bool {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    5000,
			"message": "对局历史未启用",
		})
		return true
	}
	return false
}

// ListMatches 最近对局列表
// @Summary 最近对局列表
// @Tags matches
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/matches [get]
func (h *MatchHandler) ListMatches(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	p := pagination(c)
	records, err := h.repo.FindRecent(c.Request.Context(), p)
	if err != nil {
		h.logger.Error("查询对局历史失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    5001,
			"message": "查询对局历史失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{
			"records": records,
			"total":   p.Total,
			"page":    p.Page,
		},
	})
}

// ListByRoom 房间对局历史
// @Summary 房间对局历史
// @Tags matches
// @Produce json
// @Param id path string true "房间ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/matches/rooms/{id} [get]
func (h *MatchHandler) ListByRoom(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	p := pagination(c)
	records, err := h.repo.FindByRoomID(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		h.logger.Error("查询房间对局历史失败",
			zap.String("room_id", c.Param("id")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    5001,
			"message": "查询对局历史失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": gin.H{
			"records": records,
			"total":   p.Total,
			"page":    p.Page,
		},
	})
}

// PlayerStats 玩家胜场统计
// @Summary 玩家胜场统计
// @Tags matches
// @Produce json
// @Param id path string true "玩家ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/matches/players/{id}/stats [get]
func (h *MatchHandler) PlayerStats(c *gin.Context) {
	if h.unavailable(c) {
		return
	}

	stats, err := h.repo.GetWinStatistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("查询玩家统计失败",
			zap.String("player_id", c.Param("id")),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    5001,
			"message": "查询玩家统计失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code": 0,
		"data": stats,
	})
}
