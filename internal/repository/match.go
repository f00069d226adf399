package repository

import (
	"context"
	"time"

	"github.com/wfunc/tower-game/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MatchRepository 对局历史仓储接口
type MatchRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.MatchRecord) error
	FindByID(ctx context.Context, id uint) (*models.MatchRecord, error)
	FindByRoomID(ctx context.Context, roomID string, p *Pagination) ([]*models.MatchRecord, error)
	FindByWinnerID(ctx context.Context, winnerID string, p *Pagination) ([]*models.MatchRecord, error)
	FindRecent(ctx context.Context, p *Pagination) ([]*models.MatchRecord, error)
	GetWinStatistics(ctx context.Context, playerID string) (*WinStatistics, error)
}

// WinStatistics 玩家胜场统计
type WinStatistics struct {
	PlayerID    string  `json:"player_id"`
	TotalWins   int64   `json:"total_wins"`
	TotalRounds int64   `json:"total_rounds"`
	AvgRounds   float64 `json:"avg_rounds"`
}

// matchRepo 对局历史仓储实现
type matchRepo struct {
	*BaseRepo
}

// NewMatchRepository 创建对局历史仓储
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 写入对局记录
func (r *matchRepo) Create(ctx context.Context, record *models.MatchRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByID 根据ID查找
func (r *matchRepo) FindByID(ctx context.Context, id uint) (*models.MatchRecord, error) {
	var record models.MatchRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByRoomID 查找房间的对局历史
func (r *matchRepo) FindByRoomID(ctx context.Context, roomID string, p *Pagination) ([]*models.MatchRecord, error) {
	var records []*models.MatchRecord
	query := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("finished_at DESC")

	if err := query.Model(&models.MatchRecord{}).Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := query.Scopes(Paginate(p)).Find(&records).Error
	return records, err
}

// FindByWinnerID 查找玩家的获胜记录
func (r *matchRepo) FindByWinnerID(ctx context.Context, winnerID string, p *Pagination) ([]*models.MatchRecord, error) {
	var records []*models.MatchRecord
	query := r.db.WithContext(ctx).
		Where("winner_id = ?", winnerID).
		Order("finished_at DESC")

	if err := query.Model(&models.MatchRecord{}).Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := query.Scopes(Paginate(p)).Find(&records).Error
	return records, err
}

// FindRecent 最近对局
func (r *matchRepo) FindRecent(ctx context.Context, p *Pagination) ([]*models.MatchRecord, error) {
	var records []*models.MatchRecord
	query := r.db.WithContext(ctx).Order("finished_at DESC")

	if err := query.Model(&models.MatchRecord{}).Count(&p.Total).Error; err != nil {
		return nil, err
	}

	err := query.Scopes(Paginate(p)).Find(&records).Error
	return records, err
}

// GetWinStatistics 玩家胜场统计
func (r *matchRepo) GetWinStatistics(ctx context.Context, playerID string) (*WinStatistics, error) {
	stats := &WinStatistics{PlayerID: playerID}

	err := r.db.WithContext(ctx).
		Model(&models.MatchRecord{}).
		Where("winner_id = ?", playerID).
		Count(&stats.TotalWins).Error
	if err != nil {
		return nil, err
	}

	var result struct {
		TotalRounds int64
		AvgRounds   float64
	}
	err = r.db.WithContext(ctx).
		Model(&models.MatchRecord{}).
		Select("COALESCE(SUM(rounds),0) AS total_rounds, COALESCE(AVG(rounds),0) AS avg_rounds").
		Where("winner_id = ?", playerID).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}

	stats.TotalRounds = result.TotalRounds
	stats.AvgRounds = result.AvgRounds
	return stats, nil
}

// MatchRecorder 把对局结束回调落库，实现game.HistoryRecorder。
// 记录在引擎锁外的goroutine里写入，失败只记日志不影响对局流程。
type MatchRecorder struct {
	repo   MatchRepository
	logger *zap.Logger
}

// NewMatchRecorder 创建对局记录器
func NewMatchRecorder(repo MatchRepository, logger *zap.Logger) *MatchRecorder {
	return &MatchRecorder{
		repo:   repo,
		logger: logger,
	}
}

// RecordMatch 写入一条对局历史
func (m *MatchRecorder) RecordMatch(roomID, roomName, winnerID, winnerName string, rounds int, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record := &models.MatchRecord{
		RoomID:     roomID,
		RoomName:   roomName,
		WinnerID:   winnerID,
		WinnerName: winnerName,
		Rounds:     rounds,
		Duration:   duration,
		FinishedAt: time.Now(),
	}

	if err := m.repo.Create(ctx, record); err != nil {
		m.logger.Error("写入对局历史失败",
			zap.String("room_id", roomID),
			zap.String("winner_id", winnerID),
			zap.Error(err))
		return
	}

	m.logger.Info("对局历史已记录",
		zap.String("room_id", roomID),
		zap.String("winner_id", winnerID),
		zap.Int("rounds", rounds))
}
