package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// MatchRecord 对局历史记录表。对局结束（正常胜利或弃权判负）时写入一条。
type MatchRecord struct {
	BaseModel
	RoomID     string        `gorm:"size:50;not null;index" json:"room_id"`
	RoomName   string        `gorm:"size:100" json:"room_name"`
	WinnerID   string        `gorm:"size:50;index" json:"winner_id"`
	WinnerName string        `gorm:"size:100" json:"winner_name"`
	Rounds     int           `gorm:"default:0" json:"rounds"`
	Duration   time.Duration `json:"duration"`
	FinishedAt time.Time     `gorm:"index" json:"finished_at"`
}

// TableName 指定表名
func (MatchRecord) TableName() string {
	return "match_records"
}
