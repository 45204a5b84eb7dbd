package model

import (
	"time"
)

// Leaderboard is created lazily the first time a fact references its name
// and is never mutated afterwards.
type Leaderboard struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Player identity is the name; Country is optional metadata and follows a
// first-non-null-wins policy, it is never overwritten by a later empty value.
type Player struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Country   *string   `gorm:"size:100" json:"country,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// UpdateBatch records one ingestion pass. Ids increase monotonically with
// submission order, which makes id the ordering proxy for timestamps that
// collide at minute granularity.
type UpdateBatch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
}

func (UpdateBatch) TableName() string {
	return "update_batch"
}

// Fact holds one player's point value for one leaderboard in one batch.
// The composite primary key guarantees at most one value per player per
// leaderboard per batch; re-ingesting the same triple overwrites points.
type Fact struct {
	LeaderboardID uint    `gorm:"primaryKey;autoIncrement:false" json:"leaderboard_id"`
	PlayerID      uint    `gorm:"primaryKey;autoIncrement:false" json:"player_id"`
	UpdateID      uint    `gorm:"primaryKey;autoIncrement:false" json:"update_id"`
	Points        float64 `gorm:"not null" json:"points"`

	Leaderboard Leaderboard `gorm:"foreignKey:LeaderboardID;constraint:OnDelete:CASCADE" json:"-"`
	Player      Player      `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE" json:"-"`
	Batch       UpdateBatch `gorm:"foreignKey:UpdateID;constraint:OnDelete:CASCADE" json:"-"`
}
