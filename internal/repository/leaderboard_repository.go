package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BarryBaker/GG/internal/model"
	"github.com/BarryBaker/GG/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FactRow is one long-format fact joined with the player identity, the raw
// material for the read-time pivot.
type FactRow struct {
	PlayerID   uint
	PlayerName string
	UpdateID   uint
	Points     float64
}

// PlayerTotal is one player's summed points across a set of batches.
type PlayerTotal struct {
	PlayerName string
	Total      float64
}

// LeaderboardStamp captures the freshest observable state of one leaderboard
// for change-marker computation.
type LeaderboardStamp struct {
	Name          string
	LatestBatchID uint
	MaxPoints     float64
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type LeaderboardRepository interface {
	// Identity resolution (insert-or-get, safe under concurrent callers)
	ResolveLeaderboard(ctx context.Context, name string) (uint, error)
	ResolvePlayer(ctx context.Context, name string, country *string) (uint, error)

	// Batch registry and fact store
	OpenBatch(ctx context.Context, timestamp time.Time) (uint, error)
	UpsertFact(ctx context.Context, leaderboardID, updateID, playerID uint, points float64) error
	WithTx(ctx context.Context, fn func(LeaderboardRepository) error) error

	// Read side
	FindLeaderboard(ctx context.Context, name string) (*model.Leaderboard, error)
	FindPlayer(ctx context.Context, name string) (*model.Player, error)
	ListLeaderboards(ctx context.Context, prefix string) ([]string, error)
	RecentBatches(ctx context.Context, leaderboardID uint, limit int) ([]model.UpdateBatch, error)
	AllBatches(ctx context.Context, leaderboardID uint) ([]model.UpdateBatch, error)
	FactsForBatches(ctx context.Context, leaderboardID uint, batchIDs []uint) ([]FactRow, error)
	SumPointsForBatches(ctx context.Context, leaderboardID uint, batchIDs []uint, limit int) ([]PlayerTotal, error)
	LeaderboardStamps(ctx context.Context) ([]LeaderboardStamp, error)

	DeleteLeaderboard(ctx context.Context, name string) error
}

type leaderboardRepository struct {
	db *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) ResolveLeaderboard(ctx context.Context, name string) (uint, error) {
	if name == "" {
		return 0, fmt.Errorf("leaderboard name: %w", apperror.ErrInvalidInput)
	}

	lb := model.Leaderboard{Name: name}
	// Insert-or-get: DoNothing on the name conflict, then re-read the row
	// that won. Never insert-then-fail under concurrent resolvers.
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&lb).Error; err != nil {
		return 0, err
	}
	if lb.ID != 0 {
		return lb.ID, nil
	}

	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&lb).Error; err != nil {
		return 0, err
	}
	return lb.ID, nil
}

func (r *leaderboardRepository) ResolvePlayer(ctx context.Context, name string, country *string) (uint, error) {
	if name == "" {
		return 0, fmt.Errorf("player name: %w", apperror.ErrInvalidInput)
	}

	player := model.Player{Name: name, Country: country}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&player).Error; err != nil {
		return 0, err
	}
	if player.ID != 0 {
		return player.ID, nil
	}

	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&player).Error; err != nil {
		return 0, err
	}

	// First-non-null-wins: fill country only while the stored value is empty.
	if country != nil && *country != "" && (player.Country == nil || *player.Country == "") {
		if err := r.db.WithContext(ctx).Model(&model.Player{}).
			Where("id = ? AND (country IS NULL OR country = '')", player.ID).
			Update("country", country).Error; err != nil {
			return 0, err
		}
	}

	return player.ID, nil
}

func (r *leaderboardRepository) OpenBatch(ctx context.Context, timestamp time.Time) (uint, error) {
	// Every ingestion run gets a fresh batch, even when timestamps collide
	// at minute granularity.
	batch := model.UpdateBatch{Timestamp: timestamp}
	if err := r.db.WithContext(ctx).Create(&batch).Error; err != nil {
		return 0, err
	}
	return batch.ID, nil
}

func (r *leaderboardRepository) UpsertFact(ctx context.Context, leaderboardID, updateID, playerID uint, points float64) error {
	fact := model.Fact{
		LeaderboardID: leaderboardID,
		PlayerID:      playerID,
		UpdateID:      updateID,
		Points:        points,
	}
	// Using GORM OnConflict for Upsert on the composite key
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "leaderboard_id"},
			{Name: "player_id"},
			{Name: "update_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points": points,
		}),
	}).Create(&fact).Error
}

func (r *leaderboardRepository) WithTx(ctx context.Context, fn func(LeaderboardRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&leaderboardRepository{db: tx})
	})
}

func (r *leaderboardRepository) FindLeaderboard(ctx context.Context, name string) (*model.Leaderboard, error) {
	var lb model.Leaderboard
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&lb).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &lb, nil
}

func (r *leaderboardRepository) FindPlayer(ctx context.Context, name string) (*model.Player, error) {
	var player model.Player
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&player).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (r *leaderboardRepository) ListLeaderboards(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	q := r.db.WithContext(ctx).Model(&model.Leaderboard{}).Order("name ASC")
	if prefix != "" {
		// Leaderboard names contain % and _ freely, so the prefix must
		// match them literally rather than as LIKE wildcards.
		escaped := likeEscaper.Replace(prefix)
		q = q.Where("name LIKE ? ESCAPE '\\'", escaped+"%")
	}
	if err := q.Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// RecentBatches returns the most recent batches that carry at least one fact
// for the leaderboard, newest first by batch id. limit <= 0 means no limit.
func (r *leaderboardRepository) RecentBatches(ctx context.Context, leaderboardID uint, limit int) ([]model.UpdateBatch, error) {
	sub := r.db.Model(&model.Fact{}).
		Select("update_id").
		Where("leaderboard_id = ?", leaderboardID)

	var batches []model.UpdateBatch
	q := r.db.WithContext(ctx).Model(&model.UpdateBatch{}).
		Where("id IN (?)", sub).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// AllBatches returns every batch with facts for the leaderboard in
// chronological order (batch id ascending).
func (r *leaderboardRepository) AllBatches(ctx context.Context, leaderboardID uint) ([]model.UpdateBatch, error) {
	sub := r.db.Model(&model.Fact{}).
		Select("update_id").
		Where("leaderboard_id = ?", leaderboardID)

	var batches []model.UpdateBatch
	if err := r.db.WithContext(ctx).Model(&model.UpdateBatch{}).
		Where("id IN (?)", sub).
		Order("id ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *leaderboardRepository) FactsForBatches(ctx context.Context, leaderboardID uint, batchIDs []uint) ([]FactRow, error) {
	if len(batchIDs) == 0 {
		return []FactRow{}, nil
	}

	var rows []FactRow
	err := r.db.WithContext(ctx).Model(&model.Fact{}).
		Select("facts.player_id AS player_id, players.name AS player_name, facts.update_id AS update_id, facts.points AS points").
		Joins("JOIN players ON players.id = facts.player_id").
		Where("facts.leaderboard_id = ? AND facts.update_id IN ?", leaderboardID, batchIDs).
		Order("facts.update_id ASC, facts.player_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *leaderboardRepository) SumPointsForBatches(ctx context.Context, leaderboardID uint, batchIDs []uint, limit int) ([]PlayerTotal, error) {
	if len(batchIDs) == 0 {
		return []PlayerTotal{}, nil
	}

	var totals []PlayerTotal
	q := r.db.WithContext(ctx).Model(&model.Fact{}).
		Select("players.name AS player_name, SUM(facts.points) AS total").
		Joins("JOIN players ON players.id = facts.player_id").
		Where("facts.leaderboard_id = ? AND facts.update_id IN ?", leaderboardID, batchIDs).
		Group("players.name").
		Order("total DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *leaderboardRepository) LeaderboardStamps(ctx context.Context) ([]LeaderboardStamp, error) {
	type latest struct {
		LeaderboardID uint
		Name          string
		LatestBatchID uint
	}

	var latests []latest
	err := r.db.WithContext(ctx).Model(&model.Fact{}).
		Select("facts.leaderboard_id AS leaderboard_id, leaderboards.name AS name, MAX(facts.update_id) AS latest_batch_id").
		Joins("JOIN leaderboards ON leaderboards.id = facts.leaderboard_id").
		Group("facts.leaderboard_id, leaderboards.name").
		Scan(&latests).Error
	if err != nil {
		return nil, err
	}

	stamps := make([]LeaderboardStamp, 0, len(latests))
	for _, l := range latests {
		var maxPoints float64
		err := r.db.WithContext(ctx).Model(&model.Fact{}).
			Select("COALESCE(MAX(points), 0)").
			Where("leaderboard_id = ? AND update_id = ?", l.LeaderboardID, l.LatestBatchID).
			Scan(&maxPoints).Error
		if err != nil {
			return nil, err
		}
		stamps = append(stamps, LeaderboardStamp{
			Name:          l.Name,
			LatestBatchID: l.LatestBatchID,
			MaxPoints:     maxPoints,
		})
	}
	return stamps, nil
}

func (r *leaderboardRepository) DeleteLeaderboard(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&model.Leaderboard{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.ErrNotFound
	}
	return nil
}
