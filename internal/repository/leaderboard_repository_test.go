package repository

import (
	"context"
	"testing"
	"time"

	"github.com/BarryBaker/GG/internal/model"
	"github.com/BarryBaker/GG/pkg/apperror"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.AutoMigrate(
		&model.Leaderboard{},
		&model.Player{},
		&model.UpdateBatch{},
		&model.Fact{},
	))
	return db
}

func TestResolveLeaderboardInsertOrGet(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))
	ctx := context.Background()

	id1, err := repo.ResolveLeaderboard(ctx, "PLO - $0.01/$0.02")
	require.NoError(t, err)
	require.NotZero(t, id1)

	id2, err := repo.ResolveLeaderboard(ctx, "PLO - $0.01/$0.02")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := repo.ResolveLeaderboard(ctx, "PLO - $0.05/$0.10")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestResolveLeaderboardEmptyName(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))

	_, err := repo.ResolveLeaderboard(context.Background(), "")
	require.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestResolvePlayerCountryFirstNonNullWins(t *testing.T) {
	db := newTestDB(t)
	repo := NewLeaderboardRepository(db)
	ctx := context.Background()

	us := "US"
	de := "DE"

	id, err := repo.ResolvePlayer(ctx, "alice", nil)
	require.NoError(t, err)

	var stored model.Player
	require.NoError(t, db.First(&stored, id).Error)
	assert.Nil(t, stored.Country)

	// First non-null country fills the slot
	_, err = repo.ResolvePlayer(ctx, "alice", &us)
	require.NoError(t, err)
	require.NoError(t, db.First(&stored, id).Error)
	require.NotNil(t, stored.Country)
	assert.Equal(t, "US", *stored.Country)

	// Later nil leaves it untouched
	_, err = repo.ResolvePlayer(ctx, "alice", nil)
	require.NoError(t, err)
	require.NoError(t, db.First(&stored, id).Error)
	require.NotNil(t, stored.Country)
	assert.Equal(t, "US", *stored.Country)

	// A different non-null value never overwrites
	_, err = repo.ResolvePlayer(ctx, "alice", &de)
	require.NoError(t, err)
	require.NoError(t, db.First(&stored, id).Error)
	assert.Equal(t, "US", *stored.Country)
}

func TestOpenBatchNeverDedups(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))
	ctx := context.Background()

	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	b1, err := repo.OpenBatch(ctx, ts)
	require.NoError(t, err)
	b2, err := repo.OpenBatch(ctx, ts)
	require.NoError(t, err)

	assert.NotEqual(t, b1, b2)
	assert.Greater(t, b2, b1)
}

func TestUpsertFactIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewLeaderboardRepository(db)
	ctx := context.Background()

	lbID, err := repo.ResolveLeaderboard(ctx, "PLO")
	require.NoError(t, err)
	playerID, err := repo.ResolvePlayer(ctx, "bob", nil)
	require.NoError(t, err)
	batchID, err := repo.OpenBatch(ctx, time.Now())
	require.NoError(t, err)

	require.NoError(t, repo.UpsertFact(ctx, lbID, batchID, playerID, 100))
	require.NoError(t, repo.UpsertFact(ctx, lbID, batchID, playerID, 250))

	var facts []model.Fact
	require.NoError(t, db.Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, 250.0, facts[0].Points)
}

func TestRecentBatchesWindowsByBatchID(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))
	ctx := context.Background()

	lbID, _ := repo.ResolveLeaderboard(ctx, "PLO")
	otherID, _ := repo.ResolveLeaderboard(ctx, "NLH")
	playerID, _ := repo.ResolvePlayer(ctx, "carol", nil)

	var batchIDs []uint
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		id, err := repo.OpenBatch(ctx, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		batchIDs = append(batchIDs, id)
	}

	// Facts in the first three batches; the fourth belongs to another board.
	for _, id := range batchIDs[:3] {
		require.NoError(t, repo.UpsertFact(ctx, lbID, id, playerID, 10))
	}
	require.NoError(t, repo.UpsertFact(ctx, otherID, batchIDs[3], playerID, 99))

	recent, err := repo.RecentBatches(ctx, lbID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, batchIDs[2], recent[0].ID)
	assert.Equal(t, batchIDs[1], recent[1].ID)

	all, err := repo.AllBatches(ctx, lbID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, batchIDs[0], all[0].ID)
}

func TestSumPointsForBatches(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))
	ctx := context.Background()

	lbID, _ := repo.ResolveLeaderboard(ctx, "PLO")
	alice, _ := repo.ResolvePlayer(ctx, "alice", nil)
	bob, _ := repo.ResolvePlayer(ctx, "bob", nil)

	b1, _ := repo.OpenBatch(ctx, time.Now())
	b2, _ := repo.OpenBatch(ctx, time.Now())

	require.NoError(t, repo.UpsertFact(ctx, lbID, b1, alice, 10))
	require.NoError(t, repo.UpsertFact(ctx, lbID, b2, alice, 20))
	require.NoError(t, repo.UpsertFact(ctx, lbID, b1, bob, 100))

	totals, err := repo.SumPointsForBatches(ctx, lbID, []uint{b1, b2}, 10)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, "bob", totals[0].PlayerName)
	assert.Equal(t, 100.0, totals[0].Total)
	assert.Equal(t, "alice", totals[1].PlayerName)
	assert.Equal(t, 30.0, totals[1].Total)

	// Only b2 selected
	totals, err = repo.SumPointsForBatches(ctx, lbID, []uint{b2}, 10)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "alice", totals[0].PlayerName)
	assert.Equal(t, 20.0, totals[0].Total)
}

func TestDeleteLeaderboardCascades(t *testing.T) {
	db := newTestDB(t)
	repo := NewLeaderboardRepository(db)
	ctx := context.Background()

	ploID, _ := repo.ResolveLeaderboard(ctx, "PLO")
	nlhID, _ := repo.ResolveLeaderboard(ctx, "NLH")
	playerID, _ := repo.ResolvePlayer(ctx, "dave", nil)
	batchID, _ := repo.OpenBatch(ctx, time.Now())

	require.NoError(t, repo.UpsertFact(ctx, ploID, batchID, playerID, 1))
	require.NoError(t, repo.UpsertFact(ctx, nlhID, batchID, playerID, 2))

	require.NoError(t, repo.DeleteLeaderboard(ctx, "PLO"))

	var facts []model.Fact
	require.NoError(t, db.Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, nlhID, facts[0].LeaderboardID)

	// Player rows survive the cascade
	var players int64
	require.NoError(t, db.Model(&model.Player{}).Count(&players).Error)
	assert.Equal(t, int64(1), players)

	err := repo.DeleteLeaderboard(ctx, "PLO")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListLeaderboardsPrefix(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"PLO - low", "PLO - high", "NLH - low"} {
		_, err := repo.ResolveLeaderboard(ctx, name)
		require.NoError(t, err)
	}

	names, err := repo.ListLeaderboards(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"NLH - low", "PLO - high", "PLO - low"}, names)

	names, err = repo.ListLeaderboards(ctx, "PLO")
	require.NoError(t, err)
	assert.Equal(t, []string{"PLO - high", "PLO - low"}, names)
}

func TestListLeaderboardsPrefixMatchesWildcardsLiterally(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))
	ctx := context.Background()

	for _, name := range []string{"PLO - low", "P_O special", "%bonus"} {
		_, err := repo.ResolveLeaderboard(ctx, name)
		require.NoError(t, err)
	}

	// % and _ in the prefix are literal characters, not LIKE wildcards
	names, err := repo.ListLeaderboards(ctx, "%")
	require.NoError(t, err)
	assert.Equal(t, []string{"%bonus"}, names)

	names, err = repo.ListLeaderboards(ctx, "P_")
	require.NoError(t, err)
	assert.Equal(t, []string{"P_O special"}, names)
}

func TestFindLeaderboardNotFound(t *testing.T) {
	repo := NewLeaderboardRepository(newTestDB(t))

	_, err := repo.FindLeaderboard(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
