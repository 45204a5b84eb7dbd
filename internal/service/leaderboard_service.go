package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BarryBaker/GG/internal/model"
	"github.com/BarryBaker/GG/internal/repository"
	"github.com/BarryBaker/GG/pkg/apperror"
	"github.com/BarryBaker/GG/pkg/numeric"
)

// timestampLayout is the column-header format for batch timestamps, matching
// the minute granularity the scraper records.
const timestampLayout = "2006-01-02 15:04"

// TableView is a wide player-by-time matrix. Columns holds "player" followed
// by batch timestamps oldest to newest; each row holds the player name
// followed by one value per column, missing observations filled with zero.
type TableView struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// PlayerHistory is a single-row view across every batch recorded for the
// leaderboard, plus the player's country when known.
type PlayerHistory struct {
	TableView
	Country *string `json:"country,omitempty"`
}

type LeaderboardService interface {
	ListLeaderboards(ctx context.Context, prefix string) ([]string, error)
	GetLeaderboardView(ctx context.Context, name string, rowLimit, columnLimit int) (*TableView, error)
	GetPlayerHistory(ctx context.Context, leaderboardName, playerName string) (*PlayerHistory, error)
	GetTopPlayers(ctx context.Context, name string, limit int, dailyCutoff time.Duration) ([]string, error)
	LastUpdateMarker(ctx context.Context) (string, error)
}

type leaderboardService struct {
	repo  repository.LeaderboardRepository
	cache *ViewCache
}

func NewLeaderboardService(repo repository.LeaderboardRepository, cache *ViewCache) LeaderboardService {
	return &leaderboardService{repo: repo, cache: cache}
}

func (s *leaderboardService) ListLeaderboards(ctx context.Context, prefix string) ([]string, error) {
	cacheKey := "list:" + prefix
	var cached []string
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	names, err := s.repo.ListLeaderboards(ctx, prefix)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cacheKey, names)
	return names, nil
}

func (s *leaderboardService) GetLeaderboardView(ctx context.Context, name string, rowLimit, columnLimit int) (*TableView, error) {
	cacheKey := fmt.Sprintf("board:%s:%d:%d", name, rowLimit, columnLimit)
	var cached TableView
	if s.cache.Get(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	lb, err := s.repo.FindLeaderboard(ctx, name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Unknown leaderboard is a normal outcome, not a failure
			return emptyView(), nil
		}
		return nil, err
	}

	// Most recent N batches, shown oldest to newest
	batches, err := s.repo.RecentBatches(ctx, lb.ID, columnLimit)
	if err != nil {
		return nil, err
	}
	reverseBatches(batches)

	view, err := s.pivot(ctx, lb.ID, batches, "")
	if err != nil {
		return nil, err
	}

	rankRowsByLastColumn(view.Rows)
	if rowLimit > 0 && len(view.Rows) > rowLimit {
		// Truncation always happens after ranking
		view.Rows = view.Rows[:rowLimit]
	}

	s.cache.Set(ctx, cacheKey, view)
	return view, nil
}

func (s *leaderboardService) GetPlayerHistory(ctx context.Context, leaderboardName, playerName string) (*PlayerHistory, error) {
	lb, err := s.repo.FindLeaderboard(ctx, leaderboardName)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &PlayerHistory{TableView: *emptyView()}, nil
		}
		return nil, err
	}

	player, err := s.repo.FindPlayer(ctx, playerName)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return &PlayerHistory{TableView: *emptyView()}, nil
		}
		return nil, err
	}

	batches, err := s.repo.AllBatches(ctx, lb.ID)
	if err != nil {
		return nil, err
	}

	view, err := s.pivot(ctx, lb.ID, batches, player.Name)
	if err != nil {
		return nil, err
	}

	return &PlayerHistory{TableView: *view, Country: player.Country}, nil
}

func (s *leaderboardService) GetTopPlayers(ctx context.Context, name string, limit int, dailyCutoff time.Duration) ([]string, error) {
	lb, err := s.repo.FindLeaderboard(ctx, name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}

	batches, err := s.repo.AllBatches(ctx, lb.ID)
	if err != nil {
		return nil, err
	}

	snapshots := dailySnapshots(batches, dailyCutoff)
	if len(snapshots) == 0 {
		return []string{}, nil
	}

	totals, err := s.repo.SumPointsForBatches(ctx, lb.ID, snapshots, limit)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(totals))
	for _, t := range totals {
		names = append(names, t.PlayerName)
	}
	return names, nil
}

// LastUpdateMarker returns a digest that changes whenever the latest data of
// any leaderboard changes, so the frontend can poll for updates cheaply.
func (s *leaderboardService) LastUpdateMarker(ctx context.Context) (string, error) {
	stamps, err := s.repo.LeaderboardStamps(ctx)
	if err != nil {
		return "", err
	}
	if len(stamps) == 0 {
		return "0", nil
	}

	parts := make([]string, 0, len(stamps))
	for _, st := range stamps {
		parts = append(parts, fmt.Sprintf("%s:%d:%g", st.Name, st.LatestBatchID, st.MaxPoints))
	}
	sort.Strings(parts)

	digest := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(digest[:]), nil
}

// pivot reshapes long facts into a wide player-by-batch matrix, zero-filling
// cells for batches where a player was not observed. When onlyPlayer is set
// the result contains at most that player's row.
func (s *leaderboardService) pivot(ctx context.Context, leaderboardID uint, batches []model.UpdateBatch, onlyPlayer string) (*TableView, error) {
	columns := make([]string, 0, len(batches)+1)
	columns = append(columns, "player")
	columnIndex := make(map[uint]int, len(batches))
	for i, b := range batches {
		columns = append(columns, b.Timestamp.Format(timestampLayout))
		columnIndex[b.ID] = i + 1
	}

	view := &TableView{Columns: columns, Rows: [][]any{}}
	if len(batches) == 0 {
		return view, nil
	}

	batchIDs := make([]uint, len(batches))
	for i, b := range batches {
		batchIDs[i] = b.ID
	}

	facts, err := s.repo.FactsForBatches(ctx, leaderboardID, batchIDs)
	if err != nil {
		return nil, err
	}

	rowByPlayer := make(map[uint][]any)
	var order []uint
	for _, f := range facts {
		if onlyPlayer != "" && f.PlayerName != onlyPlayer {
			continue
		}
		row, ok := rowByPlayer[f.PlayerID]
		if !ok {
			row = make([]any, len(columns))
			row[0] = f.PlayerName
			for i := 1; i < len(row); i++ {
				row[i] = 0.0
			}
			rowByPlayer[f.PlayerID] = row
			order = append(order, f.PlayerID)
		}
		if idx, ok := columnIndex[f.UpdateID]; ok {
			row[idx] = f.Points
		}
	}

	for _, playerID := range order {
		view.Rows = append(view.Rows, rowByPlayer[playerID])
	}
	return view, nil
}

// rankRowsByLastColumn sorts rows by the most recent column descending.
// Unparseable legacy cells sort after every numeric value and ties keep
// their original order.
func rankRowsByLastColumn(rows [][]any) {
	sort.SliceStable(rows, func(i, j int) bool {
		a := rows[i][len(rows[i])-1]
		b := rows[j][len(rows[j])-1]
		return numeric.Less(a, b, true)
	})
}

// dailySnapshots collapses batches to one representative per calendar day:
// among a day's batches whose time-of-day falls before the cutoff, the one
// with the highest id wins. Days with no qualifying batch are dropped.
func dailySnapshots(batches []model.UpdateBatch, cutoff time.Duration) []uint {
	byDay := make(map[string]uint)
	var dayOrder []string
	for _, b := range batches {
		tod := time.Duration(b.Timestamp.Hour())*time.Hour +
			time.Duration(b.Timestamp.Minute())*time.Minute +
			time.Duration(b.Timestamp.Second())*time.Second
		if tod >= cutoff {
			continue
		}
		day := b.Timestamp.Format("2006-01-02")
		if prev, ok := byDay[day]; !ok {
			byDay[day] = b.ID
			dayOrder = append(dayOrder, day)
		} else if b.ID > prev {
			byDay[day] = b.ID
		}
	}

	ids := make([]uint, 0, len(dayOrder))
	for _, day := range dayOrder {
		ids = append(ids, byDay[day])
	}
	return ids
}

func emptyView() *TableView {
	return &TableView{Columns: []string{"player"}, Rows: [][]any{}}
}

func reverseBatches(batches []model.UpdateBatch) {
	for i, j := 0, len(batches)-1; i < j; i, j = i+1, j-1 {
		batches[i], batches[j] = batches[j], batches[i]
	}
}
