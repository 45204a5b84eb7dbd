package service

import (
	"context"
	"log"
	"time"

	"github.com/BarryBaker/GG/internal/repository"
	"github.com/BarryBaker/GG/pkg/numeric"
)

// ScrapeRow is one scraped leaderboard entry as produced by the scraper.
type ScrapeRow struct {
	PlayerName string  `json:"player_name"`
	Country    *string `json:"country,omitempty"`
	RawPoints  string  `json:"raw_points"`
}

// IngestRequest carries one full scrape of one leaderboard.
type IngestRequest struct {
	LeaderboardName string      `json:"leaderboard_name"`
	Timestamp       time.Time   `json:"timestamp"`
	Rows            []ScrapeRow `json:"rows"`
}

type IngestResult struct {
	BatchID uint `json:"batch_id"`
	Stored  int  `json:"stored"`
	Skipped int  `json:"skipped"`
}

type IngestService interface {
	// Ingest resolves the leaderboard once, opens exactly one batch for the
	// whole list and upserts every parseable row inside a single
	// transaction. Unparseable rows are skipped and counted; storage errors
	// roll the whole batch back.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
}

type ingestService struct {
	repo  repository.LeaderboardRepository
	cache *ViewCache
}

func NewIngestService(repo repository.LeaderboardRepository, cache *ViewCache) IngestService {
	return &ingestService{repo: repo, cache: cache}
}

func (s *ingestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	leaderboardID, err := s.repo.ResolveLeaderboard(ctx, req.LeaderboardName)
	if err != nil {
		return nil, err
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().Truncate(time.Minute)
	}

	result := &IngestResult{}
	err = s.repo.WithTx(ctx, func(tx repository.LeaderboardRepository) error {
		batchID, err := tx.OpenBatch(ctx, timestamp)
		if err != nil {
			return err
		}
		result.BatchID = batchID

		for i, row := range req.Rows {
			if row.PlayerName == "" {
				log.Printf("⚠️ [%s @ %s] Row %d: missing player name, skipping",
					req.LeaderboardName, timestamp.Format(timestampLayout), i+1)
				result.Skipped++
				continue
			}

			points, ok := numeric.Parse(row.RawPoints)
			if !ok {
				log.Printf("⚠️ [%s @ %s] Row %d: unparseable points %q for %s, skipping",
					req.LeaderboardName, timestamp.Format(timestampLayout), i+1, row.RawPoints, row.PlayerName)
				result.Skipped++
				continue
			}

			playerID, err := tx.ResolvePlayer(ctx, row.PlayerName, row.Country)
			if err != nil {
				return err
			}
			if err := tx.UpsertFact(ctx, leaderboardID, batchID, playerID, points); err != nil {
				return err
			}
			result.Stored++
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [%s @ %s] Batch rolled back: %v",
			req.LeaderboardName, timestamp.Format(timestampLayout), err)
		return nil, err
	}

	// A committed batch invalidates every cached view
	s.cache.Flush(ctx)

	log.Printf("✅ [%s @ %s] Batch %d committed: %d stored, %d skipped",
		req.LeaderboardName, timestamp.Format(timestampLayout), result.BatchID, result.Stored, result.Skipped)
	return result, nil
}
