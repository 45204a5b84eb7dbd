package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/BarryBaker/GG/internal/service"
	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"
)

const scraperUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// defaultGame prefixes the leaderboard name when the page exposes only a
// blind level ("PLO - $0.01/$0.02").
const defaultGame = "PLO"

// LeaderboardScraper scrapes the daily leaderboard widget and hands every
// scrape to the ingest pipeline as one batch.
type LeaderboardScraper struct {
	ingest   service.IngestService
	url      string
	schedule string
}

func NewLeaderboardScraper(ingest service.IngestService, url, schedule string) *LeaderboardScraper {
	return &LeaderboardScraper{
		ingest:   ingest,
		url:      url,
		schedule: schedule,
	}
}

func (s *LeaderboardScraper) GetName() string {
	return "leaderboard-scraper"
}

func (s *LeaderboardScraper) GetSchedule() string {
	return s.schedule
}

func (s *LeaderboardScraper) Execute(ctx context.Context) error {
	runID := uuid.NewString()[:8]

	board, rows, err := s.Scrape(ctx)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	if len(rows) == 0 {
		log.Printf("⚠️ [run %s] No ranking rows found at %s", runID, s.url)
		return nil
	}

	result, err := s.ingest.Ingest(ctx, service.IngestRequest{
		LeaderboardName: board,
		Timestamp:       time.Now().Truncate(time.Minute),
		Rows:            rows,
	})
	if err != nil {
		return fmt.Errorf("run %s: ingest %s: %w", runID, board, err)
	}

	log.Printf("🎰 [run %s] %s: %d rows scraped, %d stored, %d skipped",
		runID, board, len(rows), result.Stored, result.Skipped)
	return nil
}

// Scrape fetches the widget page and extracts the board name plus one row
// per ranked player. Row shape follows the widget table: rank, player,
// country flag, points. Cancelling ctx aborts the fetch.
func (s *LeaderboardScraper) Scrape(ctx context.Context) (string, []service.ScrapeRow, error) {
	c := colly.NewCollector(
		colly.UserAgent(scraperUserAgent),
		colly.StdlibContext(ctx),
	)

	board := ""
	var rows []service.ScrapeRow

	c.OnHTML(".blind-text", func(e *colly.HTMLElement) {
		if board == "" {
			board = strings.TrimSpace(e.Text)
		}
	})

	c.OnHTML(".playerRankingBody tr", func(e *colly.HTMLElement) {
		cells := e.ChildTexts("td")
		if len(cells) < 4 {
			return
		}

		name := strings.TrimSpace(cells[1])
		points := strings.TrimSpace(cells[3])
		if name == "" {
			return
		}

		var country *string
		if flag := strings.TrimSpace(e.ChildAttr("td img", "title")); flag != "" {
			country = &flag
		}

		rows = append(rows, service.ScrapeRow{
			PlayerName: name,
			Country:    country,
			RawPoints:  points,
		})
	})

	if err := c.Visit(s.url); err != nil {
		return "", nil, err
	}

	if board == "" {
		board = defaultGame
	} else {
		board = defaultGame + " - " + board
	}
	return board, rows, nil
}
