package agent

import "context"

// Agent is the base interface every background agent implements. Each agent
// owns one specific job.
//
// Implementations:
//   - LeaderboardScraper: scrapes the promotion page and feeds the ingest
//     pipeline
type Agent interface {
	// GetName returns the agent's unique name (for logging & identification)
	GetName() string

	// GetSchedule returns the cron schedule string (e.g. "*/30 * * * *").
	// Agents that only run on demand return an empty string.
	GetSchedule() string

	// Execute runs the agent's job. The context carries cancellation and
	// timeout.
	Execute(ctx context.Context) error
}
