package agent

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler schedules and manages the registered agents. A scheduled job
// runs to completion before its next firing, matching the one-scrape-at-a-
// time ingestion model.
type Scheduler struct {
	cron   *cron.Cron
	agents []Agent
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		// SkipIfStillRunning keeps at most one invocation of a job in
		// flight; a firing that lands while the previous run is still
		// active is dropped, not queued.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		agents: make([]Agent, 0),
	}
}

// RegisterAgent registers an agent; agents with a schedule are wired into
// cron immediately.
func (s *Scheduler) RegisterAgent(agent Agent) {
	s.agents = append(s.agents, agent)

	schedule := agent.GetSchedule()
	if schedule == "" {
		log.Printf("📝 [%s] Registered as on-demand agent (no schedule)", agent.GetName())
		return
	}

	_, err := s.cron.AddFunc(schedule, func() {
		log.Printf("🤖 [%s] Starting scheduled job...", agent.GetName())
		if err := agent.Execute(context.Background()); err != nil {
			log.Printf("❌ [%s] Job failed: %v", agent.GetName(), err)
		} else {
			log.Printf("✅ [%s] Job completed successfully", agent.GetName())
		}
	})
	if err != nil {
		log.Printf("⚠️ Failed to schedule agent %s: %v", agent.GetName(), err)
	} else {
		log.Printf("📅 [%s] Scheduled with cron: %s", agent.GetName(), schedule)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("🚀 Agent scheduler started with %d registered agents", len(s.agents))
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("🛑 Agent scheduler stopped")
}

// RunAgentByName runs one agent manually. Useful for a one-shot scrape on
// startup or manual triggers.
func (s *Scheduler) RunAgentByName(ctx context.Context, name string) error {
	for _, agent := range s.agents {
		if agent.GetName() == name {
			log.Printf("🎯 [%s] Running on-demand execution...", name)
			return agent.Execute(ctx)
		}
	}
	log.Printf("⚠️ Agent with name '%s' not found", name)
	return nil
}
