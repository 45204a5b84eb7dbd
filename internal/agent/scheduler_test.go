package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// slowAgent sleeps past its own firing interval, so consecutive firings
// would overlap without the scheduler serializing them.
type slowAgent struct {
	running atomic.Int32
	maxSeen atomic.Int32
	runs    atomic.Int32
}

func (a *slowAgent) GetName() string     { return "slow" }
func (a *slowAgent) GetSchedule() string { return "@every 1s" }

func (a *slowAgent) Execute(context.Context) error {
	now := a.running.Add(1)
	for {
		max := a.maxSeen.Load()
		if now <= max || a.maxSeen.CompareAndSwap(max, now) {
			break
		}
	}
	time.Sleep(2500 * time.Millisecond)
	a.running.Add(-1)
	a.runs.Add(1)
	return nil
}

func TestSchedulerNeverOverlapsRuns(t *testing.T) {
	agent := &slowAgent{}
	s := NewScheduler()
	s.RegisterAgent(agent)
	s.Start()
	defer s.Stop()

	// Four firing slots for a job that takes 2.5s per run
	time.Sleep(4 * time.Second)

	assert.LessOrEqual(t, agent.maxSeen.Load(), int32(1))
	assert.GreaterOrEqual(t, agent.runs.Load(), int32(1))
}
