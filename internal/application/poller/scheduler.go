package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/restockwatch/worker/internal/domain"
	"github.com/robfig/cron/v3"
)

// TickReport is the last completed tick for one priority, kept for the ops
// status endpoint.
type TickReport struct {
	Summary TickSummary `json:"summary"`
	At      time.Time   `json:"at"`
}

// Scheduler drives the poll service on a per-priority cadence. High-priority
// products run on a shorter interval than the default. A tick that is still
// running when its next slot comes up is skipped, never overlapped.
type Scheduler struct {
	svc  Service
	cron *cron.Cron

	mu   sync.RWMutex
	ctx  context.Context
	last map[string]TickReport
}

// NewScheduler creates a stopped scheduler with one cron entry per priority.
func NewScheduler(svc Service, defaultEvery, highEvery time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		svc:  svc,
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:  context.Background(),
		last: make(map[string]TickReport),
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", defaultEvery), func() {
		s.run(domain.PriorityNormal)
	}); err != nil {
		return nil, fmt.Errorf("schedule default cadence: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", highEvery), func() {
		s.run(domain.PriorityHigh)
	}); err != nil {
		return nil, fmt.Errorf("schedule high-priority cadence: %w", err)
	}
	return s, nil
}

// Start begins ticking. ctx bounds every tick started afterwards.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop halts scheduling and waits for any running tick, up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Scheduler) run(priority string) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()

	summary := s.svc.Tick(ctx, priority)

	s.mu.Lock()
	s.last[priority] = TickReport{Summary: summary, At: time.Now().UTC()}
	s.mu.Unlock()
}

// Last returns a copy of the most recent tick report per priority.
func (s *Scheduler) Last() map[string]TickReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]TickReport, len(s.last))
	for k, v := range s.last {
		out[k] = v
	}
	return out
}
