package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// PruneScheduler runs Prune on a cron schedule.
type PruneScheduler struct {
	cron      *cron.Cron
	pruner    Pruner
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewPruneScheduler validates schedule (standard cron syntax or descriptors
// such as "@hourly") and returns a scheduler that is not yet started.
func NewPruneScheduler(p Pruner, schedule string, retention time.Duration, log zerolog.Logger) (*PruneScheduler, error) {
	if schedule == "" {
		schedule = "@hourly"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("prune retention must be positive")
	}
	ps := &PruneScheduler{cron: cron.New(), pruner: p, retention: retention, log: log, now: time.Now}
	if _, err := ps.cron.AddFunc(schedule, ps.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule prune: %w", err)
	}
	return ps, nil
}

// RunOnce prunes turns older than the retention window.
func (ps *PruneScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := ps.pruner.Prune(ctx, ps.now().Add(-ps.retention))
	if err != nil {
		ps.log.Warn().Err(err).Msg("memory prune failed")
		return
	}
	if n > 0 {
		ps.log.Info().Int("removed", n).Msg("memory pruned")
	}
}

func (ps *PruneScheduler) Start() { ps.cron.Start() }

// Stop halts the schedule and waits for a running prune to finish.
func (ps *PruneScheduler) Stop() { <-ps.cron.Stop().Done() }
