package ingest

import (
	"context"
	"log"
	"time"
)

// Pruner deletes old records.
type Pruner interface {
	DeleteRunsBefore(cutoff time.Time) (int64, error)
	CleanupOldRawPayloads(retention time.Duration) (int64, error)
}

// Scheduler keeps a forecast for the default city fresh and prunes the run
// log.
type Scheduler struct {
	pipeline        *Pipeline
	pruner          Pruner
	city            string
	refreshInterval time.Duration
	pruneInterval   time.Duration
	retention       time.Duration
	now             func() time.Time
}

// NewScheduler returns a scheduler for city. A zero refresh interval disables
// refreshing; a zero retention disables pruning.
func NewScheduler(pipeline *Pipeline, pruner Pruner, city string, refresh, retention time.Duration) *Scheduler {
	return &Scheduler{
		pipeline:        pipeline,
		pruner:          pruner,
		city:            city,
		refreshInterval: refresh,
		pruneInterval:   time.Hour,
		retention:       retention,
		now:             time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	if s.refreshInterval <= 0 && s.retention <= 0 {
		return
	}

	s.refresh(ctx)
	s.prune()

	var refreshC, pruneC <-chan time.Time
	if s.refreshInterval > 0 {
		t := time.NewTicker(s.refreshInterval)
		defer t.Stop()
		refreshC = t.C
	}
	if s.retention > 0 {
		t := time.NewTicker(s.pruneInterval)
		defer t.Stop()
		pruneC = t.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-refreshC:
			s.refresh(ctx)
		case <-pruneC:
			s.prune()
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context) {
	if s.refreshInterval <= 0 || s.city == "" {
		return
	}
	run, err := s.pipeline.Forecast(ctx, s.city)
	if err != nil {
		log.Printf("scheduler: refresh %s: %v", s.city, err)
		return
	}
	log.Printf("scheduler: refreshed %s (run %s)", s.city, run.ID)
}

func (s *Scheduler) prune() {
	if s.retention <= 0 || s.pruner == nil {
		return
	}
	runs, err := s.pruner.DeleteRunsBefore(s.now().Add(-s.retention))
	if err != nil {
		log.Printf("scheduler: prune runs: %v", err)
	}
	payloads, err := s.pruner.CleanupOldRawPayloads(s.retention)
	if err != nil {
		log.Printf("scheduler: prune payloads: %v", err)
	}
	if runs > 0 || payloads > 0 {
		log.Printf("scheduler: pruned %d runs and %d payloads older than %v", runs, payloads, s.retention)
	}
}
