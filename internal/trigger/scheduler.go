// Package trigger runs periodic housekeeping jobs (memory sweeps) on a cron schedule.
package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// JobTimeout bounds a single job run.
const JobTimeout = 5 * time.Minute

// Job is one unit of scheduled work. It returns how many items it processed.
type Job func(ctx context.Context) (int, error)

// Scheduler manages cron-based jobs.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates an empty scheduler.
// Cron expressions use the standard 5-field format (e.g. "*/10 * * * *");
// descriptors such as "@every 5m" are accepted as well.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Register adds a named job on the given schedule.
func (s *Scheduler) Register(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), JobTimeout)
		defer cancel()

		start := time.Now()
		n, err := job(ctx)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("scheduled_job_failed")
			return
		}
		log.Debug().
			Str("job", name).
			Int("processed", n).
			Dur("duration", time.Since(start)).
			Msg("scheduled_job_completed")
	})
	if err != nil {
		return fmt.Errorf("registering cron %q for job %s: %w", spec, name, err)
	}
	return nil
}

// Start begins executing registered jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
