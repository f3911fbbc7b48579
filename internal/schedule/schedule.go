// Package schedule runs the periodic maintenance jobs: expiring pending
// writes nobody answered and evicting idle conversation sessions.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/robfig/cron/v3"

	"github.com/felixgeelhaar/agenda/internal/observe"
)

// Maintainer is the part of the runtime the jobs drive.
type Maintainer interface {
	ExpirePending(ttl time.Duration) int
	CleanupSessions(maxAge time.Duration) int
}

// Options sets how often each job runs and the age limits it applies.
type Options struct {
	PendingTTL      time.Duration
	SweepInterval   time.Duration
	SessionMaxAge   time.Duration
	CleanupInterval time.Duration
}

// Scheduler owns the cron instance.
type Scheduler struct {
	target  Maintainer
	opts    Options
	observe *observe.Observer

	// mu keeps the two jobs from overlapping each other.
	mu   sync.Mutex
	cron *cron.Cron
}

func New(target Maintainer, opts Options, o *observe.Observer) *Scheduler {
	if o == nil {
		o = observe.Nop()
	}
	return &Scheduler{target: target, opts: opts, observe: o}
}

// Start registers both jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.opts.SweepInterval <= 0 || s.opts.CleanupInterval <= 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}

	logger := cronLogger{log: s.observe.Log()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc("@every "+s.opts.SweepInterval.String(), s.SweepPending); err != nil {
		return fmt.Errorf("failed to schedule pending sweep: %w", err)
	}
	if _, err := c.AddFunc("@every "+s.opts.CleanupInterval.String(), s.CleanupSessions); err != nil {
		return fmt.Errorf("failed to schedule session cleanup: %w", err)
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.observe.Log().Info().
		Str("sweep", s.opts.SweepInterval.String()).
		Str("cleanup", s.opts.CleanupInterval.String()).
		Msg("maintenance scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		s.observe.Log().Info().Msg("maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for maintenance jobs: %w", ctx.Err())
	}
}

// SweepPending expires pending writes older than the TTL.
func (s *Scheduler) SweepPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.target.ExpirePending(s.opts.PendingTTL)
	s.observe.Log().Debug().Int("expired", n).Msg("pending sweep finished")
}

// CleanupSessions evicts sessions idle past the max age.
func (s *Scheduler) CleanupSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.target.CleanupSessions(s.opts.SessionMaxAge)
	s.observe.Log().Debug().Int("evicted", n).Msg("session cleanup finished")
}

// cronLogger routes cron's own messages into the bolt logger.
type cronLogger struct {
	log *bolt.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	e := l.log.Debug()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Str(fmt.Sprint(keysAndValues[i]), fmt.Sprint(keysAndValues[i+1]))
	}
	e.Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	e := l.log.Error().Err(err)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Str(fmt.Sprint(keysAndValues[i]), fmt.Sprint(keysAndValues[i+1]))
	}
	e.Msg("cron: " + msg)
}
