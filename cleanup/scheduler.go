package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrPurgeRunning is returned by RunOnce while another purge is in flight.
var ErrPurgeRunning = errors.New("cleanup: purge already running")

// DefaultSchedules purge every six hours and daily at 02:00.
var DefaultSchedules = []string{"@every 6h", "0 2 * * *"}

// Purger deletes expired revocation state. *goToken.Engine satisfies it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Config controls when purges run.
type Config struct {
	// Schedules are standard five-field cron specs or descriptors such as
	// "@every 1h". Empty means DefaultSchedules.
	Schedules []string `yaml:"schedules"`
	// Timeout bounds a single purge. Zero means no bound.
	Timeout time.Duration `yaml:"timeout"`
	// Location is the zone cron specs are evaluated in. Nil means UTC.
	Location *time.Location `yaml:"-"`
}

// Result describes one purge run.
type Result struct {
	StartedAt time.Time
	Duration  time.Duration
	Purged    int64
	Err       error
}

// Scheduler wraps a cron runner. At most one purge runs at a time across all
// schedules and RunOnce; a run that would overlap is skipped.
type Scheduler struct {
	purger  Purger
	cron    *cron.Cron
	logger  zerolog.Logger
	timeout time.Duration
	busy    atomic.Bool

	mu      sync.Mutex
	running bool
	last    Result
	runs    int
}

// New validates cfg and registers every schedule. The scheduler does not
// run until Start.
func New(purger Purger, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if purger == nil {
		return nil, errors.New("cleanup: purger is required")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("cleanup: timeout must be >= 0")
	}
	schedules := cfg.Schedules
	if len(schedules) == 0 {
		schedules = DefaultSchedules
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		purger:  purger,
		logger:  logger.With().Str("component", "cleanup").Logger(),
		timeout: cfg.Timeout,
	}
	cronLog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	for _, spec := range schedules {
		if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
			return nil, fmt.Errorf("cleanup: invalid schedule %q: %w", spec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if _, err := s.RunOnce(context.Background()); errors.Is(err, ErrPurgeRunning) {
		s.logger.Debug().Msg("purge skipped, previous run still in flight")
	}
}

// RunOnce purges immediately and records the result. It returns
// ErrPurgeRunning without purging when another run is in flight.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return 0, ErrPurgeRunning
	}
	defer s.busy.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := s.purger.PurgeExpired(ctx)
	res := Result{StartedAt: start, Duration: time.Since(start), Purged: n, Err: err}

	s.mu.Lock()
	s.last = res
	s.runs++
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Dur("duration", res.Duration).Msg("purge failed")
		return n, err
	}
	s.logger.Info().Int64("purged", n).Dur("duration", res.Duration).Msg("purge completed")
	return n, nil
}

// Start begins running scheduled purges in the background. Calling Start on
// a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info().Int("schedules", len(s.cron.Entries())).Msg("cleanup scheduler started")
}

// Stop halts the schedule and returns a context that is done once any
// in-flight purge has finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.logger.Info().Msg("cleanup scheduler stopped")
	return s.cron.Stop()
}

// Next returns the earliest upcoming run, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// Last returns the most recent result and how many runs have completed.
func (s *Scheduler) Last() (Result, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
