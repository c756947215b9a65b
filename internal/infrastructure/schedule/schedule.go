package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lendledger/lendledger/internal/infrastructure/redislock"
)

const overdueLeaseKey = "overdue-sweep"

// Sweeper is the job run on every tick.
type Sweeper interface {
	ProcessOverdueAgreements(ctx context.Context) int
}

// Runner drives the overdue sweep on a cron schedule. Each tick takes a lease
// first so only one instance sweeps.
type Runner struct {
	cron     *cron.Cron
	sweeper  Sweeper
	locker   redislock.Locker
	leaseTTL time.Duration
	logger   zerolog.Logger
}

// NewRunner registers the sweep under spec. Times are evaluated in UTC.
func NewRunner(spec string, sweeper Sweeper, locker redislock.Locker, leaseTTL time.Duration, logger zerolog.Logger) (*Runner, error) {
	if locker == nil {
		locker = redislock.Local{}
	}
	r := &Runner{
		sweeper:  sweeper,
		locker:   locker,
		leaseTTL: leaseTTL,
		logger:   logger.With().Str("component", "schedule").Logger(),
	}
	cl := cronLogger{r.logger}
	r.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := r.cron.AddFunc(spec, func() { r.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return r, nil
}

func (r *Runner) Start() {
	r.cron.Start()
	for _, e := range r.cron.Entries() {
		r.logger.Info().Time("next", e.Next).Msg("overdue sweep scheduled")
	}
}

// Stop halts the schedule and waits for a running sweep or ctx.
func (r *Runner) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn().Msg("overdue sweep still running at shutdown")
	}
}

// RunOnce sweeps if the lease is free. It reports whether the sweep ran and
// how many agreements it marked.
func (r *Runner) RunOnce(ctx context.Context) (int, bool) {
	release, ok, err := r.locker.Acquire(ctx, overdueLeaseKey, r.leaseTTL)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to take sweep lease")
		return 0, false
	}
	if !ok {
		r.logger.Debug().Msg("sweep lease held elsewhere")
		return 0, false
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn().Err(err).Msg("failed to release sweep lease")
		}
	}()
	return r.sweeper.ProcessOverdueAgreements(ctx), true
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
