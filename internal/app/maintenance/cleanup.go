package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/feelize/platform/pkg/logger"
)

const (
	defaultPasscodeSpec   = "@every 30m"
	defaultRevocationSpec = "@daily"
	defaultRetention      = 14 * 24 * time.Hour
)

// PasscodePurger clears one-time passcodes that expired before cutoff.
type PasscodePurger interface {
	PurgeExpiredPasscodes(ctx context.Context, cutoff time.Time) (int64, error)
}

// RevocationPurger drops revocation floors older than cutoff.
type RevocationPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner coordinates background maintenance: expired passcodes and revocation floors that
// no live session can predate.
type Cleaner struct {
	passcodes   PasscodePurger
	revocations RevocationPurger
	cron        *cron.Cron
	now         func() time.Time
	log         *zap.Logger
	retention   time.Duration

	passcodeSchedule   string
	revocationSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRevocationRetention sets how long revocation floors are kept. It must be at least the
// maximum session lifetime.
func WithRevocationRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.retention = d
		}
	}
}

// WithPasscodeSchedule overrides the cron specification for passcode cleanup.
func WithPasscodeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.passcodeSchedule = spec
		}
	}
}

// WithRevocationSchedule overrides the cron specification for revocation cleanup.
func WithRevocationSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.revocationSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil purger skips the corresponding job.
func NewCleaner(passcodes PasscodePurger, revocations RevocationPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		passcodes:          passcodes,
		revocations:        revocations,
		now:                time.Now,
		retention:          defaultRetention,
		passcodeSchedule:   defaultPasscodeSpec,
		revocationSchedule: defaultRevocationSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs and launches the scheduler when at least one job is enabled.
func (c *Cleaner) Start() error {
	if c.passcodes == nil && c.revocations == nil {
		return nil
	}

	if c.passcodes != nil {
		if _, err := c.cron.AddFunc(c.passcodeSchedule, func() {
			if _, err := c.purgePasscodes(context.Background()); err != nil {
				c.log.Warn("passcode cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.revocations != nil {
		if _, err := c.cron.AddFunc(c.revocationSchedule, func() {
			if _, err := c.purgeRevocations(context.Background()); err != nil {
				c.log.Warn("revocation cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.passcodes != nil {
		if _, err := c.purgePasscodes(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.revocations != nil {
		if _, err := c.purgeRevocations(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (c *Cleaner) purgePasscodes(ctx context.Context) (int64, error) {
	n, err := c.passcodes.PurgeExpiredPasscodes(ctx, c.now())
	if err == nil && n > 0 {
		c.log.Info("expired passcodes cleared", zap.Int64("count", n))
	}
	return n, err
}

func (c *Cleaner) purgeRevocations(ctx context.Context) (int64, error) {
	n, err := c.revocations.PurgeBefore(ctx, c.now().Add(-c.retention))
	if err == nil && n > 0 {
		c.log.Info("stale revocations purged", zap.Int64("count", n))
	}
	return n, err
}
