package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/studyhall/pkg/logger"
)

const (
	defaultRetentionSpec  = "@daily"
	defaultCachePurgeSpec = "@every 15m"
	defaultStatsSpec      = "@every 1m"
	jobTimeout            = 2 * time.Minute
)

// MessagePurger deletes chat history older than a cutoff.
type MessagePurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CachePurger drops expired cache entries.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StatsFunc refreshes runtime gauges.
type StatsFunc func(ctx context.Context) error

// Cleaner runs background maintenance: message retention, cache expiry and gauge refresh.
type Cleaner struct {
	messages MessagePurger
	cache    CachePurger
	stats    StatsFunc
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger

	retentionDays     int
	retentionSchedule string
	cacheSchedule     string
	statsSchedule     string
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

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithMessageRetention keeps messages for days; zero keeps them forever.
func WithMessageRetention(days int, spec string) Option {
	return func(cleaner *Cleaner) {
		cleaner.retentionDays = days
		if spec != "" {
			cleaner.retentionSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron specification for cache purging.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithStats registers a gauge refresh job.
func WithStats(fn StatsFunc, spec string) Option {
	return func(cleaner *Cleaner) {
		cleaner.stats = fn
		if spec != "" {
			cleaner.statsSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips its job.
func NewCleaner(messages MessagePurger, cache CachePurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		messages:          messages,
		cache:             cache,
		now:               time.Now,
		log:               logger.WithModule("maintenance"),
		retentionSchedule: defaultRetentionSpec,
		cacheSchedule:     defaultCachePurgeSpec,
		statsSchedule:     defaultStatsSpec,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.messages != nil && c.retentionDays > 0 {
		jobs = append(jobs, job{name: "message_retention", spec: c.retentionSchedule, run: c.purgeMessages})
	}
	if c.cache != nil {
		jobs = append(jobs, job{name: "cache_purge", spec: c.cacheSchedule, run: c.purgeCache})
	}
	if c.stats != nil {
		jobs = append(jobs, job{name: "stats_refresh", spec: c.statsSchedule, run: c.stats})
	}
	return jobs
}

// Start registers the enabled jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	jobs := c.jobs()
	if len(jobs) == 0 {
		return nil
	}

	for _, j := range jobs {
		j := j
		if _, err := c.cron.AddFunc(j.spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if err := j.run(ctx); err != nil {
				c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s %q: %w", j.name, j.spec, err)
		}
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.Int("jobs", len(jobs)))
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return c.cron.Stop()
}

// RunOnce executes every enabled job sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, j := range c.jobs() {
		if err := j.run(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", j.name, err))
		}
	}
	return errs
}

func (c *Cleaner) purgeMessages(ctx context.Context) error {
	cutoff := c.now().UTC().AddDate(0, 0, -c.retentionDays)
	removed, err := c.messages.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Info("purged chat history", zap.Int64("messages", removed), zap.Time("cutoff", cutoff))
	}
	return nil
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	removed, err := c.cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		c.log.Debug("purged expired cache entries", zap.Int64("entries", removed))
	}
	return nil
}
