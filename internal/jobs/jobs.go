// Package jobs runs the periodic maintenance tasks.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Warmer pre-populates the response cache.
type Warmer interface {
	Warmup(ctx context.Context, queries []string) int
}

// Purger deletes expired credentials.
type Purger interface {
	PurgeRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
	PurgePasswordResets(ctx context.Context, now time.Time) (int64, error)
}

const (
	WarmupSpec = "0 3 * * *" // daily, 03:00 Kigali
	PurgeSpec  = "@hourly"

	jobTimeout = 10 * time.Minute
)

type Scheduler struct {
	cron    *cron.Cron
	warmer  Warmer
	purger  Purger
	queries []string
	log     *zap.Logger
}

func New(w Warmer, p Purger, queries []string, log *zap.Logger) *Scheduler {
	loc, err := time.LoadLocation("Africa/Kigali")
	if err != nil {
		loc = time.FixedZone("CAT", 2*60*60)
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		warmer:  w,
		purger:  p,
		queries: queries,
		log:     log,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.warmer != nil {
		if _, err := s.cron.AddFunc(WarmupSpec, func() { s.WarmCache(context.Background()) }); err != nil {
			return err
		}
	}
	if s.purger != nil {
		if _, err := s.cron.AddFunc(PurgeSpec, func() { s.Purge(context.Background()) }); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) WarmCache(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n := s.warmer.Warmup(ctx, s.queries)
	s.log.Info("cache warmup done",
		zap.Int("warmed", n),
		zap.Int("queries", len(s.queries)),
		zap.Duration("took", time.Since(start)),
	)
	return n
}

func (s *Scheduler) Purge(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	now := time.Now()
	tokens, err := s.purger.PurgeRefreshTokens(ctx, now)
	if err != nil {
		s.log.Error("purge refresh tokens", zap.Error(err))
	}
	resets, err := s.purger.PurgePasswordResets(ctx, now)
	if err != nil {
		s.log.Error("purge password resets", zap.Error(err))
	}
	s.log.Info("purged expired credentials", zap.Int64("refresh_tokens", tokens), zap.Int64("password_resets", resets))
}
