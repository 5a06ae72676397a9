// Package sweep removes expired sessions and stale rate-limit entries in the
// background. Invite and verification tokens are kept after expiry so a
// late click still reports the link as expired; they go away with their
// invite or account.
package sweep

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/shelf/internal/metrics"
	"github.com/dukerupert/shelf/internal/middleware"
	"github.com/dukerupert/shelf/internal/store"
)

const Interval = time.Hour

type Sweeper struct {
	stores  store.Stores
	limiter *middleware.RateLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(db *sql.DB, limiter *middleware.RateLimiter, m *metrics.Metrics, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		stores:  store.New(db),
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

// Run sweeps once immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		if err := s.Once(ctx); err != nil {
			s.logger.Error("sweep", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Once runs every cleanup task concurrently and returns the first error.
// Tasks that succeed still record what they removed.
func (s *Sweeper) Once(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.record("sessions", func() (int64, error) { return s.stores.Sessions.DeleteExpired() })
	})
	if s.limiter != nil {
		g.Go(func() error {
			return s.record("rate_limits", func() (int64, error) { return int64(s.limiter.Cleanup()), nil })
		})
	}
	return g.Wait()
}

func (s *Sweeper) record(table string, fn func() (int64, error)) error {
	n, err := fn()
	if err != nil {
		return err
	}
	s.metrics.Swept(table, n)
	if n > 0 {
		s.logger.Info("swept expired rows", "table", table, "count", n)
	}
	return nil
}
