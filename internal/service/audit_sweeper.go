package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"
)

// AuditPurger deletes audit records older than the retention window and
// reports how many rows were removed.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditSweeperOptions groups dependencies for AuditSweeper.
type AuditSweeperOptions struct {
	Purger    AuditPurger   // Required: audit repository
	Retention time.Duration // How long events are kept. Default 90 days.
	Interval  time.Duration // How often the sweep runs. Default 1h.
	Logger    *slog.Logger  // Optional: structured logger
}

// AuditSweeper periodically deletes session events past the retention window
// to keep the audit table from growing without bound.
type AuditSweeper struct {
	purger    AuditPurger
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewAuditSweeper constructs a new AuditSweeper.
func NewAuditSweeper(opts AuditSweeperOptions) (*AuditSweeper, error) {
	if opts.Purger == nil {
		return nil, errors.New("AuditPurger is required")
	}
	if opts.Retention <= 0 {
		opts.Retention = 90 * 24 * time.Hour
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "audit_sweeper")
	}

	return &AuditSweeper{
		purger:    opts.Purger,
		retention: opts.Retention,
		interval:  opts.Interval,
		logger:    logger,
	}, nil
}

// Run starts the sweep loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *AuditSweeper) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting audit sweeper",
			"interval", s.interval,
			"retention", s.retention,
		)
	}

	// Jitter so multiple instances started together do not sweep in lockstep
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "audit sweeper stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *AuditSweeper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *AuditSweeper) sweep(ctx context.Context) {
	removed, err := s.purger.PurgeOlderThan(ctx, s.retention)
	if err != nil {
		if s.logger != nil && !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "audit sweep failed", "error", err)
		}
		return
	}

	if removed > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "audit sweep completed", "removed", removed, "retention", s.retention)
	}
}
