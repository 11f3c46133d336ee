package retention

import (
	"context"
	"fmt"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"
)

type Config struct {
	EventHorizon    time.Duration
	RollupHorizon   time.Duration
	AffinityHorizon time.Duration

	// SafetyMargin keeps the cutoff strictly older than any in-flight
	// aggregation window so a row is never deleted mid-update.
	SafetyMargin time.Duration

	SweepInterval time.Duration
}

const (
	defaultEventHorizon    = 30 * 24 * time.Hour
	defaultRollupHorizon   = 120 * 24 * time.Hour
	defaultAffinityHorizon = 90 * 24 * time.Hour
	defaultSafetyMargin    = time.Hour
	defaultSweepInterval   = time.Hour
)

func DefaultConfig() Config {
	return Config{
		EventHorizon:    defaultEventHorizon,
		RollupHorizon:   defaultRollupHorizon,
		AffinityHorizon: defaultAffinityHorizon,
		SafetyMargin:    defaultSafetyMargin,
		SweepInterval:   defaultSweepInterval,
	}
}

// ---- Repository interfaces ----

type EventLogExpirer interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RollupExpirer interface {
	DeleteRollupsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAffinitiesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ---- Usecase / Service ----

type RetentionService struct {
	events  EventLogExpirer
	rollups RollupExpirer
	cfg     Config
}

func NewRetentionService(events EventLogExpirer, rollups RollupExpirer, cfg Config) *RetentionService {
	if cfg.EventHorizon <= 0 {
		cfg.EventHorizon = defaultEventHorizon
	}
	if cfg.RollupHorizon <= 0 {
		cfg.RollupHorizon = defaultRollupHorizon
	}
	if cfg.AffinityHorizon <= 0 {
		cfg.AffinityHorizon = defaultAffinityHorizon
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	return &RetentionService{
		events:  events,
		rollups: rollups,
		cfg:     cfg,
	}
}

// Expire physically removes rows past their horizons. Rollup
// correctness is self-contained per row, so no read path ever has to
// filter by age; expiry just drops whole rows.
func (s *RetentionService) Expire(ctx context.Context, now time.Time) (domain.ExpiredCounts, error) {
	var counts domain.ExpiredCounts

	if err := ctx.Err(); err != nil {
		return counts, fmt.Errorf("context error: %w", err)
	}

	eventCutoff := s.cutoff(now, s.cfg.EventHorizon)
	rollupCutoff := s.cutoff(now, s.cfg.RollupHorizon)
	affinityCutoff := s.cutoff(now, s.cfg.AffinityHorizon)

	n, err := s.events.DeleteEventsBefore(ctx, eventCutoff)
	if err != nil {
		return counts, fmt.Errorf("expire events before %s: %w", eventCutoff, err)
	}
	counts.Events = n
	RowsExpiredTotal.WithLabelValues("events").Add(float64(n))

	n, err = s.rollups.DeleteRollupsBefore(ctx, rollupCutoff)
	if err != nil {
		return counts, fmt.Errorf("expire rollups before %s: %w", rollupCutoff, err)
	}
	counts.Rollups = n
	RowsExpiredTotal.WithLabelValues("rollups").Add(float64(n))

	n, err = s.rollups.DeleteAffinitiesBefore(ctx, affinityCutoff)
	if err != nil {
		return counts, fmt.Errorf("expire affinities before %s: %w", affinityCutoff, err)
	}
	counts.Affinities = n
	RowsExpiredTotal.WithLabelValues("affinities").Add(float64(n))

	return counts, nil
}

func (s *RetentionService) cutoff(now time.Time, horizon time.Duration) time.Time {
	return now.UTC().Add(-horizon - s.cfg.SafetyMargin)
}

// RunSweeper ticks in the background until ctx is cancelled. It is
// fully decoupled from the ingest, aggregation and ranking paths.
func (s *RetentionService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			counts, err := s.Expire(ctx, time.Now())
			if err != nil {
				SweepFailuresTotal.Inc()
				logger.Error("retention sweep failed", "error", err)
				continue
			}
			logger.Info("retention sweep done",
				"events", counts.Events,
				"rollups", counts.Rollups,
				"affinities", counts.Affinities,
			)
		}
	}
}
