package aggregate

import (
	"context"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"
)

type Config struct {
	// WindowSize is the rollup bucket width.
	WindowSize time.Duration

	// BatchSize / FlushInterval bound the micro-batches: a batch is
	// flushed at BatchSize events or after FlushInterval, whichever
	// comes first. Batch boundaries carry no correctness meaning.
	BatchSize     int
	FlushInterval time.Duration
}

const (
	defaultWindowSize    = time.Hour
	defaultBatchSize     = 100
	defaultFlushInterval = 500 * time.Millisecond
)

func DefaultConfig() Config {
	return Config{
		WindowSize:    defaultWindowSize,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
	}
}

// ---- Rollup keys & deltas ----

type PostWindowKey struct {
	PostID      string
	WindowStart time.Time
}

type UserAuthorKey struct {
	UserID   string
	AuthorID string
}

// MetricDelta is a commutative increment against one rollup row.
type MetricDelta struct {
	Views      int64
	Likes      int64
	Comments   int64
	Shares     int64
	DwellMsSum int64
	Exposures  int64
}

type AffinityDelta struct {
	Likes           int64
	Comments        int64
	Views           int64
	DwellMs         int64
	LastInteraction time.Time
}

// ---- Repository interfaces ----

type RollupRepository interface {
	IncrementPostMetrics(ctx context.Context, key PostWindowKey, delta MetricDelta) error
	IncrementAffinity(ctx context.Context, key UserAuthorKey, delta AffinityDelta) error
}

// ---- Usecase / Service ----

type AggregationService struct {
	rollups RollupRepository
	cfg     Config
}

func NewAggregationService(rollups RollupRepository, cfg Config) *AggregationService {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultWindowSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &AggregationService{
		rollups: rollups,
		cfg:     cfg,
	}
}

// Aggregate folds a micro-batch of events into per-key deltas and
// applies each as an atomic increment. A failing key is retried once,
// then logged and skipped; it never fails the rest of the batch.
func (s *AggregationService) Aggregate(ctx context.Context, events []domain.InteractionEvent) domain.AggregationReport {
	report := domain.AggregationReport{Events: len(events)}
	if len(events) == 0 {
		return report
	}

	metricDeltas, affinityDeltas := computeDeltas(events, s.cfg.WindowSize)

	for key, delta := range metricDeltas {
		err := s.rollups.IncrementPostMetrics(ctx, key, *delta)
		if err != nil {
			err = s.rollups.IncrementPostMetrics(ctx, key, *delta)
		}
		if err != nil {
			report.KeysFailed++
			KeyFailuresTotal.WithLabelValues("post_metrics").Inc()
			logger.Error("post metric increment failed",
				"post_id", key.PostID,
				"window_start", key.WindowStart,
				"error", err,
			)
			continue
		}
		report.KeysApplied++
		IncrementsAppliedTotal.WithLabelValues("post_metrics").Inc()
	}

	for key, delta := range affinityDeltas {
		err := s.rollups.IncrementAffinity(ctx, key, *delta)
		if err != nil {
			err = s.rollups.IncrementAffinity(ctx, key, *delta)
		}
		if err != nil {
			report.KeysFailed++
			KeyFailuresTotal.WithLabelValues("affinity").Inc()
			logger.Error("affinity increment failed",
				"user_id", key.UserID,
				"author_id", key.AuthorID,
				"error", err,
			)
			continue
		}
		report.KeysApplied++
		IncrementsAppliedTotal.WithLabelValues("affinity").Inc()
	}

	EventsAggregatedTotal.Add(float64(len(events)))

	return report
}

// computeDeltas is pure: increments are additive, so any permutation
// of the batch folds to the same delta maps.
func computeDeltas(
	events []domain.InteractionEvent,
	windowSize time.Duration,
) (map[PostWindowKey]*MetricDelta, map[UserAuthorKey]*AffinityDelta) {

	metricDeltas := make(map[PostWindowKey]*MetricDelta)
	affinityDeltas := make(map[UserAuthorKey]*AffinityDelta)

	for _, ev := range events {
		mKey := PostWindowKey{
			PostID:      ev.PostID,
			WindowStart: ev.EventTime.UTC().Truncate(windowSize),
		}
		md, ok := metricDeltas[mKey]
		if !ok {
			md = &MetricDelta{}
			metricDeltas[mKey] = md
		}

		var ad *AffinityDelta
		if ev.AuthorID != "" && ev.AuthorID != ev.UserID {
			aKey := UserAuthorKey{UserID: ev.UserID, AuthorID: ev.AuthorID}
			ad, ok = affinityDeltas[aKey]
			if !ok {
				ad = &AffinityDelta{}
				affinityDeltas[aKey] = ad
			}
			if ev.EventTime.After(ad.LastInteraction) {
				ad.LastInteraction = ev.EventTime.UTC()
			}
		}

		switch ev.Action {
		case domain.ActionImpression:
			md.Exposures++
		case domain.ActionView:
			md.Views++
			md.DwellMsSum += ev.DwellMs
			if ad != nil {
				ad.Views++
				ad.DwellMs += ev.DwellMs
			}
		case domain.ActionLike:
			md.Likes++
			if ad != nil {
				ad.Likes++
			}
		case domain.ActionComment:
			md.Comments++
			if ad != nil {
				ad.Comments++
			}
		case domain.ActionShare:
			md.Shares++
		}
	}

	// drop affinity keys that only saw impressions/shares
	for key, ad := range affinityDeltas {
		if ad.Likes == 0 && ad.Comments == 0 && ad.Views == 0 {
			delete(affinityDeltas, key)
		}
	}

	return metricDeltas, affinityDeltas
}
