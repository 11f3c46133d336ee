package aggregate

import (
	"context"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"
)

const flushTimeout = 5 * time.Second

type Aggregator interface {
	Aggregate(ctx context.Context, events []domain.InteractionEvent) domain.AggregationReport
}

// Batcher collects ingested events into micro-batches and hands them
// to the aggregator at BatchSize events or FlushInterval, whichever
// comes first.
type Batcher struct {
	agg      Aggregator
	events   chan domain.InteractionEvent
	size     int
	interval time.Duration
	done     chan struct{}
}

func NewBatcher(agg Aggregator, cfg Config) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	return &Batcher{
		agg:      agg,
		events:   make(chan domain.InteractionEvent, cfg.BatchSize*4),
		size:     cfg.BatchSize,
		interval: cfg.FlushInterval,
		done:     make(chan struct{}),
	}
}

// Add enqueues one event. Blocks when the buffer is full so slow
// aggregation applies backpressure to the bus consumer.
func (b *Batcher) Add(ctx context.Context, event domain.InteractionEvent) error {
	select {
	case b.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the flush loop until ctx is cancelled, then drains the
// buffer and flushes whatever is left.
func (b *Batcher) Run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	batch := make([]domain.InteractionEvent, 0, b.size)

	for {
		select {
		case ev := <-b.events:
			batch = append(batch, ev)
			if len(batch) >= b.size {
				b.flush(&batch)
			}
		case <-ticker.C:
			b.flush(&batch)
		case <-ctx.Done():
			b.drain(&batch)
			b.flush(&batch)
			return
		}
	}
}

// Done is closed once Run has flushed its final batch.
func (b *Batcher) Done() <-chan struct{} {
	return b.done
}

func (b *Batcher) flush(batch *[]domain.InteractionEvent) {
	if len(*batch) == 0 {
		return
	}

	// the caller's ctx may already be cancelled during shutdown; the
	// final flush still has to reach storage
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	report := b.agg.Aggregate(ctx, *batch)
	if report.KeysFailed > 0 {
		logger.Warn("aggregation batch had failed keys",
			"events", report.Events,
			"keys_applied", report.KeysApplied,
			"keys_failed", report.KeysFailed,
		)
	}

	*batch = (*batch)[:0]
}

func (b *Batcher) drain(batch *[]domain.InteractionEvent) {
	for {
		select {
		case ev := <-b.events:
			*batch = append(*batch, ev)
			if len(*batch) >= b.size {
				b.flush(batch)
			}
		default:
			return
		}
	}
}
