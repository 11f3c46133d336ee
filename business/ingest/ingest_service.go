package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"
)

type Config struct {
	// DedupWindow is the best-effort redelivery suppression window.
	// Duplicates arriving outside it pass through; the aggregator
	// tolerates them as a documented over-count.
	DedupWindow time.Duration

	// MaxClockSkew bounds how far an event_time may sit from arrival.
	MaxClockSkew time.Duration
}

const (
	defaultDedupWindow  = 5 * time.Minute
	defaultMaxClockSkew = 365 * 24 * time.Hour
)

func DefaultConfig() Config {
	return Config{
		DedupWindow:  defaultDedupWindow,
		MaxClockSkew: defaultMaxClockSkew,
	}
}

// ---- Repository interfaces ----

type EventLogRepository interface {
	AppendEvent(ctx context.Context, event domain.InteractionEvent) error
}

// Deduplicator remembers event ids for a bounded window.
// CheckAndMark returns true when the id was not seen inside the window.
type Deduplicator interface {
	CheckAndMark(ctx context.Context, eventID string, window time.Duration) (bool, error)
}

// ---- Usecase / Service ----

// RawEvent is the wire shape of one interaction message from the bus.
// EventTime is milliseconds since epoch; zero means "use arrival time".
type RawEvent struct {
	EventID   string `json:"event_id"`
	Action    string `json:"action"`
	UserID    string `json:"user_id"`
	PostID    string `json:"post_id"`
	AuthorID  string `json:"author_id"`
	EventTime int64  `json:"event_time"`
	DwellMs   int64  `json:"dwell_ms"`
}

type IngestService struct {
	events EventLogRepository
	dedup  Deduplicator
	cfg    Config

	now func() time.Time
}

func NewIngestService(events EventLogRepository, dedup Deduplicator, cfg Config) *IngestService {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = defaultMaxClockSkew
	}
	return &IngestService{
		events: events,
		dedup:  dedup,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Ingest parses one bus message and appends it to the event log.
// Returns the stored event, or (nil, nil) when the message was a
// duplicate inside the dedup window. A domain.ErrInvalidPayload error
// means the message must be dropped; a domain.ErrStorageUnavailable
// error means it must stay unacknowledged for redelivery.
func (s *IngestService) Ingest(ctx context.Context, payload []byte) (*domain.InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var raw RawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		InvalidPayloadsTotal.Inc()
		return nil, fmt.Errorf("%w: unmarshal event: %v", domain.ErrInvalidPayload, err)
	}

	arrival := s.now()

	event, err := s.buildEvent(raw, arrival)
	if err != nil {
		InvalidPayloadsTotal.Inc()
		return nil, err
	}

	if s.dedup != nil {
		first, err := s.dedup.CheckAndMark(ctx, event.EventID, s.cfg.DedupWindow)
		if err != nil {
			// dedup store down: fail open, the aggregator tolerates dups
			DedupCheckFailuresTotal.Inc()
			logger.Warn("dedup check failed, passing event through",
				"event_id", event.EventID,
				"error", err,
			)
		} else if !first {
			DuplicateEventsTotal.Inc()
			logger.Debug("duplicate event skipped", "event_id", event.EventID)
			return nil, nil
		}
	}

	if err := s.events.AppendEvent(ctx, *event); err != nil {
		return nil, fmt.Errorf("%w: append event %s: %v", domain.ErrStorageUnavailable, event.EventID, err)
	}

	EventsIngestedTotal.WithLabelValues(event.Action).Inc()

	return event, nil
}

func (s *IngestService) buildEvent(raw RawEvent, arrival time.Time) (*domain.InteractionEvent, error) {
	if !domain.ValidAction(raw.Action) {
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidPayload, raw.Action)
	}
	if raw.UserID == "" {
		return nil, fmt.Errorf("%w: missing user_id", domain.ErrInvalidPayload)
	}
	if raw.PostID == "" {
		return nil, fmt.Errorf("%w: missing post_id", domain.ErrInvalidPayload)
	}
	if raw.DwellMs < 0 {
		return nil, fmt.Errorf("%w: negative dwell_ms %d", domain.ErrInvalidPayload, raw.DwellMs)
	}

	eventTime := arrival
	if raw.EventTime > 0 {
		eventTime = time.UnixMilli(raw.EventTime).UTC()
		skew := arrival.Sub(eventTime)
		if skew < 0 {
			skew = -skew
		}
		if skew > s.cfg.MaxClockSkew {
			return nil, fmt.Errorf("%w: event_time %s too far from arrival", domain.ErrInvalidPayload, eventTime)
		}
	}

	eventID := raw.EventID
	if eventID == "" {
		eventID = deriveEventID(raw, eventTime)
	}

	return &domain.InteractionEvent{
		EventID:      eventID,
		EventTime:    eventTime.UTC(),
		PartitionDay: eventTime.UTC().Truncate(24 * time.Hour),
		UserID:       raw.UserID,
		PostID:       raw.PostID,
		AuthorID:     raw.AuthorID,
		Action:       raw.Action,
		DwellMs:      raw.DwellMs,
	}, nil
}

// deriveEventID builds a stable id for messages that arrive without
// one, so a redelivery of the same logical message derives the same id
// and falls into the dedup window.
func deriveEventID(raw RawEvent, eventTime time.Time) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%s|%s|%d", raw.UserID, raw.PostID, raw.Action, eventTime.UnixMilli())
	return fmt.Sprintf("gen-%016x", h.Sum64())
}
