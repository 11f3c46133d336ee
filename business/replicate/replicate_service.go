package replicate

import (
	"context"
	"fmt"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"
)

type Config struct {
	// MaxAttempts bounds optimistic apply retries before a record is
	// routed to the dead-letter table.
	MaxAttempts  int
	RetryBackoff time.Duration
}

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  defaultMaxAttempts,
		RetryBackoff: defaultRetryBackoff,
	}
}

// ---- Repository interfaces ----

// ReplicaRepository applies a CDC record as a version-guarded upsert.
// It returns false without error when the stored version is already
// >= rec.Version (stale delivery).
type ReplicaRepository interface {
	ApplyIfNewer(ctx context.Context, rec domain.CDCRecord) (bool, error)
}

type DeadLetterRepository interface {
	Save(ctx context.Context, record domain.CDCDeadLetter) error
}

// ---- Usecase / Service ----

type ReplicationService struct {
	replica     ReplicaRepository
	deadLetters DeadLetterRepository
	cfg         Config

	sleep func(time.Duration)
}

func NewReplicationService(replica ReplicaRepository, deadLetters DeadLetterRepository, cfg Config) *ReplicationService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &ReplicationService{
		replica:     replica,
		deadLetters: deadLetters,
		cfg:         cfg,
		sleep:       time.Sleep,
	}
}

// Apply upserts one change record into the replica. Ordering within an
// entity's stream is enforced solely through the version field, so
// replayed and out-of-order deliveries resolve to no-ops.
func (s *ReplicationService) Apply(ctx context.Context, rec domain.CDCRecord) (domain.ApplyOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutcomeSkippedStale, fmt.Errorf("context error: %w", err)
	}

	if err := validateRecord(rec); err != nil {
		InvalidRecordsTotal.Inc()
		return domain.OutcomeSkippedStale, err
	}

	var lastErr error
	backoff := s.cfg.RetryBackoff

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		applied, err := s.replica.ApplyIfNewer(ctx, rec)
		if err == nil {
			outcome := domain.OutcomeApplied
			if !applied {
				outcome = domain.OutcomeSkippedStale
			}
			RecordsAppliedTotal.WithLabelValues(rec.EntityType, outcome.String()).Inc()
			return outcome, nil
		}

		lastErr = err
		logger.Warn("replica apply failed",
			"entity_type", rec.EntityType,
			"entity_id", rec.EntityID,
			"version", rec.Version,
			"attempt", attempt,
			"error", err,
		)

		if attempt < s.cfg.MaxAttempts {
			s.sleep(backoff)
			backoff *= 2
		}
	}

	// retries exhausted: park the record for manual reconciliation
	dl := domain.CDCDeadLetter{
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Version:    rec.Version,
		Payload:    rec.Fields,
		LastError:  lastErr.Error(),
	}
	if err := s.deadLetters.Save(ctx, dl); err != nil {
		return domain.OutcomeSkippedStale, fmt.Errorf("save dead letter for %s/%s: %w", rec.EntityType, rec.EntityID, err)
	}

	DeadLettersTotal.WithLabelValues(rec.EntityType).Inc()

	return domain.OutcomeSkippedStale, fmt.Errorf(
		"%w: %s/%s version %d after %d attempts: %v",
		domain.ErrReplicaConflict, rec.EntityType, rec.EntityID, rec.Version, s.cfg.MaxAttempts, lastErr,
	)
}

func validateRecord(rec domain.CDCRecord) error {
	if !domain.ValidEntityType(rec.EntityType) {
		return fmt.Errorf("%w: unknown entity_type %q", domain.ErrInvalidPayload, rec.EntityType)
	}
	if rec.EntityID == "" {
		return fmt.Errorf("%w: missing entity_id", domain.ErrInvalidPayload)
	}
	if rec.Version <= 0 {
		return fmt.Errorf("%w: non-positive version %d", domain.ErrInvalidPayload, rec.Version)
	}

	switch rec.EntityType {
	case domain.EntityPost:
		if FieldString(rec.Fields, "author_id") == "" && !rec.Deleted {
			return fmt.Errorf("%w: post record missing author_id", domain.ErrInvalidPayload)
		}
	case domain.EntityFollow:
		if FieldString(rec.Fields, "follower_id") == "" || FieldString(rec.Fields, "followee_id") == "" {
			return fmt.Errorf("%w: follow record missing follower_id/followee_id", domain.ErrInvalidPayload)
		}
	case domain.EntityLike:
		if FieldString(rec.Fields, "post_id") == "" || FieldString(rec.Fields, "user_id") == "" {
			return fmt.Errorf("%w: like record missing post_id/user_id", domain.ErrInvalidPayload)
		}
	case domain.EntityComment:
		if FieldString(rec.Fields, "post_id") == "" && !rec.Deleted {
			return fmt.Errorf("%w: comment record missing post_id", domain.ErrInvalidPayload)
		}
	}

	return nil
}

// FieldString reads a string field from a CDC payload, tolerating
// absent keys and non-string values.
func FieldString(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// FieldTime parses an RFC3339 timestamp field, returning the zero time
// when absent or unparseable.
func FieldTime(fields map[string]any, key string) time.Time {
	raw := FieldString(fields, key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
