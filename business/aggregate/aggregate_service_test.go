package aggregate

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"novafeed/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRollups struct {
	metrics    map[PostWindowKey]MetricDelta
	affinities map[UserAuthorKey]AffinityDelta

	failMetricsFor map[string]int // post_id -> remaining failures
	failAffinity   error
}

func newMemRollups() *memRollups {
	return &memRollups{
		metrics:    map[PostWindowKey]MetricDelta{},
		affinities: map[UserAuthorKey]AffinityDelta{},
	}
}

func (m *memRollups) IncrementPostMetrics(_ context.Context, key PostWindowKey, delta MetricDelta) error {
	if remaining, ok := m.failMetricsFor[key.PostID]; ok && remaining > 0 {
		m.failMetricsFor[key.PostID] = remaining - 1
		return errors.New("increment failed")
	}
	cur := m.metrics[key]
	cur.Views += delta.Views
	cur.Likes += delta.Likes
	cur.Comments += delta.Comments
	cur.Shares += delta.Shares
	cur.DwellMsSum += delta.DwellMsSum
	cur.Exposures += delta.Exposures
	m.metrics[key] = cur
	return nil
}

func (m *memRollups) IncrementAffinity(_ context.Context, key UserAuthorKey, delta AffinityDelta) error {
	if m.failAffinity != nil {
		return m.failAffinity
	}
	cur := m.affinities[key]
	cur.Likes += delta.Likes
	cur.Comments += delta.Comments
	cur.Views += delta.Views
	cur.DwellMs += delta.DwellMs
	if delta.LastInteraction.After(cur.LastInteraction) {
		cur.LastInteraction = delta.LastInteraction
	}
	m.affinities[key] = cur
	return nil
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func event(action, user, post, author string, eventTime time.Time, dwell int64) domain.InteractionEvent {
	return domain.InteractionEvent{
		EventID:   user + "/" + post + "/" + action + "/" + eventTime.String(),
		EventTime: eventTime,
		UserID:    user,
		PostID:    post,
		AuthorID:  author,
		Action:    action,
		DwellMs:   dwell,
	}
}

func TestComputeDeltas_ActionMapping(t *testing.T) {
	events := []domain.InteractionEvent{
		event(domain.ActionImpression, "u1", "p1", "a1", at(10, 5), 0),
		event(domain.ActionImpression, "u2", "p1", "a1", at(10, 10), 0),
		event(domain.ActionView, "u1", "p1", "a1", at(10, 15), 4200),
		event(domain.ActionLike, "u1", "p1", "a1", at(10, 20), 0),
		event(domain.ActionComment, "u2", "p1", "a1", at(10, 25), 0),
		event(domain.ActionShare, "u1", "p1", "a1", at(10, 30), 0),
	}

	metrics, affinities := computeDeltas(events, time.Hour)

	key := PostWindowKey{PostID: "p1", WindowStart: at(10, 0)}
	require.Contains(t, metrics, key)
	assert.Equal(t, MetricDelta{
		Views:      1,
		Likes:      1,
		Comments:   1,
		Shares:     1,
		DwellMsSum: 4200,
		Exposures:  2,
	}, *metrics[key])

	u1 := UserAuthorKey{UserID: "u1", AuthorID: "a1"}
	require.Contains(t, affinities, u1)
	assert.Equal(t, int64(1), affinities[u1].Views)
	assert.Equal(t, int64(1), affinities[u1].Likes)
	assert.Equal(t, int64(4200), affinities[u1].DwellMs)
	// the share adds no counters but still advances recency
	assert.Equal(t, at(10, 30), affinities[u1].LastInteraction)
}

func TestComputeDeltas_WindowBucketing(t *testing.T) {
	events := []domain.InteractionEvent{
		event(domain.ActionView, "u1", "p1", "", at(10, 59), 100),
		event(domain.ActionView, "u1", "p1", "", at(11, 0), 100),
	}

	metrics, _ := computeDeltas(events, time.Hour)

	require.Len(t, metrics, 2)
	assert.Contains(t, metrics, PostWindowKey{PostID: "p1", WindowStart: at(10, 0)})
	assert.Contains(t, metrics, PostWindowKey{PostID: "p1", WindowStart: at(11, 0)})
}

func TestComputeDeltas_AffinitySkipsSelfAndAnonymous(t *testing.T) {
	events := []domain.InteractionEvent{
		event(domain.ActionLike, "u1", "p1", "u1", at(10, 0), 0), // own post
		event(domain.ActionLike, "u1", "p2", "", at(10, 5), 0),   // no author
	}

	_, affinities := computeDeltas(events, time.Hour)
	assert.Empty(t, affinities)
}

func TestComputeDeltas_ImpressionOnlyAffinityDropped(t *testing.T) {
	events := []domain.InteractionEvent{
		event(domain.ActionImpression, "u1", "p1", "a1", at(10, 0), 0),
		event(domain.ActionShare, "u1", "p2", "a1", at(10, 5), 0),
	}

	_, affinities := computeDeltas(events, time.Hour)
	assert.Empty(t, affinities)
}

// Folding a batch is order independent: shuffles of the same events
// produce identical delta maps.
func TestComputeDeltas_PermutationInvariant(t *testing.T) {
	events := []domain.InteractionEvent{
		event(domain.ActionImpression, "u1", "p1", "a1", at(9, 10), 0),
		event(domain.ActionView, "u1", "p1", "a1", at(9, 20), 1500),
		event(domain.ActionLike, "u2", "p1", "a1", at(9, 30), 0),
		event(domain.ActionComment, "u1", "p2", "a2", at(10, 5), 0),
		event(domain.ActionShare, "u2", "p2", "a2", at(10, 10), 0),
		event(domain.ActionView, "u2", "p2", "a2", at(10, 40), 900),
	}

	wantMetrics, wantAffinities := computeDeltas(events, time.Hour)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := append([]domain.InteractionEvent(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		gotMetrics, gotAffinities := computeDeltas(shuffled, time.Hour)
		require.True(t, reflect.DeepEqual(wantMetrics, gotMetrics), "trial %d metrics diverged", trial)
		require.True(t, reflect.DeepEqual(wantAffinities, gotAffinities), "trial %d affinities diverged", trial)
	}
}

func TestAggregate_AppliesAllKeys(t *testing.T) {
	rollups := newMemRollups()
	svc := NewAggregationService(rollups, DefaultConfig())

	events := []domain.InteractionEvent{
		event(domain.ActionView, "u1", "p1", "a1", at(10, 5), 2000),
		event(domain.ActionLike, "u1", "p1", "a1", at(10, 10), 0),
		event(domain.ActionView, "u2", "p2", "a2", at(10, 15), 500),
	}

	report := svc.Aggregate(context.Background(), events)

	assert.Equal(t, 3, report.Events)
	assert.Equal(t, 4, report.KeysApplied) // 2 post windows + 2 affinity pairs
	assert.Zero(t, report.KeysFailed)

	key := PostWindowKey{PostID: "p1", WindowStart: at(10, 0)}
	assert.Equal(t, int64(1), rollups.metrics[key].Views)
	assert.Equal(t, int64(1), rollups.metrics[key].Likes)
}

func TestAggregate_FailedKeyDoesNotFailBatch(t *testing.T) {
	rollups := newMemRollups()
	rollups.failMetricsFor = map[string]int{"p1": 2} // initial try + retry
	svc := NewAggregationService(rollups, DefaultConfig())

	events := []domain.InteractionEvent{
		event(domain.ActionView, "u1", "p1", "", at(10, 5), 100),
		event(domain.ActionView, "u1", "p2", "", at(10, 5), 100),
	}

	report := svc.Aggregate(context.Background(), events)

	assert.Equal(t, 1, report.KeysFailed)
	assert.Equal(t, 1, report.KeysApplied)
	assert.Equal(t, int64(1), rollups.metrics[PostWindowKey{PostID: "p2", WindowStart: at(10, 0)}].Views)
}

func TestAggregate_TransientFailureRetriedOnce(t *testing.T) {
	rollups := newMemRollups()
	rollups.failMetricsFor = map[string]int{"p1": 1} // first try fails, retry lands
	svc := NewAggregationService(rollups, DefaultConfig())

	events := []domain.InteractionEvent{
		event(domain.ActionView, "u1", "p1", "", at(10, 5), 100),
	}

	report := svc.Aggregate(context.Background(), events)

	assert.Zero(t, report.KeysFailed)
	assert.Equal(t, int64(1), rollups.metrics[PostWindowKey{PostID: "p1", WindowStart: at(10, 0)}].Views)
}

func TestAggregate_EmptyBatch(t *testing.T) {
	svc := NewAggregationService(newMemRollups(), DefaultConfig())
	report := svc.Aggregate(context.Background(), nil)
	assert.Zero(t, report.Events)
	assert.Zero(t, report.KeysApplied)
}

// Splitting the same event stream into different batch boundaries
// converges on the same stored totals.
func TestAggregate_BatchBoundariesAreIrrelevant(t *testing.T) {
	events := []domain.InteractionEvent{
		event(domain.ActionImpression, "u1", "p1", "a1", at(10, 1), 0),
		event(domain.ActionView, "u1", "p1", "a1", at(10, 2), 1000),
		event(domain.ActionLike, "u2", "p1", "a1", at(10, 3), 0),
		event(domain.ActionComment, "u2", "p1", "a1", at(10, 4), 0),
		event(domain.ActionShare, "u1", "p1", "a1", at(10, 5), 0),
	}

	apply := func(splits ...[]domain.InteractionEvent) *memRollups {
		rollups := newMemRollups()
		svc := NewAggregationService(rollups, DefaultConfig())
		for _, batch := range splits {
			svc.Aggregate(context.Background(), batch)
		}
		return rollups
	}

	whole := apply(events)
	split := apply(events[:2], events[2:4], events[4:])
	single := apply(events[:1], events[1:2], events[2:3], events[3:4], events[4:])

	assert.Equal(t, whole.metrics, split.metrics)
	assert.Equal(t, whole.metrics, single.metrics)
	assert.Equal(t, whole.affinities, split.affinities)
	assert.Equal(t, whole.affinities, single.affinities)
}
