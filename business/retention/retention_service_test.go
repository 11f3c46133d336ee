package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventExpirer struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeEventExpirer) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

type fakeRollupExpirer struct {
	rollupCutoff   time.Time
	affinityCutoff time.Time
	rollups        int64
	affinities     int64
	rollupErr      error
}

func (f *fakeRollupExpirer) DeleteRollupsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.rollupCutoff = cutoff
	return f.rollups, f.rollupErr
}

func (f *fakeRollupExpirer) DeleteAffinitiesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.affinityCutoff = cutoff
	return f.affinities, nil
}

func TestExpire_CutoffsIncludeSafetyMargin(t *testing.T) {
	events := &fakeEventExpirer{deleted: 10}
	rollups := &fakeRollupExpirer{rollups: 3, affinities: 2}
	svc := NewRetentionService(events, rollups, DefaultConfig())

	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	counts, err := svc.Expire(context.Background(), now)
	require.NoError(t, err)

	margin := DefaultConfig().SafetyMargin
	assert.Equal(t, now.Add(-DefaultConfig().EventHorizon).Add(-margin), events.cutoff)
	assert.Equal(t, now.Add(-DefaultConfig().RollupHorizon).Add(-margin), rollups.rollupCutoff)
	assert.Equal(t, now.Add(-DefaultConfig().AffinityHorizon).Add(-margin), rollups.affinityCutoff)

	assert.Equal(t, int64(10), counts.Events)
	assert.Equal(t, int64(3), counts.Rollups)
	assert.Equal(t, int64(2), counts.Affinities)
}

func TestExpire_CustomHorizons(t *testing.T) {
	events := &fakeEventExpirer{}
	rollups := &fakeRollupExpirer{}
	svc := NewRetentionService(events, rollups, Config{
		EventHorizon:    7 * 24 * time.Hour,
		RollupHorizon:   14 * 24 * time.Hour,
		AffinityHorizon: 21 * 24 * time.Hour,
		SafetyMargin:    30 * time.Minute,
		SweepInterval:   time.Hour,
	})

	now := time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)
	_, err := svc.Expire(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, now.Add(-7*24*time.Hour-30*time.Minute), events.cutoff)
	assert.Equal(t, now.Add(-14*24*time.Hour-30*time.Minute), rollups.rollupCutoff)
	assert.Equal(t, now.Add(-21*24*time.Hour-30*time.Minute), rollups.affinityCutoff)
}

func TestExpire_EventDeleteFailureStopsSweep(t *testing.T) {
	events := &fakeEventExpirer{err: errors.New("lock timeout")}
	rollups := &fakeRollupExpirer{}
	svc := NewRetentionService(events, rollups, DefaultConfig())

	_, err := svc.Expire(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, rollups.rollupCutoff.IsZero(), "rollup delete must not run after event delete failed")
}

func TestExpire_PartialCountsOnLaterFailure(t *testing.T) {
	events := &fakeEventExpirer{deleted: 5}
	rollups := &fakeRollupExpirer{rollupErr: errors.New("down")}
	svc := NewRetentionService(events, rollups, DefaultConfig())

	_, err := svc.Expire(context.Background(), time.Now())
	require.Error(t, err)
	assert.False(t, events.cutoff.IsZero())
}

func TestExpire_CancelledContext(t *testing.T) {
	svc := NewRetentionService(&fakeEventExpirer{}, &fakeRollupExpirer{}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Expire(ctx, time.Now())
	require.Error(t, err)
}
