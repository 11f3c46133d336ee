package replicate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"novafeed/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// memReplica keeps the highest version seen per entity, mirroring the
// version-guarded upsert the postgres repository performs.
type memReplica struct {
	versions map[string]int64
	failFor  map[string]error
	calls    int
}

func newMemReplica() *memReplica {
	return &memReplica{versions: map[string]int64{}}
}

func (m *memReplica) ApplyIfNewer(_ context.Context, rec domain.CDCRecord) (bool, error) {
	m.calls++
	key := rec.EntityType + "/" + rec.EntityID
	if err, ok := m.failFor[key]; ok {
		return false, err
	}
	if rec.Version <= m.versions[key] {
		return false, nil
	}
	m.versions[key] = rec.Version
	return true, nil
}

type memDeadLetters struct {
	saved []domain.CDCDeadLetter
	err   error
}

func (m *memDeadLetters) Save(_ context.Context, record domain.CDCDeadLetter) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, record)
	return nil
}

func newTestService(replica ReplicaRepository, dl DeadLetterRepository) *ReplicationService {
	svc := NewReplicationService(replica, dl, DefaultConfig())
	svc.sleep = func(time.Duration) {}
	return svc
}

func postRecord(id string, version int64) domain.CDCRecord {
	return domain.CDCRecord{
		EntityType: domain.EntityPost,
		EntityID:   id,
		Version:    version,
		Fields: datatypes.JSONMap{
			"author_id":  "a1",
			"created_at": "2026-03-14T09:00:00Z",
		},
	}
}

func TestApply_NewerVersionApplied(t *testing.T) {
	replica := newMemReplica()
	svc := newTestService(replica, &memDeadLetters{})

	outcome, err := svc.Apply(context.Background(), postRecord("p1", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)

	outcome, err = svc.Apply(context.Background(), postRecord("p1", 3))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeApplied, outcome)
	assert.Equal(t, int64(3), replica.versions["post/p1"])
}

func TestApply_StaleVersionIsNoOp(t *testing.T) {
	replica := newMemReplica()
	svc := newTestService(replica, &memDeadLetters{})

	_, err := svc.Apply(context.Background(), postRecord("p1", 5))
	require.NoError(t, err)

	outcome, err := svc.Apply(context.Background(), postRecord("p1", 2))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkippedStale, outcome)
	assert.Equal(t, int64(5), replica.versions["post/p1"])

	// equal version replays are stale too
	outcome, err = svc.Apply(context.Background(), postRecord("p1", 5))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSkippedStale, outcome)
}

// Any interleaving of the same record set converges on the highest
// version per entity.
func TestApply_OrderIndependentConvergence(t *testing.T) {
	records := []domain.CDCRecord{
		postRecord("p1", 1),
		postRecord("p1", 2),
		postRecord("p1", 3),
		postRecord("p2", 7),
		postRecord("p2", 4),
	}

	for _, order := range permutations(len(records)) {
		replica := newMemReplica()
		svc := newTestService(replica, &memDeadLetters{})

		for _, i := range order {
			_, err := svc.Apply(context.Background(), records[i])
			require.NoError(t, err)
		}

		assert.Equal(t, int64(3), replica.versions["post/p1"], "order %v", order)
		assert.Equal(t, int64(7), replica.versions["post/p2"], "order %v", order)
	}
}

func TestApply_InvalidRecordsRejected(t *testing.T) {
	cases := []struct {
		name string
		rec  domain.CDCRecord
	}{
		{"unknown entity", domain.CDCRecord{EntityType: "reaction", EntityID: "x", Version: 1}},
		{"missing id", domain.CDCRecord{EntityType: domain.EntityPost, Version: 1}},
		{"zero version", postRecordWithVersion("p1", 0)},
		{"post without author", domain.CDCRecord{EntityType: domain.EntityPost, EntityID: "p1", Version: 1}},
		{"follow without followee", domain.CDCRecord{
			EntityType: domain.EntityFollow,
			EntityID:   "f1",
			Version:    1,
			Fields:     datatypes.JSONMap{"follower_id": "u1"},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			replica := newMemReplica()
			svc := newTestService(replica, &memDeadLetters{})

			_, err := svc.Apply(context.Background(), tc.rec)
			require.ErrorIs(t, err, domain.ErrInvalidPayload)
			assert.Zero(t, replica.calls)
		})
	}
}

func TestApply_DeadLettersAfterRetriesExhausted(t *testing.T) {
	replica := newMemReplica()
	replica.failFor = map[string]error{"post/p1": errors.New("deadlock detected")}
	dl := &memDeadLetters{}
	svc := newTestService(replica, dl)

	_, err := svc.Apply(context.Background(), postRecord("p1", 2))
	require.ErrorIs(t, err, domain.ErrReplicaConflict)

	assert.Equal(t, defaultMaxAttempts, replica.calls)
	require.Len(t, dl.saved, 1)
	assert.Equal(t, domain.EntityPost, dl.saved[0].EntityType)
	assert.Equal(t, "p1", dl.saved[0].EntityID)
	assert.Equal(t, int64(2), dl.saved[0].Version)
	assert.Contains(t, dl.saved[0].LastError, "deadlock")
}

func TestApply_DeadLetterSaveFailureSurfaces(t *testing.T) {
	replica := newMemReplica()
	replica.failFor = map[string]error{"post/p1": errors.New("down")}
	dl := &memDeadLetters{err: errors.New("dead letter table gone")}
	svc := newTestService(replica, dl)

	_, err := svc.Apply(context.Background(), postRecord("p1", 2))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrReplicaConflict)
}

func TestFieldHelpers(t *testing.T) {
	fields := map[string]any{
		"author_id":  "a1",
		"created_at": "2026-03-14T09:00:00Z",
		"count":      float64(3),
	}

	assert.Equal(t, "a1", FieldString(fields, "author_id"))
	assert.Equal(t, "", FieldString(fields, "missing"))
	assert.Equal(t, "", FieldString(fields, "count"))
	assert.Equal(t, "", FieldString(nil, "author_id"))

	assert.False(t, FieldTime(fields, "created_at").IsZero())
	assert.True(t, FieldTime(fields, "missing").IsZero())
	assert.True(t, FieldTime(map[string]any{"created_at": "yesterday"}, "created_at").IsZero())
}

func postRecordWithVersion(id string, version int64) domain.CDCRecord {
	rec := postRecord(id, 1)
	rec.Version = version
	return rec
}

// permutations returns every ordering of indices 0..n-1.
func permutations(n int) [][]int {
	base := make([]int, n)
	for i := range base {
		base[i] = i
	}
	var out [][]int
	var walk func(rest, prefix []int)
	walk = func(rest, prefix []int) {
		if len(rest) == 0 {
			out = append(out, append([]int(nil), prefix...))
			return
		}
		for i := range rest {
			next := make([]int, 0, len(rest)-1)
			next = append(next, rest[:i]...)
			next = append(next, rest[i+1:]...)
			walk(next, append(append([]int(nil), prefix...), rest[i]))
		}
	}
	walk(base, nil)
	if len(out) == 0 {
		panic(fmt.Sprintf("no permutations for n=%d", n))
	}
	return out
}
