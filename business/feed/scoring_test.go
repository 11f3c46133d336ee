package feed

import (
	"testing"
	"time"

	"novafeed/domain"

	"github.com/stretchr/testify/assert"
)

func testService() *FeedService {
	return NewFeedService(nil, nil, nil, nil, nil, DefaultConfig())
}

func TestFreshnessScore_DecaysWithAge(t *testing.T) {
	s := testService()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	fresh := s.freshnessScore(now, now)
	sixHours := s.freshnessScore(now.Add(-6*time.Hour), now)
	twoDays := s.freshnessScore(now.Add(-48*time.Hour), now)

	assert.InDelta(t, 100.0, fresh, 0.001)
	assert.Greater(t, fresh, sixHours)
	assert.Greater(t, sixHours, twoDays)
	// one half-life of age divides the score by e
	assert.InDelta(t, 100.0/2.718281828, sixHours, 0.01)
}

func TestFreshnessScore_FutureAndZeroTimes(t *testing.T) {
	s := testService()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.InDelta(t, 100.0, s.freshnessScore(now.Add(time.Hour), now), 0.001)
	assert.InDelta(t, 100.0, s.freshnessScore(time.Time{}, now), 0.001)
}

func TestEngagementScore_WeightsAndClamp(t *testing.T) {
	s := testService()

	// (10 + 4*5 + 6*2 + 8*1) / 100 exposures = 0.5 per exposure → 5% of saturation
	mid := s.engagementScore(domain.EngagementTotals{
		Views: 10, Likes: 5, Comments: 2, Shares: 1, Exposures: 100,
	})
	assert.InDelta(t, 5.0, mid, 0.001)

	// heavy engagement clamps at 100
	high := s.engagementScore(domain.EngagementTotals{Likes: 1000, Exposures: 10})
	assert.InDelta(t, 100.0, high, 0.001)
}

func TestEngagementScore_ZeroExposuresDoesNotDivideByZero(t *testing.T) {
	s := testService()

	got := s.engagementScore(domain.EngagementTotals{Likes: 1, Exposures: 0})
	assert.InDelta(t, 100*(4.0/10.0), got, 0.001)
}

func TestDedupCandidates_KeepsHighestScoredInstance(t *testing.T) {
	candidates := []domain.RankedCandidate{
		{PostID: "p1", Source: domain.SourceTrending, SourcePriority: priorityTrending, CombinedScore: 10},
		{PostID: "p1", Source: domain.SourceSocial, SourcePriority: prioritySocial, CombinedScore: 15},
		{PostID: "p2", Source: domain.SourceAffinity, SourcePriority: priorityAffinity, CombinedScore: 7},
	}

	out := dedupCandidates(candidates)

	byID := map[string]domain.RankedCandidate{}
	for _, c := range out {
		byID[c.PostID] = c
	}
	assert.Len(t, out, 2)
	assert.Equal(t, 15.0, byID["p1"].CombinedScore)
	assert.Equal(t, domain.SourceSocial, byID["p1"].Source)
}

func TestDedupCandidates_TieGoesToHigherPriority(t *testing.T) {
	candidates := []domain.RankedCandidate{
		{PostID: "p1", Source: domain.SourceAffinity, SourcePriority: priorityAffinity, CombinedScore: 50},
		{PostID: "p1", Source: domain.SourceSocial, SourcePriority: prioritySocial, CombinedScore: 50},
	}

	// both input orders resolve to the social instance
	for _, in := range [][]domain.RankedCandidate{
		candidates,
		{candidates[1], candidates[0]},
	} {
		out := dedupCandidates(in)
		assert.Len(t, out, 1)
		assert.Equal(t, domain.SourceSocial, out[0].Source)
	}
}

func TestSortCandidates_TieBreaks(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	candidates := []domain.RankedCandidate{
		{PostID: "p3", CombinedScore: 80, CreatedAt: base},
		{PostID: "p1", CombinedScore: 90, CreatedAt: base.Add(-time.Hour)},
		{PostID: "p4", CombinedScore: 80, CreatedAt: base.Add(time.Minute)},
		{PostID: "p2", CombinedScore: 80, CreatedAt: base},
	}

	sortCandidates(candidates)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.PostID
	}
	// score desc, then newer first, then post_id asc
	assert.Equal(t, []string{"p1", "p4", "p2", "p3"}, ids)
}
