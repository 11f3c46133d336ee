package feed

import (
	"math"
	"sort"
	"time"

	"novafeed/domain"
)

const (
	prioritySocial   = 100.0
	priorityTrending = 80.0
	priorityAffinity = 60.0
)

// freshnessScore decays exponentially with post age.
func (s *FeedService) freshnessScore(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || createdAt.After(now) {
		return s.cfg.FreshnessBase
	}
	ageHours := now.Sub(createdAt).Hours()
	return s.cfg.FreshnessBase * math.Exp(-ageHours/s.cfg.FreshnessHalfLifeHours)
}

// engagementScore normalizes the rollup counters into [0, 100]:
// weighted interactions per exposure, clamped at the saturation rate.
func (s *FeedService) engagementScore(t domain.EngagementTotals) float64 {
	weighted := float64(t.Views) + 4*float64(t.Likes) + 6*float64(t.Comments) + 8*float64(t.Shares)
	exposures := float64(t.Exposures)
	if exposures < 1 {
		exposures = 1
	}
	rate := weighted / exposures
	norm := rate / s.cfg.EngagementSaturation
	if norm > 1 {
		norm = 1
	}
	return 100 * norm
}

func (s *FeedService) score(c *domain.RankedCandidate, totals domain.EngagementTotals, now time.Time) {
	c.FreshnessScore = s.freshnessScore(c.CreatedAt, now)
	c.EngagementScore = s.engagementScore(totals)
	c.CombinedScore = s.cfg.WPriority*c.SourcePriority +
		s.cfg.WFreshness*c.FreshnessScore +
		s.cfg.WEngagement*c.EngagementScore
}

// dedupCandidates keeps one instance per post_id: the one with the
// highest combined score, provenance included. Ties go to the higher
// source priority so the outcome is order-independent.
func dedupCandidates(candidates []domain.RankedCandidate) []domain.RankedCandidate {
	best := make(map[string]domain.RankedCandidate, len(candidates))
	for _, c := range candidates {
		prev, ok := best[c.PostID]
		if !ok {
			best[c.PostID] = c
			continue
		}
		if c.CombinedScore > prev.CombinedScore ||
			(c.CombinedScore == prev.CombinedScore && c.SourcePriority > prev.SourcePriority) {
			best[c.PostID] = c
		}
	}

	out := make([]domain.RankedCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	return out
}

// sortCandidates orders by combined score descending, then recency,
// then post_id ascending for reproducible pagination.
func sortCandidates(candidates []domain.RankedCandidate) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.CombinedScore != b.CombinedScore {
			return a.CombinedScore > b.CombinedScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.PostID < b.PostID
	})
}
