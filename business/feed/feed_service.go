package feed

import (
	"context"
	"fmt"
	"time"

	"novafeed/domain"
	"novafeed/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ---- Repository interfaces ----

// SourcePost is one raw candidate row before scoring.
type SourcePost struct {
	PostID    string
	AuthorID  string
	CreatedAt time.Time
}

// TrendingPost carries its rollup totals along so trending candidates
// need no second engagement read.
type TrendingPost struct {
	SourcePost
	Totals domain.EngagementTotals
}

type SocialSourceRepository interface {
	RecentPostsByFollowed(ctx context.Context, userID string, since time.Time, limit int) ([]SourcePost, error)
}

type TrendingSourceRepository interface {
	TopEngagedPosts(ctx context.Context, since time.Time, limit int) ([]TrendingPost, error)
}

type AffinitySourceRepository interface {
	TopAuthors(ctx context.Context, userID string, limit int) ([]string, error)
	RecentPostsByAuthors(ctx context.Context, authorIDs []string, since time.Time, limit int) ([]SourcePost, error)
}

type EngagementRepository interface {
	EngagementTotals(ctx context.Context, postIDs []string, since time.Time) (map[string]domain.EngagementTotals, error)
}

// CandidateCache holds one user's fully ranked candidate list for a
// short TTL. InvalidatePost drops every cached list containing the
// post, forcing a re-rank before the next scheduled refresh.
type CandidateCache interface {
	Get(ctx context.Context, userID string) (*CachedFeed, bool)
	Set(ctx context.Context, userID string, cached CachedFeed, ttl time.Duration) error
	InvalidatePost(ctx context.Context, postID string) error
}

type CachedFeed struct {
	Candidates []domain.RankedCandidate `json:"candidates"`
	Partial    bool                     `json:"partial"`
}

// ---- Usecase / Service ----

type FeedService struct {
	social     SocialSourceRepository
	trending   TrendingSourceRepository
	affinity   AffinitySourceRepository
	engagement EngagementRepository
	cache      CandidateCache
	cfg        Config

	now func() time.Time
}

func NewFeedService(
	social SocialSourceRepository,
	trending TrendingSourceRepository,
	affinity AffinitySourceRepository,
	engagement EngagementRepository,
	cache CandidateCache,
	cfg Config,
) *FeedService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = defaultMaxLimit
	}
	if cfg.SourceCap <= 0 {
		cfg.SourceCap = defaultSourceCap
	}
	if cfg.SocialWindow <= 0 {
		cfg.SocialWindow = defaultSocialWindow
	}
	if cfg.TrendingWindow <= 0 {
		cfg.TrendingWindow = defaultTrendingWindow
	}
	if cfg.AffinityWindow <= 0 {
		cfg.AffinityWindow = defaultAffinityWindow
	}
	if cfg.TopAffinityAuthors <= 0 {
		cfg.TopAffinityAuthors = defaultTopAuthors
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	// weights back-fill as a set so a deliberate single zero survives
	if cfg.WPriority == 0 && cfg.WFreshness == 0 && cfg.WEngagement == 0 {
		cfg.WPriority = defaultWPriority
		cfg.WFreshness = defaultWFreshness
		cfg.WEngagement = defaultWEngagement
	}
	if cfg.FreshnessBase <= 0 {
		cfg.FreshnessBase = defaultBase
	}
	if cfg.FreshnessHalfLifeHours <= 0 {
		cfg.FreshnessHalfLifeHours = defaultHalfLife
	}
	if cfg.EngagementSaturation <= 0 {
		cfg.EngagementSaturation = defaultSaturation
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &FeedService{
		social:     social,
		trending:   trending,
		affinity:   affinity,
		engagement: engagement,
		cache:      cache,
		cfg:        cfg,
		now:        time.Now,
	}
}

// RankFeed merges the three candidate sources, scores, dedups and
// returns one page of the user's feed. Given a fixed snapshot of the
// replica and rollups the output is deterministic.
func (s *FeedService) RankFeed(ctx context.Context, userID string, limit int, cursor string) (domain.FeedPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedPage{}, fmt.Errorf("context error: %w", err)
	}
	if userID == "" {
		return domain.FeedPage{}, fmt.Errorf("%w: missing user_id", domain.ErrInvalidRequest)
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	offset, err := decodeCursor(cursor)
	if err != nil {
		return domain.FeedPage{}, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, userID); ok {
			CacheHitsTotal.Inc()
			return s.page(cached.Candidates, cached.Partial, offset, limit), nil
		}
		CacheMissesTotal.Inc()
	}

	candidates, partial, err := s.collectCandidates(ctx, userID)
	if err != nil {
		return domain.FeedPage{}, err
	}

	ranked := dedupCandidates(candidates)
	sortCandidates(ranked)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, CachedFeed{Candidates: ranked, Partial: partial}, s.cfg.CacheTTL); err != nil {
			logger.Warn("feed cache set failed", "user_id", userID, "error", err)
		}
	}

	return s.page(ranked, partial, offset, limit), nil
}

// InvalidatePost is the cache invalidation hook exposed to external
// collaborators (post deletions and similar).
func (s *FeedService) InvalidatePost(ctx context.Context, postID string) error {
	if postID == "" {
		return fmt.Errorf("%w: missing post_id", domain.ErrInvalidRequest)
	}
	if s.cache == nil {
		return nil
	}
	if err := s.cache.InvalidatePost(ctx, postID); err != nil {
		return fmt.Errorf("invalidate post %s: %w", postID, err)
	}
	InvalidationsTotal.Inc()
	return nil
}

// collectCandidates fans out to the three sources with bounded
// concurrency and per-source timeouts, then scores every instance.
// One failed source degrades the page; three failed sources fail it.
func (s *FeedService) collectCandidates(ctx context.Context, userID string) ([]domain.RankedCandidate, bool, error) {
	now := s.now().UTC()

	var (
		socialPosts   []SourcePost
		trendingPosts []TrendingPost
		affinityPosts []SourcePost

		socialErr   error
		trendingErr error
		affinityErr error
	)

	// source failures are recorded, never propagated through the
	// group: one bad source must not cancel the other two
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, s.cfg.SourceTimeout)
		defer cancel()
		socialPosts, socialErr = s.social.RecentPostsByFollowed(sctx, userID, now.Add(-s.cfg.SocialWindow), s.cfg.SourceCap)
		return nil
	})

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, s.cfg.SourceTimeout)
		defer cancel()
		trendingPosts, trendingErr = s.trending.TopEngagedPosts(sctx, now.Add(-s.cfg.TrendingWindow), s.cfg.SourceCap)
		return nil
	})

	g.Go(func() error {
		sctx, cancel := context.WithTimeout(gctx, s.cfg.SourceTimeout)
		defer cancel()
		affinityPosts, affinityErr = s.affinityPostsFor(sctx, userID, now)
		return nil
	})

	_ = g.Wait()

	failures := 0
	for source, err := range map[string]error{
		domain.SourceSocial:   socialErr,
		domain.SourceTrending: trendingErr,
		domain.SourceAffinity: affinityErr,
	} {
		if err != nil {
			failures++
			SourceFailuresTotal.WithLabelValues(source).Inc()
			logger.Warn("candidate source failed",
				"source", source,
				"user_id", userID,
				"error", err,
			)
		}
	}

	if failures == 3 {
		return nil, false, fmt.Errorf("%w: user %s", domain.ErrAllSourcesUnavailable, userID)
	}

	// one batched rollup read covers the social and affinity
	// candidates; trending rows carry their totals already
	totals := s.lookupTotals(ctx, socialPosts, affinityPosts, now)

	candidates := make([]domain.RankedCandidate, 0, len(socialPosts)+len(trendingPosts)+len(affinityPosts))

	for _, p := range socialPosts {
		c := domain.RankedCandidate{
			PostID:         p.PostID,
			AuthorID:       p.AuthorID,
			Source:         domain.SourceSocial,
			SourcePriority: prioritySocial,
			CreatedAt:      p.CreatedAt,
		}
		s.score(&c, totals[p.PostID], now)
		candidates = append(candidates, c)
	}

	for _, p := range trendingPosts {
		c := domain.RankedCandidate{
			PostID:         p.PostID,
			AuthorID:       p.AuthorID,
			Source:         domain.SourceTrending,
			SourcePriority: priorityTrending,
			CreatedAt:      p.CreatedAt,
		}
		s.score(&c, p.Totals, now)
		candidates = append(candidates, c)
	}

	for _, p := range affinityPosts {
		c := domain.RankedCandidate{
			PostID:         p.PostID,
			AuthorID:       p.AuthorID,
			Source:         domain.SourceAffinity,
			SourcePriority: priorityAffinity,
			CreatedAt:      p.CreatedAt,
		}
		s.score(&c, totals[p.PostID], now)
		candidates = append(candidates, c)
	}

	return candidates, failures > 0, nil
}

func (s *FeedService) affinityPostsFor(ctx context.Context, userID string, now time.Time) ([]SourcePost, error) {
	authors, err := s.affinity.TopAuthors(ctx, userID, s.cfg.TopAffinityAuthors)
	if err != nil {
		return nil, fmt.Errorf("top authors: %w", err)
	}
	if len(authors) == 0 {
		return nil, nil
	}
	posts, err := s.affinity.RecentPostsByAuthors(ctx, authors, now.Add(-s.cfg.AffinityWindow), s.cfg.SourceCap)
	if err != nil {
		return nil, fmt.Errorf("posts by authors: %w", err)
	}
	return posts, nil
}

// lookupTotals fetches rollup totals for everything the trending query
// didn't already cover. A failure here degrades engagement scores to
// zero instead of failing the request.
func (s *FeedService) lookupTotals(ctx context.Context, social, affinity []SourcePost, now time.Time) map[string]domain.EngagementTotals {
	seen := make(map[string]struct{}, len(social)+len(affinity))
	ids := make([]string, 0, len(social)+len(affinity))
	for _, p := range social {
		if _, ok := seen[p.PostID]; !ok {
			seen[p.PostID] = struct{}{}
			ids = append(ids, p.PostID)
		}
	}
	for _, p := range affinity {
		if _, ok := seen[p.PostID]; !ok {
			seen[p.PostID] = struct{}{}
			ids = append(ids, p.PostID)
		}
	}
	if len(ids) == 0 || s.engagement == nil {
		return map[string]domain.EngagementTotals{}
	}

	totals, err := s.engagement.EngagementTotals(ctx, ids, now.Add(-s.cfg.TrendingWindow))
	if err != nil {
		logger.Warn("engagement totals lookup failed, scoring without engagement", "error", err)
		return map[string]domain.EngagementTotals{}
	}
	return totals
}

func (s *FeedService) page(ranked []domain.RankedCandidate, partial bool, offset, limit int) domain.FeedPage {
	page := domain.FeedPage{
		Items:   []domain.RankedCandidate{},
		Partial: partial,
	}
	if offset >= len(ranked) {
		return page
	}

	end := offset + limit
	if end > len(ranked) {
		end = len(ranked)
	}
	page.Items = ranked[offset:end]
	if end < len(ranked) {
		page.NextCursor = encodeCursor(end)
	}
	return page
}
