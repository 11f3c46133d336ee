package feed

import "time"

type Config struct {
	// page bounds
	DefaultLimit int
	MaxLimit     int

	// per-source result cap and query windows
	SourceCap      int
	SocialWindow   time.Duration
	TrendingWindow time.Duration
	AffinityWindow time.Duration

	// how many top affinity authors feed the affinity source
	TopAffinityAuthors int

	// per-source fan-out timeout; a slow source is a failed source for
	// that request, not a stall of the others
	SourceTimeout time.Duration

	// scoring weights
	WPriority   float64
	WFreshness  float64
	WEngagement float64

	FreshnessBase          float64
	FreshnessHalfLifeHours float64

	// engagement-per-exposure value that maps to a full engagement score
	EngagementSaturation float64

	CacheTTL time.Duration
}

const (
	defaultLimit          = 20
	defaultMaxLimit       = 100
	defaultSourceCap      = 100
	defaultSocialWindow   = 48 * time.Hour
	defaultTrendingWindow = 24 * time.Hour
	defaultAffinityWindow = 7 * 24 * time.Hour
	defaultTopAuthors     = 20
	defaultSourceTimeout  = 500 * time.Millisecond
	defaultWPriority      = 0.5
	defaultWFreshness     = 0.3
	defaultWEngagement    = 0.2
	defaultBase           = 100.0
	defaultHalfLife       = 6.0
	defaultSaturation     = 10.0
	defaultCacheTTL       = 30 * time.Second
)

func DefaultConfig() Config {
	return Config{
		DefaultLimit: defaultLimit,
		MaxLimit:     defaultMaxLimit,

		SourceCap:      defaultSourceCap,
		SocialWindow:   defaultSocialWindow,
		TrendingWindow: defaultTrendingWindow,
		AffinityWindow: defaultAffinityWindow,

		TopAffinityAuthors: defaultTopAuthors,
		SourceTimeout:      defaultSourceTimeout,

		WPriority:   defaultWPriority,
		WFreshness:  defaultWFreshness,
		WEngagement: defaultWEngagement,

		FreshnessBase:          defaultBase,
		FreshnessHalfLifeHours: defaultHalfLife,
		EngagementSaturation:   defaultSaturation,

		CacheTTL: defaultCacheTTL,
	}
}
