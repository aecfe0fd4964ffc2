package admission

import (
	"context"
	"log/slog"
	"time"

	"support-agent/internal/domain"
)

const (
	defaultRateLimit   = 5
	defaultRateWindow  = time.Minute
	defaultRateMaxAge  = 2 * time.Minute
	defaultDedupWindow = 60 * time.Second
	defaultDedupIDTTL  = time.Hour
	defaultSweepEvery  = 5 * time.Minute
)

// Config holds the admission limits. Zero values fall back to defaults.
type Config struct {
	RateLimit     int
	RateWindow    time.Duration
	RateMaxAge    time.Duration
	DedupWindow   time.Duration
	DedupIDTTL    time.Duration
	SweepInterval time.Duration
	SelfAuthorID  string
	Marker        string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Guard owns all admission state: bot rules, rate buckets and dedup records.
// It is safe for concurrent use.
type Guard struct {
	rules      []BotRule
	rate       *RateLimiter
	dedup      *Deduplicator
	rateMaxAge time.Duration
	sweepEvery time.Duration
	now        func() time.Time
	log        *slog.Logger
}

// NewGuard creates a Guard.
func NewGuard(cfg Config) *Guard {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = defaultRateWindow
	}
	if cfg.RateMaxAge <= 0 {
		cfg.RateMaxAge = defaultRateMaxAge
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = defaultDedupWindow
	}
	if cfg.DedupIDTTL <= 0 {
		cfg.DedupIDTTL = defaultDedupIDTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepEvery
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Guard{
		rules:      DefaultBotRules(cfg.SelfAuthorID, cfg.Marker),
		rate:       NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		dedup:      NewDeduplicator(cfg.DedupWindow, cfg.DedupIDTTL),
		rateMaxAge: cfg.RateMaxAge,
		sweepEvery: cfg.SweepInterval,
		now:        cfg.Now,
		log:        slog.Default().With("component", "admission"),
	}
}

// MatchBot returns the name of the first bot rule matching e.
func (g *Guard) MatchBot(e domain.InboundEvent) (string, bool) {
	for _, r := range g.rules {
		if r.Match(e) {
			return r.Name, true
		}
	}
	return "", false
}

// IsBotMessage reports whether e was authored by automation.
func (g *Guard) IsBotMessage(e domain.InboundEvent) bool {
	_, ok := g.MatchBot(e)
	return ok
}

// IsRateLimited counts the event against userID's current window and reports
// whether it exceeds the ceiling. Events sharing retryKey are counted once.
func (g *Guard) IsRateLimited(userID, retryKey string) bool {
	return !g.rate.Allow(userID, retryKey, g.now())
}

// IsDuplicate marks the message as seen and reports whether it was seen before.
func (g *Guard) IsDuplicate(conversationID, text, messageID string) bool {
	return g.dedup.Seen(conversationID, text, messageID, g.now())
}

// Sweep purges expired rate buckets and dedup records.
func (g *Guard) Sweep(now time.Time) (buckets, records int) {
	return g.rate.Sweep(now, g.rateMaxAge), g.dedup.Sweep(now)
}

// Run sweeps on a fixed interval until ctx is done.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			buckets, records := g.Sweep(g.now())
			g.log.Debug("admission sweep", "rate_buckets_purged", buckets, "dedup_records_purged", records,
				"rate_buckets_live", g.rate.Len(), "dedup_records_live", g.dedup.Len())
		}
	}
}
