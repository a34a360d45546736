package validation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/metrics"
	"SourceGuard/internal/ports"
)

const (
	defaultMaxProbeWorkers        = 10
	defaultSearchWorkers          = 3
	defaultMaxReplacementAttempts = 3
	defaultMaxCandidates          = 20
	defaultCacheTTL               = 10 * time.Minute
)

// Options carries the per-run validation settings.
type Options struct {
	CompanyDomain          string
	CompetitorDomains      []string
	MinValidSources        int
	MaxReplacementAttempts int
	ProbeTimeout           time.Duration
	MinProbeWorkers        int
	MaxProbeWorkers        int
	// SearchWorkers bounds concurrent replacement searches; never more than 3.
	SearchWorkers int
	// MaxCandidates caps how many generator candidates are probed; extras are ignored.
	MaxCandidates int
	// Topic seeds replacement queries (usually the primary keyword).
	Topic    string
	Language string
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxReplacementAttempts: defaultMaxReplacementAttempts,
		ProbeTimeout:           8 * time.Second,
		MinProbeWorkers:        1,
		MaxProbeWorkers:        defaultMaxProbeWorkers,
		SearchWorkers:          defaultSearchWorkers,
		MaxCandidates:          defaultMaxCandidates,
		Language:               "en",
	}
}

func (o Options) check(candidates int) error {
	switch {
	case o.MinValidSources < 0:
		return fmt.Errorf("%w: minValidSources must be >= 0", domain.ErrInvalidInput)
	case o.MaxReplacementAttempts < 0:
		return fmt.Errorf("%w: maxReplacementAttempts must be >= 0", domain.ErrInvalidInput)
	case o.ProbeTimeout <= 0:
		return fmt.Errorf("%w: probe timeout must be > 0", domain.ErrInvalidInput)
	case o.MinProbeWorkers < 0 || o.MaxProbeWorkers < 0 || (o.MaxProbeWorkers > 0 && o.MinProbeWorkers > o.MaxProbeWorkers):
		return fmt.Errorf("%w: probe pool width bounds are inconsistent", domain.ErrInvalidInput)
	case candidates == 0 && o.MinValidSources > 0:
		return fmt.Errorf("%w: no candidate sources but %d valid sources required", domain.ErrInvalidInput, o.MinValidSources)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.MinProbeWorkers == 0 {
		o.MinProbeWorkers = 1
	}
	if o.MaxProbeWorkers == 0 {
		o.MaxProbeWorkers = defaultMaxProbeWorkers
	}
	if o.SearchWorkers <= 0 || o.SearchWorkers > defaultSearchWorkers {
		o.SearchWorkers = defaultSearchWorkers
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = defaultMaxCandidates
	}
	return o
}

// probeWidth sizes the probe pool for n candidates within the configured bounds.
func (o Options) probeWidth(n int) int {
	width := n
	if width < o.MinProbeWorkers {
		width = o.MinProbeWorkers
	}
	if width > o.MaxProbeWorkers {
		width = o.MaxProbeWorkers
	}
	return width
}

// Deps wires the validator's collaborators. Only Prober is required.
type Deps struct {
	Prober ports.Prober
	Search ports.SearchAgent
	// CacheSize enables a cross-run LRU of prober verdicts when > 0. Only
	// terminal 2xx/4xx answers are cached, each for CacheTTL (default 10m).
	CacheSize int
	CacheTTL  time.Duration
	// Now is the clock used for cache expiry; defaults to time.Now.
	Now func() time.Time
	// SearchRate limits replacement searches per second when > 0.
	SearchRate float64
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Validator checks candidate sources and drives replacement search.
type Validator struct {
	prober  ports.Prober
	search  ports.SearchAgent
	cache    *lru.Cache[string, cachedVerdict]
	cacheTTL time.Duration
	now      func() time.Time
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds a validator. The HTTP client behind the prober is shared by all runs.
func New(deps Deps) *Validator {
	v := &Validator{
		prober:   deps.Prober,
		search:   deps.Search,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cacheTTL: deps.CacheTTL,
		now:      deps.Now,
	}
	if v.cacheTTL <= 0 {
		v.cacheTTL = defaultCacheTTL
	}
	if v.now == nil {
		v.now = time.Now
	}
	if deps.CacheSize > 0 {
		cache, err := lru.New[string, cachedVerdict](deps.CacheSize)
		if err == nil {
			v.cache = cache
		}
	}
	if deps.SearchRate > 0 {
		v.limiter = rate.NewLimiter(rate.Limit(deps.SearchRate), 1)
	}
	return v
}

// Outcome is the result of one validation phase.
type Outcome struct {
	Sources  []domain.ValidatedSource
	Verdicts []domain.SourceVerdict
	// Probes counts network probes actually issued during this run.
	Probes              int
	ReplacementAttempts int
	ReplacementsFound   int
	Shortfall           int
}

// Validate probes candidates, deduplicates the valid ones and, when short of
// MinValidSources, runs one bounded round of replacement search.
// Only caller misuse produces an error (wrapping domain.ErrInvalidInput).
func (v *Validator) Validate(ctx context.Context, candidates []domain.CandidateSource, opts Options) (Outcome, error) {
	if v.prober == nil {
		return Outcome{}, fmt.Errorf("%w: prober is not configured", domain.ErrInvalidInput)
	}
	if err := opts.check(len(candidates)); err != nil {
		return Outcome{}, err
	}
	opts = opts.withDefaults()

	if len(candidates) > opts.MaxCandidates {
		v.warn("candidate list truncated", "received", len(candidates), "kept", opts.MaxCandidates)
		candidates = candidates[:opts.MaxCandidates]
	}

	r := newRun(v, opts)
	defer r.close()

	verdicts := r.probeAll(ctx, candidates, domain.OriginModel)
	sources := r.accept(verdicts)
	v.debug("first round done", "candidates", len(candidates), "valid", len(sources))

	out := Outcome{Verdicts: verdicts}

	shortfall := opts.MinValidSources - len(sources)
	if shortfall > 0 && opts.MaxReplacementAttempts > 0 && v.search != nil {
		slots := shortfall
		if slots > opts.MaxReplacementAttempts {
			slots = opts.MaxReplacementAttempts
		}
		found := r.searchAll(ctx, r.replacementTopics(verdicts, slots))
		out.ReplacementAttempts = slots
		out.ReplacementsFound = len(found)

		replacementVerdicts := r.probeAll(ctx, found, domain.OriginReplacement)
		sources = append(sources, r.accept(replacementVerdicts)...)
		out.Verdicts = append(out.Verdicts, replacementVerdicts...)
		v.debug("replacement round done", "slots", slots, "found", len(found), "valid", len(sources))
	}

	out.Sources = sources
	out.Probes = r.probeCount()
	if missing := opts.MinValidSources - len(sources); missing > 0 {
		out.Shortfall = missing
		v.warn("valid sources below minimum", "valid", len(sources), "min", opts.MinValidSources)
	}
	return out, nil
}

func (r *run) replacementTopics(verdicts []domain.SourceVerdict, slots int) []string {
	topics := make([]string, 0, slots)
	for _, verdict := range verdicts {
		if len(topics) == slots {
			break
		}
		if verdict.Valid() {
			continue
		}
		topics = append(topics, strings.TrimSpace(r.opts.Topic+" "+verdict.Source.Title))
	}
	for len(topics) < slots {
		topics = append(topics, strings.TrimSpace(r.opts.Topic))
	}
	return topics
}

func (v *Validator) debug(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Debug(msg, args...)
	}
}

func (v *Validator) warn(msg string, args ...any) {
	if v.logger != nil {
		v.logger.Warn(msg, args...)
	}
}

type cachedVerdict struct {
	verdict domain.SourceVerdict
	expires time.Time
}

func (v *Validator) cached(key string) (domain.SourceVerdict, bool) {
	if v.cache == nil {
		return domain.SourceVerdict{}, false
	}
	entry, ok := v.cache.Get(key)
	if !ok {
		return domain.SourceVerdict{}, false
	}
	if !v.now().Before(entry.expires) {
		v.cache.Remove(key)
		return domain.SourceVerdict{}, false
	}
	return entry.verdict, true
}

// remember caches terminal answers only: a 2xx (including soft 404s) or a 4xx.
// Timeouts, network failures and 5xx are retried on the next run.
func (v *Validator) remember(key string, verdict domain.SourceVerdict) {
	if v.cache == nil || verdict.HTTPStatus < 200 || verdict.HTTPStatus >= 500 {
		return
	}
	v.cache.Add(key, cachedVerdict{verdict: verdict, expires: v.now().Add(v.cacheTTL)})
}
