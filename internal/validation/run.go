package validation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
	"SourceGuard/internal/infrastructure/httpprobe"
	"SourceGuard/internal/ports"
)

// run holds the state of a single Validate call. It is discarded afterwards.
type run struct {
	v      *Validator
	opts   Options
	filter *domainfilter.Filter

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]domain.SourceVerdict
	seen  map[string]struct{}
	count int
}

func newRun(v *Validator, opts Options) *run {
	return &run{
		v:      v,
		opts:   opts,
		filter: domainfilter.New(opts.CompanyDomain, opts.CompetitorDomains),
		done:   map[string]domain.SourceVerdict{},
		seen:   map[string]struct{}{},
	}
}

func (r *run) close() {
	r.mu.Lock()
	r.done = nil
	r.mu.Unlock()
}

func (r *run) probeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// probeAll resolves every candidate on a pool sized for this batch. Results are
// stored by input index, so ordering never depends on completion order.
func (r *run) probeAll(ctx context.Context, candidates []domain.CandidateSource, origin domain.Origin) []domain.SourceVerdict {
	verdicts := make([]domain.SourceVerdict, len(candidates))
	if len(candidates) == 0 {
		return verdicts
	}

	var g errgroup.Group
	g.SetLimit(r.opts.probeWidth(len(candidates)))
	for i, candidate := range candidates {
		if candidate.Origin == "" {
			candidate.Origin = origin
		}
		g.Go(func() error {
			verdicts[i] = r.resolve(ctx, candidate)
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}

// resolve returns the verdict for a candidate, probing its URL at most once per run.
func (r *run) resolve(ctx context.Context, candidate domain.CandidateSource) domain.SourceVerdict {
	key := strings.TrimSpace(candidate.URL)

	if verdict, ok := r.lookup(key); ok {
		verdict.Source = candidate
		return verdict
	}

	val, _, _ := r.group.Do(key, func() (any, error) {
		if verdict, ok := r.lookup(key); ok {
			return verdict, nil
		}
		verdict := r.check(ctx, candidate)
		r.mu.Lock()
		if r.done != nil {
			r.done[key] = verdict
		}
		r.mu.Unlock()
		return verdict, nil
	})

	verdict := val.(domain.SourceVerdict)
	verdict.Source = candidate
	return verdict
}

func (r *run) lookup(key string) (domain.SourceVerdict, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	verdict, ok := r.done[key]
	return verdict, ok
}

// check applies the domain filter before and after the network probe.
func (r *run) check(ctx context.Context, candidate domain.CandidateSource) domain.SourceVerdict {
	verdict := domain.SourceVerdict{Source: candidate, Status: domain.StatusInvalid}

	if _, ok := domainfilter.HTTPURL(candidate.URL); !ok {
		verdict.Reason = domain.ReasonMalformedURL
		return verdict
	}
	if r.filter.Excluded(candidate.URL) {
		verdict.Reason = domain.ReasonExcludedDomain
		return verdict
	}

	probed := r.probe(ctx, candidate)
	if probed.Valid() && r.filter.Excluded(probed.FinalURL) {
		probed.Status = domain.StatusInvalid
		probed.Reason = domain.ReasonExcludedRedirect
		probed.FinalURL = ""
	}
	return probed
}

func (r *run) probe(ctx context.Context, candidate domain.CandidateSource) domain.SourceVerdict {
	key := strings.TrimSpace(candidate.URL)
	if cached, ok := r.v.cached(key); ok {
		return cached
	}

	started := time.Now()
	verdict := r.v.prober.Probe(ctx, candidate, r.opts.ProbeTimeout)
	r.v.metrics.ObserveProbe(string(verdict.Status), verdict.Reason, time.Since(started))

	r.mu.Lock()
	r.count++
	r.mu.Unlock()

	r.v.remember(key, verdict)
	return verdict
}

// accept turns valid verdicts into sources. A verdict whose final URL was
// already accepted in this run is rewritten in place as a duplicate.
func (r *run) accept(verdicts []domain.SourceVerdict) []domain.ValidatedSource {
	var out []domain.ValidatedSource
	for i, verdict := range verdicts {
		if !verdict.Valid() {
			continue
		}
		key := domainfilter.Key(verdict.FinalURL)
		if _, dup := r.seen[key]; dup {
			r.v.debug("duplicate source dropped", "url", verdict.FinalURL)
			verdicts[i].Status = domain.StatusInvalid
			verdicts[i].Reason = domain.ReasonDuplicate
			continue
		}
		r.seen[key] = struct{}{}
		out = append(out, domain.ValidatedSource{
			URL:         verdict.FinalURL,
			Title:       r.title(verdict),
			Origin:      verdict.Source.Origin,
			OriginalURL: verdict.Source.URL,
			HTTPStatus:  verdict.HTTPStatus,
		})
	}
	return out
}

func (r *run) title(verdict domain.SourceVerdict) string {
	if t := httpprobe.CleanTitle(verdict.Title); t != "" {
		return t
	}
	if t := httpprobe.CleanTitle(verdict.Source.Title); t != "" {
		return t
	}
	return httpprobe.FallbackTitle(verdict.FinalURL, r.opts.Language)
}

// searchAll fills replacement slots concurrently on a narrow pool. Failed or
// empty slots are dropped; they still count as attempts.
func (r *run) searchAll(ctx context.Context, topics []string) []domain.CandidateSource {
	slots := make([]*domain.CandidateSource, len(topics))

	var g errgroup.Group
	g.SetLimit(r.opts.SearchWorkers)
	for i, topic := range topics {
		g.Go(func() error {
			slots[i] = r.searchOne(ctx, topic)
			return nil
		})
	}
	_ = g.Wait()

	var found []domain.CandidateSource
	for _, slot := range slots {
		if slot != nil {
			found = append(found, *slot)
		}
	}
	return found
}

func (r *run) searchOne(ctx context.Context, topic string) *domain.CandidateSource {
	if r.v.limiter != nil {
		if err := r.v.limiter.Wait(ctx); err != nil {
			r.v.metrics.ObserveReplacement("error")
			r.v.warn("replacement search not started", "topic", topic, "error", err)
			return nil
		}
	}

	candidate, err := r.v.search.Search(ctx, ports.SearchRequest{
		Topic:        topic,
		ExcludeHosts: r.filter.ExcludedHosts(),
		Language:     r.opts.Language,
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.v.metrics.ObserveReplacement("not_found")
		return nil
	case err != nil:
		r.v.metrics.ObserveReplacement("error")
		r.v.warn("replacement search failed", "topic", topic, "error", err)
		return nil
	case strings.TrimSpace(candidate.URL) == "":
		r.v.metrics.ObserveReplacement("not_found")
		return nil
	}

	r.v.metrics.ObserveReplacement("found")
	candidate.Origin = domain.OriginReplacement
	return &candidate
}
