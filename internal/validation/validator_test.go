package validation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
	"SourceGuard/internal/ports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProber struct {
	mu          sync.Mutex
	calls       map[string]int
	inflight    int
	maxInflight int
	status      map[string]int
	redirects   map[string]string
	jitter      bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		calls:     map[string]int{},
		status:    map[string]int{},
		redirects: map[string]string{},
	}
}

func (f *fakeProber) Probe(ctx context.Context, c domain.CandidateSource, timeout time.Duration) domain.SourceVerdict {
	f.mu.Lock()
	f.calls[c.URL]++
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	if f.jitter {
		h := fnv.New32a()
		_, _ = h.Write([]byte(c.URL))
		time.Sleep(time.Duration(h.Sum32()%7) * time.Millisecond)
	} else {
		time.Sleep(2 * time.Millisecond)
	}

	f.mu.Lock()
	status, ok := f.status[c.URL]
	final := f.redirects[c.URL]
	f.mu.Unlock()
	if !ok {
		status = http.StatusOK
	}
	if final == "" {
		final = c.URL
	}

	if status != http.StatusOK {
		return domain.SourceVerdict{Source: c, Status: domain.StatusInvalid, HTTPStatus: status, Reason: domain.ReasonHTTPStatus}
	}
	return domain.SourceVerdict{Source: c, Status: domain.StatusValid, HTTPStatus: status, FinalURL: final, Title: "Title of " + final}
}

func (f *fakeProber) callsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeProber) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type fakeSearch struct {
	mu          sync.Mutex
	requests    []ports.SearchRequest
	results     []string
	err         error
	inflight    int
	maxInflight int
}

func (s *fakeSearch) Search(ctx context.Context, req ports.SearchRequest) (domain.CandidateSource, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	time.Sleep(3 * time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.err != nil {
		return domain.CandidateSource{}, s.err
	}
	if idx >= len(s.results) {
		return domain.CandidateSource{}, domain.ErrNotFound
	}
	return domain.CandidateSource{URL: s.results[idx], Title: "Replacement"}, nil
}

func candidates(urls ...string) []domain.CandidateSource {
	out := make([]domain.CandidateSource, 0, len(urls))
	for i, u := range urls {
		out = append(out, domain.CandidateSource{URL: u, Title: fmt.Sprintf("Source %d", i+1), Origin: domain.OriginModel})
	}
	return out
}

func numbered(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://site%d.example.org/report", i+1)
	}
	return urls
}

func opts(min int) Options {
	o := DefaultOptions()
	o.MinValidSources = min
	o.ProbeTimeout = time.Second
	o.Topic = "customer service ai"
	return o
}

func urlsOf(sources []domain.ValidatedSource) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.URL
	}
	return out
}

func TestValidateAllValid(t *testing.T) {
	prober := newFakeProber()
	v := New(Deps{Prober: prober})

	urls := []string{"https://a.example.org/1", "https://b.example.org/2", "https://c.example.org/3"}
	out, err := v.Validate(context.Background(), candidates(urls...), opts(3))
	require.NoError(t, err)

	assert.Equal(t, urls, urlsOf(out.Sources))
	assert.Len(t, out.Verdicts, 3)
	assert.Zero(t, out.Shortfall)
	assert.Zero(t, out.ReplacementAttempts)
	assert.Equal(t, 3, out.Probes)
	assert.Equal(t, "Title of https://a.example.org/1", out.Sources[0].Title)
}

func TestValidateOrderIsDeterministic(t *testing.T) {
	urls := numbered(15)

	var first []string
	for i := 0; i < 3; i++ {
		prober := newFakeProber()
		prober.jitter = true
		v := New(Deps{Prober: prober})

		out, err := v.Validate(context.Background(), candidates(urls...), opts(0))
		require.NoError(t, err)
		got := urlsOf(out.Sources)
		if first == nil {
			first = got
			continue
		}
		assert.Equal(t, first, got)
	}
	assert.Equal(t, urls, first)
}

func TestValidateDeduplicatesByFinalURL(t *testing.T) {
	prober := newFakeProber()
	prober.redirects["https://short.example.net/x"] = "https://www.target.example.com/page/"
	prober.redirects["https://other.example.net/y"] = "https://target.example.com/page?utm_source=feed"
	v := New(Deps{Prober: prober})

	out, err := v.Validate(context.Background(), candidates(
		"https://short.example.net/x",
		"https://other.example.net/y",
		"https://unique.example.com/z",
	), opts(0))
	require.NoError(t, err)

	require.Len(t, out.Sources, 2)
	assert.Equal(t, "https://www.target.example.com/page/", out.Sources[0].URL)
	assert.Equal(t, "https://unique.example.com/z", out.Sources[1].URL)

	keys := map[string]bool{}
	for _, s := range out.Sources {
		key := domainfilter.Key(s.URL)
		assert.False(t, keys[key], "duplicate key %s", key)
		keys[key] = true
	}

	dup := out.Verdicts[1]
	assert.Equal(t, domain.StatusInvalid, dup.Status)
	assert.Equal(t, domain.ReasonDuplicate, dup.Reason)
	assert.Equal(t, "https://target.example.com/page?utm_source=feed", dup.FinalURL)
	assert.True(t, out.Verdicts[0].Valid())
}

func TestValidateDeduplicatesAcrossQueries(t *testing.T) {
	prober := newFakeProber()
	v := New(Deps{Prober: prober})

	out, err := v.Validate(context.Background(), candidates(
		"https://a.org/article?id=1",
		"https://A.org/article/?ref=x",
	), opts(0))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.org/article?id=1"}, urlsOf(out.Sources))
	assert.Equal(t, domain.ReasonDuplicate, out.Verdicts[1].Reason)
}

func TestValidateExcludesDomainsWithoutProbing(t *testing.T) {
	prober := newFakeProber()
	prober.redirects["https://neutral.example.org/a"] = "https://news.rival.com/a"
	v := New(Deps{Prober: prober})

	o := opts(0)
	o.CompanyDomain = "https://www.acme.io"
	o.CompetitorDomains = []string{"rival.com"}

	out, err := v.Validate(context.Background(), candidates(
		"https://blog.acme.io/post",
		"https://rival.com/pricing",
		"https://vertexaisearch.cloud.google.com/grounding-api-redirect/xyz",
		"https://neutral.example.org/a",
		"https://fine.example.org/b",
	), o)
	require.NoError(t, err)

	assert.Zero(t, prober.callsFor("https://blog.acme.io/post"))
	assert.Zero(t, prober.callsFor("https://rival.com/pricing"))
	assert.Zero(t, prober.callsFor("https://vertexaisearch.cloud.google.com/grounding-api-redirect/xyz"))
	assert.Equal(t, 1, prober.callsFor("https://neutral.example.org/a"))

	assert.Equal(t, []string{"https://fine.example.org/b"}, urlsOf(out.Sources))
	assert.Equal(t, domain.ReasonExcludedDomain, out.Verdicts[0].Reason)
	assert.Equal(t, domain.ReasonExcludedRedirect, out.Verdicts[3].Reason)
	assert.Empty(t, out.Verdicts[3].FinalURL)

	f := domainfilter.New(o.CompanyDomain, o.CompetitorDomains)
	for _, s := range out.Sources {
		assert.False(t, f.Excluded(s.URL))
	}
}

func TestValidateProbesEachURLAtMostOnce(t *testing.T) {
	prober := newFakeProber()
	prober.status["https://dead.example.org/"] = http.StatusNotFound
	search := &fakeSearch{results: []string{"https://dup.example.org/p", "https://dead.example.org/"}}
	v := New(Deps{Prober: prober, Search: search})

	urls := []string{
		"https://dup.example.org/p",
		"https://dup.example.org/p",
		"https://dead.example.org/",
		"https://dup.example.org/p",
		"https://dead.example.org/",
	}
	out, err := v.Validate(context.Background(), candidates(urls...), opts(3))
	require.NoError(t, err)

	assert.Equal(t, 1, prober.callsFor("https://dup.example.org/p"))
	assert.Equal(t, 1, prober.callsFor("https://dead.example.org/"))
	assert.Equal(t, 2, out.Probes)
	assert.Len(t, out.Verdicts, len(urls)+2)
	assert.Equal(t, []string{"https://dup.example.org/p"}, urlsOf(out.Sources))
	assert.Equal(t, 2, out.Shortfall)
}

func TestValidateNoReplacementWhenMinimumMet(t *testing.T) {
	prober := newFakeProber()
	urls := numbered(10)
	prober.status[urls[2]] = http.StatusNotFound
	prober.status[urls[7]] = http.StatusNotFound
	search := &fakeSearch{results: []string{"https://spare.example.org/1"}}
	v := New(Deps{Prober: prober, Search: search})

	out, err := v.Validate(context.Background(), candidates(urls...), opts(8))
	require.NoError(t, err)

	assert.Len(t, out.Sources, 8)
	assert.Zero(t, out.ReplacementAttempts)
	assert.Empty(t, search.requests)
	assert.Zero(t, out.Shortfall)
}

func TestValidateReplacementRound(t *testing.T) {
	prober := newFakeProber()
	urls := numbered(10)
	prober.status[urls[2]] = http.StatusNotFound
	prober.status[urls[7]] = http.StatusNotFound
	search := &fakeSearch{results: []string{"https://spare.example.org/1", "https://spare.example.org/2"}}
	v := New(Deps{Prober: prober, Search: search})

	out, err := v.Validate(context.Background(), candidates(urls...), opts(10))
	require.NoError(t, err)

	assert.Equal(t, 2, out.ReplacementAttempts)
	assert.Len(t, search.requests, 2)
	assert.Len(t, out.Sources, 10)
	assert.LessOrEqual(t, len(out.Sources), 10)
	assert.Zero(t, out.Shortfall)

	last := out.Sources[len(out.Sources)-1]
	assert.Equal(t, domain.OriginReplacement, last.Origin)

	topics := []string{search.requests[0].Topic, search.requests[1].Topic}
	assert.ElementsMatch(t, []string{"customer service ai Source 3", "customer service ai Source 8"}, topics)
	for _, req := range search.requests {
		assert.Contains(t, req.ExcludeHosts, "vertexaisearch.cloud.google.com")
	}
}

func TestValidateReplacementAttemptsAreCapped(t *testing.T) {
	prober := newFakeProber()
	urls := numbered(10)
	for _, u := range urls[:6] {
		prober.status[u] = http.StatusNotFound
	}
	search := &fakeSearch{}
	v := New(Deps{Prober: prober, Search: search})

	out, err := v.Validate(context.Background(), candidates(urls...), opts(8))
	require.NoError(t, err)

	assert.Equal(t, 3, out.ReplacementAttempts)
	assert.Len(t, search.requests, 3)
	assert.Zero(t, out.ReplacementsFound)
	assert.Len(t, out.Sources, 4)
	assert.Equal(t, 4, out.Shortfall)
	assert.LessOrEqual(t, search.maxInflight, 3)
}

func TestValidateBoundsSearchPool(t *testing.T) {
	prober := newFakeProber()
	urls := numbered(10)
	for _, u := range urls {
		prober.status[u] = http.StatusNotFound
	}
	search := &fakeSearch{results: numbered(20)[10:]}
	v := New(Deps{Prober: prober, Search: search})

	o := opts(10)
	o.MaxReplacementAttempts = 8
	o.SearchWorkers = 6
	out, err := v.Validate(context.Background(), candidates(urls...), o)
	require.NoError(t, err)

	assert.Len(t, search.requests, 8)
	assert.Equal(t, 8, out.ReplacementsFound)
	assert.Len(t, out.Sources, 8)
	assert.Equal(t, 2, out.Shortfall)
	assert.LessOrEqual(t, search.maxInflight, 3)
}

func TestValidateSearchFailureIsAbsorbed(t *testing.T) {
	prober := newFakeProber()
	prober.status["https://a.example.org/"] = http.StatusGone
	search := &fakeSearch{err: errors.New("quota exceeded")}
	v := New(Deps{Prober: prober, Search: search})

	out, err := v.Validate(context.Background(), candidates("https://a.example.org/"), opts(1))
	require.NoError(t, err)
	assert.Empty(t, out.Sources)
	assert.Equal(t, 1, out.Shortfall)
	assert.Equal(t, 1, out.ReplacementAttempts)
}

func TestValidateFilteredReplacementConsumesSlot(t *testing.T) {
	prober := newFakeProber()
	prober.status["https://a.example.org/"] = http.StatusNotFound
	search := &fakeSearch{results: []string{"https://rival.com/best"}}
	v := New(Deps{Prober: prober, Search: search})

	o := opts(1)
	o.CompetitorDomains = []string{"rival.com"}
	out, err := v.Validate(context.Background(), candidates("https://a.example.org/"), o)
	require.NoError(t, err)

	assert.Len(t, search.requests, 1)
	assert.Empty(t, out.Sources)
	assert.Equal(t, domain.ReasonExcludedDomain, out.Verdicts[1].Reason)
	assert.Zero(t, prober.callsFor("https://rival.com/best"))
}

func TestValidateBoundsProbePool(t *testing.T) {
	prober := newFakeProber()
	v := New(Deps{Prober: prober})

	o := opts(0)
	o.MaxProbeWorkers = 4
	out, err := v.Validate(context.Background(), candidates(numbered(20)...), o)
	require.NoError(t, err)

	assert.Len(t, out.Sources, 20)
	assert.LessOrEqual(t, prober.maxInflight, 4)
}

func TestValidateTruncatesCandidates(t *testing.T) {
	prober := newFakeProber()
	v := New(Deps{Prober: prober})

	out, err := v.Validate(context.Background(), candidates(numbered(25)...), opts(0))
	require.NoError(t, err)
	assert.Len(t, out.Verdicts, 20)
	assert.Equal(t, 20, prober.totalCalls())
}

func TestValidateUsesCacheAcrossRuns(t *testing.T) {
	prober := newFakeProber()
	v := New(Deps{Prober: prober, CacheSize: 16})

	urls := numbered(3)
	_, err := v.Validate(context.Background(), candidates(urls...), opts(3))
	require.NoError(t, err)
	out, err := v.Validate(context.Background(), candidates(urls...), opts(3))
	require.NoError(t, err)

	assert.Equal(t, 3, prober.totalCalls())
	assert.Zero(t, out.Probes)
	assert.Len(t, out.Sources, 3)
}

func TestValidateCacheEntriesExpire(t *testing.T) {
	prober := newFakeProber()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	v := New(Deps{Prober: prober, CacheSize: 16, CacheTTL: time.Minute, Now: func() time.Time { return now }})

	urls := numbered(3)
	_, err := v.Validate(context.Background(), candidates(urls...), opts(0))
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = v.Validate(context.Background(), candidates(urls...), opts(0))
	require.NoError(t, err)
	assert.Equal(t, 3, prober.totalCalls())

	now = now.Add(time.Minute)
	out, err := v.Validate(context.Background(), candidates(urls...), opts(0))
	require.NoError(t, err)
	assert.Equal(t, 6, prober.totalCalls())
	assert.Equal(t, 3, out.Probes)
	assert.Len(t, out.Sources, 3)
}

func TestValidateCachesOnlyTerminalVerdicts(t *testing.T) {
	prober := newFakeProber()
	prober.status["https://flaky.example.org/"] = http.StatusServiceUnavailable
	prober.status["https://gone.example.org/"] = http.StatusNotFound
	v := New(Deps{Prober: prober, CacheSize: 16})

	urls := []string{"https://flaky.example.org/", "https://gone.example.org/", "https://ok.example.org/"}
	for i := 0; i < 2; i++ {
		_, err := v.Validate(context.Background(), candidates(urls...), opts(0))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, prober.callsFor("https://flaky.example.org/"))
	assert.Equal(t, 1, prober.callsFor("https://gone.example.org/"))
	assert.Equal(t, 1, prober.callsFor("https://ok.example.org/"))
}

func TestValidateMalformedURL(t *testing.T) {
	prober := newFakeProber()
	v := New(Deps{Prober: prober})

	out, err := v.Validate(context.Background(), candidates("not-a-url", "https://ok.example.org/"), opts(0))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonMalformedURL, out.Verdicts[0].Reason)
	assert.Zero(t, prober.callsFor("not-a-url"))
	assert.Len(t, out.Sources, 1)
}

func TestValidateInvalidInput(t *testing.T) {
	v := New(Deps{Prober: newFakeProber()})

	cases := map[string]struct {
		candidates []domain.CandidateSource
		opts       Options
	}{
		"empty with minimum": {nil, opts(1)},
		"negative minimum":   {candidates("https://a.example.org/"), opts(-1)},
		"negative attempts": {candidates("https://a.example.org/"), func() Options {
			o := opts(0)
			o.MaxReplacementAttempts = -1
			return o
		}()},
		"zero timeout": {candidates("https://a.example.org/"), func() Options {
			o := opts(0)
			o.ProbeTimeout = 0
			return o
		}()},
		"inverted pool bounds": {candidates("https://a.example.org/"), func() Options {
			o := opts(0)
			o.MinProbeWorkers = 8
			o.MaxProbeWorkers = 2
			return o
		}()},
	}
	for name, tc := range cases {
		_, err := v.Validate(context.Background(), tc.candidates, tc.opts)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}

	_, err := New(Deps{}).Validate(context.Background(), candidates("https://a.example.org/"), opts(0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestValidateEmptyWithoutMinimum(t *testing.T) {
	v := New(Deps{Prober: newFakeProber()})

	out, err := v.Validate(context.Background(), nil, opts(0))
	require.NoError(t, err)
	assert.Empty(t, out.Sources)
	assert.Empty(t, out.Verdicts)
}

func TestProbeWidth(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, 1, o.probeWidth(0))
	assert.Equal(t, 3, o.probeWidth(3))
	assert.Equal(t, 10, o.probeWidth(40))

	o.MinProbeWorkers = 5
	assert.Equal(t, 5, o.probeWidth(2))
	assert.True(t, strings.HasPrefix(fmt.Sprint(o.probeWidth(7)), "7"))
}
