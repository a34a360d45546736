package httpprobe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
	"SourceGuard/internal/ports"
)

const (
	defaultMaxHops   = 10
	maxBodyBytes     = 512 << 10
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Prober follows redirects by hand so hops can be counted and loops detected.
type Prober struct {
	client    *http.Client
	maxHops   int
	userAgent string
	logger    *slog.Logger
}

var _ ports.Prober = (*Prober)(nil)

// Option customizes a Prober.
type Option func(*Prober)

// WithMaxHops overrides the redirect hop limit (default 10).
func WithMaxHops(n int) Option {
	return func(p *Prober) {
		if n >= 0 {
			p.maxHops = n
		}
	}
}

// WithUserAgent overrides the browser-like default User-Agent.
func WithUserAgent(ua string) Option {
	return func(p *Prober) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// New wraps a shared client. The client is copied so the caller's redirect
// policy is left untouched while its transport (and connection pool) is reused.
func New(client *http.Client, logger *slog.Logger, opts ...Option) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	p := &Prober{
		client:    &c,
		maxHops:   defaultMaxHops,
		userAgent: defaultUserAgent,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe resolves the candidate to a verdict. It never panics on network errors
// and never returns an error: every failure mode is encoded in the verdict.
func (p *Prober) Probe(ctx context.Context, candidate domain.CandidateSource, timeout time.Duration) domain.SourceVerdict {
	verdict := domain.SourceVerdict{Source: candidate}

	current, ok := domainfilter.HTTPURL(candidate.URL)
	if !ok {
		return invalid(verdict, domain.ReasonMalformedURL, 0)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	visited := map[string]struct{}{}
	for hop := 0; ; hop++ {
		if _, seen := visited[current.String()]; seen {
			return invalid(verdict, domain.ReasonRedirectLoop, 0)
		}
		visited[current.String()] = struct{}{}

		resp, err := p.fetch(ctx, current)
		if err != nil {
			v := classifyError(ctx, verdict, err)
			p.debug("probe failed", "url", candidate.URL, "status", v.Status, "reason", v.Reason, "error", err)
			return v
		}

		if !isRedirect(resp.StatusCode) {
			v := p.terminal(ctx, verdict, current, resp)
			p.debug("probe done", "url", candidate.URL, "final", current.String(), "status", v.Status, "http", v.HTTPStatus, "hops", hop)
			return v
		}

		location := resp.Header.Get("Location")
		drain(resp)
		if location == "" {
			return invalid(verdict, domain.ReasonUnexpectedStatus, resp.StatusCode)
		}
		if hop >= p.maxHops {
			return invalid(verdict, domain.ReasonTooManyRedirects, resp.StatusCode)
		}
		next, err := current.Parse(location)
		if err != nil || (next.Scheme != "http" && next.Scheme != "https") {
			return invalid(verdict, domain.ReasonMalformedURL, resp.StatusCode)
		}
		current = next
	}
}

func (p *Prober) fetch(ctx context.Context, target *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	return p.client.Do(req)
}

func (p *Prober) terminal(ctx context.Context, verdict domain.SourceVerdict, final *url.URL, resp *http.Response) domain.SourceVerdict {
	defer resp.Body.Close()
	verdict.HTTPStatus = resp.StatusCode

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil && ctx.Err() != nil {
		verdict.Status = domain.StatusTimeout
		verdict.Reason = domain.ReasonTimeout
		return verdict
	}

	var doc *goquery.Document
	if isHTML(resp.Header.Get("Content-Type")) && len(body) > 0 {
		if parsed, err := goquery.NewDocumentFromReader(strings.NewReader(string(body))); err == nil {
			doc = parsed
			verdict.Title = ExtractTitle(doc)
		}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if looksLikeErrorPage(final.String(), verdict.Title, doc) {
			return invalid(verdict, domain.ReasonSoft404, resp.StatusCode)
		}
		verdict.Status = domain.StatusValid
		verdict.FinalURL = domainfilter.StripTracking(final.String())
		return verdict
	case resp.StatusCode >= 400:
		return invalid(verdict, domain.ReasonHTTPStatus, resp.StatusCode)
	default:
		return invalid(verdict, domain.ReasonUnexpectedStatus, resp.StatusCode)
	}
}

func invalid(verdict domain.SourceVerdict, reason string, status int) domain.SourceVerdict {
	verdict.Status = domain.StatusInvalid
	verdict.Reason = reason
	verdict.FinalURL = ""
	if status != 0 {
		verdict.HTTPStatus = status
	}
	return verdict
}

// classifyError maps transport failures onto verdicts. Any context expiry,
// including a run-wide deadline, is a Timeout rather than Invalid.
func classifyError(ctx context.Context, verdict domain.SourceVerdict, err error) domain.SourceVerdict {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		verdict.Status = domain.StatusTimeout
		verdict.Reason = domain.ReasonTimeout
		return verdict
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		verdict.Status = domain.StatusTimeout
		verdict.Reason = domain.ReasonTimeout
		return verdict
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return invalid(verdict, domain.ReasonDNS, 0)
	}

	if isTLSError(err) {
		return invalid(verdict, domain.ReasonTLS, 0)
	}

	return invalid(verdict, domain.ReasonNetwork, 0)
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return true
	}
	return strings.Contains(err.Error(), "tls:")
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func (p *Prober) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
