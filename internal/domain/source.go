package domain

// Origin tells where a candidate source came from.
type Origin string

const (
	OriginModel       Origin = "model"
	OriginReplacement Origin = "replacement"
)

// CandidateSource is a URL proposed by content generation or by a replacement search.
type CandidateSource struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Origin Origin `json:"origin,omitempty"`
}

// VerdictStatus enumerates probe outcomes.
type VerdictStatus string

const (
	StatusValid   VerdictStatus = "valid"
	StatusInvalid VerdictStatus = "invalid"
	StatusTimeout VerdictStatus = "timeout"
)

// Reason codes attached to non-valid verdicts.
const (
	ReasonMalformedURL     = "malformed_url"
	ReasonExcludedDomain   = "excluded_domain"
	ReasonExcludedRedirect = "excluded_redirect"
	ReasonHTTPStatus       = "http_status"
	ReasonUnexpectedStatus = "unexpected_status"
	ReasonTooManyRedirects = "too_many_redirects"
	ReasonRedirectLoop     = "redirect_loop"
	ReasonDNS              = "dns"
	ReasonTLS              = "tls"
	ReasonNetwork          = "network"
	ReasonTimeout          = "timeout"
	ReasonSoft404          = "soft_404"
	ReasonDuplicate        = "duplicate"
)

// SourceVerdict is produced exactly once per candidate. FinalURL is empty
// unless the candidate resolved to a live page; a live page whose URL repeats
// an earlier source keeps its FinalURL but is StatusInvalid with ReasonDuplicate.
type SourceVerdict struct {
	Source     CandidateSource `json:"source"`
	Status     VerdictStatus   `json:"status"`
	FinalURL   string          `json:"finalUrl,omitempty"`
	HTTPStatus int             `json:"httpStatus,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Title      string          `json:"title,omitempty"`
}

// Valid reports whether the verdict accepted the candidate.
func (v SourceVerdict) Valid() bool {
	return v.Status == StatusValid
}

// ValidatedSource is a live, eligible, deduplicated source.
type ValidatedSource struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Origin      Origin `json:"origin"`
	OriginalURL string `json:"originalUrl,omitempty"`
	HTTPStatus  int    `json:"httpStatus,omitempty"`
}

// AsCandidates converts validated sources back into the draft's source list shape.
func AsCandidates(sources []ValidatedSource) []CandidateSource {
	out := make([]CandidateSource, 0, len(sources))
	for _, src := range sources {
		out = append(out, CandidateSource{URL: src.URL, Title: src.Title, Origin: src.Origin})
	}
	return out
}
