package domainfilter

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// forbiddenHosts are never acceptable as final citations: search redirectors and
// the search vendor's own properties.
var forbiddenHosts = []string{
	"vertexaisearch.cloud.google.com",
	"cloud.google.com",
}

// ForbiddenHosts returns a copy of the baked-in forbidden host list.
func ForbiddenHosts() []string {
	out := make([]string, len(forbiddenHosts))
	copy(out, forbiddenHosts)
	return out
}

// Filter classifies hosts against company, competitor and forbidden domains.
type Filter struct {
	excluded  []string
	forbidden []string
}

// New builds a filter. Company and competitor entries may be bare domains or URLs;
// they are reduced to their registrable domain so every subdomain is excluded too.
func New(companyDomain string, competitorDomains []string) *Filter {
	f := &Filter{forbidden: ForbiddenHosts()}
	for _, raw := range append([]string{companyDomain}, competitorDomains...) {
		if root := RegistrableDomain(raw); root != "" {
			f.excluded = append(f.excluded, root)
		}
	}
	return f
}

// IsExcluded is the functional form of Filter.Excluded.
func IsExcluded(rawURL, companyDomain string, competitorDomains []string) bool {
	return New(companyDomain, competitorDomains).Excluded(rawURL)
}

// Excluded reports whether the URL's host falls under any excluded or forbidden domain.
func (f *Filter) Excluded(rawURL string) bool {
	host := NormalizeHost(rawURL)
	if host == "" {
		return false
	}
	for _, root := range f.excluded {
		if SameOrSubdomain(host, root) {
			return true
		}
	}
	for _, root := range f.forbidden {
		if SameOrSubdomain(host, root) {
			return true
		}
	}
	return false
}

// ExcludedHosts lists every excluded root, forbidden hosts last.
func (f *Filter) ExcludedHosts() []string {
	out := make([]string, 0, len(f.excluded)+len(f.forbidden))
	out = append(out, f.excluded...)
	return append(out, f.forbidden...)
}

// NormalizeHost extracts a comparable host from a URL or bare domain:
// lower-case, no port, no trailing dot, no leading "www.".
func NormalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	host = strings.Trim(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// RegistrableDomain returns the eTLD+1 of the input, or the normalized host when
// the public suffix list cannot resolve it (IP addresses, "localhost").
func RegistrableDomain(raw string) string {
	host := NormalizeHost(raw)
	if host == "" {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}

// SameOrSubdomain reports whether host equals root or is one of its subdomains.
func SameOrSubdomain(host, root string) bool {
	if host == "" || root == "" {
		return false
	}
	host = strings.ToLower(host)
	root = strings.TrimPrefix(strings.ToLower(root), ".")
	return host == root || strings.HasSuffix(host, "."+root)
}
