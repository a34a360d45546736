package domainfilter

import (
	"net/url"
	"path"
	"strings"
)

// HTTPURL parses raw and accepts only absolute http(s) URLs with a host.
func HTTPURL(raw string) (*url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, false
	}
	if parsed.Hostname() == "" {
		return nil, false
	}
	return parsed, true
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	return strings.HasPrefix(key, "utm_") || key == "gclid" || key == "fbclid"
}

// StripTracking removes utm_*, gclid and fbclid query parameters. Unparseable
// input is returned unchanged.
func StripTracking(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.RawQuery == "" {
		return raw
	}
	query := parsed.Query()
	changed := false
	for key := range query {
		if isTrackingParam(key) {
			query.Del(key)
			changed = true
		}
	}
	if !changed {
		return raw
	}
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// Key returns the deduplication key of a URL: normalized host plus cleaned
// path without trailing slash. Scheme, query and fragment are ignored.
func Key(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	host := NormalizeHost(parsed.Scheme + "://" + parsed.Host)
	if parsed.Host == "" {
		host = NormalizeHost(raw)
	}

	p := parsed.EscapedPath()
	if p == "" {
		p = "/"
	}
	p = path.Clean(p)
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return host + p
}
