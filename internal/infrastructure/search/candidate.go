package search

import (
	"encoding/json"
	"fmt"
	"strings"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
	"SourceGuard/internal/ports"
)

func buildPrompt(req ports.SearchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Find one authoritative, currently reachable web page that supports an article about: %s.\n", req.Topic)
	if req.Language != "" {
		fmt.Fprintf(&b, "Prefer pages in language %q.\n", req.Language)
	}
	if len(req.ExcludeHosts) > 0 {
		fmt.Fprintf(&b, "Never use these domains or their subdomains: %s.\n", strings.Join(req.ExcludeHosts, ", "))
	}
	b.WriteString(`Answer with JSON only: {"url": "...", "title": "..."}. Use {"url": ""} if nothing fits.`)
	return b.String()
}

// parseCandidate extracts the {"url","title"} object from a model answer,
// tolerating code fences and surrounding prose.
func parseCandidate(text string) (domain.CandidateSource, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return domain.CandidateSource{}, fmt.Errorf("no json object in answer: %w", domain.ErrNotFound)
	}

	var payload struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return domain.CandidateSource{}, fmt.Errorf("decode answer: %w", err)
	}
	if strings.TrimSpace(payload.URL) == "" {
		return domain.CandidateSource{}, domain.ErrNotFound
	}
	return domain.CandidateSource{
		URL:    strings.TrimSpace(payload.URL),
		Title:  strings.TrimSpace(payload.Title),
		Origin: domain.OriginReplacement,
	}, nil
}

func excludedHost(rawURL string, hosts []string) bool {
	host := domainfilter.NormalizeHost(rawURL)
	for _, h := range hosts {
		if domainfilter.SameOrSubdomain(host, h) {
			return true
		}
	}
	return false
}
