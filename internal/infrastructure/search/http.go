package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/ports"
)

// HTTPAgent asks a JSON search service for replacement sources.
type HTTPAgent struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.SearchAgent = (*HTTPAgent)(nil)

// NewHTTPAgent creates a reusable client. A nil client gets a 15s timeout.
func NewHTTPAgent(endpoint, apiKey string, client *http.Client) *HTTPAgent {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPAgent{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     client,
	}
}

// Search posts the topic and returns the service's candidate.
func (a *HTTPAgent) Search(ctx context.Context, req ports.SearchRequest) (domain.CandidateSource, error) {
	payload := map[string]any{
		"topic":        req.Topic,
		"excludeHosts": req.ExcludeHosts,
		"language":     req.Language,
	}

	var resp struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := a.post(ctx, "/search", payload, &resp); err != nil {
		return domain.CandidateSource{}, err
	}

	if strings.TrimSpace(resp.URL) == "" || excludedHost(resp.URL, req.ExcludeHosts) {
		return domain.CandidateSource{}, domain.ErrNotFound
	}
	return domain.CandidateSource{URL: strings.TrimSpace(resp.URL), Title: resp.Title, Origin: domain.OriginReplacement}, nil
}

func (a *HTTPAgent) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
