package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/domainfilter"
	"SourceGuard/internal/ports"
)

const groundingRedirectHost = "vertexaisearch.cloud.google.com"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAgent runs a Google Search grounded prompt and returns the first
// grounding source that is not excluded.
type GeminiAgent struct {
	models   contentGenerator
	model    string
	resolver *http.Client
	logger   *slog.Logger
	// redirectHost is the host whose links are unwrapped before use.
	redirectHost string
}

var _ ports.SearchAgent = (*GeminiAgent)(nil)

// NewGeminiAgent creates a Gemini API client. httpClient is used to unwrap
// grounding redirect links; nil gets a 10s timeout.
func NewGeminiAgent(ctx context.Context, apiKey, model string, httpClient *http.Client, logger *slog.Logger) (*GeminiAgent, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key missing")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiAgent(cli.Models, model, httpClient, logger), nil
}

func newGeminiAgent(models contentGenerator, model string, httpClient *http.Client, logger *slog.Logger) *GeminiAgent {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resolver := *httpClient
	resolver.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &GeminiAgent{models: models, model: model, resolver: &resolver, logger: logger, redirectHost: groundingRedirectHost}
}

// Search asks the grounded model about the topic and picks a grounding chunk.
func (a *GeminiAgent) Search(ctx context.Context, req ports.SearchRequest) (domain.CandidateSource, error) {
	resp, err := a.models.GenerateContent(ctx, a.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: buildPrompt(req)}}}},
		&genai.GenerateContentConfig{Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}},
	)
	if err != nil {
		return domain.CandidateSource{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return domain.CandidateSource{}, domain.ErrNotFound
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			target, err := a.unwrap(ctx, chunk.Web.URI)
			if err != nil {
				a.debug("grounding link not resolved", "uri", chunk.Web.URI, "error", err)
				continue
			}
			if excludedHost(target, req.ExcludeHosts) || excludedHost(target, domainfilter.ForbiddenHosts()) {
				a.debug("grounding source excluded", "url", target)
				continue
			}
			return domain.CandidateSource{URL: target, Title: strings.TrimSpace(chunk.Web.Title), Origin: domain.OriginReplacement}, nil
		}
	}
	return domain.CandidateSource{}, domain.ErrNotFound
}

// unwrap follows one hop of a grounding redirect link.
func (a *GeminiAgent) unwrap(ctx context.Context, uri string) (string, error) {
	if domainfilter.NormalizeHost(uri) != a.redirectHost {
		return uri, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	resp, err := a.resolver.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
		return "", fmt.Errorf("grounding link returned %s without redirect", resp.Status)
	}
	target, err := resp.Request.URL.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	return target.String(), nil
}

func (a *GeminiAgent) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
