package search

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/ports"
)

const systemPrompt = "You are a research assistant that recommends citable web sources. You only answer with JSON."

// OpenAIAgent asks an OpenAI-compatible chat model for a replacement source.
type OpenAIAgent struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var _ ports.SearchAgent = (*OpenAIAgent)(nil)

// NewOpenAIAgent builds an agent. baseURL is optional.
func NewOpenAIAgent(apiKey, baseURL, model string, logger *slog.Logger) (*OpenAIAgent, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key missing")
	}
	if model == "" {
		return nil, fmt.Errorf("openai model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAgent{client: openai.NewClient(opts...), model: model, logger: logger}, nil
}

// Search returns the model's suggestion, or domain.ErrNotFound when it has none
// or suggests an excluded host.
func (a *OpenAIAgent) Search(ctx context.Context, req ports.SearchRequest) (domain.CandidateSource, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildPrompt(req)),
		},
	})
	if err != nil {
		return domain.CandidateSource{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.CandidateSource{}, domain.ErrNotFound
	}

	candidate, err := parseCandidate(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.CandidateSource{}, err
	}
	if excludedHost(candidate.URL, req.ExcludeHosts) {
		if a.logger != nil {
			a.logger.Debug("suggestion on excluded host dropped", "url", candidate.URL)
		}
		return domain.CandidateSource{}, domain.ErrNotFound
	}
	return candidate, nil
}
