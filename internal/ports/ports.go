package ports

import (
	"context"
	"time"

	"SourceGuard/internal/domain"
)

// Prober resolves a single candidate URL to a liveness verdict.
// Implementations never return errors; failures become Invalid or Timeout verdicts.
type Prober interface {
	Probe(ctx context.Context, candidate domain.CandidateSource, timeout time.Duration) domain.SourceVerdict
}

// SearchRequest describes one replacement slot.
type SearchRequest struct {
	Topic        string
	ExcludeHosts []string
	Language     string
}

// SearchAgent finds a replacement source for a topic. It returns domain.ErrNotFound
// when it has nothing to offer.
type SearchAgent interface {
	Search(ctx context.Context, req SearchRequest) (domain.CandidateSource, error)
}

// RunRecord is the persisted summary of one pipeline execution.
type RunRecord struct {
	RunID     string
	State     string
	Keyword   string
	Report    domain.QualityReport
	Verdicts  []domain.SourceVerdict
	StartedAt time.Time
	Duration  time.Duration
}

// RunRepository persists pipeline runs for audit.
type RunRepository interface {
	SaveRun(ctx context.Context, run RunRecord) error
}

// Notifier announces rejected runs to humans (Telegram, etc.).
type Notifier interface {
	PublishRejection(ctx context.Context, message string) error
}
