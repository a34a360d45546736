package quality

import (
	"log/slog"

	"SourceGuard/internal/domain"
)

// Engine evaluates drafts against every registered rule.
type Engine struct {
	registry *Registry
	opts     Options
	logger   *slog.Logger
}

// NewEngine builds an engine. A nil registry means DefaultRegistry; zero
// thresholds mean DefaultThresholds.
func NewEngine(registry *Registry, opts Options, logger *slog.Logger) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	return &Engine{registry: registry, opts: opts, logger: logger}
}

// Evaluate runs all rules without short-circuiting. The draft is not modified;
// findings follow registration order, then each rule's own order.
func (e *Engine) Evaluate(d domain.ContentDraft) domain.QualityReport {
	return e.evaluate(d, e.opts)
}

// EvaluateFor evaluates d with the company and competitor domains of a single run.
func (e *Engine) EvaluateFor(d domain.ContentDraft, companyDomain string, competitorDomains []string) domain.QualityReport {
	opts := e.opts
	opts.CompanyDomain = companyDomain
	opts.CompetitorDomains = competitorDomains
	return e.evaluate(d, opts)
}

func (e *Engine) evaluate(d domain.ContentDraft, opts Options) domain.QualityReport {
	doc := newDocument(d, opts)

	var findings []domain.QualityFinding
	for _, rule := range e.registry.Rules() {
		found := rule.Check(doc)
		if e.logger != nil && len(found) > 0 {
			e.logger.Debug("rule reported findings", "rule", rule.Name(), "count", len(found))
		}
		findings = append(findings, found...)
	}
	return domain.NewReport(findings, nil)
}
