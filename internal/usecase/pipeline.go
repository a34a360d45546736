package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"SourceGuard/internal/autofix"
	"SourceGuard/internal/citation"
	"SourceGuard/internal/domain"
	"SourceGuard/internal/metrics"
	"SourceGuard/internal/ports"
	"SourceGuard/internal/quality"
	"SourceGuard/internal/validation"
)

// CodeInsufficientValidSources marks a run that stayed below MinValidSources
// after the replacement round.
const CodeInsufficientValidSources = "insufficient_valid_sources"

// State is a pipeline stage.
type State string

const (
	StateStart              State = "start"
	StateSourcesValidating  State = "sources_validating"
	StateCitationsChecking  State = "citations_checking"
	StateFixing             State = "fixing"
	StateEvaluating         State = "evaluating"
	StateAccepted           State = "accepted"
	StateRejected           State = "rejected"
)

// Transition records one state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// SourceValidator is the validation stage.
type SourceValidator interface {
	Validate(ctx context.Context, candidates []domain.CandidateSource, opts validation.Options) (validation.Outcome, error)
}

// PipelineDeps wires the stages and the driven adapters into the pipeline.
// Validator is required; nil Fixer and Engine fall back to defaults.
type PipelineDeps struct {
	Validator  SourceValidator
	Fixer      *autofix.Fixer
	Engine     *quality.Engine
	Repository ports.RunRepository
	Notifier   ports.Notifier
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// RunTimeout bounds the validation stage; in-flight probes become Timeout verdicts.
	RunTimeout time.Duration
	Now        func() time.Time
}

// Pipeline implements the draft checking workflow.
type Pipeline struct {
	validator  SourceValidator
	fixer      *autofix.Fixer
	engine     *quality.Engine
	repository ports.RunRepository
	notifier   ports.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	runTimeout time.Duration
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		validator:  deps.Validator,
		fixer:      deps.Fixer,
		engine:     deps.Engine,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		runTimeout: deps.RunTimeout,
		now:        deps.Now,
	}
	if p.fixer == nil {
		p.fixer = autofix.New(autofix.DefaultOptions(), deps.Logger)
	}
	if p.engine == nil {
		p.engine = quality.NewEngine(nil, quality.Options{}, deps.Logger)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Result is the terminal output of a run. On Rejected the same shape is
// returned with Report.Passed == false.
type Result struct {
	RunID       string                   `json:"runId"`
	State       State                    `json:"state"`
	Draft       domain.ContentDraft      `json:"draft"`
	Report      domain.QualityReport     `json:"report"`
	Sources     []domain.ValidatedSource `json:"sources"`
	Verdicts    []domain.SourceVerdict   `json:"verdicts"`
	Transitions []Transition             `json:"transitions"`
	// Citations is the pre-fix citation match against the validated sources.
	Citations           citation.Result `json:"-"`
	ReplacementAttempts int             `json:"replacementAttempts"`
}

// Run validates sources, checks citations, fixes and evaluates the draft.
// Only caller misuse is returned as an error (wrapping domain.ErrInvalidInput);
// every other failure ends up in the report.
func (p *Pipeline) Run(ctx context.Context, draft domain.ContentDraft, opts validation.Options) (Result, error) {
	if p.validator == nil {
		return Result{}, fmt.Errorf("%w: pipeline has no source validator", domain.ErrInvalidInput)
	}
	if opts.Topic == "" {
		opts.Topic = draft.PrimaryKeyword
	}

	started := p.now()
	res := Result{RunID: uuid.NewString(), State: StateStart, Draft: draft.Clone()}
	logger := p.runLogger(res.RunID)

	p.advance(&res, StateSourcesValidating)
	outcome, err := p.validate(ctx, res.Draft.Sources, opts)
	if err != nil {
		return Result{}, fmt.Errorf("validate sources: %w", err)
	}
	res.Sources = outcome.Sources
	res.Verdicts = outcome.Verdicts
	res.ReplacementAttempts = outcome.ReplacementAttempts
	res.Draft.Sources = domain.AsCandidates(outcome.Sources)

	p.advance(&res, StateCitationsChecking)
	res.Citations = citation.MatchDraft(res.Draft, len(res.Sources))
	res.Draft.CitationsUsed = res.Citations.Cited

	p.advance(&res, StateFixing)
	fixed, fixes := p.fixer.Apply(res.Draft, len(res.Sources))
	res.Draft = fixed

	p.advance(&res, StateEvaluating)
	report := p.engine.EvaluateFor(res.Draft, opts.CompanyDomain, opts.CompetitorDomains)
	findings := report.Findings
	if outcome.Shortfall > 0 {
		findings = append(findings, domain.QualityFinding{
			Severity: domain.SeverityWarning,
			Code:     CodeInsufficientValidSources,
			Locator:  "sources",
			Message: fmt.Sprintf("%d valid sources after %d replacement attempts, %d required",
				len(res.Sources), outcome.ReplacementAttempts, opts.MinValidSources),
		})
	}
	res.Report = domain.NewReport(findings, fixes)

	if res.Report.Passed {
		p.advance(&res, StateAccepted)
	} else {
		p.advance(&res, StateRejected)
	}

	p.record(&res)
	logger.Info("pipeline finished",
		"state", res.State,
		"sources", len(res.Sources),
		"findings", len(res.Report.Findings),
		"critical", domain.CountSeverity(res.Report.Findings, domain.SeverityCritical),
		"fixes", len(res.Report.FixesApplied),
	)

	p.persist(ctx, res, started, logger)
	if res.State == StateRejected {
		p.notify(ctx, res, logger)
	}
	return res, nil
}

func (p *Pipeline) validate(ctx context.Context, candidates []domain.CandidateSource, opts validation.Options) (validation.Outcome, error) {
	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}
	return p.validator.Validate(ctx, candidates, opts)
}

func (p *Pipeline) advance(res *Result, to State) {
	res.Transitions = append(res.Transitions, Transition{From: res.State, To: to, At: p.now()})
	res.State = to
}

func (p *Pipeline) record(res *Result) {
	p.metrics.ObserveRun(string(res.State))
	for _, f := range res.Report.Findings {
		p.metrics.ObserveFinding(string(f.Severity), f.Code)
	}
}

func (p *Pipeline) persist(ctx context.Context, res Result, started time.Time, logger *slog.Logger) {
	if p.repository == nil {
		return
	}
	err := p.repository.SaveRun(ctx, ports.RunRecord{
		RunID:     res.RunID,
		State:     string(res.State),
		Keyword:   res.Draft.PrimaryKeyword,
		Report:    res.Report,
		Verdicts:  res.Verdicts,
		StartedAt: started,
		Duration:  p.now().Sub(started),
	})
	if err != nil {
		logger.Warn("persist run failed", "error", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, res Result, logger *slog.Logger) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishRejection(ctx, buildRejectionMessage(res)); err != nil {
		logger.Warn("publish rejection failed", "error", err)
	}
}

func (p *Pipeline) runLogger(runID string) *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger.With("run_id", runID)
}

func buildRejectionMessage(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft %q rejected (run %s)\n", res.Draft.Headline, res.RunID)
	for _, f := range res.Report.Critical() {
		fmt.Fprintf(&b, "- %s at %s: %s\n", f.Code, f.Locator, f.Message)
	}
	return b.String()
}
