package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/usecase"
	"SourceGuard/internal/validation"
)

const maxRequestBytes = 4 << 20

// Checker runs one draft through the pipeline.
type Checker interface {
	Run(ctx context.Context, draft domain.ContentDraft, opts validation.Options) (usecase.Result, error)
}

// CheckRequest is the body of POST /v1/check.
type CheckRequest struct {
	Draft   domain.ContentDraft `json:"draft"`
	Options *OptionsOverride    `json:"options,omitempty"`
}

// OptionsOverride replaces the configured validation options field by field.
type OptionsOverride struct {
	CompanyDomain          *string  `json:"companyDomain,omitempty"`
	CompetitorDomains      []string `json:"competitorDomains,omitempty"`
	MinValidSources        *int     `json:"minValidSources,omitempty"`
	MaxReplacementAttempts *int     `json:"maxReplacementAttempts,omitempty"`
	ProbeTimeoutMs         *int     `json:"probeTimeoutMs,omitempty"`
	MinProbePoolWidth      *int     `json:"minProbePoolWidth,omitempty"`
	MaxProbePoolWidth      *int     `json:"maxProbePoolWidth,omitempty"`
	Language               *string  `json:"language,omitempty"`
}

// Apply returns base with every non-nil override applied.
func (o *OptionsOverride) Apply(base validation.Options) validation.Options {
	if o == nil {
		return base
	}
	if o.CompanyDomain != nil {
		base.CompanyDomain = *o.CompanyDomain
	}
	if o.CompetitorDomains != nil {
		base.CompetitorDomains = o.CompetitorDomains
	}
	if o.MinValidSources != nil {
		base.MinValidSources = *o.MinValidSources
	}
	if o.MaxReplacementAttempts != nil {
		base.MaxReplacementAttempts = *o.MaxReplacementAttempts
	}
	if o.ProbeTimeoutMs != nil {
		base.ProbeTimeout = time.Duration(*o.ProbeTimeoutMs) * time.Millisecond
	}
	if o.MinProbePoolWidth != nil {
		base.MinProbeWorkers = *o.MinProbePoolWidth
	}
	if o.MaxProbePoolWidth != nil {
		base.MaxProbeWorkers = *o.MaxProbePoolWidth
	}
	if o.Language != nil {
		base.Language = *o.Language
	}
	return base
}

// NewHandler routes /v1/check, /healthz and /metrics.
func NewHandler(checker Checker, defaults validation.Options, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/check", checkHandler(checker, defaults, logger))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func checkHandler(checker Checker, defaults validation.Options, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CheckRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}

		res, err := checker.Run(r.Context(), in.Draft, in.Options.Apply(defaults))
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		case err != nil:
			logger.Error("check failed", "error", err)
			writeError(w, http.StatusInternalServerError, "check failed")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
