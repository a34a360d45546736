package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"SourceGuard/internal/autofix"
	"SourceGuard/internal/config"
	"SourceGuard/internal/domain"
	"SourceGuard/internal/infrastructure/httpprobe"
	"SourceGuard/internal/infrastructure/search"
	"SourceGuard/internal/infrastructure/storage"
	"SourceGuard/internal/infrastructure/telegram"
	"SourceGuard/internal/logging"
	"SourceGuard/internal/metrics"
	"SourceGuard/internal/ports"
	"SourceGuard/internal/quality"
	"SourceGuard/internal/server"
	"SourceGuard/internal/usecase"
	"SourceGuard/internal/validation"
)

// Application wires configs to adapters and the checking pipeline.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	pipeline *usecase.Pipeline
	db       *sql.DB
}

// New builds the adapters named by cfg. Optional collaborators (search agent,
// Postgres, Telegram) are skipped when unconfigured; a database that cannot be
// migrated is logged and left out rather than failing startup.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	httpClient := newHTTPClient()

	agent, err := newSearchAgent(ctx, cfg, httpClient, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("build search agent: %w", err)
	}

	validator := validation.New(validation.Deps{
		Prober: httpprobe.New(httpClient, baseLogger.With("component", "prober"),
			httpprobe.WithMaxHops(cfg.Validation.MaxRedirects),
			httpprobe.WithUserAgent(cfg.Validation.UserAgent),
		),
		Search:     agent,
		CacheSize:  cfg.Validation.VerdictCacheSize,
		CacheTTL:   time.Duration(cfg.Validation.VerdictCacheTTLMs) * time.Millisecond,
		SearchRate: cfg.Validation.SearchRatePerSecond,
		Metrics:    m,
		Logger:     baseLogger.With("component", "validator"),
	})

	a := &Application{cfg: cfg, logger: baseLogger, registry: registry}

	var repository ports.RunRepository
	if cfg.Database.DSN != "" {
		if repo := a.openRepository(ctx); repo != nil {
			repository = repo
		}
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Validator:  validator,
		Fixer:      autofix.New(cfg.FixerOptions(), baseLogger.With("component", "autofix")),
		Engine:     quality.NewEngine(quality.DefaultRegistry(), cfg.QualityOptions(), baseLogger.With("component", "quality")),
		Repository: repository,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     baseLogger.With("component", "pipeline"),
		RunTimeout: cfg.RunTimeout(),
	})
	return a, nil
}

// Check runs one draft with the configured validation options.
func (a *Application) Check(ctx context.Context, draft domain.ContentDraft) (usecase.Result, error) {
	return a.pipeline.Run(ctx, draft, a.cfg.ValidationOptions())
}

// Server builds the HTTP surface around the pipeline.
func (a *Application) Server() *server.Server {
	handler := server.NewHandler(a.pipeline, a.cfg.ValidationOptions(), a.registry, a.logger.With("component", "server.handler"))
	return server.New(a.cfg.Server.Addr, handler, a.logger.With("component", "server"))
}

// Close releases the database pool, if any.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Application) openRepository(ctx context.Context) *storage.PostgresRepository {
	logger := a.logger.With("component", "storage")

	db, err := sql.Open("postgres", a.cfg.Database.DSN)
	if err != nil {
		logger.Warn("open database failed, persistence disabled", "error", err)
		return nil
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	repo := storage.NewPostgresRepository(db)
	migrateCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.Migrate(migrateCtx); err != nil {
		logger.Warn("migrate database failed, persistence disabled", "error", err)
		_ = db.Close()
		return nil
	}

	a.db = db
	return repo
}

func newSearchAgent(ctx context.Context, cfg config.Config, client *http.Client, logger *slog.Logger) (ports.SearchAgent, error) {
	switch cfg.Search.Provider {
	case config.ProviderGemini:
		return search.NewGeminiAgent(ctx, cfg.Search.Gemini.APIKey, cfg.Search.Gemini.Model, client, logger.With("component", "search.gemini"))
	case config.ProviderOpenAI:
		return search.NewOpenAIAgent(cfg.Search.OpenAI.APIKey, cfg.Search.OpenAI.BaseURL, cfg.Search.OpenAI.Model, logger.With("component", "search.openai"))
	case config.ProviderHTTP:
		if cfg.Search.HTTP.Endpoint == "" {
			return nil, fmt.Errorf("search.http.endpoint is empty")
		}
		return search.NewHTTPAgent(cfg.Search.HTTP.Endpoint, cfg.Search.HTTP.APIKey, client), nil
	default:
		logger.Info("no search provider configured, replacement search disabled")
		return nil, nil
	}
}

// newHTTPClient is shared by the prober and the search adapters; per-request
// deadlines come from contexts.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}
