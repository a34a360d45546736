package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SourceGuard/internal/autofix"
	"SourceGuard/internal/quality"
	"SourceGuard/internal/validation"
)

const (
	configPathEnv     = "SOURCE_GUARD_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	googleAPIKeyEnv   = "GOOGLE_API_KEY"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	searchProviderEnv = "SEARCH_PROVIDER"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Search providers understood by the application wiring.
const (
	ProviderNone   = "none"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Validation    ValidationConfig   `yaml:"validation"`
	Quality       QualityConfig      `yaml:"quality"`
	Search        SearchConfig       `yaml:"search"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ValidationConfig tunes source probing and replacement search.
type ValidationConfig struct {
	CompanyDomain          string   `yaml:"companyDomain"`
	CompetitorDomains      []string `yaml:"competitorDomains"`
	MinValidSources        int      `yaml:"minValidSources"`
	MaxReplacementAttempts int      `yaml:"maxReplacementAttempts"`
	ProbeTimeoutMs         int      `yaml:"probeTimeoutMs"`
	MinProbePoolWidth      int      `yaml:"minProbePoolWidth"`
	MaxProbePoolWidth      int      `yaml:"maxProbePoolWidth"`
	SearchPoolWidth        int      `yaml:"searchPoolWidth"`
	MaxRedirects           int      `yaml:"maxRedirects"`
	MaxCandidates          int      `yaml:"maxCandidates"`
	SearchRatePerSecond    float64  `yaml:"searchRatePerSecond"`
	VerdictCacheSize       int      `yaml:"verdictCacheSize"`
	VerdictCacheTTLMs      int      `yaml:"verdictCacheTtlMs"`
	RunTimeoutMs           int      `yaml:"runTimeoutMs"`
	Language               string   `yaml:"language"`
	UserAgent              string   `yaml:"userAgent"`
}

// QualityConfig carries rule thresholds and the optional orphan-citation fix.
type QualityConfig struct {
	Thresholds           quality.Thresholds `yaml:"thresholds"`
	StripOrphanCitations bool               `yaml:"stripOrphanCitations"`
	InternalLinks        []string           `yaml:"internalLinks"`
}

// SearchConfig picks the replacement search agent.
type SearchConfig struct {
	Provider string       `yaml:"provider"`
	Gemini   GeminiConfig `yaml:"gemini"`
	OpenAI   OpenAIConfig `yaml:"openai"`
	HTTP     HTTPConfig   `yaml:"http"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// OpenAIConfig defines how to contact an OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseUrl"`
	Model   string `yaml:"model"`
}

// HTTPConfig points at a custom search service.
type HTTPConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN disables persistence.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// ServerConfig configures `sourceguard serve`.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	ShutdownTimeoutMs int    `yaml:"shutdownTimeoutMs"`
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := os.Getenv(configPathEnv); path != "" {
		cfg = loadFile(cfg, path)
	}

	cfg.applyEnvOverrides()
	cfg.sanitize()
	return cfg
}

func loadFile(cfg Config, path string) Config {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		return cfg
	}

	// Unmarshalling onto a copy of the defaults keeps every key the file omits.
	merged := cfg
	if err := yaml.Unmarshal(raw, &merged); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		return cfg
	}
	return merged
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := firstNonEmpty(os.Getenv(geminiAPIKeyEnv), os.Getenv(googleAPIKeyEnv)); v != "" {
		c.Search.Gemini.APIKey = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Search.OpenAI.APIKey = v
	}

	if v := os.Getenv(searchProviderEnv); v != "" {
		c.Search.Provider = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// sanitize reverts out-of-range values to defaults, logging each one.
func (c *Config) sanitize() {
	def := defaultConfig()
	v := &c.Validation

	revert := func(name string, bad bool, field *int, fallback int) {
		if bad {
			log.Printf("config: invalid %s %d, reverting to %d", name, *field, fallback)
			*field = fallback
		}
	}
	revert("validation.minValidSources", v.MinValidSources < 0, &v.MinValidSources, def.Validation.MinValidSources)
	revert("validation.maxReplacementAttempts", v.MaxReplacementAttempts < 0, &v.MaxReplacementAttempts, def.Validation.MaxReplacementAttempts)
	revert("validation.probeTimeoutMs", v.ProbeTimeoutMs <= 0, &v.ProbeTimeoutMs, def.Validation.ProbeTimeoutMs)
	revert("validation.minProbePoolWidth", v.MinProbePoolWidth < 1, &v.MinProbePoolWidth, def.Validation.MinProbePoolWidth)
	revert("validation.maxProbePoolWidth", v.MaxProbePoolWidth < v.MinProbePoolWidth, &v.MaxProbePoolWidth, max(def.Validation.MaxProbePoolWidth, v.MinProbePoolWidth))
	revert("validation.searchPoolWidth", v.SearchPoolWidth < 1, &v.SearchPoolWidth, def.Validation.SearchPoolWidth)
	revert("validation.maxRedirects", v.MaxRedirects < 0, &v.MaxRedirects, def.Validation.MaxRedirects)
	revert("validation.maxCandidates", v.MaxCandidates < 1, &v.MaxCandidates, def.Validation.MaxCandidates)
	revert("validation.verdictCacheSize", v.VerdictCacheSize < 0, &v.VerdictCacheSize, def.Validation.VerdictCacheSize)
	revert("validation.verdictCacheTtlMs", v.VerdictCacheTTLMs <= 0, &v.VerdictCacheTTLMs, def.Validation.VerdictCacheTTLMs)
	revert("validation.runTimeoutMs", v.RunTimeoutMs < 0, &v.RunTimeoutMs, def.Validation.RunTimeoutMs)

	if v.SearchRatePerSecond < 0 {
		log.Printf("config: invalid validation.searchRatePerSecond %v, reverting to %v", v.SearchRatePerSecond, def.Validation.SearchRatePerSecond)
		v.SearchRatePerSecond = def.Validation.SearchRatePerSecond
	}
	if v.Language == "" {
		v.Language = def.Validation.Language
	}

	t, dt := &c.Quality.Thresholds, def.Quality.Thresholds
	for _, r := range []struct {
		name     string
		min, max *int
		defMin   int
		defMax   int
	}{
		{"metaTitle", &t.MetaTitleMin, &t.MetaTitleMax, dt.MetaTitleMin, dt.MetaTitleMax},
		{"metaDescription", &t.MetaDescriptionMin, &t.MetaDescriptionMax, dt.MetaDescriptionMin, dt.MetaDescriptionMax},
		{"sections", &t.SectionsMin, &t.SectionsMax, dt.SectionsMin, dt.SectionsMax},
		{"listSections", &t.ListSectionsMin, &t.ListSectionsMax, dt.ListSectionsMin, dt.ListSectionsMax},
		{"words", &t.WordsMin, &t.WordsMax, dt.WordsMin, dt.WordsMax},
		{"introWords", &t.IntroWordsMin, &t.IntroWordsMax, dt.IntroWordsMin, dt.IntroWordsMax},
		{"takeaways", &t.TakeawaysMin, &t.TakeawaysMax, dt.TakeawaysMin, dt.TakeawaysMax},
		{"faq", &t.FAQMin, &t.FAQMax, dt.FAQMin, dt.FAQMax},
		{"paa", &t.PAAMin, &t.PAAMax, dt.PAAMin, dt.PAAMax},
		{"sources", &t.SourcesMin, &t.SourcesMax, dt.SourcesMin, dt.SourcesMax},
	} {
		revert("quality.thresholds."+r.name+"Min", *r.min < 0, r.min, r.defMin)
		revert("quality.thresholds."+r.name+"Max", *r.max < 1, r.max, r.defMax)
		if *r.max < *r.min {
			revert("quality.thresholds."+r.name+"Max", true, r.max, max(r.defMax, *r.min))
		}
	}
	revert("quality.thresholds.minSections", t.MinSections < 0, &t.MinSections, dt.MinSections)
	revert("quality.thresholds.sectionTitleMax", t.SectionTitleMax < 1, &t.SectionTitleMax, dt.SectionTitleMax)
	revert("quality.thresholds.keywordMin", t.KeywordMin < 0, &t.KeywordMin, dt.KeywordMin)
	revert("quality.thresholds.sourcesPerHostMax", t.SourcesPerHostMax < 1, &t.SourcesPerHostMax, dt.SourcesPerHostMax)
	revert("quality.thresholds.sourceTitleMin", t.SourceTitleMin < 0, &t.SourceTitleMin, dt.SourceTitleMin)

	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	switch c.Search.Provider {
	case ProviderNone, ProviderGemini, ProviderOpenAI, ProviderHTTP:
	case "":
		c.Search.Provider = ProviderNone
	default:
		log.Printf("config: unknown search provider %s, reverting to %s", c.Search.Provider, ProviderNone)
		c.Search.Provider = ProviderNone
	}

	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeoutMs <= 0 {
		c.Server.ShutdownTimeoutMs = def.Server.ShutdownTimeoutMs
	}
}

// ValidationOptions converts the validation section into validator options.
func (c Config) ValidationOptions() validation.Options {
	v := c.Validation
	return validation.Options{
		CompanyDomain:          v.CompanyDomain,
		CompetitorDomains:      append([]string(nil), v.CompetitorDomains...),
		MinValidSources:        v.MinValidSources,
		MaxReplacementAttempts: v.MaxReplacementAttempts,
		ProbeTimeout:           time.Duration(v.ProbeTimeoutMs) * time.Millisecond,
		MinProbeWorkers:        v.MinProbePoolWidth,
		MaxProbeWorkers:        v.MaxProbePoolWidth,
		SearchWorkers:          v.SearchPoolWidth,
		MaxCandidates:          v.MaxCandidates,
		Language:               v.Language,
	}
}

// FixerOptions converts the quality section into auto-fixer options.
func (c Config) FixerOptions() autofix.Options {
	return autofix.Options{
		MetaTitleMax:         c.Quality.Thresholds.MetaTitleMax,
		MetaDescriptionMax:   c.Quality.Thresholds.MetaDescriptionMax,
		StripOrphanCitations: c.Quality.StripOrphanCitations,
	}
}

// QualityOptions converts the quality section into engine options.
func (c Config) QualityOptions() quality.Options {
	return quality.Options{
		Thresholds:        c.Quality.Thresholds,
		CompanyDomain:     c.Validation.CompanyDomain,
		CompetitorDomains: append([]string(nil), c.Validation.CompetitorDomains...),
		InternalLinks:     append([]string(nil), c.Quality.InternalLinks...),
	}
}

// RunTimeout bounds the validation stage of one run; zero disables it.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Validation.RunTimeoutMs) * time.Millisecond
}

// ShutdownTimeout bounds graceful server shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func defaultConfig() Config {
	val := validation.DefaultOptions()
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Validation: ValidationConfig{
			MinValidSources:        8,
			MaxReplacementAttempts: val.MaxReplacementAttempts,
			ProbeTimeoutMs:         int(val.ProbeTimeout / time.Millisecond),
			MinProbePoolWidth:      val.MinProbeWorkers,
			MaxProbePoolWidth:      val.MaxProbeWorkers,
			SearchPoolWidth:        val.SearchWorkers,
			MaxRedirects:           10,
			MaxCandidates:          val.MaxCandidates,
			SearchRatePerSecond:    2,
			VerdictCacheSize:       1024,
			VerdictCacheTTLMs:      600000,
			RunTimeoutMs:           60000,
			Language:               val.Language,
		},
		Quality: QualityConfig{Thresholds: quality.DefaultThresholds()},
		Search: SearchConfig{
			Provider: ProviderNone,
			Gemini:   GeminiConfig{Model: "gemini-2.5-flash"},
			OpenAI:   OpenAIConfig{Model: "gpt-4o-mini"},
		},
		Server: ServerConfig{Addr: ":8080", ShutdownTimeoutMs: 10000},
	}
}
