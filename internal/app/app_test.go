package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceGuard/internal/config"
	"SourceGuard/internal/domain"
	"SourceGuard/internal/usecase"
)

func loadConfig(t *testing.T, yaml string) config.Config {
	t.Helper()
	for _, key := range []string{"DATABASE_DSN", "GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "SEARCH_PROVIDER", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SOURCE_GUARD_CONFIG", path)
	return config.Load()
}

func TestCheckEndToEnd(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/report?utm_source=x", http.StatusMovedPermanently)
		case "/report":
			fmt.Fprint(w, "<html><head><title>Customer Service Benchmark 2025</title></head><body>ok</body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	cfg := loadConfig(t, "validation:\n  minValidSources: 1\n  probeTimeoutMs: 2000\n")
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	draft := domain.ContentDraft{
		PrimaryKeyword:  "customer service",
		Headline:        "Customer service benchmarks",
		MetaTitle:       "Customer service benchmarks",
		MetaDescription: "What the numbers say.",
		Sections: []domain.Section{
			{Title: "Numbers", HTMLBody: "<p>Response times fell [1].</p>"},
			{Title: "Gaps", HTMLBody: "<p>Some links are dead [2].</p>"},
		},
		Sources: []domain.CandidateSource{
			{URL: site.URL + "/old", Title: "Benchmark", Origin: domain.OriginModel},
			{URL: site.URL + "/gone", Title: "Dead", Origin: domain.OriginModel},
		},
	}

	res, err := a.Check(context.Background(), draft)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, site.URL+"/report", res.Sources[0].URL)
	assert.Len(t, res.Verdicts, 2)

	// [2] now points past the single surviving source.
	assert.Equal(t, usecase.StateRejected, res.State)
	assert.False(t, res.Report.Passed)

	assert.NotNil(t, a.Server())
}

func TestNewRejectsIncompleteSearchConfig(t *testing.T) {
	cfg := loadConfig(t, "search:\n  provider: http\n")
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = loadConfig(t, "search:\n  provider: gemini\n")
	_, err = New(context.Background(), cfg, nil)
	assert.Error(t, err)
}
