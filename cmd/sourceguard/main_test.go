package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceGuard/internal/domain"
	"SourceGuard/internal/usecase"
)

type stubChecker struct {
	res usecase.Result
	err error
}

func (s stubChecker) Check(ctx context.Context, draft domain.ContentDraft) (usecase.Result, error) {
	return s.res, s.err
}

func TestCheckPrintsResult(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	res := usecase.Result{
		RunID:  "run-1",
		State:  usecase.StateAccepted,
		Report: domain.NewReport(nil, nil),
		Sources: []domain.ValidatedSource{
			{URL: "https://a.org", Title: "A"},
		},
	}
	require.NoError(t, check(context.Background(), stubChecker{res: res}, domain.ContentDraft{}, &out))

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "accepted", got["state"])
	assert.Contains(t, got, "draft")
	assert.Contains(t, got, "report")
	assert.Contains(t, got, "verdicts")
	assert.NotContains(t, got, "transitions")
}

func TestCheckRejectedExitsTwo(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	res := usecase.Result{State: usecase.StateRejected}
	err := check(context.Background(), stubChecker{res: res}, domain.ContentDraft{}, &out)

	var exit exitCodeError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, exitRejected, exit.code)
	assert.Contains(t, out.String(), `"rejected"`)
}

func TestCheckSurfacesErrors(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := check(context.Background(), stubChecker{err: domain.ErrInvalidInput}, domain.ContentDraft{}, &out)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, out.String())
}

func TestReadDraft(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "draft.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"primaryKeyword":"ai","sources":[{"url":"https://a.org"}]}`), 0o600))

	d, err := readDraft(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "ai", d.PrimaryKeyword)
	require.Len(t, d.Sources, 1)

	d, err = readDraft("-", strings.NewReader(`{"headline":"H"}`))
	require.NoError(t, err)
	assert.Equal(t, "H", d.Headline)

	_, err = readDraft(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = readDraft("-", strings.NewReader("{"))
	assert.Error(t, err)
}
