package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SourceGuard/internal/app"
	"SourceGuard/internal/config"
	"SourceGuard/internal/domain"
	"SourceGuard/internal/logging"
	"SourceGuard/internal/usecase"
)

// exitRejected is returned when the draft fails a critical rule.
const exitRejected = 2

var draftPath string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one draft through the pipeline and print the result as JSON",
	Long: `Run one draft through the pipeline and print the result as JSON.

The draft is read from --draft (or stdin when the path is "-"). The command
exits with status 2 when the draft is rejected.`,
	Example: "  sourceguard check --draft draft.json > result.json",
	RunE:    runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&draftPath, "draft", "d", "", "path to the draft JSON file (- for stdin)")
	_ = checkCmd.MarkFlagRequired("draft")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	draft, err := readDraft(draftPath, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg := config.Load()
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging.Level)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	return check(ctx, application, draft, cmd.OutOrStdout())
}

type checker interface {
	Check(ctx context.Context, draft domain.ContentDraft) (usecase.Result, error)
}

func check(ctx context.Context, c checker, draft domain.ContentDraft, out io.Writer) error {
	res, err := c.Check(ctx, draft)
	if err != nil {
		return fmt.Errorf("check draft: %w", err)
	}
	if err := writeResult(out, res); err != nil {
		return err
	}
	if res.State == usecase.StateRejected {
		return exitCodeError{code: exitRejected}
	}
	return nil
}

// checkOutput is the CLI's JSON shape.
type checkOutput struct {
	RunID    string                   `json:"runId"`
	State    usecase.State            `json:"state"`
	Draft    domain.ContentDraft      `json:"draft"`
	Report   domain.QualityReport     `json:"report"`
	Sources  []domain.ValidatedSource `json:"sources"`
	Verdicts []domain.SourceVerdict   `json:"verdicts"`
}

func writeResult(w io.Writer, res usecase.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(checkOutput{
		RunID:    res.RunID,
		State:    res.State,
		Draft:    res.Draft,
		Report:   res.Report,
		Sources:  res.Sources,
		Verdicts: res.Verdicts,
	}); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func readDraft(path string, stdin io.Reader) (domain.ContentDraft, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return domain.ContentDraft{}, fmt.Errorf("open draft: %w", err)
		}
		defer f.Close()
		r = f
	}

	var draft domain.ContentDraft
	if err := json.NewDecoder(r).Decode(&draft); err != nil {
		return domain.ContentDraft{}, fmt.Errorf("decode draft: %w", err)
	}
	return draft, nil
}
