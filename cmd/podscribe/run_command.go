package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"podscribe/internal/download"
	"podscribe/internal/feed"
	"podscribe/internal/history"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/pipeline"
	"podscribe/internal/runlock"
	"podscribe/internal/transcription"
)

type runOptions struct {
	limit int
	model string
	list  bool
}

func (o runOptions) validate() error {
	if o.limit < 0 {
		return fmt.Errorf("--limit must be zero or greater, got %d", o.limit)
	}
	return nil
}

// scanCandidates fetches the feed and returns unprocessed entries, reading
// limit plus the configured lookahead so already processed entries near the
// head do not starve the run.
func scanCandidates(ctx context.Context, cmdCtx *commandContext, seen feed.Seen, limit int) ([]feed.Candidate, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return nil, err
	}
	scanner := feed.NewScanner(cfg.Feed, logger)
	return scanner.Scan(ctx, cfg.Feed.URL, limit+cfg.Feed.Lookahead, seen)
}

func listNewEpisodes(cmd *cobra.Command, cmdCtx *commandContext, opts runOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	ledger, err := cmdCtx.openLedger()
	if err != nil {
		return err
	}
	candidates, err := scanCandidates(cmd.Context(), cmdCtx, ledger, opts.limit)
	if err != nil {
		return err
	}
	printCandidates(cmd.OutOrStdout(), candidates, shouldColorize(cmd.OutOrStdout()))
	return nil
}

func printCandidates(out io.Writer, candidates []feed.Candidate, tty bool) {
	fmt.Fprintf(out, "Found %d new episodes:\n", len(candidates))
	if len(candidates) == 0 {
		return
	}
	if tty {
		rows := make([][]string, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, []string{c.Date, c.ID, c.Title})
		}
		fmt.Fprintln(out, renderTable([]string{"Date", "ID", "Title"}, rows, nil))
		return
	}
	for _, c := range candidates {
		fmt.Fprintf(out, "  - [%s] %s\n", c.Date, c.Title)
	}
}

func processNewEpisodes(cmd *cobra.Command, cmdCtx *commandContext, opts runOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock, err := runlock.Acquire(cfg.LockPath())
	if err != nil {
		return err
	}
	defer lock.Release()

	ledger, err := cmdCtx.openLedger()
	if err != nil {
		return err
	}
	archive, err := cmdCtx.openArchive()
	if err != nil {
		return err
	}

	candidates, err := scanCandidates(ctx, cmdCtx, ledger, opts.limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(candidates) == 0 || opts.limit == 0 {
		fmt.Fprintln(out, "No new episodes to process")
		return nil
	}

	model := strings.TrimSpace(opts.model)
	if model == "" {
		model = cfg.Transcription.Model
	}
	loader, err := transcription.NewLoader(cfg.Transcription, logger)
	if err != nil {
		return err
	}

	journal, err := history.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.path in the config"),
			logging.String(logging.FieldImpact, "this run will not be journaled"))
		journal = history.Noop{}
	}
	defer journal.Close()

	runner, err := pipeline.NewRunner(pipeline.Deps{
		Config:   cfg,
		Fetcher:  download.NewFetcher(cfg.Download, logger, download.WithUserAgent(cfg.Feed.UserAgent)),
		Loader:   loader,
		Archive:  archive,
		Ledger:   ledger,
		Journal:  journal,
		Notifier: notifications.NewService(cfg),
		Logger:   logger,
		Out:      out,
		RunID:    uuid.NewString(),
	})
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx, candidates, model, opts.limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(out, "Interrupted")
		}
		return err
	}
	fmt.Fprintf(out, "Completed! %d total episodes\n", summary.Total)
	return nil
}
