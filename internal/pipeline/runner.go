package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/download"
	"podscribe/internal/feed"
	"podscribe/internal/fileutil"
	"podscribe/internal/history"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/services"
	"podscribe/internal/store"
	"podscribe/internal/transcription"
)

// Fetcher retrieves audio to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) (download.Result, error)
}

// Summary reports the counters for one run.
type Summary struct {
	Attempted int
	Succeeded int
	Failed    int
	// Skipped counts episodes another run committed while this one worked.
	Skipped int
	// Total is the archive size after the run.
	Total    int
	Duration time.Duration
}

// Deps wires the runner's collaborators. Journal, Notifier, Logger, and Out
// fall back to no-op implementations when nil.
type Deps struct {
	Config   *config.Config
	Fetcher  Fetcher
	Loader   transcription.Loader
	Archive  *store.Archive
	Ledger   *store.Ledger
	Journal  history.Journal
	Notifier notifications.Service
	Logger   *slog.Logger
	Out      io.Writer
	RunID    string
}

// Runner processes episode candidates sequentially.
type Runner struct {
	cfg      *config.Config
	fetcher  Fetcher
	loader   transcription.Loader
	archive  *store.Archive
	ledger   *store.Ledger
	journal  history.Journal
	notifier notifications.Service
	logger   *slog.Logger
	out      io.Writer
	runID    string

	model       string
	transcriber transcription.Transcriber
}

// NewRunner validates deps and builds a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("pipeline: config is required")
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case deps.Loader == nil:
		return nil, errors.New("pipeline: transcription loader is required")
	case deps.Archive == nil || deps.Ledger == nil:
		return nil, errors.New("pipeline: archive and ledger are required")
	}
	r := &Runner{
		cfg:      deps.Config,
		fetcher:  deps.Fetcher,
		loader:   deps.Loader,
		archive:  deps.Archive,
		ledger:   deps.Ledger,
		journal:  deps.Journal,
		notifier: deps.Notifier,
		logger:   logging.NewComponentLogger(deps.Logger, "pipeline"),
		out:      deps.Out,
		runID:    deps.RunID,
	}
	if r.journal == nil {
		r.journal = history.Noop{}
	}
	if r.notifier == nil {
		r.notifier = notifications.NewService(&config.Config{})
	}
	if r.out == nil {
		r.out = io.Discard
	}
	return r, nil
}

// Run processes up to maxToProcess candidates in order. Per-episode failures
// are counted in the summary; the returned error is non-nil only for a
// persistence failure or cancellation.
func (r *Runner) Run(ctx context.Context, candidates []feed.Candidate, model string, maxToProcess int) (Summary, error) {
	started := time.Now()
	if r.runID != "" {
		ctx = services.WithRunID(ctx, r.runID)
	}
	logger := logging.WithContext(ctx, r.logger)

	count := len(candidates)
	if maxToProcess >= 0 && maxToProcess < count {
		count = maxToProcess
	}
	r.model = model

	if r.runID != "" {
		if err := r.journal.StartRun(ctx, history.Run{ID: r.runID, StartedAt: started, Model: model, Limit: maxToProcess}); err != nil {
			r.journalFailed(logger, "start run", err)
		}
	}

	summary := Summary{}
	var runErr error
	for idx := 0; idx < count; idx++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		candidate := candidates[idx]
		fmt.Fprintf(r.out, "Processing %d/%d: %s\n", idx+1, count, candidate.Title)

		summary.Attempted++
		result, err := r.processEpisode(ctx, candidate, idx+1, count)
		if err != nil {
			runErr = err
			break
		}
		switch result {
		case episodeSucceeded:
			summary.Succeeded++
		case episodeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	summary.Total = r.archive.Count()
	summary.Duration = time.Since(started)

	if r.runID != "" {
		outcome := history.Outcome{
			Attempted: summary.Attempted,
			Succeeded: summary.Succeeded,
			Failed:    summary.Failed,
			Total:     summary.Total,
			Err:       runErr,
		}
		if err := r.journal.FinishRun(context.WithoutCancel(ctx), r.runID, outcome); err != nil {
			r.journalFailed(logger, "finish run", err)
		}
	}

	if summary.Attempted > 0 && ctx.Err() == nil {
		if err := r.notifier.NotifyRunCompleted(ctx, summary.Succeeded, summary.Failed, summary.Duration); err != nil {
			r.notifyFailed(logger, err)
		}
	}

	logger.Info("run finished",
		logging.Int("attempted", summary.Attempted),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("total", summary.Total),
		logging.Duration("elapsed", summary.Duration.Round(time.Millisecond)))
	return summary, runErr
}

type episodeResult int

const (
	episodeFailed episodeResult = iota
	episodeSucceeded
	episodeSkipped
)

// processEpisode returns episodeFailed for an isolated episode failure and a
// non-nil error only when the run must stop.
func (r *Runner) processEpisode(ctx context.Context, candidate feed.Candidate, index, count int) (episodeResult, error) {
	ctx = services.WithEpisodeID(ctx, candidate.ID)
	logger := logging.WithContext(ctx, r.logger).With(
		logging.Int(logging.FieldEpisodeIndex, index),
		logging.Int(logging.FieldEpisodeCount, count),
	)
	started := time.Now()
	attempt := history.Attempt{
		RunID:     r.runID,
		EpisodeID: candidate.ID,
		Title:     candidate.Title,
		StartedAt: started,
	}

	audioBytes, transcript, err := r.acquireAndTranscribe(ctx, logger, candidate)
	attempt.AudioBytes = audioBytes
	if err != nil {
		attempt.Status = history.AttemptFailed
		attempt.FailureKind = services.FailureKind(err)
		attempt.Error = err.Error()
		attempt.Duration = time.Since(started)
		r.recordAttempt(ctx, logger, attempt)
		r.reportFailure(ctx, logger, candidate, err)
		return episodeFailed, nil
	}

	record := store.NewEpisode(candidate, transcript, r.cfg.Episodes.DefaultTags)
	committed, err := r.commit(services.WithStage(ctx, services.StageCommit), record)
	if err != nil {
		attempt.Status = history.AttemptFailed
		attempt.FailureKind = services.FailureKind(err)
		attempt.Error = err.Error()
		attempt.Duration = time.Since(started)
		r.recordAttempt(ctx, logger, attempt)
		return episodeFailed, err
	}
	if !committed {
		attempt.Status = history.AttemptSkipped
		attempt.Duration = time.Since(started)
		r.recordAttempt(ctx, logger, attempt)
		fmt.Fprintf(r.out, "Skipped (already processed): %s\n", candidate.Title)
		return episodeSkipped, nil
	}

	attempt.Status = history.AttemptSucceeded
	attempt.Duration = time.Since(started)
	r.recordAttempt(ctx, logger, attempt)

	fmt.Fprintf(r.out, "Done: %s\n", candidate.Title)
	logger.Info("episode transcribed",
		logging.String("title", candidate.Title),
		logging.String("date", candidate.Date),
		logging.Int("transcript_chars", len([]rune(transcript))),
		logging.Duration("elapsed", attempt.Duration.Round(time.Millisecond)))
	if err := r.notifier.NotifyEpisodeTranscribed(ctx, candidate.Title, candidate.Date); err != nil {
		r.notifyFailed(logger, err)
	}
	return episodeSucceeded, nil
}

func (r *Runner) acquireAndTranscribe(ctx context.Context, logger *slog.Logger, candidate feed.Candidate) (int64, string, error) {
	audioPath := r.cfg.AudioPath(candidate.ID)

	exists, err := fileutil.Exists(audioPath)
	if err != nil {
		return 0, "", services.Wrap(services.ErrTransient, services.StageDownload, "stat audio", audioPath, err)
	}
	var audioBytes int64
	if exists {
		logger.Info("audio already present; skipping download",
			logging.String(logging.FieldStage, services.StageDownload),
			logging.String("path", audioPath))
	} else {
		result, err := r.fetcher.Fetch(services.WithStage(ctx, services.StageDownload), candidate.AudioURL, audioPath)
		if err != nil {
			return 0, "", err
		}
		audioBytes = result.Bytes
	}

	transcribeCtx := services.WithStage(ctx, services.StageTranscribe)
	transcriber, err := r.transcriberFor(transcribeCtx)
	if err != nil {
		return audioBytes, "", err
	}
	transcript, err := transcriber.Transcribe(transcribeCtx, audioPath)
	if err != nil {
		return audioBytes, "", err
	}
	return audioBytes, transcript, nil
}

// transcriberFor loads the model once per run. A failed load is retried for
// the next episode.
func (r *Runner) transcriberFor(ctx context.Context) (transcription.Transcriber, error) {
	if r.transcriber != nil {
		return r.transcriber, nil
	}
	t, err := r.loader.Load(ctx, r.model)
	if err != nil {
		return nil, err
	}
	r.transcriber = t
	return t, nil
}

// commit prepends the record and marks the fingerprint processed, writing the
// archive before the ledger. It reports false when the ledger already holds
// the fingerprint and nothing was written.
func (r *Runner) commit(ctx context.Context, record store.Episode) (bool, error) {
	logger := logging.WithContext(ctx, r.logger)
	if r.ledger.Contains(record.ID) {
		logger.Warn("episode already committed; skipping",
			logging.String(logging.FieldEventType, "commit_skipped"),
			logging.String(logging.FieldErrorHint, "another run or a duplicate feed entry recorded this episode first"),
			logging.String(logging.FieldImpact, "transcript discarded"))
		return false, nil
	}

	if _, archived := r.archive.Get(record.ID); archived {
		logger.Info("episode already archived; repairing ledger")
	} else {
		if err := r.archive.Prepend(record); err != nil {
			return false, fmt.Errorf("archive episode: %w", err)
		}
		if err := r.archive.Save(); err != nil {
			return false, fmt.Errorf("persist archive: %w", err)
		}
	}
	if _, err := r.ledger.Add(record.ID); err != nil {
		return false, fmt.Errorf("record processed id: %w", err)
	}
	if err := r.ledger.Save(); err != nil {
		return false, fmt.Errorf("persist ledger: %w", err)
	}
	return true, nil
}

func (r *Runner) reportFailure(ctx context.Context, logger *slog.Logger, candidate feed.Candidate, err error) {
	fmt.Fprintf(r.out, "Error processing %s: %v\n", candidate.Title, err)
	logging.ErrorWithContext(logger, "episode failed", "episode_failed",
		logging.String("title", candidate.Title),
		logging.String(logging.FieldErrorKind, services.FailureKind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the episode will be retried on the next run"),
		logging.String(logging.FieldImpact, "episode not archived"))
	if ctx.Err() != nil {
		return
	}
	if notifyErr := r.notifier.NotifyEpisodeFailed(ctx, candidate.Title, err); notifyErr != nil {
		r.notifyFailed(logger, notifyErr)
	}
}

func (r *Runner) recordAttempt(ctx context.Context, logger *slog.Logger, attempt history.Attempt) {
	if r.runID == "" {
		return
	}
	if err := r.journal.RecordAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		r.journalFailed(logger, "record attempt", err)
	}
}

func (r *Runner) journalFailed(logger *slog.Logger, operation string, err error) {
	logging.WarnWithContext(logger, "history journal write failed", "history_write_failed",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions on the history database"),
		logging.String(logging.FieldImpact, "run history incomplete"))
}

func (r *Runner) notifyFailed(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the ntfy topic URL"),
		logging.String(logging.FieldImpact, "notification not delivered"))
}
