package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
)

const partSuffix = ".part"

// Result describes a completed download.
type Result struct {
	Bytes    int64
	Attempts int
	Duration time.Duration
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// Permanent reports whether retrying cannot change the outcome.
func (e *StatusError) Permanent() bool {
	if e.StatusCode < 400 || e.StatusCode >= 500 {
		return false
	}
	return e.StatusCode != http.StatusRequestTimeout && e.StatusCode != http.StatusTooManyRequests
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = strings.TrimSpace(ua)
	}
}

// WithMaxElapsedTime caps the total time spent across all attempts. Zero,
// the default, leaves download.max_attempts as the only limit.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(f *Fetcher) {
		if d >= 0 {
			f.maxElapsed = d
		}
	}
}

// Fetcher downloads audio files with retries.
type Fetcher struct {
	client         *http.Client
	userAgent      string
	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxElapsed     time.Duration
	logger         *slog.Logger
}

// NewFetcher builds a fetcher from download settings.
func NewFetcher(cfg config.Download, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Fetcher{
		client:         &http.Client{},
		timeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: time.Duration(cfg.InitialBackoffSeconds) * time.Second,
		maxBackoff:     time.Duration(cfg.MaxBackoffSeconds) * time.Second,
		logger:         logging.NewComponentLogger(logger, "download"),
	}
	if f.maxAttempts < 1 {
		f.maxAttempts = 1
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url into dest.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (Result, error) {
	ctx = services.WithStage(ctx, services.StageDownload)
	logger := logging.WithContext(ctx, f.logger)

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, fmt.Errorf("create audio directory: %w", err)
	}

	started := time.Now()
	attempts := 0
	operation := func() (int64, error) {
		attempts++
		n, err := f.attempt(ctx, url, dest)
		if err == nil {
			return n, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Permanent() {
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}

	bytes, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(f.newBackOff()),
		backoff.WithMaxTries(uint(f.maxAttempts)),
		backoff.WithMaxElapsedTime(f.maxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("download attempt failed; retrying",
				logging.String(logging.FieldEventType, "download_retry"),
				logging.Int("attempt", attempts),
				logging.Duration("wait", wait),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check network connectivity and the audio host"),
				logging.String(logging.FieldImpact, "episode download delayed"))
		}),
	)
	if err != nil {
		return Result{Attempts: attempts, Duration: time.Since(started)}, classify(ctx, url, err)
	}

	result := Result{Bytes: bytes, Attempts: attempts, Duration: time.Since(started)}
	logger.Info("audio downloaded",
		logging.Bytes("size", bytes),
		logging.Int("attempts", attempts),
		logging.Duration("elapsed", result.Duration.Round(time.Millisecond)))
	return result, nil
}

func (f *Fetcher) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.initialBackoff
	bo.MaxInterval = f.maxBackoff
	bo.Multiplier = 2
	return bo
}

func (f *Fetcher) attempt(ctx context.Context, url, dest string) (int64, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return writePart(resp.Body, dest)
}

// writePart streams body into dest+".part" and renames it onto dest once
// complete. The partial file is removed on any failure.
func writePart(body io.Reader, dest string) (int64, error) {
	part := dest + partSuffix
	out, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("open partial file: %w", err))
	}
	cleanup := func() {
		_ = out.Close()
		_ = os.Remove(part)
	}

	n, err := io.Copy(out, body)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("write audio: %w", err)
	}
	if err := out.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("sync audio: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("close audio: %w", err)
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return 0, backoff.Permanent(fmt.Errorf("finalize audio: %w", err))
	}
	return n, nil
}

func classify(ctx context.Context, url string, err error) error {
	if ctx.Err() != nil {
		return services.Wrap(services.ErrTransient, services.StageDownload, "fetch audio", "canceled", err)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, services.StageDownload, "fetch audio", url, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, services.StageDownload, "fetch audio", url, err)
	}
	return services.Wrap(services.ErrTransient, services.StageDownload, "fetch audio", url, err)
}
