package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
)

// DefaultModel is used when no model name is supplied.
const DefaultModel = "base"

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Loader prepares a Transcriber for a named model.
type Loader interface {
	Load(ctx context.Context, model string) (Transcriber, error)
}

// CommandRunner executes an external command and returns its combined output
// on failure.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Option customizes the loader.
type Option func(*loader)

// WithCommandRunner replaces process execution (for testing).
func WithCommandRunner(runner CommandRunner) Option {
	return func(l *loader) {
		if runner != nil {
			l.run = runner
		}
	}
}

// WithLookPath replaces binary discovery (for testing).
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(l *loader) {
		if lookPath != nil {
			l.lookPath = lookPath
		}
	}
}

type loader struct {
	cfg      config.Transcription
	logger   *slog.Logger
	run      CommandRunner
	lookPath func(string) (string, error)
}

// NewLoader returns a Loader for the configured backend.
func NewLoader(cfg config.Transcription, logger *slog.Logger, opts ...Option) (Loader, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.Backend {
	case config.BackendWhisper, config.BackendWhisperX:
	default:
		return nil, services.Wrap(services.ErrConfiguration, services.StageTranscribe, "select backend",
			fmt.Sprintf("unsupported backend %q", cfg.Backend), nil)
	}
	l := &loader{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "transcription"),
		lookPath: exec.LookPath,
	}
	l.run = l.execute
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Binary reports the executable the configured backend depends on.
func Binary(cfg config.Transcription) string {
	if cfg.Backend == config.BackendWhisperX {
		return UVXCommand
	}
	if cmd := strings.TrimSpace(cfg.WhisperCommand); cmd != "" {
		return cmd
	}
	return "whisper"
}

// Load verifies the backend binary is available and binds model.
func (l *loader) Load(ctx context.Context, model string) (Transcriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	binary := Binary(l.cfg)
	if _, err := l.lookPath(binary); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, services.StageTranscribe, "load model",
			fmt.Sprintf("%s not found in PATH", binary), err)
	}

	l.logger.Debug("transcription backend ready",
		logging.String("backend", l.cfg.Backend),
		logging.String("model", model),
		logging.String("binary", binary))

	if l.cfg.Backend == config.BackendWhisperX {
		return &whisperXEngine{
			model:    model,
			language: strings.ToLower(strings.TrimSpace(l.cfg.Language)),
			cuda:     l.cfg.CUDAEnabled,
			vad:      l.cfg.WhisperXVADMethod,
			hfToken:  l.cfg.WhisperXHFToken,
			run:      l.run,
			logger:   l.logger,
		}, nil
	}
	return &whisperEngine{
		binary:   binary,
		model:    model,
		language: strings.ToLower(strings.TrimSpace(l.cfg.Language)),
		cuda:     l.cfg.CUDAEnabled,
		run:      l.run,
		logger:   l.logger,
	}, nil
}

// execute runs a command, folding its trimmed output into any failure.
func (l *loader) execute(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// scratchDir creates a temporary output directory for one transcription.
func scratchDir() (string, func(), error) {
	dir, err := os.MkdirTemp("", "podscribe-transcribe-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}
