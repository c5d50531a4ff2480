package transcription

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/logging"
	"podscribe/internal/services"
)

// whisperEngine drives the openai-whisper command line.
type whisperEngine struct {
	binary   string
	model    string
	language string
	cuda     bool
	run      CommandRunner
	logger   *slog.Logger
}

type whisperPayload struct {
	Text string `json:"text"`
}

func (e *whisperEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrValidation, services.StageTranscribe, "transcribe", "audio path required", nil)
	}
	outputDir, cleanup, err := scratchDir()
	if err != nil {
		return "", err
	}
	defer cleanup()

	started := time.Now()
	if err := e.run(ctx, e.binary, e.buildArgs(audioPath, outputDir)...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, services.StageTranscribe, "whisper", e.model, err)
	}

	jsonPath := filepath.Join(outputDir, baseName(audioPath)+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, services.StageTranscribe, "whisper", "read output", err)
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", services.Wrap(services.ErrExternalTool, services.StageTranscribe, "whisper", "parse output", err)
	}

	text := strings.TrimSpace(payload.Text)
	logging.WithContext(ctx, e.logger).Debug("whisper transcription finished",
		logging.String("model", e.model),
		logging.Int("characters", len([]rune(text))),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return text, nil
}

func (e *whisperEngine) buildArgs(audioPath, outputDir string) []string {
	args := []string{
		audioPath,
		"--model", e.model,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--verbose", "False",
	}
	if e.language != "" {
		args = append(args, "--language", e.language)
	}
	if e.cuda {
		args = append(args, "--device", CUDADevice)
	}
	return args
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
