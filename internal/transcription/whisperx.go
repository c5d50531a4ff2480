package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/logging"
	"podscribe/internal/services"
)

// WhisperX invocation constants.
const (
	UVXCommand        = "uvx"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// whisperXEngine drives WhisperX through uvx.
type whisperXEngine struct {
	model    string
	language string
	cuda     bool
	vad      string
	hfToken  string
	run      CommandRunner
	logger   *slog.Logger
}

// Segment is one transcribed span from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

func (e *whisperXEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrValidation, services.StageTranscribe, "transcribe", "audio path required", nil)
	}
	outputDir, cleanup, err := scratchDir()
	if err != nil {
		return "", err
	}
	defer cleanup()

	started := time.Now()
	if err := e.run(ctx, UVXCommand, e.buildArgs(audioPath, outputDir)...); err != nil {
		return "", services.Wrap(services.ErrExternalTool, services.StageTranscribe, "whisperx", e.model, err)
	}

	segments, err := LoadSegments(filepath.Join(outputDir, baseName(audioPath)+".json"))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, services.StageTranscribe, "whisperx", "read output", err)
	}
	text := JoinSegments(segments)
	logging.WithContext(ctx, e.logger).Debug("whisperx transcription finished",
		logging.String("model", e.model),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
	return text, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (e *whisperXEngine) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 32)

	if e.cuda {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", e.model,
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := e.vad
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && e.hfToken != "" {
		args = append(args, "--hf_token", e.hfToken)
	}

	if e.language != "" {
		args = append(args, "--language", e.language)
	}

	if e.cuda {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}

// JoinSegments concatenates trimmed, non-empty segment texts with spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
