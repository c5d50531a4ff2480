package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegCommand is the decoder both transcription backends shell out to.
const FFmpegCommand = "ffmpeg"

// Requirement names an external binary podscribe shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement after PATH resolution. Command holds the resolved
// path when the binary was found.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Check resolves a single requirement.
func Check(req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	req.Description = strings.TrimSpace(req.Description)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// CheckBinaries resolves each requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

// FFmpeg is the audio decoder requirement. Whisper and WhisperX invoke it by
// name, so only PATH is consulted.
func FFmpeg() Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     FFmpegCommand,
		Description: "Used by the transcription backend to decode audio",
	}
}
