package history

import "time"

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Attempt statuses.
const (
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
	// AttemptSkipped marks an episode another run committed first.
	AttemptSkipped = "skipped"
)

// Run is one invocation of the processing pipeline.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Model      string
	Limit      int
	Status     string
	Attempted  int
	Succeeded  int
	Failed     int
	Total      int
	Error      string
}

// Duration returns the run's wall time, or zero while it is still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Attempt is one episode processed within a run.
type Attempt struct {
	RunID       string
	EpisodeID   string
	Title       string
	Status      string
	FailureKind string
	Error       string
	AudioBytes  int64
	Duration    time.Duration
	StartedAt   time.Time
}

// Outcome carries the final counters for a run.
type Outcome struct {
	Attempted int
	Succeeded int
	Failed    int
	Total     int
	Err       error
}
