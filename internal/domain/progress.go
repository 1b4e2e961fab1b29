package domain

// Status is the local state of a discovery.
type Status string

// Discovery states. Idle and Running are transient; the rest are terminal.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timeout"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether the status ends a discovery.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCanceled:
		return true
	default:
		return false
	}
}

// ProgressState is recomputed on every poll tick and never persisted.
type ProgressState struct {
	Found             int    `json:"found"`
	Analyzed          int    `json:"analyzed"`
	CompletionPercent int    `json:"completion_percent"`
	Status            Status `json:"status"`
}

// CompletionPercent computes progress toward a target count, capped
// at 100. A zero target is treated as 1 to avoid division by zero.
func CompletionPercent(found, target int) int {
	if target < 1 {
		target = 1
	}
	pct := (found*100 + target/2) / target
	if pct > 100 {
		pct = 100
	}
	return pct
}
