// internal/pipeline/state.go
package pipeline

import (
	"time"

	"stylist-pipeline/internal/models"
)

// StageState is the per-request state machine. Transitions only ever move
// forward: Extracting -> Analyzing -> GeneratingPrimary -> GeneratingAngles
// -> Done, with any pre-angle failure jumping straight to Failed.
type StageState string

const (
	StateExtracting        StageState = "extracting"
	StateAnalyzing         StageState = "analyzing"
	StateGeneratingPrimary StageState = "generating_primary"
	StateGeneratingAngles  StageState = "generating_angles"
	StateDone              StageState = "done"
	StateFailed            StageState = "failed"
)

// Terminal reports whether the state ends the request.
func (s StageState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StatusUpdate is one transition pushed to observers, keyed by request id.
// Result rides along only on terminal states.
type StatusUpdate struct {
	RequestID string                 `json:"requestId"`
	State     StageState             `json:"state"`
	Result    *models.AnalysisResult `json:"result,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// terminalState maps a result status onto the state machine's exit.
func terminalState(status models.ResultStatus) StageState {
	if status == models.StatusFailed {
		return StateFailed
	}
	return StateDone
}
