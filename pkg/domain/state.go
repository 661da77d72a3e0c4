package domain

import "time"

// SessionState is the lifecycle state of a sequencing session.
type SessionState string

const (
	SessionNotStarted SessionState = "notStarted"
	SessionActive     SessionState = "active"
	SessionEnded      SessionState = "ended"
)

// ProgressUpdate carries a progress report from the runtime layer. Nil fields
// leave the corresponding activity state untouched.
type ProgressUpdate struct {
	Completed *bool    `json:"completed,omitempty"`
	Satisfied *bool    `json:"satisfied,omitempty"`
	Measure   *float64 `json:"measure,omitempty"`
}

// InitResult is the outcome of initializing a session.
type InitResult struct {
	Success   bool      `json:"success"`
	SessionID string    `json:"session_id,omitempty"`
	Stats     TreeStats `json:"tree_stats"`
	Code      ErrorCode `json:"code,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// NavigationResult is the outcome of a navigation request.
type NavigationResult struct {
	Success   bool                `json:"success"`
	Code      ErrorCode           `json:"code,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Target    *Info               `json:"target,omitempty"`
	Available []NavigationRequest `json:"available_navigation"`
}

// RollupResult reports the outcome of one rollup pass. Failed maps activity
// IDs to the failure reason; failures never abort the remaining chain.
type RollupResult struct {
	Updated []string          `json:"updated"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// ProgressResult is the outcome of a progress update.
type ProgressResult struct {
	Success    bool         `json:"success"`
	Code       ErrorCode    `json:"code,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Rollup     RollupResult `json:"rollup"`
	PostAction RuleAction   `json:"-"`
	// PostActionName is the wire form of PostAction.
	PostActionName string `json:"post_action,omitempty"`
}

// TerminateResult is the outcome of ending a session.
type TerminateResult struct {
	Success    bool         `json:"success"`
	FinalState SessionState `json:"final_state"`
}

// SessionSnapshot is the externally visible view of session state.
type SessionSnapshot struct {
	SessionState      SessionState               `json:"session_state"`
	CurrentActivityID string                     `json:"current_activity,omitempty"`
	Available         []NavigationRequest        `json:"available_navigation"`
	GlobalObjectives  map[string]GlobalObjective `json:"global_objectives"`
	Stats             TreeStats                  `json:"tree_stats"`
}

// ActivityRecord is the persistable runtime state of one activity.
type ActivityRecord struct {
	State        ActivityState   `json:"state"`
	AttemptState AttemptState    `json:"attempt_state"`
	AttemptCount int             `json:"attempt_count"`
	Satisfied    SatisfiedStatus `json:"satisfied"`
	Measure      float64         `json:"measure"`
	MeasureKnown bool            `json:"measure_known"`
}

// Snapshot is the full persistable state of a session, suitable for a
// snapshot store and for resuming via resumeAll.
type Snapshot struct {
	SessionID         string                     `json:"session_id"`
	SessionState      SessionState               `json:"session_state"`
	Browse            bool                       `json:"browse,omitempty"`
	CurrentActivityID string                     `json:"current_activity,omitempty"`
	SuspendedActivity string                     `json:"suspended_activity,omitempty"`
	Activities        map[string]ActivityRecord  `json:"activities"`
	GlobalObjectives  map[string]GlobalObjective `json:"global_objectives"`
	StartedAt         time.Time                  `json:"started_at"`
}
