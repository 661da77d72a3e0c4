package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventActivityEnter EventType = "activity_enter"
	EventActivityLeave EventType = "activity_leave"
	EventNavigation    EventType = "navigation"
	EventRollup        EventType = "rollup"
	EventSessionEnd    EventType = "session_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// ActivityEvent represents an activity becoming or ceasing to be current.
type ActivityEvent struct {
	EventBase
	ActivityID string `json:"activity_id"`
	Title      string `json:"title,omitempty"`
}

// NavigationEvent represents one processed navigation request.
type NavigationEvent struct {
	EventBase
	Request NavigationRequest `json:"request"`
	Target  string            `json:"target,omitempty"`
	Allowed bool              `json:"allowed"`
	Reason  string            `json:"reason,omitempty"`
}

// RollupEvent represents one completed rollup pass.
type RollupEvent struct {
	EventBase
	ActivityID string        `json:"activity_id"`
	Updated    int           `json:"updated"`
	Failed     int           `json:"failed,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// SessionEvent represents a session lifecycle transition.
type SessionEvent struct {
	EventBase
	State SessionState `json:"state"`
}

// LifecycleHooks defines callbacks for engine observability. All hooks are
// optional. They are invoked synchronously once the operation that raised
// them has released internal session state, so a hook may call back into the
// engine (for example to read State) without deadlocking.
type LifecycleHooks struct {
	OnActivityEnter func(context.Context, *ActivityEvent)
	OnActivityLeave func(context.Context, *ActivityEvent)
	OnNavigation    func(context.Context, *NavigationEvent)
	OnRollup        func(context.Context, *RollupEvent)
	OnSessionEnd    func(context.Context, *SessionEvent)
}
