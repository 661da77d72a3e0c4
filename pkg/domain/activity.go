package domain

import "time"

// SatisfiedStatus is the tri-state satisfaction value of an objective.
type SatisfiedStatus int

const (
	SatisfiedUnknown SatisfiedStatus = iota
	Satisfied
	NotSatisfied
)

func (s SatisfiedStatus) String() string {
	switch s {
	case Satisfied:
		return "satisfied"
	case NotSatisfied:
		return "notSatisfied"
	default:
		return "unknown"
	}
}

// AttemptState tracks completion progress of an activity attempt.
type AttemptState int

const (
	AttemptNotAttempted AttemptState = iota
	AttemptIncomplete
	AttemptCompleted
)

func (a AttemptState) String() string {
	switch a {
	case AttemptIncomplete:
		return "incomplete"
	case AttemptCompleted:
		return "completed"
	default:
		return "notAttempted"
	}
}

// ActivityState is the runtime delivery state of an activity.
type ActivityState int

const (
	ActivityInactive ActivityState = iota
	ActivityActive
	ActivitySuspended
)

func (s ActivityState) String() string {
	switch s {
	case ActivityActive:
		return "active"
	case ActivitySuspended:
		return "suspended"
	default:
		return "inactive"
	}
}

// Objective is the primary objective of an activity.
type Objective struct {
	ID           string
	Satisfied    SatisfiedStatus
	Measure      float64 // normalized to [-1, 1], meaningful only when MeasureKnown
	MeasureKnown bool
	Mapping      *ObjectiveMapping
}

// ObjectiveMapping links a local objective to a global objective entry via
// per-property read/write flags.
type ObjectiveMapping struct {
	GlobalID       string
	ReadSatisfied  bool
	WriteSatisfied bool
	ReadMeasure    bool
	WriteMeasure   bool
}

// ControlMode holds the navigation permission flags of an activity scope.
// An activity without its own record inherits the record of the nearest
// ancestor that defines one; the record is taken whole, never merged
// field-by-field.
type ControlMode struct {
	Choice      bool
	ChoiceExit  bool
	Flow        bool
	ForwardOnly bool
}

// DefaultControlMode is applied when no ancestor defines a record.
// Per specification defaults, flow and choice are enabled.
func DefaultControlMode() ControlMode {
	return ControlMode{Choice: true, ChoiceExit: true, Flow: true}
}

// RollupPolicy decides which children participate in status rollup.
type RollupPolicy int

const (
	PolicyAlways RollupPolicy = iota
	PolicyIfAttempted
)

func (p RollupPolicy) String() string {
	if p == PolicyIfAttempted {
		return "ifAttempted"
	}
	return "always"
}

// RollupConfig configures how an activity contributes to its parent's rollup.
type RollupConfig struct {
	// ObjectiveWeight scales this activity's measure in the parent's weighted
	// average. Zero means "unset" and falls back to DefaultObjectiveWeight.
	ObjectiveWeight float64

	RequiredForSatisfied    RollupPolicy
	RequiredForNotSatisfied RollupPolicy
	RequiredForCompleted    RollupPolicy
	RequiredForIncomplete   RollupPolicy
}

// Weight returns the effective objective weight.
func (c RollupConfig) Weight() float64 {
	if c.ObjectiveWeight == 0 {
		return DefaultObjectiveWeight
	}
	return c.ObjectiveWeight
}

// Activity is a node of the activity tree. The tree stores activities in a
// flat arena; Parent and Children are indices into that arena, not pointers,
// so the structure stays acyclic by construction and cheap to snapshot.
type Activity struct {
	Index    int
	Parent   int // -1 for the root
	Children []int

	ID          string
	Title       string
	ResourceRef string // non-empty means the activity is launchable
	Visible     bool

	Objective Objective
	PreRules  []Rule
	PostRules []Rule
	ExitRules []Rule
	Control   *ControlMode // nil inherits from the nearest defining ancestor
	Rollup    RollupConfig

	AttemptLimit int           // 0 = unlimited
	TimeLimit    time.Duration // 0 = none

	// Runtime state, owned by the session.
	State            ActivityState
	AttemptState     AttemptState
	AttemptCount     int
	AttemptStartedAt time.Time
}

// IsLeaf reports whether the activity has no children.
func (a *Activity) IsLeaf() bool { return len(a.Children) == 0 }

// IsLaunchable reports whether the activity can be delivered. Clusters are
// never launchable regardless of their resource reference.
func (a *Activity) IsLaunchable() bool { return a.IsLeaf() && a.ResourceRef != "" }

// Attempted reports whether the activity has at least one attempt.
func (a *Activity) Attempted() bool { return a.AttemptCount > 0 }

// Info is the read-only view of an activity exposed to callers.
type Info struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	ResourceRef string `json:"resource_ref,omitempty"`
	Launchable  bool   `json:"launchable"`
}

// InfoOf builds the exposed view for an activity.
func InfoOf(a *Activity) Info {
	return Info{
		ID:          a.ID,
		Title:       a.Title,
		ResourceRef: a.ResourceRef,
		Launchable:  a.IsLaunchable(),
	}
}

// TreeStats summarizes a constructed activity tree.
type TreeStats struct {
	TotalActivities      int `json:"total_activities"`
	MaxDepth             int `json:"max_depth"`
	LeafActivities       int `json:"leaf_activities"`
	LaunchableActivities int `json:"launchable_activities"`
}

// GlobalObjective is one entry of the session's global objective table.
type GlobalObjective struct {
	Satisfied    SatisfiedStatus `json:"satisfied"`
	Measure      float64         `json:"measure"`
	MeasureKnown bool            `json:"measure_known"`
}
