package domain

const (
	// DefaultObjectiveWeight is used for measure rollup when an activity does
	// not configure its own weight.
	DefaultObjectiveWeight = 1.0

	// DefaultMaxSequencingDepth bounds re-entrant navigation triggered by
	// sequencing rule actions. Cyclic rule configurations hit this limit
	// instead of recursing forever.
	DefaultMaxSequencingDepth = 10

	// MaxTreeDepth bounds activity nesting during tree construction. Item
	// graphs deeper than this are rejected as cyclic or malformed.
	MaxTreeDepth = 64
)
