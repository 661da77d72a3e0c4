package domain

import "errors"

// Fatal construction errors. These reject initialization entirely.
var (
	// ErrEmptyTree is returned when the default organization has no items.
	ErrEmptyTree = errors.New("default organization has no items")

	// ErrDuplicateIdentifier is returned when two activities share an ID.
	ErrDuplicateIdentifier = errors.New("duplicate activity identifier")

	// ErrCycleDetected is returned when item nesting exceeds MaxTreeDepth,
	// which only happens with cyclic or degenerate item definitions.
	ErrCycleDetected = errors.New("cyclic or excessively nested item structure")
)

// Expected domain errors. These surface as structured results and never
// corrupt session state.
var (
	ErrActivityNotFound         = errors.New("activity not found")
	ErrInvalidNavigationRequest = errors.New("invalid navigation request")
	ErrNavigationBlocked        = errors.New("navigation blocked")
	ErrSessionNotActive         = errors.New("session not active")
	ErrMaxDepthExceeded         = errors.New("maximum sequencing depth exceeded")
)

// ErrSessionNotFound is returned by snapshot stores when a session ID is
// unknown.
var ErrSessionNotFound = errors.New("session not found")

// ErrorCode classifies an expected failure for API consumers.
type ErrorCode string

const (
	CodeNone              ErrorCode = ""
	CodeEmptyTree         ErrorCode = "EmptyTree"
	CodeDuplicateID       ErrorCode = "DuplicateIdentifier"
	CodeActivityNotFound  ErrorCode = "ActivityNotFound"
	CodeInvalidRequest    ErrorCode = "InvalidNavigationRequest"
	CodeNavigationBlocked ErrorCode = "NavigationBlocked"
	CodeSessionNotActive  ErrorCode = "SessionNotActive"
	CodeMaxDepthExceeded  ErrorCode = "MaxDepthExceeded"
	CodeInternal          ErrorCode = "Internal"
)

// CodeOf maps a domain error to its taxonomy code.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrEmptyTree):
		return CodeEmptyTree
	case errors.Is(err, ErrDuplicateIdentifier):
		return CodeDuplicateID
	case errors.Is(err, ErrActivityNotFound):
		return CodeActivityNotFound
	case errors.Is(err, ErrInvalidNavigationRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrNavigationBlocked):
		return CodeNavigationBlocked
	case errors.Is(err, ErrSessionNotActive):
		return CodeSessionNotActive
	case errors.Is(err, ErrMaxDepthExceeded):
		return CodeMaxDepthExceeded
	default:
		return CodeInternal
	}
}
