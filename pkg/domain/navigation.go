package domain

// NavigationRequest identifies a navigation request kind.
type NavigationRequest string

const (
	NavStart      NavigationRequest = "start"
	NavResumeAll  NavigationRequest = "resumeAll"
	NavContinue   NavigationRequest = "continue"
	NavPrevious   NavigationRequest = "previous"
	NavChoice     NavigationRequest = "choice"
	NavExit       NavigationRequest = "exit"
	NavExitAll    NavigationRequest = "exitAll"
	NavSuspendAll NavigationRequest = "suspendAll"
	NavAbandon    NavigationRequest = "abandon"
	NavAbandonAll NavigationRequest = "abandonAll"
)

var navigationRequests = map[NavigationRequest]struct{}{
	NavStart: {}, NavResumeAll: {}, NavContinue: {}, NavPrevious: {},
	NavChoice: {}, NavExit: {}, NavExitAll: {}, NavSuspendAll: {},
	NavAbandon: {}, NavAbandonAll: {},
}

// ParseNavigationRequest validates a request kind received over the wire.
func ParseNavigationRequest(s string) (NavigationRequest, bool) {
	req := NavigationRequest(s)
	_, ok := navigationRequests[req]
	return req, ok
}

// NeedsTarget reports whether the request kind requires a target activity.
func (r NavigationRequest) NeedsTarget() bool { return r == NavChoice }
