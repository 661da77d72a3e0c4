package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/domain"
)

// Session orchestrates one sequencing session over an activity tree. It owns
// the tree and global objective table exclusively; the sequencer, navigator
// and rollup manager borrow access and never outlive it. All public
// operations are serialized by a single mutex, so at most one navigation
// resolution or rollup pass is in flight per session.
type Session struct {
	mu sync.Mutex

	id        string
	state     domain.SessionState
	startedAt time.Time

	tree   *Tree
	seq    *Sequencer
	nav    *Navigator
	rollup *RollupManager

	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	maxDepth int
	clock    func() time.Time
	browse   bool

	// pending buffers hook invocations raised while the mutex is held; the
	// public operation that raised them delivers them after unlocking, so
	// hooks may call back into the session.
	pending []func(context.Context)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a structured logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithHooks registers lifecycle hooks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) { s.hooks = hooks }
}

// WithBrowseMode enables the permissive browse mode, bypassing control-mode
// and rule restrictions. Intended for inspection and QA, not normal delivery.
func WithBrowseMode(enabled bool) Option {
	return func(s *Session) { s.browse = enabled }
}

// WithMaxSequencingDepth bounds re-entrant sequencing dispatch.
func WithMaxSequencingDepth(depth int) Option {
	return func(s *Session) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithClock injects a time source, used by time-limit conditions.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(s *Session) { s.id = id }
}

// NewSession builds the activity tree from a manifest and wires the
// processing components. Construction failures (empty organization,
// duplicate identifiers, cyclic nesting) are fatal and non-recoverable.
func NewSession(m *domain.Manifest, opts ...Option) (*Session, error) {
	s := &Session{
		id:       uuid.NewString(),
		state:    domain.SessionNotStarted,
		logger:   logging.NewNop(),
		maxDepth: domain.DefaultMaxSequencingDepth,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id)

	tree, err := BuildTree(m, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity tree: %w", err)
	}
	s.tree = tree
	s.seq = NewSequencer(tree, s.logger, s.clock)
	s.nav = NewNavigator(tree, s.seq, s.browse, s.logger)
	s.rollup = NewRollupManager(tree, s.logger)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Initialize transitions the session from notStarted to active.
func (s *Session) Initialize(ctx context.Context) (domain.InitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SessionNotStarted {
		return domain.InitResult{
			Success: false,
			Code:    domain.CodeSessionNotActive,
			Reason:  fmt.Sprintf("session is %s, expected notStarted", s.state),
		}, nil
	}
	s.state = domain.SessionActive
	s.startedAt = s.clock()
	stats := s.tree.Stats()
	s.logger.Info("sequencing session initialized",
		"activities", stats.TotalActivities,
		"launchable", stats.LaunchableActivities,
		"max_depth", stats.MaxDepth)
	return domain.InitResult{Success: true, SessionID: s.id, Stats: stats}, nil
}

// Navigate processes one navigation request.
func (s *Session) Navigate(ctx context.Context, kind domain.NavigationRequest, target string) (domain.NavigationResult, error) {
	s.mu.Lock()

	var res domain.NavigationResult
	if _, ok := domain.ParseNavigationRequest(string(kind)); !ok {
		res = s.failNav(fmt.Errorf("%q: %w", kind, domain.ErrInvalidNavigationRequest))
	} else if s.state != domain.SessionActive {
		res = s.failNav(fmt.Errorf("session is %s: %w", s.state, domain.ErrSessionNotActive))
	} else {
		res = s.navigate(kind, target, 0)
	}
	s.emitNavigation(kind, target, res)

	events := s.takePending()
	s.mu.Unlock()

	deliver(ctx, events)
	return res, nil
}

// navigate resolves a request, applies pre-condition sequencing on the
// resolved target, and commits it as current. Re-issued requests from rule
// actions stay within the hop budget.
func (s *Session) navigate(kind domain.NavigationRequest, target string, depth int) domain.NavigationResult {
	if depth >= s.maxDepth {
		return s.failNav(fmt.Errorf("depth %d: %w", depth, domain.ErrMaxDepthExceeded))
	}

	res, err := s.nav.Process(kind, target)
	if err != nil {
		return s.failNav(err)
	}
	if res.Entered == nil {
		// State-flip request (exit family / suspendAll).
		s.afterExitRequest(kind)
		return domain.NavigationResult{Success: true, Available: s.available()}
	}

	entered := res.Entered
	launch := res.Target
	forward := kind != domain.NavPrevious

	for hops := 0; ; hops++ {
		if depth+hops >= s.maxDepth {
			return s.failNav(fmt.Errorf("depth %d: %w", depth+hops, domain.ErrMaxDepthExceeded))
		}
		if s.browse {
			break
		}

		pre := s.seq.EvaluatePreConditions(entered)
		switch pre.Action {
		case domain.ActionNone:
		case domain.ActionSkip:
			// Re-issue in the direction of travel, starting past the
			// skipped activity.
			var next *domain.Activity
			if forward {
				next = s.nav.NextAfter(entered)
			} else {
				next = s.nav.PreviousBefore(entered)
			}
			if next == nil {
				return s.failNav(fmt.Errorf("%w: all remaining activities skipped by sequencing rules", domain.ErrNavigationBlocked))
			}
			entered = next
			launch = nil
			continue
		case domain.ActionStopForwardTraversal:
			if forward {
				return s.failNav(fmt.Errorf("%w: blocked by sequencing rules (%s)", domain.ErrNavigationBlocked, pre.Reason))
			}
		default:
			// disabled, hiddenFromChoice and any post-only action reaching
			// here block delivery outright.
			return s.failNav(fmt.Errorf("%w: blocked by sequencing rules (%s)", domain.ErrNavigationBlocked, pre.Reason))
		}
		break
	}

	if launch == nil {
		re, err := s.nav.Resolve(entered)
		if err != nil {
			return s.failNav(err)
		}
		launch = re.Target
	}

	s.commit(launch)
	return domain.NavigationResult{
		Success:   true,
		Target:    ptrInfo(launch),
		Available: s.available(),
	}
}

// commit makes the delivered activity current, begins its attempt, and runs
// rollup from it.
func (s *Session) commit(target *domain.Activity) {
	if old := s.tree.Current(); old != nil && old.Index != target.Index {
		if old.State == domain.ActivityActive {
			old.State = domain.ActivityInactive
		}
		s.emitActivityLeave(old)
	}

	_ = s.tree.SetCurrent(target.ID)
	if target.State != domain.ActivityActive {
		target.State = domain.ActivityActive
		target.AttemptCount++
		target.AttemptStartedAt = s.clock()
		if target.AttemptState == domain.AttemptNotAttempted {
			target.AttemptState = domain.AttemptIncomplete
		}
	}
	s.emitActivityEnter(target)

	s.runRollup(target)
}

// afterExitRequest handles the consequences of exit-family requests after
// the navigator flipped the current activity's state.
func (s *Session) afterExitRequest(kind domain.NavigationRequest) {
	cur := s.tree.Current()
	if cur == nil {
		return
	}

	switch kind {
	case domain.NavExit:
		s.runRollup(cur)
		switch s.seq.EvaluateExitConditions(cur) {
		case domain.ActionExitAll:
			s.end()
		case domain.ActionExitParent:
			if parent := s.tree.Parent(cur); parent != nil && parent.Parent >= 0 {
				parent.State = domain.ActivityInactive
				_ = s.tree.SetCurrent(parent.ID)
			}
		}
	case domain.NavExitAll:
		s.runRollup(cur)
	case domain.NavSuspendAll:
		// Progress is preserved as-is for resumeAll; no rollup.
	case domain.NavAbandon, domain.NavAbandonAll:
		// Abandon discards the attempt without rollup.
	}
}

// UpdateProgress mutates the target activity's attempt state and objective,
// triggers rollup from it, then evaluates post-condition rules, dispatching
// any resulting action.
func (s *Session) UpdateProgress(ctx context.Context, id string, p domain.ProgressUpdate) (domain.ProgressResult, error) {
	s.mu.Lock()
	res := s.updateProgress(id, p)
	events := s.takePending()
	s.mu.Unlock()

	deliver(ctx, events)
	return res, nil
}

func (s *Session) updateProgress(id string, p domain.ProgressUpdate) domain.ProgressResult {
	if s.state != domain.SessionActive {
		return domain.ProgressResult{
			Success: false,
			Code:    domain.CodeSessionNotActive,
			Reason:  fmt.Sprintf("session is %s", s.state),
		}
	}

	a, ok := s.tree.Get(id)
	if !ok {
		// Unknown activity: fail before touching any state, including the
		// global objective table.
		return domain.ProgressResult{
			Success: false,
			Code:    domain.CodeActivityNotFound,
			Reason:  fmt.Sprintf("activity %q not found", id),
		}
	}

	s.applyProgress(a, p)
	rollup := s.runRollup(a)

	action, actor := s.seq.EvaluatePostConditions(a)
	result := domain.ProgressResult{
		Success:        true,
		Rollup:         rollup,
		PostAction:     action,
		PostActionName: action.String(),
	}
	if action == domain.ActionNone {
		return result
	}

	s.logger.Debug("post-condition action fired",
		"activity", actor.ID, "action", action.String())
	s.dispatchPostAction(action, actor)
	return result
}

func (s *Session) applyProgress(a *domain.Activity, p domain.ProgressUpdate) {
	if p.Completed != nil || p.Satisfied != nil || p.Measure != nil {
		if a.AttemptCount == 0 {
			a.AttemptCount = 1
			a.AttemptStartedAt = s.clock()
		}
	}
	if p.Completed != nil {
		if *p.Completed {
			a.AttemptState = domain.AttemptCompleted
		} else {
			a.AttemptState = domain.AttemptIncomplete
		}
	}
	if p.Satisfied != nil {
		if *p.Satisfied {
			a.Objective.Satisfied = domain.Satisfied
		} else {
			a.Objective.Satisfied = domain.NotSatisfied
		}
	}
	if p.Measure != nil {
		m := *p.Measure
		if m < -1 || m > 1 {
			s.logger.Warn("measure outside [-1,1], clamping", "activity", a.ID, "measure", m)
			if m < -1 {
				m = -1
			} else {
				m = 1
			}
		}
		a.Objective.Measure = m
		a.Objective.MeasureKnown = true
	}
}

// dispatchPostAction maps a fired post-condition action to orchestrator
// behavior.
func (s *Session) dispatchPostAction(action domain.RuleAction, actor *domain.Activity) {
	switch action {
	case domain.ActionContinue:
		s.navigate(domain.NavContinue, "", 1)
	case domain.ActionPrevious:
		s.navigate(domain.NavPrevious, "", 1)
	case domain.ActionRetry:
		s.resetSubtree(actor)
		if re, err := s.nav.Resolve(actor); err == nil {
			s.commit(re.Target)
		}
	case domain.ActionRetryAll:
		s.resetSubtree(s.tree.Root())
		s.rollup.Reset()
		s.tree.ClearCurrent()
		s.navigate(domain.NavStart, "", 1)
	case domain.ActionExitParent:
		if cur := s.tree.Current(); cur != nil {
			cur.State = domain.ActivityInactive
			if parent := s.tree.Parent(cur); parent != nil && parent.Parent >= 0 {
				_ = s.tree.SetCurrent(parent.ID)
			}
		}
	case domain.ActionExitAll:
		s.end()
	}
}

// resetSubtree clears runtime attempt state below and including the given
// activity for a fresh attempt.
func (s *Session) resetSubtree(root *domain.Activity) {
	var walk func(a *domain.Activity)
	walk = func(a *domain.Activity) {
		a.State = domain.ActivityInactive
		a.AttemptState = domain.AttemptNotAttempted
		a.Objective.Satisfied = domain.SatisfiedUnknown
		a.Objective.Measure = 0
		a.Objective.MeasureKnown = false
		a.AttemptStartedAt = time.Time{}
		for _, idx := range a.Children {
			walk(s.tree.At(idx))
		}
	}
	walk(root)
}

func (s *Session) runRollup(from *domain.Activity) domain.RollupResult {
	start := s.clock()
	result := s.rollup.Process(from)
	s.emitRollup(from, result, s.clock().Sub(start))
	return result
}

// State returns the externally visible session state.
func (s *Session) State() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := domain.SessionSnapshot{
		SessionState:     s.state,
		GlobalObjectives: s.rollup.Globals(),
		Stats:            s.tree.Stats(),
	}
	if cur := s.tree.Current(); cur != nil {
		snap.CurrentActivityID = cur.ID
	}
	snap.Available = s.available()
	return snap
}

// Terminate ends the session. Ended is terminal; all later operations fail.
func (s *Session) Terminate(ctx context.Context) (domain.TerminateResult, error) {
	s.mu.Lock()

	var res domain.TerminateResult
	if s.state != domain.SessionActive {
		res = domain.TerminateResult{Success: false, FinalState: s.state}
	} else {
		if cur := s.tree.Current(); cur != nil {
			s.runRollup(cur)
		}
		s.end()
		res = domain.TerminateResult{Success: true, FinalState: s.state}
	}

	events := s.takePending()
	s.mu.Unlock()

	deliver(ctx, events)
	return res, nil
}

func (s *Session) end() {
	if s.state == domain.SessionEnded {
		return
	}
	s.state = domain.SessionEnded
	if cur := s.tree.Current(); cur != nil && cur.State == domain.ActivityActive {
		cur.State = domain.ActivityInactive
	}
	s.logger.Info("sequencing session ended")
	if s.hooks.OnSessionEnd != nil {
		e := &domain.SessionEvent{
			EventBase: s.eventBase(domain.EventSessionEnd),
			State:     s.state,
		}
		s.pending = append(s.pending, func(ctx context.Context) {
			s.hooks.OnSessionEnd(ctx, e)
		})
	}
}

// available returns the valid request kinds, empty outside the active state.
func (s *Session) available() []domain.NavigationRequest {
	if s.state != domain.SessionActive {
		return nil
	}
	return s.nav.Available()
}

// Snapshot captures the full persistable session state.
func (s *Session) Snapshot() *domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &domain.Snapshot{
		SessionID:         s.id,
		SessionState:      s.state,
		Browse:            s.browse,
		SuspendedActivity: s.nav.Suspended(),
		Activities:        make(map[string]domain.ActivityRecord),
		GlobalObjectives:  s.rollup.Globals(),
		StartedAt:         s.startedAt,
	}
	if cur := s.tree.Current(); cur != nil {
		snap.CurrentActivityID = cur.ID
	}
	for _, a := range s.tree.Activities() {
		snap.Activities[a.ID] = domain.ActivityRecord{
			State:        a.State,
			AttemptState: a.AttemptState,
			AttemptCount: a.AttemptCount,
			Satisfied:    a.Objective.Satisfied,
			Measure:      a.Objective.Measure,
			MeasureKnown: a.Objective.MeasureKnown,
		}
	}
	return snap
}

// Restore loads a previously captured snapshot into this session. The
// session must have been built from the same manifest.
func (s *Session) Restore(snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range snap.Activities {
		a, ok := s.tree.Get(id)
		if !ok {
			return fmt.Errorf("snapshot activity %q: %w", id, domain.ErrActivityNotFound)
		}
		a.State = rec.State
		a.AttemptState = rec.AttemptState
		a.AttemptCount = rec.AttemptCount
		a.Objective.Satisfied = rec.Satisfied
		a.Objective.Measure = rec.Measure
		a.Objective.MeasureKnown = rec.MeasureKnown
	}
	if snap.CurrentActivityID != "" {
		if err := s.tree.SetCurrent(snap.CurrentActivityID); err != nil {
			return err
		}
	} else {
		s.tree.ClearCurrent()
	}
	s.nav.SetSuspended(snap.SuspendedActivity)
	s.rollup.RestoreGlobals(snap.GlobalObjectives)
	s.id = snap.SessionID
	s.state = snap.SessionState
	s.startedAt = snap.StartedAt
	// Browse rides along in the snapshot so sessions rebuilt per request keep
	// their permissive mode.
	s.browse = snap.Browse
	s.nav.browse = snap.Browse
	s.logger = s.logger.With("session_id", s.id)
	return nil
}

func (s *Session) failNav(err error) domain.NavigationResult {
	return domain.NavigationResult{
		Success:   false,
		Code:      domain.CodeOf(err),
		Reason:    err.Error(),
		Available: s.available(),
	}
}

func (s *Session) eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: s.clock(), Type: t, SessionID: s.id}
}

// takePending returns and clears the buffered hook invocations. Must be
// called with the mutex held.
func (s *Session) takePending() []func(context.Context) {
	events := s.pending
	s.pending = nil
	return events
}

// deliver invokes buffered hooks in the order they were raised.
func deliver(ctx context.Context, events []func(context.Context)) {
	for _, emit := range events {
		emit(ctx)
	}
}

func (s *Session) emitNavigation(kind domain.NavigationRequest, target string, res domain.NavigationResult) {
	if s.hooks.OnNavigation == nil {
		return
	}
	e := &domain.NavigationEvent{
		EventBase: s.eventBase(domain.EventNavigation),
		Request:   kind,
		Target:    target,
		Allowed:   res.Success,
		Reason:    res.Reason,
	}
	s.pending = append(s.pending, func(ctx context.Context) {
		s.hooks.OnNavigation(ctx, e)
	})
}

func (s *Session) emitActivityEnter(a *domain.Activity) {
	if s.hooks.OnActivityEnter == nil {
		return
	}
	e := &domain.ActivityEvent{
		EventBase:  s.eventBase(domain.EventActivityEnter),
		ActivityID: a.ID,
		Title:      a.Title,
	}
	s.pending = append(s.pending, func(ctx context.Context) {
		s.hooks.OnActivityEnter(ctx, e)
	})
}

func (s *Session) emitActivityLeave(a *domain.Activity) {
	if s.hooks.OnActivityLeave == nil {
		return
	}
	e := &domain.ActivityEvent{
		EventBase:  s.eventBase(domain.EventActivityLeave),
		ActivityID: a.ID,
		Title:      a.Title,
	}
	s.pending = append(s.pending, func(ctx context.Context) {
		s.hooks.OnActivityLeave(ctx, e)
	})
}

func (s *Session) emitRollup(from *domain.Activity, res domain.RollupResult, d time.Duration) {
	if s.hooks.OnRollup == nil {
		return
	}
	e := &domain.RollupEvent{
		EventBase:  s.eventBase(domain.EventRollup),
		ActivityID: from.ID,
		Updated:    len(res.Updated),
		Failed:     len(res.Failed),
		Duration:   d,
	}
	s.pending = append(s.pending, func(ctx context.Context) {
		s.hooks.OnRollup(ctx, e)
	})
}

func ptrInfo(a *domain.Activity) *domain.Info {
	info := domain.InfoOf(a)
	return &info
}
