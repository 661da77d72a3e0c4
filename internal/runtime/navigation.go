package runtime

import (
	"fmt"
	"log/slog"

	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/domain"
)

// Navigator validates navigation requests and resolves them into target
// activities, consulting the sequencer for rule and control-mode permission.
type Navigator struct {
	tree   *Tree
	seq    *Sequencer
	browse bool
	logger *slog.Logger

	// suspended remembers the activity parked by suspendAll so resumeAll can
	// return to it.
	suspended string
}

// NewNavigator creates a navigation handler bound to a tree and sequencer.
func NewNavigator(tree *Tree, seq *Sequencer, browse bool, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Navigator{tree: tree, seq: seq, browse: browse, logger: logger}
}

// Resolution is the outcome of a successfully validated navigation request.
type Resolution struct {
	// Entered is the activity the request navigates to, possibly a cluster.
	// Nil for requests that only flip runtime state (exit, suspendAll, ...).
	Entered *domain.Activity
	// Target is the launchable activity to deliver: Entered itself for a
	// leaf, or its first launchable descendant for a cluster.
	Target *domain.Activity
}

// Process validates and resolves one navigation request. Expected failures
// return wrapped domain errors; they leave navigation state unchanged except
// for the state flips the exit-family requests exist to perform.
func (n *Navigator) Process(kind domain.NavigationRequest, target string) (Resolution, error) {
	cur := n.tree.Current()

	switch kind {
	case domain.NavStart:
		if cur != nil {
			return Resolution{}, fmt.Errorf("%w: session already has a current activity", domain.ErrNavigationBlocked)
		}
		return n.resolveEntry(n.tree.Root(), "no launchable activity in tree")

	case domain.NavResumeAll:
		if n.suspended == "" {
			return Resolution{}, fmt.Errorf("%w: no suspended activity to resume", domain.ErrNavigationBlocked)
		}
		a, ok := n.tree.Get(n.suspended)
		if !ok {
			return Resolution{}, fmt.Errorf("suspended activity %q: %w", n.suspended, domain.ErrActivityNotFound)
		}
		n.suspended = ""
		a.State = domain.ActivityInactive
		return n.resolveEntry(a, "suspended activity is not launchable")

	case domain.NavContinue:
		return n.resolveFlow(cur, true)

	case domain.NavPrevious:
		return n.resolveFlow(cur, false)

	case domain.NavChoice:
		return n.resolveChoice(cur, target)

	case domain.NavExit, domain.NavAbandon:
		if cur == nil {
			return Resolution{}, fmt.Errorf("%w: no current activity", domain.ErrNavigationBlocked)
		}
		cur.State = domain.ActivityInactive
		return Resolution{}, nil

	case domain.NavExitAll, domain.NavAbandonAll:
		if cur == nil {
			return Resolution{}, fmt.Errorf("%w: no current activity", domain.ErrNavigationBlocked)
		}
		cur.State = domain.ActivityInactive
		return Resolution{}, nil

	case domain.NavSuspendAll:
		if cur == nil {
			return Resolution{}, fmt.Errorf("%w: no current activity", domain.ErrNavigationBlocked)
		}
		cur.State = domain.ActivitySuspended
		n.suspended = cur.ID
		return Resolution{}, nil

	default:
		return Resolution{}, fmt.Errorf("%q: %w", kind, domain.ErrInvalidNavigationRequest)
	}
}

func (n *Navigator) resolveFlow(cur *domain.Activity, forward bool) (Resolution, error) {
	if cur == nil {
		return Resolution{}, fmt.Errorf("%w: no current activity", domain.ErrNavigationBlocked)
	}

	if !n.browse {
		req := domain.NavContinue
		if !forward {
			req = domain.NavPrevious
		}
		if ok, reason := n.seq.CheckControlMode(cur, req); !ok {
			return Resolution{}, fmt.Errorf("%w: %s", domain.ErrNavigationBlocked, reason)
		}
	}

	var next *domain.Activity
	if forward {
		next = n.NextAfter(cur)
	} else {
		next = n.PreviousBefore(cur)
	}

	if next == nil && n.browse {
		next = n.adjacentLaunchable(cur, forward)
	}
	if next == nil {
		direction := "continue"
		if !forward {
			direction = "previous"
		}
		return Resolution{}, fmt.Errorf("%w: no activity to %s to", domain.ErrNavigationBlocked, direction)
	}
	return n.resolveEntry(next, "adjacent activity has no launchable content")
}

func (n *Navigator) resolveChoice(cur *domain.Activity, target string) (Resolution, error) {
	if target == "" {
		return Resolution{}, fmt.Errorf("choice without target: %w", domain.ErrInvalidNavigationRequest)
	}
	a, ok := n.tree.Get(target)
	if !ok {
		return Resolution{}, fmt.Errorf("choice target %q: %w", target, domain.ErrActivityNotFound)
	}

	if n.browse {
		return n.resolveEntry(a, "choice target has no launchable content")
	}

	if !a.Visible {
		return Resolution{}, fmt.Errorf("%w: target %q is hidden", domain.ErrNavigationBlocked, target)
	}

	if cur != nil {
		if ok, reason := n.seq.CheckControlMode(cur, domain.NavChoice); !ok {
			return Resolution{}, fmt.Errorf("%w: %s", domain.ErrNavigationBlocked, reason)
		}
		cm := n.seq.EffectiveControlMode(cur)
		if !cm.ChoiceExit {
			// The scope is the cluster whose record is in effect, not the
			// current activity itself.
			if scope := n.seq.ControlScope(cur); scope != nil && !n.within(a, scope) {
				return Resolution{}, fmt.Errorf("%w: choiceExit disabled, cannot leave scope of %q", domain.ErrNavigationBlocked, scope.ID)
			}
		}
	}

	pre := n.seq.EvaluatePreConditions(a)
	if pre.Action == domain.ActionDisabled || pre.Action == domain.ActionHiddenFromChoice {
		return Resolution{}, fmt.Errorf("%w: %s", domain.ErrNavigationBlocked, pre.Reason)
	}

	return n.resolveEntry(a, "choice target has no launchable content")
}

// resolveEntry turns an entered activity into a deliverable resolution by
// descending clusters to their first launchable activity.
func (n *Navigator) resolveEntry(entered *domain.Activity, emptyReason string) (Resolution, error) {
	t := n.firstLaunchable(entered)
	if t == nil {
		return Resolution{}, fmt.Errorf("%w: %s", domain.ErrNavigationBlocked, emptyReason)
	}
	if entered.Parent < 0 {
		// Entering via the synthetic root means the flow picked the target.
		entered = t
	}
	return Resolution{Entered: entered, Target: t}, nil
}

// Resolve exposes delivery resolution for an already-chosen activity, used
// by the session when rule actions redirect the flow.
func (n *Navigator) Resolve(entered *domain.Activity) (Resolution, error) {
	return n.resolveEntry(entered, fmt.Sprintf("activity %q has no launchable content", entered.ID))
}

// NextAfter returns the next sibling of a under its parent, or nil. Default
// flow never skips ahead beyond one sibling; rule actions drive anything
// further.
func (n *Navigator) NextAfter(a *domain.Activity) *domain.Activity {
	parent := n.tree.Parent(a)
	if parent == nil {
		return nil
	}
	for i, idx := range parent.Children {
		if idx == a.Index && i+1 < len(parent.Children) {
			return n.tree.At(parent.Children[i+1])
		}
	}
	return nil
}

// PreviousBefore returns the previous sibling of a under its parent, or nil.
// There is no wraparound.
func (n *Navigator) PreviousBefore(a *domain.Activity) *domain.Activity {
	parent := n.tree.Parent(a)
	if parent == nil {
		return nil
	}
	for i, idx := range parent.Children {
		if idx == a.Index && i > 0 {
			return n.tree.At(parent.Children[i-1])
		}
	}
	return nil
}

// adjacentLaunchable is the browse-mode fallback: the nearest launchable
// activity in document order, ignoring structure and rules.
func (n *Navigator) adjacentLaunchable(cur *domain.Activity, forward bool) *domain.Activity {
	all := n.tree.Activities()
	pos := -1
	for i, a := range all {
		if a.Index == cur.Index {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}
	if forward {
		for i := pos + 1; i < len(all); i++ {
			if all[i].IsLaunchable() {
				return all[i]
			}
		}
	} else {
		for i := pos - 1; i >= 0; i-- {
			if all[i].IsLaunchable() {
				return all[i]
			}
		}
	}
	return nil
}

// firstLaunchable returns a itself when launchable, otherwise its first
// launchable descendant in document order.
func (n *Navigator) firstLaunchable(a *domain.Activity) *domain.Activity {
	if a.IsLaunchable() {
		return a
	}
	for _, idx := range a.Children {
		if found := n.firstLaunchable(n.tree.At(idx)); found != nil {
			return found
		}
	}
	return nil
}

// within reports whether a is cur itself or a descendant of cur.
func (n *Navigator) within(a, scope *domain.Activity) bool {
	for cur := a; cur != nil; cur = n.tree.Parent(cur) {
		if cur.Index == scope.Index {
			return true
		}
	}
	return false
}

// Suspended returns the ID parked by suspendAll, if any.
func (n *Navigator) Suspended() string { return n.suspended }

// SetSuspended restores the suspended marker from a snapshot.
func (n *Navigator) SetSuspended(id string) { n.suspended = id }

// Available recomputes the set of currently valid navigation request kinds.
// It must be called after every transition and after any rollup-driven
// visibility change.
func (n *Navigator) Available() []domain.NavigationRequest {
	var out []domain.NavigationRequest
	cur := n.tree.Current()

	if cur == nil {
		if n.firstLaunchable(n.tree.Root()) != nil {
			out = append(out, domain.NavStart)
		}
		if n.suspended != "" {
			out = append(out, domain.NavResumeAll)
		}
		return out
	}

	if _, err := n.resolveFlow(cur, true); err == nil {
		out = append(out, domain.NavContinue)
	}
	if _, err := n.resolveFlow(cur, false); err == nil {
		out = append(out, domain.NavPrevious)
	}
	if n.browse || n.seq.EffectiveControlMode(cur).Choice {
		if n.anyChoosable(cur) {
			out = append(out, domain.NavChoice)
		}
	}
	out = append(out, domain.NavExit, domain.NavExitAll, domain.NavSuspendAll,
		domain.NavAbandon, domain.NavAbandonAll)
	return out
}

// anyChoosable reports whether at least one activity is a valid choice
// target right now.
func (n *Navigator) anyChoosable(cur *domain.Activity) bool {
	for _, a := range n.tree.Activities() {
		if a.Index == cur.Index {
			continue
		}
		if _, err := n.resolveChoice(cur, a.ID); err == nil {
			return true
		}
	}
	return false
}
