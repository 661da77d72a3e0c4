package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/domain"
)

// Sequencer evaluates sequencing rules and control-mode permissions against
// the tree. It only ever reads tree structure; mutation is the session's job.
type Sequencer struct {
	tree   *Tree
	logger *slog.Logger
	clock  func() time.Time
}

// NewSequencer creates a rule evaluator bound to a tree.
func NewSequencer(tree *Tree, logger *slog.Logger, clock func() time.Time) *Sequencer {
	if logger == nil {
		logger = logging.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Sequencer{tree: tree, logger: logger, clock: clock}
}

// PreConditionResult carries the outcome of pre-condition evaluation.
type PreConditionResult struct {
	Action domain.RuleAction
	Reason string
}

// EvaluatePreConditions walks the activity's pre-condition rules in document
// order; the first rule whose condition combination holds wins.
func (s *Sequencer) EvaluatePreConditions(a *domain.Activity) PreConditionResult {
	for i, rule := range a.PreRules {
		if s.ruleFires(a, rule) {
			return PreConditionResult{
				Action: rule.Action,
				Reason: fmt.Sprintf("pre-condition rule %d on %q fired with action %q", i, a.ID, rule.Action),
			}
		}
	}
	return PreConditionResult{Action: domain.ActionNone}
}

// EvaluatePostConditions evaluates post-condition rules after a progress
// update. When the activity defines none, evaluation bubbles once to its
// parent; it never walks the full ancestor chain. The second return value is
// the activity whose rule fired.
func (s *Sequencer) EvaluatePostConditions(a *domain.Activity) (domain.RuleAction, *domain.Activity) {
	if len(a.PostRules) > 0 {
		for _, rule := range a.PostRules {
			if s.ruleFires(a, rule) {
				return rule.Action, a
			}
		}
		return domain.ActionNone, nil
	}

	parent := s.tree.Parent(a)
	if parent == nil {
		return domain.ActionNone, nil
	}
	for _, rule := range parent.PostRules {
		if s.ruleFires(parent, rule) {
			return rule.Action, parent
		}
	}
	return domain.ActionNone, nil
}

// EvaluateExitConditions evaluates the activity's exit-condition rules when
// it is being deactivated.
func (s *Sequencer) EvaluateExitConditions(a *domain.Activity) domain.RuleAction {
	for _, rule := range a.ExitRules {
		if s.ruleFires(a, rule) {
			return rule.Action
		}
	}
	return domain.ActionNone
}

// EffectiveControlMode resolves the control mode governing an activity: the
// record of the nearest ancestor (or the activity itself) that defines one,
// taken whole, or the built-in default.
func (s *Sequencer) EffectiveControlMode(a *domain.Activity) domain.ControlMode {
	for cur := a; cur != nil; cur = s.tree.Parent(cur) {
		if cur.Control != nil {
			return *cur.Control
		}
	}
	return domain.DefaultControlMode()
}

// ControlScope returns the activity whose control record governs a: the
// nearest ancestor (or a itself) defining one, or nil when defaults apply.
func (s *Sequencer) ControlScope(a *domain.Activity) *domain.Activity {
	for cur := a; cur != nil; cur = s.tree.Parent(cur) {
		if cur.Control != nil {
			return cur
		}
	}
	return nil
}

// CheckControlMode reports whether the navigation request kind is permitted
// under the control mode governing the activity.
func (s *Sequencer) CheckControlMode(a *domain.Activity, req domain.NavigationRequest) (bool, string) {
	cm := s.EffectiveControlMode(a)
	switch req {
	case domain.NavChoice:
		if !cm.Choice {
			return false, fmt.Sprintf("choice navigation disabled in scope of %q", a.ID)
		}
	case domain.NavContinue:
		if !cm.Flow {
			return false, fmt.Sprintf("flow navigation disabled in scope of %q", a.ID)
		}
	case domain.NavPrevious:
		if !cm.Flow {
			return false, fmt.Sprintf("flow navigation disabled in scope of %q", a.ID)
		}
		if cm.ForwardOnly {
			return false, fmt.Sprintf("backward navigation disabled by forwardOnly in scope of %q", a.ID)
		}
	}
	return true, ""
}

// ruleFires evaluates a rule's condition combination against an activity.
// A rule without conditions never fires.
func (s *Sequencer) ruleFires(a *domain.Activity, rule domain.Rule) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	switch rule.Combinator {
	case domain.CombinatorAny:
		for _, c := range rule.Conditions {
			if s.evaluateCondition(a, c) {
				return true
			}
		}
		return false
	default: // CombinatorAll
		for _, c := range rule.Conditions {
			if !s.evaluateCondition(a, c) {
				return false
			}
		}
		return true
	}
}

func (s *Sequencer) evaluateCondition(a *domain.Activity, c domain.RuleCondition) bool {
	var result bool
	switch c.Kind {
	case domain.ConditionAlways:
		result = true
	case domain.ConditionSatisfied:
		result = a.Objective.Satisfied == domain.Satisfied
	case domain.ConditionObjectiveStatusKnown:
		result = a.Objective.Satisfied != domain.SatisfiedUnknown
	case domain.ConditionObjectiveMeasureKnown:
		result = a.Objective.MeasureKnown
	case domain.ConditionMeasureGreaterThan:
		result = a.Objective.MeasureKnown && a.Objective.Measure > c.Threshold
	case domain.ConditionMeasureLessThan:
		result = a.Objective.MeasureKnown && a.Objective.Measure < c.Threshold
	case domain.ConditionAttempted:
		result = a.Attempted()
	case domain.ConditionCompleted:
		result = a.AttemptState == domain.AttemptCompleted
	case domain.ConditionProgressKnown:
		result = a.AttemptState != domain.AttemptNotAttempted
	case domain.ConditionAttemptLimitExceeded:
		result = a.AttemptLimit > 0 && a.AttemptCount >= a.AttemptLimit
	case domain.ConditionTimeLimitExceeded:
		result = a.TimeLimit > 0 && !a.AttemptStartedAt.IsZero() &&
			s.clock().Sub(a.AttemptStartedAt) > a.TimeLimit
	case domain.ConditionUnknown:
		// Fail-open: malformed conditions never fire, negated or not.
		return false
	default:
		return false
	}
	if c.Not {
		return !result
	}
	return result
}
