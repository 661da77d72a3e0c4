package domain

// RuleConditionKind identifies what a rule condition tests. The set is
// closed; runtime evaluation switches exhaustively over it. Conditions parsed
// from a manifest with an unrecognized kind become ConditionUnknown, which
// always evaluates false.
type RuleConditionKind int

const (
	ConditionUnknown RuleConditionKind = iota
	ConditionAlways
	ConditionSatisfied
	ConditionObjectiveStatusKnown
	ConditionObjectiveMeasureKnown
	ConditionMeasureGreaterThan
	ConditionMeasureLessThan
	ConditionAttempted
	ConditionCompleted
	ConditionProgressKnown
	ConditionAttemptLimitExceeded
	ConditionTimeLimitExceeded
)

var conditionKindNames = map[RuleConditionKind]string{
	ConditionUnknown:               "unknown",
	ConditionAlways:                "always",
	ConditionSatisfied:             "satisfied",
	ConditionObjectiveStatusKnown:  "objectiveStatusKnown",
	ConditionObjectiveMeasureKnown: "objectiveMeasureKnown",
	ConditionMeasureGreaterThan:    "objectiveMeasureGreaterThan",
	ConditionMeasureLessThan:       "objectiveMeasureLessThan",
	ConditionAttempted:             "attempted",
	ConditionCompleted:             "completed",
	ConditionProgressKnown:         "activityProgressKnown",
	ConditionAttemptLimitExceeded:  "attemptLimitExceeded",
	ConditionTimeLimitExceeded:     "timeLimitExceeded",
}

func (k RuleConditionKind) String() string {
	if name, ok := conditionKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseConditionKind maps a manifest condition name to its kind. Unrecognized
// names return ConditionUnknown and false so callers can log the degradation.
func ParseConditionKind(name string) (RuleConditionKind, bool) {
	for k, n := range conditionKindNames {
		if n == name && k != ConditionUnknown {
			return k, true
		}
	}
	return ConditionUnknown, false
}

// RuleAction is the action a fired sequencing rule requests.
type RuleAction int

const (
	ActionNone RuleAction = iota

	// Pre-condition actions.
	ActionSkip
	ActionDisabled
	ActionHiddenFromChoice
	ActionStopForwardTraversal

	// Post- and exit-condition actions.
	ActionExitParent
	ActionExitAll
	ActionRetry
	ActionRetryAll
	ActionContinue
	ActionPrevious
)

var ruleActionNames = map[RuleAction]string{
	ActionNone:                 "",
	ActionSkip:                 "skip",
	ActionDisabled:             "disabled",
	ActionHiddenFromChoice:     "hiddenFromChoice",
	ActionStopForwardTraversal: "stopForwardTraversal",
	ActionExitParent:           "exitParent",
	ActionExitAll:              "exitAll",
	ActionRetry:                "retry",
	ActionRetryAll:             "retryAll",
	ActionContinue:             "continue",
	ActionPrevious:             "previous",
}

func (a RuleAction) String() string {
	if name, ok := ruleActionNames[a]; ok {
		return name
	}
	return ""
}

// ParseRuleAction maps a manifest action name to its RuleAction.
func ParseRuleAction(name string) (RuleAction, bool) {
	for a, n := range ruleActionNames {
		if n == name && a != ActionNone {
			return a, true
		}
	}
	return ActionNone, false
}

// ConditionCombinator controls how a rule combines its conditions.
type ConditionCombinator int

const (
	CombinatorAll ConditionCombinator = iota
	CombinatorAny
)

func (c ConditionCombinator) String() string {
	if c == CombinatorAny {
		return "any"
	}
	return "all"
}

// RuleCondition is one typed condition inside a sequencing rule.
type RuleCondition struct {
	Kind RuleConditionKind
	// Not inverts the condition result. Unknown kinds stay false even when
	// negated, so malformed conditions can never fire a rule.
	Not bool
	// Threshold is the comparison operand for measure conditions.
	Threshold float64
}

// Rule is a compiled sequencing rule: a combinator over conditions plus the
// action taken when the combination holds. Rules in a set are evaluated in
// document order and the first match wins.
type Rule struct {
	Combinator ConditionCombinator
	Conditions []RuleCondition
	Action     RuleAction
}
