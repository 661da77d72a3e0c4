package domain

import "time"

// Manifest is the already-parsed course structure consumed from the package
// layer. Parsing and validating the declarative manifest format itself is out
// of scope; this is the canonical "organization -> ordered items -> nested
// items" shape that layer hands over. Rule kinds, actions and policies are
// plain strings here; the tree builder compiles them into the closed enums.
type Manifest struct {
	Identifier          string         `json:"identifier" yaml:"identifier" mapstructure:"identifier"`
	Title               string         `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	DefaultOrganization string         `json:"default_organization,omitempty" yaml:"default_organization,omitempty" mapstructure:"default_organization"`
	Organizations       []Organization `json:"organizations" yaml:"organizations" mapstructure:"organizations"`
}

// DefaultOrg resolves the default organization, falling back to the first.
// Returns nil when the manifest has no organizations.
func (m *Manifest) DefaultOrg() *Organization {
	if len(m.Organizations) == 0 {
		return nil
	}
	if m.DefaultOrganization != "" {
		for i := range m.Organizations {
			if m.Organizations[i].ID == m.DefaultOrganization {
				return &m.Organizations[i]
			}
		}
	}
	return &m.Organizations[0]
}

// Organization is one course structure inside a manifest.
type Organization struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	Items []Item `json:"items" yaml:"items" mapstructure:"items"`
}

// Item is one node of the manifest item tree.
type Item struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty" mapstructure:"title"`
	ResourceRef string      `json:"resource_ref,omitempty" yaml:"resource_ref,omitempty" mapstructure:"resource_ref"`
	Hidden      bool        `json:"hidden,omitempty" yaml:"hidden,omitempty" mapstructure:"hidden"`
	Sequencing  *Sequencing `json:"sequencing,omitempty" yaml:"sequencing,omitempty" mapstructure:"sequencing"`
	Items       []Item      `json:"items,omitempty" yaml:"items,omitempty" mapstructure:"items"`
}

// Sequencing is the optional sequencing definition of an item. Absence means
// the defaults apply: flow and choice enabled, no rules.
type Sequencing struct {
	Control      *ControlModeDef `json:"control,omitempty" yaml:"control,omitempty" mapstructure:"control"`
	PreRules     []RuleDef       `json:"pre_rules,omitempty" yaml:"pre_rules,omitempty" mapstructure:"pre_rules"`
	PostRules    []RuleDef       `json:"post_rules,omitempty" yaml:"post_rules,omitempty" mapstructure:"post_rules"`
	ExitRules    []RuleDef       `json:"exit_rules,omitempty" yaml:"exit_rules,omitempty" mapstructure:"exit_rules"`
	Objective    *ObjectiveDef   `json:"objective,omitempty" yaml:"objective,omitempty" mapstructure:"objective"`
	Rollup       *RollupDef      `json:"rollup,omitempty" yaml:"rollup,omitempty" mapstructure:"rollup"`
	AttemptLimit int             `json:"attempt_limit,omitempty" yaml:"attempt_limit,omitempty" mapstructure:"attempt_limit"`
	TimeLimit    time.Duration   `json:"time_limit,omitempty" yaml:"time_limit,omitempty" mapstructure:"time_limit"`
}

// ControlModeDef mirrors ControlMode in wire form.
type ControlModeDef struct {
	Choice      bool `json:"choice" yaml:"choice" mapstructure:"choice"`
	ChoiceExit  bool `json:"choice_exit" yaml:"choice_exit" mapstructure:"choice_exit"`
	Flow        bool `json:"flow" yaml:"flow" mapstructure:"flow"`
	ForwardOnly bool `json:"forward_only" yaml:"forward_only" mapstructure:"forward_only"`
}

// RuleDef is a sequencing rule in wire form.
type RuleDef struct {
	Combinator string         `json:"combinator,omitempty" yaml:"combinator,omitempty" mapstructure:"combinator"` // "all" (default) or "any"
	Conditions []ConditionDef `json:"conditions" yaml:"conditions" mapstructure:"conditions"`
	Action     string         `json:"action" yaml:"action" mapstructure:"action"`
}

// ConditionDef is a rule condition in wire form.
type ConditionDef struct {
	Kind      string  `json:"kind" yaml:"kind" mapstructure:"kind"`
	Not       bool    `json:"not,omitempty" yaml:"not,omitempty" mapstructure:"not"`
	Threshold float64 `json:"threshold,omitempty" yaml:"threshold,omitempty" mapstructure:"threshold"`
}

// ObjectiveDef declares an item's primary objective in wire form.
type ObjectiveDef struct {
	ID      string      `json:"id" yaml:"id" mapstructure:"id"`
	Mapping *MappingDef `json:"mapping,omitempty" yaml:"mapping,omitempty" mapstructure:"mapping"`
}

// MappingDef declares the global objective mapping of an objective.
type MappingDef struct {
	Target         string `json:"target" yaml:"target" mapstructure:"target"`
	ReadSatisfied  bool   `json:"read_satisfied,omitempty" yaml:"read_satisfied,omitempty" mapstructure:"read_satisfied"`
	WriteSatisfied bool   `json:"write_satisfied,omitempty" yaml:"write_satisfied,omitempty" mapstructure:"write_satisfied"`
	ReadMeasure    bool   `json:"read_measure,omitempty" yaml:"read_measure,omitempty" mapstructure:"read_measure"`
	WriteMeasure   bool   `json:"write_measure,omitempty" yaml:"write_measure,omitempty" mapstructure:"write_measure"`
}

// RollupDef is the rollup configuration in wire form. Policies are "always"
// (default) or "ifAttempted".
type RollupDef struct {
	ObjectiveWeight         float64 `json:"objective_weight,omitempty" yaml:"objective_weight,omitempty" mapstructure:"objective_weight"`
	RequiredForSatisfied    string  `json:"required_for_satisfied,omitempty" yaml:"required_for_satisfied,omitempty" mapstructure:"required_for_satisfied"`
	RequiredForNotSatisfied string  `json:"required_for_not_satisfied,omitempty" yaml:"required_for_not_satisfied,omitempty" mapstructure:"required_for_not_satisfied"`
	RequiredForCompleted    string  `json:"required_for_completed,omitempty" yaml:"required_for_completed,omitempty" mapstructure:"required_for_completed"`
	RequiredForIncomplete   string  `json:"required_for_incomplete,omitempty" yaml:"required_for_incomplete,omitempty" mapstructure:"required_for_incomplete"`
}

// ParseRollupPolicy maps a wire policy name. Unrecognized names fall back to
// PolicyAlways; callers may log the degradation.
func ParseRollupPolicy(name string) (RollupPolicy, bool) {
	switch name {
	case "", "always":
		return PolicyAlways, true
	case "ifAttempted":
		return PolicyIfAttempted, true
	default:
		return PolicyAlways, false
	}
}
