package runtime

import (
	"fmt"
	"log/slog"

	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/domain"
)

// Tree owns the activity hierarchy and per-activity runtime state. Activities
// live in a flat arena addressed by index; parent/child links are indices, so
// the structure is acyclic by construction and snapshots stay cheap.
type Tree struct {
	nodes   []*domain.Activity
	index   map[string]int
	current int // arena index of the current activity, -1 when none

	// objectiveIDs holds local objective identifiers plus mapping targets
	// some activity reads. Write-only targets are excluded so the rollup
	// manager can catch typoed write destinations nothing ever consumes.
	objectiveIDs map[string]struct{}

	// degraded counts rule definitions that failed to compile and were
	// replaced with inert fallbacks.
	degraded int

	logger *slog.Logger
}

// BuildTree constructs the activity tree from a parsed manifest. It fails
// when the default organization has zero top-level items, when two items
// share an identifier, or when nesting exceeds domain.MaxTreeDepth.
func BuildTree(m *domain.Manifest, logger *slog.Logger) (*Tree, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	org := m.DefaultOrg()
	if org == nil || len(org.Items) == 0 {
		return nil, domain.ErrEmptyTree
	}

	t := &Tree{
		index:        make(map[string]int),
		current:      -1,
		objectiveIDs: make(map[string]struct{}),
		logger:       logger,
	}

	// Synthetic root representing the organization itself. It is a cluster,
	// never launchable, and anchors control-mode inheritance.
	rootID := org.ID
	if rootID == "" {
		rootID = m.Identifier
	}
	root := &domain.Activity{
		Index:   0,
		Parent:  -1,
		ID:      rootID,
		Title:   org.Title,
		Visible: true,
	}
	t.nodes = append(t.nodes, root)
	t.index[root.ID] = 0

	for i := range org.Items {
		childIdx, err := t.addItem(&org.Items[i], 0, 1)
		if err != nil {
			return nil, err
		}
		root.Children = append(root.Children, childIdx)
	}

	if t.degraded > 0 {
		logger.Warn("manifest contains malformed sequencing definitions, degraded to defaults",
			"count", t.degraded)
	}
	return t, nil
}

func (t *Tree) addItem(item *domain.Item, parent, depth int) (int, error) {
	if depth > domain.MaxTreeDepth {
		return 0, fmt.Errorf("item %q at depth %d: %w", item.ID, depth, domain.ErrCycleDetected)
	}
	if item.ID == "" {
		return 0, fmt.Errorf("item under parent %q has no identifier: %w",
			t.nodes[parent].ID, domain.ErrDuplicateIdentifier)
	}
	if _, exists := t.index[item.ID]; exists {
		return 0, fmt.Errorf("item %q: %w", item.ID, domain.ErrDuplicateIdentifier)
	}

	idx := len(t.nodes)
	a := &domain.Activity{
		Index:       idx,
		Parent:      parent,
		ID:          item.ID,
		Title:       item.Title,
		ResourceRef: item.ResourceRef,
		Visible:     !item.Hidden,
	}
	t.compileSequencing(a, item.Sequencing)
	t.nodes = append(t.nodes, a)
	t.index[item.ID] = idx

	for i := range item.Items {
		childIdx, err := t.addItem(&item.Items[i], idx, depth+1)
		if err != nil {
			return 0, err
		}
		a.Children = append(a.Children, childIdx)
	}
	return idx, nil
}

// compileSequencing converts the wire-form sequencing definition into typed
// runtime configuration. Malformed pieces degrade to inert defaults instead
// of failing construction.
func (t *Tree) compileSequencing(a *domain.Activity, seq *domain.Sequencing) {
	if seq == nil {
		return
	}

	if seq.Control != nil {
		a.Control = &domain.ControlMode{
			Choice:      seq.Control.Choice,
			ChoiceExit:  seq.Control.ChoiceExit,
			Flow:        seq.Control.Flow,
			ForwardOnly: seq.Control.ForwardOnly,
		}
	}

	a.PreRules = t.compileRules(a.ID, "pre", seq.PreRules)
	a.PostRules = t.compileRules(a.ID, "post", seq.PostRules)
	a.ExitRules = t.compileRules(a.ID, "exit", seq.ExitRules)

	if seq.Objective != nil {
		a.Objective.ID = seq.Objective.ID
		if seq.Objective.ID != "" {
			t.objectiveIDs[seq.Objective.ID] = struct{}{}
		}
		if mp := seq.Objective.Mapping; mp != nil && mp.Target != "" {
			a.Objective.Mapping = &domain.ObjectiveMapping{
				GlobalID:       mp.Target,
				ReadSatisfied:  mp.ReadSatisfied,
				WriteSatisfied: mp.WriteSatisfied,
				ReadMeasure:    mp.ReadMeasure,
				WriteMeasure:   mp.WriteMeasure,
			}
			// A target counts as declared only when something reads it;
			// registering write-only targets would let a typo validate
			// itself.
			if mp.ReadSatisfied || mp.ReadMeasure {
				t.objectiveIDs[mp.Target] = struct{}{}
			}
		}
	}

	if seq.Rollup != nil {
		a.Rollup.ObjectiveWeight = seq.Rollup.ObjectiveWeight
		a.Rollup.RequiredForSatisfied = t.compilePolicy(a.ID, seq.Rollup.RequiredForSatisfied)
		a.Rollup.RequiredForNotSatisfied = t.compilePolicy(a.ID, seq.Rollup.RequiredForNotSatisfied)
		a.Rollup.RequiredForCompleted = t.compilePolicy(a.ID, seq.Rollup.RequiredForCompleted)
		a.Rollup.RequiredForIncomplete = t.compilePolicy(a.ID, seq.Rollup.RequiredForIncomplete)
	}

	a.AttemptLimit = seq.AttemptLimit
	a.TimeLimit = seq.TimeLimit
}

func (t *Tree) compileRules(activityID, set string, defs []domain.RuleDef) []domain.Rule {
	if len(defs) == 0 {
		return nil
	}
	rules := make([]domain.Rule, 0, len(defs))
	for _, def := range defs {
		action, ok := domain.ParseRuleAction(def.Action)
		if !ok {
			// A rule without a recognizable action can never do anything
			// useful; keep it out of the set entirely.
			t.degraded++
			t.logger.Warn("dropping rule with unknown action",
				"activity", activityID, "set", set, "action", def.Action)
			continue
		}

		combinator := domain.CombinatorAll
		if def.Combinator == "any" {
			combinator = domain.CombinatorAny
		} else if def.Combinator != "" && def.Combinator != "all" {
			t.degraded++
			t.logger.Warn("unknown rule combinator, defaulting to all",
				"activity", activityID, "set", set, "combinator", def.Combinator)
		}

		conds := make([]domain.RuleCondition, 0, len(def.Conditions))
		for _, cd := range def.Conditions {
			kind, known := domain.ParseConditionKind(cd.Kind)
			if !known {
				// Unknown conditions stay in the rule but always evaluate
				// false, per the fail-open degradation policy.
				t.degraded++
				t.logger.Warn("unknown rule condition kind, treating as false",
					"activity", activityID, "set", set, "kind", cd.Kind)
			}
			conds = append(conds, domain.RuleCondition{
				Kind:      kind,
				Not:       cd.Not,
				Threshold: cd.Threshold,
			})
		}

		rules = append(rules, domain.Rule{
			Combinator: combinator,
			Conditions: conds,
			Action:     action,
		})
	}
	return rules
}

func (t *Tree) compilePolicy(activityID, name string) domain.RollupPolicy {
	policy, ok := domain.ParseRollupPolicy(name)
	if !ok {
		t.degraded++
		t.logger.Warn("unknown rollup policy, defaulting to always",
			"activity", activityID, "policy", name)
	}
	return policy
}

// Get returns the activity with the given identifier.
func (t *Tree) Get(id string) (*domain.Activity, bool) {
	idx, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.nodes[idx], true
}

// At returns the activity at an arena index, or nil when out of range.
func (t *Tree) At(idx int) *domain.Activity {
	if idx < 0 || idx >= len(t.nodes) {
		return nil
	}
	return t.nodes[idx]
}

// Root returns the synthetic root activity.
func (t *Tree) Root() *domain.Activity { return t.nodes[0] }

// Current returns the current activity, or nil when none is current.
func (t *Tree) Current() *domain.Activity {
	if t.current < 0 {
		return nil
	}
	return t.nodes[t.current]
}

// SetCurrent moves the single current pointer to the given activity.
func (t *Tree) SetCurrent(id string) error {
	idx, ok := t.index[id]
	if !ok {
		return fmt.Errorf("set current %q: %w", id, domain.ErrActivityNotFound)
	}
	t.current = idx
	return nil
}

// ClearCurrent drops the current pointer.
func (t *Tree) ClearCurrent() { t.current = -1 }

// Parent returns the parent of an activity, or nil for the root.
func (t *Tree) Parent(a *domain.Activity) *domain.Activity {
	if a.Parent < 0 {
		return nil
	}
	return t.nodes[a.Parent]
}

// Traverse performs a depth-first walk in document order. A visited guard
// makes the walk terminate even if the arena were ever corrupted into a
// cyclic shape.
func (t *Tree) Traverse(visit func(a *domain.Activity, depth int)) {
	visited := make(map[int]bool, len(t.nodes))
	var walk func(idx, depth int)
	walk = func(idx, depth int) {
		if visited[idx] {
			t.logger.Warn("cycle encountered during traversal", "index", idx)
			return
		}
		visited[idx] = true
		a := t.nodes[idx]
		visit(a, depth)
		for _, c := range a.Children {
			walk(c, depth+1)
		}
	}
	walk(0, 0)
}

// Stats computes the tree statistics used for initialization reporting and
// single-activity course detection.
func (t *Tree) Stats() domain.TreeStats {
	var stats domain.TreeStats
	t.Traverse(func(a *domain.Activity, depth int) {
		if a.Parent < 0 {
			return // synthetic root is not an activity
		}
		stats.TotalActivities++
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		if a.IsLeaf() {
			stats.LeafActivities++
		}
		if a.IsLaunchable() {
			stats.LaunchableActivities++
		}
	})
	return stats
}

// KnownObjectiveID reports whether the identifier is a local objective ID or
// a mapping target some activity reads.
func (t *Tree) KnownObjectiveID(id string) bool {
	_, ok := t.objectiveIDs[id]
	return ok
}

// Degraded returns how many sequencing definitions failed to compile.
func (t *Tree) Degraded() int { return t.degraded }

// Activities returns the arena in document order, excluding the root.
func (t *Tree) Activities() []*domain.Activity {
	out := make([]*domain.Activity, 0, len(t.nodes)-1)
	t.Traverse(func(a *domain.Activity, _ int) {
		if a.Parent >= 0 {
			out = append(out, a)
		}
	})
	return out
}
