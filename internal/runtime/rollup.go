package runtime

import (
	"fmt"
	"log/slog"

	"github.com/openlms/sequent/internal/logging"
	"github.com/openlms/sequent/pkg/domain"
)

// RollupManager aggregates objective satisfaction, completion state and
// measure from children to ancestors, and maintains the session's global
// objective table.
type RollupManager struct {
	tree    *Tree
	globals map[string]domain.GlobalObjective
	logger  *slog.Logger
}

// NewRollupManager creates a rollup manager with an empty global table.
func NewRollupManager(tree *Tree, logger *slog.Logger) *RollupManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RollupManager{
		tree:    tree,
		globals: make(map[string]domain.GlobalObjective),
		logger:  logger,
	}
}

// Globals returns a copy of the global objective table.
func (r *RollupManager) Globals() map[string]domain.GlobalObjective {
	out := make(map[string]domain.GlobalObjective, len(r.globals))
	for k, v := range r.globals {
		out[k] = v
	}
	return out
}

// RestoreGlobals replaces the global table from a snapshot.
func (r *RollupManager) RestoreGlobals(globals map[string]domain.GlobalObjective) {
	r.globals = make(map[string]domain.GlobalObjective, len(globals))
	for k, v := range globals {
		r.globals[k] = v
	}
}

// Reset clears the global objective table.
func (r *RollupManager) Reset() {
	r.globals = make(map[string]domain.GlobalObjective)
}

// Process walks from the start activity to the root, re-deriving each
// ancestor's aggregates from its children. A failure on one activity is
// recorded and logged but never aborts the remaining chain.
func (r *RollupManager) Process(start *domain.Activity) domain.RollupResult {
	result := domain.RollupResult{}

	for a := start; a != nil; a = r.tree.Parent(a) {
		if err := r.rollupActivity(a); err != nil {
			if result.Failed == nil {
				result.Failed = make(map[string]string)
			}
			result.Failed[a.ID] = err.Error()
			r.logger.Warn("rollup failed for activity, continuing chain",
				"activity", a.ID, "error", err)
			continue
		}
		result.Updated = append(result.Updated, a.ID)
	}
	return result
}

// rollupActivity re-derives one activity's aggregates. Leaves roll up
// trivially to their own state; clusters aggregate their children. Global
// mapping applies afterwards: reads replace local values before writes
// publish them, so a mapped activity can consume and republish a shared
// objective within one pass.
func (r *RollupManager) rollupActivity(a *domain.Activity) error {
	if !a.IsLeaf() {
		if err := r.aggregate(a); err != nil {
			return err
		}
	}

	if mp := a.Objective.Mapping; mp != nil {
		r.applyRead(a, mp)
		if err := r.applyWrite(a, mp); err != nil {
			return err
		}
	}
	return nil
}

func (r *RollupManager) aggregate(parent *domain.Activity) error {
	children := make([]*domain.Activity, 0, len(parent.Children))
	for _, idx := range parent.Children {
		children = append(children, r.tree.At(idx))
	}

	parent.Objective.Satisfied = r.rollupSatisfaction(parent, children)
	r.rollupCompletion(parent, children)
	return r.rollupMeasure(parent, children)
}

// rollupSatisfaction derives the parent's objective status. Under the always
// policy every child participates: any notSatisfied child forces false, all
// satisfied yields true, anything else stays unknown. Under ifAttempted only
// attempted children participate and the result is the conjunction of their
// satisfaction.
func (r *RollupManager) rollupSatisfaction(parent *domain.Activity, children []*domain.Activity) domain.SatisfiedStatus {
	if parent.Rollup.RequiredForSatisfied == domain.PolicyIfAttempted {
		participants := 0
		allSatisfied := true
		for _, c := range children {
			if !c.Attempted() {
				continue
			}
			participants++
			if c.Objective.Satisfied != domain.Satisfied {
				allSatisfied = false
			}
		}
		if participants == 0 {
			return domain.SatisfiedUnknown
		}
		if allSatisfied {
			return domain.Satisfied
		}
		return domain.NotSatisfied
	}

	allTrue := true
	for _, c := range children {
		switch c.Objective.Satisfied {
		case domain.NotSatisfied:
			return domain.NotSatisfied
		case domain.SatisfiedUnknown:
			allTrue = false
		}
	}
	if allTrue && len(children) > 0 {
		return domain.Satisfied
	}
	return domain.SatisfiedUnknown
}

// rollupCompletion mirrors satisfaction rollup on the attempt state, with
// notAttempted playing the role of unknown.
func (r *RollupManager) rollupCompletion(parent *domain.Activity, children []*domain.Activity) {
	if parent.Rollup.RequiredForCompleted == domain.PolicyIfAttempted {
		participants := 0
		allCompleted := true
		for _, c := range children {
			if !c.Attempted() {
				continue
			}
			participants++
			if c.AttemptState != domain.AttemptCompleted {
				allCompleted = false
			}
		}
		if participants == 0 {
			return // nothing known, leave parent untouched
		}
		if allCompleted {
			parent.AttemptState = domain.AttemptCompleted
		} else {
			parent.AttemptState = domain.AttemptIncomplete
		}
		return
	}

	allCompleted := true
	anyIncomplete := false
	for _, c := range children {
		switch c.AttemptState {
		case domain.AttemptIncomplete:
			anyIncomplete = true
			allCompleted = false
		case domain.AttemptNotAttempted:
			allCompleted = false
		}
	}
	switch {
	case anyIncomplete:
		parent.AttemptState = domain.AttemptIncomplete
	case allCompleted && len(children) > 0:
		parent.AttemptState = domain.AttemptCompleted
	}
}

// rollupMeasure computes the weighted average over children with a defined
// measure. Children without a measure are excluded from both sums rather
// than treated as zero.
func (r *RollupManager) rollupMeasure(parent *domain.Activity, children []*domain.Activity) error {
	var weightedSum, weightSum float64
	for _, c := range children {
		if !c.Objective.MeasureKnown {
			continue
		}
		w := c.Rollup.Weight()
		if w < 0 {
			return fmt.Errorf("activity %q has negative objective weight %v", c.ID, w)
		}
		weightedSum += c.Objective.Measure * w
		weightSum += w
	}
	if weightSum == 0 {
		parent.Objective.MeasureKnown = false
		parent.Objective.Measure = 0
		return nil
	}
	parent.Objective.Measure = weightedSum / weightSum
	parent.Objective.MeasureKnown = true
	return nil
}

// applyRead replaces local objective values with the global table's current
// values for properties with read flags.
func (r *RollupManager) applyRead(a *domain.Activity, mp *domain.ObjectiveMapping) {
	g, ok := r.globals[mp.GlobalID]
	if !ok {
		return
	}
	if mp.ReadSatisfied && g.Satisfied != domain.SatisfiedUnknown {
		a.Objective.Satisfied = g.Satisfied
	}
	if mp.ReadMeasure && g.MeasureKnown {
		a.Objective.Measure = g.Measure
		a.Objective.MeasureKnown = true
	}
}

// applyWrite publishes local objective values to the global table for
// properties with write flags. Target identifiers must be read somewhere or
// declared as a local objective, so a typoed write destination surfaces
// instead of silently creating an entry nothing consumes.
func (r *RollupManager) applyWrite(a *domain.Activity, mp *domain.ObjectiveMapping) error {
	if !mp.WriteSatisfied && !mp.WriteMeasure {
		return nil
	}
	if !r.tree.KnownObjectiveID(mp.GlobalID) {
		return fmt.Errorf("write to unread global objective %q from activity %q", mp.GlobalID, a.ID)
	}
	g := r.globals[mp.GlobalID]
	if mp.WriteSatisfied {
		g.Satisfied = a.Objective.Satisfied
	}
	if mp.WriteMeasure {
		g.Measure = a.Objective.Measure
		g.MeasureKnown = a.Objective.MeasureKnown
	}
	r.globals[mp.GlobalID] = g
	return nil
}
