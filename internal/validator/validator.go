package validator

import (
	"fmt"
	"strings"

	"github.com/openlms/sequent/pkg/domain"
)

// Report collects validation findings. Problems reject the manifest;
// warnings describe definitions the engine will degrade to defaults.
type Report struct {
	Problems []string
	Warnings []string
}

// Err returns an error summarizing the problems, or nil when the manifest is
// structurally valid.
func (r *Report) Err() error {
	if len(r.Problems) == 0 {
		return nil
	}
	return fmt.Errorf("manifest validation failed:\n  - %s", strings.Join(r.Problems, "\n  - "))
}

// Validate checks the structural integrity of a parsed manifest: a resolvable
// default organization with at least one item, unique identifiers, bounded
// nesting, and rule definitions the engine can compile. Structural errors
// reject deterministically; the engine never falls back to permissive accept.
func Validate(m *domain.Manifest) *Report {
	r := &Report{}

	if len(m.Organizations) == 0 {
		r.Problems = append(r.Problems, "manifest has no organizations")
		return r
	}

	org := m.DefaultOrg()
	if m.DefaultOrganization != "" && org.ID != m.DefaultOrganization {
		r.Problems = append(r.Problems,
			fmt.Sprintf("default organization %q not found, would fall back to %q", m.DefaultOrganization, org.ID))
	}
	if len(org.Items) == 0 {
		r.Problems = append(r.Problems, fmt.Sprintf("organization %q has no items", org.ID))
		return r
	}

	seen := map[string]bool{}
	if org.ID != "" {
		seen[org.ID] = true
	}
	for i := range org.Items {
		checkItem(r, &org.Items[i], seen, 1)
	}
	checkGlobalFlow(r, org)
	return r
}

// checkGlobalFlow cross-checks objective mappings over the whole tree: a
// global written by some activity but never read anywhere feeds nothing, and
// the engine rejects the write at rollup time.
func checkGlobalFlow(r *Report, org *domain.Organization) {
	written := map[string][]string{}
	consumed := map[string]bool{}

	var walk func(item *domain.Item)
	walk = func(item *domain.Item) {
		if seq := item.Sequencing; seq != nil && seq.Objective != nil {
			if seq.Objective.ID != "" {
				consumed[seq.Objective.ID] = true
			}
			if mp := seq.Objective.Mapping; mp != nil && mp.Target != "" {
				if mp.ReadSatisfied || mp.ReadMeasure {
					consumed[mp.Target] = true
				}
				if mp.WriteSatisfied || mp.WriteMeasure {
					written[mp.Target] = append(written[mp.Target], item.ID)
				}
			}
		}
		for i := range item.Items {
			walk(&item.Items[i])
		}
	}
	for i := range org.Items {
		walk(&org.Items[i])
	}

	for target, writers := range written {
		if consumed[target] {
			continue
		}
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("global objective %q is written by %s but never read; the write will be rejected at rollup", target, strings.Join(writers, ", ")))
	}
}

func checkItem(r *Report, item *domain.Item, seen map[string]bool, depth int) {
	if depth > domain.MaxTreeDepth {
		r.Problems = append(r.Problems,
			fmt.Sprintf("item %q exceeds maximum nesting depth %d (cyclic or degenerate structure)", item.ID, domain.MaxTreeDepth))
		return
	}

	if item.ID == "" {
		r.Problems = append(r.Problems, fmt.Sprintf("item at depth %d has no identifier", depth))
	} else if seen[item.ID] {
		r.Problems = append(r.Problems, fmt.Sprintf("duplicate identifier %q", item.ID))
	} else {
		seen[item.ID] = true
	}

	if len(item.Items) > 0 && item.ResourceRef != "" {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("item %q has children and a resource reference; clusters are never launchable", item.ID))
	}
	if len(item.Items) == 0 && item.ResourceRef == "" {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("leaf item %q has no resource reference and will never be deliverable", item.ID))
	}

	checkSequencing(r, item)

	for i := range item.Items {
		checkItem(r, &item.Items[i], seen, depth+1)
	}
}

func checkSequencing(r *Report, item *domain.Item) {
	seq := item.Sequencing
	if seq == nil {
		return
	}

	for set, rules := range map[string][]domain.RuleDef{
		"pre": seq.PreRules, "post": seq.PostRules, "exit": seq.ExitRules,
	} {
		for i, rule := range rules {
			if _, ok := domain.ParseRuleAction(rule.Action); !ok {
				r.Warnings = append(r.Warnings,
					fmt.Sprintf("item %q: %s-condition rule %d has unknown action %q and will be dropped", item.ID, set, i, rule.Action))
			}
			if len(rule.Conditions) == 0 {
				r.Warnings = append(r.Warnings,
					fmt.Sprintf("item %q: %s-condition rule %d has no conditions and can never fire", item.ID, set, i))
			}
			for j, cond := range rule.Conditions {
				if _, ok := domain.ParseConditionKind(cond.Kind); !ok {
					r.Warnings = append(r.Warnings,
						fmt.Sprintf("item %q: %s-condition rule %d condition %d has unknown kind %q and will evaluate false", item.ID, set, i, j, cond.Kind))
				}
			}
		}
	}

	if seq.Rollup != nil {
		if seq.Rollup.ObjectiveWeight < 0 {
			r.Problems = append(r.Problems,
				fmt.Sprintf("item %q has negative objective weight %v", item.ID, seq.Rollup.ObjectiveWeight))
		}
		for _, p := range []string{
			seq.Rollup.RequiredForSatisfied, seq.Rollup.RequiredForNotSatisfied,
			seq.Rollup.RequiredForCompleted, seq.Rollup.RequiredForIncomplete,
		} {
			if _, ok := domain.ParseRollupPolicy(p); !ok {
				r.Warnings = append(r.Warnings,
					fmt.Sprintf("item %q has unknown rollup policy %q, defaulting to always", item.ID, p))
			}
		}
	}

	if seq.Objective != nil && seq.Objective.Mapping != nil && seq.Objective.Mapping.Target == "" {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("item %q declares an objective mapping without a target and it will be ignored", item.ID))
	}
}
