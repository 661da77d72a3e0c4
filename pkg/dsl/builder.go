// Package dsl provides a fluent builder for course manifests. It is the
// programmatic alternative to loading a manifest from JSON or YAML, used
// heavily in tests and in embedding applications that generate course
// structures on the fly.
package dsl

import (
	"time"

	"github.com/openlms/sequent/pkg/domain"
)

// Course builds a manifest with a single organization.
type Course struct {
	id    string
	title string
	items []*Item
}

// New starts a course definition.
func New(id string) *Course {
	return &Course{id: id}
}

// Title sets the course title.
func (c *Course) Title(t string) *Course {
	c.title = t
	return c
}

// Add appends top-level items to the course.
func (c *Course) Add(items ...*Item) *Course {
	c.items = append(c.items, items...)
	return c
}

// Build assembles the manifest.
func (c *Course) Build() *domain.Manifest {
	org := domain.Organization{ID: c.id + "-org", Title: c.title}
	for _, it := range c.items {
		org.Items = append(org.Items, it.build())
	}
	return &domain.Manifest{
		Identifier:    c.id,
		Title:         c.title,
		Organizations: []domain.Organization{org},
	}
}

// Item builds one node of the item tree.
type Item struct {
	def      domain.Item
	children []*Item
}

// NewItem starts an item definition.
func NewItem(id string) *Item {
	return &Item{def: domain.Item{ID: id}}
}

// Title sets the item title.
func (i *Item) Title(t string) *Item {
	i.def.Title = t
	return i
}

// Resource marks the item launchable with the given resource reference.
func (i *Item) Resource(ref string) *Item {
	i.def.ResourceRef = ref
	return i
}

// Hidden hides the item from choice menus.
func (i *Item) Hidden() *Item {
	i.def.Hidden = true
	return i
}

// Add appends child items, turning this item into a cluster.
func (i *Item) Add(children ...*Item) *Item {
	i.children = append(i.children, children...)
	return i
}

// Control sets the full control mode record for the item's cluster.
func (i *Item) Control(choice, choiceExit, flow, forwardOnly bool) *Item {
	i.seq().Control = &domain.ControlModeDef{
		Choice:      choice,
		ChoiceExit:  choiceExit,
		Flow:        flow,
		ForwardOnly: forwardOnly,
	}
	return i
}

// PreRule appends a pre-condition rule.
func (i *Item) PreRule(action string, conds ...domain.ConditionDef) *Item {
	i.seq().PreRules = append(i.seq().PreRules, rule(action, conds))
	return i
}

// PostRule appends a post-condition rule.
func (i *Item) PostRule(action string, conds ...domain.ConditionDef) *Item {
	i.seq().PostRules = append(i.seq().PostRules, rule(action, conds))
	return i
}

// ExitRule appends an exit-condition rule.
func (i *Item) ExitRule(action string, conds ...domain.ConditionDef) *Item {
	i.seq().ExitRules = append(i.seq().ExitRules, rule(action, conds))
	return i
}

// AnyPreRule appends a pre-condition rule with the "any" combinator.
func (i *Item) AnyPreRule(action string, conds ...domain.ConditionDef) *Item {
	r := rule(action, conds)
	r.Combinator = "any"
	i.seq().PreRules = append(i.seq().PreRules, r)
	return i
}

// Objective declares the item's primary objective.
func (i *Item) Objective(id string) *Item {
	i.seq().Objective = &domain.ObjectiveDef{ID: id}
	return i
}

// MapGlobal attaches a global objective mapping to the item's objective,
// declaring it first if needed.
func (i *Item) MapGlobal(target string, read, write bool) *Item {
	if i.seq().Objective == nil {
		i.seq().Objective = &domain.ObjectiveDef{}
	}
	i.seq().Objective.Mapping = &domain.MappingDef{
		Target:         target,
		ReadSatisfied:  read,
		ReadMeasure:    read,
		WriteSatisfied: write,
		WriteMeasure:   write,
	}
	return i
}

// Weight sets the item's rollup contribution weight.
func (i *Item) Weight(w float64) *Item {
	i.rollup().ObjectiveWeight = w
	return i
}

// IfAttempted sets all four rollup policies to ifAttempted.
func (i *Item) IfAttempted() *Item {
	r := i.rollup()
	r.RequiredForSatisfied = "ifAttempted"
	r.RequiredForNotSatisfied = "ifAttempted"
	r.RequiredForCompleted = "ifAttempted"
	r.RequiredForIncomplete = "ifAttempted"
	return i
}

// AttemptLimit caps the number of attempts on the item.
func (i *Item) AttemptLimit(n int) *Item {
	i.seq().AttemptLimit = n
	return i
}

// TimeLimit caps the duration of a single attempt.
func (i *Item) TimeLimit(d time.Duration) *Item {
	i.seq().TimeLimit = d
	return i
}

func (i *Item) seq() *domain.Sequencing {
	if i.def.Sequencing == nil {
		i.def.Sequencing = &domain.Sequencing{}
	}
	return i.def.Sequencing
}

func (i *Item) rollup() *domain.RollupDef {
	s := i.seq()
	if s.Rollup == nil {
		s.Rollup = &domain.RollupDef{}
	}
	return s.Rollup
}

func (i *Item) build() domain.Item {
	out := i.def
	for _, c := range i.children {
		out.Items = append(out.Items, c.build())
	}
	return out
}

func rule(action string, conds []domain.ConditionDef) domain.RuleDef {
	return domain.RuleDef{Action: action, Conditions: conds}
}

// Cond is shorthand for a plain condition.
func Cond(kind string) domain.ConditionDef {
	return domain.ConditionDef{Kind: kind}
}

// Not is shorthand for a negated condition.
func Not(kind string) domain.ConditionDef {
	return domain.ConditionDef{Kind: kind, Not: true}
}

// MeasureAbove is shorthand for an objectiveMeasureGreaterThan condition.
func MeasureAbove(threshold float64) domain.ConditionDef {
	return domain.ConditionDef{Kind: "objectiveMeasureGreaterThan", Threshold: threshold}
}

// MeasureBelow is shorthand for an objectiveMeasureLessThan condition.
func MeasureBelow(threshold float64) domain.ConditionDef {
	return domain.ConditionDef{Kind: "objectiveMeasureLessThan", Threshold: threshold}
}
