package dsl_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/sequent/pkg/dsl"
)

func TestBuilder_Structure(t *testing.T) {
	m := dsl.New("demo").
		Title("Demo Course").
		Add(
			dsl.NewItem("unit").Title("Unit 1").Add(
				dsl.NewItem("intro").Resource("intro.html"),
				dsl.NewItem("quiz").Resource("quiz.html").Hidden(),
			),
		).
		Build()

	require.Len(t, m.Organizations, 1)
	org := m.Organizations[0]
	assert.Equal(t, "demo-org", org.ID)
	require.Len(t, org.Items, 1)

	unit := org.Items[0]
	assert.Equal(t, "Unit 1", unit.Title)
	require.Len(t, unit.Items, 2)
	assert.Equal(t, "intro.html", unit.Items[0].ResourceRef)
	assert.True(t, unit.Items[1].Hidden)
}

func TestBuilder_Sequencing(t *testing.T) {
	m := dsl.New("demo").
		Add(
			dsl.NewItem("gated").Resource("g.html").
				Control(true, false, true, true).
				PreRule("disabled", dsl.Not("satisfied")).
				AnyPreRule("skip", dsl.Cond("attempted"), dsl.MeasureBelow(0.2)).
				PostRule("continue", dsl.Cond("completed")).
				ExitRule("exitAll", dsl.Cond("timeLimitExceeded")).
				Objective("obj").MapGlobal("shared", true, true).
				Weight(1.5).
				IfAttempted().
				AttemptLimit(3).
				TimeLimit(45 * time.Minute),
		).
		Build()

	item := m.Organizations[0].Items[0]
	seq := item.Sequencing
	require.NotNil(t, seq)

	require.NotNil(t, seq.Control)
	assert.True(t, seq.Control.ForwardOnly)
	assert.False(t, seq.Control.ChoiceExit)

	require.Len(t, seq.PreRules, 2)
	assert.Equal(t, "disabled", seq.PreRules[0].Action)
	assert.True(t, seq.PreRules[0].Conditions[0].Not)
	assert.Equal(t, "any", seq.PreRules[1].Combinator)
	assert.Equal(t, "objectiveMeasureLessThan", seq.PreRules[1].Conditions[1].Kind)
	assert.Equal(t, 0.2, seq.PreRules[1].Conditions[1].Threshold)

	require.Len(t, seq.PostRules, 1)
	require.Len(t, seq.ExitRules, 1)

	require.NotNil(t, seq.Objective)
	assert.Equal(t, "obj", seq.Objective.ID)
	require.NotNil(t, seq.Objective.Mapping)
	assert.Equal(t, "shared", seq.Objective.Mapping.Target)
	assert.True(t, seq.Objective.Mapping.ReadMeasure)
	assert.True(t, seq.Objective.Mapping.WriteSatisfied)

	require.NotNil(t, seq.Rollup)
	assert.Equal(t, 1.5, seq.Rollup.ObjectiveWeight)
	assert.Equal(t, "ifAttempted", seq.Rollup.RequiredForCompleted)

	assert.Equal(t, 3, seq.AttemptLimit)
	assert.Equal(t, 45*time.Minute, seq.TimeLimit)
}

func TestBuilder_MapGlobalImpliesObjective(t *testing.T) {
	m := dsl.New("demo").
		Add(
			dsl.NewItem("a").Resource("a.html").MapGlobal("shared", false, true),
		).
		Build()

	seq := m.Organizations[0].Items[0].Sequencing
	require.NotNil(t, seq.Objective)
	require.NotNil(t, seq.Objective.Mapping)
	assert.Equal(t, "shared", seq.Objective.Mapping.Target)
}

func TestBuilder_ReusableSubtrees(t *testing.T) {
	lesson := func(id string) *dsl.Item {
		return dsl.NewItem(id).Resource(id + ".html")
	}
	m := dsl.New("demo").
		Add(
			dsl.NewItem("u1").Add(lesson("a"), lesson("b")),
			dsl.NewItem("u2").Add(lesson("c")),
		).
		Build()

	org := m.Organizations[0]
	require.Len(t, org.Items, 2)
	assert.Len(t, org.Items[0].Items, 2)
	assert.Len(t, org.Items[1].Items, 1)
}
