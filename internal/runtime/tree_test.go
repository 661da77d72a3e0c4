package runtime_test

import (
	"errors"
	"testing"

	"github.com/openlms/sequent/internal/runtime"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/dsl"
)

func linearCourse() *domain.Manifest {
	return dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html"),
			dsl.NewItem("b").Resource("b.html"),
			dsl.NewItem("c").Resource("c.html"),
		).
		Build()
}

func TestBuildTree_Basic(t *testing.T) {
	tree, err := runtime.BuildTree(linearCourse(), nil)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}

	stats := tree.Stats()
	if stats.TotalActivities != 3 {
		t.Errorf("expected 3 activities, got %d", stats.TotalActivities)
	}
	if stats.LaunchableActivities != 3 {
		t.Errorf("expected 3 launchable activities, got %d", stats.LaunchableActivities)
	}
	if stats.MaxDepth != 1 {
		t.Errorf("expected depth 1, got %d", stats.MaxDepth)
	}

	a, ok := tree.Get("a")
	if !ok {
		t.Fatal("activity 'a' not found")
	}
	if !a.IsLaunchable() {
		t.Error("expected 'a' to be launchable")
	}
	if parent := tree.Parent(a); parent == nil || parent.Parent != -1 {
		t.Error("expected 'a' to hang off the synthetic root")
	}

	if cur := tree.Current(); cur != nil {
		t.Errorf("fresh tree should have no current activity, got %q", cur.ID)
	}
}

func TestBuildTree_ClusterNotLaunchable(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("unit").Resource("ignored.html").Add(
				dsl.NewItem("lesson").Resource("lesson.html"),
			),
		).
		Build()

	tree, err := runtime.BuildTree(m, nil)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	unit, _ := tree.Get("unit")
	if unit.IsLaunchable() {
		t.Error("cluster with resource ref must not be launchable")
	}
	if got := tree.Stats().LaunchableActivities; got != 1 {
		t.Errorf("expected 1 launchable activity, got %d", got)
	}
}

func TestBuildTree_EmptyOrganization(t *testing.T) {
	_, err := runtime.BuildTree(dsl.New("empty").Build(), nil)
	if !errors.Is(err, domain.ErrEmptyTree) {
		t.Errorf("expected ErrEmptyTree, got %v", err)
	}
}

func TestBuildTree_DuplicateIdentifier(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html"),
			dsl.NewItem("a").Resource("b.html"),
		).
		Build()

	_, err := runtime.BuildTree(m, nil)
	if !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Errorf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestBuildTree_DepthLimit(t *testing.T) {
	leaf := dsl.NewItem("leaf").Resource("leaf.html")
	node := leaf
	for i := 0; i < domain.MaxTreeDepth+1; i++ {
		node = dsl.NewItem(itemID(i)).Add(node)
	}
	m := dsl.New("deep").Add(node).Build()

	_, err := runtime.BuildTree(m, nil)
	if !errors.Is(err, domain.ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected for degenerate nesting, got %v", err)
	}
}

func itemID(i int) string {
	return string(rune('a'+i%26)) + "-" + string(rune('0'+i/26%10)) + string(rune('0'+i%10))
}

func TestBuildTree_DegradedRules(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				PreRule("teleport", dsl.Cond("always")).
				PreRule("skip", dsl.Cond("fullMoon")),
		).
		Build()

	tree, err := runtime.BuildTree(m, nil)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	if tree.Degraded() != 2 {
		t.Errorf("expected 2 degraded definitions, got %d", tree.Degraded())
	}

	a, _ := tree.Get("a")
	// The rule with the unknown action is dropped entirely; the rule with the
	// unknown condition survives but can never fire.
	if len(a.PreRules) != 1 {
		t.Fatalf("expected 1 compiled pre rule, got %d", len(a.PreRules))
	}
	if a.PreRules[0].Action != domain.ActionSkip {
		t.Errorf("expected the surviving rule to carry skip, got %v", a.PreRules[0].Action)
	}
	if a.PreRules[0].Conditions[0].Kind != domain.ConditionUnknown {
		t.Errorf("expected unknown condition kind, got %v", a.PreRules[0].Conditions[0].Kind)
	}
}

func TestBuildTree_CompilesSequencing(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("unit").
				Control(false, false, true, true).
				Weight(2.5).
				IfAttempted().
				Add(
					dsl.NewItem("lesson").Resource("l.html").
						Objective("obj-lesson").
						MapGlobal("global-score", false, true),
					dsl.NewItem("review").Resource("r.html").
						MapGlobal("global-score", true, false),
					dsl.NewItem("scratch").Resource("s.html").
						MapGlobal("sink", false, true),
				),
		).
		Build()

	tree, err := runtime.BuildTree(m, nil)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}

	unit, _ := tree.Get("unit")
	if unit.Control == nil || !unit.Control.ForwardOnly || unit.Control.Choice {
		t.Errorf("control mode not compiled: %+v", unit.Control)
	}
	if unit.Rollup.Weight() != 2.5 {
		t.Errorf("expected weight 2.5, got %v", unit.Rollup.Weight())
	}
	if unit.Rollup.RequiredForSatisfied != domain.PolicyIfAttempted {
		t.Error("expected ifAttempted satisfaction policy")
	}

	lesson, _ := tree.Get("lesson")
	if lesson.Objective.ID != "obj-lesson" {
		t.Errorf("objective not compiled: %+v", lesson.Objective)
	}
	mp := lesson.Objective.Mapping
	if mp == nil || mp.GlobalID != "global-score" || !mp.WriteSatisfied || mp.ReadSatisfied {
		t.Errorf("mapping not compiled: %+v", mp)
	}
	if !tree.KnownObjectiveID("global-score") {
		t.Error("read mapping target should register as a known objective ID")
	}
	if tree.KnownObjectiveID("sink") {
		t.Error("write-only mapping target should not register as known")
	}
	if tree.KnownObjectiveID("nope") {
		t.Error("undeclared ID should not be known")
	}
}

func TestTree_CurrentPointer(t *testing.T) {
	tree, err := runtime.BuildTree(linearCourse(), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := tree.SetCurrent("b"); err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if cur := tree.Current(); cur == nil || cur.ID != "b" {
		t.Errorf("expected current 'b', got %v", cur)
	}

	if err := tree.SetCurrent("missing"); !errors.Is(err, domain.ErrActivityNotFound) {
		t.Errorf("expected ErrActivityNotFound, got %v", err)
	}
	// A failed SetCurrent leaves the pointer alone.
	if cur := tree.Current(); cur == nil || cur.ID != "b" {
		t.Errorf("current should still be 'b', got %v", cur)
	}

	tree.ClearCurrent()
	if tree.Current() != nil {
		t.Error("expected no current after ClearCurrent")
	}
}

func TestTree_ActivitiesDocumentOrder(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("u1").Add(
				dsl.NewItem("a").Resource("a.html"),
				dsl.NewItem("b").Resource("b.html"),
			),
			dsl.NewItem("u2").Add(
				dsl.NewItem("c").Resource("c.html"),
			),
		).
		Build()

	tree, err := runtime.BuildTree(m, nil)
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, a := range tree.Activities() {
		ids = append(ids, a.ID)
	}
	want := []string{"u1", "a", "b", "u2", "c"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}
