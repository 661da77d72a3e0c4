package runtime_test

import (
	"errors"
	"testing"

	"github.com/openlms/sequent/internal/runtime"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/dsl"
)

func buildNavigator(t *testing.T, m *domain.Manifest, browse bool) (*runtime.Tree, *runtime.Navigator) {
	t.Helper()
	tree, err := runtime.BuildTree(m, nil)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	seq := runtime.NewSequencer(tree, nil, nil)
	return tree, runtime.NewNavigator(tree, seq, browse, nil)
}

func TestNavigator_StartResolvesFirstLaunchable(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("unit").Add(
				dsl.NewItem("intro").Resource("intro.html"),
				dsl.NewItem("quiz").Resource("quiz.html"),
			),
		).
		Build()

	tree, nav := buildNavigator(t, m, false)

	res, err := nav.Process(domain.NavStart, "")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if res.Target == nil || res.Target.ID != "intro" {
		t.Errorf("expected delivery of 'intro', got %v", res.Target)
	}
	// Entry via the root picks the leaf as the entered activity too.
	if res.Entered == nil || res.Entered.ID != "intro" {
		t.Errorf("expected entered 'intro', got %v", res.Entered)
	}

	// Start with a current activity present is blocked.
	_ = tree.SetCurrent("intro")
	_, err = nav.Process(domain.NavStart, "")
	if !errors.Is(err, domain.ErrNavigationBlocked) {
		t.Errorf("expected ErrNavigationBlocked, got %v", err)
	}
}

func TestNavigator_FlowAdjacency(t *testing.T) {
	tree, nav := buildNavigator(t, linearCourse(), false)
	_ = tree.SetCurrent("b")

	res, err := nav.Process(domain.NavContinue, "")
	if err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	if res.Target.ID != "c" {
		t.Errorf("expected 'c', got %q", res.Target.ID)
	}

	res, err = nav.Process(domain.NavPrevious, "")
	if err != nil {
		t.Fatalf("previous failed: %v", err)
	}
	if res.Target.ID != "a" {
		t.Errorf("expected 'a', got %q", res.Target.ID)
	}
}

func TestNavigator_NoWraparound(t *testing.T) {
	tree, nav := buildNavigator(t, linearCourse(), false)

	_ = tree.SetCurrent("c")
	if _, err := nav.Process(domain.NavContinue, ""); !errors.Is(err, domain.ErrNavigationBlocked) {
		t.Errorf("continue past the end must block, got %v", err)
	}

	_ = tree.SetCurrent("a")
	if _, err := nav.Process(domain.NavPrevious, ""); !errors.Is(err, domain.ErrNavigationBlocked) {
		t.Errorf("previous before the start must block, got %v", err)
	}
}

func TestNavigator_Choice(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html"),
			dsl.NewItem("hidden").Resource("h.html").Hidden(),
			dsl.NewItem("cluster").Add(
				dsl.NewItem("inner").Resource("i.html"),
			),
		).
		Build()

	tree, nav := buildNavigator(t, m, false)
	_ = tree.SetCurrent("a")

	res, err := nav.Process(domain.NavChoice, "cluster")
	if err != nil {
		t.Fatalf("choice failed: %v", err)
	}
	if res.Entered.ID != "cluster" || res.Target.ID != "inner" {
		t.Errorf("expected cluster/inner, got %v/%v", res.Entered.ID, res.Target.ID)
	}

	if _, err := nav.Process(domain.NavChoice, ""); !errors.Is(err, domain.ErrInvalidNavigationRequest) {
		t.Errorf("choice without target: expected ErrInvalidNavigationRequest, got %v", err)
	}
	if _, err := nav.Process(domain.NavChoice, "ghost"); !errors.Is(err, domain.ErrActivityNotFound) {
		t.Errorf("unknown target: expected ErrActivityNotFound, got %v", err)
	}
	if _, err := nav.Process(domain.NavChoice, "hidden"); !errors.Is(err, domain.ErrNavigationBlocked) {
		t.Errorf("hidden target: expected ErrNavigationBlocked, got %v", err)
	}
}

func TestNavigator_ChoiceExitScope(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("locked").
				Control(true, false, true, false).
				Add(
					dsl.NewItem("l1").Resource("l1.html"),
					dsl.NewItem("l2").Resource("l2.html"),
				),
			dsl.NewItem("outside").Resource("o.html"),
		).
		Build()

	tree, nav := buildNavigator(t, m, false)
	_ = tree.SetCurrent("l1")

	// Choice within the scope is fine.
	if _, err := nav.Process(domain.NavChoice, "l2"); err != nil {
		t.Errorf("in-scope choice failed: %v", err)
	}

	// Leaving the scope requires choiceExit.
	if _, err := nav.Process(domain.NavChoice, "outside"); !errors.Is(err, domain.ErrNavigationBlocked) {
		t.Errorf("expected choiceExit block, got %v", err)
	}
}

func TestNavigator_BrowseModeBypassesRestrictions(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("unit").
				Control(false, false, false, false).
				Add(
					dsl.NewItem("a").Resource("a.html"),
					dsl.NewItem("hidden").Resource("h.html").Hidden(),
				),
		).
		Build()

	tree, nav := buildNavigator(t, m, true)
	_ = tree.SetCurrent("a")

	if _, err := nav.Process(domain.NavContinue, ""); err != nil {
		t.Errorf("browse continue should bypass disabled flow: %v", err)
	}
	if _, err := nav.Process(domain.NavChoice, "hidden"); err != nil {
		t.Errorf("browse choice should reach hidden activities: %v", err)
	}
}

func TestNavigator_SuspendResume(t *testing.T) {
	tree, nav := buildNavigator(t, linearCourse(), false)
	_ = tree.SetCurrent("b")
	b, _ := tree.Get("b")
	b.State = domain.ActivityActive

	res, err := nav.Process(domain.NavSuspendAll, "")
	if err != nil {
		t.Fatalf("suspendAll failed: %v", err)
	}
	if res.Entered != nil {
		t.Error("suspendAll must not resolve a new target")
	}
	if b.State != domain.ActivitySuspended {
		t.Errorf("expected suspended state, got %v", b.State)
	}
	if nav.Suspended() != "b" {
		t.Errorf("expected suspended marker 'b', got %q", nav.Suspended())
	}

	tree.ClearCurrent()
	res, err = nav.Process(domain.NavResumeAll, "")
	if err != nil {
		t.Fatalf("resumeAll failed: %v", err)
	}
	if res.Target.ID != "b" {
		t.Errorf("expected resume at 'b', got %q", res.Target.ID)
	}
	if nav.Suspended() != "" {
		t.Error("resumeAll must clear the suspended marker")
	}

	// Resume without a suspension is blocked.
	tree.ClearCurrent()
	if _, err := nav.Process(domain.NavResumeAll, ""); !errors.Is(err, domain.ErrNavigationBlocked) {
		t.Errorf("expected ErrNavigationBlocked, got %v", err)
	}
}

func TestNavigator_Available(t *testing.T) {
	tree, nav := buildNavigator(t, linearCourse(), false)

	has := func(reqs []domain.NavigationRequest, kind domain.NavigationRequest) bool {
		for _, r := range reqs {
			if r == kind {
				return true
			}
		}
		return false
	}

	// Before delivery only start (and resumeAll when suspended) is available.
	avail := nav.Available()
	if !has(avail, domain.NavStart) || has(avail, domain.NavContinue) {
		t.Errorf("unexpected pre-delivery set: %v", avail)
	}

	_ = tree.SetCurrent("a")
	avail = nav.Available()
	if has(avail, domain.NavStart) {
		t.Error("start must not be available with a current activity")
	}
	if !has(avail, domain.NavContinue) {
		t.Error("continue should be available from 'a'")
	}
	if has(avail, domain.NavPrevious) {
		t.Error("previous must not be available at the first activity")
	}
	if !has(avail, domain.NavChoice) || !has(avail, domain.NavExit) || !has(avail, domain.NavSuspendAll) {
		t.Errorf("expected choice and exit family, got %v", avail)
	}

	_ = tree.SetCurrent("c")
	avail = nav.Available()
	if has(avail, domain.NavContinue) {
		t.Error("continue must not be available at the last activity")
	}
	if !has(avail, domain.NavPrevious) {
		t.Error("previous should be available at the last activity")
	}
}
