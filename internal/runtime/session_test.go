package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/openlms/sequent/internal/runtime"
	"github.com/openlms/sequent/pkg/domain"
	"github.com/openlms/sequent/pkg/dsl"
)

func newActiveSession(t *testing.T, m *domain.Manifest, opts ...runtime.Option) *runtime.Session {
	t.Helper()
	s, err := runtime.NewSession(m, opts...)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if res, err := s.Initialize(context.Background()); err != nil || !res.Success {
		t.Fatalf("Initialize failed: %v %+v", err, res)
	}
	return s
}

func TestSession_InitializeLifecycle(t *testing.T) {
	s, err := runtime.NewSession(linearCourse())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Operations before Initialize fail with sessionNotActive.
	res, err := s.Navigate(ctx, domain.NavStart, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Code != domain.CodeSessionNotActive {
		t.Errorf("expected sessionNotActive before init, got %+v", res)
	}

	init, err := s.Initialize(ctx)
	if err != nil || !init.Success {
		t.Fatalf("Initialize failed: %v %+v", err, init)
	}
	if init.Stats.TotalActivities != 3 {
		t.Errorf("expected 3 activities in init stats, got %d", init.Stats.TotalActivities)
	}

	// Double initialization is rejected.
	again, _ := s.Initialize(ctx)
	if again.Success {
		t.Error("second Initialize must fail")
	}
}

func TestNewSession_EmptyManifestFatal(t *testing.T) {
	_, err := runtime.NewSession(dsl.New("empty").Build())
	if !errors.Is(err, domain.ErrEmptyTree) {
		t.Errorf("expected ErrEmptyTree, got %v", err)
	}
}

func TestSession_SingleCurrentInvariant(t *testing.T) {
	var entered, left []string
	hooks := domain.LifecycleHooks{
		OnActivityEnter: func(_ context.Context, e *domain.ActivityEvent) {
			entered = append(entered, e.ActivityID)
		},
		OnActivityLeave: func(_ context.Context, e *domain.ActivityEvent) {
			left = append(left, e.ActivityID)
		},
	}

	s := newActiveSession(t, linearCourse(), runtime.WithHooks(hooks))

	mustNavigate(t, s, domain.NavStart, "")
	mustNavigate(t, s, domain.NavContinue, "")
	mustNavigate(t, s, domain.NavChoice, "a")

	// Every transition leaves the old current before entering the new one:
	// there is never a moment with two active activities.
	wantEntered := []string{"a", "b", "a"}
	wantLeft := []string{"a", "b"}
	if len(entered) != len(wantEntered) {
		t.Fatalf("expected enters %v, got %v", wantEntered, entered)
	}
	for i := range wantEntered {
		if entered[i] != wantEntered[i] {
			t.Fatalf("expected enters %v, got %v", wantEntered, entered)
		}
	}
	if len(left) != len(wantLeft) || left[0] != wantLeft[0] || left[1] != wantLeft[1] {
		t.Fatalf("expected leaves %v, got %v", wantLeft, left)
	}

	if cur := s.State().CurrentActivityID; cur != "a" {
		t.Errorf("expected current 'a', got %q", cur)
	}
}

func mustNavigate(t *testing.T, s *runtime.Session, kind domain.NavigationRequest, target string) domain.NavigationResult {
	t.Helper()
	res, err := s.Navigate(context.Background(), kind, target)
	if err != nil {
		t.Fatalf("%s failed: %v", kind, err)
	}
	if !res.Success {
		t.Fatalf("%s denied: %s (%s)", kind, res.Reason, res.Code)
	}
	return res
}

func TestSession_ContinuePreviousRoundTrip(t *testing.T) {
	s := newActiveSession(t, linearCourse())

	mustNavigate(t, s, domain.NavStart, "")
	res := mustNavigate(t, s, domain.NavContinue, "")
	if res.Target.ID != "b" {
		t.Fatalf("expected 'b', got %q", res.Target.ID)
	}
	res = mustNavigate(t, s, domain.NavPrevious, "")
	if res.Target.ID != "a" {
		t.Errorf("round trip should return to 'a', got %q", res.Target.ID)
	}
}

func TestSession_DeniedNavigationKeepsCurrent(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html"),
			dsl.NewItem("locked").Resource("l.html").
				PreRule("hiddenFromChoice", dsl.Cond("always")),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	res, err := s.Navigate(context.Background(), domain.NavChoice, "locked")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("choice of a hiddenFromChoice activity must be denied")
	}
	if res.Code != domain.CodeNavigationBlocked {
		t.Errorf("expected navigationBlocked, got %s", res.Code)
	}
	if cur := s.State().CurrentActivityID; cur != "a" {
		t.Errorf("denied request must leave current unchanged, got %q", cur)
	}
}

func TestSession_ForwardOnlyDeniesPrevious(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("unit").
				Control(true, true, true, true).
				Add(
					dsl.NewItem("a").Resource("a.html"),
					dsl.NewItem("b").Resource("b.html"),
				),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")
	mustNavigate(t, s, domain.NavContinue, "")

	res, _ := s.Navigate(context.Background(), domain.NavPrevious, "")
	if res.Success {
		t.Error("previous must be denied under forwardOnly")
	}
	if cur := s.State().CurrentActivityID; cur != "b" {
		t.Errorf("current must stay 'b', got %q", cur)
	}
}

func TestSession_SkipWalksPast(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html"),
			dsl.NewItem("skipped").Resource("s.html").
				PreRule("skip", dsl.Cond("always")),
			dsl.NewItem("c").Resource("c.html"),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	res := mustNavigate(t, s, domain.NavContinue, "")
	if res.Target.ID != "c" {
		t.Errorf("expected skip to land on 'c', got %q", res.Target.ID)
	}

	// Coming back, the skip applies in the backward direction too.
	res = mustNavigate(t, s, domain.NavPrevious, "")
	if res.Target.ID != "a" {
		t.Errorf("expected backward skip to land on 'a', got %q", res.Target.ID)
	}
}

func TestSession_AllRemainingSkippedBlocks(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html"),
			dsl.NewItem("b").Resource("b.html").
				PreRule("skip", dsl.Cond("always")),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	res, _ := s.Navigate(context.Background(), domain.NavContinue, "")
	if res.Success {
		t.Error("continue into an all-skipped remainder must be denied")
	}
	if res.Code != domain.CodeNavigationBlocked {
		t.Errorf("expected navigationBlocked, got %s", res.Code)
	}
}

func TestSession_UpdateProgressUnknownActivity(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				Objective("obj-a").MapGlobal("shared", false, true),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	yes := true
	res, err := s.UpdateProgress(context.Background(), "ghost", domain.ProgressUpdate{Satisfied: &yes})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Code != domain.CodeActivityNotFound {
		t.Errorf("expected activityNotFound, got %+v", res)
	}
	// The global table must be untouched by the failed update.
	if g, ok := s.State().GlobalObjectives["shared"]; ok && g.Satisfied != domain.SatisfiedUnknown {
		t.Errorf("global table mutated by failed update: %+v", g)
	}
}

func TestSession_ProgressRollsUpGlobals(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				Objective("obj-a").MapGlobal("shared", false, true),
			dsl.NewItem("b").Resource("b.html").
				Objective("obj-b").MapGlobal("shared", true, false).
				PreRule("disabled", dsl.Not("satisfied")),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	// b is gated on its own satisfaction, fed from the shared objective.
	res, _ := s.Navigate(context.Background(), domain.NavChoice, "b")
	if res.Success {
		t.Fatal("b should be disabled before the shared objective is written")
	}

	yes := true
	measure := 0.9
	pres, err := s.UpdateProgress(context.Background(), "a", domain.ProgressUpdate{
		Satisfied: &yes, Measure: &measure,
	})
	if err != nil || !pres.Success {
		t.Fatalf("UpdateProgress failed: %v %+v", err, pres)
	}

	g := s.State().GlobalObjectives["shared"]
	if g.Satisfied != domain.Satisfied || !g.MeasureKnown || g.Measure != 0.9 {
		t.Fatalf("expected shared objective written, got %+v", g)
	}

	// A rollup pass on b consumes the read mapping and unlocks it. Progress on
	// b itself triggers that pass.
	if _, err := s.UpdateProgress(context.Background(), "b", domain.ProgressUpdate{}); err != nil {
		t.Fatal(err)
	}
	mustNavigate(t, s, domain.NavChoice, "b")
}

func TestSession_MeasureClamped(t *testing.T) {
	s := newActiveSession(t, linearCourse())
	mustNavigate(t, s, domain.NavStart, "")

	measure := 3.5
	res, err := s.UpdateProgress(context.Background(), "a", domain.ProgressUpdate{Measure: &measure})
	if err != nil || !res.Success {
		t.Fatalf("UpdateProgress failed: %v %+v", err, res)
	}

	snap := s.Snapshot()
	if got := snap.Activities["a"].Measure; got != 1.0 {
		t.Errorf("expected measure clamped to 1.0, got %v", got)
	}
}

func TestSession_PostActionContinue(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				PostRule("continue", dsl.Cond("completed")),
			dsl.NewItem("b").Resource("b.html"),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	yes := true
	res, err := s.UpdateProgress(context.Background(), "a", domain.ProgressUpdate{Completed: &yes})
	if err != nil || !res.Success {
		t.Fatalf("UpdateProgress failed: %v %+v", err, res)
	}
	if res.PostActionName != "continue" {
		t.Errorf("expected post action continue, got %q", res.PostActionName)
	}
	if cur := s.State().CurrentActivityID; cur != "b" {
		t.Errorf("expected automatic advance to 'b', got %q", cur)
	}
}

func TestSession_PostActionRetryResetsState(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				PostRule("retry", dsl.Not("satisfied"), dsl.Cond("completed")),
		).
		Build()

	s := newActiveSession(t, m)
	mustNavigate(t, s, domain.NavStart, "")

	yes, no := true, false
	res, err := s.UpdateProgress(context.Background(), "a", domain.ProgressUpdate{
		Completed: &yes, Satisfied: &no,
	})
	if err != nil || !res.Success {
		t.Fatalf("UpdateProgress failed: %v %+v", err, res)
	}
	if res.PostActionName != "retry" {
		t.Fatalf("expected retry, got %q", res.PostActionName)
	}

	snap := s.Snapshot()
	rec := snap.Activities["a"]
	// Retry resets objective state and begins a new attempt. The attempt
	// count keeps growing; attempt limits count retries too.
	if rec.AttemptCount != 2 {
		t.Errorf("expected attempt count 2 after retry, got %d", rec.AttemptCount)
	}
	if rec.Satisfied != domain.SatisfiedUnknown {
		t.Errorf("expected satisfaction reset, got %v", rec.Satisfied)
	}
	if rec.AttemptState != domain.AttemptIncomplete {
		t.Errorf("expected a fresh incomplete attempt, got %v", rec.AttemptState)
	}
}

func TestSession_TerminateIsTerminal(t *testing.T) {
	s := newActiveSession(t, linearCourse())
	ctx := context.Background()
	mustNavigate(t, s, domain.NavStart, "")

	term, err := s.Terminate(ctx)
	if err != nil || !term.Success || term.FinalState != domain.SessionEnded {
		t.Fatalf("Terminate failed: %v %+v", err, term)
	}

	state := s.State()
	if state.SessionState != domain.SessionEnded {
		t.Errorf("expected ended, got %v", state.SessionState)
	}
	if len(state.Available) != 0 {
		t.Errorf("ended session must expose no navigation, got %v", state.Available)
	}

	res, _ := s.Navigate(ctx, domain.NavContinue, "")
	if res.Success || res.Code != domain.CodeSessionNotActive {
		t.Errorf("navigation after termination must fail with sessionNotActive, got %+v", res)
	}
	pres, _ := s.UpdateProgress(ctx, "a", domain.ProgressUpdate{})
	if pres.Success {
		t.Error("progress after termination must fail")
	}

	// Terminate is idempotent in effect: a second call reports failure
	// without changing the final state.
	term2, _ := s.Terminate(ctx)
	if term2.Success || term2.FinalState != domain.SessionEnded {
		t.Errorf("unexpected second terminate result: %+v", term2)
	}
}

func TestSession_InvalidRequestKind(t *testing.T) {
	s := newActiveSession(t, linearCourse())

	res, err := s.Navigate(context.Background(), domain.NavigationRequest("teleport"), "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Code != domain.CodeInvalidRequest {
		t.Errorf("expected invalidNavigationRequest, got %+v", res)
	}
}

func TestSession_SuspendAndResume(t *testing.T) {
	s := newActiveSession(t, linearCourse())
	mustNavigate(t, s, domain.NavStart, "")
	mustNavigate(t, s, domain.NavContinue, "")

	res := mustNavigate(t, s, domain.NavSuspendAll, "")
	if res.Target != nil {
		t.Error("suspendAll must not deliver a target")
	}

	// Round-trip through a snapshot, as a hosting layer would.
	snap := s.Snapshot()
	if snap.SuspendedActivity != "b" {
		t.Fatalf("expected suspended 'b', got %q", snap.SuspendedActivity)
	}

	restored, err := runtime.NewSession(linearCourse())
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	res, err = restored.Navigate(context.Background(), domain.NavResumeAll, "")
	if err != nil || !res.Success {
		t.Fatalf("resumeAll failed: %v %+v", err, res)
	}
	if res.Target.ID != "b" {
		t.Errorf("expected resume at 'b', got %q", res.Target.ID)
	}
}

func TestSession_RestoreRoundTrip(t *testing.T) {
	s := newActiveSession(t, linearCourse())
	mustNavigate(t, s, domain.NavStart, "")
	yes := true
	if _, err := s.UpdateProgress(context.Background(), "a", domain.ProgressUpdate{Completed: &yes}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()

	restored, err := runtime.NewSession(linearCourse())
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(snap); err != nil {
		t.Fatal(err)
	}

	if restored.ID() != s.ID() {
		t.Errorf("expected restored ID %q, got %q", s.ID(), restored.ID())
	}
	got := restored.Snapshot()
	if got.Activities["a"].AttemptState != domain.AttemptCompleted {
		t.Errorf("expected completed attempt state on 'a', got %v", got.Activities["a"].AttemptState)
	}
	if got.CurrentActivityID != snap.CurrentActivityID {
		t.Errorf("expected current %q, got %q", snap.CurrentActivityID, got.CurrentActivityID)
	}
}

func TestSession_BrowseModeSurvivesSnapshot(t *testing.T) {
	m := dsl.New("course").
		Add(
			dsl.NewItem("unit").
				Control(false, true, true, false).
				Add(
					dsl.NewItem("a").Resource("a.html"),
					dsl.NewItem("b").Resource("b.html"),
				),
		).
		Build()

	s := newActiveSession(t, m, runtime.WithBrowseMode(true))
	mustNavigate(t, s, domain.NavStart, "")

	snap := s.Snapshot()
	if !snap.Browse {
		t.Fatal("snapshot must record browse mode")
	}

	// A hosting layer rebuilds the session per request without the original
	// construction options; the snapshot alone must carry browse through.
	restored, err := runtime.NewSession(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := restored.Restore(snap); err != nil {
		t.Fatal(err)
	}

	res, err := restored.Navigate(context.Background(), domain.NavChoice, "b")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Errorf("browse choice must bypass the disabled choice mode after restore, got %s (%s)", res.Reason, res.Code)
	}
}

func TestSession_HooksMayReenterSession(t *testing.T) {
	// Hooks fire after the operation releases internal state, so a hook can
	// read back without deadlocking.
	var s *runtime.Session
	var observed []string
	hooks := domain.LifecycleHooks{
		OnActivityEnter: func(_ context.Context, e *domain.ActivityEvent) {
			observed = append(observed, s.State().CurrentActivityID)
		},
		OnSessionEnd: func(_ context.Context, _ *domain.SessionEvent) {
			observed = append(observed, string(s.State().SessionState))
		},
	}

	s = newActiveSession(t, linearCourse(), runtime.WithHooks(hooks))
	mustNavigate(t, s, domain.NavStart, "")
	mustNavigate(t, s, domain.NavContinue, "")
	if term, err := s.Terminate(context.Background()); err != nil || !term.Success {
		t.Fatalf("Terminate failed: %v %+v", err, term)
	}

	// Each hook saw the session state as left by the operation that raised it.
	want := []string{"a", "b", string(domain.SessionEnded)}
	if len(observed) != len(want) {
		t.Fatalf("expected observations %v, got %v", want, observed)
	}
	for i := range want {
		if observed[i] != want[i] {
			t.Fatalf("expected observations %v, got %v", want, observed)
		}
	}
}

func TestSession_MaxDepthGuard(t *testing.T) {
	// Every activity skips while unattempted, so the start request hops
	// until the skip walk exhausts the tree or hits the hop budget.
	m := dsl.New("course").
		Add(
			dsl.NewItem("a").Resource("a.html").
				PreRule("skip", dsl.Not("attempted")),
			dsl.NewItem("b").Resource("b.html").
				PreRule("skip", dsl.Not("attempted")),
		).
		Build()

	s, err := runtime.NewSession(m, runtime.WithMaxSequencingDepth(3))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	res, err := s.Navigate(context.Background(), domain.NavStart, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected the depth guard to deny the request")
	}
	if res.Code != domain.CodeMaxDepthExceeded && res.Code != domain.CodeNavigationBlocked {
		t.Errorf("expected maxDepthExceeded or navigationBlocked, got %s", res.Code)
	}
}
