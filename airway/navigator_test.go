package airway

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestNavigator(t *testing.T, branches ...*AirwayBranch) *Navigator {
	t.Helper()
	n := NewNavigator(DefaultConfig().Navigator)
	if len(branches) > 0 {
		tree, err := BuildTree(branches)
		if err != nil {
			t.Fatalf("BuildTree failed: %v", err)
		}
		n.Install(tree)
	}
	return n
}

func TestStartNavigation_NoModel(t *testing.T) {
	n := NewNavigator(DefaultConfig().Navigator)
	if err := n.StartNavigation(); !errors.Is(err, ErrNavigation) {
		t.Errorf("expected ErrNavigation with no model, got %v", err)
	}
	if n.State() != StateIdle {
		t.Errorf("navigator should stay idle, got %v", n.State())
	}
}

// TestNavigator_SevenPointTrachea walks the canonical single-branch model:
// a 7-point trachea with no children.
func TestNavigator_SevenPointTrachea(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))

	if err := n.StartNavigation(); err != nil {
		t.Fatalf("StartNavigation failed: %v", err)
	}
	if n.State() != StateNavigating {
		t.Fatalf("expected navigating state, got %v", n.State())
	}

	for i := 0; i < 4; i++ {
		n.MoveForward()
	}
	if n.CurrentIndex() != 4 {
		t.Errorf("expected index 4 after four steps, got %d", n.CurrentIndex())
	}
	if want := 4.0 / 6.0; math.Abs(n.Progress()-want) > 1e-9 {
		t.Errorf("expected progress %.4f, got %.4f", want, n.Progress())
	}
	if len(n.AvailableBranches()) != 0 {
		t.Errorf("expected no available branches below threshold, got %d", len(n.AvailableBranches()))
	}

	n.MoveForward()
	if n.CurrentIndex() != 5 {
		t.Errorf("expected index 5, got %d", n.CurrentIndex())
	}
	if want := 5.0 / 6.0; math.Abs(n.Progress()-want) > 1e-9 {
		t.Errorf("expected progress %.4f, got %.4f", want, n.Progress())
	}

	n.MoveForward()
	if n.CurrentIndex() != 6 {
		t.Errorf("expected index 6 at branch end, got %d", n.CurrentIndex())
	}
	if n.Progress() != 1.0 {
		t.Errorf("expected progress 1.0, got %.4f", n.Progress())
	}
	// Trachea has no children, so the set stays empty even at full progress.
	if len(n.AvailableBranches()) != 0 {
		t.Errorf("expected no available branches on a leaf, got %d", len(n.AvailableBranches()))
	}

	// Further steps clamp at the end.
	n.MoveForward()
	n.MoveForward()
	if n.CurrentIndex() != 6 {
		t.Errorf("index exceeded bounds: %d", n.CurrentIndex())
	}

	t.Logf("final: index=%d progress=%.3f state=%v", n.CurrentIndex(), n.Progress(), n.State())
}

func TestMoveForward_WhileIdle_NoOp(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))

	n.MoveForward()
	if n.CurrentIndex() != 0 {
		t.Errorf("idle move should be a no-op, index=%d", n.CurrentIndex())
	}

	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}
	n.MoveForward()
	n.StopNavigation()
	n.MoveForward()
	if n.CurrentIndex() != 1 {
		t.Errorf("stopped move should be a no-op, index=%d", n.CurrentIndex())
	}
}

func TestMoveBackward_ClampsAtStart(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.MoveBackward()
	n.MoveBackward()
	if n.CurrentIndex() != 0 {
		t.Errorf("expected index clamped at 0, got %d", n.CurrentIndex())
	}
	if n.Progress() != 0 {
		t.Errorf("expected progress 0, got %.4f", n.Progress())
	}
}

func TestJumpToProgress_Bounds(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 11))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.JumpToProgress(0)
	if n.CurrentIndex() != 0 {
		t.Errorf("JumpToProgress(0): expected index 0, got %d", n.CurrentIndex())
	}

	n.JumpToProgress(1)
	if n.CurrentIndex() != 10 {
		t.Errorf("JumpToProgress(1): expected index 10, got %d", n.CurrentIndex())
	}

	n.JumpToProgress(-0.5)
	if n.CurrentIndex() != 0 || n.Progress() != 0 {
		t.Errorf("negative progress should clamp to start: index=%d progress=%.3f",
			n.CurrentIndex(), n.Progress())
	}

	n.JumpToProgress(1.5)
	if n.CurrentIndex() != 10 || n.Progress() != 1.0 {
		t.Errorf("overlarge progress should clamp to end: index=%d progress=%.3f",
			n.CurrentIndex(), n.Progress())
	}

	n.JumpToProgress(0.5)
	if n.CurrentIndex() != 5 {
		t.Errorf("JumpToProgress(0.5): expected index 5, got %d", n.CurrentIndex())
	}
	if n.Progress() < 0 || n.Progress() > 1 {
		t.Errorf("progress out of range: %.4f", n.Progress())
	}
}

func TestSinglePointBranch_ProgressStaysZero(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 1))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.MoveForward()
	n.JumpToProgress(1)
	if n.Progress() != 0 {
		t.Errorf("single-point branch should hold progress 0, got %.3f", n.Progress())
	}
}

func TestBranchThreshold_PopulatesChildren(t *testing.T) {
	n := newTestNavigator(t,
		testBranch("trachea", "", 0, 11),
		testBranch("left_main", "trachea", 1, 8),
		testBranch("right_main", "trachea", 1, 8),
	)
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	// Index 9 of 11 is exactly 0.9: not beyond the threshold.
	n.JumpToProgress(0.9)
	if len(n.AvailableBranches()) != 0 {
		t.Errorf("expected empty set at threshold, got %d", len(n.AvailableBranches()))
	}

	n.JumpToProgress(1.0)
	available := n.AvailableBranches()
	if len(available) != 2 {
		t.Fatalf("expected 2 available branches past threshold, got %d", len(available))
	}
	if available[0].ID != "left_main" || available[1].ID != "right_main" {
		t.Errorf("unexpected available branches: %s, %s", available[0].ID, available[1].ID)
	}

	// Dropping back below the threshold empties the set again.
	n.JumpToProgress(0.5)
	if len(n.AvailableBranches()) != 0 {
		t.Errorf("expected empty set below threshold, got %d", len(n.AvailableBranches()))
	}
}

func TestNavigateToBranch_And_GoBack(t *testing.T) {
	n := newTestNavigator(t,
		testBranch("trachea", "", 0, 7),
		testBranch("left_main", "trachea", 1, 9),
	)
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.JumpToProgress(0.5)
	wantIndex := n.CurrentIndex()
	wantProgress := n.Progress()

	n.NavigateToBranch("left_main")
	if n.CurrentBranch().ID != "left_main" {
		t.Fatalf("expected cursor on left_main, got %s", n.CurrentBranch().ID)
	}
	if n.CurrentIndex() != 0 || n.Progress() != 0 {
		t.Errorf("branch switch should start at index 0: index=%d progress=%.3f",
			n.CurrentIndex(), n.Progress())
	}
	if n.HistoryDepth() != 1 {
		t.Fatalf("expected 1 history entry, got %d", n.HistoryDepth())
	}

	n.GoBack()
	if n.CurrentBranch().ID != "trachea" {
		t.Errorf("expected cursor restored to trachea, got %s", n.CurrentBranch().ID)
	}
	if n.CurrentIndex() != wantIndex {
		t.Errorf("expected index %d restored, got %d", wantIndex, n.CurrentIndex())
	}
	if n.Progress() != wantProgress {
		t.Errorf("expected progress %.4f restored exactly, got %.4f", wantProgress, n.Progress())
	}
	if n.HistoryDepth() != 0 {
		t.Errorf("expected empty history after GoBack, got %d", n.HistoryDepth())
	}
}

func TestNavigateToBranch_UnknownID_NoOp(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.NavigateToBranch("ghost")
	if n.CurrentBranch().ID != "trachea" || n.HistoryDepth() != 0 {
		t.Errorf("unknown branch switch should be a no-op: branch=%s history=%d",
			n.CurrentBranch().ID, n.HistoryDepth())
	}
}

func TestGoBack_EmptyHistory_NoOp(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.JumpToProgress(0.5)
	before := n.CurrentIndex()
	n.GoBack()
	if n.CurrentIndex() != before {
		t.Errorf("GoBack with empty history should be a no-op")
	}
}

func TestGoBack_UnresolvableBranch_Discarded(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}
	n.JumpToProgress(0.5)

	// Inject an entry whose branch never existed; the pop must discard it
	// without moving the cursor.
	n.history = append(n.history, HistoryEntry{
		BranchID: "ghost", Index: 2, Progress: 0.4, Time: time.Now(),
	})

	beforeIndex := n.CurrentIndex()
	n.GoBack()
	if n.CurrentBranch().ID != "trachea" || n.CurrentIndex() != beforeIndex {
		t.Errorf("unresolvable entry should not move the cursor: branch=%s index=%d",
			n.CurrentBranch().ID, n.CurrentIndex())
	}
	if n.HistoryDepth() != 0 {
		t.Errorf("unresolvable entry should still be popped, history=%d", n.HistoryDepth())
	}
}

func TestHistory_CapacityEviction(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 30))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	// Push 21 entries with distinct indices 1..21.
	for i := 1; i <= 21; i++ {
		n.JumpToProgress(float64(i) / 29.0)
		n.NavigateToBranch("trachea")
	}

	if n.HistoryDepth() != 20 {
		t.Fatalf("expected history capped at 20, got %d", n.HistoryDepth())
	}

	// Unwind everything: the most recent entry restores index 21, and the
	// oldest surviving entry is index 2 (index 1 was evicted).
	n.GoBack()
	if n.CurrentIndex() != 21 {
		t.Errorf("first GoBack should restore index 21, got %d", n.CurrentIndex())
	}
	for n.HistoryDepth() > 1 {
		n.GoBack()
	}
	n.GoBack()
	if n.CurrentIndex() != 2 {
		t.Errorf("oldest surviving entry should be index 2, got %d", n.CurrentIndex())
	}
	if n.HistoryDepth() != 0 {
		t.Errorf("expected drained history, got %d", n.HistoryDepth())
	}
}

func TestResetToTrachea(t *testing.T) {
	n := newTestNavigator(t,
		testBranch("trachea", "", 0, 7),
		testBranch("left_main", "trachea", 1, 9),
	)
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}
	n.NavigateToBranch("left_main")
	n.MoveForward()

	n.ResetToTrachea()
	if n.State() != StateIdle {
		t.Errorf("expected idle after reset, got %v", n.State())
	}
	if n.CurrentBranch().ID != "trachea" || n.CurrentIndex() != 0 || n.Progress() != 0 {
		t.Errorf("expected cursor at trachea start: branch=%s index=%d progress=%.3f",
			n.CurrentBranch().ID, n.CurrentIndex(), n.Progress())
	}
	if n.HistoryDepth() != 0 {
		t.Errorf("expected cleared history, got %d", n.HistoryDepth())
	}
}

func TestPauseResume(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.Pause()
	if n.State() != StatePaused {
		t.Fatalf("expected paused, got %v", n.State())
	}
	n.MoveForward()
	if n.CurrentIndex() != 0 {
		t.Errorf("paused move should be a no-op, index=%d", n.CurrentIndex())
	}

	n.Resume()
	if n.State() != StateNavigating {
		t.Fatalf("expected navigating after resume, got %v", n.State())
	}
	n.MoveForward()
	if n.CurrentIndex() != 1 {
		t.Errorf("expected index 1 after resume, got %d", n.CurrentIndex())
	}
}

func TestSpeedClamp_AndStepSize(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 20))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}

	n.SetSpeed(0.01)
	if n.Speed() != 0.1 {
		t.Errorf("expected speed clamped to 0.1, got %.2f", n.Speed())
	}
	n.MoveForward()
	if n.CurrentIndex() != 1 {
		t.Errorf("minimum speed should still step one point, got index %d", n.CurrentIndex())
	}

	n.SetSpeed(9.0)
	if n.Speed() != 5.0 {
		t.Errorf("expected speed clamped to 5.0, got %.2f", n.Speed())
	}
	n.MoveForward()
	if n.CurrentIndex() != 6 {
		t.Errorf("speed 5 should step five points, got index %d", n.CurrentIndex())
	}

	n.SetSpeed(2.4)
	n.MoveForward()
	if n.CurrentIndex() != 8 {
		t.Errorf("speed 2.4 should round to a two-point step, got index %d", n.CurrentIndex())
	}
}

func TestFieldOfViewClamp(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))

	n.SetFieldOfView(10)
	if n.FieldOfView() != 30 {
		t.Errorf("expected FOV clamped to 30, got %.1f", n.FieldOfView())
	}
	n.SetFieldOfView(500)
	if n.FieldOfView() != 120 {
		t.Errorf("expected FOV clamped to 120, got %.1f", n.FieldOfView())
	}
	n.SetFieldOfView(75)
	if n.FieldOfView() != 75 {
		t.Errorf("expected FOV 75 unchanged, got %.1f", n.FieldOfView())
	}
}

func TestGuidedTourTransitions(t *testing.T) {
	n := newTestNavigator(t,
		testBranch("trachea", "", 0, 7),
		testBranch("left_main", "trachea", 1, 9),
	)

	if n.AnimateToWaypoint() {
		t.Error("AnimateToWaypoint should refuse outside a tour")
	}

	if err := n.BeginGuidedTour(); err != nil {
		t.Fatalf("BeginGuidedTour failed: %v", err)
	}
	if n.State() != StateGuidedTour || n.Mode() != ModeGuided {
		t.Fatalf("expected guided tour state, got state=%v mode=%v", n.State(), n.Mode())
	}

	if !n.AnimateToWaypoint() {
		t.Fatal("AnimateToWaypoint should start from guidedTour")
	}
	if n.State() != StateAnimating {
		t.Fatalf("expected animating, got %v", n.State())
	}

	n.ArriveAtWaypoint("left_main", 4)
	if n.State() != StateAtWaypoint {
		t.Fatalf("expected atWaypoint, got %v", n.State())
	}
	if n.CurrentBranch().ID != "left_main" || n.CurrentIndex() != 4 {
		t.Errorf("waypoint arrival misplaced cursor: branch=%s index=%d",
			n.CurrentBranch().ID, n.CurrentIndex())
	}

	if !n.AnimateToWaypoint() {
		t.Fatal("AnimateToWaypoint should continue from atWaypoint")
	}
	n.ArriveAtWaypoint("left_main", 8)

	n.EndGuidedTour()
	if n.State() != StateIdle {
		t.Errorf("expected idle after tour, got %v", n.State())
	}
}

func TestNavigator_PoseAndEducational(t *testing.T) {
	n := newTestNavigator(t, testBranch("trachea", "", 0, 7))
	if err := n.StartNavigation(); err != nil {
		t.Fatal(err)
	}
	n.MoveForward()

	pose := n.Pose()
	pt := pose.Point()
	if math.Abs(pt.Z-(-0.01)) > 1e-9 {
		t.Errorf("expected pose at second sample, got %v", pt)
	}
	if dir := n.LookDirection(); math.Abs(dir.Z-(-1)) > 1e-9 {
		t.Errorf("expected look direction -Z, got %v", dir)
	}

	info := n.Educational()
	if info.BranchName != "trachea" || info.Generation != 0 {
		t.Errorf("unexpected educational payload: %+v", info)
	}
	if math.Abs(info.LumenDiameterMm-18.0) > 1e-9 {
		t.Errorf("expected 18mm lumen, got %.2f", info.LumenDiameterMm)
	}
	if math.Abs(info.DistanceMm-10.0) > 1e-9 {
		t.Errorf("expected 10mm from branch start, got %.2f", info.DistanceMm)
	}
}
