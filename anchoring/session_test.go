package anchoring

import (
	"errors"
	"testing"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(NewSelector(DefaultConfig().Selector))
}

func readySession(t *testing.T, table, wall, floor bool) *Session {
	t.Helper()
	s := newTestSession(t)
	if err := s.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := s.DetectPlacements(testContext(table, wall, floor)); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	return s
}

func TestSession_BeginTwice(t *testing.T) {
	s := newTestSession(t)
	if err := s.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if s.State() != SessionReady {
		t.Fatalf("expected ready, got %s", s.State())
	}
	if err := s.Begin(); !errors.Is(err, ErrSessionState) {
		t.Fatalf("expected ErrSessionState on second begin, got %v", err)
	}
}

func TestSession_DetectBeforeBegin(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.DetectPlacements(testContext(true, false, false)); !errors.Is(err, ErrSessionState) {
		t.Fatalf("expected ErrSessionState, got %v", err)
	}
}

func TestSession_DetectReturnsToPriorState(t *testing.T) {
	s := readySession(t, true, false, true)
	if s.State() != SessionReady {
		t.Fatalf("expected ready after detection, got %s", s.State())
	}

	if _, err := s.Anchor("airway", PresetTableTop); err != nil {
		t.Fatalf("anchor failed: %v", err)
	}
	if _, err := s.DetectPlacements(testContext(true, false, true)); err != nil {
		t.Fatalf("detect while anchored failed: %v", err)
	}
	if s.State() != SessionAnchored {
		t.Fatalf("expected anchored after detection, got %s", s.State())
	}
}

func TestSession_AnchorHappyPath(t *testing.T) {
	s := readySession(t, true, false, false)

	anchor, err := s.Anchor("airway", PresetTableTop)
	if err != nil {
		t.Fatalf("anchor failed: %v", err)
	}
	if s.State() != SessionAnchored {
		t.Fatalf("expected anchored, got %s", s.State())
	}
	got, ok := s.ActiveAnchor()
	if !ok {
		t.Fatal("no active anchor after anchoring")
	}
	if got.ID != anchor.ID {
		t.Errorf("active anchor id mismatch")
	}
	if anchor.ID == "" || anchor.Name != "airway" || anchor.Preset != PresetTableTop {
		t.Errorf("anchor fields wrong: %+v", anchor)
	}
}

func TestSession_AnchorMissingSurfaceFails(t *testing.T) {
	s := readySession(t, false, false, true)

	_, err := s.Anchor("airway", PresetTableTop)
	if !errors.Is(err, ErrAnchoringFailed) {
		t.Fatalf("expected ErrAnchoringFailed, got %v", err)
	}
	if s.State() != SessionFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}
	if _, ok := s.ActiveAnchor(); ok {
		t.Fatal("failed anchoring must not leave an active anchor")
	}

	// A fresh Anchor call is the retry path.
	if _, err := s.Anchor("airway", PresetFloorStanding); err != nil {
		t.Fatalf("retry after failure failed: %v", err)
	}
	if s.State() != SessionAnchored {
		t.Fatalf("expected anchored after retry, got %s", s.State())
	}
}

func TestSession_AnchorWithoutContext(t *testing.T) {
	s := newTestSession(t)
	if err := s.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if _, err := s.Anchor("airway", PresetFloating); !errors.Is(err, ErrAnchoringFailed) {
		t.Fatalf("expected ErrAnchoringFailed without a context snapshot, got %v", err)
	}
	if s.State() != SessionFailed {
		t.Fatalf("expected failed, got %s", s.State())
	}
}

func TestSession_ReanchorReplaces(t *testing.T) {
	s := readySession(t, true, false, true)
	first, err := s.Anchor("airway", PresetTableTop)
	if err != nil {
		t.Fatalf("anchor failed: %v", err)
	}
	second, err := s.Anchor("airway", PresetFloorStanding)
	if err != nil {
		t.Fatalf("re-anchor failed: %v", err)
	}
	if first.ID == second.ID {
		t.Errorf("re-anchoring must mint a new anchor value")
	}
	got, _ := s.ActiveAnchor()
	if got.ID != second.ID {
		t.Errorf("active anchor is not the replacement")
	}
}

func TestSession_UpdatePosition(t *testing.T) {
	s := readySession(t, true, false, false)
	first, err := s.Anchor("airway", PresetTableTop)
	if err != nil {
		t.Fatalf("anchor failed: %v", err)
	}

	sel := NewSelector(DefaultConfig().Selector)
	moved, err := sel.ResolvePreset(PresetFloating, testContext(true, false, false))
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	next, err := s.UpdatePosition(moved)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if next.ID != first.ID {
		t.Errorf("position update must preserve anchor identity")
	}
	if next.Transform.Pose.Point().ApproxEqual(first.Transform.Pose.Point()) {
		t.Errorf("transform unchanged after update")
	}
}

func TestSession_UpdatePositionWithoutAnchor(t *testing.T) {
	s := readySession(t, true, false, false)
	if _, err := s.UpdatePosition(Transform{}); !errors.Is(err, ErrNoActiveAnchor) {
		t.Fatalf("expected ErrNoActiveAnchor, got %v", err)
	}
}

func TestSession_RemoveLifecycle(t *testing.T) {
	s := readySession(t, true, false, false)
	anchor, err := s.Anchor("airway", PresetTableTop)
	if err != nil {
		t.Fatalf("anchor failed: %v", err)
	}

	removed, err := s.BeginRemove()
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed.ID != anchor.ID {
		t.Errorf("removed anchor mismatch")
	}
	if s.State() != SessionRemoving {
		t.Fatalf("expected removing, got %s", s.State())
	}
	if _, ok := s.ActiveAnchor(); ok {
		t.Fatal("anchor still active during removal")
	}

	s.FinishRemove()
	if s.State() != SessionIdle {
		t.Fatalf("expected idle after removal, got %s", s.State())
	}
}

func TestSession_RemoveWithoutAnchor(t *testing.T) {
	s := readySession(t, true, false, false)
	if _, err := s.BeginRemove(); !errors.Is(err, ErrSessionState) {
		t.Fatalf("expected ErrSessionState, got %v", err)
	}
}

func TestSession_RestoreAnchor(t *testing.T) {
	sel := NewSelector(DefaultConfig().Selector)
	ctx := testContext(true, false, false)
	tr, err := sel.ResolvePreset(PresetTableTop, ctx)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	saved := NewSpatialAnchor("airway", PresetTableTop, tr, ctx)

	s := newTestSession(t)
	if err := s.RestoreAnchor(saved); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if s.State() != SessionAnchored {
		t.Fatalf("expected anchored after restore, got %s", s.State())
	}
	got, ok := s.ActiveAnchor()
	if !ok || got.ID != saved.ID {
		t.Errorf("restored anchor not active")
	}
}

func TestSession_Reset(t *testing.T) {
	s := readySession(t, true, false, false)
	if _, err := s.Anchor("airway", PresetTableTop); err != nil {
		t.Fatalf("anchor failed: %v", err)
	}

	s.Reset()
	if s.State() != SessionIdle {
		t.Fatalf("expected idle after reset, got %s", s.State())
	}
	if _, ok := s.ActiveAnchor(); ok {
		t.Fatal("anchor survived reset")
	}
	if _, ok := s.LastContext(); ok {
		t.Fatal("context snapshot survived reset")
	}
}
