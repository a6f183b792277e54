package airwayvision

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/russellmiller49/AirwayVision/airway"
)

func TestPlanTour_Waypoints(t *testing.T) {
	w := loadedWorkstation(t)

	plan, err := w.PlanTour("left_upper")
	if err != nil {
		t.Fatalf("PlanTour failed: %v", err)
	}
	if plan.ModelID != "adult_airway" || plan.LeafID != "left_upper" {
		t.Errorf("unexpected plan identity: %+v", plan)
	}

	want := []TourWaypoint{
		{BranchID: "trachea", Index: 2, Name: "trachea"},
		{BranchID: "trachea", Index: 4, Name: "trachea"},
		{BranchID: "left_main", Index: 1, Name: "left_main"},
		{BranchID: "left_main", Index: 2, Name: "left_main"},
		{BranchID: "left_upper", Index: 1, Name: "left_upper"},
		{BranchID: "left_upper", Index: 2, Name: "left_upper"},
	}
	if len(plan.Waypoints) != len(want) {
		t.Fatalf("expected %d waypoints, got %d: %+v", len(want), len(plan.Waypoints), plan.Waypoints)
	}
	for i, wp := range want {
		if plan.Waypoints[i] != wp {
			t.Errorf("waypoint %d: expected %+v, got %+v", i, wp, plan.Waypoints[i])
		}
	}
}

func TestPlanTour_UnknownLeaf(t *testing.T) {
	w := loadedWorkstation(t)

	_, err := w.PlanTour("no_such_branch")
	if !errors.Is(err, airway.ErrCenterlineNotFound) {
		t.Errorf("expected ErrCenterlineNotFound, got %v", err)
	}
}

func TestPlanTour_NoModel(t *testing.T) {
	w := newTestWorkstation(t)

	_, err := w.PlanTour("left_upper")
	if !errors.Is(err, airway.ErrNavigation) {
		t.Errorf("expected ErrNavigation, got %v", err)
	}
}

func TestPlanTour_CacheHit(t *testing.T) {
	w := loadedWorkstation(t)

	first, err := w.PlanTour("left_upper")
	if err != nil {
		t.Fatalf("PlanTour failed: %v", err)
	}

	// Mark the cached plan; a second PlanTour must return the marked copy
	// instead of recomputing.
	cached := first
	cached.Waypoints = append([]TourWaypoint(nil), first.Waypoints...)
	cached.Waypoints[0].Name = "from-cache"
	data, err := json.Marshal(cached)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	path := filepath.Join(w.cfg.PlansDir, planFileName("adult_airway", "left_upper"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing cache file failed: %v", err)
	}

	second, err := w.PlanTour("left_upper")
	if err != nil {
		t.Fatalf("second PlanTour failed: %v", err)
	}
	if second.Waypoints[0].Name != "from-cache" {
		t.Errorf("expected cached plan to be reused, got %+v", second.Waypoints[0])
	}
}

func TestPlanTour_StaleCacheRecomputed(t *testing.T) {
	w := loadedWorkstation(t)

	stale := TourPlan{
		ModelID: "adult_airway",
		LeafID:  "left_upper",
		Waypoints: []TourWaypoint{
			{BranchID: "removed_branch", Index: 0},
		},
	}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := os.MkdirAll(w.cfg.PlansDir, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	path := filepath.Join(w.cfg.PlansDir, planFileName("adult_airway", "left_upper"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing cache file failed: %v", err)
	}

	plan, err := w.PlanTour("left_upper")
	if err != nil {
		t.Fatalf("PlanTour failed: %v", err)
	}
	if len(plan.Waypoints) != 6 || plan.Waypoints[0].BranchID != "trachea" {
		t.Errorf("expected recomputed plan, got %+v", plan.Waypoints)
	}
}

func TestRunTour_CompletesAndParks(t *testing.T) {
	w := loadedWorkstation(t)

	plan, err := w.PlanTour("left_upper")
	if err != nil {
		t.Fatalf("PlanTour failed: %v", err)
	}

	var sawAnimating, sawWaypoint bool
	w.Subscribe(func(s Snapshot) {
		switch s.State {
		case airway.StateAnimating:
			sawAnimating = true
		case airway.StateAtWaypoint:
			sawWaypoint = true
		}
	})

	var frames []spatialmath.Pose
	err = w.RunTour(context.Background(), plan, func(p spatialmath.Pose) {
		frames = append(frames, p)
	})
	if err != nil {
		t.Fatalf("RunTour failed: %v", err)
	}

	if len(frames) != tourLegFrames*len(plan.Waypoints) {
		t.Errorf("expected %d frames, got %d", tourLegFrames*len(plan.Waypoints), len(frames))
	}
	if !sawAnimating || !sawWaypoint {
		t.Errorf("expected animating and at_waypoint states, got animating=%v waypoint=%v", sawAnimating, sawWaypoint)
	}

	end := frames[len(frames)-1].Point()
	if end.Sub(r3.Vector{X: 0.033, Y: 0, Z: -0.124}).Norm() > 1e-9 {
		t.Errorf("expected final frame at the leaf end, got %v", end)
	}

	snap := w.Snapshot()
	if snap.State != airway.StateIdle {
		t.Errorf("expected idle after tour, got %s", snap.State)
	}
	if snap.BranchID != "left_upper" || snap.Index != 2 {
		t.Errorf("expected cursor parked at left_upper end, got %+v", snap)
	}
}

func TestRunTour_Cancelled(t *testing.T) {
	w := loadedWorkstation(t)

	plan, err := w.PlanTour("left_upper")
	if err != nil {
		t.Fatalf("PlanTour failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	err = w.RunTour(ctx, plan, func(spatialmath.Pose) {
		frames++
		if frames == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if frames >= tourLegFrames*len(plan.Waypoints) {
		t.Errorf("expected tour cut short, got %d frames", frames)
	}

	if snap := w.Snapshot(); snap.State != airway.StateIdle {
		t.Errorf("expected idle after cancelled tour, got %s", snap.State)
	}
}

func TestRunTour_NoModel(t *testing.T) {
	w := newTestWorkstation(t)

	err := w.RunTour(context.Background(), TourPlan{}, nil)
	if !errors.Is(err, airway.ErrNavigation) {
		t.Errorf("expected ErrNavigation, got %v", err)
	}
}
