package airwayvision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.viam.com/rdk/spatialmath"
	"go.viam.com/utils"

	"github.com/russellmiller49/AirwayVision/airway"
)

// tourLegFrames is the number of interpolated camera frames per tour leg.
const tourLegFrames = 8

// TourWaypoint is one stop on a guided tour.
type TourWaypoint struct {
	BranchID string `json:"branchId"`
	Index    int    `json:"index"`
	Name     string `json:"name,omitempty"`
}

// TourPlan is a serializable root-to-leaf guided tour.
type TourPlan struct {
	ModelID   string         `json:"modelId"`
	LeafID    string         `json:"leafId"`
	Waypoints []TourWaypoint `json:"waypoints"`
}

// PlanTour computes the guided tour from the trachea to the named leaf
// branch: each branch on the path contributes its midpoint and its distal
// end as waypoints. Plans are cached on disk keyed by model and leaf; a
// cache hit skips recomputation.
func (w *Workstation) PlanTour(leafID string) (TourPlan, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tree := w.nav.Tree()
	if tree == nil {
		return TourPlan{}, fmt.Errorf("%w: no model loaded", airway.ErrNavigation)
	}

	if plan, ok := w.loadCachedPlan(planFileName(w.modelID, leafID)); ok {
		if plan.ModelID == w.modelID && plan.LeafID == leafID && w.planResolves(plan) {
			return plan, nil
		}
		w.logger.Warnf("Cached tour plan for %s/%s is stale; recomputing", w.modelID, leafID)
	}

	path, ok := tree.PathFromRoot(leafID)
	if !ok {
		return TourPlan{}, fmt.Errorf("%w: branch %s", airway.ErrCenterlineNotFound, leafID)
	}

	plan := TourPlan{ModelID: w.modelID, LeafID: leafID}
	for _, branchID := range path {
		branch, ok := tree.FindBranch(branchID)
		if !ok || !branch.Navigable() {
			continue
		}
		last := len(branch.Points) - 1
		mid := last / 2
		if mid > 0 {
			plan.Waypoints = append(plan.Waypoints, TourWaypoint{
				BranchID: branchID, Index: mid, Name: branch.Name,
			})
		}
		plan.Waypoints = append(plan.Waypoints, TourWaypoint{
			BranchID: branchID, Index: last, Name: branch.Name,
		})
	}
	if len(plan.Waypoints) == 0 {
		return TourPlan{}, fmt.Errorf("%w: path to %s has no navigable branches", airway.ErrNavigation, leafID)
	}

	w.saveCachedPlan(planFileName(w.modelID, leafID), plan)
	return plan, nil
}

// planResolves reports whether every waypoint still points at a real branch
// index in the installed tree.
func (w *Workstation) planResolves(plan TourPlan) bool {
	tree := w.nav.Tree()
	for _, wp := range plan.Waypoints {
		branch, ok := tree.FindBranch(wp.BranchID)
		if !ok || wp.Index < 0 || wp.Index >= len(branch.Points) {
			return false
		}
	}
	return len(plan.Waypoints) > 0
}

// RunTour flies the guided tour: for each waypoint the camera animates from
// its current pose along an interpolated path, pausing at the waypoint
// before the next leg. onFrame, when non-nil, receives every interpolated
// camera pose (the CLI uses it to stream poses to a visualizer). Cancelling
// ctx ends the tour cooperatively at the next frame.
func (w *Workstation) RunTour(ctx context.Context, plan TourPlan, onFrame func(spatialmath.Pose)) error {
	w.mu.Lock()
	if err := w.nav.BeginGuidedTour(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.notifyLocked()
	w.mu.Unlock()

	frameDelay := time.Duration(w.cfg.TourFrameDelayMs) * time.Millisecond
	if frameDelay <= 0 {
		frameDelay = time.Duration(DefaultConfig().TourFrameDelayMs) * time.Millisecond
	}

	for _, wp := range plan.Waypoints {
		if err := w.runTourLeg(ctx, wp, frameDelay, onFrame); err != nil {
			w.endTour()
			return err
		}
	}

	w.endTour()
	w.logger.Infof("Tour complete: %d waypoints to %s", len(plan.Waypoints), plan.LeafID)
	return nil
}

// runTourLeg animates one leg from the camera's current pose to a waypoint.
func (w *Workstation) runTourLeg(ctx context.Context, wp TourWaypoint, frameDelay time.Duration, onFrame func(spatialmath.Pose)) error {
	w.mu.Lock()
	tree := w.nav.Tree()
	branch, ok := tree.FindBranch(wp.BranchID)
	if !ok || wp.Index < 0 || wp.Index >= len(branch.Points) {
		w.mu.Unlock()
		return fmt.Errorf("%w: tour waypoint %s[%d] does not resolve", airway.ErrNavigation, wp.BranchID, wp.Index)
	}
	if !w.nav.AnimateToWaypoint() {
		w.mu.Unlock()
		return fmt.Errorf("%w: tour interrupted", airway.ErrNavigation)
	}
	from := w.nav.Pose()
	to := branch.PoseAt(wp.Index)
	w.notifyLocked()
	w.mu.Unlock()

	for frame := 1; frame <= tourLegFrames; frame++ {
		if !utils.SelectContextOrWait(ctx, frameDelay) {
			return ctx.Err()
		}
		pose := spatialmath.Interpolate(from, to, float64(frame)/tourLegFrames)
		w.mu.Lock()
		w.animPose = pose
		w.notifyLocked()
		w.mu.Unlock()
		if onFrame != nil {
			onFrame(pose)
		}
	}

	w.mu.Lock()
	w.animPose = nil
	w.nav.ArriveAtWaypoint(wp.BranchID, wp.Index)
	w.notifyLocked()
	w.mu.Unlock()
	return nil
}

func (w *Workstation) endTour() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.animPose = nil
	w.nav.EndGuidedTour()
	w.notifyLocked()
}

func planFileName(modelID, leafID string) string {
	return fmt.Sprintf("tour_%s_%s.json", modelID, leafID)
}

// loadCachedPlan loads a tour plan from PlansDir/filename. Returns false if
// PlansDir is unset, the file doesn't exist, or parsing fails.
func (w *Workstation) loadCachedPlan(filename string) (TourPlan, bool) {
	if w.cfg.PlansDir == "" {
		return TourPlan{}, false
	}
	path := filepath.Join(w.cfg.PlansDir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return TourPlan{}, false
	}
	var plan TourPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		w.logger.Warnf("Failed to parse cached tour plan %s: %v", path, err)
		return TourPlan{}, false
	}
	w.logger.Infof("Loaded cached tour plan from %s (%d waypoints)", path, len(plan.Waypoints))
	return plan, true
}

// saveCachedPlan writes a tour plan to PlansDir/filename as JSON. No-op if
// PlansDir is unset; logs a warning on write failure.
func (w *Workstation) saveCachedPlan(filename string, plan TourPlan) {
	if w.cfg.PlansDir == "" {
		return
	}
	if err := os.MkdirAll(w.cfg.PlansDir, 0o755); err != nil {
		w.logger.Warnf("Failed to create plans dir %s: %v", w.cfg.PlansDir, err)
		return
	}
	path := filepath.Join(w.cfg.PlansDir, filename)
	data, err := json.Marshal(plan)
	if err != nil {
		w.logger.Warnf("Failed to serialize tour plan for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		w.logger.Warnf("Failed to write tour plan to %s: %v", path, err)
		return
	}
	w.logger.Infof("Saved tour plan to %s (%d waypoints)", path, len(plan.Waypoints))
}
