package airwayvision

import (
	"context"
	"fmt"

	"go.viam.com/utils"

	"github.com/russellmiller49/AirwayVision/airway"
)

// flyStallPolls is how many consecutive polls with no cursor movement the
// scripted fly-through tolerates before treating the branch end as reached.
// Single-point branches never report progress 1, so the stall check is what
// ends them.
const flyStallPolls = 20

// Run executes one scripted study session end to end: load the model,
// restore any persisted anchor, fly the airway down to a leaf, then run the
// guided tour along the deepest path. The demo entrypoint drives this; it
// also doubles as a smoke test for freshly authored model files.
func Run(ctx context.Context, w *Workstation, modelID string) error {
	w.logger.Infof("Starting study session for model %s", modelID)

	steps := []struct {
		name string
		fn   func(context.Context, *Workstation) error
	}{
		{"LoadModel", func(ctx context.Context, w *Workstation) error { return w.LoadModel(ctx, modelID) }},
		{"RestoreAnchor", func(_ context.Context, w *Workstation) error {
			_, _, err := w.RestoreAnchors()
			return err
		}},
		{"FlyThrough", FlyToLeaf},
		{"GuidedTour", TourDeepestPath},
	}

	for _, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		w.logger.Infof("=== %s ===", step.name)
		if err := step.fn(ctx, w); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	w.logger.Info("Study session complete")
	return nil
}

// FlyToLeaf runs the automatic fly-through from the trachea, descending into
// the first available child at every carina until a leaf end is reached.
func FlyToLeaf(ctx context.Context, w *Workstation) error {
	if err := w.StartFlythrough(ctx); err != nil {
		return err
	}
	defer w.StopFlythrough()

	interval := w.stepInterval()
	lastBranch, lastIndex, stalls := "", -1, 0
	for {
		if !utils.SelectContextOrWait(ctx, interval) {
			return ctx.Err()
		}

		snap := w.Snapshot()
		if snap.State != airway.StateNavigating {
			return fmt.Errorf("%w: fly-through interrupted in state %s", airway.ErrNavigation, snap.State)
		}
		if snap.BranchID == lastBranch && snap.Index == lastIndex {
			stalls++
		} else {
			lastBranch, lastIndex, stalls = snap.BranchID, snap.Index, 0
		}
		if snap.Progress < 1 && stalls < flyStallPolls {
			continue
		}

		if len(snap.AvailableBranches) == 0 {
			w.logger.Infof("Reached branch end at %s (generation %d)", snap.BranchID, snap.Generation)
			return nil
		}
		next := snap.AvailableBranches[0]
		w.logger.Infof("Descending into %s (generation %d)", next.ID, next.Generation)
		w.NavigateToBranch(next.ID)
	}
}

// TourDeepestPath plans and runs the guided tour to the deepest leaf.
func TourDeepestPath(ctx context.Context, w *Workstation) error {
	w.mu.Lock()
	tree := w.nav.Tree()
	w.mu.Unlock()
	if tree == nil {
		return fmt.Errorf("%w: no model loaded", airway.ErrNavigation)
	}

	leafID := deepestLeaf(tree)
	if leafID == "" {
		return fmt.Errorf("%w: model has no leaves", airway.ErrNavigation)
	}
	plan, err := w.PlanTour(leafID)
	if err != nil {
		return err
	}
	return w.RunTour(ctx, plan, nil)
}
