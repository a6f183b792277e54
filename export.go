package airwayvision

import (
	"fmt"
	"os"
	"path/filepath"

	"go.viam.com/rdk/pointcloud"

	"github.com/russellmiller49/AirwayVision/airway"
	"github.com/russellmiller49/AirwayVision/anchoring"
)

// ExportPointCloud writes every centerline sample of the loaded model to a
// binary PCD file, so the airway skeleton can be inspected in external point
// cloud viewers. When an anchor is active the cloud is scaled and transformed
// into the anchored world frame, lining the export up with where the model
// sits in the room; otherwise points are exported in model frame.
func (w *Workstation) ExportPointCloud(path string) error {
	w.mu.Lock()
	tree := w.nav.Tree()
	modelID := w.modelID
	var anchor *anchoring.SpatialAnchor
	if a, ok := w.session.ActiveAnchor(); ok {
		anchor = &a
	}
	w.mu.Unlock()

	if tree == nil {
		return fmt.Errorf("%w: no model loaded", airway.ErrNavigation)
	}

	scale := 1.0
	if anchor != nil && anchor.Transform.Scale > 0 {
		scale = anchor.Transform.Scale
	}

	cloud := pointcloud.NewBasicEmpty()
	for _, id := range tree.BranchIDs() {
		branch, ok := tree.FindBranch(id)
		if !ok {
			continue
		}
		for _, pt := range branch.Points {
			//nolint:errcheck
			cloud.Set(pt.Position.Mul(scale), nil)
		}
	}
	if cloud.Size() == 0 {
		return fmt.Errorf("%w: model %s has no centerline points", airway.ErrInvalidModelData, modelID)
	}

	var out pointcloud.PointCloud = cloud
	if anchor != nil && anchor.Transform.Pose != nil {
		world := pointcloud.NewBasicPointCloud(cloud.Size())
		if err := pointcloud.ApplyOffset(cloud, anchor.Transform.Pose, world); err != nil {
			return fmt.Errorf("transform to anchored frame: %w", err)
		}
		out = world
		w.logger.Infof("Exporting in anchored world frame (anchor %q)", anchor.Name)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if err := pointcloud.ToPCD(out, file, pointcloud.PCDBinary); err != nil {
		return fmt.Errorf("write PCD: %w", err)
	}

	w.logger.Infof("Exported %d centerline points for model %s to %s", out.Size(), modelID, path)
	return nil
}
