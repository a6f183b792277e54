package airwayvision

import (
	"errors"
	"fmt"

	"github.com/russellmiller49/AirwayVision/anchoring"
	"github.com/russellmiller49/AirwayVision/internal/anchorstore"
)

// DetectPlacements refreshes the environmental context from a fresh batch of
// surface samples and returns ranked placement suggestions. The session is
// started on first use.
func (w *Workstation) DetectPlacements(surfaces []anchoring.Surface, ambientLux float64) ([]anchoring.PlacementSuggestion, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session.State() == anchoring.SessionIdle {
		if err := w.session.Begin(); err != nil {
			return nil, err
		}
	}
	env := anchoring.BuildContext(surfaces, ambientLux, w.envCfg)
	for _, unmet := range env.UnmetRequirements {
		w.logger.Warnf("Placement requirement unmet: %s", unmet)
	}
	suggestions, err := w.session.DetectPlacements(env)
	if err != nil {
		return nil, err
	}
	w.logger.Infof("Detected %d placement options (lighting %s)", len(suggestions), env.Lighting)
	w.notifyLocked()
	return suggestions, nil
}

// AnchorModel anchors the loaded model using the given preset and persists the
// resulting anchor. Requires a prior DetectPlacements call to have captured an
// environmental context.
func (w *Workstation) AnchorModel(name string, preset anchoring.PlacementPreset) (anchoring.SpatialAnchor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.modelID == "" {
		return anchoring.SpatialAnchor{}, fmt.Errorf("%w: no model loaded", anchoring.ErrAnchoringFailed)
	}
	anchor, err := w.session.Anchor(name, preset)
	if err != nil {
		w.notifyLocked()
		return anchoring.SpatialAnchor{}, err
	}
	w.persistAnchorLocked(anchor)
	w.logger.Infof("Anchored %q with preset %s", name, preset)
	w.notifyLocked()
	return anchor, nil
}

// AnchorSuggestion anchors the loaded model at one of the suggestions returned
// by DetectPlacements, bypassing preset resolution.
func (w *Workstation) AnchorSuggestion(name string, suggestion anchoring.PlacementSuggestion) (anchoring.SpatialAnchor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.modelID == "" {
		return anchoring.SpatialAnchor{}, fmt.Errorf("%w: no model loaded", anchoring.ErrAnchoringFailed)
	}
	anchor, err := w.session.AnchorSuggestion(name, suggestion)
	if err != nil {
		w.notifyLocked()
		return anchoring.SpatialAnchor{}, err
	}
	w.persistAnchorLocked(anchor)
	w.logger.Infof("Anchored %q at suggested %s placement", name, suggestion.Preset)
	w.notifyLocked()
	return anchor, nil
}

// UpdateAnchorPosition moves the active anchor to a new transform, replacing
// the stored anchor in place.
func (w *Workstation) UpdateAnchorPosition(tr anchoring.Transform) (anchoring.SpatialAnchor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	anchor, err := w.session.UpdatePosition(tr)
	if err != nil {
		return anchoring.SpatialAnchor{}, err
	}
	w.persistAnchorLocked(anchor)
	w.notifyLocked()
	return anchor, nil
}

// RemoveAnchor detaches the active anchor and deletes it from the store.
func (w *Workstation) RemoveAnchor() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed, err := w.session.BeginRemove()
	if err != nil {
		return err
	}
	if err := w.store.DeleteAnchor(removed.ID); err != nil && !errors.Is(err, anchorstore.ErrAnchorNotFound) {
		w.logger.Warnf("Failed to delete anchor %s from store: %v", removed.ID, err)
	}
	w.session.FinishRemove()
	w.logger.Infof("Removed anchor %q", removed.Name)
	w.notifyLocked()
	return nil
}

// RestoreAnchors reattaches the most recently persisted anchor for the loaded
// model, if any. Returns the restored anchor and true when one was found.
func (w *Workstation) RestoreAnchors() (anchoring.SpatialAnchor, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.modelID == "" {
		return anchoring.SpatialAnchor{}, false, nil
	}
	stored, err := w.store.AnchorsForModel(w.modelID)
	if err != nil {
		return anchoring.SpatialAnchor{}, false, err
	}
	if len(stored) == 0 {
		return anchoring.SpatialAnchor{}, false, nil
	}
	latest := stored[len(stored)-1].Anchor
	if err := w.session.RestoreAnchor(latest); err != nil {
		return anchoring.SpatialAnchor{}, false, err
	}
	w.logger.Infof("Restored anchor %q for model %s", latest.Name, w.modelID)
	w.notifyLocked()
	return latest, true, nil
}

// SavedAnchors lists every persisted anchor for the loaded model, oldest
// first.
func (w *Workstation) SavedAnchors() ([]anchoring.SpatialAnchor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.modelID == "" {
		return nil, fmt.Errorf("%w: no model loaded", anchoring.ErrAnchoringFailed)
	}
	stored, err := w.store.AnchorsForModel(w.modelID)
	if err != nil {
		return nil, err
	}
	anchors := make([]anchoring.SpatialAnchor, 0, len(stored))
	for _, s := range stored {
		anchors = append(anchors, s.Anchor)
	}
	return anchors, nil
}

// SetDefaultPreset records the preferred placement preset for the loaded model.
func (w *Workstation) SetDefaultPreset(preset anchoring.PlacementPreset) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.modelID == "" {
		return fmt.Errorf("%w: no model loaded", anchoring.ErrAnchoringFailed)
	}
	return w.store.SetPresetDefault(w.modelID, preset)
}

// DefaultPreset returns the preferred placement preset recorded for the loaded
// model, or false when none has been set.
func (w *Workstation) DefaultPreset() (anchoring.PlacementPreset, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.modelID == "" {
		return anchoring.PresetFloating, false, nil
	}
	preset, err := w.store.PresetDefault(w.modelID)
	if errors.Is(err, anchorstore.ErrNoPresetDefault) {
		return anchoring.PresetFloating, false, nil
	}
	if err != nil {
		return anchoring.PresetFloating, false, err
	}
	return preset, true, nil
}

// persistAnchorLocked writes the anchor through to the store. A write failure
// keeps the in-memory anchor so the operator can keep working; the anchor just
// will not survive a restart.
func (w *Workstation) persistAnchorLocked(anchor anchoring.SpatialAnchor) {
	if err := w.store.SaveAnchor(w.modelID, anchor); err != nil {
		w.logger.Warnf("Failed to persist anchor %s: %v", anchor.ID, err)
	}
}
