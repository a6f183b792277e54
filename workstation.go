// Package airwayvision is a virtual bronchoscopy workstation: it loads
// centerline airway models from a catalog, flies a virtual camera through
// them, and anchors them into a detected physical environment for AR-style
// study sessions.
package airwayvision

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/russellmiller49/AirwayVision/airway"
	"github.com/russellmiller49/AirwayVision/anchoring"
	"github.com/russellmiller49/AirwayVision/internal/anchorstore"
	"github.com/russellmiller49/AirwayVision/internal/catalog"
)

// Workstation owns one study session: the loaded model, the navigator
// cursor, the anchoring session, and their persistence. All operations are
// serialized on an internal lock, so it is safe to drive from multiple
// goroutines.
type Workstation struct {
	logger logging.Logger
	cfg    Config

	mu       sync.Mutex
	catalog  *catalog.Catalog
	store    *anchorstore.Store
	nav      *airway.Navigator
	selector *anchoring.Selector
	session  *anchoring.Session
	envCfg   anchoring.EnvironmentConfig

	modelID   string
	modelName string

	// animPose is the interpolated camera pose while a tour leg is animating.
	animPose spatialmath.Pose

	stepCancel context.CancelFunc
	stepDone   chan struct{}

	subscribers []func(Snapshot)
}

// BranchSummary is a compact view of a branch eligible for transition.
type BranchSummary struct {
	ID         string
	Name       string
	Generation int
}

// Snapshot is the read model handed to UIs and subscribers.
type Snapshot struct {
	ModelID   string
	ModelName string

	State      airway.NavigationState
	Mode       airway.NavigationMode
	BranchID   string
	BranchName string
	Generation int
	Index      int
	Progress   float64

	Position      r3.Vector
	LookDirection r3.Vector
	Pose          spatialmath.Pose
	Speed         float64
	FOVDegrees    float64

	AvailableBranches []BranchSummary
	HistoryDepth      int
	Educational       airway.EducationalInfo

	SessionState anchoring.SessionState
	ActiveAnchor *anchoring.SpatialAnchor
}

// New assembles a workstation from its catalog, anchor store, and config.
func New(cfg Config, logger logging.Logger) (*Workstation, error) {
	cat, err := catalog.Load(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	store, err := anchorstore.New(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	navCfg := airway.DefaultConfig().Navigator
	if cfg.DefaultSpeed > 0 {
		navCfg.DefaultSpeed = cfg.DefaultSpeed
	}
	if cfg.DefaultFOVDegrees > 0 {
		navCfg.DefaultFOVDegrees = cfg.DefaultFOVDegrees
	}
	placeCfg := anchoring.DefaultConfig()

	w := &Workstation{
		logger:   logger,
		cfg:      cfg,
		catalog:  cat,
		store:    store,
		nav:      airway.NewNavigator(navCfg),
		selector: anchoring.NewSelector(placeCfg.Selector),
		envCfg:   placeCfg.Environment,
	}
	w.session = anchoring.NewSession(w.selector)
	return w, nil
}

// Close stops background stepping and releases the anchor store.
func (w *Workstation) Close() error {
	w.StopFlythrough()
	return w.store.Close()
}

// Catalog exposes the model catalog for listing and watching.
func (w *Workstation) Catalog() *catalog.Catalog {
	return w.catalog
}

// Subscribe registers a callback invoked with a fresh snapshot after every
// mutating operation. Callbacks run on the mutating goroutine and must not
// call back into the workstation.
func (w *Workstation) Subscribe(fn func(Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Snapshot returns the current read model.
func (w *Workstation) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workstation) snapshotLocked() Snapshot {
	snap := Snapshot{
		ModelID:       w.modelID,
		ModelName:     w.modelName,
		State:         w.nav.State(),
		Mode:          w.nav.Mode(),
		Index:         w.nav.CurrentIndex(),
		Progress:      w.nav.Progress(),
		Position:      w.nav.Position(),
		LookDirection: w.nav.LookDirection(),
		Pose:          w.nav.Pose(),
		Speed:         w.nav.Speed(),
		FOVDegrees:    w.nav.FieldOfView(),
		HistoryDepth:  w.nav.HistoryDepth(),
		Educational:   w.nav.Educational(),
		SessionState:  w.session.State(),
	}
	if branch := w.nav.CurrentBranch(); branch != nil {
		snap.BranchID = branch.ID
		snap.BranchName = branch.Name
		snap.Generation = branch.Generation
	}
	for _, b := range w.nav.AvailableBranches() {
		snap.AvailableBranches = append(snap.AvailableBranches, BranchSummary{
			ID:         b.ID,
			Name:       b.Name,
			Generation: b.Generation,
		})
	}
	if snap.State == airway.StateAnimating && w.animPose != nil {
		snap.Position = w.animPose.Point()
		snap.Pose = w.animPose
	}
	if anchor, ok := w.session.ActiveAnchor(); ok {
		snap.ActiveAnchor = &anchor
	}
	return snap
}

func (w *Workstation) notifyLocked() {
	if len(w.subscribers) == 0 {
		return
	}
	snap := w.snapshotLocked()
	for _, fn := range w.subscribers {
		fn(snap)
	}
}

// StartNavigation begins manual navigation on the loaded model.
func (w *Workstation) StartNavigation() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.nav.StartNavigation(); err != nil {
		return err
	}
	w.notifyLocked()
	return nil
}

// StopNavigation halts navigation and any automatic stepping.
func (w *Workstation) StopNavigation() {
	w.mu.Lock()
	w.nav.StopNavigation()
	w.notifyLocked()
	w.mu.Unlock()
	w.StopFlythrough()
}

// Pause suspends stepping while keeping the cursor in place.
func (w *Workstation) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.Pause()
	w.notifyLocked()
}

// Resume continues navigation after a pause.
func (w *Workstation) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.Resume()
	w.notifyLocked()
}

// MoveForward advances the cursor one step toward the branch end.
func (w *Workstation) MoveForward() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.MoveForward()
	w.notifyLocked()
}

// MoveBackward retreats the cursor one step toward the branch start.
func (w *Workstation) MoveBackward() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.MoveBackward()
	w.notifyLocked()
}

// JumpToProgress repositions the cursor to a fraction of the current branch.
func (w *Workstation) JumpToProgress(p float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.JumpToProgress(p)
	w.notifyLocked()
}

// NavigateToBranch descends into the named branch, recording the return
// point.
func (w *Workstation) NavigateToBranch(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.NavigateToBranch(id)
	w.notifyLocked()
}

// GoBack returns to the most recent recorded position.
func (w *Workstation) GoBack() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.GoBack()
	w.notifyLocked()
}

// ResetToTrachea returns the cursor to the root branch and clears history.
func (w *Workstation) ResetToTrachea() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.ResetToTrachea()
	w.notifyLocked()
}

// SetSpeed adjusts the navigation speed, clamped to the navigator's bounds.
func (w *Workstation) SetSpeed(speed float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.SetSpeed(speed)
	w.notifyLocked()
}

// SetFieldOfView adjusts the camera field of view, clamped to the
// navigator's bounds.
func (w *Workstation) SetFieldOfView(deg float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nav.SetFieldOfView(deg)
	w.notifyLocked()
}

// stepInterval converts the configured cadence to a wait between steps.
func (w *Workstation) stepInterval() time.Duration {
	cadence := w.cfg.StepsPerSecond
	if cadence <= 0 {
		cadence = DefaultConfig().StepsPerSecond
	}
	return time.Duration(float64(time.Second) / cadence)
}
