package airway

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// Navigator drives a virtual bronchoscopy cursor through an airway tree. It
// is confined to a single coordinating goroutine: callers must serialize
// operations. Per-step misuse (moving while idle, switching to an unknown
// branch) is a silent no-op so UI callers can invoke movement without
// checking state first; only session-level operations return errors.
type Navigator struct {
	cfg NavigatorConfig

	tree *Tree

	state    NavigationState
	mode     NavigationMode
	branchID string
	index    int
	progress float64

	speed float64
	fov   float64

	history   []HistoryEntry
	available []*AirwayBranch
	point     *CenterlinePoint
}

// NewNavigator creates an idle navigator with no model installed.
func NewNavigator(cfg NavigatorConfig) *Navigator {
	return &Navigator{
		cfg:   cfg,
		state: StateIdle,
		mode:  ModeManual,
		speed: cfg.DefaultSpeed,
		fov:   cfg.DefaultFOVDegrees,
	}
}

// Install swaps in a freshly built tree, discarding the previous model and
// history and parking the cursor at the new root. Passing nil clears the
// model entirely. Callers that want load failures to leave the navigator
// untouched must only call Install after a successful build.
func (n *Navigator) Install(tree *Tree) {
	n.tree = tree
	n.history = nil
	n.state = StateIdle
	if tree == nil {
		n.branchID = ""
		n.index = 0
		n.progress = 0
		n.refreshDerived()
		return
	}
	n.branchID = tree.RootID()
	n.index = 0
	n.progress = 0
	n.refreshDerived()
}

// StartNavigation begins a session at the trachea start. Fails with
// ErrNavigation when no model is installed.
func (n *Navigator) StartNavigation() error {
	if n.tree == nil {
		return fmt.Errorf("%w: no airway model installed", ErrNavigation)
	}
	n.branchID = n.tree.RootID()
	n.index = 0
	n.progress = 0
	n.state = StateNavigating
	n.refreshDerived()
	return nil
}

// StopNavigation ends the session. The workstation's stepping loop observes
// the state change and halts.
func (n *Navigator) StopNavigation() {
	if n.state == StateNavigating || n.state == StatePaused {
		n.state = StateIdle
	}
}

// Pause suspends stepping without losing the cursor position.
func (n *Navigator) Pause() {
	if n.state == StateNavigating {
		n.state = StatePaused
	}
}

// Resume continues a paused session.
func (n *Navigator) Resume() {
	if n.state == StatePaused {
		n.state = StateNavigating
	}
}

// MoveForward advances the cursor along the current branch by the speed-scaled
// step size.
func (n *Navigator) MoveForward() {
	n.step(n.stepSize())
}

// MoveBackward retreats the cursor toward the branch start.
func (n *Navigator) MoveBackward() {
	n.step(-n.stepSize())
}

// JumpToProgress clamps p to [0,1] and moves the cursor to the nearest point
// index.
func (n *Navigator) JumpToProgress(p float64) {
	if n.state != StateNavigating {
		return
	}
	b := n.currentBranch()
	if b == nil || len(b.Points) == 0 {
		return
	}
	p = clampFloat(p, 0, 1)
	n.index = int(math.Round(p * float64(len(b.Points)-1)))
	n.progress = progressAt(n.index, len(b.Points))
	n.refreshDerived()
}

// NavigateToBranch pushes the current position onto the history stack and
// moves the cursor to the start of the named branch. Unknown ids are a no-op.
func (n *Navigator) NavigateToBranch(id string) {
	if n.state != StateNavigating || n.tree == nil {
		return
	}
	if _, ok := n.tree.FindBranch(id); !ok {
		return
	}
	n.pushHistory()
	n.branchID = id
	n.index = 0
	n.progress = 0
	n.refreshDerived()
}

// GoBack restores the cursor to the most recent history entry. If the entry's
// branch no longer resolves, the popped entry is discarded and nothing
// changes.
func (n *Navigator) GoBack() {
	if n.state != StateNavigating || len(n.history) == 0 {
		return
	}
	entry := n.history[len(n.history)-1]
	n.history = n.history[:len(n.history)-1]

	b, ok := n.tree.FindBranch(entry.BranchID)
	if !ok || len(b.Points) == 0 {
		return
	}
	n.branchID = entry.BranchID
	n.index = clampInt(entry.Index, 0, len(b.Points)-1)
	n.progress = entry.Progress
	n.refreshDerived()
}

// ResetToTrachea clears history and parks the cursor at the trachea start,
// returning the navigator to idle.
func (n *Navigator) ResetToTrachea() {
	if n.tree == nil {
		return
	}
	n.history = nil
	n.branchID = n.tree.RootID()
	n.index = 0
	n.progress = 0
	n.state = StateIdle
	n.refreshDerived()
}

// BeginGuidedTour enters the touring state. Fails with ErrNavigation when no
// model is installed.
func (n *Navigator) BeginGuidedTour() error {
	if n.tree == nil {
		return fmt.Errorf("%w: no airway model installed", ErrNavigation)
	}
	n.mode = ModeGuided
	n.state = StateGuidedTour
	return nil
}

// AnimateToWaypoint marks the cursor as animating toward the next waypoint.
// The caller drives the actual interpolation and calls ArriveAtWaypoint when
// it completes. Returns false outside a tour.
func (n *Navigator) AnimateToWaypoint() bool {
	if n.state != StateGuidedTour && n.state != StateAtWaypoint {
		return false
	}
	n.state = StateAnimating
	return true
}

// ArriveAtWaypoint places the cursor at the waypoint position and marks the
// animation complete.
func (n *Navigator) ArriveAtWaypoint(branchID string, index int) {
	if n.state != StateAnimating {
		return
	}
	if b, ok := n.tree.FindBranch(branchID); ok && len(b.Points) > 0 {
		n.branchID = branchID
		n.index = clampInt(index, 0, len(b.Points)-1)
		n.progress = progressAt(n.index, len(b.Points))
		n.refreshDerived()
	}
	n.state = StateAtWaypoint
}

// EndGuidedTour returns the navigator to idle after the final waypoint.
func (n *Navigator) EndGuidedTour() {
	switch n.state {
	case StateGuidedTour, StateAnimating, StateAtWaypoint:
		n.state = StateIdle
	}
}

// SetMode selects manual, automatic, or guided cursor advancement.
func (n *Navigator) SetMode(m NavigationMode) {
	n.mode = m
}

// SetSpeed clamps and stores the step speed multiplier.
func (n *Navigator) SetSpeed(speed float64) {
	n.speed = clampFloat(speed, n.cfg.MinSpeed, n.cfg.MaxSpeed)
}

// SetFieldOfView clamps and stores the field of view in degrees.
func (n *Navigator) SetFieldOfView(deg float64) {
	n.fov = clampFloat(deg, n.cfg.MinFOVDegrees, n.cfg.MaxFOVDegrees)
}

// State returns the navigator's lifecycle state.
func (n *Navigator) State() NavigationState { return n.state }

// Mode returns the advancement mode.
func (n *Navigator) Mode() NavigationMode { return n.mode }

// Speed returns the clamped step speed multiplier.
func (n *Navigator) Speed() float64 { return n.speed }

// FieldOfView returns the clamped field of view in degrees.
func (n *Navigator) FieldOfView() float64 { return n.fov }

// Progress returns the normalized position along the current branch.
func (n *Navigator) Progress() float64 { return n.progress }

// CurrentIndex returns the cursor's point index on the current branch.
func (n *Navigator) CurrentIndex() int { return n.index }

// Tree returns the installed airway tree, nil when no model is loaded.
func (n *Navigator) Tree() *Tree { return n.tree }

// HistoryDepth returns the number of back-navigation entries held.
func (n *Navigator) HistoryDepth() int { return len(n.history) }

// CurrentBranch returns the branch under the cursor, nil with no model.
func (n *Navigator) CurrentBranch() *AirwayBranch {
	return n.currentBranch()
}

// AvailableBranches returns the navigable next branches. The set is populated
// only while progress on the current branch exceeds the branch threshold; the
// returned slice is valid until the next mutating call.
func (n *Navigator) AvailableBranches() []*AirwayBranch {
	return n.available
}

// Position returns the cursor's current position in the model frame.
func (n *Navigator) Position() r3.Vector {
	if n.point == nil {
		return r3.Vector{}
	}
	return n.point.Position
}

// LookDirection returns the cursor's view direction: the local tangent.
func (n *Navigator) LookDirection() r3.Vector {
	if n.point == nil {
		return r3.Vector{}
	}
	return n.point.Direction
}

// Pose returns the cursor pose: position oriented along the local tangent.
func (n *Navigator) Pose() spatialmath.Pose {
	if n.point == nil {
		return spatialmath.NewZeroPose()
	}
	dir := n.point.Direction
	if dir.Norm() < 1e-9 {
		return spatialmath.NewPoseFromPoint(n.point.Position)
	}
	return spatialmath.NewPose(n.point.Position, &spatialmath.OrientationVector{
		OX: dir.X,
		OY: dir.Y,
		OZ: dir.Z,
	})
}

// Educational returns the teaching payload derived from the current point.
func (n *Navigator) Educational() EducationalInfo {
	b := n.currentBranch()
	if b == nil || n.point == nil {
		return EducationalInfo{}
	}
	return EducationalInfo{
		BranchName:      b.Name,
		StandardName:    b.Info.StandardName,
		Generation:      b.Generation,
		LumenDiameterMm: n.point.Radius * 2000,
		DistanceMm:      n.point.Distance * 1000,
		Annotations:     n.point.Annotations,
	}
}

// stepSize converts the speed multiplier to a whole-point step count.
func (n *Navigator) stepSize() int {
	step := int(math.Round(n.speed))
	if step < 1 {
		step = 1
	}
	return step
}

func (n *Navigator) step(delta int) {
	if n.state != StateNavigating {
		return
	}
	b := n.currentBranch()
	if b == nil || len(b.Points) == 0 {
		return
	}
	n.index = clampInt(n.index+delta, 0, len(b.Points)-1)
	n.progress = progressAt(n.index, len(b.Points))
	n.refreshDerived()
}

func (n *Navigator) currentBranch() *AirwayBranch {
	if n.tree == nil {
		return nil
	}
	b, ok := n.tree.FindBranch(n.branchID)
	if !ok {
		return nil
	}
	return b
}

// pushHistory records the current position, evicting the oldest entry when
// the stack is at capacity.
func (n *Navigator) pushHistory() {
	if n.cfg.HistoryCapacity <= 0 {
		return
	}
	entry := HistoryEntry{
		BranchID: n.branchID,
		Index:    n.index,
		Progress: n.progress,
		Time:     time.Now(),
	}
	if len(n.history) >= n.cfg.HistoryCapacity {
		copy(n.history, n.history[1:])
		n.history[len(n.history)-1] = entry
		return
	}
	n.history = append(n.history, entry)
}

// refreshDerived recomputes the current point and the available-branch set
// after any cursor change.
func (n *Navigator) refreshDerived() {
	n.available = nil
	n.point = nil

	b := n.currentBranch()
	if b == nil || len(b.Points) == 0 {
		return
	}
	n.point = &b.Points[n.index]
	if n.progress > n.cfg.BranchThreshold {
		n.available = n.tree.ChildBranches(b.ID)
	}
}

// progressAt maps a point index to normalized progress. Single-point branches
// stay at progress 0.
func progressAt(index, count int) float64 {
	if count <= 1 {
		return 0
	}
	return float64(index) / float64(count-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
