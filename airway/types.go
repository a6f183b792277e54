package airway

import (
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// AnnotationType identifies the kind of educational annotation attached to a point.
type AnnotationType int

const (
	// AnnotationText is a plain teaching note.
	AnnotationText AnnotationType = iota
	// AnnotationArrow points at a structure of interest.
	AnnotationArrow
	// AnnotationHighlight marks a region for emphasis.
	AnnotationHighlight
	// AnnotationMeasurement carries a measured dimension.
	AnnotationMeasurement
	// AnnotationComparison references a contrasting case.
	AnnotationComparison
)

func (a AnnotationType) String() string {
	switch a {
	case AnnotationText:
		return "text"
	case AnnotationArrow:
		return "arrow"
	case AnnotationHighlight:
		return "highlight"
	case AnnotationMeasurement:
		return "measurement"
	case AnnotationComparison:
		return "comparison"
	default:
		return "unknown"
	}
}

// AnnotationImportance grades how prominently an annotation should surface.
type AnnotationImportance int

const (
	ImportanceLow AnnotationImportance = iota
	ImportanceMedium
	ImportanceHigh
	ImportanceCritical
)

func (i AnnotationImportance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceMedium:
		return "medium"
	case ImportanceHigh:
		return "high"
	case ImportanceCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// NavigationMode selects how the cursor advances along a branch.
type NavigationMode int

const (
	// ModeManual advances only on explicit move calls.
	ModeManual NavigationMode = iota
	// ModeAutomatic is driven by the workstation's stepping loop.
	ModeAutomatic
	// ModeGuided follows a precomputed tour plan.
	ModeGuided
)

func (m NavigationMode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeAutomatic:
		return "automatic"
	case ModeGuided:
		return "guided"
	default:
		return "unknown"
	}
}

// NavigationState is the navigator's lifecycle state.
type NavigationState int

const (
	StateIdle NavigationState = iota
	StateNavigating
	StatePaused
	StateGuidedTour
	StateAnimating
	StateAtWaypoint
)

func (s NavigationState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNavigating:
		return "navigating"
	case StatePaused:
		return "paused"
	case StateGuidedTour:
		return "guided_tour"
	case StateAnimating:
		return "animating"
	case StateAtWaypoint:
		return "at_waypoint"
	default:
		return "unknown"
	}
}

// Annotation is an educational payload attached to a centerline point. The
// navigation core carries annotations through to the presentation layer
// without interpreting them.
type Annotation struct {
	Type       AnnotationType
	Position   r3.Vector
	Content    string
	Importance AnnotationImportance
}

// CenterlinePoint is one sample along a branch's medial axis. Immutable once
// produced by ingestion.
type CenterlinePoint struct {
	Position    r3.Vector // Meters, model frame.
	Direction   r3.Vector // Unit tangent, proximal to distal.
	Radius      float64   // Lumen half-width in meters.
	Generation  int
	BranchID    string
	Distance    float64 // Cumulative arc length from branch start, meters.
	Annotations []Annotation
}

// AnatomicalInfo describes a branch in standard anatomical terms.
type AnatomicalInfo struct {
	StandardName    string
	DiameterRangeMm [2]float64 // Normal lumen diameter bounds in mm.
	LengthRangeMm   [2]float64 // Normal branch length bounds in mm.
}

// AirwayBranch is a named segment of the airway tree with its centerline
// samples ordered proximal to distal.
type AirwayBranch struct {
	ID         string
	Name       string
	ParentID   string // Empty for the root (trachea).
	ChildIDs   []string
	Generation int
	Points     []CenterlinePoint
	Info       AnatomicalInfo
}

// Navigable reports whether the branch has centerline samples to walk.
func (b *AirwayBranch) Navigable() bool {
	return len(b.Points) > 0
}

// Length returns the branch's total centerline arc length in meters.
func (b *AirwayBranch) Length() float64 {
	if len(b.Points) == 0 {
		return 0
	}
	return b.Points[len(b.Points)-1].Distance
}

// PoseAt returns the pose at a point index: the sample position oriented
// along the local tangent. The index is clamped to the point sequence.
func (b *AirwayBranch) PoseAt(index int) spatialmath.Pose {
	if len(b.Points) == 0 {
		return spatialmath.NewZeroPose()
	}
	if index < 0 {
		index = 0
	}
	if index > len(b.Points)-1 {
		index = len(b.Points) - 1
	}
	p := b.Points[index]
	dir := p.Direction
	if dir.Norm() < 1e-9 {
		return spatialmath.NewPoseFromPoint(p.Position)
	}
	return spatialmath.NewPose(p.Position, &spatialmath.OrientationVector{
		OX: dir.X,
		OY: dir.Y,
		OZ: dir.Z,
	})
}

// HistoryEntry records a cursor position prior to a branch switch so GoBack
// can restore it exactly.
type HistoryEntry struct {
	BranchID string
	Index    int
	Progress float64
	Time     time.Time
}

// EducationalInfo is the derived teaching payload for the cursor's current point.
type EducationalInfo struct {
	BranchName      string
	StandardName    string
	Generation      int
	LumenDiameterMm float64
	DistanceMm      float64 // From branch start.
	Annotations     []Annotation
}
