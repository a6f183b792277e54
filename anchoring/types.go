package anchoring

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.viam.com/rdk/spatialmath"
)

// SurfaceType identifies the kind of environmental surface a placement can bind to.
type SurfaceType int

const (
	// SurfaceTable is a raised horizontal plane.
	SurfaceTable SurfaceType = iota
	// SurfaceWall is a vertical plane.
	SurfaceWall
	// SurfaceFloor is the ground plane.
	SurfaceFloor
)

func (s SurfaceType) String() string {
	switch s {
	case SurfaceTable:
		return "table"
	case SurfaceWall:
		return "wall"
	case SurfaceFloor:
		return "floor"
	default:
		return "unknown"
	}
}

// SurfaceTypeFromString parses a surface type name as it appears in
// environment capture files.
func SurfaceTypeFromString(s string) (SurfaceType, bool) {
	switch s {
	case "table":
		return SurfaceTable, true
	case "wall":
		return SurfaceWall, true
	case "floor":
		return SurfaceFloor, true
	default:
		return SurfaceTable, false
	}
}

// LightingQuality classifies ambient light for tracking stability.
type LightingQuality int

const (
	LightingPoor LightingQuality = iota
	LightingFair
	LightingGood
	LightingExcellent
)

func (l LightingQuality) String() string {
	switch l {
	case LightingPoor:
		return "poor"
	case LightingFair:
		return "fair"
	case LightingGood:
		return "good"
	case LightingExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// LightingFromString parses a lighting quality name as persisted in the
// anchor store.
func LightingFromString(s string) (LightingQuality, bool) {
	switch s {
	case "poor":
		return LightingPoor, true
	case "fair":
		return LightingFair, true
	case "good":
		return LightingGood, true
	case "excellent":
		return LightingExcellent, true
	default:
		return LightingPoor, false
	}
}

// PlacementPreset names a canonical anchoring strategy.
type PlacementPreset int

const (
	PresetTableTop PlacementPreset = iota
	PresetWallMounted
	PresetFloorStanding
	PresetFloating
	PresetHandheld
	PresetManual
	PresetCustom
)

func (p PlacementPreset) String() string {
	switch p {
	case PresetTableTop:
		return "table_top"
	case PresetWallMounted:
		return "wall_mounted"
	case PresetFloorStanding:
		return "floor_standing"
	case PresetFloating:
		return "floating"
	case PresetHandheld:
		return "handheld"
	case PresetManual:
		return "manual"
	case PresetCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// PresetFromString parses a preset name as it appears in CLI flags and the
// anchor store.
func PresetFromString(s string) (PlacementPreset, bool) {
	switch s {
	case "table_top":
		return PresetTableTop, true
	case "wall_mounted":
		return PresetWallMounted, true
	case "floor_standing":
		return PresetFloorStanding, true
	case "floating":
		return PresetFloating, true
	case "handheld":
		return PresetHandheld, true
	case "manual":
		return PresetManual, true
	case "custom":
		return PresetCustom, true
	default:
		return PresetCustom, false
	}
}

// SessionState is the anchoring session's lifecycle state.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionReady
	SessionDetecting
	SessionAnchoring
	SessionAnchored
	SessionRemoving
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionReady:
		return "ready"
	case SessionDetecting:
		return "detecting"
	case SessionAnchoring:
		return "anchoring"
	case SessionAnchored:
		return "anchored"
	case SessionRemoving:
		return "removing"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Surface is one detected environmental surface as supplied by the AR
// collaborator: a type, world-frame point samples in meters, the surface
// normal (pointing into the room for walls), and detection confidence.
type Surface struct {
	Type       SurfaceType
	Points     []r3.Vector
	Normal     r3.Vector
	Confidence float64
}

// EnvironmentalContext is a snapshot of the detected environment. Produced
// fresh on each placement-detection request; never persisted as live state,
// only as a record attached to committed anchors.
type EnvironmentalContext struct {
	HasTable bool
	HasWall  bool
	HasFloor bool

	// Representative anchor points per surface type, world frame, meters.
	TableAnchor r3.Vector
	WallAnchor  r3.Vector
	FloorAnchor r3.Vector

	// WallNormal points from the wall into the room.
	WallNormal r3.Vector

	RoomSize          r3.Vector
	RoomCenter        r3.Vector
	Lighting          LightingQuality
	UnmetRequirements []string
	CapturedAt        time.Time
}

// Transform is a committed placement transform: a pose plus a uniform scale.
type Transform struct {
	Pose  spatialmath.Pose
	Scale float64
}

// PlacementSuggestion is a candidate anchor: a transform, a confidence in
// [0,1], and a human-readable rationale. Ephemeral; regenerated on every
// detection pass.
type PlacementSuggestion struct {
	Preset     PlacementPreset
	Transform  Transform
	Confidence float64
	Rationale  string
}

// SpatialAnchor is a committed placement. Anchors follow a value-replacement
// lifecycle: they are never mutated in place; position updates construct a
// new value via WithTransform.
type SpatialAnchor struct {
	ID        string
	Name      string
	Transform Transform
	Preset    PlacementPreset
	Context   EnvironmentalContext
	CreatedAt time.Time
}

// NewSpatialAnchor mints an anchor for a freshly resolved transform.
func NewSpatialAnchor(name string, preset PlacementPreset, tr Transform, ctx EnvironmentalContext) SpatialAnchor {
	return SpatialAnchor{
		ID:        uuid.NewString(),
		Name:      name,
		Transform: tr,
		Preset:    preset,
		Context:   ctx,
		CreatedAt: time.Now(),
	}
}

// WithTransform returns a copy of the anchor carrying the new transform.
// Every identity field (id, name, preset, creation context) is preserved.
func (a SpatialAnchor) WithTransform(tr Transform) SpatialAnchor {
	a.Transform = tr
	return a
}
