package anchoring

import (
	"fmt"
	"sort"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// Selector ranks candidate placements for an environmental snapshot. It is
// deterministic: the same context always yields the same suggestions in the
// same order.
type Selector struct {
	cfg SelectorConfig
}

// NewSelector returns a Selector using the given policy constants.
func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg}
}

// SuggestPlacements produces at most one suggestion per detected surface type
// plus one floating fallback, which is always present. Results are stably
// sorted by confidence, highest first; candidates are generated in a fixed
// order (table, wall, floor, floating) so equal confidences keep that order.
func (s *Selector) SuggestPlacements(ctx EnvironmentalContext) []PlacementSuggestion {
	var suggestions []PlacementSuggestion

	if ctx.HasTable {
		suggestions = append(suggestions, PlacementSuggestion{
			Preset:     PresetTableTop,
			Transform:  s.tableTransform(ctx),
			Confidence: s.cfg.TableConfidence,
			Rationale:  presetPolicies[PresetTableTop].rationale,
		})
	}
	if ctx.HasWall {
		suggestions = append(suggestions, PlacementSuggestion{
			Preset:     PresetWallMounted,
			Transform:  s.wallTransform(ctx),
			Confidence: s.cfg.WallConfidence,
			Rationale:  presetPolicies[PresetWallMounted].rationale,
		})
	}
	if ctx.HasFloor {
		suggestions = append(suggestions, PlacementSuggestion{
			Preset:     PresetFloorStanding,
			Transform:  s.floorTransform(ctx),
			Confidence: s.cfg.FloorConfidence,
			Rationale:  presetPolicies[PresetFloorStanding].rationale,
		})
	}
	suggestions = append(suggestions, PlacementSuggestion{
		Preset:     PresetFloating,
		Transform:  s.floatingTransform(ctx),
		Confidence: s.cfg.FloatingConfidence,
		Rationale:  presetPolicies[PresetFloating].rationale,
	})

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

// ResolvePreset maps a named preset onto the context, producing the transform
// an anchor at that preset would commit. Presets bound to an absent surface
// fail with ErrAnchoringFailed.
func (s *Selector) ResolvePreset(preset PlacementPreset, ctx EnvironmentalContext) (Transform, error) {
	if required, ok := RequiredSurface(preset); ok {
		var present bool
		switch required {
		case SurfaceTable:
			present = ctx.HasTable
		case SurfaceWall:
			present = ctx.HasWall
		case SurfaceFloor:
			present = ctx.HasFloor
		}
		if !present {
			return Transform{}, fmt.Errorf("%w: %s placement requires a detected %s", ErrAnchoringFailed, preset, required)
		}
	}

	switch preset {
	case PresetTableTop:
		return s.tableTransform(ctx), nil
	case PresetWallMounted:
		return s.wallTransform(ctx), nil
	case PresetFloorStanding:
		return s.floorTransform(ctx), nil
	case PresetFloating, PresetHandheld:
		return s.floatingTransform(ctx), nil
	case PresetManual, PresetCustom:
		// The caller supplies the real transform afterwards.
		return Transform{Pose: spatialmath.NewZeroPose(), Scale: s.cfg.DefaultScale}, nil
	default:
		return Transform{}, fmt.Errorf("%w: unknown preset %d", ErrAnchoringFailed, preset)
	}
}

// tableTransform places the model just above the table anchor with an
// identity yaw.
func (s *Selector) tableTransform(ctx EnvironmentalContext) Transform {
	pos := ctx.TableAnchor
	pos.Z += s.cfg.TableLiftM
	return Transform{
		Pose:  spatialmath.NewPoseFromPoint(pos),
		Scale: s.cfg.DefaultScale,
	}
}

// floorTransform raises the model to a standing study height above the floor
// anchor, identity yaw.
func (s *Selector) floorTransform(ctx EnvironmentalContext) Transform {
	pos := ctx.FloorAnchor
	pos.Z += s.cfg.FloorLiftM
	return Transform{
		Pose:  spatialmath.NewPoseFromPoint(pos),
		Scale: s.cfg.DefaultScale,
	}
}

// wallTransform stands the model off the wall along its normal and orients it
// to face outward, into the room.
func (s *Selector) wallTransform(ctx EnvironmentalContext) Transform {
	outward := ctx.WallNormal
	if norm := outward.Norm(); norm > 1e-9 {
		outward = outward.Mul(1 / norm)
	} else {
		outward = r3.Vector{X: 1}
	}
	pos := ctx.WallAnchor.Add(outward.Mul(s.cfg.WallOffsetM))
	pose := spatialmath.NewPose(pos, &spatialmath.OrientationVector{
		OX: outward.X,
		OY: outward.Y,
		OZ: outward.Z,
	})
	return Transform{Pose: pose, Scale: s.cfg.DefaultScale}
}

// floatingTransform suspends the model at eye height over the room center.
// With no room extent available it floats at eye height over the origin.
func (s *Selector) floatingTransform(ctx EnvironmentalContext) Transform {
	pos := ctx.RoomCenter
	pos.Z = s.cfg.EyeHeightM
	return Transform{
		Pose:  spatialmath.NewPoseFromPoint(pos),
		Scale: s.cfg.DefaultScale,
	}
}
