package anchoring

// presetPolicy describes how a preset binds to the environment. Orientation
// policy is fixed per preset: table and floor placements keep an identity
// yaw, wall placements face outward along the wall normal, and floating
// placements sit at eye height near the room center.
type presetPolicy struct {
	displayName     string
	requiresSurface bool
	requires        SurfaceType // Meaningful only when requiresSurface is set.
	rationale       string
}

var presetPolicies = map[PlacementPreset]presetPolicy{
	PresetTableTop: {
		displayName:     "Table top",
		requiresSurface: true,
		requires:        SurfaceTable,
		rationale:       "stable table surface at a comfortable study height",
	},
	PresetWallMounted: {
		displayName:     "Wall mounted",
		requiresSurface: true,
		requires:        SurfaceWall,
		rationale:       "wall placement keeps the floor clear for group viewing",
	},
	PresetFloorStanding: {
		displayName:     "Floor standing",
		requiresSurface: true,
		requires:        SurfaceFloor,
		rationale:       "floor placement allows full-scale walk-around inspection",
	},
	PresetFloating: {
		displayName: "Floating",
		rationale:   "floating placement works in any environment",
	},
	PresetHandheld: {
		displayName: "Handheld",
		rationale:   "model follows the viewer for close-up inspection",
	},
	PresetManual: {
		displayName: "Manual",
		rationale:   "position chosen directly by the operator",
	},
	PresetCustom: {
		displayName: "Custom",
		rationale:   "restored from a saved placement",
	},
}

// DisplayName returns the human-readable name for a preset.
func DisplayName(p PlacementPreset) string {
	if policy, ok := presetPolicies[p]; ok {
		return policy.displayName
	}
	return p.String()
}

// RequiredSurface reports which surface a preset needs, if any.
func RequiredSurface(p PlacementPreset) (SurfaceType, bool) {
	policy, ok := presetPolicies[p]
	if !ok || !policy.requiresSurface {
		return SurfaceTable, false
	}
	return policy.requires, true
}
