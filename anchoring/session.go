package anchoring

import "fmt"

// Session owns the anchoring lifecycle for one model. Like the navigator it
// is confined to a single coordinating goroutine; callers serialize access.
//
// The lifecycle is idle -> ready -> {detecting, anchoring} -> anchored ->
// removing -> idle, with failed reachable from anchoring. Detection always
// returns to the state it started from.
type Session struct {
	selector *Selector

	state      SessionState
	context    EnvironmentalContext
	hasContext bool
	active     *SpatialAnchor
}

// NewSession returns an idle session using the given selector.
func NewSession(selector *Selector) *Session {
	return &Session{selector: selector, state: SessionIdle}
}

// Begin readies an idle session for detection and anchoring.
func (s *Session) Begin() error {
	if s.state != SessionIdle {
		return fmt.Errorf("%w: cannot begin from %s", ErrSessionState, s.state)
	}
	s.state = SessionReady
	return nil
}

// DetectPlacements captures a fresh context snapshot and ranks placements
// against it. Detection is read-only: the session passes through detecting
// and returns to the state it started from.
func (s *Session) DetectPlacements(ctx EnvironmentalContext) ([]PlacementSuggestion, error) {
	if s.state != SessionReady && s.state != SessionAnchored && s.state != SessionFailed {
		return nil, fmt.Errorf("%w: cannot detect from %s", ErrSessionState, s.state)
	}
	prior := s.state
	s.state = SessionDetecting
	s.context = ctx
	s.hasContext = true
	suggestions := s.selector.SuggestPlacements(ctx)
	s.state = prior
	return suggestions, nil
}

// Anchor resolves the preset against the most recent context snapshot and
// installs a new anchor. An anchored session re-anchors by replacement. On
// failure the session enters failed; calling Anchor again is the retry path,
// there is no automatic retry.
func (s *Session) Anchor(name string, preset PlacementPreset) (SpatialAnchor, error) {
	if s.state != SessionReady && s.state != SessionAnchored && s.state != SessionFailed {
		return SpatialAnchor{}, fmt.Errorf("%w: cannot anchor from %s", ErrSessionState, s.state)
	}
	if !s.hasContext {
		s.state = SessionFailed
		return SpatialAnchor{}, fmt.Errorf("%w: no environmental context captured", ErrAnchoringFailed)
	}
	s.state = SessionAnchoring
	tr, err := s.selector.ResolvePreset(preset, s.context)
	if err != nil {
		s.state = SessionFailed
		return SpatialAnchor{}, err
	}
	anchor := NewSpatialAnchor(name, preset, tr, s.context)
	s.active = &anchor
	s.state = SessionAnchored
	return anchor, nil
}

// AnchorSuggestion commits an already-resolved suggestion, skipping preset
// resolution.
func (s *Session) AnchorSuggestion(name string, sug PlacementSuggestion) (SpatialAnchor, error) {
	if s.state != SessionReady && s.state != SessionAnchored && s.state != SessionFailed {
		return SpatialAnchor{}, fmt.Errorf("%w: cannot anchor from %s", ErrSessionState, s.state)
	}
	s.state = SessionAnchoring
	anchor := NewSpatialAnchor(name, sug.Preset, sug.Transform, s.context)
	s.active = &anchor
	s.state = SessionAnchored
	return anchor, nil
}

// RestoreAnchor installs a previously persisted anchor without rerunning
// placement. Used when reloading saved anchors at startup.
func (s *Session) RestoreAnchor(anchor SpatialAnchor) error {
	if s.state != SessionIdle && s.state != SessionReady {
		return fmt.Errorf("%w: cannot restore from %s", ErrSessionState, s.state)
	}
	s.active = &anchor
	s.state = SessionAnchored
	return nil
}

// UpdatePosition replaces the active anchor with a copy carrying the new
// transform and returns the replacement.
func (s *Session) UpdatePosition(tr Transform) (SpatialAnchor, error) {
	if s.state != SessionAnchored || s.active == nil {
		return SpatialAnchor{}, ErrNoActiveAnchor
	}
	next := s.active.WithTransform(tr)
	s.active = &next
	return next, nil
}

// BeginRemove detaches the active anchor and holds the session in removing
// until FinishRemove, giving the caller room to delete persisted state. The
// detached anchor is returned for that purpose.
func (s *Session) BeginRemove() (SpatialAnchor, error) {
	if s.state != SessionAnchored || s.active == nil {
		return SpatialAnchor{}, fmt.Errorf("%w: cannot remove from %s", ErrSessionState, s.state)
	}
	removed := *s.active
	s.active = nil
	s.state = SessionRemoving
	return removed, nil
}

// FinishRemove completes removal, returning the session to idle.
func (s *Session) FinishRemove() {
	if s.state == SessionRemoving {
		s.state = SessionIdle
	}
}

// Reset abandons the active anchor and any captured context and returns the
// session to idle from any state.
func (s *Session) Reset() {
	s.state = SessionIdle
	s.active = nil
	s.hasContext = false
	s.context = EnvironmentalContext{}
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState { return s.state }

// ActiveAnchor returns the committed anchor, if any.
func (s *Session) ActiveAnchor() (SpatialAnchor, bool) {
	if s.active == nil {
		return SpatialAnchor{}, false
	}
	return *s.active, true
}

// LastContext returns the most recent context snapshot, if one was captured.
func (s *Session) LastContext() (EnvironmentalContext, bool) {
	return s.context, s.hasContext
}
