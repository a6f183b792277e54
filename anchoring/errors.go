package anchoring

import "errors"

var (
	// ErrAnchoringFailed is returned when a preset requires an environmental
	// feature that the context does not contain, or an anchor-creation step
	// fails. The session moves to failed and a fresh anchoring call is
	// required to retry.
	ErrAnchoringFailed = errors.New("anchoring failed")

	// ErrNoActiveAnchor is returned when an anchor lifecycle operation runs
	// with nothing anchored.
	ErrNoActiveAnchor = errors.New("no active anchor")

	// ErrSessionState is returned when a session operation is attempted from
	// a state that cannot honor it.
	ErrSessionState = errors.New("invalid anchoring session state")
)
