package airway

import "errors"

var (
	// ErrInvalidModelData is returned when centerline data is present but no
	// valid tree can be derived from it (no unique generation-0 root,
	// malformed rows, or zero parseable samples).
	ErrInvalidModelData = errors.New("invalid airway model data")

	// ErrCenterlineNotFound is returned when no centerline data resolves for
	// a model id.
	ErrCenterlineNotFound = errors.New("centerline data not found")

	// ErrNavigation is returned when a navigation operation is attempted in a
	// state that cannot honor it, such as starting with no model installed.
	ErrNavigation = errors.New("navigation error")
)
