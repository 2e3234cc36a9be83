package game

import "errors"

// Collaborator failures surfaced through the session status.
var (
	// ErrCameraUnavailable is returned when camera access is denied or no device opens.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrDetectorUnavailable is returned when the landmark detector cannot be constructed.
	ErrDetectorUnavailable = errors.New("hand detector unavailable")
	// ErrAssetUnavailable is returned when the controlled object's model fails to load.
	ErrAssetUnavailable = errors.New("scene asset unavailable")

	ErrAlreadyMounted = errors.New("session already mounted")
	ErrNotMounted     = errors.New("session not mounted")
)
