package cameras

import "errors"

// Domain errors surfaced to the API layer.
var (
	ErrCameraNotFound = errors.New("camera not found")
	ErrCameraExists   = errors.New("camera already exists")
)
