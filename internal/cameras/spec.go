// Package cameras manages feed definitions and their running pipelines.
//
// Camera specs live in a TOML file keyed by camera id. The service side of
// the package turns a spec set into running feeds: one source, one
// publisher, and one frame store per camera.
package cameras

import (
	"fmt"
	"regexp"
)

// Source kinds a camera spec may name.
const (
	SourceSim = "sim"
	SourceZMQ = "zmq"
)

// CameraSpec is the persistent configuration for one feed.
type CameraSpec struct {
	// ID is the unique identifier, taken from the TOML table key. It is
	// used in routes, logs, and metric labels.
	ID string `toml:"-" json:"id"`

	// Name is a human-readable name. Defaults to the ID.
	Name string `toml:"name" json:"name"`

	// Source selects the frame provider: "sim" or "zmq".
	Source string `toml:"source" json:"source"`

	// Width and Height of generated frames. 0 lets the source decide:
	// the simulator falls back to its defaults, the engine's frame
	// dimensions arrive on the wire.
	Width  int `toml:"width,omitempty" json:"width,omitempty"`
	Height int `toml:"height,omitempty" json:"height,omitempty"`

	// FPS is the simulator cadence. Ignored for zmq sources.
	FPS int `toml:"fps,omitempty" json:"fps,omitempty"`

	// People is the number of simulated pedestrians. Ignored for zmq
	// sources.
	People int `toml:"people,omitempty" json:"people,omitempty"`

	// Endpoint is the ZeroMQ endpoint to pull engine results from.
	// Required when Source is "zmq".
	Endpoint string `toml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Birdseye marks the aggregate top-down view.
	Birdseye bool `toml:"birdseye,omitempty" json:"birdseye,omitempty"`
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks one spec for integrity.
func (c CameraSpec) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("camera id is required")
	}
	if !idPattern.MatchString(c.ID) {
		return fmt.Errorf("camera id %q must be lowercase letters, digits, '-' or '_'", c.ID)
	}

	switch c.Source {
	case SourceSim:
	case SourceZMQ:
		if c.Endpoint == "" {
			return fmt.Errorf("camera %s: zmq source requires an endpoint", c.ID)
		}
	default:
		return fmt.Errorf("camera %s: unknown source %q", c.ID, c.Source)
	}

	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("camera %s: dimensions must not be negative", c.ID)
	}
	if c.FPS < 0 {
		return fmt.Errorf("camera %s: fps must not be negative", c.ID)
	}
	if c.People < 0 {
		return fmt.Errorf("camera %s: people must not be negative", c.ID)
	}

	return nil
}
