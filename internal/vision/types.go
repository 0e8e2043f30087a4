// Package vision defines the types exchanged between frame sources and the
// streaming pipeline.
package vision

import (
	"context"
	"image"
	"time"
)

// NormalizedRect is a bounding box with corners in [0,1] relative to the
// frame, ordered [x0,y0] top-left to [x1,y1] bottom-right.
type NormalizedRect struct {
	X0, Y0, X1, Y1 float64
}

// Clamp limits all corners to [0,1].
func (r NormalizedRect) Clamp() NormalizedRect {
	return NormalizedRect{
		X0: clamp01(r.X0),
		Y0: clamp01(r.Y0),
		X1: clamp01(r.X1),
		Y1: clamp01(r.Y1),
	}
}

// ToPixels converts the box to pixel coordinates for a width x height
// frame. Corners are clamped to the frame and canonicalized.
func (r NormalizedRect) ToPixels(width, height int) image.Rectangle {
	c := r.Clamp()
	return image.Rect(
		int(c.X0*float64(width)),
		int(c.Y0*float64(height)),
		int(c.X1*float64(width)),
		int(c.Y1*float64(height)),
	)
}

// Center returns the box midpoint in normalized coordinates.
func (r NormalizedRect) Center() (x, y float64) {
	return (r.X0 + r.X1) / 2, (r.Y0 + r.Y1) / 2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Detection is one tracked object reported by the engine.
type Detection struct {
	ID    string
	Box   NormalizedRect
	Score float64 // confidence in [0,1]; 0 when the engine reports none
}

// DistanceMatrix holds pairwise distances between detections in engine
// units. Values are opaque magnitudes compared against the configured
// threshold; only the upper triangle (i < j) is consulted, so ragged or
// oversized rows are tolerated.
type DistanceMatrix [][]float64

// ViolationPairs counts detection pairs closer than threshold.
func (m DistanceMatrix) ViolationPairs(threshold float64) int {
	count := 0
	for i := range m {
		for j := i + 1; j < len(m[i]); j++ {
			if m[i][j] < threshold {
				count++
			}
		}
	}
	return count
}

// Violators reports which detection indexes take part in at least one
// violating pair.
func (m DistanceMatrix) Violators(threshold float64) map[int]bool {
	violators := make(map[int]bool)
	for i := range m {
		for j := i + 1; j < len(m[i]); j++ {
			if m[i][j] < threshold {
				violators[i] = true
				violators[j] = true
			}
		}
	}
	return violators
}

// Result is one processed engine output ready for annotation.
type Result struct {
	CameraID   string
	Image      *image.RGBA
	Detections []Detection
	Distances  DistanceMatrix
	FPS        *float64 // nil when the engine reports no telemetry
	Timestamp  time.Time
}

// Source produces engine results for one feed. Implementations own their
// delivery goroutine: Start launches it, Results exposes its output, and
// the channel closes after Stop or when ctx ends.
type Source interface {
	Start(ctx context.Context) error
	Results() <-chan Result
	Stop() error
}
