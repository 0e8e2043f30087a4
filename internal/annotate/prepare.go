package annotate

import (
	"fmt"
	"image"

	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// Box is one prepared overlay rectangle in pixel coordinates.
type Box struct {
	Rect      image.Rectangle
	Label     string
	Violation bool
}

// Overlay is the prepared visualization for one result: everything the
// renderer needs, with all policy (coloring, labels, caption text) already
// decided.
type Overlay struct {
	Boxes   []Box
	Caption string
}

// Prepare computes the overlay descriptor for one result. Detection pairs
// closer than threshold are marked as violations on both sides. Prepare is
// pure so the policy can be tested without a raster.
func Prepare(detections []vision.Detection, distances vision.DistanceMatrix, fps *float64, threshold float64, width, height int) Overlay {
	violators := distances.Violators(threshold)

	boxes := make([]Box, 0, len(detections))
	for i, d := range detections {
		label := "Pedestrian"
		if d.Score > 0 {
			label = fmt.Sprintf("Pedestrian %d%%", int(d.Score*100+0.5))
		}
		boxes = append(boxes, Box{
			Rect:      d.Box.ToPixels(width, height),
			Label:     label,
			Violation: violators[i],
		})
	}

	return Overlay{Boxes: boxes, Caption: Caption(fps)}
}

// Caption formats the frame-rate readout. A nil fps renders an explicit
// unknown rather than failing the publish.
func Caption(fps *float64) string {
	if fps == nil {
		return "Frames rate = unknown(fps)"
	}
	return fmt.Sprintf("Frames rate = %g(fps)", *fps)
}
