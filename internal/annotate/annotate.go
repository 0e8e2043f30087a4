// Package annotate draws detection overlays onto frames before they are
// published for streaming.
package annotate

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// Annotator renders an engine result into a frame ready for publishing.
type Annotator interface {
	Annotate(res vision.Result) (*image.RGBA, error)
}

var (
	colorOK        = color.RGBA{G: 255, A: 255}
	colorViolation = color.RGBA{R: 255, A: 255}
	colorCaption   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Renderer is the built-in Annotator. It draws bounding boxes colored by
// distance violations, per-detection labels, and the frame-rate caption at
// the bottom-left.
type Renderer struct {
	threshold float64
}

// NewRenderer creates a renderer. threshold is the distance below which a
// detection pair counts as a violation, in the engine's distance units.
func NewRenderer(threshold float64) *Renderer {
	return &Renderer{threshold: threshold}
}

// Annotate draws the overlay in place and returns the frame. The result
// image is consumed: the caller must not reuse it after the call, because
// the returned frame is handed to the store as immutable.
func (r *Renderer) Annotate(res vision.Result) (*image.RGBA, error) {
	img := res.Image
	if img == nil {
		return nil, errors.New("result has no image")
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty %dx%d frame", bounds.Dx(), bounds.Dy())
	}

	ov := Prepare(res.Detections, res.Distances, res.FPS, r.threshold, bounds.Dx(), bounds.Dy())

	for _, box := range ov.Boxes {
		c := colorOK
		if box.Violation {
			c = colorViolation
		}
		drawRect(img, box.Rect, c)
		drawText(img, box.Label, box.Rect.Min.X+2, box.Rect.Min.Y-4, c)
	}

	drawText(img, ov.Caption, bounds.Min.X+10, bounds.Max.Y-10, colorCaption)
	return img, nil
}

// drawRect draws a one-pixel rectangle outline clipped to the image.
func drawRect(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.SetRGBA(x, rect.Min.Y, c)
		img.SetRGBA(x, rect.Max.Y-1, c)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.SetRGBA(rect.Min.X, y, c)
		img.SetRGBA(rect.Max.X-1, y, c)
	}
}

// drawText draws text with its baseline at (x, y). The drawer clips text
// that runs outside the frame.
func drawText(img *image.RGBA, text string, x, y int, c color.RGBA) {
	if text == "" {
		return
	}
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
