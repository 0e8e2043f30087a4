// Package sim provides a synthetic frame source so a node can run
// end-to-end without an external processing engine. It fabricates a scene
// of walking pedestrians with detections, pairwise pixel distances, and
// measured frame-rate telemetry.
package sim

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// Config describes one synthetic feed.
type Config struct {
	CameraID string
	Width    int
	Height   int
	FPS      int
	People   int
	Birdseye bool
	Seed     int64 // 0 seeds from the clock
}

func (c *Config) applyDefaults() {
	if c.Width <= 0 {
		c.Width = 640
	}
	if c.Height <= 0 {
		c.Height = 480
	}
	if c.FPS <= 0 {
		c.FPS = 15
	}
	if c.People <= 0 {
		c.People = 4
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// walker is one simulated pedestrian bouncing around the scene in
// normalized coordinates.
type walker struct {
	x, y   float64
	vx, vy float64
	score  float64
	tint   color.RGBA
}

// Source implements vision.Source with a ticker-driven synthetic scene.
type Source struct {
	cfg     Config
	logger  *slog.Logger
	rng     *rand.Rand
	walkers []walker

	results chan vision.Result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a synthetic source for one feed.
func New(cfg Config) *Source {
	cfg.applyDefaults()
	s := &Source{
		cfg:     cfg,
		logger:  logging.GetLogger("sim"),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		results: make(chan vision.Result),
	}
	s.walkers = make([]walker, cfg.People)
	for i := range s.walkers {
		s.walkers[i] = walker{
			x:     0.1 + 0.8*s.rng.Float64(),
			y:     0.2 + 0.6*s.rng.Float64(),
			vx:    (s.rng.Float64() - 0.5) * 0.02,
			vy:    (s.rng.Float64() - 0.5) * 0.01,
			score: 0.7 + 0.29*s.rng.Float64(),
			tint: color.RGBA{
				R: 90 + uint8(s.rng.Intn(120)),
				G: 90 + uint8(s.rng.Intn(120)),
				B: 90 + uint8(s.rng.Intn(120)),
				A: 255,
			},
		}
	}
	return s
}

// Start launches the scene loop. The results channel closes when the
// context ends or Stop is called.
func (s *Source) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Results exposes the generated engine output.
func (s *Source) Results() <-chan vision.Result {
	return s.results
}

// Stop ends the scene loop and waits for it to finish.
func (s *Source) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Source) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	interval := time.Duration(float64(time.Second) / float64(s.cfg.FPS))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("Starting synthetic scene",
		"camera", s.cfg.CameraID,
		"size", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"fps", s.cfg.FPS,
		"people", s.cfg.People,
		"birdseye", s.cfg.Birdseye)

	var lastTick time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.step()

			// First tick has no interval to measure, which exercises the
			// explicit-unknown telemetry path downstream.
			var fps *float64
			if !lastTick.IsZero() {
				measured := math.Round(10/now.Sub(lastTick).Seconds()) / 10
				fps = &measured
			}
			lastTick = now

			res := s.render(now, fps)
			select {
			case <-ctx.Done():
				return
			case s.results <- res:
			}
		}
	}
}

// step advances all walkers one tick, bouncing off the scene margins.
func (s *Source) step() {
	for i := range s.walkers {
		w := &s.walkers[i]
		w.x += w.vx
		w.y += w.vy
		if w.x < 0.05 || w.x > 0.95 {
			w.vx = -w.vx
			w.x = math.Max(0.05, math.Min(0.95, w.x))
		}
		if w.y < 0.1 || w.y > 0.9 {
			w.vy = -w.vy
			w.y = math.Max(0.1, math.Min(0.9, w.y))
		}
	}
}

func (s *Source) render(now time.Time, fps *float64) vision.Result {
	img := image.NewRGBA(image.Rect(0, 0, s.cfg.Width, s.cfg.Height))
	if s.cfg.Birdseye {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 12, G: 16, B: 12, A: 255}), image.Point{}, draw.Src)
	} else {
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 52, G: 56, B: 60, A: 255}), image.Point{}, draw.Src)
		// Floor band gives the scene a horizon.
		floor := image.Rect(0, s.cfg.Height*2/3, s.cfg.Width, s.cfg.Height)
		draw.Draw(img, floor, image.NewUniform(color.RGBA{R: 70, G: 72, B: 66, A: 255}), image.Point{}, draw.Src)
	}

	detections := make([]vision.Detection, len(s.walkers))
	for i, w := range s.walkers {
		detections[i] = vision.Detection{
			ID:    fmt.Sprintf("%s-%d", s.cfg.CameraID, i),
			Box:   s.boxFor(w),
			Score: w.score,
		}
		body := detections[i].Box.ToPixels(s.cfg.Width, s.cfg.Height).Inset(2)
		if !body.Empty() {
			draw.Draw(img, body, image.NewUniform(w.tint), image.Point{}, draw.Src)
		}
	}

	return vision.Result{
		CameraID:   s.cfg.CameraID,
		Image:      img,
		Detections: detections,
		Distances:  s.distances(detections),
		FPS:        fps,
		Timestamp:  now,
	}
}

// boxFor sizes a pedestrian box. The normal view fakes perspective by
// growing boxes lower in the frame; the birdseye view uses uniform
// top-down markers.
func (s *Source) boxFor(w walker) vision.NormalizedRect {
	if s.cfg.Birdseye {
		const r = 0.02
		return vision.NormalizedRect{X0: w.x - r, Y0: w.y - r, X1: w.x + r, Y1: w.y + r}.Clamp()
	}
	h := 0.18 + 0.2*w.y
	half := h * 0.2
	return vision.NormalizedRect{X0: w.x - half, Y0: w.y - h/2, X1: w.x + half, Y1: w.y + h/2}.Clamp()
}

// distances builds the pairwise centroid distance matrix in pixels.
func (s *Source) distances(detections []vision.Detection) vision.DistanceMatrix {
	n := len(detections)
	m := make(vision.DistanceMatrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		xi, yi := detections[i].Box.Center()
		for j := i + 1; j < n; j++ {
			xj, yj := detections[j].Box.Center()
			dx := (xi - xj) * float64(s.cfg.Width)
			dy := (yi - yj) * float64(s.cfg.Height)
			d := math.Sqrt(dx*dx + dy*dy)
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}
