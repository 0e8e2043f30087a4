// Package ingest receives processed engine results over ZeroMQ.
//
// The detection/tracking engine is a separate process; it pushes one CBOR
// message per processed frame to a PUSH socket. This package is the node's
// side of that boundary: a PULL socket whose receive goroutine decodes
// messages into vision.Result values. Malformed messages are skipped and
// counted, never fatal.
package ingest

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
	"github.com/ajay443/smart-social-distancing/internal/vision"
)

// Config describes one engine-fed feed.
type Config struct {
	CameraID    string
	Endpoint    string
	RecvTimeout time.Duration // bounds shutdown latency; default 1s
}

// wire message schema, one CBOR map per processed frame:
//
//	{
//	  "type":       "frame",
//	  "camera_id":  str,
//	  "width":      int, "height": int,
//	  "format":     "rgb24" | "bgr24" | "rgba",
//	  "pixels":     bytes,
//	  "detections": [ { "id": str, "bbox": [x0,y0,x1,y1], "score": f? } ],
//	  "distances":  [ [f, ...], ... ],
//	  "fps":        f?
//	}
type wireFrame struct {
	Type       string          `cbor:"type"`
	CameraID   string          `cbor:"camera_id"`
	Width      int             `cbor:"width"`
	Height     int             `cbor:"height"`
	Format     string          `cbor:"format"`
	Pixels     []byte          `cbor:"pixels"`
	Detections []wireDetection `cbor:"detections"`
	Distances  [][]float64     `cbor:"distances"`
	FPS        *float64        `cbor:"fps"`
}

type wireDetection struct {
	ID    string    `cbor:"id"`
	BBox  []float64 `cbor:"bbox"`
	Score *float64  `cbor:"score"`
}

// Source implements vision.Source over a ZeroMQ PULL socket.
type Source struct {
	cfg     Config
	logger  *slog.Logger
	results chan vision.Result
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	skips   uint64
}

// New creates an engine-fed source. The socket is not opened until Start.
func New(cfg Config) *Source {
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = time.Second
	}
	return &Source{
		cfg:     cfg,
		logger:  logging.GetLogger("ingest"),
		results: make(chan vision.Result),
	}
}

// Start opens the socket and launches the receive goroutine. The results
// channel closes when the context ends or Stop is called.
func (s *Source) Start(ctx context.Context) error {
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return fmt.Errorf("create socket: %w", err)
	}
	// The receive timeout keeps the loop checking ctx; without it a silent
	// engine would block shutdown indefinitely.
	if err := socket.SetRcvtimeo(s.cfg.RecvTimeout); err != nil {
		_ = socket.Close()
		return fmt.Errorf("set receive timeout: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return fmt.Errorf("set linger: %w", err)
	}
	if err := socket.Connect(s.cfg.Endpoint); err != nil {
		_ = socket.Close()
		return fmt.Errorf("connect %s: %w", s.cfg.Endpoint, err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx, socket)
	return nil
}

// Results exposes decoded engine output.
func (s *Source) Results() <-chan vision.Result {
	return s.results
}

// Stop ends the receive loop, closes the socket, and waits for the
// goroutine to finish.
func (s *Source) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *Source) run(ctx context.Context, socket *zmq4.Socket) {
	defer s.wg.Done()
	defer close(s.results)
	defer socket.Close()

	s.logger.Info("Receiving engine results",
		"camera", s.cfg.CameraID,
		"endpoint", s.cfg.Endpoint)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := socket.RecvBytes(0)
		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				// Receive timeout; loop to honor ctx.
				continue
			}
			s.logSkip("Receive failed", "error", err)
			continue
		}

		res, ok := s.decode(msg)
		if !ok {
			metrics.IncResultsDropped(s.cfg.CameraID)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case s.results <- res:
		}
	}
}

// decode turns one wire message into a result. A false return means the
// message was skipped; the reason has already been logged.
func (s *Source) decode(msg []byte) (vision.Result, bool) {
	var w wireFrame
	if err := cbor.Unmarshal(msg, &w); err != nil {
		s.logSkip("Undecodable engine message", "error", err)
		return vision.Result{}, false
	}
	if w.Type != "frame" {
		s.logSkip("Ignoring engine message", "type", w.Type)
		return vision.Result{}, false
	}
	if w.CameraID != "" && w.CameraID != s.cfg.CameraID {
		s.logSkip("Message for another feed", "got", w.CameraID)
		return vision.Result{}, false
	}

	img, err := decodePixels(w.Format, w.Width, w.Height, w.Pixels)
	if err != nil {
		s.logSkip("Bad pixel payload", "error", err)
		return vision.Result{}, false
	}

	detections := make([]vision.Detection, 0, len(w.Detections))
	for _, d := range w.Detections {
		if len(d.BBox) != 4 {
			s.logSkip("Detection bbox must have 4 corners", "id", d.ID, "corners", len(d.BBox))
			continue
		}
		det := vision.Detection{
			ID:  d.ID,
			Box: vision.NormalizedRect{X0: d.BBox[0], Y0: d.BBox[1], X1: d.BBox[2], Y1: d.BBox[3]}.Clamp(),
		}
		if d.Score != nil {
			det.Score = *d.Score
		}
		detections = append(detections, det)
	}

	return vision.Result{
		CameraID:   s.cfg.CameraID,
		Image:      img,
		Detections: detections,
		Distances:  vision.DistanceMatrix(w.Distances),
		FPS:        w.FPS,
		Timestamp:  time.Now(),
	}, true
}

// decodePixels converts an engine pixel payload into RGBA. NewRGBA packs
// rows with no padding, so the flat copies below line up byte for byte.
func decodePixels(format string, width, height int, pixels []byte) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", width, height)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := width * height

	switch format {
	case "rgba":
		if len(pixels) != n*4 {
			return nil, fmt.Errorf("rgba payload is %d bytes, want %d", len(pixels), n*4)
		}
		copy(img.Pix, pixels)
	case "rgb24", "bgr24":
		if len(pixels) != n*3 {
			return nil, fmt.Errorf("%s payload is %d bytes, want %d", format, len(pixels), n*3)
		}
		r, b := 0, 2
		if format == "bgr24" {
			r, b = 2, 0
		}
		for i := range n {
			src := pixels[i*3 : i*3+3]
			dst := img.Pix[i*4 : i*4+4]
			dst[0] = src[r]
			dst[1] = src[1]
			dst[2] = src[b]
			dst[3] = 255
		}
	default:
		return nil, fmt.Errorf("unsupported pixel format %q", format)
	}

	return img, nil
}

// logSkip logs the first skip and every hundredth after it, so a
// misbehaving engine cannot flood the log.
func (s *Source) logSkip(msg string, args ...any) {
	s.skips++
	if s.skips == 1 || s.skips%100 == 0 {
		s.logger.Warn(msg, append(args, "skipped_total", s.skips)...)
	}
}
