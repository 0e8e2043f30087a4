// Package mjpeg serves live camera feeds as multipart MJPEG streams.
//
// Every connected client runs its own serve loop against the feed's frame
// store: block until the first frame exists, then re-serve whatever frame
// is current on a fixed cadence. Clients never block the producer and
// never block each other; a slow or dead client only stalls its own loop.
package mjpeg

import (
	"bytes"
	"errors"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ajay443/smart-social-distancing/internal/cameras"
	"github.com/ajay443/smart-social-distancing/internal/logging"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
)

// ErrNoFrame reports that a feed has not published its first frame yet.
var ErrNoFrame = errors.New("no frame published yet")

// Boundary is the multipart boundary token between JPEG parts.
const Boundary = "frame"

// ContentType is the response content type of the streaming routes.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// chunkHeader precedes every JPEG payload; the payload is followed by CRLF
// so the next boundary starts on its own line.
var chunkHeader = []byte("--" + Boundary + "\r\nContent-Type: image/jpeg\r\n\r\n")

// FeedProvider resolves camera ids to running feeds.
type FeedProvider interface {
	Get(id string) (*cameras.Feed, error)
	DefaultFeed() (*cameras.Feed, error)
}

// Config tunes the stream handler.
type Config struct {
	Quality       int           // JPEG quality 1-100, default 80
	FrameInterval time.Duration // serve cadence; 0 serves as fast as writes drain
	MaxClients    int           // concurrent streaming clients per node, 0 = unbounded
}

// Handler serves the MJPEG stream and snapshot routes.
type Handler struct {
	feeds   FeedProvider
	cfg     Config
	clients atomic.Int64
	logger  *slog.Logger
}

// NewHandler creates the stream handler.
func NewHandler(feeds FeedProvider, cfg Config) *Handler {
	if cfg.Quality <= 0 {
		cfg.Quality = 80
	}
	if cfg.Quality > 100 {
		cfg.Quality = 100
	}
	return &Handler{
		feeds:  feeds,
		cfg:    cfg,
		logger: logging.GetLogger("mjpeg"),
	}
}

// Register mounts the streaming routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /cameras/{id}/video_feed", h.videoFeed)
	mux.HandleFunc("GET /cameras/{id}/snapshot", h.snapshot)
	mux.HandleFunc("GET /video_feed", h.defaultVideoFeed)
}

func (h *Handler) videoFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feeds.Get(r.PathValue("id"))
	if err != nil {
		writeFeedError(w, err)
		return
	}
	h.stream(w, r, feed)
}

// defaultVideoFeed serves the node's primary camera so a panel can embed a
// stream without knowing any camera id.
func (h *Handler) defaultVideoFeed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feeds.DefaultFeed()
	if err != nil {
		writeFeedError(w, err)
		return
	}
	h.stream(w, r, feed)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request, feed *cameras.Feed) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusServiceUnavailable)
		return
	}

	if n := h.clients.Add(1); h.cfg.MaxClients > 0 && n > int64(h.cfg.MaxClients) {
		h.clients.Add(-1)
		http.Error(w, "stream capacity reached", http.StatusServiceUnavailable)
		return
	}
	defer h.clients.Add(-1)

	camera := feed.Spec.ID
	session := uuid.New().String()

	metrics.ClientConnected(camera)
	defer metrics.ClientDisconnected(camera)

	h.logger.Info("Stream client connected", "camera", camera, "session", session, "remote", r.RemoteAddr)
	defer h.logger.Info("Stream client disconnected", "camera", camera, "session", session)

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-store")
	flusher.Flush()

	ctx := r.Context()
	if _, err := feed.Store.Wait(ctx); err != nil {
		return
	}

	var tick *time.Ticker
	if h.cfg.FrameInterval > 0 {
		tick = time.NewTicker(h.cfg.FrameInterval)
		defer tick.Stop()
	}

	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: h.cfg.Quality}

	for {
		wrote := false
		if frame, exists := feed.Store.Snapshot(); exists {
			buf.Reset()
			buf.Write(chunkHeader)
			if err := jpeg.Encode(&buf, frame.Image, opts); err != nil {
				metrics.IncEncodeFailures(camera)
				h.logger.Debug("Frame encode failed", "camera", camera, "session", session, "seq", frame.Seq, "error", err)
			} else {
				buf.WriteString("\r\n")
				n, err := w.Write(buf.Bytes())
				if err != nil {
					return
				}
				flusher.Flush()
				metrics.AddStreamBytes(camera, n)
				wrote = true
			}
		}

		if tick == nil {
			if ctx.Err() != nil {
				return
			}
			if !wrote {
				// Nothing went out this pass (no frame, or the encode
				// failed); back off so the tight loop does not burn a
				// core while the producer is stalled.
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Millisecond):
				}
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// snapshot serves a single JPEG of the feed's current frame.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	feed, err := h.feeds.Get(r.PathValue("id"))
	if err != nil {
		writeFeedError(w, err)
		return
	}

	frame, exists := feed.Store.Snapshot()
	if !exists {
		http.Error(w, ErrNoFrame.Error(), http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: h.cfg.Quality}); err != nil {
		metrics.IncEncodeFailures(feed.Spec.ID)
		http.Error(w, "frame encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func writeFeedError(w http.ResponseWriter, err error) {
	if errors.Is(err, cameras.ErrCameraNotFound) {
		http.Error(w, "camera not found", http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
