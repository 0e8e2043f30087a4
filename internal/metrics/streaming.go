// Package metrics provides Prometheus metrics for the streaming pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distancing",
		Subsystem: "frames",
		Name:      "published_total",
		Help:      "Annotated frames published to the live slot",
	}, []string{"camera"})

	encodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distancing",
		Subsystem: "frames",
		Name:      "encode_failures_total",
		Help:      "JPEG encode failures skipped while streaming",
	}, []string{"camera"})

	resultsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distancing",
		Subsystem: "ingest",
		Name:      "results_dropped_total",
		Help:      "Engine results dropped before publish (undecodable or unrenderable)",
	}, []string{"camera"})

	streamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "distancing",
		Subsystem: "stream",
		Name:      "clients",
		Help:      "Connected MJPEG clients",
	}, []string{"camera"})

	streamBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "distancing",
		Subsystem: "stream",
		Name:      "bytes_sent_total",
		Help:      "JPEG payload bytes written to MJPEG clients",
	}, []string{"camera"})

	visionFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "distancing",
		Subsystem: "vision",
		Name:      "fps",
		Help:      "Frame rate reported by the processing engine",
	}, []string{"camera"})

	visionPeople = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "distancing",
		Subsystem: "vision",
		Name:      "people",
		Help:      "Detections in the latest frame",
	}, []string{"camera"})

	visionViolations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "distancing",
		Subsystem: "vision",
		Name:      "violations",
		Help:      "Distance violations in the latest frame",
	}, []string{"camera"})

	// Local cache for API and SSE exporter access.
	feedCache   = make(map[string]*FeedStats)
	feedCacheMu sync.RWMutex
)

// FeedStats holds the latest per-feed values for API and SSE readers.
type FeedStats struct {
	Seq        uint64
	FPS        *float64
	People     int
	Violations int
	Clients    int
}

// IncFramesPublished counts one frame publish for a feed.
func IncFramesPublished(camera string) {
	framesPublished.WithLabelValues(camera).Inc()
}

// IncEncodeFailures counts one skipped JPEG encode for a feed.
func IncEncodeFailures(camera string) {
	encodeFailures.WithLabelValues(camera).Inc()
}

// IncResultsDropped counts one undecodable engine message for a feed.
func IncResultsDropped(camera string) {
	resultsDropped.WithLabelValues(camera).Inc()
}

// AddStreamBytes counts JPEG payload bytes written to a client.
func AddStreamBytes(camera string, n int) {
	streamBytes.WithLabelValues(camera).Add(float64(n))
}

// ClientConnected records a new MJPEG client for a feed.
func ClientConnected(camera string) {
	streamClients.WithLabelValues(camera).Inc()
	updateCache(camera, func(s *FeedStats) { s.Clients++ })
}

// ClientDisconnected records an MJPEG client leaving a feed.
func ClientDisconnected(camera string) {
	streamClients.WithLabelValues(camera).Dec()
	updateCache(camera, func(s *FeedStats) { s.Clients-- })
}

// SetVisionStats records the latest engine result for a feed. A nil fps
// means the engine reported no telemetry; the fps series is removed so
// the gauge never carries a stale value.
func SetVisionStats(camera string, seq uint64, fps *float64, people, violations int) {
	if fps != nil {
		visionFPS.WithLabelValues(camera).Set(*fps)
	} else {
		visionFPS.DeleteLabelValues(camera)
	}
	visionPeople.WithLabelValues(camera).Set(float64(people))
	visionViolations.WithLabelValues(camera).Set(float64(violations))

	updateCache(camera, func(s *FeedStats) {
		s.Seq = seq
		s.FPS = fps
		s.People = people
		s.Violations = violations
	})
}

// DeleteFeedMetrics removes all metrics for a feed.
func DeleteFeedMetrics(camera string) {
	framesPublished.DeleteLabelValues(camera)
	encodeFailures.DeleteLabelValues(camera)
	resultsDropped.DeleteLabelValues(camera)
	streamClients.DeleteLabelValues(camera)
	streamBytes.DeleteLabelValues(camera)
	visionFPS.DeleteLabelValues(camera)
	visionPeople.DeleteLabelValues(camera)
	visionViolations.DeleteLabelValues(camera)

	feedCacheMu.Lock()
	delete(feedCache, camera)
	feedCacheMu.Unlock()
}

// GetFeedStats returns current values for a feed.
func GetFeedStats(camera string) *FeedStats {
	feedCacheMu.RLock()
	defer feedCacheMu.RUnlock()
	if s, ok := feedCache[camera]; ok {
		return copyStats(s)
	}
	return nil
}

// GetAllFeedStats returns current values for all feeds.
func GetAllFeedStats() map[string]*FeedStats {
	feedCacheMu.RLock()
	defer feedCacheMu.RUnlock()
	result := make(map[string]*FeedStats, len(feedCache))
	for id, s := range feedCache {
		result[id] = copyStats(s)
	}
	return result
}

func copyStats(s *FeedStats) *FeedStats {
	dup := *s
	if s.FPS != nil {
		fps := *s.FPS
		dup.FPS = &fps
	}
	return &dup
}

func updateCache(camera string, update func(*FeedStats)) {
	feedCacheMu.Lock()
	defer feedCacheMu.Unlock()
	s, ok := feedCache[camera]
	if !ok {
		s = &FeedStats{}
		feedCache[camera] = s
	}
	update(s)
}
