package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/ajay443/smart-social-distancing/internal/events"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// TelemetryExporter publishes per-feed statistics to the event bus at a
// fixed cadence, so SSE clients see steady updates regardless of how fast
// the engine delivers frames.
type TelemetryExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewTelemetryExporter creates a new telemetry exporter.
func NewTelemetryExporter(eventBus EventPublisher) *TelemetryExporter {
	return &TelemetryExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the export loop.
func (e *TelemetryExporter) Start(ctx context.Context) {
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.run()
}

// Stop stops the exporter and waits for the goroutine to finish.
func (e *TelemetryExporter) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *TelemetryExporter) run() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.publishTelemetry()
		}
	}
}

func (e *TelemetryExporter) publishTelemetry() {
	for cameraID, stats := range metrics.GetAllFeedStats() {
		e.eventBus.Publish(events.TelemetryEvent{
			CameraID:   cameraID,
			Seq:        stats.Seq,
			FPS:        stats.FPS,
			People:     stats.People,
			Violations: stats.Violations,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}
}
