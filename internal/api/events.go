package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/ajay443/smart-social-distancing/internal/events"
	"github.com/ajay443/smart-social-distancing/internal/metrics"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of feed telemetry and camera lifecycle events",
		Tags:        []string{"events"},
	}, map[string]any{
		"telemetry":      events.TelemetryEvent{},
		"camera-online":  events.CameraOnlineEvent{},
		"camera-offline": events.CameraOfflineEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.TelemetryEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraOnlineEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CameraOfflineEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Prime the client with a snapshot per feed so the panel has data
		// before the next exporter tick.
		now := time.Now().UTC().Format(time.RFC3339)
		for camera, stats := range metrics.GetAllFeedStats() {
			ev := events.TelemetryEvent{
				CameraID:   camera,
				Seq:        stats.Seq,
				FPS:        stats.FPS,
				People:     stats.People,
				Violations: stats.Violations,
				Timestamp:  now,
			}
			if err := send.Data(ev); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
