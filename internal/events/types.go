package events

// Event type constants for kelindar/event.
const (
	TypeTelemetry uint32 = iota + 1
	TypeCameraOnline
	TypeCameraOffline
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// TelemetryEvent carries a periodic statistics snapshot for one feed.
type TelemetryEvent struct {
	CameraID   string   `json:"camera_id" example:"entrance" doc:"Feed identifier"`
	Seq        uint64   `json:"seq" example:"42" doc:"Publish sequence number"`
	FPS        *float64 `json:"fps,omitempty" example:"24.7" doc:"Producer frame rate; omitted when the engine reports no telemetry"`
	People     int      `json:"people" example:"3" doc:"Detections in the frame"`
	Violations int      `json:"violations" example:"1" doc:"Detection pairs closer than the distance threshold"`
	Timestamp  string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Publish timestamp"`
}

// Type returns the event type identifier for TelemetryEvent.
func (e TelemetryEvent) Type() uint32 { return TypeTelemetry }

// CameraOnlineEvent is published when a feed starts serving.
type CameraOnlineEvent struct {
	CameraID  string `json:"camera_id" example:"entrance" doc:"Feed identifier"`
	Name      string `json:"name" example:"Entrance" doc:"Display name"`
	Birdseye  bool   `json:"birdseye" example:"false" doc:"Whether this is the aggregate top-down view"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraOnlineEvent.
func (e CameraOnlineEvent) Type() uint32 { return TypeCameraOnline }

// CameraOfflineEvent is published when a feed stops.
type CameraOfflineEvent struct {
	CameraID  string `json:"camera_id" example:"entrance" doc:"Feed identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for CameraOfflineEvent.
func (e CameraOfflineEvent) Type() uint32 { return TypeCameraOffline }

// LogEntryEvent mirrors a log line for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
