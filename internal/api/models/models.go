package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Cameras int    `json:"cameras" example:"2" doc:"Number of running camera feeds"`
	Clients int    `json:"clients" example:"3" doc:"Connected stream clients"`
}

type HealthResponse struct {
	Body HealthData
}

// Camera models
type CameraData struct {
	ID          string `json:"id" example:"entrance" doc:"Camera identifier"`
	Name        string `json:"name" example:"Entrance" doc:"Display name"`
	StreamURL   string `json:"stream_url" example:"/cameras/entrance/video_feed" doc:"MJPEG stream route"`
	SnapshotURL string `json:"snapshot_url" example:"/cameras/entrance/snapshot" doc:"Single-frame JPEG route"`
	ContentType string `json:"content_type" example:"multipart/x-mixed-replace; boundary=frame" doc:"Stream content type"`
	Birdseye    bool   `json:"birdseye" example:"false" doc:"Whether this is the aggregate top-down view"`
	Live        bool   `json:"live" example:"true" doc:"Whether the feed has published at least one frame"`
	Frames      uint64 `json:"frames" example:"1208" doc:"Frames published since start"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Configured camera feeds"`
	Count   int          `json:"count" example:"2" doc:"Number of feeds"`
}

type CameraListResponse struct {
	Body CameraListData
}

type CameraResponse struct {
	Body CameraData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}
