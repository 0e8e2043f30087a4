// Package logging provides structured logging with per-module levels.
//
// Built on log/slog. Records are routed to stdout (text or JSON), to the
// systemd journal when journald is reachable, and into an in-memory ring
// buffer that backs the log streaming API.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"mjpeg": "debug",
//			"api":   "warn",
//		},
//	})
//
// Then grab a named logger anywhere:
//
//	logger := logging.GetLogger("cameras")
//	logger.Info("camera started", "camera_id", id)
//
// Module loggers are cached for the process lifetime; Initialize updates
// their levels in place, so packages may fetch loggers before main has
// loaded configuration.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	mjpeg = "debug"
//	api = "warn"
//
// On systems with journald, filter with:
//
//	journalctl -t distancing MODULE=mjpeg
package logging
