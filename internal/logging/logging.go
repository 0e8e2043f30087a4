package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const bufferCapacity = 1000

var (
	mu            sync.RWMutex
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	current       Config
	initialized   bool
	buffer        *RingBuffer
	callback      Callback
)

// Config controls log level, output format, and per-module level overrides.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// Initialize applies the configuration. Loggers handed out before this call
// keep working: their levels are backed by LevelVars that are updated in
// place, and the ring buffer sink becomes active for them as soon as it
// exists. Call once at startup, before spawning anything that logs.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	initialized = true
	if buffer == nil {
		buffer = NewRingBuffer(bufferCapacity)
	}

	global := slog.LevelInfo
	if l := parseLevel(cfg.Level); l != nil {
		global = *l
	}

	for module, levelVar := range moduleLevels {
		levelVar.Set(moduleLevel(cfg, module, global))
	}

	base := &slog.LevelVar{}
	base.Set(global)
	slog.SetDefault(slog.New(newHandler(cfg.Format, base)))
}

// GetLogger returns the logger for a module, creating it on first use.
// The same *slog.Logger is returned for the lifetime of the process.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := moduleLoggers[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	level := slog.LevelInfo
	if initialized {
		format = current.Format
		if l := parseLevel(current.Level); l != nil {
			level = *l
		}
		level = moduleLevel(current, module, level)
	}
	levelVar.Set(level)

	logger := slog.New(newHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// GetBuffer returns the ring buffer holding recent log entries, or nil
// before Initialize.
func GetBuffer() *RingBuffer {
	mu.RLock()
	defer mu.RUnlock()
	return buffer
}

// SetCallback registers a function invoked for every log entry. Used to
// bridge log entries onto the event bus without an import cycle.
func SetCallback(cb Callback) {
	mu.Lock()
	defer mu.Unlock()
	callback = cb
}

// sink returns the current buffer and callback for handlers. Both may be
// nil before Initialize.
func sink() (*RingBuffer, Callback) {
	mu.RLock()
	defer mu.RUnlock()
	return buffer, callback
}

func moduleLevel(cfg Config, module string, fallback slog.Level) slog.Level {
	if s, ok := cfg.Modules[module]; ok {
		if l := parseLevel(s); l != nil {
			return *l
		}
	}
	return fallback
}

// newHandler builds the handler chain for one logger: stdout (text or
// JSON), systemd journal when available, and the ring buffer sink.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := make([]slog.Handler, 0, 3)
	if stdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if journalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	// The buffer handler checks for an active sink on every record, so it
	// is safe to attach before Initialize has created the buffer.
	handlers = append(handlers, NewBufferHandler(level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAvailable reports whether stdout is a terminal, pipe, socket, or
// regular file. /dev/null shows up as a character device and is excluded.
func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

// parseLevel converts a level string to slog.Level, nil when unrecognized.
func parseLevel(level string) *slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		l := slog.LevelDebug
		return &l
	case "info":
		l := slog.LevelInfo
		return &l
	case "warn", "warning":
		l := slog.LevelWarn
		return &l
	case "error":
		l := slog.LevelError
		return &l
	default:
		return nil
	}
}
