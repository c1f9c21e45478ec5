package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// loggerKey is the attribute carrying the dotted logger name.
const loggerKey = "logger"

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

//nolint:gochecknoglobals
var (
	Group      = slog.Group
	GroupValue = slog.GroupValue
)

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// Output is "stdout", "stderr", "discard" or a file path to append to
	Output string `env:"OUTPUT" default:"stderr"`

	// Level is the minimum level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" default:"info"`

	// Filter overrides the level per logger name prefix, e.g.
	// "repo:warn,svc.borrowsvc:debug"
	Filter string `env:"FILTER" default:""`

	// JSON switches from the colored console format to one JSON object per line
	JSON bool `env:"JSON" default:"false"`

	// OutputHandle overrides Output when set, e.g. with a buffer in tests
	OutputHandle io.Writer
}

type state struct {
	mu     sync.RWMutex
	root   Logger
	level  slog.LevelVar
	closer io.Closer
}

//nolint:gochecknoglobals
var std = &state{root: NewNopLogger()}

// Configure builds the process-wide handler chain. Loggers obtained earlier
// keep their old chain but follow level changes made through SetLevel.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) {
	output, closer, err := openOutput(cfg)
	if err != nil {
		panic(err)
	}

	std.mu.Lock()

	if std.closer != nil {
		_ = std.closer.Close()
	}

	std.closer = closer
	std.level.Set(parseLogLevel(cfg.Level, LevelInfo))
	std.root = newRoot(cfg, output, appName)

	std.mu.Unlock()

	slog.SetLogLoggerLevel(std.level.Level())

	GetLogger("infra.logging").With(Group("config",
		"app", appName,
		"output", cfg.Output,
		"level", cfg.Level,
		"filter", cfg.Filter,
		"json", cfg.JSON,
	)).DebugContext(ctx, "logging configured")
}

func newRoot(cfg LoggerConfig, output io.Writer, appName string) Logger {
	if output == io.Discard {
		return NewNopLogger()
	}

	var handler slog.Handler

	if cfg.JSON {
		//nolint:exhaustruct
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{AddSource: true, Level: &std.level})
	} else {
		handler = NewConsoleHandler(output, &std.level, IsTerminal(output))
	}

	handler = NewPackageFilterHandler(handler, parseFilter(cfg.Filter))
	handler = NewTracingHandler(handler)

	root := slog.New(handler)
	if appName != "" {
		root = root.With("app", appName)
	}

	return root
}

func openOutput(cfg LoggerConfig) (io.Writer, io.Closer, error) {
	if cfg.OutputHandle != nil {
		return cfg.OutputHandle, nil, nil
	}

	switch cfg.Output {
	case "", "discard":
		return io.Discard, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}

	file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	return file, file, nil
}

// SetLevel changes the minimum level of every logger built by Configure.
func SetLevel(level Level) {
	std.level.Set(level)
	slog.SetLogLoggerLevel(level)
}

// GetLogger returns a logger tagged with name. Names are dotted paths such
// as "svc.borrowsvc.http" and are matched against LoggerConfig.Filter.
func GetLogger(name string) Logger {
	std.mu.RLock()
	defer std.mu.RUnlock()

	return std.root.With(loggerKey, name)
}

// GetLogLogger adapts logger for APIs that want a *log.Logger, such as
// http.Server.ErrorLog.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

func parseFilter(filter string) map[string]slog.Level {
	levels := make(map[string]slog.Level)

	for _, entry := range strings.Split(filter, ",") {
		name, level, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}

		levels[strings.TrimSpace(name)] = parseLogLevel(level, LevelDebug)
	}

	return levels
}

func parseLogLevel(level string, fallback Level) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return fallback
	}
}
