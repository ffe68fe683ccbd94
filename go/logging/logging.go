package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// Level types
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	// Format types
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// Opts holds logging configuration options.
type Opts struct {
	Fields   []string `long:"log-field" env:"LOG_FIELD" env-delim:"," description:"Inject fields at the topline level, using k:v"`
	Level    string   `long:"log-level" env:"LOG_LEVEL" description:"Log level: debug, info, warn, error" default:"info"`
	Format   string   `long:"log-format" env:"LOG_FORMAT" description:"Log format: json, text, console" default:"console"`
	FilePath string   `long:"log-file" env:"LOG_FILE" description:"Log to file instead of stderr"`
}

// Init initializes the default slog logger based on the provided options.
func Init(opts *Opts) error {
	logger, err := NewLogger(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// NewLogger builds a logger from opts. A nil opts yields a console logger at info level.
func NewLogger(opts *Opts) (*slog.Logger, error) {
	if opts == nil {
		opts = &Opts{Level: LevelInfo, Format: FormatConsole}
	}
	handler, err := getHandler(opts, os.Stderr)
	if err != nil {
		return nil, err
	}
	logger := slog.New(NewContextHandler(handler, JobIDFromContext))
	for _, field := range opts.Fields {
		split := strings.SplitN(field, ":", 2)
		if len(split) != 2 {
			return nil, fmt.Errorf("invalid field format: %s", field)
		}
		logger = logger.With(split[0], split[1])
	}
	return logger, nil
}

func getHandler(opts *Opts, writer io.Writer) (slog.Handler, error) {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.FilePath != "" {
		file, err := os.OpenFile(opts.FilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer = file
	}

	switch opts.Format {
	case FormatJSON:
		return slog.NewJSONHandler(writer, handlerOpts), nil
	case FormatText:
		return slog.NewTextHandler(writer, handlerOpts), nil
	case FormatConsole, "":
		return NewConsoleHandler(writer, handlerOpts), nil
	default:
		return nil, fmt.Errorf("unrecognized format: %s", opts.Format)
	}
}

var levelToSlogLevel = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

func parseLevel(level string) slog.Level {
	if l, ok := levelToSlogLevel[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}
