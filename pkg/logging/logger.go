// Package logging provides the structured logger for a check-in run.
// Console output goes through a zerolog console writer; in parallel,
// every entry lands in a per-run log file under the log directory so
// the file can be attached to the outcome notification. Old run logs
// are pruned on startup.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultDir is the log directory relative to the working
	// directory, which keeps files collectable by CI schedulers.
	DefaultDir = "logs"

	// DefaultKeepFiles bounds how many previous run logs survive the
	// startup cleanup.
	DefaultKeepFiles = 10

	filePrefix = "rollcall_"
	fileSuffix = ".log"
)

var (
	runID     string
	runIDOnce sync.Once
)

// RunID returns the identifier for this process's run. It is created
// once and reused by log entries, artifact names, and the summary.
func RunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// Options describes logger configuration supplied at creation time.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Debug forces debug level and annotates entries with the caller.
	Debug bool

	// Dir is the log directory. Empty means DefaultDir.
	Dir string

	// KeepFiles bounds retained run logs; zero means DefaultKeepFiles.
	KeepFiles int

	// ConsoleOut overrides the console destination. Defaults to stderr
	// so stdout stays clean for the run summary.
	ConsoleOut io.Writer
}

// Logger wraps zerolog with the run-file plumbing. The zero value is
// unusable; construct with New. All methods are safe on a nil
// receiver.
type Logger struct {
	base      zerolog.Logger
	file      *os.File
	logPath   string
	closeOnce sync.Once
}

// New creates the run logger. When the log file cannot be created the
// logger still works console-only and the error is returned alongside
// it so callers can warn and continue.
func New(opts Options) (*Logger, error) {
	if opts.ConsoleOut == nil {
		opts.ConsoleOut = os.Stderr
	}
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.KeepFiles <= 0 {
		opts.KeepFiles = DefaultKeepFiles
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err == nil {
			level = parsed
		}
	}
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	console := zerolog.NewConsoleWriter()
	console.Out = opts.ConsoleOut
	console.TimeFormat = "15:04:05"

	var (
		fileErr error
		file    *os.File
		logPath string
	)
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		fileErr = fmt.Errorf("create log directory: %w", err)
	} else {
		logPath = filepath.Join(opts.Dir, filePrefix+time.Now().Format("20060102_150405")+fileSuffix)
		file, fileErr = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if fileErr != nil {
			fileErr = fmt.Errorf("open log file: %w", fileErr)
			logPath = ""
		}
	}

	var out io.Writer = console
	if file != nil {
		out = zerolog.MultiLevelWriter(console, file)
	}

	builder := zerolog.New(out).Level(level).With().Timestamp().Str("run_id", shortID(RunID()))
	if opts.Debug {
		builder = builder.Caller()
	}

	l := &Logger{
		base:    builder.Logger(),
		file:    file,
		logPath: logPath,
	}

	if file != nil {
		cleanupOldLogs(l, opts.Dir, opts.KeepFiles)
	}
	if fileErr != nil {
		l.Warn("file logging unavailable, continuing console-only")
		return l, fileErr
	}
	return l, nil
}

// shortID truncates a run UUID for log line brevity.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// WithFields returns a derived logger that always writes the supplied
// fields.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil {
		return nil
	}
	builder := l.base.With()
	for key, value := range fields {
		builder = builder.Interface(key, value)
	}
	return &Logger{base: builder.Logger(), file: l.file, logPath: l.logPath}
}

// Debug writes a debug-level entry.
func (l *Logger) Debug(msg string) {
	if l == nil {
		return
	}
	l.base.Debug().Msg(msg)
}

// Info writes an informational entry.
func (l *Logger) Info(msg string) {
	if l == nil {
		return
	}
	l.base.Info().Msg(msg)
}

// Warn writes a warning entry.
func (l *Logger) Warn(msg string) {
	if l == nil {
		return
	}
	l.base.Warn().Msg(msg)
}

// Error writes an error entry including the supplied error context.
func (l *Logger) Error(err error, msg string) {
	if l == nil {
		return
	}
	event := l.base.Error()
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}

// LogPath returns the active run log file, or empty when file logging
// is unavailable.
func (l *Logger) LogPath() string {
	if l == nil {
		return ""
	}
	return l.logPath
}

// Close flushes and closes the run log file. Safe to call repeatedly.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
