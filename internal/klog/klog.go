// Package klog is the process-wide logging sink every storage and
// engine component writes through.
//
// The original engine's common/logger.h is a singleton with an
// internal mutex, level filtering, a console sink, and a file sink that
// rotates once MAX_LOG_FILE_SIZE_MB is crossed, keeping MAX_LOG_FILES-1
// rotated copies. This package is that singleton, ported behind a
// small Logger interface per the "inject a reference, don't reach for
// hidden globals in the core" design note — components take a Logger
// field at construction; Default() is the process-wide instance, and
// nothing in this module calls it (the engine builds its own logger
// with New, or uses Nop).
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"kizuna/internal/kconfig"

	"github.com/dustin/go-humanize"
)

// Level filters which calls reach the sink.
type Level uint8

const (
	Debug Level = iota
	Info
	Warn
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface storage/engine components depend on. The only
// process-wide implementation is *FileLogger, but tests may inject a
// no-op or buffering stand-in.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// FileLogger serializes writes with an internal mutex and rotates the
// active file by size, matching the original logger's behavior.
type FileLogger struct {
	mu            sync.Mutex
	level         Level
	consoleOut    io.Writer
	file          *os.File
	path          string
	maxSizeBytes  int64
	maxBackups    int
}

var (
	defaultOnce sync.Once
	defaultLog  *FileLogger
)

// Default returns the process-wide logger, opening kconfig.DefaultLogFile
// on first use.
func Default() *FileLogger {
	defaultOnce.Do(func() {
		defaultLog, _ = New(kconfig.DefaultLogFile)
	})
	return defaultLog
}

// New opens (or creates) path as the active log file. An empty path
// disables the file sink; console logging still works.
func New(path string) (*FileLogger, error) {
	l := &FileLogger{
		level:        Info,
		consoleOut:   os.Stderr,
		path:         path,
		maxSizeBytes: kconfig.MaxLogFileSizeMB * 1024 * 1024,
		maxBackups:   kconfig.MaxLogFiles - 1,
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = f
	}
	return l, nil
}

// SetLevel changes the minimum level that reaches the sink.
func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *FileLogger) Debug(format string, args ...any) { l.log(Debug, format, args...) }
func (l *FileLogger) Info(format string, args ...any)  { l.log(Info, format, args...) }
func (l *FileLogger) Warn(format string, args ...any)  { l.log(Warn, format, args...) }
func (l *FileLogger) Error(format string, args ...any) { l.log(Error, format, args...) }

func (l *FileLogger) log(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	line := fmt.Sprintf("%s [%s] %s\n", time.Now().Format(time.RFC3339), level, fmt.Sprintf(format, args...))

	if l.consoleOut != nil {
		io.WriteString(l.consoleOut, line)
	}
	if l.file == nil {
		return
	}
	l.rotateIfNeededLocked()
	l.file.WriteString(line)
}

// rotateIfNeededLocked checks the active file's size and, if it has
// crossed maxSizeBytes, drops kizuna.log.N (N = maxBackups), shifts
// kizuna.log.(N-1) -> kizuna.log.N down to kizuna.log.1 -> kizuna.log.2,
// moves the active file to kizuna.log.1, then reopens a fresh
// kizuna.log. Caller holds l.mu.
func (l *FileLogger) rotateIfNeededLocked() {
	info, err := l.file.Stat()
	if err != nil || info.Size() < l.maxSizeBytes {
		return
	}

	oldSize := info.Size()
	l.file.Close()

	os.Remove(rotatedName(l.path, l.maxBackups))
	for i := l.maxBackups - 1; i >= 1; i-- {
		os.Rename(rotatedName(l.path, i), rotatedName(l.path, i+1))
	}
	os.Rename(l.path, rotatedName(l.path, 1))

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		l.file = f
		l.file.WriteString(fmt.Sprintf("%s [%s] rotated previous log (%s)\n",
			time.Now().Format(time.RFC3339), Info, humanize.Bytes(uint64(oldSize))))
	}
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// Close flushes and closes the file sink, if any.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Nop is a Logger that discards everything, for tests that don't want
// log noise or a temp file.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Info(string, ...any)  {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}
