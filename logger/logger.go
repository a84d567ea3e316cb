package logger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MaxLogLines is how many lines the log file keeps
const MaxLogLines = 5000

const timeLayout = "2006/01/02 15:04:05.000"

// LogLevel orders messages by severity
type LogLevel int32

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < LogLevelTrace || l > LogLevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel maps a config value to a level. Unknown values mean info.
func ParseLogLevel(s string) LogLevel {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		name = "WARN"
	}
	for i, n := range levelNames {
		if n == name {
			return LogLevel(i)
		}
	}
	return LogLevelInfo
}

// File is what LimitedLogger writes to. *os.File satisfies it.
type File interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Close() error
}

// LimitedLogger is a levelled logger over a file that never grows past
// MaxLogLines; the oldest lines are dropped first. It also serves as the
// output of the standard log package.
type LimitedLogger struct {
	mu        sync.Mutex
	file      File
	out       io.Writer // used when file is nil
	lineCount int
	maxLines  int
	level     atomic.Int32
}

var (
	globalMu     sync.RWMutex
	globalLogger *LimitedLogger
)

// stderrLogger serves the package functions until NewLimitedLogger runs
var stderrLogger = newWriterLogger(os.Stderr, LogLevelInfo)

func newWriterLogger(w io.Writer, level LogLevel) *LimitedLogger {
	ll := &LimitedLogger{out: w}
	ll.level.Store(int32(level))
	return ll
}

// NewLimitedLogger opens a logger over file and makes it the package logger
func NewLimitedLogger(file File, level LogLevel) *LimitedLogger {
	ll := &LimitedLogger{file: file, maxLines: MaxLogLines}
	ll.level.Store(int32(level))
	ll.lineCount = len(ll.readLines())
	ll.file.Seek(0, io.SeekEnd)

	globalMu.Lock()
	globalLogger = ll
	globalMu.Unlock()
	return ll
}

func current() *LimitedLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return stderrLogger
}

func (ll *LimitedLogger) SetLevel(level LogLevel) {
	ll.level.Store(int32(level))
}

func (ll *LimitedLogger) Enabled(level LogLevel) bool {
	return level >= LogLevel(ll.level.Load())
}

func (ll *LimitedLogger) Logf(level LogLevel, format string, v ...any) {
	if !ll.Enabled(level) {
		return
	}
	line := fmt.Sprintf("%s [%s] %s\n", time.Now().Format(timeLayout), level, fmt.Sprintf(format, v...))
	ll.Write([]byte(line))
}

func (ll *LimitedLogger) Debug(format string, v ...any) { ll.Logf(LogLevelDebug, format, v...) }
func (ll *LimitedLogger) Info(format string, v ...any)  { ll.Logf(LogLevelInfo, format, v...) }
func (ll *LimitedLogger) Warn(format string, v ...any)  { ll.Logf(LogLevelWarn, format, v...) }
func (ll *LimitedLogger) Error(format string, v ...any) { ll.Logf(LogLevelError, format, v...) }

// Write implements io.Writer and trims the file once it passes the limit
func (ll *LimitedLogger) Write(p []byte) (int, error) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return ll.out.Write(p)
	}

	n, err := ll.file.Write(p)
	if err != nil {
		return n, err
	}
	ll.lineCount += strings.Count(string(p[:n]), "\n")
	if ll.lineCount > ll.maxLines {
		ll.trim()
	}
	return n, nil
}

// readLines reads the whole file from the start. Callers hold mu or own ll.
func (ll *LimitedLogger) readLines() []string {
	ll.file.Seek(0, io.SeekStart)
	scanner := bufio.NewScanner(ll.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// trim rewrites the file with its newest maxLines lines
func (ll *LimitedLogger) trim() {
	lines := ll.readLines()
	if len(lines) > ll.maxLines {
		lines = lines[len(lines)-ll.maxLines:]
	}

	ll.file.Truncate(0)
	ll.file.Seek(0, io.SeekStart)
	w := bufio.NewWriter(ll.file)
	for _, line := range lines {
		w.WriteString(line)
		w.WriteByte('\n')
	}
	w.Flush()
	ll.lineCount = len(lines)
}

// Close detaches the logger from the package functions and closes its file
func (ll *LimitedLogger) Close() error {
	globalMu.Lock()
	if globalLogger == ll {
		globalLogger = nil
	}
	globalMu.Unlock()

	ll.mu.Lock()
	defer ll.mu.Unlock()
	if ll.file == nil {
		return nil
	}
	return ll.file.Close()
}

func Debug(format string, v ...any) { current().Debug(format, v...) }
func Info(format string, v ...any)  { current().Info(format, v...) }
func Warn(format string, v ...any)  { current().Warn(format, v...) }
func Error(format string, v ...any) { current().Error(format, v...) }

var noop = func() {}

// Trace logs how long an operation took when the returned func runs.
// Usage: defer logger.Trace("operation")()
func Trace(name string) func() {
	ll := current()
	if !ll.Enabled(LogLevelTrace) {
		return noop
	}
	start := time.Now()
	return func() {
		ll.Logf(LogLevelTrace, "%s: %v", name, time.Since(start))
	}
}
