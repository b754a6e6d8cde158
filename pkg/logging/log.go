// Package logging provides leveled, optionally file-rotated logging shared by
// the mapping engines and the command line tool.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

// ModeFlag is the minimum severity that gets written.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

// ParseMode maps a config string to a ModeFlag. Empty means info.
func ParseMode(s string) (ModeFlag, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugMode, nil
	case "", "info":
		return InfoMode, nil
	case "warning", "warn":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "silent":
		return SilentMode, nil
	}
	return InfoMode, fmt.Errorf("unknown log mode %q", s)
}

// Logger records messages at different severities.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the
	// text at Debug level.
	Debugf(format string, args ...interface{})

	// Infof is like Debugf, but at Info level.
	Infof(format string, args ...interface{})

	// Warningf is like Debugf, but at Warning level.
	Warningf(format string, args ...interface{})

	// Errorf is like Debugf, but at Error level.
	Errorf(format string, args ...interface{})
}

// LogConfig selects where log output goes.
type LogConfig struct {
	Logfile string `yaml:"logfile" toml:"logfile"`
	MaxSize int    `yaml:"maxLogSize" toml:"max_log_size"` // megabytes
	MaxAge  int    `yaml:"maxLogAge" toml:"max_log_age"`   // days
	Mode    string `yaml:"mode" toml:"mode"`
}

type stdLogger struct {
	mu   sync.Mutex
	mode ModeFlag
	out  *log.Logger
	file *lumberjack.Logger
}

var std = &stdLogger{mode: InfoMode, out: log.New(os.Stderr, "", log.LstdFlags)}

// Default returns the package-level logger.
func Default() Logger { return std }

// Setup applies a LogConfig to the package-level logger. Without a log file,
// messages go to stderr.
func Setup(c *LogConfig) error {
	std.mu.Lock()
	defer std.mu.Unlock()
	if c == nil {
		return nil
	}
	mode, err := ParseMode(c.Mode)
	if err != nil {
		return err
	}
	std.mode = mode
	if c.Logfile == "" {
		return nil
	}
	if std.file != nil {
		std.file.Close()
	}
	std.file = &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	std.out.SetOutput(std.file)
	return nil
}

// SetMode sets the severity required for a message to be printed.
func SetMode(m ModeFlag) {
	std.mu.Lock()
	std.mode = m
	std.mu.Unlock()
}

// SetOutput redirects the package-level logger, e.g. to a buffer in tests.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	std.out.SetOutput(w)
	std.mu.Unlock()
}

// Shutdown closes the rotating log file, if any.
func Shutdown() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		std.file.Close()
		std.file = nil
		std.out.SetOutput(os.Stderr)
	}
}

func (l *stdLogger) printf(level ModeFlag, tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.mode {
		return
	}
	l.out.Printf(tag+format, args...)
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	l.printf(DebugMode, "   DEBUG ", format, args...)
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.printf(InfoMode, "    INFO ", format, args...)
}

func (l *stdLogger) Warningf(format string, args ...interface{}) {
	l.printf(WarningMode, " WARNING ", format, args...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.printf(ErrorMode, "   ERROR ", format, args...)
}

func Debugf(format string, args ...interface{})   { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})    { std.Infof(format, args...) }
func Warningf(format string, args ...interface{}) { std.Warningf(format, args...) }
func Errorf(format string, args ...interface{})   { std.Errorf(format, args...) }

// TimeLog appends the elapsed time since its creation to every message.
// Example:
//
//	tlog := logging.NewTimeLog()
//	...
//	tlog.Infof("mapped %d volumes", n) // "mapped 3 volumes: 1.2s"
type TimeLog struct {
	logger Logger
	start  time.Time
}

// NewTimeLog starts a TimeLog on the package-level logger.
func NewTimeLog() TimeLog {
	return TimeLog{std, time.Now()}
}

// NewTimeLogFor starts a TimeLog writing to l; nil means the package-level
// logger.
func NewTimeLogFor(l Logger) TimeLog {
	if l == nil {
		l = std
	}
	return TimeLog{l, time.Now()}
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	t.logger.Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	t.logger.Infof(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	t.logger.Warningf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	t.logger.Errorf(format+": %s", append(args, time.Since(t.start))...)
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debugf(string, ...interface{})   {}
func (discard) Infof(string, ...interface{})    {}
func (discard) Warningf(string, ...interface{}) {}
func (discard) Errorf(string, ...interface{})   {}

// Recorder is a Logger that keeps messages in memory; tests use it to check
// that a warning was issued once. Messages holds every level, Warnings only
// warnings.
type Recorder struct {
	mu       sync.Mutex
	Messages []string
	Warnings []string
}

func (r *Recorder) record(warning bool, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.Messages = append(r.Messages, msg)
	if warning {
		r.Warnings = append(r.Warnings, msg)
	}
	r.mu.Unlock()
}

func (r *Recorder) Debugf(format string, args ...interface{}) { r.record(false, format, args...) }
func (r *Recorder) Infof(format string, args ...interface{})  { r.record(false, format, args...) }
func (r *Recorder) Errorf(format string, args ...interface{}) { r.record(false, format, args...) }

func (r *Recorder) Warningf(format string, args ...interface{}) {
	r.record(true, format, args...)
}
