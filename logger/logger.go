// Package logger provides structured, leveled logging for the statemap
// engine.
//
// It follows the same shape as most of this codebase's other ambient
// packages: a small atomic level guard so a disabled level costs a single
// load, caller file/function/line annotation, and no external logging
// framework. Log output never affects what ingest emits -- logging here
// is purely observational.
//
// Log output format:
//
//	YYYY/MM/DD HH:MM:SS.ssssss [PID] [LEVEL] message (function.file:line)
package logger

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// Level is the severity of a log message. Higher values are more severe.
type Level int32

const (
	TRACE Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	TRACE: "TRACE",
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

var (
	currentLevel atomic.Int32
	processID    = os.Getpid()
	std          *log.Logger
)

func init() {
	std = log.New(os.Stderr, "", 0)
	currentLevel.Store(int32(INFO))

	if v := os.Getenv("STATEMAP_LOG_LEVEL"); v != "" {
		if err := SetLevel(v); err != nil {
			Warn("ignoring STATEMAP_LOG_LEVEL=%q: %v", v, err)
		}
	}
}

// SetLevel sets the minimum level that will be logged.
func SetLevel(level string) error {
	switch strings.ToUpper(level) {
	case "TRACE":
		currentLevel.Store(int32(TRACE))
	case "DEBUG":
		currentLevel.Store(int32(DEBUG))
	case "INFO":
		currentLevel.Store(int32(INFO))
	case "WARN":
		currentLevel.Store(int32(WARN))
	case "ERROR":
		currentLevel.Store(int32(ERROR))
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}
	return nil
}

// CurrentLevel returns the active minimum level.
func CurrentLevel() Level {
	return Level(currentLevel.Load())
}

func format(level Level, skip int, msg string) string {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		file = "unknown"
	}
	if idx := strings.LastIndex(file, "/"); idx != -1 {
		file = file[idx+1:]
	}
	file = strings.TrimSuffix(file, ".go")

	fn := "unknown"
	if f := runtime.FuncForPC(pc); f != nil {
		name := f.Name()
		if idx := strings.LastIndex(name, "."); idx != -1 {
			fn = name[idx+1:]
		}
	}

	ts := time.Now().Format("2006/01/02 15:04:05.000000")
	return fmt.Sprintf("%s [%d] [%s] %s (%s.%s:%d)",
		ts, processID, levelNames[level], msg, fn, file, line)
}

func logf(level Level, skip int, f string, args ...interface{}) {
	if level < Level(currentLevel.Load()) {
		return
	}
	std.Println(format(level, skip, fmt.Sprintf(f, args...)))
}

func Trace(f string, args ...interface{}) { logf(TRACE, 3, f, args...) }
func Debug(f string, args ...interface{}) { logf(DEBUG, 3, f, args...) }
func Info(f string, args ...interface{})  { logf(INFO, 3, f, args...) }
func Warn(f string, args ...interface{})  { logf(WARN, 3, f, args...) }
func Error(f string, args ...interface{}) { logf(ERROR, 3, f, args...) }

// Fatal logs at ERROR and exits the process. Reserved for host programs;
// the engine itself never calls this.
func Fatal(f string, args ...interface{}) {
	std.Println(format(ERROR, 2, fmt.Sprintf(f, args...)))
	os.Exit(1)
}
