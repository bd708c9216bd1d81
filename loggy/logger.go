package loggy

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
	LevelFatal
	LevelSilent
)

type Logger struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File
	app  string

	// Echo copies every line to stderr.
	Echo bool
	// Level drops lines below it.
	Level Level
}

// New returns a logger writing to w.
func New(w io.Writer, app string) *Logger {
	if app == "" {
		app = "dbasic"
	}
	return &Logger{
		out:   w,
		app:   app,
		Level: LevelInfo,
	}
}

// NewFile creates a timestamped log file under folder.
func NewFile(folder string, app string) (*Logger, error) {
	if app == "" {
		app = "dbasic"
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s_%s.log", app, fts())
	f, err := os.Create(filepath.Join(folder, filename))
	if err != nil {
		return nil, err
	}

	l := New(f, app)
	l.file = f
	return l, nil
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	l := New(io.Discard, "")
	l.Level = LevelSilent
	return l
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func ts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d/%.2d/%.2d %.2d:%.2d:%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

func fts() string {
	t := time.Now()
	return fmt.Sprintf(
		"%.4d%.2d%.2d%.2d%.2d%.2d",
		t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
	)
}

func (l *Logger) write(level Level, line string) {
	if l == nil || level < l.Level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	io.WriteString(l.out, line)
	if l.file != nil {
		l.file.Sync()
	}
	if l.Echo {
		os.Stderr.WriteString(line)
	}
}

func (l *Logger) llogf(level Level, format string, designator string, v ...interface{}) {

	format = ts() + " " + designator + " :: " + format

	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	l.write(level, fmt.Sprintf(format, v...))
}

func (l *Logger) llog(level Level, designator string, v ...interface{}) {

	format := ts() + " " + designator + " :: "
	for _, vv := range v {
		format += fmt.Sprintf("%v ", vv)
	}
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	l.write(level, format)
}

func (l *Logger) Logf(format string, v ...interface{}) {
	l.llogf(LevelInfo, format, "INFO ", v...)
}

func (l *Logger) Log(v ...interface{}) {
	l.llog(LevelInfo, "INFO ", v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.llogf(LevelError, format, "ERROR", v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.llog(LevelError, "ERROR", v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.llogf(LevelDebug, format, "DEBUG", v...)
}

func (l *Logger) Debug(v ...interface{}) {
	l.llog(LevelDebug, "DEBUG", v...)
}

// Fatalf logs and exits the process.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.llogf(LevelFatal, format, "FATAL", v...)
	l.Close()
	os.Exit(1)
}

func (l *Logger) Fatal(v ...interface{}) {
	l.llog(LevelFatal, "FATAL", v...)
	l.Close()
	os.Exit(1)
}
