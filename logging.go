package dithered

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/gekko3d/dithered/rt/core"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewWriterLogger(prefix, debug, os.Stdout, os.Stderr)
}

// NewWriterLogger writes debug and info lines to out, warnings and errors to errOut.
func NewWriterLogger(prefix string, debug bool, out, errOut io.Writer) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(out, "", flags),
		err:    log.New(errOut, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level string, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

// cameraLogger tags every line with the camera being rendered.
type cameraLogger struct {
	Logger
	tag string
}

func withCamera(l Logger, camera *core.Camera) Logger {
	return &cameraLogger{
		Logger: l,
		tag:    fmt.Sprintf("camera %s (%s)", camera.ID.Short(), camera.Type),
	}
}

func (l *cameraLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.Logger.Debugf("%s: %s", l.tag, fmt.Sprintf(format, args...))
}

func (l *cameraLogger) Infof(format string, args ...any) {
	l.Logger.Infof("%s: %s", l.tag, fmt.Sprintf(format, args...))
}

func (l *cameraLogger) Warnf(format string, args ...any) {
	l.Logger.Warnf("%s: %s", l.tag, fmt.Sprintf(format, args...))
}

func (l *cameraLogger) Errorf(format string, args ...any) {
	l.Logger.Errorf("%s: %s", l.tag, fmt.Sprintf(format, args...))
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}
