// Package log defines the minimal logging interface used throughout the
// debugger core. Components take a Logger rather than writing to stderr
// directly so that a host embedding the debugger can route diagnostics
// wherever it likes.
package log

import (
	"fmt"
	"io"
	"time"
)

type Logger interface {
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	Info(args ...interface{})
	Debug(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// Discard is a Logger that drops everything. Core components fall back to
// it when constructed without an explicit Logger.
var Discard Logger = discard{}

type discard struct{}

func (discard) Infof(string, ...interface{})  {}
func (discard) Debugf(string, ...interface{}) {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}
func (discard) Info(...interface{})           {}
func (discard) Debug(...interface{})          {}
func (discard) Warn(...interface{})           {}
func (discard) Error(...interface{})          {}

// WriterLogger writes timestamped, level-tagged lines to an io.Writer.
type WriterLogger struct {
	Writer io.Writer
}

var _ Logger = &WriterLogger{}

func NewWriterLogger(w io.Writer) *WriterLogger {
	return &WriterLogger{Writer: w}
}

func (l *WriterLogger) Infof(format string, args ...interface{}) {
	l.writeLog("INFO", fmt.Sprintf(format, args...))
}

func (l *WriterLogger) Debugf(format string, args ...interface{}) {
	l.writeLog("DEBUG", fmt.Sprintf(format, args...))
}

func (l *WriterLogger) Warnf(format string, args ...interface{}) {
	l.writeLog("WARN", fmt.Sprintf(format, args...))
}

func (l *WriterLogger) Errorf(format string, args ...interface{}) {
	l.writeLog("ERROR", fmt.Sprintf(format, args...))
}

func (l *WriterLogger) Info(args ...interface{}) {
	l.writeLog("INFO", fmt.Sprint(args...))
}

func (l *WriterLogger) Debug(args ...interface{}) {
	l.writeLog("DEBUG", fmt.Sprint(args...))
}

func (l *WriterLogger) Warn(args ...interface{}) {
	l.writeLog("WARN", fmt.Sprint(args...))
}

func (l *WriterLogger) Error(args ...interface{}) {
	l.writeLog("ERROR", fmt.Sprint(args...))
}

func (l *WriterLogger) writeLog(level string, msg string) {
	fmt.Fprintf(l.Writer, "%s %s %s\n", time.Now().Format("2006-01-02 15:04:05"), level, msg)
}

// Or, for users that just want to log via fmt without timestamps (e.g. in
// tests), Func adapts a simple print function to Logger.
type Func func(level string, msg string)

func (f Func) Infof(format string, args ...interface{})  { f("INFO", fmt.Sprintf(format, args...)) }
func (f Func) Debugf(format string, args ...interface{}) { f("DEBUG", fmt.Sprintf(format, args...)) }
func (f Func) Warnf(format string, args ...interface{})  { f("WARN", fmt.Sprintf(format, args...)) }
func (f Func) Errorf(format string, args ...interface{}) { f("ERROR", fmt.Sprintf(format, args...)) }
func (f Func) Info(args ...interface{})                  { f("INFO", fmt.Sprint(args...)) }
func (f Func) Debug(args ...interface{})                 { f("DEBUG", fmt.Sprint(args...)) }
func (f Func) Warn(args ...interface{})                  { f("WARN", fmt.Sprint(args...)) }
func (f Func) Error(args ...interface{})                 { f("ERROR", fmt.Sprint(args...)) }
