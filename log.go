package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

const (
	LevelError = iota
	LevelWarning
	LevelInfo
	LevelDebug
)

// Logger writes levelled, optionally coloured messages. A nil *Logger
// discards everything, so library code never has to check.
type Logger struct {
	Level  int
	mu     sync.Mutex
	writer io.Writer
}

func NewLogger(w io.Writer, level int) *Logger {
	return &Logger{Level: level, writer: w}
}

func (l *Logger) helper(level int, format string, a []interface{}, msgColor *color.Color) {
	if l == nil || l.writer == nil || l.Level < level {
		return
	}
	logMsg := fmt.Sprintf(format, a...)
	if msgColor != nil {
		logMsg = msgColor.Sprint(logMsg)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.writer, logMsg)
}

func (l *Logger) Debug(format string, a ...interface{}) {
	l.helper(LevelDebug, format, a, color.New(color.Faint))
}

func (l *Logger) Info(format string, a ...interface{}) {
	l.helper(LevelInfo, format, a, nil)
}

func (l *Logger) Warning(format string, a ...interface{}) {
	l.helper(LevelWarning, "warning: "+format, a, color.New(color.FgHiYellow))
}

// Error is printed regardless of level.
func (l *Logger) Error(format string, a ...interface{}) {
	l.helper(LevelError, "error: "+format, a, color.New(color.FgHiRed, color.Bold))
}

// Success is printed unless the logger is at error level (--quiet).
func (l *Logger) Success(format string, a ...interface{}) {
	l.helper(LevelWarning, format, a, color.New(color.FgHiGreen, color.Bold))
}
