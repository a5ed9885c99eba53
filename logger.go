package msl

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// LogCategory tags the subsystem generating a message, following the
// teacher's category taxonomy (phroun-pawscript logger.go) renamed to
// MSL's own subsystems.
type LogCategory string

const (
	CatParse      LogCategory = "parse"
	CatLink       LogCategory = "link"
	CatEval       LogCategory = "eval"
	CatWait       LogCategory = "wait"
	CatConductor  LogCategory = "conductor"
	CatPool       LogCategory = "pool"
	CatStdlib     LogCategory = "stdlib"
	CatState      LogCategory = "state"
	CatConsole    LogCategory = "console"
)

// Logger wraps github.com/ternarybob/arbor the way ternarybob-iter's
// internal/logger wraps it: a package-level constructor configures a
// console and/or memory writer once at startup, and every call site goes
// through a small typed surface instead of touching arbor.ILogger
// directly. The teacher's enable/category filtering (logger.go
// SetEnabled/EnableCategory) is kept as a thin gate in front of arbor so
// hot categories can be silenced without re-configuring writers.
type Logger struct {
	backend           arbor.ILogger
	enabled           bool
	enabledCategories map[LogCategory]bool
}

// NewLogger builds a console-backed Logger. Pass enabled=false to mute
// Debug calls outside explicitly enabled categories; Warn and Error calls
// are always shown.
func NewLogger(enabled bool) *Logger {
	backend := arbor.NewLogger().WithConsoleWriter(arbor.WriterConfiguration{
		Type:  models.LogWriterTypeConsole,
		Level: models.DebugLevel,
	})
	return &Logger{backend: backend, enabled: enabled, enabledCategories: make(map[LogCategory]bool)}
}

func (l *Logger) EnableCategory(cat LogCategory)  { l.enabledCategories[cat] = true }
func (l *Logger) DisableCategory(cat LogCategory) { delete(l.enabledCategories, cat) }
func (l *Logger) SetEnabled(enabled bool)         { l.enabled = enabled }

func (l *Logger) categoryAllowed(cat LogCategory) bool {
	if l.enabled {
		return true
	}
	return l.enabledCategories[cat]
}

func (l *Logger) Debug(cat LogCategory, format string, args ...interface{}) {
	if l == nil || !l.categoryAllowed(cat) {
		return
	}
	l.backend.Debug().Str("category", string(cat)).Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(cat LogCategory, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.backend.Warn().Str("category", string(cat)).Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) Error(cat LogCategory, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.backend.Error().Str("category", string(cat)).Msg(fmt.Sprintf(format, args...))
}
