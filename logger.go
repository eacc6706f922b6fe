package quartz

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// loggerPtr stores the package logger. quartz is single threaded but the
// logger may be swapped from a host goroutine while a frame runs.
var loggerPtr atomic.Pointer[zap.Logger]

func init() {
	loggerPtr.Store(zap.NewNop())
}

// SetLogger configures the logger used by quartz. By default nothing is
// logged. Pass nil to restore the silent default.
//
// Levels used:
//   - Debug: buffer and component pool allocation sizes
//   - Info: memory manager creation, scene build summaries
//   - Warn: resources skipped during a scene build, deep or wide trees
//
// Example:
//
//	logger, _ := zap.NewDevelopment()
//	quartz.SetLogger(logger)
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger.
func Logger() *zap.Logger {
	return loggerPtr.Load()
}
