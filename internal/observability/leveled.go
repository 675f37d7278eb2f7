package observability

import (
	"go.uber.org/zap"
)

// LeveledLogger adapts zap to the key/value leveled logging interface used by
// hashicorp/go-retryablehttp.
type LeveledLogger struct {
	sugar *zap.SugaredLogger
}

// NewLeveledLogger wraps logger. A nil logger discards everything.
func NewLeveledLogger(logger *zap.Logger) *LeveledLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Skip the adapter frame so caller annotations point at the library.
	return &LeveledLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Debug is where retryablehttp reports every attempt.
func (l *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}
