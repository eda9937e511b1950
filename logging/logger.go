package logging

import (
	"context"

	goutils "go.viam.com/utils"
)

// Logger is handed to goutils.ContextualMain, which needs Info, Warn and Fatal.
var _ goutils.ILogger = Logger(nil)

// Logger is a leveled, structured logger. The `C` variants take the caller's context: a context
// with debug mode enabled logs them whatever the logger's level.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	// Fatal logs whatever the level and exits the process.
	Fatal(args ...interface{})

	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	CDebugw(ctx context.Context, msg string, keysAndValues ...interface{})
	CInfow(ctx context.Context, msg string, keysAndValues ...interface{})
	CWarnw(ctx context.Context, msg string, keysAndValues ...interface{})
	CErrorw(ctx context.Context, msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	// Sublogger returns a logger named "<parent>.<subname>" writing to the same appenders.
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	Sync() error
}
