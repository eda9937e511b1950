package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	goutils "go.viam.com/utils"
)

// debugKeyField names the field that tags statements written only because of debug mode.
const debugKeyField = "debug_log_key"

type impl struct {
	name      string
	level     zap.AtomicLevel
	inUTC     bool
	appenders []Appender
}

func newImpl(name string, level Level, inUTC bool, appenders ...Appender) *impl {
	return &impl{
		name:      name,
		level:     zap.NewAtomicLevelAt(level.AsZap()),
		inUTC:     inUTC,
		appenders: appenders,
	}
}

func (l *impl) SetLevel(level Level) {
	l.level.SetLevel(level.AsZap())
}

func (l *impl) GetLevel() Level {
	return levelFromZap(l.level.Level())
}

// Sublogger levels start at the parent's and change independently afterwards.
func (l *impl) Sublogger(subname string) Logger {
	name := subname
	if l.name != "" {
		name = l.name + "." + subname
	}
	appenders := append([]Appender(nil), l.appenders...)
	return newImpl(name, l.GetLevel(), l.inUTC, appenders...)
}

func (l *impl) AddAppender(appender Appender) {
	l.appenders = append(l.appenders, appender)
}

func (l *impl) Sync() error {
	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (l *impl) Debug(args ...interface{}) {
	l.emit(context.Background(), zapcore.DebugLevel, fmt.Sprint(args...), nil)
}

func (l *impl) Info(args ...interface{}) {
	l.emit(context.Background(), zapcore.InfoLevel, fmt.Sprint(args...), nil)
}

func (l *impl) Warn(args ...interface{}) {
	l.emit(context.Background(), zapcore.WarnLevel, fmt.Sprint(args...), nil)
}

func (l *impl) Fatal(args ...interface{}) {
	l.emit(context.Background(), zapcore.FatalLevel, fmt.Sprint(args...), nil)
	goutils.UncheckedError(l.Sync())
	os.Exit(1)
}

func (l *impl) Debugw(msg string, keysAndValues ...interface{}) {
	l.emit(context.Background(), zapcore.DebugLevel, msg, keysAndValues)
}

func (l *impl) Infow(msg string, keysAndValues ...interface{}) {
	l.emit(context.Background(), zapcore.InfoLevel, msg, keysAndValues)
}

func (l *impl) Warnw(msg string, keysAndValues ...interface{}) {
	l.emit(context.Background(), zapcore.WarnLevel, msg, keysAndValues)
}

func (l *impl) Errorw(msg string, keysAndValues ...interface{}) {
	l.emit(context.Background(), zapcore.ErrorLevel, msg, keysAndValues)
}

func (l *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.emit(ctx, zapcore.DebugLevel, msg, keysAndValues)
}

func (l *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.emit(ctx, zapcore.InfoLevel, msg, keysAndValues)
}

func (l *impl) CWarnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.emit(ctx, zapcore.WarnLevel, msg, keysAndValues)
}

func (l *impl) CErrorw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	l.emit(ctx, zapcore.ErrorLevel, msg, keysAndValues)
}

// emit must be called directly by the exported logging methods; the caller it records is two
// frames up.
func (l *impl) emit(ctx context.Context, level zapcore.Level, msg string, keysAndValues []interface{}) {
	fields := keyValueFields(keysAndValues)
	if !l.level.Enabled(level) {
		key := debugKey(ctx)
		if key == "" {
			return
		}
		fields = append(fields, zap.String(debugKeyField, key))
	}

	entry := zapcore.Entry{
		Level:      level,
		Time:       time.Now(),
		LoggerName: l.name,
		Message:    msg,
	}
	if l.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if pc, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = zapcore.NewEntryCaller(pc, file, line, true)
	}

	for _, appender := range l.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// keyValueFields pairs up alternating keys and values. A trailing key without a value is kept
// with the value "<missing>".
func keyValueFields(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, len(keysAndValues)/2+2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.String(key, "<missing>"))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
