package raftconsensus

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/hashicorp/go-hclog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Messages raft emits on every boltdb read; they carry no information.
var suppressedMessages = []string{"tx closed"}

// ZapRaftLogger lets a zap.Logger serve as the hclog.Logger raft expects.
type ZapRaftLogger struct {
	logger *zap.Logger
	name   string
	args   []interface{}
	// level is shared by every logger derived through With/Named.
	level zap.AtomicLevel
}

func NewZapRaftLogger(zapLogger *zap.Logger) *ZapRaftLogger {
	initialLevel := zap.InfoLevel
	if zapLogger.Core().Enabled(zap.DebugLevel) {
		initialLevel = zap.DebugLevel
	}
	return &ZapRaftLogger{
		logger: zapLogger,
		level:  zap.NewAtomicLevelAt(initialLevel),
	}
}

func toZapLevel(level hclog.Level) (zapcore.Level, bool) {
	switch level {
	case hclog.Trace, hclog.Debug:
		return zap.DebugLevel, true
	case hclog.Info, hclog.NoLevel:
		return zap.InfoLevel, true
	case hclog.Warn:
		return zap.WarnLevel, true
	case hclog.Error:
		return zap.ErrorLevel, true
	default:
		return zap.InfoLevel, false
	}
}

func (z *ZapRaftLogger) Log(level hclog.Level, msg string, args ...interface{}) {
	if zl, ok := toZapLevel(level); ok {
		z.log(zl, msg, args...)
	}
}

func (z *ZapRaftLogger) Trace(msg string, args ...interface{}) { z.log(zap.DebugLevel, msg, args...) }
func (z *ZapRaftLogger) Debug(msg string, args ...interface{}) { z.log(zap.DebugLevel, msg, args...) }
func (z *ZapRaftLogger) Info(msg string, args ...interface{})  { z.log(zap.InfoLevel, msg, args...) }
func (z *ZapRaftLogger) Warn(msg string, args ...interface{})  { z.log(zap.WarnLevel, msg, args...) }
func (z *ZapRaftLogger) Error(msg string, args ...interface{}) { z.log(zap.ErrorLevel, msg, args...) }

func (z *ZapRaftLogger) log(level zapcore.Level, msg string, args ...interface{}) {
	for _, s := range suppressedMessages {
		if strings.Contains(msg, s) {
			return
		}
	}
	if !z.level.Enabled(level) {
		return
	}
	if ce := z.logger.Check(level, msg); ce != nil {
		ce.Write(argsToZapFields(args...)...)
	}
}

func (z *ZapRaftLogger) IsTrace() bool { return z.level.Enabled(zap.DebugLevel) }
func (z *ZapRaftLogger) IsDebug() bool { return z.level.Enabled(zap.DebugLevel) }
func (z *ZapRaftLogger) IsInfo() bool  { return z.level.Enabled(zap.InfoLevel) }
func (z *ZapRaftLogger) IsWarn() bool  { return z.level.Enabled(zap.WarnLevel) }
func (z *ZapRaftLogger) IsError() bool { return z.level.Enabled(zap.ErrorLevel) }

func (z *ZapRaftLogger) With(args ...interface{}) hclog.Logger {
	implied := make([]interface{}, 0, len(z.args)+len(args))
	implied = append(implied, z.args...)
	implied = append(implied, args...)
	return &ZapRaftLogger{
		logger: z.logger.With(argsToZapFields(args...)...),
		name:   z.name,
		args:   implied,
		level:  z.level,
	}
}

func (z *ZapRaftLogger) Named(name string) hclog.Logger {
	newName := name
	if z.name != "" {
		newName = z.name + "." + name
	}
	return &ZapRaftLogger{logger: z.logger.Named(name), name: newName, args: z.args, level: z.level}
}

func (z *ZapRaftLogger) ResetNamed(name string) hclog.Logger {
	return &ZapRaftLogger{logger: z.logger.Named(name), name: name, args: z.args, level: z.level}
}

func (z *ZapRaftLogger) GetLevel() hclog.Level {
	switch z.level.Level() {
	case zapcore.DebugLevel:
		return hclog.Debug
	case zapcore.InfoLevel:
		return hclog.Info
	case zapcore.WarnLevel:
		return hclog.Warn
	case zapcore.ErrorLevel:
		return hclog.Error
	default:
		return hclog.NoLevel
	}
}

func (z *ZapRaftLogger) SetLevel(level hclog.Level) {
	zl, ok := toZapLevel(level)
	if !ok {
		// hclog.Off
		zl = zap.FatalLevel
	}
	z.level.SetLevel(zl)
}

func (z *ZapRaftLogger) ImpliedArgs() []interface{} { return z.args }

func (z *ZapRaftLogger) Name() string { return z.name }

func (z *ZapRaftLogger) StandardLogger(_ *hclog.StandardLoggerOptions) *log.Logger {
	return zap.NewStdLog(z.logger)
}

func (z *ZapRaftLogger) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return z.StandardLogger(opts).Writer()
}

func argsToZapFields(args ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("invalid_key_%d", i)
		}
		if i+1 >= len(args) {
			fields = append(fields, zap.Any(key, "(no value)"))
			break
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
