package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log *zap.Logger
)

func init() {
	// 默认 Nop Logger，测试和未 Init 的场景下不会 panic
	Log = zap.NewNop()
}

// Init initializes the global logger
func Init(env string) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var err error
	Log, err = config.Build(zap.AddCallerSkip(1)) // 跳过 wrapper 这一层调用栈
	if err != nil {
		panic(err)
	}

	zap.ReplaceGlobals(Log)
}

// Sync flushes any buffered log entries
func Sync() {
	_ = Log.Sync()
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// AsynqLogger 将 asynq 的日志接口桥接到 zap
type AsynqLogger struct{}

func NewAsynqLogger() *AsynqLogger {
	return &AsynqLogger{}
}

func (l *AsynqLogger) Debug(args ...interface{}) { Log.Debug("[Asynq] " + fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { Log.Info("[Asynq] " + fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { Log.Warn("[Asynq] " + fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...interface{}) { Log.Error("[Asynq] " + fmt.Sprint(args...)) }
func (l *AsynqLogger) Fatal(args ...interface{}) { Log.Fatal("[Asynq] " + fmt.Sprint(args...)) }
