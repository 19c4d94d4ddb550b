// Package utils предоставляет логгер процесса, очистку аргументов LLM
// и graceful shutdown.
//
// Логгер пишет в stderr: stdout занят протоколом MCP.
package utils

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logMutex sync.RWMutex
	sugar    = zap.NewNop().Sugar()
)

// InitLogger создает zap логгер процесса.
//
// debug=true — консольный development формат с уровнем DEBUG,
// иначе JSON production формат с уровнем INFO.
func InitLogger(debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "time"
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Encoding = "json"
	}
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetLogger(logger.Sugar())
	return nil
}

// SetLogger подменяет логгер процесса (тесты, встраивание).
func SetLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	sugar = l
}

// Logger возвращает логгер для передачи в компоненты через конструктор.
//
// В отличие от пакетных функций не пропускает лишний кадр стека.
func Logger() *zap.SugaredLogger {
	return current().WithOptions(zap.AddCallerSkip(-1))
}

func current() *zap.SugaredLogger {
	logMutex.RLock()
	defer logMutex.RUnlock()
	return sugar
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	current().Infow(msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	current().Errorw(msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	current().Debugw(msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	current().Warnw(msg, keyvals...)
}

// Close сбрасывает буферы логгера.
//
// Вызывается через defer в main(). Ошибку Sync для stderr игнорируем:
// на части платформ она возвращается всегда.
func Close() {
	_ = current().Sync()
}
