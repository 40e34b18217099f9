// Package logger wraps zap with key/value helpers shared by every component
package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Logger is a sugared zap logger. Patient identifiers are hashed when
// HashPatients is set so production logs carry no names.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
	HashPatients  bool
}

// New builds a logger for the given mode: "prod"/"production" writes JSON at
// info level, anything else writes colored console output at debug level.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	hash := false
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
		hash = true
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return &Logger{SugaredLogger: zapLogger.Sugar(), HashPatients: hash}, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Sync flushes buffered entries
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// Debug logs a message at debug level with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.sanitize(keysAndValues)...)
}

// Info logs a message at info level with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.sanitize(keysAndValues)...)
}

// Warn logs a message at warn level with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.sanitize(keysAndValues)...)
}

// Error logs a message at error level with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.sanitize(keysAndValues)...)
}

// Fatal logs a message with key-value pairs, then exits
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.sanitize(keysAndValues)...)
}

// With returns a child logger carrying the given fields
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.sanitize(keysAndValues)...),
		HashPatients:  l.HashPatients,
	}
}

func (l *Logger) sanitize(kv []interface{}) []interface{} {
	if !l.HashPatients || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := strings.ToLower(fmt.Sprint(kv[i]))
		if key == "patient" || key == "name" {
			out = append(out, kv[i], HashValue(kv[i+1]))
			continue
		}
		out = append(out, kv[i], kv[i+1])
	}
	return out
}

// HashValue returns a short stable digest of v
func HashValue(v interface{}) string {
	raw := strings.TrimSpace(fmt.Sprint(v))
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}
