// Package logging wraps a zap sugared logger behind the Printf surface the
// client consumes.
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rexliu/ksdk/pkg/config"
)

// Logger writes structured records. Printf output is logged at debug level.
type Logger struct {
	*zap.SugaredLogger
	name  string
	level zap.AtomicLevel
}

// New returns a logger writing to stdout at info level.
func New(prefix string) *Logger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return &Logger{
		SugaredLogger: build(prefix, level, zapcore.Lock(os.Stdout)),
		name:          prefix,
		level:         level,
	}
}

// Printf logs a formatted debug message.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.SugaredLogger == nil {
		return
	}
	l.Debugf(format, args...)
}

// Configure applies logging settings from config.
func (l *Logger) Configure(cfg config.LoggingConfig) error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return err
		}
		l.level.SetLevel(lvl)
	}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o700); err != nil {
			return err
		}
		writer, err := newRollingFile(cfg.FilePath, cfg.FileMaxSize)
		if err != nil {
			return err
		}
		l.SugaredLogger = build(l.name, l.level, zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stdout), writer))
	}
	return nil
}

func build(name string, level zap.AtomicLevel, out zapcore.WriteSyncer) *zap.SugaredLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), out, level)
	logger := zap.New(core, zap.AddCaller())
	if name != "" {
		logger = logger.Named(name)
	}
	return logger.Sugar()
}

// rollingFile keeps one backup: when a write would exceed max megabytes the
// current file is renamed to path.1 and a fresh one is opened.
type rollingFile struct {
	mu   sync.Mutex
	path string
	max  int
	file *os.File
}

func newRollingFile(path string, maxMB int) (*rollingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &rollingFile{path: path, max: maxMB, file: f}, nil
}

func (r *rollingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 {
		if info, err := r.file.Stat(); err == nil && info.Size()+int64(len(p)) > int64(r.max)*1024*1024 {
			r.file.Close()
			os.Rename(r.path, r.path+".1")
			newFile, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return 0, err
			}
			r.file = newFile
		}
	}
	return r.file.Write(p)
}

func (r *rollingFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Sync()
}
