// Package logger wraps zerolog behind a small field-based API shared by
// the whole module. Output goes to the console and, when configured, to a
// size-rotated log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	instance *Logger
	once     sync.Once
)

type Logger struct {
	logger     zerolog.Logger
	mu         sync.RWMutex
	level      zerolog.Level
	fileWriter *lumberjack.Logger
}

type Config struct {
	Level      string `json:"level"`
	Console    bool   `json:"console"`
	File       bool   `json:"file"`
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // megabytes
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Caller     bool   `json:"caller"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(dataDir(), "logs", "exaudio.log"),
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     30,
		Caller:     false,
	}
}

func Get() *Logger {
	once.Do(func() {
		instance = &Logger{}
		instance.initialize(DefaultConfig())
	})
	return instance
}

func Initialize(cfg Config) {
	Get().initialize(cfg)
}

func (l *Logger) initialize(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	l.level = level

	var outputs []io.Writer
	if cfg.Console {
		outputs = append(outputs, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05.000",
		})
	}
	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		}
		l.fileWriter = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		outputs = append(outputs, l.fileWriter)
	}

	l.logger = zerolog.New(zerolog.MultiLevelWriter(outputs...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	if cfg.Caller {
		l.logger = l.logger.With().Caller().Logger()
	}
	log.Logger = l.logger
}

func (l *Logger) log(event *zerolog.Event, msg string, fields []Field) {
	for _, field := range fields {
		event = field.apply(event)
	}
	event.Msg(msg)
}

func (l *Logger) Trace(msg string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.log(l.logger.Trace(), msg, fields)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.log(l.logger.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.log(l.logger.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.log(l.logger.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.log(l.logger.Error(), msg, fields)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.log(l.logger.Fatal(), msg, fields)
}

func (l *Logger) SetLevel(level string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	l.level = lvl
	l.logger = l.logger.Level(lvl)
	return nil
}

func (l *Logger) GetLevel() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level.String()
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileWriter != nil {
		return l.fileWriter.Close()
	}
	return nil
}

type Field struct {
	Key   string
	Value interface{}
}

func (f Field) apply(event *zerolog.Event) *zerolog.Event {
	return event.Interface(f.Key, f.Value)
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Package-level convenience functions

func Trace(msg string, fields ...Field) {
	Get().Trace(msg, fields...)
}

func Debug(msg string, fields ...Field) {
	Get().Debug(msg, fields...)
}

func Info(msg string, fields ...Field) {
	Get().Info(msg, fields...)
}

func Warn(msg string, fields ...Field) {
	Get().Warn(msg, fields...)
}

func ErrorLog(msg string, fields ...Field) {
	Get().Error(msg, fields...)
}

func Fatal(msg string, fields ...Field) {
	Get().Fatal(msg, fields...)
}

func dataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "Exaudio")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "exaudio")
}
