// Package db persists negotiation results in a local SQLite database.
// Exclusive-mode probing takes seconds on some devices, so confirmed
// format tables are cached per endpoint and reused until invalidated.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/exaudio/exaudio/internal/logger"
)

var (
	instance *Database
	once     sync.Once
)

type Database struct {
	db *gorm.DB
	mu sync.RWMutex
}

type Config struct {
	Path     string
	LogLevel string
}

func DefaultConfig() Config {
	return Config{
		Path:     filepath.Join(getDataDir(), "formats.db"),
		LogLevel: "warn",
	}
}

func Get() *Database {
	once.Do(func() {
		instance = &Database{}
		if err := instance.Initialize(DefaultConfig()); err != nil {
			logger.Fatal("Failed to initialize format cache", logger.Error(err))
		}
	})
	return instance
}

// Initialize opens the singleton with the given config. When called
// before the first Get no connection to the default path is ever opened.
func Initialize(cfg Config) error {
	var err error
	fresh := false
	once.Do(func() {
		instance = &Database{}
		err = instance.Initialize(cfg)
		fresh = true
	})
	if fresh {
		return err
	}
	return instance.Initialize(cfg)
}

func (d *Database) Initialize(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		if sqlDB, err := d.db.DB(); err == nil {
			sqlDB.Close()
		}
		d.db = nil
	}

	dbDir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case "silent":
		logLevel = gormlogger.Silent
	case "error":
		logLevel = gormlogger.Error
	case "info":
		logLevel = gormlogger.Info
	default:
		logLevel = gormlogger.Warn
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// WAL plus a busy timeout keeps concurrent CLI invocations from
	// tripping over each other
	if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d.db = db

	if err := d.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Format cache initialized", logger.String("path", cfg.Path))
	return nil
}

func (d *Database) migrate() error {
	if d.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := d.db.AutoMigrate(&CachedFormat{}); err != nil {
		return fmt.Errorf("failed to migrate %T: %w", &CachedFormat{}, err)
	}

	var count int64
	d.db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?",
		"idx_cached_formats_device").Scan(&count)
	if count == 0 {
		err := d.db.Exec("CREATE INDEX idx_cached_formats_device ON cached_formats (device_key, direction)").Error
		if err != nil {
			logger.Warn("Failed to create index",
				logger.String("index", "idx_cached_formats_device"),
				logger.Error(err))
		}
	}
	return nil
}

func (d *Database) DB() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		sqlDB, err := d.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func getDataDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		appData = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(appData, "Exaudio")
}
