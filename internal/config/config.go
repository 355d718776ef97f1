// Package config loads module configuration through viper: yaml files in
// the user and system config directories, built-in defaults, and live
// reload on file changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/exaudio/exaudio/internal/format"
)

var (
	instance *Config
	once     sync.Once
)

type Config struct {
	Negotiation NegotiationConfig `mapstructure:"negotiation"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Log         LogConfig         `mapstructure:"log"`
	v           *viper.Viper
	mu          sync.RWMutex
}

// NegotiationConfig carries the caller-side hints for format discovery.
// Rates and Channels default to the built-in candidate lists; overriding
// either disables the rate/channel limit gate for that run.
type NegotiationConfig struct {
	Rates    []int `mapstructure:"rates"`
	Channels []int `mapstructure:"channels"`
}

type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

func Get() *Config {
	once.Do(func() {
		instance = &Config{v: viper.New()}
		if err := instance.load(); err != nil {
			fmt.Fprintf(os.Stderr, "config load failed, using defaults: %v\n", err)
		}
	})
	return instance
}

func (c *Config) load() error {
	c.v.SetConfigName("config")
	c.v.SetConfigType("yaml")
	c.v.AddConfigPath(userConfigDir())
	c.v.AddConfigPath(systemConfigDir())
	c.v.AddConfigPath(".")

	c.setDefaults()

	if err := c.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := c.v.Unmarshal(c); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	c.v.WatchConfig()
	c.v.OnConfigChange(func(e fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.v.Unmarshal(c); err != nil {
			fmt.Fprintf(os.Stderr, "failed to reload config: %v\n", err)
		}
	})
	return nil
}

func (c *Config) setDefaults() {
	c.v.SetDefault("negotiation.rates", format.DefaultRates)
	c.v.SetDefault("negotiation.channels", format.DefaultChannels)

	c.v.SetDefault("cache.enabled", true)
	c.v.SetDefault("cache.path", filepath.Join(dataDir(), "formats.db"))

	c.v.SetDefault("log.level", "info")
	c.v.SetDefault("log.file", false)
	c.v.SetDefault("log.file_path", filepath.Join(dataDir(), "logs", "exaudio.log"))
}

// LimitPolicy derives the candidate gate for the configured lists. The
// built-in MaxRate/MaxChannels limits only engage when the corresponding
// list still equals its default.
func (c *Config) LimitPolicy() format.LimitPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return format.LimitPolicy{
		RatesAreDefault:    slices.Equal(c.Negotiation.Rates, format.DefaultRates),
		ChannelsAreDefault: slices.Equal(c.Negotiation.Channels, format.DefaultChannels),
		MaxRate:            format.MaxRate,
		MaxChannels:        format.MaxChannels,
	}
}

func (c *Config) Rates() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.Negotiation.Rates)
}

func (c *Config) Channels() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.Negotiation.Channels)
}

func (c *Config) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v.Set(key, value)
	if err := c.v.Unmarshal(c); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply config override: %v\n", err)
	}
}

func userConfigDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "Exaudio")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "exaudio")
}

func systemConfigDir() string {
	if programData := os.Getenv("ProgramData"); programData != "" {
		return filepath.Join(programData, "Exaudio")
	}
	return "/etc/exaudio"
}

func dataDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "Exaudio")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "exaudio")
}
