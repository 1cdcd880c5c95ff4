// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Race RaceConfig `toml:"race"`
	Bot  BotConfig  `toml:"bot"`
	Log  LogConfig  `toml:"log"`
}

// RaceConfig maps race and storage settings.
type RaceConfig struct {
	DBPath      *string `toml:"db-path"`
	CountdownMs *int64  `toml:"countdown-ms"`
	MaxRetries  *int    `toml:"max-retries"`
}

// BotConfig maps synthetic opponent settings.
type BotConfig struct {
	DefaultTier *string `toml:"default-tier"`
	Seed        *int64  `toml:"seed"`
	Speedup     *int64  `toml:"speedup"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
