package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Download  DownloadConfig  `mapstructure:"download" yaml:"download"`
	Transcode TranscodeConfig `mapstructure:"transcode" yaml:"transcode"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	OutDir         string `mapstructure:"out_dir" yaml:"out_dir"`
	MaxConcurrent  int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	RetentionHours int    `mapstructure:"retention_hours" yaml:"retention_hours"`
}

type TranscodeConfig struct {
	// FFmpegPath pins the transcoder binary. Empty means probe common
	// locations and PATH at startup.
	FFmpegPath string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
}

type HistoryConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

func Load(path string) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.max_concurrent", 3)
	v.SetDefault("download.retention_hours", 24)
	v.SetDefault("transcode.ffmpeg_path", "")
	v.SetDefault("history.sqlite_path", "./data/vidfetch.db")
	v.SetDefault("log.path", "vidfetch.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)

	// The config file is optional; defaults plus env vars make a working setup.
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("VIDFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}
	if c.Download.MaxConcurrent <= 0 {
		c.Download.MaxConcurrent = 3
	}
	if c.Download.RetentionHours <= 0 {
		c.Download.RetentionHours = 24
	}
	if c.Port == "" {
		c.Port = "8080"
	}
}
