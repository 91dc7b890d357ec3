// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/replayclipper/pkg/ports"
	"github.com/user/replayclipper/pkg/session"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Audio device names.
const (
	DeviceBeep = "beep"
	DeviceNull = "null"
)

// Config represents the full configuration for replayclipper.
type Config struct {
	// Engine
	PoolSize int `yaml:"pool_size"`

	// Playback
	Volume          float32 `yaml:"volume"`
	TickRate        int     `yaml:"tick_rate"`
	MaxStepsPerTick int     `yaml:"max_steps_per_tick"`
	Loop            bool    `yaml:"loop"`

	Audio    AudioConfig    `yaml:"audio"`
	Video    VideoConfig    `yaml:"video"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Library  LibraryConfig  `yaml:"library"`

	LogLevel string `yaml:"log_level"`
}

// AudioConfig selects and sizes the audio output.
type AudioConfig struct {
	Device       string `yaml:"device"`
	SampleRate   int    `yaml:"sample_rate"`
	BufferFrames int    `yaml:"buffer_frames"`
}

// VideoConfig sets the converted frame size. Zero keeps the source size.
type VideoConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SnapshotConfig controls the PNG snapshot presenter. An empty Dir disables it.
type SnapshotConfig struct {
	Dir   string `yaml:"dir"`
	Every int    `yaml:"every"`
	Width int    `yaml:"width"`
}

// LibraryConfig lists the extensions scanned as media.
type LibraryConfig struct {
	Extensions []string `yaml:"extensions"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		PoolSize: 16,

		Volume:          0.15,
		TickRate:        60,
		MaxStepsPerTick: 32,

		Audio: AudioConfig{
			Device:       DeviceBeep,
			SampleRate:   48000,
			BufferFrames: 512,
		},
		Snapshot: SnapshotConfig{
			Every: 30,
			Width: 640,
		},
		Library: LibraryConfig{
			Extensions: []string{".mp4", ".mkv", ".webm", ".mov"},
		},

		LogLevel: "info",
	}
}

// LoadFromFile loads configuration from a YAML file over Defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var problems []string
	if c.PoolSize < 2 {
		problems = append(problems, fmt.Sprintf("pool_size must be at least 2, got %d", c.PoolSize))
	}
	if c.Volume < 0 {
		problems = append(problems, fmt.Sprintf("volume must not be negative, got %g", c.Volume))
	}
	if c.TickRate <= 0 {
		problems = append(problems, fmt.Sprintf("tick_rate must be positive, got %d", c.TickRate))
	}
	if c.MaxStepsPerTick <= 0 {
		problems = append(problems, fmt.Sprintf("max_steps_per_tick must be positive, got %d", c.MaxStepsPerTick))
	}
	if c.Audio.Device != DeviceBeep && c.Audio.Device != DeviceNull {
		problems = append(problems, fmt.Sprintf("audio.device must be %q or %q, got %q", DeviceBeep, DeviceNull, c.Audio.Device))
	}
	if c.Audio.SampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.BufferFrames <= 0 {
		problems = append(problems, fmt.Sprintf("audio.buffer_frames must be positive, got %d", c.Audio.BufferFrames))
	}
	if c.Video.Width < 0 || c.Video.Height < 0 {
		problems = append(problems, fmt.Sprintf("video size must not be negative, got %dx%d", c.Video.Width, c.Video.Height))
	}
	if c.Snapshot.Dir != "" && c.Snapshot.Every <= 0 {
		problems = append(problems, fmt.Sprintf("snapshot.every must be positive, got %d", c.Snapshot.Every))
	}

	if len(problems) == 0 {
		return nil
	}
	err := ErrInvalidConfig
	for _, p := range problems {
		err = fmt.Errorf("%w; %s", err, p)
	}
	return err
}

// Level returns the configured log level.
func (c Config) Level() ports.LogLevel {
	return ports.ParseLogLevel(c.LogLevel)
}

// ToSessionConfig converts Config to session.Config for path.
func (c Config) ToSessionConfig(path string, startAt, maxDuration time.Duration) session.Config {
	return session.Config{
		Path:        path,
		StartAt:     startAt,
		MaxDuration: maxDuration,
		Loop:        c.Loop,

		PoolSize: c.PoolSize,

		Width:           c.Video.Width,
		Height:          c.Video.Height,
		Volume:          c.Volume,
		MaxStepsPerTick: c.MaxStepsPerTick,
	}
}
