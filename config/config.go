package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr         = ":8000"
	DefaultShmFile      = "/dev/shm/video_frame"
	DefaultFps          = 30
	DefaultWidth        = 640
	DefaultHeight       = 480
	DefaultMaxFrameSize = 8 * 1024 * 1024
)

type SourceKind string

const (
	SourceCommand SourceKind = "command"
	SourceFile    SourceKind = "file"
	SourceStdin   SourceKind = "stdin"
	SourcePattern SourceKind = "pattern"
)

// Config is the complete service configuration.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	Stream StreamConfig `yaml:"stream"`
	Source SourceConfig `yaml:"source"`
	Admin  AdminConfig  `yaml:"admin"`
	Log    LogConfig    `yaml:"log"`
	Banner bool         `yaml:"banner"`
}

type HTTPConfig struct {
	Addr      string `yaml:"addr"`
	ReusePort bool   `yaml:"reuse_port"` // SO_REUSEPORT, for overlapping restarts
	AssetsDir string `yaml:"assets_dir"` // hud.png, p5.min.js, ml5.min.js
	IndexFile string `yaml:"index_file"` // optional replacement for the built-in page
	// WriteTimeout bounds a single stream part write; 0 disables it.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StreamConfig struct {
	HistoryFrames int `yaml:"history_frames"`
}

type SourceConfig struct {
	Kind         SourceKind `yaml:"kind"`
	Command      []string   `yaml:"command"`
	File         string     `yaml:"file"`
	Framed       bool       `yaml:"framed"` // [flag int8][len uint32 LE][jpeg] layout
	Fps          int        `yaml:"fps"`
	Width        int        `yaml:"width"`
	Height       int        `yaml:"height"`
	ChunkSize    int        `yaml:"chunk_size"`
	MaxFrameSize int        `yaml:"max_frame_size"`
}

type AdminConfig struct {
	Addr string `yaml:"addr"` // empty disables the admin API
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         DefaultAddr,
			AssetsDir:    ".",
			WriteTimeout: 10 * time.Second,
		},
		Stream: StreamConfig{HistoryFrames: 30},
		Source: SourceConfig{
			Kind: SourceCommand,
			Command: []string{
				"rpicam-vid", "-t", "0", "-n",
				"--codec", "mjpeg",
				"--width", fmt.Sprint(DefaultWidth),
				"--height", fmt.Sprint(DefaultHeight),
				"--framerate", fmt.Sprint(DefaultFps),
				"-o", "-",
			},
			File:         DefaultShmFile,
			Fps:          DefaultFps,
			Width:        DefaultWidth,
			Height:       DefaultHeight,
			ChunkSize:    16 * 1024,
			MaxFrameSize: DefaultMaxFrameSize,
		},
		Log:    LogConfig{Level: "info"},
		Banner: true,
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

var ErrInvalid = errors.New("invalid value")

func Validate(cfg *Config) error {
	if cfg.HTTP.Addr == "" {
		return fmt.Errorf("http.addr: %w", ErrInvalid)
	}
	if cfg.HTTP.WriteTimeout < 0 {
		return fmt.Errorf("http.write_timeout %v: %w", cfg.HTTP.WriteTimeout, ErrInvalid)
	}
	if cfg.Stream.HistoryFrames < 0 {
		return fmt.Errorf("stream.history_frames %d: %w", cfg.Stream.HistoryFrames, ErrInvalid)
	}
	if cfg.Admin.Addr != "" && cfg.Admin.Addr == cfg.HTTP.Addr {
		return fmt.Errorf("admin.addr must differ from http.addr: %w", ErrInvalid)
	}
	return validateSource(&cfg.Source)
}

func validateSource(s *SourceConfig) error {
	if s.MaxFrameSize <= 0 {
		return fmt.Errorf("source.max_frame_size %d: %w", s.MaxFrameSize, ErrInvalid)
	}
	switch s.Kind {
	case SourceCommand:
		if len(s.Command) == 0 {
			return fmt.Errorf("source.command is empty: %w", ErrInvalid)
		}
	case SourceFile:
		if s.File == "" {
			return fmt.Errorf("source.file is empty: %w", ErrInvalid)
		}
	case SourceStdin:
	case SourcePattern:
		if s.Fps <= 0 {
			return fmt.Errorf("source.fps %d: %w", s.Fps, ErrInvalid)
		}
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("source size %dx%d: %w", s.Width, s.Height, ErrInvalid)
		}
		if s.ChunkSize <= 0 {
			return fmt.Errorf("source.chunk_size %d: %w", s.ChunkSize, ErrInvalid)
		}
	default:
		return fmt.Errorf("source.kind %q: %w", s.Kind, ErrInvalid)
	}
	return nil
}
