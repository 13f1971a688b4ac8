// Package config handles generator and viewer configuration loading.
package config

import (
	"fmt"
	"math"

	"github.com/Faultbox/midgard-caves/internal/logger"
	"github.com/Faultbox/midgard-caves/pkg/cave"
	vmath "github.com/Faultbox/midgard-caves/pkg/math"
	"github.com/Faultbox/midgard-caves/pkg/noise"
)

// Config holds all settings.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Noise      NoiseConfig      `yaml:"noise"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// GenerationConfig holds the skeleton and sampling settings.
type GenerationConfig struct {
	Seed           int64      `yaml:"seed"`
	Start          [3]float32 `yaml:"start"`
	Nodes          int        `yaml:"nodes"`
	Spacing        float32    `yaml:"spacing"`
	Radius         float32    `yaml:"radius"` // max influence radius
	SamplesPerUnit float32    `yaml:"samples_per_unit"`
	SurfaceLevel   float32    `yaml:"surface_level"`
	MaxTurnDegrees float32    `yaml:"max_turn_degrees"` // 0 uses the walk default
	Branches       int        `yaml:"branches"`
	BranchLength   int        `yaml:"branch_length"`
	Workers        int        `yaml:"workers"` // > 1 prefills the sample space in parallel
}

// NoiseConfig holds the density perturbation settings.
type NoiseConfig struct {
	Kind      string  `yaml:"kind"` // simplex or perlin
	Amplitude float32 `yaml:"amplitude"`
	Frequency float32 `yaml:"frequency"`
	Octaves   int     `yaml:"octaves"`
}

// ViewerConfig holds display and camera settings.
type ViewerConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FOV        float32 `yaml:"fov"` // vertical, degrees
	Wireframe  bool    `yaml:"wireframe"`
	ShowStats  bool    `yaml:"show_stats"`

	LightLongitude float32 `yaml:"light_longitude"` // degrees around +Y
	LightLatitude  float32 `yaml:"light_latitude"`  // degrees above the horizon
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	rotation := logger.DefaultFileConfig("")
	return &Config{
		Generation: GenerationConfig{
			Seed:           1337,
			Nodes:          40,
			Spacing:        10,
			Radius:         20,
			SamplesPerUnit: 0.5,
			SurfaceLevel:   0.75,
			Workers:        0,
		},
		Noise: NoiseConfig{
			Kind:      string(noise.KindSimplex),
			Amplitude: 0.25,
			Frequency: 0.05,
			Octaves:   3,
		},
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FOV:        60,

			LightLongitude: 35,
			LightLatitude:  60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     logger.FormatConsole,
			LogFile:    "",
			MaxSizeMB:  rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAgeDays: rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		},
	}
}

// Params converts the generation and noise sections to pipeline input.
func (c *Config) Params() cave.Params {
	g := c.Generation
	return cave.Params{
		PathParams: cave.PathParams{
			Start:              vmath.Vec3{X: g.Start[0], Y: g.Start[1], Z: g.Start[2]},
			NodeCount:          g.Nodes,
			Spacing:            g.Spacing,
			MaxInfluenceRadius: g.Radius,
			Seed:               g.Seed,
			MaxTurn:            g.MaxTurnDegrees * math.Pi / 180,
			Branches:           g.Branches,
			BranchLength:       g.BranchLength,
		},
		SamplesPerUnit: g.SamplesPerUnit,
		SurfaceLevel:   g.SurfaceLevel,
		NoiseAmplitude: c.Noise.Amplitude,
		NoiseFrequency: c.Noise.Frequency,
		NoiseOctaves:   c.Noise.Octaves,
		NoiseKind:      noise.Kind(c.Noise.Kind),
	}
}

// LoggerOptions converts the logging section for logger.InitWith.
func (c *Config) LoggerOptions() logger.Options {
	opts := logger.Options{
		Level:   c.Logging.Level,
		Format:  c.Logging.Format,
		Console: true,
	}
	if c.Logging.LogFile != "" {
		opts.File = logger.FileConfig{
			Path:       c.Logging.LogFile,
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
			MaxAgeDays: c.Logging.MaxAgeDays,
			Compress:   c.Logging.Compress,
		}
	}
	return opts
}

// Validate checks every section. Generation errors wrap the cave sentinels.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if c.Generation.Workers < 0 {
		return fmt.Errorf("generation: negative worker count %d", c.Generation.Workers)
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		return fmt.Errorf("viewer: invalid size %dx%d", c.Viewer.Width, c.Viewer.Height)
	}
	if c.Viewer.FOV <= 0 || c.Viewer.FOV >= 180 {
		return fmt.Errorf("viewer: fov %v not in (0, 180)", c.Viewer.FOV)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := logger.ValidFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
