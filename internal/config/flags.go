package config

import (
	"flag"
	"fmt"
	"strconv"
)

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging and stats overlay")
	flagSeed       = flag.Int64("seed", 0, "Generation seed (0 keeps the configured seed)")
	flagNodes      = flag.Int("nodes", 0, "Number of nodes on the main path")
	flagWorkers    = flag.Int("workers", 0, "Sample space prefill workers")
	flagSurface    = flag.String("surface", "", "Surface level in [-1, 1]")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagSaveConfig = flag.Bool("save-config", false, "Write the effective config to the user config directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveRequested reports whether -save-config was given.
func SaveRequested() bool {
	return *flagSaveConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) error {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Viewer.ShowStats = true
	}
	if *flagSeed != 0 {
		cfg.Generation.Seed = *flagSeed
	}
	if *flagNodes > 0 {
		cfg.Generation.Nodes = *flagNodes
	}
	if *flagWorkers > 0 {
		cfg.Generation.Workers = *flagWorkers
	}
	if *flagSurface != "" {
		level, err := strconv.ParseFloat(*flagSurface, 32)
		if err != nil {
			return fmt.Errorf("-surface: %w", err)
		}
		cfg.Generation.SurfaceLevel = float32(level)
	}
	if *flagWindowed {
		cfg.Viewer.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Viewer.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
	return nil
}
