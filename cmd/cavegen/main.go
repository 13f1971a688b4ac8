// cavegen generates a cave without a window and prints its statistics.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-caves/internal/config"
	"github.com/Faultbox/midgard-caves/internal/logger"
	"github.com/Faultbox/midgard-caves/internal/profile"
	"github.com/Faultbox/midgard-caves/pkg/cave"
)

func main() {
	os.Exit(run(os.Stdout, os.Stderr))
}

// run is main without os.Exit, so deferred logger flushes and signal
// teardown happen on every exit path.
func run(stdout, stderr io.Writer) int {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return 1
	}

	if err := logger.InitWith(cfg.LoggerOptions()); err != nil {
		fmt.Fprintf(stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if config.SaveRequested() {
		if err := cfg.Save(); err != nil {
			logger.Error("failed to save config", zap.Error(err))
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		logger.Info("config saved", zap.String("path", config.UserConfigPath()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	prof := profile.NewRecorder(logger.Log)
	res, err := cave.Generate(ctx, cfg.Params(), cave.Options{
		Profiler: prof,
		Workers:  cfg.Generation.Workers,
		Logger:   logger.Log,
	})
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	printReport(stdout, cfg, res, prof.Timings())
	return 0
}

func printReport(w io.Writer, cfg *config.Config, res *cave.Result, timings []profile.Timing) {
	s := res.Stats
	lo, hi := res.Mesh.Bounds()

	fmt.Fprintf(w, "Seed:          %d\n", cfg.Generation.Seed)
	fmt.Fprintf(w, "Noise:         %s (amplitude %.3g, frequency %.3g, octaves %d)\n",
		cfg.Noise.Kind, cfg.Noise.Amplitude, cfg.Noise.Frequency, cfg.Noise.Octaves)
	fmt.Fprintf(w, "Path nodes:    %d\n", s.Nodes)
	fmt.Fprintf(w, "Sample grid:   %d x %d x %d (%d evaluations)\n", s.Grid[0], s.Grid[1], s.Grid[2], s.Evaluations)
	fmt.Fprintf(w, "Cells:         %d (%d active)\n", s.Mesh.Cells, s.Mesh.ActiveCells)
	fmt.Fprintf(w, "Triangles:     %d\n", s.Mesh.Triangles)
	fmt.Fprintf(w, "Vertices:      %d\n", len(res.Mesh.Vertices))
	fmt.Fprintf(w, "Bounds:        (%.2f, %.2f, %.2f) - (%.2f, %.2f, %.2f)\n", lo.X, lo.Y, lo.Z, hi.X, hi.Y, hi.Z)

	if len(timings) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Profile:")
	for _, t := range timings {
		indent := strings.Repeat("  ", t.Depth+1)
		fmt.Fprintf(w, "%s%-14s %10s\n", indent, t.Name, t.Duration.Round(time.Microsecond))
	}
}
