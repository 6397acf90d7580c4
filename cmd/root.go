// Package cmd implements the roompaint command line, a thin harness over
// the recolor pipeline for driving it on image files.
package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prasannaganesan/interior-design-app/config"
	"github.com/prasannaganesan/interior-design-app/internal/segment"
)

var (
	version = "0.1.0"

	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "roompaint",
	Short: "Repaint room surfaces in photos while preserving lighting",
	Long: `roompaint — click a wall in a photo and repaint it.

A promptable segmentation model turns a point into a per-pixel surface
mask; an illumination decomposition repaints only the reflectance of the
selected pixels, so shadows, highlights and texture survive the recolor.`,
	Version: version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"roompaint %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// loadConfig returns the configured or default configuration.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

// logVerbose prints a message only when --verbose is set.
func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[roompaint] "+format+"\n", args...)
	}
}

// parsePoint parses "x,y" into a prompt point.
func parsePoint(s string) (segment.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return segment.Point{}, fmt.Errorf("invalid point %q, want x,y", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return segment.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return segment.Point{}, fmt.Errorf("invalid point %q: %w", s, err)
	}
	return segment.Point{X: x, Y: y}, nil
}
