package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"babybrowser/internal/models"
	"babybrowser/pkg/atlas"
	"babybrowser/pkg/config"
	"babybrowser/pkg/logging"
	"babybrowser/pkg/nifti"
	"babybrowser/pkg/scene"
	"babybrowser/pkg/visualization"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Errorf("babybrowser: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("babybrowser", flag.ContinueOnError)
	configPath := fs.String("config", "babybrowser.yaml", "Configuration file (.yaml or .toml)")
	initConfig := fs.Bool("init-config", false, "Write a default configuration file to -config and exit")
	root := fs.String("root", "", "Atlas root directory (overrides config)")
	developmental := fs.String("developmental", "", "4D developmental atlas file (overrides config)")
	skipAtlas := fs.Bool("skip-atlas", false, "Do not load the per-age 3D atlas volumes")
	skipDevelopmental := fs.Bool("skip-developmental", false, "Do not load the 4D developmental atlas")
	preview := fs.Bool("preview", false, "Export JPEG slices of every developmental atlas frame")
	previewDir := fs.String("preview-dir", "", "Directory for preview images (overrides config)")
	splitDir := fs.String("split-frames", "", "Write each developmental atlas frame as a 3D .nii.gz into this directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", *configPath)
		return nil
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *root != "" {
		cfg.Atlas.Root = *root
	}
	if *developmental != "" {
		cfg.Atlas.Developmental = *developmental
	}
	if *preview {
		cfg.Preview.Enabled = true
	}
	if *previewDir != "" {
		cfg.Preview.Dir = *previewDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		MaxSize: cfg.Logging.MaxSize,
		MaxAge:  cfg.Logging.MaxAge,
	}); err != nil {
		return err
	}

	sink := scene.NewMemory()
	loader := atlas.NewLoader(atlas.ConfigFrom(cfg), sink, log.StandardLogger())
	start := time.Now()

	if !*skipDevelopmental {
		_, vol, err := loader.LoadDevelopmentalAtlas()
		if err != nil {
			return err
		}
		printFrameStats(stdout, vol)

		if cfg.Preview.Enabled {
			viewer := visualization.NewViewer(vol, cfg.Preview.Quality)
			n, err := viewer.SaveFrameSequences(cfg.Preview.Axis, cfg.Preview.Dir)
			if err != nil {
				return fmt.Errorf("saving previews: %w", err)
			}
			fmt.Fprintf(stdout, "Saved %d preview images to %s\n", n, cfg.Preview.Dir)
		}
		if *splitDir != "" {
			if err := splitFrames(vol, *splitDir); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Wrote %d frame volumes to %s\n", vol.Frames, *splitDir)
		}
	}

	if !*skipAtlas {
		if err := loader.LoadAtlas(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "\nScene (%d nodes, loaded in %.2f seconds):\n", len(sink.Nodes()), time.Since(start).Seconds())
	for _, n := range sink.Nodes() {
		fmt.Fprintf(stdout, "  %-45s %dx%dx%d", n.Name, n.Shape.Columns, n.Shape.Rows, n.Shape.Slices)
		if n.Shape.Components > 1 {
			fmt.Fprintf(stdout, " x %d frames", n.Shape.Components)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

func printFrameStats(w io.Writer, vol *models.VoxelMajorVolume) {
	fmt.Fprintf(w, "Developmental atlas: %dx%dx%d, %d frames\n", vol.Columns, vol.Rows, vol.Slices, vol.Frames)
	fmt.Fprintf(w, "%-5s %-25s %12s %12s %12s %12s\n", "frame", "label", "mean", "stddev", "min", "max")
	for _, s := range atlas.FrameStatistics(vol) {
		fmt.Fprintf(w, "%-5d %-25s %12.4f %12.4f %12.4f %12.4f\n", s.Frame, s.Label, s.Mean, s.StdDev, s.Min, s.Max)
	}
}

// splitFrames writes every frame of vol as its own 3D volume named after its label.
func splitFrames(vol *models.VoxelMajorVolume, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	vh := models.VolumeHeader{
		DataType: nifti.DTFloat32,
		Columns:  vol.Columns,
		Rows:     vol.Rows,
		Slices:   vol.Slices,
		Frames:   1,
		Spacing:  vol.Spacing,
	}
	names := visualization.NewViewer(vol, 0)
	for f := 0; f < vol.Frames; f++ {
		data, err := vol.Frame(f)
		if err != nil {
			return err
		}
		vh.Description = vol.Label(f)
		name := names.FrameDir(f) + ".nii.gz"
		if err := nifti.WriteFile(filepath.Join(dir, name), vh, data); err != nil {
			return fmt.Errorf("writing frame %d: %w", f, err)
		}
	}
	return nil
}
