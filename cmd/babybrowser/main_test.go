package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"babybrowser/internal/models"
	"babybrowser/pkg/config"
	"babybrowser/pkg/nifti"
	"babybrowser/pkg/repack"
)

// writeAtlasTree writes a minimal atlas under root using the default layout
// with the given timepoints.
func writeAtlasTree(t *testing.T, root string, timePoints []string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Atlas.Root = root

	vh := models.VolumeHeader{DataType: nifti.DTFloat32, Columns: 3, Rows: 2, Slices: 2, Frames: 1}
	regDir := filepath.Join(root, cfg.Atlas.RegisteredDir)
	if err := os.MkdirAll(regDir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, vt := range cfg.Atlas.VolumeTypes {
		for _, tp := range timePoints {
			path := filepath.Join(regDir, "atlas_"+tp+vt+"_rigidtoyear1-2.nii.gz")
			if err := nifti.WriteFile(path, vh, make([]float32, vh.Samples())); err != nil {
				t.Fatal(err)
			}
		}
	}

	vh.Frames = len(timePoints)
	data := make([]float32, vh.Samples())
	for i := range data {
		data[i] = float32(i)
	}
	devPath := cfg.DevelopmentalPath()
	if err := os.MkdirAll(filepath.Dir(devPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := nifti.WriteFile(devPath, vh, data); err != nil {
		t.Fatal(err)
	}
}

func writeConfig(t *testing.T, dir string, timePoints []string) string {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Atlas.TimePoints = timePoints
	cfg.Logging.Level = "error"
	path := filepath.Join(dir, "babybrowser.yaml")
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunLoadsAtlas(t *testing.T) {
	dir := t.TempDir()
	timePoints := []string{"week0-1", "quarter1"}
	writeAtlasTree(t, dir, timePoints)
	cfgPath := writeConfig(t, dir, timePoints)

	previewDir := filepath.Join(dir, "previews")
	splitDir := filepath.Join(dir, "frames")
	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-config", cfgPath,
		"-root", dir,
		"-preview",
		"-preview-dir", previewDir,
		"-split-frames", splitDir,
	}, &out)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out.String())
	}

	text := out.String()
	for _, want := range []string{"Scene (5 nodes", "DevelopmentalAtlas", "x 2 frames", "atlas_quarter1_stdev_rigidtoyear1-2", "Saved 4 preview images"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q:\n%s", want, text)
		}
	}

	frame, err := repack.Load(filepath.Join(splitDir, "01_quarter1.nii.gz"))
	if err != nil {
		t.Fatalf("Failed to load split frame: %v", err)
	}
	if frame.Frames != 1 || len(frame.Data) != 12 || frame.Data[0] != 12 {
		t.Errorf("Expected frame 1 to start at 12 with 12 samples, got %d samples starting at %v", len(frame.Data), frame.Data[0])
	}
}

func TestRunLabelMismatchFails(t *testing.T) {
	dir := t.TempDir()
	writeAtlasTree(t, dir, []string{"week0-1", "quarter1", "year1-2"})
	cfgPath := writeConfig(t, dir, []string{"week0-1", "quarter1"})

	err := run(context.Background(), []string{"-config", cfgPath, "-root", dir, "-skip-atlas"}, &bytes.Buffer{})
	if !errors.Is(err, repack.ErrLabelCountMismatch) {
		t.Fatalf("Expected label count mismatch, got %v", err)
	}
}

func TestRunInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "babybrowser.toml")
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-config", path, "-init-config"}, &out); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if len(cfg.Atlas.TimePoints) != len(config.DefaultTimePoints) {
		t.Errorf("Expected default timepoints, got %v", cfg.Atlas.TimePoints)
	}
}

func TestRunInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Preview.Axis = "w"
	path := filepath.Join(dir, "bad.yaml")
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), []string{"-config", path}, &bytes.Buffer{}); err == nil {
		t.Fatal("Expected invalid configuration error")
	}
}
