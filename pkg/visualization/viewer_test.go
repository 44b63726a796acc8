package visualization

import (
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"babybrowser/internal/models"
)

// testVolume builds a volume where frame f at voxel (s, r, c) holds
// f*1000 + s*100 + r*10 + c.
func testVolume(columns, rows, slices, frames int, labels []string) *models.VoxelMajorVolume {
	vol := &models.VoxelMajorVolume{
		Data:    make([]float32, columns*rows*slices*frames),
		Columns: columns,
		Rows:    rows,
		Slices:  slices,
		Frames:  frames,
		Labels:  labels,
	}
	for s := 0; s < slices; s++ {
		for r := 0; r < rows; r++ {
			for c := 0; c < columns; c++ {
				for f := 0; f < frames; f++ {
					vol.Data[vol.Index(s, r, c, f)] = float32(f*1000 + s*100 + r*10 + c)
				}
			}
		}
	}
	return vol
}

// TestNewViewer verifies the quality fallback
func TestNewViewer(t *testing.T) {
	vol := testVolume(2, 2, 2, 1, nil)
	if v := NewViewer(vol, 0); v.quality != 90 {
		t.Errorf("Expected fallback quality 90, got %d", v.quality)
	}
	if v := NewViewer(vol, 75); v.quality != 75 {
		t.Errorf("Expected quality 75, got %d", v.quality)
	}
}

// TestExtractSlice verifies slice dimensions and intensity ordering on each axis
func TestExtractSlice(t *testing.T) {
	columns, rows, slices := 4, 3, 2
	viewer := NewViewer(testVolume(columns, rows, slices, 2, nil), 90)

	tests := []struct {
		axis          string
		width, height int
	}{
		{"z", columns, rows},
		{"y", columns, slices},
		{"x", slices, rows},
	}
	for _, tt := range tests {
		img, err := viewer.ExtractSlice(1, tt.axis, 0)
		if err != nil {
			t.Fatalf("Failed to extract %s slice: %v", tt.axis, err)
		}
		b := img.Bounds()
		if b.Dx() != tt.width || b.Dy() != tt.height {
			t.Errorf("Expected %s slice %dx%d, got %dx%d", tt.axis, tt.width, tt.height, b.Dx(), b.Dy())
		}
	}

	// On the z axis the first voxel is the frame minimum and the last of the
	// top slice is below the frame maximum.
	img, err := viewer.ExtractSlice(1, "z", 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected frame minimum to map to 0, got %d", got)
	}
	top, err := viewer.ExtractSlice(1, "z", slices-1)
	if err != nil {
		t.Fatal(err)
	}
	if got := top.Gray16At(columns-1, rows-1).Y; got != 65535 {
		t.Errorf("Expected frame maximum to map to 65535, got %d", got)
	}
	if img.Gray16At(columns-1, rows-1).Y >= 65535 {
		t.Errorf("Expected lower slice to be darker than the maximum")
	}
}

func TestExtractSliceErrors(t *testing.T) {
	viewer := NewViewer(testVolume(2, 2, 2, 2, nil), 90)

	if _, err := viewer.ExtractSlice(2, "z", 0); err == nil {
		t.Error("Expected error for frame out of range")
	}
	if _, err := viewer.ExtractSlice(0, "w", 0); err == nil {
		t.Error("Expected error for invalid axis")
	}
	if _, err := viewer.ExtractSlice(0, "x", 2); err == nil {
		t.Error("Expected error for position beyond columns")
	}
	if _, err := viewer.ExtractSlice(0, "z", -1); err == nil {
		t.Error("Expected error for negative position")
	}
}

func TestFrameDir(t *testing.T) {
	viewer := NewViewer(testVolume(1, 1, 1, 3, []string{"week0-1", "year 1/2", ".."}), 90)

	want := []string{"00_week0-1", "01_year_1_2", "02_frame_002"}
	for f, w := range want {
		if got := viewer.FrameDir(f); got != w {
			t.Errorf("FrameDir(%d) = %q, want %q", f, got, w)
		}
	}
}

// TestSaveFrameSequences verifies that every slice of every frame is saved as a JPEG
func TestSaveFrameSequences(t *testing.T) {
	labels := []string{"week0-1", "quarter1"}
	viewer := NewViewer(testVolume(8, 6, 3, 2, labels), 80)
	outDir := t.TempDir()

	n, err := viewer.SaveFrameSequences("z", outDir)
	if err != nil {
		t.Fatalf("SaveFrameSequences failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 images, got %d", n)
	}

	path := filepath.Join(outDir, "01_quarter1", "slice_z_002.jpg")
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Expected %s to exist: %v", path, err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("Expected 8x6 image, got %dx%d", b.Dx(), b.Dy())
	}

	if _, err := viewer.SaveFrameSequences("q", outDir); err == nil {
		t.Error("Expected error for invalid axis")
	}
}
