package models

import "testing"

func TestVoxelMajorVolumeAccessors(t *testing.T) {
	// 2 columns, 1 row, 1 slice, 3 frames
	vol := &VoxelMajorVolume{
		Data:    []float32{1, 2, 3, 4, 5, 6},
		Columns: 2,
		Rows:    1,
		Slices:  1,
		Frames:  3,
		Labels:  []string{"a", "b", "c"},
	}

	if got := vol.At(0, 0, 1, 2); got != 6 {
		t.Errorf("Expected At(0,0,1,2)=6, got %v", got)
	}
	if v := vol.Voxel(0, 0, 1); len(v) != 3 || v[0] != 4 {
		t.Errorf("Expected voxel [4 5 6], got %v", v)
	}

	frame, err := vol.Frame(1)
	if err != nil {
		t.Fatalf("Frame failed: %v", err)
	}
	if len(frame) != 2 || frame[0] != 2 || frame[1] != 5 {
		t.Errorf("Expected frame [2 5], got %v", frame)
	}
	if _, err := vol.Frame(3); err == nil {
		t.Error("Expected error for frame out of range")
	}

	if vol.Label(2) != "c" || vol.Label(5) != "" {
		t.Errorf("Unexpected labels %q %q", vol.Label(2), vol.Label(5))
	}
}

func TestVolumeHeaderCounts(t *testing.T) {
	h := VolumeHeader{Columns: 4, Rows: 3, Slices: 2, Frames: 5}
	if h.Voxels() != 24 || h.Samples() != 120 {
		t.Errorf("Expected 24 voxels and 120 samples, got %d and %d", h.Voxels(), h.Samples())
	}
}
