package models

import (
	"encoding/binary"
	"fmt"
)

// VolumeHeader holds the header fields needed to locate and shape the voxel
// payload of a volume file.
type VolumeHeader struct {
	// DataType is the on-disk voxel type code
	DataType int

	// Columns, Rows, Slices are the spatial extents (x, y, z)
	Columns int
	Rows    int
	Slices  int

	// Frames is the length of the 4th dimension, 1 for plain 3D volumes
	Frames int

	// Offset is the number of bytes to skip before the voxel payload starts
	Offset int64

	// ByteOrder is the byte order of the payload
	ByteOrder binary.ByteOrder

	// Spacing is the physical voxel size in mm
	Spacing Spacing

	// Description is the free text description stored with the volume
	Description string
}

// Spacing is the physical size of a voxel along each axis.
type Spacing struct {
	X, Y, Z float64
}

// Voxels returns the number of spatial voxels in one frame.
func (h VolumeHeader) Voxels() int {
	return h.Columns * h.Rows * h.Slices
}

// Samples returns the number of samples in the whole payload.
func (h VolumeHeader) Samples() int {
	return h.Voxels() * h.Frames
}

// FrameMajorBuffer is a flat sample buffer shaped (frames, slices, rows, columns)
// with the frame varying slowest and the column fastest.
type FrameMajorBuffer []float32

// VoxelMajorVolume is a multi-frame volume shaped (slices, rows, columns, frames)
// so that the frame values of each voxel are contiguous.
type VoxelMajorVolume struct {
	// Data holds Slices*Rows*Columns*Frames samples
	Data []float32

	Columns int
	Rows    int
	Slices  int
	Frames  int

	// Labels names each frame, in frame order
	Labels []string

	Spacing Spacing
}

// Index returns the offset of sample (s, r, c, f) in Data.
func (v *VoxelMajorVolume) Index(s, r, c, f int) int {
	return ((s*v.Rows+r)*v.Columns+c)*v.Frames + f
}

// At returns the sample of frame f at voxel (s, r, c).
func (v *VoxelMajorVolume) At(s, r, c, f int) float32 {
	return v.Data[v.Index(s, r, c, f)]
}

// Voxel returns the frame values of voxel (s, r, c). The slice aliases Data.
func (v *VoxelMajorVolume) Voxel(s, r, c int) []float32 {
	i := v.Index(s, r, c, 0)
	return v.Data[i : i+v.Frames]
}

// Frame copies out frame f in (slice, row, column) order.
func (v *VoxelMajorVolume) Frame(f int) ([]float32, error) {
	if f < 0 || f >= v.Frames {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", f, v.Frames)
	}
	n := v.Columns * v.Rows * v.Slices
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = v.Data[i*v.Frames+f]
	}
	return out, nil
}

// Label returns the label of frame f, or an empty string if none was attached.
func (v *VoxelMajorVolume) Label(f int) string {
	if f < 0 || f >= len(v.Labels) {
		return ""
	}
	return v.Labels[f]
}

// ScalarVolume is a single-frame 3D volume stored x fastest, then y, then z.
type ScalarVolume struct {
	// Name identifies the volume in the scene
	Name string

	// VolumeType is the statistic suffix, e.g. "" for the mean or "_stdev"
	VolumeType string

	// TimePoint is the age bracket the volume belongs to
	TimePoint string

	Data []float32

	Columns int
	Rows    int
	Slices  int

	Spacing Spacing
}

// At returns the sample at voxel (s, r, c).
func (v *ScalarVolume) At(s, r, c int) float32 {
	return v.Data[(s*v.Rows+r)*v.Columns+c]
}
