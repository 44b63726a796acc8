package atlas

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"babybrowser/internal/models"
)

// FrameStats summarizes the intensities of one frame.
type FrameStats struct {
	Frame  int
	Label  string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// FrameStatistics computes per-frame intensity statistics of vol.
func FrameStatistics(vol *models.VoxelMajorVolume) []FrameStats {
	voxels := vol.Columns * vol.Rows * vol.Slices
	if voxels == 0 || vol.Frames == 0 {
		return nil
	}

	out := make([]FrameStats, vol.Frames)
	values := make([]float64, voxels)
	for f := 0; f < vol.Frames; f++ {
		for v := 0; v < voxels; v++ {
			values[v] = float64(vol.Data[v*vol.Frames+f])
		}
		mean, std := stat.MeanStdDev(values, nil)
		if voxels == 1 {
			std = 0
		}
		out[f] = FrameStats{
			Frame:  f,
			Label:  vol.Label(f),
			Mean:   mean,
			StdDev: std,
			Min:    floats.Min(values),
			Max:    floats.Max(values),
		}
	}
	return out
}

// VolumeStatistics computes intensity statistics of a 3D volume.
func VolumeStatistics(vol *models.ScalarVolume) FrameStats {
	values := make([]float64, len(vol.Data))
	for i, x := range vol.Data {
		values[i] = float64(x)
	}
	if len(values) == 0 {
		return FrameStats{Label: vol.TimePoint}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return FrameStats{
		Label:  vol.TimePoint,
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}
