// Package repack decodes multi-frame float volumes and reorders them from
// frame-major (frames, slices, rows, columns) into voxel-major
// (slices, rows, columns, frames) order, so that every voxel carries its
// frame values as contiguous components.
package repack

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"babybrowser/internal/models"
	"babybrowser/pkg/nifti"
)

// Errors returned by Load. They match with errors.Is.
var (
	ErrUnsupportedDataType = nifti.ErrUnsupportedDataType
	ErrMalformedHeader     = nifti.ErrMalformedHeader
	ErrTruncatedFile       = nifti.ErrTruncatedFile
	ErrLabelCountMismatch  = errors.New("label count mismatch")
)

// LabelCountMismatchError reports a label list that does not match the
// frame count of the volume.
type LabelCountMismatchError struct {
	Frames int
	Labels int
}

func (e *LabelCountMismatchError) Error() string {
	return fmt.Sprintf("label count mismatch: volume has %d frames, got %d labels", e.Frames, e.Labels)
}

// Is lets errors.Is match ErrLabelCountMismatch.
func (e *LabelCountMismatchError) Is(target error) bool {
	return target == ErrLabelCountMismatch
}

// Load reads the multi-frame float32 volume at path and returns it in
// voxel-major order without frame labels.
func Load(path string) (*models.VoxelMajorVolume, error) {
	return load(path, nil, false)
}

// LoadLabeled is Load with one label per frame. The label count is checked
// against the header before the payload is read.
func LoadLabeled(path string, labels []string) (*models.VoxelMajorVolume, error) {
	return load(path, labels, true)
}

func load(path string, labels []string, checkLabels bool) (*models.VoxelMajorVolume, error) {
	f, err := nifti.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdr := f.VolumeHeader()
	if err := Validate(hdr); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if checkLabels && len(labels) != hdr.Frames {
		return nil, fmt.Errorf("%s: %w", path, &LabelCountMismatchError{Frames: hdr.Frames, Labels: len(labels)})
	}

	buf, err := f.ReadScalars(hdr.Samples())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	vol, err := Repack(buf, hdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if checkLabels {
		vol.Labels = append([]string(nil), labels...)
	}

	log.WithFields(log.Fields{
		"path":    path,
		"columns": hdr.Columns,
		"rows":    hdr.Rows,
		"slices":  hdr.Slices,
		"frames":  hdr.Frames,
		"size":    humanize.Bytes(uint64(4 * len(vol.Data))),
	}).Info("Repacked multi-frame volume")

	return vol, nil
}

// Validate checks that hdr describes a float32 volume with positive extents.
func Validate(hdr models.VolumeHeader) error {
	if hdr.DataType != nifti.DTFloat32 {
		return &nifti.UnsupportedDataTypeError{Code: hdr.DataType}
	}
	if hdr.Columns <= 0 || hdr.Rows <= 0 || hdr.Slices <= 0 || hdr.Frames <= 0 {
		return fmt.Errorf("%w: non-positive extent (columns=%d rows=%d slices=%d frames=%d)",
			ErrMalformedHeader, hdr.Columns, hdr.Rows, hdr.Slices, hdr.Frames)
	}
	if hdr.Offset < 0 {
		return fmt.Errorf("%w: negative payload offset %d", ErrMalformedHeader, hdr.Offset)
	}
	return nil
}

// Repack moves every frame of buf into the matching component slot of each
// voxel: out[s, r, c, f] = buf[f, s, r, c].
func Repack(buf models.FrameMajorBuffer, hdr models.VolumeHeader) (*models.VoxelMajorVolume, error) {
	if err := Validate(hdr); err != nil {
		return nil, err
	}
	if len(buf) < hdr.Samples() {
		return nil, &nifti.TruncatedError{Want: int64(hdr.Samples()), Got: int64(len(buf))}
	}

	frames, voxels := hdr.Frames, hdr.Voxels()
	out := make([]float32, voxels*frames)
	for f := 0; f < frames; f++ {
		frame := buf[f*voxels : (f+1)*voxels]
		for v, x := range frame {
			out[v*frames+f] = x
		}
	}

	return &models.VoxelMajorVolume{
		Data:    out,
		Columns: hdr.Columns,
		Rows:    hdr.Rows,
		Slices:  hdr.Slices,
		Frames:  frames,
		Spacing: hdr.Spacing,
	}, nil
}

// Unpack is the inverse of Repack.
func Unpack(vol *models.VoxelMajorVolume) models.FrameMajorBuffer {
	frames := vol.Frames
	voxels := vol.Columns * vol.Rows * vol.Slices
	out := make(models.FrameMajorBuffer, voxels*frames)
	for v := 0; v < voxels; v++ {
		for f := 0; f < frames; f++ {
			out[f*voxels+v] = vol.Data[v*frames+f]
		}
	}
	return out
}
