package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"regexp"

	"babybrowser/internal/models"
)

// Viewer extracts 2D preview slices from the frames of a multi-frame volume.
type Viewer struct {
	volume *models.VoxelMajorVolume

	// quality is the JPEG quality used when saving slices
	quality int
}

// NewViewer creates a viewer over vol. Quality outside [1, 100] falls back to 90.
func NewViewer(vol *models.VoxelMajorVolume, quality int) *Viewer {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &Viewer{volume: vol, quality: quality}
}

// window returns the intensity range of frame f, used to map samples to gray levels.
func (v *Viewer) window(f int) (lo, hi float64) {
	vol := v.volume
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := f; i < len(vol.Data); i += vol.Frames {
		x := float64(vol.Data[i])
		if math.IsNaN(x) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo > hi {
		return 0, 1
	}
	return lo, hi
}

func gray(x float32, lo, hi float64) color.Gray16 {
	if hi <= lo || math.IsNaN(float64(x)) {
		return color.Gray16{}
	}
	t := (float64(x) - lo) / (hi - lo)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D slice of frame f along the specified axis.
// Gray levels span the frame's own intensity range.
func (v *Viewer) ExtractSlice(f int, axis string, position int) (*image.Gray16, error) {
	vol := v.volume
	if f < 0 || f >= vol.Frames {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", f, vol.Frames)
	}
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	lo, hi := v.window(f)

	var img *image.Gray16
	switch axis {
	case "x", "X":
		// Extract slice along the row/slice plane
		if position >= vol.Columns {
			return nil, fmt.Errorf("position %d exceeds columns %d", position, vol.Columns)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Slices, vol.Rows))
		for r := 0; r < vol.Rows; r++ {
			for s := 0; s < vol.Slices; s++ {
				img.SetGray16(s, r, gray(vol.At(s, r, position, f), lo, hi))
			}
		}

	case "y", "Y":
		// Extract slice along the column/slice plane
		if position >= vol.Rows {
			return nil, fmt.Errorf("position %d exceeds rows %d", position, vol.Rows)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Columns, vol.Slices))
		for s := 0; s < vol.Slices; s++ {
			for c := 0; c < vol.Columns; c++ {
				img.SetGray16(c, s, gray(vol.At(s, position, c, f), lo, hi))
			}
		}

	case "z", "Z":
		// Extract slice along the column/row plane
		if position >= vol.Slices {
			return nil, fmt.Errorf("position %d exceeds slices %d", position, vol.Slices)
		}
		img = image.NewGray16(image.Rect(0, 0, vol.Columns, vol.Rows))
		for r := 0; r < vol.Rows; r++ {
			for c := 0; c < vol.Columns; c++ {
				img.SetGray16(c, r, gray(vol.At(position, r, c, f), lo, hi))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: v.quality}); err != nil {
		return err
	}
	return file.Close()
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FrameDir returns the directory name used for frame f: its label when it
// has one, otherwise frame_NNN.
func (v *Viewer) FrameDir(f int) string {
	name := unsafeChars.ReplaceAllString(v.volume.Label(f), "_")
	if name == "" || name == "." || name == ".." {
		name = fmt.Sprintf("frame_%03d", f)
	}
	return fmt.Sprintf("%02d_%s", f, name)
}

// SaveSliceSequence extracts and saves every slice of frame f along the axis
func (v *Viewer) SaveSliceSequence(f int, axis string, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.volume.Columns
	case "y", "Y":
		maxPos = v.volume.Rows
	case "z", "Z":
		maxPos = v.volume.Slices
	default:
		return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(f, axis, pos)
		if err != nil {
			return pos, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}

	return maxPos, nil
}

// SaveFrameSequences saves the slices of every frame, one directory per frame.
// It returns the number of images written.
func (v *Viewer) SaveFrameSequences(axis string, outputDir string) (int, error) {
	total := 0
	for f := 0; f < v.volume.Frames; f++ {
		n, err := v.SaveSliceSequence(f, axis, filepath.Join(outputDir, v.FrameDir(f)))
		total += n
		if err != nil {
			return total, fmt.Errorf("frame %d: %w", f, err)
		}
	}
	return total, nil
}
