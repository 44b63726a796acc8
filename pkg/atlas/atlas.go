// Package atlas loads the pediatric brain atlas: the per-age 3D atlas
// volumes and the 4D developmental atlas whose frames are the age
// timepoints. Loaded volumes are handed to a scene.Sink.
package atlas

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"babybrowser/internal/models"
	"babybrowser/pkg/config"
	"babybrowser/pkg/nifti"
	"babybrowser/pkg/repack"
	"babybrowser/pkg/scene"
)

// DevelopmentalNodeName is the scene name of the 4D atlas node.
const DevelopmentalNodeName = "DevelopmentalAtlas"

// Config locates the atlas on disk. Every path and list is explicit; nothing
// is derived from the current user or machine.
type Config struct {
	// Root is the directory holding the atlas tree
	Root string

	// RegisteredDir is the subdirectory of Root with the 3D atlases
	RegisteredDir string

	// FilePattern formats a 3D atlas file name from timepoint and volume type
	FilePattern string

	// DevelopmentalPath is the 4D atlas file
	DevelopmentalPath string

	// VolumeTypes are the statistic suffixes, e.g. "" and "_stdev"
	VolumeTypes []string

	// TimePoints label the frames of the 4D atlas, in frame order
	TimePoints []string
}

// ConfigFrom extracts the atlas settings from an application config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Root:              c.Atlas.Root,
		RegisteredDir:     c.Atlas.RegisteredDir,
		FilePattern:       c.Atlas.FilePattern,
		DevelopmentalPath: c.DevelopmentalPath(),
		VolumeTypes:       append([]string(nil), c.Atlas.VolumeTypes...),
		TimePoints:        append([]string(nil), c.Atlas.TimePoints...),
	}
}

// Key identifies one 3D atlas volume.
type Key struct {
	VolumeType string
	TimePoint  string
}

// Loader loads atlas volumes into a scene sink.
type Loader struct {
	cfg    Config
	sink   scene.Sink
	logger log.FieldLogger

	// VolumesByTypeAndAge maps each loaded 3D volume to its scene node
	VolumesByTypeAndAge map[Key]scene.NodeHandle

	volumes map[Key]*models.ScalarVolume
}

// NewLoader creates a loader. A nil logger uses the standard logrus logger.
func NewLoader(cfg Config, sink scene.Sink, logger log.FieldLogger) *Loader {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Loader{
		cfg:                 cfg,
		sink:                sink,
		logger:              logger,
		VolumesByTypeAndAge: make(map[Key]scene.NodeHandle),
		volumes:             make(map[Key]*models.ScalarVolume),
	}
}

// AtlasPath returns the file of the 3D atlas for a volume type and timepoint.
func (l *Loader) AtlasPath(k Key) string {
	name := fmt.Sprintf(l.cfg.FilePattern, k.TimePoint, k.VolumeType)
	return filepath.Join(l.cfg.Root, l.cfg.RegisteredDir, name)
}

// Keys lists every (volume type, timepoint) pair in load order.
func (l *Loader) Keys() []Key {
	keys := make([]Key, 0, len(l.cfg.VolumeTypes)*len(l.cfg.TimePoints))
	for _, vt := range l.cfg.VolumeTypes {
		for _, tp := range l.cfg.TimePoints {
			keys = append(keys, Key{VolumeType: vt, TimePoint: tp})
		}
	}
	return keys
}

// Volume returns a 3D volume loaded by LoadAtlas.
func (l *Loader) Volume(k Key) (*models.ScalarVolume, bool) {
	v, ok := l.volumes[k]
	return v, ok
}

// LoadAtlas loads every 3D atlas volume and adds it to the scene. The first
// file that cannot be loaded stops the load.
func (l *Loader) LoadAtlas(ctx context.Context) error {
	for _, k := range l.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := l.AtlasPath(k)
		l.logger.WithField("file", filepath.Base(path)).Info("Loading atlas volume")

		vol, err := LoadScalarVolume(path)
		if err != nil {
			return fmt.Errorf("could not load %s: %w", path, err)
		}
		vol.VolumeType = k.VolumeType
		vol.TimePoint = k.TimePoint

		h, err := l.addNode(vol.Data, scene.Shape{
			Columns:    vol.Columns,
			Rows:       vol.Rows,
			Slices:     vol.Slices,
			Components: 1,
		}, nil, vol.Name)
		if err != nil {
			return fmt.Errorf("could not add %s to scene: %w", path, err)
		}

		l.VolumesByTypeAndAge[k] = h
		l.volumes[k] = vol
	}
	return nil
}

// LoadDevelopmentalAtlas repacks the 4D atlas with the timepoints as frame
// labels and adds it to the scene.
func (l *Loader) LoadDevelopmentalAtlas() (scene.NodeHandle, *models.VoxelMajorVolume, error) {
	path := l.cfg.DevelopmentalPath
	l.logger.WithField("file", path).Info("Loading developmental atlas")

	vol, err := repack.LoadLabeled(path, l.cfg.TimePoints)
	if err != nil {
		return "", nil, err
	}

	h, err := l.addNode(vol.Data, scene.Shape{
		Columns:    vol.Columns,
		Rows:       vol.Rows,
		Slices:     vol.Slices,
		Components: vol.Frames,
	}, vol.Labels, DevelopmentalNodeName)
	if err != nil {
		return "", nil, fmt.Errorf("could not add %s to scene: %w", path, err)
	}

	l.logger.WithFields(log.Fields{
		"node":   h,
		"frames": vol.Frames,
		"size":   humanize.Bytes(uint64(4 * len(vol.Data))),
	}).Info("Developmental atlas added to scene")

	return h, vol, nil
}

func (l *Loader) addNode(buf []float32, shape scene.Shape, labels []string, name string) (scene.NodeHandle, error) {
	h, err := l.sink.CreateVolumeNode(buf, shape, labels)
	if err != nil {
		return "", err
	}
	if namer, ok := l.sink.(scene.Namer); ok {
		if err := namer.SetName(h, name); err != nil {
			return "", err
		}
	}
	if err := l.sink.AddToScene(h); err != nil {
		return "", err
	}
	return h, nil
}

// LoadScalarVolume reads a single-frame volume of any supported datatype as
// float32, applying the header's intensity scaling.
func LoadScalarVolume(path string) (*models.ScalarVolume, error) {
	f, err := nifti.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdr := f.VolumeHeader()
	if hdr.Columns <= 0 || hdr.Rows <= 0 || hdr.Slices <= 0 {
		return nil, fmt.Errorf("%w: non-positive extent (columns=%d rows=%d slices=%d)",
			nifti.ErrMalformedHeader, hdr.Columns, hdr.Rows, hdr.Slices)
	}
	if hdr.Frames != 1 {
		return nil, fmt.Errorf("expected a 3D volume, %s has %d frames", path, hdr.Frames)
	}

	data, err := f.ReadScalars(hdr.Voxels())
	if err != nil {
		return nil, err
	}
	if slope, inter, ok := f.Header.Scaling(); ok {
		for i := range data {
			data[i] = data[i]*slope + inter
		}
	}

	return &models.ScalarVolume{
		Name:    volumeName(path),
		Data:    data,
		Columns: hdr.Columns,
		Rows:    hdr.Rows,
		Slices:  hdr.Slices,
		Spacing: hdr.Spacing,
	}, nil
}

// volumeName strips the directory and volume extensions from path.
func volumeName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	for _, ext := range []string{".nii", ".hdr", ".img"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
