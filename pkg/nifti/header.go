// Package nifti reads and writes NIfTI-1 volumes.
//
// Based on the official definition of the nifti1 header,
// https://nifti.nimh.nih.gov/pub/dist/src/niftilib/nifti1.h
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	log "github.com/sirupsen/logrus"

	"babybrowser/internal/models"
)

// HeaderSize is the size of the fixed NIfTI-1 header in bytes.
const HeaderSize = 348

// SingleFileOffset is the smallest payload offset of a single-file .nii:
// the header plus the 4-byte extension flag.
const SingleFileOffset = 352

var (
	magicSingle = [4]byte{'n', '+', '1', 0}
	magicPair   = [4]byte{'n', 'i', '1', 0}
)

// Header defines the structure of the NIfTI-1 header.
//
// Type translation from the C header:
//
//	C     Go
//	-------------
//	int   int32
//	float float32
//	short int16
//	char  byte
type Header struct {
	SizeOfHdr          int32    // Must be 348
	UnusedDataType     [10]byte // Unused
	UnusedDbName       [18]byte // Unused
	UnusedExtents      int32    // Unused
	UnusedSessionError int16    // Unused
	UnusedRegular      byte     // Unused
	DimInfo            byte     // MRI slice ordering

	Dim        [8]int16   // Data array dimensions
	IntentP1   float32    // 1st intent parameter
	IntentP2   float32    // 2nd intent parameter
	IntentP3   float32    // 3rd intent parameter
	IntentCode int16      // NIFTI_INTENT_* code
	DataType   int16      // Defines data type
	BitPix     int16      // Number bits/voxel
	SliceStart int16      // First slice index
	PixDim     [8]float32 // Grid spacing
	VoxOffset  float32    // Offset into .nii file
	SclSlope   float32    // Data scaling: slope
	SclInter   float32    // Data scaling: offset
	SliceEnd   int16      // Last slice index
	SliceCode  byte       // Slice timing order
	XYZTUnits  byte       // Units of pixdim[1..4]
	CalMax     float32    // Max display intensity
	CalMin     float32    // Min display intensity

	SliceDuration float32 // Time for 1 slice
	TOffset       float32 // Time axis shift
	UnusedGlmax   int32   // Unused
	UnusedGlmin   int32   // Unused

	Descrip [80]byte // Any text you like
	AuxFile [24]byte // Auxiliary filename

	QFormCode int16 // NIFTI_XFORM_* code
	SFormCode int16 // NIFTI_XFORM_* code

	QuaternB float32 // Quaternion b params
	QuaternC float32 // Quaternion c params
	QuaternD float32 // Quaternion d params
	QOffsetX float32 // Quaternion x shift
	QOffsetY float32 // Quaternion y shift
	QOffsetZ float32 // Quaternion z shift

	SRowX [4]float32 // 1st row affine transform
	SRowY [4]float32 // 2nd row affine transform
	SRowZ [4]float32 // 3rd row affine transform

	IntentName [16]byte // 'name' or meaning of data

	Magic [4]byte // Must be "ni1\0" or "n+1\0"
}

// ReadHeader decodes a header from r and returns it with the byte order it
// was stored in. The byte order is inferred from sizeof_hdr.
func ReadHeader(r io.Reader) (*Header, binary.ByteOrder, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil, malformed("header shorter than %d bytes", HeaderSize)
		}
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(raw) == HeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(raw) == HeaderSize:
		order = binary.BigEndian
	default:
		return nil, nil, malformed("sizeof_hdr is not %d in either byte order", HeaderSize)
	}

	h := new(Header)
	if err := binary.Read(bytes.NewReader(raw), order, h); err != nil {
		return nil, nil, fmt.Errorf("decoding header: %w", err)
	}
	if err := h.validate(); err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"byteOrder": order,
		"dataType":  h.DataType,
		"dim":       h.Dim,
		"voxOffset": h.VoxOffset,
	}).Debug("Read nifti header")

	return h, order, nil
}

// Check https://github.com/afni/afni/blob/master/src/nifti/niftilib/nifti1_io.c#L4045-L4104
func (h *Header) validate() error {
	switch {
	case h.Dim[0] < 1 || h.Dim[0] > 7:
		return malformed("dim[0] = %d not in range [1, 7]", h.Dim[0])
	case h.Magic != magicSingle && h.Magic != magicPair:
		return malformed("invalid file magic %q", h.Magic[:3])
	case h.VoxOffset < 0 || h.VoxOffset != float32(math.Trunc(float64(h.VoxOffset))):
		return malformed("vox_offset %v is not a byte count", h.VoxOffset)
	}
	return nil
}

// SingleFile reports whether the payload lives in the same file as the header.
func (h *Header) SingleFile() bool {
	return h.Magic == magicSingle
}

// Description returns descrip as a string.
func (h *Header) Description() string {
	return cString(h.Descrip[:])
}

// VolumeHeader converts h to the fields used to read the payload. Axes past
// dim[0] are reported with extent 1.
func (h *Header) VolumeHeader(order binary.ByteOrder) models.VolumeHeader {
	extent := func(i int) int {
		if int(h.Dim[0]) < i {
			return 1
		}
		return int(h.Dim[i])
	}
	return models.VolumeHeader{
		DataType:  int(h.DataType),
		Columns:   extent(1),
		Rows:      extent(2),
		Slices:    extent(3),
		Frames:    extent(4),
		Offset:    int64(h.VoxOffset),
		ByteOrder: order,
		Spacing: models.Spacing{
			X: float64(h.PixDim[1]),
			Y: float64(h.PixDim[2]),
			Z: float64(h.PixDim[3]),
		},
		Description: h.Description(),
	}
}

// Scaling returns the slope and intercept to apply to stored values, and
// whether scaling is needed at all.
func (h *Header) Scaling() (slope, inter float32, ok bool) {
	if h.SclSlope == 0 || (h.SclSlope == 1 && h.SclInter == 0) {
		return 1, 0, false
	}
	return h.SclSlope, h.SclInter, true
}

// NewHeader builds a header describing vh. A zero offset is stored as-is and
// marks the header as the first half of a .hdr/.img pair.
func NewHeader(vh models.VolumeHeader) *Header {
	h := &Header{
		SizeOfHdr: HeaderSize,
		DataType:  int16(vh.DataType),
		VoxOffset: float32(vh.Offset),
		SclSlope:  1,
		Magic:     magicPair,
	}
	if vh.Offset >= SingleFileOffset {
		h.Magic = magicSingle
	}
	if bpv, ok := BytesPerVoxel(vh.DataType); ok {
		h.BitPix = int16(bpv * 8)
	}

	h.Dim[0] = 3
	if vh.Frames > 1 {
		h.Dim[0] = 4
	}
	h.Dim[1] = int16(vh.Columns)
	h.Dim[2] = int16(vh.Rows)
	h.Dim[3] = int16(vh.Slices)
	h.Dim[4] = int16(vh.Frames)
	for i := 5; i < len(h.Dim); i++ {
		h.Dim[i] = 1
	}

	h.PixDim[0] = 1
	h.PixDim[1] = float32(vh.Spacing.X)
	h.PixDim[2] = float32(vh.Spacing.Y)
	h.PixDim[3] = float32(vh.Spacing.Z)
	copy(h.Descrip[:len(h.Descrip)-1], vh.Description)
	return h
}

// checkExtents reports extents that do not fit the int16 dim fields.
func checkExtents(vh models.VolumeHeader) error {
	for _, d := range []struct {
		name string
		n    int
	}{
		{"columns", vh.Columns},
		{"rows", vh.Rows},
		{"slices", vh.Slices},
		{"frames", vh.Frames},
	} {
		if d.n < 0 || d.n > math.MaxInt16 {
			return fmt.Errorf("%s extent %d does not fit a NIfTI-1 header", d.name, d.n)
		}
	}
	return nil
}

// Write encodes h to w in the given byte order.
func (h *Header) Write(w io.Writer, order binary.ByteOrder) error {
	return binary.Write(w, order, h)
}

// Print Header information.
func (h *Header) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dim: %v\n", h.Dim)
	fmt.Fprintf(&b, "datatype: %d (%s)\n", h.DataType, DataTypeName(int(h.DataType)))
	fmt.Fprintf(&b, "bitpix: %d\n", h.BitPix)
	fmt.Fprintf(&b, "pixdim: %v\n", h.PixDim)
	fmt.Fprintf(&b, "vox_offset: %v\n", h.VoxOffset)
	fmt.Fprintf(&b, "scl_slope: %v scl_inter: %v\n", h.SclSlope, h.SclInter)
	fmt.Fprintf(&b, "descrip: %s\n", h.Description())
	fmt.Fprintf(&b, "magic: %s", cString(h.Magic[:]))
	return b.String()
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
