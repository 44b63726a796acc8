package nifti

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// NIfTI-1 datatype codes (NIFTI_TYPE_*).
const (
	DTUnknown = 0
	DTUint8   = 2
	DTInt16   = 4
	DTInt32   = 8
	DTFloat32 = 16
	DTFloat64 = 64
	DTInt8    = 256
	DTUint16  = 512
	DTUint32  = 768
)

var dataTypes = map[int]struct {
	name  string
	bytes int
}{
	DTUint8:   {"uint8", 1},
	DTInt16:   {"int16", 2},
	DTInt32:   {"int32", 4},
	DTFloat32: {"float32", 4},
	DTFloat64: {"float64", 8},
	DTInt8:    {"int8", 1},
	DTUint16:  {"uint16", 2},
	DTUint32:  {"uint32", 4},
}

// DataTypeName returns a readable name for a datatype code.
func DataTypeName(code int) string {
	if dt, ok := dataTypes[code]; ok {
		return dt.name
	}
	return "unknown"
}

// BytesPerVoxel returns the sample size of a supported datatype code.
func BytesPerVoxel(code int) (int, bool) {
	dt, ok := dataTypes[code]
	return dt.bytes, ok
}

// PayloadBytes returns the byte length of n samples of the given datatype.
func PayloadBytes(code int, n int) (int64, error) {
	bpv, ok := BytesPerVoxel(code)
	if !ok {
		return 0, &UnsupportedDataTypeError{Code: code}
	}
	if n < 0 {
		return 0, malformed("negative sample count %d", n)
	}
	if int64(n) > math.MaxInt64/int64(bpv) {
		return 0, malformed("%d samples of %d bytes overflow the payload size", n, bpv)
	}
	return int64(n) * int64(bpv), nil
}

// DecodeScalars reads n samples of the given datatype from r and converts
// them to float32. Fewer than n samples yields a *TruncatedError. The read
// buffer grows with the data actually present, not with n.
func DecodeScalars(r io.Reader, order binary.ByteOrder, code int, n int) ([]float32, error) {
	want, err := PayloadBytes(code, n)
	if err != nil {
		return nil, err
	}
	bpv, _ := BytesPerVoxel(code)

	var buf bytes.Buffer
	got, err := buf.ReadFrom(io.LimitReader(r, want))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if got < want {
		return nil, &TruncatedError{Want: int64(n), Got: got / int64(bpv)}
	}
	raw := buf.Bytes()

	out := make([]float32, n)
	for i := range out {
		b := raw[i*bpv : (i+1)*bpv]
		switch code {
		case DTUint8:
			out[i] = float32(b[0])
		case DTInt8:
			out[i] = float32(int8(b[0]))
		case DTInt16:
			out[i] = float32(int16(order.Uint16(b)))
		case DTUint16:
			out[i] = float32(order.Uint16(b))
		case DTInt32:
			out[i] = float32(int32(order.Uint32(b)))
		case DTUint32:
			out[i] = float32(order.Uint32(b))
		case DTFloat32:
			out[i] = math.Float32frombits(order.Uint32(b))
		case DTFloat64:
			out[i] = float32(math.Float64frombits(order.Uint64(b)))
		}
	}
	return out, nil
}

// EncodeFloat32 writes data to w as raw float32 samples.
func EncodeFloat32(w io.Writer, order binary.ByteOrder, data []float32) error {
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		order.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}
