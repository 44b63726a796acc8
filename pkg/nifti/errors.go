package nifti

import (
	"errors"
	"fmt"
)

// Format errors. All of them are terminal for the load that produced them.
var (
	ErrMalformedHeader     = errors.New("malformed header")
	ErrUnsupportedDataType = errors.New("unsupported data type")
	ErrTruncatedFile       = errors.New("truncated file")
)

// UnsupportedDataTypeError reports a voxel type code the caller cannot handle.
type UnsupportedDataTypeError struct {
	Code int
}

func (e *UnsupportedDataTypeError) Error() string {
	return fmt.Sprintf("unsupported data type %d (%s)", e.Code, DataTypeName(e.Code))
}

// Is lets errors.Is match ErrUnsupportedDataType.
func (e *UnsupportedDataTypeError) Is(target error) bool {
	return target == ErrUnsupportedDataType
}

// TruncatedError reports a payload shorter than the header declares.
type TruncatedError struct {
	// Want and Got count samples, not bytes
	Want int64
	Got  int64
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated file: want %d samples, got %d", e.Want, e.Got)
}

// Is lets errors.Is match ErrTruncatedFile.
func (e *TruncatedError) Is(target error) bool {
	return target == ErrTruncatedFile
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedHeader, fmt.Sprintf(format, args...))
}
