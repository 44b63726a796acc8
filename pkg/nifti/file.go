package nifti

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	log "github.com/sirupsen/logrus"

	"babybrowser/internal/models"
)

var gzipMagic = []byte{0x1f, 0x8b}

// File is an opened NIfTI-1 volume. The header is decoded on Open; the
// payload is read lazily through Payload.
type File struct {
	Path      string
	Header    *Header
	ByteOrder binary.ByteOrder

	// Compressed is set when the header stream was gzip encoded
	Compressed bool

	payload  io.Reader
	consumed int64
	closers  []io.Closer

	// size of the uncompressed payload file, -1 when only a stream is available
	size int64
}

// Open opens a .nii, .nii.gz or .hdr/.img volume and decodes its header.
// Gzip streams are detected from their magic bytes, not the file name.
func Open(path string) (*File, error) {
	stream, closers, size, err := openStream(path)
	if err != nil {
		return nil, err
	}
	file := &File{
		Path:       path,
		Compressed: size < 0,
		closers:    closers,
		size:       size,
	}

	h, order, err := ReadHeader(stream)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Header = h
	file.ByteOrder = order

	if h.SingleFile() {
		if h.VoxOffset < HeaderSize {
			file.Close()
			return nil, fmt.Errorf("%s: %w", path, malformed("vox_offset %v inside header", h.VoxOffset))
		}
		file.payload = stream
		file.consumed = HeaderSize
		return file, nil
	}

	imgPath, ok := ImagePath(path)
	if !ok {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, malformed("header/image pair must be named .hdr"))
	}
	img, imgClosers, imgSize, err := openStream(imgPath)
	if err != nil {
		file.Close()
		return nil, err
	}
	file.closers = append(file.closers, imgClosers...)
	file.payload = img
	file.size = imgSize

	log.WithFields(log.Fields{
		"header": path,
		"image":  imgPath,
	}).Debug("Opened header/image pair")

	return file, nil
}

// ImagePath returns the .img file that pairs with a .hdr file.
func ImagePath(hdrPath string) (string, bool) {
	for _, suffix := range []string{".hdr", ".hdr.gz"} {
		if strings.HasSuffix(hdrPath, suffix) {
			return strings.TrimSuffix(hdrPath, suffix) + strings.Replace(suffix, "hdr", "img", 1), true
		}
	}
	return "", false
}

// VolumeHeader returns the payload description of the opened file.
func (f *File) VolumeHeader() models.VolumeHeader {
	return f.Header.VolumeHeader(f.ByteOrder)
}

// Payload returns a reader positioned at vox_offset. It may be called once.
func (f *File) Payload() (io.Reader, error) {
	if f.payload == nil {
		return nil, errors.New("payload already consumed")
	}
	r := f.payload
	f.payload = nil

	skip := int64(f.Header.VoxOffset) - f.consumed
	if skip > 0 {
		n, err := io.CopyN(io.Discard, r, skip)
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: payload offset %d beyond end of file (%d bytes)",
					ErrTruncatedFile, int64(f.Header.VoxOffset), f.consumed+n)
			}
			return nil, fmt.Errorf("skipping to payload: %w", err)
		}
	}
	return r, nil
}

// ReadScalars reads n samples of the header's datatype from the payload.
// For uncompressed files the payload length is checked against the file
// size before anything is read.
func (f *File) ReadScalars(n int) ([]float32, error) {
	code := int(f.Header.DataType)
	want, err := PayloadBytes(code, n)
	if err != nil {
		return nil, err
	}
	if f.size >= 0 {
		offset := int64(f.Header.VoxOffset)
		if f.size < offset {
			return nil, fmt.Errorf("%w: payload offset %d beyond end of file (%d bytes)",
				ErrTruncatedFile, offset, f.size)
		}
		if avail := f.size - offset; avail < want {
			bpv, _ := BytesPerVoxel(code)
			return nil, &TruncatedError{Want: int64(n), Got: avail / int64(bpv)}
		}
	}

	payload, err := f.Payload()
	if err != nil {
		return nil, err
	}
	return DecodeScalars(payload, f.ByteOrder, code, n)
}

// Close releases the underlying file handles. It is safe to call more than once.
func (f *File) Close() error {
	var first error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	f.closers = nil
	return first
}

// openStream opens path and unwraps gzip if the magic bytes say so. The
// returned closers must be closed in reverse order. The size is the file
// length on disk, or -1 for gzip streams.
func openStream(path string) (io.Reader, []io.Closer, int64, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("opening volume: %w", err)
	}
	closers := []io.Closer{fh}

	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, nil, 0, fmt.Errorf("opening volume: %w", err)
	}

	br := bufio.NewReaderSize(fh, 1<<16)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil || magic[0] != gzipMagic[0] || magic[1] != gzipMagic[1] {
		// Short files fall through and fail on the header read.
		return br, closers, info.Size(), nil
	}

	gz, err := gzip.NewReader(br)
	if err != nil {
		fh.Close()
		return nil, nil, 0, fmt.Errorf("%s: opening gzip stream: %w", path, err)
	}
	closers = append(closers, gz)
	return bufio.NewReaderSize(gz, 1<<16), closers, -1, nil
}

// Encode writes a single-file float32 volume described by vh to w in little
// endian order. The offset in vh is ignored; the payload starts right after
// the header and the empty extension flag.
func Encode(w io.Writer, vh models.VolumeHeader, data []float32) error {
	if err := checkExtents(vh); err != nil {
		return err
	}
	if len(data) != vh.Samples() {
		return fmt.Errorf("have %d samples, header declares %d", len(data), vh.Samples())
	}
	vh.DataType = DTFloat32
	vh.Offset = SingleFileOffset

	if err := NewHeader(vh).Write(w, binary.LittleEndian); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := w.Write(make([]byte, SingleFileOffset-HeaderSize)); err != nil {
		return fmt.Errorf("writing extension flag: %w", err)
	}
	if err := EncodeFloat32(w, binary.LittleEndian, data); err != nil {
		return fmt.Errorf("writing payload: %w", err)
	}
	return nil
}

// WriteFile writes a float32 volume to path, gzip compressed if path ends in .gz.
func WriteFile(path string, vh models.VolumeHeader, data []float32) error {
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	bw := bufio.NewWriter(fh)
	var w io.Writer = bw
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(bw)
		w = gz
	}

	if err := Encode(w, vh, data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return fh.Close()
}
