// Package nifti reads the fixed-size header of NIfTI-1 and Analyze 7.5 images.
// Only the header is decoded; voxel data is left to the external toolbox.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// HeaderSize is the on-disk size of a NIfTI-1 header.
const HeaderSize = 348

var (
	ErrNotNifti = errors.New("not a NIfTI-1 or Analyze header")
	ErrBadDims  = errors.New("header dim[0] out of range")
)

// Format identifies the header flavour found on disk.
type Format string

const (
	FormatSingle  Format = "nifti1-single" // magic "n+1", header and data in one .nii
	FormatPair    Format = "nifti1-pair"   // magic "ni1", .hdr/.img pair
	FormatAnalyze Format = "analyze"       // no magic
)

// Time units stored in the upper bits of XYZTUnits.
const (
	unitsSec  = 8
	unitsMsec = 16
	unitsUsec = 24
)

// Header is a decoded image header together with the byte order it was
// stored in.
type Header struct {
	Raw

	// ByteOrder is the byte order the header was stored in.
	ByteOrder binary.ByteOrder
}

// Raw mirrors the NIfTI-1 header byte for byte so it can be decoded with
// encoding/binary.
type Raw struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QOffsetX      float32
	QOffsetY      float32
	QOffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// ReadHeader decodes the header of the image at path. Gzipped files are
// decompressed on the fly. For Analyze and NIfTI pairs the .img path may be
// given; the sibling .hdr is read instead.
func ReadHeader(path string) (*Header, error) {
	path = headerPath(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "gunzip %s", path)
		}
		defer gz.Close()
		r = gz
	}

	return Decode(r)
}

// Decode reads one header from r, detecting the byte order from sizeof_hdr.
func Decode(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	var order binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf) == HeaderSize:
		order = binary.LittleEndian
	case binary.BigEndian.Uint32(buf) == HeaderSize:
		order = binary.BigEndian
	default:
		return nil, ErrNotNifti
	}

	h := &Header{}
	if err := binary.Read(bytes.NewReader(buf), order, &h.Raw); err != nil {
		return nil, errors.Wrap(err, "decode header")
	}
	h.ByteOrder = order

	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return nil, errors.Wrapf(ErrBadDims, "dim[0]=%d", h.Dim[0])
	}
	return h, nil
}

// Encode writes h to w using h.ByteOrder, little endian when unset.
func (h *Header) Encode(w io.Writer) error {
	order := h.ByteOrder
	if order == nil {
		order = binary.LittleEndian
	}
	return binary.Write(w, order, &h.Raw)
}

// Format reports the flavour of the header from its magic string.
func (h *Header) Format() Format {
	switch string(bytes.TrimRight(h.Magic[:], "\x00")) {
	case "n+1":
		return FormatSingle
	case "ni1":
		return FormatPair
	default:
		return FormatAnalyze
	}
}

// Shape returns dim[1..dim[0]].
func (h *Header) Shape() []int {
	n := int(h.Dim[0])
	shape := make([]int, n)
	for i := 0; i < n; i++ {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// NumSlices is the size of the third spatial axis, the slice axis for axial
// EPI acquisitions.
func (h *Header) NumSlices() int {
	if h.Dim[0] < 3 {
		return 1
	}
	return int(h.Dim[3])
}

// NumVolumes is the number of time points, 1 for 3D images.
func (h *Header) NumVolumes() int {
	if h.Dim[0] < 4 || h.Dim[4] < 1 {
		return 1
	}
	return int(h.Dim[4])
}

// TR returns pixdim[4] in seconds, honouring the time units in XYZTUnits.
// Analyze headers carry no units and are assumed to be in seconds.
func (h *Header) TR() float64 {
	tr := float64(h.Pixdim[4])
	switch h.XYZTUnits & 0x38 {
	case unitsMsec:
		return tr / 1e3
	case unitsUsec:
		return tr / 1e6
	case unitsSec:
		return tr
	default:
		return tr
	}
}

// Description returns the descrip field without trailing NULs.
func (h *Header) Description() string {
	return string(bytes.TrimRight(h.Descrip[:], "\x00"))
}

func headerPath(path string) string {
	trimmed := strings.TrimSuffix(path, ".gz")
	if !strings.HasSuffix(trimmed, ".img") {
		return path
	}
	hdr := strings.TrimSuffix(trimmed, ".img") + ".hdr"
	if trimmed != path {
		hdr += ".gz"
	}
	return hdr
}
