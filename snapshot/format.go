package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/x448/float16"
)

const (
	// MagicNumber identifies a snapshot file ("TSNE").
	MagicNumber = 0x54534E45
	// Version is the current format version.
	Version = 1
	// HeaderSize is the fixed size of the file header in bytes.
	HeaderSize = 64
)

var (
	// ErrBadMagic is returned when the input is not a snapshot.
	ErrBadMagic = errors.New("snapshot: invalid magic number")
	// ErrUnsupportedVersion is returned for snapshots from a newer format.
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	// ErrChecksum is returned when the body does not match its checksum.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrCorrupt is returned for truncated or inconsistent snapshots.
	ErrCorrupt = errors.New("snapshot: corrupt data")
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// Precision is the on-disk width of each coordinate.
type Precision uint8

const (
	// Float64 stores coordinates losslessly.
	Float64 Precision = iota
	// Float32 halves the size at single precision.
	Float32
	// Float16 stores IEEE-754 half precision, enough for plotting.
	Float16
)

// Width returns the encoded size of one coordinate in bytes.
func (p Precision) Width() int {
	switch p {
	case Float64:
		return 8
	case Float32:
		return 4
	case Float16:
		return 2
	default:
		return 0
	}
}

func (p Precision) String() string {
	switch p {
	case Float64:
		return "float64"
	case Float32:
		return "float32"
	case Float16:
		return "float16"
	default:
		return fmt.Sprintf("Precision(%d)", uint8(p))
	}
}

// ParsePrecision parses "float64", "float32" or "float16".
func ParsePrecision(s string) (Precision, error) {
	switch s {
	case "float64", "f64":
		return Float64, nil
	case "float32", "f32":
		return Float32, nil
	case "float16", "f16", "half":
		return Float16, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown precision %q", s)
	}
}

func (p Precision) put(dst []byte, v float64) {
	switch p {
	case Float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
	case Float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
	case Float16:
		binary.LittleEndian.PutUint16(dst, float16.Fromfloat32(float32(v)).Bits())
	}
}

func (p Precision) get(src []byte) float64 {
	switch p {
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	case Float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(src)))
	case Float16:
		return float64(float16.Frombits(binary.LittleEndian.Uint16(src)).Float32())
	default:
		return math.NaN()
	}
}

// Header describes a snapshot file. It is stored at the beginning of the
// file, followed by StoredLength bytes of (possibly compressed) body.
//
// The uncompressed body is Count little-endian uint64 IDs followed by
// Count*Dim coordinates at the given precision.
type Header struct {
	Magic        uint32
	Version      uint32
	Count        uint64
	Dim          uint32
	Precision    Precision
	Compression  Compression
	_            [2]byte
	RawLength    uint64
	StoredLength uint64
	Checksum     uint32 // CRC32C of the stored body
	_            [20]byte
}

// Encode serializes the header into HeaderSize bytes.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	binary.LittleEndian.PutUint64(buf[8:], h.Count)
	binary.LittleEndian.PutUint32(buf[16:], h.Dim)
	buf[20] = byte(h.Precision)
	buf[21] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[24:], h.RawLength)
	binary.LittleEndian.PutUint64(buf[32:], h.StoredLength)
	binary.LittleEndian.PutUint32(buf[40:], h.Checksum)
	return buf
}

// DecodeHeader parses and validates a header.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too small for a header", ErrCorrupt, len(buf))
	}

	h := &Header{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != MagicNumber {
		return nil, ErrBadMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:])
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	h.Count = binary.LittleEndian.Uint64(buf[8:])
	h.Dim = binary.LittleEndian.Uint32(buf[16:])
	h.Precision = Precision(buf[20])
	h.Compression = Compression(buf[21])
	h.RawLength = binary.LittleEndian.Uint64(buf[24:])
	h.StoredLength = binary.LittleEndian.Uint64(buf[32:])
	h.Checksum = binary.LittleEndian.Uint32(buf[40:])

	if h.Precision.Width() == 0 {
		return nil, fmt.Errorf("%w: unknown precision %d", ErrCorrupt, h.Precision)
	}
	if !h.Compression.valid() {
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, h.Compression)
	}
	if h.Dim == 0 {
		return nil, fmt.Errorf("%w: zero dimension", ErrCorrupt)
	}
	if h.bodyLength() != h.RawLength {
		return nil, fmt.Errorf("%w: body length %d does not match %d items of dimension %d", ErrCorrupt, h.RawLength, h.Count, h.Dim)
	}

	return h, nil
}

// bodyLength returns the expected uncompressed body size, or MaxUint64 if
// it overflows.
func (h *Header) bodyLength() uint64 {
	row := 8 + uint64(h.Dim)*uint64(h.Precision.Width())
	if h.Count > math.MaxUint64/row {
		return math.MaxUint64
	}
	return h.Count * row
}
