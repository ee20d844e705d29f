package snapshot

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the body compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the body as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio).
	CompressionZSTD Compression = 2
)

// DefaultBlockSize is the uncompressed size of one compressed block.
const DefaultBlockSize = 256 * 1024

func (c Compression) valid() bool {
	return c <= CompressionZSTD
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("snapshot: unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Each compressed block is framed as
// [UncompressedSize uint32][CompressedSize uint32][Data...].
// CompressedSize == 0 marks a block stored uncompressed.
const blockHeaderSize = 8

var errBlock = fmt.Errorf("%w: malformed block", ErrCorrupt)

// compress frames body into blocks of at most blockSize bytes. Blocks that
// do not shrink below 90% of their size are stored raw.
func compress(body []byte, c Compression, blockSize int) ([]byte, error) {
	if c == CompressionNone {
		return body, nil
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	var enc *zstd.Encoder
	if c == CompressionZSTD {
		enc = getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
	}

	out := make([]byte, 0, len(body)/2+blockHeaderSize)
	var scratch []byte

	for start := 0; start < len(body); start += blockSize {
		block := body[start:min(start+blockSize, len(body))]

		var packed []byte
		switch c {
		case CompressionLZ4:
			scratch = growBytes(scratch, lz4.CompressBlockBound(len(block)))
			n, err := lz4.CompressBlock(block, scratch, nil)
			if err != nil {
				return nil, err
			}
			packed = scratch[:n]
		case CompressionZSTD:
			scratch = enc.EncodeAll(block, scratch[:0])
			packed = scratch
		}

		var hdr [blockHeaderSize]byte
		binary.LittleEndian.PutUint32(hdr[0:], uint32(len(block)))
		if len(packed) == 0 || float64(len(packed)) > float64(len(block))*0.9 {
			out = append(out, hdr[:]...)
			out = append(out, block...)
			continue
		}
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(packed)))
		out = append(out, hdr[:]...)
		out = append(out, packed...)
	}

	return out, nil
}

// decompress reverses compress. The output never grows past rawLength.
func decompress(stored []byte, c Compression, rawLength uint64) ([]byte, error) {
	if c == CompressionNone {
		return stored, nil
	}

	var dec *zstd.Decoder
	if c == CompressionZSTD {
		dec = getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
	}

	out := make([]byte, 0, min(rawLength, uint64(len(stored))*4))
	for off := 0; off < len(stored); {
		if len(stored)-off < blockHeaderSize {
			return nil, errBlock
		}
		rawSize := int(binary.LittleEndian.Uint32(stored[off:]))
		packedSize := int(binary.LittleEndian.Uint32(stored[off+4:]))
		off += blockHeaderSize

		if uint64(len(out))+uint64(rawSize) > rawLength {
			return nil, errBlock
		}

		if packedSize == 0 {
			if len(stored)-off < rawSize {
				return nil, errBlock
			}
			out = append(out, stored[off:off+rawSize]...)
			off += rawSize
			continue
		}

		if len(stored)-off < packedSize {
			return nil, errBlock
		}
		packed := stored[off : off+packedSize]
		off += packedSize

		switch c {
		case CompressionLZ4:
			out = slices.Grow(out, rawSize)
			dst := out[len(out) : len(out)+rawSize]
			n, err := lz4.UncompressBlock(packed, dst)
			if err != nil {
				return nil, err
			}
			if n != rawSize {
				return nil, errBlock
			}
			out = out[:len(out)+n]
		case CompressionZSTD:
			before := len(out)
			var err error
			out, err = dec.DecodeAll(packed, out)
			if err != nil {
				return nil, err
			}
			if len(out)-before != rawSize {
				return nil, errBlock
			}
		}
	}

	if uint64(len(out)) != rawLength {
		return nil, fmt.Errorf("%w: decompressed %d bytes, expected %d", ErrCorrupt, len(out), rawLength)
	}
	return out, nil
}

func growBytes(b []byte, n int) []byte {
	if cap(b) < n {
		return make([]byte, n)
	}
	return b[:n]
}
