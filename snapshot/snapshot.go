// Package snapshot persists embeddings as compact binary blobs.
//
// A snapshot holds the item IDs and coordinates of a model.Embedding. The
// original relation is not stored. Coordinates can be narrowed to float32 or
// float16 and the body compressed with LZ4 or ZSTD:
//
//	name, err := snapshot.Save(ctx, store, "", emb, func(o *snapshot.Options) {
//	    o.Precision = snapshot.Float32
//	    o.Compression = snapshot.CompressionZSTD
//	})
//
//	emb, err := snapshot.Load(ctx, store, name)
package snapshot

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/tsnego/blobstore"
	"github.com/hupe1980/tsnego/model"
	"github.com/hupe1980/tsnego/resource"
)

// Ext is the file extension of generated snapshot names.
const Ext = ".tsne"

// Options configures encoding and transfer.
type Options struct {
	Precision   Precision
	Compression Compression
	// BlockSize is the uncompressed size of one compressed block.
	BlockSize int
	// Resource throttles blob IO when it carries an IO limit. Nil disables
	// throttling.
	Resource *resource.Controller
}

// DefaultOptions stores full precision with LZ4 compression.
func DefaultOptions() Options {
	return Options{
		Precision:   Float64,
		Compression: CompressionLZ4,
		BlockSize:   DefaultBlockSize,
	}
}

func applyOptions(optFns []func(o *Options)) Options {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// Marshal encodes emb into a snapshot.
func Marshal(emb *model.Embedding, optFns ...func(o *Options)) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, emb, optFns...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes emb to w as a snapshot.
func Encode(w io.Writer, emb *model.Embedding, optFns ...func(o *Options)) error {
	opts := applyOptions(optFns)

	width := opts.Precision.Width()
	if width == 0 {
		return fmt.Errorf("snapshot: unknown precision %d", opts.Precision)
	}
	if !opts.Compression.valid() {
		return fmt.Errorf("snapshot: unknown compression %d", opts.Compression)
	}

	n, dim := emb.Len(), emb.Dimension()
	body := make([]byte, n*8+n*dim*width)

	off := 0
	for _, id := range emb.IDs() {
		binary.LittleEndian.PutUint64(body[off:], uint64(id))
		off += 8
	}
	for _, v := range emb.Flat() {
		opts.Precision.put(body[off:], v)
		off += width
	}

	stored, err := compress(body, opts.Compression, opts.BlockSize)
	if err != nil {
		return fmt.Errorf("snapshot: compress: %w", err)
	}

	h := Header{
		Magic:        MagicNumber,
		Version:      Version,
		Count:        uint64(n),
		Dim:          uint32(dim),
		Precision:    opts.Precision,
		Compression:  opts.Compression,
		RawLength:    uint64(len(body)),
		StoredLength: uint64(len(stored)),
		Checksum:     crc32.Checksum(stored, crc32cTable),
	}

	if _, err := w.Write(h.Encode()); err != nil {
		return err
	}
	_, err = w.Write(stored)
	return err
}

// Unmarshal decodes a snapshot.
func Unmarshal(data []byte) (*model.Embedding, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}

	rest := uint64(len(data) - HeaderSize)
	if h.StoredLength > rest {
		return nil, fmt.Errorf("%w: body truncated to %d of %d bytes", ErrCorrupt, rest, h.StoredLength)
	}
	stored := data[HeaderSize : HeaderSize+h.StoredLength]

	if crc32.Checksum(stored, crc32cTable) != h.Checksum {
		return nil, ErrChecksum
	}
	if h.Compression == CompressionNone && h.StoredLength != h.RawLength {
		return nil, fmt.Errorf("%w: stored length %d for raw length %d", ErrCorrupt, h.StoredLength, h.RawLength)
	}

	body, err := decompress(stored, h.Compression, h.RawLength)
	if err != nil {
		return nil, err
	}

	n, dim, width := int(h.Count), int(h.Dim), h.Precision.Width()

	ids := make([]model.ID, n)
	off := 0
	for i := range ids {
		ids[i] = model.ID(binary.LittleEndian.Uint64(body[off:]))
		off += 8
	}

	coords := make([]float64, n*dim)
	for i := range coords {
		coords[i] = h.Precision.get(body[off:])
		off += width
	}

	emb, err := model.NewEmbeddingFlat(ids, dim, coords)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return emb, nil
}

// Decode reads a complete snapshot from r.
func Decode(r io.Reader) (*model.Embedding, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// NewName returns a fresh random snapshot name.
func NewName() string {
	return uuid.NewString() + Ext
}

// Save streams emb into store under name and returns the name. An empty
// name is replaced by NewName.
func Save(ctx context.Context, store blobstore.BlobStore, name string, emb *model.Embedding, optFns ...func(o *Options)) (string, error) {
	opts := applyOptions(optFns)
	if name == "" {
		name = NewName()
	}

	data, err := Marshal(emb, func(o *Options) { *o = opts })
	if err != nil {
		return "", err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return "", fmt.Errorf("snapshot: create %s: %w", name, err)
	}

	if _, err := resource.NewRateLimitedWriter(ctx, w, opts.Resource).Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("snapshot: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("snapshot: commit %s: %w", name, err)
	}

	return name, nil
}

// Load reads the named snapshot from store.
func Load(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(o *Options)) (*model.Embedding, error) {
	opts := applyOptions(optFns)

	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", name, err)
	}
	defer b.Close()

	emb, err := Decode(resource.NewRateLimitedReader(ctx, blobstore.NewReader(ctx, b), opts.Resource))
	if err != nil {
		return nil, fmt.Errorf("snapshot: load %s: %w", name, err)
	}
	return emb, nil
}

// List returns the snapshot names in store under prefix.
func List(ctx context.Context, store blobstore.BlobStore, prefix string) ([]string, error) {
	names, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, name := range names {
		if strings.HasSuffix(name, Ext) {
			out = append(out, name)
		}
	}
	return out, nil
}
