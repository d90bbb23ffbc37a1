package export

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor wraps artifact streams in one compression algorithm
type Compressor interface {
	Algorithm() CompressionType
	Extension() string
	NewWriter(w io.Writer) (io.WriteCloser, error)
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// NewCompressor returns the compressor for an algorithm; none yields a pass-through
func NewCompressor(algorithm CompressionType) (Compressor, error) {
	switch algorithm {
	case CompressionTypeNone, "":
		return noneCompressor{}, nil
	case CompressionTypeGzip:
		return &GzipCompressor{Level: gzip.DefaultCompression}, nil
	case CompressionTypeLZ4:
		return &LZ4Compressor{Level: lz4.Fast}, nil
	case CompressionTypeZstd:
		return &ZstdCompressor{Level: zstd.SpeedDefault}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type noneCompressor struct{}

func (noneCompressor) Algorithm() CompressionType { return CompressionTypeNone }
func (noneCompressor) Extension() string          { return "" }

func (noneCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// GzipCompressor implements gzip compression
type GzipCompressor struct {
	Level int
}

func (gc *GzipCompressor) Algorithm() CompressionType { return CompressionTypeGzip }
func (gc *GzipCompressor) Extension() string          { return ".gz" }

func (gc *GzipCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	level := gc.Level
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return zw, nil
}

func (gc *GzipCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	return zr, nil
}

// LZ4Compressor implements LZ4 frame compression
type LZ4Compressor struct {
	Level lz4.CompressionLevel
}

func (lc *LZ4Compressor) Algorithm() CompressionType { return CompressionTypeLZ4 }
func (lc *LZ4Compressor) Extension() string          { return ".lz4" }

func (lc *LZ4Compressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(lc.Level)); err != nil {
		return nil, fmt.Errorf("failed to configure lz4 writer: %w", err)
	}
	return zw, nil
}

func (lc *LZ4Compressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// ZstdCompressor implements Zstandard compression
type ZstdCompressor struct {
	Level zstd.EncoderLevel
}

func (zc *ZstdCompressor) Algorithm() CompressionType { return CompressionTypeZstd }
func (zc *ZstdCompressor) Extension() string          { return ".zst" }

func (zc *ZstdCompressor) NewWriter(w io.Writer) (io.WriteCloser, error) {
	level := zc.Level
	if level < zstd.SpeedFastest || level > zstd.SpeedBestCompression {
		level = zstd.SpeedDefault
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return zw, nil
}

func (zc *ZstdCompressor) NewReader(r io.Reader) (io.ReadCloser, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return zr.IOReadCloser(), nil
}
