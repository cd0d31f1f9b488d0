package codec

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how the encoded body of a blob is compressed.
type Compression uint8

const (
	// None stores the body as is.
	None Compression = 0
	// LZ4 uses LZ4 block compression (fast, modest ratio).
	LZ4 Compression = 1
	// Zstd uses zstandard (slower, better ratio for large segment caches).
	Zstd Compression = 2
)

// ErrUnknownCompression is returned for an unrecognised compression byte.
var ErrUnknownCompression = errors.New("codec: unknown compression")

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxRawLen))
}

// compress returns the compressed body and the compression actually used.
// Incompressible input falls back to None.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if len(data) == 0 {
		return data, None, nil
	}
	switch c {
	case None:
		return data, None, nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, None, errors.Wrap(err, "lz4 compress")
		}
		if n == 0 || n >= len(data) {
			return data, None, nil
		}
		return dst[:n], LZ4, nil
	case Zstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, None, errors.Wrap(err, "zstd encoder")
		}
		out := enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
		if len(out) >= len(data) {
			return data, None, nil
		}
		return out, Zstd, nil
	default:
		return nil, None, errors.Wrapf(ErrUnknownCompression, "%d", c)
	}
}

// decompress reverses compress. rawLen is the uncompressed length from the header.
func decompress(data []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case None:
		if len(data) != rawLen {
			return nil, errors.Newf("codec: body length %d, header says %d", len(data), rawLen)
		}
		return data, nil
	case LZ4:
		dst := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, dst)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 decompress")
		}
		if n != rawLen {
			return nil, errors.Newf("codec: lz4 produced %d bytes, want %d", n, rawLen)
		}
		return dst, nil
	case Zstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, errors.Wrap(err, "zstd decoder")
		}
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(data, make([]byte, 0, rawLen))
		if err != nil {
			return nil, errors.Wrap(err, "zstd decompress")
		}
		if len(out) != rawLen {
			return nil, errors.Newf("codec: zstd produced %d bytes, want %d", len(out), rawLen)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCompression, "%d", c)
	}
}
