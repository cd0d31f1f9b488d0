package codec

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// Frame layout (all integers little-endian):
//
//	magic "PGCS" | version u8 | len(codec) u8 | codec name |
//	compression u8 | raw length u32 | xxhash64(raw body) u64 | payload
const (
	magic   = "PGCS"
	version = 1

	// maxRawLen bounds the allocation made from an untrusted header.
	maxRawLen = 64 << 20
)

var (
	// ErrBadMagic is returned when a blob does not start with the frame magic.
	ErrBadMagic = errors.New("codec: not a state blob")
	// ErrVersion is returned for frames written by a newer format version.
	ErrVersion = errors.New("codec: unsupported frame version")
	// ErrChecksum is returned when the decoded body does not match its checksum.
	ErrChecksum = errors.New("codec: checksum mismatch")
	// ErrTruncated is returned when the blob ends inside the header.
	ErrTruncated = errors.New("codec: truncated blob")
)

// Seal wraps a body encoded with c into a self-describing frame.
func Seal(c Codec, comp Compression, body []byte) ([]byte, error) {
	name := c.Name()
	if len(name) > 255 {
		return nil, errors.Newf("codec: name %q too long", name)
	}
	if len(body) > maxRawLen {
		return nil, errors.Newf("codec: body of %d bytes exceeds limit", len(body))
	}
	payload, used, err := compress(body, comp)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+2+len(name)+1+4+8+len(payload))
	out = append(out, magic...)
	out = append(out, version, byte(len(name)))
	out = append(out, name...)
	out = append(out, byte(used))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	out = binary.LittleEndian.AppendUint64(out, xxhash.Sum64(body))
	out = append(out, payload...)
	return out, nil
}

// Open validates a frame and returns its decoded body together with the
// codec named in the header.
func Open(blob []byte) ([]byte, Codec, error) {
	if len(blob) < len(magic)+2 {
		return nil, nil, ErrTruncated
	}
	if string(blob[:len(magic)]) != magic {
		return nil, nil, ErrBadMagic
	}
	p := len(magic)
	if v := blob[p]; v != version {
		return nil, nil, errors.Wrapf(ErrVersion, "got %d", v)
	}
	nameLen := int(blob[p+1])
	p += 2
	if len(blob) < p+nameLen+1+4+8 {
		return nil, nil, ErrTruncated
	}
	c, err := ByName(string(blob[p : p+nameLen]))
	if err != nil {
		return nil, nil, err
	}
	p += nameLen
	comp := Compression(blob[p])
	rawLen := binary.LittleEndian.Uint32(blob[p+1:])
	sum := binary.LittleEndian.Uint64(blob[p+5:])
	p += 1 + 4 + 8
	if rawLen > maxRawLen {
		return nil, nil, errors.Newf("codec: body of %d bytes exceeds limit", rawLen)
	}

	body, err := decompress(blob[p:], comp, int(rawLen))
	if err != nil {
		return nil, nil, err
	}
	if xxhash.Sum64(body) != sum {
		return nil, nil, ErrChecksum
	}
	return body, c, nil
}
