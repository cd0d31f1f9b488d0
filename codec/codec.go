// Package codec encodes cache state for persistence.
//
// A persisted blob is self-describing: its header records the codec name and
// the compression used, so a blob written with one configuration can be read
// back by a model configured with another. Changing a codec's wire format is a
// breaking change for blobs already written with it.
package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/cockroachdb/errors"
	gojson "github.com/goccy/go-json"
)

// ErrUnknownCodec is returned when a blob names a codec that is not built in.
var ErrUnknownCodec = errors.New("codec: unknown codec")

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = Gob{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, error) {
	switch name {
	case Gob{}.Name():
		return Gob{}, nil
	case GoJSON{}.Name():
		return GoJSON{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "%q", name)
	}
}

// Gob is the encoding/gob codec. It round-trips Go types exactly, including
// unexported-field-free structs, maps and slices. Interface-typed values must
// be registered with gob.Register by the caller.
type Gob struct{}

// Marshal encodes v with a fresh gob encoder.
func (Gob) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v, which must be a pointer.
func (Gob) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Name returns "gob".
func (Gob) Name() string { return "gob" }

// GoJSON is a JSON codec backed by github.com/goccy/go-json.
// Useful when blobs should stay human-inspectable; it cannot carry
// channel, func or complex item types.
type GoJSON struct{}

// Marshal encodes the value to JSON.
func (GoJSON) Marshal(v any) ([]byte, error) { return gojson.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }

// Name returns "go-json".
func (GoJSON) Name() string { return "go-json" }
