// Package codec provides value serializers for metacache's high-level
// command layer. A Codec turns arbitrary Go values into the byte payload
// and client-flag word stored alongside a meta protocol item, and back.
package codec

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
)

// Client-flag bits this package reserves for itself. Callers composing
// their own Codec are free to use the remaining bits.
const (
	FlagGob        uint32 = 1 << 0
	FlagBytes      uint32 = 1 << 1
	FlagCompressed uint32 = 1 << 2
)

// Codec encodes and decodes values stored in memcache. Encode returns the
// bytes to store and the client_flag word to stamp the item with; Decode
// reverses that using the client_flag read back from the server.
type Codec interface {
	Encode(v any) (data []byte, clientFlag uint32, err error)
	Decode(data []byte, clientFlag uint32, v any) error
}

// GobCodec encodes values with encoding/gob. It is metacache's default: the
// teacher's example pack reaches for gob whenever a bespoke wire format
// isn't specified, since it needs no struct tags and round-trips any
// exported Go type.
type GobCodec struct{}

func (GobCodec) Encode(v any) ([]byte, uint32, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, 0, fmt.Errorf("codec: gob encode: %w", err)
	}
	return buf.Bytes(), FlagGob, nil
}

func (GobCodec) Decode(data []byte, clientFlag uint32, v any) error {
	if clientFlag&FlagGob == 0 {
		return fmt.Errorf("codec: client_flag %d is not a gob payload", clientFlag)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("codec: gob decode: %w", err)
	}
	return nil
}

// BytesCodec is a passthrough codec for []byte and string values. It sets
// no compression bit and performs no copying beyond what Go's string/[]byte
// conversion requires.
type BytesCodec struct{}

func (BytesCodec) Encode(v any) ([]byte, uint32, error) {
	switch val := v.(type) {
	case []byte:
		return val, FlagBytes, nil
	case string:
		return []byte(val), FlagBytes, nil
	default:
		return nil, 0, fmt.Errorf("codec: BytesCodec cannot encode %T", v)
	}
}

func (BytesCodec) Decode(data []byte, clientFlag uint32, v any) error {
	if clientFlag&FlagBytes == 0 {
		return fmt.Errorf("codec: client_flag %d is not a bytes payload", clientFlag)
	}
	switch dst := v.(type) {
	case *[]byte:
		*dst = append((*dst)[:0], data...)
		return nil
	case *string:
		*dst = string(data)
		return nil
	default:
		return fmt.Errorf("codec: BytesCodec cannot decode into %T", v)
	}
}

// Compress gzip-compresses data, for callers composing a Codec that wants
// the compressed bit populated in its client_flag. There is no third-party
// compression library in play anywhere upstream for this concern, so this
// wraps the standard library's compress/gzip directly.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
