package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

func TestGobCodec_RoundTrip(t *testing.T) {
	var c GobCodec

	data, flag, err := c.Encode(point{X: 1, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, FlagGob, flag)

	var out point
	require.NoError(t, c.Decode(data, flag, &out))
	assert.Equal(t, point{X: 1, Y: 2}, out)
}

func TestGobCodec_RejectsWrongFlag(t *testing.T) {
	var c GobCodec
	err := c.Decode([]byte("x"), FlagBytes, &point{})
	assert.Error(t, err)
}

func TestBytesCodec_RoundTrip(t *testing.T) {
	var c BytesCodec

	data, flag, err := c.Encode("hello")
	require.NoError(t, err)
	assert.Equal(t, FlagBytes, flag)

	var out string
	require.NoError(t, c.Decode(data, flag, &out))
	assert.Equal(t, "hello", out)
}

func TestBytesCodec_RejectsUnsupportedType(t *testing.T) {
	var c BytesCodec
	_, _, err := c.Encode(42)
	assert.Error(t, err)
}

func TestCompressDecompress_RoundTrip(t *testing.T) {
	original := []byte("some reasonably compressible payload payload payload")

	compressed, err := Compress(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)

	decompressed, err := Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}
