package meta

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRequest_Get(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	req := NewRequest(CmdGet, "foo", nil).AddReturnValue().AddOpaque("op1")

	require.NoError(t, WriteRequest(w, req))
	assert.Equal(t, "mg foo v Oop1\r\n", buf.String())
}

func TestWriteRequest_Set(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	req := NewRequest(CmdSet, "foo", []byte("bar")).AddSize(3).AddTTL(60)

	require.NoError(t, WriteRequest(w, req))
	assert.Equal(t, "ms foo S3 T60\r\nbar\r\n", buf.String())
}

func TestWriteRequest_Unbuffered(t *testing.T) {
	var buf bytes.Buffer
	req := NewRequest(CmdDelete, "foo", nil)

	require.NoError(t, WriteRequest(&buf, req))
	assert.Equal(t, "md foo\r\n", buf.String())
}

func TestWriteRequest_RejectsInvalidKey(t *testing.T) {
	var buf bytes.Buffer
	req := NewRequest(CmdGet, "", nil)
	require.Error(t, WriteRequest(&buf, req))
}

func TestWriteRequest_RejectsKeyWithSpace(t *testing.T) {
	var buf bytes.Buffer
	req := NewRequest(CmdGet, "has space", nil)
	require.Error(t, WriteRequest(&buf, req))
}
