package metacache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_WireToken_PlainASCIIStaysLiteral(t *testing.T) {
	token, base64Encoded := NewKey("foo").WireToken()
	assert.Equal(t, "foo", token)
	assert.False(t, base64Encoded)
}

func TestKey_WireToken_NonASCIIIsBase64Encoded(t *testing.T) {
	token, base64Encoded := NewKey("🍺").WireToken()
	assert.True(t, base64Encoded)
	assert.Equal(t, "8J+Nug==", token)
}

func TestKey_WireToken_OverLongPrintableKeyIsBase64Encoded(t *testing.T) {
	long := strings.Repeat("a", 251)
	_, base64Encoded := NewKey(long).WireToken()
	assert.True(t, base64Encoded, "a 251-byte all-printable key exceeds the protocol's raw key limit and must be sent as binary")
}

func TestKey_WireToken_AtLimitPrintableKeyStaysLiteral(t *testing.T) {
	atLimit := strings.Repeat("a", 250)
	token, base64Encoded := NewKey(atLimit).WireToken()
	assert.False(t, base64Encoded)
	assert.Equal(t, atLimit, token)
}
