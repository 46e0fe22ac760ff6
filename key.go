package metacache

import (
	"encoding/base64"

	"github.com/go-metacache/metacache/meta"
)

// Key identifies an item. RoutingToken determines which server the key
// hashes to; StorageToken is the literal token placed on the wire.
// Domain is an optional tag carried with the key; nothing in this package
// reads it, and it plays no part in routing or wire encoding.
//
// Most callers only need NewKey: RoutingToken and StorageToken are the
// same bytes unless a caller is deliberately routing on a prefix or
// suffix distinct from the key it stores under.
type Key struct {
	RoutingToken []byte
	StorageToken []byte
	Domain       string
}

// NewKey builds a Key whose routing and storage tokens are identical.
func NewKey(key string) Key {
	return Key{RoutingToken: []byte(key), StorageToken: []byte(key)}
}

// NewKeyWithDomain builds a Key tagged with a domain.
func NewKeyWithDomain(key, domain string) Key {
	return Key{RoutingToken: []byte(key), StorageToken: []byte(key), Domain: domain}
}

// String returns the raw storage token as a string, for logging. The token
// placed on the wire comes from WireToken and is base64 for binary keys.
func (k Key) String() string {
	return string(k.StorageToken)
}

// WireToken returns the token to place on the wire command line, along
// with whether the b (binary key) flag must be set. A key is written
// base64 when it contains bytes the text protocol cannot carry literally
// (whitespace, control characters, anything outside ASCII) or when it's
// longer than the protocol's raw-key limit.
func (k Key) WireToken() (token string, base64Encoded bool) {
	if isPlainKey(k.StorageToken) {
		return string(k.StorageToken), false
	}
	return base64Encode(k.StorageToken), true
}

func base64Encode(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func isPlainKey(key []byte) bool {
	if len(key) == 0 || len(key) > meta.MaxKeyLength {
		return false
	}
	for _, b := range key {
		if b <= ' ' || b >= 0x7f {
			return false
		}
	}
	return true
}
