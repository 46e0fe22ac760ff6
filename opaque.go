package metacache

import (
	"strconv"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// opaqueCounter is hashed, not used directly, so opaque tokens don't leak
// call volume and stay short regardless of how large the counter grows.
var opaqueCounter uint64

// generateOpaque returns a short token suitable for O<token>, unique across
// concurrent calls within this process. The teacher generates opaque tokens
// from crypto/rand; this repoints that concern to xxh3, already part of the
// dependency set for ring hashing's sibling concern, so the only source of
// entropy needed is a counter rather than a syscall per call.
func generateOpaque() string {
	n := atomic.AddUint64(&opaqueCounter, 1)
	var seed [8]byte
	for i := range seed {
		seed[i] = byte(n >> (8 * i))
	}
	return strconv.FormatUint(xxh3.Hash(seed[:]), 36)
}
