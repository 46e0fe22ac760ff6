// Package ring implements ketama consistent hashing: the scheme memcached
// client libraries converged on for distributing keys across a set of
// servers with minimal remapping when the server set changes.
package ring

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"sort"
)

// VnodesPerServer is the number of virtual nodes placed on the ring for
// each server, matching the de facto ketama default.
const VnodesPerServer = 160

type vnode struct {
	hash   uint32
	server string
}

// Ring maps routing tokens to servers via ketama consistent hashing. The
// zero value is not usable; build one with New.
type Ring struct {
	vnodes  []vnode
	servers []string
}

// New builds a Ring over the given server addresses. Addresses are
// deduplicated; order does not affect the resulting ring.
func New(servers []string) *Ring {
	r := &Ring{}
	seen := make(map[string]bool, len(servers))
	for _, server := range servers {
		if !seen[server] {
			seen[server] = true
			r.servers = append(r.servers, server)
		}
	}
	r.vnodes = make([]vnode, 0, len(r.servers)*VnodesPerServer)

	for _, server := range r.servers {
		for i := 0; i < VnodesPerServer/4; i++ {
			for _, h := range ketamaHashes(fmt.Sprintf("%s-%d", server, i)) {
				r.vnodes = append(r.vnodes, vnode{hash: h, server: server})
			}
		}
	}

	sort.Slice(r.vnodes, func(i, j int) bool { return r.vnodes[i].hash < r.vnodes[j].hash })
	return r
}

// ketamaHashes splits the MD5 digest of key into four big-endian uint32
// chunks, each usable as an independent ring point (the standard ketama
// technique for getting more ring coverage out of one MD5 call).
func ketamaHashes(key string) [4]uint32 {
	sum := md5.Sum([]byte(key))
	var out [4]uint32
	for i := range out {
		out[i] = binary.BigEndian.Uint32(sum[i*4 : i*4+4])
	}
	return out
}

// Lookup returns the server owning routingToken: the server whose ring
// point is the smallest at-or-above hash(routingToken), wrapping around to
// the first ring point if the token's hash exceeds every vnode's hash.
//
// Lookup returns false if the ring has no servers.
func (r *Ring) Lookup(routingToken []byte) (server string, ok bool) {
	if len(r.vnodes) == 0 {
		return "", false
	}

	h := keyHash(routingToken)
	i := sort.Search(len(r.vnodes), func(i int) bool { return r.vnodes[i].hash >= h })
	if i == len(r.vnodes) {
		i = 0
	}
	return r.vnodes[i].server, true
}

func keyHash(key []byte) uint32 {
	sum := md5.Sum(key)
	return binary.BigEndian.Uint32(sum[0:4])
}

// Servers returns the distinct server addresses backing this ring, in the
// order they were passed to New.
func (r *Ring) Servers() []string {
	return append([]string(nil), r.servers...)
}

// Empty reports whether the ring has no servers.
func (r *Ring) Empty() bool {
	return len(r.vnodes) == 0
}
