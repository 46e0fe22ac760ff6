// Package meta implements the memcached meta text protocol wire codec:
// request building, serialization, and response parsing for the mg, ms,
// md and ma commands.
//
// This package has no knowledge of connections, pools, servers, or
// hashing — it only turns a Request into bytes and bytes into a Response.
// Everything above that (routing, retries, anti-dogpiling policy) lives
// in the parent package.
//
// A request is built with NewRequest and its chainable Add* methods:
//
//	req := meta.NewRequest(meta.CmdGet, "user:42", nil).
//		AddReturnValue().
//		AddReturnTTL().
//		AddOpaque("abc123")
//
//	if err := meta.WriteRequest(conn, req); err != nil {
//		return err
//	}
//
//	resp, err := meta.ReadResponse(bufio.NewReader(conn))
//	if err != nil {
//		return err
//	}
//	if resp.HasError() {
//		return resp.Error
//	}
//	if resp.IsMiss() {
//		return ErrCacheMiss
//	}
//
// Response structs come from a pool (GetResponse/PutResponse); each
// response's Data is a freshly allocated slice, so it stays valid across
// later ReadResponse calls. Callers must not use resp after a PutResponse
// call.
package meta
