package meta

import "strconv"

// Request is a meta protocol command: a verb, a key, an optional data
// block (ms only), and an ordered set of flags. It carries no serialization
// logic — that's WriteRequest's job — so it stays cheap to build and easy
// to unit-test in isolation.
type Request struct {
	Command CmdType
	Key     string
	Data    []byte
	Flags   Flags
}

// NewRequest builds a Request. Extra flags can be attached with the
// chainable Add* helpers below, or passed directly.
func NewRequest(cmd CmdType, key string, data []byte, flags ...Flag) *Request {
	return &Request{
		Command: cmd,
		Key:     key,
		Data:    data,
		Flags:   Flags(flags),
	}
}

// HasFlag reports whether the request already carries a flag of this type.
func (r *Request) HasFlag(t FlagType) bool {
	return r.Flags.Has(t)
}

// AddFlag appends a flag with no token.
func (r *Request) AddFlag(t FlagType) *Request {
	r.Flags = append(r.Flags, Flag{Type: t})
	return r
}

// AddFlagToken appends a flag with a string token.
func (r *Request) AddFlagToken(t FlagType, token string) *Request {
	r.Flags = append(r.Flags, Flag{Type: t, Token: token})
	return r
}

// AddFlagInt appends a flag with an integer token.
func (r *Request) AddFlagInt(t FlagType, v int) *Request {
	return r.AddFlagToken(t, strconv.Itoa(v))
}

// AddReturnValue requests the value (v).
func (r *Request) AddReturnValue() *Request { return r.AddFlag(FlagReturnValue) }

// AddReturnCAS requests the CAS token (c).
func (r *Request) AddReturnCAS() *Request { return r.AddFlag(FlagReturnCAS) }

// AddReturnTTL requests the remaining TTL (t).
func (r *Request) AddReturnTTL() *Request { return r.AddFlag(FlagReturnTTL) }

// AddTTL sets the item TTL in seconds (T<ttl>).
func (r *Request) AddTTL(ttl int) *Request { return r.AddFlagInt(FlagTTL, ttl) }

// AddOpaque attaches an opaque token (O<token>), echoed back verbatim.
func (r *Request) AddOpaque(token string) *Request { return r.AddFlagToken(FlagOpaque, token) }

// AddRecache sets the recache-if-below threshold in seconds (R<ttl>).
func (r *Request) AddRecache(ttl int) *Request { return r.AddFlagInt(FlagRecache, ttl) }

// AddVivify sets the vivify-on-miss TTL in seconds (N<ttl>).
func (r *Request) AddVivify(ttl int) *Request { return r.AddFlagInt(FlagVivify, ttl) }

// AddQuiet flips on no-reply semantics (q).
func (r *Request) AddQuiet() *Request { return r.AddFlag(FlagQuiet) }

// AddBase64Key marks the key as base64-encoded (b).
func (r *Request) AddBase64Key() *Request { return r.AddFlag(FlagBase64Key) }

// AddMode sets the storage/arithmetic mode (M<mode>).
func (r *Request) AddMode(mode string) *Request { return r.AddFlagToken(FlagMode, mode) }

// AddCAS sets the compare-and-swap token (C<cas>).
func (r *Request) AddCAS(cas uint64) *Request {
	return r.AddFlagToken(FlagCAS, strconv.FormatUint(cas, 10))
}

// AddInvalidate marks the operation as invalidate-instead-of-store (I),
// for ms's mark-stale-on-cas-mismatch use, where the item TTL travels
// separately in its own T<ttl> flag.
func (r *Request) AddInvalidate() *Request { return r.AddFlag(FlagInvalidate) }

// AddInvalidateTTL marks a meta_delete as mark-stale-on-delete with the
// given stale TTL in seconds, carried on a single I<ttl> token.
func (r *Request) AddInvalidateTTL(ttl int) *Request { return r.AddFlagInt(FlagInvalidate, ttl) }

// AddSize sets the required data-size flag for ms (S<size>).
func (r *Request) AddSize(size int) *Request { return r.AddFlagInt(FlagSize, size) }

// AddClientFlag sets the stored client flag (F<flag>).
func (r *Request) AddClientFlag(flag uint32) *Request {
	return r.AddFlagToken(FlagClientFlag, strconv.FormatUint(uint64(flag), 10))
}

// AddDelta sets the arithmetic delta (D<delta>), default 1 if omitted.
func (r *Request) AddDelta(delta uint64) *Request {
	return r.AddFlagToken(FlagDelta, strconv.FormatUint(delta, 10))
}

// AddInitialValue sets the vivify initial value for ma (J<value>).
func (r *Request) AddInitialValue(v uint64) *Request {
	return r.AddFlagToken(FlagInitialValue, strconv.FormatUint(v, 10))
}
