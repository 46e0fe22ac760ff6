package meta

// Response is a parsed meta protocol reply. Like Request, it is a plain
// data container — interpreting Win/Stale/Conflict semantics is the job of
// the command layers above this package.
type Response struct {
	Status StatusType
	Data   []byte
	Flags  Flags

	// Error is set for ERROR / CLIENT_ERROR / SERVER_ERROR lines. When set,
	// Status and Flags are meaningless.
	Error error
}

// IsSuccess reports success without regard to whether a value followed.
func (r *Response) IsSuccess() bool {
	return r.Status == StatusHD || r.Status == StatusVA
}

// IsMiss reports a cache miss (EN or NF).
func (r *Response) IsMiss() bool {
	return r.Status == StatusEN || r.Status == StatusNF
}

// IsNotStored reports NS — not an error, e.g. add on an existing key.
func (r *Response) IsNotStored() bool {
	return r.Status == StatusNS
}

// IsConflict reports EX — a CAS mismatch.
func (r *Response) IsConflict() bool {
	return r.Status == StatusEX
}

// HasValue reports whether a data block was read (VA only).
func (r *Response) HasValue() bool {
	return r.Status == StatusVA && r.Data != nil
}

// HasError reports a protocol-level error (as opposed to a nominal status).
func (r *Response) HasError() bool {
	return r.Error != nil
}

// HasFlag reports whether the response carries a flag of this type.
func (r *Response) HasFlag(t FlagType) bool {
	return r.Flags.Has(t)
}

// FlagToken returns the token for the first flag of this type.
func (r *Response) FlagToken(t FlagType) (string, bool) {
	return r.Flags.Get(t)
}

// HasWinFlag reports the W flag: this client must repopulate the item.
func (r *Response) HasWinFlag() bool { return r.HasFlag(FlagWin) }

// HasAlreadyWonFlag reports the Z flag: another client already won.
func (r *Response) HasAlreadyWonFlag() bool { return r.HasFlag(FlagAlreadyWon) }

// HasStaleFlag reports the X flag: the value is stale.
func (r *Response) HasStaleFlag() bool { return r.HasFlag(FlagStale) }
