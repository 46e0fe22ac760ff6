package metacache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-metacache/metacache/meta"
)

func unexpectedStatusErr(status meta.StatusType) error {
	return fmt.Errorf("metacache: unexpected response status: %s", status)
}

// RequestFlags is the full set of per-call knobs the meta command layer
// can assemble onto a request, built from the typed fields below rather
// than raw meta.Flag values so callers never hand-encode tokens.
type RequestFlags struct {
	TTL              *time.Duration
	ReturnValue      bool
	ReturnCAS        bool
	ReturnTTL        bool
	ReturnClientFlag bool
	ReturnSize       bool
	ReturnFetched    bool
	ReturnLastAccess bool
	NoLRUBump        bool
	Opaque           string
	Quiet            bool
	Mode             string
	CAS              *uint64
	Invalidate       bool
	InvalidateTTL    *time.Duration
	Vivify           *time.Duration
	Recache          *time.Duration
	ClientFlag       *uint32
	Delta            *uint64
	InitialValue     *uint64
}

// apply assembles flags onto req in a fixed order, keeping wire output
// deterministic across calls with identical RequestFlags.
func (f RequestFlags) apply(req *meta.Request) {
	if f.ReturnValue {
		req.AddReturnValue()
	}
	if f.ReturnCAS {
		req.AddReturnCAS()
	}
	if f.ReturnTTL {
		req.AddReturnTTL()
	}
	if f.ReturnClientFlag {
		req.AddFlag(meta.FlagReturnClientFlags)
	}
	if f.ReturnSize {
		req.AddFlag(meta.FlagReturnSize)
	}
	if f.ReturnFetched {
		req.AddFlag(meta.FlagReturnFetched)
	}
	if f.ReturnLastAccess {
		req.AddFlag(meta.FlagReturnLastAccess)
	}
	if f.NoLRUBump {
		req.AddFlag(meta.FlagNoLRUBump)
	}
	if f.TTL != nil {
		req.AddTTL(int(f.TTL.Seconds()))
	}
	if f.Vivify != nil {
		req.AddVivify(int(f.Vivify.Seconds()))
	}
	if f.Recache != nil {
		req.AddRecache(int(f.Recache.Seconds()))
	}
	if f.ClientFlag != nil {
		req.AddClientFlag(*f.ClientFlag)
	}
	if f.CAS != nil {
		req.AddCAS(*f.CAS)
	}
	if f.Mode != "" {
		req.AddMode(f.Mode)
	}
	if f.Delta != nil {
		req.AddDelta(*f.Delta)
	}
	if f.InitialValue != nil {
		req.AddInitialValue(*f.InitialValue)
	}
	if f.Invalidate {
		req.AddInvalidate()
	}
	if f.InvalidateTTL != nil {
		req.AddInvalidateTTL(int(f.InvalidateTTL.Seconds()))
	}
	if f.Opaque != "" {
		req.AddOpaque(f.Opaque)
	}
	if f.Quiet {
		req.AddQuiet()
	}
}

// ResponseFlags is a decoded view over a meta.Response's flags.
type ResponseFlags struct {
	CAS           uint64
	HasCAS        bool
	Fetched       bool
	LastAccess    int
	TTL           int
	HasTTL        bool
	ClientFlag    uint32
	HasClientFlag bool
	Win           bool
	AlreadyWon    bool
	Stale         bool
	RealSize      int
	HasRealSize   bool
	Opaque        string
}

func parseResponseFlags(resp *meta.Response) ResponseFlags {
	var rf ResponseFlags

	if tok, ok := resp.FlagToken(meta.FlagReturnCAS); ok {
		if v, err := strconv.ParseUint(tok, 10, 64); err == nil {
			rf.CAS, rf.HasCAS = v, true
		}
	}
	if resp.HasFlag(meta.FlagReturnFetched) {
		rf.Fetched = true
	}
	if tok, ok := resp.FlagToken(meta.FlagReturnLastAccess); ok {
		if v, err := strconv.Atoi(tok); err == nil {
			rf.LastAccess = v
		}
	}
	if tok, ok := resp.FlagToken(meta.FlagReturnTTL); ok {
		if v, err := strconv.Atoi(tok); err == nil {
			rf.TTL, rf.HasTTL = v, true
		}
	}
	if tok, ok := resp.FlagToken(meta.FlagReturnClientFlags); ok {
		if v, err := strconv.ParseUint(tok, 10, 32); err == nil {
			rf.ClientFlag, rf.HasClientFlag = uint32(v), true
		}
	}
	rf.Win = resp.HasWinFlag()
	rf.AlreadyWon = resp.HasAlreadyWonFlag()
	rf.Stale = resp.HasStaleFlag()
	if tok, ok := resp.FlagToken(meta.FlagReturnSize); ok {
		if v, err := strconv.Atoi(tok); err == nil {
			rf.RealSize, rf.HasRealSize = v, true
		}
	}
	if tok, ok := resp.FlagToken(meta.FlagOpaque); ok {
		rf.Opaque = tok
	}

	return rf
}

// ResultKind distinguishes the shape of a ReadResponse. Go has no sum
// types, so this is the teacher's pattern for emulating one: a Kind enum
// plus the fields relevant to it.
type ResultKind int

const (
	KindMiss ResultKind = iota
	KindValue
	KindSuccess
	KindNotStored
	KindConflict
)

// ReadResult is the outcome of a read-class meta command (mg, or ma used
// read-only).
type ReadResult struct {
	Kind  ResultKind
	Value []byte
	Flags ResponseFlags
}

func (r ReadResult) IsMiss() bool    { return r.Kind == KindMiss }
func (r ReadResult) IsSuccess() bool { return r.Kind == KindValue || r.Kind == KindSuccess }

// WriteResult is the outcome of a write-class meta command (ms, md, ma
// used as a mutation).
type WriteResult struct {
	Kind  ResultKind
	Flags ResponseFlags
}

func (r WriteResult) IsSuccess() bool   { return r.Kind == KindSuccess }
func (r WriteResult) IsNotStored() bool { return r.Kind == KindNotStored }
func (r WriteResult) IsConflict() bool  { return r.Kind == KindConflict }

// MetaGet builds and interprets an mg command.
func MetaGet(key Key, flags RequestFlags) (*meta.Request, func(*meta.Response) (ReadResult, error)) {
	token, base64Encoded := key.WireToken()
	req := meta.NewRequest(meta.CmdGet, token, nil)
	if base64Encoded {
		req.AddBase64Key()
	}
	flags.apply(req)

	decode := func(resp *meta.Response) (ReadResult, error) {
		if resp.HasError() {
			return ReadResult{}, resp.Error
		}
		rf := parseResponseFlags(resp)
		switch {
		case resp.IsMiss():
			return ReadResult{Kind: KindMiss, Flags: rf}, nil
		case resp.HasValue():
			return ReadResult{Kind: KindValue, Value: resp.Data, Flags: rf}, nil
		case resp.IsSuccess():
			return ReadResult{Kind: KindSuccess, Flags: rf}, nil
		default:
			return ReadResult{}, unexpectedStatusErr(resp.Status)
		}
	}
	return req, decode
}

// MetaSet builds and interprets an ms command.
func MetaSet(key Key, value []byte, flags RequestFlags) (*meta.Request, func(*meta.Response) (WriteResult, error)) {
	token, base64Encoded := key.WireToken()
	req := meta.NewRequest(meta.CmdSet, token, value)
	req.AddSize(len(value))
	if base64Encoded {
		req.AddBase64Key()
	}
	flags.apply(req)

	decode := func(resp *meta.Response) (WriteResult, error) {
		if resp.HasError() {
			return WriteResult{}, resp.Error
		}
		rf := parseResponseFlags(resp)
		switch {
		case resp.IsNotStored():
			return WriteResult{Kind: KindNotStored, Flags: rf}, nil
		case resp.IsConflict():
			return WriteResult{Kind: KindConflict, Flags: rf}, nil
		case resp.IsSuccess():
			return WriteResult{Kind: KindSuccess, Flags: rf}, nil
		default:
			return WriteResult{}, unexpectedStatusErr(resp.Status)
		}
	}
	return req, decode
}

// MetaDelete builds and interprets an md command.
func MetaDelete(key Key, flags RequestFlags) (*meta.Request, func(*meta.Response) (WriteResult, error)) {
	token, base64Encoded := key.WireToken()
	req := meta.NewRequest(meta.CmdDelete, token, nil)
	if base64Encoded {
		req.AddBase64Key()
	}
	flags.apply(req)

	decode := func(resp *meta.Response) (WriteResult, error) {
		if resp.HasError() {
			return WriteResult{}, resp.Error
		}
		rf := parseResponseFlags(resp)
		if resp.IsMiss() {
			return WriteResult{Kind: KindNotStored, Flags: rf}, nil
		}
		if resp.IsConflict() {
			return WriteResult{Kind: KindConflict, Flags: rf}, nil
		}
		if resp.IsSuccess() {
			return WriteResult{Kind: KindSuccess, Flags: rf}, nil
		}
		return WriteResult{}, unexpectedStatusErr(resp.Status)
	}
	return req, decode
}

// MetaArithmetic builds and interprets an ma command.
func MetaArithmetic(key Key, flags RequestFlags) (*meta.Request, func(*meta.Response) (ReadResult, error)) {
	token, base64Encoded := key.WireToken()
	req := meta.NewRequest(meta.CmdArithmetic, token, nil)
	if base64Encoded {
		req.AddBase64Key()
	}
	flags.apply(req)

	decode := func(resp *meta.Response) (ReadResult, error) {
		if resp.HasError() {
			return ReadResult{}, resp.Error
		}
		rf := parseResponseFlags(resp)
		switch {
		case resp.IsMiss():
			return ReadResult{Kind: KindMiss, Flags: rf}, nil
		case resp.HasValue():
			return ReadResult{Kind: KindValue, Value: resp.Data, Flags: rf}, nil
		case resp.IsSuccess():
			return ReadResult{Kind: KindSuccess, Flags: rf}, nil
		default:
			return ReadResult{}, unexpectedStatusErr(resp.Status)
		}
	}
	return req, decode
}
