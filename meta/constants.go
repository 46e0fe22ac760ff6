package meta

// CmdType is a 2-character meta protocol command code.
type CmdType string

// FlagType is a single-character flag identifier.
type FlagType byte

// StatusType is a 2-character response status code.
type StatusType string

// Protocol delimiters.
const (
	CRLF  = "\r\n"
	Space = " "
)

// Command codes.
const (
	// CmdGet (mg) retrieves item data and metadata.
	CmdGet CmdType = "mg"

	// CmdSet (ms) stores data under a key.
	CmdSet CmdType = "ms"

	// CmdDelete (md) deletes or invalidates an item.
	CmdDelete CmdType = "md"

	// CmdArithmetic (ma) performs atomic increment/decrement.
	CmdArithmetic CmdType = "ma"
)

// Response status codes.
const (
	StatusHD StatusType = "HD" // success, no value
	StatusVA StatusType = "VA" // success, value follows
	StatusEN StatusType = "EN" // miss (mg)
	StatusNF StatusType = "NF" // miss (md, ma on a key expected to exist)
	StatusNS StatusType = "NS" // not stored
	StatusEX StatusType = "EX" // CAS mismatch
)

// Non-meta error response prefixes/lines.
const (
	ErrorGeneric      = "ERROR"
	ErrorClientPrefix = "CLIENT_ERROR"
	ErrorServerPrefix = "SERVER_ERROR"
)

// Universal flags (all commands).
const (
	// FlagBase64Key marks the key as base64-encoded.
	FlagBase64Key FlagType = 'b'

	// FlagReturnKey echoes the key back in the response.
	FlagReturnKey FlagType = 'k'

	// FlagOpaque carries an opaque token, echoed back verbatim. Format: O<token>.
	FlagOpaque FlagType = 'O'

	// FlagQuiet suppresses the nominal reply (HD/EN/NF); errors still reply.
	FlagQuiet FlagType = 'q'

	// FlagTTL sets (ms/md/ma) or requests (mg) a TTL in seconds. Format: T<seconds>.
	FlagTTL FlagType = 'T'
)

// mg-specific flags.
const (
	FlagReturnValue       FlagType = 'v' // return value (HD -> VA)
	FlagReturnCAS         FlagType = 'c' // return CAS token
	FlagReturnClientFlags FlagType = 'f' // return client flag
	FlagReturnSize        FlagType = 's' // return real size
	FlagReturnTTL         FlagType = 't' // return remaining TTL (-1 = infinite)
	FlagReturnFetched     FlagType = 'h' // return whether previously fetched
	FlagReturnLastAccess  FlagType = 'l' // return seconds since last access
	FlagNoLRUBump         FlagType = 'u' // don't update LRU / last-access
	FlagVivify            FlagType = 'N' // vivify-on-miss TTL. Format: N<seconds>.
	FlagRecache           FlagType = 'R' // recache-if-ttl-below. Format: R<seconds>.
)

// ms-specific flags.
const (
	FlagSize       FlagType = 'S' // data size, required on ms. Format: S<size>.
	FlagClientFlag FlagType = 'F' // client flag to store. Format: F<uint32>.
	FlagCAS        FlagType = 'C' // compare-and-swap token. Format: C<uint64>.
	FlagMode       FlagType = 'M' // storage/arithmetic mode. Format: M<mode>.
	FlagInvalidate FlagType = 'I' // mark-stale instead of storing/deleting
)

// Storage modes, used with FlagMode on ms.
const (
	ModeSet     = "S"
	ModeAdd     = "E"
	ModeReplace = "R"
	ModeAppend  = "A"
	ModePrepend = "P"
)

// ma-specific flags.
const (
	FlagDelta        FlagType = 'D' // delta amount, default 1. Format: D<uint64>.
	FlagInitialValue FlagType = 'J' // initial value on vivify. Format: J<uint64>.
)

// Arithmetic modes, used with FlagMode on ma.
const (
	ModeIncrement = "I"
	ModeDecrement = "D"
)

// Response-only flags, set by the server.
const (
	FlagWin        FlagType = 'W' // client must repopulate
	FlagAlreadyWon FlagType = 'Z' // another client already won
	FlagStale      FlagType = 'X' // value is stale
)

// Protocol limits.
const (
	MinKeyLength    = 1
	MaxKeyLength    = 250
	MaxOpaqueLength = 32
)
