package meta

// CmdType represents a meta protocol command (2 characters).
type CmdType string

// FlagType represents a single-character flag identifier.
type FlagType byte

// StatusType represents a response status code (2 characters).
type StatusType string

// Protocol delimiters.
const (
	CRLF  = "\r\n"
	Space = " "
)

// Commands. Each has its own valid flag set and response statuses; see the
// flag constants below for what each character means on the wire.
const (
	// CmdGet: mg <key> <flags>*\r\n
	// Response: VA <size> <flags>*\r\n<data>\r\n on hit with v, HD on hit
	// without v, EN on miss.
	CmdGet CmdType = "mg"

	// CmdSet: ms <key> <size> <flags>*\r\n<data>\r\n
	// Response: HD stored, NS not stored (add/replace condition unmet, or
	// append/prepend on missing key), EX CAS mismatch.
	CmdSet CmdType = "ms"

	// CmdDelete: md <key> <flags>*\r\n
	// Response: HD deleted, NF not found, EX CAS mismatch.
	CmdDelete CmdType = "md"

	// CmdArithmetic: ma <key> <flags>*\r\n
	// Response: VA <size> on success with v, HD on success without v, NF
	// not found and no auto-create.
	CmdArithmetic CmdType = "ma"

	// CmdDebug: me <key> <flags>*\r\n
	// Response: ME <key=value>* — human-readable item metadata.
	CmdDebug CmdType = "me"

	// CmdNoOp: mn\r\n, no key or flags.
	// Response: MN. Used to mark the end of a pipelined, quiet batch.
	CmdNoOp CmdType = "mn"
)

// Response status codes.
const (
	StatusHD StatusType = "HD" // success, no value
	StatusVA StatusType = "VA" // success, value follows
	StatusEN StatusType = "EN" // miss (mg)
	StatusNF StatusType = "NF" // not found (md, ma)
	StatusNS StatusType = "NS" // not stored (ms add/replace/append/prepend condition unmet)
	StatusEX StatusType = "EX" // CAS mismatch
	StatusMN StatusType = "MN" // no-op response
	StatusME StatusType = "ME" // debug response
)

// Non-meta error responses. These share the classic text protocol's error
// lines and can appear in place of any meta response.
const (
	ErrorGeneric      = "ERROR"        // unknown command
	ErrorClientPrefix = "CLIENT_ERROR" // invalid client input; parser state is undefined, close the connection
	ErrorServerPrefix = "SERVER_ERROR" // server-side failure; connection stays usable
)

// Universal flags, valid on every command.
const (
	FlagBase64Key FlagType = 'b' // key is base64-encoded
	FlagReturnKey FlagType = 'k' // echo the key in the response
	FlagOpaque    FlagType = 'O' // O<token>, echoed back for request matching, max 32 bytes
	FlagQuiet     FlagType = 'q' // suppress nominal responses (HD, EN, NF); errors still returned
)

// mg / ma metadata-return flags.
const (
	FlagReturnCAS         FlagType = 'c' // return the CAS token
	FlagReturnClientFlags FlagType = 'f' // return the stored client flags (uint32)
	FlagReturnSize        FlagType = 's' // return the value size
	FlagReturnTTL         FlagType = 't' // return remaining TTL in seconds, -1 if infinite
	FlagReturnValue       FlagType = 'v' // return the value; VA replaces HD
	FlagReturnHit         FlagType = 'h' // return whether the item was hit before (0 or 1)
	FlagReturnLastAccess  FlagType = 'l' // return seconds since last access
)

// ms / md modification flags.
const (
	FlagCAS         FlagType = 'C' // C<cas>, store/delete only if CAS matches, else EX
	FlagExplicitCAS FlagType = 'E' // E<cas>, set the stored CAS value explicitly
	FlagTTL         FlagType = 'T' // T<seconds>, 0 or omitted means infinite
	FlagClientFlags FlagType = 'F' // F<flags>, opaque uint32 stored alongside the value
)

// mg-specific flags.
const (
	FlagNoLRUBump FlagType = 'u' // don't bump LRU or update last-access time
	FlagRecache   FlagType = 'R' // R<seconds>, win flag if remaining TTL is below this
	FlagVivify    FlagType = 'N' // N<seconds>, create a stub item on miss with this TTL, win flag
)

// ms-specific flags.
const (
	FlagMode       FlagType = 'M' // M<mode>, storage mode, see Mode* below
	FlagInvalidate FlagType = 'I' // mark stale instead of storing/deleting
)

// Storage modes, used with FlagMode on ms.
const (
	ModeSet     = "S" // store unconditionally (default)
	ModeAdd     = "E" // only if key absent, else NS
	ModeReplace = "R" // only if key present, else NS
	ModeAppend  = "A" // append to existing value, else NS
	ModePrepend = "P" // prepend to existing value, else NS
)

// ma-specific flags.
const (
	FlagDelta        FlagType = 'D' // D<delta>, increment/decrement amount, default 1
	FlagInitialValue FlagType = 'J' // J<initial>, seed value when auto-created via FlagVivify
)

// Arithmetic modes, used with FlagMode on ma.
const (
	ModeIncrement    = "I"
	ModeIncrementAlt = "+"
	ModeDecrement    = "D" // stops at 0, never underflows
	ModeDecrementAlt = "-"
)

// md-specific flags.
const (
	FlagRemoveValue FlagType = 'x' // drop the value but keep metadata, reset client flags to 0
)

// Flags the server attaches to responses; never sent by a client.
const (
	FlagWin        FlagType = 'W' // caller owns the recache/vivify miss, should repopulate
	FlagStale      FlagType = 'X' // item is marked stale
	FlagAlreadyWon FlagType = 'Z' // another caller already holds the win
)

// Protocol limits.
const (
	MaxKeyLength    = 250
	MinKeyLength    = 1
	MaxOpaqueLength = 32
	MaxValueSize    = 1024 * 1024
)
