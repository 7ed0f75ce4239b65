package meta

// Request is a single meta-protocol command line, plus its optional data
// block. It is a plain data container — WriteRequest does the encoding.
type Request struct {
	// Command is the 2-character command code: mg, ms, md, ma, me, mn.
	Command CmdType

	// Key is the cache key. Empty only for CmdNoOp.
	Key string

	// Data is the value to store. Only meaningful for CmdSet; its length,
	// not a separate field, is what goes on the wire.
	Data []byte

	// Flags carries every flag token for the request, in wire order.
	Flags []Flag
}

// Flag is one protocol flag with its optional token, e.g. `v` (Flag{Type:
// FlagReturnValue}) or `T60` (Flag{Type: FlagTTL, Token: "60"}).
type Flag struct {
	Type  FlagType
	Token string
}

// NewRequest builds a Request. key and data are ignored where the command
// doesn't use them (CmdNoOp ignores both; CmdGet/CmdDelete/CmdArithmetic/
// CmdDebug ignore data).
func NewRequest(cmd CmdType, key string, data []byte, flags ...Flag) *Request {
	return &Request{Command: cmd, Key: key, Data: data, Flags: flags}
}

// HasFlag reports whether the request already carries a flag of the given type.
func (r *Request) HasFlag(flagType FlagType) bool {
	_, ok := r.GetFlag(flagType)
	return ok
}

// GetFlag returns the first flag of the given type, if present.
func (r *Request) GetFlag(flagType FlagType) (Flag, bool) {
	for _, f := range r.Flags {
		if f.Type == flagType {
			return f, true
		}
	}
	return Flag{}, false
}

// AddFlag appends a flag, preserving wire order.
func (r *Request) AddFlag(flag Flag) {
	r.Flags = append(r.Flags, flag)
}
