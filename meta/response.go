package meta

import "strings"

// Response is a single parsed meta protocol response: status line, optional
// flags, optional value or debug data. It carries no retry or connection
// logic — that lives above this package.
type Response struct {
	// Status is the 2-character response code: HD, VA, EN, NF, NS, EX, MN, ME.
	// Zero value ("") when Error is set.
	Status StatusType

	// Data is the value for a VA response, or the raw key=value text for a
	// ME response (see ParseDebugParams). Nil otherwise.
	Data []byte

	// Flags holds every flag the server returned, in wire order.
	Flags Flags

	// Error is set when the line was ERROR, CLIENT_ERROR or SERVER_ERROR
	// instead of a meta status. Status and Flags are unset in that case.
	Error error
}

// IsSuccess reports whether Status is one of the non-error, non-miss codes.
func (r *Response) IsSuccess() bool {
	switch r.Status {
	case StatusHD, StatusVA, StatusMN, StatusME:
		return true
	default:
		return false
	}
}

// IsMiss reports a cache miss (EN from mg, or ma/md returning NF).
func (r *Response) IsMiss() bool {
	return r.Status == StatusEN || r.Status == StatusNF
}

// IsNotStored reports that an add/replace precondition was not met. Not an error.
func (r *Response) IsNotStored() bool {
	return r.Status == StatusNS
}

// IsCASMismatch reports that a CAS token did not match the stored value.
func (r *Response) IsCASMismatch() bool {
	return r.Status == StatusEX
}

// HasValue reports whether Data holds an item value (a VA response).
func (r *Response) HasValue() bool {
	return r.Status == StatusVA && r.Data != nil
}

// HasError reports whether the response is a protocol error line.
func (r *Response) HasError() bool {
	return r.Error != nil
}

// HasFlag reports whether the response carries a flag of the given type.
func (r *Response) HasFlag(flagType FlagType) bool {
	return r.Flags.Has(flagType)
}

// GetFlagToken returns the token of the first flag of the given type.
func (r *Response) GetFlagToken(flagType FlagType) (token []byte, ok bool) {
	return r.Flags.Get(flagType)
}

// HasWinFlag reports the W flag: caller won the right to recache or vivify.
func (r *Response) HasWinFlag() bool {
	return r.HasFlag(FlagWin)
}

// HasStaleFlag reports the X flag: the returned item is stale.
func (r *Response) HasStaleFlag() bool {
	return r.HasFlag(FlagStale)
}

// HasAlreadyWonFlag reports the Z flag: another caller already holds the win.
func (r *Response) HasAlreadyWonFlag() bool {
	return r.HasFlag(FlagAlreadyWon)
}

// ParseDebugParams parses the key=value pairs in a ME response's Data, e.g.
// "size=1024 ttl=3600 la=9". Malformed tokens (no '=') are skipped.
func ParseDebugParams(data []byte) map[string]string {
	params := make(map[string]string)
	for _, part := range strings.Fields(string(data)) {
		if key, value, found := strings.Cut(part, "="); found {
			params[key] = value
		}
	}
	return params
}
