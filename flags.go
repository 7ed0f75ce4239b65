package memcache

import (
	"strconv"
	"time"

	"github.com/cacheflow/memcache/meta"
)

// TimeToLive is a request's expiration: either Indefinite or a concrete
// instant. It encodes to the wire's T<seconds> token. The zero value is
// unset — distinct from Indefinite — and causes Flags.build to omit the
// T token entirely, leaving the item's existing TTL untouched.
type TimeToLive struct {
	set        bool
	indefinite bool
	at         time.Time
}

// Indefinite never expires (T0 on the wire).
func Indefinite() TimeToLive { return TimeToLive{set: true, indefinite: true} }

// ExpiresAt sets the item to expire at t.
func ExpiresAt(t time.Time) TimeToLive { return TimeToLive{set: true, at: t} }

// isSet reports whether the caller specified a TTL at all, as opposed to
// leaving the zero value.
func (t TimeToLive) isSet() bool { return t.set }

// Seconds returns the T<seconds> value relative to now. A non-indefinite
// TTL in the past or present ceils to 1: T0 is reserved for "never
// expires", so an already-elapsed deadline still needs a token that means
// "expire as soon as possible", not "forever".
func (t TimeToLive) Seconds(now time.Time) int {
	if t.indefinite {
		return 0
	}
	secs := int(t.at.Sub(now).Seconds())
	if secs < 1 {
		return 1
	}
	return secs
}

// StorageMode selects meta-set's add/replace/append/prepend/set behavior.
type StorageMode int

const (
	StorageSet StorageMode = iota
	StorageAdd
	StorageReplace
	StorageAppend
	StoragePrepend
)

func (m StorageMode) token() string {
	switch m {
	case StorageAdd:
		return meta.ModeAdd
	case StorageReplace:
		return meta.ModeReplace
	case StorageAppend:
		return meta.ModeAppend
	case StoragePrepend:
		return meta.ModePrepend
	default:
		return meta.ModeSet
	}
}

// ArithmeticMode selects increment or decrement for meta-arithmetic.
type ArithmeticMode int

const (
	Increment ArithmeticMode = iota
	Decrement
)

func (m ArithmeticMode) token() string {
	if m == Decrement {
		return meta.ModeDecrement
	}
	return meta.ModeIncrement
}

// Flags is the typed, command-agnostic set of request options described by
// the protocol's meta flags. Every typed Connection method takes a Flags
// and ignores the fields it has no use for.
type Flags struct {
	// ReturnValue requests the server return the value in the data block
	// (v). Meaningful for Get and, optionally, Arithmetic.
	ReturnValue bool

	// TTL sets or updates the item's expiration (T<seconds>). The zero
	// value is unset: no T token is sent and the item's existing TTL is
	// left untouched. Use Indefinite() for an explicit T0.
	TTL TimeToLive

	// ReturnTTL asks the server to return the remaining TTL (t).
	ReturnTTL bool

	// StorageMode selects meta-set's sub-operation.
	StorageMode StorageMode

	// Delta is the arithmetic amount; must be > 0.
	Delta uint64

	// ArithmeticMode selects increment or decrement.
	ArithmeticMode ArithmeticMode
}

// build turns f into wire-level meta.Flag tokens for the given command,
// in a fixed per-command order: v, t, T for get; T, M for set; D, M, v
// for arithmetic.
func (f Flags) build(cmd meta.CmdType, now time.Time) []meta.Flag {
	var out []meta.Flag

	switch cmd {
	case meta.CmdGet:
		if f.ReturnValue {
			out = append(out, meta.Flag{Type: meta.FlagReturnValue})
		}
		if f.ReturnTTL {
			out = append(out, meta.Flag{Type: meta.FlagReturnTTL})
		}
		if f.TTL.isSet() {
			out = append(out, meta.Flag{Type: meta.FlagTTL, Token: strconv.Itoa(f.TTL.Seconds(now))})
		}

	case meta.CmdSet:
		if f.TTL.isSet() {
			out = append(out, meta.Flag{Type: meta.FlagTTL, Token: strconv.Itoa(f.TTL.Seconds(now))})
		}
		if f.StorageMode != StorageSet {
			out = append(out, meta.Flag{Type: meta.FlagMode, Token: f.StorageMode.token()})
		}

	case meta.CmdArithmetic:
		out = append(out, meta.Flag{Type: meta.FlagDelta, Token: strconv.FormatUint(f.Delta, 10)})
		out = append(out, meta.Flag{Type: meta.FlagMode, Token: f.ArithmeticMode.token()})
		if f.ReturnValue {
			out = append(out, meta.Flag{Type: meta.FlagReturnValue})
		}
	}

	return out
}
