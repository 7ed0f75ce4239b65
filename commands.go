package memcache

import (
	"context"
	"strconv"

	"github.com/cacheflow/memcache/internal/bufpool"
	"github.com/cacheflow/memcache/meta"
	"github.com/cockroachdb/errors"
)

// valueBuffers backs SetValue's Value-to-bytes encoding so repeated typed
// stores don't allocate a fresh buffer per call.
var valueBuffers = bufpool.New(64)

// Item is the typed result of a Get, and the typed input to Set and its
// storage-mode variants.
type Item struct {
	Key   string
	Value []byte
	Found bool

	// TTLRemaining is populated when the request asked for ReturnTTL.
	// -1 means indefinite.
	TTLRemaining int
}

// Get retrieves key. Found is false on a miss (EN); any other status is a
// ProtocolError.
func (c *Connection) Get(ctx context.Context, key string, flags Flags) (Item, error) {
	flags.ReturnValue = true
	req := meta.NewRequest(meta.CmdGet, key, nil, flags.build(meta.CmdGet, c.now())...)
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return Item{}, err
	}
	if resp.HasError() {
		return Item{}, newProtocolError(resp.Error)
	}

	switch resp.Status {
	case meta.StatusEN:
		return Item{Key: key, Found: false}, nil
	case meta.StatusVA:
		item := Item{Key: key, Value: resp.Data, Found: true, TTLRemaining: -1}
		if tok, ok := resp.GetFlagToken(meta.FlagReturnTTL); ok {
			item.TTLRemaining = atoiOrDefault(string(tok), -1)
		}
		return item, nil
	default:
		return Item{}, newProtocolError(errors.Newf("get: unexpected status %s", resp.Status))
	}
}

// Touch updates key's TTL without transferring the value (ReturnValue is
// forced off). EN (miss) maps to KeyNotFoundError.
func (c *Connection) Touch(ctx context.Context, key string, ttl TimeToLive) error {
	flags := Flags{TTL: ttl, ReturnValue: false}
	req := meta.NewRequest(meta.CmdGet, key, nil, flags.build(meta.CmdGet, c.now())...)
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	switch resp.Status {
	case meta.StatusHD:
		return nil
	case meta.StatusEN:
		return &KeyNotFoundError{Key: key}
	default:
		return newProtocolError(errors.Newf("touch: unexpected status %s", resp.Status))
	}
}

// Debug issues the meta-debug (me) command and returns the server's raw
// key=value item metadata.
func (c *Connection) Debug(ctx context.Context, key string) (map[string]string, error) {
	req := meta.NewRequest(meta.CmdDebug, key, nil)
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.HasError() {
		return nil, newProtocolError(resp.Error)
	}
	if resp.Status != meta.StatusME {
		return nil, newProtocolError(errors.Newf("debug: unexpected status %s", resp.Status))
	}
	return meta.ParseDebugParams(resp.Data), nil
}

func (c *Connection) set(ctx context.Context, key string, value []byte, flags Flags) (*meta.Response, error) {
	req := meta.NewRequest(meta.CmdSet, key, value, flags.build(meta.CmdSet, c.now())...)
	return c.Submit(ctx, req)
}

// SetValue encodes v through the Value capability and stores it
// unconditionally, the same as Set. The encoding buffer is pooled, so this
// is the preferred entry point for repeated typed stores (Uint64 counters,
// structured Bytes) over building a []byte by hand.
func (c *Connection) SetValue(ctx context.Context, key string, v Value, ttl TimeToLive) error {
	buf := valueBuffers.Get()
	defer valueBuffers.Put(buf)

	encoded := v.WriteTo(buf.Bytes())
	return c.Set(ctx, key, encoded, ttl)
}

// GetValue retrieves key and decodes it into v. Found is false on a miss;
// ProtocolError if the stored bytes don't parse as v's type.
func (c *Connection) GetValue(ctx context.Context, key string, v Value) (found bool, err error) {
	item, err := c.Get(ctx, key, Flags{})
	if err != nil {
		return false, err
	}
	if !item.Found {
		return false, nil
	}
	if !v.ReadFrom(item.Value) {
		return false, newProtocolError(errors.Newf("getvalue: unparsable value %q", item.Value))
	}
	return true, nil
}

// Set stores key unconditionally. Any status but HD is a ProtocolError.
func (c *Connection) Set(ctx context.Context, key string, value []byte, ttl TimeToLive) error {
	resp, err := c.set(ctx, key, value, Flags{TTL: ttl, StorageMode: StorageSet})
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	if resp.Status != meta.StatusHD {
		return newProtocolError(errors.Newf("set: unexpected status %s", resp.Status))
	}
	return nil
}

// Add stores key only if absent. NS maps to KeyExistsError.
func (c *Connection) Add(ctx context.Context, key string, value []byte, ttl TimeToLive) error {
	resp, err := c.set(ctx, key, value, Flags{TTL: ttl, StorageMode: StorageAdd})
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	switch resp.Status {
	case meta.StatusHD:
		return nil
	case meta.StatusNS:
		return &KeyExistsError{Key: key}
	default:
		return newProtocolError(errors.Newf("add: unexpected status %s", resp.Status))
	}
}

// Replace stores key only if present. NS maps to KeyNotFoundError.
func (c *Connection) Replace(ctx context.Context, key string, value []byte, ttl TimeToLive) error {
	resp, err := c.set(ctx, key, value, Flags{TTL: ttl, StorageMode: StorageReplace})
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	switch resp.Status {
	case meta.StatusHD:
		return nil
	case meta.StatusNS:
		return &KeyNotFoundError{Key: key}
	default:
		return newProtocolError(errors.Newf("replace: unexpected status %s", resp.Status))
	}
}

// Append appends value to the existing item. NS (missing key) maps to
// KeyNotFoundError — there is no item to append to.
func (c *Connection) Append(ctx context.Context, key string, value []byte) error {
	resp, err := c.set(ctx, key, value, Flags{StorageMode: StorageAppend})
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	switch resp.Status {
	case meta.StatusHD:
		return nil
	case meta.StatusNS:
		return &KeyNotFoundError{Key: key}
	default:
		return newProtocolError(errors.Newf("append: unexpected status %s", resp.Status))
	}
}

// Prepend prepends value to the existing item. Same NS mapping as Append.
func (c *Connection) Prepend(ctx context.Context, key string, value []byte) error {
	resp, err := c.set(ctx, key, value, Flags{StorageMode: StoragePrepend})
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	switch resp.Status {
	case meta.StatusHD:
		return nil
	case meta.StatusNS:
		return &KeyNotFoundError{Key: key}
	default:
		return newProtocolError(errors.Newf("prepend: unexpected status %s", resp.Status))
	}
}

// Delete removes key. NF maps to KeyNotFoundError.
func (c *Connection) Delete(ctx context.Context, key string) error {
	req := meta.NewRequest(meta.CmdDelete, key, nil)
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	switch resp.Status {
	case meta.StatusHD:
		return nil
	case meta.StatusNF:
		return &KeyNotFoundError{Key: key}
	default:
		return newProtocolError(errors.Newf("delete: unexpected status %s", resp.Status))
	}
}

// ArithmeticResult is the typed outcome of Increment/Decrement.
type ArithmeticResult struct {
	// Value is the post-operation value. Populated only when the caller
	// set Flags.ReturnValue; HasValue reports which.
	Value    uint64
	HasValue bool
}

func (c *Connection) arithmetic(ctx context.Context, key string, delta uint64, mode ArithmeticMode, flags Flags) (ArithmeticResult, error) {
	flags.Delta = delta
	flags.ArithmeticMode = mode
	req := meta.NewRequest(meta.CmdArithmetic, key, nil, flags.build(meta.CmdArithmetic, c.now())...)
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return ArithmeticResult{}, err
	}
	if resp.HasError() {
		return ArithmeticResult{}, newProtocolError(resp.Error)
	}

	switch resp.Status {
	case meta.StatusHD:
		return ArithmeticResult{}, nil
	case meta.StatusVA:
		var v Uint64
		if !v.ReadFrom(resp.Data) {
			return ArithmeticResult{}, newProtocolError(errors.Newf("arithmetic: unparsable value %q", resp.Data))
		}
		return ArithmeticResult{Value: uint64(v), HasValue: true}, nil
	case meta.StatusNF:
		return ArithmeticResult{}, &KeyNotFoundError{Key: key}
	default:
		return ArithmeticResult{}, newProtocolError(errors.Newf("arithmetic: unexpected status %s", resp.Status))
	}
}

// Increment adds delta to key's value. flags.ReturnValue controls whether
// the new value is returned; delta must be > 0.
func (c *Connection) Increment(ctx context.Context, key string, delta uint64, flags Flags) (ArithmeticResult, error) {
	return c.arithmetic(ctx, key, delta, Increment, flags)
}

// Decrement subtracts delta from key's value, floored at 0 by the server.
func (c *Connection) Decrement(ctx context.Context, key string, delta uint64, flags Flags) (ArithmeticResult, error) {
	return c.arithmetic(ctx, key, delta, Decrement, flags)
}

// NoOp issues mn and waits for MN. Used directly by keep-alive.
func (c *Connection) NoOp(ctx context.Context) error {
	req := meta.NewRequest(meta.CmdNoOp, "", nil)
	resp, err := c.Submit(ctx, req)
	if err != nil {
		return err
	}
	if resp.HasError() {
		return newProtocolError(resp.Error)
	}
	if resp.Status != meta.StatusMN {
		return newProtocolError(errors.Newf("noop: unexpected status %s", resp.Status))
	}
	return nil
}

func atoiOrDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
