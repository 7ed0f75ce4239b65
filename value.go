package memcache

import "strconv"

// Value converts a logical value to and from the raw bytes carried by the
// wire protocol. Integral types use decimal ASCII, matching the server's
// own arithmetic encoding; byte strings are carried as-is.
type Value interface {
	// WriteTo appends the value's byte representation to buf and returns
	// the result.
	WriteTo(buf []byte) []byte

	// ReadFrom parses data into the value, reporting false if data is not
	// a well-formed encoding of the type.
	ReadFrom(data []byte) bool
}

// Bytes is a Value over a raw byte slice. It never rejects input.
type Bytes []byte

func (b *Bytes) WriteTo(buf []byte) []byte { return append(buf, []byte(*b)...) }

func (b *Bytes) ReadFrom(data []byte) bool {
	*b = append((*b)[:0], data...)
	return true
}

// String is a Value over a UTF-8 string, carried as raw bytes.
type String string

func (s *String) WriteTo(buf []byte) []byte { return append(buf, string(*s)...) }

func (s *String) ReadFrom(data []byte) bool {
	*s = String(data)
	return true
}

// Uint64 is a Value over an unsigned integer, encoded as decimal ASCII —
// the representation memcached's own arithmetic commands use.
type Uint64 uint64

func (u *Uint64) WriteTo(buf []byte) []byte {
	return strconv.AppendUint(buf, uint64(*u), 10)
}

func (u *Uint64) ReadFrom(data []byte) bool {
	n, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return false
	}
	*u = Uint64(n)
	return true
}
