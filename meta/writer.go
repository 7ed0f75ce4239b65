package meta

import (
	"bufio"
	"strconv"
	"strings"
)

// ValidateKey checks that key is 1-250 bytes and, unless hasBase64Flag is
// set, contains no whitespace.
func ValidateKey(key string, hasBase64Flag bool) error {
	switch {
	case len(key) < MinKeyLength:
		return &InvalidKeyError{Message: "key is empty"}
	case len(key) > MaxKeyLength:
		return &InvalidKeyError{Message: "key exceeds maximum length of 250 bytes"}
	case !hasBase64Flag && strings.ContainsAny(key, " \t\r\n"):
		return &InvalidKeyError{Message: "key contains whitespace"}
	}
	return nil
}

// WriteRequest serializes req to w and flushes it.
//
//	mn:              mn\r\n
//	ms:              ms <key> <size> <flags>*\r\n<data>\r\n
//	mg, md, ma, me:  <cmd> <key> <flags>*\r\n
//
// Keys are validated before anything is written.
func WriteRequest(w *bufio.Writer, req *Request) error {
	if req.Command == CmdNoOp {
		w.WriteString(string(req.Command))
		w.WriteString(CRLF)
		return w.Flush()
	}

	if err := ValidateKey(req.Key, req.HasFlag(FlagBase64Key)); err != nil {
		return err
	}

	w.WriteString(string(req.Command))
	w.WriteString(Space)
	w.WriteString(req.Key)

	if req.Command == CmdSet {
		w.WriteString(Space)
		w.WriteString(strconv.Itoa(len(req.Data)))
	}

	for _, flag := range req.Flags {
		w.WriteString(Space)
		w.WriteByte(byte(flag.Type))
		if flag.Token != "" {
			w.WriteString(flag.Token)
		}
	}
	w.WriteString(CRLF)

	if req.Command == CmdSet {
		if len(req.Data) > 0 {
			if _, err := w.Write(req.Data); err != nil {
				return err
			}
		}
		w.WriteString(CRLF)
	}

	return w.Flush()
}
