package meta

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"sync"
)

var responsePool = sync.Pool{
	New: func() any { return &Response{} },
}

// maxHeaderLine bounds a single response header line. bufio.Reader.ReadString
// grows its result without limit across an unterminated line; a desynced or
// misbehaving peer that never sends a newline would otherwise exhaust memory
// instead of failing fast.
const maxHeaderLine = 1 << 20 // 1 MiB

// readHeaderLine reads up to and including the next '\n', failing with a
// ParseError once maxHeaderLine bytes have been read without finding one.
func readHeaderLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		frag, err := r.ReadSlice('\n')
		if len(line)+len(frag) > maxHeaderLine {
			return "", &ParseError{Message: "response header exceeds maximum line length"}
		}
		line = append(line, frag...)
		if err == nil {
			return string(line), nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return "", err
	}
}

// GetResponse acquires a Response from the shared pool.
func GetResponse() *Response {
	return responsePool.Get().(*Response)
}

// PutResponse resets r and returns it to the shared pool. Callers must not
// touch r afterward.
func PutResponse(r *Response) {
	r.Status = ""
	r.Data = nil
	r.Flags = r.Flags[:0]
	r.Error = nil
	responsePool.Put(r)
}

// ReadResponse reads and parses a single response line, plus its data
// block if any, from r.
//
// A non-nil error means r's position is no longer aligned with a response
// boundary; the caller should stop reading from this connection. A
// protocol-level failure (CLIENT_ERROR, SERVER_ERROR, ERROR) is reported
// through Response.Error with a nil Go error instead, since r is still
// correctly positioned for the next response.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	line, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, CRLF), "\n")

	if msg, ok := strings.CutPrefix(line, ErrorClientPrefix+" "); ok {
		resp := GetResponse()
		resp.Error = &ClientError{Message: msg}
		return resp, nil
	}
	if msg, ok := strings.CutPrefix(line, ErrorServerPrefix+" "); ok {
		resp := GetResponse()
		resp.Error = &ServerError{Message: msg}
		return resp, nil
	}
	if line == ErrorGeneric {
		resp := GetResponse()
		resp.Error = &GenericError{Message: "ERROR"}
		return resp, nil
	}

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, &ParseError{Message: "empty response line"}
	}

	resp := GetResponse()
	resp.Status = StatusType(parts[0])

	if resp.Status == StatusMN {
		return resp, nil
	}

	// ME's second field is the key, not a flag; everything after it is
	// debug text for ParseDebugParams, not wire flags.
	if resp.Status == StatusME {
		if len(parts) > 2 {
			resp.Data = []byte(strings.Join(parts[2:], " "))
		}
		return resp, nil
	}

	idx := 1
	var dataSize int
	if resp.Status == StatusVA {
		if idx >= len(parts) {
			return nil, &ParseError{Message: "VA response missing size"}
		}
		dataSize, err = strconv.Atoi(parts[idx])
		if err != nil || dataSize < 0 {
			return nil, &ParseError{Message: "invalid size in VA response: " + parts[idx]}
		}
		idx++
	}

	for ; idx < len(parts); idx++ {
		flagStr := parts[idx]
		if flagStr == "" {
			continue
		}
		flag := Flag{Type: FlagType(flagStr[0])}
		if len(flagStr) > 1 {
			flag.Token = flagStr[1:]
		}
		resp.Flags = append(resp.Flags, flag)
	}

	if resp.Status == StatusVA {
		data := make([]byte, dataSize)
		if _, err = io.ReadFull(r, data); err != nil {
			return nil, &ParseError{Message: "failed to read data block: " + err.Error()}
		}
		resp.Data = data

		crlf := make([]byte, 2)
		if _, err = io.ReadFull(r, crlf); err != nil {
			return nil, &ParseError{Message: "failed to read data block CRLF: " + err.Error()}
		}
		if !bytes.Equal(crlf, []byte(CRLF)) {
			if crlf[0] != '\n' {
				return nil, &ParseError{Message: "invalid data block terminator"}
			}
			if crlf[1] != '\n' {
				if err := r.UnreadByte(); err != nil {
					return nil, &ParseError{Message: "failed to unread byte: " + err.Error()}
				}
			}
		}
	}

	return resp, nil
}

// ReadResponseBatch reads responses until n have been read (n <= 0 means
// unbounded), an MN is seen while stopOnNoOp is set, an error response is
// seen, or a read error occurs. Responses read before a read error are
// returned along with it.
func ReadResponseBatch(r *bufio.Reader, n int, stopOnNoOp bool) ([]*Response, error) {
	var responses []*Response
	for count := 0; n <= 0 || count < n; count++ {
		resp, err := ReadResponse(r)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)

		if stopOnNoOp && resp.Status == StatusMN {
			break
		}
		if resp.HasError() {
			break
		}
	}
	return responses, nil
}

// PeekStatus returns the next response's 2-character status code without
// consuming it.
func PeekStatus(r *bufio.Reader) (string, error) {
	b, err := r.Peek(2)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
