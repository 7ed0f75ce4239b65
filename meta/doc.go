// Package meta implements the wire grammar of the memcached Meta Protocol
// (mg, ms, md, ma, me, mn): serializing Request values to bytes and parsing
// a response stream back into Response values.
//
// The package carries no connection, retry, or pooling logic — it is pure
// encode/decode, meant to sit underneath a read/write loop that owns an
// io.ReadWriter. See the root package for that loop (Connection) and for
// the pool built on top of it.
//
// # Writing requests
//
//	req := meta.NewRequest(meta.CmdGet, "mykey", nil, meta.Flag{Type: meta.FlagReturnValue})
//	err := meta.WriteRequest(bufio.NewWriter(conn), req)
//
// # Reading responses
//
//	resp, err := meta.ReadResponse(bufio.NewReader(conn))
//	if err != nil {
//	    if meta.ShouldCloseConnection(err) {
//	        conn.Close()
//	    }
//	    return err
//	}
//
// # Errors
//
// ClientError, GenericError and ParseError mean the connection's parsing
// state may be corrupted and the connection must be closed. ServerError
// means the server rejected the operation but the connection is still
// usable. ShouldCloseConnection distinguishes the two.
package meta
