package meta_test

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/cacheflow/memcache/meta"
)

func writeString(t *testing.T, req *meta.Request) string {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := meta.WriteRequest(w, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	return buf.String()
}

func TestWriteGetRequest(t *testing.T) {
	tests := []struct {
		name string
		req  *meta.Request
		want string
	}{
		{"basic", meta.NewRequest(meta.CmdGet, "mykey", nil), "mg mykey\r\n"},
		{"with value", meta.NewRequest(meta.CmdGet, "mykey", nil, meta.Flag{Type: meta.FlagReturnValue}), "mg mykey v\r\n"},
		{
			"multiple flags",
			meta.NewRequest(meta.CmdGet, "mykey", nil,
				meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagReturnCAS}, meta.Flag{Type: meta.FlagReturnTTL}),
			"mg mykey v c t\r\n",
		},
		{
			"opaque token",
			meta.NewRequest(meta.CmdGet, "mykey", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagOpaque, Token: "mytoken"}),
			"mg mykey v Omytoken\r\n",
		},
		{
			"recache",
			meta.NewRequest(meta.CmdGet, "mykey", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagRecache, Token: "30"}),
			"mg mykey v R30\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteSetRequest(t *testing.T) {
	tests := []struct {
		name string
		req  *meta.Request
		want string
	}{
		{"basic", meta.NewRequest(meta.CmdSet, "mykey", []byte("hello")), "ms mykey 5\r\nhello\r\n"},
		{"empty value", meta.NewRequest(meta.CmdSet, "mykey", []byte("")), "ms mykey 0\r\n\r\n"},
		{
			"with TTL",
			meta.NewRequest(meta.CmdSet, "mykey", []byte("hello"), meta.Flag{Type: meta.FlagTTL, Token: "60"}),
			"ms mykey 5 T60\r\nhello\r\n",
		},
		{
			"add mode",
			meta.NewRequest(meta.CmdSet, "mykey", []byte("hello"), meta.Flag{Type: meta.FlagMode, Token: meta.ModeAdd}),
			"ms mykey 5 ME\r\nhello\r\n",
		},
		{
			"CAS and client flags",
			meta.NewRequest(meta.CmdSet, "mykey", []byte("hello"), meta.Flag{Type: meta.FlagCAS, Token: "12345"}, meta.Flag{Type: meta.FlagClientFlags, Token: "30"}),
			"ms mykey 5 C12345 F30\r\nhello\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteDeleteRequest(t *testing.T) {
	tests := []struct {
		name string
		req  *meta.Request
		want string
	}{
		{"basic", meta.NewRequest(meta.CmdDelete, "mykey", nil), "md mykey\r\n"},
		{
			"invalidate",
			meta.NewRequest(meta.CmdDelete, "mykey", nil, meta.Flag{Type: meta.FlagInvalidate}, meta.Flag{Type: meta.FlagTTL, Token: "30"}),
			"md mykey I T30\r\n",
		},
		{
			"CAS",
			meta.NewRequest(meta.CmdDelete, "mykey", nil, meta.Flag{Type: meta.FlagCAS, Token: "12345"}),
			"md mykey C12345\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteArithmeticRequest(t *testing.T) {
	tests := []struct {
		name string
		req  *meta.Request
		want string
	}{
		{"basic increment", meta.NewRequest(meta.CmdArithmetic, "counter", nil, meta.Flag{Type: meta.FlagReturnValue}), "ma counter v\r\n"},
		{
			"with delta",
			meta.NewRequest(meta.CmdArithmetic, "counter", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagDelta, Token: "5"}),
			"ma counter v D5\r\n",
		},
		{
			"decrement",
			meta.NewRequest(meta.CmdArithmetic, "counter", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagMode, Token: meta.ModeDecrement}),
			"ma counter v MD\r\n",
		},
		{
			"vivify with initial value",
			meta.NewRequest(meta.CmdArithmetic, "counter", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagVivify, Token: "60"}, meta.Flag{Type: meta.FlagInitialValue, Token: "100"}),
			"ma counter v N60 J100\r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := writeString(t, tt.req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteNoOpRequest(t *testing.T) {
	got := writeString(t, meta.NewRequest(meta.CmdNoOp, "", nil))
	if want := "mn\r\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteMultipleRequests(t *testing.T) {
	reqs := []*meta.Request{
		meta.NewRequest(meta.CmdGet, "key1", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagQuiet}),
		meta.NewRequest(meta.CmdGet, "key2", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagQuiet}),
		meta.NewRequest(meta.CmdGet, "key3", nil, meta.Flag{Type: meta.FlagReturnValue}),
		meta.NewRequest(meta.CmdNoOp, "", nil),
	}

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	for _, req := range reqs {
		if err := meta.WriteRequest(w, req); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
	}

	want := "mg key1 v q\r\nmg key2 v q\r\nmg key3 v\r\nmn\r\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func readOne(t *testing.T, input string) *meta.Response {
	t.Helper()
	r := bufio.NewReader(strings.NewReader(input))
	resp, err := meta.ReadResponse(r)
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	return resp
}

func TestReadResponse_HD(t *testing.T) {
	resp := readOne(t, "HD c12345 t3600\r\n")
	if resp.Status != meta.StatusHD {
		t.Errorf("Status = %q, want HD", resp.Status)
	}
	if token, ok := resp.GetFlagToken(meta.FlagReturnCAS); !ok || string(token) != "12345" {
		t.Errorf("CAS token = %q, %v", token, ok)
	}
	if token, ok := resp.GetFlagToken(meta.FlagReturnTTL); !ok || string(token) != "3600" {
		t.Errorf("TTL token = %q, %v", token, ok)
	}
}

func TestReadResponse_VA(t *testing.T) {
	tests := []struct {
		name  string
		input string
		data  string
	}{
		{"basic", "VA 5\r\nhello\r\n", "hello"},
		{"with flags", "VA 5 c12345 t3600\r\nhello\r\n", "hello"},
		{"win flag", "VA 5 W\r\nhello\r\n", "hello"},
		{"stale and win", "VA 5 X W\r\nhello\r\n", "hello"},
		{"zero length", "VA 0\r\n\r\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := readOne(t, tt.input)
			if resp.Status != meta.StatusVA {
				t.Errorf("Status = %q, want VA", resp.Status)
			}
			if string(resp.Data) != tt.data {
				t.Errorf("Data = %q, want %q", resp.Data, tt.data)
			}
		})
	}
}

func TestReadResponse_InvalidVASize(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing size", "VA\r\n"},
		{"non-numeric size", "VA abc\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			_, err := meta.ReadResponse(r)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if _, ok := err.(*meta.ParseError); !ok {
				t.Fatalf("expected *meta.ParseError, got %T", err)
			}
		})
	}
}

func TestReadResponse_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		shouldClose bool
	}{
		{"CLIENT_ERROR", "CLIENT_ERROR bad command line format\r\n", true},
		{"SERVER_ERROR", "SERVER_ERROR out of memory\r\n", false},
		{"ERROR", "ERROR\r\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := readOne(t, tt.input)
			if !resp.HasError() {
				t.Fatal("HasError() = false, want true")
			}
			if got := meta.ShouldCloseConnection(resp.Error); got != tt.shouldClose {
				t.Errorf("ShouldCloseConnection() = %v, want %v", got, tt.shouldClose)
			}
		})
	}
}

func TestReadResponse_OtherStatuses(t *testing.T) {
	tests := []struct {
		input string
		want  meta.StatusType
	}{
		{"EN\r\n", meta.StatusEN},
		{"NF\r\n", meta.StatusNF},
		{"NS\r\n", meta.StatusNS},
		{"EX\r\n", meta.StatusEX},
		{"MN\r\n", meta.StatusMN},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			resp := readOne(t, tt.input)
			if resp.Status != tt.want {
				t.Errorf("Status = %q, want %q", resp.Status, tt.want)
			}
		})
	}
}

func TestReadResponse_OversizedLineIsFatal(t *testing.T) {
	// No newline anywhere in the stream: a desynced peer stuck mid-line.
	oversized := strings.Repeat("X", (1<<20)+1)
	r := bufio.NewReader(strings.NewReader(oversized))

	_, err := meta.ReadResponse(r)
	if err == nil {
		t.Fatal("ReadResponse() error = nil, want a ParseError")
	}
	if !meta.ShouldCloseConnection(err) {
		t.Error("ShouldCloseConnection() = false, want true for an oversized header line")
	}
}

func TestResponse_HelperMethods(t *testing.T) {
	t.Run("IsSuccess", func(t *testing.T) {
		for status, want := range map[meta.StatusType]bool{
			meta.StatusHD: true, meta.StatusVA: true, meta.StatusMN: true,
			meta.StatusEN: false, meta.StatusNF: false, meta.StatusNS: false, meta.StatusEX: false,
		} {
			resp := &meta.Response{Status: status}
			if got := resp.IsSuccess(); got != want {
				t.Errorf("IsSuccess() for %q = %v, want %v", status, got, want)
			}
		}
	})

	t.Run("IsMiss", func(t *testing.T) {
		for status, want := range map[meta.StatusType]bool{
			meta.StatusEN: true, meta.StatusNF: true, meta.StatusHD: false, meta.StatusVA: false,
		} {
			resp := &meta.Response{Status: status}
			if got := resp.IsMiss(); got != want {
				t.Errorf("IsMiss() for %q = %v, want %v", status, got, want)
			}
		}
	})

	t.Run("HasWinFlag", func(t *testing.T) {
		resp := &meta.Response{Flags: meta.Flags{{Type: meta.FlagWin}}}
		if !resp.HasWinFlag() {
			t.Error("HasWinFlag() = false, want true")
		}
	})
}

func TestRequest_HelperMethods(t *testing.T) {
	req := meta.NewRequest(meta.CmdGet, "mykey", nil, meta.Flag{Type: meta.FlagReturnValue}, meta.Flag{Type: meta.FlagRecache, Token: "30"})

	if !req.HasFlag(meta.FlagReturnValue) {
		t.Error("HasFlag(v) = false, want true")
	}
	if req.HasFlag(meta.FlagReturnTTL) {
		t.Error("HasFlag(t) = true, want false")
	}

	flag, ok := req.GetFlag(meta.FlagRecache)
	if !ok || flag.Token != "30" {
		t.Errorf("GetFlag(R) = %+v, %v", flag, ok)
	}

	req.AddFlag(meta.Flag{Type: meta.FlagQuiet})
	if !req.HasFlag(meta.FlagQuiet) {
		t.Error("AddFlag did not attach FlagQuiet")
	}
}

func TestPeekStatus(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"HD\r\n", "HD"},
		{"VA 5\r\nhello\r\n", "VA"},
		{"EN\r\n", "EN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			r := bufio.NewReader(strings.NewReader(tt.input))
			status, err := meta.PeekStatus(r)
			if err != nil {
				t.Fatalf("PeekStatus: %v", err)
			}
			if status != tt.want {
				t.Errorf("PeekStatus() = %q, want %q", status, tt.want)
			}

			resp, err := meta.ReadResponse(r)
			if err != nil {
				t.Fatalf("ReadResponse after peek: %v", err)
			}
			if string(resp.Status) != tt.want {
				t.Errorf("Status after peek = %q, want %q", resp.Status, tt.want)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name          string
		key           string
		hasBase64Flag bool
		wantErr       bool
		errContains   string
	}{
		{name: "valid simple key", key: "mykey"},
		{name: "valid key with special chars", key: "key:foo-bar_baz.v1"},
		{name: "empty key", key: "", wantErr: true, errContains: "empty"},
		{name: "key too long", key: strings.Repeat("a", 251), wantErr: true, errContains: "maximum length"},
		{name: "key with space", key: "my key", wantErr: true, errContains: "whitespace"},
		{name: "key with tab", key: "my\tkey", wantErr: true, errContains: "whitespace"},
		{name: "base64 key with base64 flag", key: "bXkga2V5", hasBase64Flag: true},
		{name: "max length key", key: strings.Repeat("a", 250)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := meta.ValidateKey(tt.key, tt.hasBase64Flag)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("ValidateKey() = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateKey() unexpected error: %v", err)
			}
		})
	}
}

func TestWriteRequest_InvalidKey(t *testing.T) {
	tests := []*meta.Request{
		meta.NewRequest(meta.CmdGet, "", nil),
		meta.NewRequest(meta.CmdGet, strings.Repeat("a", 251), nil),
		meta.NewRequest(meta.CmdGet, "my key", nil),
	}
	for _, req := range tests {
		var buf bytes.Buffer
		if err := meta.WriteRequest(bufio.NewWriter(&buf), req); err == nil {
			t.Errorf("WriteRequest(%+v) expected error, got nil", req)
		}
	}
}

func TestWriteRequest_ValidKeyWithBase64Flag(t *testing.T) {
	req := meta.NewRequest(meta.CmdGet, "bXkga2V5", nil, meta.Flag{Type: meta.FlagBase64Key})
	got := writeString(t, req)
	want := "mg bXkga2V5 b\r\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseDebugParams(t *testing.T) {
	if params := meta.ParseDebugParams([]byte("")); len(params) != 0 {
		t.Errorf("empty input = %v, want empty map", params)
	}

	params := meta.ParseDebugParams([]byte("size=1024 ttl=3600 flags=0"))
	want := map[string]string{"size": "1024", "ttl": "3600", "flags": "0"}
	for k, v := range want {
		if params[k] != v {
			t.Errorf("params[%q] = %q, want %q", k, params[k], v)
		}
	}

	params = meta.ParseDebugParams([]byte("key1= key2=value"))
	if params["key1"] != "" || params["key2"] != "value" {
		t.Errorf("params = %v", params)
	}
}

func TestReadResponse_ME(t *testing.T) {
	resp := readOne(t, "ME mykey size=1024 ttl=3600\r\n")
	if resp.Status != meta.StatusME {
		t.Errorf("Status = %q, want ME", resp.Status)
	}
	params := meta.ParseDebugParams(resp.Data)
	if params["size"] != "1024" || params["ttl"] != "3600" {
		t.Errorf("debug params = %v", params)
	}
}

// ReadResponse blocks on its bufio.Reader rather than reporting "need more
// bytes", so byte-at-a-time delivery must parse identically to whole-message
// delivery; bufio.Reader is what actually absorbs the short reads.
func TestReadResponse_OneByteAtATime(t *testing.T) {
	input := "VA 11 c12345 t3600\r\nhello world\r\n"

	whole, err := meta.ReadResponse(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("whole-message ReadResponse: %v", err)
	}

	trickle, err := meta.ReadResponse(bufio.NewReader(iotest.OneByteReader(strings.NewReader(input))))
	if err != nil {
		t.Fatalf("byte-at-a-time ReadResponse: %v", err)
	}

	if trickle.Status != whole.Status || !bytes.Equal(trickle.Data, whole.Data) {
		t.Errorf("trickle-fed response %+v diverged from whole-message response %+v", trickle, whole)
	}
	if len(trickle.Flags) != len(whole.Flags) {
		t.Errorf("trickle-fed flags %v diverged from whole-message flags %v", trickle.Flags, whole.Flags)
	}
}
