package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func TestProtocol_WriteMessage(t *testing.T) {
	var buf bytes.Buffer
	p := NewProtocol(nil, &buf)
	if err := p.writeMessage(Request{JSONRPC: "2.0", ID: 7, Method: "test"}); err != nil {
		t.Fatalf("writeMessage: %v", err)
	}
	out := buf.String()
	header, body, ok := strings.Cut(out, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header separator in %q", out)
	}
	if header != fmt.Sprintf("Content-Length: %d", len(body)) {
		t.Errorf("header = %q, body length %d", header, len(body))
	}
	for _, want := range []string{`"jsonrpc":"2.0"`, `"id":7`, `"method":"test"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body %s missing %s", body, want)
		}
	}
	if strings.Contains(body, "params") {
		t.Errorf("nil params should be omitted: %s", body)
	}
}

func TestProtocol_ReadMessage(t *testing.T) {
	t.Run("extra headers", func(t *testing.T) {
		in := "Content-Type: application/vscode-jsonrpc; charset=utf-8\r\n" + frame(`{"a":1}`)
		p := NewProtocol(strings.NewReader(in), io.Discard)
		got, err := p.readMessage()
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `{"a":1}` {
			t.Errorf("got %s", got)
		}
	})

	t.Run("back to back", func(t *testing.T) {
		p := NewProtocol(strings.NewReader(frame(`{"n":1}`)+frame(`{"n":2}`)), io.Discard)
		for _, want := range []string{`{"n":1}`, `{"n":2}`} {
			got, err := p.readMessage()
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != want {
				t.Errorf("got %s, want %s", got, want)
			}
		}
	})

	t.Run("invalid length", func(t *testing.T) {
		p := NewProtocol(strings.NewReader("Content-Length: abc\r\n\r\n"), io.Discard)
		if _, err := p.readMessage(); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("truncated body", func(t *testing.T) {
		p := NewProtocol(strings.NewReader("Content-Length: 10\r\n\r\n{}"), io.Discard)
		if _, err := p.readMessage(); err == nil {
			t.Error("expected error")
		}
	})
}

// pipeServer wires a Protocol to in-memory pipes and returns the server
// side of them.
func pipeServer(t *testing.T) (p *Protocol, serverIn *Protocol, serverOut io.Writer) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()
	p = NewProtocol(clientR, clientW)
	serverIn = NewProtocol(serverR, io.Discard)
	t.Cleanup(func() {
		p.Close()
		_ = serverW.Close()
		_ = clientW.Close()
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = p.ReadLoop(ctx) }()
	return p, serverIn, serverW
}

func TestProtocol_SendRequest(t *testing.T) {
	p, server, out := pipeServer(t)

	go func() {
		body, err := server.readMessage()
		if err != nil {
			return
		}
		var req Request
		_ = json.Unmarshal(body, &req)
		// a notification first, which must be ignored
		_, _ = io.WriteString(out, frame(`{"jsonrpc":"2.0","method":"window/logMessage","params":{"type":3,"message":"hi"}}`))
		_, _ = io.WriteString(out, frame(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"ok":true}}`, req.ID)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := p.SendRequest(ctx, "test/method", map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(resp.Result) != `{"ok":true}` {
		t.Errorf("result = %s", resp.Result)
	}
}

func TestProtocol_ErrorResponse(t *testing.T) {
	p, server, out := pipeServer(t)

	go func() {
		body, err := server.readMessage()
		if err != nil {
			return
		}
		var req Request
		_ = json.Unmarshal(body, &req)
		_, _ = io.WriteString(out, frame(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"nope"}}`, req.ID)))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := p.SendRequest(ctx, "unknown", nil)
	var lerr *Error
	if !errors.As(err, &lerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if !lerr.IsMethodNotFound() || lerr.Message != "nope" {
		t.Errorf("err = %+v", lerr)
	}
}

func TestProtocol_Timeout(t *testing.T) {
	p, server, _ := pipeServer(t)
	go func() { _, _ = server.readMessage() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.SendRequest(ctx, "slow", nil)
	if !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("err = %v, want ErrRequestTimeout", err)
	}
}

func TestProtocol_RepliesToServerRequests(t *testing.T) {
	_, server, out := pipeServer(t)

	_, _ = io.WriteString(out, frame(`{"jsonrpc":"2.0","id":"cfg","method":"workspace/configuration","params":{"items":[{},{}]}}`))

	body, err := server.readMessage()
	if err != nil {
		t.Fatal(err)
	}
	var reply struct {
		ID     string `json:"id"`
		Result []any  `json:"result"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		t.Fatalf("reply %s: %v", body, err)
	}
	if reply.ID != "cfg" || len(reply.Result) != 2 {
		t.Errorf("reply = %s", body)
	}
}

func TestProtocol_CloseReleasesWaiters(t *testing.T) {
	p, server, _ := pipeServer(t)
	go func() { _, _ = server.readMessage() }()

	errc := make(chan error, 1)
	go func() {
		_, err := p.SendRequest(context.Background(), "never", nil)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrServerNotRunning) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request not released by Close")
	}

	if err := p.SendNotification("x", nil); !errors.Is(err, ErrServerNotRunning) {
		t.Errorf("notification after close: %v", err)
	}
}

func TestProtocol_EOFIsCrash(t *testing.T) {
	p := NewProtocol(strings.NewReader(""), io.Discard)
	if err := p.ReadLoop(context.Background()); !errors.Is(err, ErrServerCrashed) {
		t.Errorf("err = %v, want ErrServerCrashed", err)
	}
}

func TestParseLocations(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Location
	}{
		{"null", `null`, nil},
		{"empty", ``, nil},
		{"empty array", `[]`, []Location{}},
		{
			"single location",
			`{"uri":"file:///a/B.java","range":{"start":{"line":3,"character":2},"end":{"line":3,"character":5}}}`,
			[]Location{{URI: "file:///a/B.java", Range: Range{Start: Position{3, 2}, End: Position{3, 5}}}},
		},
		{
			"location array",
			`[{"uri":"file:///x.java","range":{"start":{"line":1,"character":0},"end":{"line":1,"character":1}}},{"uri":"file:///y.java","range":{"start":{"line":2,"character":0},"end":{"line":2,"character":1}}}]`,
			[]Location{
				{URI: "file:///x.java", Range: Range{Start: Position{1, 0}, End: Position{1, 1}}},
				{URI: "file:///y.java", Range: Range{Start: Position{2, 0}, End: Position{2, 1}}},
			},
		},
		{
			"link prefers selection range",
			`[{"targetUri":"file:///z.java","targetRange":{"start":{"line":4,"character":0},"end":{"line":9,"character":1}},"targetSelectionRange":{"start":{"line":5,"character":9},"end":{"line":5,"character":12}}}]`,
			[]Location{{URI: "file:///z.java", Range: Range{Start: Position{5, 9}, End: Position{5, 12}}}},
		},
		{
			"link with target range only",
			`[{"targetUri":"file:///z.java","targetRange":{"start":{"line":4,"character":0},"end":{"line":9,"character":1}}}]`,
			[]Location{{URI: "file:///z.java", Range: Range{Start: Position{4, 0}, End: Position{9, 1}}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocations(json.RawMessage(tt.in))
			if err != nil {
				t.Fatalf("ParseLocations: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}

	for _, bad := range []string{`{"foo":1}`, `[1,2]`, `"str"`} {
		if _, err := ParseLocations(json.RawMessage(bad)); !errors.Is(err, ErrInvalidResponse) {
			t.Errorf("ParseLocations(%s) err = %v", bad, err)
		}
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := "/tmp/my project/Src Ü.java"
	uri := PathToURI(path)
	if !strings.HasPrefix(uri, "file:///tmp/my%20project/") {
		t.Errorf("uri = %s", uri)
	}
	back, ok := URIToPath(uri)
	if !ok || back != path {
		t.Errorf("URIToPath(%s) = %q, %v", uri, back, ok)
	}
	if _, ok := URIToPath("jdt://contents/rt.jar/java.lang/String.class"); ok {
		t.Error("non-file URI should not map to a path")
	}
}
