package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// JSONRPCVersion is the JSON-RPC version used by LSP.
const JSONRPCVersion = "2.0"

// Request is a JSON-RPC request sent to the server.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a response.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Notification is a JSON-RPC message without an id.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// message is any incoming message. Responses carry an id and no method;
// server-to-client requests carry both.
type message struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

// Protocol speaks the LSP base protocol (Content-Length framed JSON-RPC)
// over a reader and a writer. It is safe for concurrent use; ReadLoop must
// run in exactly one goroutine.
type Protocol struct {
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	nextID    atomic.Int64
	pending   map[int64]chan *message
	pendingMu sync.Mutex
	closed    atomic.Bool
}

// NewProtocol creates a protocol reading server output from r and writing
// client messages to w.
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	var reader *bufio.Reader
	if r != nil {
		reader = bufio.NewReader(r)
	}
	return &Protocol{
		reader:  reader,
		writer:  w,
		pending: make(map[int64]chan *message),
	}
}

// SendRequest sends a request and waits for its response or ctx.
func (p *Protocol) SendRequest(ctx context.Context, method string, params any) (*Response, error) {
	if p.closed.Load() {
		return nil, ErrServerNotRunning
	}

	id := p.nextID.Add(1)
	ch := make(chan *message, 1)
	p.pendingMu.Lock()
	p.pending[id] = ch
	p.pendingMu.Unlock()
	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	if err := p.writeMessage(Request{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: params}); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrRequestTimeout, method, ctx.Err())
	case msg, ok := <-ch:
		if !ok || msg == nil {
			return nil, ErrServerNotRunning
		}
		if msg.Error != nil {
			return nil, &Error{Code: msg.Error.Code, Message: msg.Error.Message, Data: msg.Error.Data}
		}
		return &Response{JSONRPC: JSONRPCVersion, ID: msg.ID, Result: msg.Result}, nil
	}
}

// SendNotification sends a notification. No response is expected.
func (p *Protocol) SendNotification(method string, params any) error {
	if p.closed.Load() {
		return ErrServerNotRunning
	}
	return p.writeMessage(Notification{JSONRPC: JSONRPCVersion, Method: method, Params: params})
}

func (p *Protocol) writeMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := fmt.Fprintf(p.writer, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := p.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadLoop reads messages until the stream ends or ctx is done, routing
// responses to their waiting requests.
func (p *Protocol) ReadLoop(ctx context.Context) error {
	if p.reader == nil {
		return errors.New("no reader configured")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := p.readMessage()
		if err != nil {
			if p.closed.Load() {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				p.failPending()
				return ErrServerCrashed
			}
			p.failPending()
			return fmt.Errorf("read: %w", err)
		}
		p.handleMessage(body)
	}
}

func (p *Protocol) readMessage() ([]byte, error) {
	contentLength := -1
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if contentLength < 0 {
				// stray blank line between messages
				continue
			}
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid Content-Length %q", value)
		}
		contentLength = n
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (p *Protocol) handleMessage(body []byte) {
	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		slog.Debug("lsp.message.invalid", "err", err)
		return
	}
	hasID := len(msg.ID) > 0 && !bytes.Equal(msg.ID, []byte("null"))

	switch {
	case msg.Method != "" && hasID:
		p.replyToServer(&msg)
	case msg.Method != "":
		// window/logMessage, $/progress, publishDiagnostics, ...
		slog.Debug("lsp.notification", "method", msg.Method)
	case hasID:
		id, err := strconv.ParseInt(string(msg.ID), 10, 64)
		if err != nil {
			return
		}
		// send under the lock so Close cannot close ch concurrently
		p.pendingMu.Lock()
		if ch, ok := p.pending[id]; ok {
			select {
			case ch <- &msg:
			default:
			}
		}
		p.pendingMu.Unlock()
	}
}

// replyToServer answers requests the server sends to the client. Servers
// such as jdtls block on some of them (workspace/configuration,
// client/registerCapability) until they get an answer.
func (p *Protocol) replyToServer(msg *message) {
	var result any
	if msg.Method == "workspace/configuration" {
		var params struct {
			Items []json.RawMessage `json:"items"`
		}
		_ = json.Unmarshal(msg.Params, &params)
		result = make([]any, len(params.Items))
	}
	reply := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{JSONRPCVersion, msg.ID, result}
	if err := p.writeMessage(reply); err != nil {
		slog.Debug("lsp.reply.err", "method", msg.Method, "err", err)
	}
}

func (p *Protocol) failPending() {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for id, ch := range p.pending {
		close(ch)
		delete(p.pending, id)
	}
}

// Close marks the protocol closed and releases every waiting request. It
// does not close the underlying streams.
func (p *Protocol) Close() {
	p.closed.Store(true)
	p.failPending()
}
