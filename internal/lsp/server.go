package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf16"
)

// DefaultShutdownGrace is how long Shutdown waits for the server to exit
// before killing it.
const DefaultShutdownGrace = 5 * time.Second

// LanguageConfig describes how to launch a language server.
type LanguageConfig struct {
	Language              string   // e.g. "java"
	LanguageID            string   // languageId sent with didOpen, defaults to Language
	Command               string   // binary name or path
	Args                  []string // command-line arguments
	Env                   []string // extra KEY=VALUE entries appended to the environment
	InitializationOptions any
	ShutdownGrace         time.Duration
}

// JavaConfig returns the default configuration for Eclipse JDT LS.
func JavaConfig() LanguageConfig {
	return LanguageConfig{
		Language:      "java",
		LanguageID:    "java",
		Command:       "jdtls",
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// ServerState is the lifecycle state of a Server.
type ServerState int

const (
	StateUninitialized ServerState = iota
	StateStarting
	StateReady
	StateStopping
	StateStopped
)

func (s ServerState) String() string {
	names := []string{"uninitialized", "starting", "ready", "stopping", "stopped"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Server is one language server process bound to a workspace root.
// Requests are safe for concurrent use once Start has returned.
type Server struct {
	config   LanguageConfig
	rootPath string

	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	protocol *Protocol
	caps     ServerCapabilities
	exited   chan struct{}
	readDone chan struct{}
	cancel   context.CancelFunc

	state   ServerState
	stateMu sync.RWMutex

	openMu sync.Mutex
	opened map[string][][]byte // uri -> document lines
}

// NewServer returns an unstarted server for rootPath.
func NewServer(config LanguageConfig, rootPath string) *Server {
	if config.LanguageID == "" {
		config.LanguageID = config.Language
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = DefaultShutdownGrace
	}
	return &Server{
		config:   config,
		rootPath: rootPath,
		exited:   make(chan struct{}),
		readDone: make(chan struct{}),
		opened:   make(map[string][][]byte),
	}
}

// Start launches the server process and performs the initialize handshake.
// ctx bounds the handshake only; the process outlives it.
func (s *Server) Start(ctx context.Context) error {
	s.stateMu.Lock()
	if s.state != StateUninitialized {
		s.stateMu.Unlock()
		return ErrServerAlreadyStarted
	}
	s.state = StateStarting
	s.stateMu.Unlock()

	path, err := exec.LookPath(s.config.Command)
	if err != nil {
		s.setState(StateStopped)
		recordServerSpawn(ctx, s.config.Language, false)
		return fmt.Errorf("%w: %s", ErrServerNotInstalled, s.config.Command)
	}

	slog.Info("lsp.start", "language", s.config.Language, "command", path, "root", s.rootPath)

	procCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cmd = exec.CommandContext(procCtx, path, s.config.Args...)
	s.cmd.Dir = s.rootPath
	s.cmd.Env = append(os.Environ(), s.config.Env...)
	s.cmd.Stderr = &stderrLogger{language: s.config.Language}

	if s.stdin, err = s.cmd.StdinPipe(); err != nil {
		s.cleanup()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	if s.stdout, err = s.cmd.StdoutPipe(); err != nil {
		s.cleanup()
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := s.cmd.Start(); err != nil {
		s.cleanup()
		recordServerSpawn(ctx, s.config.Language, false)
		return fmt.Errorf("start %s: %w", s.config.Command, err)
	}
	recordServerSpawn(ctx, s.config.Language, true)

	s.protocol = NewProtocol(s.stdout, s.stdin)
	go func() {
		defer close(s.readDone)
		if err := s.protocol.ReadLoop(procCtx); err != nil && procCtx.Err() == nil {
			slog.Warn("lsp.read.err", "language", s.config.Language, "err", err)
			s.markStopped()
		}
	}()
	cmd := s.cmd
	go func() {
		defer close(s.exited)
		_ = cmd.Wait()
	}()

	if err := s.initialize(ctx); err != nil {
		_ = s.Shutdown(context.Background())
		return fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	s.setState(StateReady)
	slog.Info("lsp.ready", "language", s.config.Language,
		"definition", s.caps.HasDefinitionProvider())
	return nil
}

func (s *Server) initialize(ctx context.Context) error {
	rootURI := PathToURI(s.rootPath)
	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   rootURI,
		RootPath:  s.rootPath,
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				Synchronization: &SynchronizationCapabilities{},
				Definition:      &DefinitionCapabilities{LinkSupport: true},
			},
			Workspace: WorkspaceClientCapabilities{
				Configuration:    true,
				WorkspaceFolders: true,
			},
		},
		InitializationOptions: s.config.InitializationOptions,
		WorkspaceFolders: []WorkspaceFolder{
			{URI: rootURI, Name: filepath.Base(s.rootPath)},
		},
	}

	resp, err := s.protocol.SendRequest(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("initialize request: %w", err)
	}
	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("parse initialize result: %w", err)
	}
	s.caps = result.Capabilities

	if err := s.protocol.SendNotification("initialized", struct{}{}); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}
	return nil
}

// Shutdown sends shutdown and exit, then waits up to the grace period for
// the process to exit before killing it. It is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stateMu.Lock()
	if s.state == StateStopping || (s.state == StateStopped && s.cmd == nil) {
		s.stateMu.Unlock()
		return nil
	}
	if s.state == StateUninitialized {
		s.state = StateStopped
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateStopping
	s.stateMu.Unlock()

	slog.Info("lsp.shutdown", "language", s.config.Language, "root", s.rootPath)
	defer s.cleanup()

	grace := s.config.ShutdownGrace
	if s.protocol != nil {
		sctx, cancel := context.WithTimeout(ctx, grace)
		_, _ = s.protocol.SendRequest(sctx, "shutdown", nil)
		cancel()
		_ = s.protocol.SendNotification("exit", nil)
		s.protocol.Close()
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}

	var err error
	if s.cmd != nil && s.cmd.Process != nil {
		select {
		case <-s.exited:
		case <-time.After(grace):
			slog.Warn("lsp.kill", "language", s.config.Language, "grace", grace)
			_ = s.cmd.Process.Kill()
			<-s.exited
			err = fmt.Errorf("lsp server %s killed after %s", s.config.Command, grace)
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.protocol != nil {
		select {
		case <-s.readDone:
		case <-time.After(time.Second):
		}
	}
	return err
}

func (s *Server) cleanup() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
	s.stateMu.Lock()
	s.cmd = nil
	s.state = StateStopped
	s.stateMu.Unlock()
}

// State returns the current lifecycle state.
func (s *Server) State() ServerState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Capabilities returns what the server reported during initialize.
func (s *Server) Capabilities() ServerCapabilities {
	return s.caps
}

// Request sends a raw request to a ready server.
func (s *Server) Request(ctx context.Context, method string, params any) (*Response, error) {
	if s.State() != StateReady {
		return nil, ErrServerNotRunning
	}
	return s.protocol.SendRequest(ctx, method, params)
}

// Notify sends a notification to a ready server.
func (s *Server) Notify(method string, params any) error {
	if s.State() != StateReady {
		return ErrServerNotRunning
	}
	return s.protocol.SendNotification(method, params)
}

// Definition asks where the symbol at (line, col) of file is defined. file
// is absolute or relative to the root; line is 1-based and col a 0-based
// byte offset, converted to UTF-16 code units on the wire. The document is
// opened on first use.
func (s *Server) Definition(ctx context.Context, file string, line, col int) (locs []Location, err error) {
	if !filepath.IsAbs(file) {
		file = filepath.Join(s.rootPath, file)
	}
	ctx, span := startRequestSpan(ctx, "textDocument/definition", s.config.Language, file)
	defer span.End()
	start := time.Now()
	defer func() {
		recordRequest(ctx, "textDocument/definition", s.config.Language, time.Since(start), err == nil)
		if err != nil {
			span.RecordError(err)
		}
	}()

	if line < 1 {
		return nil, fmt.Errorf("line %d out of range", line)
	}
	uri := PathToURI(file)
	lines, err := s.ensureOpen(file, uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.Request(ctx, "textDocument/definition", TextDocumentPositionParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     Position{Line: line - 1, Character: utf16Column(lines, line-1, col)},
	})
	if err != nil {
		return nil, err
	}
	return ParseLocations(resp.Result)
}

func (s *Server) ensureOpen(file, uri string) ([][]byte, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	if lines, ok := s.opened[uri]; ok {
		return lines, nil
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if err := s.Notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: s.config.LanguageID,
			Version:    1,
			Text:       string(content),
		},
	}); err != nil {
		return nil, err
	}
	lines := bytes.Split(content, []byte("\n"))
	s.opened[uri] = lines
	return lines, nil
}

// utf16Column converts a byte offset within line (0-based) to UTF-16 code
// units. Offsets past the known text are returned unchanged.
func utf16Column(lines [][]byte, line, byteCol int) int {
	if line < 0 || line >= len(lines) || byteCol < 0 || byteCol > len(lines[line]) {
		return byteCol
	}
	col := 0
	for _, r := range string(lines[line][:byteCol]) {
		col += utf16.RuneLen(r)
	}
	return col
}

func (s *Server) setState(state ServerState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// markStopped records an unexpected exit without racing a Shutdown that is
// already in progress.
func (s *Server) markStopped() {
	s.stateMu.Lock()
	if s.state == StateReady || s.state == StateStarting {
		s.state = StateStopped
	}
	s.stateMu.Unlock()
}

// stderrLogger forwards server stderr lines to the debug log.
type stderrLogger struct {
	language string
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			slog.Debug("lsp.stderr", "language", w.language, "line", line)
		}
	}
	return len(p), nil
}
