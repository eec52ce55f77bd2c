package lsp

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
)

// Position is a 0-based line and character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open range in a text document.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range in a document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// LocationLink is the richer form of a definition result.
type LocationLink struct {
	OriginSelectionRange *Range `json:"originSelectionRange,omitempty"`
	TargetURI            string `json:"targetUri"`
	TargetRange          *Range `json:"targetRange,omitempty"`
	TargetSelectionRange *Range `json:"targetSelectionRange,omitempty"`
}

// TextDocumentIdentifier identifies a document by URI.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// TextDocumentItem is an opened document with its content.
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentPositionParams identifies a position in a document.
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// DidOpenTextDocumentParams are the params of textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// WorkspaceFolder is a root folder of the workspace.
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// InitializeParams are the params of the initialize request.
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootURI               string             `json:"rootUri"`
	RootPath              string             `json:"rootPath,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// ClientCapabilities advertises what this client supports.
type ClientCapabilities struct {
	TextDocument TextDocumentClientCapabilities `json:"textDocument"`
	Workspace    WorkspaceClientCapabilities    `json:"workspace"`
}

// TextDocumentClientCapabilities lists document-level capabilities.
type TextDocumentClientCapabilities struct {
	Synchronization *SynchronizationCapabilities `json:"synchronization,omitempty"`
	Definition      *DefinitionCapabilities      `json:"definition,omitempty"`
}

// SynchronizationCapabilities describes document sync support.
type SynchronizationCapabilities struct {
	DidSave bool `json:"didSave,omitempty"`
}

// DefinitionCapabilities describes textDocument/definition support.
type DefinitionCapabilities struct {
	LinkSupport bool `json:"linkSupport,omitempty"`
}

// WorkspaceClientCapabilities lists workspace-level capabilities.
type WorkspaceClientCapabilities struct {
	Configuration    bool `json:"configuration,omitempty"`
	WorkspaceFolders bool `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// ServerCapabilities holds the capabilities the server reported. Providers
// may be a bool or an options object.
type ServerCapabilities struct {
	DefinitionProvider any `json:"definitionProvider,omitempty"`
}

// HasDefinitionProvider reports whether the server supports definitions.
func (c ServerCapabilities) HasDefinitionProvider() bool {
	switch v := c.DefinitionProvider.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}

// PathToURI converts a file path to a file:// URI.
func PathToURI(path string) string {
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// URIToPath converts a file:// URI to a path. It reports false for any
// other scheme.
func URIToPath(uri string) (string, bool) {
	u, err := url.Parse(uri)
	if err != nil {
		if !strings.HasPrefix(uri, "file://") {
			return "", false
		}
		return filepath.FromSlash(strings.TrimPrefix(uri, "file://")), true
	}
	if u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// ParseLocations decodes a definition result: null, a Location, a
// Location array or a LocationLink array. For links the target selection
// range is used, falling back to the full target range.
func ParseLocations(data json.RawMessage) ([]Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var raw []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, ErrInvalidResponse
		}
	} else {
		raw = []json.RawMessage{data}
	}

	out := make([]Location, 0, len(raw))
	for _, item := range raw {
		var probe struct {
			URI       string `json:"uri"`
			TargetURI string `json:"targetUri"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, ErrInvalidResponse
		}
		switch {
		case probe.URI != "":
			var loc Location
			if err := json.Unmarshal(item, &loc); err != nil {
				return nil, ErrInvalidResponse
			}
			out = append(out, loc)
		case probe.TargetURI != "":
			var link LocationLink
			if err := json.Unmarshal(item, &link); err != nil {
				return nil, ErrInvalidResponse
			}
			loc := Location{URI: link.TargetURI}
			switch {
			case link.TargetSelectionRange != nil:
				loc.Range = *link.TargetSelectionRange
			case link.TargetRange != nil:
				loc.Range = *link.TargetRange
			default:
				return nil, ErrInvalidResponse
			}
			out = append(out, loc)
		default:
			return nil, ErrInvalidResponse
		}
	}
	return out, nil
}
