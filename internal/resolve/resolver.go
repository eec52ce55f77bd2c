// Package resolve binds pending call sites to declarations through a
// definition-lookup session.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeusData/java-callgraph/internal/callgraph"
	"github.com/DeusData/java-callgraph/internal/lsp"
)

// Default timeouts.
const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultStartTimeout   = 2 * time.Minute
)

// Session answers definition lookups for one project. Start is called once
// before any lookup and Shutdown once on every exit path.
type Session interface {
	Start(ctx context.Context) error
	// Definition takes a path relative to the project root, a 1-based line
	// and a 0-based column.
	Definition(ctx context.Context, file string, line, col int) ([]lsp.Location, error)
	Shutdown(ctx context.Context) error
}

// SessionFactory creates the session for a project root.
type SessionFactory func(root string) Session

// LSPSessions returns a factory starting one language server per project.
func LSPSessions(cfg lsp.LanguageConfig) SessionFactory {
	return func(root string) Session {
		return lsp.NewServer(cfg, root)
	}
}

// Options configures a Resolver.
type Options struct {
	RequestTimeout time.Duration // per lookup
	StartTimeout   time.Duration // session start and handshake
}

// Stats counts the outcome of every call site in a pass.
type Stats struct {
	Sites    int // call sites examined
	Resolved int // bound to a declaration
	Missed   int // no location, a location outside the project, or no enclosing declaration
	Failed   int // the lookup itself failed
}

// Unresolved is the number of sites that fell back to their simple name.
func (s Stats) Unresolved() int {
	return s.Missed + s.Failed
}

// Resolver runs the semantic resolution pass. Each call to Resolve owns its
// own session; a Resolver may be shared by concurrent pipelines.
type Resolver struct {
	newSession SessionFactory
	opts       Options
}

// New creates a Resolver.
func New(f SessionFactory, opts Options) *Resolver {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	return &Resolver{newSession: f, opts: opts}
}

// Resolve turns every pending call site of records into a call target and
// clears the pending lists. A site whose lookup fails or lands outside any
// known declaration falls back to Unresolved(simple name); no call is ever
// dropped. Only a session that cannot start is an error.
func (r *Resolver) Resolve(ctx context.Context, root string, records callgraph.Records) (stats Stats, err error) {
	root, err = canonicalRoot(root)
	if err != nil {
		return stats, err
	}
	t := time.Now()
	pending := records.PendingCount()
	slog.Info("resolve.start", "root", root, "sites", pending)

	session := r.newSession(root)
	defer func() {
		if serr := session.Shutdown(context.Background()); serr != nil {
			slog.Warn("resolve.shutdown.err", "root", root, "err", serr)
		}
	}()

	sctx, cancel := context.WithTimeout(ctx, r.opts.StartTimeout)
	err = session.Start(sctx)
	cancel()
	if err != nil {
		return stats, fmt.Errorf("start resolution session: %w", err)
	}

	index := NewIntervalIndex(root, records)
	for _, name := range records.SortedFQNs() {
		rec := records[name]
		for _, site := range rec.PendingSites {
			stats.Sites++
			target, outcome := r.resolveSite(ctx, session, root, index, site)
			switch outcome {
			case outcomeResolved:
				stats.Resolved++
			case outcomeMissed:
				stats.Missed++
			case outcomeFailed:
				stats.Failed++
			}
			rec.AddCall(target)
		}
		rec.PendingSites = nil
	}

	slog.Info("resolve.done", "root", root, "files", index.Files(), "sites", stats.Sites,
		"resolved", stats.Resolved, "missed", stats.Missed, "failed", stats.Failed,
		"elapsed", time.Since(t))
	return stats, nil
}

type outcome int

const (
	outcomeResolved outcome = iota
	outcomeMissed
	outcomeFailed
)

func (r *Resolver) resolveSite(ctx context.Context, s Session, root string, index *IntervalIndex, site callgraph.CallSite) (callgraph.Target, outcome) {
	fallback := callgraph.UnresolvedTarget(site.TargetSimpleName)

	rel, err := filepath.Rel(root, canonicalPath(site.File))
	if err != nil {
		rel = site.File
	}

	rctx, cancel := context.WithTimeout(ctx, r.opts.RequestTimeout)
	locs, err := s.Definition(rctx, filepath.ToSlash(rel), site.Line+1, site.Column)
	cancel()
	if err != nil {
		slog.Debug("resolve.lookup.err", "file", rel, "line", site.Line, "callee", site.TargetSimpleName, "err", err)
		return fallback, outcomeFailed
	}
	if len(locs) == 0 {
		return fallback, outcomeMissed
	}

	loc := locs[0]
	path, ok := lsp.URIToPath(loc.URI)
	if !ok {
		return fallback, outcomeMissed
	}
	path = canonicalPath(path)
	if !underRoot(root, path) {
		return fallback, outcomeMissed
	}
	if fqn, ok := index.Lookup(path, loc.Range.Start.Line); ok {
		return callgraph.ResolvedTarget(fqn), outcomeResolved
	}
	return fallback, outcomeMissed
}

func canonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// canonicalPath resolves symlinks so that paths reported by the server
// compare equal to paths found by discovery.
func canonicalPath(p string) string {
	p = filepath.Clean(p)
	if real, err := filepath.EvalSymlinks(p); err == nil {
		return real
	}
	return p
}

func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
