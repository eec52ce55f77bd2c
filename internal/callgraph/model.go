// Package callgraph holds the per-project function records and the
// directed call graph built from them.
package callgraph

import (
	"sort"
)

// TargetKind tells whether a call target was bound to a declaration.
type TargetKind uint8

const (
	// Unresolved targets carry only the invoked simple name.
	Unresolved TargetKind = iota
	// Resolved targets carry the fully qualified name of a declaration.
	Resolved
)

func (k TargetKind) String() string {
	if k == Resolved {
		return "resolved"
	}
	return "unresolved"
}

// Target is the callee end of a call: either Resolved(fqn) or
// Unresolved(simple name). Targets are comparable and usable as map keys.
type Target struct {
	Kind TargetKind
	Name string
}

// ResolvedTarget returns a target bound to the declaration fqn.
func ResolvedTarget(fqn string) Target {
	return Target{Kind: Resolved, Name: fqn}
}

// UnresolvedTarget returns a target known only by its simple name.
func UnresolvedTarget(simple string) Target {
	return Target{Kind: Unresolved, Name: simple}
}

// IsResolved reports whether t names a declaration.
func (t Target) IsResolved() bool {
	return t.Kind == Resolved
}

func (t Target) String() string {
	if t.Kind == Resolved {
		return "Resolved(" + t.Name + ")"
	}
	return "Unresolved(" + t.Name + ")"
}

func lessTarget(a, b Target) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Kind < b.Kind
}

// CallSite is a call awaiting semantic resolution.
type CallSite struct {
	TargetSimpleName string
	File             string // absolute path
	Line             int    // 0-based
	Column           int    // 0-based, of the callee identifier
}

// FunctionRecord describes one method or constructor declaration.
type FunctionRecord struct {
	FQN       string
	FilePath  string // relative to the project root, slash separated
	StartLine int    // 0-based line of the declaration's name
	EndLine   int    // 0-based line where the declaration ends

	Calls        map[Target]struct{}
	PendingSites []CallSite
}

// NewFunctionRecord returns a record with an empty call set.
func NewFunctionRecord(fqn, filePath string, startLine, endLine int) *FunctionRecord {
	return &FunctionRecord{
		FQN:       fqn,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   endLine,
		Calls:     make(map[Target]struct{}),
	}
}

// AddCall adds t to the record's call set.
func (r *FunctionRecord) AddCall(t Target) {
	if r.Calls == nil {
		r.Calls = make(map[Target]struct{})
	}
	r.Calls[t] = struct{}{}
}

// HasCall reports whether t is in the record's call set.
func (r *FunctionRecord) HasCall(t Target) bool {
	_, ok := r.Calls[t]
	return ok
}

// SortedCalls returns the call set ordered by name, then kind.
func (r *FunctionRecord) SortedCalls() []Target {
	out := make([]Target, 0, len(r.Calls))
	for t := range r.Calls {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return lessTarget(out[i], out[j]) })
	return out
}

// Records is a project's record set keyed by fqn.
type Records map[string]*FunctionRecord

// Put stores r, replacing any record with the same fqn. It returns the
// replaced record, if any.
func (rs Records) Put(r *FunctionRecord) *FunctionRecord {
	prev := rs[r.FQN]
	rs[r.FQN] = r
	return prev
}

// SortedFQNs returns all keys in lexical order.
func (rs Records) SortedFQNs() []string {
	keys := make([]string, 0, len(rs))
	for k := range rs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PendingCount returns the number of call sites awaiting resolution.
func (rs Records) PendingCount() int {
	n := 0
	for _, r := range rs {
		n += len(r.PendingSites)
	}
	return n
}
