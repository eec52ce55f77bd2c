package fqn

import (
	"path"
	"path/filepath"
	"strings"
)

// Sep joins the segments of a qualified name.
const Sep = "."

// Compute returns the fully qualified name of a declaration.
// Format: <package>.<outer class>...<inner class>.<name>
// Examples:
//   - com.example.Outer.Inner.run
//   - Foo.bar (no package declaration)
//
// An empty package is omitted. An empty class stack falls back to the base
// name of relPath as a single synthetic class level.
func Compute(pkg string, classes []string, relPath, name string) string {
	if len(classes) == 0 {
		classes = []string{FileClass(relPath)}
	}
	parts := make([]string, 0, len(classes)+2)
	if pkg != "" {
		parts = append(parts, pkg)
	}
	parts = append(parts, classes...)
	parts = append(parts, name)
	return strings.Join(parts, Sep)
}

// FileClass returns the synthetic class name for a file: its base name
// without extension.
func FileClass(relPath string) string {
	base := path.Base(filepath.ToSlash(relPath))
	return strings.TrimSuffix(base, path.Ext(base))
}

// SimpleName returns the last segment of a qualified name.
func SimpleName(qn string) string {
	if i := strings.LastIndex(qn, Sep); i >= 0 {
		return qn[i+1:]
	}
	return qn
}
