package resolve

import (
	"path/filepath"
	"sort"

	"github.com/DeusData/java-callgraph/internal/callgraph"
)

type interval struct {
	start, end int
	fqn        string
}

// contains reports whether o lies within iv.
func (iv interval) contains(o interval) bool {
	return iv.start <= o.start && o.end <= iv.end
}

type fileIntervals struct {
	ivs    []interval
	parent []int // index of the innermost enclosing interval, -1 for none
}

// IntervalIndex maps (file, line) to the innermost declaration whose line
// range contains it. Ranges within a file nest but never partially overlap,
// so each file is a sorted forest searched with one binary search and a
// walk up the enclosing chain.
type IntervalIndex struct {
	files map[string]*fileIntervals
}

// NewIntervalIndex indexes the line ranges of records. Record paths are
// joined to root to form the lookup keys.
func NewIntervalIndex(root string, records callgraph.Records) *IntervalIndex {
	byFile := make(map[string][]interval)
	for _, r := range records {
		key := filepath.Join(root, filepath.FromSlash(r.FilePath))
		byFile[key] = append(byFile[key], interval{start: r.StartLine, end: r.EndLine, fqn: r.FQN})
	}

	x := &IntervalIndex{files: make(map[string]*fileIntervals, len(byFile))}
	for file, ivs := range byFile {
		// Enclosing intervals sort before the ones they contain. Identical
		// ranges order by fqn length then fqn, so the longest name is the
		// innermost.
		sort.Slice(ivs, func(i, j int) bool {
			a, b := ivs[i], ivs[j]
			if a.start != b.start {
				return a.start < b.start
			}
			if a.end != b.end {
				return a.end > b.end
			}
			if len(a.fqn) != len(b.fqn) {
				return len(a.fqn) < len(b.fqn)
			}
			return a.fqn < b.fqn
		})
		parent := make([]int, len(ivs))
		var stack []int
		for i, iv := range ivs {
			for len(stack) > 0 && !ivs[stack[len(stack)-1]].contains(iv) {
				stack = stack[:len(stack)-1]
			}
			parent[i] = -1
			if len(stack) > 0 {
				parent[i] = stack[len(stack)-1]
			}
			stack = append(stack, i)
		}
		x.files[file] = &fileIntervals{ivs: ivs, parent: parent}
	}
	return x
}

// Lookup returns the fqn of the innermost declaration in file containing
// line (0-based). file must be an absolute, cleaned path.
func (x *IntervalIndex) Lookup(file string, line int) (string, bool) {
	fi, ok := x.files[file]
	if !ok {
		return "", false
	}
	// last interval starting at or before line
	k := sort.Search(len(fi.ivs), func(i int) bool { return fi.ivs[i].start > line }) - 1
	for k >= 0 {
		if fi.ivs[k].end >= line {
			return fi.ivs[k].fqn, true
		}
		k = fi.parent[k]
	}
	return "", false
}

// Files returns the number of indexed files.
func (x *IntervalIndex) Files() int {
	return len(x.files)
}
