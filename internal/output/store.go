package output

import (
	"context"

	"github.com/DeusData/java-callgraph/internal/pipeline"
	"github.com/DeusData/java-callgraph/internal/store"
)

// StoreSink saves graphs into a SQLite store, replacing any earlier graph
// of the same project.
type StoreSink struct {
	Store *store.Store
}

// Write implements scheduler.Sink.
func (s *StoreSink) Write(_ context.Context, res *pipeline.Result) error {
	p := &store.Project{
		Name:     res.Project,
		RootPath: res.Root,
		Semantic: res.Resolution != nil,
	}
	if err := s.Store.SaveGraph(p, res.Graph); err != nil {
		return &OutputError{Project: res.Project, Path: s.Store.Path(), Err: err}
	}
	return nil
}
