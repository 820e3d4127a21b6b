package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Load reads a graph from path, dispatching on the source type. Snapshots
// go through the same validation as fixtures: errors reject the graph and
// warnings reach opts.WarningHandler.
func Load(ctx context.Context, path string, opts loader.ParseOptions) (*model.Graph, error) {
	src, err := Detect(path)
	if err != nil {
		return nil, err
	}
	return LoadFromSource(ctx, src, opts)
}

// LoadFromSource loads a graph from a specific DataSource.
func LoadFromSource(ctx context.Context, src DataSource, opts loader.ParseOptions) (*model.Graph, error) {
	switch src.Type {
	case SourceTypeFixture:
		return loader.LoadFile(src.Path, opts)

	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", src.Path, err)
		}
		defer reader.Close()
		g, err := reader.Graph(ctx)
		if err != nil {
			return nil, err
		}
		v := g.Validate()
		if err := v.Err(); err != nil {
			return nil, &loader.ImportError{Path: src.Path, Reason: loader.ReasonInvalid, Err: err}
		}
		warn := opts.WarningHandler
		if warn == nil {
			warn = func(msg string) { debug.Log("datasource: %s", msg) }
		}
		for _, w := range v.Warnings {
			warn(w)
		}
		return g, nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}
