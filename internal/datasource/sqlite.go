package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/render"
)

// ErrUnsupportedSnapshot is returned for databases that are not glens
// snapshots or were written by a newer schema.
var ErrUnsupportedSnapshot = errors.New("unsupported snapshot")

// SQLiteReader provides read access to a glens SQLite snapshot.
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a snapshot for reading.
func NewSQLiteReader(path string) (*SQLiteReader, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("datasource: %s: %v", pragma, err)
		}
	}

	return &SQLiteReader{db: db, path: path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Meta returns the key/value rows of the meta table.
func (r *SQLiteReader) Meta(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedSnapshot, r.path, err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Cursor returns the instant the snapshot was taken at, or the zero time
// when it was taken without a time filter.
func (r *SQLiteReader) Cursor(ctx context.Context) (time.Time, error) {
	meta, err := r.Meta(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if meta["cursor"] == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, meta["cursor"])
}

// Graph rebuilds the full graph stored in the snapshot. Positions of nodes
// that were visible become layout hints, so the preset layout reproduces
// the snapshot.
func (r *SQLiteReader) Graph(ctx context.Context) (*model.Graph, error) {
	meta, err := r.Meta(ctx)
	if err != nil {
		return nil, err
	}
	v, err := strconv.Atoi(meta["schema_version"])
	if err != nil || v < 1 || v > render.SnapshotSchemaVersion {
		return nil, fmt.Errorf("%w: %s has schema version %q", ErrUnsupportedSnapshot, r.path, meta["schema_version"])
	}

	g := &model.Graph{Metadata: &model.Metadata{}}
	if doc := meta["metadata"]; doc != "" {
		if err := json.Unmarshal([]byte(doc), g.Metadata); err != nil {
			return nil, fmt.Errorf("metadata: %w", err)
		}
	} else {
		g.Metadata.GraphType = meta["graph_type"]
		g.Metadata.Description = meta["description"]
	}

	if g.Nodes, err = r.loadNodes(ctx); err != nil {
		return nil, err
	}
	if g.Edges, err = r.loadEdges(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *SQLiteReader) loadNodes(ctx context.Context) ([]model.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, label, description, valid_from, valid_to, properties, x, y
		FROM nodes
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.Node
	for rows.Next() {
		var n model.Node
		var label, desc, from, to, props sql.NullString
		var x, y sql.NullFloat64
		if err := rows.Scan(&n.ID, &n.Type, &label, &desc, &from, &to, &props, &x, &y); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Label = label.String
		n.Description = desc.String
		if n.Validity, err = validity(from, to); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if n.Properties, err = properties(props); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
		if x.Valid && y.Valid {
			n.Position = &model.Position{X: x.Float64, Y: y.Float64}
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func (r *SQLiteReader) loadEdges(ctx context.Context) ([]model.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, target, type, valid_from, valid_to, properties
		FROM edges
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		var from, to, props sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Type, &from, &to, &props); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		if e.Validity, err = validity(from, to); err != nil {
			return nil, fmt.Errorf("edge %q: %w", e.ID, err)
		}
		if e.Properties, err = properties(props); err != nil {
			return nil, fmt.Errorf("edge %q: %w", e.ID, err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func validity(from, to sql.NullString) (*model.TemporalRange, error) {
	if !from.Valid && !to.Valid {
		return nil, nil
	}
	r := &model.TemporalRange{}
	for _, b := range []struct {
		s   sql.NullString
		dst **time.Time
	}{{from, &r.ValidFrom}, {to, &r.ValidTo}} {
		if !b.s.Valid {
			continue
		}
		t, err := time.Parse(time.RFC3339, b.s.String)
		if err != nil {
			return nil, err
		}
		*b.dst = &t
	}
	return r, nil
}

func properties(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(s.String), &props); err != nil {
		return nil, fmt.Errorf("properties: %w", err)
	}
	return props, nil
}
