package render

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// SnapshotSchemaVersion is stored in the meta table of SQLite snapshots.
const SnapshotSchemaVersion = 1

var snapshotSchema = []string{
	`CREATE TABLE meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE nodes (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		label TEXT,
		description TEXT,
		valid_from TEXT,
		valid_to TEXT,
		properties TEXT,
		visible INTEGER NOT NULL,
		x REAL,
		y REAL,
		opacity REAL,
		highlighted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE edges (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		type TEXT NOT NULL,
		valid_from TEXT,
		valid_to TEXT,
		properties TEXT,
		visible INTEGER NOT NULL,
		opacity REAL,
		width REAL,
		color TEXT,
		highlighted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX idx_edges_source ON edges(source)`,
	`CREATE INDEX idx_edges_target ON edges(target)`,
	`CREATE INDEX idx_nodes_visible ON nodes(visible)`,
}

// SaveSQLite writes the full graph to a fresh SQLite database at path,
// marking which elements sc shows and with what emphasis. Rows for hidden
// elements carry NULL positions and styles.
func SaveSQLite(ctx context.Context, path string, g *model.Graph, sc Scene) error {
	if g == nil {
		return fmt.Errorf("sqlite snapshot: nil graph")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing database: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	for _, stmt := range snapshotSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := insertMeta(ctx, tx, g, sc); err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	if err := insertNodes(ctx, tx, g, sc); err != nil {
		return fmt.Errorf("insert nodes: %w", err)
	}
	if err := insertEdges(ctx, tx, g, sc); err != nil {
		return fmt.Errorf("insert edges: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertMeta(ctx context.Context, tx *sql.Tx, g *model.Graph, sc Scene) error {
	sc = sc.withDefaults()
	cursor := ""
	if !sc.Cursor.IsZero() {
		cursor = sc.Cursor.UTC().Format(time.RFC3339)
	}
	rows := [][2]string{
		{"schema_version", strconv.Itoa(SnapshotSchemaVersion)},
		{"title", sc.Title},
		{"cursor", cursor},
		{"node_count", strconv.Itoa(len(g.Nodes))},
		{"edge_count", strconv.Itoa(len(g.Edges))},
		{"visible_nodes", strconv.Itoa(len(sc.Nodes))},
		{"visible_edges", strconv.Itoa(len(sc.Edges))},
	}
	if m := g.Metadata; m != nil {
		doc, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
		rows = append(rows,
			[2]string{"graph_type", m.GraphType},
			[2]string{"description", m.Description},
			[2]string{"metadata", string(doc)},
		)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r[0], r[1]); err != nil {
			return err
		}
	}
	return nil
}

func insertNodes(ctx context.Context, tx *sql.Tx, g *model.Graph, sc Scene) error {
	visible := make(map[string]bool, len(sc.Nodes))
	for i := range sc.Nodes {
		visible[sc.Nodes[i].ID] = true
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO nodes
		(id, type, label, description, valid_from, valid_to, properties, visible, x, y, opacity, highlighted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range g.Nodes {
		n := &g.Nodes[i]
		props, err := propertiesJSON(n.Properties)
		if err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
		from, to := rangeBounds(n.Validity)
		var x, y, opacity sql.NullFloat64
		highlighted := false
		if visible[n.ID] {
			if p, ok := sc.Positions[n.ID]; ok {
				x = sql.NullFloat64{Float64: p.X, Valid: true}
				y = sql.NullFloat64{Float64: p.Y, Valid: true}
			}
			em := sc.Emphasis.Node(n.ID)
			opacity = sql.NullFloat64{Float64: em.Opacity, Valid: true}
			highlighted = em.Highlighted
		}
		if _, err := stmt.ExecContext(ctx,
			n.ID, n.Type, nullString(n.Label), nullString(n.Description), from, to, props,
			visible[n.ID], x, y, opacity, highlighted,
		); err != nil {
			return fmt.Errorf("node %q: %w", n.ID, err)
		}
	}
	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, g *model.Graph, sc Scene) error {
	visible := make(map[string]bool, len(sc.Edges))
	for i := range sc.Edges {
		visible[sc.Edges[i].ID] = true
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO edges
		(id, source, target, type, valid_from, valid_to, properties, visible, opacity, width, color, highlighted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range g.Edges {
		e := &g.Edges[i]
		props, err := propertiesJSON(e.Properties)
		if err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
		from, to := rangeBounds(e.Validity)
		var opacity, width sql.NullFloat64
		var color sql.NullString
		highlighted := false
		if visible[e.ID] {
			em := sc.Emphasis.Edge(e.ID)
			opacity = sql.NullFloat64{Float64: em.Opacity, Valid: true}
			width = sql.NullFloat64{Float64: em.Width, Valid: true}
			color = sql.NullString{String: em.Color, Valid: true}
			highlighted = em.Highlighted
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Source, e.Target, e.Type, from, to, props,
			visible[e.ID], opacity, width, color, highlighted,
		); err != nil {
			return fmt.Errorf("edge %q: %w", e.ID, err)
		}
	}
	return nil
}

func propertiesJSON(props map[string]any) (sql.NullString, error) {
	if len(props) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(props)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func rangeBounds(r *model.TemporalRange) (from, to sql.NullString) {
	if r == nil {
		return from, to
	}
	if r.ValidFrom != nil {
		from = sql.NullString{String: r.ValidFrom.UTC().Format(time.RFC3339), Valid: true}
	}
	if r.ValidTo != nil {
		to = sql.NullString{String: r.ValidTo.UTC().Format(time.RFC3339), Valid: true}
	}
	return from, to
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
