package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

type document struct {
	Graph *model.Graph `json:"graph"`
}

// Export encodes the full graph as a {graph: ...} fixture. Importing the
// result yields an equal graph, modulo key order.
func Export(g *model.Graph) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("export: nil graph")
	}
	out := *g
	if out.Nodes == nil {
		out.Nodes = []model.Node{}
	}
	if out.Edges == nil {
		out.Edges = []model.Edge{}
	}
	if out.Metadata == nil {
		out.Metadata = &model.Metadata{}
	}
	data, err := json.MarshalIndent(document{Graph: &out}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportFile writes Export(g) to path, replacing it atomically.
func ExportFile(path string, g *model.Graph) error {
	data, err := Export(g)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".glens-export-*")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// Schema returns a JSON Schema describing the fixture format.
func Schema() []byte {
	temporal := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"validFrom": map[string]any{"type": "string", "format": "date-time"},
			"validTo":   map[string]any{"type": "string", "format": "date-time"},
		},
	}
	scalarMap := map[string]any{
		"type": "object",
		"additionalProperties": map[string]any{
			"type": []string{"string", "number", "boolean", "null"},
		},
	}
	endpoint := map[string]any{
		"oneOf": []any{
			map[string]any{"type": "string"},
			map[string]any{
				"type":       "object",
				"required":   []string{"id"},
				"properties": map[string]any{"id": map[string]any{"type": "string"}},
			},
		},
	}
	graph := map[string]any{
		"type":     "object",
		"required": []string{"nodes", "edges", "metadata"},
		"properties": map[string]any{
			"nodes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"id", "type"},
					"properties": map[string]any{
						"id":          map[string]any{"type": "string", "minLength": 1},
						"type":        map[string]any{"type": "string"},
						"label":       map[string]any{"type": "string"},
						"description": map[string]any{"type": "string"},
						"properties":  scalarMap,
						"layout": map[string]any{
							"type":     "object",
							"required": []string{"x", "y"},
							"properties": map[string]any{
								"x": map[string]any{"type": "number"},
								"y": map[string]any{"type": "number"},
							},
						},
						"temporal": temporal,
					},
				},
			},
			"edges": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"id", "source", "target", "type"},
					"properties": map[string]any{
						"id":         map[string]any{"type": "string", "minLength": 1},
						"source":     endpoint,
						"target":     endpoint,
						"type":       map[string]any{"type": "string"},
						"properties": scalarMap,
						"temporal":   temporal,
					},
				},
			},
			"metadata": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"schemaVersion": map[string]any{"type": "string"},
					"graphType":     map[string]any{"type": "string"},
					"description":   map[string]any{"type": "string"},
					"author":        map[string]any{"type": "string"},
					"lastUpdated":   map[string]any{"type": "string"},
					"keyEvents": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"timestamp", "description"},
							"properties": map[string]any{
								"timestamp":   map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
							},
						},
					},
				},
			},
		},
	}
	schema := map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"title":   "graphlens fixture",
		"oneOf": []any{
			map[string]any{
				"type":       "object",
				"required":   []string{"graph"},
				"properties": map[string]any{"graph": graph},
			},
			graph,
		},
	}
	data, _ := json.MarshalIndent(schema, "", "  ")
	return data
}
