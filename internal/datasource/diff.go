package datasource

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// GraphDiff represents differences between two graph sources
type GraphDiff struct {
	// SourceA is the name of the first source
	SourceA string
	// SourceB is the name of the second source
	SourceB string
	// MissingNodesInA contains node IDs present in B but not in A
	MissingNodesInA []string
	// MissingNodesInB contains node IDs present in A but not in B
	MissingNodesInB []string
	// MissingEdgesInA contains edge IDs present in B but not in A
	MissingEdgesInA []string
	// MissingEdgesInB contains edge IDs present in A but not in B
	MissingEdgesInB []string
	// Changed lists fields that differ on elements present in both
	Changed []FieldDifference
	// Node and edge totals per source
	NodesA, NodesB int
	EdgesA, EdgesB int
}

// FieldDifference is one mismatching field of a node or edge.
type FieldDifference struct {
	Kind  string `json:"kind"` // node, edge
	ID    string `json:"id"`
	Field string `json:"field"`
	A     string `json:"a"`
	B     string `json:"b"`
}

// HasDifferences returns true if the graphs differ in any compared way
func (d GraphDiff) HasDifferences() bool {
	return len(d.MissingNodesInA) > 0 || len(d.MissingNodesInB) > 0 ||
		len(d.MissingEdgesInA) > 0 || len(d.MissingEdgesInB) > 0 ||
		len(d.Changed) > 0
}

// Summary returns a human-readable summary of the differences
func (d GraphDiff) Summary() string {
	if !d.HasDifferences() {
		return fmt.Sprintf("Graphs match (%d nodes, %d edges)", d.NodesA, d.EdgesA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Differences between %s and %s:\n", d.SourceA, d.SourceB)
	if d.NodesA != d.NodesB || d.EdgesA != d.EdgesB {
		fmt.Fprintf(&b, "  - Count mismatch: %d/%d vs %d/%d nodes/edges\n", d.NodesA, d.EdgesA, d.NodesB, d.EdgesB)
	}
	list := func(ids []string, what, in, notIn string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d %s in %s but not %s\n", len(ids), what, in, notIn)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&b, "    - %s\n", id)
			}
		}
	}
	list(d.MissingNodesInB, "nodes", d.SourceA, d.SourceB)
	list(d.MissingNodesInA, "nodes", d.SourceB, d.SourceA)
	list(d.MissingEdgesInB, "edges", d.SourceA, d.SourceB)
	list(d.MissingEdgesInA, "edges", d.SourceB, d.SourceA)

	if len(d.Changed) > 0 {
		fmt.Fprintf(&b, "  - %d changed fields\n", len(d.Changed))
		if len(d.Changed) <= 5 {
			for _, c := range d.Changed {
				fmt.Fprintf(&b, "    - %s %s %s: %q vs %q\n", c.Kind, c.ID, c.Field, c.A, c.B)
			}
		}
	}
	return b.String()
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// CompareFields names the fields compared on shared elements:
	// type, label, temporal, endpoints, properties.
	CompareFields []string
	// MaxDifferences limits the number of differences tracked per list (0 = unlimited)
	MaxDifferences int
}

// DefaultDiffOptions returns sensible default diff options
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{
		CompareFields:  []string{"type", "label", "temporal", "endpoints"},
		MaxDifferences: 100,
	}
}

// Compare diffs two graphs. Every list is sorted by ID.
func Compare(a, b *model.Graph, nameA, nameB string, opts DiffOptions) GraphDiff {
	if a == nil {
		a = &model.Graph{}
	}
	if b == nil {
		b = &model.Graph{}
	}
	d := GraphDiff{
		SourceA: nameA,
		SourceB: nameB,
		NodesA:  len(a.Nodes),
		NodesB:  len(b.Nodes),
		EdgesA:  len(a.Edges),
		EdgesB:  len(b.Edges),
	}
	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }
	compare := func(field string) bool { return slices.Contains(opts.CompareFields, field) }
	changed := func(kind, id, field, va, vb string) {
		if va != vb && compare(field) && room(len(d.Changed)) {
			d.Changed = append(d.Changed, FieldDifference{Kind: kind, ID: id, Field: field, A: va, B: vb})
		}
	}

	nodesA := make(map[string]*model.Node, len(a.Nodes))
	for i := range a.Nodes {
		nodesA[a.Nodes[i].ID] = &a.Nodes[i]
	}
	nodesB := make(map[string]*model.Node, len(b.Nodes))
	for i := range b.Nodes {
		nodesB[b.Nodes[i].ID] = &b.Nodes[i]
	}
	for _, id := range sortedKeys(nodesA) {
		if _, ok := nodesB[id]; !ok && room(len(d.MissingNodesInB)) {
			d.MissingNodesInB = append(d.MissingNodesInB, id)
		}
	}
	for _, id := range sortedKeys(nodesB) {
		nb := nodesB[id]
		na, ok := nodesA[id]
		if !ok {
			if room(len(d.MissingNodesInA)) {
				d.MissingNodesInA = append(d.MissingNodesInA, id)
			}
			continue
		}
		changed("node", id, "type", na.Type, nb.Type)
		changed("node", id, "label", na.Label, nb.Label)
		changed("node", id, "temporal", rangeString(na.Validity), rangeString(nb.Validity))
		changed("node", id, "properties", propsString(na.Properties), propsString(nb.Properties))
	}

	edgesA := make(map[string]*model.Edge, len(a.Edges))
	for i := range a.Edges {
		edgesA[a.Edges[i].ID] = &a.Edges[i]
	}
	edgesB := make(map[string]*model.Edge, len(b.Edges))
	for i := range b.Edges {
		edgesB[b.Edges[i].ID] = &b.Edges[i]
	}
	for _, id := range sortedKeys(edgesA) {
		if _, ok := edgesB[id]; !ok && room(len(d.MissingEdgesInB)) {
			d.MissingEdgesInB = append(d.MissingEdgesInB, id)
		}
	}
	for _, id := range sortedKeys(edgesB) {
		eb := edgesB[id]
		ea, ok := edgesA[id]
		if !ok {
			if room(len(d.MissingEdgesInA)) {
				d.MissingEdgesInA = append(d.MissingEdgesInA, id)
			}
			continue
		}
		changed("edge", id, "type", ea.Type, eb.Type)
		changed("edge", id, "endpoints", ea.Source+" -> "+ea.Target, eb.Source+" -> "+eb.Target)
		changed("edge", id, "temporal", rangeString(ea.Validity), rangeString(eb.Validity))
		changed("edge", id, "properties", propsString(ea.Properties), propsString(eb.Properties))
	}
	return d
}

// CompareSources loads and compares two graph sources
func CompareSources(ctx context.Context, pathA, pathB string, opts DiffOptions, parse loader.ParseOptions) (*GraphDiff, error) {
	a, err := Load(ctx, pathA, parse)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", pathA, err)
	}
	b, err := Load(ctx, pathB, parse)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", pathB, err)
	}
	d := Compare(a, b, pathA, pathB, opts)
	return &d, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func rangeString(r *model.TemporalRange) string {
	if r == nil {
		return "always"
	}
	bound := func(t *time.Time) string {
		if t == nil {
			return "…"
		}
		return t.UTC().Format(time.DateOnly)
	}
	return bound(r.ValidFrom) + " – " + bound(r.ValidTo)
}

func propsString(props map[string]any) string {
	if len(props) == 0 {
		return ""
	}
	keys := sortedKeys(props)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, props[k])
	}
	return strings.Join(parts, ", ")
}
