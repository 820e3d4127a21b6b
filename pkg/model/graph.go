// Package model defines the graph entities shared by the filter, layout,
// selection, timeline and render packages.
package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Position is a 2D coordinate in layout space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TemporalRange bounds the instants at which an entity is present.
// A nil ValidFrom means "from the start", a nil ValidTo means "indefinitely".
type TemporalRange struct {
	ValidFrom *time.Time `json:"validFrom,omitempty"`
	ValidTo   *time.Time `json:"validTo,omitempty"`
}

// Validate checks ValidFrom <= ValidTo when both bounds are set.
func (r *TemporalRange) Validate() error {
	if r == nil || r.ValidFrom == nil || r.ValidTo == nil {
		return nil
	}
	if r.ValidTo.Before(*r.ValidFrom) {
		return fmt.Errorf("validTo %s before validFrom %s",
			r.ValidTo.Format(time.RFC3339), r.ValidFrom.Format(time.RFC3339))
	}
	return nil
}

// UnmarshalJSON accepts RFC 3339 timestamps and bare dates.
func (r *TemporalRange) UnmarshalJSON(data []byte) error {
	var aux struct {
		ValidFrom *string `json:"validFrom"`
		ValidTo   *string `json:"validTo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	from, err := parseInstant(aux.ValidFrom)
	if err != nil {
		return fmt.Errorf("validFrom: %w", err)
	}
	to, err := parseInstant(aux.ValidTo)
	if err != nil {
		return fmt.Errorf("validTo: %w", err)
	}
	r.ValidFrom, r.ValidTo = from, to
	return nil
}

func parseInstant(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, strings.TrimSpace(*s)); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", *s)
}

// Node is a vertex of the full graph.
type Node struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Position    *Position      `json:"layout,omitempty"`
	Validity    *TemporalRange `json:"temporal,omitempty"`
}

// UnmarshalJSON keeps property numbers as json.Number and lifts a string
// "description" property into Description when the node has none.
func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var aux plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	*n = Node(aux)
	if d, ok := n.Properties["description"].(string); ok && n.Description == "" {
		n.Description = d
		delete(n.Properties, "description")
		if len(n.Properties) == 0 {
			n.Properties = nil
		}
	}
	return nil
}

// Field returns the string form of a named node field. "id", "type",
// "label" and "description" address the struct fields; any other name
// reads Properties.
func (n *Node) Field(name string) (string, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "type":
		return n.Type, true
	case "label":
		return n.Label, n.Label != ""
	case "description":
		if n.Description != "" {
			return n.Description, true
		}
	}
	return propertyString(n.Properties, name)
}

// DisplayName returns the label, falling back to the "name" property and
// then to the id.
func (n *Node) DisplayName() string {
	if n.Label != "" {
		return n.Label
	}
	if s, ok := propertyString(n.Properties, "name"); ok && s != "" {
		return s
	}
	return n.ID
}

// Edge is a directed relationship. Source and Target are always raw node
// ids; the importer normalizes endpoint objects to their id.
type Edge struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Validity   *TemporalRange `json:"temporal,omitempty"`
}

// UnmarshalJSON accepts endpoints either as ids or as objects carrying an
// "id" key.
func (e *Edge) UnmarshalJSON(data []byte) error {
	type plain Edge
	var aux struct {
		plain
		Source json.RawMessage `json:"source"`
		Target json.RawMessage `json:"target"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	src, err := endpointID(aux.Source)
	if err != nil {
		return fmt.Errorf("edge %q source: %w", aux.ID, err)
	}
	tgt, err := endpointID(aux.Target)
	if err != nil {
		return fmt.Errorf("edge %q target: %w", aux.ID, err)
	}
	*e = Edge(aux.plain)
	e.Source = src
	e.Target = tgt
	return nil
}

// ErrBadEndpoint is returned for an edge endpoint that is neither a string
// nor an object with a string id.
var ErrBadEndpoint = errors.New("endpoint must be a node id or an object with an id")

func endpointID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, nil
	}
	var obj struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == nil {
		return "", ErrBadEndpoint
	}
	return *obj.ID, nil
}

// KeyEvent is an annotated instant in the graph metadata.
type KeyEvent struct {
	Timestamp   string `json:"timestamp"`
	Description string `json:"description"`
}

// Time parses the event timestamp.
func (k KeyEvent) Time() (time.Time, error) {
	t, err := parseInstant(&k.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return *t, nil
}

// Metadata describes a graph document. Keys not modelled here are kept in
// Extra so export reproduces them.
type Metadata struct {
	SchemaVersion string
	GraphType     string
	Description   string
	Author        string
	LastUpdated   string
	KeyEvents     []KeyEvent
	Extra         map[string]json.RawMessage
}

var metadataKeys = []string{"schemaVersion", "graphType", "description", "author", "lastUpdated", "keyEvents"}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("metadata must be an object")
	}
	out := Metadata{}
	str := func(key string, dst *string) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("metadata.%s: %w", key, err)
		}
		return nil
	}
	for key, dst := range map[string]*string{
		"schemaVersion": &out.SchemaVersion,
		"graphType":     &out.GraphType,
		"description":   &out.Description,
		"author":        &out.Author,
		"lastUpdated":   &out.LastUpdated,
	} {
		if err := str(key, dst); err != nil {
			return err
		}
	}
	if v, ok := raw["keyEvents"]; ok {
		delete(raw, "keyEvents")
		if err := json.Unmarshal(v, &out.KeyEvents); err != nil {
			return fmt.Errorf("metadata.keyEvents: %w", err)
		}
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*m = out
	return nil
}

// MarshalJSON implements json.Marshaler. Empty known fields are omitted.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(metadataKeys)+len(m.Extra))
	for k, v := range m.Extra {
		out[k] = v
	}
	set := func(key, v string) {
		if v != "" {
			out[key] = v
		}
	}
	set("schemaVersion", m.SchemaVersion)
	set("graphType", m.GraphType)
	set("description", m.Description)
	set("author", m.Author)
	set("lastUpdated", m.LastUpdated)
	if m.KeyEvents != nil {
		out["keyEvents"] = m.KeyEvents
	}
	return json.Marshal(out)
}

// Graph is the full, unfiltered dataset. It is treated as immutable once
// built; replacing it means building a new Graph.
type Graph struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// NodeIndex maps node ids to their position in Nodes.
func (g *Graph) NodeIndex() map[string]int {
	idx := make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		idx[g.Nodes[i].ID] = i
	}
	return idx
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// NodeTypes returns the distinct node types in first-seen order.
func (g *Graph) NodeTypes() []string {
	return distinct(len(g.Nodes), func(i int) string { return g.Nodes[i].Type })
}

// EdgeTypes returns the distinct edge types in first-seen order.
func (g *Graph) EdgeTypes() []string {
	return distinct(len(g.Edges), func(i int) string { return g.Edges[i].Type })
}

func distinct(n int, at func(int) string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < n; i++ {
		t := at(i)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Validation collects the problems found by Validate. Errors make a graph
// unusable; Warnings are data-integrity notes the filter tolerates.
type Validation struct {
	Errors   []error
	Warnings []string
}

// Err joins all errors, or returns nil.
func (v Validation) Err() error {
	return errors.Join(v.Errors...)
}

// Validate checks id uniqueness, temporal ranges, position finiteness and
// property scalars. Edges pointing at unknown nodes are only warnings: the
// filter drops them.
func (g *Graph) Validate() Validation {
	var v Validation
	nodeIDs := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if strings.TrimSpace(n.ID) == "" {
			v.Errors = append(v.Errors, fmt.Errorf("nodes[%d]: id is required", i))
			continue
		}
		if nodeIDs[n.ID] {
			v.Errors = append(v.Errors, fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID))
		}
		nodeIDs[n.ID] = true
		if err := n.Validity.Validate(); err != nil {
			v.Errors = append(v.Errors, fmt.Errorf("node %q: %w", n.ID, err))
		}
		if p := n.Position; p != nil && (!finite(p.X) || !finite(p.Y)) {
			v.Errors = append(v.Errors, fmt.Errorf("node %q: non-finite position", n.ID))
		}
		if err := checkScalars(n.Properties); err != nil {
			v.Errors = append(v.Errors, fmt.Errorf("node %q: %w", n.ID, err))
		}
	}
	edgeIDs := make(map[string]bool, len(g.Edges))
	for i := range g.Edges {
		e := &g.Edges[i]
		if strings.TrimSpace(e.ID) == "" {
			v.Errors = append(v.Errors, fmt.Errorf("edges[%d]: id is required", i))
			continue
		}
		if edgeIDs[e.ID] {
			v.Errors = append(v.Errors, fmt.Errorf("edges[%d]: duplicate id %q", i, e.ID))
		}
		edgeIDs[e.ID] = true
		if err := e.Validity.Validate(); err != nil {
			v.Errors = append(v.Errors, fmt.Errorf("edge %q: %w", e.ID, err))
		}
		if err := checkScalars(e.Properties); err != nil {
			v.Errors = append(v.Errors, fmt.Errorf("edge %q: %w", e.ID, err))
		}
		if !nodeIDs[e.Source] {
			v.Warnings = append(v.Warnings, fmt.Sprintf("edge %q: unknown source %q", e.ID, e.Source))
		}
		if !nodeIDs[e.Target] {
			v.Warnings = append(v.Warnings, fmt.Sprintf("edge %q: unknown target %q", e.ID, e.Target))
		}
	}
	return v
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// View is a filtered subset of a Graph. Edges in a View only reference
// nodes in the same View.
type View struct {
	Nodes []Node
	Edges []Edge
}

// NodeIDs returns the set of node ids in the view.
func (v View) NodeIDs() map[string]bool {
	ids := make(map[string]bool, len(v.Nodes))
	for i := range v.Nodes {
		ids[v.Nodes[i].ID] = true
	}
	return ids
}
