package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// TB is the subset of testing.TB shared with *rapid.T.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// AssertNoDanglingEdges verifies every edge endpoint is a node of the view.
func AssertNoDanglingEdges(t TB, v model.View) {
	t.Helper()
	ids := v.NodeIDs()
	for _, e := range v.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			t.Errorf("edge %s (%s->%s) references a node outside the view", e.ID, e.Source, e.Target)
		}
	}
}

// AssertNodeIDs verifies the view's node ids, in order.
func AssertNodeIDs(t TB, v model.View, want ...string) {
	t.Helper()
	if got := NodeIDs(v); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("node ids = %v, want %v", got, want)
	}
}

// AssertEdgeIDs verifies the view's edge ids, in order.
func AssertEdgeIDs(t TB, v model.View, want ...string) {
	t.Helper()
	if got := EdgeIDs(v); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("edge ids = %v, want %v", got, want)
	}
}

// NodeIDs lists the view's node ids in order.
func NodeIDs(v model.View) []string {
	ids := make([]string, len(v.Nodes))
	for i := range v.Nodes {
		ids[i] = v.Nodes[i].ID
	}
	return ids
}

// EdgeIDs lists the view's edge ids in order.
func EdgeIDs(v model.View) []string {
	ids := make([]string, len(v.Edges))
	for i := range v.Edges {
		ids[i] = v.Edges[i].ID
	}
	return ids
}

// AssertJSONEqual compares two values after JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// WriteFixture writes g as a {"graph": ...} document into dir and returns
// the path. The directory is cleaned up after the test.
func WriteFixture(t *testing.T, dir, name string, g *model.Graph) string {
	t.Helper()
	data, err := json.MarshalIndent(map[string]any{"graph": g}, "", "  ")
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
