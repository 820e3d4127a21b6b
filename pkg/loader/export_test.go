package loader_test

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

func TestExportRoundTrip(t *testing.T) {
	for name, g := range map[string]*model.Graph{
		"chain":    testutil.Chain(4),
		"star":     testutil.Star(5),
		"scenario": testutil.Scenario(),
	} {
		t.Run(name, func(t *testing.T) {
			first, err := loader.Export(g)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			back, err := loader.Parse(first, loader.FormatJSON, loader.ParseOptions{})
			if err != nil {
				t.Fatalf("re-import: %v", err)
			}
			second, err := loader.Export(back)
			if err != nil {
				t.Fatalf("second Export: %v", err)
			}
			if !bytes.Equal(first, second) {
				t.Errorf("export is not stable across a round trip:\n%s\n---\n%s", first, second)
			}
			testutil.AssertJSONEqual(t, g, back)
		})
	}
}

func TestExportPreservesFixtureContent(t *testing.T) {
	g, err := loader.Parse([]byte(wrapped), loader.FormatJSON, loader.ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	out, err := loader.Export(g)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Graph struct {
			Nodes    []map[string]any `json:"nodes"`
			Metadata map[string]any   `json:"metadata"`
		} `json:"graph"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if doc.Graph.Metadata["license"] != "CC-BY" {
		t.Errorf("extra metadata lost: %v", doc.Graph.Metadata)
	}
	if _, ok := doc.Graph.Nodes[1]["layout"]; !ok {
		t.Error("node layout lost on export")
	}
	if _, ok := doc.Graph.Nodes[0]["temporal"]; !ok {
		t.Error("node temporal range lost on export")
	}
}

func TestExportEmptyGraph(t *testing.T) {
	out, err := loader.Export(&model.Graph{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Parse(out, loader.FormatJSON, loader.ParseOptions{}); err != nil {
		t.Errorf("empty export must re-import: %v\n%s", err, out)
	}
	if _, err := loader.Export(nil); err == nil {
		t.Error("nil graph should fail")
	}
}

func TestExportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := loader.ExportFile(path, testutil.Chain(2)); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	g, err := loader.LoadFile(path, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(g.Nodes) != 2 {
		t.Errorf("expected 2 nodes, got %d", len(g.Nodes))
	}
}

func TestSchema(t *testing.T) {
	var schema map[string]any
	if err := json.Unmarshal(loader.Schema(), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	text := string(loader.Schema())
	for _, want := range []string{`"nodes"`, `"edges"`, `"metadata"`, `"validFrom"`, `"keyEvents"`} {
		if !strings.Contains(text, want) {
			t.Errorf("schema does not mention %s", want)
		}
	}
}
