// Package loader imports and exports graph fixtures.
//
// A fixture is a JSON or YAML document shaped {graph: {nodes, edges,
// metadata}}; a bare {nodes, edges, metadata} object is accepted too. A
// rejected import returns *ImportError and never hands back a partial
// graph, so callers keep whatever graph they already had.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// FixtureDirEnvVar overrides the directory FindFixture searches.
const FixtureDirEnvVar = "GLENS_FIXTURES"

// PreferredFixtureNames defines the lookup priority inside a fixture
// directory.
var PreferredFixtureNames = []string{"graph.json", "graph.yaml", "graph.yml", "fixture.json"}

// DefaultMaxBytes caps the size of an imported document (64MB).
const DefaultMaxBytes = 64 << 20

// Format is a fixture encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Unknown extensions are
// treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Reasons reported by ImportError, also used as the metrics label.
const (
	ReasonIO      = "io"
	ReasonSyntax  = "syntax"
	ReasonShape   = "shape"
	ReasonInvalid = "invalid"
)

var (
	ErrEmpty        = errors.New("document is empty")
	ErrMissingField = errors.New("required field is missing")
	ErrNotArray     = errors.New("must be an array")
	ErrNotObject    = errors.New("must be an object")
	ErrTooLarge     = errors.New("document exceeds size limit")
)

// ImportError describes why a fixture was rejected.
type ImportError struct {
	Path   string // file path, empty for in-memory documents
	Field  string // JSON path of the offending field, e.g. "graph.nodes"
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	var b strings.Builder
	b.WriteString("import")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ImportError) Unwrap() error { return e.Err }

// ParseOptions configures Parse.
type ParseOptions struct {
	// WarningHandler receives data-integrity notes such as edges pointing
	// at unknown nodes. If nil, warnings go to the debug log.
	WarningHandler func(string)

	// MaxBytes rejects larger documents. If 0, uses DefaultMaxBytes.
	MaxBytes int
}

// GetFixtureDir returns the directory to search for fixtures: the
// GLENS_FIXTURES variable when set, otherwise dir (or the working
// directory when dir is empty).
func GetFixtureDir(dir string) (string, error) {
	if envDir := os.Getenv(FixtureDirEnvVar); envDir != "" {
		return envDir, nil
	}
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return wd, nil
}

// FindFixture locates a fixture file in dir. Preferred names win, then the
// first non-empty .json/.yaml/.yml file. Backups and editor swap files are
// skipped.
func FindFixture(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read fixture directory: %w", err)
	}

	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		if strings.HasPrefix(name, ".") ||
			strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no graph fixture found in %s", dir)
	}

	nonEmpty := func(name string) (string, bool) {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		return path, err == nil && info.Size() > 0
	}
	for _, preferred := range PreferredFixtureNames {
		for _, name := range candidates {
			if name == preferred {
				if path, ok := nonEmpty(name); ok {
					return path, nil
				}
			}
		}
	}
	for _, name := range candidates {
		if path, ok := nonEmpty(name); ok {
			return path, nil
		}
	}
	return filepath.Join(dir, candidates[0]), nil
}

// LoadFile reads and parses a fixture file.
func LoadFile(path string, opts ParseOptions) (*model.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fail(&ImportError{Path: path, Reason: ReasonIO, Err: err})
	}
	g, err := Parse(data, FormatFor(path), opts)
	var ie *ImportError
	if errors.As(err, &ie) {
		ie.Path = path
	}
	return g, err
}

// Parse decodes a fixture document.
func Parse(data []byte, format Format, opts ParseOptions) (*model.Graph, error) {
	defer metrics.Timer(metrics.FixtureImport)()

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(data) > maxBytes {
		return nil, fail(&ImportError{Reason: ReasonIO, Err: fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, len(data), maxBytes)})
	}

	data = bytes.TrimSpace(stripBOM(data))
	if len(data) == 0 {
		return nil, fail(&ImportError{Reason: ReasonSyntax, Err: ErrEmpty})
	}
	if format == FormatYAML {
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, fail(&ImportError{Reason: ReasonSyntax, Err: err})
		}
		data = converted
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fail(&ImportError{Reason: ReasonSyntax, Err: err})
	}

	prefix := ""
	body := top
	if raw, ok := top["graph"]; ok {
		prefix = "graph."
		if !isKind(raw, '{') {
			return nil, fail(&ImportError{Field: "graph", Reason: ReasonShape, Err: ErrNotObject})
		}
		body = nil
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fail(&ImportError{Field: "graph", Reason: ReasonSyntax, Err: err})
		}
	}

	for _, f := range []struct {
		name string
		kind byte
		err  error
	}{
		{"nodes", '[', ErrNotArray},
		{"edges", '[', ErrNotArray},
		{"metadata", '{', ErrNotObject},
	} {
		raw, ok := body[f.name]
		if !ok {
			return nil, fail(&ImportError{Field: prefix + f.name, Reason: ReasonShape, Err: ErrMissingField})
		}
		if !isKind(raw, f.kind) {
			return nil, fail(&ImportError{Field: prefix + f.name, Reason: ReasonShape, Err: f.err})
		}
	}

	g := &model.Graph{}
	if err := decode(body["nodes"], &g.Nodes); err != nil {
		return nil, fail(&ImportError{Field: prefix + "nodes", Reason: ReasonSyntax, Err: err})
	}
	if err := decode(body["edges"], &g.Edges); err != nil {
		return nil, fail(&ImportError{Field: prefix + "edges", Reason: ReasonSyntax, Err: err})
	}
	g.Metadata = &model.Metadata{}
	if err := json.Unmarshal(body["metadata"], g.Metadata); err != nil {
		return nil, fail(&ImportError{Field: prefix + "metadata", Reason: ReasonSyntax, Err: err})
	}

	v := g.Validate()
	if err := v.Err(); err != nil {
		return nil, fail(&ImportError{Field: strings.TrimSuffix(prefix, "."), Reason: ReasonInvalid, Err: err})
	}
	warn := opts.WarningHandler
	if warn == nil {
		warn = func(msg string) { debug.Log("loader: %s", msg) }
	}
	for _, w := range v.Warnings {
		warn(w)
	}
	return g, nil
}

func decode(raw json.RawMessage, into any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(into)
}

func isKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}

func fail(e *ImportError) *ImportError {
	metrics.ImportFailures.WithLabelValues(e.Reason).Inc()
	debug.Log("loader: rejected fixture: %v", e)
	return e
}

// yamlToJSON re-encodes a YAML document as JSON so both formats share one
// decoding path.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	doc, err := jsonCompatible(doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// jsonCompatible converts YAML's map[any]any mappings to string-keyed maps.
func jsonCompatible(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			c, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			c, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = c
		}
		return out, nil
	case []any:
		for i, val := range t {
			c, err := jsonCompatible(val)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
		return t, nil
	}
	return v, nil
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
