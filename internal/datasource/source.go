// Package datasource opens graphs from every source glens understands:
// fixture documents (JSON, YAML) and the SQLite snapshots written by
// `glens snapshot`.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SourceType identifies the type of data source
type SourceType string

const (
	// SourceTypeFixture is a JSON or YAML fixture document
	SourceTypeFixture SourceType = "fixture"
	// SourceTypeSQLite is a SQLite snapshot
	SourceTypeSQLite SourceType = "sqlite"
)

// DataSource describes a graph source on disk.
type DataSource struct {
	// Type identifies the source type
	Type SourceType `json:"type"`
	// Path is the path to the source file
	Path string `json:"path"`
	// ModTime is the last modification time of the source
	ModTime time.Time `json:"mod_time"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	return fmt.Sprintf("%s (%s, %d bytes, mod=%s)", s.Path, s.Type, s.Size, s.ModTime.Format(time.RFC3339))
}

// TypeFor classifies path by extension. Anything that is not a SQLite
// database is handed to the fixture loader.
func TypeFor(path string) SourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sqlite", ".sqlite3", ".db":
		return SourceTypeSQLite
	}
	return SourceTypeFixture
}

// Detect stats path and classifies it.
func Detect(path string) (DataSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return DataSource{}, fmt.Errorf("open source: %w", err)
	}
	if info.IsDir() {
		return DataSource{}, fmt.Errorf("open source: %s is a directory", path)
	}
	return DataSource{
		Type:    TypeFor(path),
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, nil
}

// DiscoverSources lists the graph sources in dir, newest first. Hidden
// files, backups and empty files are skipped.
func DiscoverSources(dir string) ([]DataSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory: %w", err)
	}

	var sources []DataSource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".yaml", ".yml", ".sqlite", ".sqlite3", ".db":
		default:
			continue
		}
		if strings.HasPrefix(name, ".") ||
			strings.Contains(name, ".backup") ||
			strings.Contains(name, ".orig") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		path := filepath.Join(dir, name)
		sources = append(sources, DataSource{
			Type:    TypeFor(path),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}

	sort.Slice(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Path < sources[j].Path
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}
