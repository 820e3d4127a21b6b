package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/graphlens/pkg/debug"
)

// Format is an output encoding.
type Format string

const (
	FormatSVG    Format = "svg"
	FormatPNG    Format = "png"
	FormatSQLite Format = "sqlite"
)

// ErrUnsupportedFormat is returned for an unknown extension or format name.
var ErrUnsupportedFormat = errors.New("unsupported format")

// FormatFor infers the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		return FormatSVG, nil
	case ".png":
		return FormatPNG, nil
	case ".sqlite", ".sqlite3", ".db":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("%w: %q (want .svg, .png or .sqlite)", ErrUnsupportedFormat, filepath.Ext(path))
}

// Save renders sc to path in the format named by its extension. SQLite
// snapshots need the full graph; use SaveSQLite for those.
func Save(path string, sc Scene) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	switch format {
	case FormatSVG:
		err = WriteSVG(&buf, sc)
	case FormatPNG:
		err = WritePNG(&buf, sc)
	default:
		return fmt.Errorf("%w: %s needs SaveSQLite", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	return writeAtomic(path, buf.Bytes())
}

// SaveAll renders sc to every path concurrently. The first failure cancels
// the rest and is returned.
func SaveAll(ctx context.Context, sc Scene, paths ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := Save(p, sc); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			debug.Log("render: wrote %s", p)
			return nil
		})
	}
	return g.Wait()
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
