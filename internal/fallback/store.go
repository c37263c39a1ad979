// Package fallback serves pre-built feature collections for layers whose
// live harvest yielded nothing.
package fallback

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is a directory of feature-collection files keyed by layer name.
type Store struct {
	dir string
}

func NewStore(dir string) Store {
	return Store{dir: dir}
}

// Resolve returns the fallback dataset path for a layer. An explicit
// override wins over the store layout.
func (s Store) Resolve(layer, override string) (string, bool) {
	path := override
	if path == "" {
		path = filepath.Join(s.dir, layer+".geojson")
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

// CopyTo copies the layer's fallback dataset into dstDir so downstream
// tiling sees the same per-layer layout as a live harvest.
func (s Store) CopyTo(layer, override, dstDir string) (string, error) {
	src, ok := s.Resolve(layer, override)
	if !ok {
		return "", fmt.Errorf("no fallback dataset for layer %q", layer)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	dst := filepath.Join(dstDir, layer+".geojson")

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open fallback: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy fallback: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, err)
	}
	return dst, nil
}
