// Package tiler hands completed feature collections to the external tile
// generator.
package tiler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Builder converts one layer's feature-collection file into a tile set.
type Builder interface {
	Build(ctx context.Context, layer, geojsonPath string, minZoom, maxZoom int) error
}

// Tippecanoe shells out to the tippecanoe binary.
type Tippecanoe struct {
	Path     string
	TilesDir string
	log      *slog.Logger
}

func NewTippecanoe(path, tilesDir string, log *slog.Logger) *Tippecanoe {
	if path == "" {
		path = "tippecanoe"
	}
	return &Tippecanoe{Path: path, TilesDir: tilesDir, log: log}
}

func (t *Tippecanoe) Build(ctx context.Context, layer, geojsonPath string, minZoom, maxZoom int) error {
	outDir := filepath.Join(t.TilesDir, layer)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create tiles dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.Path,
		"--output-to-directory", outDir,
		"--layer", layer,
		"--force",
		fmt.Sprintf("--minimum-zoom=%d", minZoom),
		fmt.Sprintf("--maximum-zoom=%d", maxZoom),
		geojsonPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.log.InfoContext(ctx, "building tiles",
		"layer", layer, "source", geojsonPath, "min_zoom", minZoom, "max_zoom", maxZoom)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tippecanoe %s: %w: %s", layer, err, stderr.String())
	}
	return nil
}
