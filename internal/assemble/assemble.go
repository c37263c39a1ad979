// Package assemble merges a layer's normalized features into one feature
// collection and persists it.
package assemble

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb/geojson"
)

// ErrEmpty signals that the layer yielded zero features; nothing is
// persisted and the orchestrator falls back to a static dataset.
var ErrEmpty = errors.New("feature collection is empty")

// Provenance is stamped onto the persisted collection.
type Provenance struct {
	Layer     string
	SourceCRS string
	Endpoint  string
	FetchedAt time.Time
	Complete  bool
}

type Assembler struct {
	outDir string
	log    *slog.Logger
}

func New(outDir string, log *slog.Logger) *Assembler {
	return &Assembler{outDir: outDir, log: log}
}

// Path returns where the layer's collection is (or would be) persisted.
func (a *Assembler) Path(layer string) string {
	return filepath.Join(a.outDir, layer+".geojson")
}

// Write persists the collection for one layer, overwriting any previous run's
// file wholesale. Zero features returns ErrEmpty without touching the disk.
func (a *Assembler) Write(features []*geojson.Feature, prov Provenance) (string, error) {
	if len(features) == 0 {
		return "", ErrEmpty
	}

	fc := geojson.NewFeatureCollection()
	fc.Features = features
	fc.ExtraMembers = geojson.Properties{
		"layer":     prov.Layer,
		"sourceCRS": prov.SourceCRS,
		"endpoint":  prov.Endpoint,
		"fetchedAt": prov.FetchedAt.UTC().Format(time.RFC3339),
		"complete":  prov.Complete,
	}

	b, err := json.Marshal(fc)
	if err != nil {
		return "", fmt.Errorf("marshal collection: %w", err)
	}

	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	dst := a.Path(prov.Layer)
	tmp, err := os.CreateTemp(a.outDir, prov.Layer+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("replace collection: %w", err)
	}

	a.log.Info("collection persisted",
		"layer", prov.Layer, "features", len(features), "complete", prov.Complete, "path", dst)
	return dst, nil
}
