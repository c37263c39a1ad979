// Package catalog defines the fixed set of layers a harvest run covers.
package catalog

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
)

const (
	DefaultMinZoom = 4
	DefaultMaxZoom = 14
)

// LayerDescriptor describes one harvestable layer. Descriptors are loaded
// once at startup and never mutated.
type LayerDescriptor struct {
	Name     string            `json:"name"`
	QueryURL string            `json:"url"`
	BBox     *planner.Envelope `json:"bbox,omitempty"`
	// SourceCRS, when set, skips the metadata probe (e.g. "EPSG:3857").
	SourceCRS string `json:"sourceCRS,omitempty"`
	// Fallback overrides the store-derived fallback dataset path.
	Fallback string `json:"fallback,omitempty"`
	MinZoom  int    `json:"minZoom,omitempty"`
	MaxZoom  int    `json:"maxZoom,omitempty"`
}

// Default returns the built-in layer catalog.
func Default() []LayerDescriptor {
	return applyDefaults([]LayerDescriptor{
		{
			Name:     "WV_wells",
			QueryURL: "https://tagis.dep.wv.gov/arcgis/rest/services/WVDEP_enterprise/oil_gas/MapServer/0/query",
			BBox:     &planner.Envelope{XMin: -82.8, YMin: 37.0, XMax: -77.7, YMax: 40.6},
		},
		{
			Name:     "OH_parcels",
			QueryURL: "https://geo.oit.ohio.gov/arcgis/rest/services/Statewide/Parcels/MapServer/0/query",
			BBox:     &planner.Envelope{XMin: -84.8, YMin: 38.3, XMax: -80.5, YMax: 42.0},
		},
		{
			Name:     "TX_parcels",
			QueryURL: "https://feature.geographic.texas.gov/arcgis/rest/services/Parcels/stratmap25_land_parcels_48/MapServer/0/query",
			BBox:     &planner.Envelope{XMin: -106.7, YMin: 25.7, XMax: -93.5, YMax: 36.6},
		},
	})
}

// Load reads a JSON catalog file holding an array of layer descriptors.
func Load(path string) ([]LayerDescriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var layers []LayerDescriptor
	if err := json.Unmarshal(b, &layers); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := validate(layers); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return applyDefaults(layers), nil
}

func validate(layers []LayerDescriptor) error {
	if len(layers) == 0 {
		return fmt.Errorf("no layers defined")
	}
	seen := make(map[string]bool, len(layers))
	for _, l := range layers {
		if l.Name == "" {
			return fmt.Errorf("layer with empty name")
		}
		if seen[l.Name] {
			return fmt.Errorf("duplicate layer name %q", l.Name)
		}
		seen[l.Name] = true
		u, err := url.Parse(l.QueryURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("layer %q: invalid query url %q", l.Name, l.QueryURL)
		}
		if l.BBox != nil && !l.BBox.Valid() {
			return fmt.Errorf("layer %q: degenerate bbox %s", l.Name, l.BBox)
		}
	}
	return nil
}

func applyDefaults(layers []LayerDescriptor) []LayerDescriptor {
	for i := range layers {
		if layers[i].MinZoom == 0 {
			layers[i].MinZoom = DefaultMinZoom
		}
		if layers[i].MaxZoom == 0 {
			layers[i].MaxZoom = DefaultMaxZoom
		}
	}
	return layers
}
