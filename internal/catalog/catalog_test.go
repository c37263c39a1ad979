package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	layers := Default()
	if len(layers) != 3 {
		t.Fatalf("built-in catalog has %d layers, want 3", len(layers))
	}
	seen := map[string]bool{}
	for _, l := range layers {
		if seen[l.Name] {
			t.Fatalf("duplicate layer %q", l.Name)
		}
		seen[l.Name] = true
		if l.BBox == nil || !l.BBox.Valid() {
			t.Fatalf("layer %q must carry a usable bbox", l.Name)
		}
		if l.MinZoom != DefaultMinZoom || l.MaxZoom != DefaultMaxZoom {
			t.Fatalf("layer %q zooms got %d..%d", l.Name, l.MinZoom, l.MaxZoom)
		}
	}
	if !seen["WV_wells"] {
		t.Fatal("WV_wells missing from the built-in catalog")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	doc := `[
		{"name":"wells","url":"https://example.com/MapServer/0/query","bbox":[-82.8,37.0,-77.7,40.6],"sourceCRS":"EPSG:3857"},
		{"name":"paged","url":"https://example.com/MapServer/1/query","maxZoom":16}
	]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	layers, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("got %d layers", len(layers))
	}
	if layers[0].BBox == nil || layers[0].BBox.XMin != -82.8 {
		t.Fatalf("bbox not decoded: %+v", layers[0].BBox)
	}
	if layers[0].SourceCRS != "EPSG:3857" {
		t.Fatalf("sourceCRS got %q", layers[0].SourceCRS)
	}
	if layers[1].BBox != nil {
		t.Fatal("bbox must stay nil when absent")
	}
	if layers[1].MinZoom != DefaultMinZoom || layers[1].MaxZoom != 16 {
		t.Fatalf("zoom defaults wrong: %d..%d", layers[1].MinZoom, layers[1].MaxZoom)
	}
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"duplicate names": `[
			{"name":"a","url":"https://example.com/0/query"},
			{"name":"a","url":"https://example.com/1/query"}
		]`,
		"empty name":  `[{"name":"","url":"https://example.com/0/query"}]`,
		"bad url":     `[{"name":"a","url":"not a url"}]`,
		"bad bbox":    `[{"name":"a","url":"https://example.com/0/query","bbox":[1,1,1,1]}]`,
		"no layers":   `[]`,
		"not a array": `{"layers":[]}`,
	}
	for name, doc := range cases {
		path := filepath.Join(t.TempDir(), "catalog.json")
		if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
}
