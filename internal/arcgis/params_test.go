package arcgis

import (
	"testing"

	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
)

func TestEnvelopeParams(t *testing.T) {
	env := planner.Envelope{XMin: -82.8, YMin: 37.0, XMax: -77.7, YMax: 40.6}
	v := EnvelopeParams(env)
	assertHas := func(k, want string) {
		t.Helper()
		if got := v.Get(k); got != want {
			t.Fatalf("param %q got %q want %q", k, got, want)
		}
	}
	assertHas("where", "1=1")
	assertHas("outFields", "*")
	assertHas("returnGeometry", "true")
	assertHas("f", "json")
	assertHas("inSR", "4326")
	assertHas("outSR", "4326")
	assertHas("geometry", "-82.800000,37.000000,-77.700000,40.600000")
	assertHas("geometryType", "esriGeometryEnvelope")
	assertHas("spatialRel", "esriSpatialRelIntersects")
}

func TestPageParams(t *testing.T) {
	v := PageParams(2000, 1000)
	if got := v.Get("resultOffset"); got != "2000" {
		t.Fatalf("resultOffset got %q", got)
	}
	if got := v.Get("resultRecordCount"); got != "1000" {
		t.Fatalf("resultRecordCount got %q", got)
	}
	if v.Get("geometry") != "" {
		t.Fatalf("pagination must not carry a spatial filter")
	}
}

func TestMetadataURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{
			"https://example.com/arcgis/rest/services/oil_gas/MapServer/0/query",
			"https://example.com/arcgis/rest/services/oil_gas/MapServer/0?f=json",
		},
		{
			"https://example.com/arcgis/rest/services/oil_gas/MapServer/0/query/",
			"https://example.com/arcgis/rest/services/oil_gas/MapServer/0?f=json",
		},
	}
	for _, c := range cases {
		if got := MetadataURL(c.in); got != c.want {
			t.Fatalf("MetadataURL(%q) got %q want %q", c.in, got, c.want)
		}
	}
}
