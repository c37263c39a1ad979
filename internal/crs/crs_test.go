package crs

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeaa1983/mineralink-tiles/internal/arcgis"
	"github.com/mikeaa1983/mineralink-tiles/internal/catalog"
	"github.com/mikeaa1983/mineralink-tiles/internal/httpclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromWKID(t *testing.T) {
	assert.Equal(t, "EPSG:3857", FromWKID(102100))
	assert.Equal(t, "EPSG:3857", FromWKID(102113))
	assert.Equal(t, "EPSG:3857", FromWKID(900913))
	assert.Equal(t, "EPSG:4326", FromWKID(4326))
	assert.Equal(t, "EPSG:26917", FromWKID(26917))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "EPSG:3857", Normalize("3857"))
	assert.Equal(t, "EPSG:3857", Normalize("epsg:102100"))
	assert.Equal(t, "EPSG:4326", Normalize(" EPSG:4326 "))
	assert.Equal(t, "CRS84", Normalize("crs84"))
}

func TestResolveDeclaredWins(t *testing.T) {
	probed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		probed = true
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := NewResolver(arcgis.NewClient(srv.Client(), discardLogger()), discardLogger())
	got := r.Resolve(context.Background(), catalog.LayerDescriptor{
		Name:      "declared",
		QueryURL:  srv.URL + "/0/query",
		SourceCRS: "102100",
	})
	assert.Equal(t, "EPSG:3857", got)
	assert.False(t, probed, "declared CRS must skip the metadata probe")
}

func TestResolveProbesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"extent":{"spatialReference":{"wkid":102100,"latestWkid":3857}}}`))
	}))
	defer srv.Close()

	r := NewResolver(arcgis.NewClient(srv.Client(), discardLogger()), discardLogger())
	got := r.Resolve(context.Background(), catalog.LayerDescriptor{
		Name:     "probed",
		QueryURL: srv.URL + "/0/query",
	})
	assert.Equal(t, "EPSG:3857", got)
}

func TestResolveTopLevelSpatialReference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"spatialReference":{"wkid":4326}}`))
	}))
	defer srv.Close()

	r := NewResolver(arcgis.NewClient(srv.Client(), discardLogger()), discardLogger())
	got := r.Resolve(context.Background(), catalog.LayerDescriptor{
		Name:     "toplevel",
		QueryURL: srv.URL + "/0/query",
	})
	assert.Equal(t, "EPSG:4326", got)
}

func TestResolveFallsBackOnProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewResolver(arcgis.NewClient(httpclient.NewOutbound(0), discardLogger()), discardLogger())
	got := r.Resolve(context.Background(), catalog.LayerDescriptor{
		Name:     "down",
		QueryURL: srv.URL + "/0/query",
	})
	assert.Equal(t, Default, got, "probe failure must never block the pipeline")
}

func TestTransformIdentityForWGS84(t *testing.T) {
	tf, err := Transform("EPSG:4326")
	require.NoError(t, err)

	p := orb.Point{-80.5, 38.9}
	got := tf(p)
	assert.Equal(t, p, got, "WGS84 to WGS84 must be the identity")
	assert.Equal(t, got, tf(got), "applying the transform twice must be idempotent")
}

func TestTransformMercatorRoundTrip(t *testing.T) {
	tf, err := Transform("EPSG:3857")
	require.NoError(t, err)

	orig := orb.Point{-82.7, 37.9}
	merc := project.WGS84.ToMercator(orig)
	back := tf(merc)
	assert.InDelta(t, orig[0], back[0], 1e-8)
	assert.InDelta(t, orig[1], back[1], 1e-8)
}

func TestTransformUnsupported(t *testing.T) {
	_, err := Transform("EPSG:26917")
	assert.Error(t, err)
}
